package economics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HistoryStore persists the retune helper's state under a governance
// history directory: kalman_state.json, util_history.json, an append-only
// events.log, and one inflation_<epoch>.json per sampled epoch. Writes are
// best-effort at the call sites (a failed history write must never abort
// block production), so every method returns the error for the caller to
// log and move past.
type HistoryStore struct {
	dir string
}

// NewHistoryStore creates dir (and parents) if needed.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("economics: create history dir: %w", err)
	}
	return &HistoryStore{dir: dir}, nil
}

// kalmanStateDoc is the stable serialization of the filter. SchemaVersion
// guards against a future filter shape reading an old file as if it were
// its own.
type kalmanStateDoc struct {
	SchemaVersion uint32    `json:"schema_version"`
	State         []float64 `json:"state"`
	Covariance    []float64 `json:"covariance"`
}

const kalmanSchemaVersion = 1

// SaveKalman writes the engine's current filter state to kalman_state.json.
func (s *HistoryStore) SaveKalman(e *Engine) error {
	state, cov := e.KalmanState()
	doc := kalmanStateDoc{SchemaVersion: kalmanSchemaVersion, State: state, Covariance: cov}
	return s.writeJSON("kalman_state.json", doc)
}

// LoadKalman restores the filter from kalman_state.json. A missing file is
// not an error: the engine simply starts from its constructed state.
func (s *HistoryStore) LoadKalman(e *Engine) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, "kalman_state.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("economics: read kalman state: %w", err)
	}
	var doc kalmanStateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("economics: decode kalman state: %w", err)
	}
	if doc.SchemaVersion != kalmanSchemaVersion {
		return fmt.Errorf("economics: kalman state schema %d, want %d", doc.SchemaVersion, kalmanSchemaVersion)
	}
	return e.RestoreKalmanState(doc.State, doc.Covariance)
}

// utilHistoryDoc keys market histories by name rather than enum value so
// the file stays readable and stable if the enum ever reorders.
type utilHistoryDoc struct {
	SchemaVersion uint32               `json:"schema_version"`
	Markets       map[string][]float64 `json:"markets"`
}

// SaveUtilHistory writes the per-market utilization window to
// util_history.json.
func (s *HistoryStore) SaveUtilHistory(e *Engine) error {
	hist := e.UtilHistory()
	doc := utilHistoryDoc{SchemaVersion: kalmanSchemaVersion, Markets: make(map[string][]float64, len(hist))}
	for m, h := range hist {
		doc.Markets[m.String()] = h
	}
	return s.writeJSON("util_history.json", doc)
}

// LoadUtilHistory restores the utilization window; missing file means an
// empty history.
func (s *HistoryStore) LoadUtilHistory(e *Engine) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, "util_history.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("economics: read util history: %w", err)
	}
	var doc utilHistoryDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("economics: decode util history: %w", err)
	}
	hist := make(map[Market][]float64, len(doc.Markets))
	for _, m := range AllMarkets {
		if h, ok := doc.Markets[m.String()]; ok {
			hist[m] = h
		}
	}
	e.RestoreUtilHistory(hist)
	return nil
}

// AppendEvent appends one timestamped line to events.log.
func (s *HistoryStore) AppendEvent(now time.Time, event string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, "events.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("economics: open events log: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s %s\n", now.UTC().Format(time.RFC3339), event); err != nil {
		return fmt.Errorf("economics: append event: %w", err)
	}
	return nil
}

// WriteInflationEpoch records one epoch's published snapshot as
// inflation_<epoch>.json.
func (s *HistoryStore) WriteInflationEpoch(epoch uint64, snap Snapshot) error {
	return s.writeJSON(fmt.Sprintf("inflation_%d.json", epoch), snap)
}

func (s *HistoryStore) writeJSON(name string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("economics: encode %s: %w", name, err)
	}
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("economics: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("economics: replace %s: %w", name, err)
	}
	return nil
}
