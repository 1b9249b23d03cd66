package economics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestKalmanStateRoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewHistoryStore(dir)
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}

	e := NewEngine(1_000_000_000, DefaultParams())
	inputs := map[Market]MarketInput{
		MarketStorage: {Utilization: 0.4, AverageCostBlock: 1.0, ProviderMargin: 0.1},
		MarketCompute: {Utilization: 0.6, AverageCostBlock: 1.0, ProviderMargin: 0.2},
	}
	for i := 0; i < 10; i++ {
		e.UpdateBlock(inputs, 100)
	}

	if err := store.SaveKalman(e); err != nil {
		t.Fatalf("SaveKalman: %v", err)
	}
	if err := store.SaveUtilHistory(e); err != nil {
		t.Fatalf("SaveUtilHistory: %v", err)
	}

	restored := NewEngine(1_000_000_000, DefaultParams())
	if err := store.LoadKalman(restored); err != nil {
		t.Fatalf("LoadKalman: %v", err)
	}
	if err := store.LoadUtilHistory(restored); err != nil {
		t.Fatalf("LoadUtilHistory: %v", err)
	}

	wantState, wantCov := e.KalmanState()
	gotState, gotCov := restored.KalmanState()
	for i := range wantState {
		if wantState[i] != gotState[i] || wantCov[i] != gotCov[i] {
			t.Fatalf("kalman state diverged at %d: %v/%v vs %v/%v", i, wantState[i], wantCov[i], gotState[i], gotCov[i])
		}
	}

	wantHist := e.UtilHistory()
	gotHist := restored.UtilHistory()
	for m, want := range wantHist {
		got := gotHist[m]
		if len(got) != len(want) {
			t.Fatalf("market %s history length %d, want %d", m, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("market %s history diverged at %d", m, i)
			}
		}
	}
}

func TestLoadKalmanMissingFileIsNotAnError(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}
	e := NewEngine(1_000_000_000, DefaultParams())
	if err := store.LoadKalman(e); err != nil {
		t.Fatalf("LoadKalman on empty dir: %v", err)
	}
	if err := store.LoadUtilHistory(e); err != nil {
		t.Fatalf("LoadUtilHistory on empty dir: %v", err)
	}
}

func TestRestoreKalmanStateRejectsWrongLength(t *testing.T) {
	e := NewEngine(1_000_000_000, DefaultParams())
	if err := e.RestoreKalmanState([]float64{1, 2}, []float64{1, 2}); err == nil {
		t.Fatalf("expected length-mismatch rejection")
	}
}

func TestAppendEventAndInflationEpochFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewHistoryStore(dir)
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.AppendEvent(now, "kill-switch engaged pct=5"); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := store.AppendEvent(now.Add(time.Second), "retune rejected: haar burst veto"); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "events.log"))
	if err != nil {
		t.Fatalf("read events.log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "kill-switch") {
		t.Fatalf("unexpected events.log content: %q", raw)
	}

	e := NewEngine(1_000_000_000, DefaultParams())
	snap := e.UpdateBlock(nil, 0)
	if err := store.WriteInflationEpoch(42, snap); err != nil {
		t.Fatalf("WriteInflationEpoch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "inflation_42.json")); err != nil {
		t.Fatalf("inflation_42.json missing: %v", err)
	}
}
