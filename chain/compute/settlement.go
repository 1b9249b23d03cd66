package compute

import (
	"sync"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

type slaEntry struct {
	deadline    uint64
	demandKey   string
	demandUnits uint64
	violated    bool
}

// resolution is one settlement's verdict, produced by sweepOverdue for the
// market to apply.
type resolution struct {
	jobID   string
	outcome types.SlaOutcome
}

// Settlement tracks each active job's SLA deadline and surfaces overdue
// jobs for resolution. Swept at the top of every market-mutating operation,
// matching spec.md's "SLA sweep" pattern (teacher's txpool prunes
// expired transactions the same way — on the next mutating call, not on a
// background timer).
type Settlement struct {
	mu      sync.Mutex
	entries map[string]*slaEntry
}

func newSettlement() *Settlement {
	return &Settlement{entries: make(map[string]*slaEntry)}
}

func (s *Settlement) trackSLA(jobID string, deadline uint64, demandKey string, demandUnits uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jobID] = &slaEntry{deadline: deadline, demandKey: demandKey, demandUnits: demandUnits}
}

func (s *Settlement) markViolated(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[jobID]; ok {
		e.violated = true
	}
}

func (s *Settlement) remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
}

// sweepOverdue returns a resolution for every job already marked violated
// or whose deadline (in the same millisecond unit as nowMs) has passed. The
// Market applies each resolution and then removes the entry itself via
// remove(), called from emitOutcomeLocked.
func (s *Settlement) sweepOverdue(nowMs float64) []resolution {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []resolution
	for jobID, e := range s.entries {
		if e.violated {
			out = append(out, resolution{jobID: jobID, outcome: types.SlaViolated})
			continue
		}
		if float64(e.deadline) < nowMs && e.deadline != 0 {
			out = append(out, resolution{jobID: jobID, outcome: types.SlaViolated})
		}
	}
	return out
}
