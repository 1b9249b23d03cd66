package compute

import (
	"sort"
	"sync"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Scheduler tracks provider reputation, failure counts, and the running
// price board used to derive a default price_per_unit when an offer omits
// one. Adapted from the teacher's in-memory engine style (map-indexed
// entities guarded by a mutex); Scheduler holds its own mu and every method
// takes it, independent of Market's lock.
type Scheduler struct {
	mu sync.Mutex

	reputation          map[types.Address]int64
	failures            map[types.Address]uint64
	acceleratorFailures map[string]uint64 // "addr:accelerator" -> failure count
	expected            map[string]uint64 // job_id -> expected_duration_ms

	recentIndustrialPrices []uint64
}

func newScheduler() *Scheduler {
	return &Scheduler{
		reputation:          make(map[types.Address]int64),
		failures:            make(map[types.Address]uint64),
		acceleratorFailures: make(map[string]uint64),
		expected:            make(map[string]uint64),
	}
}

func acceleratorFailureKey(addr types.Address, accelerator string) string {
	return addr.Hex() + ":" + accelerator
}

func (s *Scheduler) setReputation(addr types.Address, rep int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation[addr] = rep
}

func (s *Scheduler) reputationOf(addr types.Address) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reputation[addr]
}

// providerScore combines standing reputation with accumulated failure
// count: each failure halves effective standing, so for a positive
// reputation a provider with a spotless record outranks one with the same
// reputation but a history of SLA violations. A zero score stays zero, and
// halving moves a negative score up toward zero.
func (s *Scheduler) providerScore(addr types.Address, reputation int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	fails := s.failures[addr]
	score := float64(reputation)
	for i := uint64(0); i < fails; i++ {
		score /= 2
	}
	return score
}

func (s *Scheduler) recordFailure(addr types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[addr]++
	s.reputation[addr]--
}

// recordAcceleratorFailure additionally tallies a failure against the
// specific accelerator class (cuda, rocm, ...) a job's capability
// required, so a provider that only misbehaves on one accelerator doesn't
// drag down its standing for workloads that don't need it. A capability
// with no accelerator requirement is not tracked here.
func (s *Scheduler) recordAcceleratorFailure(addr types.Address, accelerator string) {
	if accelerator == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceleratorFailures[acceleratorFailureKey(addr, accelerator)]++
}

func (s *Scheduler) acceleratorFailureCount(addr types.Address, accelerator string) uint64 {
	if accelerator == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceleratorFailures[acceleratorFailureKey(addr, accelerator)]
}

func (s *Scheduler) startJobWithExpected(jobID string, provider types.Address, expectedMs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expected[jobID] = expectedMs
	if _, ok := s.reputation[provider]; !ok {
		s.reputation[provider] = 0
	}
}

// recordIndustrialPrice feeds the median price board used when an offer
// omits price_per_unit. The board keeps the last 256 prices and
// priceBoardMedian returns their plain median; backlog does not adjust it.
func (s *Scheduler) recordIndustrialPrice(price uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentIndustrialPrices = append(s.recentIndustrialPrices, price)
	if len(s.recentIndustrialPrices) > 256 {
		s.recentIndustrialPrices = s.recentIndustrialPrices[1:]
	}
}

func (s *Scheduler) priceBoardMedian() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recentIndustrialPrices) == 0 {
		return 1
	}
	sorted := append([]uint64(nil), s.recentIndustrialPrices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
