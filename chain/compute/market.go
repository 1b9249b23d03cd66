// Package compute implements the two-sided compute-job auction: stake
// backed provider offers matched against consumer jobs, slice-by-slice
// execution with proof verification, and deterministic settlement receipts
// consumed by the block builder. The mutex-guarded single-struct engine
// shape, map-indexed entities, and On*-callback event hooks are adapted
// from the teacher's chain/node/txpool.go and chain/governance/governance.go.
package compute

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Admission-control errors, surfaced to the caller without mutating market
// state or penalizing the offering provider.
var (
	ErrJobNotFound      = errors.New("compute: job not found")
	ErrInvalidWorkload   = errors.New("compute: invalid workload")
	ErrCapacity          = errors.New("compute: capacity exceeded")
	ErrFairShare         = errors.New("compute: fair-share cap exceeded")
	ErrBurstExhausted    = errors.New("compute: burst bucket exhausted")
	ErrCapability        = errors.New("compute: capability mismatch")
	ErrPreemptionRejected = errors.New("compute: preemption rejected")
)

// Protocol errors: the caller sees a plain error, provider reputation is
// decremented, and the job may be removed from the market.
var (
	ErrReferenceMismatch = errors.New("compute: slice reference mismatch")
	ErrInvalidProof      = errors.New("compute: invalid proof")
	ErrPayoutMismatch    = errors.New("compute: payout mismatch")
	ErrDeadlineExceeded  = errors.New("compute: deadline exceeded")
	ErrJobNotCompleted   = errors.New("compute: job not completed")
)

// MinBond is the minimum stake, in the smallest accounting unit, either
// side of an offer must post. A bond of exactly MinBond is accepted; a
// bond below it is rejected.
const MinBond = 1

// Params is the governance-controlled admission and fairness surface.
// The node refreshes this from chain/governance on every Params activation.
type Params struct {
	AvailableShards        uint64
	FairshareGlobalMaxPpm  uint64
	BurstRefillRatePerSPpm uint64
	BurstBucketCapUnits    uint64
	MinConsumerBond        uint64
	ViolationSlashPct      uint8 // percent of provider_bond burned on SLA violation
}

func defaultParams() Params {
	return Params{
		AvailableShards:        10000,
		FairshareGlobalMaxPpm:  250000,
		BurstRefillRatePerSPpm: 500000,
		BurstBucketCapUnits:    100000,
		MinConsumerBond:        1,
		ViolationSlashPct:      20,
	}
}

type burstBucket struct {
	tokens    float64
	lastTickS float64
}

// Market is the compute-job auction engine.
type Market struct {
	mu sync.RWMutex

	params Params

	offers   map[string]types.Offer
	jobs     map[string]*types.JobState
	seenJobs map[string]struct{}

	demand      map[string]uint64 // (buyer,provider) pair key -> outstanding units
	buckets     map[string]*burstBucket

	pendingReceipts      []types.ComputeReceipt
	pendingSlashReceipts []types.ComputeSlashReceipt
	currentBlock         uint64

	scheduler  *Scheduler
	settlement *Settlement
	runner     *WorkloadRunner

	nowS func() float64 // injected clock, seconds, for burst-bucket refill

	OnJobCompleted func(jobID string)
	OnJobViolated  func(jobID string, reason types.SlaOutcome)
}

// NewMarket constructs an empty market. nowS supplies monotonic wall-clock
// seconds for burst-bucket refill; production wiring passes a real clock,
// tests pass a fake one for determinism.
func NewMarket(nowS func() float64) *Market {
	if nowS == nil {
		nowS = func() float64 { return 0 }
	}
	return &Market{
		params:     defaultParams(),
		offers:     make(map[string]types.Offer),
		jobs:       make(map[string]*types.JobState),
		seenJobs:   make(map[string]struct{}),
		demand:     make(map[string]uint64),
		buckets:    make(map[string]*burstBucket),
		scheduler:  newScheduler(),
		settlement: newSettlement(),
		runner:     newWorkloadRunner(),
		nowS:       nowS,
	}
}

// SetParams replaces the governance-controlled admission parameters.
func (m *Market) SetParams(p Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = p
}

// Params returns the market's current parameter surface, used by governance
// activation to read-modify-write a single field without clobbering the
// rest of the surface.
func (m *Market) Params() Params {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// SetCurrentBlock must be called before DrainReceipts during block build.
func (m *Market) SetCurrentBlock(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentBlock = height
}

func demandKey(buyer, provider types.Address) string {
	return buyer.Hex() + ":" + provider.Hex()
}

// sweep pulls resolutions from the settlement tracker and applies slashing
// or cleanup. Callers must already hold m.mu. A job that has already paid
// every slice is skipped: FinalizeJob settles it, so finalize resolves
// ahead of the deadline sweep when both fire in the same tick.
func (m *Market) sweep() {
	resolutions := m.settlement.sweepOverdue(m.nowS() * 1000)
	for _, res := range resolutions {
		if state, ok := m.jobs[res.jobID]; ok && state.Completed {
			continue
		}
		m.resolveLocked(res.jobID, res.outcome)
	}
}

// PostOffer validates and registers a provider offer, or attempts
// preemption if job_id already has a matched state.
func (m *Market) PostOffer(offer types.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	if offer.Units == 0 {
		return fmt.Errorf("%w: zero units", ErrInvalidWorkload)
	}
	if offer.FeePct > 100 {
		return fmt.Errorf("%w: fee_pct out of range", ErrInvalidWorkload)
	}
	if offer.ProviderBond < MinBond {
		return fmt.Errorf("%w: provider_bond below minimum", ErrInvalidWorkload)
	}
	if offer.ConsumerBond < MinBond {
		return fmt.Errorf("%w: consumer_bond below minimum", ErrInvalidWorkload)
	}

	if existing, ok := m.jobs[offer.JobID]; ok {
		curReputation := m.scheduler.reputationOf(existing.Provider)
		newScore := m.scheduler.providerScore(offer.Provider, offer.Reputation)
		curScore := m.scheduler.providerScore(existing.Provider, curReputation)
		if offer.Reputation > curReputation && newScore > curScore {
			existing.Provider = offer.Provider
			existing.ProviderCapability = offer.Capability
			existing.ProviderBond = offer.ProviderBond
			existing.PricePerUnit = offer.PricePerUnit
			existing.FeePct = offer.FeePct
			m.scheduler.setReputation(offer.Provider, offer.Reputation)
			return nil
		}
		return ErrPreemptionRejected
	}

	price := offer.PricePerUnit
	if price == 0 {
		price = m.scheduler.priceBoardMedian()
	} else {
		m.scheduler.recordIndustrialPrice(price)
	}
	offer.PricePerUnit = price
	m.offers[offer.JobID] = offer
	m.scheduler.setReputation(offer.Provider, offer.Reputation)
	return nil
}

// SubmitJob consumes the offer of matching id and admits the job.
func (m *Market) SubmitJob(job types.Job, nowMs uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	if _, seen := m.seenJobs[job.JobID]; seen {
		return fmt.Errorf("%w: job id reused", ErrInvalidWorkload)
	}
	offer, ok := m.offers[job.JobID]
	if !ok {
		return ErrJobNotFound
	}
	if len(job.Workloads) != len(job.Slices) {
		return fmt.Errorf("%w: workloads/slices length mismatch", ErrInvalidWorkload)
	}
	if job.ConsumerBond < m.params.MinConsumerBond {
		return fmt.Errorf("%w: consumer_bond below minimum", ErrInvalidWorkload)
	}
	if !offer.Capability.Satisfies(job.Capability) {
		return ErrCapability
	}

	var demandUnits uint64
	for _, w := range job.Workloads {
		demandUnits += w.Units()
	}

	key := demandKey(job.Buyer, offer.Provider)
	if m.demand[key]+demandUnits > m.params.AvailableShards {
		return ErrCapacity
	}

	fairshareCap := m.params.AvailableShards * m.params.FairshareGlobalMaxPpm / 1_000_000
	if m.demand[key]+demandUnits > fairshareCap {
		return ErrFairShare
	}

	bucket := m.bucketFor(key)
	m.refillBucket(bucket)
	if bucket.tokens < float64(demandUnits) {
		return ErrBurstExhausted
	}
	bucket.tokens -= float64(demandUnits)

	expectedMs := demandUnits * 1 // one ms per unit
	state := &types.JobState{
		Job:                job,
		Provider:           offer.Provider,
		ProviderCapability: offer.Capability,
		ProviderBond:       offer.ProviderBond,
		PricePerUnit:       offer.PricePerUnit,
		FeePct:             offer.FeePct,
		StartedAtMs:        nowMs,
		ExpectedDurationMs: expectedMs,
	}
	m.jobs[job.JobID] = state
	m.seenJobs[job.JobID] = struct{}{}
	m.demand[key] += demandUnits
	delete(m.offers, job.JobID)

	m.scheduler.startJobWithExpected(job.JobID, offer.Provider, expectedMs)
	m.settlement.trackSLA(job.JobID, job.Deadline, key, demandUnits)
	return nil
}

func (m *Market) bucketFor(key string) *burstBucket {
	b, ok := m.buckets[key]
	if !ok {
		b = &burstBucket{tokens: float64(m.params.BurstBucketCapUnits), lastTickS: m.nowS()}
		m.buckets[key] = b
	}
	return b
}

func (m *Market) refillBucket(b *burstBucket) {
	now := m.nowS()
	elapsed := now - b.lastTickS
	if elapsed <= 0 {
		return
	}
	refill := elapsed * float64(m.params.BurstRefillRatePerSPpm) / 1_000_000
	b.tokens += refill
	if b.tokens > float64(m.params.BurstBucketCapUnits) {
		b.tokens = float64(m.params.BurstBucketCapUnits)
	}
	b.lastTickS = now
}

// SubmitSlice settles one executed slice of a job against its claimed
// execution receipt.
func (m *Market) SubmitSlice(jobID string, receipt types.ExecutionReceipt, nowMs uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	state, ok := m.jobs[jobID]
	if !ok {
		return 0, ErrJobNotFound
	}

	idx := state.PaidSlices
	if idx >= len(state.Job.Slices) {
		return 0, fmt.Errorf("%w: job already fully paid", ErrInvalidWorkload)
	}
	if uint64(nowMs) > state.Job.Deadline {
		m.settlement.markViolated(jobID)
		m.resolveLocked(jobID, types.SlaViolated)
		return 0, ErrDeadlineExceeded
	}
	accelerator := state.ProviderCapability.Accelerator
	if receipt.Reference != state.Job.Slices[idx] {
		m.scheduler.recordFailure(state.Provider)
		m.scheduler.recordAcceleratorFailure(state.Provider, accelerator)
		return 0, ErrReferenceMismatch
	}

	workload := state.Job.Workloads[idx]
	ok, err := m.runner.execute(jobID, idx, workload, receipt)
	if err != nil {
		m.scheduler.recordFailure(state.Provider)
		m.scheduler.recordAcceleratorFailure(state.Provider, accelerator)
		return 0, err
	}
	if !ok {
		m.scheduler.recordFailure(state.Provider)
		m.scheduler.recordAcceleratorFailure(state.Provider, accelerator)
		return 0, ErrInvalidProof
	}

	wantPayout := workload.Units() * state.PricePerUnit
	if receipt.Payout != wantPayout {
		m.scheduler.recordFailure(state.Provider)
		m.scheduler.recordAcceleratorFailure(state.Provider, accelerator)
		return 0, ErrPayoutMismatch
	}

	state.PaidSlices++
	if state.PaidSlices == len(state.Job.Slices) {
		state.Completed = true
	}
	return receipt.Payout, nil
}

// FinalizeJob resolves a completed job's SLA and emits its settlement
// receipt. Returns (providerRefund, consumerRefund, ok).
func (m *Market) FinalizeJob(jobID string, nowMs uint64) (uint64, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	state, ok := m.jobs[jobID]
	if !ok || !state.Completed {
		return 0, 0, false
	}

	outcome := types.SlaCompleted
	var slashed uint64
	actualMs := nowMs - state.StartedAtMs
	if actualMs > state.ExpectedDurationMs {
		outcome = types.SlaViolated
		slashed = state.ProviderBond * uint64(m.params.ViolationSlashPct) / 100
	}

	providerRefund := state.ProviderBond - slashed
	consumerRefund := state.Job.ConsumerBond

	m.emitOutcomeLocked(state, outcome, slashed)
	return providerRefund, consumerRefund, true
}

// CancelJob releases a job's resources and resolves its SLA according to
// the supplied reason.
func (m *Market) CancelJob(jobID string, reason types.CancelReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	state, ok := m.jobs[jobID]
	if !ok {
		return false
	}

	outcome := types.SlaCancelled
	var slashed uint64
	if reason == types.CancelProviderFault || reason == types.CancelTimeout {
		outcome = types.SlaViolated
		slashed = state.ProviderBond * uint64(m.params.ViolationSlashPct) / 100
	}
	m.emitOutcomeLocked(state, outcome, slashed)
	return true
}

// ExecuteJob drives every unsubmitted slice of jobID to completion on the
// provider's behalf: for each remaining slice it produces an
// ExecutionReceipt through WorkloadRunner — selecting the GPU backend with
// CPU fallback for Snark workloads, exactly as verifySnark does for a
// directly-submitted slice — then settles it through SubmitSlice, the same
// path an external provider's own worker loop would use. It returns the
// job's accumulated total payout across every slice it settled.
func (m *Market) ExecuteJob(jobID string, nowMs uint64) (uint64, error) {
	m.mu.RLock()
	state, ok := m.jobs[jobID]
	if !ok {
		m.mu.RUnlock()
		return 0, ErrJobNotFound
	}
	job := state.Job
	price := state.PricePerUnit
	provider := state.Provider
	accelerator := state.ProviderCapability.Accelerator
	m.mu.RUnlock()

	var totalPayout uint64
	for {
		m.mu.RLock()
		state, ok := m.jobs[jobID]
		var done bool
		var idx int
		if ok {
			idx = state.PaidSlices
			done = idx >= len(job.Workloads)
		}
		m.mu.RUnlock()
		if !ok {
			return totalPayout, ErrJobNotFound
		}
		if done {
			return totalPayout, nil
		}

		workload := job.Workloads[idx]
		payout := workload.Units() * price
		receipt, acceleratorFailed, err := m.runner.produce(job.Slices[idx], payout, workload)
		if err != nil {
			return totalPayout, err
		}
		if acceleratorFailed {
			m.scheduler.recordAcceleratorFailure(provider, accelerator)
		}

		got, err := m.SubmitSlice(jobID, receipt, nowMs)
		if err != nil {
			return totalPayout, err
		}
		totalPayout += got
	}
}

func (m *Market) emitOutcomeLocked(state *types.JobState, outcome types.SlaOutcome, slashed uint64) {
	key := demandKey(state.Job.Buyer, state.Provider)
	var units uint64
	for _, w := range state.Job.Workloads {
		units += w.Units()
	}
	if m.demand[key] > units {
		m.demand[key] -= units
	} else {
		m.demand[key] = 0
	}

	if outcome == types.SlaViolated {
		m.pendingSlashReceipts = append(m.pendingSlashReceipts, types.ComputeSlashReceipt{
			JobID:       state.Job.JobID,
			Provider:    state.Provider,
			Reason:      outcome,
			SlashedBond: slashed,
			BlockHeight: m.currentBlock,
		})
		m.scheduler.recordFailure(state.Provider)
		m.scheduler.recordAcceleratorFailure(state.Provider, state.ProviderCapability.Accelerator)
		if m.OnJobViolated != nil {
			m.OnJobViolated(state.Job.JobID, outcome)
		}
	} else {
		var paid uint64
		for i := 0; i < state.PaidSlices; i++ {
			paid += state.Job.Workloads[i].Units() * state.PricePerUnit
		}
		m.pendingReceipts = append(m.pendingReceipts, types.ComputeReceipt{
			JobID:        state.Job.JobID,
			Provider:     state.Provider,
			ComputeUnits: uint64(state.PaidSlices),
			Payment:      paid,
			BlockHeight:  m.currentBlock,
			Verified:     true,
			Blocktorch:   state.Blocktorch,
		})
		if m.OnJobCompleted != nil {
			m.OnJobCompleted(state.Job.JobID)
		}
	}

	delete(m.jobs, state.Job.JobID)
	m.settlement.remove(state.Job.JobID)
}

func (m *Market) resolveLocked(jobID string, outcome types.SlaOutcome) {
	state, ok := m.jobs[jobID]
	if !ok {
		return
	}
	var slashed uint64
	if outcome == types.SlaViolated {
		slashed = state.ProviderBond * uint64(m.params.ViolationSlashPct) / 100
	}
	m.emitOutcomeLocked(state, outcome, slashed)
}

// DrainReceipts returns every accumulated ComputeReceipt and clears the
// buffer. Must be called after SetCurrentBlock during block build.
func (m *Market) DrainReceipts() []types.ComputeReceipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pendingReceipts
	m.pendingReceipts = nil
	return out
}

// DrainComputeSlashReceipts returns every accumulated slash receipt for the
// current block and clears the buffer.
func (m *Market) DrainComputeSlashReceipts() []types.ComputeSlashReceipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pendingSlashReceipts
	m.pendingSlashReceipts = nil
	return out
}

// GetMarketStats returns a snapshot suitable for the compute_market.scheduler_stats
// RPC surface, matching the teacher's Get*Stats map[string]interface{} pattern.
func (m *Market) GetMarketStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"open_offers":       len(m.offers),
		"active_jobs":       len(m.jobs),
		"pending_receipts":  len(m.pendingReceipts),
		"pending_slashes":   len(m.pendingSlashReceipts),
		"current_block":     m.currentBlock,
		"available_shards":  m.params.AvailableShards,
		"effective_price":   m.scheduler.priceBoardMedian(),
	}
}
