package compute

import (
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func newTestMarket() *Market {
	clock := 0.0
	return NewMarket(func() float64 { return clock })
}

func basicWorkload() types.Workload {
	return types.Workload{Kind: types.WorkloadTranscode, InputSize: 10}
}

func TestSubmitJobHappyPath(t *testing.T) {
	m := newTestMarket()
	provider := addr(1)
	buyer := addr(2)

	offer := types.Offer{
		JobID:        "j1",
		Provider:     provider,
		ProviderBond: 100,
		ConsumerBond: 10,
		Units:        10,
		PricePerUnit: 5,
		Capability:   types.Capability{CPUCores: 4},
	}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}

	job := types.Job{
		JobID:        "j1",
		Buyer:        buyer,
		Slices:       []types.Hash{{1}},
		PricePerUnit: 5,
		ConsumerBond: 10,
		Workloads:    []types.Workload{basicWorkload()},
		Capability:   types.Capability{CPUCores: 2},
		Deadline:     1_000_000,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	payout, err := m.SubmitSlice("j1", types.ExecutionReceipt{
		Reference: job.Slices[0],
		Output:    job.Slices[0],
		Payout:    50, // 10 units * 5 price
	}, 1)
	if err != nil {
		t.Fatalf("submit slice: %v", err)
	}
	if payout != 50 {
		t.Fatalf("payout = %d, want 50", payout)
	}

	// expected duration equals demand units (10); finalize within that
	// window so the job resolves Completed rather than runtime-overage.
	providerRefund, consumerRefund, ok := m.FinalizeJob("j1", 5)
	if !ok {
		t.Fatal("finalize job: expected ok")
	}
	if providerRefund != 100 {
		t.Fatalf("provider refund = %d, want 100", providerRefund)
	}
	if consumerRefund != 10 {
		t.Fatalf("consumer refund = %d, want 10", consumerRefund)
	}

	receipts := m.DrainReceipts()
	if len(receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(receipts))
	}
	if receipts[0].Payment != 50 {
		t.Fatalf("receipt payment = %d, want 50", receipts[0].Payment)
	}
}

func TestPostOfferRejectsBelowMinBond(t *testing.T) {
	m := newTestMarket()
	provider := addr(1)

	zeroProviderBond := types.Offer{JobID: "j1", Provider: provider, Units: 1, PricePerUnit: 5, ProviderBond: 0, ConsumerBond: 1}
	if err := m.PostOffer(zeroProviderBond); err == nil {
		t.Fatal("expected provider bond of 0 to be rejected")
	}

	zeroConsumerBond := types.Offer{JobID: "j1", Provider: provider, Units: 1, PricePerUnit: 5, ProviderBond: 1, ConsumerBond: 0}
	if err := m.PostOffer(zeroConsumerBond); err == nil {
		t.Fatal("expected consumer bond of 0 to be rejected")
	}

	minimal := types.Offer{JobID: "j1", Provider: provider, Units: 1, PricePerUnit: 5, ProviderBond: MinBond, ConsumerBond: MinBond}
	if err := m.PostOffer(minimal); err != nil {
		t.Fatalf("expected bond of MinBond to be accepted, got %v", err)
	}
}

func TestExecuteJobDrivesSlicesAndReturnsTotalPayout(t *testing.T) {
	m := newTestMarket()
	provider := addr(1)
	buyer := addr(2)

	offer := types.Offer{
		JobID:        "j1",
		Provider:     provider,
		ProviderBond: 100,
		ConsumerBond: 10,
		Units:        20,
		PricePerUnit: 5,
		Capability:   types.Capability{CPUCores: 4},
	}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}

	job := types.Job{
		JobID:        "j1",
		Buyer:        buyer,
		Slices:       []types.Hash{{1}, {2}},
		PricePerUnit: 5,
		ConsumerBond: 10,
		Workloads:    []types.Workload{basicWorkload(), basicWorkload()},
		Capability:   types.Capability{CPUCores: 2},
		Deadline:     1_000_000,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	total, err := m.ExecuteJob("j1", 1)
	if err != nil {
		t.Fatalf("execute job: %v", err)
	}
	if total != 100 {
		t.Fatalf("total payout = %d, want 100 (2 slices * 10 units * 5 price)", total)
	}

	state := m.jobs["j1"]
	if !state.Completed {
		t.Fatal("expected job to be marked completed")
	}

	if _, err := m.ExecuteJob("j1", 2); err != nil {
		t.Fatalf("re-running ExecuteJob on a fully paid job should be a no-op, got %v", err)
	}
}

func TestExecuteJobSnarkWorkloadUsesGPUThenRecordsAcceleratorFailureOnFallback(t *testing.T) {
	m := newTestMarket()
	m.runner.SetGPUAvailable(false)
	provider := addr(1)

	offer := types.Offer{
		JobID:        "j1",
		Provider:     provider,
		ProviderBond: 10,
		ConsumerBond: 10,
		Units:        10,
		PricePerUnit: 1,
		Capability:   types.Capability{CPUCores: 4, Accelerator: "cuda"},
	}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}

	job := types.Job{
		JobID:        "j1",
		Slices:       []types.Hash{{1}},
		PricePerUnit: 1,
		ConsumerBond: 10,
		Workloads:    []types.Workload{{Kind: types.WorkloadSnark, InputSize: 10, ProgramHash: types.Hash{7}}},
		Capability:   types.Capability{Accelerator: "cuda"},
		Deadline:     1_000_000,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	total, err := m.ExecuteJob("j1", 1)
	if err != nil {
		t.Fatalf("execute job: %v", err)
	}
	if total != 10 {
		t.Fatalf("total payout = %d, want 10", total)
	}
	if got := m.scheduler.acceleratorFailureCount(provider, "cuda"); got != 1 {
		t.Fatalf("expected 1 accelerator failure recorded, got %d", got)
	}
}

func TestSubmitJobMissingOfferIsNotFound(t *testing.T) {
	m := newTestMarket()
	job := types.Job{JobID: "missing", Slices: []types.Hash{{1}}, Workloads: []types.Workload{basicWorkload()}}
	if err := m.SubmitJob(job, 0); err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestPreemption(t *testing.T) {
	m := newTestMarket()
	providerA := addr(1)
	providerB := addr(2)
	providerC := addr(3)

	offerA := types.Offer{JobID: "j1", Provider: providerA, Units: 1, PricePerUnit: 5, Reputation: 0, ProviderBond: 1, ConsumerBond: 1}
	if err := m.PostOffer(offerA); err != nil {
		t.Fatalf("post A: %v", err)
	}

	job := types.Job{
		JobID:        "j1",
		Slices:       []types.Hash{{1}},
		Workloads:    []types.Workload{basicWorkload()},
		PricePerUnit: 5,
		ConsumerBond: 1,
		Deadline:     1000,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	offerB := types.Offer{JobID: "j1", Provider: providerB, Units: 1, PricePerUnit: 5, Reputation: 10, ProviderBond: 1, ConsumerBond: 1}
	if err := m.PostOffer(offerB); err != nil {
		t.Fatalf("post B should preempt A: %v", err)
	}

	state := m.jobs["j1"]
	if state.Provider != providerB {
		t.Fatalf("expected provider B after preemption, got %v", state.Provider)
	}

	offerC := types.Offer{JobID: "j1", Provider: providerC, Units: 1, PricePerUnit: 5, Reputation: 5, ProviderBond: 1, ConsumerBond: 1}
	if err := m.PostOffer(offerC); err != ErrPreemptionRejected {
		t.Fatalf("expected preemption rejected, got %v", err)
	}
}

func TestCapacityAdmissionControl(t *testing.T) {
	m := newTestMarket()
	m.SetParams(Params{AvailableShards: 5, FairshareGlobalMaxPpm: 1_000_000, BurstBucketCapUnits: 1_000_000, BurstRefillRatePerSPpm: 0})

	provider := addr(1)
	offer := types.Offer{JobID: "j1", Provider: provider, Units: 10, PricePerUnit: 1, ProviderBond: 1, ConsumerBond: 1}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}

	job := types.Job{
		JobID:        "j1",
		Slices:       []types.Hash{{1}, {2}},
		Workloads:    []types.Workload{{Kind: types.WorkloadTranscode, InputSize: 10}, {Kind: types.WorkloadTranscode, InputSize: 10}},
		PricePerUnit: 1,
		ConsumerBond: 1,
		Deadline:     1000,
	}
	if err := m.SubmitJob(job, 0); err != ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestSLAViolationOnDeadlineExceeded(t *testing.T) {
	m := newTestMarket()
	provider := addr(1)
	offer := types.Offer{JobID: "j1", Provider: provider, Units: 1, PricePerUnit: 1, ProviderBond: 100, ConsumerBond: 1}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}
	job := types.Job{
		JobID:        "j1",
		Slices:       []types.Hash{{1}},
		Workloads:    []types.Workload{basicWorkload()},
		PricePerUnit: 1,
		ConsumerBond: 1,
		Deadline:     5,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	_, err := m.SubmitSlice("j1", types.ExecutionReceipt{Reference: job.Slices[0]}, 10)
	if err != ErrDeadlineExceeded {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}

	slashes := m.DrainComputeSlashReceipts()
	if len(slashes) != 1 {
		t.Fatalf("expected 1 slash receipt, got %d", len(slashes))
	}
}

func TestSubmitSliceRejectsOutputReferenceMismatch(t *testing.T) {
	m := newTestMarket()
	offer := types.Offer{JobID: "j1", Provider: addr(1), Units: 10, PricePerUnit: 5, ProviderBond: 1, ConsumerBond: 1}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}
	job := types.Job{
		JobID:        "j1",
		Slices:       []types.Hash{{1}},
		Workloads:    []types.Workload{basicWorkload()},
		PricePerUnit: 5,
		ConsumerBond: 1,
		Deadline:     1_000_000,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	_, err := m.SubmitSlice("j1", types.ExecutionReceipt{
		Reference: job.Slices[0],
		Output:    types.Hash{9},
		Payout:    50,
	}, 1)
	if err != ErrInvalidProof {
		t.Fatalf("expected ErrInvalidProof on output mismatch, got %v", err)
	}
}

func TestCompletedJobSurvivesDeadlineSweepUntilFinalize(t *testing.T) {
	clock := 0.0
	m := NewMarket(func() float64 { return clock })

	offer := types.Offer{JobID: "j1", Provider: addr(1), Units: 10, PricePerUnit: 5, ProviderBond: 100, ConsumerBond: 10}
	if err := m.PostOffer(offer); err != nil {
		t.Fatalf("post offer: %v", err)
	}
	job := types.Job{
		JobID:        "j1",
		Buyer:        addr(2),
		Slices:       []types.Hash{{1}},
		Workloads:    []types.Workload{basicWorkload()},
		PricePerUnit: 5,
		ConsumerBond: 10,
		Deadline:     5,
	}
	if err := m.SubmitJob(job, 0); err != nil {
		t.Fatalf("submit job: %v", err)
	}
	if _, err := m.SubmitSlice("j1", types.ExecutionReceipt{
		Reference: job.Slices[0],
		Output:    job.Slices[0],
		Payout:    50,
	}, 1); err != nil {
		t.Fatalf("submit slice: %v", err)
	}

	// Advance past the deadline and trigger the sweep through another
	// market-mutating op: the completed job must be left for finalize,
	// not force-violated.
	clock = 10.0
	if err := m.PostOffer(types.Offer{JobID: "j2", Provider: addr(3), Units: 1, PricePerUnit: 1, ProviderBond: 1, ConsumerBond: 1}); err != nil {
		t.Fatalf("post sweep-trigger offer: %v", err)
	}
	if slashes := m.DrainComputeSlashReceipts(); len(slashes) != 0 {
		t.Fatalf("completed job was slashed by the sweep: %+v", slashes)
	}

	providerRefund, consumerRefund, ok := m.FinalizeJob("j1", 5)
	if !ok {
		t.Fatal("finalize job: expected ok after sweep")
	}
	if providerRefund != 100 || consumerRefund != 10 {
		t.Fatalf("refunds = (%d, %d), want (100, 10)", providerRefund, consumerRefund)
	}
	receipts := m.DrainReceipts()
	if len(receipts) != 1 || !receipts[0].Verified {
		t.Fatalf("expected one verified receipt, got %+v", receipts)
	}
}
