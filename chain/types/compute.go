package types

// Capability describes what a provider's hardware can execute.
type Capability struct {
	CPUCores    uint32
	GPU         bool
	Frameworks  []string
	Accelerator string // "", "cuda", "rocm"
}

// Satisfies reports whether the provider capability p satisfies the job's
// required capability req.
func (p Capability) Satisfies(req Capability) bool {
	if p.CPUCores < req.CPUCores {
		return false
	}
	if req.GPU && !p.GPU {
		return false
	}
	if req.Accelerator != "" && p.Accelerator != req.Accelerator {
		return false
	}
	for _, want := range req.Frameworks {
		found := false
		for _, have := range p.Frameworks {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Offer is a stake-backed provider offer for a job id.
type Offer struct {
	JobID                string
	Provider              Address
	ProviderBond          uint64
	ConsumerBond          uint64
	Units                 uint64
	PricePerUnit          uint64
	FeePct                uint8
	Capability            Capability
	Reputation            int64
	ReputationMultiplier  float64
}

// WorkloadKind is the sum type of executable workload shapes.
type WorkloadKind uint8

const (
	WorkloadTranscode WorkloadKind = iota
	WorkloadInference
	WorkloadSnark
)

// Workload is one slice's unit of work.
type Workload struct {
	Kind        WorkloadKind
	InputRef    string
	ProgramHash Hash // WASM program hash, used for Snark verification
	InputSize   uint64
	ArtifactSize uint64 // for Inference: artifact+input combine into cost
}

// Units is the normalized compute-unit cost of the workload.
func (w Workload) Units() uint64 {
	switch w.Kind {
	case WorkloadInference:
		return w.InputSize + w.ArtifactSize
	default:
		return w.InputSize
	}
}

// Job is a consumer's request to run N slices against a matched offer.
type Job struct {
	JobID        string
	Buyer        Address
	Slices       []Hash
	PricePerUnit uint64
	ConsumerBond uint64
	Workloads    []Workload
	Capability   Capability
	Deadline     uint64 // absolute wall-clock, milliseconds
	Priority     uint8
}

// BlocktorchMetadata carries ML-specific benchmark provenance for a receipt.
type BlocktorchMetadata struct {
	KernelDigest        Hash
	DescriptorDigest     Hash
	OutputDigest         Hash
	BenchmarkCommit      *Hash
	TensorProfileEpoch   *uint64
	ProofLatencyMs       uint64
}

// JobState is the scheduler's internal view of a matched job.
type JobState struct {
	Job                  Job
	Provider             Address
	ProviderCapability   Capability
	ProviderBond         uint64
	PricePerUnit         uint64
	FeePct               uint8
	PaidSlices           int
	Completed            bool
	Blocktorch           *BlocktorchMetadata
	ProofLatencySumMs    uint64
	ProofLatencyCount    uint64
	StartedAtMs          uint64
	ExpectedDurationMs   uint64
}

// ExecutionReceipt is the provider's claim of having executed one slice.
type ExecutionReceipt struct {
	Reference Hash
	Output    Hash
	Payout    uint64
	Proof     []byte // populated, and checked, only for WorkloadSnark
}

// ComputeReceipt is embedded into a sealed block on successful settlement.
type ComputeReceipt struct {
	JobID            string
	Provider         Address
	ComputeUnits     uint64
	Payment          uint64
	BlockHeight      uint64
	Verified         bool
	Blocktorch       *BlocktorchMetadata
	ProviderSignature []byte
	SignatureNonce   uint64
}

// SlaOutcome is the sum type of SLA resolutions.
type SlaOutcome uint8

const (
	SlaCompleted SlaOutcome = iota
	SlaCancelled
	SlaViolated
)

// CancelReason is the sum type of job cancellation reasons.
type CancelReason uint8

const (
	CancelBuyerRequested CancelReason = iota
	CancelProviderFault
	CancelTimeout
)

// ComputeSlashReceipt is embedded into a sealed block when an SLA violation
// burns part of a provider's bond.
type ComputeSlashReceipt struct {
	JobID       string
	Provider    Address
	Reason      SlaOutcome
	SlashedBond uint64
	BlockHeight uint64
}
