package governance

// ServiceClass is the scheduler class whose relative weight governance can
// retune at runtime.
type ServiceClass uint8

const (
	ServiceClassGossip ServiceClass = iota
	ServiceClassCompute
	ServiceClassStorage
)

func (c ServiceClass) String() string {
	switch c {
	case ServiceClassGossip:
		return "gossip"
	case ServiceClassCompute:
		return "compute"
	case ServiceClassStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Runtime wraps the live RuntimeAdapter a Gov applies activated parameter
// changes through. It exists as its own type, rather than Gov holding a
// bare RuntimeAdapter, so a host can swap the adapter (e.g. across a
// config reload) without reconstructing Gov.
type Runtime struct {
	Adapter RuntimeAdapter

	params *Params
}

// setCurrentParams records the Params instance governance last applied
// through this runtime, so the Runtime's view stays in sync with Gov's.
func (r *Runtime) setCurrentParams(p *Params) {
	r.params = p
}

// NewRuntime wraps adapter for use with NewGov.
func NewRuntime(adapter RuntimeAdapter) *Runtime {
	return &Runtime{Adapter: adapter}
}

// RuntimeAdapter is the host hook set a running node implements so that
// activated parameter changes reach the subsystems that actually care
// about them (the compute market scheduler, the overlay transport, the
// storage engine). Values keep the same units the registry stores them in
// (ppm fixed-point for rates, raw seconds/percent/counts otherwise) so the
// adapter does the unit conversion its own subsystem needs, not governance.
type RuntimeAdapter interface {
	SetSnapshotIntervalSecs(v uint64)
	SetMinCapacity(v uint64)
	SetFairShareCapPpm(v uint64)
	SetBurstRefillRatePpm(v uint64)
	SetRentRate(v int64)
	SetBadgeExpiry(v uint64)
	SetBadgeIssueUptime(v uint64)
	SetBadgeRevokeUptime(v uint64)
	SetJurisdictionRegion(v int64)
	SetAIDiagnosticsEnabled(v bool)
	SetSchedulerWeight(class ServiceClass, weight uint64)
	SetRuntimeBackendPolicy(allowed []string)
	SetTransportProviderPolicy(allowed []string)
	SetStorageEnginePolicy(allowed []string)
}

// NopRuntimeAdapter is an embeddable zero-value RuntimeAdapter: hosts that
// only care about a handful of keys embed this and override the rest,
// instead of writing all fourteen methods by hand.
type NopRuntimeAdapter struct{}

func (NopRuntimeAdapter) SetSnapshotIntervalSecs(uint64)          {}
func (NopRuntimeAdapter) SetMinCapacity(uint64)                  {}
func (NopRuntimeAdapter) SetFairShareCapPpm(uint64)              {}
func (NopRuntimeAdapter) SetBurstRefillRatePpm(uint64)           {}
func (NopRuntimeAdapter) SetRentRate(int64)                      {}
func (NopRuntimeAdapter) SetBadgeExpiry(uint64)                  {}
func (NopRuntimeAdapter) SetBadgeIssueUptime(uint64)             {}
func (NopRuntimeAdapter) SetBadgeRevokeUptime(uint64)            {}
func (NopRuntimeAdapter) SetJurisdictionRegion(int64)            {}
func (NopRuntimeAdapter) SetAIDiagnosticsEnabled(bool)           {}
func (NopRuntimeAdapter) SetSchedulerWeight(ServiceClass, uint64) {}
func (NopRuntimeAdapter) SetRuntimeBackendPolicy([]string)       {}
func (NopRuntimeAdapter) SetTransportProviderPolicy([]string)    {}
func (NopRuntimeAdapter) SetStorageEnginePolicy([]string)        {}
