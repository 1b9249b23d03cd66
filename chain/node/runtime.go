package node

import (
	"github.com/Ian-Reitsma/the-block/chain/economics"
	"github.com/Ian-Reitsma/the-block/chain/governance"
)

// RuntimeState holds the governance-controlled values that have no
// dedicated live subsystem of their own yet (badge lifecycle, jurisdiction,
// AI diagnostics, per-class scheduler weights, the three policy bitmasks).
// Node implements governance.RuntimeAdapter directly against these fields
// plus the compute.Market fields the other three hooks own, so every
// activated proposal has somewhere concrete to land instead of a
// NopRuntimeAdapter silently discarding it.
type RuntimeState struct {
	SnapshotIntervalSecs uint64
	RentRateCtPerByte    int64
	BadgeExpirySecs      uint64
	BadgeIssueUptime     uint64
	BadgeRevokeUptime    uint64
	JurisdictionRegion   int64
	AIDiagnosticsEnabled bool

	SchedulerWeights map[governance.ServiceClass]uint64

	RuntimeBackendPolicy    []string
	TransportProviderPolicy []string
	StorageEnginePolicy     []string
}

func newRuntimeState() *RuntimeState {
	return &RuntimeState{
		SchedulerWeights: make(map[governance.ServiceClass]uint64, 3),
	}
}

// SetSnapshotIntervalSecs implements governance.RuntimeAdapter.
func (n *Node) SetSnapshotIntervalSecs(v uint64) { n.Runtime.SnapshotIntervalSecs = v }

// SetMinCapacity implements governance.RuntimeAdapter, forwarding straight
// into the live compute.Market so admission control sees the new capacity
// on the very next offer/job, not just at the next block boundary.
func (n *Node) SetMinCapacity(v uint64) {
	p := n.Market.Params()
	p.AvailableShards = v
	n.Market.SetParams(p)
}

// SetFairShareCapPpm implements governance.RuntimeAdapter.
func (n *Node) SetFairShareCapPpm(v uint64) {
	p := n.Market.Params()
	p.FairshareGlobalMaxPpm = v
	n.Market.SetParams(p)
}

// SetBurstRefillRatePpm implements governance.RuntimeAdapter.
func (n *Node) SetBurstRefillRatePpm(v uint64) {
	p := n.Market.Params()
	p.BurstRefillRatePerSPpm = v
	n.Market.SetParams(p)
}

// SetRentRate implements governance.RuntimeAdapter.
func (n *Node) SetRentRate(v int64) { n.Runtime.RentRateCtPerByte = v }

// SetBadgeExpiry implements governance.RuntimeAdapter.
func (n *Node) SetBadgeExpiry(v uint64) { n.Runtime.BadgeExpirySecs = v }

// SetBadgeIssueUptime implements governance.RuntimeAdapter.
func (n *Node) SetBadgeIssueUptime(v uint64) { n.Runtime.BadgeIssueUptime = v }

// SetBadgeRevokeUptime implements governance.RuntimeAdapter.
func (n *Node) SetBadgeRevokeUptime(v uint64) { n.Runtime.BadgeRevokeUptime = v }

// SetJurisdictionRegion implements governance.RuntimeAdapter.
func (n *Node) SetJurisdictionRegion(v int64) { n.Runtime.JurisdictionRegion = v }

// SetAIDiagnosticsEnabled implements governance.RuntimeAdapter.
func (n *Node) SetAIDiagnosticsEnabled(v bool) { n.Runtime.AIDiagnosticsEnabled = v }

// SetSchedulerWeight implements governance.RuntimeAdapter.
func (n *Node) SetSchedulerWeight(class governance.ServiceClass, weight uint64) {
	n.Runtime.SchedulerWeights[class] = weight
}

// SetRuntimeBackendPolicy implements governance.RuntimeAdapter.
func (n *Node) SetRuntimeBackendPolicy(allowed []string) { n.Runtime.RuntimeBackendPolicy = allowed }

// SetTransportProviderPolicy implements governance.RuntimeAdapter.
func (n *Node) SetTransportProviderPolicy(allowed []string) {
	n.Runtime.TransportProviderPolicy = allowed
}

// SetStorageEnginePolicy implements governance.RuntimeAdapter.
func (n *Node) SetStorageEnginePolicy(allowed []string) { n.Runtime.StorageEnginePolicy = allowed }

var _ governance.RuntimeAdapter = (*Node)(nil)

// syncEconomicsFromGovernance rebuilds the economics engine's full
// parameter surface from the current governance snapshot and applies it.
// Unlike the three compute.Market hooks above, the economics control-law
// surface (inflation target, subsidy allocator, per-market multiplier
// knobs, ad/tariff drift) has no ApplyRuntimeFunc of its own in the
// registry — those keys only write into governance's tag-indexed Params
// snapshot — so the node pulls the whole surface across after every block's
// due proposals activate, rather than the economics engine finding out
// about a change key-by-key.
func (n *Node) syncEconomicsFromGovernance() {
	gp := n.Governance.Params()
	p := n.Economics.Params()

	p.InflationTargetBps = uint32(gp.Int64(governance.InflationTargetBps))
	p.InflationControllerGain = gp.Milli(governance.InflationControllerGain)
	p.MinAnnualIssuanceCt = uint64(gp.Int64(governance.MinAnnualIssuanceCt))
	p.MaxAnnualIssuanceCt = uint64(gp.Int64(governance.MaxAnnualIssuanceCt))

	p.SubsidyAllocatorAlpha = gp.Milli(governance.SubsidyAllocatorAlpha)
	p.SubsidyAllocatorBeta = gp.Milli(governance.SubsidyAllocatorBeta)
	p.SubsidyAllocatorTemperature = gp.Milli(governance.SubsidyAllocatorTemperature)
	p.SubsidyAllocatorDriftRate = gp.Milli(governance.SubsidyAllocatorDriftRate)

	byMarket := make(map[economics.Market]economics.MarketParams, len(p.ByMarket))
	for mkt, cur := range p.ByMarket {
		keys := marketParamKeys(mkt)
		if keys == nil {
			byMarket[mkt] = cur
			continue
		}
		byMarket[mkt] = economics.MarketParams{
			UtilTargetBps:      uint32(gp.Int64(keys.utilTarget)),
			MarginTargetBps:    uint32(gp.Int64(keys.marginTarget)),
			UtilResponsiveness: gp.Milli(keys.utilResponsiveness),
			CostResponsiveness: gp.Milli(keys.costResponsiveness),
			MultiplierFloor:    gp.Milli(keys.multiplierFloor),
			MultiplierCeiling:  gp.Milli(keys.multiplierCeiling),
		}
	}
	p.ByMarket = byMarket

	p.AdPlatformTakeTargetBps = uint32(gp.Int64(governance.AdPlatformTakeTargetBps))
	p.AdUserShareTargetBps = uint32(gp.Int64(governance.AdUserShareTargetBps))
	p.AdDriftRate = gp.Milli(governance.AdDriftRate)

	p.TariffPublicRevenueTargetBps = uint32(gp.Int64(governance.TariffPublicRevenueTargetBps))
	p.TariffDriftRate = gp.Milli(governance.TariffDriftRate)
	p.TariffMinBps = uint32(gp.Int64(governance.TariffMinBps))
	p.TariffMaxBps = uint32(gp.Int64(governance.TariffMaxBps))

	p.KillSwitchSubsidyReductionPct = uint8(gp.Int64(governance.KillSwitchSubsidyReduction))

	p.KalmanRShort = float64FromRaw(gp.Int64(governance.KalmanRShort))
	p.KalmanRMed = float64FromRaw(gp.Int64(governance.KalmanRMed))
	p.KalmanRLong = float64FromRaw(gp.Int64(governance.KalmanRLong))

	n.Economics.SetParams(p)
}

func float64FromRaw(v int64) float64 { return float64(v) }

// marketParamKeyset names the six ParamKeys that feed one market's
// economics.MarketParams, so syncEconomicsFromGovernance can loop over
// AllMarkets instead of repeating four near-identical blocks.
type marketParamKeyset struct {
	utilTarget         governance.ParamKey
	marginTarget       governance.ParamKey
	utilResponsiveness governance.ParamKey
	costResponsiveness governance.ParamKey
	multiplierFloor    governance.ParamKey
	multiplierCeiling  governance.ParamKey
}

func marketParamKeys(mkt economics.Market) *marketParamKeyset {
	switch mkt {
	case economics.MarketStorage:
		return &marketParamKeyset{
			governance.StorageUtilTargetBps, governance.StorageMarginTargetBps,
			governance.StorageUtilResponsiveness, governance.StorageCostResponsiveness,
			governance.StorageMultiplierFloor, governance.StorageMultiplierCeiling,
		}
	case economics.MarketCompute:
		return &marketParamKeyset{
			governance.ComputeUtilTargetBps, governance.ComputeMarginTargetBps,
			governance.ComputeUtilResponsiveness, governance.ComputeCostResponsiveness,
			governance.ComputeMultiplierFloor, governance.ComputeMultiplierCeiling,
		}
	case economics.MarketEnergy:
		return &marketParamKeyset{
			governance.EnergyUtilTargetBps, governance.EnergyMarginTargetBps,
			governance.EnergyUtilResponsiveness, governance.EnergyCostResponsiveness,
			governance.EnergyMultiplierFloor, governance.EnergyMultiplierCeiling,
		}
	case economics.MarketAd:
		return &marketParamKeyset{
			governance.AdUtilTargetBps, governance.AdMarginTargetBps,
			governance.AdUtilResponsiveness, governance.AdCostResponsiveness,
			governance.AdMultiplierFloor, governance.AdMultiplierCeiling,
		}
	default:
		return nil
	}
}
