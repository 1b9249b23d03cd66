package governance

import "fmt"

// ApplyFunc mutates a Params snapshot for the given new value, performing
// per-key validation (e.g. bitmask policies must fit the option mask). It
// returns an error if the value cannot be applied, which rolls the
// activating proposal back.
type ApplyFunc func(value int64, p *Params) error

// ApplyRuntimeFunc forwards an activated value to the host runtime
// adapter (set_snapshot_interval, set_scheduler_weight, ...). Returning an
// error also rolls the proposal back.
type ApplyRuntimeFunc func(value int64, rt RuntimeAdapter) error

// ParamSpec is the bounded, typed descriptor for one ParamKey.
type ParamSpec struct {
	Key            ParamKey
	Default        int64
	Min            int64
	Max            int64
	Unit           string
	TimelockEpochs uint64
	Apply          ApplyFunc
	ApplyRuntime   ApplyRuntimeFunc
}

// Validate checks v against the spec's bounds.
func (s ParamSpec) Validate(v int64) error {
	if v < s.Min || v > s.Max {
		return fmt.Errorf("governance: %s value %d out of range [%d,%d]", s.Key, v, s.Min, s.Max)
	}
	return nil
}

// identityApply returns an ApplyFunc that writes v straight into the
// Params snapshot's tag-indexed value array under key, with no further
// transformation. Every ParamKey uses this unless it also needs to update
// derived struct fields (none currently do; Params reads are all via
// Params.Int64/Params.Bool/Params.Ppm/Params.Milli against the array).
func identityApply(key ParamKey) ApplyFunc {
	return func(v int64, p *Params) error {
		return p.set(key, v)
	}
}

// Registry is the full set of ParamSpecs, keyed by ParamKey.
type Registry struct {
	specs map[ParamKey]ParamSpec
}

// SpecFor returns the spec registered for key, or false if none exists.
func (r *Registry) SpecFor(key ParamKey) (ParamSpec, bool) {
	s, ok := r.specs[key]
	return s, ok
}

// NewRegistry builds the full 104-entry ParamSpec registry with the
// default/min/max/unit values named in original_source/governance/src/params.rs.
// Every key's Apply writes its field on a Params snapshot; ApplyRuntime
// forwards to the RuntimeAdapter hook the original names for that key
// (set_snapshot_interval, set_scheduler_weight, ...) where one exists.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[ParamKey]ParamSpec, int(paramKeyCount))}

	reg := func(key ParamKey, def, min, max int64, unit string, apply ApplyFunc, runtime ApplyRuntimeFunc) {
		r.specs[key] = ParamSpec{
			Key: key, Default: def, Min: min, Max: max, Unit: unit,
			TimelockEpochs: timelockFor(key), Apply: apply, ApplyRuntime: runtime,
		}
	}

	reg(SnapshotIntervalSecs, 30, 5, 600, "seconds",
		identityApply(SnapshotIntervalSecs),
		func(v int64, rt RuntimeAdapter) error { rt.SetSnapshotIntervalSecs(uint64(v)); return nil })

	reg(ConsumerFeeComfortP90Microunits, 2500, 500, 25000, "microunits",
		identityApply(ConsumerFeeComfortP90Microunits), nil)
	reg(IndustrialAdmissionMinCapacity, 10, 1, 10000, "units",
		identityApply(IndustrialAdmissionMinCapacity),
		func(v int64, rt RuntimeAdapter) error { rt.SetMinCapacity(uint64(v)); return nil })
	reg(FairshareGlobalMax, 250000, 10000, 1000000, "ppm",
		identityApply(FairshareGlobalMax),
		func(v int64, rt RuntimeAdapter) error { rt.SetFairShareCapPpm(uint64(v)); return nil })
	reg(BurstRefillRatePerS, 500000, 0, 1000000, "ppm/s",
		identityApply(BurstRefillRatePerS),
		func(v int64, rt RuntimeAdapter) error { rt.SetBurstRefillRatePpm(uint64(v)); return nil })

	reg(BetaStorageSubCt, 100, 0, 100000, "ct",
		identityApply(BetaStorageSubCt), nil)
	reg(GammaReadSubCt, 100, 0, 100000, "ct",
		identityApply(GammaReadSubCt), nil)
	reg(KappaCpuSubCt, 100, 0, 100000, "ct",
		identityApply(KappaCpuSubCt), nil)
	reg(LambdaBytesOutSubCt, 100, 0, 100000, "ct",
		identityApply(LambdaBytesOutSubCt), nil)

	reg(ReadSubsidyViewerPercent, 20, 0, 100, "percent",
		identityApply(ReadSubsidyViewerPercent), nil)
	reg(ReadSubsidyHostPercent, 20, 0, 100, "percent",
		identityApply(ReadSubsidyHostPercent), nil)
	reg(ReadSubsidyHardwarePercent, 20, 0, 100, "percent",
		identityApply(ReadSubsidyHardwarePercent), nil)
	reg(ReadSubsidyVerifierPercent, 20, 0, 100, "percent",
		identityApply(ReadSubsidyVerifierPercent), nil)
	reg(ReadSubsidyLiquidityPercent, 20, 0, 100, "percent",
		identityApply(ReadSubsidyLiquidityPercent), nil)

	reg(TreasuryPercentCt, 500, 0, 10000, "bps",
		identityApply(TreasuryPercentCt), nil)
	reg(ProofRebateLimitCt, 1000, 0, 1000000, "ct",
		identityApply(ProofRebateLimitCt), nil)
	reg(RentRateCtPerByte, 1, 0, 10000, "ct/byte",
		identityApply(RentRateCtPerByte),
		func(v int64, rt RuntimeAdapter) error { rt.SetRentRate(v); return nil })
	reg(KillSwitchSubsidyReduction, 0, 0, 100, "percent",
		identityApply(KillSwitchSubsidyReduction), nil)

	reg(MinerRewardLogisticTarget, 5000, 0, 10000, "bps",
		identityApply(MinerRewardLogisticTarget), nil)
	reg(LogisticSlope, 1, 0, 1000, "ratio",
		identityApply(LogisticSlope), nil)
	reg(MinerHysteresis, 5, 0, 1000, "bps",
		identityApply(MinerHysteresis), nil)
	reg(HeuristicMuMilli, 500, 0, 1000, "milli",
		identityApply(HeuristicMuMilli), nil)

	reg(FeeFloorWindow, 256, 1, 4096, "blocks",
		identityApply(FeeFloorWindow), nil)
	reg(FeeFloorPercentile, 75, 0, 100, "percentile",
		identityApply(FeeFloorPercentile), nil)

	reg(BadgeExpirySecs, 30*86400, 3600, 365*86400, "seconds",
		identityApply(BadgeExpirySecs),
		func(v int64, rt RuntimeAdapter) error { rt.SetBadgeExpiry(uint64(v)); return nil })
	reg(BadgeIssueUptime, 99, 50, 100, "percent",
		identityApply(BadgeIssueUptime),
		func(v int64, rt RuntimeAdapter) error { rt.SetBadgeIssueUptime(uint64(v)); return nil })
	reg(BadgeRevokeUptime, 80, 0, 100, "percent",
		identityApply(BadgeRevokeUptime),
		func(v int64, rt RuntimeAdapter) error { rt.SetBadgeRevokeUptime(uint64(v)); return nil })

	reg(JurisdictionRegion, 0, -1000, 1000, "region_code",
		identityApply(JurisdictionRegion),
		func(v int64, rt RuntimeAdapter) error { rt.SetJurisdictionRegion(v); return nil })
	reg(AiDiagnosticsEnabled, 0, 0, 1, "bool",
		identityApply(AiDiagnosticsEnabled),
		func(v int64, rt RuntimeAdapter) error { rt.SetAIDiagnosticsEnabled(v != 0); return nil })

	reg(KalmanRShort, 1, 0, 1000, "variance",
		identityApply(KalmanRShort), nil)
	reg(KalmanRMed, 2, 0, 1000, "variance",
		identityApply(KalmanRMed), nil)
	reg(KalmanRLong, 4, 0, 1000, "variance",
		identityApply(KalmanRLong), nil)

	reg(SchedulerWeightGossip, 1, 0, 1000, "weight",
		identityApply(SchedulerWeightGossip),
		func(v int64, rt RuntimeAdapter) error { rt.SetSchedulerWeight(ServiceClassGossip, uint64(v)); return nil })
	reg(SchedulerWeightCompute, 1, 0, 1000, "weight",
		identityApply(SchedulerWeightCompute),
		func(v int64, rt RuntimeAdapter) error { rt.SetSchedulerWeight(ServiceClassCompute, uint64(v)); return nil })
	reg(SchedulerWeightStorage, 1, 0, 1000, "weight",
		identityApply(SchedulerWeightStorage),
		func(v int64, rt RuntimeAdapter) error { rt.SetSchedulerWeight(ServiceClassStorage, uint64(v)); return nil })

	reg(RuntimeBackend, DefaultRuntimeBackendPolicy, 1, RuntimeBackendMaskAll, "bitmask",
		identityApply(RuntimeBackend),
		func(v int64, rt RuntimeAdapter) error {
			rt.SetRuntimeBackendPolicy(DecodePolicy(v, RuntimeBackendOptions))
			return nil
		})
	reg(TransportProvider, DefaultTransportProviderPolicy, 1, TransportProviderMaskAll, "bitmask",
		identityApply(TransportProvider),
		func(v int64, rt RuntimeAdapter) error {
			rt.SetTransportProviderPolicy(DecodePolicy(v, TransportProviderOptions))
			return nil
		})
	reg(StorageEnginePolicy, DefaultStorageEnginePolicy, 1, StorageEngineMaskAll, "bitmask",
		identityApply(StorageEnginePolicy),
		func(v int64, rt RuntimeAdapter) error {
			rt.SetStorageEnginePolicy(DecodePolicy(v, StorageEngineOptions))
			return nil
		})

	reg(BridgeMinBond, 1000, 1, 10_000_000, "ct",
		identityApply(BridgeMinBond), nil)
	reg(BridgeDutyReward, 10, 0, 100_000, "ct",
		identityApply(BridgeDutyReward), nil)
	reg(BridgeFailureSlash, 20, 0, 100, "percent",
		identityApply(BridgeFailureSlash), nil)
	reg(BridgeChallengeSlash, 50, 0, 100, "percent",
		identityApply(BridgeChallengeSlash), nil)
	reg(BridgeDutyWindowSecs, 3600, 60, 86400, "seconds",
		identityApply(BridgeDutyWindowSecs), nil)
	reg(DualTokenSettlementEnabled, 0, 0, 1, "bool",
		identityApply(DualTokenSettlementEnabled), nil)

	reg(AdReadinessWindowSecs, 3600, 60, 86400, "seconds",
		identityApply(AdReadinessWindowSecs), nil)
	reg(AdReadinessMinUniqueViewers, 100, 0, 1_000_000, "count",
		identityApply(AdReadinessMinUniqueViewers), nil)
	reg(AdReadinessMinHostCount, 10, 0, 100_000, "count",
		identityApply(AdReadinessMinHostCount), nil)
	reg(AdReadinessMinProviderCount, 5, 0, 100_000, "count",
		identityApply(AdReadinessMinProviderCount), nil)
	reg(AdUsePercentileThresholds, 0, 0, 1, "bool",
		identityApply(AdUsePercentileThresholds), nil)
	reg(AdViewerPercentile, 50, 0, 100, "percentile",
		identityApply(AdViewerPercentile), nil)
	reg(AdHostPercentile, 50, 0, 100, "percentile",
		identityApply(AdHostPercentile), nil)
	reg(AdProviderPercentile, 50, 0, 100, "percentile",
		identityApply(AdProviderPercentile), nil)
	reg(AdEmaSmoothingPpm, 100000, 0, 1_000_000, "ppm",
		identityApply(AdEmaSmoothingPpm), nil)
	reg(AdFloorUniqueViewers, 0, 0, 1_000_000, "count",
		identityApply(AdFloorUniqueViewers), nil)
	reg(AdFloorHostCount, 0, 0, 100_000, "count",
		identityApply(AdFloorHostCount), nil)
	reg(AdFloorProviderCount, 0, 0, 100_000, "count",
		identityApply(AdFloorProviderCount), nil)
	reg(AdCapUniqueViewers, 1_000_000, 0, 10_000_000, "count",
		identityApply(AdCapUniqueViewers), nil)
	reg(AdCapHostCount, 100_000, 0, 1_000_000, "count",
		identityApply(AdCapHostCount), nil)
	reg(AdCapProviderCount, 100_000, 0, 1_000_000, "count",
		identityApply(AdCapProviderCount), nil)
	reg(AdPercentileBuckets, 10, 1, 1000, "count",
		identityApply(AdPercentileBuckets), nil)
	reg(AdRehearsalEnabled, 0, 0, 1, "bool",
		identityApply(AdRehearsalEnabled), nil)
	reg(AdRehearsalStabilityWindows, 3, 0, 100, "count",
		identityApply(AdRehearsalStabilityWindows), nil)

	reg(EnergyMinStake, 1000, 0, 10_000_000, "ct",
		identityApply(EnergyMinStake), nil)
	reg(EnergyOracleTimeoutBlocks, 100, 1, 100_000, "blocks",
		identityApply(EnergyOracleTimeoutBlocks), nil)
	reg(EnergySlashingRateBps, 500, 0, 10000, "bps",
		identityApply(EnergySlashingRateBps), nil)

	reg(InflationTargetBps, 500, 0, 10000, "bps",
		identityApply(InflationTargetBps), nil)
	reg(InflationControllerGain, 10, 0, 1000, "ppt (/1000)",
		identityApply(InflationControllerGain), nil)
	reg(MinAnnualIssuanceCt, 1_000_000, 0, 1_000_000_000_000, "ct",
		identityApply(MinAnnualIssuanceCt), nil)
	reg(MaxAnnualIssuanceCt, 100_000_000, 0, 1_000_000_000_000, "ct",
		identityApply(MaxAnnualIssuanceCt), nil)

	for _, mk := range []ParamKey{StorageUtilTargetBps, ComputeUtilTargetBps, EnergyUtilTargetBps, AdUtilTargetBps} {
		reg(mk, 7000, 0, 10000, "bps", identityApply(mk), nil)
	}
	for _, mk := range []ParamKey{StorageMarginTargetBps, ComputeMarginTargetBps, EnergyMarginTargetBps, AdMarginTargetBps} {
		reg(mk, 2000, 0, 10000, "bps", identityApply(mk), nil)
	}

	reg(SubsidyAllocatorAlpha, 1000, 0, 100000, "ppt (/1000)",
		identityApply(SubsidyAllocatorAlpha), nil)
	reg(SubsidyAllocatorBeta, 1000, 0, 100000, "ppt (/1000)",
		identityApply(SubsidyAllocatorBeta), nil)
	reg(SubsidyAllocatorTemperature, 1000, 1, 100000, "ppt (/1000)",
		identityApply(SubsidyAllocatorTemperature), nil)
	reg(SubsidyAllocatorDriftRate, 100, 0, 1000, "ppt (/1000)",
		identityApply(SubsidyAllocatorDriftRate), nil)

	for _, mk := range []ParamKey{StorageUtilResponsiveness, ComputeUtilResponsiveness, EnergyUtilResponsiveness, AdUtilResponsiveness} {
		reg(mk, 500, 0, 10000, "ppt (/1000)", identityApply(mk), nil)
	}
	for _, mk := range []ParamKey{StorageCostResponsiveness, ComputeCostResponsiveness, EnergyCostResponsiveness, AdCostResponsiveness} {
		reg(mk, 250, 0, 10000, "ppt (/1000)", identityApply(mk), nil)
	}
	for _, mk := range []ParamKey{StorageMultiplierFloor, ComputeMultiplierFloor, EnergyMultiplierFloor, AdMultiplierFloor} {
		reg(mk, 500, 0, 1000, "ppt (/1000)", identityApply(mk), nil)
	}
	for _, mk := range []ParamKey{StorageMultiplierCeiling, ComputeMultiplierCeiling, EnergyMultiplierCeiling, AdMultiplierCeiling} {
		reg(mk, 2000, 1000, 10000, "ppt (/1000)", identityApply(mk), nil)
	}

	reg(AdPlatformTakeTargetBps, 3000, 0, 10000, "bps",
		identityApply(AdPlatformTakeTargetBps), nil)
	reg(AdUserShareTargetBps, 7000, 0, 10000, "bps",
		identityApply(AdUserShareTargetBps), nil)
	reg(AdDriftRate, 50, 0, 1000, "ppt (/1000)",
		identityApply(AdDriftRate), nil)

	reg(TariffPublicRevenueTargetBps, 500, 0, 10000, "bps",
		identityApply(TariffPublicRevenueTargetBps), nil)
	reg(TariffDriftRate, 20, 0, 1000, "ppt (/1000)",
		identityApply(TariffDriftRate), nil)
	reg(TariffMinBps, 0, 0, 10000, "bps",
		identityApply(TariffMinBps), nil)
	reg(TariffMaxBps, 2000, 0, 10000, "bps",
		identityApply(TariffMaxBps), nil)

	return r
}
