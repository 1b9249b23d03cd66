// Package governance implements the parameter plane: a tag-stable,
// bounded parameter registry mutated only through a proposal → vote →
// timelock → activation pipeline, plus a parallel release-gating track.
// Proposal/vote struct shape and event-handler wiring are adapted from the
// teacher's chain/governance/governance.go; the exact ParamKey tag table,
// ParamSpec bounds, and policy bitmask algorithm are grounded on
// original_source/governance/src/{codec,params}.rs.
package governance

// ParamKey is the tag-stable parameter enumeration. Tags must never be
// renumbered; new keys are appended.
type ParamKey uint8

const (
	SnapshotIntervalSecs ParamKey = iota // 0
	ConsumerFeeComfortP90Microunits
	IndustrialAdmissionMinCapacity
	FairshareGlobalMax
	BurstRefillRatePerS
	BetaStorageSubCt // 5
	GammaReadSubCt
	KappaCpuSubCt
	LambdaBytesOutSubCt
	ReadSubsidyViewerPercent
	ReadSubsidyHostPercent // 10
	ReadSubsidyHardwarePercent
	ReadSubsidyVerifierPercent
	ReadSubsidyLiquidityPercent
	TreasuryPercentCt
	ProofRebateLimitCt // 15
	RentRateCtPerByte
	KillSwitchSubsidyReduction
	MinerRewardLogisticTarget
	LogisticSlope
	MinerHysteresis // 20
	HeuristicMuMilli
	FeeFloorWindow
	FeeFloorPercentile
	BadgeExpirySecs
	BadgeIssueUptime // 25
	BadgeRevokeUptime
	JurisdictionRegion
	AiDiagnosticsEnabled
	KalmanRShort
	KalmanRMed // 30
	KalmanRLong
	SchedulerWeightGossip
	SchedulerWeightCompute
	SchedulerWeightStorage
	RuntimeBackend // 35
	TransportProvider
	StorageEnginePolicy
	BridgeMinBond
	BridgeDutyReward
	BridgeFailureSlash // 40
	BridgeChallengeSlash
	BridgeDutyWindowSecs
	DualTokenSettlementEnabled
	AdReadinessWindowSecs
	AdReadinessMinUniqueViewers // 45
	AdReadinessMinHostCount
	AdReadinessMinProviderCount
	AdUsePercentileThresholds
	AdViewerPercentile
	AdHostPercentile // 50
	AdProviderPercentile
	AdEmaSmoothingPpm
	AdFloorUniqueViewers
	AdFloorHostCount
	AdFloorProviderCount // 55
	AdCapUniqueViewers
	AdCapHostCount
	AdCapProviderCount
	AdPercentileBuckets
	AdRehearsalEnabled // 60
	AdRehearsalStabilityWindows
	EnergyMinStake
	EnergyOracleTimeoutBlocks
	EnergySlashingRateBps
	InflationTargetBps // 65
	InflationControllerGain
	MinAnnualIssuanceCt
	MaxAnnualIssuanceCt
	StorageUtilTargetBps
	StorageMarginTargetBps // 70
	ComputeUtilTargetBps
	ComputeMarginTargetBps
	EnergyUtilTargetBps
	EnergyMarginTargetBps
	AdUtilTargetBps // 75
	AdMarginTargetBps
	SubsidyAllocatorAlpha
	SubsidyAllocatorBeta
	SubsidyAllocatorTemperature
	SubsidyAllocatorDriftRate // 80
	StorageUtilResponsiveness
	StorageCostResponsiveness
	StorageMultiplierFloor
	StorageMultiplierCeiling
	ComputeUtilResponsiveness // 85
	ComputeCostResponsiveness
	ComputeMultiplierFloor
	ComputeMultiplierCeiling
	EnergyUtilResponsiveness
	EnergyCostResponsiveness // 90
	EnergyMultiplierFloor
	EnergyMultiplierCeiling
	AdUtilResponsiveness
	AdCostResponsiveness
	AdMultiplierFloor // 95
	AdMultiplierCeiling
	AdPlatformTakeTargetBps
	AdUserShareTargetBps
	AdDriftRate
	TariffPublicRevenueTargetBps // 100
	TariffDriftRate
	TariffMinBps
	TariffMaxBps // 103

	paramKeyCount // sentinel, not a real key
)

// Tag returns the key's stable wire tag (identical to its enum value —
// the enum is declared in tag order so this is the identity function, kept
// named and exported for callers that want to be explicit about crossing
// the wire boundary).
func (k ParamKey) Tag() uint8 { return uint8(k) }

// ParamKeyFromTag resolves a wire tag back to a ParamKey, rejecting
// unrecognized tags so forward-incompatible wire documents fail closed.
func ParamKeyFromTag(tag uint8) (ParamKey, bool) {
	if ParamKey(tag) >= paramKeyCount {
		return 0, false
	}
	return ParamKey(tag), true
}

// names holds the debug/RPC-facing name for every key, in tag order.
var names = [...]string{
	"snapshot_interval_secs", "consumer_fee_comfort_p90_microunits",
	"industrial_admission_min_capacity", "fairshare_global_max", "burst_refill_rate_per_s",
	"beta_storage_sub_ct", "gamma_read_sub_ct", "kappa_cpu_sub_ct", "lambda_bytes_out_sub_ct",
	"read_subsidy_viewer_percent", "read_subsidy_host_percent", "read_subsidy_hardware_percent",
	"read_subsidy_verifier_percent", "read_subsidy_liquidity_percent", "treasury_percent_ct",
	"proof_rebate_limit_ct", "rent_rate_ct_per_byte", "kill_switch_subsidy_reduction",
	"miner_reward_logistic_target", "logistic_slope", "miner_hysteresis", "heuristic_mu_milli",
	"fee_floor_window", "fee_floor_percentile", "badge_expiry_secs", "badge_issue_uptime",
	"badge_revoke_uptime", "jurisdiction_region", "ai_diagnostics_enabled", "kalman_r_short",
	"kalman_r_med", "kalman_r_long", "scheduler_weight_gossip", "scheduler_weight_compute",
	"scheduler_weight_storage", "runtime_backend", "transport_provider", "storage_engine_policy",
	"bridge_min_bond", "bridge_duty_reward", "bridge_failure_slash", "bridge_challenge_slash",
	"bridge_duty_window_secs", "dual_token_settlement_enabled", "ad_readiness_window_secs",
	"ad_readiness_min_unique_viewers", "ad_readiness_min_host_count", "ad_readiness_min_provider_count",
	"ad_use_percentile_thresholds", "ad_viewer_percentile", "ad_host_percentile", "ad_provider_percentile",
	"ad_ema_smoothing_ppm", "ad_floor_unique_viewers", "ad_floor_host_count", "ad_floor_provider_count",
	"ad_cap_unique_viewers", "ad_cap_host_count", "ad_cap_provider_count", "ad_percentile_buckets",
	"ad_rehearsal_enabled", "ad_rehearsal_stability_windows", "energy_min_stake",
	"energy_oracle_timeout_blocks", "energy_slashing_rate_bps", "inflation_target_bps",
	"inflation_controller_gain", "min_annual_issuance_ct", "max_annual_issuance_ct",
	"storage_util_target_bps", "storage_margin_target_bps", "compute_util_target_bps",
	"compute_margin_target_bps", "energy_util_target_bps", "energy_margin_target_bps",
	"ad_util_target_bps", "ad_margin_target_bps", "subsidy_allocator_alpha", "subsidy_allocator_beta",
	"subsidy_allocator_temperature", "subsidy_allocator_drift_rate", "storage_util_responsiveness",
	"storage_cost_responsiveness", "storage_multiplier_floor", "storage_multiplier_ceiling",
	"compute_util_responsiveness", "compute_cost_responsiveness", "compute_multiplier_floor",
	"compute_multiplier_ceiling", "energy_util_responsiveness", "energy_cost_responsiveness",
	"energy_multiplier_floor", "energy_multiplier_ceiling", "ad_util_responsiveness",
	"ad_cost_responsiveness", "ad_multiplier_floor", "ad_multiplier_ceiling",
	"ad_platform_take_target_bps", "ad_user_share_target_bps", "ad_drift_rate",
	"tariff_public_revenue_target_bps", "tariff_drift_rate", "tariff_min_bps", "tariff_max_bps",
}

func (k ParamKey) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// KillSwitchTimelockEpochs is the fixed, longer timelock applied to the
// kill-switch key (~12h at 4s blocks), overriding the default 2-epoch
// timelock every other key carries.
const KillSwitchTimelockEpochs uint64 = 10_800

// defaultTimelockEpochs is the timelock every key carries unless
// overridden (KillSwitchSubsidyReduction is the one override).
const defaultTimelockEpochs uint64 = 2

func timelockFor(key ParamKey) uint64 {
	if key == KillSwitchSubsidyReduction {
		return KillSwitchTimelockEpochs
	}
	return defaultTimelockEpochs
}
