package economics

import (
	"math"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// layer1InflationLocked implements the proportional inflation controller:
// next_issuance_per_block = clamp(prev + g*(target_bps - actual_bps),
// min_annual/blocks_per_year, max_annual/blocks_per_year).
// Callers must hold e.mu.
func (e *Engine) layer1InflationLocked() {
	if e.supply == 0 {
		return
	}
	blocksPerYear := float64(365 * e.params.BlocksPerDay)
	actualAnnualIssuance := float64(e.blockRewardPerBlock) * blocksPerYear
	actualBps := actualAnnualIssuance / float64(e.supply) * 10_000

	targetBps := float64(e.params.InflationTargetBps)
	gain := e.params.InflationControllerGain

	prev := float64(e.blockRewardPerBlock)
	next := prev + gain*(targetBps-actualBps)

	minPerBlock := float64(e.params.MinAnnualIssuanceCt) / blocksPerYear
	maxPerBlock := float64(e.params.MaxAnnualIssuanceCt) / blocksPerYear
	next = clampF(next, minPerBlock, maxPerBlock)

	e.prevAnnualIssuanceBlock = e.blockRewardPerBlock
	e.blockRewardPerBlock = uint64(math.Round(next))
	e.rollingInflation = actualBps / 10_000
}

// layer2SubsidyAllocatorLocked computes each market's softmax score from
// utilization/margin deltas, smoothing the previous snapshot by
// drift_rate so shares move gradually rather than jumping block to block.
// Callers must hold e.mu.
func (e *Engine) layer2SubsidyAllocatorLocked() {
	alpha := e.params.SubsidyAllocatorAlpha
	beta := e.params.SubsidyAllocatorBeta
	temp := e.params.SubsidyAllocatorTemperature
	if temp <= 0 {
		temp = 1
	}
	drift := e.params.SubsidyAllocatorDriftRate

	scores := make(map[Market]float64, 4)
	var maxScore float64 = math.Inf(-1)
	for _, m := range AllMarkets {
		mp := e.params.ByMarket[m]
		metric := e.metrics[m]
		score := alpha*(float64(mp.UtilTargetBps)/10_000-metric.Utilization) +
			beta*(float64(mp.MarginTargetBps)/10_000-metric.ProviderMargin)
		scores[m] = score / temp
		if scores[m] > maxScore {
			maxScore = scores[m]
		}
	}

	var sumExp float64
	exp := make(map[Market]float64, 4)
	for _, m := range AllMarkets {
		exp[m] = math.Exp(scores[m] - maxScore)
		sumExp += exp[m]
	}

	target := make(map[Market]float64, 4)
	for _, m := range AllMarkets {
		share := 0.0
		if sumExp > 0 {
			share = exp[m] / sumExp
		}
		target[m] = share * 10_000
	}

	current := map[Market]float64{
		MarketStorage: float64(e.subsidy.StorageShareBps),
		MarketCompute: float64(e.subsidy.ComputeShareBps),
		MarketEnergy:  float64(e.subsidy.EnergyShareBps),
		MarketAd:      float64(e.subsidy.AdShareBps),
	}
	smoothed := make(map[Market]float64, 4)
	var total float64
	for _, m := range AllMarkets {
		v := current[m] + drift*(target[m]-current[m])
		if v < 0 {
			v = 0
		}
		smoothed[m] = v
		total += v
	}
	if total > 10_000 {
		scale := 10_000 / total
		for _, m := range AllMarkets {
			smoothed[m] *= scale
		}
	}

	if e.rollingInflation > 0.02 {
		for _, m := range AllMarkets {
			smoothed[m] *= 0.95
		}
	}
	if pct := e.params.KillSwitchSubsidyReductionPct; pct > 0 {
		factor := 1 - float64(pct)/100
		for _, m := range AllMarkets {
			smoothed[m] *= factor
		}
		if e.OnKillSwitch != nil {
			e.OnKillSwitch(pct)
		}
	}

	e.subsidy = types.SubsidySnapshotFromBps(
		uint32(math.Round(smoothed[MarketStorage])),
		uint32(math.Round(smoothed[MarketCompute])),
		uint32(math.Round(smoothed[MarketEnergy])),
		uint32(math.Round(smoothed[MarketAd])),
	)
}

// layer3MarketMultipliersLocked recomputes each market's reward multiplier
// from the observed utilization and cost deviations. Callers must hold e.mu.
func (e *Engine) layer3MarketMultipliersLocked() {
	for _, m := range AllMarkets {
		mp := e.params.ByMarket[m]
		metric := e.metrics[m]
		utilDelta := metric.Utilization - float64(mp.UtilTargetBps)/10_000
		costTarget := float64(mp.MarginTargetBps) / 10_000
		costDelta := metric.AverageCostBlock - costTarget

		raw := 1 + mp.UtilResponsiveness*utilDelta + mp.CostResponsiveness*costDelta
		e.multipliers[m] = clampF(raw, mp.MultiplierFloor, mp.MultiplierCeiling)
	}
}

// layer4TariffAndAdDriftLocked drifts the tariff rate toward its target
// share of non-KYC volume, and the ad platform-take/user-share toward
// their configured targets. Callers must hold e.mu.
func (e *Engine) layer4TariffAndAdDriftLocked(nonKYCVolumeBlock uint64) {
	current := float64(e.tariff.TariffBps)
	target := float64(e.params.TariffPublicRevenueTargetBps)
	next := current + e.params.TariffDriftRate*(target-current)
	next = clampF(next, float64(e.params.TariffMinBps), float64(e.params.TariffMaxBps))

	e.tariff = types.TariffSnapshot{
		TariffBps:               uint32(math.Round(next)),
		NonKYCVolumeBlock:       nonKYCVolumeBlock,
		TreasuryContributionBps: e.subsidy.TreasuryBps(),
	}

	// Ad drift: platform-take and user-share bps drift toward their
	// governance targets independently of the Layer 3 ad multiplier.
	e.adPlatformTakeBps += e.params.AdDriftRate * (float64(e.params.AdPlatformTakeTargetBps) - e.adPlatformTakeBps)
	e.adUserShareBps += e.params.AdDriftRate * (float64(e.params.AdUserShareTargetBps) - e.adUserShareBps)
}
