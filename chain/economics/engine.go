package economics

import (
	"fmt"
	"math"
	"sync"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Engine is the mutex-guarded economics controller, mirroring the teacher's
// TokenomicsEngine shape: one struct, one lock, event-handler callback
// fields, Get*Info snapshot accessors.
type Engine struct {
	mu sync.RWMutex

	params Params

	prevAnnualIssuanceBlock uint64
	blockRewardPerBlock     uint64
	supply                  uint64

	subsidy     types.SubsidySnapshot
	tariff      types.TariffSnapshot
	multipliers map[Market]float64
	metrics     map[Market]types.MarketMetric

	history          map[Market][]float64
	rollingInflation float64

	adPlatformTakeBps float64
	adUserShareBps    float64

	kalman *kalmanFilter

	OnRetuneRejected func(market Market, reason string)
	OnKillSwitch     func(pct uint8)
}

// NewEngine constructs an engine with the given initial supply and
// governance parameters.
func NewEngine(supply uint64, params Params) *Engine {
	e := &Engine{
		params:      params,
		supply:      supply,
		multipliers: make(map[Market]float64, 4),
		metrics:     make(map[Market]types.MarketMetric, 4),
		history:     make(map[Market][]float64, 4),
		kalman:      newKalmanFilter(8, params.KalmanRShort, params.KalmanRMed, params.KalmanRLong),
	}
	for _, m := range AllMarkets {
		e.multipliers[m] = 1.0
	}
	e.blockRewardPerBlock = params.MinAnnualIssuanceCt / (365 * params.BlocksPerDay)
	e.adPlatformTakeBps = float64(params.AdPlatformTakeTargetBps)
	e.adUserShareBps = float64(params.AdUserShareTargetBps)
	return e
}

// SetParams replaces the governance-controlled parameter surface, applied
// atomically at the next UpdateBlock.
func (e *Engine) SetParams(p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p
}

// Params returns the engine's current parameter surface, used by governance
// activation to read-modify-write a single field without clobbering the
// rest of the surface.
func (e *Engine) Params() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// UpdateBlock runs all four control layers, in fixed order, against this
// block's observed per-market inputs and non-KYC transaction volume. It
// returns the resulting published snapshot.
func (e *Engine) UpdateBlock(inputs map[Market]MarketInput, nonKYCVolumeBlock uint64) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, m := range AllMarkets {
		in, ok := inputs[m]
		if !ok {
			continue
		}
		e.retuneLocked(m, in)
	}

	e.layer1InflationLocked()
	e.layer2SubsidyAllocatorLocked()
	e.layer3MarketMultipliersLocked()
	e.layer4TariffAndAdDriftLocked(nonKYCVolumeBlock)

	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	metrics := make(map[Market]types.MarketMetric, len(e.metrics))
	for k, v := range e.metrics {
		metrics[k] = v.Rounded()
	}
	multipliers := make(map[Market]float64, len(e.multipliers))
	for k, v := range e.multipliers {
		multipliers[k] = types.Round6(v)
	}
	return Snapshot{
		BlockRewardPerBlock: e.blockRewardPerBlock,
		Subsidy:             e.subsidy,
		Tariff:              e.tariff,
		Multipliers:         multipliers,
		Metrics:             metrics,
		RollingInflation:    types.Round6(e.rollingInflation),
	}
}

// GetEconomicsInfo returns a snapshot in the teacher's
// map[string]interface{} accessor style, for the node's RPC surface.
func (e *Engine) GetEconomicsInfo() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := e.snapshotLocked()
	return map[string]interface{}{
		"block_reward_per_block": snap.BlockRewardPerBlock,
		"subsidy":                snap.Subsidy,
		"tariff":                 snap.Tariff,
		"multipliers":            snap.Multipliers,
		"metrics":                snap.Metrics,
		"rolling_inflation":      snap.RollingInflation,
		"ad_platform_take_bps":   types.Round6(e.adPlatformTakeBps),
		"ad_user_share_bps":      types.Round6(e.adUserShareBps),
	}
}

// AdSplit returns the current drifted ad-revenue split in bps.
func (e *Engine) AdSplit() (platformTakeBps, userShareBps float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return types.Round6(e.adPlatformTakeBps), types.Round6(e.adUserShareBps)
}

// KalmanState exposes the retune filter's state vector and diagonal
// covariance for persistence.
func (e *Engine) KalmanState() (state, covariance []float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]float64(nil), e.kalman.state...), append([]float64(nil), e.kalman.covariance...)
}

// RestoreKalmanState reloads a persisted filter state. The vector length
// is fixed at construction; a mismatched snapshot is rejected so a
// corrupt or foreign-version file cannot silently skew the retune.
func (e *Engine) RestoreKalmanState(state, covariance []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(state) != e.kalman.n || len(covariance) != e.kalman.n {
		return fmt.Errorf("economics: kalman snapshot has %d/%d entries, want %d", len(state), len(covariance), e.kalman.n)
	}
	copy(e.kalman.state, state)
	copy(e.kalman.covariance, covariance)
	return nil
}

// UtilHistory returns a copy of the per-market utilization history the
// retune window reads.
func (e *Engine) UtilHistory() map[Market][]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Market][]float64, len(e.history))
	for m, h := range e.history {
		out[m] = append([]float64(nil), h...)
	}
	return out
}

// RestoreUtilHistory reloads a persisted utilization history.
func (e *Engine) RestoreUtilHistory(hist map[Market][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = make(map[Market][]float64, len(hist))
	for m, h := range hist {
		e.history[m] = append([]float64(nil), h...)
	}
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
