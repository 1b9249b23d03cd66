package economics

import (
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

func TestUpdateBlockProducesValidSubsidySum(t *testing.T) {
	e := NewEngine(1_000_000_000, DefaultParams())

	inputs := map[Market]MarketInput{
		MarketStorage: {Utilization: 0.9, AverageCostBlock: 1.0, ProviderMargin: 0.1},
		MarketCompute: {Utilization: 0.5, AverageCostBlock: 1.0, ProviderMargin: 0.3},
		MarketEnergy:  {Utilization: 0.2, AverageCostBlock: 1.0, ProviderMargin: 0.5},
		MarketAd:      {Utilization: 0.7, AverageCostBlock: 1.0, ProviderMargin: 0.2},
	}

	var snap Snapshot
	for i := 0; i < 5; i++ {
		snap = e.UpdateBlock(inputs, 1000)
	}

	total := uint64(snap.Subsidy.StorageShareBps) + uint64(snap.Subsidy.ComputeShareBps) +
		uint64(snap.Subsidy.EnergyShareBps) + uint64(snap.Subsidy.AdShareBps)
	if total > 10_000 {
		t.Fatalf("subsidy shares sum to %d bps, want <= 10000", total)
	}

	for _, m := range AllMarkets {
		mult := snap.Multipliers[m]
		mp := e.params.ByMarket[m]
		if mult < mp.MultiplierFloor || mult > mp.MultiplierCeiling {
			t.Fatalf("market %s multiplier %v out of [%v,%v]", m, mult, mp.MultiplierFloor, mp.MultiplierCeiling)
		}
	}

	if snap.Tariff.TariffBps > e.params.TariffMaxBps || snap.Tariff.TariffBps < e.params.TariffMinBps {
		t.Fatalf("tariff bps %d out of range", snap.Tariff.TariffBps)
	}
}

func TestHampelFilterRejectsOutlier(t *testing.T) {
	hist := []float64{0.5, 0.51, 0.49, 0.50, 0.52, 5.0}
	filtered, _ := hampelFilter(hist, 1e-6)
	if filtered > 1.0 {
		t.Fatalf("expected outlier 5.0 to be clamped to median, got %v", filtered)
	}
}

func TestHaarBurstVetoDetectsJump(t *testing.T) {
	calm := []float64{0.5, 0.5, 0.5, 0.5}
	if haarBurstVeto(calm, 0.1) {
		t.Fatal("expected no burst veto for flat history")
	}

	burst := []float64{0.1, 0.9, 0.1, 0.9}
	if !haarBurstVeto(burst, 0.1) {
		t.Fatal("expected burst veto for oscillating history")
	}
}

func TestInflationGuardDampensSubsidyOnHighInflation(t *testing.T) {
	e := NewEngine(1000, DefaultParams())
	e.rollingInflation = 0.05 // above the 0.02 guard threshold
	for _, m := range AllMarkets {
		e.metrics[m] = types.MarketMetric{Utilization: 0.5}
	}

	e.layer2SubsidyAllocatorLocked()
	total := uint64(e.subsidy.StorageShareBps) + uint64(e.subsidy.ComputeShareBps) +
		uint64(e.subsidy.EnergyShareBps) + uint64(e.subsidy.AdShareBps)
	if total == 0 {
		t.Fatal("expected nonzero but dampened subsidy total")
	}

	base := NewEngine(1000, DefaultParams())
	for _, m := range AllMarkets {
		base.metrics[m] = types.MarketMetric{Utilization: 0.5}
	}
	base.layer2SubsidyAllocatorLocked()
	baseTotal := uint64(base.subsidy.StorageShareBps) + uint64(base.subsidy.ComputeShareBps) +
		uint64(base.subsidy.EnergyShareBps) + uint64(base.subsidy.AdShareBps)
	if total >= baseTotal {
		t.Fatalf("expected guarded total %d below unguarded total %d", total, baseTotal)
	}
}
