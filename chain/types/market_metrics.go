package types

import "math"

// Round6 rounds x to 1e-6, away from zero on ties, the fixed rounding mode
// used everywhere f64 economic state is folded into a deterministic hash
// (spec.md §9 Open Question (b)).
func Round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// SubsidySnapshot is the per-block bps allocation across the four markets.
// Invariant: Storage+Compute+Energy+Ad+Treasury == 10_000.
type SubsidySnapshot struct {
	StorageShareBps uint32
	ComputeShareBps uint32
	EnergyShareBps  uint32
	AdShareBps      uint32
}

// SubsidySnapshotFromBps constructs a snapshot from four market shares,
// rescaling proportionally if their sum exceeds 10,000 bps so the
// Storage+Compute+Energy+Ad+Treasury invariant always holds.
func SubsidySnapshotFromBps(storage, compute, energy, ad uint32) SubsidySnapshot {
	total := uint64(storage) + uint64(compute) + uint64(energy) + uint64(ad)
	if total <= 10_000 {
		return SubsidySnapshot{StorageShareBps: storage, ComputeShareBps: compute, EnergyShareBps: energy, AdShareBps: ad}
	}
	scale := func(v uint32) uint32 { return uint32(uint64(v) * 10_000 / total) }
	return SubsidySnapshot{
		StorageShareBps: scale(storage),
		ComputeShareBps: scale(compute),
		EnergyShareBps:  scale(energy),
		AdShareBps:      scale(ad),
	}
}

// TreasuryBps is whatever bps remains after the four market shares.
func (s SubsidySnapshot) TreasuryBps() uint32 {
	total := s.StorageShareBps + s.ComputeShareBps + s.EnergyShareBps + s.AdShareBps
	if total >= 10000 {
		return 0
	}
	return 10000 - total
}

// TariffSnapshot is the network tariff controller's published state.
type TariffSnapshot struct {
	TariffBps               uint32
	NonKYCVolumeBlock       uint64
	TreasuryContributionBps uint32
}

// MarketMetric is one market's per-block utilization/cost snapshot. All
// float fields must be Round6'd before they participate in a state root.
type MarketMetric struct {
	Utilization        float64
	AverageCostBlock   float64
	EffectivePayoutBlock float64
	ProviderMargin     float64
}

// Rounded returns a copy with every float field rounded to 1e-6.
func (m MarketMetric) Rounded() MarketMetric {
	return MarketMetric{
		Utilization:          Round6(m.Utilization),
		AverageCostBlock:     Round6(m.AverageCostBlock),
		EffectivePayoutBlock: Round6(m.EffectivePayoutBlock),
		ProviderMargin:       Round6(m.ProviderMargin),
	}
}

// PeerMetrics tracks per-peer gossip accounting.
type PeerMetrics struct {
	Requests        uint64
	BytesSent       uint64
	Drops           map[string]uint64
	ReputationScore int64
	DecayLast       int64 // unix millis of last decay tick
	ThrottledUntil  int64 // unix millis, 0 if not throttled
	ThrottleReason  string
	HandshakeFail   map[string]uint64
	LastUpdated     int64
}

// NewPeerMetrics returns a zeroed metrics record.
func NewPeerMetrics() *PeerMetrics {
	return &PeerMetrics{
		Drops:         make(map[string]uint64),
		HandshakeFail: make(map[string]uint64),
	}
}
