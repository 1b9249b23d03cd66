package governance

import "fmt"

// Params is a tag-indexed snapshot of every governance-controlled value.
// Storage is a flat array rather than a named-field struct: the key set is
// large (104 keys) and append-only, and every ParamSpec.Apply hook already
// knows which key it is writing, so a generic tag-indexed store avoids 104
// near-identical field accessors while keeping the same "plain old values"
// shape as the original Params struct.
type Params struct {
	values [paramKeyCount]int64
}

// NewParams builds a Params snapshot populated with every key's default
// from reg.
func NewParams(reg *Registry) *Params {
	p := &Params{}
	for k := ParamKey(0); k < paramKeyCount; k++ {
		if spec, ok := reg.SpecFor(k); ok {
			p.values[k] = spec.Default
		}
	}
	return p
}

// Clone returns an independent copy, used to snapshot state before a
// proposal activates so a later rollback can restore it exactly.
func (p *Params) Clone() *Params {
	out := &Params{}
	out.values = p.values
	return out
}

func (p *Params) set(key ParamKey, v int64) error {
	if key >= paramKeyCount {
		return fmt.Errorf("governance: param key %d out of range", key)
	}
	p.values[key] = v
	return nil
}

// Int64 returns the raw stored value for key.
func (p *Params) Int64(key ParamKey) int64 {
	if key >= paramKeyCount {
		return 0
	}
	return p.values[key]
}

// Bool interprets key's value as a boolean flag (nonzero is true), the
// convention used for AiDiagnosticsEnabled/DualTokenSettlementEnabled/etc.
func (p *Params) Bool(key ParamKey) bool {
	return p.Int64(key) != 0
}

// Ppm interprets key's value as a parts-per-million fixed-point fraction,
// the convention used for FairshareGlobalMax/BurstRefillRatePerS.
func (p *Params) Ppm(key ParamKey) float64 {
	return float64(p.Int64(key)) / 1_000_000
}

// Milli interprets key's value as a fixed-point value scaled by 1000, the
// convention used for LogisticSlope/HeuristicMuMilli and for the economics
// gain, responsiveness and drift-rate (smoothing) knobs.
func (p *Params) Milli(key ParamKey) float64 {
	return float64(p.Int64(key)) / 1_000
}
