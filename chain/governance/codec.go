package governance

import (
	"fmt"

	"github.com/Ian-Reitsma/the-block/chain/codec"
)

// paramsSchema maps every ParamKey's wire name to its codec field type.
// All 104 keys are stored as i64, matching Params' flat int64 array.
func paramsSchema() codec.Schema {
	s := make(codec.Schema, int(paramKeyCount))
	for k := ParamKey(0); k < paramKeyCount; k++ {
		s[k.String()] = codec.TI64
	}
	return s
}

// EncodeParams serializes a Params snapshot via the fixed-field binary
// cursor, one field per ParamKey, keyed by its wire name.
func EncodeParams(p *Params) []byte {
	w := codec.NewWriter()
	for k := ParamKey(0); k < paramKeyCount; k++ {
		w.PutI64(k.String(), p.Int64(k))
	}
	return w.Bytes()
}

// DecodeParams parses a document produced by EncodeParams. Unknown fields
// are rejected; legacy aliases can be added here as keys get renamed.
func DecodeParams(buf []byte) (*Params, error) {
	r, err := codec.DecodeSchema(buf, paramsSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("governance: decode params: %w", err)
	}
	p := &Params{}
	for k := ParamKey(0); k < paramKeyCount; k++ {
		if !r.Has(k.String()) {
			continue
		}
		v, err := r.I64(k.String())
		if err != nil {
			return nil, fmt.Errorf("governance: decode params field %s: %w", k, err)
		}
		p.values[k] = v
	}
	return p, nil
}

func proposalSchema() codec.Schema {
	return codec.Schema{
		"id":                  codec.TU64,
		"key":                 codec.TU8,
		"new_value":           codec.TI64,
		"min":                 codec.TI64,
		"max":                 codec.TI64,
		"proposer":            codec.TBytes,
		"created_epoch":       codec.TU64,
		"vote_deadline_epoch": codec.TU64,
		"has_activation":      codec.TBool,
		"activation_epoch":    codec.TU64,
		"status":              codec.TU8,
		"deps":                codec.TBytes,
	}
}

// EncodeProposal serializes a Proposal via the fixed-field binary cursor,
// matching the field set of original_source/governance/src/codec.rs's
// Proposal BinaryCodec impl (an explicit has_activation flag replaces
// Rust's Option<u64> encoding, which Go's codec has no native analogue
// for).
func EncodeProposal(p *Proposal) []byte {
	w := codec.NewWriter()
	w.PutU64("id", p.ID)
	w.PutU8("key", p.Key.Tag())
	w.PutI64("new_value", p.NewValue)
	w.PutI64("min", p.Min)
	w.PutI64("max", p.Max)
	w.PutString("proposer", p.Proposer)
	w.PutU64("created_epoch", p.CreatedEpoch)
	w.PutU64("vote_deadline_epoch", p.VoteDeadlineEpoch)
	w.PutBool("has_activation", p.ActivationEpoch != nil)
	if p.ActivationEpoch != nil {
		w.PutU64("activation_epoch", *p.ActivationEpoch)
	} else {
		w.PutU64("activation_epoch", 0)
	}
	w.PutU8("status", uint8(p.Status))
	w.PutU64Vec("deps", p.Deps)
	return w.Bytes()
}

// DecodeProposal parses a document produced by EncodeProposal.
func DecodeProposal(buf []byte) (*Proposal, error) {
	r, err := codec.DecodeSchema(buf, proposalSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("governance: decode proposal: %w", err)
	}

	id, err := r.U64("id")
	if err != nil {
		return nil, err
	}
	tag, err := r.U8("key")
	if err != nil {
		return nil, err
	}
	key, ok := ParamKeyFromTag(tag)
	if !ok {
		return nil, fmt.Errorf("governance: decode proposal: unknown param key tag %d", tag)
	}
	newValue, err := r.I64("new_value")
	if err != nil {
		return nil, err
	}
	min, err := r.I64("min")
	if err != nil {
		return nil, err
	}
	max, err := r.I64("max")
	if err != nil {
		return nil, err
	}
	proposer, err := r.String("proposer")
	if err != nil {
		return nil, err
	}
	createdEpoch, err := r.U64("created_epoch")
	if err != nil {
		return nil, err
	}
	voteDeadlineEpoch, err := r.U64("vote_deadline_epoch")
	if err != nil {
		return nil, err
	}
	hasActivation, err := r.Bool("has_activation")
	if err != nil {
		return nil, err
	}
	activationEpoch, err := r.U64("activation_epoch")
	if err != nil {
		return nil, err
	}
	statusTag, err := r.U8("status")
	if err != nil {
		return nil, err
	}
	deps, err := r.U64Vec("deps")
	if err != nil {
		return nil, err
	}

	p := &Proposal{
		ID:                id,
		Key:               key,
		NewValue:          newValue,
		Min:               min,
		Max:               max,
		Proposer:          proposer,
		CreatedEpoch:      createdEpoch,
		VoteDeadlineEpoch: voteDeadlineEpoch,
		Status:            ProposalStatus(statusTag),
		Deps:              deps,
	}
	if hasActivation {
		epoch := activationEpoch
		p.ActivationEpoch = &epoch
	}
	return p, nil
}
