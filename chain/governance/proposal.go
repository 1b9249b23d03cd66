package governance

import (
	"errors"
	"fmt"
)

// ProposalStatus tracks a parameter-change proposal through its lifecycle:
// Open (accepting votes) -> Passed/Rejected (tallied) -> Activated (timelock
// elapsed, value applied) -> RolledBack (an invariant broke after
// activation and a later proposal/operator action reverted it).
type ProposalStatus uint8

const (
	ProposalOpen ProposalStatus = iota
	ProposalPassed
	ProposalRejected
	ProposalActivated
	ProposalRolledBack
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalOpen:
		return "Open"
	case ProposalPassed:
		return "Passed"
	case ProposalRejected:
		return "Rejected"
	case ProposalActivated:
		return "Activated"
	case ProposalRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

// MarshalJSON writes RolledBack for the rolled-back status; the legacy
// "Cancelled" spelling is accepted on decode only (see UnmarshalJSON).
func (s ProposalStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *ProposalStatus) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' {
		str = str[1 : len(str)-1]
	}
	switch str {
	case "Open":
		*s = ProposalOpen
	case "Passed":
		*s = ProposalPassed
	case "Rejected":
		*s = ProposalRejected
	case "Activated":
		*s = ProposalActivated
	case "RolledBack", "Cancelled":
		*s = ProposalRolledBack
	default:
		return fmt.Errorf("governance: unknown proposal status %q", str)
	}
	return nil
}

// VoteChoice is a ballot's choice on a proposal or release vote.
type VoteChoice uint8

const (
	VoteYes VoteChoice = iota
	VoteNo
	VoteAbstain
)

// Proposal is a single parameter-change request: change Key to NewValue,
// bounded by [Min,Max] (normally copied from the key's ParamSpec at
// creation time so a later registry change can't silently widen an
// in-flight vote's bounds), gated on Deps all having reached Activated.
type Proposal struct {
	ID                 uint64
	Key                ParamKey
	NewValue           int64
	Min, Max           int64
	Proposer           string
	CreatedEpoch       uint64
	VoteDeadlineEpoch  uint64
	ActivationEpoch    *uint64
	Status             ProposalStatus
	Deps               []uint64
	priorValue         int64 // snapshot for rollback, taken at activation
	hadPriorValue      bool
}

// Vote is one validator's ballot on a Proposal.
type Vote struct {
	ProposalID uint64
	Voter      string
	Choice     VoteChoice
	Weight     uint64
	ReceivedAt uint64
}

var (
	ErrProposalNotFound    = errors.New("governance: proposal not found")
	ErrProposalNotOpen     = errors.New("governance: proposal is not open for voting")
	ErrAlreadyVoted        = errors.New("governance: voter already cast a ballot")
	ErrDepsNotActivated    = errors.New("governance: one or more dependency proposals have not activated")
	ErrNotYetActivatable   = errors.New("governance: timelock has not elapsed")
	ErrProposalNotPassed   = errors.New("governance: proposal did not pass tally")
	ErrNotActivated        = errors.New("governance: proposal has not activated")
	ErrOutOfBounds         = errors.New("governance: proposed value is out of the key's bounds")
)

// Gov composes the ParamKey registry, the live Params snapshot, and the
// proposal/vote/release pipelines into one engine, the way the teacher's
// GovernanceSystem composes validator set, proposal map, and upgrade map
// into one mutex-guarded struct.
type Gov struct {
	registry *Registry
	params   *Params

	proposals      map[uint64]*Proposal
	votes          map[uint64]map[string]*Vote
	nextProposalID uint64

	releases         map[uint64]*ReleaseVote
	releaseBallots   map[uint64]map[string]*ReleaseBallot
	nextReleaseID    uint64
	approvedReleases []*ApprovedRelease

	runtime *Runtime

	quorumWeight uint64 // minimum yes-weight a proposal needs to pass

	onProposalCreated func(*Proposal)
	onProposalTallied func(*Proposal)
	onProposalActivated func(*Proposal)
	onProposalRolledBack func(*Proposal, string)
}

func NewGov(registry *Registry, runtime *Runtime) *Gov {
	return &Gov{
		registry:       registry,
		params:         NewParams(registry),
		proposals:      make(map[uint64]*Proposal),
		votes:          make(map[uint64]map[string]*Vote),
		nextProposalID: 1,
		releases:       make(map[uint64]*ReleaseVote),
		releaseBallots: make(map[uint64]map[string]*ReleaseBallot),
		nextReleaseID:  1,
		runtime:        runtime,
	}
}

// Params returns the live, currently-activated parameter snapshot.
func (g *Gov) Params() *Params { return g.params }

// SetQuorumWeight sets the minimum yes-weight a proposal needs to pass;
// callers recompute this each epoch from the active validator/staker set.
// Zero (the default) means simple majority with no quorum floor.
func (g *Gov) SetQuorumWeight(w uint64) { g.quorumWeight = w }

// CreateProposal opens a new proposal to change key to newValue, bounded
// by the key's registered spec, optionally depending on other proposals
// having already activated.
func (g *Gov) CreateProposal(key ParamKey, newValue int64, proposer string, createdEpoch, voteDeadlineEpoch uint64, deps []uint64) (*Proposal, error) {
	spec, ok := g.registry.SpecFor(key)
	if !ok {
		return nil, fmt.Errorf("governance: unknown param key %s", key)
	}
	if err := spec.Validate(newValue); err != nil {
		return nil, err
	}

	p := &Proposal{
		ID:                g.nextProposalID,
		Key:               key,
		NewValue:          newValue,
		Min:               spec.Min,
		Max:               spec.Max,
		Proposer:          proposer,
		CreatedEpoch:      createdEpoch,
		VoteDeadlineEpoch: voteDeadlineEpoch,
		Status:            ProposalOpen,
		Deps:              append([]uint64(nil), deps...),
	}
	g.proposals[p.ID] = p
	g.votes[p.ID] = make(map[string]*Vote)
	g.nextProposalID++

	if g.onProposalCreated != nil {
		g.onProposalCreated(p)
	}
	return p, nil
}

// CastVote records voter's ballot on an open proposal. Double-voting is
// rejected rather than overwriting the prior ballot.
func (g *Gov) CastVote(proposalID uint64, voter string, choice VoteChoice, weight, receivedAt uint64) error {
	p, ok := g.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if p.Status != ProposalOpen {
		return ErrProposalNotOpen
	}
	if _, voted := g.votes[proposalID][voter]; voted {
		return ErrAlreadyVoted
	}
	g.votes[proposalID][voter] = &Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     choice,
		Weight:     weight,
		ReceivedAt: receivedAt,
	}
	return nil
}

// Tally closes voting on proposal at its deadline: Passed iff yes_weight
// exceeds no_weight and meets the quorum threshold set via
// SetQuorumWeight. Deps must all be Activated, or the proposal is
// rejected outright regardless of vote weight — a proposal can't activate
// ahead of what it depends on.
func (g *Gov) Tally(proposalID uint64, nowEpoch uint64) (*Proposal, error) {
	p, ok := g.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != ProposalOpen {
		return p, nil
	}
	if nowEpoch < p.VoteDeadlineEpoch {
		return p, ErrNotYetActivatable
	}

	for _, depID := range p.Deps {
		dep, ok := g.proposals[depID]
		if !ok || dep.Status != ProposalActivated {
			p.Status = ProposalRejected
			if g.onProposalTallied != nil {
				g.onProposalTallied(p)
			}
			return p, ErrDepsNotActivated
		}
	}

	var yes, no uint64
	for _, v := range g.votes[proposalID] {
		switch v.Choice {
		case VoteYes:
			yes += v.Weight
		case VoteNo:
			no += v.Weight
		}
	}

	// Passed iff yes_weight > no_weight and yes_weight meets the quorum
	// threshold. Abstain ballots are recorded but count toward neither
	// side nor the quorum.
	if yes > no && yes >= g.quorumWeight {
		p.Status = ProposalPassed
	} else {
		p.Status = ProposalRejected
	}

	if g.onProposalTallied != nil {
		g.onProposalTallied(p)
	}
	return p, nil
}

// Activate applies a Passed proposal's value once its timelock (the key's
// TimelockEpochs past the vote deadline) has elapsed, snapshotting the
// prior value so a later RollBack can restore it exactly, then runs the
// key's ApplyRuntime hook against the live runtime adapter.
func (g *Gov) Activate(proposalID uint64, nowEpoch uint64) (*Proposal, error) {
	p, ok := g.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != ProposalPassed {
		return p, ErrProposalNotPassed
	}
	spec, ok := g.registry.SpecFor(p.Key)
	if !ok {
		return p, fmt.Errorf("governance: unknown param key %s", p.Key)
	}
	readyEpoch := p.VoteDeadlineEpoch + spec.TimelockEpochs
	if nowEpoch < readyEpoch {
		return p, ErrNotYetActivatable
	}

	p.priorValue = g.params.Int64(p.Key)
	p.hadPriorValue = true

	if err := spec.Apply(p.NewValue, g.params); err != nil {
		p.Status = ProposalRolledBack
		return p, fmt.Errorf("governance: apply failed, proposal rolled back: %w", err)
	}
	if spec.ApplyRuntime != nil && g.runtime != nil {
		g.runtime.setCurrentParams(g.params)
		if err := spec.ApplyRuntime(p.NewValue, g.runtime.Adapter); err != nil {
			// Roll the Params write back too: a runtime-side rejection
			// must leave both halves of state consistent.
			_ = spec.Apply(p.priorValue, g.params)
			p.Status = ProposalRolledBack
			return p, fmt.Errorf("governance: runtime apply failed, proposal rolled back: %w", err)
		}
	}

	epoch := nowEpoch
	p.ActivationEpoch = &epoch
	p.Status = ProposalActivated

	if g.onProposalActivated != nil {
		g.onProposalActivated(p)
	}
	return p, nil
}

// RollBack reverts an Activated proposal's key to the value it held
// immediately before activation, for use when a later invariant check
// (an economics clamp, a capacity check) finds the new value broke
// something activation-time validation couldn't catch.
func (g *Gov) RollBack(proposalID uint64, reason string) (*Proposal, error) {
	p, ok := g.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != ProposalActivated {
		return p, ErrNotActivated
	}
	spec, ok := g.registry.SpecFor(p.Key)
	if !ok {
		return p, fmt.Errorf("governance: unknown param key %s", p.Key)
	}
	if p.hadPriorValue {
		if err := spec.Apply(p.priorValue, g.params); err != nil {
			return p, err
		}
		if spec.ApplyRuntime != nil && g.runtime != nil {
			g.runtime.setCurrentParams(g.params)
			_ = spec.ApplyRuntime(p.priorValue, g.runtime.Adapter)
		}
	}
	p.Status = ProposalRolledBack

	if g.onProposalRolledBack != nil {
		g.onProposalRolledBack(p, reason)
	}
	return p, nil
}

func (g *Gov) ProposalByID(id uint64) (*Proposal, bool) {
	p, ok := g.proposals[id]
	return p, ok
}

// OnProposalCreated registers a callback invoked after CreateProposal
// opens a new proposal.
func (g *Gov) OnProposalCreated(fn func(*Proposal)) { g.onProposalCreated = fn }

// OnProposalTallied registers a callback invoked after Tally resolves a
// proposal to Passed or Rejected.
func (g *Gov) OnProposalTallied(fn func(*Proposal)) { g.onProposalTallied = fn }

// OnProposalActivated registers a callback invoked after Activate applies
// a proposal's value.
func (g *Gov) OnProposalActivated(fn func(*Proposal)) { g.onProposalActivated = fn }

// OnProposalRolledBack registers a callback invoked after RollBack
// restores a proposal's prior value.
func (g *Gov) OnProposalRolledBack(fn func(*Proposal, string)) { g.onProposalRolledBack = fn }
