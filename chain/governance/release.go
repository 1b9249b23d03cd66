package governance

import "fmt"

// ReleaseAttestation is one signer's endorsement of a build hash, required
// before a ReleaseVote can pass regardless of ballot weight.
type ReleaseAttestation struct {
	Signer    string
	Signature string
}

// ReleaseVote gates a software build for activation: it needs both ballot
// weight (like a Proposal) and a threshold of signatures from a fixed
// signer set, matching the original's split between economic voting and
// reproducible-build attestation.
type ReleaseVote struct {
	ID                  uint64
	BuildHash           string
	Signatures          []ReleaseAttestation
	SignatureThreshold  uint32
	SignerSet           []string
	Proposer            string
	CreatedEpoch        uint64
	VoteDeadlineEpoch   uint64
	ActivationEpoch     *uint64
	Status              ProposalStatus
}

// ReleaseBallot is one validator's weighted vote on a ReleaseVote.
type ReleaseBallot struct {
	ProposalID uint64
	Voter      string
	Choice     VoteChoice
	Weight     uint64
	ReceivedAt uint64
}

// ApprovedRelease is the activation record for a release that passed both
// the ballot and the signature threshold: the install_times slice records
// when each node in the signer set reported having installed it.
type ApprovedRelease struct {
	BuildHash          string
	ActivatedEpoch     uint64
	Proposer           string
	Signatures         []ReleaseAttestation
	SignatureThreshold uint32
	SignerSet          []string
	InstallTimes       []uint64
}

// CreateReleaseVote opens a release vote gated on signerSet/threshold in
// addition to a ballot majority (yes weight above no weight; no quorum).
func (g *Gov) CreateReleaseVote(buildHash string, signerSet []string, threshold uint32, proposer string, createdEpoch, voteDeadlineEpoch uint64) (*ReleaseVote, error) {
	if threshold == 0 || int(threshold) > len(signerSet) {
		return nil, fmt.Errorf("governance: signature threshold %d invalid for %d signers", threshold, len(signerSet))
	}
	rv := &ReleaseVote{
		ID:                 g.nextReleaseID,
		BuildHash:          buildHash,
		SignatureThreshold: threshold,
		SignerSet:          append([]string(nil), signerSet...),
		Proposer:           proposer,
		CreatedEpoch:       createdEpoch,
		VoteDeadlineEpoch:  voteDeadlineEpoch,
		Status:             ProposalOpen,
	}
	g.releases[rv.ID] = rv
	g.releaseBallots[rv.ID] = make(map[string]*ReleaseBallot)
	g.nextReleaseID++
	return rv, nil
}

// Attest records signer's endorsement of releaseID's build hash. Signer
// must be a member of the release's signer set; re-attesting is a no-op
// rather than an error so a retry doesn't fail the caller.
func (g *Gov) Attest(releaseID uint64, signer, signature string) error {
	rv, ok := g.releases[releaseID]
	if !ok {
		return ErrProposalNotFound
	}
	if !containsString(rv.SignerSet, signer) {
		return fmt.Errorf("governance: %s is not in the release signer set", signer)
	}
	for _, a := range rv.Signatures {
		if a.Signer == signer {
			return nil
		}
	}
	rv.Signatures = append(rv.Signatures, ReleaseAttestation{Signer: signer, Signature: signature})
	return nil
}

// CastReleaseBallot records a weighted yes/no/abstain vote on a release,
// identical in shape to Gov.CastVote but against the release ballot map.
func (g *Gov) CastReleaseBallot(releaseID uint64, voter string, choice VoteChoice, weight, receivedAt uint64) error {
	rv, ok := g.releases[releaseID]
	if !ok {
		return ErrProposalNotFound
	}
	if rv.Status != ProposalOpen {
		return ErrProposalNotOpen
	}
	if _, voted := g.releaseBallots[releaseID][voter]; voted {
		return ErrAlreadyVoted
	}
	g.releaseBallots[releaseID][voter] = &ReleaseBallot{
		ProposalID: releaseID,
		Voter:      voter,
		Choice:     choice,
		Weight:     weight,
		ReceivedAt: receivedAt,
	}
	return nil
}

// TallyRelease closes voting at the deadline: both ballot majority and the
// signature threshold must hold, or the release is rejected.
func (g *Gov) TallyRelease(releaseID uint64, nowEpoch uint64) (*ReleaseVote, error) {
	rv, ok := g.releases[releaseID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if rv.Status != ProposalOpen {
		return rv, nil
	}
	if nowEpoch < rv.VoteDeadlineEpoch {
		return rv, ErrNotYetActivatable
	}

	var yes, no uint64
	for _, b := range g.releaseBallots[releaseID] {
		switch b.Choice {
		case VoteYes:
			yes += b.Weight
		case VoteNo:
			no += b.Weight
		}
	}

	if yes > no && uint32(len(rv.Signatures)) >= rv.SignatureThreshold {
		rv.Status = ProposalPassed
	} else {
		rv.Status = ProposalRejected
	}
	return rv, nil
}

// ActivateRelease promotes a Passed release to ApprovedRelease at nowEpoch.
// There is no timelock or epoch check: the first call after the release
// passes activates it.
func (g *Gov) ActivateRelease(releaseID uint64, nowEpoch uint64) (*ApprovedRelease, error) {
	rv, ok := g.releases[releaseID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if rv.Status != ProposalPassed {
		return nil, ErrProposalNotPassed
	}
	epoch := nowEpoch
	rv.ActivationEpoch = &epoch
	rv.Status = ProposalActivated

	approved := &ApprovedRelease{
		BuildHash:          rv.BuildHash,
		ActivatedEpoch:     nowEpoch,
		Proposer:           rv.Proposer,
		Signatures:         append([]ReleaseAttestation(nil), rv.Signatures...),
		SignatureThreshold: rv.SignatureThreshold,
		SignerSet:          append([]string(nil), rv.SignerSet...),
	}
	g.approvedReleases = append(g.approvedReleases, approved)
	return approved, nil
}

// RecordInstall appends installedAt to the approved release matching
// buildHash's install-time log (used to track rollout progress).
func (g *Gov) RecordInstall(buildHash string, installedAt uint64) bool {
	for _, ar := range g.approvedReleases {
		if ar.BuildHash == buildHash {
			ar.InstallTimes = append(ar.InstallTimes, installedAt)
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
