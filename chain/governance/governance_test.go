package governance

import "testing"

func TestParamKeyTagRoundTrip(t *testing.T) {
	for k := ParamKey(0); k < paramKeyCount; k++ {
		got, ok := ParamKeyFromTag(k.Tag())
		if !ok || got != k {
			t.Fatalf("tag round trip failed for key %s (tag %d)", k, k.Tag())
		}
	}
}

func TestRegistryCoversEveryKey(t *testing.T) {
	reg := NewRegistry()
	for k := ParamKey(0); k < paramKeyCount; k++ {
		if _, ok := reg.SpecFor(k); !ok {
			t.Fatalf("registry missing spec for key %s", k)
		}
	}
}

func TestProposalPipelineActivatesAfterTimelock(t *testing.T) {
	reg := NewRegistry()
	rt := NewRuntime(NopRuntimeAdapter{})
	g := NewGov(reg, rt)
	g.SetQuorumWeight(50)

	p, err := g.CreateProposal(FeeFloorPercentile, 80, "alice", 0, 10, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	if err := g.CastVote(p.ID, "v1", VoteYes, 60, 1); err != nil {
		t.Fatalf("CastVote v1: %v", err)
	}
	if err := g.CastVote(p.ID, "v2", VoteNo, 10, 1); err != nil {
		t.Fatalf("CastVote v2: %v", err)
	}

	if _, err := g.Tally(p.ID, 5); err != ErrNotYetActivatable {
		t.Fatalf("expected ErrNotYetActivatable before deadline, got %v", err)
	}

	tallied, err := g.Tally(p.ID, 10)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tallied.Status != ProposalPassed {
		t.Fatalf("expected Passed, got %s", tallied.Status)
	}

	if _, err := g.Activate(p.ID, 10); err != ErrNotYetActivatable {
		t.Fatalf("expected ErrNotYetActivatable before timelock elapsed, got %v", err)
	}

	spec, _ := reg.SpecFor(FeeFloorPercentile)
	activated, err := g.Activate(p.ID, 10+spec.TimelockEpochs)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if activated.Status != ProposalActivated {
		t.Fatalf("expected Activated, got %s", activated.Status)
	}
	if g.Params().Int64(FeeFloorPercentile) != 80 {
		t.Fatalf("expected param applied, got %d", g.Params().Int64(FeeFloorPercentile))
	}
}

func TestProposalRollbackRestoresPriorValue(t *testing.T) {
	reg := NewRegistry()
	rt := NewRuntime(NopRuntimeAdapter{})
	g := NewGov(reg, rt)
	g.SetQuorumWeight(0) // disable quorum check for this test

	spec, _ := reg.SpecFor(BadgeIssueUptime)
	original := spec.Default

	p, err := g.CreateProposal(BadgeIssueUptime, 90, "alice", 0, 5, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := g.CastVote(p.ID, "v1", VoteYes, 1, 0); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, err := g.Tally(p.ID, 5); err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if _, err := g.Activate(p.ID, 5+spec.TimelockEpochs); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if g.Params().Int64(BadgeIssueUptime) != 90 {
		t.Fatalf("expected activated value 90, got %d", g.Params().Int64(BadgeIssueUptime))
	}

	if _, err := g.RollBack(p.ID, "uptime target broke badge issuance"); err != nil {
		t.Fatalf("RollBack: %v", err)
	}
	if g.Params().Int64(BadgeIssueUptime) != original {
		t.Fatalf("expected rollback to restore %d, got %d", original, g.Params().Int64(BadgeIssueUptime))
	}
	got, _ := g.ProposalByID(p.ID)
	if got.Status != ProposalRolledBack {
		t.Fatalf("expected RolledBack status, got %s", got.Status)
	}
}

func TestProposalDependsOnActivatedDep(t *testing.T) {
	reg := NewRegistry()
	rt := NewRuntime(NopRuntimeAdapter{})
	g := NewGov(reg, rt)
	g.SetQuorumWeight(0)

	dep, _ := g.CreateProposal(AdViewerPercentile, 60, "alice", 0, 5, nil)
	g.CastVote(dep.ID, "v1", VoteYes, 1, 0)
	g.Tally(dep.ID, 5)
	// Do not activate dep.

	child, _ := g.CreateProposal(AdHostPercentile, 60, "alice", 0, 5, []uint64{dep.ID})
	g.CastVote(child.ID, "v1", VoteYes, 1, 0)

	tallied, err := g.Tally(child.ID, 5)
	if err != ErrDepsNotActivated {
		t.Fatalf("expected ErrDepsNotActivated, got %v", err)
	}
	if tallied.Status != ProposalRejected {
		t.Fatalf("expected child rejected when dep not activated, got %s", tallied.Status)
	}
}

func TestStatusJSONLegacyAlias(t *testing.T) {
	var s ProposalStatus
	if err := s.UnmarshalJSON([]byte(`"Cancelled"`)); err != nil {
		t.Fatalf("UnmarshalJSON legacy alias: %v", err)
	}
	if s != ProposalRolledBack {
		t.Fatalf("expected legacy alias to decode to RolledBack, got %s", s)
	}
	b, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(b) != `"RolledBack"` {
		t.Fatalf("expected write path to always emit RolledBack, got %s", b)
	}
}

func TestPolicyBitmaskRoundTrip(t *testing.T) {
	mask, err := EncodeStorageEnginePolicy([]string{"rocksdb-compat", "inhouse"})
	if err != nil {
		t.Fatalf("EncodeStorageEnginePolicy: %v", err)
	}
	if mask != DefaultStorageEnginePolicy {
		t.Fatalf("expected mask %d to equal default policy %d", mask, DefaultStorageEnginePolicy)
	}
	decoded := DecodeStorageEnginePolicy(mask)
	if len(decoded) != 2 || decoded[0] != "rocksdb-compat" || decoded[1] != "inhouse" {
		t.Fatalf("unexpected decode: %v", decoded)
	}
	if !ValidateStorageEnginePolicy(mask) {
		t.Fatal("expected mask to validate")
	}
	if ValidateStorageEnginePolicy(StorageEngineMaskAll + 1) {
		t.Fatal("expected out-of-range mask to fail validation")
	}
	if _, err := EncodeStorageEnginePolicy([]string{"not-an-engine"}); err == nil {
		t.Fatal("expected unknown option to error")
	}
}

func TestParamsCodecRoundTrip(t *testing.T) {
	reg := NewRegistry()
	p := NewParams(reg)
	p.set(FeeFloorPercentile, 42)
	p.set(AdViewerPercentile, 7)

	buf := EncodeParams(p)
	decoded, err := DecodeParams(buf)
	if err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if decoded.Int64(FeeFloorPercentile) != 42 || decoded.Int64(AdViewerPercentile) != 7 {
		t.Fatalf("round trip mismatch: %+v", decoded.values)
	}
}

func TestProposalCodecRoundTrip(t *testing.T) {
	epoch := uint64(123)
	p := &Proposal{
		ID:                7,
		Key:               StorageEnginePolicy,
		NewValue:          DefaultStorageEnginePolicy,
		Min:               1,
		Max:               StorageEngineMaskAll,
		Proposer:          "alice",
		CreatedEpoch:      1,
		VoteDeadlineEpoch: 10,
		ActivationEpoch:   &epoch,
		Status:            ProposalActivated,
		Deps:              []uint64{1, 2, 3},
	}
	buf := EncodeProposal(p)
	decoded, err := DecodeProposal(buf)
	if err != nil {
		t.Fatalf("DecodeProposal: %v", err)
	}
	if decoded.ID != p.ID || decoded.Key != p.Key || decoded.NewValue != p.NewValue {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.ActivationEpoch == nil || *decoded.ActivationEpoch != epoch {
		t.Fatalf("expected activation epoch %d, got %+v", epoch, decoded.ActivationEpoch)
	}
	if len(decoded.Deps) != 3 || decoded.Deps[2] != 3 {
		t.Fatalf("expected deps round trip, got %v", decoded.Deps)
	}
}

func TestReleaseVoteRequiresThresholdAndBallots(t *testing.T) {
	reg := NewRegistry()
	g := NewGov(reg, NewRuntime(NopRuntimeAdapter{}))

	rv, err := g.CreateReleaseVote("deadbeef", []string{"s1", "s2", "s3"}, 2, "alice", 0, 5)
	if err != nil {
		t.Fatalf("CreateReleaseVote: %v", err)
	}
	if err := g.Attest(rv.ID, "s1", "sig1"); err != nil {
		t.Fatalf("Attest s1: %v", err)
	}
	if err := g.CastReleaseBallot(rv.ID, "v1", VoteYes, 10, 0); err != nil {
		t.Fatalf("CastReleaseBallot: %v", err)
	}

	tallied, err := g.TallyRelease(rv.ID, 5)
	if err != nil {
		t.Fatalf("TallyRelease: %v", err)
	}
	if tallied.Status != ProposalRejected {
		t.Fatalf("expected rejection below signature threshold, got %s", tallied.Status)
	}
}

func TestReleaseVoteActivatesWithEnoughSignatures(t *testing.T) {
	reg := NewRegistry()
	g := NewGov(reg, NewRuntime(NopRuntimeAdapter{}))

	rv, _ := g.CreateReleaseVote("cafef00d", []string{"s1", "s2", "s3"}, 2, "alice", 0, 5)
	g.Attest(rv.ID, "s1", "sig1")
	g.Attest(rv.ID, "s2", "sig2")
	g.CastReleaseBallot(rv.ID, "v1", VoteYes, 10, 0)

	tallied, err := g.TallyRelease(rv.ID, 5)
	if err != nil {
		t.Fatalf("TallyRelease: %v", err)
	}
	if tallied.Status != ProposalPassed {
		t.Fatalf("expected Passed, got %s", tallied.Status)
	}

	approved, err := g.ActivateRelease(rv.ID, 6)
	if err != nil {
		t.Fatalf("ActivateRelease: %v", err)
	}
	if approved.BuildHash != "cafef00d" {
		t.Fatalf("unexpected build hash %s", approved.BuildHash)
	}

	if !g.RecordInstall("cafef00d", 7) {
		t.Fatal("expected RecordInstall to find the approved release")
	}
}

func TestTallyRequiresYesWeightQuorum(t *testing.T) {
	reg := NewRegistry()
	g := NewGov(reg, NewRuntime(NopRuntimeAdapter{}))
	g.SetQuorumWeight(100)

	// Majority yes, but yes-weight below the quorum threshold: abstain
	// turnout must not be able to make up the difference.
	p, err := g.CreateProposal(FeeFloorPercentile, 80, "alice", 0, 10, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := g.CastVote(p.ID, "v1", VoteYes, 60, 1); err != nil {
		t.Fatalf("CastVote yes: %v", err)
	}
	if err := g.CastVote(p.ID, "v2", VoteNo, 10, 1); err != nil {
		t.Fatalf("CastVote no: %v", err)
	}
	if err := g.CastVote(p.ID, "v3", VoteAbstain, 90, 1); err != nil {
		t.Fatalf("CastVote abstain: %v", err)
	}
	tallied, err := g.Tally(p.ID, 10)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tallied.Status != ProposalRejected {
		t.Fatalf("expected Rejected with yes-weight below quorum, got %s", tallied.Status)
	}

	// Yes-weight at the quorum and above no: passes.
	p2, err := g.CreateProposal(FeeFloorPercentile, 70, "alice", 0, 10, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := g.CastVote(p2.ID, "v1", VoteYes, 100, 1); err != nil {
		t.Fatalf("CastVote yes: %v", err)
	}
	if err := g.CastVote(p2.ID, "v2", VoteNo, 40, 1); err != nil {
		t.Fatalf("CastVote no: %v", err)
	}
	tallied, err = g.Tally(p2.ID, 10)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tallied.Status != ProposalPassed {
		t.Fatalf("expected Passed with yes-weight at quorum, got %s", tallied.Status)
	}
}
