package node

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/crypto"
	"github.com/Ian-Reitsma/the-block/chain/economics"
	"github.com/Ian-Reitsma/the-block/chain/overlay"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

func TestPeerStatsUnknownPeer(t *testing.T) {
	n := newTestNode(t)
	if _, err := n.PeerStats("nobody"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
	if err := n.PeerStatsReset("nobody"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer on reset, got %v", err)
	}
	if err := n.BackpressureClear("nobody"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer on backpressure clear, got %v", err)
	}
}

func TestPeerStatsAllPaginatesDeterministically(t *testing.T) {
	n := newTestNode(t)
	for _, id := range []string{"c", "a", "b"} {
		n.Overlay.Peers().Upsert(id, id+":1", overlay.TransportTCP)
	}

	page := n.PeerStatsAll(0, 2)
	if len(page) != 2 || page[0].PeerID != "a" || page[1].PeerID != "b" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page = n.PeerStatsAll(2, 2)
	if len(page) != 1 || page[0].PeerID != "c" {
		t.Fatalf("unexpected second page: %+v", page)
	}
	if got := n.PeerStatsAll(10, 2); got != nil {
		t.Fatalf("expected empty page past the end, got %+v", got)
	}
}

func TestPeerThrottleSetAndClear(t *testing.T) {
	n := newTestNode(t)
	n.Overlay.Peers().Upsert("p1", "p1:1", overlay.TransportTCP)

	if err := n.PeerThrottle("p1", 9_999_999_999_999, "manual", false); err != nil {
		t.Fatalf("PeerThrottle: %v", err)
	}
	m, err := n.PeerStats("p1")
	if err != nil {
		t.Fatalf("PeerStats: %v", err)
	}
	if m.ThrottledUntil == 0 || m.ThrottleReason != "manual" {
		t.Fatalf("throttle not recorded: %+v", m)
	}

	if err := n.PeerThrottle("p1", 0, "", true); err != nil {
		t.Fatalf("PeerThrottle clear: %v", err)
	}
	if m.ThrottledUntil != 0 || m.ThrottleReason != "" {
		t.Fatalf("throttle not cleared: %+v", m)
	}
}

func TestPeerStatsExportWritesFile(t *testing.T) {
	n := newTestNode(t)
	n.Overlay.Peers().Upsert("p1", "p1:1", overlay.TransportTCP)

	path := filepath.Join(t.TempDir(), "stats.json")
	if err := n.PeerStatsExport("", path); err != nil {
		t.Fatalf("PeerStatsExport all: %v", err)
	}
	if err := n.PeerStatsExport("p1", path); err != nil {
		t.Fatalf("PeerStatsExport one: %v", err)
	}
	if err := n.PeerStatsExport("nobody", path); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestSchedulerStatsExposesEffectivePrice(t *testing.T) {
	n := newTestNode(t)
	stats := n.SchedulerStats()
	if _, ok := stats["effective_price"]; !ok {
		t.Fatalf("scheduler stats missing effective_price: %+v", stats)
	}
}

func TestReputationSyncSignsAndDebounces(t *testing.T) {
	n := newTestNode(t)
	n.Overlay.Peers().Upsert("p1", "p1:1", overlay.TransportTCP)
	n.Overlay.Peers().Upsert("p2", "p2:1", overlay.TransportTCP)

	msg, _, err := n.ReputationSync()
	if err != nil {
		t.Fatalf("ReputationSync: %v", err)
	}
	if msg.Body.Kind != overlay.PayloadReputation || len(msg.Body.Reputation) != 2 {
		t.Fatalf("unexpected reputation payload: %+v", msg.Body)
	}
	if err := overlay.VerifyMessage(crypto.Default, msg); err != nil {
		t.Fatalf("broadcast does not verify: %v", err)
	}

	if _, _, err := n.ReputationSync(); !errors.Is(err, ErrSyncDebounced) {
		t.Fatalf("expected ErrSyncDebounced inside window, got %v", err)
	}
}

func TestKeyRotateTrustOnFirstUseThenRequiresSignature(t *testing.T) {
	n := newTestNode(t)
	n.Overlay.Peers().Upsert("p1", "p1:1", overlay.TransportTCP)

	pub1, priv1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if err := n.KeyRotate("p1", pub1, nil); err != nil {
		t.Fatalf("first key should be accepted unverified: %v", err)
	}

	pub2, _, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if err := n.KeyRotate("p1", pub2, []byte("garbage")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on bad rotation signature, got %v", err)
	}

	sig, err := crypto.Ed25519Scheme{}.Sign(priv1, pub2)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := n.KeyRotate("p1", pub2, sig); err != nil {
		t.Fatalf("rotation signed by current key rejected: %v", err)
	}
	if err := n.KeyRotate("nobody", pub2, sig); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestAdMarketRPCSurface(t *testing.T) {
	n := newTestNode(t)
	c := economics.Campaign{
		ID:                 "launch",
		Advertiser:         types.BytesToAddress([]byte{7}),
		BudgetCt:           100,
		BidPerImpressionCt: 5,
	}
	if err := n.RegisterAdCampaign(c); err != nil {
		t.Fatalf("RegisterAdCampaign: %v", err)
	}
	if inv := n.AdInventory(); len(inv) != 1 || inv[0].ID != "launch" {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
	remaining, err := n.AdBudget("launch")
	if err != nil || remaining != 100 {
		t.Fatalf("AdBudget = %d, %v; want 100, nil", remaining, err)
	}
	if d := n.AdDistribution(); d.PlatformTakeBps+d.UserShareBps+d.TreasuryBps != 10_000 {
		t.Fatalf("distribution %+v does not sum to 10000 bps", d)
	}
	if !n.AdReadiness().Ready {
		t.Fatalf("broker should be ready with a funded campaign")
	}
	if state := n.AdBrokerState(); state["campaigns"] != 1 {
		t.Fatalf("unexpected broker state: %+v", state)
	}
}
