package node

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"

	"github.com/Ian-Reitsma/the-block/chain/crypto"
	"github.com/Ian-Reitsma/the-block/chain/economics"
	"github.com/Ian-Reitsma/the-block/chain/overlay"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

// The methods in this file are the node's RPC surface: plain Go methods a
// framing layer dispatches to (net.peer_stats*, net.peer_throttle,
// net.backpressure_clear, compute_market.scheduler_stats,
// net.reputation_sync, net.key_rotate, gateway.dns_lookup, ad_market.*).
// The wire framing itself is an external collaborator; cmd/net drives the
// same methods from the CLI side.

var (
	// ErrUnknownPeer maps to CLI exit code 2.
	ErrUnknownPeer = errors.New("node: unknown peer")
	// ErrUnauthorized maps to CLI exit code 3.
	ErrUnauthorized = errors.New("node: unauthorized")
	// ErrSyncDebounced is returned when a reputation sync is requested
	// inside the debounce window.
	ErrSyncDebounced = errors.New("node: reputation sync debounced")
)

// PeerStats returns one peer's metrics (net.peer_stats).
func (n *Node) PeerStats(peerID string) (*types.PeerMetrics, error) {
	peer, ok := n.Overlay.Peers().Get(peerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	return peer.Metrics, nil
}

// PeerStatsEntry pairs a peer id with its metrics for paginated listings.
type PeerStatsEntry struct {
	PeerID  string
	Metrics *types.PeerMetrics
}

// PeerStatsAll returns a deterministic page of every peer's metrics
// (net.peer_stats_all).
func (n *Node) PeerStatsAll(offset, limit int) []PeerStatsEntry {
	peers := n.Overlay.Peers().All()
	entries := make([]PeerStatsEntry, 0, len(peers))
	for _, p := range peers {
		entries = append(entries, PeerStatsEntry{PeerID: p.ID, Metrics: p.Metrics})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PeerID < entries[j].PeerID })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// PeerStatsReset zeroes a peer's accumulated metrics (net.peer_stats_reset).
func (n *Node) PeerStatsReset(peerID string) error {
	peer, ok := n.Overlay.Peers().Get(peerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	*peer.Metrics = *types.NewPeerMetrics()
	return nil
}

// PeerStatsExport writes one peer's metrics (or, with peerID == "", every
// peer's) to path as JSON (net.peer_stats_export).
func (n *Node) PeerStatsExport(peerID, path string) error {
	var v interface{}
	if peerID == "" {
		v = n.PeerStatsAll(0, 0)
	} else {
		m, err := n.PeerStats(peerID)
		if err != nil {
			return err
		}
		v = m
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("node: encode peer stats: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("node: export peer stats: %w", err)
	}
	return nil
}

// PeerStatsPersist forces the overlay backend to flush the peer set to
// disk (net.peer_stats_persist).
func (n *Node) PeerStatsPersist() error {
	return n.Overlay.Persist()
}

// PeerThrottle sets or clears a peer's throttle window (net.peer_throttle).
func (n *Node) PeerThrottle(peerID string, untilMs int64, reason string, clear bool) error {
	peer, ok := n.Overlay.Peers().Get(peerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	if clear {
		peer.Metrics.ThrottledUntil = 0
		peer.Metrics.ThrottleReason = ""
		return nil
	}
	rep := n.PeerReputation(peerID, 0, 1000, 0, 0)
	rep.Throttle(untilMs, reason)
	return nil
}

// BackpressureClear drops a peer's token buckets so its next request
// starts from a full refill (net.backpressure_clear).
func (n *Node) BackpressureClear(peerID string) error {
	if _, ok := n.Overlay.Peers().Get(peerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	n.Limiter.RemovePeer(peerID)
	return nil
}

// SchedulerStats returns the compute market's scheduler snapshot
// (compute_market.scheduler_stats).
func (n *Node) SchedulerStats() map[string]interface{} {
	return n.Market.GetMarketStats()
}

// reputationSyncDebounceMs bounds how often a reputation broadcast may be
// assembled, regardless of how many RPC or CLI callers ask for one.
const reputationSyncDebounceMs = 5_000

// ReputationSync assembles a signed reputation broadcast of every known
// peer's score and the turbine children it should be relayed to
// (net.reputation_sync). Calls inside the debounce window return
// ErrSyncDebounced without touching the last-sync clock.
func (n *Node) ReputationSync() (overlay.Message, []*overlay.Peer, error) {
	nowMs := n.clock().UnixMilli()
	if n.lastRepSyncMs != 0 && nowMs-n.lastRepSyncMs < reputationSyncDebounceMs {
		return overlay.Message{}, nil, ErrSyncDebounced
	}

	peers := n.Overlay.Peers().All()
	scores := make([]overlay.PeerScore, 0, len(peers))
	for _, p := range peers {
		scores = append(scores, overlay.PeerScore{Peer: p.ID, Score: p.Metrics.ReputationScore})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Peer < scores[j].Peer })

	msg, err := overlay.SignMessage(crypto.Ed25519Scheme{}, n.signPriv, n.signPub,
		overlay.Payload{Kind: overlay.PayloadReputation, Reputation: scores})
	if err != nil {
		return overlay.Message{}, nil, err
	}
	n.lastRepSyncMs = nowMs
	return msg, overlay.TurbineTargets(peers, n.localPeerID()), nil
}

// localPeerID is this node's stable overlay identity, derived from its
// signing key the same way remote peers will attribute its frames.
func (n *Node) localPeerID() string {
	return hex.EncodeToString(n.signPub)
}

// ShardFanout returns the peers a shard-scoped payload should be relayed
// to under the configured gossip algorithm (TB_GOSSIP_ALGO).
func (n *Node) ShardFanout(shard uint64) []*overlay.Peer {
	return overlay.ShardTargets(n.Overlay.Peers().All(), shard,
		overlay.ParseFanoutAlgo(n.Config.GossipAlgo), n.localPeerID())
}

// KeyRotate installs a peer's new public key after verifying the rotation
// is signed by the key currently on file (net.key_rotate). The first key
// seen for a peer is accepted unverified, the same trust-on-first-use
// policy the certificate store applies to fingerprints.
func (n *Node) KeyRotate(peerID string, newKey, signature []byte) error {
	if _, ok := n.Overlay.Peers().Get(peerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	current, ok := n.peerKeys[peerID]
	if !ok {
		n.peerKeys[peerID] = append([]byte(nil), newKey...)
		return nil
	}
	ok, err := crypto.Default.Verify(current, newKey, signature)
	if err != nil || !ok {
		return fmt.Errorf("%w: key rotation for %s not signed by current key", ErrUnauthorized, peerID)
	}
	n.peerKeys[peerID] = append([]byte(nil), newKey...)
	return nil
}

// DNSLookup resolves a bootstrap domain and reports whether it verified to
// at least one address (gateway.dns_lookup). Resolution failure is a
// negative verification, not an error; only malformed input errors.
func (n *Node) DNSLookup(domain string) (verified bool, err error) {
	if domain == "" {
		return false, errors.New("node: empty domain")
	}
	addrs, err := net.LookupHost(domain)
	if err != nil {
		return false, nil
	}
	return len(addrs) > 0, nil
}

// RegisterAdCampaign forwards ad_market.register_campaign to the broker.
func (n *Node) RegisterAdCampaign(c economics.Campaign) error {
	return n.AdMarket.RegisterCampaign(c)
}

// AdInventory forwards ad_market.inventory.
func (n *Node) AdInventory() []economics.Campaign {
	return n.AdMarket.Inventory()
}

// AdBudget forwards ad_market.budget.
func (n *Node) AdBudget(campaignID string) (uint64, error) {
	return n.AdMarket.Budget(campaignID)
}

// AdDistribution forwards ad_market.distribution.
func (n *Node) AdDistribution() economics.AdDistribution {
	return n.AdMarket.Distribution()
}

// AdReadiness forwards ad_market.readiness.
func (n *Node) AdReadiness() economics.AdReadiness {
	return n.AdMarket.Readiness()
}

// AdBrokerState forwards ad_market.broker_state.
func (n *Node) AdBrokerState() map[string]interface{} {
	return n.AdMarket.BrokerState()
}
