// Package node composes the compute market, economics engine, governance
// system, ledger chain and overlay service into one block-production
// pipeline. It is grounded on the teacher's chain/node/node.go composition
// root, with one deliberate redesign: the teacher wires its subsystems as
// package-level globals reached through a single *Node method receiver
// with no substitution point, where the REDESIGN note calls for ordinary
// struct fields assembled by the caller and passed in by reference, so
// tests and tooling can swap any one subsystem without the others.
package node

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/Ian-Reitsma/the-block/chain/compute"
	"github.com/Ian-Reitsma/the-block/chain/crypto"
	"github.com/Ian-Reitsma/the-block/chain/economics"
	"github.com/Ian-Reitsma/the-block/chain/governance"
	"github.com/Ian-Reitsma/the-block/chain/ledger"
	"github.com/Ian-Reitsma/the-block/chain/overlay"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Config mirrors the teacher's node.Config shape (data dir, network id,
// listen address, bootstrap peers) trimmed to the fields this
// composition actually consumes; gas/mining fields from the teacher's
// EVM-flavored config have no equivalent here and are dropped rather than
// carried as dead struct fields.
type Config struct {
	DataDir        string
	NetworkID      string
	ListenAddr     string
	BootstrapPeers []string
	MaxMempoolSize int
	OverlayBackend string // TB_RUNTIME_BACKEND
	OverlayDBPath  string // TB_OVERLAY_DB_PATH
	Lanes          []types.Lane
	MaxTxsPerBlock int
	ByteLimit      uint64

	P2PMaxPerSec      float64
	P2PMaxBytesPerSec float64

	CertCachePath   string // TB_PEER_CERT_CACHE_PATH
	CertDisableDisk bool   // TB_PEER_CERT_DISABLE_DISK
	GossipAlgo      string // TB_GOSSIP_ALGO
}

// DefaultConfig returns sane defaults for local development, mirroring the
// teacher's DefaultConfig constructor pattern.
func DefaultConfig() Config {
	return Config{
		DataDir:        "./data",
		NetworkID:      "the-block-dev",
		ListenAddr:     "0.0.0.0:30303",
		MaxMempoolSize: 5000,
		OverlayBackend: "stub",
		Lanes:          []types.Lane{types.LaneConsumer, types.LaneIndustrial},
		MaxTxsPerBlock: 2000,
		ByteLimit:      1 << 20,

		P2PMaxPerSec:      64,
		P2PMaxBytesPerSec: 1 << 22,
	}
}

// Node is the explicit composition of every subsystem a running instance
// needs, replacing the teacher's singleton globals (COMPUTE_MARKET,
// OVERLAY_SERVICE, PEER_CERTS) with plain struct fields set once at
// construction time.
type Node struct {
	Config Config

	Chain      *ledger.Chain
	Market     *compute.Market
	Economics  *economics.Engine
	Governance *governance.Gov
	Overlay    overlay.OverlayService
	Reputation map[string]*overlay.PeerReputation
	CertStore  *overlay.CertStore
	Limiter    *overlay.Limiter
	AdMarket   *economics.AdMarket
	History    *economics.HistoryStore
	Runtime    *RuntimeState

	signPub, signPriv []byte
	peerKeys          map[string][]byte
	lastRepSyncMs     int64
	lastHistoryEpoch  uint64

	clock func() time.Time
}

// New wires every subsystem from cfg, opening the ledger store and
// choosing the configured overlay backend, in the same "construct
// everything up front, fail fast on the first error" order as the
// teacher's NewNode. The node itself is the governance.RuntimeAdapter
// (see runtime.go): every activated proposal reaches either the live
// compute.Market or the node's own RuntimeState.
func New(cfg Config, econParams economics.Params, supply uint64, registry *governance.Registry, nodeKey []byte) (*Node, error) {
	chain, err := ledger.OpenChain(cfg.DataDir, cfg.MaxMempoolSize)
	if err != nil {
		return nil, fmt.Errorf("node: open chain: %w", err)
	}

	clock := func() time.Time { return time.Now() }
	market := compute.NewMarket(func() float64 { return float64(clock().UnixMilli()) / 1000 })

	econ := economics.NewEngine(supply, econParams)

	overlaySvc, err := overlay.NewOverlayService(cfg.OverlayBackend, cfg.OverlayDBPath)
	if err != nil {
		return nil, fmt.Errorf("node: open overlay: %w", err)
	}

	certStore, err := overlay.NewCertStore(nodeKey)
	if err != nil {
		return nil, fmt.Errorf("node: open cert store: %w", err)
	}
	if cfg.CertCachePath != "" && !cfg.CertDisableDisk {
		if err := certStore.Load(cfg.CertCachePath); err != nil {
			log.Printf("⚠️ node: cert cache load failed, starting empty: %v", err)
		}
	}

	signPub, signPriv, err := crypto.DeriveKey(nodeKey, "node-gossip-signing")
	if err != nil {
		return nil, fmt.Errorf("node: derive signing key: %w", err)
	}

	history, err := economics.NewHistoryStore(filepath.Join(cfg.DataDir, "governance", "history"))
	if err != nil {
		return nil, fmt.Errorf("node: open history store: %w", err)
	}
	if err := history.LoadKalman(econ); err != nil {
		return nil, fmt.Errorf("node: restore kalman state: %w", err)
	}
	if err := history.LoadUtilHistory(econ); err != nil {
		return nil, fmt.Errorf("node: restore util history: %w", err)
	}
	econ.OnRetuneRejected = func(m economics.Market, reason string) {
		if err := history.AppendEvent(clock(), fmt.Sprintf("retune rejected market=%s: %s", m, reason)); err != nil {
			log.Printf("⚠️ node: append retune event: %v", err)
		}
	}
	econ.OnKillSwitch = func(pct uint8) {
		if err := history.AppendEvent(clock(), fmt.Sprintf("kill-switch subsidy reduction pct=%d", pct)); err != nil {
			log.Printf("⚠️ node: append kill-switch event: %v", err)
		}
	}

	n := &Node{
		Config:     cfg,
		Chain:      chain,
		Market:     market,
		Economics:  econ,
		Overlay:    overlaySvc,
		Reputation: make(map[string]*overlay.PeerReputation),
		CertStore:  certStore,
		Limiter:    overlay.NewLimiter(cfg.P2PMaxPerSec, cfg.P2PMaxBytesPerSec),
		AdMarket:   economics.NewAdMarket(econ),
		History:    history,
		Runtime:    newRuntimeState(),
		signPub:    signPub,
		signPriv:   signPriv,
		peerKeys:   make(map[string][]byte),
		clock:      clock,
	}
	n.Governance = governance.NewGov(registry, governance.NewRuntime(n))
	return n, nil
}

// Close releases resources owned directly by Node (the ledger store and
// the overlay service's background watcher, if any), flushing the cert
// cache first when disk persistence is enabled.
func (n *Node) Close() error {
	if n.Config.CertCachePath != "" && !n.Config.CertDisableDisk {
		if err := n.CertStore.Save(n.Config.CertCachePath); err != nil {
			log.Printf("⚠️ node: cert cache save failed: %v", err)
		}
	}
	if err := n.Overlay.Close(); err != nil {
		return err
	}
	return n.Chain.Store.Close()
}

// PeerReputation returns (creating if absent) the reputation tracker for
// peerID, backed by that peer's PeerMetrics inside the overlay's peer set.
func (n *Node) PeerReputation(peerID string, decayInterval time.Duration, decayPerMille, matchBonus, dropPenalty int64) *overlay.PeerReputation {
	if rep, ok := n.Reputation[peerID]; ok {
		return rep
	}
	peer, ok := n.Overlay.Peers().Get(peerID)
	if !ok {
		peer = n.Overlay.Peers().Upsert(peerID, "", overlay.TransportTCP)
	}
	rep := overlay.NewPeerReputation(peer.Metrics, decayInterval, decayPerMille, matchBonus, dropPenalty)
	n.Reputation[peerID] = rep
	return rep
}
