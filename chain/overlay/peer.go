// Package overlay implements peer routing, handshake validation,
// shard-aware fanout, token-bucket backpressure, reputation decay, and
// certificate rotation for gossip. Peer bookkeeping (map-of-peers guarded
// by one mutex, LastSeen tracking) is adapted from the teacher's
// chain/node/p2p.go P2PNetwork/Peer pair and chain/network/enhanced_p2p.go's
// ValidatorPeer, generalized with the reputation/backpressure/fanout
// dimensions spec.md's gossip layer requires that the teacher's P2P layer
// does not have.
package overlay

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Transport is the wire transport a peer is reachable over.
type Transport uint8

const (
	TransportTCP Transport = iota
	TransportQUIC
)

func (t Transport) String() string {
	if t == TransportQUIC {
		return "quic"
	}
	return "tcp"
}

// Peer is one entry in the overlay's known-peer set.
type Peer struct {
	ID        string
	Addr      string
	Transport Transport
	Cert      []byte
	Shards    map[uint64]struct{} // shard ids this peer is known to track
	LastSeen  time.Time

	Metrics *types.PeerMetrics

	// Conn is the live websocket connection backing this peer, set once the
	// handshake in handshake.go completes. Nil for a peer only known from
	// gossip/persisted state that hasn't connected (yet). Mirrors the
	// teacher's ValidatorPeer.Conn field in chain/network/enhanced_p2p.go.
	Conn *websocket.Conn `json:"-"`
}

// Close releases the peer's live connection, if any. Safe to call on a
// peer with no connection.
func (p *Peer) Close() error {
	if p.Conn == nil {
		return nil
	}
	err := p.Conn.Close()
	p.Conn = nil
	return err
}

func newPeer(id, addr string, transport Transport) *Peer {
	return &Peer{
		ID:        id,
		Addr:      addr,
		Transport: transport,
		Shards:    make(map[uint64]struct{}),
		Metrics:   types.NewPeerMetrics(),
		LastSeen:  time.Now(),
	}
}

// TracksShard reports whether peer is known to track shard s.
func (p *Peer) TracksShard(s uint64) bool {
	_, ok := p.Shards[s]
	return ok
}

// PeerSet is the coarse-locked registry of known peers, matching the
// teacher's single sync.RWMutex-guarded peers map rather than per-peer
// locks, since overlay operations (fanout selection, backpressure sweeps)
// routinely need a consistent view of the whole set.
type PeerSet struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewPeerSet creates an empty peer registry.
func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[string]*Peer)}
}

// Upsert adds or refreshes a peer entry, returning it.
func (s *PeerSet) Upsert(id, addr string, transport Transport) *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.peers[id]; ok {
		p.Addr = addr
		p.Transport = transport
		p.LastSeen = time.Now()
		return p
	}
	p := newPeer(id, addr, transport)
	s.peers[id] = p
	return p
}

// Get returns a peer by id.
func (s *PeerSet) Get(id string) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

// Remove drops a peer from the set.
func (s *PeerSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

// All returns a snapshot slice of every known peer.
func (s *PeerSet) All() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// SetShards replaces peer id's tracked-shard set, called when a peer's
// shard assignment is learned via handshake or gossip metadata.
func (s *PeerSet) SetShards(id string, shards []uint64) error {
	s.mu.RLock()
	p, ok := s.peers[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("overlay: unknown peer %s", id)
	}
	m := make(map[uint64]struct{}, len(shards))
	for _, sh := range shards {
		m[sh] = struct{}{}
	}
	p.Shards = m
	return nil
}
