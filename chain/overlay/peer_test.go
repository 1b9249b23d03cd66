package overlay

import "testing"

func TestPeerSetUpsertAndGet(t *testing.T) {
	s := NewPeerSet()
	p := s.Upsert("peer-1", "10.0.0.1:9000", TransportQUIC)
	if p.Transport != TransportQUIC {
		t.Fatalf("expected quic transport, got %v", p.Transport)
	}
	got, ok := s.Get("peer-1")
	if !ok || got.Addr != "10.0.0.1:9000" {
		t.Fatalf("expected peer to be retrievable, got %+v ok=%v", got, ok)
	}
	if len(s.All()) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(s.All()))
	}
}

func TestPeerSetShardsAndTracking(t *testing.T) {
	s := NewPeerSet()
	s.Upsert("peer-1", "addr", TransportTCP)
	if err := s.SetShards("peer-1", []uint64{1, 2, 3}); err != nil {
		t.Fatalf("SetShards: %v", err)
	}
	p, _ := s.Get("peer-1")
	if !p.TracksShard(2) || p.TracksShard(9) {
		t.Fatalf("unexpected shard tracking state: %+v", p.Shards)
	}
	if err := s.SetShards("unknown", []uint64{1}); err == nil {
		t.Fatalf("expected error for unknown peer")
	}
}

func TestPeerSetRemove(t *testing.T) {
	s := NewPeerSet()
	s.Upsert("peer-1", "addr", TransportTCP)
	s.Remove("peer-1")
	if _, ok := s.Get("peer-1"); ok {
		t.Fatalf("expected peer removed")
	}
}

func TestPeerCloseWithNoConnIsNoop(t *testing.T) {
	p := newPeer("peer-1", "addr", TransportTCP)
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error closing a peer with no connection, got %v", err)
	}
}
