package overlay

import "testing"

func buildPeers(ids ...string) []*Peer {
	peers := make([]*Peer, 0, len(ids))
	for _, id := range ids {
		p := newPeer(id, id+":9000", TransportTCP)
		p.Shards[1] = struct{}{}
		peers = append(peers, p)
	}
	return peers
}

func TestBroadcastTargetsReturnsAllPeers(t *testing.T) {
	peers := buildPeers("a", "b", "c")
	targets := BroadcastTargets(peers)
	if len(targets) != 3 {
		t.Fatalf("expected all 3 peers as broadcast targets, got %d", len(targets))
	}
}

func TestShardTargetsFiltersByTrackedShard(t *testing.T) {
	peers := buildPeers("a", "b")
	peers = append(peers, newPeer("c", "c:9000", TransportTCP)) // tracks no shards

	targets := ShardTargets(peers, 1, FanoutDefault, "local")
	if len(targets) != 2 {
		t.Fatalf("expected 2 peers tracking shard 1, got %d", len(targets))
	}
}

func TestShardTargetsTurbineReturnsSubsetOfTracking(t *testing.T) {
	peers := buildPeers("a", "b", "c", "d", "e", "f")
	targets := ShardTargets(peers, 1, FanoutTurbine, "local")
	if len(targets) == 0 || len(targets) > turbineFanout {
		t.Fatalf("expected turbine fanout to bound children to %d, got %d", turbineFanout, len(targets))
	}
	for _, tgt := range targets {
		found := false
		for _, p := range peers {
			if p.ID == tgt.ID {
				found = true
			}
		}
		if !found {
			t.Fatalf("turbine child %s not in original tracking set", tgt.ID)
		}
	}
}
