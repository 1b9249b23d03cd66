package overlay

import (
	"hash/fnv"
	"sort"
)

// FanoutAlgo selects how shard broadcasts pick a peer subset. Selected via
// TB_GOSSIP_ALGO; default broadcasts to every peer tracking the shard,
// turbine builds a tree and only forwards to direct children.
type FanoutAlgo uint8

const (
	FanoutDefault FanoutAlgo = iota
	FanoutTurbine
)

// ParseFanoutAlgo maps a TB_GOSSIP_ALGO value to its algorithm; anything
// other than "turbine" (including empty) selects the default fanout.
func ParseFanoutAlgo(s string) FanoutAlgo {
	if s == "turbine" {
		return FanoutTurbine
	}
	return FanoutDefault
}

// BroadcastTargets returns every peer that should receive a non-shard
// payload: the full peer set, per p2p.go's broadcastMessage which fans out
// to every connected peer unconditionally.
func BroadcastTargets(peers []*Peer) []*Peer {
	return peers
}

// TurbineTargets returns the direct turbine children of localID over the
// full peer set, for payloads that fan out tree-wise without shard
// scoping (reputation sync).
func TurbineTargets(peers []*Peer, localID string) []*Peer {
	return turbineChildren(peers, localID)
}

// ShardTargets selects the peers a shard-scoped payload should be sent to,
// given the configured fanout algorithm and this node's own peer id (used
// as the turbine tree root when acting as originator).
func ShardTargets(peers []*Peer, shard uint64, algo FanoutAlgo, localID string) []*Peer {
	tracking := make([]*Peer, 0, len(peers))
	for _, p := range peers {
		if p.TracksShard(shard) {
			tracking = append(tracking, p)
		}
	}
	if algo != FanoutTurbine {
		return tracking
	}
	return turbineChildren(tracking, localID)
}

// turbineChildren builds a deterministic tree over tracking peers keyed by
// peer-id hash (root is localID, branching factor fixed at turbineFanout)
// and returns only the direct children of localID, mirroring how a Turbine
// relay forwards shreds to its immediate fanout set rather than the whole
// tree.
const turbineFanout = 4

func turbineChildren(tracking []*Peer, localID string) []*Peer {
	ordered := append([]*Peer(nil), tracking...)
	sort.Slice(ordered, func(i, j int) bool {
		return peerIDHash(ordered[i].ID) < peerIDHash(ordered[j].ID)
	})

	ids := make([]string, 0, len(ordered)+1)
	ids = append(ids, localID)
	for _, p := range ordered {
		if p.ID != localID {
			ids = append(ids, p.ID)
		}
	}

	rootIdx := -1
	for i, id := range ids {
		if id == localID {
			rootIdx = i
			break
		}
	}
	if rootIdx < 0 {
		return nil
	}

	byID := make(map[string]*Peer, len(ordered))
	for _, p := range ordered {
		byID[p.ID] = p
	}

	children := make([]*Peer, 0, turbineFanout)
	for c := 1; c <= turbineFanout; c++ {
		idx := rootIdx*turbineFanout + c
		if idx >= len(ids) {
			break
		}
		if p, ok := byID[ids[idx]]; ok {
			children = append(children, p)
		}
	}
	return children
}

func peerIDHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
