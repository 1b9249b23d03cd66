package overlay

import (
	"sync"
	"time"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// PeerReputation wraps a peer's types.PeerMetrics with the decay and
// throttle rules spec.md's backpressure-and-reputation section describes:
// matches increase score, drops decrease it, and score decays
// multiplicatively every decay interval. The teacher's ValidatorPeer
// carried a bare float64 Reputation with no decay or throttle semantics;
// those are new here, layered onto the pre-existing PeerMetrics record
// rather than a parallel struct.
type PeerReputation struct {
	mu      sync.Mutex
	metrics *types.PeerMetrics

	decayInterval time.Duration
	decayPerMille int64 // peer_reputation_decay, applied as score * decayPerMille / 1000
	matchBonus    int64
	dropPenalty   int64
}

// NewPeerReputation wraps metrics with the given decay configuration.
// decayPerMille is peer_reputation_decay (e.g. 990 decays 1% per interval).
func NewPeerReputation(metrics *types.PeerMetrics, decayInterval time.Duration, decayPerMille, matchBonus, dropPenalty int64) *PeerReputation {
	return &PeerReputation{
		metrics:       metrics,
		decayInterval: decayInterval,
		decayPerMille: decayPerMille,
		matchBonus:    matchBonus,
		dropPenalty:   dropPenalty,
	}
}

// MaybeDecay applies one decay step if decayInterval has elapsed since the
// last decay, given the current unix-millis clock reading now.
func (r *PeerReputation) MaybeDecay(now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now-r.metrics.DecayLast < r.decayInterval.Milliseconds() {
		return
	}
	r.metrics.ReputationScore = r.metrics.ReputationScore * r.decayPerMille / 1000
	r.metrics.DecayLast = now
}

// RecordMatch bumps reputation for a successfully routed request.
func (r *PeerReputation) RecordMatch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.ReputationScore += r.matchBonus
}

// RecordDrop penalizes reputation and tallies the drop reason.
func (r *PeerReputation) RecordDrop(reason DropReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.ReputationScore -= r.dropPenalty
	if r.metrics.Drops == nil {
		r.metrics.Drops = make(map[string]uint64)
	}
	r.metrics.Drops[string(reason)]++
}

// RecordHandshakeFailure tallies a handshake rejection by reason.
func (r *PeerReputation) RecordHandshakeFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metrics.HandshakeFail == nil {
		r.metrics.HandshakeFail = make(map[string]uint64)
	}
	r.metrics.HandshakeFail[reason]++
}

// Throttle marks the peer as throttled until the given unix-millis
// timestamp, for the given reason.
func (r *PeerReputation) Throttle(until int64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.ThrottledUntil = until
	r.metrics.ThrottleReason = reason
}

// IsThrottled reports whether the peer is currently throttled as of now
// (unix millis), recording a throttled drop if so.
func (r *PeerReputation) IsThrottled(now int64) bool {
	r.mu.Lock()
	throttled := now < r.metrics.ThrottledUntil
	r.mu.Unlock()
	if throttled {
		r.RecordDrop(DropThrottled)
	}
	return throttled
}

// Score returns the current reputation score.
func (r *PeerReputation) Score() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics.ReputationScore
}
