package overlay

import (
	"sync"
	"time"
)

// TokenBucket is a straight adaptation of enhanced_p2p.go's TokenBucket:
// capacity tokens refilled continuously at refillRate/sec, consumed by
// Allow. Kept per-peer rather than per-client-id since overlay peers are
// already keyed by peer id.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
}

// NewTokenBucket creates a bucket starting full.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (b *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Consume attempts to take n tokens, returning whether it succeeded.
func (b *TokenBucket) Consume(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// DropReason categorizes why a request was rejected by the backpressure
// layer, matching the reason strings recorded into PeerMetrics.Drops.
type DropReason string

const (
	DropRate      DropReason = "rate"
	DropSize      DropReason = "size"
	DropProtocol  DropReason = "protocol"
	DropHandshake DropReason = "handshake"
	DropThrottled DropReason = "throttled"
)

// Limiter enforces per-peer request-rate and byte-rate token buckets,
// generalizing enhanced_p2p.go's RateLimiter (which keyed buckets by a
// bare client-id string with no byte-budget dimension) to the two
// independent caps spec.md's backpressure rule names:
// p2p_max_per_sec and p2p_max_bytes_per_sec.
type Limiter struct {
	mu           sync.Mutex
	requestLimit float64
	byteLimit    float64
	buckets      map[string]*peerBuckets
}

type peerBuckets struct {
	requests *TokenBucket
	bytes    *TokenBucket
}

// NewLimiter builds a Limiter enforcing maxPerSec requests and
// maxBytesPerSec bytes, per peer.
func NewLimiter(maxPerSec, maxBytesPerSec float64) *Limiter {
	return &Limiter{
		requestLimit: maxPerSec,
		byteLimit:    maxBytesPerSec,
		buckets:      make(map[string]*peerBuckets),
	}
}

func (l *Limiter) bucketsFor(peerID string) *peerBuckets {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[peerID]
	if !ok {
		b = &peerBuckets{
			requests: NewTokenBucket(l.requestLimit, l.requestLimit),
			bytes:    NewTokenBucket(l.byteLimit, l.byteLimit),
		}
		l.buckets[peerID] = b
	}
	return b
}

// Allow consumes one request token and size bytes from peerID's buckets,
// recording a categorized drop into metrics on rejection and a match
// (reputation bump) on acceptance. Returns the reason empty on success.
func Allow(l *Limiter, peerID string, size uint64, metrics *PeerReputation) (bool, DropReason) {
	b := l.bucketsFor(peerID)
	if !b.requests.Consume(1) {
		if metrics != nil {
			metrics.RecordDrop(DropRate)
		}
		return false, DropRate
	}
	if !b.bytes.Consume(float64(size)) {
		if metrics != nil {
			metrics.RecordDrop(DropSize)
		}
		return false, DropSize
	}
	if metrics != nil {
		metrics.RecordMatch()
	}
	return true, ""
}

// RemovePeer evicts a peer's buckets, used when a peer is dropped from
// the overlay's active set.
func (l *Limiter) RemovePeer(peerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, peerID)
}
