package overlay

import (
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

func TestLimiterThrottlesBurstAboveRate(t *testing.T) {
	limiter := NewLimiter(10, 1<<20)
	metrics := types.NewPeerMetrics()
	rep := NewPeerReputation(metrics, 0, 1000, 1, 5)

	accepted := 0
	for i := 0; i < 12; i++ {
		ok, _ := Allow(limiter, "peer-1", 1, rep)
		if ok {
			accepted++
		}
	}
	if accepted != 10 {
		t.Fatalf("expected 10 accepted within burst, got %d", accepted)
	}
	if metrics.Drops["rate"] != 2 {
		t.Fatalf("expected 2 rate drops recorded, got %d", metrics.Drops["rate"])
	}
}

func TestLimiterDropsOversizedPayload(t *testing.T) {
	limiter := NewLimiter(100, 10)
	metrics := types.NewPeerMetrics()
	rep := NewPeerReputation(metrics, 0, 1000, 1, 5)

	ok, reason := Allow(limiter, "peer-1", 100, rep)
	if ok || reason != DropSize {
		t.Fatalf("expected size drop, got ok=%v reason=%v", ok, reason)
	}
	if metrics.Drops["size"] != 1 {
		t.Fatalf("expected 1 size drop recorded, got %d", metrics.Drops["size"])
	}
}

func TestLimiterRemovePeerResetsBuckets(t *testing.T) {
	limiter := NewLimiter(1, 1<<20)
	metrics := types.NewPeerMetrics()
	rep := NewPeerReputation(metrics, 0, 1000, 1, 5)

	Allow(limiter, "peer-1", 1, rep)
	ok, _ := Allow(limiter, "peer-1", 1, rep)
	if ok {
		t.Fatalf("expected second request to be rate limited before reset")
	}
	limiter.RemovePeer("peer-1")
	ok, _ = Allow(limiter, "peer-1", 1, rep)
	if !ok {
		t.Fatalf("expected fresh bucket after RemovePeer")
	}
}
