package overlay

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCertStoreObserveAndVerifyCurrent(t *testing.T) {
	s, err := NewCertStore([]byte("node-key-material"))
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	now := time.Now()
	s.Observe("peer-1", "quic-provider", "fp-1", now)
	if !s.Verify("peer-1", "quic-provider", "fp-1", now) {
		t.Fatalf("expected current fingerprint to verify")
	}
	if s.Verify("peer-1", "quic-provider", "fp-unknown", now) {
		t.Fatalf("expected unknown fingerprint to fail verification")
	}
}

func TestCertStoreAcceptsHistoricalFingerprintWithinWindow(t *testing.T) {
	s, err := NewCertStore([]byte("node-key-material"))
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	t0 := time.Now()
	s.Observe("peer-1", "quic-provider", "fp-1", t0)
	s.Observe("peer-1", "quic-provider", "fp-2", t0.Add(time.Minute))

	if !s.Verify("peer-1", "quic-provider", "fp-1", t0.Add(2*time.Minute)) {
		t.Fatalf("expected historical fingerprint to verify within window")
	}
	if !s.Verify("peer-1", "quic-provider", "fp-2", t0.Add(2*time.Minute)) {
		t.Fatalf("expected current fingerprint to verify")
	}
	if s.Verify("peer-1", "quic-provider", "fp-1", t0.Add(CertHistoryMaxAge*2)) {
		t.Fatalf("expected expired historical fingerprint to fail verification")
	}
}

func TestCertStoreSealOpenRoundTrip(t *testing.T) {
	s, err := NewCertStore([]byte("node-key-material"))
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	sealed, err := s.Seal([]byte("plaintext payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(opened) != "plaintext payload" {
		t.Fatalf("expected round trip plaintext, got %q", opened)
	}
}

func TestCertStoreHistoryBounded(t *testing.T) {
	s, err := NewCertStore([]byte("node-key-material"))
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	base := time.Now()
	for i := 0; i < CertHistoryLimit+5; i++ {
		s.Observe("peer-1", "p", string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
	}
	rec := s.records[certKey{"peer-1", "p"}]
	if len(rec.History) > CertHistoryLimit {
		t.Fatalf("expected history bounded to %d, got %d", CertHistoryLimit, len(rec.History))
	}
}

func TestCertStoreRoundTripsThroughSealedDisk(t *testing.T) {
	key := []byte("node-key-material")
	s, err := NewCertStore(key)
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	now := time.Now()
	s.Observe("peer-1", "quic-provider", "fp-1", now)
	s.Observe("peer-1", "quic-provider", "fp-2", now.Add(time.Minute))

	path := filepath.Join(t.TempDir(), "quic_peer_certs.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := NewCertStore(key)
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !restored.Verify("peer-1", "quic-provider", "fp-2", now) {
		t.Fatalf("current fingerprint lost across save/load")
	}
	if !restored.Verify("peer-1", "quic-provider", "fp-1", now.Add(time.Hour)) {
		t.Fatalf("historical fingerprint lost across save/load")
	}

	wrongKey, err := NewCertStore([]byte("different-key-material"))
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	if err := wrongKey.Load(path); err == nil {
		t.Fatalf("expected AEAD rejection under a different node key")
	}
}

func TestCertStoreLoadMissingFileLeavesStoreEmpty(t *testing.T) {
	s, err := NewCertStore([]byte("node-key-material"))
	if err != nil {
		t.Fatalf("NewCertStore: %v", err)
	}
	if err := s.Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("Load of absent file: %v", err)
	}
	if s.Verify("peer-1", "p", "fp", time.Now()) {
		t.Fatalf("empty store should verify nothing")
	}
}
