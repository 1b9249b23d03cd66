package overlay

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStubServiceIsInMemoryOnly(t *testing.T) {
	svc := NewStubService()
	svc.Peers().Upsert("peer-1", "addr", TransportTCP)
	if err := svc.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestInhouseServicePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")

	svc, err := NewInhouseService(path)
	if err != nil {
		t.Fatalf("NewInhouseService: %v", err)
	}
	defer svc.Close()

	svc.Peers().Upsert("peer-1", "10.0.0.1:9000", TransportQUIC)
	if err := svc.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reopened, err := NewInhouseService(path)
	if err != nil {
		t.Fatalf("NewInhouseService reopen: %v", err)
	}
	defer reopened.Close()

	p, ok := reopened.Peers().Get("peer-1")
	if !ok || p.Transport != TransportQUIC {
		t.Fatalf("expected persisted peer reloaded, got %+v ok=%v", p, ok)
	}
}

func TestInhouseServiceHotReloadsOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")

	writer, err := NewInhouseService(path)
	if err != nil {
		t.Fatalf("NewInhouseService writer: %v", err)
	}
	defer writer.Close()
	writer.Peers().Upsert("peer-1", "addr", TransportTCP)
	if err := writer.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reader, err := NewInhouseService(path)
	if err != nil {
		t.Fatalf("NewInhouseService reader: %v", err)
	}
	defer reader.Close()

	writer.Peers().Upsert("peer-2", "addr2", TransportTCP)
	if err := writer.Persist(); err != nil {
		t.Fatalf("Persist update: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reader.Peers().Get("peer-2"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected reader to hot-reload peer-2 within deadline")
}

func TestNewOverlayServiceResolvesBackend(t *testing.T) {
	svc, err := NewOverlayService("stub", "")
	if err != nil {
		t.Fatalf("NewOverlayService stub: %v", err)
	}
	if _, ok := svc.(*StubService); !ok {
		t.Fatalf("expected *StubService for backend=stub")
	}

	dir := t.TempDir()
	inhouse, err := NewOverlayService("inhouse", filepath.Join(dir, "peers.json"))
	if err != nil {
		t.Fatalf("NewOverlayService inhouse: %v", err)
	}
	defer inhouse.Close()
	if _, ok := inhouse.(*InhouseService); !ok {
		t.Fatalf("expected *InhouseService for backend=inhouse")
	}
}
