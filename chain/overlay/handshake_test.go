package overlay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestValidateAcceptsMatchingHello(t *testing.T) {
	local := NewHello("net-1", "node-a", 1, "", nil)
	remote := NewHello("net-1", "node-b", 2, "", nil)
	if err := Validate(local, remote); err != nil {
		t.Fatalf("expected matching hello to validate, got %v", err)
	}
}

func TestValidateRejectsNetworkMismatch(t *testing.T) {
	local := NewHello("net-1", "node-a", 1, "", nil)
	remote := NewHello("net-2", "node-b", 2, "", nil)
	err := Validate(local, remote)
	hsErr, ok := err.(*HandshakeError)
	if !ok || hsErr.Reason != "network_id" {
		t.Fatalf("expected network_id handshake error, got %v", err)
	}
}

func TestValidateRejectsMissingFeatureBits(t *testing.T) {
	local := NewHello("net-1", "node-a", 1, "", nil)
	remote := Hello{NetworkID: "net-1", ProtoVersion: ProtocolVersion, FeatureBits: FeatureFeeRoutingV2}
	err := Validate(local, remote)
	hsErr, ok := err.(*HandshakeError)
	if !ok || hsErr.Reason != "feature_bits" {
		t.Fatalf("expected feature_bits handshake error, got %v", err)
	}
}

func TestNewHelloAdvertisesQuicWhenConfigured(t *testing.T) {
	h := NewHello("net-1", "node-a", 1, "127.0.0.1:9001", []byte("cert"))
	if h.Transport != TransportQUIC {
		t.Fatalf("expected quic transport when quic addr set")
	}
	if h.FeatureBits&FeatureQUICTransport == 0 {
		t.Fatalf("expected quic feature bit set")
	}
}

func TestSendReceiveHelloRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverHello := NewHello("net-1", "node-server", 7, "", nil)

	var serverErr error
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serverErr = err
			return
		}
		defer conn.Close()
		if err := SendHello(conn, serverHello); err != nil {
			serverErr = err
			return
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got, err := ReceiveHello(conn)
	if err != nil {
		t.Fatalf("receive hello: %v", err)
	}
	if serverErr != nil {
		t.Fatalf("server: %v", serverErr)
	}
	if got.NetworkID != serverHello.NetworkID || got.Agent != serverHello.Agent {
		t.Fatalf("got hello %+v, want %+v", got, serverHello)
	}
}
