package overlay

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// FeatureBit is a single advertised protocol capability, combined into a
// bitmask on Hello. Adapted from p2p.go's HandshakeData, which only carried
// a plain proto version with no capability negotiation; feature bits let
// the overlay reject peers that lack required wire-format support before
// any gossip is exchanged.
type FeatureBit uint64

const (
	FeatureFeeRoutingV2   FeatureBit = 1 << 0
	FeatureComputeMarketV1 FeatureBit = 1 << 1
	FeatureQUICTransport  FeatureBit = 1 << 2
)

// RequiredFeatures is the mask every peer must advertise to complete a
// handshake.
const RequiredFeatures = FeatureFeeRoutingV2 | FeatureComputeMarketV1

// ProtocolVersion is this node's wire-protocol version, compared exactly
// against a peer's advertised version; a mismatch is always rejected since
// this codebase does not support mixed-version gossip semantics.
const ProtocolVersion = 1

// Hello is the handshake payload exchanged before a peer is admitted to
// the overlay's active set.
type Hello struct {
	NetworkID      string
	ProtoVersion   uint32
	FeatureBits    FeatureBit
	Agent          string
	Nonce          uint64
	Transport      Transport
	QuicAddr       string
	QuicCert       []byte
	QuicFingerprint string
	QuicFingerprintPrevious []string
	QuicProvider   string
	QuicCapabilities []string
}

// HandshakeError records why a Hello was rejected, tagged with a reason
// string suitable for handshake_fail[reason] bookkeeping.
type HandshakeError struct {
	Reason string
	Detail string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("overlay: handshake rejected (%s): %s", e.Reason, e.Detail)
}

// NewHello builds this node's own Hello, advertising QUIC when a local
// QUIC identity is configured.
func NewHello(networkID, agent string, nonce uint64, quicAddr string, quicCert []byte) Hello {
	bits := RequiredFeatures
	transport := TransportTCP
	if quicAddr != "" {
		bits |= FeatureQUICTransport
		transport = TransportQUIC
	}
	return Hello{
		NetworkID:    networkID,
		ProtoVersion: ProtocolVersion,
		FeatureBits:  bits,
		Agent:        agent,
		Nonce:        nonce,
		Transport:    transport,
		QuicAddr:     quicAddr,
		QuicCert:     quicCert,
	}
}

// Validate checks a remote Hello against this node's expectations,
// returning a *HandshakeError with a reason suitable for handshake-failure
// metrics on rejection.
func Validate(local, remote Hello) error {
	if remote.NetworkID != local.NetworkID {
		return &HandshakeError{Reason: "network_id", Detail: fmt.Sprintf("want %s got %s", local.NetworkID, remote.NetworkID)}
	}
	if remote.ProtoVersion != local.ProtoVersion {
		return &HandshakeError{Reason: "proto_version", Detail: fmt.Sprintf("want %d got %d", local.ProtoVersion, remote.ProtoVersion)}
	}
	if remote.FeatureBits&RequiredFeatures != RequiredFeatures {
		return &HandshakeError{Reason: "feature_bits", Detail: fmt.Sprintf("missing required bits %b", RequiredFeatures&^remote.FeatureBits)}
	}
	return nil
}

// handshakeTimeout bounds how long SendHello/ReceiveHello wait for the wire
// round trip, matching the 15s deadline the teacher's performHandshake in
// chain/network/enhanced_p2p.go sets on the same exchange.
const handshakeTimeout = 15 * time.Second

// SendHello writes hello to conn as a JSON frame, the same
// conn.WriteJSON-based exchange the teacher's performHandshake uses before
// constructing a ValidatorPeer.
func SendHello(conn *websocket.Conn, hello Hello) error {
	if err := conn.SetWriteDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return fmt.Errorf("overlay: set write deadline: %w", err)
	}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("overlay: send hello: %w", err)
	}
	return nil
}

// ReceiveHello reads the peer's Hello frame off conn, bounded by
// handshakeTimeout so a stalled or malicious peer cannot hang the
// connecting goroutine indefinitely.
func ReceiveHello(conn *websocket.Conn) (Hello, error) {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return Hello{}, fmt.Errorf("overlay: set read deadline: %w", err)
	}
	var remote Hello
	if err := conn.ReadJSON(&remote); err != nil {
		return Hello{}, fmt.Errorf("overlay: receive hello: %w", err)
	}
	return remote, nil
}
