package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"

	"github.com/Ian-Reitsma/the-block/chain/crypto"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

// PayloadKind tags the wire payload variants. The set is closed: decoding
// an unknown kind fails rather than passing an opaque frame downstream.
type PayloadKind uint8

const (
	PayloadTx PayloadKind = iota
	PayloadBlobTx
	PayloadBlobChunk
	PayloadBlock
	PayloadHandshake
	PayloadHello
	PayloadChain
	PayloadReputation
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadTx:
		return "tx"
	case PayloadBlobTx:
		return "blob_tx"
	case PayloadBlobChunk:
		return "blob_chunk"
	case PayloadBlock:
		return "block"
	case PayloadHandshake:
		return "handshake"
	case PayloadHello:
		return "hello"
	case PayloadChain:
		return "chain"
	case PayloadReputation:
		return "reputation"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// BlobTx carries a transaction together with its sidecar blob.
type BlobTx struct {
	Tx       types.SignedTransaction
	Blob     []byte
	BlobHash types.Hash
}

// BlobChunk is one piece of a chunked blob transfer.
type BlobChunk struct {
	BlobHash types.Hash
	Index    uint32
	Total    uint32
	Data     []byte
}

// BlockPayload scopes a gossiped block to the shard whose peers should
// relay it.
type BlockPayload struct {
	Shard uint64
	Block *types.Block
}

// HelloPeers is the peer-address exchange sent after a completed handshake.
type HelloPeers struct {
	Addrs []string
}

// PeerScore is one entry of a reputation broadcast.
type PeerScore struct {
	Peer  string
	Score int64
}

// Payload is the tagged union of everything that crosses the gossip wire.
// The variant field matching Kind carries the content; Validate checks that
// this field is populated before a frame is signed or relayed, and does not
// reject a frame that also populates other variant fields.
type Payload struct {
	Kind PayloadKind

	Tx         *types.SignedTransaction `json:",omitempty"`
	BlobTx     *BlobTx                  `json:",omitempty"`
	BlobChunk  *BlobChunk               `json:",omitempty"`
	Block      *BlockPayload            `json:",omitempty"`
	Handshake  *Hello                   `json:",omitempty"`
	Hello      *HelloPeers              `json:",omitempty"`
	Chain      []*types.Block           `json:",omitempty"`
	Reputation []PeerScore              `json:",omitempty"`
}

// ErrPayloadShape is returned when a payload's populated variant does not
// match its Kind tag.
var ErrPayloadShape = errors.New("overlay: payload variant does not match kind")

// Validate checks that the variant field named by Kind is the one set.
func (p Payload) Validate() error {
	var ok bool
	switch p.Kind {
	case PayloadTx:
		ok = p.Tx != nil
	case PayloadBlobTx:
		ok = p.BlobTx != nil
	case PayloadBlobChunk:
		ok = p.BlobChunk != nil
	case PayloadBlock:
		ok = p.Block != nil && p.Block.Block != nil
	case PayloadHandshake:
		ok = p.Handshake != nil
	case PayloadHello:
		ok = p.Hello != nil
	case PayloadChain:
		ok = p.Chain != nil
	case PayloadReputation:
		ok = p.Reputation != nil
	default:
		return fmt.Errorf("overlay: unknown payload kind %d", p.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: kind=%s", ErrPayloadShape, p.Kind)
	}
	return nil
}

// Message is the signed gossip envelope: every frame a node emits carries
// a detached signature by its persistent net key so receivers can
// attribute drops and reputation events to a stable identity.
type Message struct {
	Body      Payload
	Signature []byte
	PublicKey []byte
}

// digest hashes the canonical JSON encoding of the body; JSON struct field
// order is fixed by the Go type definitions, so the encoding is stable for
// a given module version.
func (p Payload) digest() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("overlay: encode payload: %w", err)
	}
	return gethcrypto.Keccak256(raw), nil
}

// SignMessage wraps body into a Message signed by priv/pub.
func SignMessage(signer crypto.Signer, priv, pub []byte, body Payload) (Message, error) {
	d, err := body.digest()
	if err != nil {
		return Message{}, err
	}
	sig, err := signer.Sign(priv, d)
	if err != nil {
		return Message{}, fmt.Errorf("overlay: sign message: %w", err)
	}
	return Message{Body: body, Signature: sig, PublicKey: pub}, nil
}

// VerifyMessage checks the envelope signature against its embedded key.
func VerifyMessage(verifier crypto.Verifier, msg Message) error {
	d, err := msg.Body.digest()
	if err != nil {
		return err
	}
	ok, err := verifier.Verify(msg.PublicKey, d, msg.Signature)
	if err != nil {
		return fmt.Errorf("overlay: verify message: %w", err)
	}
	if !ok {
		return crypto.ErrInvalidSignature
	}
	return nil
}

const wireTimeout = 30 * time.Second

// WriteWireMessage sends msg to conn as a JSON frame, the same
// conn.WriteJSON framing the handshake exchange uses.
func WriteWireMessage(conn *websocket.Conn, msg Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wireTimeout)); err != nil {
		return fmt.Errorf("overlay: set write deadline: %w", err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("overlay: send %s: %w", msg.Body.Kind, err)
	}
	return nil
}

// ReadWireMessage reads one envelope off conn and validates its shape.
// Signature verification is left to the caller, which knows which
// verifier and reputation record to charge a failure against.
func ReadWireMessage(conn *websocket.Conn) (Message, error) {
	if err := conn.SetReadDeadline(time.Now().Add(wireTimeout)); err != nil {
		return Message{}, fmt.Errorf("overlay: set read deadline: %w", err)
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return Message{}, fmt.Errorf("overlay: receive message: %w", err)
	}
	if err := msg.Body.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
