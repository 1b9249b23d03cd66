package overlay

import (
	"errors"
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/crypto"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

func TestSignedMessageVerifies(t *testing.T) {
	pub, priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tx := &types.SignedTransaction{Payload: types.TxPayload{
		From:   types.BytesToAddress([]byte{1}),
		To:     types.BytesToAddress([]byte{2}),
		Amount: 100,
		Fee:    2,
		Pct:    50,
	}}
	msg, err := SignMessage(crypto.Ed25519Scheme{}, priv, pub, Payload{Kind: PayloadTx, Tx: tx})
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if err := VerifyMessage(crypto.Default, msg); err != nil {
		t.Fatalf("VerifyMessage: %v", err)
	}
}

func TestTamperedMessageFailsVerification(t *testing.T) {
	pub, priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	msg, err := SignMessage(crypto.Ed25519Scheme{}, priv, pub,
		Payload{Kind: PayloadReputation, Reputation: []PeerScore{{Peer: "p1", Score: 3}}})
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}

	msg.Body.Reputation[0].Score = 100
	if err := VerifyMessage(crypto.Default, msg); !errors.Is(err, crypto.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature on tampered body, got %v", err)
	}
}

func TestPayloadValidateRejectsShapeMismatch(t *testing.T) {
	cases := []struct {
		name string
		p    Payload
		ok   bool
	}{
		{"tx kind with tx", Payload{Kind: PayloadTx, Tx: &types.SignedTransaction{}}, true},
		{"tx kind without tx", Payload{Kind: PayloadTx}, false},
		{"block kind missing block", Payload{Kind: PayloadBlock, Block: &BlockPayload{Shard: 1}}, false},
		{"hello kind with addrs", Payload{Kind: PayloadHello, Hello: &HelloPeers{Addrs: []string{"a:1"}}}, true},
		{"chain kind with blocks", Payload{Kind: PayloadChain, Chain: []*types.Block{}}, true},
		{"unknown kind", Payload{Kind: PayloadKind(99)}, false},
	}
	for _, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected rejection: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestSignMessageRejectsInvalidShape(t *testing.T) {
	pub, priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := SignMessage(crypto.Ed25519Scheme{}, priv, pub, Payload{Kind: PayloadBlobChunk}); err == nil {
		t.Fatalf("expected shape rejection before signing")
	}
}
