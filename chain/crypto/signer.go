// Package crypto defines the signature-verification boundary the core
// consumes. The concrete post-quantum primitives (Ed25519 replacement,
// BLAKE3, VRF, Groth16) are external collaborators per the specification;
// this package only needs an interface stable enough for the ledger,
// governance and overlay packages to call, plus one concrete
// crypto/ed25519-backed implementation to exercise it in tests.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidSignature is returned when verification fails cleanly (as
// opposed to a malformed input, which returns a distinct error).
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// Verifier checks a detached signature over a message.
type Verifier interface {
	Verify(publicKey, message, signature []byte) (bool, error)
}

// Signer produces a detached signature over a message.
type Signer interface {
	Sign(privateKey, message []byte) ([]byte, error)
}

// Ed25519Scheme is the stand-in signature scheme used at the crypto
// boundary. Production deployments would plug in whatever
// quantum-resistant scheme the node is configured for; the core is
// agnostic past the Verifier/Signer interface.
type Ed25519Scheme struct{}

// Verify implements Verifier.
func (Ed25519Scheme) Verify(publicKey, message, signature []byte) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, errors.New("crypto: invalid public key size")
	}
	if len(signature) != ed25519.SignatureSize {
		return false, errors.New("crypto: invalid signature size")
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature), nil
}

// Sign implements Signer.
func (Ed25519Scheme) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("crypto: invalid private key size")
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), message), nil
}

// GenerateKey generates a fresh ed25519 keypair for tests and tooling.
func GenerateKey() (pub, priv []byte, err error) {
	p, s, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, err
	}
	return []byte(p), []byte(s), nil
}

// DeriveKey stretches arbitrary key material (the node's persisted net
// key) into a deterministic ed25519 keypair via HKDF-SHA256, so callers
// holding a raw key file of any length get a usable signing identity.
func DeriveKey(material []byte, context string) (pub, priv []byte, err error) {
	kdf := hkdf.New(sha256.New, material, nil, []byte(context))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, nil, err
	}
	s := ed25519.NewKeyFromSeed(seed)
	return []byte(s.Public().(ed25519.PublicKey)), []byte(s), nil
}

// Default is the scheme wired throughout the node unless overridden.
var Default Verifier = Ed25519Scheme{}
