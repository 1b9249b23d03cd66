package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// AddressLength is the width of an Address in bytes.
	AddressLength = 20
	// HashLength is the width of a Hash in bytes.
	HashLength = 32
)

// Address identifies an account or provider/buyer in the market.
type Address [AddressLength]byte

// Hash is a 32-byte content hash (tx hash, block hash, state root, ...).
type Hash [HashLength]byte

// ZeroAddress is the empty address.
var ZeroAddress = Address{}

// ZeroHash is the empty hash.
var ZeroHash = Hash{}

// BytesToAddress right-aligns b into an Address, truncating from the left
// if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		copy(a[:], b[len(b)-AddressLength:])
	} else {
		copy(a[AddressLength-len(b):], b)
	}
	return a
}

// BytesToHash right-aligns b into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		copy(h[:], b[len(b)-HashLength:])
	} else {
		copy(h[HashLength-len(b):], b)
	}
	return h
}

func (a Address) Bytes() []byte { return a[:] }
func (a Address) Hex() string   { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string { return a.Hex() }
func (a Address) Equal(o Address) bool { return bytes.Equal(a[:], o[:]) }
func (a Address) IsZero() bool  { return a.Equal(ZeroAddress) }

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) Equal(o Hash) bool { return bytes.Equal(h[:], o[:]) }
func (h Hash) IsZero() bool  { return h.Equal(ZeroHash) }

// HexToAddress parses a "0x..." or bare hex string into an Address.
func HexToAddress(s string) (Address, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if len(s) != AddressLength*2 {
		return ZeroAddress, fmt.Errorf("invalid address length: expected %d hex chars, got %d", AddressLength*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("invalid hex address: %w", err)
	}
	return BytesToAddress(b), nil
}

// HexToHash parses a "0x..." or bare hex string into a Hash.
func HexToHash(s string) (Hash, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if len(s) != HashLength*2 {
		return ZeroHash, fmt.Errorf("invalid hash length: expected %d hex chars, got %d", HashLength*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("invalid hex hash: %w", err)
	}
	return BytesToHash(b), nil
}

// Keccak256 hashes data with Keccak256 (used for every content hash in the
// ledger — tx hash, block hash, merkle roots, state root). Reuses
// go-ethereum's crypto.Keccak256 rather than calling golang.org/x/crypto/sha3
// directly, the same hash every go-ethereum-compatible signer already
// depends on.
func Keccak256(data ...[]byte) []byte {
	return gethcrypto.Keccak256(data...)
}

// Keccak256Hash hashes data and returns the result as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	return BytesToHash(Keccak256(data...))
}

// MerkleRoot computes the Merkle root of a list of leaf hashes, duplicating
// the last leaf on odd levels.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}
	level := leaves
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, Keccak256Hash(level[i].Bytes(), level[i+1].Bytes()))
			} else {
				next = append(next, Keccak256Hash(level[i].Bytes(), level[i].Bytes()))
			}
		}
		level = next
	}
	return level[0]
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n & 0xff)
		n >>= 8
	}
	return b
}
