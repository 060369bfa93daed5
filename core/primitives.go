package core

// primitives.go – fixed-width hashes, addresses, and the dual key-derivation
// scheme shared by every other component. Nothing here touches storage or
// the network; it is the leaf dependency other packages build on.

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ed25519"
)

// AddressMode tags the key algorithm an Address was derived from. Two
// addresses with the same 20-byte tail but different modes are distinct
// accounts; the mode travels with the address wherever it is surfaced
// externally (RPC, receipts, logs).
type AddressMode uint8

const (
	AddressModeSecp256k1 AddressMode = iota
	AddressModeEd25519
)

func (m AddressMode) String() string {
	switch m {
	case AddressModeSecp256k1:
		return "secp256k1"
	case AddressModeEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// TaggedAddress pairs an Address with the mode it was derived under. RPC
// responses and the address index carry this pair rather than a bare
// Address whenever the derivation mode matters.
type TaggedAddress struct {
	Addr Address     `json:"address"`
	Mode AddressMode `json:"mode"`
}

// Keccak256 hashes data with the same keccak variant Ethereum uses (not the
// NIST SHA3 finalisation). All consensus-critical hashing in this module
// goes through this single entry point.
func Keccak256(data ...[]byte) Hash {
	var h Hash
	copy(h[:], crypto.Keccak256(data...))
	return h
}

// AddressFromSecp256k1Pubkey derives an address from an uncompressed
// 64-byte secp256k1 public key: last 20 bytes of keccak256(pubkey).
func AddressFromSecp256k1Pubkey(pub []byte) (Address, error) {
	if len(pub) != 64 {
		return Address{}, fmt.Errorf("secp256k1 pubkey must be 64 bytes, got %d", len(pub))
	}
	h := Keccak256(pub)
	var a Address
	copy(a[:], h[12:])
	return a, nil
}

// AddressFromEd25519Pubkey derives an address from a 32-byte Ed25519 public
// key: last 20 bytes of keccak256(pubkey).
func AddressFromEd25519Pubkey(pub []byte) (Address, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Address{}, fmt.Errorf("ed25519 pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	h := Keccak256(pub)
	var a Address
	copy(a[:], h[12:])
	return a, nil
}

// DeriveTaggedAddress derives an address and mode from a public key,
// choosing the mode by key length: 64 bytes → secp256k1, 32 bytes →
// ed25519. Callers that already know the mode should call the specific
// AddressFrom* function instead; this exists for wire paths where only the
// raw bytes are available (e.g. decoding a signature-recovered key).
func DeriveTaggedAddress(pub []byte) (TaggedAddress, error) {
	switch len(pub) {
	case 64:
		a, err := AddressFromSecp256k1Pubkey(pub)
		return TaggedAddress{Addr: a, Mode: AddressModeSecp256k1}, err
	case ed25519.PublicKeySize:
		a, err := AddressFromEd25519Pubkey(pub)
		return TaggedAddress{Addr: a, Mode: AddressModeEd25519}, err
	default:
		return TaggedAddress{}, fmt.Errorf("unrecognised public key length %d", len(pub))
	}
}

// CollisionWarning reports whether addrA (derived under modeA) collides
// with addrB derived under a different mode. Per the data model, a tail
// collision across modes is not an error but MUST be surfaced to callers.
func CollisionWarning(a TaggedAddress, b TaggedAddress) bool {
	return a.Addr == b.Addr && a.Mode != b.Mode
}

// Hex renders an Address as lower-case hex with a 0x prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string { return a.Hex() }

// Bytes returns a as a freshly allocated byte slice.
func (a Address) Bytes() []byte { b := make([]byte, len(a)); copy(b, a[:]); return b }

// Bytes returns h as a freshly allocated byte slice.
func (h Hash) Bytes() []byte { b := make([]byte, len(h)); copy(b, h[:]); return b }

// Hex renders a Hash as lower-case hex with a 0x prefix.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool { return h == Hash{} }

// BytesToAddress truncates or left-zero-pads b into a 20-byte Address (the
// right-most bytes are kept, matching go-ethereum's common.BytesToAddress).
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > len(a) {
		b = b[len(b)-len(a):]
	}
	copy(a[len(a)-len(b):], b)
	return a
}

// BytesToHash truncates or zero-pads b into a 32-byte Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

// recoverSecp256k1Pubkey recovers the 64-byte uncompressed public key (no
// 0x04 prefix) that produced sig over digest, using the go-ethereum
// recovery convention (sig[64] is the recovery id).
func recoverSecp256k1Pubkey(digest [32]byte, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(pub)[1:], nil // strip the 0x04 prefix
}

// verifySecp256k1 checks a 64-byte (r||s) signature against digest and pub,
// the uncompressed 64-byte public key.
func verifySecp256k1(pub, digest, sig []byte) bool {
	compressed := append([]byte{0x04}, pub...)
	return crypto.VerifySignature(compressed, digest, sig)
}
