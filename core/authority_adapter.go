package core

// authority_adapter.go – a single-validator authority/security adapter for
// bootstrap and solo-sequencer deployments, filling the securityAdapter and
// authorityAdapter seams consensus.go declares. Grounded on node.go's
// NodeAdapter (wrap a concrete type, translate its shape to the seam
// interface) and security.go's package-level Sign/Verify.

import (
	"crypto/ed25519"
	"fmt"
)

// SoloAuthority is the authorityAdapter/securityAdapter implementation for a
// node whose validator set is itself: one key, full stake, always active.
// Multi-validator deployments get their authority set from elsewhere (a
// staking/governance module, out of scope here) and implement the same two
// seams against that set instead.
type SoloAuthority struct {
	Algo      KeyAlgo
	PublicKey []byte
	PrivKey   interface{}
	Address   Address
}

// ValidatorPubKey returns the node's own key regardless of role, since a
// solo deployment has exactly one validator.
func (a *SoloAuthority) ValidatorPubKey(_ string) []byte { return a.PublicKey }

// StakeOf reports nonzero stake for the node's own key and zero otherwise.
func (a *SoloAuthority) StakeOf(pubKey []byte) uint64 {
	if string(pubKey) == string(a.PublicKey) {
		return 1
	}
	return 0
}

// LoanPoolAddress returns the zero address: this deployment has no loan
// pool wired in.
func (a *SoloAuthority) LoanPoolAddress() Address { return Address{} }

// ListAuthorities reports the single validator as the whole authority set.
func (a *SoloAuthority) ListAuthorities(_ bool) ([]AuthorityNode, error) {
	return []AuthorityNode{{PubKey: a.PublicKey, Active: true, Stake: 1}}, nil
}

// Sign signs data with the node's own key. privRole is accepted for
// interface compatibility but ignored: a solo node has one signing identity.
func (a *SoloAuthority) Sign(_ string, data []byte) ([]byte, error) {
	return Sign(a.Algo, a.PrivKey, data)
}

// Verify checks sig against the supplied public key using the node's
// configured algorithm.
func (a *SoloAuthority) Verify(pubKey, sig, data []byte) bool {
	var pub interface{} = pubKey
	if a.Algo == AlgoEd25519 {
		pub = ed25519.PublicKey(pubKey)
	}
	ok, err := Verify(a.Algo, pub, data, sig)
	if err != nil {
		return false
	}
	return ok
}

func (a *SoloAuthority) String() string {
	return fmt.Sprintf("solo-authority(%s)", a.Address.Hex())
}
