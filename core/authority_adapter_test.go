package core

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func newSoloAuthority(t *testing.T) *SoloAuthority {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr, err := AddressFromEd25519Pubkey(pub)
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	return &SoloAuthority{Algo: AlgoEd25519, PublicKey: []byte(pub), PrivKey: priv, Address: addr}
}

func TestSoloAuthoritySignVerifyRoundTrip(t *testing.T) {
	a := newSoloAuthority(t)
	msg := []byte("block digest")

	sig, err := a.Sign("proposer", msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !a.Verify(a.PublicKey, sig, msg) {
		t.Fatalf("expected signature to verify against the signer's own key")
	}
	if a.Verify(a.PublicKey, sig, []byte("tampered digest")) {
		t.Fatalf("signature must not verify against a different message")
	}
}

func TestSoloAuthorityListsItselfAsWholeAuthoritySet(t *testing.T) {
	a := newSoloAuthority(t)
	list, err := a.ListAuthorities(true)
	if err != nil {
		t.Fatalf("list authorities: %v", err)
	}
	if len(list) != 1 || string(list[0].PubKey) != string(a.PublicKey) || !list[0].Active {
		t.Fatalf("unexpected authority set: %+v", list)
	}
	if a.StakeOf(a.PublicKey) == 0 {
		t.Fatalf("expected nonzero stake for the node's own key")
	}
	if a.StakeOf([]byte("someone else")) != 0 {
		t.Fatalf("expected zero stake for an unrelated key")
	}
}
