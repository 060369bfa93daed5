package core

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func TestSignVerifyEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("payload")
	sig, err := Sign(AlgoEd25519, priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(AlgoEd25519, pub, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}
	ok, err = Verify(AlgoEd25519, pub, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Fatalf("signature must not verify against a different message")
	}
}

func TestSignRejectsWrongKeyType(t *testing.T) {
	if _, err := Sign(AlgoEd25519, "not-a-key", []byte("x")); err == nil {
		t.Fatalf("expected error for a non-ed25519.PrivateKey priv")
	}
}

func TestVerifyRejectsWrongKeyType(t *testing.T) {
	if _, err := Verify(AlgoEd25519, "not-a-key", []byte("x"), []byte("sig")); err == nil {
		t.Fatalf("expected error for a non-ed25519.PublicKey pub")
	}
}
