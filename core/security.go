// SPDX-License-Identifier: Apache-2.0
// Package core – shared security primitives for the Synnergy Network stack.
//
// Exposes Sign / Verify, the Ed25519 dispatch used by validator signing
// (authority_adapter.go, sequencer.go) and transaction/account addressing.
package core

import (
	"crypto/ed25519"
	"errors"
)

// KeyAlgo identifies which signature scheme Sign/Verify should use. It is a
// seam, not a switch statement the caller has to grow: today only Ed25519 is
// wired, but callers (SoloAuthority, Sequencer) already pass cfg.KeyAlgo
// through unexamined, so a second scheme slots in here without touching them.
type KeyAlgo uint8

const (
	AlgoEd25519 KeyAlgo = iota
)

// Sign signs msg with priv. For AlgoEd25519, priv must be ed25519.PrivateKey.
func Sign(algo KeyAlgo, priv interface{}, msg []byte) ([]byte, error) {
	switch algo {
	case AlgoEd25519:
		pk, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("invalid ed25519 private key type")
		}
		return ed25519.Sign(pk, msg), nil
	default:
		return nil, errors.New("unknown algo")
	}
}

// Verify checks sig for msg with pub. For AlgoEd25519, pub must be
// ed25519.PublicKey.
func Verify(algo KeyAlgo, pub interface{}, msg, sig []byte) (bool, error) {
	switch algo {
	case AlgoEd25519:
		pk, ok := pub.(ed25519.PublicKey)
		if !ok {
			return false, errors.New("invalid ed25519 pubkey type")
		}
		return ed25519.Verify(pk, msg, sig), nil
	default:
		return false, errors.New("unknown algo")
	}
}
