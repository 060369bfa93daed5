package core

import (
	"math/big"
	"testing"
)

func TestBlockHeaderSigningHashExcludesSignature(t *testing.T) {
	h := &BlockHeader{
		Height:        1,
		TimestampMS:   1000,
		BaseFeePerGas: big.NewInt(1),
		BlueWork:      big.NewInt(1),
	}
	before, err := h.SigningHash()
	if err != nil {
		t.Fatalf("signing hash: %v", err)
	}
	h.Signature = []byte{0x01, 0x02, 0x03}
	after, err := h.SigningHash()
	if err != nil {
		t.Fatalf("signing hash: %v", err)
	}
	if before != after {
		t.Fatalf("SigningHash must not depend on Signature")
	}
}

func TestBlockHeaderHashDependsOnSignature(t *testing.T) {
	h := &BlockHeader{
		Height:        1,
		TimestampMS:   1000,
		BaseFeePerGas: big.NewInt(1),
		BlueWork:      big.NewInt(1),
	}
	h.Signature = []byte{0x01}
	a, err := h.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h.Signature = []byte{0x02}
	b, err := h.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatalf("Hash must change when Signature changes")
	}
	sh, err := h.SigningHash()
	if err != nil {
		t.Fatalf("signing hash: %v", err)
	}
	if sh == a || sh == b {
		t.Fatalf("Hash must differ from SigningHash once a signature is attached")
	}
}

func TestBlockIsGenesis(t *testing.T) {
	genesis := &Block{Header: &BlockHeader{Height: 0}}
	if !genesis.IsGenesis() {
		t.Fatalf("expected genesis block to report IsGenesis")
	}

	child := &Block{Header: &BlockHeader{Height: 1, SelectedParent: Hash{0x01}}}
	if child.IsGenesis() {
		t.Fatalf("block with a parent must not report IsGenesis")
	}
}

func TestBlockParentsOrdersSelectedFirst(t *testing.T) {
	selected := Hash{0x01}
	merge := []Hash{{0x02}, {0x03}}
	b := &Block{Header: &BlockHeader{SelectedParent: selected, MergeParents: merge}}
	parents := b.Parents()
	if len(parents) != 3 || parents[0] != selected || parents[1] != merge[0] || parents[2] != merge[1] {
		t.Fatalf("unexpected parent ordering: %v", parents)
	}
}
