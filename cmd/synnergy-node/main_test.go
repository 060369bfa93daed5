package main

import (
	"errors"
	"math/big"
	"testing"

	"synnergy-network/core"
)

func TestBuildGenesisBlockDecodesProposerAndBaseFee(t *testing.T) {
	gs := &genesisSpec{
		ChainID:    7,
		Timestamp:  1000,
		BaseFeeWei: "12345",
		GasLimit:   30_000_000,
		ExtraData:  "hello",
		Proposer:   "0x" + "ab" + "0000000000000000000000000000000000",
	}
	block, proposer, err := buildGenesisBlock(gs)
	if err != nil {
		t.Fatalf("build genesis block: %v", err)
	}
	if block.Header.Height != 0 {
		t.Fatalf("genesis height = %d, want 0", block.Header.Height)
	}
	if block.Header.BaseFeePerGas.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("base fee = %s, want 12345", block.Header.BaseFeePerGas)
	}
	if block.Header.GasLimit != 30_000_000 {
		t.Fatalf("gas limit = %d, want 30000000", block.Header.GasLimit)
	}
	if string(block.Header.VRFOutput) != "hello" {
		t.Fatalf("extra data = %q, want hello", block.Header.VRFOutput)
	}
	if proposer != block.Header.Proposer {
		t.Fatalf("returned proposer does not match header proposer")
	}
}

func TestBuildGenesisBlockFallsBackToOneOnUnparseableBaseFee(t *testing.T) {
	gs := &genesisSpec{BaseFeeWei: "not-a-number"}
	block, _, err := buildGenesisBlock(gs)
	if err != nil {
		t.Fatalf("build genesis block: %v", err)
	}
	if block.Header.BaseFeePerGas.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("base fee = %s, want fallback of 1", block.Header.BaseFeePerGas)
	}
}

func TestBuildGenesisBlockRejectsBadProposerHex(t *testing.T) {
	gs := &genesisSpec{Proposer: "0xzz"}
	if _, _, err := buildGenesisBlock(gs); err == nil {
		t.Fatalf("expected error for malformed proposer hex")
	}
}

func TestAllocFromGenesisDecodesValidEntriesAndSkipsBad(t *testing.T) {
	gs := &genesisSpec{
		Alloc: map[string]string{
			"0x" + "cd" + "00000000000000000000000000000000": "1000",
			"not-hex":                                         "500",
			"0x" + "ef" + "00000000000000000000000000000000": "not-decimal",
		},
	}
	out := allocFromGenesis(gs)
	if len(out) != 1 {
		t.Fatalf("allocFromGenesis returned %d entries, want 1 valid entry (got %+v)", len(out), out)
	}
	for _, v := range out {
		if v.Cmp(big.NewInt(1000)) != 0 {
			t.Fatalf("decoded alloc amount = %s, want 1000", v)
		}
	}
}

func TestWeiOrZero(t *testing.T) {
	if got := weiOrZero(""); got.Sign() != 0 {
		t.Fatalf("weiOrZero(\"\") = %s, want 0", got)
	}
	if got := weiOrZero("garbage"); got.Sign() != 0 {
		t.Fatalf("weiOrZero(garbage) = %s, want 0", got)
	}
	if got := weiOrZero("42"); got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("weiOrZero(42) = %s, want 42", got)
	}
}

func TestExitCodeForResourceError(t *testing.T) {
	err := core.WrapError(core.ErrKindResource, "LedgerOpenFailed", errors.New("disk full"))
	if got := exitCodeFor(err); got != 65 {
		t.Fatalf("exitCodeFor(resource) = %d, want 65", got)
	}
}

func TestExitCodeForPlainConfigError(t *testing.T) {
	err := errors.New("some usage problem")
	if got := exitCodeFor(err); got != 64 {
		t.Fatalf("exitCodeFor(plain) = %d, want 64", got)
	}
}

func TestExitCodeForLedgerStringHeuristic(t *testing.T) {
	err := errors.New("ledger: wal write failed")
	if got := exitCodeFor(err); got != 65 {
		t.Fatalf("exitCodeFor(ledger-prefixed) = %d, want 65", got)
	}
}
