package core

import (
	"math/big"
	"testing"
)

func defaultConsensusParams() ConsensusParams {
	return ConsensusParams{K: 3, MaxParents: 2, FinalityDepth: 10, BlockTimeMS: 1000, PruningWindow: 1000}
}

func newConsensusWithParams(t *testing.T, params ConsensusParams) (*SynnergyConsensus, *Block, Hash) {
	t.Helper()
	genesis := &Block{Header: &BlockHeader{Height: 0, BlueWork: new(big.Int), BaseFeePerGas: big.NewInt(1)}}
	led, err := NewLedger(tmpLedgerConfig(t, genesis))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	authority := newSoloAuthority(t)
	pool := NewMempool(testMempoolConfig(), led)
	cs, err := NewConsensus(testLogger(), led, noopNetwork{}, authority, pool, authority, params, genesis)
	if err != nil {
		t.Fatalf("new consensus: %v", err)
	}
	genesisHash, err := genesis.Hash()
	if err != nil {
		t.Fatalf("hash genesis: %v", err)
	}
	return cs, genesis, genesisHash
}

func newTestConsensus(t *testing.T) (*SynnergyConsensus, *Block, Hash) {
	t.Helper()
	return newConsensusWithParams(t, defaultConsensusParams())
}

// childBlock builds a block extending selectedParent with the given merge
// parents. nonce exists only to keep sibling blocks (same selected parent,
// no merge parents) from hashing identically.
func childBlock(selectedParent Hash, mergeParents []Hash, nonce uint64) *Block {
	return &Block{Header: &BlockHeader{
		SelectedParent: selectedParent,
		MergeParents:   mergeParents,
		BlueWork:       new(big.Int),
		BaseFeePerGas:  big.NewInt(1),
		Nonce:          nonce,
	}}
}

func mustProcess(t *testing.T, cs *SynnergyConsensus, b *Block) Hash {
	t.Helper()
	if err := cs.ProcessBlock(b); err != nil {
		t.Fatalf("process block: %v", err)
	}
	h, err := b.Hash()
	if err != nil {
		t.Fatalf("hash block: %v", err)
	}
	return h
}

func TestConsensusParamsRoundTrip(t *testing.T) {
	cs, _, _ := newTestConsensus(t)
	p := cs.Params()
	if p.K != 3 || p.MaxParents != 2 || p.FinalityDepth != 10 || p.BlockTimeMS != 1000 || p.PruningWindow != 1000 {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestConsensusGenesisIsSoleTip(t *testing.T) {
	cs, _, genesisHash := newTestConsensus(t)
	tips := cs.Tips()
	if len(tips) != 1 || tips[0] != genesisHash {
		t.Fatalf("expected genesis as sole tip, got %v", tips)
	}
	tip, err := cs.SelectTip()
	if err != nil {
		t.Fatalf("select tip: %v", err)
	}
	if tip != genesisHash {
		t.Fatalf("SelectTip() = %v, want genesis %v", tip, genesisHash)
	}
}

func TestConsensusProcessBlockExtendsTips(t *testing.T) {
	cs, _, genesisHash := newTestConsensus(t)

	child := childBlock(genesisHash, nil, 0)
	childHash := mustProcess(t, cs, child)

	tips := cs.Tips()
	if len(tips) != 1 || tips[0] != childHash {
		t.Fatalf("expected child to replace genesis as sole tip, got %v", tips)
	}

	score, ok := cs.BlueScoreOf(childHash)
	if !ok || score != 1 {
		t.Fatalf("child blue_score = %d (ok=%v), want 1", score, ok)
	}
}

func TestConsensusProcessBlockRejectsUnknownParent(t *testing.T) {
	cs, _, _ := newTestConsensus(t)
	orphan := &Block{Header: &BlockHeader{
		SelectedParent: Hash{0xFF},
		Height:         5,
		BlueWork:       new(big.Int),
	}}
	if err := cs.ProcessBlock(orphan); err != ErrUnknownParent {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}

func TestConsensusProcessBlockRejectsDuplicate(t *testing.T) {
	cs, genesis, _ := newTestConsensus(t)
	if err := cs.ProcessBlock(genesis); err != ErrDuplicateBlock {
		t.Fatalf("expected ErrDuplicateBlock for the genesis block itself, got %v", err)
	}
}

// TestConsensusClassifiesExcessAnticoneAsRed builds two concurrent children
// of genesis (A and D, via a third sibling B acting as the selected-parent
// branch point) and merges both into a block whose k-cluster can only
// tolerate one of them: exactly one must be excluded from the merging
// block's blue set (classified red), per the k-cluster invariant in §4.3.
func TestConsensusClassifiesExcessAnticoneAsRed(t *testing.T) {
	params := defaultConsensusParams()
	params.K = 1
	params.MaxParents = 3
	cs, _, genesisHash := newConsensusWithParams(t, params)

	a := childBlock(genesisHash, nil, 1)
	aHash := mustProcess(t, cs, a)

	b := childBlock(genesisHash, nil, 2)
	bHash := mustProcess(t, cs, b)

	d := childBlock(genesisHash, nil, 3)
	dHash := mustProcess(t, cs, d)

	merge := childBlock(aHash, []Hash{bHash, dHash}, 0)
	mergeHash := mustProcess(t, cs, merge)

	info := cs.blocks[mergeHash]
	if info == nil {
		t.Fatalf("merge block missing from consensus state")
	}
	_, bBlue := info.blueSet[bHash]
	_, dBlue := info.blueSet[dHash]
	if bBlue == dBlue {
		t.Fatalf("expected exactly one of the two concurrent merge parents to be excluded as red, got b_blue=%v d_blue=%v", bBlue, dBlue)
	}
}

// TestConsensusCanonicalOrderInterleavesMergeset exercises the selected-
// parent chain G -> A -> C with merge parent B: the canonical order must
// place B between A and C (immediately before the block that merges it in),
// not before A or after C.
func TestConsensusCanonicalOrderInterleavesMergeset(t *testing.T) {
	params := defaultConsensusParams()
	params.K = 10
	params.MaxParents = 3
	cs, _, genesisHash := newConsensusWithParams(t, params)

	a := childBlock(genesisHash, nil, 1)
	aHash := mustProcess(t, cs, a)

	b := childBlock(genesisHash, nil, 2)
	bHash := mustProcess(t, cs, b)

	c := childBlock(aHash, []Hash{bHash}, 0)
	cHash := mustProcess(t, cs, c)

	order, err := cs.CanonicalOrder()
	if err != nil {
		t.Fatalf("canonical order: %v", err)
	}
	want := []Hash{genesisHash, aHash, bHash, cHash}
	if len(order) != len(want) {
		t.Fatalf("canonical order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("canonical order = %v, want %v", order, want)
		}
	}
}

// TestConsensusCanonicalOrderDeterministicAcrossInsertionOrder builds the
// same G -> A -> C (merge B) DAG through two independent consensus
// instances, inserting A and B in opposite order, and checks both views
// converge on the identical canonical order.
func TestConsensusCanonicalOrderDeterministicAcrossInsertionOrder(t *testing.T) {
	params := defaultConsensusParams()
	params.K = 10
	params.MaxParents = 3

	build := func(t *testing.T, insertBFirst bool) ([]Hash, Hash, Hash, Hash, Hash) {
		cs, _, genesisHash := newConsensusWithParams(t, params)
		var aHash, bHash Hash
		a := childBlock(genesisHash, nil, 1)
		b := childBlock(genesisHash, nil, 2)
		if insertBFirst {
			bHash = mustProcess(t, cs, b)
			aHash = mustProcess(t, cs, a)
		} else {
			aHash = mustProcess(t, cs, a)
			bHash = mustProcess(t, cs, b)
		}
		c := childBlock(aHash, []Hash{bHash}, 0)
		cHash := mustProcess(t, cs, c)
		order, err := cs.CanonicalOrder()
		if err != nil {
			t.Fatalf("canonical order: %v", err)
		}
		return order, genesisHash, aHash, bHash, cHash
	}

	orderAFirst, genesisHash, aHash, bHash, cHash := build(t, false)
	orderBFirst, genesisHash2, aHash2, bHash2, cHash2 := build(t, true)

	if genesisHash != genesisHash2 || aHash != aHash2 || bHash != bHash2 || cHash != cHash2 {
		t.Fatalf("the two builds did not produce the same block hashes despite identical headers")
	}
	if len(orderAFirst) != len(orderBFirst) {
		t.Fatalf("orders differ in length: %v vs %v", orderAFirst, orderBFirst)
	}
	for i := range orderAFirst {
		if orderAFirst[i] != orderBFirst[i] {
			t.Fatalf("canonical order depends on insertion order: %v vs %v", orderAFirst, orderBFirst)
		}
	}
}

// TestConsensusFinalityAdvancesAlongSelectedParentChain builds a five-deep
// linear chain with finality_depth=2 and checks that IsFinal flips exactly
// at the blue_score boundary advanceFinality establishes.
func TestConsensusFinalityAdvancesAlongSelectedParentChain(t *testing.T) {
	params := defaultConsensusParams()
	params.K = 10
	params.FinalityDepth = 2
	cs, _, genesisHash := newConsensusWithParams(t, params)

	parent := genesisHash
	hashes := []Hash{genesisHash}
	for i := 0; i < 5; i++ {
		b := childBlock(parent, nil, 0)
		h := mustProcess(t, cs, b)
		hashes = append(hashes, h)
		parent = h
	}
	// hashes[i] has blue_score i (genesis=0, ..., 5th block=5).

	if !cs.IsFinal(hashes[3]) {
		t.Fatalf("block at blue_score 3 should be final once the tip reaches blue_score 5 with finality_depth 2")
	}
	if !cs.IsFinal(genesisHash) {
		t.Fatalf("genesis must always be final once any descendant is")
	}
	if cs.IsFinal(hashes[4]) {
		t.Fatalf("block at blue_score 4 must not yet be final")
	}
	if cs.IsFinal(hashes[5]) {
		t.Fatalf("tip itself must not be final")
	}
}
