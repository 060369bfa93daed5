package core

// sequencer.go – the block builder (§4.5). On each tick it computes the
// next base fee from the virtual selected tip, picks parents, drains the
// mempool in priority order, executes the resulting transaction list, and
// signs the header. Grounded on the teacher's ticker-driven service-loop
// shape (consensus.go's Start) generalized from "propose a PoH sub-block"
// to "assemble and sign a DAG block".

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrExecutorUnavailable is returned when BuildBlock cannot derive real
// state/receipt roots. §4.2 forbids publishing a block whose roots are
// synthesized from transaction hashes alone, so the builder fails closed
// instead of fabricating one.
var ErrExecutorUnavailable = errors.New("sequencer: executor unavailable, refusing to publish synthetic roots")

// SequencerConfig carries the genesis/operator knobs the builder needs.
type SequencerConfig struct {
	ChainID        uint64
	BlockGasLimit  uint64
	BlockTimeMS    int64
	InitialBaseFee *big.Int
	KeyAlgo        KeyAlgo
}

// Sequencer assembles and signs candidate blocks.
type Sequencer struct {
	cfg       SequencerConfig
	ledger    *Ledger
	consensus *SynnergyConsensus
	pool      *Mempool
	proposer  Address
	signKey   interface{}
}

// NewSequencer wires the subsystem together. signKey is passed through to
// Sign(cfg.KeyAlgo, signKey, digest) unexamined, so any key type the
// security layer's Sign implementation accepts for cfg.KeyAlgo works.
func NewSequencer(cfg SequencerConfig, led *Ledger, cs *SynnergyConsensus, pool *Mempool, proposer Address, signKey interface{}) *Sequencer {
	return &Sequencer{cfg: cfg, ledger: led, consensus: cs, pool: pool, proposer: proposer, signKey: signKey}
}

// BuildBlock assembles one candidate block on top of the current virtual
// selected tip. now is the only permitted source of non-determinism; it is
// rounded to the block-time grid before being written into the header, so
// identical (DAG state, mempool contents, proposer identity) inputs at the
// same grid tick produce byte-identical blocks.
func (s *Sequencer) BuildBlock(now time.Time) (*Block, error) {
	if s.ledger == nil || s.consensus == nil {
		return nil, ErrExecutorUnavailable
	}

	selectedParent, err := s.consensus.SelectTip()
	if err != nil {
		return nil, err
	}
	parentBlueScore, _ := s.consensus.BlueScoreOf(selectedParent)
	parentBlueWork, ok := s.consensus.BlueWorkOf(selectedParent)
	if !ok {
		parentBlueWork = new(big.Int)
	}
	mergeParents := s.selectMergeParents(selectedParent)

	baseFee := s.nextBaseFee(selectedParent)
	s.pool.SetBaseFee(baseFee)

	height := s.ledger.LastHeight() + 1
	timestampMS := roundToBlockGrid(now.UnixMilli(), s.cfg.BlockTimeMS)

	txs := s.pool.Snapshot(s.cfg.BlockGasLimit)

	ec := &ExecutionContext{
		State: s.ledger,
		Chain: &chainContext{
			blockNumber: height,
			timeMS:      timestampMS,
			difficulty:  new(big.Int),
			gasLimit:    s.cfg.BlockGasLimit,
			chainID:     new(big.Int).SetUint64(s.cfg.ChainID),
			hashAt: func(n uint64) Hash {
				b, err := s.ledger.GetBlockByHeight(n)
				if err != nil {
					return Hash{}
				}
				h, err := b.Hash()
				if err != nil {
					return Hash{}
				}
				return h
			},
		},
		ChainID:  s.cfg.ChainID,
		BaseFee:  baseFee,
		Proposer: s.proposer,
	}

	receipts, gasUsed, err := ExecuteBlock(ec, txs)
	if err != nil {
		return nil, err
	}

	txRoot, err := DeriveTxRoot(txs)
	if err != nil {
		return nil, err
	}
	receiptRoot, err := DeriveReceiptRoot(receipts)
	if err != nil {
		return nil, err
	}
	accountsRoot, storageRoot := s.ledger.StateCommitterFor()
	stateRoot := Keccak256(accountsRoot[:], storageRoot[:])

	header := &BlockHeader{
		SelectedParent: selectedParent,
		MergeParents:   mergeParents,
		BlueScore:      parentBlueScore + 1,
		BlueWork:       new(big.Int).Add(parentBlueWork, big.NewInt(1)),
		Height:         height,
		TimestampMS:    timestampMS,
		Proposer:       s.proposer,
		StateRoot:      stateRoot,
		TxRoot:         txRoot,
		ReceiptRoot:    receiptRoot,
		BaseFeePerGas:  baseFee,
		GasUsed:        gasUsed,
		GasLimit:       s.cfg.BlockGasLimit,
	}

	digest, err := header.SigningHash()
	if err != nil {
		return nil, err
	}
	sig, err := Sign(s.cfg.KeyAlgo, s.signKey, digest[:])
	if err != nil {
		return nil, err
	}
	header.Signature = sig

	block := &Block{Header: header, Transactions: txs, Receipts: receipts}

	for _, tx := range txs {
		if sender, err := tx.Sender(); err == nil {
			s.pool.Remove(sender, tx.Nonce)
		}
	}
	return block, nil
}

// selectMergeParents returns up to max_parents-1 tips other than the
// selected parent, sorted by hash, per §4.5 step 2.
func (s *Sequencer) selectMergeParents(selected Hash) []Hash {
	tips := s.consensus.Tips()
	budget := s.consensus.maxParents - 1
	if budget <= 0 {
		return nil
	}
	out := make([]Hash, 0, budget)
	for _, t := range tips {
		if t == selected {
			continue
		}
		if len(out) >= budget {
			break
		}
		out = append(out, t)
	}
	return out
}

// nextBaseFee implements the EIP-1559-style adjustment from §4.2:
// base_fee[n+1] = base_fee[n] * (1 + (gas_used - target) / target / 8),
// target = gas_limit / 2, clamped to a floor of 1.
func (s *Sequencer) nextBaseFee(parentHash Hash) *big.Int {
	parentBlock, err := s.ledger.GetBlockByHash(parentHash)
	if err != nil || parentBlock.Header.BaseFeePerGas == nil || parentBlock.Header.BaseFeePerGas.Sign() == 0 {
		if s.cfg.InitialBaseFee != nil {
			return new(big.Int).Set(s.cfg.InitialBaseFee)
		}
		return big.NewInt(1)
	}

	gasLimit := parentBlock.Header.GasLimit
	if gasLimit == 0 {
		gasLimit = s.cfg.BlockGasLimit
	}
	return nextBaseFeeFrom(parentBlock.Header.BaseFeePerGas, parentBlock.Header.GasUsed, gasLimit)
}

// nextBaseFeeFrom applies the EIP-1559-style adjustment of §4.2 to one
// block's (base_fee, gas_used, gas_limit), floored at 1. Shared by the
// sequencer and by eth_feeHistory's projected next-block entry, so both
// compute the successor fee the same way.
func nextBaseFeeFrom(parentBaseFee *big.Int, gasUsed, gasLimit uint64) *big.Int {
	target := gasLimit / 2
	if target == 0 {
		return new(big.Int).Set(parentBaseFee)
	}
	delta := int64(gasUsed) - int64(target)
	denom := 8 * int64(target)
	numerator := new(big.Int).Mul(parentBaseFee, big.NewInt(denom+delta))
	next := new(big.Int).Div(numerator, big.NewInt(denom))
	if next.Sign() < 1 {
		return big.NewInt(1)
	}
	return next
}

// roundToBlockGrid truncates a wall-clock millisecond timestamp down to the
// nearest block-time boundary, the only non-determinism BuildBlock admits.
func roundToBlockGrid(nowMS, blockTimeMS int64) int64 {
	if blockTimeMS <= 0 {
		return nowMS
	}
	return (nowMS / blockTimeMS) * blockTimeMS
}

// Run builds and commits a block on a fixed tick until ctx is canceled,
// broadcasting each to peers via the replicator so the rest of the network
// learns about it without waiting for inventory gossip to find it.
func (s *Sequencer) Run(ctx context.Context, interval time.Duration, repl *Replicator) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			blk, err := s.BuildBlock(now)
			if err != nil {
				continue
			}
			accounts, storage := s.ledger.DrainDirty()
			if err := s.ledger.PutBlock(blk, accounts, storage); err != nil {
				continue
			}
			if err := s.consensus.ProcessBlock(blk); err != nil {
				continue
			}
			if repl != nil {
				repl.ReplicateBlock(blk)
			}
		}
	}
}
