package core

// execution.go – the state-transition function (§4.2): given a pre-state, a
// block's transactions, and header fields, produce (post-state, receipts,
// gas_used, logs) deterministically.

import (
	"errors"
	"math/big"
)

// chainContext is the concrete ChainContext a block execution runs against.
type chainContext struct {
	blockNumber uint64
	timeMS      int64
	difficulty  *big.Int
	gasLimit    uint64
	chainID     *big.Int
	hashAt      func(number uint64) Hash
}

func (c *chainContext) BlockNumber() uint64   { return c.blockNumber }
func (c *chainContext) Time() uint64          { return uint64(c.timeMS / 1000) }
func (c *chainContext) Difficulty() *big.Int  { return c.difficulty }
func (c *chainContext) GasLimit() uint64      { return c.gasLimit }
func (c *chainContext) ChainID() *big.Int     { return c.chainID }
func (c *chainContext) BlockHash(n uint64) Hash {
	if c.hashAt == nil {
		return Hash{}
	}
	return c.hashAt(n)
}

// ExecutionContext carries everything a block's worth of transactions need
// beyond the Transaction itself: the state to mutate, the chain view
// transactions see, and the fee-market parameters from the header.
type ExecutionContext struct {
	State    StateRW
	Chain    ChainContext
	ChainID  uint64
	BaseFee  *big.Int
	Proposer Address
}

// ExecuteBlock runs every transaction in order and returns the receipts
// (each carrying its own logs) and the block's total gas used. It does
// not compute roots; callers derive tx_root/receipt_root/state_root
// afterward via DeriveTxRoot/DeriveReceiptRoot/StateCommitter.
func ExecuteBlock(ec *ExecutionContext, txs []*Transaction) ([]*Receipt, uint64, error) {
	receipts := make([]*Receipt, 0, len(txs))
	var cumulative uint64

	for i, tx := range txs {
		receipt, err := ExecuteTransaction(ec, tx)
		if err != nil {
			return nil, 0, WrapError(ErrKindExecution, "TransactionFailed", err)
		}
		cumulative += receipt.GasUsed
		receipt.CumulativeGasUsed = cumulative
		receipts = append(receipts, receipt)
		_ = i
	}
	return receipts, cumulative, nil
}

// ExecuteTransaction implements §4.2 steps 1-8 for a single transaction.
func ExecuteTransaction(ec *ExecutionContext, tx *Transaction) (*Receipt, error) {
	sender, err := tx.Sender()
	if err != nil {
		return nil, NewError(ErrKindCryptographic, "InvalidSignature", err.Error())
	}
	if tx.ChainID != ec.ChainID {
		return nil, NewError(ErrKindCryptographic, "InvalidSignature", "chain id mismatch")
	}

	currentNonce := ec.State.NonceOf(sender)
	if tx.Nonce != currentNonce {
		return nil, NewError(ErrKindExecution, "InvalidNonce",
			"expected "+uintToString(currentNonce)+" got "+uintToString(tx.Nonce))
	}

	effectiveGasPrice, err := tx.EffectiveGasPrice(ec.BaseFee)
	if err != nil {
		return nil, NewError(ErrKindExecution, "InvalidFeeParams", err.Error())
	}

	prepay := new(big.Int).Mul(effectiveGasPrice, new(big.Int).SetUint64(tx.GasLimit))
	if ec.State.BalanceOf(sender).Cmp(prepay) < 0 {
		return nil, NewError(ErrKindExecution, "InsufficientFunds", "balance below gas*limit")
	}
	if err := ec.State.Burn(sender, prepay); err != nil {
		return nil, NewError(ErrKindExecution, "InsufficientFunds", err.Error())
	}

	if err := ec.State.SetNonce(sender, currentNonce+1); err != nil {
		return nil, err
	}

	receipt := &Receipt{Status: ReceiptStatusSuccess}
	gasMeter := NewGasMeter(tx.GasLimit - tx.IntrinsicGas())

	type logDrainer interface {
		LogCount() int
		DrainLogsFrom(from int) ([]LogEntry, int)
	}
	var drainer logDrainer
	var logMark int
	if ld, ok := ec.State.(logDrainer); ok {
		drainer = ld
		logMark = ld.LogCount()
	}

	var revertReason string
	var contractAddr *Address
	var execErr error

	switch {
	case tx.To == nil:
		addr, _, ok, err := ec.State.CreateContract(sender, tx.Data, tx.Value, gasMeter.Remaining())
		contractAddr = &addr
		if err != nil {
			execErr = err
		} else if !ok {
			revertReason = "contract creation reverted"
		}
	default:
		if fn, isPrecompile := PrecompileAt(*tx.To); isPrecompile {
			out, gasLeft, err := fn(tx.Data, gasMeter.Remaining())
			_ = out
			gasMeter.used = gasMeter.limit - gasLeft
			if err != nil {
				if errors.Is(err, ErrPrecompileUnavailable) {
					execErr = NewError(ErrKindExecution, "PrecompileUnavailable", err.Error())
				} else {
					revertReason = err.Error()
				}
			}
		} else {
			_, ok, gasUsed, err := ec.State.Call(sender, *tx.To, tx.Data, tx.Value, gasMeter.Remaining())
			_ = gasMeter.ConsumeAmount(gasUsed)
			if err != nil {
				execErr = err
			} else if !ok {
				revertReason = "call reverted"
			}
		}
	}

	gasUsed := tx.IntrinsicGas() + gasMeter.Used()
	if gasUsed > tx.GasLimit {
		gasUsed = tx.GasLimit
	}

	if execErr != nil {
		receipt.Status = ReceiptStatusReverted
		receipt.RevertReason = execErr.Error()
	} else if revertReason != "" {
		receipt.Status = ReceiptStatusReverted
		receipt.RevertReason = revertReason
	}

	refund := new(big.Int).Mul(effectiveGasPrice, new(big.Int).SetUint64(tx.GasLimit-gasUsed))
	if refund.Sign() > 0 {
		_ = ec.State.Mint(sender, refund)
	}

	tip := new(big.Int).Sub(effectiveGasPrice, ec.BaseFee)
	if tip.Sign() > 0 {
		tipAmount := new(big.Int).Mul(tip, new(big.Int).SetUint64(gasUsed))
		_ = ec.State.Mint(ec.Proposer, tipAmount)
	}
	// base_fee_per_gas * gas_used is burned: already deducted from sender as
	// part of prepay and never refunded or re-minted, so it leaves
	// circulation implicitly.

	receipt.GasUsed = gasUsed
	receipt.ContractAddress = contractAddr
	receipt.TxHash = tx.Hash()
	if drainer != nil {
		logs, _ := drainer.DrainLogsFrom(logMark)
		for _, l := range logs {
			receipt.addLog(l)
		}
	}
	return receipt, nil
}

func uintToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
