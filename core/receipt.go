package core

// receipt.go – transaction receipts and the per-block log bloom filter.

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// LogEntry is one EVM log emitted during execution.
type LogEntry struct {
	Address Address  `json:"address"`
	Topics  []Hash   `json:"topics"`
	Data    []byte   `json:"data"`
}

// ReceiptStatus mirrors the eth convention: 1 success, 0 reverted.
type ReceiptStatus uint8

const (
	ReceiptStatusReverted ReceiptStatus = 0
	ReceiptStatusSuccess  ReceiptStatus = 1
)

// Receipt is emitted once per executed transaction, in execution order.
type Receipt struct {
	TxHash            Hash          `json:"transactionHash"`
	CumulativeGasUsed uint64        `json:"cumulativeGasUsed"`
	GasUsed           uint64        `json:"gasUsed"`
	Status            ReceiptStatus `json:"status"`
	Logs              []LogEntry    `json:"logs"`
	ContractAddress   *Address      `json:"contractAddress,omitempty"`
	Bloom             [256]byte     `json:"logsBloom"`
	RevertReason      string        `json:"revertReason,omitempty"`
}

type rlpReceipt struct {
	Status            uint8
	CumulativeGasUsed uint64
	Bloom             []byte
	Logs              []rlpLog
}

type rlpLog struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

func (r *Receipt) toRLP() rlpReceipt {
	logs := make([]rlpLog, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = rlpLog{Address: l.Address, Topics: l.Topics, Data: l.Data}
	}
	return rlpReceipt{
		Status:            uint8(r.Status),
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.Bloom[:],
		Logs:              logs,
	}
}

// EncodeRLP returns the canonical per-receipt encoding used to derive the
// block's receipt_root.
func (r *Receipt) EncodeRLP() ([]byte, error) {
	return rlp.EncodeToBytes(r.toRLP())
}

// addLog folds a log's topics/address into the receipt's bloom filter using
// the standard 3-bits-per-item scheme.
func (r *Receipt) addLog(l LogEntry) {
	r.Logs = append(r.Logs, l)
	bloomAdd(&r.Bloom, l.Address[:])
	for _, t := range l.Topics {
		bloomAdd(&r.Bloom, t[:])
	}
}

func bloomAdd(b *[256]byte, data []byte) {
	h := Keccak256(data)
	for i := 0; i < 3; i++ {
		bitIdx := (uint(h[i*2])<<8 | uint(h[i*2+1])) & 2047
		byteIdx := 255 - bitIdx/8
		b[byteIdx] |= 1 << (bitIdx % 8)
	}
}

// DeriveReceiptRoot returns keccak256 of the RLP of the ordered receipt
// list, or the canonical empty-list root when receipts is empty. Synthetic
// roots derived from tx hashes alone are forbidden by §4.2.
func DeriveReceiptRoot(receipts []*Receipt) (Hash, error) {
	items := make([][]byte, len(receipts))
	for i, r := range receipts {
		b, err := r.EncodeRLP()
		if err != nil {
			return Hash{}, err
		}
		items[i] = b
	}
	return deriveSha(items), nil
}

// DeriveTxRoot returns keccak256 of the RLP of the ordered transaction
// list's canonical encodings, or the empty-list root for an empty block.
func DeriveTxRoot(txs []*Transaction) (Hash, error) {
	items := make([][]byte, len(txs))
	for i, tx := range txs {
		b, err := tx.CanonicalBytes()
		if err != nil {
			return Hash{}, err
		}
		items[i] = b
	}
	return deriveSha(items), nil
}
