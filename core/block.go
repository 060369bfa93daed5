package core

// block.go – the DAG block header and body, replacing the teacher's
// PoW BlockHeader/SubBlock split with the multi-parent shape GhostDAG
// requires. Wire format: RLP-encoded header followed by RLP-encoded
// transactions (§6); hash = keccak256(header encoding without signature,
// followed by the signature bytes).

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// BlockHeader carries every field the data model names in §3. VRFOutput and
// ArtifactRoot are optional and may be empty.
type BlockHeader struct {
	SelectedParent Hash     `json:"selectedParent"`
	MergeParents   []Hash   `json:"mergeParents"`
	BlueScore      uint64   `json:"blueScore"`
	BlueWork       *big.Int `json:"blueWork"`
	Height         uint64   `json:"height"`
	TimestampMS    int64    `json:"timestamp"`
	Proposer       Address  `json:"proposer"`
	VRFOutput      []byte   `json:"vrfOutput,omitempty"`
	StateRoot      Hash     `json:"stateRoot"`
	TxRoot         Hash     `json:"txRoot"`
	ReceiptRoot    Hash     `json:"receiptRoot"`
	ArtifactRoot   *Hash    `json:"artifactRoot,omitempty"`
	BaseFeePerGas  *big.Int `json:"baseFeePerGas"`
	GasUsed        uint64   `json:"gasUsed"`
	GasLimit       uint64   `json:"gasLimit"`
	Nonce          uint64   `json:"nonce"`

	Signature []byte `json:"signature"`
}

// rlpHeader is the without-signature encoding the hash commits to.
type rlpHeader struct {
	SelectedParent Hash
	MergeParents   []Hash
	BlueScore      uint64
	BlueWork       *big.Int
	Height         uint64
	TimestampMS    int64
	Proposer       Address
	VRFOutput      []byte
	StateRoot      Hash
	TxRoot         Hash
	ReceiptRoot    Hash
	ArtifactRoot   []byte
	BaseFeePerGas  *big.Int
	GasUsed        uint64
	GasLimit       uint64
	Nonce          uint64
}

func (h *BlockHeader) withoutSignature() rlpHeader {
	var artifact []byte
	if h.ArtifactRoot != nil {
		artifact = h.ArtifactRoot[:]
	}
	blueWork := h.BlueWork
	if blueWork == nil {
		blueWork = new(big.Int)
	}
	baseFee := h.BaseFeePerGas
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	return rlpHeader{
		SelectedParent: h.SelectedParent,
		MergeParents:   h.MergeParents,
		BlueScore:      h.BlueScore,
		BlueWork:       blueWork,
		Height:         h.Height,
		TimestampMS:    h.TimestampMS,
		Proposer:       h.Proposer,
		VRFOutput:      h.VRFOutput,
		StateRoot:      h.StateRoot,
		TxRoot:         h.TxRoot,
		ReceiptRoot:    h.ReceiptRoot,
		ArtifactRoot:   artifact,
		BaseFeePerGas:  baseFee,
		GasUsed:        h.GasUsed,
		GasLimit:       h.GasLimit,
		Nonce:          h.Nonce,
	}
}

// EncodeRLP returns the canonical without-signature encoding.
func (h *BlockHeader) EncodeRLP() ([]byte, error) {
	return rlp.EncodeToBytes(h.withoutSignature())
}

// SigningHash is the digest a proposer signs and a verifier checks the
// signature against: keccak256 of the header encoding before the signature
// is attached. Using the post-signature Hash for verification would be
// circular, since Hash folds the signature bytes in.
func (h *BlockHeader) SigningHash() (Hash, error) {
	enc, err := h.EncodeRLP()
	if err != nil {
		return Hash{}, err
	}
	return Keccak256(enc), nil
}

// Hash returns keccak256 over canonical_header_encoding_without_signature
// followed by the signature bytes, so the hash commits to the signature
// (§3).
func (h *BlockHeader) Hash() (Hash, error) {
	enc, err := h.EncodeRLP()
	if err != nil {
		return Hash{}, err
	}
	return Keccak256(enc, h.Signature), nil
}

// Block is a header plus its ordered transaction list.
type Block struct {
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Receipts     []*Receipt     `json:"-"` // not part of the wire block; stored alongside it
}

// Hash returns the block's identifying hash (its header hash).
func (b *Block) Hash() (Hash, error) {
	return b.Header.Hash()
}

// Parents returns selected_parent followed by merge_parents, the full
// parent set a consensus DAG edge list needs.
func (b *Block) Parents() []Hash {
	out := make([]Hash, 0, 1+len(b.Header.MergeParents))
	out = append(out, b.Header.SelectedParent)
	out = append(out, b.Header.MergeParents...)
	return out
}

// IsGenesis reports whether this block has no parents at all.
func (b *Block) IsGenesis() bool {
	return b.Header.SelectedParent.IsZero() && len(b.Header.MergeParents) == 0 && b.Header.Height == 0
}
