package core

// tx.go – typed transaction envelopes, canonical RLP encoding, signing and
// signature recovery. Replaces the teacher's ad-hoc payment/contract-call/
// reversal envelope with the three EVM-style transaction kinds the
// execution layer requires.

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxKind enumerates the accepted transaction envelope types.
type TxKind uint8

const (
	TxLegacy TxKind = iota
	TxAccessList
	TxDynamicFee
)

// AccessTuple is one entry of an EIP-2930-style access list.
type AccessTuple struct {
	Address     Address  `json:"address"`
	StorageKeys []Hash   `json:"storageKeys"`
}

// Transaction is the canonical envelope for all three accepted kinds. Fields
// not relevant to a given Kind are zero-valued; To == nil means contract
// creation.
type Transaction struct {
	Kind TxKind `json:"kind"`

	ChainID              uint64         `json:"chainId"`
	Nonce                uint64         `json:"nonce"`
	GasLimit             uint64         `json:"gas"`
	To                   *Address       `json:"to"`
	Value                *big.Int       `json:"value"`
	Data                 []byte         `json:"input"`
	AccessList           []AccessTuple  `json:"accessList,omitempty"`

	// Legacy / access-list pricing.
	GasPrice *big.Int `json:"gasPrice,omitempty"`

	// Dynamic-fee (EIP-1559-style) pricing.
	MaxFeePerGas         *big.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas,omitempty"`

	// Signature, secp256k1 (r, s, v) with v carrying chain-id per EIP-155.
	V *big.Int `json:"v"`
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`

	// cached, not part of the RLP encoding
	hash *Hash
	from *Address
}

// txRLPPayload is the wire shape used for hashing and signing. All three
// kinds share it, Kind byte included; fields a kind does not use are
// encoded as zero or empty.
type txRLPPayload struct {
	Kind                 uint8
	ChainID              uint64
	Nonce                uint64
	GasPrice             *big.Int
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	GasLimit             uint64
	To                   []byte
	Value                *big.Int
	Data                 []byte
	AccessList           []AccessTuple
}

func (tx *Transaction) toPayload() txRLPPayload {
	var to []byte
	if tx.To != nil {
		to = tx.To[:]
	}
	return txRLPPayload{
		Kind:                 uint8(tx.Kind),
		ChainID:              tx.ChainID,
		Nonce:                tx.Nonce,
		GasPrice:             orZero(tx.GasPrice),
		MaxPriorityFeePerGas: orZero(tx.MaxPriorityFeePerGas),
		MaxFeePerGas:         orZero(tx.MaxFeePerGas),
		GasLimit:             tx.GasLimit,
		To:                   to,
		Value:                orZero(tx.Value),
		Data:                 tx.Data,
		AccessList:           tx.AccessList,
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// signingBytes returns the canonical byte form the hash and the signature
// are computed over (unsigned: no V/R/S).
func (tx *Transaction) signingBytes() ([]byte, error) {
	return rlp.EncodeToBytes(tx.toPayload())
}

// CanonicalBytes returns the full signed canonical encoding, used for the
// block body wire format and for re-deriving the hash of a received tx.
func (tx *Transaction) CanonicalBytes() ([]byte, error) {
	type signed struct {
		Payload txRLPPayload
		V, R, S *big.Int
	}
	return rlp.EncodeToBytes(signed{tx.toPayload(), orZero(tx.V), orZero(tx.R), orZero(tx.S)})
}

// Hash returns keccak256 of the canonical signed encoding, caching the
// result. Per the data model this is the transaction's identifier.
func (tx *Transaction) Hash() Hash {
	if tx.hash != nil {
		return *tx.hash
	}
	b, err := tx.CanonicalBytes()
	if err != nil {
		return Hash{}
	}
	h := Keccak256(b)
	tx.hash = &h
	return h
}

// EffectiveGasPrice computes the price actually charged given the block's
// base fee, per §4.2 step 3.
func (tx *Transaction) EffectiveGasPrice(baseFee *big.Int) (*big.Int, error) {
	switch tx.Kind {
	case TxLegacy, TxAccessList:
		return orZero(tx.GasPrice), nil
	case TxDynamicFee:
		if tx.MaxFeePerGas.Cmp(baseFee) < 0 {
			return nil, fmt.Errorf("max fee per gas %s below base fee %s", tx.MaxFeePerGas, baseFee)
		}
		tip := new(big.Int).Sub(tx.MaxFeePerGas, baseFee)
		if tip.Cmp(tx.MaxPriorityFeePerGas) > 0 {
			tip = tx.MaxPriorityFeePerGas
		}
		return new(big.Int).Add(baseFee, tip), nil
	default:
		return nil, fmt.Errorf("unknown tx kind %d", tx.Kind)
	}
}

// Sign signs the transaction with priv, binding chain_id into the recovery
// id per EIP-155 so a tx signed for one chain is never valid on another.
func (tx *Transaction) Sign(priv *ecdsa.PrivateKey) error {
	msg, err := tx.signingBytes()
	if err != nil {
		return err
	}
	digest := crypto.Keccak256(msg)
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetInt64(int64(sig[64]) + 35 + int64(tx.ChainID)*2)
	tx.hash = nil
	tx.from = nil
	return nil
}

// Sender recovers and caches the sender address, enforcing that the
// recovered chain id matches tx.ChainID. Per §8 property 7, any mismatch is
// a Cryptographic/WrongChainId error regardless of entry path.
func (tx *Transaction) Sender() (Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.V == nil || tx.R == nil || tx.S == nil {
		return Address{}, errors.New("unsigned transaction")
	}
	recID := new(big.Int).Sub(tx.V, big.NewInt(35+int64(tx.ChainID)*2))
	if recID.Sign() < 0 || recID.Cmp(big.NewInt(1)) > 0 {
		return Address{}, NewError(ErrKindCryptographic, "WrongChainId", "signature recovery id does not bind to configured chain_id")
	}
	msg, err := tx.signingBytes()
	if err != nil {
		return Address{}, err
	}
	digest := crypto.Keccak256(msg)
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(recID.Int64())
	pub, err := recoverSecp256k1Pubkey([32]byte(digest), sig)
	if err != nil {
		return Address{}, NewError(ErrKindCryptographic, "InvalidSignature", err.Error())
	}
	addr, err := AddressFromSecp256k1Pubkey(pub)
	if err != nil {
		return Address{}, err
	}
	tx.from = &addr
	return addr, nil
}

// IntrinsicGas returns the minimum gas a transaction consumes before any
// EVM execution: a flat base cost plus a per-byte data cost, plus contract
// creation surcharge.
func (tx *Transaction) IntrinsicGas() uint64 {
	const (
		txGas            = 21000
		txGasContractCreate = 32000
		zeroByteGas      = 4
		nonZeroByteGas   = 16
	)
	gas := uint64(txGas)
	if tx.To == nil {
		gas += txGasContractCreate
	}
	for _, b := range tx.Data {
		if b == 0 {
			gas += zeroByteGas
		} else {
			gas += nonZeroByteGas
		}
	}
	return gas
}
