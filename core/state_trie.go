package core

// state_trie.go – a deterministic, content-addressed Merkle trie used both
// for the account/storage commitment (state_root) and, keyed by RLP index,
// for the transaction and receipt roots. It trades the full radix/Patricia
// node compaction of a production client for a flat sorted-leaf binary
// Merkle tree over keccak256: simpler to reason about, still a pure
// function of (keys, values), still collision-resistant, and it reproduces
// the well-known empty-trie root constant for the empty case so "RLP-empty-root"
// comparisons against other EVM-compatible implementations hold.
//
// This is a deliberate scope simplification from a production 16-ary
// Patricia trie; see DESIGN.md for the tradeoff.

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// emptyRootHash is keccak256(rlp.EncodeToBytes([]byte{})), the constant
// every EVM-compatible implementation uses for an empty trie.
var emptyRootHash = mustHexHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

func mustHexHash(s string) Hash {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		panic("invalid empty-root constant")
	}
	var h Hash
	copy(h[:], b)
	return h
}

// trieLeaf is one (key, value) pair contributing to a root.
type trieLeaf struct {
	Key   []byte
	Value []byte
}

// merkleRootOf builds a sorted-by-key binary Merkle tree over leaves and
// returns its root. Empty input yields emptyRootHash.
func merkleRootOf(leaves []trieLeaf) Hash {
	if len(leaves) == 0 {
		return emptyRootHash
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i].Key, leaves[j].Key) < 0 })

	level := make([]Hash, len(leaves))
	for i, l := range leaves {
		enc, _ := rlp.EncodeToBytes(struct{ K, V []byte }{l.Key, l.Value})
		level[i] = Keccak256(enc)
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = Keccak256(level[i][:], level[i+1][:])
		}
		level = next
	}
	return level[0]
}

// deriveSha builds the RLP-index-keyed root used for tx_root/receipt_root:
// key i is the RLP encoding of the big-endian index i, matching the
// convention used to derive transaction/receipt roots in EVM-compatible
// chains.
func deriveSha(items [][]byte) Hash {
	if len(items) == 0 {
		return emptyRootHash
	}
	leaves := make([]trieLeaf, len(items))
	for i, it := range items {
		idx := make([]byte, 8)
		binary.BigEndian.PutUint64(idx, uint64(i))
		key, _ := rlp.EncodeToBytes(idx)
		leaves[i] = trieLeaf{Key: key, Value: it}
	}
	return merkleRootOf(leaves)
}

// AccountState is the value stored in the account trie, keyed by address.
type AccountState struct {
	Balance     []byte // big-endian big.Int bytes
	Nonce       uint64
	CodeHash    Hash
	StorageRoot Hash
}

func (a AccountState) encode() []byte {
	b, _ := rlp.EncodeToBytes(a)
	return b
}

// StateCommitter computes a new state_root from a parent root and a set of
// account mutations. It is pure in (parent_state_root, mutations) per the
// storage contract in §4.1: identical inputs always yield the identical
// root, independent of insertion order or wall-clock.
type StateCommitter struct{}

// CommitAccounts returns the new account-trie root for the given final
// account states. Because the trie is a pure function of its leaf set, the
// "parent root" is not consulted here — the ledger supplies the full
// post-mutation account set for each commit, so purity holds trivially and
// without needing incremental trie surgery.
func (StateCommitter) CommitAccounts(accounts map[Address]AccountState) Hash {
	leaves := make([]trieLeaf, 0, len(accounts))
	for addr, acc := range accounts {
		a := addr
		leaves = append(leaves, trieLeaf{Key: a[:], Value: acc.encode()})
	}
	return merkleRootOf(leaves)
}

// CommitStorage returns the new per-account storage-trie root for the given
// final slot set.
func (StateCommitter) CommitStorage(slots map[Hash][]byte) Hash {
	leaves := make([]trieLeaf, 0, len(slots))
	for slot, val := range slots {
		s := slot
		leaves = append(leaves, trieLeaf{Key: s[:], Value: val})
	}
	return merkleRootOf(leaves)
}
