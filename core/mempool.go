package core

// Mempool – pending-transaction admission and ordering (§4.4). Replaces the
// teacher's single-lock pending-payment queue with per-sender buckets so a
// snapshot for block building only takes a short read lock while admission
// for unrelated senders proceeds concurrently (§5's concurrency-model note).
//
// Admission runs five checks in a fixed order: structural, cryptographic,
// economic, account (nonce), capacity. Each stage rejects with a NodeError
// carrying the reason so RPC/gossip callers never need string matching.

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"
)

// MempoolConfig carries the genesis/operator-tunable admission knobs. The
// node wires these in from the loaded configuration at startup.
type MempoolConfig struct {
	ChainID           uint64
	MaxSize           int           // total admitted tx cap across all senders
	MaxPerAccount     int           // max entries (pending+queued) per sender
	TTL               time.Duration // entries older than this are reaped
	MaxBytes          int64         // total pool size cap, in canonical-encoding bytes
	MaxTxBytes        int64         // single tx size cap
	MaxFutureNonces   uint64        // k: nonce gap allowed before an entry queues instead of rejects
	ReplacementFactor float64       // e.g. 0.10 for a required 10% bump to replace
	MinGasPrice       *big.Int
	BlockGasLimit     uint64
}

func (c MempoolConfig) minGasPrice() *big.Int {
	if c.MinGasPrice == nil {
		return big.NewInt(0)
	}
	return c.MinGasPrice
}

// poolEntry is one admitted transaction plus the bookkeeping the pool needs
// that isn't worth recomputing on every snapshot.
type poolEntry struct {
	tx      *Transaction
	sender  Address
	size    int64
	addedAt time.Time
}

// priorityFee returns the tip this entry actually pays at the given base
// fee, per §4.2 step 3 — the same formula execution uses, so ordering here
// matches what the executor will charge.
func (e *poolEntry) priorityFee(baseFee *big.Int) *big.Int {
	var price *big.Int
	var tipCap *big.Int
	switch e.tx.Kind {
	case TxDynamicFee:
		price = orZero(e.tx.MaxFeePerGas)
		tipCap = orZero(e.tx.MaxPriorityFeePerGas)
	default:
		price = orZero(e.tx.GasPrice)
		tipCap = nil
	}
	tip := new(big.Int).Sub(price, baseFee)
	if tip.Sign() < 0 {
		return big.NewInt(0)
	}
	if tipCap != nil && tip.Cmp(tipCap) > 0 {
		return new(big.Int).Set(tipCap)
	}
	return tip
}

// maxFee is the ceiling the sender has committed to pay per gas unit,
// irrespective of base fee — used by the replacement-bump check.
func (e *poolEntry) maxFee() *big.Int {
	if e.tx.Kind == TxDynamicFee {
		return orZero(e.tx.MaxFeePerGas)
	}
	return orZero(e.tx.GasPrice)
}

// maxTip is the priority-fee ceiling; legacy/access-list txs have no
// separate notion of tip so it equals maxFee.
func (e *poolEntry) maxTip() *big.Int {
	if e.tx.Kind == TxDynamicFee {
		return orZero(e.tx.MaxPriorityFeePerGas)
	}
	return orZero(e.tx.GasPrice)
}

// senderBucket holds one account's admitted transactions keyed by nonce.
type senderBucket struct {
	byNonce map[uint64]*poolEntry
}

// Mempool is the node's pending-transaction pool. It satisfies txPool
// (Pick) for the consensus seam and mempoolSnapshotter (Len) for the health
// logger; the sequencer drives it directly via Snapshot.
type Mempool struct {
	cfg   MempoolConfig
	state StateRW

	mu         sync.RWMutex
	buckets    map[Address]*senderBucket
	count      int
	totalBytes int64
	baseFee    *big.Int // last base fee observed from the chain tip, for ordering
}

// NewMempool constructs an empty pool bound to the given state view for
// nonce/balance checks.
func NewMempool(cfg MempoolConfig, state StateRW) *Mempool {
	bf := cfg.minGasPrice()
	if bf == nil {
		bf = big.NewInt(0)
	}
	return &Mempool{
		cfg:     cfg,
		state:   state,
		buckets: make(map[Address]*senderBucket),
		baseFee: new(big.Int).Set(bf),
	}
}

// SetBaseFee updates the fee the pool uses to rank pending transactions;
// the sequencer calls this after computing each block's base fee so the
// next snapshot orders by the fee that will actually apply.
func (m *Mempool) SetBaseFee(fee *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseFee = new(big.Int).Set(fee)
}

// Len reports the total number of admitted transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// BaseFee returns the fee the pool currently ranks pending transactions
// against, for RPC surfaces (eth_gasPrice) that report a current price.
func (m *Mempool) BaseFee() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.baseFee)
}

//---------------------------------------------------------------------
// Admission
//---------------------------------------------------------------------

// Add runs the five-stage admission pipeline and, on success, inserts or
// replaces the pool entry for tx's (sender, nonce).
func (m *Mempool) Add(tx *Transaction) error {
	raw, err := tx.CanonicalBytes()
	if err != nil {
		return NewError(ErrKindStructural, "Malformed", err.Error())
	}
	size := int64(len(raw))
	if size > m.cfg.MaxTxBytes {
		return NewError(ErrKindStructural, "TooLarge", "transaction exceeds max_tx_bytes")
	}

	sender, err := tx.Sender()
	if err != nil {
		if _, ok := AsNodeError(err); ok {
			return err
		}
		return WrapError(ErrKindCryptographic, "InvalidSignature", err)
	}
	if tx.ChainID != m.cfg.ChainID {
		return NewError(ErrKindCryptographic, "WrongChainId", "tx chain id does not match node configuration")
	}

	if tx.GasLimit > m.cfg.BlockGasLimit {
		return NewError(ErrKindPolicy, "GasLimitExceedsBlock", "gas_limit exceeds block_gas_limit")
	}
	if e := (&poolEntry{tx: tx}); e.maxFee().Cmp(m.cfg.minGasPrice()) < 0 {
		return NewError(ErrKindPolicy, "GasPriceTooLow", "max fee per gas below min_gas_price")
	}
	if tx.Kind == TxDynamicFee && tx.MaxFeePerGas.Cmp(tx.MaxPriorityFeePerGas) < 0 {
		return NewError(ErrKindPolicy, "InvalidFeeCap", "max_fee_per_gas below max_priority_fee_per_gas")
	}

	current := m.state.NonceOf(sender)
	if tx.Nonce < current {
		return NewError(ErrKindPolicy, "NonceTooLow", "nonce already consumed")
	}
	if gap := tx.Nonce - current; gap > m.cfg.MaxFutureNonces {
		return NewError(ErrKindPolicy, "NonceGapTooLarge", "nonce exceeds max_future_nonces")
	}

	entry := &poolEntry{tx: tx, sender: sender, size: size, addedAt: time.Now()}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.buckets[sender]
	if bucket == nil {
		bucket = &senderBucket{byNonce: make(map[uint64]*poolEntry)}
		m.buckets[sender] = bucket
	}

	if existing, ok := bucket.byNonce[tx.Nonce]; ok {
		if !replacementBumpsEnough(existing, entry, m.cfg.ReplacementFactor) {
			return NewError(ErrKindPolicy, "ReplacementUnderpriced", "replacement does not bump fee and tip by replacement_factor")
		}
		m.totalBytes += size - existing.size
		bucket.byNonce[tx.Nonce] = entry
		return m.enforceCapacity()
	}

	if len(bucket.byNonce) >= m.cfg.MaxPerAccount {
		return NewError(ErrKindResource, "AccountSlotsFull", "sender has reached max_per_account pending transactions")
	}

	bucket.byNonce[tx.Nonce] = entry
	m.count++
	m.totalBytes += size
	return m.enforceCapacity()
}

// replacementBumpsEnough implements §4.4's replacement rule: both the fee
// cap and the tip cap must each exceed the existing entry's by at least
// factor.
func replacementBumpsEnough(old, next *poolEntry, factor float64) bool {
	bump := func(oldV, newV *big.Int) bool {
		if oldV.Sign() == 0 {
			return newV.Sign() > 0
		}
		threshold := new(big.Float).Mul(new(big.Float).SetInt(oldV), big.NewFloat(1+factor))
		newF := new(big.Float).SetInt(newV)
		return newF.Cmp(threshold) >= 0
	}
	return bump(old.maxFee(), next.maxFee()) && bump(old.maxTip(), next.maxTip())
}

// enforceCapacity evicts the globally lowest-priority-fee entry until the
// pool is back within its size/byte caps. Called with m.mu held.
func (m *Mempool) enforceCapacity() error {
	for m.count > m.cfg.MaxSize || m.totalBytes > m.cfg.MaxBytes {
		victim, victimSender, victimNonce, ok := m.lowestPriorityLocked()
		if !ok {
			break
		}
		bucket := m.buckets[victimSender]
		delete(bucket.byNonce, victimNonce)
		if len(bucket.byNonce) == 0 {
			delete(m.buckets, victimSender)
		}
		m.count--
		m.totalBytes -= victim.size
	}
	return nil
}

func (m *Mempool) lowestPriorityLocked() (*poolEntry, Address, uint64, bool) {
	var (
		worst       *poolEntry
		worstSender Address
		worstNonce  uint64
		found       bool
	)
	for sender, bucket := range m.buckets {
		for nonce, e := range bucket.byNonce {
			if !found || e.priorityFee(m.baseFee).Cmp(worst.priorityFee(m.baseFee)) < 0 {
				worst, worstSender, worstNonce, found = e, sender, nonce, true
			}
		}
	}
	return worst, worstSender, worstNonce, found
}

//---------------------------------------------------------------------
// Removal / expiry
//---------------------------------------------------------------------

// Remove drops a single (sender, nonce) entry, used once its transaction is
// included in a block.
func (m *Mempool) Remove(sender Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[sender]
	if !ok {
		return
	}
	e, ok := bucket.byNonce[nonce]
	if !ok {
		return
	}
	delete(bucket.byNonce, nonce)
	if len(bucket.byNonce) == 0 {
		delete(m.buckets, sender)
	}
	m.count--
	m.totalBytes -= e.size
}

// PruneExpired evicts entries older than the configured TTL.
func (m *Mempool) PruneExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sender, bucket := range m.buckets {
		for nonce, e := range bucket.byNonce {
			if now.Sub(e.addedAt) > m.cfg.TTL {
				delete(bucket.byNonce, nonce)
				m.count--
				m.totalBytes -= e.size
			}
		}
		if len(bucket.byNonce) == 0 {
			delete(m.buckets, sender)
		}
	}
}

// Reap runs PruneExpired on a ticker until ctx is canceled, mirroring the
// consensus engine's ticker-driven service loops.
func (m *Mempool) Reap(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.PruneExpired(now)
		}
	}
}

//---------------------------------------------------------------------
// Ordering / snapshot
//---------------------------------------------------------------------

// senderCursor tracks, for one sender, the run of entries executable against
// current on-chain state (starting at the account's current nonce, each
// chained after the previous one) and how far orderedExecutable has
// consumed it.
type senderCursor struct {
	sender  Address
	pending []uint64 // sorted ascending, contiguous nonces starting at the executable nonce
	idx     int
}

// orderedExecutable returns every admitted transaction that is currently
// executable (contiguous from the account's on-chain nonce), in the greedy
// (sender, nonce) ascending / cross-sender descending-priority-fee order
// §4.5 requires, with tx hash as the final tiebreak.
func (m *Mempool) orderedExecutable() []*poolEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cursors := make([]*senderCursor, 0, len(m.buckets))
	for sender, bucket := range m.buckets {
		current := m.state.NonceOf(sender)
		var nonces []uint64
		for n := range bucket.byNonce {
			nonces = append(nonces, n)
		}
		sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })

		var contiguous []uint64
		want := current
		for _, n := range nonces {
			if n != want {
				break
			}
			contiguous = append(contiguous, n)
			want++
		}
		if len(contiguous) > 0 {
			cursors = append(cursors, &senderCursor{sender: sender, pending: contiguous})
		}
	}

	var out []*poolEntry
	for {
		bestIdx := -1
		var bestEntry *poolEntry
		for i, c := range cursors {
			if c.idx >= len(c.pending) {
				continue
			}
			e := m.buckets[c.sender].byNonce[c.pending[c.idx]]
			if bestEntry == nil {
				bestIdx, bestEntry = i, e
				continue
			}
			cmp := e.priorityFee(m.baseFee).Cmp(bestEntry.priorityFee(m.baseFee))
			if cmp > 0 || (cmp == 0 && lessHash(e.tx.Hash(), bestEntry.tx.Hash())) {
				bestIdx, bestEntry = i, e
			}
		}
		if bestIdx == -1 {
			break
		}
		out = append(out, bestEntry)
		cursors[bestIdx].idx++
	}
	return out
}

func lessHash(a, b Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Snapshot returns executable, ordered transactions packed greedily under
// maxGas, for the sequencer to execute and include in a block.
func (m *Mempool) Snapshot(maxGas uint64) []*Transaction {
	var (
		out     []*Transaction
		usedGas uint64
		skipped = make(map[Address]bool)
	)
	for _, e := range m.orderedExecutable() {
		if skipped[e.sender] {
			continue
		}
		if usedGas+e.tx.GasLimit > maxGas {
			// Later nonces of this sender would no longer be executable.
			skipped[e.sender] = true
			continue
		}
		usedGas += e.tx.GasLimit
		out = append(out, e.tx)
	}
	return out
}

// Pick satisfies the consensus engine's txPool seam: it returns the same
// ordering as Snapshot, packed by canonical-encoding byte budget instead of
// gas, as raw wire bytes ready for gossip/inclusion.
func (m *Mempool) Pick(maxBytes int) [][]byte {
	var (
		out  [][]byte
		used int
	)
	for _, e := range m.orderedExecutable() {
		raw, err := e.tx.CanonicalBytes()
		if err != nil {
			continue
		}
		if used+len(raw) > maxBytes {
			continue
		}
		used += len(raw)
		out = append(out, raw)
	}
	return out
}
