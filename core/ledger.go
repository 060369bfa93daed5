package core

// ledger.go – persistent storage layer (§4.1): a write-ahead log of blocks
// plus periodic snapshots, replayed on open to rebuild the in-memory block
// index and account/contract state. Every PutBlock is an atomic batch: the
// WAL append, the block/receipt/address indices, and the account-state
// mutations either all land or none do.

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
)

// LedgerConfig configures a Ledger's on-disk layout and pruning policy.
type LedgerConfig struct {
	WALPath          string
	SnapshotPath     string
	SnapshotInterval int
	ArchivePath      string
	PruneInterval    int
	GenesisBlock     *Block
	// GenesisAlloc seeds starting balances alongside GenesisBlock. Safe to
	// apply on every open: WAL-recorded account deltas carry absolute
	// balances, not increments, so replaying the WAL after seeding simply
	// overwrites the seed for any account the chain has since touched.
	GenesisAlloc map[Address]*big.Int
}

// Ledger is the node's single source of truth for committed chain state. It
// satisfies BlockReader, StateRW, and MeteredState.
type Ledger struct {
	mu sync.RWMutex

	blocks        []*Block
	blockByHash   map[Hash]*Block
	blockByHeight map[uint64]*Block
	receipts      map[Hash]*Receipt
	txLocation    map[Hash]Hash // tx hash -> containing block hash
	txByHash      map[Hash]*Transaction
	addrTxs       map[Address][]Hash

	data      map[string][]byte
	balances  map[Address]*big.Int
	nonces    map[Address]uint64
	contracts map[Address][]byte
	codeHash  map[Address]Hash
	logs      []LogEntry

	dirtyAccounts map[Address]struct{}
	dirtyKeys     map[string]struct{}

	walFile          *os.File
	snapshotPath     string
	archivePath      string
	snapshotInterval int
	pruneInterval    int
}

// NewLedger opens (or creates) the WAL at cfg.WALPath, applies the genesis
// block and GenesisAlloc (neither is ever written to the WAL), then replays
// the WAL on top of them to rebuild state.
func NewLedger(cfg LedgerConfig) (l *Ledger, err error) {
	wal, err := os.OpenFile(cfg.WALPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open WAL: %w", err)
	}
	defer func() {
		if err != nil {
			_ = wal.Close()
		}
	}()

	l = &Ledger{
		blockByHash:      make(map[Hash]*Block),
		blockByHeight:    make(map[uint64]*Block),
		receipts:         make(map[Hash]*Receipt),
		txLocation:       make(map[Hash]Hash),
		txByHash:         make(map[Hash]*Transaction),
		addrTxs:          make(map[Address][]Hash),
		data:             make(map[string][]byte),
		balances:         make(map[Address]*big.Int),
		nonces:           make(map[Address]uint64),
		contracts:        make(map[Address][]byte),
		codeHash:         make(map[Address]Hash),
		dirtyAccounts:    make(map[Address]struct{}),
		dirtyKeys:        make(map[string]struct{}),
		walFile:          wal,
		snapshotPath:     cfg.SnapshotPath,
		archivePath:      cfg.ArchivePath,
		snapshotInterval: cfg.SnapshotInterval,
		pruneInterval:    cfg.PruneInterval,
	}

	if cfg.GenesisBlock != nil && len(l.blocks) == 0 {
		if err = l.commitBlock(cfg.GenesisBlock, false); err != nil {
			return nil, err
		}
		for addr, bal := range cfg.GenesisAlloc {
			l.balances[addr] = new(big.Int).Set(bal)
		}
		logrus.Infof("ledger: loaded genesis block height %d", cfg.GenesisBlock.Header.Height)
	}

	scanner := bufio.NewScanner(wal)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec walRecord
		if err = json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("WAL unmarshal: %w", err)
		}
		if err = l.applyWALRecord(&rec); err != nil {
			return nil, fmt.Errorf("WAL replay: %w", err)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("WAL scan: %w", err)
	}
	return l, nil
}

// OpenLedger opens the ledger rooted at dir, a directory containing
// ledger.snap and ledger.wal (either may be absent on first run).
func OpenLedger(dir string) (*Ledger, error) {
	return NewLedger(LedgerConfig{
		WALPath:      filepath.Join(dir, "ledger.wal"),
		SnapshotPath: filepath.Join(dir, "ledger.snap"),
	})
}

// walRecord is the unit appended to the WAL: a committed block plus the
// receipts and account deltas produced by executing it.
type walRecord struct {
	Block    *Block           `json:"block"`
	Receipts []*Receipt       `json:"receipts"`
	Accounts []accountDelta   `json:"accounts"`
	Storage  []storageDelta   `json:"storage"`
	Logs     []LogEntry       `json:"logs"`
}

type accountDelta struct {
	Address Address `json:"address"`
	Balance []byte  `json:"balance"`
	Nonce   uint64  `json:"nonce"`
	Code    []byte  `json:"code,omitempty"`
}

type storageDelta struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

func (l *Ledger) applyWALRecord(rec *walRecord) error {
	return l.indexBlock(rec.Block, rec.Receipts, rec.Accounts, rec.Storage, rec.Logs)
}

func (l *Ledger) indexBlock(b *Block, receipts []*Receipt, accounts []accountDelta, storage []storageDelta, logs []LogEntry) error {
	expected := uint64(len(l.blocks))
	if b.Header.Height != expected {
		return fmt.Errorf("invalid block height: expected %d, got %d", expected, b.Header.Height)
	}
	h, err := b.Hash()
	if err != nil {
		return fmt.Errorf("hash block: %w", err)
	}

	l.blocks = append(l.blocks, b)
	l.blockByHash[h] = b
	l.blockByHeight[b.Header.Height] = b

	for i, tx := range b.Transactions {
		txHash := tx.Hash()
		l.txByHash[txHash] = tx
		l.txLocation[txHash] = h
		if i < len(receipts) {
			l.receipts[txHash] = receipts[i]
		}
		if from, err := tx.Sender(); err == nil {
			l.addrTxs[from] = append(l.addrTxs[from], txHash)
		}
		if tx.To != nil {
			l.addrTxs[*tx.To] = append(l.addrTxs[*tx.To], txHash)
		}
	}

	for _, d := range accounts {
		l.balances[d.Address] = new(big.Int).SetBytes(d.Balance)
		l.nonces[d.Address] = d.Nonce
		if len(d.Code) > 0 {
			l.contracts[d.Address] = d.Code
			l.codeHash[d.Address] = Keccak256(d.Code)
		}
	}
	for _, d := range storage {
		l.data[string(d.Key)] = d.Value
	}
	l.logs = append(l.logs, logs...)
	return nil
}

// commitBlock is indexBlock plus, when persist is true, the WAL append and
// periodic snapshot/prune.
func (l *Ledger) commitBlock(b *Block, persist bool) error {
	if err := l.indexBlock(b, b.Receipts, nil, nil, nil); err != nil {
		return err
	}
	if !persist {
		return nil
	}
	return l.appendWAL(&walRecord{Block: b, Receipts: b.Receipts})
}

// PutBlock is the external entry point: it persists a block and the state
// deltas produced while executing it as a single atomic WAL append.
func (l *Ledger) PutBlock(b *Block, accounts []accountDelta, storage []storageDelta) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := &walRecord{Block: b, Receipts: b.Receipts, Accounts: accounts, Storage: storage}
	if err := l.indexBlock(b, b.Receipts, accounts, storage, nil); err != nil {
		return WrapError(ErrKindStructural, "InvalidBlock", err)
	}
	return l.appendWAL(rec)
}

func (l *Ledger) appendWAL(rec *walRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal WAL record: %w", err)
	}
	if _, err := l.walFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write WAL: %w", err)
	}
	if err := l.walFile.Sync(); err != nil {
		return fmt.Errorf("sync WAL: %w", err)
	}
	if l.snapshotInterval > 0 && len(l.blocks)%l.snapshotInterval == 0 {
		if err := l.snapshot(); err != nil {
			logrus.Errorf("ledger: snapshot failed: %v", err)
		}
	}
	if l.pruneInterval > 0 {
		if err := l.prune(); err != nil {
			logrus.Errorf("ledger: prune failed: %v", err)
		}
	}
	return nil
}

type ledgerSnapshot struct {
	Blocks   []*Block          `json:"blocks"`
	Balances map[string]string `json:"balances"`
	Nonces   map[string]uint64 `json:"nonces"`
}

func (l *Ledger) snapshot() error {
	snap := ledgerSnapshot{
		Blocks:   l.blocks,
		Balances: make(map[string]string, len(l.balances)),
		Nonces:   make(map[string]uint64, len(l.nonces)),
	}
	for a, b := range l.balances {
		snap.Balances[a.Hex()] = b.String()
	}
	for a, n := range l.nonces {
		snap.Nonces[a.Hex()] = n
	}
	f, err := os.Create(l.snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		return err
	}
	if err := l.walFile.Truncate(0); err != nil {
		return err
	}
	_, err = l.walFile.Seek(0, 0)
	return err
}

// prune archives the oldest blocks beyond pruneInterval to a gzip file and
// drops them from the ordered in-memory block list; blockByHash,
// blockByHeight and the receipt/tx indices keep their entries.
func (l *Ledger) prune() error {
	if len(l.blocks) <= l.pruneInterval || l.archivePath == "" {
		return nil
	}
	toArchive := len(l.blocks) - l.pruneInterval
	f, err := os.OpenFile(l.archivePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()
	for i := 0; i < toArchive; i++ {
		data, err := json.Marshal(l.blocks[i])
		if err != nil {
			return err
		}
		if _, err := gz.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	l.blocks = l.blocks[toArchive:]
	return nil
}

//---------------------------------------------------------------------
// BlockReader
//---------------------------------------------------------------------

func (l *Ledger) GetBlockByHeight(height uint64) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.blockByHeight[height]
	if !ok {
		return nil, NewError(ErrKindStructural, "BlockNotFound", fmt.Sprintf("height %d", height))
	}
	return b, nil
}

func (l *Ledger) GetBlockByHash(hash Hash) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.blockByHash[hash]
	if !ok {
		return nil, NewError(ErrKindStructural, "BlockNotFound", hash.Hex())
	}
	return b, nil
}

func (l *Ledger) GetBlockByTip() (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.blocks) == 0 {
		return nil, NewError(ErrKindStructural, "BlockNotFound", "empty chain")
	}
	return l.blocks[len(l.blocks)-1], nil
}

func (l *Ledger) LastHeight() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.blocks) == 0 {
		return 0
	}
	return l.blocks[len(l.blocks)-1].Header.Height
}

func (l *Ledger) HasBlock(hash Hash) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.blockByHash[hash]
	return ok
}

func (l *Ledger) DecodeBlockRLP(data []byte) (*Block, error) {
	var b Block
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (l *Ledger) ImportBlock(b *Block) error {
	return l.PutBlock(b, nil, nil)
}

// GetReceipt returns the receipt for a confirmed transaction.
func (l *Ledger) GetReceipt(txHash Hash) (*Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.receipts[txHash]
	if !ok {
		return nil, NewError(ErrKindStructural, "ReceiptNotFound", txHash.Hex())
	}
	return r, nil
}

// GetTransaction returns a confirmed transaction and the block it landed in.
func (l *Ledger) GetTransaction(txHash Hash) (*Transaction, Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.txByHash[txHash]
	if !ok {
		return nil, Hash{}, NewError(ErrKindStructural, "TransactionNotFound", txHash.Hex())
	}
	return tx, l.txLocation[txHash], nil
}

// TransactionsForAddress returns every confirmed transaction touching addr
// as sender or recipient, most recent first.
func (l *Ledger) TransactionsForAddress(addr Address, limit int) []Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.addrTxs[addr]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Hash, limit)
	for i := 0; i < limit; i++ {
		out[i] = all[len(all)-1-i]
	}
	return out
}

//---------------------------------------------------------------------
// StateRW
//---------------------------------------------------------------------

func (l *Ledger) GetState(key []byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]byte(nil), l.data[string(key)]...), nil
}

func (l *Ledger) SetState(key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[string(key)] = append([]byte(nil), value...)
	l.dirtyKeys[string(key)] = struct{}{}
	return nil
}

func (l *Ledger) DeleteState(key []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, string(key))
	l.dirtyKeys[string(key)] = struct{}{}
	return nil
}

func (l *Ledger) HasState(key []byte) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.data[string(key)]
	return ok, nil
}

func (l *Ledger) PrefixIterator(prefix []byte) StateIterator {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it := &memIterator{index: -1}
	for k, v := range l.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			it.keys = append(it.keys, []byte(k))
			it.values = append(it.values, v)
		}
	}
	return it
}

func (l *Ledger) Snapshot(fn func() error) error {
	l.mu.Lock()
	data := cloneBytesMap(l.data)
	balances := make(map[Address]*big.Int, len(l.balances))
	for a, v := range l.balances {
		balances[a] = new(big.Int).Set(v)
	}
	nonces := make(map[Address]uint64, len(l.nonces))
	for a, n := range l.nonces {
		nonces[a] = n
	}
	contracts := cloneAddrBytesMap(l.contracts)
	codeHash := make(map[Address]Hash, len(l.codeHash))
	for a, h := range l.codeHash {
		codeHash[a] = h
	}
	l.mu.Unlock()

	if err := fn(); err != nil {
		l.mu.Lock()
		l.data, l.balances, l.nonces, l.contracts, l.codeHash = data, balances, nonces, contracts, codeHash
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *Ledger) balanceLocked(addr Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) Transfer(from, to Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return NewError(ErrKindExecution, "InsufficientBalance", fmt.Sprintf("have %s need %s", bal, amount))
	}
	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.balances[to] = new(big.Int).Add(l.balanceLocked(to), amount)
	l.dirtyAccounts[from] = struct{}{}
	l.dirtyAccounts[to] = struct{}{}
	return nil
}

func (l *Ledger) Mint(addr Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Add(l.balanceLocked(addr), amount)
	l.dirtyAccounts[addr] = struct{}{}
	return nil
}

func (l *Ledger) Burn(addr Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(addr)
	if bal.Cmp(amount) < 0 {
		return NewError(ErrKindExecution, "InsufficientBalance", "burn exceeds balance")
	}
	l.balances[addr] = new(big.Int).Sub(bal, amount)
	l.dirtyAccounts[addr] = struct{}{}
	return nil
}

func (l *Ledger) BalanceOf(addr Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

func (l *Ledger) NonceOf(addr Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nonces[addr]
}

func (l *Ledger) SetNonce(addr Address, nonce uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonces[addr] = nonce
	l.dirtyAccounts[addr] = struct{}{}
	return nil
}

func (l *Ledger) Get(ns, key []byte) ([]byte, error) {
	return l.GetState(append(append([]byte{}, ns...), key...))
}

func (l *Ledger) Set(ns, key, val []byte) error {
	return l.SetState(append(append([]byte{}, ns...), key...), val)
}

func (l *Ledger) GetCode(addr Address) []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]byte(nil), l.contracts[addr]...)
}

func (l *Ledger) SetCode(addr Address, code []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contracts[addr] = append([]byte(nil), code...)
	l.codeHash[addr] = Keccak256(code)
	l.dirtyAccounts[addr] = struct{}{}
	return nil
}

func (l *Ledger) GetCodeHash(addr Address) Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.codeHash[addr]
}

func (l *Ledger) AddLog(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, entry)
}

// DrainLogsFrom returns the logs appended since index from (exclusive of
// logs already seen) and the new high-water mark, letting a caller collect
// exactly the logs one transaction's execution produced.
func (l *Ledger) DrainLogsFrom(from int) ([]LogEntry, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from >= len(l.logs) {
		return nil, len(l.logs)
	}
	out := append([]LogEntry(nil), l.logs[from:]...)
	return out, len(l.logs)
}

// LogCount reports the current high-water mark for DrainLogsFrom.
func (l *Ledger) LogCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.logs)
}

// DrainDirty returns an accountDelta/storageDelta pair covering every
// address and key touched since the last call, then clears the dirty sets.
// The sequencer calls this right before PutBlock so the WAL record carries
// enough to replay the block's state mutations on restart without
// re-executing it.
func (l *Ledger) DrainDirty() ([]accountDelta, []storageDelta) {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make([]accountDelta, 0, len(l.dirtyAccounts))
	for addr := range l.dirtyAccounts {
		accounts = append(accounts, accountDelta{
			Address: addr,
			Balance: l.balanceLocked(addr).Bytes(),
			Nonce:   l.nonces[addr],
			Code:    l.contracts[addr],
		})
	}
	storage := make([]storageDelta, 0, len(l.dirtyKeys))
	for key := range l.dirtyKeys {
		storage = append(storage, storageDelta{Key: []byte(key), Value: l.data[key]})
	}
	l.dirtyAccounts = make(map[Address]struct{})
	l.dirtyKeys = make(map[string]struct{})
	return accounts, storage
}

func (l *Ledger) GetContract(addr Address) (*Contract, error) {
	code := l.GetCode(addr)
	if len(code) == 0 {
		return nil, NewError(ErrKindStructural, "ContractNotFound", addr.Hex())
	}
	return &Contract{Address: addr, Bytecode: code, ABI: abi.ABI{}}, nil
}

func (l *Ledger) SelfDestruct(contract, beneficiary Address) {
	l.mu.Lock()
	bal := l.balanceLocked(contract)
	l.balances[beneficiary] = new(big.Int).Add(l.balanceLocked(beneficiary), bal)
	l.balances[contract] = new(big.Int)
	delete(l.contracts, contract)
	delete(l.codeHash, contract)
	l.mu.Unlock()
}

func (l *Ledger) CreateContract(caller Address, code []byte, value *big.Int, gas uint64) (Address, []byte, bool, error) {
	l.mu.Lock()
	nonce := l.nonces[caller]
	l.nonces[caller] = nonce + 1
	l.mu.Unlock()

	addr := BytesToAddress(Keccak256(caller.Bytes(), []byte{byte(nonce)}).Bytes())
	ctx := &VMContext{
		Contract: addr, Caller: caller, TxOrigin: caller, Value: value,
		GasMeter: NewGasMeter(gas), State: l, Memory: NewMemory(), Stack: NewStack(),
	}
	res, err := vmFor(code).Execute(code, ctx)
	if err != nil {
		return addr, nil, false, err
	}
	if !res.Success {
		return addr, res.ReturnData, false, res.Err
	}
	runtime := res.ReturnData
	if len(runtime) == 0 {
		runtime = code
	}
	_ = l.SetCode(addr, runtime)
	if value != nil && value.Sign() > 0 {
		_ = l.Transfer(caller, addr, value)
	}
	return addr, runtime, true, nil
}

func (l *Ledger) Call(from, to Address, input []byte, value *big.Int, gas uint64) ([]byte, bool, uint64, error) {
	code := l.GetCode(to)
	if value != nil && value.Sign() > 0 {
		if err := l.Transfer(from, to, value); err != nil {
			return nil, false, 0, err
		}
	}
	if len(code) == 0 {
		return nil, true, 0, nil
	}
	ctx := &VMContext{
		Contract: to, Caller: from, TxOrigin: from, Value: value, Args: input,
		GasMeter: NewGasMeter(gas), State: l, Memory: NewMemory(), Stack: NewStack(),
	}
	res, err := vmFor(code).Execute(code, ctx)
	if err != nil {
		return nil, false, 0, err
	}
	return res.ReturnData, res.Success, res.GasUsed, res.Err
}

func (l *Ledger) StaticCall(from, to Address, input []byte, gas uint64) ([]byte, bool, uint64, error) {
	code := l.GetCode(to)
	if len(code) == 0 {
		return nil, true, 0, nil
	}
	ctx := &VMContext{
		Contract: to, Caller: from, TxOrigin: from, Value: new(big.Int), Args: input,
		GasMeter: NewGasMeter(gas), State: l, Memory: NewMemory(), Stack: NewStack(),
	}
	res, err := vmFor(code).Execute(code, ctx)
	if err != nil {
		return nil, false, 0, err
	}
	return res.ReturnData, res.Success, res.GasUsed, res.Err
}

//---------------------------------------------------------------------
// MeteredState
//---------------------------------------------------------------------

// Charge deducts gas*price from sender's balance; callers price `gas` in
// wei before calling (gas units already multiplied by the effective price).
func (l *Ledger) Charge(sender Address, weiCost uint64) error {
	return l.Burn(sender, new(big.Int).SetUint64(weiCost))
}

// ChargeStorageRent burns a byte-proportional fee from payer for newly
// persisted state; the node does not yet price rent dynamically so this is
// a fixed 1 wei/byte placeholder wired for future governance control.
func (l *Ledger) ChargeStorageRent(payer Address, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return l.Burn(payer, big.NewInt(bytes))
}

// Close releases the WAL file handle.
func (l *Ledger) Close() error {
	if l == nil || l.walFile == nil {
		return nil
	}
	return l.walFile.Close()
}

// StateCommitterFor returns the account/storage roots for the ledger's
// current state, used by the sequencer when it has no pending overlay to
// diff against.
func (l *Ledger) StateCommitterFor() (Hash, Hash) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	accounts := make(map[Address]AccountState, len(l.balances))
	for addr, bal := range l.balances {
		accounts[addr] = AccountState{
			Balance:  bal.Bytes(),
			Nonce:    l.nonces[addr],
			CodeHash: l.codeHash[addr],
		}
	}
	storage := make(map[Hash][]byte, len(l.data))
	for k, v := range l.data {
		storage[Keccak256([]byte(k))] = v
	}
	var c StateCommitter
	return c.CommitAccounts(accounts), c.CommitStorage(storage)
}
