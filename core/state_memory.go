package core

// state_memory.go – an in-memory StateRW backed by process maps, built by
// NewInMemoryState. eth_call/eth_estimateGas do not use it; they run
// against Ledger.Snapshot.

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/wasmerio/wasmer-go/wasmer"
)

type memState struct {
	mu        sync.RWMutex
	data      map[string][]byte
	balances  map[Address]*big.Int
	nonces    map[Address]uint64
	contracts map[Address][]byte
	codeHash  map[Address]Hash
	logs      []LogEntry
}

// NewInMemoryState returns a fresh, empty StateRW backed by process memory.
func NewInMemoryState() StateRW {
	return &memState{
		data:      make(map[string][]byte),
		balances:  make(map[Address]*big.Int),
		nonces:    make(map[Address]uint64),
		contracts: make(map[Address][]byte),
		codeHash:  make(map[Address]Hash),
	}
}

func (m *memState) GetState(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data[string(key)]...), nil
}

func (m *memState) SetState(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *memState) DeleteState(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *memState) HasState(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

type memIterator struct {
	keys, values [][]byte
	index        int
}

func (m *memState) PrefixIterator(prefix []byte) StateIterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it := &memIterator{index: -1}
	for k, v := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			it.keys = append(it.keys, []byte(k))
			it.values = append(it.values, v)
		}
	}
	return it
}

func (it *memIterator) Next() bool { it.index++; return it.index < len(it.keys) }
func (it *memIterator) Key() []byte {
	if it.index >= 0 && it.index < len(it.keys) {
		return it.keys[it.index]
	}
	return nil
}
func (it *memIterator) Value() []byte {
	if it.index >= 0 && it.index < len(it.values) {
		return it.values[it.index]
	}
	return nil
}
func (it *memIterator) Error() error { return nil }

// Snapshot runs fn and rolls every map back to its pre-call contents if fn
// returns an error, giving callers an atomic all-or-nothing mutation.
func (m *memState) Snapshot(fn func() error) error {
	m.mu.Lock()
	data := cloneBytesMap(m.data)
	balances := make(map[Address]*big.Int, len(m.balances))
	for a, v := range m.balances {
		balances[a] = new(big.Int).Set(v)
	}
	nonces := make(map[Address]uint64, len(m.nonces))
	for a, n := range m.nonces {
		nonces[a] = n
	}
	contracts := cloneAddrBytesMap(m.contracts)
	codeHash := make(map[Address]Hash, len(m.codeHash))
	for a, h := range m.codeHash {
		codeHash[a] = h
	}
	logs := append([]LogEntry(nil), m.logs...)
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		m.data, m.balances, m.nonces, m.contracts, m.codeHash, m.logs =
			data, balances, nonces, contracts, codeHash, logs
		m.mu.Unlock()
		return err
	}
	return nil
}

func cloneBytesMap(in map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func cloneAddrBytesMap(in map[Address][]byte) map[Address][]byte {
	out := make(map[Address][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (m *memState) Transfer(from, to Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return NewError(ErrKindExecution, "InsufficientBalance", fmt.Sprintf("have %s need %s", bal, amount))
	}
	m.balances[from] = new(big.Int).Sub(bal, amount)
	m.balances[to] = new(big.Int).Add(m.balanceLocked(to), amount)
	return nil
}

func (m *memState) balanceLocked(addr Address) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (m *memState) Mint(addr Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] = new(big.Int).Add(m.balanceLocked(addr), amount)
	return nil
}

func (m *memState) Burn(addr Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.balanceLocked(addr)
	if bal.Cmp(amount) < 0 {
		return NewError(ErrKindExecution, "InsufficientBalance", "burn exceeds balance")
	}
	m.balances[addr] = new(big.Int).Sub(bal, amount)
	return nil
}

func (m *memState) BalanceOf(addr Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.balanceLocked(addr))
}

func (m *memState) NonceOf(addr Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nonces[addr]
}

func (m *memState) SetNonce(addr Address, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[addr] = nonce
	return nil
}

func (m *memState) Get(ns, key []byte) ([]byte, error) {
	return m.GetState(append(append([]byte{}, ns...), key...))
}

func (m *memState) Set(ns, key, val []byte) error {
	return m.SetState(append(append([]byte{}, ns...), key...), val)
}

func (m *memState) GetCode(addr Address) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.contracts[addr]...)
}

func (m *memState) SetCode(addr Address, code []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[addr] = append([]byte(nil), code...)
	m.codeHash[addr] = Keccak256(code)
	return nil
}

func (m *memState) GetCodeHash(addr Address) Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.codeHash[addr]
}

func (m *memState) AddLog(l LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

func (m *memState) GetContract(addr Address) (*Contract, error) {
	code := m.GetCode(addr)
	if len(code) == 0 {
		return nil, NewError(ErrKindStructural, "ContractNotFound", addr.Hex())
	}
	return &Contract{Address: addr, Bytecode: code, ABI: abi.ABI{}}, nil
}

func (m *memState) SelfDestruct(contract, beneficiary Address) {
	m.mu.Lock()
	bal := m.balanceLocked(contract)
	m.balances[beneficiary] = new(big.Int).Add(m.balanceLocked(beneficiary), bal)
	m.balances[contract] = new(big.Int)
	delete(m.contracts, contract)
	delete(m.codeHash, contract)
	m.mu.Unlock()
}

var wasmEngine = wasmer.NewEngine()

func vmFor(code []byte) VM {
	switch SelectVM(code) {
	case "superlight":
		return NewSuperLightVM()
	case "heavy":
		return NewHeavyVM(wasmEngine)
	default:
		return NewLightVM()
	}
}

func (m *memState) CreateContract(caller Address, code []byte, value *big.Int, gas uint64) (Address, []byte, bool, error) {
	m.mu.Lock()
	nonce := m.nonces[caller]
	m.nonces[caller] = nonce + 1
	m.mu.Unlock()

	addr := BytesToAddress(Keccak256(caller.Bytes(), []byte{byte(nonce)}).Bytes())

	ctx := &VMContext{
		Contract: addr,
		Caller:   caller,
		TxOrigin: caller,
		Value:    value,
		GasMeter: NewGasMeter(gas),
		State:    m,
		Memory:   NewMemory(),
		Stack:    NewStack(),
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
	_ = m.SetCode(addr, runtime)
	if value != nil && value.Sign() > 0 {
		_ = m.Transfer(caller, addr, value)
	}
	return addr, runtime, true, nil
}

func (m *memState) Call(from, to Address, input []byte, value *big.Int, gas uint64) ([]byte, bool, uint64, error) {
	code := m.GetCode(to)
	if value != nil && value.Sign() > 0 {
		if err := m.Transfer(from, to, value); err != nil {
			return nil, false, 0, err
		}
	}
	if len(code) == 0 {
		return nil, true, 0, nil
	}
	ctx := &VMContext{
		Contract: to,
		Caller:   from,
		TxOrigin: from,
		Value:    value,
		Args:     input,
		GasMeter: NewGasMeter(gas),
		State:    m,
		Memory:   NewMemory(),
		Stack:    NewStack(),
	}
	res, err := vmFor(code).Execute(code, ctx)
	if err != nil {
		return nil, false, 0, err
	}
	return res.ReturnData, res.Success, res.GasUsed, res.Err
}

func (m *memState) StaticCall(from, to Address, input []byte, gas uint64) ([]byte, bool, uint64, error) {
	code := m.GetCode(to)
	if len(code) == 0 {
		return nil, true, 0, nil
	}
	ctx := &VMContext{
		Contract: to,
		Caller:   from,
		TxOrigin: from,
		Value:    new(big.Int),
		Args:     input,
		GasMeter: NewGasMeter(gas),
		State:    m,
		Memory:   NewMemory(),
		Stack:    NewStack(),
	}
	res, err := vmFor(code).Execute(code, ctx)
	if err != nil {
		return nil, false, 0, err
	}
	return res.ReturnData, res.Success, res.GasUsed, res.Err
}
