package core

// Smart-contract runtime & registry.
//
//   - WASM-first execution – contracts compiled offline to WASM are hashed,
//     stored, and dispatched through the heavy VM tier; EVM bytecode
//     contracts run through the light tier. Either way, dispatch happens
//     through the VM interface (SelectVM/vmFor), never here directly.
//   - Ricardian metadata – an optional JSON manifest binding legal prose to
//     a contract's code hash, stored alongside the bytecode.
//   - Registry exposes Invoke, which routes execution through the VM,
//     meters gas, and returns the resulting ExecutionResult.
//
// Build-graph: depends on common, ledger, vm. No network or RPC imports.

import (
	"crypto/sha256"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

var (
	contractOnce sync.Once
	reg          *ContractRegistry
)

// InitContracts wires the global contract registry singleton to a ledger
// and VM dispatcher.
func InitContracts(led *Ledger, vmm VM) {
	contractOnce.Do(func() {
		reg = &ContractRegistry{
			ledger: led,
			vm:     vmm,
			byAddr: make(map[Address]*SmartContract),
		}
	})
}

// GetContractRegistry exposes the singleton instance for other packages.
func GetContractRegistry() *ContractRegistry { return reg }

// CompileWASM reads a precompiled .wasm blob, or invokes wat2wasm on a .wat
// source file, returning the bytecode and its sha256 digest.
func CompileWASM(srcPath string, outDir string) ([]byte, [32]byte, error) {
	switch filepath.Ext(srcPath) {
	case ".wasm":
		b, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, [32]byte{}, err
		}
		return b, sha256.Sum256(b), nil
	case ".wat":
		out := filepath.Join(outDir, filepath.Base(srcPath)+".wasm")
		if err := exec.Command("wat2wasm", "-o", out, srcPath).Run(); err != nil {
			return nil, [32]byte{}, err
		}
		b, err := os.ReadFile(out)
		if err != nil {
			return nil, [32]byte{}, err
		}
		return b, sha256.Sum256(b), nil
	default:
		return nil, [32]byte{}, errors.New("unsupported source: must be .wat or .wasm compiled offline beforehand")
	}
}

// InvokeWithReceipt looks up a deployed contract and runs it through the VM
// dispatcher, returning the raw execution result (gas used, return data,
// revert status) rather than a chain Receipt — contract calls made outside
// a transaction's own execution (e.g. RPC eth_call) have no tx to attach a
// receipt to.
func (cr *ContractRegistry) InvokeWithReceipt(
	caller Address,
	addr Address,
	args []byte,
	gasLimit uint64,
) (*ExecutionResult, error) {
	cr.mu.RLock()
	sc, ok := cr.byAddr[addr]
	cr.mu.RUnlock()
	if !ok {
		return nil, errors.New("contract not found")
	}

	if gasLimit == 0 || gasLimit > sc.GasLimit {
		gasLimit = sc.GasLimit
	}

	vmCtx := &VMContext{
		Stack:    NewStack(),
		Memory:   NewMemory(),
		State:    cr.ledger,
		GasMeter: NewGasMeter(gasLimit),
		Code:     sc.Bytecode,
		Args:     args,
		Contract: addr,
		Caller:   caller,
		TxOrigin: caller,
	}

	return cr.vm.Execute(sc.Bytecode, vmCtx)
}

// Invoke is a convenience wrapper over InvokeWithReceipt returning only the
// call's return data.
func (cr *ContractRegistry) Invoke(caller, addr Address, args []byte, gasLimit uint64) ([]byte, error) {
	res, err := cr.InvokeWithReceipt(caller, addr, args, gasLimit)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, errors.New("contract execution reverted")
	}
	return res.ReturnData, nil
}

// Deploy registers a new smart contract and persists its bytecode (and
// optional Ricardian metadata) to the ledger.
func (cr *ContractRegistry) Deploy(creator, addr Address, code, ricardian []byte, gas uint64) error {
	if len(code) == 0 {
		return errors.New("empty contract bytecode")
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if _, exists := cr.byAddr[addr]; exists {
		return errors.New("contract already deployed")
	}

	sc := &SmartContract{
		Address:   addr,
		Creator:   creator,
		CodeHash:  Keccak256(code),
		Bytecode:  code,
		GasLimit:  gas,
		CreatedAt: time.Now().UTC(),
	}
	cr.byAddr[addr] = sc

	if cr.ledger != nil {
		if err := cr.ledger.SetState(contractKey(addr), code); err != nil {
			return err
		}
		if len(ricardian) > 0 {
			if err := cr.ledger.SetState(ricardianKey(addr), ricardian); err != nil {
				return err
			}
		}
	}
	return nil
}

// Ricardian fetches the ricardian contract JSON for the given address, if any.
func (cr *ContractRegistry) Ricardian(addr Address) ([]byte, error) {
	if cr.ledger == nil {
		return nil, errors.New("ledger not available")
	}
	return cr.ledger.GetState(ricardianKey(addr))
}

// All returns a snapshot of all deployed contracts.
func (cr *ContractRegistry) All() map[Address]*SmartContract {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	out := make(map[Address]*SmartContract, len(cr.byAddr))
	for a, c := range cr.byAddr {
		out[a] = c
	}
	return out
}

// DeriveContractAddress deterministically derives a contract address from
// its creator and init code, matching the keccak256(sender||nonce)[12:]
// scheme used by CREATE, but keyed on code for CREATE2-style deployments
// where the caller wants a code-dependent address ahead of execution.
func DeriveContractAddress(creator Address, code []byte) Address {
	h := Keccak256(creator.Bytes(), code)
	var out Address
	copy(out[:], h[12:])
	return out
}

func contractKey(addr Address) []byte  { return append([]byte("contract:code:"), addr.Bytes()...) }
func ricardianKey(addr Address) []byte { return append([]byte("contract:ric:"), addr.Bytes()...) }
