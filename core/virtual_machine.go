package core

// virtual_machine.go – the execution context and the three VM tiers
// (super-light no-op for empty code, light native interpreter, heavy Wasmer
// JIT) selected by SelectVM from the code's shape. The native
// interpreter tier executes real EVM bytecode through the opXXX handlers
// in utility_functions.go; Wasmer handles precompiled WASM contracts.

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// Memory is the linear byte array opcodes read from and write to.
type Memory interface {
	Read(offset, size uint64) []byte
	Write(offset uint64, data []byte)
	Len() int
}

// ChainContext provides the block-level data opcodes need.
type ChainContext interface {
	BlockNumber() uint64
	Time() uint64
	Difficulty() *big.Int
	GasLimit() uint64
	ChainID() *big.Int
	BlockHash(number uint64) Hash
}

// Stack is the EVM's 256-bit-word operand stack.
type Stack struct {
	data []*big.Int
}

func NewStack() *Stack { return &Stack{data: make([]*big.Int, 0, 16)} }

func (s *Stack) Push(v *big.Int) { s.data = append(s.data, v) }

// Pop removes and returns the top word. An empty stack yields zero rather
// than panicking; callers that need strict underflow detection should
// check Len() first.
func (s *Stack) Pop() *big.Int {
	if len(s.data) == 0 {
		return new(big.Int)
	}
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v
}

func (s *Stack) Len() int { return len(s.data) }

// VMContext carries everything a single call frame's opcode handlers need.
type VMContext struct {
	Stack          *Stack
	Memory         Memory
	State          StateRW
	Chain          ChainContext
	GasMeter       *GasMeter
	JumpTable      map[uint64]struct{}
	PC             uint64
	Code           []byte
	Args           []byte
	LastReturnData []byte

	Contract Address
	Caller   Address
	TxOrigin Address
	Value    *big.Int
	GasPrice uint64
}

// LinearMemory is the default Memory implementation: a zero-extending byte
// slice.
type LinearMemory struct{ data []byte }

func NewMemory() Memory { return &LinearMemory{data: make([]byte, 0, 1024)} }

func (m *LinearMemory) Read(offset, size uint64) []byte {
	end := offset + size
	if end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	out := make([]byte, size)
	copy(out, m.data[offset:end])
	return out
}

func (m *LinearMemory) Write(offset uint64, data []byte) {
	end := offset + uint64(len(data))
	if end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:], data)
}

func (m *LinearMemory) Len() int { return len(m.data) }

// GasMeter tracks gas usage and enforces the call's gas limit.
type GasMeter struct {
	used  uint64
	limit uint64
}

func NewGasMeter(limit uint64) *GasMeter { return &GasMeter{limit: limit} }

func (g *GasMeter) Remaining() uint64 {
	if g.used > g.limit {
		return 0
	}
	return g.limit - g.used
}

func (g *GasMeter) Used() uint64 { return g.used }

func (g *GasMeter) Consume(op Opcode) error {
	return g.ConsumeAmount(GasCost(op))
}

func (g *GasMeter) ConsumeAmount(amount uint64) error {
	if g.used+amount > g.limit {
		g.used = g.limit
		return fmt.Errorf("out of gas (%d/%d)", g.used+amount, g.limit)
	}
	g.used += amount
	return nil
}

// AddBigInts adds two big-endian byte slices, returning the big-endian
// result. Kept for callers that operate on raw bytes rather than *big.Int.
func AddBigInts(a, b []byte) []byte {
	var ai, bi big.Int
	ai.SetBytes(a)
	bi.SetBytes(b)
	return new(big.Int).Add(&ai, &bi).Bytes()
}

// VM is the interface the sequencer calls to run a contract's code.
type VM interface {
	Execute(code []byte, ctx *VMContext) (*ExecutionResult, error)
}

// ExecutionResult is what a VM tier returns after running one call frame.
type ExecutionResult struct {
	Success    bool
	ReturnData []byte
	GasUsed    uint64
	Err        error
}

// SuperLightVM handles zero-code accounts (plain value transfers): there is
// nothing to interpret, so it always succeeds with no output.
type SuperLightVM struct{}

func NewSuperLightVM() VM { return &SuperLightVM{} }

func (vm *SuperLightVM) Execute(code []byte, ctx *VMContext) (*ExecutionResult, error) {
	return &ExecutionResult{Success: true}, nil
}

// LightVM is the native EVM-bytecode interpreter: a fetch/decode/dispatch
// loop over the opXXX handlers, driven by opcode_dispatcher's gas table.
type LightVM struct{}

func NewLightVM() VM { return &LightVM{} }

// opHandler is the shape every opXXX function in utility_functions.go
// implements.
type opHandler func(*VMContext) error

func (vm *LightVM) Execute(code []byte, ctx *VMContext) (res *ExecutionResult, err error) {
	ctx.Code = code
	if ctx.Stack == nil {
		ctx.Stack = NewStack()
	}
	if ctx.Memory == nil {
		ctx.Memory = NewMemory()
	}
	ctx.JumpTable = scanJumpDests(code)

	for ctx.PC < uint64(len(code)) {
		op := Opcode(code[ctx.PC])
		ctx.PC++

		if err := ctx.GasMeter.Consume(op); err != nil {
			return &ExecutionResult{Success: false, GasUsed: ctx.GasMeter.Used(), Err: err}, nil
		}

		if n, ok := pushWidth(op); ok {
			data := make([]byte, n)
			for i := 0; i < n && ctx.PC < uint64(len(code)); i++ {
				data[i] = code[ctx.PC]
				ctx.PC++
			}
			ctx.Stack.Push(new(big.Int).SetBytes(data))
			continue
		}
		if n, ok := dupDepth(op); ok {
			if n > len(ctx.Stack.data) {
				return &ExecutionResult{Success: false, GasUsed: ctx.GasMeter.Used(), Err: errors.New("stack underflow")}, nil
			}
			v := new(big.Int).Set(ctx.Stack.data[len(ctx.Stack.data)-n])
			ctx.Stack.Push(v)
			continue
		}
		if n, ok := swapDepth(op); ok {
			if n >= len(ctx.Stack.data) {
				return &ExecutionResult{Success: false, GasUsed: ctx.GasMeter.Used(), Err: errors.New("stack underflow")}, nil
			}
			top := len(ctx.Stack.data) - 1
			ctx.Stack.data[top], ctx.Stack.data[top-n] = ctx.Stack.data[top-n], ctx.Stack.data[top]
			continue
		}
		if op == 0x50 { // POP
			ctx.Stack.Pop()
			continue
		}
		if op == 0x54 { // SLOAD
			slot := ctx.Stack.Pop()
			key := leftPad32(slot.Bytes())
			val, _ := ctx.State.GetState(append(ctx.Contract.Bytes(), key...))
			ctx.Stack.Push(new(big.Int).SetBytes(val))
			continue
		}
		if op == 0x55 { // SSTORE
			slot := ctx.Stack.Pop()
			val := ctx.Stack.Pop()
			key := leftPad32(slot.Bytes())
			_ = ctx.State.SetState(append(ctx.Contract.Bytes(), key...), leftPad32(val.Bytes()))
			continue
		}

		handler, ok := opHandlers[op]
		if !ok {
			return &ExecutionResult{Success: false, GasUsed: ctx.GasMeter.Used(), Err: fmt.Errorf("invalid opcode 0x%02x", op)}, nil
		}
		if herr := handler(ctx); herr != nil {
			switch e := herr.(type) {
			case *returnError:
				return &ExecutionResult{Success: true, ReturnData: e.Data, GasUsed: ctx.GasMeter.Used()}, nil
			case *revertError:
				return &ExecutionResult{Success: false, ReturnData: e.Data, GasUsed: ctx.GasMeter.Used(), Err: herr}, nil
			default:
				if herr == ErrStop {
					return &ExecutionResult{Success: true, GasUsed: ctx.GasMeter.Used()}, nil
				}
				return &ExecutionResult{Success: false, GasUsed: ctx.GasMeter.Used(), Err: herr}, nil
			}
		}
	}
	return &ExecutionResult{Success: true, GasUsed: ctx.GasMeter.Used()}, nil
}

func scanJumpDests(code []byte) map[uint64]struct{} {
	dests := make(map[uint64]struct{})
	for i := 0; i < len(code); {
		op := code[i]
		if op == 0x5b {
			dests[uint64(i)] = struct{}{}
		}
		if op >= 0x60 && op <= 0x7f {
			i += int(op-0x60) + 1
		}
		i++
	}
	return dests
}

func pushWidth(op Opcode) (int, bool) {
	if op == 0x5f {
		return 0, true
	}
	if op >= 0x60 && op <= 0x7f {
		return int(op-0x60) + 1, true
	}
	return 0, false
}

func dupDepth(op Opcode) (int, bool) {
	if op >= 0x80 && op <= 0x8f {
		return int(op-0x80) + 1, true
	}
	return 0, false
}

func swapDepth(op Opcode) (int, bool) {
	if op >= 0x90 && op <= 0x9f {
		return int(op-0x90) + 1, true
	}
	return 0, false
}

// opHandlers maps EVM opcode bytes to their handler, as a map literal over
// the functions defined in utility_functions.go.
var opHandlers = map[Opcode]opHandler{
	0x01: opADD, 0x02: opMUL, 0x03: opSUB, 0x04: opDIV, 0x05: opSDIV,
	0x06: opMOD, 0x07: opSMOD, 0x08: opADDMOD, 0x09: opMULMOD, 0x0a: opEXP,
	0x0b: opSIGNEXTEND,
	0x10: opLT, 0x11: opGT, 0x12: opSLT, 0x13: opSGT, 0x14: opEQ, 0x15: opISZERO,
	0x16: opAND, 0x17: opOR, 0x18: opXOR, 0x19: opNOT, 0x1a: opBYTE,
	0x1b: opSHL, 0x1c: opSHR, 0x1d: opSAR,
	0x20: opKECCAK256,
	0x30: opADDRESS, 0x31: opBALANCE, 0x32: opORIGIN, 0x33: opCALLER,
	0x34: opCALLVALUE, 0x35: opCALLDATALOAD, 0x36: opCALLDATASIZE,
	0x37: opCALLDATACOPY, 0x38: opCODESIZE, 0x39: opCODECOPY, 0x3a: opGASPRICE,
	0x3b: opEXTCODESIZE, 0x3c: opEXTCODECOPY, 0x3d: opRETURNDATASIZE,
	0x3e: opRETURNDATACOPY, 0x3f: opEXTCODEHASH,
	0x40: opBLOCKHASH, 0x42: opTIMESTAMP, 0x43: opNUMBER, 0x44: opDIFFICULTY,
	0x45: opGASLIMIT, 0x46: opCHAINID, 0x47: opSELFBALANCE,
	0x51: opMLOAD, 0x52: opMSTORE, 0x53: opMSTORE8,
	0x56: opJUMP, 0x57: opJUMPI, 0x58: opPC, 0x59: opMSIZE, 0x5a: opGAS,
	0x5b: opJUMPDEST,
	0xa0: opLOG0, 0xa1: opLOG1, 0xa2: opLOG2, 0xa3: opLOG3, 0xa4: opLOG4,
	0xf0: opCREATE, 0xf1: opCALL, 0xf2: opCALLCODE, 0xf3: opRETURN,
	0xf4: opDELEGATECALL, 0xfa: opSTATICCALL, 0xfd: opREVERT, 0xff: opSELFDESTRUCT,
	0x00: func(ctx *VMContext) error { return opSTOP(ctx) },
}

// HeavyVM executes precompiled WASM contracts via Wasmer.
type HeavyVM struct {
	engine *wasmer.Engine
	mu     sync.Mutex
}

func NewHeavyVM(engine *wasmer.Engine) VM { return &HeavyVM{engine: engine} }

func (vm *HeavyVM) Execute(code []byte, ctx *VMContext) (*ExecutionResult, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	store := wasmer.NewStore(vm.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, fmt.Errorf("wasm module: %w", err)
	}
	hctx := &wasmHostCtx{ctx: ctx}
	imports := registerWasmHost(store, hctx)
	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return nil, fmt.Errorf("wasm instantiate: %w", err)
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, errors.New("wasm module missing memory export")
	}
	hctx.mem = mem

	start, err := instance.Exports.GetFunction("_start")
	if err != nil {
		return nil, errors.New("wasm module missing _start export")
	}
	if _, err := start(); err != nil {
		return &ExecutionResult{Success: false, GasUsed: ctx.GasMeter.Used(), Err: err}, nil
	}
	return &ExecutionResult{Success: true, ReturnData: hctx.ret, GasUsed: ctx.GasMeter.Used()}, nil
}

// wasmHostCtx backs the "env" import namespace WASM contracts link against:
// gas metering and the same key/value store EVM contracts use via SLOAD/SSTORE.
type wasmHostCtx struct {
	mem *wasmer.Memory
	ctx *VMContext
	ret []byte
}

func registerWasmHost(store *wasmer.Store, h *wasmHostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	read := func(ptr, ln int32) []byte {
		b := h.mem.Data()[ptr : ptr+ln]
		out := make([]byte, ln)
		copy(out, b)
		return out
	}
	write := func(ptr int32, data []byte) { copy(h.mem.Data()[ptr:], data) }

	hostConsumeGas := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.ctx.GasMeter.ConsumeAmount(uint64(args[0].I32())); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		})

	hostRead := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			kPtr, kLen, dPtr := args[0].I32(), args[1].I32(), args[2].I32()
			key := append(h.ctx.Contract.Bytes(), read(kPtr, kLen)...)
			val, err := h.ctx.State.GetState(key)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			write(dPtr, val)
			return []wasmer.Value{wasmer.NewI32(int32(len(val)))}, nil
		})

	hostWrite := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			kPtr, kLen, vPtr, vLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			key := append(h.ctx.Contract.Bytes(), read(kPtr, kLen)...)
			if err := h.ctx.State.SetState(key, read(vPtr, vLen)); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		})

	hostReturn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			h.ret = read(args[0].I32(), args[1].I32())
			return []wasmer.Value{}, nil
		})

	hostLog := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			msg := read(args[0].I32(), args[1].I32())
			h.ctx.State.AddLog(LogEntry{Address: h.ctx.Contract, Data: msg})
			return []wasmer.Value{}, nil
		})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"host_consume_gas": hostConsumeGas,
		"host_read":        hostRead,
		"host_write":       hostWrite,
		"host_return":      hostReturn,
		"host_log":         hostLog,
	})
	return imports
}

// SelectVM picks an execution tier by bytecode shape: empty code is a plain
// transfer, code starting with the WASM magic bytes 00 61 73 6d is handed to
// Wasmer, and any other code is treated as native EVM bytecode.
func SelectVM(code []byte) string {
	switch {
	case len(code) == 0:
		return "superlight"
	case len(code) >= 4 && code[0] == 0x00 && code[1] == 0x61 && code[2] == 0x73 && code[3] == 0x6d:
		return "heavy"
	default:
		return "light"
	}
}
