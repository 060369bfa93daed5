package core

// utility_functions.go – the EVM opcode handlers dispatched by
// opcode_dispatcher.go. Each function pops its operands off ctx.Stack,
// performs one EVM instruction's worth of work, and pushes its result;
// arithmetic is always reduced mod 2^256 to match EVM word semantics.

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// Constants for 256-bit modular arithmetic.
var (
	two256  = new(big.Int).Lsh(big.NewInt(1), 256)
	mask256 = new(big.Int).Sub(two256, big.NewInt(1))
	two255  = new(big.Int).Lsh(big.NewInt(1), 255)
)

func opADD(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	res := new(big.Int).Add(a, b)
	res.And(res, mask256)
	ctx.Stack.Push(res)
	return nil
}

func opMUL(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	res := new(big.Int).Mul(a, b)
	res.And(res, mask256)
	ctx.Stack.Push(res)
	return nil
}

func opSUB(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	res := new(big.Int).Sub(b, a)
	res.And(res, mask256)
	ctx.Stack.Push(res)
	return nil
}

func opDIV(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	if a.Sign() == 0 {
		ctx.Stack.Push(new(big.Int))
	} else {
		ctx.Stack.Push(new(big.Int).Div(b, a))
	}
	return nil
}

func opSDIV(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	if a.Sign() == 0 {
		ctx.Stack.Push(new(big.Int))
		return nil
	}
	as, bs := toSigned(a), toSigned(b)
	quot := new(big.Int).Quo(bs, as)
	if quot.Sign() < 0 {
		quot.Add(quot, two256)
	}
	quot.And(quot, mask256)
	ctx.Stack.Push(quot)
	return nil
}

func opMOD(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	if a.Sign() == 0 {
		ctx.Stack.Push(new(big.Int))
	} else {
		ctx.Stack.Push(new(big.Int).Mod(b, a))
	}
	return nil
}

func opSMOD(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	as, bs := toSigned(a), toSigned(b)
	if as.Sign() == 0 {
		ctx.Stack.Push(new(big.Int))
		return nil
	}
	r := new(big.Int).Mod(new(big.Int).Abs(bs), new(big.Int).Abs(as))
	if bs.Sign() < 0 {
		r.Neg(r)
	}
	if r.Sign() < 0 {
		r.Add(r, two256)
	}
	r.And(r, mask256)
	ctx.Stack.Push(r)
	return nil
}

func opADDMOD(ctx *VMContext) error {
	m, b, a := ctx.Stack.Pop(), ctx.Stack.Pop(), ctx.Stack.Pop()
	if m.Sign() == 0 {
		ctx.Stack.Push(new(big.Int))
		return nil
	}
	ctx.Stack.Push(new(big.Int).Mod(new(big.Int).Add(a, b), m))
	return nil
}

func opMULMOD(ctx *VMContext) error {
	m, b, a := ctx.Stack.Pop(), ctx.Stack.Pop(), ctx.Stack.Pop()
	if m.Sign() == 0 {
		ctx.Stack.Push(new(big.Int))
		return nil
	}
	ctx.Stack.Push(new(big.Int).Mod(new(big.Int).Mul(a, b), m))
	return nil
}

func opEXP(ctx *VMContext) error {
	exponent, base := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(new(big.Int).Exp(base, exponent, two256))
	return nil
}

func opSIGNEXTEND(ctx *VMContext) error {
	iBI, valBI := ctx.Stack.Pop(), ctx.Stack.Pop()
	i := iBI.Uint64()
	val := new(big.Int).And(valBI, mask256)
	if i >= 32 {
		ctx.Stack.Push(val)
		return nil
	}
	bitPos := uint((i+1)*8 - 1)
	lowerMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bitPos+1), big.NewInt(1))
	bit := new(big.Int).Rsh(val, bitPos)
	bit.And(bit, big.NewInt(1))
	var res *big.Int
	if bit.Cmp(big.NewInt(1)) == 0 {
		res = new(big.Int).Or(val, new(big.Int).Xor(lowerMask, mask256))
	} else {
		res = new(big.Int).And(val, lowerMask)
	}
	res.And(res, mask256)
	ctx.Stack.Push(res)
	return nil
}

func opLT(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(boolWord(b.Cmp(a) < 0))
	return nil
}

func opGT(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(boolWord(b.Cmp(a) > 0))
	return nil
}

func opSLT(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(boolWord(toSigned(b).Cmp(toSigned(a)) < 0))
	return nil
}

func opSGT(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(boolWord(toSigned(b).Cmp(toSigned(a)) > 0))
	return nil
}

func opEQ(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(boolWord(a.Cmp(b) == 0))
	return nil
}

func opISZERO(ctx *VMContext) error {
	a := ctx.Stack.Pop()
	ctx.Stack.Push(boolWord(a.Sign() == 0))
	return nil
}

func boolWord(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func opAND(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(new(big.Int).And(a, b))
	return nil
}

func opOR(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(new(big.Int).Or(a, b))
	return nil
}

func opXOR(ctx *VMContext) error {
	a, b := ctx.Stack.Pop(), ctx.Stack.Pop()
	ctx.Stack.Push(new(big.Int).Xor(a, b))
	return nil
}

func opNOT(ctx *VMContext) error {
	a := ctx.Stack.Pop()
	ctx.Stack.Push(new(big.Int).Xor(a, mask256))
	return nil
}

func opBYTE(ctx *VMContext) error {
	nBI, valBI := ctx.Stack.Pop(), ctx.Stack.Pop()
	n := nBI.Uint64()
	if n >= 32 {
		ctx.Stack.Push(big.NewInt(0))
		return nil
	}
	padded := make([]byte, 32)
	b := valBI.Bytes()
	copy(padded[32-len(b):], b)
	ctx.Stack.Push(new(big.Int).SetUint64(uint64(padded[n])))
	return nil
}

func opSHL(ctx *VMContext) error {
	shift, val := ctx.Stack.Pop().Uint64(), ctx.Stack.Pop()
	if shift >= 256 {
		ctx.Stack.Push(big.NewInt(0))
		return nil
	}
	res := new(big.Int).Lsh(val, uint(shift))
	res.And(res, mask256)
	ctx.Stack.Push(res)
	return nil
}

func opSHR(ctx *VMContext) error {
	shift, val := ctx.Stack.Pop().Uint64(), ctx.Stack.Pop()
	if shift >= 256 {
		ctx.Stack.Push(big.NewInt(0))
		return nil
	}
	v := new(big.Int).And(val, mask256)
	ctx.Stack.Push(new(big.Int).Rsh(v, uint(shift)))
	return nil
}

func opSAR(ctx *VMContext) error {
	shift, val := ctx.Stack.Pop().Uint64(), ctx.Stack.Pop()
	signed := toSigned(new(big.Int).And(val, mask256))
	if shift >= 256 {
		if signed.Sign() < 0 {
			ctx.Stack.Push(new(big.Int).Set(mask256))
		} else {
			ctx.Stack.Push(big.NewInt(0))
		}
		return nil
	}
	res := new(big.Int).Rsh(signed, uint(shift))
	if res.Sign() < 0 {
		res.Add(res, two256)
	}
	res.And(res, mask256)
	ctx.Stack.Push(res)
	return nil
}

func toSigned(x *big.Int) *big.Int {
	if x.Cmp(two255) >= 0 {
		return new(big.Int).Sub(x, two256)
	}
	return new(big.Int).Set(x)
}

// ErrInvalidSignature is returned by opECRECOVER when the signature cannot
// be recovered (the opcode itself never fails the call: per EVM semantics
// it pushes 0 and continues).
var ErrInvalidSignature = errors.New("vm: invalid ecrecover signature")

func opECRECOVER(ctx *VMContext) error {
	sBI, rBI, vBI, hBI := ctx.Stack.Pop(), ctx.Stack.Pop(), ctx.Stack.Pop(), ctx.Stack.Pop()
	hash := leftPad32(hBI.Bytes())
	r := leftPad32(rBI.Bytes())
	s := leftPad32(sBI.Bytes())
	v := byte(vBI.Uint64())
	if v >= 27 {
		v -= 27
	}
	sig := append(append(r, s...), v)
	pubkey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		ctx.Stack.Push(big.NewInt(0))
		return nil
	}
	addr := crypto.PubkeyToAddress(*pubkey)
	ctx.Stack.Push(new(big.Int).SetBytes(leftPad32(addr.Bytes())))
	return nil
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func opEXTCODESIZE(ctx *VMContext) error {
	addr := BytesToAddress(ctx.Stack.Pop().Bytes())
	ctx.Stack.Push(new(big.Int).SetUint64(uint64(len(ctx.State.GetCode(addr)))))
	return nil
}

func opEXTCODECOPY(ctx *VMContext) error {
	length := ctx.Stack.Pop().Uint64()
	codeOffset := ctx.Stack.Pop().Uint64()
	memOffset := ctx.Stack.Pop().Uint64()
	addr := BytesToAddress(ctx.Stack.Pop().Bytes())
	code := ctx.State.GetCode(addr)
	data := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		if idx := codeOffset + i; idx < uint64(len(code)) {
			data[i] = code[idx]
		}
	}
	ctx.Memory.Write(memOffset, data)
	return nil
}

func opEXTCODEHASH(ctx *VMContext) error {
	addr := BytesToAddress(ctx.Stack.Pop().Bytes())
	hash := ctx.State.GetCodeHash(addr)
	ctx.Stack.Push(new(big.Int).SetBytes(hash[:]))
	return nil
}

func opRETURNDATASIZE(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(uint64(len(ctx.LastReturnData))))
	return nil
}

func opRETURNDATACOPY(ctx *VMContext) error {
	length := ctx.Stack.Pop().Uint64()
	dataOffset := ctx.Stack.Pop().Uint64()
	memOffset := ctx.Stack.Pop().Uint64()
	ret := ctx.LastReturnData
	data := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		if idx := dataOffset + i; idx < uint64(len(ret)) {
			data[i] = ret[idx]
		}
	}
	ctx.Memory.Write(memOffset, data)
	return nil
}

func opMLOAD(ctx *VMContext) error {
	offset := ctx.Stack.Pop().Uint64()
	ctx.Stack.Push(new(big.Int).SetBytes(ctx.Memory.Read(offset, 32)))
	return nil
}

func opMSTORE(ctx *VMContext) error {
	value := ctx.Stack.Pop()
	offset := ctx.Stack.Pop().Uint64()
	ctx.Memory.Write(offset, leftPad32(value.Bytes()))
	return nil
}

func opMSTORE8(ctx *VMContext) error {
	value := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	ctx.Memory.Write(offset, []byte{byte(value & 0xff)})
	return nil
}

func opCALLDATALOAD(ctx *VMContext) error {
	offset := ctx.Stack.Pop().Uint64()
	var chunk [32]byte
	args := ctx.Args
	for i := uint64(0); i < 32; i++ {
		if idx := offset + i; idx < uint64(len(args)) {
			chunk[i] = args[idx]
		}
	}
	ctx.Stack.Push(new(big.Int).SetBytes(chunk[:]))
	return nil
}

func opCALLDATASIZE(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(uint64(len(ctx.Args))))
	return nil
}

func opCALLDATACOPY(ctx *VMContext) error {
	length := ctx.Stack.Pop().Uint64()
	dataOffset := ctx.Stack.Pop().Uint64()
	memOffset := ctx.Stack.Pop().Uint64()
	data := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		if idx := dataOffset + i; idx < uint64(len(ctx.Args)) {
			data[i] = ctx.Args[idx]
		}
	}
	ctx.Memory.Write(memOffset, data)
	return nil
}

func opCODESIZE(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(uint64(len(ctx.Code))))
	return nil
}

func opCODECOPY(ctx *VMContext) error {
	length := ctx.Stack.Pop().Uint64()
	codeOffset := ctx.Stack.Pop().Uint64()
	memOffset := ctx.Stack.Pop().Uint64()
	data := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		if idx := codeOffset + i; idx < uint64(len(ctx.Code)) {
			data[i] = ctx.Code[idx]
		}
	}
	ctx.Memory.Write(memOffset, data)
	return nil
}

// ErrInvalidJumpDest is returned when a JUMP or JUMPI target is not a valid
// JUMPDEST.
var ErrInvalidJumpDest = errors.New("vm: invalid jump destination")

func opJUMP(ctx *VMContext) error {
	dest := ctx.Stack.Pop().Uint64()
	if _, ok := ctx.JumpTable[dest]; !ok {
		return ErrInvalidJumpDest
	}
	ctx.PC = dest
	return nil
}

func opJUMPI(ctx *VMContext) error {
	dest := ctx.Stack.Pop().Uint64()
	cond := ctx.Stack.Pop()
	if cond.Sign() != 0 {
		if _, ok := ctx.JumpTable[dest]; !ok {
			return ErrInvalidJumpDest
		}
		ctx.PC = dest
	}
	return nil
}

func opPC(ctx *VMContext) error {
	cur := ctx.PC
	if cur > 0 {
		cur--
	}
	ctx.Stack.Push(new(big.Int).SetUint64(cur))
	return nil
}

func opMSIZE(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(uint64(ctx.Memory.Len())))
	return nil
}

func opGAS(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(ctx.GasMeter.Remaining()))
	return nil
}

func opJUMPDEST(ctx *VMContext) error { return nil }

// ErrStop signals normal termination of execution.
var ErrStop = errors.New("vm: stop execution")

type returnError struct{ Data []byte }

func (e *returnError) Error() string      { return "vm: return" }
func (e *returnError) ReturnData() []byte { return e.Data }

type revertError struct{ Data []byte }

func (e *revertError) Error() string      { return "vm: revert" }
func (e *revertError) ReturnData() []byte { return e.Data }

func opSHA256(ctx *VMContext) error {
	size := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	sum := sha256.Sum256(ctx.Memory.Read(offset, size))
	ctx.Stack.Push(new(big.Int).SetBytes(sum[:]))
	return nil
}

func opKECCAK256(ctx *VMContext) error {
	size := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	h := sha3.NewLegacyKeccak256()
	h.Write(ctx.Memory.Read(offset, size))
	ctx.Stack.Push(new(big.Int).SetBytes(h.Sum(nil)))
	return nil
}

func opRIPEMD160(ctx *VMContext) error {
	size := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	h := ripemd160.New()
	h.Write(ctx.Memory.Read(offset, size))
	padded := make([]byte, 32)
	copy(padded[12:], h.Sum(nil))
	ctx.Stack.Push(new(big.Int).SetBytes(padded))
	return nil
}

func opBLAKE2B256(ctx *VMContext) error {
	size := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	sum := blake2b.Sum256(ctx.Memory.Read(offset, size))
	ctx.Stack.Push(new(big.Int).SetBytes(sum[:]))
	return nil
}

func opADDRESS(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetBytes(ctx.Contract.Bytes()))
	return nil
}

func opCALLER(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetBytes(ctx.Caller.Bytes()))
	return nil
}

func opORIGIN(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetBytes(ctx.TxOrigin.Bytes()))
	return nil
}

func opCALLVALUE(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).Set(ctx.Value))
	return nil
}

func opGASPRICE(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(ctx.GasPrice))
	return nil
}

func opNUMBER(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(ctx.Chain.BlockNumber()))
	return nil
}

func opTIMESTAMP(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(ctx.Chain.Time()))
	return nil
}

func opDIFFICULTY(ctx *VMContext) error {
	ctx.Stack.Push(ctx.Chain.Difficulty())
	return nil
}

func opGASLIMIT(ctx *VMContext) error {
	ctx.Stack.Push(new(big.Int).SetUint64(ctx.Chain.GasLimit()))
	return nil
}

func opCHAINID(ctx *VMContext) error {
	ctx.Stack.Push(ctx.Chain.ChainID())
	return nil
}

func opBLOCKHASH(ctx *VMContext) error {
	n := ctx.Stack.Pop().Uint64()
	h := ctx.Chain.BlockHash(n)
	ctx.Stack.Push(new(big.Int).SetBytes(h[:]))
	return nil
}

func opBALANCE(ctx *VMContext) error {
	addr := BytesToAddress(ctx.Stack.Pop().Bytes())
	ctx.Stack.Push(ctx.State.BalanceOf(addr))
	return nil
}

func opSELFBALANCE(ctx *VMContext) error {
	ctx.Stack.Push(ctx.State.BalanceOf(ctx.Contract))
	return nil
}

func opLOG0(ctx *VMContext) error { return logN(ctx, 0) }
func opLOG1(ctx *VMContext) error { return logN(ctx, 1) }
func opLOG2(ctx *VMContext) error { return logN(ctx, 2) }
func opLOG3(ctx *VMContext) error { return logN(ctx, 3) }
func opLOG4(ctx *VMContext) error { return logN(ctx, 4) }

func logN(ctx *VMContext, n int) error {
	topics := make([]Hash, n)
	for i := n - 1; i >= 0; i-- {
		topics[i] = BytesToHash(leftPad32(ctx.Stack.Pop().Bytes()))
	}
	size := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	data := ctx.Memory.Read(offset, size)
	ctx.State.AddLog(LogEntry{Address: ctx.Contract, Topics: topics, Data: data})
	return nil
}

func opCREATE(ctx *VMContext) error {
	value := ctx.Stack.Pop()
	size := ctx.Stack.Pop().Uint64()
	offset := ctx.Stack.Pop().Uint64()
	gas := ctx.Stack.Pop().Uint64()
	code := ctx.Memory.Read(offset, size)
	addr, _, ok, _ := ctx.State.CreateContract(ctx.Contract, code, value, gas)
	if ok {
		ctx.Stack.Push(new(big.Int).SetBytes(addr.Bytes()))
	} else {
		ctx.Stack.Push(big.NewInt(0))
	}
	return nil
}

func opCALL(ctx *VMContext) error     { return call(ctx) }
func opCALLCODE(ctx *VMContext) error { return call(ctx) }

func opDELEGATECALL(ctx *VMContext) error {
	to := BytesToAddress(ctx.Stack.Pop().Bytes())
	inOff := ctx.Stack.Pop().Uint64()
	inSz := ctx.Stack.Pop().Uint64()
	outOff := ctx.Stack.Pop().Uint64()
	outSz := ctx.Stack.Pop().Uint64()
	input := ctx.Memory.Read(inOff, inSz)
	ret, ok, _, _ := ctx.State.Call(ctx.Caller, to, input, new(big.Int), ctx.GasMeter.Remaining())
	ctx.LastReturnData = ret
	if ok {
		ctx.Memory.Write(outOff, ret[:min(uint64(len(ret)), outSz)])
		ctx.Stack.Push(big.NewInt(1))
	} else {
		ctx.Stack.Push(big.NewInt(0))
	}
	return nil
}

func opSTATICCALL(ctx *VMContext) error { return callStatic(ctx) }

func call(ctx *VMContext) error {
	outSz := ctx.Stack.Pop().Uint64()
	outOff := ctx.Stack.Pop().Uint64()
	inSz := ctx.Stack.Pop().Uint64()
	inOff := ctx.Stack.Pop().Uint64()
	value := ctx.Stack.Pop()
	to := BytesToAddress(ctx.Stack.Pop().Bytes())
	gas := ctx.Stack.Pop().Uint64()
	data := ctx.Memory.Read(inOff, inSz)

	ret, ok, _, _ := ctx.State.Call(ctx.Contract, to, data, value, gas)
	ctx.LastReturnData = ret
	if ok {
		ctx.Memory.Write(outOff, ret[:min(uint64(len(ret)), outSz)])
		ctx.Stack.Push(big.NewInt(1))
	} else {
		ctx.Stack.Push(big.NewInt(0))
	}
	return nil
}

func callStatic(ctx *VMContext) error {
	outSz := ctx.Stack.Pop().Uint64()
	outOff := ctx.Stack.Pop().Uint64()
	inSz := ctx.Stack.Pop().Uint64()
	inOff := ctx.Stack.Pop().Uint64()
	to := BytesToAddress(ctx.Stack.Pop().Bytes())
	gas := ctx.Stack.Pop().Uint64()

	input := ctx.Memory.Read(inOff, inSz)
	ret, ok, _, _ := ctx.State.StaticCall(ctx.Contract, to, input, gas)
	ctx.LastReturnData = ret
	if ok {
		ctx.Memory.Write(outOff, ret[:min(uint64(len(ret)), outSz)])
		ctx.Stack.Push(big.NewInt(1))
	} else {
		ctx.Stack.Push(big.NewInt(0))
	}
	return nil
}

func opRETURN(ctx *VMContext) error {
	sz := ctx.Stack.Pop().Uint64()
	off := ctx.Stack.Pop().Uint64()
	return &returnError{Data: ctx.Memory.Read(off, sz)}
}

func opREVERT(ctx *VMContext) error {
	sz := ctx.Stack.Pop().Uint64()
	off := ctx.Stack.Pop().Uint64()
	return &revertError{Data: ctx.Memory.Read(off, sz)}
}

func opSTOP(ctx *VMContext) error { return ErrStop }

func opSELFDESTRUCT(ctx *VMContext) error {
	ben := BytesToAddress(ctx.Stack.Pop().Bytes())
	ctx.State.SelfDestruct(ctx.Contract, ben)
	return ErrStop
}
