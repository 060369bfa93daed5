package core

import (
	"fmt"
	"sync"
)

var (
	ledgerOnce   sync.Once
	globalLedger *Ledger
)

// InitLedger initialises the global ledger using OpenLedger at the given path.
func InitLedger(path string) error {
	var err error
	ledgerOnce.Do(func() {
		globalLedger, err = OpenLedger(path)
	})
	return err
}

// CurrentLedger returns the global ledger instance if initialised.
func CurrentLedger() *Ledger { return globalLedger }

// ------------------------------------------------------------------
// Simple flat gas calculator used by CLI stubs
// ------------------------------------------------------------------

type FlatGasCalculator struct{ Price uint64 }

func NewFlatGasCalculator(p uint64) *FlatGasCalculator { return &FlatGasCalculator{Price: p} }

func (f *FlatGasCalculator) Estimate(_ []byte) (uint64, error)     { return 0, nil }
func (f *FlatGasCalculator) Calculate(_ string, amt uint64) uint64 { return f.Price * amt }

// ------------------------------------------------------------------
// DynamicGasCalculator parses the protocol opcode catalogue and sums real
// gas costs, used for estimating the cost of a catalogue function call
// sequence rather than raw EVM bytecode.
// ------------------------------------------------------------------

type DynamicGasCalculator struct{}

func NewDynamicGasCalculator() *DynamicGasCalculator { return &DynamicGasCalculator{} }

// Estimate walks the payload, treating it as a sequence of 3-byte opcodes. The
// total gas cost is the sum of GasCost for each opcode.
func (d *DynamicGasCalculator) Estimate(payload []byte) (uint64, error) {
	if len(payload)%3 != 0 {
		return 0, fmt.Errorf("invalid payload length %d", len(payload))
	}
	var total uint64
	for i := 0; i < len(payload); i += 3 {
		op, err := ParseOpcode(payload[i : i+3])
		if err != nil {
			return 0, err
		}
		total += GasCost(op)
	}
	return total, nil
}

// Calculate returns the gas for running the named opcode `amt` times. Unknown
// names fall back to DefaultGasCost.
func (d *DynamicGasCalculator) Calculate(name string, amt uint64) uint64 {
	if op, ok := nameToOp[name]; ok {
		return GasCost(op) * amt
	}
	return DefaultGasCost * amt
}
