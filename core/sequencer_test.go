package core

import (
	"math/big"
	"testing"
)

func TestNextBaseFeeFrom(t *testing.T) {
	tests := []struct {
		name     string
		baseFee  int64
		gasUsed  uint64
		gasLimit uint64
		want     int64
	}{
		{"at target stays flat", 1000, 50, 100, 1000},
		{"full block rises", 1000, 100, 100, 1125},
		{"empty block falls", 1000, 0, 100, 875},
		{"zero gas limit returns parent fee", 1000, 0, 0, 1000},
		{"never drops below floor", 1, 0, 100, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := nextBaseFeeFrom(big.NewInt(tc.baseFee), tc.gasUsed, tc.gasLimit)
			if got.Cmp(big.NewInt(tc.want)) != 0 {
				t.Fatalf("nextBaseFeeFrom(%d, %d, %d) = %s, want %d", tc.baseFee, tc.gasUsed, tc.gasLimit, got, tc.want)
			}
		})
	}
}

func TestRoundToBlockGrid(t *testing.T) {
	if got := roundToBlockGrid(1234, 500); got != 1000 {
		t.Fatalf("roundToBlockGrid(1234, 500) = %d, want 1000", got)
	}
	if got := roundToBlockGrid(1234, 0); got != 1234 {
		t.Fatalf("roundToBlockGrid with zero block time should pass through, got %d", got)
	}
}
