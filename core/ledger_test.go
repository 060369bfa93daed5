package core

import (
	"math/big"
	"path/filepath"
	"testing"
)

func tmpLedgerConfig(t *testing.T, genesis *Block) LedgerConfig {
	t.Helper()
	dir := t.TempDir()
	return LedgerConfig{
		WALPath:      filepath.Join(dir, "ledger.wal"),
		SnapshotPath: filepath.Join(dir, "ledger.snap"),
		GenesisBlock: genesis,
	}
}

func TestNewLedgerSeedsGenesis(t *testing.T) {
	genesis := &Block{Header: &BlockHeader{Height: 0, BlueWork: new(big.Int)}}
	led, err := NewLedger(tmpLedgerConfig(t, genesis))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if led.LastHeight() != 0 {
		t.Fatalf("LastHeight() = %d, want 0", led.LastHeight())
	}
	got, err := led.GetBlockByHeight(0)
	if err != nil {
		t.Fatalf("get genesis: %v", err)
	}
	if got.Header.Height != 0 {
		t.Fatalf("unexpected genesis block returned")
	}
}

func TestGenesisAllocAppliedAndSurvivesReopen(t *testing.T) {
	genesis := &Block{Header: &BlockHeader{Height: 0, BlueWork: new(big.Int)}}
	addr := Address{0xCD}
	cfg := tmpLedgerConfig(t, genesis)
	cfg.GenesisAlloc = map[Address]*big.Int{addr: big.NewInt(1000)}

	led, err := NewLedger(cfg)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if bal := led.BalanceOf(addr); bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance = %s, want 1000", bal)
	}
	if err := led.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewLedger(cfg)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if bal := reopened.BalanceOf(addr); bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance after reopen = %s, want 1000 (alloc must not double-apply nor vanish)", bal)
	}
}

func TestGenesisAllocOverriddenByLaterWALDelta(t *testing.T) {
	genesis := &Block{Header: &BlockHeader{Height: 0, BlueWork: new(big.Int)}}
	addr := Address{0xEF}
	cfg := tmpLedgerConfig(t, genesis)
	cfg.GenesisAlloc = map[Address]*big.Int{addr: big.NewInt(1000)}

	led, err := NewLedger(cfg)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := led.Transfer(addr, Address{0x01}, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	accounts, storage := led.DrainDirty()
	block := &Block{Header: &BlockHeader{Height: 1, SelectedParent: mustHash(t, genesis), BlueWork: big.NewInt(1)}}
	if err := led.PutBlock(block, accounts, storage); err != nil {
		t.Fatalf("put block: %v", err)
	}
	if err := led.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewLedger(cfg)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if bal := reopened.BalanceOf(addr); bal.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("balance after reopen = %s, want 600 (genesis seed overwritten by WAL replay)", bal)
	}
}

func mustHash(t *testing.T, b *Block) Hash {
	t.Helper()
	h, err := b.Hash()
	if err != nil {
		t.Fatalf("hash block: %v", err)
	}
	return h
}
