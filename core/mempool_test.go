package core

import (
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func tmpLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	led, err := NewLedger(LedgerConfig{
		WALPath:      filepath.Join(dir, "ledger.wal"),
		SnapshotPath: filepath.Join(dir, "ledger.snap"),
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return led
}

func signedLegacyTx(t *testing.T, chainID, nonce uint64, gasPrice int64) *Transaction {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return signedLegacyTxWithKey(t, priv, chainID, nonce, gasPrice)
}

func signedLegacyTxWithKey(t *testing.T, priv *ecdsa.PrivateKey, chainID, nonce uint64, gasPrice int64) *Transaction {
	t.Helper()
	to := Address{0xAB}
	tx := &Transaction{
		Kind:     TxLegacy,
		ChainID:  chainID,
		Nonce:    nonce,
		GasLimit: 21000,
		To:       &to,
		Value:    big.NewInt(0),
		GasPrice: big.NewInt(gasPrice),
	}
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

func testMempoolConfig() MempoolConfig {
	return MempoolConfig{
		ChainID:           1,
		MaxSize:           100,
		MaxPerAccount:     10,
		MaxBytes:          1 << 20,
		MaxTxBytes:        1 << 16,
		MaxFutureNonces:   4,
		ReplacementFactor: 0.1,
		MinGasPrice:       big.NewInt(1),
		BlockGasLimit:     1_000_000,
	}
}

func TestMempoolAddAndPick(t *testing.T) {
	led := tmpLedger(t)
	pool := NewMempool(testMempoolConfig(), led)

	tx := signedLegacyTx(t, 1, 0, 100)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("len = %d, want 1", pool.Len())
	}

	picked := pool.Pick(1 << 20)
	if len(picked) != 1 {
		t.Fatalf("picked %d raw txs, want 1", len(picked))
	}
}

func TestMempoolRejectsBelowMinGasPrice(t *testing.T) {
	led := tmpLedger(t)
	cfg := testMempoolConfig()
	cfg.MinGasPrice = big.NewInt(1000)
	pool := NewMempool(cfg, led)

	tx := signedLegacyTx(t, 1, 0, 1)
	if err := pool.Add(tx); err == nil {
		t.Fatalf("expected GasPriceTooLow rejection")
	}
}

func TestMempoolRejectsWrongChainID(t *testing.T) {
	led := tmpLedger(t)
	pool := NewMempool(testMempoolConfig(), led)

	tx := signedLegacyTx(t, 2, 0, 100)
	if err := pool.Add(tx); err == nil {
		t.Fatalf("expected WrongChainId rejection")
	}
}

func TestMempoolBaseFeeGetterSetter(t *testing.T) {
	led := tmpLedger(t)
	pool := NewMempool(testMempoolConfig(), led)

	pool.SetBaseFee(big.NewInt(42))
	if got := pool.BaseFee(); got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("BaseFee() = %s, want 42", got)
	}
}

func TestMempoolReplacementRequiresBump(t *testing.T) {
	led := tmpLedger(t)
	pool := NewMempool(testMempoolConfig(), led)

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	first := signedLegacyTxWithKey(t, priv, 1, 0, 100)
	if err := pool.Add(first); err != nil {
		t.Fatalf("add first: %v", err)
	}

	weak := signedLegacyTxWithKey(t, priv, 1, 0, 101)
	if err := pool.Add(weak); err == nil {
		t.Fatalf("expected ReplacementUnderpriced rejection for a tiny bump")
	}

	strong := signedLegacyTxWithKey(t, priv, 1, 0, 200)
	if err := pool.Add(strong); err != nil {
		t.Fatalf("expected replacement with a 100%% bump to succeed: %v", err)
	}
}
