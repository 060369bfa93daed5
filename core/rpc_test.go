package core

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

type noopNetwork struct{}

func (noopNetwork) Broadcast(string, interface{}) error { return nil }
func (noopNetwork) Subscribe(string) (<-chan InboundMsg, func()) {
	ch := make(chan InboundMsg)
	return ch, func() {}
}

type noopPeers struct{}

func (noopPeers) Peers() []*Peer { return nil }

func testLogger() *logrus.Logger {
	lg := logrus.New()
	lg.SetLevel(logrus.PanicLevel)
	return lg
}

func newTestRPCServer(t *testing.T) (*RPCServer, *Ledger) {
	t.Helper()
	genesis := &Block{Header: &BlockHeader{Height: 0, BlueWork: new(big.Int), BaseFeePerGas: big.NewInt(1)}}
	led, err := NewLedger(tmpLedgerConfig(t, genesis))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	authority := newSoloAuthority(t)
	cs, err := NewConsensus(testLogger(), led, noopNetwork{}, authority, NewMempool(testMempoolConfig(), led), authority,
		ConsensusParams{K: 3, MaxParents: 2, FinalityDepth: 10, BlockTimeMS: 1000}, genesis)
	if err != nil {
		t.Fatalf("new consensus: %v", err)
	}
	pool := NewMempool(testMempoolConfig(), led)
	rpc := NewRPCServer(testLogger(), 1, led, cs, pool, noopPeers{}, 0)
	return rpc, led
}

func TestRPCHealthz(t *testing.T) {
	rpc, _ := newTestRPCServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	rpc.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}

func doRPC(t *testing.T, rpc *RPCServer, method string, params json.RawMessage) rpcResponse {
	t.Helper()
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: params})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	rpc.Router().ServeHTTP(rec, req)
	var resp rpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body=%s)", err, rec.Body.String())
	}
	return resp
}

func TestRPCEthChainID(t *testing.T) {
	rpc, _ := newTestRPCServer(t)
	resp := doRPC(t, rpc, "eth_chainId", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if resp.Result != "0x1" {
		t.Fatalf("eth_chainId = %v, want 0x1", resp.Result)
	}
}

func TestRPCEthBlockNumber(t *testing.T) {
	rpc, _ := newTestRPCServer(t)
	resp := doRPC(t, rpc, "eth_blockNumber", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if resp.Result != "0x0" {
		t.Fatalf("eth_blockNumber = %v, want 0x0 at genesis", resp.Result)
	}
}

func TestRPCEthGasPriceReflectsMempool(t *testing.T) {
	rpc, _ := newTestRPCServer(t)
	rpc.pool.SetBaseFee(big.NewInt(7))
	resp := doRPC(t, rpc, "eth_gasPrice", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if resp.Result != "0x7" {
		t.Fatalf("eth_gasPrice = %v, want 0x7", resp.Result)
	}
}

func TestRPCMethodNotFound(t *testing.T) {
	rpc, _ := newTestRPCServer(t)
	resp := doRPC(t, rpc, "bogus_method", nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected -32601 method-not-found, got %+v", resp.Error)
	}
}

func TestRPCEthGetBalance(t *testing.T) {
	rpc, led := newTestRPCServer(t)
	addr := Address{0x42}
	if err := led.Mint(addr, big.NewInt(555)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	params, _ := json.Marshal([]string{addr.Hex(), "latest"})
	resp := doRPC(t, rpc, "eth_getBalance", params)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if resp.Result != "0x22b" {
		t.Fatalf("eth_getBalance = %v, want 0x22b (555)", resp.Result)
	}
}

func TestRPCNodeGetDagStats(t *testing.T) {
	rpc, _ := newTestRPCServer(t)
	resp := doRPC(t, rpc, "node_getDagStats", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var stats dagStatsResult
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode dag stats: %v", err)
	}
	if stats.TipsCount != 1 {
		t.Fatalf("TipsCount = %d, want 1 (just genesis)", stats.TipsCount)
	}
}
