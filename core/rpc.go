package core

// rpc.go – the JSON-RPC 2.0 surface (§6). Grounded on the teacher's
// APINode (core/api_node.go: an http.Server wrapping the ledger, one
// handler per concern, writeJSON for responses) generalized from a
// handful of REST routes to a single dispatch table keyed by method
// name, and routed through chi the way cmd/xchainserver/server wires
// gorilla/mux routes plus middleware.

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// peerCounter is the subset of *Node the RPC surface needs for
// net_peerCount; kept narrow so tests can fake it without standing up libp2p.
type peerCounter interface {
	Peers() []*Peer
}

// RPCServer exposes the node's JSON-RPC 2.0 methods over HTTP.
type RPCServer struct {
	logger  *logrus.Logger
	chainID uint64

	ledger    *Ledger
	consensus *SynnergyConsensus
	pool      *Mempool
	peers     peerCounter

	defaultCallGas uint64

	mu      sync.RWMutex
	syncing bool

	srv *http.Server
}

// NewRPCServer wires the subsystem together. peers may be nil if the node
// has no networking layer attached (net_peerCount then always reports 0).
func NewRPCServer(logger *logrus.Logger, chainID uint64, led *Ledger, cs *SynnergyConsensus, pool *Mempool, peers peerCounter, defaultCallGas uint64) *RPCServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if defaultCallGas == 0 {
		defaultCallGas = 50_000_000
	}
	return &RPCServer{
		logger:         logger,
		chainID:        chainID,
		ledger:         led,
		consensus:      cs,
		pool:           pool,
		peers:          peers,
		defaultCallGas: defaultCallGas,
	}
}

// SetSyncing toggles eth_syncing's reported state; the node calls this
// around its initial Replicator.Synchronize pass.
func (s *RPCServer) SetSyncing(v bool) {
	s.mu.Lock()
	s.syncing = v
	s.mu.Unlock()
}

func (s *RPCServer) isSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// Router builds the chi router: a single JSON-RPC dispatch endpoint plus a
// liveness probe, matching the teacher's one-mux-per-concern shape scaled
// down to this server's single concern.
func (s *RPCServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Post("/", s.handleRPC)
	r.Get("/healthz", s.handleHealthz)
	return r
}

// ListenAndServe starts the HTTP server on addr, blocking until it exits.
func (s *RPCServer) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Close gracefully shuts down the HTTP server.
func (s *RPCServer) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

func (s *RPCServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

//---------------------------------------------------------------------
// JSON-RPC 2.0 envelope
//---------------------------------------------------------------------

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *RPCServer) handleRPC(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, 5<<20)
	defer req.Body.Close()

	var in rpcRequest
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(&in); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
		return
	}

	handler, ok := rpcMethods[in.Method]
	if !ok {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: in.ID, Error: &rpcError{Code: -32601, Message: "method not found: " + in.Method}})
		return
	}

	result, err := handler(s, in.Params)
	if err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: in.ID, Error: rpcErrorFrom(err)})
		return
	}
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: in.ID, Result: result})
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	if resp.JSONRPC == "" {
		resp.JSONRPC = "2.0"
	}
	if len(resp.ID) == 0 {
		resp.ID = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// rpcErrorFrom converts an internal error into a JSON-RPC error object.
// NodeErrors surface their kind/reason in Data so callers can match on it
// programmatically instead of parsing Message, per §7's "actionable reason"
// requirement.
func rpcErrorFrom(err error) *rpcError {
	if ne, ok := AsNodeError(err); ok {
		return &rpcError{
			Code:    -32000,
			Message: ne.Error(),
			Data:    map[string]string{"kind": string(ne.Kind), "reason": ne.Reason},
		}
	}
	return &rpcError{Code: -32603, Message: err.Error()}
}

// rpcMethods is the dispatch table. Each entry decodes its own params.
var rpcMethods = map[string]func(*RPCServer, json.RawMessage) (interface{}, error){
	"eth_chainId":                  (*RPCServer).ethChainID,
	"net_version":                  (*RPCServer).netVersion,
	"net_peerCount":                (*RPCServer).netPeerCount,
	"eth_syncing":                  (*RPCServer).ethSyncing,
	"eth_blockNumber":              (*RPCServer).ethBlockNumber,
	"eth_getBlockByHash":           (*RPCServer).ethGetBlockByHash,
	"eth_getBlockByNumber":         (*RPCServer).ethGetBlockByNumber,
	"eth_getBlockReceipts":         (*RPCServer).ethGetBlockReceipts,
	"eth_getTransactionByHash":     (*RPCServer).ethGetTransactionByHash,
	"eth_getTransactionReceipt":    (*RPCServer).ethGetTransactionReceipt,
	"eth_getTransactionCount":      (*RPCServer).ethGetTransactionCount,
	"eth_getBalance":               (*RPCServer).ethGetBalance,
	"eth_getCode":                  (*RPCServer).ethGetCode,
	"eth_getStorageAt":             (*RPCServer).ethGetStorageAt,
	"eth_call":                     (*RPCServer).ethCall,
	"eth_estimateGas":              (*RPCServer).ethEstimateGas,
	"eth_gasPrice":                 (*RPCServer).ethGasPrice,
	"eth_feeHistory":               (*RPCServer).ethFeeHistory,
	"eth_sendRawTransaction":       (*RPCServer).ethSendRawTransaction,
	"node_getDagStats":             (*RPCServer).nodeGetDagStats,
	"getObservedBalance":           (*RPCServer).getObservedBalance,
	"getAccountActivity":           (*RPCServer).getAccountActivity,
}

//---------------------------------------------------------------------
// hex encode/decode helpers
//---------------------------------------------------------------------

func hexUint64(v uint64) string { return "0x" + strconv.FormatUint(v, 16) }

func hexBigInt(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	if v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

func parseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func parseHexAddress(s string) (Address, error) {
	b, err := parseHexBytes(s)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(b), nil
}

func parseHexHash(s string) (Hash, error) {
	b, err := parseHexBytes(s)
	if err != nil {
		return Hash{}, err
	}
	return BytesToHash(b), nil
}

func parseHexBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, errors.New("invalid hex quantity")
	}
	return v, nil
}

//---------------------------------------------------------------------
// chain / network identity
//---------------------------------------------------------------------

func (s *RPCServer) ethChainID(_ json.RawMessage) (interface{}, error) {
	return hexUint64(s.chainID), nil
}

func (s *RPCServer) netVersion(_ json.RawMessage) (interface{}, error) {
	return strconv.FormatUint(s.chainID, 10), nil
}

func (s *RPCServer) netPeerCount(_ json.RawMessage) (interface{}, error) {
	if s.peers == nil {
		return hexUint64(0), nil
	}
	return hexUint64(uint64(len(s.peers.Peers()))), nil
}

func (s *RPCServer) ethSyncing(_ json.RawMessage) (interface{}, error) {
	if !s.isSyncing() {
		return false, nil
	}
	return map[string]string{
		"startingBlock": hexUint64(0),
		"currentBlock":  hexUint64(s.ledger.LastHeight()),
	}, nil
}

//---------------------------------------------------------------------
// blocks
//---------------------------------------------------------------------

func (s *RPCServer) ethBlockNumber(_ json.RawMessage) (interface{}, error) {
	return hexUint64(s.ledger.LastHeight()), nil
}

type rpcBlock struct {
	Number         string   `json:"number"`
	Hash           string   `json:"hash"`
	ParentHash     string   `json:"parentHash"`
	MergeParents   []string `json:"mergeParents"`
	BlueScore      string   `json:"blueScore"`
	BlueWork       string   `json:"blueWork"`
	Timestamp      string   `json:"timestamp"`
	Miner          string   `json:"miner"`
	StateRoot      string   `json:"stateRoot"`
	TransactionsRt string   `json:"transactionsRoot"`
	ReceiptsRoot   string   `json:"receiptsRoot"`
	GasUsed        string   `json:"gasUsed"`
	GasLimit       string   `json:"gasLimit"`
	BaseFeePerGas  string   `json:"baseFeePerGas"`
	Transactions   []interface{} `json:"transactions"`
}

func toRPCBlock(b *Block, fullTx bool) (*rpcBlock, error) {
	hash, err := b.Hash()
	if err != nil {
		return nil, err
	}
	mp := make([]string, len(b.Header.MergeParents))
	for i, h := range b.Header.MergeParents {
		mp[i] = h.Hex()
	}
	out := &rpcBlock{
		Number:         hexUint64(b.Header.Height),
		Hash:           hash.Hex(),
		ParentHash:     b.Header.SelectedParent.Hex(),
		MergeParents:   mp,
		BlueScore:      hexUint64(b.Header.BlueScore),
		BlueWork:       hexBigInt(b.Header.BlueWork),
		Timestamp:      hexUint64(uint64(b.Header.TimestampMS)),
		Miner:          b.Header.Proposer.Hex(),
		StateRoot:      b.Header.StateRoot.Hex(),
		TransactionsRt: b.Header.TxRoot.Hex(),
		ReceiptsRoot:   b.Header.ReceiptRoot.Hex(),
		GasUsed:        hexUint64(b.Header.GasUsed),
		GasLimit:       hexUint64(b.Header.GasLimit),
		BaseFeePerGas:  hexBigInt(b.Header.BaseFeePerGas),
	}
	out.Transactions = make([]interface{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		if fullTx {
			out.Transactions[i] = toRPCTransaction(tx, &hash, b.Header.Height)
		} else {
			out.Transactions[i] = tx.Hash().Hex()
		}
	}
	return out, nil
}

func decodeBlockByHashParams(raw json.RawMessage) (Hash, bool, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return Hash{}, false, errors.New("expected [blockHash, fullTx]")
	}
	var hashStr string
	if err := json.Unmarshal(arr[0], &hashStr); err != nil {
		return Hash{}, false, err
	}
	h, err := parseHexHash(hashStr)
	if err != nil {
		return Hash{}, false, err
	}
	full := false
	if len(arr) > 1 {
		_ = json.Unmarshal(arr[1], &full)
	}
	return h, full, nil
}

func (s *RPCServer) ethGetBlockByHash(raw json.RawMessage) (interface{}, error) {
	h, full, err := decodeBlockByHashParams(raw)
	if err != nil {
		return nil, err
	}
	b, err := s.ledger.GetBlockByHash(h)
	if err != nil {
		return nil, err
	}
	return toRPCBlock(b, full)
}

// resolveBlockTag accepts a height (hex quantity) or one of "latest",
// "earliest", "pending" (treated as "latest" — this node has no mempool
// preview block).
func (s *RPCServer) resolveBlockTag(tag string) (*Block, error) {
	switch tag {
	case "latest", "pending", "":
		return s.ledger.GetBlockByTip()
	case "earliest":
		return s.ledger.GetBlockByHeight(0)
	default:
		height, err := parseHexUint64(tag)
		if err != nil {
			return nil, NewError(ErrKindStructural, "InvalidBlockTag", tag)
		}
		return s.ledger.GetBlockByHeight(height)
	}
}

func (s *RPCServer) ethGetBlockByNumber(raw json.RawMessage) (interface{}, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return nil, errors.New("expected [blockTag, fullTx]")
	}
	var tag string
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return nil, err
	}
	full := false
	if len(arr) > 1 {
		_ = json.Unmarshal(arr[1], &full)
	}
	b, err := s.resolveBlockTag(tag)
	if err != nil {
		return nil, err
	}
	return toRPCBlock(b, full)
}

func (s *RPCServer) ethGetBlockReceipts(raw json.RawMessage) (interface{}, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return nil, errors.New("expected [blockTag]")
	}
	var tag string
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return nil, err
	}
	b, err := s.resolveBlockTag(tag)
	if err != nil {
		return nil, err
	}
	// Block.Receipts is not persisted through the WAL's JSON encoding (it
	// carries json:"-" since receipts live in their own keyed store), so a
	// block reloaded after restart has it unset; look receipts up by
	// transaction hash instead, which indexBlock always populates.
	out := make([]*rpcReceipt, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		r, err := s.ledger.GetReceipt(tx.Hash())
		if err != nil {
			continue
		}
		out = append(out, toRPCReceipt(r))
	}
	return out, nil
}

//---------------------------------------------------------------------
// transactions / receipts
//---------------------------------------------------------------------

type rpcTransaction struct {
	Hash                 string  `json:"hash"`
	BlockHash            *string `json:"blockHash"`
	BlockNumber          *string `json:"blockNumber"`
	ChainID              string  `json:"chainId"`
	Nonce                string  `json:"nonce"`
	To                   *string `json:"to"`
	Value                string  `json:"value"`
	Gas                  string  `json:"gas"`
	GasPrice             string  `json:"gasPrice,omitempty"`
	MaxFeePerGas         string  `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string  `json:"maxPriorityFeePerGas,omitempty"`
	Input                string  `json:"input"`
	Type                 string  `json:"type"`
}

func toRPCTransaction(tx *Transaction, blockHash *Hash, blockNumber uint64) *rpcTransaction {
	out := &rpcTransaction{
		Hash:     tx.Hash().Hex(),
		ChainID:  hexUint64(tx.ChainID),
		Nonce:    hexUint64(tx.Nonce),
		Value:    hexBigInt(tx.Value),
		Gas:      hexUint64(tx.GasLimit),
		Input:    "0x" + hex.EncodeToString(tx.Data),
		Type:     hexUint64(uint64(tx.Kind)),
	}
	if tx.To != nil {
		h := tx.To.Hex()
		out.To = &h
	}
	if blockHash != nil {
		h := blockHash.Hex()
		out.BlockHash = &h
		n := hexUint64(blockNumber)
		out.BlockNumber = &n
	}
	switch tx.Kind {
	case TxDynamicFee:
		out.MaxFeePerGas = hexBigInt(tx.MaxFeePerGas)
		out.MaxPriorityFeePerGas = hexBigInt(tx.MaxPriorityFeePerGas)
	default:
		out.GasPrice = hexBigInt(tx.GasPrice)
	}
	return out
}

type rpcReceipt struct {
	TransactionHash   string   `json:"transactionHash"`
	Status            string   `json:"status"`
	GasUsed           string   `json:"gasUsed"`
	CumulativeGasUsed string   `json:"cumulativeGasUsed"`
	ContractAddress   *string  `json:"contractAddress"`
	LogsBloom         string   `json:"logsBloom"`
	RevertReason      string   `json:"revertReason,omitempty"`
	Logs              []rpcLog `json:"logs"`
}

type rpcLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

func toRPCReceipt(r *Receipt) *rpcReceipt {
	out := &rpcReceipt{
		TransactionHash:   r.TxHash.Hex(),
		Status:            hexUint64(uint64(r.Status)),
		GasUsed:           hexUint64(r.GasUsed),
		CumulativeGasUsed: hexUint64(r.CumulativeGasUsed),
		LogsBloom:         "0x" + hex.EncodeToString(r.Bloom[:]),
		RevertReason:      r.RevertReason,
	}
	if r.ContractAddress != nil {
		h := r.ContractAddress.Hex()
		out.ContractAddress = &h
	}
	out.Logs = make([]rpcLog, len(r.Logs))
	for i, l := range r.Logs {
		topics := make([]string, len(l.Topics))
		for j, t := range l.Topics {
			topics[j] = t.Hex()
		}
		out.Logs[i] = rpcLog{Address: l.Address.Hex(), Topics: topics, Data: "0x" + hex.EncodeToString(l.Data)}
	}
	return out
}

func decodeSingleHashParam(raw json.RawMessage) (Hash, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return Hash{}, errors.New("expected [hash]")
	}
	var s string
	if err := json.Unmarshal(arr[0], &s); err != nil {
		return Hash{}, err
	}
	return parseHexHash(s)
}

func (s *RPCServer) ethGetTransactionByHash(raw json.RawMessage) (interface{}, error) {
	h, err := decodeSingleHashParam(raw)
	if err != nil {
		return nil, err
	}
	tx, blockHash, err := s.ledger.GetTransaction(h)
	if err != nil {
		return nil, err
	}
	blk, err := s.ledger.GetBlockByHash(blockHash)
	if err != nil {
		return toRPCTransaction(tx, nil, 0), nil
	}
	return toRPCTransaction(tx, &blockHash, blk.Header.Height), nil
}

func (s *RPCServer) ethGetTransactionReceipt(raw json.RawMessage) (interface{}, error) {
	h, err := decodeSingleHashParam(raw)
	if err != nil {
		return nil, err
	}
	r, err := s.ledger.GetReceipt(h)
	if err != nil {
		return nil, err
	}
	return toRPCReceipt(r), nil
}

func decodeAddressParams(raw json.RawMessage) (Address, string, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return Address{}, "", errors.New("expected [address, blockTag?]")
	}
	var addrStr string
	if err := json.Unmarshal(arr[0], &addrStr); err != nil {
		return Address{}, "", err
	}
	addr, err := parseHexAddress(addrStr)
	if err != nil {
		return Address{}, "", err
	}
	tag := "latest"
	if len(arr) > 1 {
		_ = json.Unmarshal(arr[1], &tag)
	}
	return addr, tag, nil
}

func (s *RPCServer) ethGetTransactionCount(raw json.RawMessage) (interface{}, error) {
	addr, _, err := decodeAddressParams(raw)
	if err != nil {
		return nil, err
	}
	return hexUint64(s.ledger.NonceOf(addr)), nil
}

func (s *RPCServer) ethGetBalance(raw json.RawMessage) (interface{}, error) {
	addr, _, err := decodeAddressParams(raw)
	if err != nil {
		return nil, err
	}
	return hexBigInt(s.ledger.BalanceOf(addr)), nil
}

func (s *RPCServer) ethGetCode(raw json.RawMessage) (interface{}, error) {
	addr, _, err := decodeAddressParams(raw)
	if err != nil {
		return nil, err
	}
	return "0x" + hex.EncodeToString(s.ledger.GetCode(addr)), nil
}

func (s *RPCServer) ethGetStorageAt(raw json.RawMessage) (interface{}, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
		return nil, errors.New("expected [address, position, blockTag?]")
	}
	var addrStr, posStr string
	if err := json.Unmarshal(arr[0], &addrStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(arr[1], &posStr); err != nil {
		return nil, err
	}
	addr, err := parseHexAddress(addrStr)
	if err != nil {
		return nil, err
	}
	slot, err := parseHexHash(posStr)
	if err != nil {
		return nil, err
	}
	key := append(append([]byte{}, addr.Bytes()...), slot.Bytes()...)
	v, err := s.ledger.GetState(key)
	if err != nil {
		return nil, err
	}
	return "0x" + hex.EncodeToString(v), nil
}

//---------------------------------------------------------------------
// eth_call / eth_estimateGas — non-mutating dry-run via Ledger.Snapshot
//---------------------------------------------------------------------

type callArgs struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Gas   string `json:"gas"`
	Value string `json:"value"`
	Data  string `json:"data"`
	Input string `json:"input"`
}

func decodeCallArgs(raw json.RawMessage) (callArgs, string, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return callArgs{}, "", errors.New("expected [callObject, blockTag?]")
	}
	var a callArgs
	if err := json.Unmarshal(arr[0], &a); err != nil {
		return callArgs{}, "", err
	}
	tag := "latest"
	if len(arr) > 1 {
		_ = json.Unmarshal(arr[1], &tag)
	}
	return a, tag, nil
}

// errDryRunDone forces Ledger.Snapshot to always restore its clone after a
// call dry-run, regardless of the call's outcome — eth_call/eth_estimateGas
// must never leave a mutation behind.
var errDryRunDone = errors.New("rpc: dry-run complete")

func (s *RPCServer) dryRunCall(a callArgs) (out []byte, reverted bool, gasUsed uint64, callErr error, err error) {
	from, ferr := parseHexAddress(a.From)
	if ferr != nil {
		return nil, false, 0, nil, ferr
	}
	value, verr := parseHexBig(a.Value)
	if verr != nil {
		return nil, false, 0, nil, verr
	}
	data := a.Data
	if data == "" {
		data = a.Input
	}
	input, derr := parseHexBytes(data)
	if derr != nil {
		return nil, false, 0, nil, derr
	}
	gas := s.defaultCallGas
	if a.Gas != "" {
		if g, gerr := parseHexUint64(a.Gas); gerr == nil && g > 0 {
			gas = g
		}
	}

	snapErr := s.ledger.Snapshot(func() error {
		if a.To == "" {
			var addr Address
			addr, out, reverted, callErr = s.ledger.CreateContract(from, input, value, gas)
			_ = addr
			reverted = !reverted
			return errDryRunDone
		}
		to, terr := parseHexAddress(a.To)
		if terr != nil {
			callErr = terr
			return errDryRunDone
		}
		var ok bool
		out, ok, gasUsed, callErr = s.ledger.Call(from, to, input, value, gas)
		reverted = !ok
		return errDryRunDone
	})
	if snapErr != nil && !errors.Is(snapErr, errDryRunDone) {
		err = snapErr
	}
	return out, reverted, gasUsed, callErr, err
}

func (s *RPCServer) ethCall(raw json.RawMessage) (interface{}, error) {
	a, _, err := decodeCallArgs(raw)
	if err != nil {
		return nil, err
	}
	out, reverted, _, callErr, err := s.dryRunCall(a)
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return nil, NewError(ErrKindExecution, "Reverted", callErr.Error())
	}
	if reverted {
		return nil, NewError(ErrKindExecution, "Reverted", "call reverted")
	}
	return "0x" + hex.EncodeToString(out), nil
}

// ethEstimateGas dry-runs the call at its stated gas (or the node's default
// ceiling) and returns the gas actually consumed plus a 10% safety margin,
// per §6.
func (s *RPCServer) ethEstimateGas(raw json.RawMessage) (interface{}, error) {
	a, _, err := decodeCallArgs(raw)
	if err != nil {
		return nil, err
	}
	_, reverted, gasUsed, callErr, err := s.dryRunCall(a)
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return nil, NewError(ErrKindExecution, "Reverted", callErr.Error())
	}
	if reverted {
		return nil, NewError(ErrKindExecution, "Reverted", "call reverted")
	}
	estimate := gasUsed + gasUsed/10
	if estimate == 0 {
		estimate = 21000
	}
	return hexUint64(estimate), nil
}

//---------------------------------------------------------------------
// fee market
//---------------------------------------------------------------------

func (s *RPCServer) ethGasPrice(_ json.RawMessage) (interface{}, error) {
	return hexBigInt(s.pool.BaseFee()), nil
}

type feeHistoryResult struct {
	OldestBlock   string     `json:"oldestBlock"`
	BaseFeePerGas []string   `json:"baseFeePerGas"`
	GasUsedRatio  []float64  `json:"gasUsedRatio"`
	Reward        [][]string `json:"reward,omitempty"`
}

func (s *RPCServer) ethFeeHistory(raw json.RawMessage) (interface{}, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
		return nil, errors.New("expected [blockCount, newestBlock, rewardPercentiles?]")
	}
	var countStr string
	if err := json.Unmarshal(arr[0], &countStr); err != nil {
		var n float64
		if err2 := json.Unmarshal(arr[0], &n); err2 != nil {
			return nil, err
		}
		countStr = hexUint64(uint64(n))
	}
	count, err := parseHexUint64(countStr)
	if err != nil || count == 0 {
		return nil, NewError(ErrKindStructural, "InvalidParams", "blockCount must be a positive quantity")
	}
	var tag string
	if err := json.Unmarshal(arr[1], &tag); err != nil {
		return nil, err
	}
	var percentiles []float64
	if len(arr) > 2 {
		_ = json.Unmarshal(arr[2], &percentiles)
	}

	newest, err := s.resolveBlockTag(tag)
	if err != nil {
		return nil, err
	}
	newestHeight := newest.Header.Height
	if count > newestHeight+1 {
		count = newestHeight + 1
	}
	oldest := newestHeight + 1 - count

	blocks := make([]*Block, 0, count)
	for h := oldest; h <= newestHeight; h++ {
		b, err := s.ledger.GetBlockByHeight(h)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	res := feeHistoryResult{OldestBlock: hexUint64(oldest)}
	for _, b := range blocks {
		res.BaseFeePerGas = append(res.BaseFeePerGas, hexBigInt(b.Header.BaseFeePerGas))
		ratio := 0.0
		if b.Header.GasLimit > 0 {
			ratio = float64(b.Header.GasUsed) / float64(b.Header.GasLimit)
		}
		res.GasUsedRatio = append(res.GasUsedRatio, ratio)
		if len(percentiles) > 0 {
			res.Reward = append(res.Reward, rewardPercentilesFor(b, percentiles))
		}
	}
	last := blocks[len(blocks)-1]
	res.BaseFeePerGas = append(res.BaseFeePerGas, hexBigInt(nextBaseFeeFrom(last.Header.BaseFeePerGas, last.Header.GasUsed, last.Header.GasLimit)))
	return res, nil
}

// rewardPercentilesFor computes, for each requested percentile, the
// effective-priority-fee of the transaction at that percentile position in
// b's fee-sorted transaction list — no fullness-only heuristic, per §6.
func rewardPercentilesFor(b *Block, percentiles []float64) []string {
	tips := make([]*big.Int, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		price, err := tx.EffectiveGasPrice(b.Header.BaseFeePerGas)
		if err != nil {
			continue
		}
		tip := new(big.Int).Sub(price, b.Header.BaseFeePerGas)
		if tip.Sign() < 0 {
			tip = new(big.Int)
		}
		tips = append(tips, tip)
	}
	sort.Slice(tips, func(i, j int) bool { return tips[i].Cmp(tips[j]) < 0 })

	out := make([]string, len(percentiles))
	for i, p := range percentiles {
		if len(tips) == 0 {
			out[i] = hexBigInt(new(big.Int))
			continue
		}
		idx := int(p / 100 * float64(len(tips)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(tips) {
			idx = len(tips) - 1
		}
		out[i] = hexBigInt(tips[idx])
	}
	return out
}

//---------------------------------------------------------------------
// eth_sendRawTransaction — the only mutating RPC handler
//---------------------------------------------------------------------

func (s *RPCServer) ethSendRawTransaction(raw json.RawMessage) (interface{}, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return nil, errors.New("expected [rawTransaction]")
	}
	var rawHex string
	if err := json.Unmarshal(arr[0], &rawHex); err != nil {
		return nil, err
	}
	payload, err := parseHexBytes(rawHex)
	if err != nil {
		return nil, NewError(ErrKindStructural, "Malformed", err.Error())
	}
	tx, err := decodeRawTransaction(payload)
	if err != nil {
		return nil, NewError(ErrKindStructural, "Malformed", err.Error())
	}
	if err := s.pool.Add(tx); err != nil {
		return nil, err
	}
	return tx.Hash().Hex(), nil
}

// signedTxRLP mirrors tx.go's CanonicalBytes encoding exactly, so a raw
// transaction submitted over RPC decodes into the same shape the block
// body format uses.
type signedTxRLP struct {
	Payload txRLPPayload
	V, R, S *big.Int
}

func decodeRawTransaction(raw []byte) (*Transaction, error) {
	var decoded signedTxRLP
	if err := rlp.DecodeBytes(raw, &decoded); err != nil {
		return nil, err
	}
	var to *Address
	if len(decoded.Payload.To) > 0 {
		a := BytesToAddress(decoded.Payload.To)
		to = &a
	}
	kind := TxKind(decoded.Payload.Kind)
	tx := &Transaction{
		Kind:       kind,
		ChainID:    decoded.Payload.ChainID,
		Nonce:      decoded.Payload.Nonce,
		GasLimit:   decoded.Payload.GasLimit,
		To:         to,
		Value:      decoded.Payload.Value,
		Data:       decoded.Payload.Data,
		AccessList: decoded.Payload.AccessList,
		V:          decoded.V,
		R:          decoded.R,
		S:          decoded.S,
	}
	if kind == TxDynamicFee {
		tx.MaxFeePerGas = decoded.Payload.MaxFeePerGas
		tx.MaxPriorityFeePerGas = decoded.Payload.MaxPriorityFeePerGas
	} else {
		tx.GasPrice = decoded.Payload.GasPrice
	}
	return tx, nil
}

//---------------------------------------------------------------------
// DAG-native and observed-address helpers
//---------------------------------------------------------------------

type dagStatsResult struct {
	TipsCount    int             `json:"tipsCount"`
	CurrentTips  []string        `json:"currentTips"`
	Height       string          `json:"height"`
	MaxBlueScore string          `json:"maxBlueScore"`
	GhostdagParams ghostdagParams `json:"ghostdagParams"`
}

type ghostdagParams struct {
	K             int    `json:"k"`
	MaxParents    int    `json:"maxParents"`
	FinalityDepth string `json:"finalityDepth"`
	PruningWindow string `json:"pruningWindow"`
}

func (s *RPCServer) nodeGetDagStats(_ json.RawMessage) (interface{}, error) {
	tips := s.consensus.Tips()
	currentTips := make([]string, len(tips))
	var maxBlue uint64
	for i, t := range tips {
		currentTips[i] = t.Hex()
		if score, ok := s.consensus.BlueScoreOf(t); ok && score > maxBlue {
			maxBlue = score
		}
	}
	params := s.consensus.Params()
	return dagStatsResult{
		TipsCount:    len(tips),
		CurrentTips:  currentTips,
		Height:       hexUint64(s.ledger.LastHeight()),
		MaxBlueScore: hexUint64(maxBlue),
		GhostdagParams: ghostdagParams{
			K:             params.K,
			MaxParents:    params.MaxParents,
			FinalityDepth: hexUint64(params.FinalityDepth),
			PruningWindow: hexUint64(params.PruningWindow),
		},
	}, nil
}

func (s *RPCServer) getObservedBalance(raw json.RawMessage) (interface{}, error) {
	addr, _, err := decodeAddressParams(raw)
	if err != nil {
		return nil, err
	}
	return hexBigInt(s.ledger.BalanceOf(addr)), nil
}

func (s *RPCServer) getAccountActivity(raw json.RawMessage) (interface{}, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return nil, errors.New("expected [address, limit?, offset?]")
	}
	var addrStr string
	if err := json.Unmarshal(arr[0], &addrStr); err != nil {
		return nil, err
	}
	addr, err := parseHexAddress(addrStr)
	if err != nil {
		return nil, err
	}
	limit, offset := 20, 0
	if len(arr) > 1 {
		_ = json.Unmarshal(arr[1], &limit)
	}
	if len(arr) > 2 {
		_ = json.Unmarshal(arr[2], &offset)
	}

	all := s.ledger.TransactionsForAddress(addr, 0)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []string{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	hashes := all[offset:end]
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out, nil
}
