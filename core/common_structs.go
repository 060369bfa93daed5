package core

// common_structs.go – centralised struct definitions referenced across
// modules. This file declares data structures only (no functions) to avoid
// cyclic imports; concrete consensus/execution/storage logic lives in the
// files named after each component.

import (
	"context"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	host "github.com/libp2p/go-libp2p/core/host"
	log "github.com/sirupsen/logrus"
)

//---------------------------------------------------------------------
// Core primitive types (derivation logic lives in primitives.go)
//---------------------------------------------------------------------

// Address represents a 20-byte account identifier.
type Address [20]byte

// Hash represents a 32-byte cryptographic hash.
type Hash [32]byte

//---------------------------------------------------------------------
// Smart-contract registry structs
//---------------------------------------------------------------------

// SmartContract is the minimal on-chain record of a deployed contract;
// Contract (below) carries the richer metadata used by RPC/tooling.
type SmartContract struct {
	Address   Address
	Creator   Address
	CodeHash  Hash
	Bytecode  []byte
	GasLimit  uint64
	CreatedAt time.Time
}

// RicardianContract attaches a human-readable legal prose layer to a
// deployed contract address; purely informational, never consulted by
// execution.
type RicardianContract struct {
	Address      Address   `json:"address"`
	Version      string    `json:"version"`
	Title        string    `json:"title"`
	Parties      []string  `json:"parties"`
	LegalProse   string    `json:"legal"`
	CodeHash     string    `json:"code_hash"`
	Jurisdiction string    `json:"jurisdiction"`
	Created      time.Time `json:"created"`
}

type ContractRegistry struct {
	*Registry
	ledger *Ledger
	vm     VM
	mu     sync.RWMutex
	byAddr map[Address]*SmartContract
}

// Contract is the full record the storage layer persists for a deployed
// contract.
type Contract struct {
	Address      Address `json:"address"`
	DeployTxHash Hash    `json:"deploy_tx"`
	DeployBlock  uint64  `json:"deploy_block"`

	Bytecode []byte  `json:"bytecode"`
	ABI      abi.ABI `json:"abi"`

	Meta ContractMetadata `json:"meta"`
}

// ContractMetadata stores descriptive/provenance data that does not affect
// consensus but is useful for explorers and tooling.
type ContractMetadata struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Compiler    string    `json:"compiler"`
	Language    string    `json:"language"`
	SourceHash  Hash      `json:"source_hash"`
	License     string    `json:"license"`
	Author      string    `json:"author"`
	DocURL      string    `json:"doc_url"`
	PublishedAt time.Time `json:"published_at"`
	Tags        []string  `json:"tags"`
}

//---------------------------------------------------------------------
// Network peer info
//---------------------------------------------------------------------

type PeerInfo struct {
	Address Address `json:"address"`
	RTT     float64 `json:"rtt_ms"`
	Misses  int     `json:"misses"`
	Updated int64   `json:"updated_unix"`
}

//---------------------------------------------------------------------
// Artifact / blob storage (C2 side-channel for the optional artifact_root
// header field; never consensus-critical)
//---------------------------------------------------------------------

type diskEntry struct {
	path string
	size int64
	at   time.Time
}

type diskLRU struct {
	mu    sync.Mutex
	dir   string
	max   int
	index map[string]*diskEntry
	order []*diskEntry
}

type Storage struct {
	logger      *log.Logger
	cfg         *StorageConfig
	client      *http.Client
	cache       *diskLRU
	ledger      MeteredState
	pinEndpoint string
	getEndpoint string
}

// StorageConfig configures the artifact cache/gateway.
type StorageConfig struct {
	CacheDir         string        `yaml:"cache_dir"`
	MaxCacheBytes    uint64        `yaml:"max_cache_bytes"`
	PinEndpoint      string        `yaml:"pin_endpoint"`
	FetchEndpoint    string        `yaml:"fetch_endpoint"`
	Timeout          time.Duration `yaml:"timeout"`
	CacheSizeEntries int
	GatewayTimeout   time.Duration
}

//---------------------------------------------------------------------
// Ledger state interface – the single read/write contract execution,
// mempool admission, and RPC all hold against.
//---------------------------------------------------------------------

type StateIterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
}

// StateRW is the account/contract-level state surface the execution layer
// mutates and RPC reads. It intentionally excludes anything DAG/consensus
// related — per §9's unidirectional-interface redesign note, execution
// never calls back into consensus.
type StateRW interface {
	GetState(key []byte) ([]byte, error)
	SetState(key, value []byte) error
	DeleteState(key []byte) error
	HasState(key []byte) (bool, error)
	PrefixIterator(prefix []byte) StateIterator
	Snapshot(func() error) error

	Transfer(from, to Address, amount *big.Int) error
	Mint(addr Address, amount *big.Int) error
	Burn(addr Address, amount *big.Int) error
	BalanceOf(addr Address) *big.Int
	NonceOf(addr Address) uint64
	SetNonce(addr Address, nonce uint64) error

	Get(ns, key []byte) ([]byte, error)
	Set(ns, key, val []byte) error

	GetCode(addr Address) []byte
	SetCode(addr Address, code []byte) error
	GetCodeHash(addr Address) Hash
	AddLog(log LogEntry)

	CreateContract(caller Address, code []byte, value *big.Int, gas uint64) (Address, []byte, bool, error)
	Call(from, to Address, input []byte, value *big.Int, gas uint64) ([]byte, bool, uint64, error)
	StaticCall(from, to Address, input []byte, gas uint64) ([]byte, bool, uint64, error)
	GetContract(addr Address) (*Contract, error)
	SelfDestruct(contract Address, beneficiary Address)
}

//---------------------------------------------------------------------
// Replication configuration (node-level YAML section)
//---------------------------------------------------------------------

type ReplicationConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	ChunksPerSec   int           `yaml:"chunks_per_sec"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	PeerThreshold  int           `yaml:"peer_threshold"`
	Fanout         uint
	RequestTimeout time.Duration
	SyncBatchSize  uint64
}

//---------------------------------------------------------------------
// Read-only block chain access for replication / analytics
//---------------------------------------------------------------------

type BlockReader interface {
	GetBlockByHeight(height uint64) (*Block, error)
	GetBlockByHash(hash Hash) (*Block, error)
	GetBlockByTip() (*Block, error)
	LastHeight() uint64
	HasBlock(hash Hash) bool
	DecodeBlockRLP(data []byte) (*Block, error)
	ImportBlock(b *Block) error
}

//---------------------------------------------------------------------
// Peer management abstraction (used by replication & consensus)
//---------------------------------------------------------------------

type PeerManager interface {
	Peers() []PeerInfo
	Connect(addr string) error
	Disconnect(id NodeID) error
	Sample(n int) []string
	SendAsync(peerID, proto string, code byte, payload []byte) error
	Subscribe(proto string) <-chan InboundMsg
	Unsubscribe(proto string)
}

// MeteredState extends StateRW with gas-charging / storage-rent logic.
type MeteredState interface {
	StateRW
	Charge(sender Address, gas uint64) error
	ChargeStorageRent(payer Address, bytes int64) error
}

//---------------------------------------------------------------------
// Registry / pool support types
//---------------------------------------------------------------------

type Registry struct {
	mu      sync.RWMutex
	Entries map[string][]byte
}

type ReadOnlyState interface {
	Get(key string) ([]byte, error)
	BalanceOf(addr Address) *big.Int
	NonceOf(addr Address) uint64
}

type GasCalculator interface {
	Estimate(payload []byte) (uint64, error)
	Calculate(op string, amount uint64) uint64
}

type InboundMsg struct {
	PeerID  string `json:"peer_id"`
	Code    byte   `json:"code"`
	Payload []byte `json:"payload"`

	Topic string  `json:"topic,omitempty"`
	From  Address `json:"from,omitempty"`
	Ts    int64   `json:"ts"`
}

type NetworkMessage struct {
	Source    Address `json:"source"`
	Target    Address `json:"target"`
	MsgType   string  `json:"type"`
	Content   []byte  `json:"content"`
	Timestamp int64   `json:"timestamp"`
	Topic     string
}

//---------------------------------------------------------------------
// P2P structs
//---------------------------------------------------------------------

type NodeID string

type Peer struct {
	ID      NodeID
	Addr    string
	Latency time.Duration
	Conn    net.Conn
}

type Message struct {
	From  NodeID
	Topic string
	Data  []byte
}

type Config struct {
	ListenAddr     string
	BootstrapPeers []string
	DiscoveryTag   string
}

type Node struct {
	host      host.Host
	pubsub    *pubsub.PubSub
	topics    map[string]*pubsub.Topic
	subs      map[string]*pubsub.Subscription
	topicLock sync.RWMutex
	subLock   sync.RWMutex
	peerLock  sync.RWMutex
	peers     map[NodeID]*Peer
	nat       *NATManager
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       Config
}

//---------------------------------------------------------------------
// Replication
//---------------------------------------------------------------------

type Replicator struct {
	logger  *log.Logger
	cfg     *ReplicationConfig
	ledger  BlockReader
	pm      PeerManager
	closing chan struct{}
	wg      sync.WaitGroup
	rangeCh chan []*Block
}
