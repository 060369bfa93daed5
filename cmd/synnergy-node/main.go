package main

// main.go – the node's process entrypoint (§6): init/start/status, wired
// the way cmd/cli/full_node.go wires a teacher node (cobra commands against
// package-level state, viper for config, logrus for startup logging), but
// assembling the BlockDAG stack (Ledger, SynnergyConsensus, Mempool,
// Sequencer, RPCServer, Node+Replicator) instead of a FullNode.

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"synnergy-network/core"
	"synnergy-network/pkg/config"
)

const (
	validatorKeyFile = "validator.key"
	genesisFile      = "genesis.json"
)

// genesisSpec is the on-disk, human-editable seed for chain identity,
// written by init and read by start. It mirrors pkg/config.Config.Genesis
// plus the proposer identity init derives from the freshly generated key.
type genesisSpec struct {
	ChainID    uint64            `json:"chain_id"`
	Timestamp  int64             `json:"timestamp"`
	BaseFeeWei string            `json:"base_fee_wei"`
	GasLimit   uint64            `json:"gas_limit"`
	Alloc      map[string]string `json:"alloc"`
	ExtraData  string            `json:"extra_data"`
	Proposer   string            `json:"proposer"`
}

func main() {
	root := &cobra.Command{Use: "synnergy-node", Short: "Synnergy BlockDAG node"}
	root.AddCommand(initCmd(), startCmd(), statusCmd())
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a startup failure to the process exit codes the
// external interface contracts for (0 success is cobra's own default path;
// 64 bad config/usage, 65 storage failure, 66 a consensus invariant
// violation detected before the node could come up).
func exitCodeFor(err error) int {
	if ne, ok := core.AsNodeError(err); ok {
		if code := ne.ExitCode(); code != 0 {
			return code
		}
	}
	if strings.Contains(err.Error(), "open WAL") || strings.Contains(err.Error(), "ledger:") {
		return 65
	}
	return 64
}

//---------------------------------------------------------------------
// init <data-dir>
//---------------------------------------------------------------------

func initCmd() *cobra.Command {
	var chainID uint64
	var gasLimit uint64
	var baseFee string
	var allocAddr string
	var allocWei string

	cmd := &cobra.Command{
		Use:   "init <data-dir>",
		Short: "generate a validator key and genesis file in data-dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir := args[0]
			if err := os.MkdirAll(dataDir, 0o750); err != nil {
				return core.WrapError(core.ErrKindResource, "DataDirUnwritable", err)
			}

			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return core.WrapError(core.ErrKindCryptographic, "KeygenFailed", err)
			}
			proposer, err := core.AddressFromEd25519Pubkey(pub)
			if err != nil {
				return core.WrapError(core.ErrKindCryptographic, "KeyDeriveFailed", err)
			}

			keyPath := filepath.Join(dataDir, validatorKeyFile)
			if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
				return core.WrapError(core.ErrKindResource, "ValidatorKeyWriteFailed", err)
			}

			alloc := map[string]string{}
			if allocAddr != "" {
				alloc[allocAddr] = allocWei
			}
			gs := genesisSpec{
				ChainID:    chainID,
				Timestamp:  time.Now().UnixMilli(),
				BaseFeeWei: baseFee,
				GasLimit:   gasLimit,
				Alloc:      alloc,
				Proposer:   proposer.Hex(),
			}
			enc, err := json.MarshalIndent(gs, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dataDir, genesisFile), enc, 0o644); err != nil {
				return core.WrapError(core.ErrKindResource, "GenesisWriteFailed", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized data dir %s\nvalidator address: %s\n", dataDir, proposer.Hex())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&chainID, "chain-id", 1337, "chain id to embed in genesis")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 30_000_000, "genesis block gas limit")
	cmd.Flags().StringVar(&baseFee, "base-fee", "1000000000", "genesis base fee, wei, decimal")
	cmd.Flags().StringVar(&allocAddr, "alloc-address", "", "optional address to credit at genesis")
	cmd.Flags().StringVar(&allocWei, "alloc-wei", "0", "amount to credit alloc-address, wei, decimal")
	return cmd
}

//---------------------------------------------------------------------
// start <config>
//---------------------------------------------------------------------

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <config>",
		Short: "start the node using the given yaml config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, args[0])
		},
	}
	return cmd
}

func loadNodeConfig(path string) (*config.Config, error) {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrKindStructural, "ConfigUnreadable", err)
	}
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrKindStructural, "ConfigInvalid", err)
	}
	return &cfg, nil
}

func loadGenesis(dataDir string) (*genesisSpec, ed25519.PrivateKey, error) {
	keyHex, err := os.ReadFile(filepath.Join(dataDir, validatorKeyFile))
	if err != nil {
		return nil, nil, core.WrapError(core.ErrKindResource, "ValidatorKeyMissing", err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(keyHex)))
	if err != nil {
		return nil, nil, core.WrapError(core.ErrKindStructural, "ValidatorKeyCorrupt", err)
	}
	priv := ed25519.PrivateKey(keyBytes)

	raw, err := os.ReadFile(filepath.Join(dataDir, genesisFile))
	if err != nil {
		return nil, nil, core.WrapError(core.ErrKindResource, "GenesisMissing", err)
	}
	var gs genesisSpec
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, nil, core.WrapError(core.ErrKindStructural, "GenesisCorrupt", err)
	}
	return &gs, priv, nil
}

func buildGenesisBlock(gs *genesisSpec) (*core.Block, core.Address, error) {
	proposer := core.Address{}
	if gs.Proposer != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(gs.Proposer, "0x"))
		if err != nil {
			return nil, proposer, core.WrapError(core.ErrKindStructural, "BadProposerHex", err)
		}
		proposer = core.BytesToAddress(b)
	}
	baseFee, ok := new(big.Int).SetString(gs.BaseFeeWei, 10)
	if !ok {
		baseFee = big.NewInt(1)
	}
	header := &core.BlockHeader{
		Height:        0,
		TimestampMS:   gs.Timestamp,
		Proposer:      proposer,
		BaseFeePerGas: baseFee,
		GasLimit:      gs.GasLimit,
		BlueWork:      new(big.Int),
	}
	if gs.ExtraData != "" {
		header.VRFOutput = []byte(gs.ExtraData)
	}
	return &core.Block{Header: header}, proposer, nil
}

func allocFromGenesis(gs *genesisSpec) map[core.Address]*big.Int {
	out := make(map[core.Address]*big.Int, len(gs.Alloc))
	for addrHex, weiDec := range gs.Alloc {
		b, err := hex.DecodeString(strings.TrimPrefix(addrHex, "0x"))
		if err != nil {
			continue
		}
		wei, ok := new(big.Int).SetString(weiDec, 10)
		if !ok {
			continue
		}
		out[core.BytesToAddress(b)] = wei
	}
	return out
}

func runNode(cmd *cobra.Command, configPath string) error {
	cfg, err := loadNodeConfig(configPath)
	if err != nil {
		return err
	}

	logger := logrus.StandardLogger()
	if lv, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
		logger.SetLevel(lv)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	gs, privKey, err := loadGenesis(dataDir)
	if err != nil {
		return err
	}
	genesisBlock, proposer, err := buildGenesisBlock(gs)
	if err != nil {
		return err
	}

	ledCfg := core.LedgerConfig{
		WALPath:      filepath.Join(dataDir, "ledger.wal"),
		SnapshotPath: filepath.Join(dataDir, "ledger.snap"),
		GenesisBlock: genesisBlock,
		GenesisAlloc: allocFromGenesis(gs),
	}
	ledger, err := core.NewLedger(ledCfg)
	if err != nil {
		return core.WrapError(core.ErrKindResource, "LedgerOpenFailed", err)
	}

	netCfg := core.Config{
		ListenAddr:     cfg.Network.ListenAddr,
		BootstrapPeers: cfg.Network.BootstrapPeers,
		DiscoveryTag:   cfg.Network.DiscoveryTag,
	}
	node, err := core.NewNode(netCfg)
	if err != nil {
		return core.WrapError(core.ErrKindResource, "P2PStartFailed", err)
	}
	nodeAdapter := &core.NodeAdapter{Node: node}
	peerMgr := core.NewPeerManagement(node)

	pubKey := privKey.Public().(ed25519.PublicKey)
	authority := &core.SoloAuthority{
		Algo:      core.AlgoEd25519,
		PublicKey: []byte(pubKey),
		PrivKey:   privKey,
		Address:   proposer,
	}

	params := core.ConsensusParams{
		K:             cfg.Consensus.K,
		MaxParents:    cfg.Consensus.MaxParents,
		FinalityDepth: uint64(cfg.Consensus.FinalityDepth),
		BlockTimeMS:   cfg.Consensus.BlockTimeMS,
		PruningWindow: uint64(cfg.Consensus.PruningWindow),
	}

	mempool := core.NewMempool(core.MempoolConfig{
		ChainID:           uint64(cfg.Network.ChainID),
		MaxSize:           cfg.Mempool.MaxSize,
		MaxPerAccount:     cfg.Mempool.MaxPerAccount,
		TTL:               time.Duration(cfg.Mempool.TTLSeconds) * time.Second,
		MaxBytes:          cfg.Mempool.MaxBytes,
		MaxTxBytes:        cfg.Mempool.MaxTxBytes,
		MaxFutureNonces:   cfg.Mempool.MaxFutureNonces,
		ReplacementFactor: cfg.Mempool.ReplacementFactor,
		MinGasPrice:       weiOrZero(cfg.Mempool.MinGasPriceWei),
		BlockGasLimit:     cfg.Mempool.BlockGasLimit,
	}, ledger)

	consensus, err := core.NewConsensus(logger, ledger, nodeAdapter, authority, mempool, authority, params, genesisBlock)
	if err != nil {
		return core.WrapError(core.ErrKindConsensus, "ConsensusInitFailed", err)
	}

	sequencer := core.NewSequencer(core.SequencerConfig{
		ChainID:        uint64(cfg.Network.ChainID),
		BlockGasLimit:  cfg.Mempool.BlockGasLimit,
		BlockTimeMS:    cfg.Consensus.BlockTimeMS,
		InitialBaseFee: weiOrZero(gs.BaseFeeWei),
		KeyAlgo:        core.AlgoEd25519,
	}, ledger, consensus, mempool, proposer, privKey)

	repl := core.NewReplicator(&core.ReplicationConfig{
		MaxConcurrent: 8,
		Fanout:        8,
	}, logger, ledger, peerMgr)

	rpc := core.NewRPCServer(logger, uint64(cfg.Network.ChainID), ledger, consensus, mempool, node, uint64(cfg.VM.MaxGasPerBlock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node.ListenAndServe()
	repl.Start()
	consensus.Start(ctx)

	rpc.SetSyncing(true)
	go func() {
		_ = repl.Synchronize(ctx)
		rpc.SetSyncing(false)
	}()

	blockInterval := time.Duration(cfg.Consensus.BlockTimeMS) * time.Millisecond
	if blockInterval <= 0 {
		blockInterval = 2 * time.Second
	}
	go sequencer.Run(ctx, blockInterval, repl)

	go func() {
		addr := cfg.RPC.ListenAddr
		if addr == "" {
			addr = "127.0.0.1:8545"
		}
		logger.Infof("rpc listening on %s", addr)
		if err := rpc.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("rpc server stopped")
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "node started, proposer %s\n", proposer.Hex())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	_ = rpc.Close()
	repl.Stop()
	_ = node.Close()
	_ = ledger.Close()
	return nil
}

func weiOrZero(dec string) *big.Int {
	if dec == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

//---------------------------------------------------------------------
// status
//---------------------------------------------------------------------

func statusCmd() *cobra.Command {
	var rpcAddr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "query a running node's RPC endpoint for chain status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			height, err := rpcCall(rpcAddr, "eth_blockNumber")
			if err != nil {
				return core.WrapError(core.ErrKindResource, "RPCUnreachable", err)
			}
			peers, _ := rpcCall(rpcAddr, "net_peerCount")
			dag, _ := rpcCall(rpcAddr, "node_getDagStats")
			fmt.Fprintf(cmd.OutOrStdout(), "height: %v\npeers: %v\ndag: %v\n", height, peers, dag)
			return nil
		},
	}
	cmd.Flags().StringVar(&rpcAddr, "rpc", "http://127.0.0.1:8545/", "node JSON-RPC endpoint")
	return cmd
}

func rpcCall(addr, method string) (interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(addr, "application/json", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Result interface{} `json:"result"`
		Error  interface{} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc error: %v", out.Error)
	}
	return out.Result, nil
}
