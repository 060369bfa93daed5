package config

// Package config provides a reusable loader for Synnergy configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"synnergy-network/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a Synnergy node. It mirrors
// the structure of the YAML files under cmd/config.
type Config struct {
	// DataDir is the directory holding this node's WAL, snapshot, and
	// genesis files (data_dir in the environment/config key list).
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// AddressModeDefault picks the key scheme a fresh wallet/account
	// derives when no mode is specified: "secp256k1" or "ed25519".
	AddressModeDefault string `mapstructure:"address_mode_default" json:"address_mode_default"`

	Network struct {
		ID             string   `mapstructure:"id" json:"id"`
		ChainID        int      `mapstructure:"chain_id" json:"chain_id"`
		MaxPeers       int      `mapstructure:"max_peers" json:"max_peers"`
		GenesisFile    string   `mapstructure:"genesis_file" json:"genesis_file"`
		RPCEnabled     bool     `mapstructure:"rpc_enabled" json:"rpc_enabled"`
		P2PPort        int      `mapstructure:"p2p_port" json:"p2p_port"`
		ListenAddr     string   `mapstructure:"p2p_listen" json:"p2p_listen"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	Consensus struct {
		K                  int   `mapstructure:"k" json:"k"`
		MaxParents         int   `mapstructure:"max_parents" json:"max_parents"`
		FinalityDepth      int   `mapstructure:"finality_depth" json:"finality_depth"`
		PruningWindow      int   `mapstructure:"pruning_window" json:"pruning_window"`
		BlockTimeMS        int64 `mapstructure:"block_time_ms" json:"block_time_ms"`
		MaxClockDriftMS    int64 `mapstructure:"max_clock_drift_ms" json:"max_clock_drift_ms"`
		ValidatorsRequired int   `mapstructure:"validators_required" json:"validators_required"`
	} `mapstructure:"consensus" json:"consensus"`

	VM struct {
		MaxGasPerBlock int  `mapstructure:"max_gas_per_block" json:"max_gas_per_block"`
		OpcodeDebug    bool `mapstructure:"opcode_debug" json:"opcode_debug"`
	} `mapstructure:"vm" json:"vm"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	RPC struct {
		ListenAddr string `mapstructure:"rpc_listen" json:"rpc_listen"`
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"rpc" json:"rpc"`

	Mempool struct {
		MaxSize           int     `mapstructure:"max_size" json:"max_size"`
		MaxPerAccount     int     `mapstructure:"max_per_account" json:"max_per_account"`
		TTLSeconds        int64   `mapstructure:"ttl_seconds" json:"ttl_seconds"`
		MaxBytes          int64   `mapstructure:"mempool_max_bytes" json:"mempool_max_bytes"`
		MaxTxBytes        int64   `mapstructure:"max_tx_bytes" json:"max_tx_bytes"`
		MaxFutureNonces   uint64  `mapstructure:"max_future_nonces" json:"max_future_nonces"`
		ReplacementFactor float64 `mapstructure:"replacement_factor" json:"replacement_factor"`
		MinGasPriceWei    string  `mapstructure:"min_gas_price" json:"min_gas_price"`
		BlockGasLimit     uint64  `mapstructure:"block_gas_limit" json:"block_gas_limit"`
	} `mapstructure:"mempool" json:"mempool"`

	// Genesis holds the parameters that seed chain identity and initial
	// allocation. synnergy-node's init and start commands read neither
	// these fields nor Network.GenesisFile; they write and read
	// genesis.json in the data directory.
	Genesis struct {
		ChainID       uint64            `mapstructure:"chain_id" json:"chain_id"`
		Timestamp     int64             `mapstructure:"timestamp" json:"timestamp"`
		BaseFeeWei    string            `mapstructure:"base_fee_wei" json:"base_fee_wei"`
		GasLimit      uint64            `mapstructure:"gas_limit" json:"gas_limit"`
		Alloc         map[string]string `mapstructure:"alloc" json:"alloc"`
		ExtraData     string            `mapstructure:"extra_data" json:"extra_data"`
	} `mapstructure:"genesis" json:"genesis"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up matching process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SYNN_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SYNN_ENV", ""))
}
