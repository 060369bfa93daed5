package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// unmarshalYAML exercises the same viper.Unmarshal path Load uses, without
// touching the package-level AppConfig or the on-disk cmd/config search path.
func unmarshalYAML(t *testing.T, yaml string) *Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &cfg
}

func TestConfigUnmarshalsNetworkAndRPCListenKeys(t *testing.T) {
	cfg := unmarshalYAML(t, `
network:
  p2p_listen: "/ip4/0.0.0.0/tcp/30303"
  chain_id: 7
  max_peers: 25
rpc:
  rpc_listen: "127.0.0.1:8545"
  enabled: true
`)
	if cfg.Network.ListenAddr != "/ip4/0.0.0.0/tcp/30303" {
		t.Fatalf("Network.ListenAddr = %q, want the p2p_listen value", cfg.Network.ListenAddr)
	}
	if cfg.Network.ChainID != 7 || cfg.Network.MaxPeers != 25 {
		t.Fatalf("unexpected network section: %+v", cfg.Network)
	}
	if cfg.RPC.ListenAddr != "127.0.0.1:8545" {
		t.Fatalf("RPC.ListenAddr = %q, want the rpc_listen value", cfg.RPC.ListenAddr)
	}
	if !cfg.RPC.Enabled {
		t.Fatalf("expected RPC.Enabled to be true")
	}
}

func TestConfigUnmarshalsConsensusAndMempoolSections(t *testing.T) {
	cfg := unmarshalYAML(t, `
consensus:
  k: 3
  max_parents: 8
  finality_depth: 100
  pruning_window: 5000
  block_time_ms: 2000
mempool:
  mempool_max_bytes: 1048576
  replacement_factor: 0.1
  min_gas_price: "1000000000"
  block_gas_limit: 30000000
`)
	if cfg.Consensus.K != 3 || cfg.Consensus.MaxParents != 8 || cfg.Consensus.FinalityDepth != 100 ||
		cfg.Consensus.PruningWindow != 5000 || cfg.Consensus.BlockTimeMS != 2000 {
		t.Fatalf("unexpected consensus section: %+v", cfg.Consensus)
	}
	if cfg.Mempool.MaxBytes != 1048576 || cfg.Mempool.ReplacementFactor != 0.1 ||
		cfg.Mempool.MinGasPriceWei != "1000000000" || cfg.Mempool.BlockGasLimit != 30000000 {
		t.Fatalf("unexpected mempool section: %+v", cfg.Mempool)
	}
}

func TestConfigUnmarshalsTopLevelAndGenesisKeys(t *testing.T) {
	cfg := unmarshalYAML(t, `
data_dir: /var/lib/synnergy
address_mode_default: secp256k1
genesis:
  chain_id: 7
  base_fee_wei: "1"
  gas_limit: 30000000
  alloc:
    "0xabc123": "1000000000000000000"
`)
	if cfg.DataDir != "/var/lib/synnergy" {
		t.Fatalf("DataDir = %q", cfg.DataDir)
	}
	if cfg.AddressModeDefault != "secp256k1" {
		t.Fatalf("AddressModeDefault = %q", cfg.AddressModeDefault)
	}
	if cfg.Genesis.ChainID != 7 || cfg.Genesis.GasLimit != 30000000 {
		t.Fatalf("unexpected genesis section: %+v", cfg.Genesis)
	}
	if cfg.Genesis.Alloc["0xabc123"] != "1000000000000000000" {
		t.Fatalf("unexpected genesis alloc: %+v", cfg.Genesis.Alloc)
	}
}
