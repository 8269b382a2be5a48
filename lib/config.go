package lib

import (
	"os"
	"path/filepath"

	"github.com/alecthomas/units"
)

/* This file implements the 'user controlled' configuration of each module of the engine */

const (
	// FILE NAMES in the 'data directory'
	ConfigFilePath  = "config.json"  // the file path for the engine configuration
	GenesisFilePath = "genesis.json" // the file path for the genesis dex parameters
)

// Config is the structure of the user configuration options for a batchdex node
type Config struct {
	MainConfig    // main options spanning over all modules
	RPCConfig     // rpc API options
	StoreConfig   // persistence options
	DexConfig     // settlement engine options
	MetricsConfig // telemetry options
}

// DefaultConfig() returns a Config with developer set options
func DefaultConfig() Config {
	return Config{
		MainConfig:    DefaultMainConfig(),
		RPCConfig:     DefaultRPCConfig(),
		StoreConfig:   DefaultStoreConfig(),
		DexConfig:     DefaultDexConfig(),
		MetricsConfig: DefaultMetricsConfig(),
	}
}

// MAIN CONFIG BELOW

type MainConfig struct {
	LogLevel string `json:"logLevel"` // any level includes the levels above it: debug < info < warning < error
}

// DefaultMainConfig() sets log level to 'info'
func DefaultMainConfig() MainConfig { return MainConfig{LogLevel: "info"} }

// GetLogLevel() parses the log string in the config file into a LogLevel Enum
func (m *MainConfig) GetLogLevel() int32 { return ParseLogLevel(m.LogLevel) }

// RPC CONFIG BELOW

type RPCConfig struct {
	RPCPort         string  `json:"rpcPort"`         // the port where the query rpc server is hosted
	AdminPort       string  `json:"adminPort"`       // the port where the admin rpc server is hosted
	RPCUrl          string  `json:"rpcURL"`          // the url where the rpc server is hosted
	AdminRPCUrl     string  `json:"adminRPCUrl"`     // the url where the admin rpc server is hosted
	TimeoutS        int     `json:"timeoutS"`        // the rpc request timeout in seconds
	MaxConnections  int     `json:"maxConnections"`  // the maximum number of simultaneous connections per server
	RateLimitPerSec float64 `json:"rateLimitPerSec"` // the number of requests per second allowed on the query server
	RateLimitBurst  int     `json:"rateLimitBurst"`  // the burst size of the query server rate limiter
	ClientRetries   uint64  `json:"clientRetries"`   // how many times the rpc client retries a failed call
}

// DefaultRPCConfig() sets the rpc urls to localhost and the ports to [50002-50003]
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		RPCPort:         "50002",                  // the rpc is served on localhost:50002
		AdminPort:       "50003",                  // the admin rpc is served on localhost:50003
		RPCUrl:          "http://localhost:50002", // use a local rpc by default
		AdminRPCUrl:     "http://localhost:50003", // use a local admin rpc by default
		TimeoutS:        3,                        // the rpc timeout is 3 seconds
		MaxConnections:  256,                      // 256 open connections at most
		RateLimitPerSec: 100,                      // 100 requests per second
		RateLimitBurst:  200,                      // allow bursts of 200
		ClientRetries:   3,                        // retry each client call 3 times
	}
}

// STORE CONFIG BELOW

// StoreConfig is user configurations for the key value database
type StoreConfig struct {
	DataDirPath      string `json:"dataDirPath"`      // path of the designated folder where the application stores its data
	DBName           string `json:"dbName"`           // name of the database
	InMemory         bool   `json:"inMemory"`         // non-disk database, only for testing
	ValueLogFileSize string `json:"valueLogFileSize"` // human readable size of each badger value log file (ex. 256MB)
}

// DefaultDataDirPath() is $USERHOME/.batchdex
func DefaultDataDirPath() string {
	// get the user home
	home, err := os.UserHomeDir()
	// if unable to get the user home
	if err != nil {
		panic(err)
	}
	// exit with full default data directory path
	return filepath.Join(home, ".batchdex")
}

// DefaultStoreConfig() returns the developer recommended store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataDirPath:      DefaultDataDirPath(), // use the default data dir path
		DBName:           "batchdex",           // 'batchdex' database name
		InMemory:         false,                // persist to disk, not memory
		ValueLogFileSize: "256MB",              // badger rotates value logs every 256 megabytes
	}
}

// ValueLogFileSizeBytes() parses the human readable value log size
func (s *StoreConfig) ValueLogFileSizeBytes() (int64, ErrorI) {
	if s.ValueLogFileSize == "" {
		return int64(256 * units.MiB), nil
	}
	size, err := units.ParseStrictBytes(s.ValueLogFileSize)
	if err != nil {
		return 0, NewError(CodeInvalidStoreCfg, StorageModule, err.Error())
	}
	return size, nil
}

// DEX CONFIG BELOW

// DexConfig holds the local execution options and the genesis parameters of the settlement engine
type DexConfig struct {
	Parallel            bool     `json:"parallel"`            // settle independent pairs concurrently when routing is single hop
	StrictActions       bool     `json:"strictActions"`       // reject the whole block if any single action fails
	ProofVerifier       string   `json:"proofVerifier"`       // how swap and claim proofs are checked: accept-all or commitment
	Enabled             bool     `json:"enabled"`             // genesis: is the dex accepting actions
	MaxHops             uint32   `json:"maxHops"`             // genesis: the maximum number of hops in a route
	MaxExecutionBudget  uint32   `json:"maxExecutionBudget"`  // genesis: the maximum number of routing iterations per batch
	FixedCandidates     []string `json:"fixedCandidates"`     // genesis: hex asset ids always considered as routing intermediaries
	StakingToken        string   `json:"stakingToken"`        // genesis: hex asset id used as the arbitrage numeraire
	ArbMinProfit        uint64   `json:"arbMinProfit"`        // genesis: the minimum surplus for an arbitrage to be committed
	MaxPositionsPerPair uint32   `json:"maxPositionsPerPair"` // genesis: opened positions a pair keeps before eviction, 0 is unlimited
}

// DefaultDexConfig() returns the developer recommended settlement options
func DefaultDexConfig() DexConfig {
	return DexConfig{
		Parallel:            false,        // deterministic sequential settlement
		StrictActions:       false,        // skip failing actions
		ProofVerifier:       "accept-all", // proofs are verified upstream of the engine
		Enabled:             true,         // accept actions
		MaxHops:             4,            // up to 4 hops per route
		MaxExecutionBudget:  64,           // up to 64 routing iterations per batch
		FixedCandidates:     []string{},
		ArbMinProfit:        0,
		MaxPositionsPerPair: 1_000,        // up to 1000 opened positions per pair
	}
}

// METRICS CONFIG BELOW

// MetricsConfig represents the configuration for the metrics server
type MetricsConfig struct {
	MetricsEnabled    bool   `json:"metricsEnabled"`    // if the metrics are enabled
	PrometheusAddress string `json:"prometheusAddress"` // the address of the server
}

// DefaultMetricsConfig() returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MetricsEnabled:    true,
		PrometheusAddress: "0.0.0.0:9090",
	}
}

// WriteToFile() saves the Config object to a JSON file
func (c Config) WriteToFile(filepath string) error {
	configBz, err := MarshalJSONIndent(c)
	if err != nil {
		return err
	}
	if e := os.WriteFile(filepath, configBz, os.ModePerm); e != nil {
		return ErrWriteFile(e)
	}
	return nil
}

// NewConfigFromFile() populates a Config object from a JSON file
func NewConfigFromFile(filepath string) (Config, error) {
	bz, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, ErrReadFile(err)
	}
	c := DefaultConfig()
	if err = UnmarshalJSON(bz, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
