// Package config loads the quantmeshd service configuration from a YAML
// file, applying defaults for anything the operator left unset and honoring
// a small set of environment overrides for secrets that should not live in
// the file (API keys, RPC endpoints).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that parses from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for the quantmeshd service.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Bus          BusConfig          `yaml:"bus"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	MarketData   MarketDataConfig   `yaml:"market_data"`
	Chain        ChainConfig        `yaml:"chain"`
	Facilitator  FacilitatorConfig  `yaml:"facilitator"`
	Model        ModelConfig        `yaml:"model"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// BusConfig tunes the message bus.
type BusConfig struct {
	MaxHistory int `yaml:"max_history"`
}

// OrchestratorConfig tunes composite operation behavior.
type OrchestratorConfig struct {
	CallTimeout Duration `yaml:"call_timeout"`
}

// MarketDataConfig points at the external market data API and its cache.
type MarketDataConfig struct {
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	Timeout   Duration `yaml:"timeout"`
	RedisAddr string   `yaml:"redis_addr"` // empty disables the price cache
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// ChainConfig points at the EVM RPC endpoint used for on-chain balances.
// When RPCURL is set, portfolio snapshots are composed from chain state
// (native balance plus the listed ERC-20 tokens) instead of the market data
// portfolio endpoint.
type ChainConfig struct {
	RPCURL       string        `yaml:"rpc_url"` // empty disables on-chain portfolio reads
	NativeSymbol string        `yaml:"native_symbol"`
	Tokens       []TokenConfig `yaml:"tokens"`
}

// TokenConfig is one ERC-20 token tracked for on-chain portfolios.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Contract string `yaml:"contract"`
	Decimals int32  `yaml:"decimals"`
}

// FacilitatorConfig points at the settlement facilitator.
type FacilitatorConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
}

// ModelConfig selects the AI provider used for analysis narrative.
type ModelConfig struct {
	Provider string `yaml:"provider"` // "anthropic", "openai" or "" (disabled)
	Name     string `yaml:"name"`     // provider-specific model identifier
}

// Load parses the YAML file at path and applies defaults and environment
// overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Bus.MaxHistory <= 0 {
		c.Bus.MaxHistory = 1000
	}
	if c.Orchestrator.CallTimeout <= 0 {
		c.Orchestrator.CallTimeout = Duration(30 * time.Second)
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = Duration(10 * time.Second)
	}
	if c.MarketData.CacheTTL <= 0 {
		c.MarketData.CacheTTL = Duration(30 * time.Second)
	}
	if c.Facilitator.Timeout <= 0 {
		c.Facilitator.Timeout = Duration(15 * time.Second)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("QUANTMESH_MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("QUANTMESH_FACILITATOR_API_KEY"); v != "" {
		c.Facilitator.APIKey = v
	}
	if v := os.Getenv("QUANTMESH_RPC_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("QUANTMESH_REDIS_ADDR"); v != "" {
		c.MarketData.RedisAddr = v
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.MarketData.BaseURL == "" {
		return errors.New("market_data.base_url is required")
	}
	if c.Facilitator.BaseURL == "" {
		return errors.New("facilitator.base_url is required")
	}
	switch c.Model.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	return nil
}
