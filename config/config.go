// Package config loads the daemon configuration from TOML and validates it
// before any subsystem starts.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"bondvault/crypto"
)

// Config captures the runtime configuration for the vault daemon.
type Config struct {
	// ChainID identifies the deployment's chain for domain separation.
	ChainID uint64 `toml:"ChainID"`
	// Deployment is the bech32 protocol address signatures are bound to; it
	// also serves as the custody treasury for reserve and collateral.
	Deployment string `toml:"Deployment"`
	// DataDir holds the LevelDB ledger.
	DataDir string `toml:"DataDir"`
	// ListenAddress is the HTTP bind address for the RPC surface.
	ListenAddress string `toml:"ListenAddress"`
	// Environment tags log lines (e.g. dev, staging, prod).
	Environment string `toml:"Environment"`

	RateLimit RateLimit `toml:"ratelimit"`
	Log       Log       `toml:"log"`
}

// RateLimit bounds the RPC request rate per client.
type RateLimit struct {
	// RequestsPerSecond refills the limiter bucket; zero disables limiting.
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	// Burst is the bucket size; defaults to RequestsPerSecond when zero.
	Burst int `toml:"Burst"`
}

// Log configures file rotation for the daemon's JSON log output. An empty
// File logs to stdout.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID required")
	}
	deployment := strings.TrimSpace(c.Deployment)
	if deployment == "" {
		return fmt.Errorf("config: Deployment address required")
	}
	addr, err := crypto.DecodeAddress(deployment)
	if err != nil {
		return fmt.Errorf("config: Deployment: %w", err)
	}
	if addr.IsZero() {
		return fmt.Errorf("config: Deployment must not be the zero address")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("config: RequestsPerSecond must not be negative")
	}
	return nil
}

// DeploymentAddress returns the decoded custody address.
func (c *Config) DeploymentAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(c.Deployment))
}
