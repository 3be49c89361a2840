package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"bazaarchain/crypto"
)

// Config carries the node-level settings for bazaard. Engine behaviour that
// must stay deterministic across nodes (fee schedule, reveal windows) is
// compiled in, not configured.
type Config struct {
	DataDir        string   `toml:"DataDir"`
	NetworkName    string   `toml:"NetworkName"`
	MetricsAddress string   `toml:"MetricsAddress"`
	Environment    string   `toml:"Environment"`
	FeeTreasury    string   `toml:"FeeTreasury"`
	MinListingTier uint8    `toml:"MinListingTier"`
	PausedModules  []string `toml:"PausedModules"`
	Resolvers      []string `toml:"Resolvers"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./bzr-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "bzr-local"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9464"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

// Validate rejects settings the node cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(c.FeeTreasury) != "" {
		if _, err := crypto.DecodeAddress(c.FeeTreasury); err != nil {
			return fmt.Errorf("config: invalid FeeTreasury: %w", err)
		}
	}
	for _, module := range c.PausedModules {
		switch strings.TrimSpace(module) {
		case "market", "escrow":
		default:
			return fmt.Errorf("config: unknown module in PausedModules: %q", module)
		}
	}
	for _, resolver := range c.Resolvers {
		if _, err := crypto.DecodeAddress(resolver); err != nil {
			return fmt.Errorf("config: invalid resolver address %q: %w", resolver, err)
		}
	}
	return nil
}

// ResolverAddresses decodes the configured dispute resolvers.
func (c *Config) ResolverAddresses() ([][20]byte, error) {
	if c == nil {
		return nil, nil
	}
	out := make([][20]byte, 0, len(c.Resolvers))
	for _, resolver := range c.Resolvers {
		decoded, err := crypto.DecodeAddress(resolver)
		if err != nil {
			return nil, err
		}
		var addr [20]byte
		copy(addr[:], decoded.Bytes())
		out = append(out, addr)
	}
	return out, nil
}

// FeeTreasuryAddress decodes the configured treasury into raw bytes. A zero
// address is returned when the field is unset; callers decide whether that is
// acceptable.
func (c *Config) FeeTreasuryAddress() ([20]byte, error) {
	var out [20]byte
	if c == nil || strings.TrimSpace(c.FeeTreasury) == "" {
		return out, nil
	}
	decoded, err := crypto.DecodeAddress(c.FeeTreasury)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

// IsPaused reports whether the named module is listed in PausedModules.
func (c *Config) IsPaused(module string) bool {
	if c == nil {
		return false
	}
	for _, paused := range c.PausedModules {
		if strings.TrimSpace(paused) == module {
			return true
		}
	}
	return false
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
