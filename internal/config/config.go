package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment overrides.
const (
	EnvConfigDir = "W3CONNECT_CONFIG_DIR"
	EnvLogLevel  = "W3CONNECT_LOG_LEVEL"
	EnvChainID   = "W3CONNECT_CHAIN_ID"
	EnvCatalog   = "W3CONNECT_CATALOG_FILE"

	configFile = "config.json"
)

// Load reads config from dir (or creates defaults). dir defaults to
// $W3CONNECT_CONFIG_DIR, then ~/.w3connect. Environment overrides are applied
// last and never saved unless the caller calls Save.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvConfigDir)
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3connect")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.configDir = dir

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Validate checks values that would otherwise fail deep inside a flow.
func (c *Config) Validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("invalid chain_id %d", c.ChainID)
	}
	switch c.ChainFamily {
	case "evm", "solana":
	default:
		return fmt.Errorf("invalid chain_family %q (want evm or solana)", c.ChainFamily)
	}
	if c.RetryDelayMS < 0 {
		return fmt.Errorf("invalid retry_delay_ms %d", c.RetryDelayMS)
	}
	if c.Bech32Prefix == "" || c.Bech32Prefix != strings.ToLower(c.Bech32Prefix) {
		return fmt.Errorf("invalid bech32_prefix %q", c.Bech32Prefix)
	}
	return nil
}

// RetryDelay returns the quirk retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// AddQuirkPeer adds a peer name that gets one sign retry after a rejection.
func (c *Config) AddQuirkPeer(name string) error {
	if slices.ContainsFunc(c.QuirkPeers, func(p string) bool { return strings.EqualFold(p, name) }) {
		return fmt.Errorf("quirk peer %q already configured", name)
	}
	c.QuirkPeers = append(c.QuirkPeers, name)
	return nil
}

// RemoveQuirkPeer removes a quirk peer name.
func (c *Config) RemoveQuirkPeer(name string) error {
	idx := slices.IndexFunc(c.QuirkPeers, func(p string) bool { return strings.EqualFold(p, name) })
	if idx == -1 {
		return fmt.Errorf("quirk peer %q not configured", name)
	}
	c.QuirkPeers = slices.Delete(c.QuirkPeers, idx, idx+1)
	return nil
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// CatalogPath resolves CatalogFile relative to the config dir.
func (c *Config) CatalogPath() string {
	if c.CatalogFile == "" || filepath.IsAbs(c.CatalogFile) {
		return c.CatalogFile
	}
	return filepath.Join(c.configDir, c.CatalogFile)
}

// --- helpers ---

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvCatalog); v != "" {
		c.CatalogFile = v
	}
	if v := os.Getenv(EnvChainID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvChainID, err)
		}
		c.ChainID = id
	}
	return nil
}

func defaults(dir string) *Config {
	return &Config{
		ChainID:         DefaultChainID,
		ChainFamily:     DefaultFamily,
		DomainName:      DefaultDomainName,
		Action:          DefaultAction,
		PrimaryType:     DefaultPrimaryType,
		Bech32Prefix:    DefaultBech32Prefix,
		AuxPrefixes:     slices.Clone(DefaultAuxPrefixes),
		RetryDelayMS:    DefaultRetryDelayMS,
		QuirkPeers:      slices.Clone(DefaultQuirkPeers),
		CallbackScheme:  DefaultCallbackScheme,
		KeychainService: DefaultKeychain,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		configDir:       dir,
	}
}
