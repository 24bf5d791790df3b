package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Backend names accepted for the state database.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

type Config struct {
	RPCAddress  string  `toml:"RPCAddress"`
	DataDir     string  `toml:"DataDir"`
	Backend     string  `toml:"Backend"`
	GenesisFile string  `toml:"GenesisFile"`
	NetworkName string  `toml:"NetworkName"`
	Environment string  `toml:"Environment"`
	RateLimit   float64 `toml:"RateLimitPerSecond"`
	RateBurst   int     `toml:"RateLimitBurst"`
	LogFile     string  `toml:"LogFile"`
	LogMaxSize  int     `toml:"LogMaxSizeMB"`
	LogBackups  int     `toml:"LogMaxBackups"`
	LogMaxAge   int     `toml:"LogMaxAgeDays"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
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

// Validate rejects configurations the daemon cannot honour.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("unsupported backend %q (want %s, %s or %s)", c.Backend, BackendMemory, BackendLevelDB, BackendBolt)
	}
	if c.Backend != BackendMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required for %s backend", c.Backend)
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must not be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RateLimitPerSecond must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "streamvault-local"
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = BackendLevelDB
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./streamvault-data",
		Backend:     BackendLevelDB,
		GenesisFile: "",
		NetworkName: "streamvault-local",
		RateLimit:   50,
		RateBurst:   100,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
