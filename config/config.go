package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"loanledger/native/debt"
)

// Config is the runtime configuration for a loan ledger node.
type Config struct {
	DataDir     string           `toml:"DataDir"`
	Service     string           `toml:"Service"`
	Environment string           `toml:"Environment"`
	Debt        DebtConfig       `toml:"debt"`
	Collateral  CollateralConfig `toml:"collateral"`
	// Pauses disables individual modules administratively.
	Pauses map[string]bool `toml:"pauses"`
}

// DebtConfig configures the debt engine.
type DebtConfig struct {
	// FeeBps is the payment fee in basis points, capped at the engine limit.
	FeeBps        uint64 `toml:"FeeBps"`
	ModuleAddress string `toml:"ModuleAddress"`
	// BurnAddress receives charged fees.
	BurnAddress string `toml:"BurnAddress"`
}

// CollateralConfig configures the collateral engine.
type CollateralConfig struct {
	ModuleAddress  string `toml:"ModuleAddress"`
	AuctionAddress string `toml:"AuctionAddress"`
}

func (c *Config) addresses() map[string]string {
	return map[string]string{
		"debt.ModuleAddress":        c.Debt.ModuleAddress,
		"debt.BurnAddress":          c.Debt.BurnAddress,
		"collateral.ModuleAddress":  c.Collateral.ModuleAddress,
		"collateral.AuctionAddress": c.Collateral.AuctionAddress,
	}
}

// Load reads the configuration at path, writing defaults when the file does
// not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./loanledger-data"
	}
	if c.Service == "" {
		c.Service = "loanledger"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Pauses == nil {
		c.Pauses = map[string]bool{}
	}
}

// Validate rejects configurations the engines would refuse at runtime.
func (c *Config) Validate() error {
	if c.Debt.FeeBps > debt.MaxFeeBps {
		return fmt.Errorf("debt: FeeBps %d above cap %d", c.Debt.FeeBps, debt.MaxFeeBps)
	}
	for field, addr := range c.addresses() {
		if addr == "" {
			continue
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: %q is not a hex address", field, addr)
		}
	}
	return nil
}

// Address parses a validated hex address field.
func Address(s string) common.Address {
	return common.HexToAddress(s)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Debt:   DebtConfig{FeeBps: debt.MaxFeeBps},
		Pauses: map[string]bool{},
	}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
