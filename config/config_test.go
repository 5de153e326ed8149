package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "./loanledger-data", cfg.DataDir)
	require.Equal(t, "loanledger", cfg.Service)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, uint64(100), cfg.Debt.FeeBps)
	require.NotNil(t, cfg.Pauses)

	// The default file persists and loads back identically.
	_, err = os.Stat(path)
	require.NoError(t, err)
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesFile(t *testing.T) {
	path := writeConfig(t, `
DataDir = "/var/lib/ledger"
Service = "ledger-eu"
Environment = "production"

[debt]
FeeBps = 50
ModuleAddress = "0x1000000000000000000000000000000000000001"
BurnAddress = "0x000000000000000000000000000000000000dEaD"

[collateral]
ModuleAddress = "0x1000000000000000000000000000000000000002"
AuctionAddress = "0x1000000000000000000000000000000000000003"

[pauses]
debt = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/ledger", cfg.DataDir)
	require.Equal(t, uint64(50), cfg.Debt.FeeBps)
	require.True(t, cfg.Pauses["debt"])
	require.False(t, cfg.Pauses["collateral"])
	require.Equal(t, "0x1000000000000000000000000000000000000003", cfg.Collateral.AuctionAddress)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, `
[debt]
FeeBps = 101
`))
	require.ErrorContains(t, err, "FeeBps")

	_, err = Load(writeConfig(t, `
[debt]
BurnAddress = "not-an-address"
`))
	require.ErrorContains(t, err, "not-an-address")
}
