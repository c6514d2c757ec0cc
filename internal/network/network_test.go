package network

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_BuiltinsValid(t *testing.T) {
	r := Default()
	all := r.All()
	require.Len(t, all, len(Builtin()))

	for _, c := range all {
		assert.Equal(t, DefaultABIVersion, c.ABIVersion, "chain %s", c.ChainID)
		assert.Equal(t, DefaultMaxBatchWidth, c.MaxBatchWidth, "chain %s", c.ChainID)
	}
	assert.Equal(t, ChainID(1), all[0].ChainID, "registration order is preserved")
}

func TestLookup(t *testing.T) {
	r := Default()

	c, err := r.Lookup(137)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", c.Name)
	assert.Equal(t, KindRPC, c.Provider)
	assert.Equal(t, 2*time.Second, c.BlockTime())
	assert.True(t, r.Supported(137))

	_, err = r.Lookup(999)
	var unsupported *UnsupportedNetworkError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, ChainID(999), unsupported.ChainID)
	assert.False(t, r.Supported(999))
}

func TestConfig_ExplorerTxURL(t *testing.T) {
	c := Config{ExplorerURL: "https://polygonscan.com/tx/{tx}#eventlog"}
	assert.Equal(t, "https://polygonscan.com/tx/0xabc#eventlog", c.ExplorerTxURL("0xabc"))

	c.ExplorerURL = "https://example.com/tx/"
	assert.Equal(t, "https://example.com/tx/0xabc", c.ExplorerTxURL("0xabc"))

	c.ExplorerURL = ""
	assert.Empty(t, c.ExplorerTxURL("0xabc"))
}

func TestConfig_Validate(t *testing.T) {
	good := Config{
		ChainID:     5,
		Provider:    KindRPC,
		Contract:    "0x4037E81D79aD0E917De012dE009ff41c740BB453",
		BlockTimeMs: 1000,
	}
	good.applyDefaults()
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chain", func(c *Config) { c.ChainID = 0 }},
		{"bad contract", func(c *Config) { c.Contract = "nope" }},
		{"unknown provider", func(c *Config) { c.Provider = "carrier-pigeon" }},
		{"ankr without blockchain", func(c *Config) { c.Provider = KindAnkr; c.Endpoint = "https://x" }},
		{"unknown abi", func(c *Config) { c.ABIVersion = "v9" }},
		{"zero batch", func(c *Config) { c.MaxBatchWidth = -1 }},
		{"zero block time", func(c *Config) { c.BlockTimeMs = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_ValidateListsABIVersions(t *testing.T) {
	c := Config{ChainID: 5, Provider: KindRPC, Contract: "0x4037E81D79aD0E917De012dE009ff41c740BB453", BlockTimeMs: 1000, ABIVersion: "v9"}
	c.applyDefaults()
	assert.ErrorContains(t, c.Validate(), "known: opensig-v0, opensig-v1")
}

func TestLoad_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := `
networks:
  - chain_id: 137
    endpoint: https://polygon.example.com
    max_batch_width: 10
  - chain_id: 31337
    name: Local
    provider: rpc
    endpoint: http://127.0.0.1:8545
    contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    creation_block: 0
    block_time_ms: 1000
    abi_version: opensig-v0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Load(path)
	require.NoError(t, err)

	polygon, err := r.Lookup(137)
	require.NoError(t, err)
	assert.Equal(t, "https://polygon.example.com", polygon.Endpoint)
	assert.Equal(t, 10, polygon.MaxBatchWidth)
	assert.Equal(t, uint64(40031474), polygon.CreationBlock, "unset fields keep built-in values")
	assert.Equal(t, "Polygon", polygon.Name)

	local, err := r.Lookup(31337)
	require.NoError(t, err)
	assert.Equal(t, "Local", local.Name)
	assert.Equal(t, ABIVersionV0, local.ABIVersion)
	assert.Equal(t, DefaultMaxBatchWidth, local.MaxBatchWidth)
	assert.Equal(t, ChainID(31337), r.All()[len(r.All())-1].ChainID)
}

func TestLoad_MissingFile(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Len(t, r.All(), len(Builtin()))
}

func TestLoad_InvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networks:\n  - name: no id\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseABI(t *testing.T) {
	for _, v := range ABIVersions() {
		parsed, err := ParseABI(v)
		require.NoError(t, err, v)
		assert.Contains(t, parsed.Events, EventName)
	}

	v1, err := ParseABI(ABIVersionV1)
	require.NoError(t, err)
	assert.Len(t, v1.Events[EventName].Inputs.NonIndexed(), 2)

	v0, err := ParseABI(ABIVersionV0)
	require.NoError(t, err)
	assert.Len(t, v0.Events[EventName].Inputs.NonIndexed(), 1)

	_, err = ParseABI("missing")
	assert.Error(t, err)
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("137")
	require.NoError(t, err)
	assert.Equal(t, ChainID(137), id)

	id, err = ParseChainID("0x89")
	require.NoError(t, err)
	assert.Equal(t, ChainID(137), id)

	_, err = ParseChainID("0")
	assert.Error(t, err)
	_, err = ParseChainID("polygon")
	assert.Error(t, err)
}
