package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("API_ADDR", "")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.EnvDev, cfg.Env)
	assert.Equal(t, ":8090", cfg.APIAddr)
	assert.Equal(t, constants.RawKeyGasBuffer, cfg.GasBuffer)
	assert.Equal(t, constants.JitoEndpoints, cfg.JitoEndpoints)
	for _, chain := range models.SupportedChains {
		assert.Len(t, cfg.RPCURLs[chain], 1, chain.Name())
	}
	assert.Empty(t, cfg.ClickHouseAddr)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENV", "Staging")
	t.Setenv("RPC_URLS_BASE", " https://a.example , ,https://b.example")
	t.Setenv("RPC_URLS_SOLANA", "https://sol.example")
	t.Setenv("TOP_HOLDER_ARBITRUM", "0x4444444444444444444444444444444444444444")
	t.Setenv("FALLBACK_DELAY", "5s")
	t.Setenv("USE_JITO", "false")
	t.Setenv("VERIFY_CONCURRENCY", "not-a-number")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.EnvStaging, cfg.Env)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RPCURLs[models.ChainBase])
	assert.Equal(t, []string{"https://sol.example"}, cfg.RPCURLs[models.ChainSolana])
	assert.Equal(t, map[models.ChainID]string{models.ChainArbitrum: "0x4444444444444444444444444444444444444444"}, cfg.TopHolders)
	assert.Equal(t, 5*time.Second, cfg.FallbackDelay)
	assert.False(t, cfg.UseJito)
	assert.Equal(t, 16, cfg.VerifyConcurrency)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Load()
	cfg.Env = "prod"
	cfg.GasBuffer = 0.5
	cfg.RPCURLs[models.ChainSonic] = nil
	cfg.TopHolders = map[models.ChainID]string{models.ChainBase: "nope"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown environment", "GAS_BUFFER", "no RPC URLs for sonic", "TOP_HOLDER_BASE"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestRequireSigner(t *testing.T) {
	cfg := Load()
	cfg.EvmPrivateKey = ""
	assert.Error(t, cfg.RequireSigner())
	cfg.EvmPrivateKey = "0xabc"
	assert.NoError(t, cfg.RequireSigner())
}
