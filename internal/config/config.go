package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// defaultRPCURLs are public endpoints used when RPC_URLS_<CHAIN> is unset.
var defaultRPCURLs = map[models.ChainID]string{
	models.ChainEthereum:  "https://eth.llamarpc.com",
	models.ChainOptimism:  "https://mainnet.optimism.io",
	models.ChainBSC:       "https://bsc-dataseed.binance.org",
	models.ChainPolygon:   "https://polygon-rpc.com",
	models.ChainSonic:     "https://rpc.soniclabs.com",
	models.ChainBase:      "https://mainnet.base.org",
	models.ChainArbitrum:  "https://arb1.arbitrum.io/rpc",
	models.ChainAvalanche: "https://api.avax.network/ext/bc/C/rpc",
	models.ChainSolana:    "https://api.mainnet-beta.solana.com",
}

type Config struct {
	Env models.Environment

	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	// RPC settings, per chain in failover order
	RPCURLs      map[models.ChainID][]string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Orchestrator keys
	EvmPrivateKey    string
	SolanaPrivateKey string

	// Quote providers
	IntentsAPIURL  string
	IntentsAPIKey  string
	JupiterBaseURL string
	JupiterAPIKey  string
	HeliusRPCURL   string

	// Jito
	UseJito            bool
	JitoEndpoints      []string
	JitoFeeRPCURL      string
	JitoSimulationURLs []string

	// Redis settings
	RedisAddr string

	// ClickHouse settings; an empty address disables the audit log
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Solver and rebalancing
	VerifyConcurrency int
	TopHolders        map[models.ChainID]string
	GasBuffer         float64
	DefaultGasLimit   uint64
	FallbackDelay     time.Duration
	RunOnceTTL        time.Duration
}

func Load() *Config {
	return &Config{
		Env: models.Environment(strings.ToLower(getEnv("ENV", string(models.EnvDev)))),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// RPC
		RPCURLs:      loadRPCURLs(),
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 200*time.Millisecond),

		// Keys
		EvmPrivateKey:    getEnv("ORCHESTRATOR_EVM_PRIVATE_KEY", ""),
		SolanaPrivateKey: getEnv("ORCHESTRATOR_SOLANA_PRIVATE_KEY", ""),

		// Quotes
		IntentsAPIURL:  getEnv("INTENTS_API_URL", ""),
		IntentsAPIKey:  getEnv("INTENTS_API_KEY", ""),
		JupiterBaseURL: getEnv("JUPITER_BASE_URL", ""),
		JupiterAPIKey:  getEnv("JUPITER_API_KEY", ""),
		HeliusRPCURL:   getEnv("HELIUS_RPC_URL", ""),

		// Jito
		UseJito:            getBoolEnv("USE_JITO", true),
		JitoEndpoints:      getListEnv("JITO_ENDPOINTS", constants.JitoEndpoints),
		JitoFeeRPCURL:      getEnv("JITO_FEE_RPC_URL", ""),
		JitoSimulationURLs: getListEnv("JITO_SIMULATION_URLS", nil),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solver"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Solver
		VerifyConcurrency: getIntEnv("VERIFY_CONCURRENCY", 16),
		TopHolders:        loadTopHolders(),
		GasBuffer:         getFloatEnv("GAS_BUFFER", constants.RawKeyGasBuffer),
		DefaultGasLimit:   uint64(getIntEnv("DEFAULT_GAS_LIMIT", int(constants.RawKeyDefaultGasLimit))),
		FallbackDelay:     getDurationEnv("FALLBACK_DELAY", constants.FallbackDelay),
		RunOnceTTL:        getDurationEnv("RUN_ONCE_TTL", constants.RunOnceTTL),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []error
	if _, err := models.ParseEnvironment(string(c.Env)); err != nil {
		problems = append(problems, err)
	}
	if strings.TrimSpace(c.APIAddr) == "" {
		problems = append(problems, errors.New("API_ADDR is required"))
	}
	for _, chain := range models.SupportedChains {
		if len(c.RPCURLs[chain]) == 0 {
			problems = append(problems, fmt.Errorf("no RPC URLs for %s", chain.Name()))
		}
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.MaxRetries < 0 {
		problems = append(problems, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.GasBuffer < 1 {
		problems = append(problems, errors.New("GAS_BUFFER must be at least 1"))
	}
	if c.VerifyConcurrency <= 0 {
		problems = append(problems, errors.New("VERIFY_CONCURRENCY must be positive"))
	}
	for chain, holder := range c.TopHolders {
		if !strings.HasPrefix(holder, "0x") || len(holder) != 42 {
			problems = append(problems, fmt.Errorf("TOP_HOLDER_%s is not an EVM address", strings.ToUpper(chain.Name())))
		}
	}
	return errors.Join(problems...)
}

// RequireSigner reports whether the orchestrator keys needed to sign are set.
func (c *Config) RequireSigner() error {
	if strings.TrimSpace(c.EvmPrivateKey) == "" {
		return errors.New("ORCHESTRATOR_EVM_PRIVATE_KEY is required")
	}
	return nil
}

// loadRPCURLs reads RPC_URLS_<CHAIN> (comma-separated) for every chain.
func loadRPCURLs() map[models.ChainID][]string {
	out := make(map[models.ChainID][]string, len(models.SupportedChains))
	for _, chain := range models.SupportedChains {
		key := "RPC_URLS_" + strings.ToUpper(chain.Name())
		var def []string
		if u, ok := defaultRPCURLs[chain]; ok {
			def = []string{u}
		}
		out[chain] = getListEnv(key, def)
	}
	return out
}

// loadTopHolders reads TOP_HOLDER_<CHAIN> for the EVM chains.
func loadTopHolders() map[models.ChainID]string {
	out := make(map[models.ChainID]string)
	for _, chain := range models.SupportedChains {
		if chain.IsSolana() {
			continue
		}
		if v := getEnv("TOP_HOLDER_"+strings.ToUpper(chain.Name()), ""); v != "" {
			out[chain] = v
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
