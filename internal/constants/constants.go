package constants

import (
	"fmt"
	"time"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// Redis keys
const (
	RedisKeyRunOncePrefix = "runonce:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelExecutions = "executions:all"
	PubSubChannelFailures   = "executions:failed"
)

// Limits
const (
	MaxRecentExecutions = 200
	RunOnceTTL          = 2 * time.Minute
)

// Execution timing
const (
	FallbackDelay         = 3 * time.Second
	SignatureMaxAge       = 5 * time.Minute
	PriorityFeeTimeout    = 2 * time.Second
	JitoBundleChunkSize   = 3
	DefaultJitoFee        = uint64(200000)
	PriorityFeeMultiplier = 5
)

// Gas defaults for EVM execution
const (
	ThresholdGasBuffer     = 1.2
	ThresholdDefaultGas    = uint64(10_000_000)
	RawKeyGasBuffer        = 1.1
	RawKeyDefaultGasLimit  = uint64(1_000_000)
	RebalanceQuoteSlippage = 0.01
	SolverSwapSlippage     = 1.0
)

// Amounts
const (
	BaseDecimals          = 6
	USDCDecimals          = 6
	MinRebalanceBaseUnits = 1_000_000
)

// Shared program and contract addresses
const (
	Multicall3Address = "0xcA11bde05977b3631167028862bE2a173976CA11"
	SolanaUSDCMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	JupiterProgramID  = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

// Jito block-engine relays and tip accounts
var (
	JitoEndpoints = []string{
		"https://mainnet.block-engine.jito.wtf/api/v1/bundles",
		"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
		"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
		"https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
		"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
	}

	JitoTipAccounts = []string{
		"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
		"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
		"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
		"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
		"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
		"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
		"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
		"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	}
)

// Deployment holds the per-environment protocol addresses.
type Deployment struct {
	Vaults             map[models.ChainID]string
	Stablecoins        map[models.ChainID]string
	SvmPoolProgram     string
	OwnerEVM           string
	OwnerSolana        string
	RebalancingSigner  string
	SolanaStablecoin   string
	StablecoinDecimals map[models.ChainID]int
}

var stablecoinDecimals = map[models.ChainID]int{
	models.ChainBase:      6,
	models.ChainOptimism:  6,
	models.ChainArbitrum:  6,
	models.ChainBSC:       18,
	models.ChainAvalanche: 6,
	models.ChainEthereum:  6,
	models.ChainSonic:     6,
	models.ChainPolygon:   6,
	models.ChainSolana:    6,
}

var devStablecoins = map[models.ChainID]string{
	models.ChainBase:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	models.ChainOptimism:  "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
	models.ChainArbitrum:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	models.ChainBSC:       "0x55d398326f99059fF775485246999027B3197955",
	models.ChainAvalanche: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
	models.ChainEthereum:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	models.ChainSonic:     "0x29219dd400f2Bf60E5a23d13Be72B486D4038894",
	models.ChainPolygon:   "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
	models.ChainSolana:    SolanaUSDCMint,
}

var stagingStablecoins = map[models.ChainID]string{
	models.ChainBase:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	models.ChainOptimism:  "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
	models.ChainArbitrum:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	models.ChainBSC:       "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d",
	models.ChainAvalanche: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
	models.ChainEthereum:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	models.ChainSonic:     "0x29219dd400f2Bf60E5a23d13Be72B486D4038894",
	models.ChainPolygon:   "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359",
	models.ChainSolana:    SolanaUSDCMint,
}

var deployments = map[models.Environment]Deployment{
	models.EnvDev: {
		Vaults: map[models.ChainID]string{
			models.ChainBase:      "0x05167A214DBC6EBB561dABe07d78e542B1C372B2",
			models.ChainOptimism:  "0x3008e2B07E90b68108E4B2326856125f6Ef05535",
			models.ChainArbitrum:  "0xB0C54E20c45D79013876DBD69EC4bec260f24F83",
			models.ChainBSC:       "0x87D1Fc6EC47823593bc32108dA795A74C65d520B",
			models.ChainAvalanche: "0xD3eDbBaAE3A37b00Ea569aea91a63bbc25589189",
			models.ChainEthereum:  "0xD92243Cd4A97CC71E4B8b447D7Ad243EBdb31fc0",
			models.ChainSonic:     "0x9A24A2841d6fd518822C632e8b746f4c15A803f9",
			models.ChainPolygon:   "0xA3372621d29e65fb1853BbeF2D78f63db135A2c2",
		},
		Stablecoins:        devStablecoins,
		SvmPoolProgram:     "12sAiwLbrNJoL9pZCw9cfyK2GYv69Nh3gvPHSywEpfoZ",
		OwnerEVM:           "0x5CC11Ef1DE86c5E00259a463Ac3F3AE1A0fA2909",
		OwnerSolana:        "7Lw8XGW5r2xRv2yZgMChonNPLE9mPoq1AjhXZw5Qrkbp",
		RebalancingSigner:  "0x8123268745b06abd40ec28afb346d8992345df87",
		SolanaStablecoin:   SolanaUSDCMint,
		StablecoinDecimals: stablecoinDecimals,
	},
	models.EnvStaging: {
		Vaults: map[models.ChainID]string{
			models.ChainBase:      "0x862915858D2a5271F421c5D86096725F1551D3ba",
			models.ChainOptimism:  "0x74501B8EA784300C1f2330c704A36d01c16Fa676",
			models.ChainArbitrum:  "0xB8C75a235257123bBA47D8F4f1c77eC8740Ba423",
			models.ChainBSC:       "0xe2ae7327cBC79aBCe7956B68Dc0D74aba3C93892",
			models.ChainAvalanche: "0xea5834d87C3C9c12c2453114FF52e59DBc05b820",
			models.ChainEthereum:  "0x5B246B77A398E50d1647D85A6cfD2D6B8B57485f",
			models.ChainSonic:     "0xB820A29D82aD13b4B2aD8BF77ae586A13caa00DA",
			models.ChainPolygon:   "0xc1e979934e3920d869e19f7d81aE309da9A5e5e1",
		},
		Stablecoins:        stagingStablecoins,
		SvmPoolProgram:     "A4pTmd31houG4UwNcZLVMUTjiQ9kYEf78TfKy8mVgDCR",
		OwnerEVM:           "0x5CC11Ef1DE86c5E00259a463Ac3F3AE1A0fA2909",
		OwnerSolana:        "C7uBcCgpTqAVYqJWuyir9AD1f72G3c1LLrfKWpDxZ4fL",
		RebalancingSigner:  "0x30489947DF9E37D0d3a9f09B9f278461caafDE73",
		SolanaStablecoin:   SolanaUSDCMint,
		StablecoinDecimals: stablecoinDecimals,
	},
}

// DeploymentFor returns the address book for env.
func DeploymentFor(env models.Environment) (Deployment, error) {
	d, ok := deployments[env]
	if !ok {
		return Deployment{}, fmt.Errorf("no deployment for environment %q", env)
	}
	return d, nil
}

func (d Deployment) Vault(chain models.ChainID) (string, error) {
	v, ok := d.Vaults[chain]
	if !ok {
		return "", fmt.Errorf("no vault deployed on chain %d", chain)
	}
	return v, nil
}

func (d Deployment) Stablecoin(chain models.ChainID) (string, error) {
	s, ok := d.Stablecoins[chain]
	if !ok {
		return "", fmt.Errorf("no stablecoin configured for chain %d", chain)
	}
	return s, nil
}

// Decimals returns the stablecoin decimals for chain, defaulting to 6.
func (d Deployment) Decimals(chain models.ChainID) int {
	if n, ok := d.StablecoinDecimals[chain]; ok {
		return n
	}
	return USDCDecimals
}
