// Package app wires the solver, rebalancer and execution layer from a
// config.Config. Every binary under cmd/ builds its components through it.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/cache"
	"github.com/aman-zulfiqar/genius-solver/internal/config"
	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/flags"
	"github.com/aman-zulfiqar/genius-solver/internal/jito"
	"github.com/aman-zulfiqar/genius-solver/internal/jupiter"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
	"github.com/aman-zulfiqar/genius-solver/internal/rebalance"
	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/runonce"
	"github.com/aman-zulfiqar/genius-solver/internal/signer"
	"github.com/aman-zulfiqar/genius-solver/internal/solver"
	"github.com/aman-zulfiqar/genius-solver/internal/storage"
	"github.com/aman-zulfiqar/genius-solver/internal/svmpool"
	"github.com/aman-zulfiqar/genius-solver/internal/wallet"
)

// App holds the wired components. Fields that need optional configuration
// (keys, quote providers, ClickHouse) are nil when it is missing.
type App struct {
	Config     *config.Config
	Deployment constants.Deployment
	Logger     *logrus.Logger

	Registry   *rpc.Registry
	Redis      *redis.Client
	RunOnce    *runonce.Group
	Switches   *flags.Store
	Feed       *cache.PubSubManager
	Executions storage.ExecutionStore

	SolanaPool *svmpool.Pool
	Signer     *signer.RawKey
	Quoter     quote.Quoter
	BestQuoter quote.Quoter

	Pipeline  *solver.Pipeline
	Reverter  *solver.Reverter
	Planner   *rebalance.Planner
	Executor  *rebalance.Executor
	Execution *execution.Handler

	vaultsMu sync.Mutex
	vaults   map[models.ChainID]*evmvault.Vault
	closers  []func() error
}

// New connects to Redis (required) and ClickHouse (optional) and builds
// every component the configuration allows.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dep, err := constants.DeploymentFor(cfg.Env)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Deployment: dep,
		Logger:     logger,
		vaults:     make(map[models.ChainID]*evmvault.Vault),
	}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	clientCfg := rpc.ClientConfig{
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	}
	a.Registry = rpc.NewRegistry(cfg.RPCURLs, clientCfg)
	a.closers = append(a.closers, a.Registry.Close)

	if err := a.initStores(ctx); err != nil {
		return nil, err
	}

	solPool, err := a.Registry.Pool(models.ChainSolana)
	if err != nil {
		return nil, fmt.Errorf("solana rpc: %w", err)
	}
	programID, err := solana.PublicKeyFromBase58(dep.SvmPoolProgram)
	if err != nil {
		return nil, fmt.Errorf("solana pool program: %w", err)
	}
	stablecoin, err := solana.PublicKeyFromBase58(dep.SolanaStablecoin)
	if err != nil {
		return nil, fmt.Errorf("solana stablecoin: %w", err)
	}
	a.SolanaPool, err = svmpool.NewPool(svmpool.PoolConfig{
		Addresses:  svmpool.NewAddresses(programID),
		Stablecoin: stablecoin,
		RPC:        solPool,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	if err := a.initSigner(solPool, clientCfg); err != nil {
		return nil, err
	}
	if err := a.initQuoters(solPool, clientCfg); err != nil {
		return nil, err
	}
	if err := a.initSolver(); err != nil {
		return nil, err
	}
	if err := a.initRebalance(); err != nil {
		return nil, err
	}
	if err := a.initExecution(); err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	cfg := a.Config
	a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: 0})
	a.closers = append(a.closers, a.Redis.Close)
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store, err := cache.NewRunOnceStore(a.Redis, cfg.RunOnceTTL)
	if err != nil {
		return err
	}
	a.RunOnce = runonce.New(store, a.Logger, runonce.WithTTL(cfg.RunOnceTTL))

	if a.Switches, err = flags.NewStore(a.Redis); err != nil {
		return err
	}
	a.Feed = cache.NewPubSubManager(a.Redis, a.Logger)

	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   a.Logger,
		})
		if err != nil {
			return err
		}
		a.Executions = ch
		a.closers = append(a.closers, ch.Close)
	}
	return nil
}

func (a *App) initSigner(solPool *rpc.Pool, clientCfg rpc.ClientConfig) error {
	cfg := a.Config
	if cfg.EvmPrivateKey == "" {
		a.Logger.Warn("no orchestrator key configured, signing endpoints disabled")
		return nil
	}

	var w *wallet.Wallet
	if cfg.SolanaPrivateKey != "" {
		var err error
		w, err = wallet.NewWallet(wallet.WalletConfig{
			PrivateKey: cfg.SolanaPrivateKey,
			RPC:        solPool,
			Logger:     a.Logger,
		})
		if err != nil {
			return err
		}
	}

	var bundler signer.Bundler
	if cfg.UseJito && w != nil {
		c, err := jito.New(jito.Config{
			BundleEndpoints: cfg.JitoEndpoints,
			FeeRPCURL:       cfg.JitoFeeRPCURL,
			SimulationURLs:  cfg.JitoSimulationURLs,
			Blockhash:       solPool,
			Timeout:         clientCfg.Timeout,
			Logger:          a.Logger,
		})
		if err != nil {
			return err
		}
		bundler = c
	}

	s, err := signer.NewRawKey(signer.RawKeyConfig{
		EvmPrivateKey: cfg.EvmPrivateKey,
		Wallet:        w,
		Bundler:       bundler,
		Logger:        a.Logger,
	})
	if err != nil {
		return err
	}
	a.Signer = s
	a.Logger.WithField("evm_address", s.EvmAddress().Hex()).Info("orchestrator signer loaded")
	return nil
}

func (a *App) initQuoters(solPool *rpc.Pool, clientCfg rpc.ClientConfig) error {
	cfg := a.Config
	var quoters []quote.Quoter
	if cfg.IntentsAPIURL != "" {
		quoters = append(quoters, quote.NewIntentsClient(cfg.IntentsAPIURL, cfg.IntentsAPIKey))
	}
	if cfg.JupiterBaseURL != "" {
		fees := solPool
		if cfg.HeliusRPCURL != "" {
			p, err := rpc.NewPool([]string{cfg.HeliusRPCURL}, clientCfg)
			if err != nil {
				return fmt.Errorf("helius rpc: %w", err)
			}
			fees = p
		}
		client := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey)
		quoters = append(quoters, quote.NewJupiterQuoter(client, jupiter.NewTxBuilder(client, fees, solPool, a.Logger)))
	}
	if len(quoters) == 0 {
		a.Logger.Warn("no quote providers configured, swaps and rebalancing disabled")
		return nil
	}
	multi := quote.NewMulti(a.Logger, quoters...)
	a.Quoter = quote.RaceQuoter(multi)
	a.BestQuoter = quote.BestQuoter(multi)
	return nil
}

func (a *App) orchestrator() solana.PublicKey {
	if a.Signer == nil {
		return solana.PublicKey{}
	}
	pk, err := a.Signer.SolanaPublicKey()
	if err != nil {
		return solana.PublicKey{}
	}
	return pk
}

func (a *App) initSolver() error {
	errHandler := solver.LogErrorHandler{Logger: a.Logger}
	cfg := solver.PipelineConfig{
		EvmVaults:         a.solverVaults,
		SolanaPool:        a.SolanaPool,
		EvmSolver:         solver.NewEvmSolver(a.solverVaults, errHandler, a.Logger),
		Gate:              a.Switches,
		VerifyConcurrency: a.Config.VerifyConcurrency,
		Logger:            a.Logger,
	}

	if orch := a.orchestrator(); !orch.IsZero() {
		sol, err := solver.NewSolanaSolver(solver.SolanaConfig{
			Pool:         a.SolanaPool,
			Orchestrator: orch,
			Quoter:       a.Quoter,
			Deployment:   a.Deployment,
			RunOnce:      a.RunOnce,
			Errors:       errHandler,
			Logger:       a.Logger,
		})
		if err != nil {
			return err
		}
		cfg.SolanaSolver = sol
	}

	p, err := solver.NewPipeline(cfg)
	if err != nil {
		return err
	}
	a.Pipeline = p
	if a.Signer != nil {
		a.Reverter = solver.NewReverter(a.SolanaPool, a.Signer, a.Logger)
	}
	return nil
}

func (a *App) initRebalance() error {
	if a.Signer != nil {
		p, err := rebalance.NewPlanner(rebalance.PlannerConfig{
			Env:        a.Config.Env,
			Deployment: a.Deployment,
			EvmVaults:  a.rebalanceVaults,
			SolanaPool: a.SolanaPool,
			Signer:     a.Signer,
			TopHolders: a.Config.TopHolders,
			// in process only: a stored timestamp would outlive the round
			RunOnce: runonce.New(nil, a.Logger),
			Logger:  a.Logger,
		})
		if err != nil {
			return err
		}
		a.Planner = p
	}

	if a.BestQuoter != nil {
		e, err := rebalance.NewExecutor(rebalance.ExecutorConfig{
			Env:          a.Config.Env,
			Deployment:   a.Deployment,
			EvmVaults:    a.rebalanceVaults,
			SolanaPool:   a.SolanaPool,
			Quoter:       a.BestQuoter,
			Orchestrator: a.orchestrator(),
			Logger:       a.Logger,
		})
		if err != nil {
			return err
		}
		a.Executor = e
	}
	return nil
}

func (a *App) initExecution() error {
	if a.Signer == nil {
		return nil
	}
	evm, err := execution.NewEvmExecutor(execution.EvmConfig{
		Signer:          a.Signer,
		Backends:        execution.RegistryBackends(a.Registry),
		RunOnce:         a.RunOnce,
		GasBuffer:       a.Config.GasBuffer,
		DefaultGasLimit: a.Config.DefaultGasLimit,
		Logger:          a.Logger,
	})
	if err != nil {
		return err
	}

	var sol *execution.SolanaExecutor
	if !a.orchestrator().IsZero() {
		if sol, err = execution.NewSolanaExecutor(execution.SolanaConfig{
			Signer:        a.Signer,
			FallbackDelay: a.Config.FallbackDelay,
			Logger:        a.Logger,
		}); err != nil {
			return err
		}
	}

	a.Execution = execution.NewHandler(execution.HandlerConfig{
		Evm:    evm,
		Solana: sol,
		Store:  a.Executions,
		Feed:   a.Feed,
		Logger: a.Logger,
	})
	return nil
}

// Vault returns the cached vault of an EVM chain, dialing it on first use.
func (a *App) Vault(ctx context.Context, chain models.ChainID) (*evmvault.Vault, error) {
	a.vaultsMu.Lock()
	defer a.vaultsMu.Unlock()
	if v, ok := a.vaults[chain]; ok {
		return v, nil
	}
	v, err := evmvault.Open(ctx, a.Registry, a.Deployment, chain, a.Logger)
	if err != nil {
		return nil, err
	}
	a.vaults[chain] = v
	return v, nil
}

func (a *App) solverVaults(ctx context.Context, chain models.ChainID) (solver.EvmVault, error) {
	v, err := a.Vault(ctx, chain)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *App) rebalanceVaults(ctx context.Context, chain models.ChainID) (rebalance.EvmVault, error) {
	v, err := a.Vault(ctx, chain)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
