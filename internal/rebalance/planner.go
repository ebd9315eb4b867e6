package rebalance

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/runonce"
)

// EvmVault is the part of *evmvault.Vault used for snapshots and payloads.
type EvmVault interface {
	StablecoinBalance(ctx context.Context) (*big.Int, error)
	AvailableAssets(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
	PrepRebalanceLiquidity(amount *big.Int, dst models.ChainID, target, data, value string) (*models.EvmArbitraryCall, error)
}

type EvmVaults func(ctx context.Context, chain models.ChainID) (EvmVault, error)

// SolanaPool is the part of *svmpool.Pool used for snapshots and payloads.
type SolanaPool interface {
	GetStablecoinBalance(ctx context.Context) (*big.Int, error)
	GetAvailableLiquidity(ctx context.Context) (*big.Int, error)
	VaultAddress() (solana.PublicKey, error)
	GetRemoveBridgeLiquidityTx(ctx context.Context, amount *big.Int, orchestrator solana.PublicKey) (*solana.Transaction, error)
}

// MessageSigner produces EIP-191 signatures. signer.Signer satisfies it.
type MessageSigner interface {
	SignPersonalMessage(ctx context.Context, msg []byte) (string, error)
}

type PlannerConfig struct {
	Env        models.Environment
	Deployment constants.Deployment
	EvmVaults  EvmVaults
	SolanaPool SolanaPool
	Signer     MessageSigner
	// TopHolders maps a chain to the address whose staked balance must stay
	// withdrawable.
	TopHolders map[models.ChainID]string
	// Chains defaults to models.SupportedChains.
	Chains  []models.ChainID
	RunOnce *runonce.Group
	Now     func() time.Time
	Logger  *logrus.Logger
}

// Planner snapshots every vault, computes the rebalancing plan and signs it.
type Planner struct {
	env        models.Environment
	dep        constants.Deployment
	evmVaults  EvmVaults
	solanaPool SolanaPool
	signer     MessageSigner
	topHolders map[models.ChainID]string
	chains     []models.ChainID
	once       *runonce.Group
	now        func() time.Time
	logger     *logrus.Logger
}

func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("rebalance: signer is required")
	}
	if cfg.EvmVaults == nil {
		return nil, fmt.Errorf("rebalance: evm vaults are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = models.SupportedChains
	}
	if cfg.RunOnce == nil {
		cfg.RunOnce = runonce.New(nil, cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Planner{
		env:        cfg.Env,
		dep:        cfg.Deployment,
		evmVaults:  cfg.EvmVaults,
		solanaPool: cfg.SolanaPool,
		signer:     cfg.Signer,
		topHolders: cfg.TopHolders,
		chains:     cfg.Chains,
		once:       cfg.RunOnce,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}, nil
}

// Snapshots reads every configured chain in parallel, in chain order. Any
// failed read fails the whole set.
func (p *Planner) Snapshots(ctx context.Context) ([]models.VaultSnapshot, error) {
	out := make([]models.VaultSnapshot, len(p.chains))
	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range p.chains {
		g.Go(func() error {
			snap, err := p.snapshot(gctx, chain)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", chain.Name(), err)
			}
			out[i] = *snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Planner) snapshot(ctx context.Context, chain models.ChainID) (*models.VaultSnapshot, error) {
	stablecoin, err := p.dep.Stablecoin(chain)
	if err != nil {
		return nil, err
	}
	snap := &models.VaultSnapshot{
		Network:             chain,
		Stablecoin:          stablecoin,
		Decimals:            p.dep.Decimals(chain),
		HighestStakedAmount: new(big.Int),
	}

	if chain.IsSolana() {
		if p.solanaPool == nil {
			return nil, errs.Validation("Solana pool not configured")
		}
		if snap.VaultBalance, err = p.solanaPool.GetStablecoinBalance(ctx); err != nil {
			return nil, err
		}
		if snap.AvailableBalance, err = p.solanaPool.GetAvailableLiquidity(ctx); err != nil {
			return nil, err
		}
		return snap, nil
	}

	vault, err := p.evmVaults(ctx, chain)
	if err != nil {
		return nil, err
	}
	if snap.VaultBalance, err = vault.StablecoinBalance(ctx); err != nil {
		return nil, err
	}
	if snap.AvailableBalance, err = vault.AvailableAssets(ctx); err != nil {
		return nil, err
	}
	if holder := p.topHolders[chain]; holder != "" {
		if !common.IsHexAddress(holder) {
			return nil, errs.Validation(fmt.Sprintf("invalid top holder %q for %s", holder, chain.Name()))
		}
		if snap.HighestStakedAmount, err = vault.BalanceOf(ctx, common.HexToAddress(holder)); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// BuildInstructions returns the current plan signed with the orchestrator's
// EVM key over its exact JSON encoding.
func (p *Planner) BuildInstructions(ctx context.Context, ratios []float64) (*models.SignedInstructionSet, error) {
	snaps, err := p.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := Compute(snaps, ratios)
	if err != nil {
		return nil, err
	}

	// the timestamp is shared by every signer of this round, then dropped
	const tsKey = "getTimestamp"
	ts, err := runonce.Run(ctx, p.once, tsKey, func(context.Context) (int64, error) {
		return p.now().UnixMilli(), nil
	})
	p.once.Forget(tsKey)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	data := models.RebalancingInstructions{
		Actions:                plan.Actions,
		FinalAvailableBalances: plan.FinalAvailableBalances,
		Timestamp:              ts,
		Env:                    p.env,
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	sig, err := p.signer.SignPersonalMessage(ctx, raw)
	if err != nil {
		return nil, errs.Execution("Failed to sign rebalancing instructions", err)
	}

	p.logger.WithFields(logrus.Fields{
		"env":       p.env,
		"vaults":    len(snaps),
		"actions":   len(plan.Actions),
		"timestamp": ts,
	}).Info("rebalancing instructions signed")
	return &models.SignedInstructionSet{
		Data:            data,
		DataStringified: string(raw),
		Signature:       sig,
	}, nil
}
