package svmpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

// RPC is the subset of Solana JSON-RPC the pool needs. *rpc.Pool satisfies it.
type RPC interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.TokenAmount, error)
	GetLatestBlockhash(ctx context.Context, commitment ...string) (solana.Hash, error)
}

type PoolConfig struct {
	Addresses  *Addresses
	Stablecoin solana.PublicKey
	RPC        RPC
	Logger     *logrus.Logger
}

// Pool reads and builds transactions against the Solana vault program.
type Pool struct {
	addrs      *Addresses
	stablecoin solana.PublicKey
	rpc        RPC
	logger     *logrus.Logger
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Addresses == nil {
		return nil, fmt.Errorf("pool addresses are required")
	}
	if cfg.RPC == nil {
		return nil, fmt.Errorf("pool rpc is required")
	}
	if cfg.Stablecoin.IsZero() {
		return nil, fmt.Errorf("stablecoin not set")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Pool{
		addrs:      cfg.Addresses,
		stablecoin: cfg.Stablecoin,
		rpc:        cfg.RPC,
		logger:     logger,
	}, nil
}

func (p *Pool) Addresses() *Addresses        { return p.addrs }
func (p *Pool) Stablecoin() solana.PublicKey { return p.stablecoin }

func (p *Pool) VaultAddress() (solana.PublicKey, error) { return p.addrs.Vault() }

// GetOrder returns the decoded order account, or nil when it does not exist.
func (p *Pool) GetOrder(ctx context.Context, orderHash [32]byte) (*OrderAccount, error) {
	orderAddr, err := p.addrs.Order(orderHash)
	if err != nil {
		return nil, err
	}

	data, err := p.rpc.GetAccountInfo(ctx, orderAddr)
	if err != nil {
		return nil, errs.ChainRead("Failed to get order", err)
	}
	if data == nil {
		p.logger.WithField("order", orderAddr.String()).Debug("order account not found")
		return nil, nil
	}

	order, err := DecodeOrder(data)
	if err != nil {
		return nil, errs.ChainRead("Failed to get order", err)
	}
	return order, nil
}

func (p *Pool) GetOrderStatus(ctx context.Context, orderHash [32]byte) (models.OrderStatus, error) {
	order, err := p.GetOrder(ctx, orderHash)
	if err != nil {
		return models.OrderNonexistant, errs.ChainRead("Failed to get order status", err)
	}
	if order == nil {
		return models.OrderNonexistant, nil
	}
	return models.OrderStatusFromByte(order.Status), nil
}

// GetAsset returns the pool's fee accounting, or nil when the asset account
// has not been initialized.
func (p *Pool) GetAsset(ctx context.Context) (*AssetAccount, error) {
	assetAddr, err := p.addrs.Asset()
	if err != nil {
		return nil, err
	}

	data, err := p.rpc.GetAccountInfo(ctx, assetAddr)
	if err != nil {
		return nil, errs.ChainRead("Failed to get asset state", err)
	}
	if data == nil {
		return nil, nil
	}

	asset, err := DecodeAsset(data)
	if err != nil {
		return nil, errs.ChainRead("Failed to get asset state", err)
	}
	return asset, nil
}

// GetStablecoinBalance returns the vault's stablecoin ATA balance in base units.
func (p *Pool) GetStablecoinBalance(ctx context.Context) (*big.Int, error) {
	vault, err := p.addrs.Vault()
	if err != nil {
		return nil, err
	}
	ata, err := p.addrs.ATA(vault, p.stablecoin)
	if err != nil {
		return nil, err
	}

	bal, err := p.rpc.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		return nil, errs.ChainRead("Failed to get stable coin balance", err)
	}
	amount, err := decimals.Parse(bal.Amount)
	if err != nil {
		return nil, errs.ChainRead("Failed to get stable coin balance", err)
	}
	return amount, nil
}

// GetAvailableLiquidity is the vault balance minus the unclaimed base, LP
// and protocol fees, floored at zero.
func (p *Pool) GetAvailableLiquidity(ctx context.Context) (*big.Int, error) {
	asset, err := p.GetAsset(ctx)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errs.ChainRead("Asset threshold not found", nil)
	}

	balance, err := p.GetStablecoinBalance(ctx)
	if err != nil {
		return nil, err
	}

	unclaimed := new(big.Int).SetUint64(asset.UnclaimedBaseFee)
	unclaimed.Add(unclaimed, new(big.Int).SetUint64(asset.UnclaimedLPFee))
	unclaimed.Add(unclaimed, new(big.Int).SetUint64(asset.UnclaimedProtocolFee))

	available := new(big.Int).Sub(balance, unclaimed)
	if available.Sign() < 0 {
		p.logger.WithFields(logrus.Fields{
			"balance":   balance.String(),
			"unclaimed": unclaimed.String(),
		}).Warn("unclaimed fees exceed vault balance")
		available.SetInt64(0)
	}
	return available, nil
}

func (p *Pool) newTx(ctx context.Context, payer solana.PublicKey, ixs ...solana.Instruction) (*solana.Transaction, error) {
	blockhash, err := p.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, errs.ChainRead("failed to get latest blockhash", err)
	}
	return solanaix.NewVersionedTx(ixs, blockhash, payer)
}

// GetFillOrderTx builds an unsigned fill_order transaction paid by the orchestrator.
func (p *Pool) GetFillOrderTx(ctx context.Context, params FillOrderParams) (*solana.Transaction, error) {
	ix, err := p.FillOrderInstruction(params)
	if err != nil {
		return nil, err
	}
	return p.newTx(ctx, params.Orchestrator, ix)
}

// GetTransferUsdcTx moves amount of the pool stablecoin from the orchestrator
// to receiverHex, creating the receiver's ATA first when it is missing.
func (p *Pool) GetTransferUsdcTx(ctx context.Context, amount *big.Int, receiverHex string, orchestrator solana.PublicKey) (*solana.Transaction, error) {
	receiver, err := address.HexToPublicKey(receiverHex)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	value, err := bigToU64(amount, "amount")
	if err != nil {
		return nil, err
	}
	receiverATA, err := p.addrs.ATA(receiver, p.stablecoin)
	if err != nil {
		return nil, err
	}
	orchestratorATA, err := p.addrs.ATA(orchestrator, p.stablecoin)
	if err != nil {
		return nil, err
	}

	var ixs []solana.Instruction
	data, err := p.rpc.GetAccountInfo(ctx, receiverATA)
	switch {
	case err != nil:
		p.logger.WithError(err).WithField("ata", receiverATA.String()).Warn("failed to check receiver ATA, skipping creation")
	case data == nil:
		ixs = append(ixs, solanaix.NewCreateAssociatedTokenAccountIx(orchestrator, receiverATA, receiver, p.stablecoin))
	}
	ixs = append(ixs, solanaix.NewTransferCheckedIx(orchestratorATA, p.stablecoin, receiverATA, orchestrator, value, 6))

	return p.newTx(ctx, orchestrator, ixs...)
}

// GetFillOrderTokenTransferTx forwards the swapped tokenOut to the receiver.
// The orchestrator's current tokenOut balance is recorded as the pre-swap
// balance; a failed lookup is treated as zero.
func (p *Pool) GetFillOrderTokenTransferTx(ctx context.Context, order models.Order, orchestrator solana.PublicKey) (*solana.Transaction, error) {
	tokenOut, err := address.HexToPublicKey(order.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("tokenOut: %w", err)
	}
	ata, err := p.addrs.ATA(orchestrator, tokenOut)
	if err != nil {
		return nil, err
	}

	var previous uint64
	bal, err := p.rpc.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		p.logger.WithError(err).WithField("ata", ata.String()).Debug("no previous tokenOut balance")
	} else if n, perr := u64Field(bal.Amount, "previousBalance"); perr == nil {
		previous = n
	}

	ix, err := p.FillOrderTokenTransferInstruction(order, orchestrator, previous)
	if err != nil {
		return nil, err
	}
	return p.newTx(ctx, orchestrator, ix)
}

func (p *Pool) GetRevertOrderTx(ctx context.Context, order models.Order, orderHash [32]byte, orchestrator solana.PublicKey) (*solana.Transaction, error) {
	ix, err := p.RevertOrderInstruction(order, orderHash, orchestrator)
	if err != nil {
		return nil, err
	}
	return p.newTx(ctx, orchestrator, ix)
}

func (p *Pool) GetRemoveBridgeLiquidityTx(ctx context.Context, amount *big.Int, orchestrator solana.PublicKey) (*solana.Transaction, error) {
	value, err := bigToU64(amount, "amount")
	if err != nil {
		return nil, err
	}
	ix, err := p.RemoveBridgeLiquidityInstruction(value, orchestrator)
	if err != nil {
		return nil, err
	}
	return p.newTx(ctx, orchestrator, ix)
}

// VerifyOrder checks that the order recorded on-chain under orderHash carries
// exactly the given parameters.
func (p *Pool) VerifyOrder(ctx context.Context, order models.Order, orderHash [32]byte) error {
	onchain, err := p.GetOrder(ctx, orderHash)
	if err != nil || onchain == nil {
		return errs.ChainRead("Failed to get svm order", err)
	}

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"amountIn", fmt.Sprint(onchain.AmountIn), canonicalInt(order.AmountIn)},
		{"fee", fmt.Sprint(onchain.Fee), canonicalInt(order.Fee)},
		{"minAmountOut", onchain.MinAmountOut, order.MinAmountOut},
		{"trader", address.Bytes32Hex(onchain.Trader), canonicalBytes32(order.Trader)},
		{"receiver", address.Bytes32Hex(onchain.Receiver), canonicalBytes32(order.Receiver)},
		{"tokenIn", address.Bytes32Hex(onchain.TokenIn), canonicalBytes32(order.TokenIn)},
		{"tokenOut", address.Bytes32Hex(onchain.TokenOut), canonicalBytes32(order.TokenOut)},
		{"srcChainId", fmt.Sprint(onchain.SrcChainID), canonicalInt(order.SrcChainID)},
		{"destChainId", fmt.Sprint(onchain.DestChainID), canonicalInt(order.DestChainID)},
	}
	for _, c := range checks {
		if c.got != c.want {
			p.logger.WithFields(logrus.Fields{
				"field":   c.field,
				"onchain": c.got,
				"order":   c.want,
			}).Warn("svm order mismatch")
			return errs.OrderMismatch(c.field)
		}
	}
	return nil
}

func canonicalInt(s string) string {
	n, err := decimals.Parse(s)
	if err != nil {
		return s
	}
	return n.String()
}

func canonicalBytes32(s string) string {
	b, err := address.ToBytes32(s)
	if err != nil {
		return s
	}
	return address.Bytes32Hex(b)
}
