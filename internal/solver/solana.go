package solver

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
	"github.com/aman-zulfiqar/genius-solver/internal/runonce"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
	"github.com/aman-zulfiqar/genius-solver/internal/svmpool"
)

type SolanaConfig struct {
	Pool         SolanaPool
	Orchestrator solana.PublicKey
	// Quoter swaps the stablecoin into tokenOut. Without one, orders asking
	// for another token are settled in the stablecoin.
	Quoter     quote.Quoter
	Deployment constants.Deployment
	RunOnce    *runonce.Group
	Errors     ErrorHandler
	Logger     *logrus.Logger
}

// SolanaSolver builds one transaction set per order: the fill, an optional
// Jupiter swap into tokenOut and the final transfer to the receiver. The
// plain stablecoin transfer doubles as the fallback.
type SolanaSolver struct {
	pool         SolanaPool
	orchestrator solana.PublicKey
	quoter       quote.Quoter
	dep          constants.Deployment
	once         *runonce.Group
	errors       ErrorHandler
	logger       *logrus.Logger
}

func NewSolanaSolver(cfg SolanaConfig) (*SolanaSolver, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("solver: solana pool is required")
	}
	if cfg.Orchestrator.IsZero() {
		return nil, fmt.Errorf("solver: orchestrator key is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RunOnce == nil {
		cfg.RunOnce = runonce.New(nil, cfg.Logger)
	}
	if cfg.Errors == nil {
		cfg.Errors = LogErrorHandler{Logger: cfg.Logger}
	}
	return &SolanaSolver{
		pool:         cfg.Pool,
		orchestrator: cfg.Orchestrator,
		quoter:       cfg.Quoter,
		dep:          cfg.Deployment,
		once:         cfg.RunOnce,
		errors:       cfg.Errors,
		logger:       cfg.Logger,
	}, nil
}

// FillOrderBatch builds the sets sequentially. A failed order yields a set
// carrying only its error; the others are unaffected.
func (s *SolanaSolver) FillOrderBatch(ctx context.Context, chain models.ChainID, orders []models.OrderWithCalls) models.ChainPayload {
	sets := make([]models.SolanaTxnSet, 0, len(orders))
	for _, o := range orders {
		set, err := s.fillOrder(ctx, o.Order)
		if err != nil {
			sets = append(sets, models.SolanaTxnSet{Err: s.errors.Handle(chain, err)})
			continue
		}
		sets = append(sets, *set)
	}
	return models.ChainPayload{ChainID: chain, Solana: sets}
}

func (s *SolanaSolver) fillOrder(ctx context.Context, order models.Order) (*models.SolanaTxnSet, error) {
	// the hash commits to the order as created, before any rescaling
	hash, err := evmvault.OrderHash(order)
	if err != nil {
		return nil, errs.Validation(err.Error())
	}
	src, err := order.SrcChain()
	if err != nil {
		return nil, errs.Validation(err.Error())
	}

	local, err := s.toPoolDecimals(order, s.dep.Decimals(src))
	if err != nil {
		return nil, err
	}
	amountIn, _ := decimals.Parse(local.AmountIn)
	fee, _ := decimals.Parse(local.Fee)
	net := new(big.Int).Sub(amountIn, fee)
	if net.Sign() <= 0 {
		return nil, errs.Validation("Order fee exceeds amountIn")
	}

	log := s.logger.WithFields(logrus.Fields{
		"seed":     order.Seed,
		"tokenOut": order.TokenOut,
		"amount":   net.String(),
	})

	fillTx, err := runonce.Run(ctx, s.once, "getFillOrderTx:"+order.Seed, func(ctx context.Context) (string, error) {
		tx, err := s.pool.GetFillOrderTx(ctx, svmpool.FillOrderParams{
			Order:        local,
			OrderHash:    hash,
			Orchestrator: s.orchestrator,
		})
		if err != nil {
			return "", err
		}
		return solanaix.Serialize(tx)
	})
	if err != nil {
		return nil, errs.Execution("Failed to build fill order transaction", err)
	}

	stablecoin := s.pool.Stablecoin()
	tokenOut, err := address.HexToPublicKey(order.TokenOut)
	if err != nil {
		log.WithError(err).Warn("invalid tokenOut, settling in stablecoin")
		tokenOut = stablecoin
	}
	receiver, err := address.HexToPublicKey(order.Receiver)
	if err != nil {
		return nil, errs.Validation(fmt.Sprintf("invalid receiver %q", order.Receiver))
	}

	swapTxs, err := runonce.Run(ctx, s.once, "getSwapTx:"+order.Seed, func(ctx context.Context) ([]string, error) {
		return s.swapTxs(ctx, tokenOut, receiver, net, log), nil
	})
	if err != nil {
		return nil, err
	}

	transferUsdc, err := runonce.Run(ctx, s.once, "getTransferUsdcTxn:"+order.Seed, func(ctx context.Context) (string, error) {
		tx, err := s.pool.GetTransferUsdcTx(ctx, net, order.Receiver, s.orchestrator)
		if err != nil {
			return "", err
		}
		return solanaix.Serialize(tx)
	})
	if err != nil {
		return nil, errs.Execution("Failed to build stablecoin transfer transaction", err)
	}

	if len(swapTxs) == 0 {
		return &models.SolanaTxnSet{
			TxnsToExecute: []string{fillTx, transferUsdc},
			FallbackTxn:   transferUsdc,
		}, nil
	}

	transferToken, err := runonce.Run(ctx, s.once, "getTransferTokenTxn:"+order.Seed, func(ctx context.Context) (string, error) {
		tx, err := s.pool.GetFillOrderTokenTransferTx(ctx, local, s.orchestrator)
		if err != nil {
			return "", err
		}
		return solanaix.Serialize(tx)
	})
	if err != nil {
		return nil, errs.Execution("Failed to build token transfer transaction", err)
	}

	txns := make([]string, 0, len(swapTxs)+2)
	txns = append(txns, fillTx)
	txns = append(txns, swapTxs...)
	txns = append(txns, transferToken)
	log.WithField("txns", len(txns)).Info("prepared solana fill with swap")
	return &models.SolanaTxnSet{TxnsToExecute: txns, FallbackTxn: transferUsdc}, nil
}

// toPoolDecimals rescales amountIn and fee from the source stablecoin to the
// pool's 6 decimals.
func (s *SolanaSolver) toPoolDecimals(order models.Order, from int) (models.Order, error) {
	out := order
	for _, f := range []struct {
		name string
		val  *string
	}{{"amountIn", &out.AmountIn}, {"fee", &out.Fee}} {
		n, err := decimals.Parse(*f.val)
		if err != nil {
			return out, errs.Validation(fmt.Sprintf("invalid %s: %v", f.name, err))
		}
		conv, err := decimals.Convert(n, from, constants.USDCDecimals)
		if err != nil {
			return out, err
		}
		*f.val = conv.String()
	}
	return out, nil
}

// swapTxs returns nil when no swap is needed or no quote could be found.
func (s *SolanaSolver) swapTxs(ctx context.Context, tokenOut, receiver solana.PublicKey, amount *big.Int, log *logrus.Entry) []string {
	stablecoin := s.pool.Stablecoin()
	if strings.EqualFold(tokenOut.String(), stablecoin.String()) {
		return nil
	}
	if s.quoter == nil {
		log.Warn("no swap quoter configured, settling in stablecoin")
		return nil
	}

	resp, err := s.quoter.FetchQuote(ctx, quote.Request{
		NetworkIn:  models.ChainSolana,
		NetworkOut: models.ChainSolana,
		TokenIn:    stablecoin.String(),
		TokenOut:   tokenOut.String(),
		AmountIn:   amount.String(),
		Slippage:   constants.SolverSwapSlippage,
		From:       s.orchestrator.String(),
		Receiver:   receiver.String(),
	})
	if err != nil {
		log.WithError(err).Warn("swap quote failed, settling in stablecoin")
		return nil
	}
	if len(resp.SvmExecutionPayload) == 0 {
		return nil
	}
	log.WithFields(logrus.Fields{
		"provider":  resp.Provider,
		"amountOut": resp.AmountOut,
	}).Debug("swap quote")
	return resp.SvmExecutionPayload
}
