// Package solver turns batches of vault orders into executable per-chain
// fill payloads.
package solver

import (
	"context"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/svmpool"
)

// Solver builds the fill payload for a batch of orders that all settle on
// the same destination chain.
type Solver interface {
	FillOrderBatch(ctx context.Context, chain models.ChainID, orders []models.OrderWithCalls) models.ChainPayload
}

// EvmVault is the part of *evmvault.Vault the solver reads and encodes with.
type EvmVault interface {
	OrderStatusBatch(ctx context.Context, hashes [][32]byte) ([]models.OrderStatus, error)
	PrepFillOrderBatch(params []evmvault.FillOrderParams) (*models.EvmArbitraryCall, error)
}

// EvmVaults resolves the vault of an EVM chain.
type EvmVaults func(ctx context.Context, chain models.ChainID) (EvmVault, error)

// SolanaPool is the part of *svmpool.Pool the solver uses.
type SolanaPool interface {
	Stablecoin() solana.PublicKey
	GetOrderStatus(ctx context.Context, orderHash [32]byte) (models.OrderStatus, error)
	VerifyOrder(ctx context.Context, order models.Order, orderHash [32]byte) error
	GetFillOrderTx(ctx context.Context, params svmpool.FillOrderParams) (*solana.Transaction, error)
	GetTransferUsdcTx(ctx context.Context, amount *big.Int, receiverHex string, orchestrator solana.PublicKey) (*solana.Transaction, error)
	GetFillOrderTokenTransferTx(ctx context.Context, order models.Order, orchestrator solana.PublicKey) (*solana.Transaction, error)
}

// ErrorHandler turns a per-chain or per-order failure into the structured
// result placed in the batch output.
type ErrorHandler interface {
	Handle(chain models.ChainID, err error) *models.ErrorResult
}

// LogErrorHandler logs the failure and returns it as an ErrorResult.
type LogErrorHandler struct {
	Logger *logrus.Logger
}

func (h LogErrorHandler) Handle(chain models.ChainID, err error) *models.ErrorResult {
	if h.Logger != nil {
		h.Logger.WithError(err).WithField("chain", chain.Name()).Error("solver error")
	}
	return models.NewErrorResult(err)
}
