package solver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// EvmSolver fills every order of a batch with a single fillOrderBatch call
// on the destination vault.
type EvmSolver struct {
	vaults EvmVaults
	errors ErrorHandler
	logger *logrus.Logger
}

func NewEvmSolver(vaults EvmVaults, errors ErrorHandler, logger *logrus.Logger) *EvmSolver {
	if logger == nil {
		logger = logrus.New()
	}
	if errors == nil {
		errors = LogErrorHandler{Logger: logger}
	}
	return &EvmSolver{vaults: vaults, errors: errors, logger: logger}
}

func (s *EvmSolver) FillOrderBatch(ctx context.Context, chain models.ChainID, orders []models.OrderWithCalls) models.ChainPayload {
	call, err := s.prepare(ctx, chain, orders)
	if err != nil {
		return models.ChainPayload{ChainID: chain, Err: s.errors.Handle(chain, err)}
	}
	s.logger.WithFields(logrus.Fields{
		"chain":  chain.Name(),
		"orders": len(orders),
		"vault":  call.To,
	}).Info("prepared evm fill batch")
	return models.ChainPayload{ChainID: chain, Evm: call}
}

func (s *EvmSolver) prepare(ctx context.Context, chain models.ChainID, orders []models.OrderWithCalls) (*models.EvmArbitraryCall, error) {
	vault, err := s.vaults(ctx, chain)
	if err != nil {
		return nil, err
	}
	params := make([]evmvault.FillOrderParams, len(orders))
	for i, o := range orders {
		p := evmvault.FillOrderParams{Order: o.Order}
		if o.SwapCall != nil {
			p.SwapTarget, p.SwapData = o.SwapCall.To, o.SwapCall.Data
		}
		if o.ArbitraryCall != nil {
			p.CallTarget, p.CallData = o.ArbitraryCall.To, o.ArbitraryCall.Data
		}
		params[i] = p
	}
	return vault.PrepFillOrderBatch(params)
}
