package server

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/solver"
)

// OrderHash returns the vault hash of an order and its revert digest
func (h *Handlers) OrderHash(c echo.Context) error {
	var req OrderRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	hash, err := evmvault.OrderHash(req.Order)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid order", map[string]any{"err": err.Error()})
	}
	digest, err := evmvault.RevertOrderDigest(req.Order)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid order", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, OrderHashResponse{
		OrderHash:    hexutil.Encode(hash[:]),
		RevertDigest: hexutil.Encode(digest[:]),
	})
}

// OrderStatuses reads every order on its source and destination chain
func (h *Handlers) OrderStatuses(c echo.Context) error {
	if h.Solver == nil {
		return h.unavailable(c, "solver")
	}
	var req OrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	items, err := h.Solver.OrderStatuses(ctx, req.Orders)
	if err != nil {
		return h.fail(c, "failed to read order statuses", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// RevertOrder signs the orchestrator authorization to cancel an order
func (h *Handlers) RevertOrder(c echo.Context) error {
	if h.Reverter == nil {
		return h.unavailable(c, "revert signer")
	}
	var req OrderRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	sig, err := h.Reverter.Sign(ctx, req.Order)
	if err != nil {
		return h.fail(c, "failed to sign revert", err)
	}
	return c.JSON(http.StatusOK, RevertResponse{Seed: req.Order.Seed, Signature: sig})
}

// Fill solves a batch of orders and optionally broadcasts the payloads
func (h *Handlers) Fill(c echo.Context) error {
	if h.Solver == nil {
		return h.unavailable(c, "solver")
	}
	var req FillRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.Execute && h.Executor == nil {
		return h.unavailable(c, "execution")
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res, err := h.Solver.Solve(ctx, req.Request)
	if err != nil {
		return h.fail(c, "failed to solve orders", err)
	}
	out := FillResponse{Payloads: res.Payloads, Rejected: res.Rejected}
	if out.Payloads == nil {
		out.Payloads = []models.ChainPayload{}
	}
	if req.Execute && len(res.Payloads) > 0 {
		out.Outcomes = h.Executor.ExecutePayloads(ctx, execution.KindFill, res.Payloads)
	}
	return c.JSON(http.StatusOK, out)
}

var _ OrderSolver = (*solver.Pipeline)(nil)
