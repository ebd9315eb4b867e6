package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// RebalanceInstructions snapshots every vault and returns signed instructions
func (h *Handlers) RebalanceInstructions(c echo.Context) error {
	if h.Planner == nil {
		return h.unavailable(c, "rebalance planner")
	}
	var req InstructionsRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	set, err := h.Planner.BuildInstructions(ctx, req.Ratios)
	if err != nil {
		return h.fail(c, "failed to build rebalancing instructions", err)
	}
	return c.JSON(http.StatusOK, set)
}

// RebalanceExecute verifies signed instructions and builds, and optionally
// broadcasts, the payloads of one batch of actions
func (h *Handlers) RebalanceExecute(c echo.Context) error {
	if h.Rebalancer == nil {
		return h.unavailable(c, "rebalance executor")
	}
	var req RebalanceExecuteRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.Execute && h.Executor == nil {
		return h.unavailable(c, "execution")
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	payloads, err := h.Rebalancer.Execute(ctx, req.Instructions, req.Batch)
	if err != nil {
		return h.fail(c, "failed to build rebalancing payloads", err)
	}
	out := RebalanceExecuteResponse{Payloads: payloads}
	if out.Payloads == nil {
		out.Payloads = []models.ChainPayload{}
	}
	if req.Execute && len(payloads) > 0 {
		out.Outcomes = h.Executor.ExecutePayloads(ctx, execution.KindRebalance, payloads)
	}
	return c.JSON(http.StatusOK, out)
}
