package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/flags"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
	"github.com/aman-zulfiqar/genius-solver/internal/rebalance"
	"github.com/aman-zulfiqar/genius-solver/internal/solver"
	"github.com/aman-zulfiqar/genius-solver/internal/storage"
)

// OrderSolver is implemented by *solver.Pipeline
type OrderSolver interface {
	Solve(ctx context.Context, req solver.Request) (*solver.Result, error)
	OrderStatuses(ctx context.Context, orders []models.Order) ([]solver.OrderStatusReport, error)
}

// RevertSigner is implemented by *solver.Reverter
type RevertSigner interface {
	Sign(ctx context.Context, order models.Order) (string, error)
}

// InstructionBuilder is implemented by *rebalance.Planner
type InstructionBuilder interface {
	BuildInstructions(ctx context.Context, ratios []float64) (*models.SignedInstructionSet, error)
}

// RebalanceExecutor is implemented by *rebalance.Executor
type RebalanceExecutor interface {
	Execute(ctx context.Context, set models.SignedInstructionSet, batch rebalance.Batch) ([]models.ChainPayload, error)
}

// PayloadExecutor is implemented by *execution.Handler
type PayloadExecutor interface {
	ExecutePayloads(ctx context.Context, kind string, payloads []models.ChainPayload) []execution.Outcome
}

// SwitchStore is implemented by *flags.Store
type SwitchStore interface {
	Set(ctx context.Context, chain models.ChainID, enabled bool, reason string) (*flags.Switch, error)
	Get(ctx context.Context, chain models.ChainID) (*flags.Switch, error)
	List(ctx context.Context) ([]*flags.Switch, error)
	Delete(ctx context.Context, chain models.ChainID) error
}

// Handlers contains all dependencies for API endpoint handlers.
// Every component except Logger is optional; endpoints whose component is
// missing answer 503.
type Handlers struct {
	Solver     OrderSolver
	Reverter   RevertSigner
	Planner    InstructionBuilder
	Rebalancer RebalanceExecutor
	Executor   PayloadExecutor
	Quoter     quote.Quoter // first valid quote
	BestQuoter quote.Quoter // highest amountOut
	Switches   SwitchStore
	Executions storage.ExecutionStore
	// Checks are run by the health endpoint, keyed by dependency name
	Checks  map[string]func(ctx context.Context) error
	DevMode bool           // Enable detailed error responses in development
	Logger  *logrus.Logger // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail maps err's kind to a status code. Validation and mismatch messages
// are caller-facing; other causes are only shown in dev mode.
func (h *Handlers) fail(c echo.Context, msg string, err error) error {
	code := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindOrderMismatch:
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	case errs.KindChainRead:
		code = http.StatusBadGateway
	}
	if h.Logger != nil {
		h.Logger.WithError(err).WithField("path", c.Path()).Warn(msg)
	}
	return h.err(c, code, msg, map[string]any{"err": err.Error()})
}

func (h *Handlers) unavailable(c echo.Context, what string) error {
	return h.err(c, http.StatusServiceUnavailable, what+" is not configured", nil)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health runs every dependency check and answers 503 if any fails
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{OK: true}
	if len(h.Checks) > 0 {
		resp.Checks = make(map[string]string, len(h.Checks))
	}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			resp.OK = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}
	if !resp.OK {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// RecentExecutions returns the newest execution records
// Accepts limit query parameter (default: 100, range: 1-MaxRecentExecutions)
func (h *Handlers) RecentExecutions(c echo.Context) error {
	if h.Executions == nil {
		return h.unavailable(c, "execution log")
	}
	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > constants.MaxRecentExecutions {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max " + strconv.Itoa(constants.MaxRecentExecutions)})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Executions.RecentExecutions(ctx, limit)
	if err != nil {
		return h.fail(c, "failed to get executions", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// SwitchesList returns every chain switch that has been set
func (h *Handlers) SwitchesList(c echo.Context) error {
	if h.Switches == nil {
		return h.unavailable(c, "chain switches")
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Switches.List(ctx)
	if err != nil {
		return h.fail(c, "failed to list switches", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// SwitchesGet returns the switch for a chain id or name
// Returns 404 if the chain has never been switched
func (h *Handlers) SwitchesGet(c echo.Context) error {
	if h.Switches == nil {
		return h.unavailable(c, "chain switches")
	}
	chain, err := flags.ParseChain(c.Param("chain"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Switches.Get(ctx, chain)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "switch not found", nil)
		}
		return h.fail(c, "failed to get switch", err)
	}
	return c.JSON(http.StatusOK, out)
}

// SwitchesSet enables or pauses fills towards a chain
func (h *Handlers) SwitchesSet(c echo.Context) error {
	if h.Switches == nil {
		return h.unavailable(c, "chain switches")
	}
	chain, err := flags.ParseChain(c.Param("chain"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	var req SwitchRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Switches.Set(ctx, chain, req.Enabled, req.Reason)
	if err != nil {
		return h.fail(c, "failed to set switch", err)
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"chain": chain.Name(), "enabled": req.Enabled}).Info("chain switch updated")
	}
	return c.JSON(http.StatusOK, out)
}

// SwitchesDelete removes a chain switch, re-enabling the chain
// Returns 204 No Content on successful deletion
func (h *Handlers) SwitchesDelete(c echo.Context) error {
	if h.Switches == nil {
		return h.unavailable(c, "chain switches")
	}
	chain, err := flags.ParseChain(c.Param("chain"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Switches.Delete(ctx, chain); err != nil {
		return h.fail(c, "failed to delete switch", err)
	}
	return c.NoContent(http.StatusNoContent)
}
