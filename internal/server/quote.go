package server

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
)

// Quote fetches a bridge or swap quote from the configured providers.
// strategy=best compares every provider; the default takes the first answer.
func (h *Handlers) Quote(c echo.Context) error {
	q := h.Quoter
	switch strings.TrimSpace(c.QueryParam("strategy")) {
	case "", "race":
	case "best":
		q = h.BestQuoter
	default:
		return h.err(c, http.StatusBadRequest, "invalid strategy", map[string]any{"strategy": "must be race or best"})
	}
	if q == nil {
		return h.unavailable(c, "quote provider")
	}

	networkIn, err := models.ParseChainID(c.QueryParam("networkIn"))
	if err != nil || !networkIn.IsSupported() {
		return h.err(c, http.StatusBadRequest, "invalid networkIn", map[string]any{"networkIn": "must be a supported chain"})
	}
	networkOut, err := models.ParseChainID(c.QueryParam("networkOut"))
	if err != nil || !networkOut.IsSupported() {
		return h.err(c, http.StatusBadRequest, "invalid networkOut", map[string]any{"networkOut": "must be a supported chain"})
	}

	req := quote.Request{
		NetworkIn:  networkIn,
		NetworkOut: networkOut,
		TokenIn:    strings.TrimSpace(c.QueryParam("tokenIn")),
		TokenOut:   strings.TrimSpace(c.QueryParam("tokenOut")),
		AmountIn:   strings.TrimSpace(c.QueryParam("amountIn")),
		From:       strings.TrimSpace(c.QueryParam("from")),
		Receiver:   strings.TrimSpace(c.QueryParam("receiver")),
		Slippage:   constants.SolverSwapSlippage,
	}
	required := []struct{ name, val string }{
		{"tokenIn", req.TokenIn},
		{"tokenOut", req.TokenOut},
		{"from", req.From},
		{"receiver", req.Receiver},
	}
	for _, f := range required {
		if f.val == "" {
			return h.err(c, http.StatusBadRequest, "invalid "+f.name, map[string]any{f.name: "required"})
		}
	}
	if n, ok := new(big.Int).SetString(req.AmountIn, 10); !ok || n.Sign() <= 0 {
		return h.err(c, http.StatusBadRequest, "invalid amountIn", map[string]any{"amountIn": "must be a positive integer"})
	}
	if v := strings.TrimSpace(c.QueryParam("slippage")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			return h.err(c, http.StatusBadRequest, "invalid slippage", map[string]any{"slippage": "percentage between 0 and 100"})
		}
		req.Slippage = f
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	out, err := q.FetchQuote(ctx, req)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "quote failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, out)
}
