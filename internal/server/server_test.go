package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/flags"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
	"github.com/aman-zulfiqar/genius-solver/internal/rebalance"
	"github.com/aman-zulfiqar/genius-solver/internal/solver"
)

type fakeSolver struct {
	res *solver.Result
	err error
}

func (f *fakeSolver) Solve(context.Context, solver.Request) (*solver.Result, error) {
	return f.res, f.err
}

func (f *fakeSolver) OrderStatuses(_ context.Context, orders []models.Order) ([]solver.OrderStatusReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]solver.OrderStatusReport, len(orders))
	for i, o := range orders {
		out[i] = solver.OrderStatusReport{Seed: o.Seed, SrcStatus: "Created", DestStatus: "Nonexistant"}
	}
	return out, nil
}

type fakeExecutor struct {
	mu    sync.Mutex
	kinds []string
}

func (f *fakeExecutor) ExecutePayloads(_ context.Context, kind string, payloads []models.ChainPayload) []execution.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	out := make([]execution.Outcome, len(payloads))
	for i, p := range payloads {
		out[i] = execution.Outcome{ChainID: p.ChainID, TxHashes: []string{"0xabc"}}
	}
	return out
}

type fakeRebalancer struct {
	payloads []models.ChainPayload
	err      error
}

func (f *fakeRebalancer) Execute(context.Context, models.SignedInstructionSet, rebalance.Batch) ([]models.ChainPayload, error) {
	return f.payloads, f.err
}

type fakeSwitches struct {
	mu    sync.Mutex
	items map[models.ChainID]*flags.Switch
}

func (f *fakeSwitches) Set(_ context.Context, chain models.ChainID, enabled bool, reason string) (*flags.Switch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(reason) > 10 {
		return nil, errs.Validation("reason too long")
	}
	sw := &flags.Switch{Chain: chain, Name: chain.Name(), Enabled: enabled, Reason: reason}
	f.items[chain] = sw
	return sw, nil
}

func (f *fakeSwitches) Get(_ context.Context, chain models.ChainID) (*flags.Switch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sw, ok := f.items[chain]
	if !ok {
		return nil, flags.ErrNotFound
	}
	return sw, nil
}

func (f *fakeSwitches) List(context.Context) ([]*flags.Switch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*flags.Switch, 0, len(f.items))
	for _, sw := range f.items {
		out = append(out, sw)
	}
	return out, nil
}

func (f *fakeSwitches) Delete(_ context.Context, chain models.ChainID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, chain)
	return nil
}

type fakeExecutions struct {
	limit int
}

func (f *fakeExecutions) InsertExecution(context.Context, *models.ExecutionRecord) error { return nil }

func (f *fakeExecutions) RecentExecutions(_ context.Context, limit int) ([]*models.ExecutionRecord, error) {
	f.limit = limit
	return []*models.ExecutionRecord{{ID: "1", Kind: execution.KindFill, Success: true}}, nil
}

func (f *fakeExecutions) Ping(context.Context) error { return nil }
func (f *fakeExecutions) Close() error               { return nil }

type fakeQuoter struct {
	last quote.Request
}

func (q *fakeQuoter) Name() string { return "fake" }

func (q *fakeQuoter) FetchQuote(_ context.Context, req quote.Request) (*quote.Response, error) {
	q.last = req
	return &quote.Response{Provider: "fake", AmountOut: "990"}, nil
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T, h *Handlers, apiKey string) http.Handler {
	t.Helper()
	if h.Logger == nil {
		h.Logger = quiet()
	}
	srv, err := NewServer(ServerDeps{Handlers: h, Config: ServerConfig{Addr: ":0", APIKey: apiKey}})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func word(n int64) string {
	return address.AddressToBytes32(common.BigToAddress(big.NewInt(n)))
}

func sampleOrder() models.Order {
	return models.Order{
		Seed:         word(1),
		Trader:       word(2),
		Receiver:     word(3),
		TokenIn:      word(4),
		TokenOut:     word(5),
		AmountIn:     "1000000",
		MinAmountOut: "1",
		SrcChainID:   "8453",
		DestChainID:  "42161",
		Fee:          "1000",
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &Handlers{Checks: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return nil },
	}}, "")
	rec := do(t, h, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.True(t, resp.OK)
	assert.Equal(t, "ok", resp.Checks["redis"])

	h = newTestServer(t, &Handlers{Checks: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}}, "")
	rec = do(t, h, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decode[HealthResponse](t, rec).Checks["redis"])
}

func TestAPIKey(t *testing.T) {
	h := newTestServer(t, &Handlers{}, "secret")

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/orders/hash", OrderRequest{Order: sampleOrder()}, "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/orders/hash", OrderRequest{Order: sampleOrder()}, "X-API-Key", "secret").Code)
}

func TestNotFound(t *testing.T) {
	rec := do(t, newTestServer(t, &Handlers{}, ""), http.MethodGet, "/v2/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rec).Code)
}

func TestOrderHash(t *testing.T) {
	h := newTestServer(t, &Handlers{}, "")
	o := sampleOrder()

	rec := do(t, h, http.MethodPost, "/v1/orders/hash", OrderRequest{Order: o})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[OrderHashResponse](t, rec)

	want, err := evmvault.OrderHashHex(o)
	require.NoError(t, err)
	assert.Equal(t, want, resp.OrderHash)
	assert.NotEqual(t, resp.OrderHash, resp.RevertDigest)

	o.AmountIn = "lots"
	rec = do(t, h, http.MethodPost, "/v1/orders/hash", OrderRequest{Order: o})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderStatuses(t *testing.T) {
	h := newTestServer(t, &Handlers{Solver: &fakeSolver{}}, "")
	rec := do(t, h, http.MethodPost, "/v1/orders/status", OrderStatusRequest{Orders: []models.Order{sampleOrder()}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Items []solver.OrderStatusReport `json:"items"`
	}](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Created", resp.Items[0].SrcStatus)
}

func TestFill_ErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{errs.Validation("No orders to fill"), http.StatusBadRequest, "No orders to fill"},
		{errs.ChainRead("Failed to get order statuses from any provider", errors.New("timeout")), http.StatusBadGateway, "failed to solve orders"},
		{errors.New("boom"), http.StatusInternalServerError, "failed to solve orders"},
	}
	for _, tc := range cases {
		h := newTestServer(t, &Handlers{Solver: &fakeSolver{err: tc.err}}, "")
		rec := do(t, h, http.MethodPost, "/v1/solver/fill", FillRequest{})
		assert.Equal(t, tc.code, rec.Code)
		assert.Equal(t, tc.msg, decode[ErrorResponse](t, rec).Error)
	}
}

func TestFill_ExecutesOnlyWhenAsked(t *testing.T) {
	exec := &fakeExecutor{}
	s := &fakeSolver{res: &solver.Result{
		Payloads: []models.ChainPayload{{ChainID: models.ChainArbitrum, Evm: &models.EvmArbitraryCall{To: "0x01", Data: "0x"}}},
		Rejected: []solver.Rejection{{Seed: "0x02", Reason: "Seed does not match"}},
	}}
	h := newTestServer(t, &Handlers{Solver: s, Executor: exec}, "")

	rec := do(t, h, http.MethodPost, "/v1/solver/fill", FillRequest{Request: solver.Request{Orders: []models.Order{sampleOrder()}}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[FillResponse](t, rec)
	assert.Len(t, resp.Payloads, 1)
	assert.Len(t, resp.Rejected, 1)
	assert.Empty(t, resp.Outcomes)
	assert.Empty(t, exec.kinds)

	rec = do(t, h, http.MethodPost, "/v1/solver/fill", FillRequest{Request: solver.Request{Orders: []models.Order{sampleOrder()}}, Execute: true})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[FillResponse](t, rec)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, []string{"0xabc"}, resp.Outcomes[0].TxHashes)
	assert.Equal(t, []string{execution.KindFill}, exec.kinds)
}

func TestFill_MissingComponents(t *testing.T) {
	h := newTestServer(t, &Handlers{}, "")
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/v1/solver/fill", FillRequest{}).Code)

	h = newTestServer(t, &Handlers{Solver: &fakeSolver{res: &solver.Result{}}}, "")
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/v1/solver/fill", FillRequest{Execute: true}).Code)
}

func TestRebalanceExecute(t *testing.T) {
	exec := &fakeExecutor{}
	rb := &fakeRebalancer{payloads: []models.ChainPayload{
		{ChainID: models.ChainBase, Evm: &models.EvmArbitraryCall{To: "0x01", Data: "0x"}},
		{ChainID: models.ChainOptimism, Err: &models.ErrorResult{Error: "No EVM execution payload found"}},
	}}
	h := newTestServer(t, &Handlers{Rebalancer: rb, Executor: exec}, "")

	rec := do(t, h, http.MethodPost, "/v1/rebalance/execute", RebalanceExecuteRequest{Batch: rebalance.Batch{Index: 0, Size: 2}, Execute: true})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RebalanceExecuteResponse](t, rec)
	assert.Len(t, resp.Payloads, 2)
	assert.Len(t, resp.Outcomes, 2)
	assert.Equal(t, []string{execution.KindRebalance}, exec.kinds)

	rb.err = errs.Validation("Invalid environment. Expected dev, got staging")
	rec = do(t, h, http.MethodPost, "/v1/rebalance/execute", RebalanceExecuteRequest{Batch: rebalance.Batch{Size: 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid environment. Expected dev, got staging", decode[ErrorResponse](t, rec).Error)
}

func TestSwitches(t *testing.T) {
	sw := &fakeSwitches{items: map[models.ChainID]*flags.Switch{}}
	h := newTestServer(t, &Handlers{Switches: sw}, "")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/chains/switches/base", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/chains/switches/goerli", nil).Code)

	rec := do(t, h, http.MethodPut, "/v1/chains/switches/base", SwitchRequest{Enabled: false, Reason: "rpc down"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[flags.Switch](t, rec)
	assert.Equal(t, models.ChainBase, got.Chain)
	assert.False(t, got.Enabled)

	rec = do(t, h, http.MethodGet, "/v1/chains/switches/8453", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rpc down", decode[flags.Switch](t, rec).Reason)

	rec = do(t, h, http.MethodPut, "/v1/chains/switches/base", SwitchRequest{Reason: strings.Repeat("x", 11)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/chains/switches/base", nil).Code)
	rec = do(t, h, http.MethodGet, "/v1/chains/switches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Items []*flags.Switch `json:"items"`
	}](t, rec).Items)
}

func TestRecentExecutions(t *testing.T) {
	store := &fakeExecutions{}
	h := newTestServer(t, &Handlers{Executions: store}, "")

	for _, bad := range []string{"0", "201", "ten"} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/executions/recent?limit="+bad, nil).Code, bad)
	}

	rec := do(t, h, http.MethodGet, "/v1/executions/recent?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, store.limit)

	do(t, h, http.MethodGet, "/v1/executions/recent", nil)
	assert.Equal(t, 100, store.limit)
}

func TestQuote(t *testing.T) {
	race, best := &fakeQuoter{}, &fakeQuoter{}
	h := newTestServer(t, &Handlers{Quoter: race, BestQuoter: best}, "")

	base := "/v1/quote?networkIn=base&networkOut=solana&tokenIn=0x1&tokenOut=mint&from=0x2&receiver=dest&amountIn=1000"

	rec := do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ChainBase, race.last.NetworkIn)
	assert.Equal(t, models.ChainSolana, race.last.NetworkOut)
	assert.Equal(t, 1.0, race.last.Slippage)

	rec = do(t, h, http.MethodGet, base+"&strategy=best&slippage=0.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.5, best.last.Slippage)

	for _, bad := range []string{
		base + "&strategy=fastest",
		base + "&slippage=101",
		strings.Replace(base, "amountIn=1000", "amountIn=-1", 1),
		strings.Replace(base, "networkIn=base", "networkIn=goerli", 1),
		strings.Replace(base, "&receiver=dest", "", 1),
	} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, bad, nil).Code, bad)
	}
}
