package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
	"github.com/aman-zulfiqar/genius-solver/internal/svmpool"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var (
	orchestrator = solana.NewWallet().PublicKey()
	usdc         = solana.MustPublicKeyFromBase58(constants.SolanaUSDCMint)
	postFillCall = &models.EvmArbitraryCall{To: "0x7777777777777777777777777777777777777777", Data: "0xcafebabe"}
)

func word(n int) string {
	return address.AddressToBytes32(common.BigToAddress(big.NewInt(int64(n))))
}

// order returns a src -> dest order whose seed matches postFillCall.
func order(t *testing.T, n int, src, dest models.ChainID) models.Order {
	t.Helper()
	seed, err := evmvault.CalldataToSeed(postFillCall.To, postFillCall.Data)
	require.NoError(t, err)
	return models.Order{
		Seed:         address.Bytes32Hex(seed),
		Trader:       word(1000 + n),
		Receiver:     word(2000 + n),
		TokenIn:      word(3000),
		TokenOut:     word(4000),
		AmountIn:     fmt.Sprint(1_000_000 * (n + 1)),
		MinAmountOut: "1",
		SrcChainID:   fmt.Sprint(uint32(src)),
		DestChainID:  fmt.Sprint(uint32(dest)),
		Fee:          "1000",
	}
}

func hashOf(t *testing.T, o models.Order) [32]byte {
	t.Helper()
	h, err := evmvault.OrderHash(o)
	require.NoError(t, err)
	return h
}

type fakeVault struct {
	mu       sync.Mutex
	statuses map[[32]byte]models.OrderStatus
	err      error
	reads    int
	batches  [][]evmvault.FillOrderParams
}

func (v *fakeVault) OrderStatusBatch(_ context.Context, hashes [][32]byte) ([]models.OrderStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reads++
	if v.err != nil {
		return nil, v.err
	}
	out := make([]models.OrderStatus, len(hashes))
	for i, h := range hashes {
		out[i] = v.statuses[h]
	}
	return out, nil
}

func (v *fakeVault) PrepFillOrderBatch(params []evmvault.FillOrderParams) (*models.EvmArbitraryCall, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.batches = append(v.batches, params)
	return &models.EvmArbitraryCall{To: "0x1111111111111111111111111111111111111111", Data: "0x01", Value: "0"}, nil
}

type vaultSet map[models.ChainID]*fakeVault

func (vs vaultSet) get(chain models.ChainID) *fakeVault {
	if vs[chain] == nil {
		vs[chain] = &fakeVault{statuses: map[[32]byte]models.OrderStatus{}}
	}
	return vs[chain]
}

func (vs vaultSet) resolver() EvmVaults {
	return func(_ context.Context, chain models.ChainID) (EvmVault, error) {
		v, ok := vs[chain]
		if !ok {
			return nil, fmt.Errorf("no vault on %s", chain.Name())
		}
		return v, nil
	}
}

type fakePool struct {
	mu        sync.Mutex
	statuses  map[[32]byte]models.OrderStatus
	verifyErr error
	fills     []svmpool.FillOrderParams
	transfers []*big.Int
}

func newFakePool() *fakePool {
	return &fakePool{statuses: map[[32]byte]models.OrderStatus{}}
}

// marker builds a distinguishable transaction; lamports identify the builder.
func marker(lamports uint64) *solana.Transaction {
	tx, err := solanaix.NewVersionedTx(
		[]solana.Instruction{solanaix.NewSystemTransferIx(orchestrator, orchestrator, lamports)},
		solana.Hash{},
		orchestrator,
	)
	if err != nil {
		panic(err)
	}
	return tx
}

func encoded(t *testing.T, lamports uint64) string {
	t.Helper()
	s, err := solanaix.Serialize(marker(lamports))
	require.NoError(t, err)
	return s
}

func (p *fakePool) Stablecoin() solana.PublicKey { return usdc }

func (p *fakePool) GetOrderStatus(_ context.Context, h [32]byte) (models.OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statuses[h], nil
}

func (p *fakePool) VerifyOrder(context.Context, models.Order, [32]byte) error { return p.verifyErr }

func (p *fakePool) GetFillOrderTx(_ context.Context, params svmpool.FillOrderParams) (*solana.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills = append(p.fills, params)
	return marker(1), nil
}

func (p *fakePool) GetTransferUsdcTx(_ context.Context, amount *big.Int, _ string, _ solana.PublicKey) (*solana.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transfers = append(p.transfers, amount)
	return marker(2), nil
}

func (p *fakePool) GetFillOrderTokenTransferTx(context.Context, models.Order, solana.PublicKey) (*solana.Transaction, error) {
	return marker(3), nil
}

type fakeQuoter struct {
	resp *quote.Response
	err  error
	reqs []quote.Request
}

func (q *fakeQuoter) Name() string { return "fake" }

func (q *fakeQuoter) FetchQuote(_ context.Context, req quote.Request) (*quote.Response, error) {
	q.reqs = append(q.reqs, req)
	return q.resp, q.err
}

type gate map[models.ChainID]bool

func (g gate) ChainEnabled(_ context.Context, chain models.ChainID) (bool, error) {
	on, ok := g[chain]
	if !ok {
		return true, nil
	}
	return on, nil
}

func newSolanaSolver(t *testing.T, pool SolanaPool, q quote.Quoter) *SolanaSolver {
	t.Helper()
	dep, err := constants.DeploymentFor(models.EnvDev)
	require.NoError(t, err)
	s, err := NewSolanaSolver(SolanaConfig{
		Pool:         pool,
		Orchestrator: orchestrator,
		Quoter:       q,
		Deployment:   dep,
		Logger:       quiet(),
	})
	require.NoError(t, err)
	return s
}

func newPipeline(t *testing.T, vs vaultSet, pool *fakePool, sol Solver, g gate) *Pipeline {
	t.Helper()
	cfg := PipelineConfig{EvmVaults: vs.resolver(), SolanaSolver: sol, Logger: quiet()}
	if pool != nil {
		cfg.SolanaPool = pool
	}
	if g != nil {
		cfg.Gate = g
	}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	return p
}

func TestSolve_EmptyBatch(t *testing.T) {
	p := newPipeline(t, vaultSet{}, nil, nil, nil)
	_, err := p.Solve(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Equal(t, "No orders to fill", err.Error())
}

func TestSolve_KeepsOnlyCreatedAndUnfilled(t *testing.T) {
	vs := vaultSet{}
	ready := order(t, 0, models.ChainBase, models.ChainArbitrum)
	filledAtSource := order(t, 1, models.ChainBase, models.ChainArbitrum)
	presentAtDest := order(t, 2, models.ChainBase, models.ChainArbitrum)

	vs.get(models.ChainBase).statuses[hashOf(t, ready)] = models.OrderCreated
	vs.get(models.ChainBase).statuses[hashOf(t, filledAtSource)] = models.OrderFilled
	vs.get(models.ChainBase).statuses[hashOf(t, presentAtDest)] = models.OrderCreated
	vs.get(models.ChainArbitrum).statuses[hashOf(t, presentAtDest)] = models.OrderCreated

	res, err := newPipeline(t, vs, nil, nil, nil).Solve(context.Background(), Request{
		Orders:         []models.Order{ready, filledAtSource, presentAtDest},
		ArbitraryCalls: []*models.EvmArbitraryCall{postFillCall, postFillCall, postFillCall},
	})
	require.NoError(t, err)

	require.Len(t, res.Payloads, 1)
	assert.Equal(t, models.ChainArbitrum, res.Payloads[0].ChainID)
	require.NotNil(t, res.Payloads[0].Evm)
	assert.Len(t, res.Rejected, 2)

	batches := vs[models.ChainArbitrum].batches
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, ready, batches[0][0].Order)
	assert.Equal(t, postFillCall.To, batches[0][0].CallTarget)
	assert.Empty(t, batches[0][0].SwapTarget)
}

func TestSolve_SeedMismatchRejectsOnlyThatOrder(t *testing.T) {
	vs := vaultSet{}
	good := order(t, 0, models.ChainBase, models.ChainOptimism)
	bad := order(t, 1, models.ChainBase, models.ChainOptimism)
	for _, o := range []models.Order{good, bad} {
		vs.get(models.ChainBase).statuses[hashOf(t, o)] = models.OrderCreated
	}
	vs.get(models.ChainOptimism)

	other := &models.EvmArbitraryCall{To: postFillCall.To, Data: "0xdeadbeef"}
	res, err := newPipeline(t, vs, nil, nil, nil).Solve(context.Background(), Request{
		Orders:         []models.Order{good, bad},
		ArbitraryCalls: []*models.EvmArbitraryCall{postFillCall, other},
	})
	require.NoError(t, err)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, bad.Seed, res.Rejected[0].Seed)
	assert.Equal(t, "Seed does not match", res.Rejected[0].Reason)
	require.Len(t, vs[models.ChainOptimism].batches, 1)
	assert.Len(t, vs[models.ChainOptimism].batches[0], 1)
}

func TestSolve_GroupsByDestinationInChainOrder(t *testing.T) {
	vs := vaultSet{}
	toArb := order(t, 0, models.ChainBase, models.ChainArbitrum)
	toOp := order(t, 1, models.ChainBase, models.ChainOptimism)
	toArb2 := order(t, 2, models.ChainBase, models.ChainArbitrum)
	for _, o := range []models.Order{toArb, toOp, toArb2} {
		vs.get(models.ChainBase).statuses[hashOf(t, o)] = models.OrderCreated
	}
	vs.get(models.ChainArbitrum)
	vs.get(models.ChainOptimism)

	res, err := newPipeline(t, vs, nil, nil, nil).Solve(context.Background(), Request{
		Orders: []models.Order{toArb, toOp, toArb2},
	})
	require.NoError(t, err)

	require.Len(t, res.Payloads, 2)
	assert.Equal(t, models.ChainOptimism, res.Payloads[0].ChainID)
	assert.Equal(t, models.ChainArbitrum, res.Payloads[1].ChainID)
	assert.Len(t, vs[models.ChainArbitrum].batches[0], 2)
}

func TestSolve_SolanaDestinationNeedsOrchestrator(t *testing.T) {
	vs := vaultSet{}
	o := order(t, 0, models.ChainBase, models.ChainSolana)
	vs.get(models.ChainBase).statuses[hashOf(t, o)] = models.OrderCreated

	res, err := newPipeline(t, vs, newFakePool(), nil, nil).Solve(context.Background(), Request{Orders: []models.Order{o}})
	require.NoError(t, err)
	assert.Empty(t, res.Payloads)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "solana orchestrator")
}

func TestSolve_SolanaSourceVerifiedAgainstPool(t *testing.T) {
	vs := vaultSet{}
	pool := newFakePool()
	pool.verifyErr = errs.OrderMismatch("fee")
	o := order(t, 0, models.ChainSolana, models.ChainBase)
	pool.statuses[hashOf(t, o)] = models.OrderCreated
	vs.get(models.ChainBase)

	res, err := newPipeline(t, vs, pool, nil, nil).Solve(context.Background(), Request{Orders: []models.Order{o}})
	require.NoError(t, err)
	assert.Empty(t, res.Payloads)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "Order fee mismatch", res.Rejected[0].Reason)
}

func TestSolve_PausedChainSkipsStatusReads(t *testing.T) {
	vs := vaultSet{}
	o := order(t, 0, models.ChainBase, models.ChainArbitrum)
	vs.get(models.ChainBase).statuses[hashOf(t, o)] = models.OrderCreated
	vs.get(models.ChainArbitrum)

	res, err := newPipeline(t, vs, nil, nil, gate{models.ChainArbitrum: false}).Solve(context.Background(), Request{Orders: []models.Order{o}})
	require.NoError(t, err)
	assert.Empty(t, res.Payloads)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "paused")
	assert.Zero(t, vs[models.ChainBase].reads)
	assert.Zero(t, vs[models.ChainArbitrum].reads)
}

func TestSolve_StatusReadFailureAborts(t *testing.T) {
	vs := vaultSet{}
	o := order(t, 0, models.ChainBase, models.ChainArbitrum)
	vs.get(models.ChainBase).err = errs.ChainRead("Failed to get order statuses from any provider", errors.New("timeout"))
	vs.get(models.ChainArbitrum)

	_, err := newPipeline(t, vs, nil, nil, nil).Solve(context.Background(), Request{Orders: []models.Order{o}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindChainRead))
}

func TestSolve_UnparseableOrderIsRejected(t *testing.T) {
	o := order(t, 0, models.ChainBase, models.ChainArbitrum)
	o.DestChainID = "999"
	res, err := newPipeline(t, vaultSet{}, nil, nil, nil).Solve(context.Background(), Request{Orders: []models.Order{o}})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "unsupported chain")
}

func TestOrderStatuses_ReportsBothChains(t *testing.T) {
	vs := vaultSet{}
	filled := order(t, 0, models.ChainBase, models.ChainArbitrum)
	bad := order(t, 1, models.ChainBase, models.ChainArbitrum)
	bad.SrcChainID = "abc"
	vs.get(models.ChainBase).statuses[hashOf(t, filled)] = models.OrderCreated
	vs.get(models.ChainArbitrum).statuses[hashOf(t, filled)] = models.OrderFilled

	reports, err := newPipeline(t, vs, nil, nil, nil).OrderStatuses(context.Background(), []models.Order{filled, bad})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	h := hashOf(t, filled)
	assert.Equal(t, "0x"+common.Bytes2Hex(h[:]), reports[0].OrderHash)
	assert.Equal(t, "Created", reports[0].SrcStatus)
	assert.Equal(t, "Filled", reports[0].DestStatus)
	assert.Empty(t, reports[0].Error)

	assert.Equal(t, bad.Seed, reports[1].Seed)
	assert.NotEmpty(t, reports[1].Error)
	assert.Empty(t, reports[1].SrcStatus)
}

func TestSolanaSolver_StablecoinOutput(t *testing.T) {
	pool := newFakePool()
	o := order(t, 0, models.ChainBSC, models.ChainSolana)
	usdcHex, err := address.PublicKeyToHex(constants.SolanaUSDCMint)
	require.NoError(t, err)
	o.TokenOut = usdcHex
	o.AmountIn = "5000000000000000000" // 5 USDT at 18 decimals
	o.Fee = "1000000000000000000"

	q := &fakeQuoter{}
	payload := newSolanaSolver(t, pool, q).FillOrderBatch(context.Background(), models.ChainSolana, []models.OrderWithCalls{{Order: o}})
	require.Len(t, payload.Solana, 1)
	set := payload.Solana[0]
	require.Nil(t, set.Err)

	assert.Equal(t, []string{encoded(t, 1), encoded(t, 2)}, set.TxnsToExecute)
	assert.Equal(t, encoded(t, 2), set.FallbackTxn)
	assert.Empty(t, q.reqs)

	require.Len(t, pool.fills, 1)
	assert.Equal(t, "5000000", pool.fills[0].Order.AmountIn)
	assert.Equal(t, "1000000", pool.fills[0].Order.Fee)
	assert.Equal(t, hashOf(t, o), pool.fills[0].OrderHash)
	assert.Equal(t, big.NewInt(4_000_000), pool.transfers[0])
}

func TestSolanaSolver_SwapsIntoTokenOut(t *testing.T) {
	pool := newFakePool()
	o := order(t, 0, models.ChainBase, models.ChainSolana)
	q := &fakeQuoter{resp: &quote.Response{AmountOut: "42", SvmExecutionPayload: []string{"swap-tx"}}}

	payload := newSolanaSolver(t, pool, q).FillOrderBatch(context.Background(), models.ChainSolana, []models.OrderWithCalls{{Order: o}})
	set := payload.Solana[0]
	require.Nil(t, set.Err)

	assert.Equal(t, []string{encoded(t, 1), "swap-tx", encoded(t, 3)}, set.TxnsToExecute)
	assert.Equal(t, encoded(t, 2), set.FallbackTxn)

	require.Len(t, q.reqs, 1)
	req := q.reqs[0]
	assert.Equal(t, models.ChainSolana, req.NetworkIn)
	assert.Equal(t, models.ChainSolana, req.NetworkOut)
	assert.Equal(t, usdc.String(), req.TokenIn)
	assert.Equal(t, "999000", req.AmountIn)
	assert.Equal(t, constants.SolverSwapSlippage, req.Slippage)
	assert.Equal(t, orchestrator.String(), req.From)
}

func TestSolanaSolver_QuoteFailureSettlesInStablecoin(t *testing.T) {
	pool := newFakePool()
	o := order(t, 0, models.ChainBase, models.ChainSolana)
	q := &fakeQuoter{err: errs.Execution("No quote found", nil)}

	set := newSolanaSolver(t, pool, q).FillOrderBatch(context.Background(), models.ChainSolana, []models.OrderWithCalls{{Order: o}}).Solana[0]
	require.Nil(t, set.Err)
	assert.Equal(t, []string{encoded(t, 1), encoded(t, 2)}, set.TxnsToExecute)
}

func TestSolanaSolver_BuildsEachOrderOnce(t *testing.T) {
	pool := newFakePool()
	o := order(t, 0, models.ChainBase, models.ChainSolana)
	s := newSolanaSolver(t, pool, &fakeQuoter{})

	first := s.FillOrderBatch(context.Background(), models.ChainSolana, []models.OrderWithCalls{{Order: o}})
	second := s.FillOrderBatch(context.Background(), models.ChainSolana, []models.OrderWithCalls{{Order: o}})

	assert.Equal(t, first, second)
	assert.Len(t, pool.fills, 1)
	assert.Len(t, pool.transfers, 1)
}

func TestSolanaSolver_PerOrderErrors(t *testing.T) {
	pool := newFakePool()
	good := order(t, 0, models.ChainBase, models.ChainSolana)
	bad := order(t, 1, models.ChainBase, models.ChainSolana)
	bad.Seed = word(99)
	bad.Fee = bad.AmountIn

	payload := newSolanaSolver(t, pool, &fakeQuoter{}).FillOrderBatch(context.Background(), models.ChainSolana,
		[]models.OrderWithCalls{{Order: bad}, {Order: good}})
	require.Len(t, payload.Solana, 2)
	require.NotNil(t, payload.Solana[0].Err)
	assert.Equal(t, "error", payload.Solana[0].Err.Status)
	assert.Nil(t, payload.Solana[1].Err)
}

func TestEvmSolver_ErrorBecomesErrorResult(t *testing.T) {
	s := NewEvmSolver(vaultSet{}.resolver(), nil, quiet())
	payload := s.FillOrderBatch(context.Background(), models.ChainBase, []models.OrderWithCalls{{Order: order(t, 0, models.ChainArbitrum, models.ChainBase)}})
	require.True(t, payload.Failed())
	assert.Contains(t, payload.Err.Error, "no vault")
}
