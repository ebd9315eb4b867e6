package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/storage"
)

const defaultVerifyConcurrency = 16

// Request is a batch of candidate orders. SwapCalls and ArbitraryCalls are
// index-aligned with Orders and may be shorter or contain nils.
type Request struct {
	Orders         []models.Order             `json:"orders"`
	SwapCalls      []*models.EvmArbitraryCall `json:"swapsCalls,omitempty"`
	ArbitraryCalls []*models.EvmArbitraryCall `json:"arbitraryCalls,omitempty"`
}

func (r Request) withCalls(i int) models.OrderWithCalls {
	out := models.OrderWithCalls{Order: r.Orders[i]}
	if i < len(r.SwapCalls) {
		out.SwapCall = r.SwapCalls[i]
	}
	if i < len(r.ArbitraryCalls) {
		out.ArbitraryCall = r.ArbitraryCalls[i]
	}
	return out
}

// Rejection explains why an order was left out of the payloads.
type Rejection struct {
	Seed   string `json:"seed"`
	Reason string `json:"reason"`
}

type Result struct {
	Payloads []models.ChainPayload `json:"payloads"`
	Rejected []Rejection           `json:"rejected,omitempty"`
}

type PipelineConfig struct {
	EvmVaults EvmVaults
	// SolanaPool serves status reads and verification of Solana orders.
	SolanaPool SolanaPool
	EvmSolver  Solver
	// SolanaSolver is nil when this instance has no Solana orchestrator key.
	SolanaSolver Solver
	// Gate is optional.
	Gate              storage.ChainGate
	VerifyConcurrency int
	Logger            *logrus.Logger
}

// Pipeline decides which orders of a batch are safe to fill and builds the
// per-destination-chain payloads.
type Pipeline struct {
	evmVaults   EvmVaults
	solanaPool  SolanaPool
	evmSolver   Solver
	solSolver   Solver
	gate        storage.ChainGate
	concurrency int
	logger      *logrus.Logger
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.EvmVaults == nil {
		return nil, fmt.Errorf("solver: evm vaults are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.EvmSolver == nil {
		cfg.EvmSolver = NewEvmSolver(cfg.EvmVaults, nil, cfg.Logger)
	}
	if cfg.VerifyConcurrency <= 0 {
		cfg.VerifyConcurrency = defaultVerifyConcurrency
	}
	return &Pipeline{
		evmVaults:   cfg.EvmVaults,
		solanaPool:  cfg.SolanaPool,
		evmSolver:   cfg.EvmSolver,
		solSolver:   cfg.SolanaSolver,
		gate:        cfg.Gate,
		concurrency: cfg.VerifyConcurrency,
		logger:      cfg.Logger,
	}, nil
}

// candidate is an order that passed parsing, with its hash and chains.
type candidate struct {
	models.OrderWithCalls
	hash [32]byte
	src  models.ChainID
	dest models.ChainID
}

// Solve reads order statuses, keeps the fillable orders, verifies them and
// returns one payload per destination chain in ascending chain id order.
// Per-order problems become rejections; only failed status reads abort.
func (p *Pipeline) Solve(ctx context.Context, req Request) (*Result, error) {
	if len(req.Orders) == 0 {
		return nil, errs.Validation("No orders to fill")
	}

	res := &Result{}
	reject := func(seed string, err error) {
		res.Rejected = append(res.Rejected, Rejection{Seed: seed, Reason: err.Error()})
	}

	candidates := make([]candidate, 0, len(req.Orders))
	for i := range req.Orders {
		c, err := p.parse(req.withCalls(i))
		if err != nil {
			reject(req.Orders[i].Seed, err)
			continue
		}
		candidates = append(candidates, *c)
	}
	candidates = p.dropPaused(ctx, candidates, reject)

	statuses, err := p.readStatuses(ctx, candidates)
	if err != nil {
		return nil, err
	}

	fillable := candidates[:0]
	for _, c := range candidates {
		src, dest := statuses[c.src][c.hash], statuses[c.dest][c.hash]
		switch {
		case src != models.OrderCreated:
			reject(c.Order.Seed, fmt.Errorf("source order status is %s", src))
		case dest != models.OrderNonexistant:
			reject(c.Order.Seed, fmt.Errorf("destination order status is %s", dest))
		case c.dest.IsSolana() && p.solSolver == nil:
			reject(c.Order.Seed, fmt.Errorf("no solana orchestrator configured"))
		default:
			fillable = append(fillable, c)
		}
	}

	verified := p.verifyAll(ctx, fillable, reject)
	if len(verified) == 0 {
		p.logger.WithField("rejected", len(res.Rejected)).Info("no fillable orders in batch")
		return res, nil
	}

	byChain := make(map[models.ChainID][]models.OrderWithCalls)
	for _, c := range verified {
		byChain[c.dest] = append(byChain[c.dest], c.OrderWithCalls)
	}
	chains := make([]models.ChainID, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	res.Payloads = make([]models.ChainPayload, len(chains))
	var wg sync.WaitGroup
	for i, chain := range chains {
		wg.Add(1)
		go func(i int, chain models.ChainID) {
			defer wg.Done()
			res.Payloads[i] = p.solverFor(chain).FillOrderBatch(ctx, chain, byChain[chain])
		}(i, chain)
	}
	wg.Wait()

	p.logger.WithFields(logrus.Fields{
		"orders":   len(req.Orders),
		"fillable": len(verified),
		"chains":   len(chains),
		"rejected": len(res.Rejected),
	}).Info("solved order batch")
	return res, nil
}

func (p *Pipeline) solverFor(chain models.ChainID) Solver {
	if chain.IsSolana() {
		return p.solSolver
	}
	return p.evmSolver
}

func (p *Pipeline) parse(o models.OrderWithCalls) (*candidate, error) {
	src, err := o.Order.SrcChain()
	if err != nil {
		return nil, err
	}
	dest, err := o.Order.DestChain()
	if err != nil {
		return nil, err
	}
	if !src.IsSupported() || !dest.IsSupported() {
		return nil, fmt.Errorf("unsupported chain pair %d -> %d", src, dest)
	}
	if src == dest {
		return nil, fmt.Errorf("source and destination chain are the same")
	}
	if (src.IsSolana() || dest.IsSolana()) && p.solanaPool == nil {
		return nil, errs.Validation("Solana pool not configured")
	}
	hash, err := evmvault.OrderHash(o.Order)
	if err != nil {
		return nil, err
	}
	return &candidate{OrderWithCalls: o, hash: hash, src: src, dest: dest}, nil
}

// dropPaused removes orders whose destination chain is switched off. A gate
// that cannot be read leaves the chain enabled.
func (p *Pipeline) dropPaused(ctx context.Context, cs []candidate, reject func(string, error)) []candidate {
	if p.gate == nil {
		return cs
	}
	enabled := make(map[models.ChainID]bool)
	out := cs[:0]
	for _, c := range cs {
		on, seen := enabled[c.dest]
		if !seen {
			var err error
			on, err = p.gate.ChainEnabled(ctx, c.dest)
			if err != nil {
				p.logger.WithError(err).WithField("chain", c.dest.Name()).Warn("failed to read chain switch, assuming enabled")
				on = true
			}
			enabled[c.dest] = on
		}
		if !on {
			reject(c.Order.Seed, fmt.Errorf("destination chain %s is paused", c.dest.Name()))
			continue
		}
		out = append(out, c)
	}
	return out
}

// readStatuses returns status by chain and order hash. Every chain is read
// in parallel; a chain whose endpoints all fail aborts the batch.
func (p *Pipeline) readStatuses(ctx context.Context, cs []candidate) (map[models.ChainID]map[[32]byte]models.OrderStatus, error) {
	hashes := make(map[models.ChainID][][32]byte)
	seen := make(map[models.ChainID]map[[32]byte]bool)
	add := func(chain models.ChainID, h [32]byte) {
		if seen[chain] == nil {
			seen[chain] = make(map[[32]byte]bool)
		}
		if !seen[chain][h] {
			seen[chain][h] = true
			hashes[chain] = append(hashes[chain], h)
		}
	}
	for _, c := range cs {
		add(c.src, c.hash)
		add(c.dest, c.hash)
	}

	var mu sync.Mutex
	out := make(map[models.ChainID]map[[32]byte]models.OrderStatus, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	for chain, hs := range hashes {
		g.Go(func() error {
			statuses, err := p.chainStatuses(gctx, chain, hs)
			if err != nil {
				return fmt.Errorf("order statuses on %s: %w", chain.Name(), err)
			}
			m := make(map[[32]byte]models.OrderStatus, len(hs))
			for i, h := range hs {
				m[h] = statuses[i]
			}
			mu.Lock()
			out[chain] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) chainStatuses(ctx context.Context, chain models.ChainID, hashes [][32]byte) ([]models.OrderStatus, error) {
	if !chain.IsSolana() {
		vault, err := p.evmVaults(ctx, chain)
		if err != nil {
			return nil, err
		}
		return vault.OrderStatusBatch(ctx, hashes)
	}

	if p.solanaPool == nil {
		return nil, errs.Validation("Solana pool not configured")
	}
	out := make([]models.OrderStatus, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, h := range hashes {
		g.Go(func() error {
			s, err := p.solanaPool.GetOrderStatus(gctx, h)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// verifyAll checks every order independently; a failed check rejects only
// that order. Input order is preserved.
func (p *Pipeline) verifyAll(ctx context.Context, cs []candidate, reject func(string, error)) []candidate {
	results := make([]error, len(cs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, c := range cs {
		g.Go(func() error {
			results[i] = p.verify(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	var out []candidate
	for i, c := range cs {
		if err := results[i]; err != nil {
			p.logger.WithError(err).WithField("seed", c.Order.Seed).Warn("order verification failed")
			reject(c.Order.Seed, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// verify checks an EVM-sourced order's seed against its post-fill call, and
// a Solana-sourced order field by field against the on-chain record.
func (p *Pipeline) verify(ctx context.Context, c candidate) error {
	if c.src.IsSolana() {
		if p.solanaPool == nil {
			return errs.Validation("Solana pool not configured")
		}
		return p.solanaPool.VerifyOrder(ctx, c.Order, c.hash)
	}

	// orders without a post-fill call commit to no calldata
	call := c.ArbitraryCall
	if call == nil || call.To == "" || call.Data == "" {
		return nil
	}
	expected, err := evmvault.CalldataToSeed(call.To, call.Data)
	if err != nil {
		return errs.Validation(fmt.Sprintf("Seed does not match: %v", err))
	}
	seed, err := address.ToBytes32(c.Order.Seed)
	if err != nil {
		return errs.Validation(fmt.Sprintf("invalid seed %q", c.Order.Seed))
	}
	if expected != seed {
		return errs.Validation("Seed does not match")
	}
	return nil
}

// OrderStatusReport is the on-chain state of one order on both of its chains.
type OrderStatusReport struct {
	Seed       string `json:"seed"`
	OrderHash  string `json:"orderHash,omitempty"`
	SrcStatus  string `json:"srcStatus,omitempty"`
	DestStatus string `json:"destStatus,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OrderStatuses reads the source and destination status of every order.
// Orders that cannot be parsed carry an error; failed reads abort.
func (p *Pipeline) OrderStatuses(ctx context.Context, orders []models.Order) ([]OrderStatusReport, error) {
	if len(orders) == 0 {
		return nil, errs.Validation("No orders provided")
	}
	out := make([]OrderStatusReport, len(orders))
	parsed := make([]*candidate, len(orders))
	var cs []candidate
	for i, o := range orders {
		out[i].Seed = o.Seed
		c, err := p.parse(models.OrderWithCalls{Order: o})
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		parsed[i] = c
		cs = append(cs, *c)
	}

	statuses, err := p.readStatuses(ctx, cs)
	if err != nil {
		return nil, err
	}
	for i, c := range parsed {
		if c == nil {
			continue
		}
		out[i].OrderHash = "0x" + common.Bytes2Hex(c.hash[:])
		out[i].SrcStatus = statuses[c.src][c.hash].String()
		out[i].DestStatus = statuses[c.dest][c.hash].String()
	}
	return out, nil
}
