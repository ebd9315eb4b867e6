package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/storage"
)

const (
	KindFill      = "fill"
	KindRebalance = "rebalance"
)

type HandlerConfig struct {
	Evm    *EvmExecutor
	Solana *SolanaExecutor
	// Store and Feed are optional.
	Store  storage.ExecutionStore
	Feed   storage.ExecutionFeed
	Logger *logrus.Logger
}

// Handler executes chain payloads with all-settled semantics: every payload
// (and every Solana set within a payload) runs independently and reports
// its own outcome.
type Handler struct {
	evm    *EvmExecutor
	solana *SolanaExecutor
	store  storage.ExecutionStore
	feed   storage.ExecutionFeed
	logger *logrus.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		evm:    cfg.Evm,
		solana: cfg.Solana,
		store:  cfg.Store,
		feed:   cfg.Feed,
		logger: cfg.Logger,
	}
}

// Outcome is the result of one executed unit. Index is the position of a
// Solana set inside its payload and 0 otherwise.
type Outcome struct {
	ChainID  models.ChainID `json:"chainId"`
	Index    int            `json:"index"`
	TxHashes []string       `json:"txHashes,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
	Error    string         `json:"error,omitempty"`
	Err      error          `json:"-"`
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

// ExecutePayloads returns outcomes in payload order, sets in set order.
func (h *Handler) ExecutePayloads(ctx context.Context, kind string, payloads []models.ChainPayload) []Outcome {
	results := make([][]Outcome, len(payloads))

	var wg sync.WaitGroup
	for i, p := range payloads {
		wg.Add(1)
		go func(i int, p models.ChainPayload) {
			defer wg.Done()
			results[i] = h.executePayload(ctx, kind, p)
		}(i, p)
	}
	wg.Wait()

	var out []Outcome
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (h *Handler) executePayload(ctx context.Context, kind string, p models.ChainPayload) []Outcome {
	switch {
	case p.Err != nil:
		return []Outcome{h.finish(ctx, kind, Outcome{ChainID: p.ChainID, Err: errors.New(p.Err.Error)})}

	case p.Evm != nil:
		o := Outcome{ChainID: p.ChainID}
		if h.evm == nil {
			o.Err = errors.New("evm execution is not configured")
		} else {
			hash, err := h.evm.Execute(ctx, p.ChainID, *p.Evm)
			o.Err = err
			if err == nil {
				o.TxHashes = []string{hash}
			}
		}
		return []Outcome{h.finish(ctx, kind, o)}

	case len(p.Solana) > 0:
		outs := make([]Outcome, len(p.Solana))
		var wg sync.WaitGroup
		for i, set := range p.Solana {
			wg.Add(1)
			go func(i int, set models.SolanaTxnSet) {
				defer wg.Done()
				o := Outcome{ChainID: p.ChainID, Index: i}
				if set.Err != nil {
					o.Err = errors.New(set.Err.Error)
				} else if h.solana == nil {
					o.Err = errors.New("solana execution is not configured")
				} else {
					res, err := h.solana.Execute(ctx, set)
					o.Err = err
					if err == nil {
						o.TxHashes, o.Fallback = res.Signatures, res.Fallback
					}
				}
				outs[i] = h.finish(ctx, kind, o)
			}(i, set)
		}
		wg.Wait()
		return outs

	case len(p.SolanaTxns) > 0:
		o := Outcome{ChainID: p.ChainID}
		if h.solana == nil {
			o.Err = errors.New("solana execution is not configured")
		} else {
			o.TxHashes, o.Err = h.solana.ExecuteTxns(ctx, p.SolanaTxns)
		}
		return []Outcome{h.finish(ctx, kind, o)}
	}

	return []Outcome{h.finish(ctx, kind, Outcome{ChainID: p.ChainID, Err: errors.New("empty payload")})}
}

// finish logs and records o. Recording failures never change the outcome.
func (h *Handler) finish(ctx context.Context, kind string, o Outcome) Outcome {
	rec := &models.ExecutionRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		ChainID:   o.ChainID,
		TxHashes:  o.TxHashes,
		Success:   o.Err == nil,
		Fallback:  o.Fallback,
		CreatedAt: time.Now().UTC(),
	}
	fields := logrus.Fields{
		"kind":     kind,
		"chain":    o.ChainID.Name(),
		"index":    o.Index,
		"txs":      len(o.TxHashes),
		"fallback": o.Fallback,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
		o.Error = rec.Error
		h.logger.WithFields(fields).WithError(o.Err).Error("execution failed")
	} else {
		h.logger.WithFields(fields).Info("execution succeeded")
	}

	if h.store != nil {
		if err := h.store.InsertExecution(ctx, rec); err != nil {
			h.logger.WithError(err).WithField("id", rec.ID).Warn("failed to store execution record")
		}
	}
	if h.feed != nil {
		if err := h.feed.PublishExecution(ctx, rec); err != nil {
			h.logger.WithError(err).WithField("id", rec.ID).Warn("failed to publish execution record")
		}
	}
	return o
}
