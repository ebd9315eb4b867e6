package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
)

type result struct {
	name string
	resp *Response
	err  error
}

// Multi fans a request out to several providers at once.
type Multi struct {
	quoters []Quoter
	logger  *logrus.Logger
}

func NewMulti(logger *logrus.Logger, quoters ...Quoter) *Multi {
	if logger == nil {
		logger = logrus.New()
	}
	return &Multi{quoters: quoters, logger: logger}
}

func (m *Multi) fanOut(ctx context.Context, req Request) <-chan result {
	out := make(chan result, len(m.quoters))
	for _, q := range m.quoters {
		go func(q Quoter) {
			resp, err := q.FetchQuote(ctx, req)
			if err == nil && resp == nil {
				err = fmt.Errorf("empty quote")
			}
			out <- result{name: q.Name(), resp: resp, err: err}
		}(q)
	}
	return out
}

// Race returns the first successful quote and cancels the others.
func (m *Multi) Race(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := m.fanOut(ctx, req)
	var failures []error
	for range m.quoters {
		r := <-results
		if r.err != nil {
			m.logger.WithError(r.err).WithField("provider", r.name).Debug("quote provider failed")
			failures = append(failures, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		if r.resp.Provider == "" {
			r.resp.Provider = r.name
		}
		return r.resp, nil
	}
	return nil, errs.Execution("No quote found", errors.Join(failures...))
}

// Best waits for every provider and returns the quote with the largest
// amountOut.
func (m *Multi) Best(ctx context.Context, req Request) (*Response, error) {
	results := m.fanOut(ctx, req)

	var (
		best     *Response
		bestOut  *big.Int
		failures []error
	)
	for range m.quoters {
		r := <-results
		if r.err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		out, ok := new(big.Int).SetString(r.resp.AmountOut, 10)
		if !ok {
			out = new(big.Int)
		}
		if best == nil || out.Cmp(bestOut) > 0 {
			if r.resp.Provider == "" {
				r.resp.Provider = r.name
			}
			best, bestOut = r.resp, out
		}
	}
	if best == nil {
		return nil, errs.Execution("No quote found", errors.Join(failures...))
	}
	m.logger.WithFields(logrus.Fields{
		"provider":   best.Provider,
		"amount_out": best.AmountOut,
	}).Debug("best quote selected")
	return best, nil
}

// Strategy adapts a Multi into a Quoter using Race or Best.
type Strategy struct {
	multi *Multi
	best  bool
}

func RaceQuoter(m *Multi) Quoter { return Strategy{multi: m} }
func BestQuoter(m *Multi) Quoter { return Strategy{multi: m, best: true} }

func (s Strategy) Name() string {
	if s.best {
		return "best"
	}
	return "race"
}

func (s Strategy) FetchQuote(ctx context.Context, req Request) (*Response, error) {
	if s.best {
		return s.multi.Best(ctx, req)
	}
	return s.multi.Race(ctx, req)
}
