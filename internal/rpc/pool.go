package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
)

// Pool is an ordered list of endpoints for one chain. Reads go to the first
// endpoint and fall through to the next one on any failure.
type Pool struct {
	clients []*Client
	logger  *logrus.Logger
}

// NewPool builds one Client per url, sharing cfg's retry and timeout settings.
func NewPool(urls []string, cfg ClientConfig) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("rpc pool: no endpoints configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	clients := make([]*Client, 0, len(urls))
	for _, u := range urls {
		c := cfg
		c.BaseURL = u
		clients = append(clients, NewClient(c))
	}
	return &Pool{clients: clients, logger: cfg.Logger}, nil
}

// URLs returns the endpoints in failover order.
func (p *Pool) URLs() []string {
	out := make([]string, len(p.clients))
	for i, c := range p.clients {
		out[i] = c.URL()
	}
	return out
}

// Do runs fn against each endpoint in order until one succeeds. The error
// is a ChainRead error only once every endpoint has failed.
func (p *Pool) Do(ctx context.Context, op string, fn func(ctx context.Context, c *Client) error) error {
	var failures []error
	for _, c := range p.clients {
		err := fn(ctx, c)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.WithFields(logrus.Fields{
			"op":  op,
			"url": c.URL(),
		}).WithError(err).Warn("rpc endpoint failed, trying next")
		failures = append(failures, fmt.Errorf("%s: %w", c.URL(), err))
	}
	return errs.ChainRead(fmt.Sprintf("%s failed on every endpoint", op), errors.Join(failures...))
}

// Call is Do for a single JSON-RPC method whose envelope decodes into result.
func (p *Pool) Call(ctx context.Context, method string, params interface{}, result Envelope) error {
	return p.Do(ctx, method, func(ctx context.Context, c *Client) error {
		result.Reset()
		if err := c.Call(ctx, method, params, result); err != nil {
			return err
		}
		if e := result.RPCErr(); e != nil {
			return e
		}
		return nil
	})
}
