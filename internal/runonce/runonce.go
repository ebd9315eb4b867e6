// Package runonce executes keyed side effects at most once. The first caller
// for a key runs the function; concurrent callers wait for its outcome and
// later callers receive the completed result. Failed runs are not retained,
// so a retry under the same key executes again.
package runonce

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Store persists completed results so that separate processes sharing the
// store observe the same outcome for a key. Save keeps the first value
// written for a key and returns whichever value is stored after the call.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, val []byte) ([]byte, error)
}

type call struct {
	done chan struct{}
	at   time.Time
	val  []byte
	err  error
}

func (c *call) expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	select {
	case <-c.done:
		return now.Sub(c.at) > ttl
	default:
		return false
	}
}

type Group struct {
	mu        sync.Mutex
	calls     map[string]*call
	store     Store
	ttl       time.Duration
	lastSweep time.Time
	logger    *logrus.Logger
}

type Option func(*Group)

// WithTTL bounds how long a completed result is retained in process.
// Zero keeps results until Forget.
func WithTTL(ttl time.Duration) Option {
	return func(g *Group) { g.ttl = ttl }
}

// New returns a Group. store may be nil for a purely in-process group.
func New(store Store, logger *logrus.Logger, opts ...Option) *Group {
	if logger == nil {
		logger = logrus.New()
	}
	g := &Group{
		calls:  make(map[string]*call),
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs fn once for key and returns its result to every caller.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	now := time.Now()
	g.mu.Lock()
	g.sweep(now)
	if c, ok := g.calls[key]; ok && !c.expired(g.ttl, now) {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = g.execute(ctx, key, fn)
	c.at = time.Now()
	close(c.done)

	if c.err != nil {
		g.mu.Lock()
		if g.calls[key] == c {
			delete(g.calls, key)
		}
		g.mu.Unlock()
	}
	return c.val, c.err
}

func (g *Group) execute(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if g.store != nil {
		val, ok, err := g.store.Load(ctx, key)
		if err != nil {
			g.logger.WithError(err).WithField("key", key).Warn("run-once store load failed")
		} else if ok {
			return val, nil
		}
	}

	val, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if g.store == nil {
		return val, nil
	}
	stored, err := g.store.Save(ctx, key, val)
	if err != nil {
		g.logger.WithError(err).WithField("key", key).Warn("run-once store save failed")
		return val, nil
	}
	// another process finished first; its result is the one every caller sees
	return stored, nil
}

// sweep drops expired results at most once per ttl. Callers hold g.mu.
func (g *Group) sweep(now time.Time) {
	if g.ttl <= 0 || now.Sub(g.lastSweep) < g.ttl {
		return
	}
	g.lastSweep = now
	for k, c := range g.calls {
		if c.expired(g.ttl, now) {
			delete(g.calls, k)
		}
	}
}

// Forget drops the retained result for key.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}

// Len returns the number of in-flight or retained keys.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Run is Do for any JSON-encodable result type.
func Run[T any](ctx context.Context, g *Group, key string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := g.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode run-once result for %s: %w", key, err)
	}
	return out, nil
}
