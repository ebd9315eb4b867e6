package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

const (
	indexKey    = "switches:index"
	valuePrefix = "switches:chain:"
	maxReason   = 256
)

// Store implements storage.ChainGate.
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// ParseChain resolves a chain id or network name to a supported chain.
func ParseChain(s string) (models.ChainID, error) {
	chain, err := models.ParseChainID(s)
	if err != nil {
		return 0, fmt.Errorf("invalid chain: %w", err)
	}
	if !chain.IsSupported() {
		return 0, fmt.Errorf("invalid chain: %d is not supported", chain)
	}
	return chain, nil
}

func (s *Store) Set(ctx context.Context, chain models.ChainID, enabled bool, reason string) (*Switch, error) {
	if !chain.IsSupported() {
		return nil, errs.Validation(fmt.Sprintf("invalid chain: %d is not supported", chain))
	}
	if len(reason) > maxReason {
		return nil, errs.Validation(fmt.Sprintf("reason longer than %d bytes", maxReason))
	}

	sw := &Switch{
		Chain:     chain,
		Name:      chain.Name(),
		Enabled:   enabled,
		Reason:    reason,
		UpdatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(sw)
	if err != nil {
		return nil, fmt.Errorf("marshal switch: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, switchKey(chain), b, 0)
	pipe.SAdd(ctx, indexKey, chain.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("set switch: %w", err)
	}
	return sw, nil
}

func (s *Store) Get(ctx context.Context, chain models.ChainID) (*Switch, error) {
	val, err := s.client.Get(ctx, switchKey(chain)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get switch: %w", err)
	}

	var sw Switch
	if err := json.Unmarshal([]byte(val), &sw); err != nil {
		return nil, fmt.Errorf("unmarshal switch: %w", err)
	}
	return &sw, nil
}

// ChainEnabled reports false only for a chain explicitly switched off.
func (s *Store) ChainEnabled(ctx context.Context, chain models.ChainID) (bool, error) {
	sw, err := s.Get(ctx, chain)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return sw.Enabled, nil
}

// List returns every stored switch ordered by chain id.
func (s *Store) List(ctx context.Context) ([]*Switch, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list switches index: %w", err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			continue
		}
		keys = append(keys, switchKey(models.ChainID(n)))
	}
	if len(keys) == 0 {
		return []*Switch{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget switches: %w", err)
	}

	out := make([]*Switch, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var sw Switch
		if err := json.Unmarshal([]byte(str), &sw); err != nil {
			continue
		}
		out = append(out, &sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chain < out[j].Chain })
	return out, nil
}

// Delete removes the switch, re-enabling the chain.
func (s *Store) Delete(ctx context.Context, chain models.ChainID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, switchKey(chain))
	pipe.SRem(ctx, indexKey, chain.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete switch: %w", err)
	}
	return nil
}

func switchKey(chain models.ChainID) string {
	return valuePrefix + chain.String()
}
