package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// EthEndpoint is a dialed EVM JSON-RPC endpoint.
type EthEndpoint struct {
	URL    string
	Client *ethclient.Client
}

// Registry owns the per-chain endpoint lists and the clients built from them.
// It is constructed once at startup and passed to the components that read
// chain state.
type Registry struct {
	cfg  ClientConfig
	urls map[models.ChainID][]string

	mu    sync.Mutex
	pools map[models.ChainID]*Pool
	eth   map[models.ChainID][]EthEndpoint
}

func NewRegistry(urls map[models.ChainID][]string, cfg ClientConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cp := make(map[models.ChainID][]string, len(urls))
	for k, v := range urls {
		cp[k] = append([]string(nil), v...)
	}
	return &Registry{
		cfg:   cfg,
		urls:  cp,
		pools: make(map[models.ChainID]*Pool),
		eth:   make(map[models.ChainID][]EthEndpoint),
	}
}

// URLs returns the configured endpoints for chain in failover order.
func (r *Registry) URLs(chain models.ChainID) []string {
	return append([]string(nil), r.urls[chain]...)
}

// Pool returns the JSON-RPC pool for chain, building it on first use.
func (r *Registry) Pool(chain models.ChainID) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[chain]; ok {
		return p, nil
	}
	p, err := NewPool(r.urls[chain], r.cfg)
	if err != nil {
		return nil, fmt.Errorf("chain %d: %w", chain, err)
	}
	r.pools[chain] = p
	return p, nil
}

// Eth returns dialed go-ethereum clients for chain, in failover order.
func (r *Registry) Eth(ctx context.Context, chain models.ChainID) ([]EthEndpoint, error) {
	if chain.IsSolana() {
		return nil, fmt.Errorf("chain %d is not an EVM chain", chain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if eps, ok := r.eth[chain]; ok {
		return eps, nil
	}

	urls := r.urls[chain]
	if len(urls) == 0 {
		return nil, fmt.Errorf("chain %d: no endpoints configured", chain)
	}

	eps := make([]EthEndpoint, 0, len(urls))
	for _, u := range urls {
		c, err := ethclient.DialContext(ctx, u)
		if err != nil {
			r.cfg.Logger.WithError(err).WithField("url", u).Warn("failed to dial evm endpoint")
			continue
		}
		eps = append(eps, EthEndpoint{URL: u, Client: c})
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("chain %d: no evm endpoint could be dialed", chain)
	}
	r.eth[chain] = eps
	return eps, nil
}

// Close releases every dialed EVM client.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eps := range r.eth {
		for _, ep := range eps {
			ep.Client.Close()
		}
	}
	r.eth = make(map[models.ChainID][]EthEndpoint)
	return nil
}
