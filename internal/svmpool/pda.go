package svmpool

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

var (
	seedGlobalState  = []byte("genius-global-state-seed")
	seedVault        = []byte("genius-vault")
	seedAsset        = []byte("asset-seed")
	seedOrchestrator = []byte("genius-orchestrator-seed")
	seedOrder        = []byte("genius-order")
)

// Addresses derives the program-derived addresses of one pool program. The
// fixed pool accounts are cached; per-order, per-orchestrator and per-owner
// addresses are derived on every call so the cache stays bounded.
type Addresses struct {
	programID solana.PublicKey

	mu    sync.Mutex
	cache map[string]solana.PublicKey
}

func NewAddresses(programID solana.PublicKey) *Addresses {
	return &Addresses{
		programID: programID,
		cache:     make(map[string]solana.PublicKey),
	}
}

func (a *Addresses) ProgramID() solana.PublicKey { return a.programID }

func (a *Addresses) GlobalState() (solana.PublicKey, error) {
	return a.cached("global", seedGlobalState)
}

func (a *Addresses) Vault() (solana.PublicKey, error) {
	return a.cached("vault", seedVault)
}

func (a *Addresses) Asset() (solana.PublicKey, error) {
	return a.cached("asset", seedAsset)
}

func (a *Addresses) OrchestratorState(orchestrator solana.PublicKey) (solana.PublicKey, error) {
	return a.derive("orchestrator", orchestrator.Bytes(), seedOrchestrator)
}

func (a *Addresses) Order(orderHash [32]byte) (solana.PublicKey, error) {
	return a.derive("order", orderHash[:], seedOrder)
}

// ATA returns the associated token account of owner for mint.
func (a *Addresses) ATA(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return solanaix.FindAssociatedTokenAddress(owner, mint)
}

// cached derives a fixed pool address once.
func (a *Addresses) cached(name string, seed []byte) (solana.PublicKey, error) {
	a.mu.Lock()
	pk, ok := a.cache[name]
	a.mu.Unlock()
	if ok {
		return pk, nil
	}

	pk, err := a.derive(name, seed)
	if err != nil {
		return solana.PublicKey{}, err
	}

	a.mu.Lock()
	a.cache[name] = pk
	a.mu.Unlock()
	return pk, nil
}

func (a *Addresses) derive(name string, seeds ...[]byte) (solana.PublicKey, error) {
	pk, _, err := solana.FindProgramAddress(seeds, a.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive %s address: %w", name, err)
	}
	return pk, nil
}

func (a *Addresses) cacheLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}
