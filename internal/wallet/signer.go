package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

type WalletConfig struct {
	PrivateKey string // base58-encoded 64-byte key OR solana-keygen JSON array

	RPC                 *rpc.Pool
	DefaultCommitment   string // e.g. "confirmed"
	SkipPreflight       bool
	PreflightCommitment string // e.g. "processed"
	Logger              *logrus.Logger
}

// Wallet is the orchestrator's Solana keypair. It co-signs transactions that
// other parties may already have partially signed.
type Wallet struct {
	cfg    WalletConfig
	rpc    *rpc.Pool
	priv   solana.PrivateKey
	pub    solana.PublicKey
	logger *logrus.Logger
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.DefaultCommitment == "" {
		cfg.DefaultCommitment = "confirmed"
	}
	if cfg.PreflightCommitment == "" {
		cfg.PreflightCommitment = "processed"
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	priv, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		cfg:    cfg,
		rpc:    cfg.RPC,
		priv:   priv,
		pub:    priv.PublicKey(),
		logger: cfg.Logger,
	}, nil
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

// SignTx adds the wallet's signature, keeping signatures already present.
func (w *Wallet) SignTx(tx *solana.Transaction) error {
	return solanaix.Sign(tx, w.priv)
}

// SignSerialized co-signs a base58 transaction and returns it re-encoded.
func (w *Wallet) SignSerialized(encoded string) (string, error) {
	tx, err := solanaix.Deserialize(encoded)
	if err != nil {
		return "", err
	}
	if err := w.SignTx(tx); err != nil {
		return "", err
	}
	return solanaix.Serialize(tx)
}

func (w *Wallet) GetBalanceSOL(ctx context.Context) (float64, error) {
	if w.rpc == nil {
		return 0, fmt.Errorf("wallet: no rpc configured")
	}
	var resp rpc.Response[rpc.ContextValue[uint64]]

	params := []any{
		w.pub.String(),
		map[string]any{"commitment": w.cfg.DefaultCommitment},
	}

	if err := w.rpc.Call(ctx, "getBalance", params, &resp); err != nil {
		return 0, fmt.Errorf("getBalance RPC failed: %w", err)
	}

	return float64(resp.Result.Value) / 1e9, nil
}

// ParsePrivateKey accepts a base58 secret key or a solana-keygen JSON array.
func ParsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
