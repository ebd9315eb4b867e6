// Package signer abstracts the custody of the orchestrator keys. Everything
// that needs a signature is written against Signer; RawKey is the local
// backend used when the keys are held by the process itself.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/jito"
	"github.com/aman-zulfiqar/genius-solver/internal/wallet"
)

// ErrNoSolanaKey is returned by Solana operations when no Solana key is held.
var ErrNoSolanaKey = fmt.Errorf("no solana orchestrator key configured")

type Signer interface {
	EvmAddress() common.Address
	// SignEvmDigest signs a 32-byte digest and returns r || s || v with v in
	// {0, 1}. sigName identifies the logical signature so a custody backend
	// can deduplicate repeated requests.
	SignEvmDigest(ctx context.Context, digest []byte, sigName string) ([]byte, error)
	// SignPersonalMessage returns a 0x-hex EIP-191 signature with v in {27, 28}.
	SignPersonalMessage(ctx context.Context, msg []byte) (string, error)
	SolanaPublicKey() (solana.PublicKey, error)
	SignSolana(ctx context.Context, tx *solana.Transaction) error
	SignAndBroadcastSolana(ctx context.Context, txs []*solana.Transaction) ([]string, error)
}

// Bundler submits co-signed Solana transactions. *jito.Client satisfies it.
type Bundler interface {
	SendBundle(ctx context.Context, txs []*solana.Transaction, payer jito.Payer) ([]string, error)
}

type RawKeyConfig struct {
	EvmPrivateKey string // hex, with or without 0x
	Wallet        *wallet.Wallet
	// Bundler is optional; without it transactions go through the wallet's
	// RPC pool one by one.
	Bundler Bundler
	Logger  *logrus.Logger
}

// RawKey signs with keys held in process memory.
type RawKey struct {
	evmKey  *ecdsa.PrivateKey
	evmAddr common.Address
	wallet  *wallet.Wallet
	bundler Bundler
	logger  *logrus.Logger
}

func NewRawKey(cfg RawKeyConfig) (*RawKey, error) {
	hexKey := strings.TrimPrefix(strings.TrimSpace(cfg.EvmPrivateKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("signer: evm private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signer: failed to parse private key: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &RawKey{
		evmKey:  key,
		evmAddr: crypto.PubkeyToAddress(key.PublicKey),
		wallet:  cfg.Wallet,
		bundler: cfg.Bundler,
		logger:  cfg.Logger,
	}, nil
}

func (r *RawKey) EvmAddress() common.Address { return r.evmAddr }

func (r *RawKey) SignEvmDigest(_ context.Context, digest []byte, sigName string) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("signer: digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, r.evmKey)
	if err != nil {
		return nil, fmt.Errorf("signer: %s: %w", sigName, err)
	}
	r.logger.WithField("sig_name", sigName).Debug("evm digest signed")
	return sig, nil
}

func (r *RawKey) SignPersonalMessage(ctx context.Context, msg []byte) (string, error) {
	sig, err := r.SignEvmDigest(ctx, accounts.TextHash(msg), "personalSign")
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func (r *RawKey) SolanaPublicKey() (solana.PublicKey, error) {
	if r.wallet == nil {
		return solana.PublicKey{}, ErrNoSolanaKey
	}
	return r.wallet.PublicKey(), nil
}

func (r *RawKey) SignSolana(_ context.Context, tx *solana.Transaction) error {
	if r.wallet == nil {
		return ErrNoSolanaKey
	}
	return r.wallet.SignTx(tx)
}

func (r *RawKey) SignAndBroadcastSolana(ctx context.Context, txs []*solana.Transaction) ([]string, error) {
	if r.wallet == nil {
		return nil, ErrNoSolanaKey
	}
	for i, tx := range txs {
		if err := r.wallet.SignTx(tx); err != nil {
			return nil, fmt.Errorf("signer: tx %d: %w", i, err)
		}
	}
	if r.bundler != nil {
		return r.bundler.SendBundle(ctx, txs, r.wallet)
	}
	return r.wallet.SendAll(ctx, txs)
}

// RecoverPersonalSigner returns the address that produced an EIP-191
// signature over msg. v may be 0/1 or 27/28.
func RecoverPersonalSigner(msg []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
