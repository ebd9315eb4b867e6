package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

// SendOptions configures transaction sending behavior
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          *int
}

// DefaultSendOptions returns recommended send settings
func DefaultSendOptions() SendOptions {
	maxRetries := 3
	return SendOptions{
		SkipPreflight:       false,
		PreflightCommitment: "processed",
		MaxRetries:          &maxRetries,
	}
}

func (w *Wallet) sendOptions() SendOptions {
	opts := DefaultSendOptions()
	opts.SkipPreflight = w.cfg.SkipPreflight
	opts.PreflightCommitment = w.cfg.PreflightCommitment
	return opts
}

// SendTx submits an already signed transaction through the RPC pool.
func (w *Wallet) SendTx(ctx context.Context, tx *solana.Transaction, opts *SendOptions) (string, error) {
	if w.rpc == nil {
		return "", fmt.Errorf("wallet: no rpc configured")
	}
	if opts == nil {
		o := w.sendOptions()
		opts = &o
	}

	encodedTx, err := solanaix.SerializeBase64(tx)
	if err != nil {
		return "", err
	}

	cfg := map[string]any{
		"encoding":            "base64",
		"skipPreflight":       opts.SkipPreflight,
		"preflightCommitment": opts.PreflightCommitment,
	}
	if opts.MaxRetries != nil {
		cfg["maxRetries"] = *opts.MaxRetries
	}

	var resp rpc.Response[string]
	if err := w.rpc.Call(ctx, "sendTransaction", []any{encodedTx, cfg}, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}
	return resp.Result, nil
}

// SendAll signs and sends txs one after another, stopping at the first
// failure. It is the submission path when bundles are disabled.
func (w *Wallet) SendAll(ctx context.Context, txs []*solana.Transaction) ([]string, error) {
	sigs := make([]string, 0, len(txs))
	for i, tx := range txs {
		if err := w.SignTx(tx); err != nil {
			return sigs, fmt.Errorf("tx %d: %w", i, err)
		}
		sig, err := w.SendTx(ctx, tx, nil)
		if err != nil {
			return sigs, fmt.Errorf("tx %d: %w", i, err)
		}
		w.logger.WithFields(logrus.Fields{
			"index":     i,
			"signature": sig,
		}).Info("solana transaction sent")
		if err := w.ConfirmTransaction(ctx, sig, w.cfg.DefaultCommitment, 60*time.Second); err != nil {
			return sigs, fmt.Errorf("tx %d: %w", i, err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// ConfirmTransaction polls for transaction confirmation
func (w *Wallet) ConfirmTransaction(
	ctx context.Context,
	signature string,
	commitment string,
	timeout time.Duration,
) error {

	deadline := time.Now().Add(timeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		confirmed, err := w.checkSignatureStatus(ctx, signature, commitment)
		if err != nil {
			return fmt.Errorf("failed to check signature: %w", err)
		}

		if confirmed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return fmt.Errorf("transaction confirmation timeout after %v", timeout)
}

type signatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

func (w *Wallet) checkSignatureStatus(ctx context.Context, signature string, commitment string) (bool, error) {
	var resp rpc.Response[rpc.ContextValue[[]*signatureStatus]]

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}

	if err := w.rpc.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return false, err
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil || resp.Result.Value[0].ConfirmationStatus == "" {
		return false, nil
	}

	status := resp.Result.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction failed: %v", status.Err)
	}

	switch commitment {
	case "confirmed":
		return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
	case "finalized":
		return status.ConfirmationStatus == "finalized", nil
	default:
		return true, nil
	}
}
