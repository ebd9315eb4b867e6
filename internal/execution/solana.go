package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/signer"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

type SolanaConfig struct {
	Signer        signer.Signer
	FallbackDelay time.Duration
	Logger        *logrus.Logger
}

// SolanaExecutor co-signs Solana transaction sets with the orchestrator key
// and submits them through the signer's broadcaster.
type SolanaExecutor struct {
	signer        signer.Signer
	fallbackDelay time.Duration
	logger        *logrus.Logger
}

func NewSolanaExecutor(cfg SolanaConfig) (*SolanaExecutor, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("execution: signer is required")
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = constants.FallbackDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &SolanaExecutor{
		signer:        cfg.Signer,
		fallbackDelay: cfg.FallbackDelay,
		logger:        cfg.Logger,
	}, nil
}

type SolanaResult struct {
	Signatures []string
	Fallback   bool
}

// ExecuteTxns submits base58 transactions as one unit, without fallback.
func (e *SolanaExecutor) ExecuteTxns(ctx context.Context, encoded []string) ([]string, error) {
	txs, err := decodeAll(encoded)
	if err != nil {
		return nil, err
	}
	sigs, err := e.signer.SignAndBroadcastSolana(ctx, txs)
	if err != nil {
		return nil, errs.Execution("Failed to execute solana transactions", err)
	}
	return sigs, nil
}

// Execute runs the full transaction set. If it fails, it waits for the
// fallback delay and retries with the first transaction followed by the
// fallback transaction.
func (e *SolanaExecutor) Execute(ctx context.Context, set models.SolanaTxnSet) (*SolanaResult, error) {
	if len(set.TxnsToExecute) == 0 {
		return nil, errs.Validation("empty solana transaction set")
	}

	sigs, primaryErr := e.ExecuteTxns(ctx, set.TxnsToExecute)
	if primaryErr == nil {
		return &SolanaResult{Signatures: sigs}, nil
	}
	if set.FallbackTxn == "" {
		return nil, primaryErr
	}

	e.logger.WithError(primaryErr).WithField("txns", len(set.TxnsToExecute)).
		Warn("solana transaction set failed, retrying with fallback")

	select {
	case <-time.After(e.fallbackDelay):
	case <-ctx.Done():
		return nil, errs.Execution("Execution failed for both transaction sets.", errors.Join(primaryErr, ctx.Err()))
	}

	sigs, fallbackErr := e.ExecuteTxns(ctx, []string{set.TxnsToExecute[0], set.FallbackTxn})
	if fallbackErr != nil {
		return nil, errs.Execution("Execution failed for both transaction sets.", errors.Join(primaryErr, fallbackErr))
	}
	return &SolanaResult{Signatures: sigs, Fallback: true}, nil
}

func decodeAll(encoded []string) ([]*solana.Transaction, error) {
	txs := make([]*solana.Transaction, 0, len(encoded))
	for i, s := range encoded {
		tx, err := solanaix.Deserialize(s)
		if err != nil {
			return nil, errs.Validation(fmt.Sprintf("transaction %d: %v", i, err))
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
