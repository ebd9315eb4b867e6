package solver

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

// RevertPool builds the Solana revert transaction. *svmpool.Pool satisfies it.
type RevertPool interface {
	GetRevertOrderTx(ctx context.Context, order models.Order, orderHash [32]byte, orchestrator solana.PublicKey) (*solana.Transaction, error)
}

// RevertSigner is the part of signer.Signer needed to authorize a revert.
type RevertSigner interface {
	SignEvmDigest(ctx context.Context, digest []byte, sigName string) ([]byte, error)
	SolanaPublicKey() (solana.PublicKey, error)
	SignSolana(ctx context.Context, tx *solana.Transaction) error
}

// Reverter produces the orchestrator's authorization to cancel an order on
// its source chain.
type Reverter struct {
	pool   RevertPool
	signer RevertSigner
	logger *logrus.Logger
}

func NewReverter(pool RevertPool, s RevertSigner, logger *logrus.Logger) *Reverter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reverter{pool: pool, signer: s, logger: logger}
}

// Sign returns, for a Solana-sourced order, the base58 revert transaction
// carrying the orchestrator's signature, and otherwise a 0x-hex signature
// over the vault's revert digest.
func (r *Reverter) Sign(ctx context.Context, order models.Order) (string, error) {
	if err := validateRevertable(order); err != nil {
		return "", err
	}
	src, err := order.SrcChain()
	if err != nil {
		return "", errs.Validation(err.Error())
	}
	hash, err := evmvault.OrderHash(order)
	if err != nil {
		return "", errs.Validation(err.Error())
	}
	log := r.logger.WithFields(logrus.Fields{
		"seed":  order.Seed,
		"chain": src.Name(),
	})

	if !src.IsSolana() {
		digest, err := evmvault.RevertOrderDigest(order)
		if err != nil {
			return "", errs.Validation(err.Error())
		}
		sig, err := r.signer.SignEvmDigest(ctx, digest[:], "revertOrder")
		if err != nil {
			return "", errs.Execution("Failed to sign revert digest", err)
		}
		sig[crypto.RecoveryIDOffset] += 27
		log.Info("revert digest signed")
		return hexutil.Encode(sig), nil
	}

	if r.pool == nil {
		return "", errs.Validation("Solana pool not configured")
	}
	orch, err := r.signer.SolanaPublicKey()
	if err != nil {
		return "", errs.Validation(err.Error())
	}
	tx, err := r.pool.GetRevertOrderTx(ctx, order, hash, orch)
	if err != nil {
		return "", err
	}
	if err := r.signer.SignSolana(ctx, tx); err != nil {
		return "", errs.Execution("Failed to sign revert transaction", err)
	}
	out, err := solanaix.Serialize(tx)
	if err != nil {
		return "", err
	}
	log.Info("revert transaction signed")
	return out, nil
}

// validateRevertable rejects orders with an unusable receiver for their
// destination or with inconsistent amounts.
func validateRevertable(o models.Order) error {
	dest, err := o.DestChain()
	if err != nil {
		return errs.Validation(err.Error())
	}
	if dest.IsSolana() {
		pk, err := address.HexToPublicKey(o.Receiver)
		if err != nil || pk.IsZero() {
			return errs.Validation("Invalid Solana receiver address")
		}
	} else if addr, err := address.Bytes32ToAddress(o.Receiver); err != nil || addr == (common.Address{}) {
		return errs.Validation("Invalid EVM receiver address")
	}

	amountIn, ok := new(big.Int).SetString(o.AmountIn, 10)
	if !ok || amountIn.Sign() <= 0 {
		return errs.Validation("Invalid amountIn or fee")
	}
	fee, ok := new(big.Int).SetString(o.Fee, 10)
	if !ok || fee.Sign() < 0 || fee.Cmp(amountIn) > 0 {
		return errs.Validation("Invalid amountIn or fee")
	}
	return nil
}
