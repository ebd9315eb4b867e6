package jupiter

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

const (
	SwapComputeUnitLimit = uint32(600_000)
	MaxTxBytes           = 1232
)

// FeeEstimator returns a per-compute-unit price in micro-lamports.
// *rpc.Pool satisfies it against a Helius endpoint.
type FeeEstimator interface {
	GetPriorityFeeEstimate(ctx context.Context, accountKeys []string, level string) (float64, error)
}

type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context, commitment ...string) (solana.Hash, error)
}

// TxBuilder assembles Jupiter swap instructions into a single v0
// transaction with an explicit compute budget.
type TxBuilder struct {
	client    *Client
	fees      FeeEstimator
	blockhash BlockhashSource
	logger    *logrus.Logger
}

func NewTxBuilder(client *Client, fees FeeEstimator, blockhash BlockhashSource, logger *logrus.Logger) *TxBuilder {
	if logger == nil {
		logger = logrus.New()
	}
	return &TxBuilder{client: client, fees: fees, blockhash: blockhash, logger: logger}
}

type SwapTxParams struct {
	Quote                   *QuoteResponse
	User                    solana.PublicKey
	DestinationTokenAccount *solana.PublicKey
}

// BuildSwapTx returns the swap as an unsigned base58 transaction paid by
// the user.
func (b *TxBuilder) BuildSwapTx(ctx context.Context, p SwapTxParams) (string, error) {
	req := SwapInstructionsRequest{
		QuoteResponse:    p.Quote,
		UserPublicKey:    p.User.String(),
		WrapAndUnwrapSol: true,
	}
	if p.DestinationTokenAccount != nil {
		req.DestinationTokenAccount = p.DestinationTokenAccount.String()
	}

	swap, err := b.client.SwapInstructions(ctx, req)
	if err != nil {
		return "", err
	}
	if swap.SwapInstruction == nil {
		return "", fmt.Errorf("jupiter returned no swap instruction")
	}

	limitIx, err := computebudget.NewSetComputeUnitLimitInstruction(SwapComputeUnitLimit).ValidateAndBuild()
	if err != nil {
		return "", fmt.Errorf("build compute unit limit instruction: %w", err)
	}
	priceIx, err := computebudget.NewSetComputeUnitPriceInstruction(b.computeUnitPrice(ctx)).ValidateAndBuild()
	if err != nil {
		return "", fmt.Errorf("build compute unit price instruction: %w", err)
	}

	ixs := []solana.Instruction{limitIx, priceIx}
	for i, raw := range swap.SetupInstructions {
		ix, err := raw.decode()
		if err != nil {
			return "", fmt.Errorf("setup instruction %d: %w", i, err)
		}
		ixs = append(ixs, ix)
	}
	swapIx, err := swap.SwapInstruction.decode()
	if err != nil {
		return "", fmt.Errorf("swap instruction: %w", err)
	}
	ixs = append(ixs, swapIx)
	if swap.CleanupInstruction != nil {
		cleanupIx, err := swap.CleanupInstruction.decode()
		if err != nil {
			return "", fmt.Errorf("cleanup instruction: %w", err)
		}
		ixs = append(ixs, cleanupIx)
	}

	blockhash, err := b.blockhash.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	tx, err := solanaix.NewVersionedTx(ixs, blockhash, p.User)
	if err != nil {
		return "", err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	if len(raw) > MaxTxBytes {
		b.logger.WithField("bytes", len(raw)).Warn("jupiter swap transaction too large")
		return "", fmt.Errorf("Transaction byte length exceeds limit")
	}
	return solanaix.Serialize(tx)
}

// computeUnitPrice never fails; an unavailable estimate prices at zero.
func (b *TxBuilder) computeUnitPrice(ctx context.Context) uint64 {
	if b.fees == nil {
		return 0
	}
	fee, err := b.fees.GetPriorityFeeEstimate(ctx, []string{constants.JupiterProgramID}, "High")
	if err != nil {
		b.logger.WithError(err).Warn("priority fee estimate unavailable, using zero compute unit price")
		return 0
	}
	return uint64(math.Floor(fee))
}

func (ix Instruction) decode() (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", ix.ProgramID, err)
	}
	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid instruction data: %w", err)
	}
	metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", a.Pubkey, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}
	return solana.NewInstruction(programID, metas, data), nil
}
