package quote

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/genius-solver/internal/jupiter"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// JupiterQuoter serves same-chain Solana swaps. The swap settles into the
// From account's token account; moving the output on is left to the caller.
type JupiterQuoter struct {
	client  *jupiter.Client
	builder *jupiter.TxBuilder
}

func NewJupiterQuoter(client *jupiter.Client, builder *jupiter.TxBuilder) *JupiterQuoter {
	return &JupiterQuoter{client: client, builder: builder}
}

func (q *JupiterQuoter) Name() string { return "jupiter" }

func (q *JupiterQuoter) FetchQuote(ctx context.Context, req Request) (*Response, error) {
	if req.NetworkIn != models.ChainSolana || req.NetworkOut != models.ChainSolana {
		return nil, fmt.Errorf("jupiter only quotes solana to solana swaps")
	}
	user, err := solana.PublicKeyFromBase58(req.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", req.From, err)
	}

	jq, err := q.client.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   req.TokenIn,
		OutputMint:  req.TokenOut,
		Amount:      req.AmountIn,
		SlippageBps: slippageBps(req.Slippage),
	})
	if err != nil {
		return nil, err
	}

	tx, err := q.builder.BuildSwapTx(ctx, jupiter.SwapTxParams{Quote: jq, User: user})
	if err != nil {
		return nil, err
	}

	return &Response{
		Provider:            q.Name(),
		AmountOut:           jq.OutAmount,
		SvmExecutionPayload: []string{tx},
	}, nil
}

// slippageBps converts a percentage to basis points, at least 1.
func slippageBps(pct float64) uint16 {
	bps := math.Round(pct * 100)
	switch {
	case bps < 1:
		return 1
	case bps > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(bps)
}
