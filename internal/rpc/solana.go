package rpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// GetAccountInfo returns the raw account data, or nil when the account does
// not exist.
func (p *Pool) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	var resp Response[ContextValue[*AccountInfo]]

	params := []any{
		pubkey.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}

	if err := p.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", pubkey, err)
	}

	info := resp.Result.Value
	if info == nil {
		return nil, nil
	}
	if len(info.Data) == 0 {
		return []byte{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(info.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", pubkey, err)
	}
	return raw, nil
}

// AccountExists reports whether getAccountInfo returns a value for pubkey.
func (p *Pool) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	data, err := p.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// GetTokenAccountBalance fetches the SPL token balance of a token account.
func (p *Pool) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*TokenAmount, error) {
	var resp Response[ContextValue[TokenAmount]]

	params := []any{
		account.String(),
		map[string]any{"commitment": "confirmed"},
	}

	if err := p.Call(ctx, "getTokenAccountBalance", params, &resp); err != nil {
		return nil, fmt.Errorf("getTokenAccountBalance %s: %w", account, err)
	}

	out := resp.Result.Value
	return &out, nil
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (p *Pool) GetLatestBlockhash(ctx context.Context, commitment ...string) (solana.Hash, error) {
	commitmentLevel := "confirmed"
	if len(commitment) > 0 && commitment[0] != "" {
		commitmentLevel = commitment[0]
	}

	var resp Response[ContextValue[LatestBlockhash]]
	params := []any{
		map[string]any{"commitment": commitmentLevel},
	}

	if err := p.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}
	return hash, nil
}

// GetPriorityFeeEstimate asks a Helius-compatible endpoint for a
// per-compute-unit fee for transactions touching accountKeys.
func (p *Pool) GetPriorityFeeEstimate(ctx context.Context, accountKeys []string, level string) (float64, error) {
	var resp Response[PriorityFeeEstimate]

	params := []any{
		map[string]any{
			"accountKeys": accountKeys,
			"options":     map[string]any{"priorityLevel": level},
		},
	}

	if err := p.Call(ctx, "getPriorityFeeEstimate", params, &resp); err != nil {
		return 0, fmt.Errorf("getPriorityFeeEstimate: %w", err)
	}
	return resp.Result.PriorityFeeEstimate, nil
}

// EstimatePriorityFees calls QuickNode's qn_estimatePriorityFees on a single
// endpoint.
func (c *Client) EstimatePriorityFees(ctx context.Context, lastNBlocks int) (*PriorityFeeLevels, error) {
	var resp Response[PriorityFeeLevels]

	params := map[string]any{
		"last_n_blocks": lastNBlocks,
		"api_version":   2,
	}

	if err := c.Call(ctx, "qn_estimatePriorityFees", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp.Result, nil
}
