// Package quote fetches bridge and swap quotes with ready-to-execute
// payloads for the settlement and rebalancing flows.
package quote

import (
	"context"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// Authority names the accounts allowed to act on a bridged order on each
// side, for providers that support it.
type Authority struct {
	NetworkInAddress  string `json:"networkInAddress"`
	NetworkOutAddress string `json:"networkOutAddress"`
}

// Request is the provider-independent quote request. AmountIn is in tokenIn
// base units and Slippage is a percentage.
type Request struct {
	NetworkIn  models.ChainID `json:"networkIn"`
	NetworkOut models.ChainID `json:"networkOut"`
	TokenIn    string         `json:"tokenIn"`
	TokenOut   string         `json:"tokenOut"`
	AmountIn   string         `json:"amountIn"`
	From       string         `json:"from"`
	Receiver   string         `json:"receiver"`
	Slippage   float64        `json:"slippage"`
	Authority  *Authority     `json:"authority,omitempty"`
}

type EvmExecutionPayload struct {
	TransactionData models.EvmArbitraryCall `json:"transactionData"`
	// ApprovalTarget is the spender that needs an allowance on tokenIn, if any.
	ApprovalTarget string `json:"approvalTarget,omitempty"`
}

// Response carries at most one of the two payloads, depending on the
// source chain.
type Response struct {
	Provider            string               `json:"protocol"`
	AmountOut           string               `json:"amountOut"`
	EvmExecutionPayload *EvmExecutionPayload `json:"evmExecutionPayload,omitempty"`
	SvmExecutionPayload []string             `json:"svmExecutionPayload,omitempty"`
}

type Quoter interface {
	Name() string
	FetchQuote(ctx context.Context, req Request) (*Response, error)
}
