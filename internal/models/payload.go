package models

import (
	"math/big"
	"time"
)

// SolanaTxnSet is what the execution layer needs to fill one order on Solana:
// the full set of base58 versioned transactions, plus a minimal stablecoin
// transfer used when the full set fails. Err is set instead when the set
// could not be built.
type SolanaTxnSet struct {
	TxnsToExecute []string     `json:"txnsToExecute,omitempty"`
	FallbackTxn   string       `json:"fallbackTxn,omitempty"`
	Err           *ErrorResult `json:"error,omitempty"`
}

// ErrorResult is the structured error returned for best-effort batch items.
type ErrorResult struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func NewErrorResult(err error) *ErrorResult {
	return &ErrorResult{Status: "error", Error: err.Error()}
}

// ChainPayload is the executable output for one chain.
// Exactly one of Evm, Solana, SolanaTxns or Err is set.
type ChainPayload struct {
	ChainID    ChainID           `json:"chainId"`
	Evm        *EvmArbitraryCall `json:"transaction,omitempty"`
	Solana     []SolanaTxnSet    `json:"solanaTransactions,omitempty"`
	SolanaTxns []string          `json:"solanaTxns,omitempty"`
	Err        *ErrorResult      `json:"error,omitempty"`
}

func (p ChainPayload) Failed() bool { return p.Err != nil }

// VaultSnapshot is a point-in-time view of one chain's vault liquidity.
// Amounts are in the chain's native stablecoin base units.
type VaultSnapshot struct {
	Network             ChainID  `json:"network"`
	Stablecoin          string   `json:"stablecoin"`
	Decimals            int      `json:"decimals"`
	VaultBalance        *big.Int `json:"vaultBalance"`
	AvailableBalance    *big.Int `json:"availableBalance"`
	HighestStakedAmount *big.Int `json:"highestStakedAmount"`
}

// RebalanceAction moves Amount (source-chain base units) between two vaults.
type RebalanceAction struct {
	SourceNetwork ChainID `json:"sourceNetwork"`
	TargetNetwork ChainID `json:"targetNetwork"`
	Amount        string  `json:"amount"`
}

// RebalancingInstructions is the signed body of a rebalancing plan.
// Timestamp is in milliseconds since the epoch.
type RebalancingInstructions struct {
	Actions                []RebalanceAction `json:"actions"`
	FinalAvailableBalances map[string]string `json:"finalAvailableBalances"`
	Timestamp              int64             `json:"timestamp"`
	Env                    Environment       `json:"env"`
}

// SignedInstructionSet carries the instructions, the exact bytes that were
// signed and an EIP-191 signature over them.
type SignedInstructionSet struct {
	Data            RebalancingInstructions `json:"data"`
	DataStringified string                  `json:"dataStringified"`
	Signature       string                  `json:"signature"`
}

// ExecutionRecord is the audit entry written for every execution attempt.
type ExecutionRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ChainID   ChainID   `json:"chainId"`
	TxHashes  []string  `json:"txHashes"`
	Success   bool      `json:"success"`
	Fallback  bool      `json:"fallback"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
