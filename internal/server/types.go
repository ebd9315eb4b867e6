package server

import (
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/rebalance"
	"github.com/aman-zulfiqar/genius-solver/internal/solver"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse reports the service and its dependencies
type HealthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"` // "ok" or the failure, per dependency
}

// OrderRequest wraps a single order
type OrderRequest struct {
	Order models.Order `json:"order"`
}

// OrderHashResponse carries the vault order hash and the digest signed to revert it
type OrderHashResponse struct {
	OrderHash    string `json:"orderHash"`
	RevertDigest string `json:"revertDigest"`
}

// OrderStatusRequest asks for the on-chain status of a batch of orders
type OrderStatusRequest struct {
	Orders []models.Order `json:"orders"`
}

// RevertResponse carries the orchestrator authorization for cancelling an order
type RevertResponse struct {
	Seed      string `json:"seed"`
	Signature string `json:"signature"`
}

// FillRequest is a solver batch; Execute broadcasts the resulting payloads
type FillRequest struct {
	solver.Request
	Execute bool `json:"execute"`
}

// FillResponse returns the payloads, the rejected orders and, when
// executed, one outcome per broadcast unit
type FillResponse struct {
	Payloads []models.ChainPayload `json:"payloads"`
	Rejected []solver.Rejection    `json:"rejected,omitempty"`
	Outcomes []execution.Outcome   `json:"outcomes,omitempty"`
}

// InstructionsRequest holds the target share of liquidity per vault; an
// empty list splits liquidity evenly
type InstructionsRequest struct {
	Ratios []float64 `json:"ratios"`
}

// RebalanceExecuteRequest selects a batch of a signed instruction set
type RebalanceExecuteRequest struct {
	Instructions models.SignedInstructionSet `json:"instructions"`
	Batch        rebalance.Batch             `json:"batch"`
	Execute      bool                        `json:"execute"`
}

// RebalanceExecuteResponse mirrors FillResponse for rebalancing actions
type RebalanceExecuteResponse struct {
	Payloads []models.ChainPayload `json:"payloads"`
	Outcomes []execution.Outcome   `json:"outcomes,omitempty"`
}

// SwitchRequest enables or pauses fills towards a chain
type SwitchRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}
