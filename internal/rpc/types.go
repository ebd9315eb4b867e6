package rpc

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// Envelope is a decoded JSON-RPC response that may carry an error object
type Envelope interface {
	RPCErr() *RPCError
	Reset()
}

// Response is the generic JSON-RPC response envelope
type Response[T any] struct {
	Result T         `json:"result"`
	Error  *RPCError `json:"error"`
}

func (r *Response[T]) RPCErr() *RPCError { return r.Error }
func (r *Response[T]) Reset()            { *r = Response[T]{} }

// ContextValue wraps Solana results that are returned as {context, value}
type ContextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

// TokenAmount represents token balance information
type TokenAmount struct {
	Amount         string  `json:"amount"`
	Decimals       int     `json:"decimals"`
	UIAmountString string  `json:"uiAmountString"`
	UIAmount       float64 `json:"uiAmount"`
}

// AccountInfo is the base64-encoded account returned by getAccountInfo
type AccountInfo struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
}

// LatestBlockhash is the value of getLatestBlockhash
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// PriorityFeeLevels is the per-percentile answer of qn_estimatePriorityFees
type PriorityFeeLevels struct {
	PerComputeUnit struct {
		Extreme float64 `json:"extreme"`
		High    float64 `json:"high"`
		Medium  float64 `json:"medium"`
		Low     float64 `json:"low"`
	} `json:"per_compute_unit"`
}

// PriorityFeeEstimate is the answer of Helius getPriorityFeeEstimate
type PriorityFeeEstimate struct {
	PriorityFeeEstimate float64 `json:"priorityFeeEstimate"`
}
