package models

import (
	"fmt"
	"strconv"
)

// Order is a cross-chain swap intent as recorded by the source-chain vault.
// Address-like fields are 32-byte values, either 0x-hex or base58.
// Amount fields are decimal strings in the source chain's base units.
type Order struct {
	Seed         string `json:"seed"`
	Trader       string `json:"trader"`
	Receiver     string `json:"receiver"`
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
	SrcChainID   string `json:"srcChainId"`
	DestChainID  string `json:"destChainId"`
	Fee          string `json:"fee"`
}

func (o Order) SrcChain() (ChainID, error) {
	return parseOrderChain(o.SrcChainID, "srcChainId")
}

func (o Order) DestChain() (ChainID, error) {
	return parseOrderChain(o.DestChainID, "destChainId")
}

func parseOrderChain(v, field string) (ChainID, error) {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, v)
	}
	return ChainID(n), nil
}

// OrderStatus mirrors the on-chain order lifecycle.
type OrderStatus uint8

const (
	OrderNonexistant OrderStatus = iota
	OrderCreated
	OrderFilled
	OrderReverted
)

// OrderStatusFromByte maps unknown discriminants to OrderNonexistant.
func OrderStatusFromByte(b uint8) OrderStatus {
	if b > uint8(OrderReverted) {
		return OrderNonexistant
	}
	return OrderStatus(b)
}

func (s OrderStatus) String() string {
	switch s {
	case OrderCreated:
		return "Created"
	case OrderFilled:
		return "Filled"
	case OrderReverted:
		return "Reverted"
	default:
		return "Nonexistant"
	}
}

// EvmArbitraryCall is a contract call to perform on an EVM chain.
type EvmArbitraryCall struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasPrice string `json:"gasPrice,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
}

// OrderWithCalls couples an order with the optional swap and post-fill calls
// the solver should attach when filling it.
type OrderWithCalls struct {
	Order         Order             `json:"order"`
	SwapCall      *EvmArbitraryCall `json:"swapCall,omitempty"`
	ArbitraryCall *EvmArbitraryCall `json:"arbitraryCall,omitempty"`
}
