package evmvault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

const revertOrderPrefix = "PREFIX_CANCEL_ORDER_HASH"

func toABIOrder(o models.Order) (abiOrder, error) {
	var out abiOrder
	var err error

	words := []struct {
		dst   *[32]byte
		v     string
		field string
	}{
		{&out.Seed, o.Seed, "seed"},
		{&out.Trader, o.Trader, "trader"},
		{&out.Receiver, o.Receiver, "receiver"},
		{&out.TokenIn, o.TokenIn, "tokenIn"},
		{&out.TokenOut, o.TokenOut, "tokenOut"},
	}
	for _, w := range words {
		if *w.dst, err = address.ToBytes32(w.v); err != nil {
			return out, fmt.Errorf("order %s: %w", w.field, err)
		}
	}

	ints := []struct {
		dst   **big.Int
		v     string
		field string
	}{
		{&out.AmountIn, o.AmountIn, "amountIn"},
		{&out.MinAmountOut, o.MinAmountOut, "minAmountOut"},
		{&out.SrcChainId, o.SrcChainID, "srcChainId"},
		{&out.DestChainId, o.DestChainID, "destChainId"},
		{&out.Fee, o.Fee, "fee"},
	}
	for _, n := range ints {
		v, err := decimals.Parse(n.v)
		if err != nil {
			return out, fmt.Errorf("order %s: %w", n.field, err)
		}
		if v.BitLen() > 256 {
			return out, fmt.Errorf("order %s overflows uint256", n.field)
		}
		*n.dst = v
	}
	return out, nil
}

// OrderHash is keccak256 over the tightly packed order fields, matching the
// vault contract's orderHash.
func OrderHash(o models.Order) ([32]byte, error) {
	ao, err := toABIOrder(o)
	if err != nil {
		return [32]byte{}, err
	}

	buf := make([]byte, 0, 10*32)
	for _, w := range [][32]byte{ao.Seed, ao.Trader, ao.Receiver, ao.TokenIn, ao.TokenOut} {
		buf = append(buf, w[:]...)
	}
	for _, n := range []*big.Int{ao.AmountIn, ao.MinAmountOut, ao.SrcChainId, ao.DestChainId, ao.Fee} {
		buf = append(buf, common.LeftPadBytes(n.Bytes(), 32)...)
	}
	return crypto.Keccak256Hash(buf), nil
}

// OrderHashHex is OrderHash rendered as 0x-hex.
func OrderHashHex(o models.Order) (string, error) {
	h, err := OrderHash(o)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(h[:]), nil
}

// RevertOrderDigest is the digest the orchestrator signs to authorize
// cancelling an order.
func RevertOrderDigest(o models.Order) ([32]byte, error) {
	h, err := OrderHash(o)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash([]byte(revertOrderPrefix), h[:]), nil
}

// CalldataToSeed derives the order seed committed to by a post-fill call.
func CalldataToSeed(target, calldata string) ([32]byte, error) {
	if !common.IsHexAddress(target) {
		return [32]byte{}, fmt.Errorf("invalid call target %q", target)
	}
	data, err := hexutil.Decode(calldata)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid call data: %w", err)
	}
	addr := common.HexToAddress(target)
	return crypto.Keccak256Hash(addr.Bytes(), crypto.Keccak256(data)), nil
}
