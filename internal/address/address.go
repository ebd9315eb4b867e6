// Package address converts between the 32-byte address form used in orders,
// EVM addresses and Solana public keys.
package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ToBytes32 decodes a 0x-prefixed hex string (left-padded) or a base58
// string (right-aligned) into 32 bytes.
func ToBytes32(s string) ([32]byte, error) {
	var out [32]byte
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h := s[2:]
		if len(h) > 64 {
			return out, fmt.Errorf("hex value %q longer than 32 bytes", s)
		}
		if len(h)%2 == 1 {
			h = "0" + h
		}
		raw, err := hex.DecodeString(h)
		if err != nil {
			return out, fmt.Errorf("invalid hex value %q: %w", s, err)
		}
		copy(out[32-len(raw):], raw)
		return out, nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("invalid base58 value %q: %w", s, err)
	}
	if len(raw) > 32 {
		return out, fmt.Errorf("base58 value %q longer than 32 bytes", s)
	}
	copy(out[32-len(raw):], raw)
	return out, nil
}

// Bytes32Hex renders b as lowercase 0x-hex.
func Bytes32Hex(b [32]byte) string {
	return "0x" + hex.EncodeToString(b[:])
}

// PublicKeyToHex converts a base58 Solana public key to its 0x-hex form.
func PublicKeyToHex(addr string) (string, error) {
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return "", fmt.Errorf("invalid public key %q: %w", addr, err)
	}
	return "0x" + hex.EncodeToString(pk[:]), nil
}

// HexToPublicKey converts a 0x-hex value of at most 32 bytes to a public key.
func HexToPublicKey(h string) (solana.PublicKey, error) {
	if !strings.HasPrefix(h, "0x") && !strings.HasPrefix(h, "0X") {
		h = "0x" + h
	}
	b, err := ToBytes32(h)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKey(b), nil
}

// Bytes32ToAddress extracts the EVM address from a 32-byte value whose upper
// 12 bytes must be zero.
func Bytes32ToAddress(s string) (common.Address, error) {
	b, err := ToBytes32(s)
	if err != nil {
		return common.Address{}, err
	}
	for _, x := range b[:12] {
		if x != 0 {
			return common.Address{}, fmt.Errorf("first 12 bytes must be zero")
		}
	}
	return common.BytesToAddress(b[12:]), nil
}

// AddressToBytes32 left-pads an EVM address to 32 bytes.
func AddressToBytes32(a common.Address) string {
	var b [32]byte
	copy(b[12:], a.Bytes())
	return Bytes32Hex(b)
}
