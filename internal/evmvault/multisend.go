package evmvault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

var multiSendSelector = []byte{0x8d, 0x80, 0xff, 0x0a}

var bytesArgs = func() abi.Arguments {
	t, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// EncodeMultiSend packs calls into a Safe multiSend(bytes) payload. Every call
// is encoded as operation(0) | to | value | len(data) | data.
func EncodeMultiSend(calls []models.EvmArbitraryCall) (string, error) {
	if len(calls) == 0 {
		return "", fmt.Errorf("Empty transaction array")
	}

	var packed []byte
	for _, c := range calls {
		if !common.IsHexAddress(c.To) {
			return "", fmt.Errorf("Invalid target address: %s", c.To)
		}
		value := new(big.Int)
		if c.Value != "" {
			if _, ok := value.SetString(c.Value, 0); !ok {
				return "", fmt.Errorf("invalid value %q", c.Value)
			}
		}
		if value.Sign() < 0 {
			return "", fmt.Errorf("Value cannot be negative")
		}
		data, err := hexutil.Decode(c.Data)
		if err != nil {
			return "", fmt.Errorf("Data must be hex string starting with 0x")
		}

		packed = append(packed, 0)
		packed = append(packed, common.HexToAddress(c.To).Bytes()...)
		packed = append(packed, common.LeftPadBytes(value.Bytes(), 32)...)
		packed = append(packed, common.LeftPadBytes(big.NewInt(int64(len(data))).Bytes(), 32)...)
		packed = append(packed, data...)
	}

	args, err := bytesArgs.Pack(packed)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(append(append([]byte{}, multiSendSelector...), args...)), nil
}
