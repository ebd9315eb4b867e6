package evmvault

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const orderTuple = `{"name":"order","type":"tuple","components":[
	{"name":"seed","type":"bytes32"},
	{"name":"trader","type":"bytes32"},
	{"name":"receiver","type":"bytes32"},
	{"name":"tokenIn","type":"bytes32"},
	{"name":"tokenOut","type":"bytes32"},
	{"name":"amountIn","type":"uint256"},
	{"name":"minAmountOut","type":"uint256"},
	{"name":"srcChainId","type":"uint256"},
	{"name":"destChainId","type":"uint256"},
	{"name":"fee","type":"uint256"}]}`

const orderTupleArray = `{"name":"orders","type":"tuple[]","components":[
	{"name":"seed","type":"bytes32"},
	{"name":"trader","type":"bytes32"},
	{"name":"receiver","type":"bytes32"},
	{"name":"tokenIn","type":"bytes32"},
	{"name":"tokenOut","type":"bytes32"},
	{"name":"amountIn","type":"uint256"},
	{"name":"minAmountOut","type":"uint256"},
	{"name":"srcChainId","type":"uint256"},
	{"name":"destChainId","type":"uint256"},
	{"name":"fee","type":"uint256"}]}`

const vaultABIJSON = `[
{"type":"function","name":"STABLECOIN","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"stablecoinBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"availableAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"orderStatus","stateMutability":"view","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"orderHash","stateMutability":"pure","inputs":[` + orderTuple + `],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"fillOrder","stateMutability":"nonpayable","inputs":[` + orderTuple + `,
	{"name":"swapTarget","type":"address"},
	{"name":"swapData","type":"bytes"},
	{"name":"callTarget","type":"address"},
	{"name":"callData","type":"bytes"}],"outputs":[]},
{"type":"function","name":"fillOrderBatch","stateMutability":"nonpayable","inputs":[` + orderTupleArray + `,
	{"name":"swapsTargets","type":"address[]"},
	{"name":"swapsData","type":"bytes[]"},
	{"name":"callsTargets","type":"address[]"},
	{"name":"callsData","type":"bytes[]"}],"outputs":[]},
{"type":"function","name":"rebalanceLiquidity","stateMutability":"payable","inputs":[
	{"name":"amountIn","type":"uint256"},
	{"name":"dstChainId","type":"uint256"},
	{"name":"target","type":"address"},
	{"name":"data","type":"bytes"}],"outputs":[]}
]`

const multicall3ABIJSON = `[
{"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[
	{"name":"target","type":"address"},
	{"name":"allowFailure","type":"bool"},
	{"name":"callData","type":"bytes"}]}],
 "outputs":[{"name":"returnData","type":"tuple[]","components":[
	{"name":"success","type":"bool"},
	{"name":"returnData","type":"bytes"}]}]}
]`

var (
	vaultABI      = mustParseABI(vaultABIJSON)
	multicall3ABI = mustParseABI(multicall3ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}

// abiOrder is the vault's Order struct as the ABI packer expects it.
type abiOrder struct {
	Seed         [32]byte
	Trader       [32]byte
	Receiver     [32]byte
	TokenIn      [32]byte
	TokenOut     [32]byte
	AmountIn     *big.Int
	MinAmountOut *big.Int
	SrcChainId   *big.Int
	DestChainId  *big.Int
	Fee          *big.Int
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type call3Result struct {
	Success    bool
	ReturnData []byte
}
