package evmvault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
)

// Endpoint is one EVM JSON-RPC endpoint able to run eth_call.
type Endpoint struct {
	URL    string
	Caller ethereum.ContractCaller
}

type Config struct {
	Chain     models.ChainID
	Address   string
	Multicall string
	Endpoints []Endpoint
	Logger    *logrus.Logger
}

// Vault talks to one chain's vault contract. Reads walk the endpoint list in
// order and only fail once every endpoint has failed.
type Vault struct {
	chain     models.ChainID
	address   common.Address
	multicall common.Address
	endpoints []Endpoint
	logger    *logrus.Logger
}

func New(cfg Config) (*Vault, error) {
	if cfg.Chain.IsSolana() {
		return nil, fmt.Errorf("chain %s is not an EVM chain", cfg.Chain.Name())
	}
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid vault address %q", cfg.Address)
	}
	multicall := cfg.Multicall
	if multicall == "" {
		multicall = constants.Multicall3Address
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Vault{
		chain:     cfg.Chain,
		address:   common.HexToAddress(cfg.Address),
		multicall: common.HexToAddress(multicall),
		endpoints: cfg.Endpoints,
		logger:    logger,
	}, nil
}

// Open builds the vault for chain from the deployment table, dialing its
// endpoints through the registry.
func Open(ctx context.Context, reg *rpc.Registry, dep constants.Deployment, chain models.ChainID, logger *logrus.Logger) (*Vault, error) {
	addr, err := dep.Vault(chain)
	if err != nil {
		return nil, err
	}
	eps, err := reg.Eth(ctx, chain)
	if err != nil {
		return nil, err
	}
	endpoints := make([]Endpoint, 0, len(eps))
	for _, ep := range eps {
		endpoints = append(endpoints, Endpoint{URL: ep.URL, Caller: ep.Client})
	}
	return New(Config{Chain: chain, Address: addr, Endpoints: endpoints, Logger: logger})
}

func (v *Vault) Chain() models.ChainID   { return v.chain }
func (v *Vault) Address() common.Address { return v.address }

func (v *Vault) failover(ctx context.Context, op string, fn func(ctx context.Context, ep Endpoint) error) error {
	if len(v.endpoints) == 0 {
		return errs.ChainRead(fmt.Sprintf("Failed to get %s: no endpoints for chain %s", op, v.chain.Name()), nil)
	}

	var failures []error
	for _, ep := range v.endpoints {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		err := fn(ctx, ep)
		if err == nil {
			return nil
		}
		v.logger.WithFields(logrus.Fields{
			"chain":    v.chain.Name(),
			"endpoint": ep.URL,
			"op":       op,
		}).WithError(err).Warn("vault read failed, trying next endpoint")
		failures = append(failures, fmt.Errorf("%s: %w", ep.URL, err))
	}
	return errs.ChainRead(fmt.Sprintf("Failed to get %s from any provider", op), errors.Join(failures...))
}

func (v *Vault) view(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := vaultABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var out []interface{}
	err = v.failover(ctx, method, func(ctx context.Context, ep Endpoint) error {
		raw, err := ep.Caller.CallContract(ctx, ethereum.CallMsg{To: &v.address, Data: input}, nil)
		if err != nil {
			return err
		}
		res, err := vaultABI.Unpack(method, raw)
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return fmt.Errorf("%s returned no values", method)
		}
		out = res
		return nil
	})
	return out, err
}

func (v *Vault) viewUint256(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	res, err := v.view(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, res[0])
	}
	return n, nil
}

func (v *Vault) Stablecoin(ctx context.Context) (common.Address, error) {
	res, err := v.view(ctx, "STABLECOIN")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := res[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("STABLECOIN returned %T", res[0])
	}
	return addr, nil
}

func (v *Vault) Decimals(ctx context.Context) (int, error) {
	res, err := v.view(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := res[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T", res[0])
	}
	return int(d), nil
}

func (v *Vault) StablecoinBalance(ctx context.Context) (*big.Int, error) {
	return v.viewUint256(ctx, "stablecoinBalance")
}

// AvailableAssets is the liquidity not reserved for fees or stakers.
func (v *Vault) AvailableAssets(ctx context.Context) (*big.Int, error) {
	return v.viewUint256(ctx, "availableAssets")
}

// BalanceOf returns holder's staked share balance.
func (v *Vault) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return v.viewUint256(ctx, "balanceOf", holder)
}

func (v *Vault) OrderStatus(ctx context.Context, orderHash [32]byte) (models.OrderStatus, error) {
	res, err := v.view(ctx, "orderStatus", orderHash)
	if err != nil {
		return models.OrderNonexistant, err
	}
	s, ok := res[0].(uint8)
	if !ok {
		return models.OrderNonexistant, fmt.Errorf("orderStatus returned %T", res[0])
	}
	return models.OrderStatusFromByte(s), nil
}

// OrderStatusBatch reads the status of every hash in one Multicall3
// aggregate3 call. A failed sub-call fails the whole attempt on that endpoint.
func (v *Vault) OrderStatusBatch(ctx context.Context, hashes [][32]byte) ([]models.OrderStatus, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	calls := make([]call3, len(hashes))
	for i, h := range hashes {
		data, err := vaultABI.Pack("orderStatus", h)
		if err != nil {
			return nil, fmt.Errorf("pack orderStatus: %w", err)
		}
		calls[i] = call3{Target: v.address, AllowFailure: true, CallData: data}
	}
	input, err := multicall3ABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	var statuses []models.OrderStatus
	err = v.failover(ctx, "order status batch", func(ctx context.Context, ep Endpoint) error {
		raw, err := ep.Caller.CallContract(ctx, ethereum.CallMsg{To: &v.multicall, Data: input}, nil)
		if err != nil {
			return err
		}
		out, err := multicall3ABI.Unpack("aggregate3", raw)
		if err != nil {
			return err
		}
		results := *abi.ConvertType(out[0], new([]call3Result)).(*[]call3Result)
		if len(results) != len(hashes) {
			return fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(hashes))
		}

		batch := make([]models.OrderStatus, len(results))
		for i, r := range results {
			if !r.Success {
				return fmt.Errorf("Failed to get status for order %s", hexutil.Encode(hashes[i][:]))
			}
			vals, err := vaultABI.Unpack("orderStatus", r.ReturnData)
			if err != nil {
				return err
			}
			s, ok := vals[0].(uint8)
			if !ok {
				return fmt.Errorf("orderStatus returned %T", vals[0])
			}
			batch[i] = models.OrderStatusFromByte(s)
		}
		statuses = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// FillOrderParams describes one fill. Empty targets become the zero address
// and empty data becomes empty bytes.
type FillOrderParams struct {
	Order      models.Order
	SwapTarget string
	SwapData   string
	CallTarget string
	CallData   string
}

type packedFill struct {
	order      abiOrder
	swapTarget common.Address
	swapData   []byte
	callTarget common.Address
	callData   []byte
}

func optionalAddress(s, field string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func optionalBytes(s, field string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return b, nil
}

func (p FillOrderParams) pack() (packedFill, error) {
	var out packedFill
	var err error
	if out.order, err = toABIOrder(p.Order); err != nil {
		return out, err
	}
	if out.swapTarget, err = optionalAddress(p.SwapTarget, "swap target"); err != nil {
		return out, err
	}
	if out.swapData, err = optionalBytes(p.SwapData, "swap data"); err != nil {
		return out, err
	}
	if out.callTarget, err = optionalAddress(p.CallTarget, "call target"); err != nil {
		return out, err
	}
	if out.callData, err = optionalBytes(p.CallData, "call data"); err != nil {
		return out, err
	}
	return out, nil
}

func (v *Vault) call(data []byte, value string) *models.EvmArbitraryCall {
	return &models.EvmArbitraryCall{
		To:    v.address.Hex(),
		Data:  hexutil.Encode(data),
		Value: value,
	}
}

func (v *Vault) PrepFillOrder(p FillOrderParams) (*models.EvmArbitraryCall, error) {
	f, err := p.pack()
	if err != nil {
		return nil, err
	}
	data, err := vaultABI.Pack("fillOrder", f.order, f.swapTarget, f.swapData, f.callTarget, f.callData)
	if err != nil {
		return nil, fmt.Errorf("pack fillOrder: %w", err)
	}
	return v.call(data, "0"), nil
}

func (v *Vault) PrepFillOrderBatch(params []FillOrderParams) (*models.EvmArbitraryCall, error) {
	if len(params) == 0 {
		return nil, errs.Validation("No orders to fill")
	}

	orders := make([]abiOrder, len(params))
	swapTargets := make([]common.Address, len(params))
	swapData := make([][]byte, len(params))
	callTargets := make([]common.Address, len(params))
	callData := make([][]byte, len(params))
	for i, p := range params {
		f, err := p.pack()
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		orders[i] = f.order
		swapTargets[i] = f.swapTarget
		swapData[i] = f.swapData
		callTargets[i] = f.callTarget
		callData[i] = f.callData
	}

	data, err := vaultABI.Pack("fillOrderBatch", orders, swapTargets, swapData, callTargets, callData)
	if err != nil {
		return nil, fmt.Errorf("pack fillOrderBatch: %w", err)
	}
	return v.call(data, "0"), nil
}

// PrepRebalanceLiquidity wraps a bridge call in the vault's rebalanceLiquidity.
// value is forwarded as the transaction value; empty means zero.
func (v *Vault) PrepRebalanceLiquidity(amount *big.Int, dst models.ChainID, target, data, value string) (*models.EvmArbitraryCall, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errs.Validation("rebalance amount must be positive")
	}
	if !common.IsHexAddress(target) {
		return nil, fmt.Errorf("invalid rebalance target %q", target)
	}
	payload, err := optionalBytes(data, "rebalance data")
	if err != nil {
		return nil, err
	}
	input, err := vaultABI.Pack("rebalanceLiquidity", amount, new(big.Int).SetUint64(uint64(dst)), common.HexToAddress(target), payload)
	if err != nil {
		return nil, fmt.Errorf("pack rebalanceLiquidity: %w", err)
	}
	if value == "" {
		value = "0"
	}
	return v.call(input, value), nil
}
