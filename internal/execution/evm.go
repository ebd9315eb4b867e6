// Package execution signs and submits the payloads produced by the solver
// and the rebalancer.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/runonce"
	"github.com/aman-zulfiqar/genius-solver/internal/signer"
)

// EthClient is the subset of *ethclient.Client used to send a transaction.
type EthClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type Backend struct {
	URL    string
	Client EthClient
}

// Backends resolves the endpoints of an EVM chain in failover order.
type Backends func(ctx context.Context, chain models.ChainID) ([]Backend, error)

// RegistryBackends serves Backends from dialed registry clients.
func RegistryBackends(reg *rpc.Registry) Backends {
	return func(ctx context.Context, chain models.ChainID) ([]Backend, error) {
		eps, err := reg.Eth(ctx, chain)
		if err != nil {
			return nil, err
		}
		out := make([]Backend, 0, len(eps))
		for _, ep := range eps {
			out = append(out, Backend{URL: ep.URL, Client: ep.Client})
		}
		return out, nil
	}
}

type EvmConfig struct {
	Signer          signer.Signer
	Backends        Backends
	RunOnce         *runonce.Group
	GasBuffer       float64
	DefaultGasLimit uint64
	Logger          *logrus.Logger
}

// EvmExecutor turns an EvmArbitraryCall into a signed legacy transaction
// and broadcasts it. Gas price, gas estimate and broadcast are each keyed
// by the call id so a retried signing attempt reuses the first values.
type EvmExecutor struct {
	signer          signer.Signer
	backends        Backends
	once            *runonce.Group
	gasBuffer       float64
	defaultGasLimit uint64
	logger          *logrus.Logger
}

func NewEvmExecutor(cfg EvmConfig) (*EvmExecutor, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("execution: signer is required")
	}
	if cfg.Backends == nil {
		return nil, fmt.Errorf("execution: evm backends are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RunOnce == nil {
		cfg.RunOnce = runonce.New(nil, cfg.Logger)
	}
	if cfg.GasBuffer <= 0 {
		cfg.GasBuffer = constants.ThresholdGasBuffer
	}
	if cfg.DefaultGasLimit == 0 {
		cfg.DefaultGasLimit = constants.ThresholdDefaultGas
	}
	return &EvmExecutor{
		signer:          cfg.Signer,
		backends:        cfg.Backends,
		once:            cfg.RunOnce,
		gasBuffer:       cfg.GasBuffer,
		defaultGasLimit: cfg.DefaultGasLimit,
		logger:          cfg.Logger,
	}, nil
}

// CallID is the first 10 characters (0x plus 4 bytes) of the keccak256 of
// the call's JSON encoding.
func CallID(call models.EvmArbitraryCall) (string, error) {
	raw, err := json.Marshal(call)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.Keccak256(raw))[:10], nil
}

// Execute signs call for chain and returns the transaction hash.
func (e *EvmExecutor) Execute(ctx context.Context, chain models.ChainID, call models.EvmArbitraryCall) (string, error) {
	if chain.IsSolana() {
		return "", errs.Validation("Chain not supported")
	}
	if !common.IsHexAddress(call.To) {
		return "", errs.Validation(fmt.Sprintf("invalid call target %q", call.To))
	}
	data, err := hexutil.Decode(normalizeHex(call.Data))
	if err != nil {
		return "", errs.Validation(fmt.Sprintf("invalid call data: %v", err))
	}

	id, err := CallID(call)
	if err != nil {
		return "", err
	}
	log := e.logger.WithFields(logrus.Fields{
		"chain":   chain.Name(),
		"call_id": id,
		"to":      call.To,
	})

	backends, err := e.backends(ctx, chain)
	if err != nil {
		return "", errs.ChainRead("Failed to resolve endpoints", err)
	}

	value := e.parseValue(call.Value, log)
	to := common.HexToAddress(call.To)
	from := e.signer.EvmAddress()

	gasPrice, err := e.gasPrice(ctx, id, call, backends)
	if err != nil {
		return "", err
	}

	nonce, err := runonce.Run(ctx, e.once, "getNonce:"+id, func(ctx context.Context) (uint64, error) {
		var n uint64
		err := failover(ctx, backends, "nonce", func(ctx context.Context, c EthClient) error {
			v, err := c.NonceAt(ctx, from, nil)
			n = v
			return err
		})
		return n, err
	})
	if err != nil {
		return "", err
	}

	gasLimit := e.gasLimit(ctx, id, call, backends, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	}, log)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	txSigner := types.NewEIP155Signer(new(big.Int).SetUint64(uint64(chain)))
	digest := txSigner.Hash(tx)

	sig, err := e.signer.SignEvmDigest(ctx, digest[:], "pkpSignature:"+id)
	if err != nil {
		return "", errs.Execution("Failed to sign transaction", err)
	}
	signed, err := tx.WithSignature(txSigner, sig)
	if err != nil {
		return "", errs.Execution("Failed to assemble signed transaction", err)
	}

	hash, err := runonce.Run(ctx, e.once, "executeEvm:"+id, func(ctx context.Context) (string, error) {
		err := failover(ctx, backends, "broadcast", func(ctx context.Context, c EthClient) error {
			return c.SendTransaction(ctx, signed)
		})
		if err != nil {
			return "", err
		}
		return signed.Hash().Hex(), nil
	})
	if err != nil {
		return "", errs.Execution("Failed to broadcast transaction", err)
	}

	log.WithFields(logrus.Fields{
		"tx_hash":   hash,
		"nonce":     nonce,
		"gas_limit": gasLimit,
		"gas_price": gasPrice.String(),
	}).Info("evm transaction broadcast")
	return hash, nil
}

func (e *EvmExecutor) gasPrice(ctx context.Context, id string, call models.EvmArbitraryCall, backends []Backend) (*big.Int, error) {
	if call.GasPrice != "" {
		v, err := parseBig(call.GasPrice)
		if err != nil {
			return nil, errs.Validation(fmt.Sprintf("invalid gasPrice %q", call.GasPrice))
		}
		return v, nil
	}

	raw, err := runonce.Run(ctx, e.once, "getGasPrice:"+id, func(ctx context.Context) (string, error) {
		var price *big.Int
		err := failover(ctx, backends, "gas price", func(ctx context.Context, c EthClient) error {
			p, err := c.SuggestGasPrice(ctx)
			price = p
			return err
		})
		if err != nil {
			return "", err
		}
		return hexutil.EncodeBig(price), nil
	})
	if err != nil {
		return nil, err
	}
	return hexutil.DecodeBig(raw)
}

// gasLimit never fails: a failed estimate falls back to the default limit.
func (e *EvmExecutor) gasLimit(ctx context.Context, id string, call models.EvmArbitraryCall, backends []Backend, msg ethereum.CallMsg, log *logrus.Entry) uint64 {
	if call.GasLimit != "" {
		if v, err := parseBig(call.GasLimit); err == nil && v.IsUint64() {
			return v.Uint64()
		}
		log.WithField("gas_limit", call.GasLimit).Warn("invalid gasLimit on call, estimating instead")
	}

	estimate, err := runonce.Run(ctx, e.once, "estimateGas:"+id, func(ctx context.Context) (uint64, error) {
		var gas uint64
		err := failover(ctx, backends, "gas estimate", func(ctx context.Context, c EthClient) error {
			g, err := c.EstimateGas(ctx, msg)
			gas = g
			return err
		})
		return gas, err
	})
	if err != nil || estimate == 0 {
		log.WithError(err).Warn("gas estimation failed, using default gas limit")
		return e.defaultGasLimit
	}
	return uint64(math.Ceil(float64(estimate) * e.gasBuffer))
}

func (e *EvmExecutor) parseValue(v string, log *logrus.Entry) *big.Int {
	if v == "" {
		return new(big.Int)
	}
	out, err := parseBig(v)
	if err != nil {
		log.WithField("value", v).Warn("invalid call value, sending zero")
		return new(big.Int)
	}
	return out
}

func failover(ctx context.Context, backends []Backend, op string, fn func(ctx context.Context, c EthClient) error) error {
	if len(backends) == 0 {
		return errs.ChainRead(fmt.Sprintf("Failed to get %s: no endpoints", op), nil)
	}
	var failures []error
	for _, b := range backends {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, b.Client)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", b.URL, err))
	}
	return errs.ChainRead(fmt.Sprintf("Failed to get %s from any provider", op), errors.Join(failures...))
}

// parseBig accepts 0x-hex or decimal.
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func normalizeHex(s string) string {
	if s == "" {
		return "0x"
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "0x" + s
	}
	return s
}
