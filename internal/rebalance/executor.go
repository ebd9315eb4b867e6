package rebalance

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/quote"
	"github.com/aman-zulfiqar/genius-solver/internal/signer"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

// Batch selects actions [Index, Index+Size) of an instruction set.
type Batch struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

type ExecutorConfig struct {
	Env        models.Environment
	Deployment constants.Deployment
	EvmVaults  EvmVaults
	SolanaPool SolanaPool
	// Quoter should compare providers; see quote.BestQuoter.
	Quoter quote.Quoter
	// Orchestrator is required only for actions leaving Solana.
	Orchestrator solana.PublicKey
	MaxAge       time.Duration
	Now          func() time.Time
	Logger       *logrus.Logger
}

// Executor validates signed rebalancing instructions and builds one payload
// per action of the requested batch.
type Executor struct {
	env          models.Environment
	dep          constants.Deployment
	evmVaults    EvmVaults
	solanaPool   SolanaPool
	quoter       quote.Quoter
	orchestrator solana.PublicKey
	maxAge       time.Duration
	now          func() time.Time
	logger       *logrus.Logger
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Quoter == nil {
		return nil, fmt.Errorf("rebalance: quoter is required")
	}
	if cfg.EvmVaults == nil {
		return nil, fmt.Errorf("rebalance: evm vaults are required")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = constants.SignatureMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Executor{
		env:          cfg.Env,
		dep:          cfg.Deployment,
		evmVaults:    cfg.EvmVaults,
		solanaPool:   cfg.SolanaPool,
		quoter:       cfg.Quoter,
		orchestrator: cfg.Orchestrator,
		maxAge:       cfg.MaxAge,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}, nil
}

// Verify checks the signature, the validity window and the environment and
// returns the instructions decoded from the signed bytes.
func (e *Executor) Verify(set models.SignedInstructionSet) (*models.RebalancingInstructions, error) {
	recovered, err := signer.RecoverPersonalSigner([]byte(set.DataStringified), set.Signature)
	if err != nil || recovered != common.HexToAddress(e.dep.RebalancingSigner) {
		return nil, errs.Validation("Invalid signature")
	}

	var data models.RebalancingInstructions
	if err := json.Unmarshal([]byte(set.DataStringified), &data); err != nil {
		return nil, errs.Validation(fmt.Sprintf("invalid signed instructions: %v", err))
	}

	now := e.now().UnixMilli()
	if now-data.Timestamp > e.maxAge.Milliseconds() || data.Timestamp > now {
		return nil, errs.Validation("Signature expired")
	}
	if data.Env != e.env {
		return nil, errs.Validation(fmt.Sprintf("Invalid environment. Expected %s, got %s", e.env, data.Env))
	}
	return &data, nil
}

// Execute verifies set and returns one payload per action in the batch, in
// action order. A failed action yields a payload carrying its error.
func (e *Executor) Execute(ctx context.Context, set models.SignedInstructionSet, batch Batch) ([]models.ChainPayload, error) {
	data, err := e.Verify(set)
	if err != nil {
		return nil, err
	}
	if batch.Index < 0 || batch.Size <= 0 {
		return nil, errs.Validation("invalid actions batch")
	}

	actions := []models.RebalanceAction{}
	if batch.Index < len(data.Actions) {
		end := min(batch.Index+batch.Size, len(data.Actions))
		actions = data.Actions[batch.Index:end]
	}

	out := make([]models.ChainPayload, len(actions))
	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func(i int, action models.RebalanceAction) {
			defer wg.Done()
			payload, err := e.actionPayload(ctx, action)
			if err != nil {
				e.logger.WithError(err).WithFields(logrus.Fields{
					"source": action.SourceNetwork.Name(),
					"target": action.TargetNetwork.Name(),
					"amount": action.Amount,
				}).Error("rebalance action failed")
				payload = &models.ChainPayload{ChainID: action.SourceNetwork, Err: models.NewErrorResult(err)}
			}
			out[i] = *payload
		}(i, action)
	}
	wg.Wait()
	return out, nil
}

// RebalancingID is a short identifier for an action, used in logs.
func RebalancingID(a models.RebalanceAction) string {
	id := fmt.Sprintf("%d-%d-%s", a.SourceNetwork, a.TargetNetwork, a.Amount)
	return hexutil.Encode(crypto.Keccak256([]byte(id)))[:10]
}

func (e *Executor) actionPayload(ctx context.Context, action models.RebalanceAction) (*models.ChainPayload, error) {
	amount, err := decimals.Parse(action.Amount)
	if err != nil {
		return nil, errs.Validation(err.Error())
	}
	src, dst := action.SourceNetwork, action.TargetNetwork
	log := e.logger.WithFields(logrus.Fields{
		"rebalancing_id": RebalancingID(action),
		"source":         src.Name(),
		"target":         dst.Name(),
		"amount":         action.Amount,
	})

	req, err := e.quoteRequest(action)
	if err != nil {
		return nil, err
	}
	log.Info("fetching rebalancing quote")
	resp, err := e.quoter.FetchQuote(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errs.Execution("No quote found", nil)
	}
	log.WithFields(logrus.Fields{
		"provider":  resp.Provider,
		"amountOut": resp.AmountOut,
	}).Info("rebalancing quote")

	if src.IsSolana() {
		return e.solanaPayload(ctx, amount, resp)
	}
	return e.evmPayload(ctx, src, dst, amount, resp)
}

// quoteRequest quotes source stablecoin to target stablecoin, sent from the
// source vault (or the orchestrator on Solana) to the target vault.
func (e *Executor) quoteRequest(a models.RebalanceAction) (quote.Request, error) {
	tokenIn, err := e.dep.Stablecoin(a.SourceNetwork)
	if err != nil {
		return quote.Request{}, errs.Validation(err.Error())
	}
	tokenOut, err := e.dep.Stablecoin(a.TargetNetwork)
	if err != nil {
		return quote.Request{}, errs.Validation(err.Error())
	}

	var from string
	if a.SourceNetwork.IsSolana() {
		if e.orchestrator.IsZero() {
			return quote.Request{}, errs.Validation("no solana orchestrator configured")
		}
		from = e.orchestrator.String()
	} else if from, err = e.dep.Vault(a.SourceNetwork); err != nil {
		return quote.Request{}, errs.Validation(err.Error())
	}

	var receiver string
	if a.TargetNetwork.IsSolana() {
		if e.solanaPool == nil {
			return quote.Request{}, errs.Validation("Solana pool not configured")
		}
		vault, err := e.solanaPool.VaultAddress()
		if err != nil {
			return quote.Request{}, err
		}
		receiver = vault.String()
	} else if receiver, err = e.dep.Vault(a.TargetNetwork); err != nil {
		return quote.Request{}, errs.Validation(err.Error())
	}

	return quote.Request{
		NetworkIn:  a.SourceNetwork,
		NetworkOut: a.TargetNetwork,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   a.Amount,
		From:       from,
		Receiver:   receiver,
		Slippage:   constants.RebalanceQuoteSlippage,
		Authority: &quote.Authority{
			NetworkInAddress:  e.owner(a.SourceNetwork),
			NetworkOutAddress: e.owner(a.TargetNetwork),
		},
	}, nil
}

func (e *Executor) owner(chain models.ChainID) string {
	if chain.IsSolana() {
		return e.dep.OwnerSolana
	}
	return e.dep.OwnerEVM
}

func (e *Executor) solanaPayload(ctx context.Context, amount *big.Int, resp *quote.Response) (*models.ChainPayload, error) {
	if e.solanaPool == nil {
		return nil, errs.Validation("Solana pool not configured")
	}
	tx, err := e.solanaPool.GetRemoveBridgeLiquidityTx(ctx, amount, e.orchestrator)
	if err != nil {
		return nil, err
	}
	if len(resp.SvmExecutionPayload) == 0 {
		return nil, errs.Execution("No SVM execution payload found", nil)
	}
	remove, err := solanaix.Serialize(tx)
	if err != nil {
		return nil, err
	}
	return &models.ChainPayload{
		ChainID:    models.ChainSolana,
		SolanaTxns: append([]string{remove}, resp.SvmExecutionPayload...),
	}, nil
}

func (e *Executor) evmPayload(ctx context.Context, src, dst models.ChainID, amount *big.Int, resp *quote.Response) (*models.ChainPayload, error) {
	vault, err := e.evmVaults(ctx, src)
	if err != nil {
		return nil, err
	}
	if resp.EvmExecutionPayload == nil {
		return nil, errs.Execution("No EVM execution payload found", nil)
	}
	td := resp.EvmExecutionPayload.TransactionData
	value := td.Value
	if value == "" {
		value = "0"
	}
	call, err := vault.PrepRebalanceLiquidity(amount, dst, td.To, td.Data, value)
	if err != nil {
		return nil, err
	}
	return &models.ChainPayload{ChainID: src, Evm: call}, nil
}
