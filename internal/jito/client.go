// Package jito submits Solana transactions as tipped bundles to the Jito
// block-engine relays.
package jito

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

// Payer signs bundle transactions and pays the tip.
type Payer interface {
	PublicKey() solana.PublicKey
	SignTx(tx *solana.Transaction) error
}

// BlockhashSource returns a recent blockhash. *rpc.Pool satisfies it.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context, commitment ...string) (solana.Hash, error)
}

type Config struct {
	BundleEndpoints []string
	TipAccounts     []string
	// FeeRPCURL must support qn_estimatePriorityFees. Empty means the
	// default fee is always used.
	FeeRPCURL      string
	SimulationURLs []string
	Blockhash      BlockhashSource
	HTTPClient     *http.Client
	Timeout        time.Duration
	ChunkSize      int
	DefaultFee     uint64
	FeeTimeout     time.Duration
	Logger         *logrus.Logger
}

type Client struct {
	relays      []*rpc.Client
	tipAccounts []solana.PublicKey
	feeClient   *rpc.Client
	simulators  []*rpc.Client
	blockhash   BlockhashSource
	chunkSize   int
	defaultFee  uint64
	feeTimeout  time.Duration
	logger      *logrus.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.Blockhash == nil {
		return nil, fmt.Errorf("jito: blockhash source is required")
	}
	if len(cfg.BundleEndpoints) == 0 {
		cfg.BundleEndpoints = constants.JitoEndpoints
	}
	if len(cfg.TipAccounts) == 0 {
		cfg.TipAccounts = constants.JitoTipAccounts
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = constants.JitoBundleChunkSize
	}
	if cfg.DefaultFee == 0 {
		cfg.DefaultFee = constants.DefaultJitoFee
	}
	if cfg.FeeTimeout <= 0 {
		cfg.FeeTimeout = constants.PriorityFeeTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	tips := make([]solana.PublicKey, 0, len(cfg.TipAccounts))
	for _, a := range cfg.TipAccounts {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return nil, fmt.Errorf("jito: invalid tip account %q: %w", a, err)
		}
		tips = append(tips, pk)
	}

	newClient := func(url string) *rpc.Client {
		return rpc.NewClient(rpc.ClientConfig{
			BaseURL:    url,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		})
	}

	c := &Client{
		tipAccounts: tips,
		blockhash:   cfg.Blockhash,
		chunkSize:   cfg.ChunkSize,
		defaultFee:  cfg.DefaultFee,
		feeTimeout:  cfg.FeeTimeout,
		logger:      cfg.Logger,
	}
	for _, u := range cfg.BundleEndpoints {
		c.relays = append(c.relays, newClient(u))
	}
	for _, u := range cfg.SimulationURLs {
		c.simulators = append(c.simulators, newClient(u))
	}
	if cfg.FeeRPCURL != "" {
		c.feeClient = newClient(cfg.FeeRPCURL)
	}
	return c, nil
}

// PriorityFee returns the tip in lamports: five times the high per-compute-unit
// estimate, never below the default. Any failure or a lookup slower than the
// fee timeout yields the default.
func (c *Client) PriorityFee(ctx context.Context) uint64 {
	if c.feeClient == nil {
		return c.defaultFee
	}

	ctx, cancel := context.WithTimeout(ctx, c.feeTimeout)
	defer cancel()

	levels, err := c.feeClient.EstimatePriorityFees(ctx, 50)
	if err != nil {
		c.logger.WithError(err).Warn("priority fee lookup failed, using default jito fee")
		return c.defaultFee
	}

	fee := uint64(math.Ceil(levels.PerComputeUnit.High)) * constants.PriorityFeeMultiplier
	if fee < c.defaultFee {
		return c.defaultFee
	}
	return fee
}

func (c *Client) randomTipAccount() solana.PublicKey {
	return c.tipAccounts[rand.IntN(len(c.tipAccounts))]
}

// SendBundle submits txs in chunks, each chunk with its own tip transaction.
// Every transaction is moved to a fresh blockhash and re-signed by payer, so
// only payer-signed transactions survive. It fails only if no chunk was
// accepted by any relay.
func (c *Client) SendBundle(ctx context.Context, txs []*solana.Transaction, payer Payer) ([]string, error) {
	if len(txs) == 0 {
		return nil, errs.Validation("no transactions to bundle")
	}

	blockhash, err := c.blockhash.GetLatestBlockhash(ctx, "confirmed")
	if err != nil {
		return nil, errs.Execution("failed to get blockhash for bundle", err)
	}

	var (
		signatures []string
		failures   []error
	)
	for start := 0; start < len(txs); start += c.chunkSize {
		end := min(start+c.chunkSize, len(txs))

		chunk := make([]*solana.Transaction, 0, end-start)
		for _, tx := range txs[start:end] {
			tx.Message.RecentBlockhash = blockhash
			tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
			if err := payer.SignTx(tx); err != nil {
				return nil, errs.Execution("failed to re-sign bundle transaction", err)
			}
			chunk = append(chunk, tx)
		}

		sigs, err := c.sendChunk(ctx, chunk, payer)
		if err != nil {
			c.logger.WithError(err).WithField("chunk", start/c.chunkSize).Warn("jito chunk rejected")
			failures = append(failures, err)
			continue
		}
		signatures = append(signatures, sigs...)
	}

	if len(signatures) == 0 {
		return nil, errs.Execution("No successful responses received from Jito", errors.Join(failures...))
	}
	return signatures, nil
}

func (c *Client) tipTx(ctx context.Context, payer Payer) (*solana.Transaction, error) {
	fee := c.PriorityFee(ctx)
	blockhash, err := c.blockhash.GetLatestBlockhash(ctx, "confirmed")
	if err != nil {
		return nil, err
	}
	tip := c.randomTipAccount()

	tx, err := solanaix.NewVersionedTx(
		[]solana.Instruction{solanaix.NewSystemTransferIx(payer.PublicKey(), tip, fee)},
		blockhash,
		payer.PublicKey(),
	)
	if err != nil {
		return nil, err
	}
	if err := payer.SignTx(tx); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"tip_account": tip.String(),
		"lamports":    fee,
	}).Debug("jito tip prepared")
	return tx, nil
}

type relayResult struct {
	url string
	id  string
	err error
}

// sendChunk broadcasts one bundle (tip first) to every relay at once. The
// first acceptance decides success and the remaining requests are cancelled.
func (c *Client) sendChunk(ctx context.Context, txs []*solana.Transaction, payer Payer) ([]string, error) {
	tip, err := c.tipTx(ctx, payer)
	if err != nil {
		return nil, fmt.Errorf("tip transaction: %w", err)
	}

	encoded := make([]string, 0, len(txs)+1)
	for _, tx := range append([]*solana.Transaction{tip}, txs...) {
		s, err := solanaix.Serialize(tx)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, s)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan relayResult, len(c.relays))
	for _, relay := range c.relays {
		go func(relay *rpc.Client) {
			var resp rpc.Response[string]
			err := relay.Call(ctx, "sendBundle", []any{encoded}, &resp)
			if err == nil && resp.Error != nil {
				err = resp.Error
			}
			results <- relayResult{url: relay.URL(), id: resp.Result, err: err}
		}(relay)
	}

	var failures []error
	for range c.relays {
		r := <-results
		if r.err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", r.url, r.err))
			continue
		}

		sigs := make([]string, 0, len(txs))
		for _, tx := range txs {
			sig, err := solanaix.FirstSignature(tx)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)
		}
		c.logger.WithFields(logrus.Fields{
			"relay":     r.url,
			"bundle_id": r.id,
			"txs":       len(txs),
		}).Info("jito bundle accepted")
		return sigs, nil
	}
	return nil, fmt.Errorf("no relay accepted the bundle: %w", errors.Join(failures...))
}
