package jito

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

type SimulationResult struct {
	Passed  bool            `json:"simsPassed"`
	Status  string          `json:"status"`
	Summary json.RawMessage `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type simulateValue struct {
	Summary json.RawMessage `json:"summary"`
}

// Simulate runs simulateBundle against the simulation endpoints in order and
// returns the first answer. Transactions are moved to a finalized blockhash
// and signatures are not verified.
func (c *Client) Simulate(ctx context.Context, encodedTxs []string) (*SimulationResult, error) {
	if len(c.simulators) == 0 {
		return nil, fmt.Errorf("jito: no simulation endpoints configured")
	}

	blockhash, err := c.blockhash.GetLatestBlockhash(ctx, "finalized")
	if err != nil {
		return nil, err
	}

	b64 := make([]string, 0, len(encodedTxs))
	for i, s := range encodedTxs {
		tx, err := solanaix.Deserialize(s)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		tx.Message.RecentBlockhash = blockhash
		enc, err := solanaix.SerializeBase64(tx)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		b64 = append(b64, enc)
	}

	nulls := make([]any, len(b64))
	params := []any{
		map[string]any{"encodedTransactions": b64},
		map[string]any{
			"preExecutionAccountsConfigs":  nulls,
			"postExecutionAccountsConfigs": nulls,
			"skipSigVerify":                true,
		},
	}

	for _, sim := range c.simulators {
		var resp struct {
			Result struct {
				Value simulateValue `json:"value"`
			} `json:"result"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := sim.Call(ctx, "simulateBundle", params, &resp); err != nil {
			c.logger.WithError(err).WithField("url", sim.URL()).Warn("jito simulation endpoint failed")
			continue
		}
		if resp.Error != nil {
			return &SimulationResult{Status: "error", Error: resp.Error.Message}, nil
		}

		var summary string
		passed := json.Unmarshal(resp.Result.Value.Summary, &summary) == nil && summary == "succeeded"
		res := &SimulationResult{Passed: passed, Status: "success", Summary: resp.Result.Value.Summary}
		if !passed {
			res.Status = "error"
			c.logger.WithField("summary", string(resp.Result.Value.Summary)).Warn("jito simulation failed")
		}
		return res, nil
	}

	return &SimulationResult{
		Status: "error",
		Error:  "No successful response from all simulation RPC endpoints",
	}, nil
}
