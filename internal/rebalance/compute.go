// Package rebalance computes liquidity transfers between chain vaults and
// turns signed rebalancing instructions into executable payloads.
package rebalance

import (
	"math"
	"math/big"
	"sort"
	"strconv"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

const ratioTolerance = 1e-6

var minRebalanceAmount = big.NewInt(constants.MinRebalanceBaseUnits)

// Plan is the outcome of Compute. FinalAvailableBalances is keyed by the
// decimal chain id and expressed in each chain's native decimals.
type Plan struct {
	Actions                []models.RebalanceAction `json:"actions"`
	FinalAvailableBalances map[string]string        `json:"finalAvailableBalances"`
}

type vaultState struct {
	network  models.ChainID
	decimals int
	ratio    float64

	available *big.Int
	balance   *big.Int

	normAvailable *big.Int
	normBalance   *big.Int
	normStaked    *big.Int
}

// Compute moves each vault toward total*ratio of the normalized available
// liquidity. Vaults are sorted by available balance, largest first; each
// vault above its target sends to the vaults below target, smallest first,
// and balances are updated after every transfer. A transfer never takes a
// source below its highest staked amount, and transfers of at most
// MinRebalanceBaseUnits are skipped. Nil ratios mean an equal split.
// The input snapshots are not modified.
func Compute(vaults []models.VaultSnapshot, ratios []float64) (*Plan, error) {
	if len(vaults) <= 1 {
		return &Plan{Actions: []models.RebalanceAction{}, FinalAvailableBalances: availableBalances(vaults)}, nil
	}

	if len(ratios) > 0 {
		if len(ratios) != len(vaults) {
			return nil, errs.Validation("Number of ratios must match number of vaults")
		}
		var sum float64
		for _, r := range ratios {
			if r < 0 || math.IsNaN(r) {
				return nil, errs.Validation("Ratios must be non-negative")
			}
			sum += r
		}
		if math.Abs(sum-1) > ratioTolerance {
			return nil, errs.Validation("Ratios must sum to 1")
		}
	} else {
		ratios = make([]float64, len(vaults))
		for i := range ratios {
			ratios[i] = 1 / float64(len(vaults))
		}
	}

	states := make([]*vaultState, len(vaults))
	total := new(big.Int)
	for i, v := range vaults {
		st := &vaultState{
			network:   v.Network,
			decimals:  v.Decimals,
			ratio:     ratios[i],
			available: orZero(v.AvailableBalance),
			balance:   orZero(v.VaultBalance),
		}
		st.normAvailable = decimals.Adjust(st.available, v.Decimals, constants.BaseDecimals)
		st.normBalance = decimals.Adjust(st.balance, v.Decimals, constants.BaseDecimals)
		st.normStaked = decimals.Adjust(orZero(v.HighestStakedAmount), v.Decimals, constants.BaseDecimals)
		total.Add(total, st.normAvailable)
		states[i] = st
	}
	if total.Sign() == 0 {
		return &Plan{Actions: []models.RebalanceAction{}, FinalAvailableBalances: availableBalances(vaults)}, nil
	}

	sort.SliceStable(states, func(i, j int) bool {
		return states[i].normAvailable.Cmp(states[j].normAvailable) > 0
	})

	targets := make(map[models.ChainID]*big.Int, len(states))
	for _, st := range states {
		targets[st.network] = decimals.Share(total, st.ratio)
	}

	actions := []models.RebalanceAction{}
	for i := 0; i < len(states)-1; i++ {
		src := states[i]
		if src.normAvailable.Cmp(targets[src.network]) <= 0 {
			continue
		}
		for j := len(states) - 1; j > i; j-- {
			dst := states[j]
			if dst.normAvailable.Cmp(targets[dst.network]) >= 0 {
				continue
			}
			amount := minOf(
				new(big.Int).Sub(src.normAvailable, targets[src.network]),
				new(big.Int).Sub(src.normBalance, src.normStaked),
				new(big.Int).Sub(targets[dst.network], dst.normAvailable),
			)
			if amount.Cmp(minRebalanceAmount) <= 0 {
				continue
			}
			actions = append(actions, transfer(src, dst, amount))
		}
	}

	final := make(map[string]string, len(states))
	for _, st := range states {
		final[chainKey(st.network)] = st.available.String()
	}
	return &Plan{Actions: actions, FinalAvailableBalances: final}, nil
}

// transfer applies a normalized amount to both vaults and records it in the
// source vault's decimals.
func transfer(src, dst *vaultState, amount *big.Int) models.RebalanceAction {
	srcAmount := decimals.Adjust(amount, constants.BaseDecimals, src.decimals)
	dstAmount := decimals.Adjust(amount, constants.BaseDecimals, dst.decimals)

	src.available.Sub(src.available, srcAmount)
	src.balance.Sub(src.balance, srcAmount)
	dst.available.Add(dst.available, dstAmount)
	dst.balance.Add(dst.balance, dstAmount)

	src.normAvailable.Sub(src.normAvailable, amount)
	src.normBalance.Sub(src.normBalance, amount)
	dst.normAvailable.Add(dst.normAvailable, amount)
	dst.normBalance.Add(dst.normBalance, amount)

	return models.RebalanceAction{
		SourceNetwork: src.network,
		TargetNetwork: dst.network,
		Amount:        srcAmount.String(),
	}
}

func availableBalances(vaults []models.VaultSnapshot) map[string]string {
	out := make(map[string]string, len(vaults))
	for _, v := range vaults {
		out[chainKey(v.Network)] = orZero(v.AvailableBalance).String()
	}
	return out
}

func chainKey(c models.ChainID) string {
	return strconv.FormatUint(uint64(c), 10)
}

// orZero returns a copy of v, or zero for nil.
func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func minOf(first *big.Int, rest ...*big.Int) *big.Int {
	m := first
	for _, v := range rest {
		if v.Cmp(m) < 0 {
			m = v
		}
	}
	return m
}
