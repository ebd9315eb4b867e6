package rebalance

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

func vault(chain models.ChainID, available string, dec int) models.VaultSnapshot {
	return stakedVault(chain, available, dec, available, "0")
}

func stakedVault(chain models.ChainID, available string, dec int, balance, staked string) models.VaultSnapshot {
	n := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			panic(s)
		}
		return v
	}
	return models.VaultSnapshot{
		Network:             chain,
		Stablecoin:          "TEST",
		Decimals:            dec,
		AvailableBalance:    n(available),
		VaultBalance:        n(balance),
		HighestStakedAmount: n(staked),
	}
}

// apply replays actions over the snapshots and returns normalized balances.
func apply(vaults []models.VaultSnapshot, actions []models.RebalanceAction) map[models.ChainID]*big.Int {
	dec := map[models.ChainID]int{}
	out := map[models.ChainID]*big.Int{}
	for _, v := range vaults {
		dec[v.Network] = v.Decimals
		out[v.Network] = decimals.Adjust(v.AvailableBalance, v.Decimals, 6)
	}
	for _, a := range actions {
		amt, _ := new(big.Int).SetString(a.Amount, 10)
		norm := decimals.Adjust(amt, dec[a.SourceNetwork], 6)
		out[a.SourceNetwork].Sub(out[a.SourceNetwork], norm)
		out[a.TargetNetwork].Add(out[a.TargetNetwork], norm)
	}
	return out
}

func stdDev(vals []*big.Int) float64 {
	var sum float64
	fs := make([]float64, len(vals))
	for i, v := range vals {
		fs[i], _ = new(big.Float).SetInt(v).Float64()
		sum += fs[i]
	}
	mean := sum / float64(len(fs))
	var sq float64
	for _, f := range fs {
		sq += (f - mean) * (f - mean)
	}
	return math.Sqrt(sq / float64(len(fs)))
}

func normalized(vaults []models.VaultSnapshot) []*big.Int {
	out := make([]*big.Int, len(vaults))
	for i, v := range vaults {
		out[i] = decimals.Adjust(v.AvailableBalance, v.Decimals, 6)
	}
	return out
}

func TestCompute_NothingToDo(t *testing.T) {
	cases := map[string][]models.VaultSnapshot{
		"empty":  nil,
		"single": {vault(models.ChainEthereum, "1000000", 6)},
		"balanced": {
			vault(models.ChainEthereum, "1000000", 6),
			vault(models.ChainPolygon, "1000000", 6),
		},
		"balanced across decimals": {
			vault(models.ChainEthereum, "20000000", 6),
			vault(models.ChainBSC, "20000000000000000000", 18),
		},
		"all dust": {
			vault(models.ChainBSC, "999999999999", 18),
			vault(models.ChainSolana, "0", 6),
		},
	}
	for name, vaults := range cases {
		t.Run(name, func(t *testing.T) {
			plan, err := Compute(vaults, nil)
			require.NoError(t, err)
			assert.Empty(t, plan.Actions)
			assert.Len(t, plan.FinalAvailableBalances, len(vaults))
		})
	}
}

func TestCompute_TwoVaults(t *testing.T) {
	plan, err := Compute([]models.VaultSnapshot{
		vault(models.ChainEthereum, "20000000", 6),
		vault(models.ChainPolygon, "10000000", 6),
	}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.RebalanceAction{
		SourceNetwork: models.ChainEthereum,
		TargetNetwork: models.ChainPolygon,
		Amount:        "5000000",
	}, plan.Actions[0])
	assert.Equal(t, map[string]string{"1": "15000000", "137": "15000000"}, plan.FinalAvailableBalances)
}

func TestCompute_MinimumIsExclusive(t *testing.T) {
	// surplus of exactly $1 is not moved
	plan, err := Compute([]models.VaultSnapshot{
		vault(models.ChainEthereum, "12000000", 6),
		vault(models.ChainPolygon, "10000000", 6),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Actions)

	plan, err = Compute([]models.VaultSnapshot{
		vault(models.ChainEthereum, "12000002", 6),
		vault(models.ChainPolygon, "10000000", 6),
	}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "1000001", plan.Actions[0].Amount)
}

func TestCompute_StakedFloor(t *testing.T) {
	plan, err := Compute([]models.VaultSnapshot{
		stakedVault(models.ChainEthereum, "50000000", 6, "100000000", "90000000"),
		vault(models.ChainPolygon, "10000000", 6),
	}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "10000000", plan.Actions[0].Amount)
}

func TestCompute_AmountsInSourceDecimals(t *testing.T) {
	plan, err := Compute([]models.VaultSnapshot{
		vault(models.ChainBSC, "30000000000000000000", 18),
		vault(models.ChainBase, "10000000", 6),
	}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.ChainBSC, plan.Actions[0].SourceNetwork)
	assert.Equal(t, "10000000000000000000", plan.Actions[0].Amount)
	assert.Equal(t, "20000000000000000000", plan.FinalAvailableBalances["56"])
	assert.Equal(t, "20000000", plan.FinalAvailableBalances["8453"])
}

func TestCompute_TieBreakOrder(t *testing.T) {
	plan, err := Compute([]models.VaultSnapshot{
		vault(models.ChainEthereum, "40000000", 6),
		vault(models.ChainPolygon, "10000000", 6),
		vault(models.ChainBase, "10000000", 6),
		vault(models.ChainArbitrum, "20000000", 6),
	}, nil)
	require.NoError(t, err)

	// targets are scanned from the smallest vault; equal vaults keep input order
	assert.Equal(t, []models.RebalanceAction{
		{SourceNetwork: models.ChainEthereum, TargetNetwork: models.ChainBase, Amount: "10000000"},
		{SourceNetwork: models.ChainEthereum, TargetNetwork: models.ChainPolygon, Amount: "10000000"},
	}, plan.Actions)
}

func TestCompute_Ratios(t *testing.T) {
	plan, err := Compute([]models.VaultSnapshot{
		vault(models.ChainEthereum, "10000000", 6),
		vault(models.ChainPolygon, "10000000", 6),
	}, []float64{0.25, 0.75})
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "5000000", plan.Actions[0].Amount)

	two := []models.VaultSnapshot{vault(models.ChainEthereum, "1", 6), vault(models.ChainPolygon, "1", 6)}
	_, err = Compute(two, []float64{1})
	assert.True(t, errs.Is(err, errs.KindValidation))
	_, err = Compute(two, []float64{0.5, 0.6})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestCompute_ConservesAndReducesSpread(t *testing.T) {
	vaults := []models.VaultSnapshot{
		vault(models.ChainEthereum, "30000000", 6),
		vault(models.ChainPolygon, "10000000", 6),
		vault(models.ChainArbitrum, "20000000", 6),
		vault(models.ChainBSC, "47000000000000000000", 18),
		vault(models.ChainSolana, "3000000", 6),
	}
	before := normalized(vaults)

	plan, err := Compute(vaults, nil)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Actions)

	after := apply(vaults, plan.Actions)
	sumBefore, sumAfter := new(big.Int), new(big.Int)
	afterVals := make([]*big.Int, 0, len(after))
	for _, v := range before {
		sumBefore.Add(sumBefore, v)
	}
	for _, v := range after {
		sumAfter.Add(sumAfter, v)
		afterVals = append(afterVals, v)
	}
	assert.Equal(t, sumBefore, sumAfter)
	assert.LessOrEqual(t, stdDev(afterVals), stdDev(before))
}

func TestCompute_DoesNotModifyInput(t *testing.T) {
	vaults := []models.VaultSnapshot{
		vault(models.ChainEthereum, "20000000", 6),
		vault(models.ChainPolygon, "10000000", 6),
	}
	_, err := Compute(vaults, nil)
	require.NoError(t, err)
	assert.Equal(t, "20000000", vaults[0].AvailableBalance.String())
	assert.Equal(t, "10000000", vaults[1].VaultBalance.String())
}
