package jito

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

type keyPayer struct{ key solana.PrivateKey }

func (p keyPayer) PublicKey() solana.PublicKey { return p.key.PublicKey() }
func (p keyPayer) SignTx(tx *solana.Transaction) error {
	return solanaix.Sign(tx, p.key)
}

type staticBlockhash struct{ hash solana.Hash }

func (s staticBlockhash) GetLatestBlockhash(context.Context, ...string) (solana.Hash, error) {
	return s.hash, nil
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type bundleRelay struct {
	srv     *httptest.Server
	bundles atomic.Int32
	sizes   chan int
}

func newRelay(t *testing.T, accept bool) *bundleRelay {
	t.Helper()
	r := &bundleRelay{sizes: make(chan int, 16)}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !accept {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(req.Body)
		var rpcReq struct {
			Method string     `json:"method"`
			Params [][]string `json:"params"`
		}
		assert.NoError(t, json.Unmarshal(body, &rpcReq))
		assert.Equal(t, "sendBundle", rpcReq.Method)
		r.bundles.Add(1)
		if len(rpcReq.Params) == 1 {
			r.sizes <- len(rpcReq.Params[0])
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"bundle-id"}`)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func testTxs(t *testing.T, payer solana.PrivateKey, n int) []*solana.Transaction {
	t.Helper()
	txs := make([]*solana.Transaction, n)
	for i := range txs {
		tx, err := solanaix.NewVersionedTx(
			[]solana.Instruction{solanaix.NewSystemTransferIx(payer.PublicKey(), solana.NewWallet().PublicKey(), uint64(i+1))},
			solana.Hash{},
			payer.PublicKey(),
		)
		require.NoError(t, err)
		txs[i] = tx
	}
	return txs
}

func TestSendBundle_ChunksAndQuorumOfOne(t *testing.T) {
	down := newRelay(t, false)
	up := newRelay(t, true)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	hash := solana.HashFromBytes(make([]byte, 32))
	hash[0] = 9

	c, err := New(Config{
		BundleEndpoints: []string{down.srv.URL, up.srv.URL},
		Blockhash:       staticBlockhash{hash: hash},
		Timeout:         time.Second,
		Logger:          quiet(),
	})
	require.NoError(t, err)

	txs := testTxs(t, key, 4)
	sigs, err := c.SendBundle(context.Background(), txs, keyPayer{key})
	require.NoError(t, err)
	assert.Len(t, sigs, 4)
	assert.Equal(t, int32(2), up.bundles.Load())

	// 3 + 1 transactions, each bundle led by its tip transaction
	assert.Equal(t, 4, <-up.sizes)
	assert.Equal(t, 2, <-up.sizes)

	for _, tx := range txs {
		assert.Equal(t, hash, tx.Message.RecentBlockhash)
	}
}

func TestSendBundle_NoRelayAccepts(t *testing.T) {
	down := newRelay(t, false)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	c, err := New(Config{
		BundleEndpoints: []string{down.srv.URL},
		Blockhash:       staticBlockhash{},
		Timeout:         time.Second,
		Logger:          quiet(),
	})
	require.NoError(t, err)

	_, err = c.SendBundle(context.Background(), testTxs(t, key, 1), keyPayer{key})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindExecution))
}

func TestPriorityFee(t *testing.T) {
	feeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"per_compute_unit":{"extreme":900000,"high":100000.2,"medium":5,"low":1}}}`)
	}))
	defer feeSrv.Close()

	c, err := New(Config{FeeRPCURL: feeSrv.URL, Blockhash: staticBlockhash{}, Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, uint64(500005), c.PriorityFee(context.Background()))

	lowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"per_compute_unit":{"high":10}}}`)
	}))
	defer lowSrv.Close()
	c, err = New(Config{FeeRPCURL: lowSrv.URL, Blockhash: staticBlockhash{}, Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, uint64(200000), c.PriorityFee(context.Background()))
}

func TestPriorityFee_TimeoutFallsBackToDefault(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c, err := New(Config{
		FeeRPCURL:  slow.URL,
		FeeTimeout: 50 * time.Millisecond,
		Blockhash:  staticBlockhash{},
		Logger:     quiet(),
	})
	require.NoError(t, err)

	start := time.Now()
	assert.Equal(t, uint64(200000), c.PriorityFee(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimulate(t *testing.T) {
	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"summary":"succeeded","transactionResults":[]}}}`)
	}))
	defer sim.Close()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	enc, err := solanaix.Serialize(testTxs(t, key, 1)[0])
	require.NoError(t, err)

	c, err := New(Config{SimulationURLs: []string{sim.URL}, Blockhash: staticBlockhash{}, Logger: quiet()})
	require.NoError(t, err)

	res, err := c.Simulate(context.Background(), []string{enc})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "success", res.Status)
}
