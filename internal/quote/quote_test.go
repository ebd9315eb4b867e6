package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

type stubQuoter struct {
	name  string
	delay time.Duration
	resp  *Response
	err   error
}

func (s stubQuoter) Name() string { return s.name }

func (s stubQuoter) FetchQuote(ctx context.Context, _ Request) (*Response, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.resp, s.err
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRace_FirstSuccessWins(t *testing.T) {
	m := NewMulti(quiet(),
		stubQuoter{name: "broken", err: errors.New("down")},
		stubQuoter{name: "slow", delay: time.Second, resp: &Response{AmountOut: "99"}},
		stubQuoter{name: "fast", delay: 10 * time.Millisecond, resp: &Response{AmountOut: "10"}},
	)

	start := time.Now()
	resp, err := m.Race(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Provider)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRace_AllFail(t *testing.T) {
	m := NewMulti(quiet(),
		stubQuoter{name: "a", err: errors.New("no route")},
		stubQuoter{name: "b"},
	)
	_, err := m.Race(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindExecution))
	assert.Contains(t, err.Error(), "No quote found")
}

func TestBest_PicksLargestAmountOut(t *testing.T) {
	m := NewMulti(quiet(),
		stubQuoter{name: "a", resp: &Response{AmountOut: "1000"}},
		stubQuoter{name: "b", delay: 20 * time.Millisecond, resp: &Response{AmountOut: "1001"}},
		stubQuoter{name: "c", err: errors.New("down")},
	)
	resp, err := BestQuoter(m).FetchQuote(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "b", resp.Provider)
}

func TestIntentsClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.ChainBase, req.NetworkIn)
		assert.Equal(t, 0.01, req.Slippage)

		fmt.Fprint(w, `{"result":{"protocol":"debridge","amountOut":"4990000","evmExecutionPayload":{"transactionData":{"to":"0x01","data":"0xabcd","value":"12"}}}}`)
	}))
	defer srv.Close()

	c := NewIntentsClient(srv.URL, "secret")
	resp, err := c.FetchQuote(context.Background(), Request{
		NetworkIn:  models.ChainBase,
		NetworkOut: models.ChainArbitrum,
		AmountIn:   "5000000",
		Slippage:   0.01,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.EvmExecutionPayload)
	assert.Equal(t, "0xabcd", resp.EvmExecutionPayload.TransactionData.Data)
	assert.Equal(t, "12", resp.EvmExecutionPayload.TransactionData.Value)
}

func TestIntentsClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unsupported route", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewIntentsClient(srv.URL, "").FetchQuote(context.Background(), Request{AmountIn: "1"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
}

func TestSlippageBps(t *testing.T) {
	assert.Equal(t, uint16(100), slippageBps(1))
	assert.Equal(t, uint16(1), slippageBps(0.01))
	assert.Equal(t, uint16(1), slippageBps(0))
}
