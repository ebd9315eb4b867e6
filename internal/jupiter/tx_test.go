package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

type fixedFee float64

func (f fixedFee) GetPriorityFeeEstimate(context.Context, []string, string) (float64, error) {
	return float64(f), nil
}

type zeroHash struct{}

func (zeroHash) GetLatestBlockhash(context.Context, ...string) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func jupiterServer(t *testing.T, swapDataLen int) *httptest.Server {
	t.Helper()
	program := solana.NewWallet().PublicKey().String()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/quote"):
			assert.Equal(t, "ExactIn", r.URL.Query().Get("swapMode"))
			assert.Equal(t, "100", r.URL.Query().Get("slippageBps"))
			fmt.Fprint(w, `{"inputMint":"a","outputMint":"b","inAmount":"1000","outAmount":"990","swapMode":"ExactIn","slippageBps":100}`)
		case r.URL.Path == "/swap-instructions":
			var req SwapInstructionsRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "990", req.QuoteResponse.OutAmount)
			ix := Instruction{
				ProgramID: program,
				Accounts:  []AccountMeta{{Pubkey: req.UserPublicKey, IsSigner: true, IsWritable: true}},
				Data:      base64.StdEncoding.EncodeToString(make([]byte, swapDataLen)),
			}
			_ = json.NewEncoder(w).Encode(SwapInstructionsResponse{SwapInstruction: &ix, CleanupInstruction: &ix})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildSwapTx(t *testing.T) {
	srv := jupiterServer(t, 16)
	client := NewClient(srv.URL, "")
	user := solana.NewWallet().PublicKey()

	quote, err := client.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: "1000", SlippageBps: 100})
	require.NoError(t, err)

	b := NewTxBuilder(client, fixedFee(1234.9), zeroHash{}, quiet())
	enc, err := b.BuildSwapTx(context.Background(), SwapTxParams{Quote: quote, User: user})
	require.NoError(t, err)

	tx, err := solanaix.Deserialize(enc)
	require.NoError(t, err)
	require.Len(t, tx.Message.Instructions, 4)
	assert.Equal(t, user, tx.Message.AccountKeys[0])

	budget := tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex]
	assert.Equal(t, "ComputeBudget111111111111111111111111111111", budget.String())

	price := tx.Message.Instructions[1].Data
	require.Len(t, price, 9)
	assert.Equal(t, byte(3), price[0])
	assert.Equal(t, byte(1234&0xff), price[1])
}

func TestBuildSwapTx_RejectsOversizedTransaction(t *testing.T) {
	srv := jupiterServer(t, 1200)
	client := NewClient(srv.URL, "")

	b := NewTxBuilder(client, nil, zeroHash{}, quiet())
	_, err := b.BuildSwapTx(context.Background(), SwapTxParams{
		Quote: &QuoteResponse{OutAmount: "990"},
		User:  solana.NewWallet().PublicKey(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transaction byte length exceeds limit")
}

func TestQuote_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no route", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: "1"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}
