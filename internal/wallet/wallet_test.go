package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/rpc"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

func TestParsePrivateKey(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	fromB58, err := ParsePrivateKey("  " + key.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromB58.PublicKey())

	ints := make([]string, len(key))
	for i, b := range key {
		ints[i] = fmt.Sprint(b)
	}
	fromJSON, err := ParsePrivateKey("[" + strings.Join(ints, ",") + "]")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromJSON.PublicKey())

	_, err = ParsePrivateKey("[1,2,3]")
	assert.Error(t, err)
	_, err = ParsePrivateKey("[1,2,999]")
	assert.Error(t, err)
	_, err = ParsePrivateKey("0OIl")
	assert.Error(t, err)
}

func TestSignSerializedKeepsOtherSignatures(t *testing.T) {
	orchestrator, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	trader, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w, err := NewWallet(WalletConfig{PrivateKey: orchestrator.String()})
	require.NoError(t, err)

	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		{PublicKey: orchestrator.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: trader.PublicKey(), IsSigner: true, IsWritable: true},
	}, []byte{})
	tx, err := solanaix.NewVersionedTx([]solana.Instruction{ix}, solana.Hash{}, orchestrator.PublicKey())
	require.NoError(t, err)
	require.NoError(t, solanaix.Sign(tx, trader))
	encoded, err := solanaix.Serialize(tx)
	require.NoError(t, err)

	signed, err := w.SignSerialized(encoded)
	require.NoError(t, err)
	back, err := solanaix.Deserialize(signed)
	require.NoError(t, err)

	msg, err := back.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, back.Signatures[0].Verify(orchestrator.PublicKey(), msg))
	assert.True(t, back.Signatures[1].Verify(trader.PublicKey(), msg))
}

func TestSendAll(t *testing.T) {
	var sent int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &req)

		switch req.Method {
		case "sendTransaction":
			sent++
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":"sig%d"}`, sent)
		case "getSignatureStatuses":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":[{"slot":1,"confirmationStatus":"confirmed","err":null}]}}`)
		default:
			http.Error(w, "unexpected method", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	pool, err := rpc.NewPool([]string{srv.URL}, rpc.ClientConfig{Timeout: time.Second, Logger: logger})
	require.NoError(t, err)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := NewWallet(WalletConfig{PrivateKey: key.String(), RPC: pool, Logger: logger})
	require.NoError(t, err)

	var txs []*solana.Transaction
	for i := 0; i < 2; i++ {
		tx, err := solanaix.NewVersionedTx(
			[]solana.Instruction{solanaix.NewSystemTransferIx(key.PublicKey(), solana.SystemProgramID, uint64(i+1))},
			solana.Hash{},
			key.PublicKey(),
		)
		require.NoError(t, err)
		txs = append(txs, tx)
	}

	sigs, err := w.SendAll(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, []string{"sig1", "sig2"}, sigs)
}
