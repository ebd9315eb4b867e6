package solver

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
	"github.com/aman-zulfiqar/genius-solver/internal/evmvault"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

type revertSigner struct {
	evm *ecdsa.PrivateKey
	sol solana.PrivateKey
}

func newRevertSigner(t *testing.T) *revertSigner {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &revertSigner{evm: k, sol: solana.NewWallet().PrivateKey}
}

func (s *revertSigner) SignEvmDigest(_ context.Context, digest []byte, _ string) ([]byte, error) {
	return crypto.Sign(digest, s.evm)
}

func (s *revertSigner) SolanaPublicKey() (solana.PublicKey, error) { return s.sol.PublicKey(), nil }

func (s *revertSigner) SignSolana(_ context.Context, tx *solana.Transaction) error {
	return solanaix.Sign(tx, s.sol)
}

type revertPool struct {
	hash [32]byte
}

func (p *revertPool) GetRevertOrderTx(_ context.Context, _ models.Order, hash [32]byte, orch solana.PublicKey) (*solana.Transaction, error) {
	p.hash = hash
	return solanaix.NewVersionedTx(
		[]solana.Instruction{solanaix.NewSystemTransferIx(orch, orch, 1)},
		solana.Hash{},
		orch,
	)
}

func TestReverter_EvmSourceSignsDigest(t *testing.T) {
	s := newRevertSigner(t)
	r := NewReverter(nil, s, quiet())
	o := order(t, 1, models.ChainBase, models.ChainArbitrum)

	sig, err := r.Sign(context.Background(), o)
	require.NoError(t, err)

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	require.Len(t, raw, 65)
	assert.Contains(t, []byte{27, 28}, raw[64])

	digest, err := evmvault.RevertOrderDigest(o)
	require.NoError(t, err)
	raw[64] -= 27
	pub, err := crypto.SigToPub(digest[:], raw)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(s.evm.PublicKey), crypto.PubkeyToAddress(*pub))
}

func TestReverter_SolanaSourceSignsTransaction(t *testing.T) {
	s := newRevertSigner(t)
	pool := &revertPool{}
	r := NewReverter(pool, s, quiet())
	o := order(t, 1, models.ChainSolana, models.ChainBase)

	out, err := r.Sign(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, hashOf(t, o), pool.hash)

	tx, err := solanaix.Deserialize(out)
	require.NoError(t, err)
	require.NotEmpty(t, tx.Signatures)
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
}

func TestReverter_RejectsInvalidOrders(t *testing.T) {
	evmReceiver := order(t, 1, models.ChainBase, models.ChainArbitrum)
	evmReceiver.Receiver = "0xff" + common.Bytes2Hex(make([]byte, 31))

	zeroSolReceiver := order(t, 1, models.ChainBase, models.ChainSolana)
	zeroSolReceiver.Receiver = "0x" + common.Bytes2Hex(make([]byte, 32))

	feeAboveAmount := order(t, 1, models.ChainBase, models.ChainArbitrum)
	feeAboveAmount.Fee = "2000001"

	zeroAmount := order(t, 1, models.ChainBase, models.ChainArbitrum)
	zeroAmount.AmountIn = "0"

	cases := map[string]struct {
		order models.Order
		msg   string
	}{
		"evm receiver not an address": {evmReceiver, "Invalid EVM receiver address"},
		"zero solana receiver":        {zeroSolReceiver, "Invalid Solana receiver address"},
		"fee above amount":            {feeAboveAmount, "Invalid amountIn or fee"},
		"zero amount":                 {zeroAmount, "Invalid amountIn or fee"},
	}
	r := NewReverter(&revertPool{}, newRevertSigner(t), quiet())
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Sign(context.Background(), tc.order)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindValidation))
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestReverter_SolanaSourceNeedsPool(t *testing.T) {
	r := NewReverter(nil, newRevertSigner(t), quiet())
	_, err := r.Sign(context.Background(), order(t, 1, models.ChainSolana, models.ChainBase))
	require.Error(t, err)
	assert.Equal(t, "Solana pool not configured", err.Error())
}
