package solanaix

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// NewVersionedTx compiles instructions into a v0 transaction paid by payer.
func NewVersionedTx(instructions []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	tx.Message.SetVersion(solana.MessageVersionV0)
	// unsigned placeholders so the transaction serializes before signing
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

// Serialize encodes a transaction as base58.
func Serialize(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base58.Encode(raw), nil
}

// SerializeBase64 encodes a transaction as base64, the form RPC nodes and
// simulation endpoints expect.
func SerializeBase64(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Deserialize decodes a base58 transaction, legacy or versioned.
func Deserialize(s string) (*solana.Transaction, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 transaction: %w", err)
	}
	tx := new(solana.Transaction)
	if err := tx.UnmarshalWithDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// Sign adds priv's signature to tx, leaving signatures of other required
// signers untouched.
func Sign(tx *solana.Transaction, priv solana.PrivateKey) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	n := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != n {
		sigs := make([]solana.Signature, n)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}

	pub := priv.PublicKey()
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if !tx.Message.AccountKeys[i].Equals(pub) {
			continue
		}
		sig, err := priv.Sign(msg)
		if err != nil {
			return fmt.Errorf("failed to sign transaction: %w", err)
		}
		tx.Signatures[i] = sig
		return nil
	}
	return fmt.Errorf("%s is not a required signer of the transaction", pub)
}

// FirstSignature returns the transaction id in base58.
func FirstSignature(tx *solana.Transaction) (string, error) {
	if len(tx.Signatures) == 0 {
		return "", fmt.Errorf("transaction has no signatures")
	}
	return tx.Signatures[0].String(), nil
}
