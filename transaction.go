package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Transaction is a caller-submitted request to move money from one
// account to another. It is immutable once constructed.
type Transaction struct {
	ID          string
	FromAccount string
	ToAccount   string
	Amount      Money
	CreatedAt   time.Time
	Metadata    map[string]string
}

// NewTransactionID returns a fresh 128-bit random hex identifier, used
// when a caller does not supply one.
func NewTransactionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("transaction: failed to generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewTransaction constructs a Transaction, assigning a fresh id and the
// current UTC time if not already set. metadata may be nil.
func NewTransaction(id, from, to string, amount Money, metadata map[string]string) (Transaction, error) {
	if amount.Amount.IsNegative() {
		return Transaction{}, fmt.Errorf("transaction: amount must not be negative")
	}
	if id == "" {
		generated, err := NewTransactionID()
		if err != nil {
			return Transaction{}, err
		}
		id = generated
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Transaction{
		ID:          id,
		FromAccount: from,
		ToAccount:   to,
		Amount:      amount,
		CreatedAt:   time.Now().UTC(),
		Metadata:    metadata,
	}, nil
}

// SignedTransaction binds a Transaction to a hex-encoded MAC computed by
// an Authenticator over the transaction's canonical payload.
type SignedTransaction struct {
	Transaction Transaction
	Signature   string
	KeyID       string
}
