package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter wires a router against a fresh in-memory SQLite store,
// the default fee/split policy, and the default vault registry, with an
// authenticator seeded with secrets for every accountID given.
func newTestRouter(t testing.TB, accountIDs ...string) (*TransactionRouter, *LedgerStore, *Authenticator) {
	t.Helper()

	store := NewLedgerStore(setupTestSqlite(t))
	registry := NewAccountSecretRegistry()
	for _, id := range accountIDs {
		_, err := registry.Register(id, "")
		require.NoError(t, err)
	}
	auth := NewAuthenticator(registry)

	router := NewTransactionRouter(store, auth, DefaultFeePolicy(), DefaultSplitPolicy(), DefaultVaultRegistry())
	return router, store, auth
}

func signedTx(t testing.TB, auth *Authenticator, from, to, amount string) SignedTransaction {
	t.Helper()
	tx, err := NewTransaction("", from, to, money(t, amount), nil)
	require.NoError(t, err)
	signed, err := auth.Sign(tx)
	require.NoError(t, err)
	return signed
}

func TestRouteHundredDollarTransfer(t *testing.T) {
	router, store, auth := newTestRouter(t, "acct:alice", "acct:merchant")

	signed := signedTx(t, auth, "acct:alice", "acct:merchant", "100.00")
	receipt, err := router.Route(signed)
	require.NoError(t, err)

	assert.Equal(t, "1.00", receipt.FeeAmount.String())
	assert.Equal(t, "0.50", receipt.SafetyAmount.String())
	assert.Equal(t, "0.50", receipt.GrowthAmount.String())
	assert.Equal(t, "99.00", receipt.NetAmount.String())
	assert.Equal(t, signed.Transaction.CreatedAt, receipt.CreatedAt)

	alice, err := store.Balance("acct:alice")
	require.NoError(t, err)
	assert.Equal(t, "-100.00", alice.Amount.StringFixed(2))

	merchant, err := store.Balance("acct:merchant")
	require.NoError(t, err)
	assert.Equal(t, "99.00", merchant.Amount.StringFixed(2))

	safety, err := store.Balance("vault:safety")
	require.NoError(t, err)
	assert.Equal(t, "0.50", safety.Amount.StringFixed(2))

	growth, err := store.Balance("vault:growth")
	require.NoError(t, err)
	assert.Equal(t, "0.50", growth.Amount.StringFixed(2))

	events, err := store.Events()
	require.NoError(t, err)
	assert.Len(t, events, 3)

	ok, reason, err := store.VerifyChain()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

// A $0.01 transfer produces a zero fee, so only the net leg is
// recorded, but the receipt still reports all six money fields.
func TestRouteSubCentTransferDropsBothSplitLegs(t *testing.T) {
	router, store, auth := newTestRouter(t, "acct:bob", "acct:c")

	signed := signedTx(t, auth, "acct:bob", "acct:c", "0.01")
	receipt, err := router.Route(signed)
	require.NoError(t, err)

	assert.Equal(t, "0.00", receipt.FeeAmount.String())
	assert.Equal(t, "0.00", receipt.SafetyAmount.String())
	assert.Equal(t, "0.00", receipt.GrowthAmount.String())
	assert.Equal(t, "0.01", receipt.NetAmount.String())

	events, err := store.Events()
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// Half-up rounding of 0.0099 yields a $0.01 fee, split into a $0.01
// safety leg and a $0.00 growth leg; only the growth leg is dropped.
func TestRouteNinetyNineCentsDropsGrowthLegOnly(t *testing.T) {
	router, store, auth := newTestRouter(t, "acct:bob", "acct:c")

	signed := signedTx(t, auth, "acct:bob", "acct:c", "0.99")
	receipt, err := router.Route(signed)
	require.NoError(t, err)

	assert.Equal(t, "0.01", receipt.FeeAmount.String())
	assert.Equal(t, "0.01", receipt.SafetyAmount.String())
	assert.Equal(t, "0.00", receipt.GrowthAmount.String())
	assert.Equal(t, "0.98", receipt.NetAmount.String())

	events, err := store.Events()
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// A tampered signature is rejected before any event or receipt is
// written, and the sender's balance is untouched.
func TestRouteRejectsBadSignature(t *testing.T) {
	router, store, auth := newTestRouter(t, "acct:alice", "acct:merchant")

	signed := signedTx(t, auth, "acct:alice", "acct:merchant", "100.00")
	tampered := flipSignatureNibble(signed)

	_, err := router.Route(tampered)
	require.Error(t, err)
	assert.True(t, IsLedgerError(err))

	events, err := store.Events()
	require.NoError(t, err)
	assert.Empty(t, events)

	alice, err := store.Balance("acct:alice")
	require.NoError(t, err)
	assert.True(t, alice.IsZero())

	_, err = store.GetReceipt(signed.Transaction.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestRouteWithoutAuthenticatorAcceptsUnsignedTransaction verifies the
// router's testing/demo escape hatch: a nil authenticator accepts the
// transaction without a signature check.
func TestRouteWithoutAuthenticatorAcceptsUnsignedTransaction(t *testing.T) {
	store := NewLedgerStore(setupTestSqlite(t))
	router := NewTransactionRouter(store, nil, DefaultFeePolicy(), DefaultSplitPolicy(), DefaultVaultRegistry())

	tx, err := NewTransaction("", "acct:alice", "acct:merchant", money(t, "10.00"), nil)
	require.NoError(t, err)

	receipt, err := router.Route(SignedTransaction{Transaction: tx})
	require.NoError(t, err)
	assert.Equal(t, "9.90", receipt.NetAmount.String())
}

// net + fee == gross, and safety + growth == fee, exactly, for a routed
// transaction.
func TestRouteConservesValue(t *testing.T) {
	router, _, auth := newTestRouter(t, "acct:alice", "acct:merchant")

	signed := signedTx(t, auth, "acct:alice", "acct:merchant", "33.37")
	receipt, err := router.Route(signed)
	require.NoError(t, err)

	netPlusFee, err := receipt.NetAmount.Add(receipt.FeeAmount)
	require.NoError(t, err)
	assert.Equal(t, receipt.GrossAmount.String(), netPlusFee.String())

	safetyPlusGrowth, err := receipt.SafetyAmount.Add(receipt.GrowthAmount)
	require.NoError(t, err)
	assert.Equal(t, receipt.FeeAmount.String(), safetyPlusGrowth.String())
}

func flipSignatureNibble(signed SignedTransaction) SignedTransaction {
	sig := []byte(signed.Signature)
	if sig[0] == '0' {
		sig[0] = '1'
	} else {
		sig[0] = '0'
	}
	signed.Signature = string(sig)
	return signed
}
