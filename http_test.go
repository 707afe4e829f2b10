package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feeld/ledgerd/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t testing.TB, accountIDs ...string) (*httptest.Server, *Authenticator, *LedgerStore) {
	t.Helper()

	store := NewLedgerStore(setupTestSqlite(t))
	registry := NewAccountSecretRegistry()
	for _, id := range accountIDs {
		_, err := registry.Register(id, "")
		require.NoError(t, err)
	}
	auth := NewAuthenticator(registry)
	router := NewTransactionRouter(store, auth, DefaultFeePolicy(), DefaultSplitPolicy(), DefaultVaultRegistry())

	logger := log.NewNoopLogger()
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	broadcaster := NewReceiptBroadcaster(logger)

	server := httptest.NewServer(NewServer(router, store, registry, broadcaster, metrics, logger))
	t.Cleanup(server.Close)
	return server, auth, store
}

// transactionBody builds the signed wire form for a fresh transaction,
// exactly as a client holding the sender's secret would.
func transactionBody(t testing.TB, auth *Authenticator, from, to, amount string) ([]byte, Transaction) {
	t.Helper()

	tx, err := NewTransaction("", from, to, money(t, amount), nil)
	require.NoError(t, err)
	signed, err := auth.Sign(tx)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"id":         tx.ID,
		"from":       tx.FromAccount,
		"to":         tx.ToAccount,
		"amount":     tx.Amount.String(),
		"currency":   tx.Amount.Currency,
		"created_at": tx.CreatedAt.Format(time.RFC3339Nano),
		"metadata":   tx.Metadata,
		"signature":  signed.Signature,
	})
	require.NoError(t, err)
	return body, tx
}

func postJSON(t testing.TB, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t testing.TB, url string, dst any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if dst != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp
}

func TestServerSubmitTransactionReturnsAndStoresReceipt(t *testing.T) {
	server, auth, _ := newTestServer(t, "acct:alice", "acct:merchant")

	body, tx := transactionBody(t, auth, "acct:alice", "acct:merchant", "100.00")
	resp := postJSON(t, server.URL+"/transactions", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var receipt ReceiptBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	assert.Equal(t, tx.ID, receipt.TransactionID)
	assert.Equal(t, "99.00", receipt.NetAmount.String())
	assert.Equal(t, "1.00", receipt.FeeAmount.String())

	var stored ReceiptBody
	got := getJSON(t, server.URL+"/transactions/"+tx.ID, &stored)
	require.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, receipt.NetAmount.String(), stored.NetAmount.String())

	var verify struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	got = getJSON(t, server.URL+"/ledger/verify", &verify)
	require.Equal(t, http.StatusOK, got.StatusCode)
	assert.True(t, verify.OK)
	assert.Empty(t, verify.Error)
}

func TestServerRejectsTamperedSignature(t *testing.T) {
	server, auth, store := newTestServer(t, "acct:alice", "acct:merchant")

	body, tx := transactionBody(t, auth, "acct:alice", "acct:merchant", "100.00")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	decoded["signature"] = "deadbeef"
	tampered, err := json.Marshal(decoded)
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/transactions", tampered)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := getJSON(t, server.URL+"/transactions/"+tx.ID, nil)
	assert.Equal(t, http.StatusNotFound, got.StatusCode)

	events, err := store.Events()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestServerRejectsUnparsableAmount(t *testing.T) {
	server, auth, _ := newTestServer(t, "acct:alice", "acct:merchant")

	body, _ := transactionBody(t, auth, "acct:alice", "acct:merchant", "10.00")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	decoded["amount"] = "ten dollars"
	mangled, err := json.Marshal(decoded)
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/transactions", mangled)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerCreateAccountReturnsGeneratedSecret(t *testing.T) {
	server, _, store := newTestServer(t)

	resp := postJSON(t, server.URL+"/accounts", []byte(`{"account_id":"acct:new"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		AccountID string `json:"account_id"`
		Secret    string `json:"secret"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "acct:new", created.AccountID)
	assert.Len(t, created.Secret, secretLength*2)

	secret, err := store.GetAccountSecret("acct:new")
	require.NoError(t, err)
	assert.Equal(t, created.Secret, secret)
}

func TestServerBalanceOfUnknownAccountIsZero(t *testing.T) {
	server, _, _ := newTestServer(t)

	var balance struct {
		AccountID string `json:"account_id"`
		Balance   Money  `json:"balance"`
	}
	resp := getJSON(t, server.URL+"/accounts/acct:nobody/balance", &balance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.00", balance.Balance.String())
}

func TestServerReceiptNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp := getJSON(t, server.URL+"/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerHealth(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp := getJSON(t, server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
