package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// secretLength is the size, in bytes, of a generated account secret.
const secretLength = 32

// AccountSecretRegistry is an in-memory mapping from account id to
// shared secret. It is the authoritative source the Authenticator
// consults to sign and verify. There is no removal path: once an
// account exists, it can only have its secret rotated.
type AccountSecretRegistry struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewAccountSecretRegistry returns an empty registry.
func NewAccountSecretRegistry() *AccountSecretRegistry {
	return &AccountSecretRegistry{
		secrets: make(map[string]string),
	}
}

// Register adds an account to the registry, generating a fresh 32-byte
// hex-encoded secret if secret is empty. It returns the secret in force
// for the account.
func (r *AccountSecretRegistry) Register(accountID string, secret string) (string, error) {
	if secret == "" {
		generated, err := generateSecret()
		if err != nil {
			return "", err
		}
		secret = generated
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[accountID] = secret
	return secret, nil
}

// GetSecret returns the secret registered for accountID, or ("", false)
// if none is registered.
func (r *AccountSecretRegistry) GetSecret(accountID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	secret, ok := r.secrets[accountID]
	return secret, ok
}

// SetSecret overwrites (or creates) the secret for an account.
func (r *AccountSecretRegistry) SetSecret(accountID, secret string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[accountID] = secret
}

func generateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ErrUnknownSender is returned by Authenticator.Sign when the registry
// has no secret for the transaction's sender.
var ErrUnknownSender = Errorf("unknown sender: no secret registered for this account")

// Authenticator binds a Transaction to its sending account via an
// HMAC-SHA-256 signature over the transaction's canonical payload. It is
// stateless apart from its reference to the registry.
type Authenticator struct {
	registry *AccountSecretRegistry
}

// NewAuthenticator returns an Authenticator backed by registry.
func NewAuthenticator(registry *AccountSecretRegistry) *Authenticator {
	return &Authenticator{registry: registry}
}

// Sign looks up the secret for tx.FromAccount and returns the
// transaction paired with HMAC-SHA-256(secret, canonical_payload(tx)) as
// lowercase hex. It fails with ErrUnknownSender if no secret is
// registered for the sender.
func (a *Authenticator) Sign(tx Transaction) (SignedTransaction, error) {
	secret, ok := a.registry.GetSecret(tx.FromAccount)
	if !ok {
		return SignedTransaction{}, ErrUnknownSender
	}

	sig := computeMAC(secret, canonicalTransactionPayload(tx))
	return SignedTransaction{Transaction: tx, Signature: sig}, nil
}

// Verify recomputes the expected signature for signed.Transaction and
// compares it against signed.Signature in constant time. It returns
// false (never an error) for an unknown sender or a mismatched
// signature, so that a caller cannot distinguish "unknown account" from
// "bad signature" by error inspection. An unknown sender returns before
// any MAC is computed.
func (a *Authenticator) Verify(signed SignedTransaction) bool {
	secret, ok := a.registry.GetSecret(signed.Transaction.FromAccount)
	if !ok {
		return false
	}

	expected := computeMAC(secret, canonicalTransactionPayload(signed.Transaction))
	// hmac.Equal performs a constant-time comparison; a naive byte-by-byte
	// comparison here would be a timing oracle against the signature.
	return hmac.Equal([]byte(expected), []byte(signed.Signature))
}

func computeMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
