package main

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// runSeedCli populates a ledger with one illustrative transaction and
// prints the resulting receipt, balances and chain verification
// outcome. Useful for a quick local walkthrough without standing up
// the HTTP server.
func runSeedCli(logger Logger) {
	logger = logger.WithName("seed")

	db, err := openSqlite(DatabaseConfig{Name: "ledgerd_seed.db"})
	if err != nil {
		logger.Fatal("failed to open seed database", "error", err)
	}

	store := NewLedgerStore(db)
	registry := NewAccountSecretRegistry()
	auth := NewAuthenticator(registry)
	vaults := DefaultVaultRegistry()
	router := NewTransactionRouter(store, auth, DefaultFeePolicy(), DefaultSplitPolicy(), vaults)

	secret, err := registry.Register("acct:alice", "")
	if err != nil {
		logger.Fatal("failed to register account", "error", err)
	}
	if err := store.CreateAccount("acct:alice", secret); err != nil {
		logger.Fatal("failed to persist account", "error", err)
	}

	amount := MustMoney(decimal.NewFromFloat(100.00), DefaultCurrency)
	tx, err := NewTransaction("", "acct:alice", "acct:merchant", amount, map[string]string{"purpose": "groceries"})
	if err != nil {
		logger.Fatal("failed to build seed transaction", "error", err)
	}

	signed, err := auth.Sign(tx)
	if err != nil {
		logger.Fatal("failed to sign seed transaction", "error", err)
	}

	receipt, err := router.Route(signed)
	if err != nil {
		logger.Fatal("failed to route seed transaction", "error", err)
	}
	if err := store.SaveReceipt(*receipt); err != nil {
		logger.Fatal("failed to save seed receipt", "error", err)
	}
	fmt.Printf("receipt: %+v\n", receipt)

	for _, account := range []string{"acct:alice", "acct:merchant", vaults.SafetyVault, vaults.GrowthVault} {
		balance, err := store.Balance(account)
		if err != nil {
			logger.Fatal("failed to read balance", "account", account, "error", err)
		}
		fmt.Printf("balance %s: %s\n", account, balance)
	}

	ok, reason, err := store.VerifyChain()
	if err != nil {
		logger.Fatal("failed to verify chain", "error", err)
	}
	fmt.Printf("chain verification: ok=%v reason=%q\n", ok, reason)
}
