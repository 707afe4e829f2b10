package main

// TransactionRouter turns one signed transfer into three bookkeeping
// events: the net transfer to the recipient and the two fee-split legs
// paid into the safety and growth vaults. It authenticates the sender,
// prices the transfer, splits the fee, appends the resulting events,
// and returns a receipt.
type TransactionRouter struct {
	store       *LedgerStore
	auth        *Authenticator
	feePolicy   FeePolicy
	splitPolicy SplitPolicy
	vaults      VaultRegistry
}

// NewTransactionRouter wires a TransactionRouter. auth may be nil, in
// which case Route skips signature verification entirely (for tests and
// demos).
func NewTransactionRouter(store *LedgerStore, auth *Authenticator, feePolicy FeePolicy, splitPolicy SplitPolicy, vaults VaultRegistry) *TransactionRouter {
	return &TransactionRouter{
		store:       store,
		auth:        auth,
		feePolicy:   feePolicy,
		splitPolicy: splitPolicy,
		vaults:      vaults,
	}
}

// Route runs the full pipeline for one signed transaction and returns
// the resulting receipt. The three events (net transfer, safety split,
// growth split) are appended in that order inside one store
// transaction, so a failed route never leaves a partial posting behind.
// A zero-amount leg (a zero fee rate, or a zero-share split) is
// silently dropped by the store rather than rejected here, so the
// receipt always reports the full six-field breakdown even when one or
// more legs never became a row.
//
// Route does not persist the receipt; a caller that wants it
// retrievable later saves it with store.SaveReceipt after a successful
// return.
func (r *TransactionRouter) Route(signed SignedTransaction) (*ReceiptBody, error) {
	tx := signed.Transaction

	if r.auth != nil && !r.auth.Verify(signed) {
		return nil, Errorf("invalid signature for account %s", tx.FromAccount)
	}

	fee := r.feePolicy.Fee(tx.Amount)
	net, err := tx.Amount.Sub(fee)
	if err != nil {
		return nil, Errorf("fee of %s exceeds transaction amount of %s", fee, tx.Amount)
	}
	safety, growth := r.splitPolicy.Split(fee)

	if _, err := r.store.ApplyAll([]ProposedEvent{
		{
			FromAccount: tx.FromAccount,
			ToAccount:   tx.ToAccount,
			Amount:      net,
			Metadata:    netLegMetadata(tx),
		},
		{
			FromAccount: tx.FromAccount,
			ToAccount:   r.vaults.SafetyVault,
			Amount:      safety,
			Metadata:    splitLegMetadata(tx, "safety"),
		},
		{
			FromAccount: tx.FromAccount,
			ToAccount:   r.vaults.GrowthVault,
			Amount:      growth,
			Metadata:    splitLegMetadata(tx, "growth"),
		},
	}); err != nil {
		return nil, err
	}

	return &ReceiptBody{
		TransactionID: tx.ID,
		GrossAmount:   tx.Amount,
		NetAmount:     net,
		FeeAmount:     fee,
		SafetyAmount:  safety,
		GrowthAmount:  growth,
		VaultSafety:   r.vaults.SafetyVault,
		VaultGrowth:   r.vaults.GrowthVault,
		CreatedAt:     tx.CreatedAt,
		Metadata:      tx.Metadata,
	}, nil
}

// netLegMetadata is the event metadata for the net-transfer leg. The
// transaction's own caller-supplied metadata is not copied onto ledger
// events; it travels separately on the receipt.
func netLegMetadata(tx Transaction) map[string]string {
	return map[string]string{"transaction_id": tx.ID}
}

// splitLegMetadata is the event metadata for a fee-split leg.
func splitLegMetadata(tx Transaction, vault string) map[string]string {
	return map[string]string{"transaction_id": tx.ID, "vault": vault}
}
