package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// genesisHash is the literal prev_hash of the first event ever appended
// to a ledger.
const genesisHash = "GENESIS"

// ProposedEvent is the input to LedgerStore.Apply: a single movement of
// value between two accounts, not yet assigned a position in the chain.
type ProposedEvent struct {
	EventID     string
	FromAccount string
	ToAccount   string
	Amount      Money
	Metadata    map[string]string
}

// LedgerStore is the durable, append-only, hash-chained event log,
// backed by GORM over SQLite or Postgres. Every append links the new
// row to the current chain tail, so the log is tamper-evident
// end-to-end.
//
// mu serialises Apply/SaveReceipt/CreateAccount within this process, so
// the read-tail-then-append sequence is exclusive; the Postgres path
// additionally takes a row lock on the chain tail for defense in depth
// across processes.
type LedgerStore struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewLedgerStore wraps an already-migrated *gorm.DB.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Apply appends a single event to the chain. A zero-amount event is
// silently dropped: no row is written, no balance is touched, and
// (nil, nil) is returned.
func (s *LedgerStore) Apply(event ProposedEvent) (*LedgerEvent, error) {
	stored, err := s.ApplyAll([]ProposedEvent{event})
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	return &stored[0], nil
}

// ApplyAll appends events to the chain in order, all inside one
// enclosing store transaction: either every non-zero event commits, or
// none does. This is what makes a routed transfer's three legs
// all-or-nothing; a caller interrupted mid-route never leaves a
// partially posted transfer behind. Zero-amount events are dropped
// without writing a row or touching a balance, so the returned slice
// may be shorter than the input.
func (s *LedgerStore) ApplyAll(events []ProposedEvent) ([]LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored []LedgerEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		prevHash, err := s.tailHash(tx)
		if err != nil {
			return err
		}

		for _, event := range events {
			if event.Amount.IsZero() {
				continue
			}
			if event.EventID == "" {
				id, err := NewTransactionID()
				if err != nil {
					return err
				}
				event.EventID = id
			}

			metadataJSON, err := marshalMetadata(event.Metadata)
			if err != nil {
				return err
			}

			candidate := LedgerEvent{
				EventID:     event.EventID,
				CreatedAt:   time.Now().UTC(),
				FromAccount: event.FromAccount,
				ToAccount:   event.ToAccount,
				Amount:      event.Amount.Amount,
				Currency:    event.Amount.Currency,
				MetadataRaw: metadataJSON,
				Metadata:    event.Metadata,
			}
			candidate.PrevHash = prevHash
			candidate.EventHash = computeEventHash(prevHash, canonicalEventPayload(candidate))

			if err := tx.Create(&candidate).Error; err != nil {
				return fmt.Errorf("ledger: failed to append event: %w", err)
			}

			if err := adjustBalance(tx, event.FromAccount, event.Amount.Amount.Neg()); err != nil {
				return err
			}
			if err := adjustBalance(tx, event.ToAccount, event.Amount.Amount); err != nil {
				return err
			}

			stored = append(stored, candidate)
			prevHash = candidate.EventHash
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// tailHash reads the event_hash of the row with the greatest primary
// key, or genesisHash if the chain is empty.
func (s *LedgerStore) tailHash(tx *gorm.DB) (string, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var tail LedgerEvent
	err := q.Order("id DESC").Limit(1).Take(&tail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return genesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: failed to read chain tail: %w", err)
	}
	return tail.EventHash, nil
}

// computeEventHash is SHA-256(prev_hash || canonical_payload), both
// operands encoded as UTF-8, stored as lowercase hex.
func computeEventHash(prevHash string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func adjustBalance(tx *gorm.DB, account string, delta decimal.Decimal) error {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var bal Balance
	err := q.Where("account = ?", account).Take(&bal).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		bal = Balance{Account: account, Balance: delta}
		return tx.Create(&bal).Error
	case err != nil:
		return fmt.Errorf("ledger: failed to read balance for %s: %w", account, err)
	default:
		bal.Balance = bal.Balance.Add(delta)
		return tx.Save(&bal).Error
	}
}

// Balance returns the stored signed running total for account, or 0.00
// if absent. Balances may legitimately be negative (a fee-sending
// account overdraws in this model), so the Money is built directly
// rather than through NewMoney's non-negative guard. The store is
// single-currency, so the result is reported in DefaultCurrency.
func (s *LedgerStore) Balance(account string) (Money, error) {
	var bal Balance
	err := s.db.Where("account = ?", account).Take(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ZeroMoney(DefaultCurrency), nil
	}
	if err != nil {
		return Money{}, fmt.Errorf("ledger: failed to get balance: %w", err)
	}
	return Money{Amount: bal.Balance, Currency: DefaultCurrency}, nil
}

// Events returns all events in primary-key order, the canonical
// iteration order that must match append order.
func (s *LedgerStore) Events() ([]LedgerEvent, error) {
	var rows []LedgerEvent
	if err := s.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger: failed to list events: %w", err)
	}
	for i := range rows {
		metadata, err := unmarshalMetadata(rows[i].MetadataRaw)
		if err != nil {
			return nil, fmt.Errorf("ledger: failed to decode metadata for event %d: %w", rows[i].ID, err)
		}
		rows[i].Metadata = metadata
	}
	return rows, nil
}

// ListEvents returns events narrowed, ordered and paged by query,
// defaulting to the full chain in append order when query is nil.
// Unlike Events, the decoded rows are not guaranteed to start at the
// genesis event, so they are not suitable input to VerifyChain.
func (s *LedgerStore) ListEvents(query *EventQuery) ([]LedgerEvent, error) {
	var rows []LedgerEvent
	if err := query.applyTo(s.db).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger: failed to list events: %w", err)
	}
	for i := range rows {
		metadata, err := unmarshalMetadata(rows[i].MetadataRaw)
		if err != nil {
			return nil, fmt.Errorf("ledger: failed to decode metadata for event %d: %w", rows[i].ID, err)
		}
		rows[i].Metadata = metadata
	}
	return rows, nil
}

// VerifyChain walks every row in primary-key order, confirming the hash
// chain is intact end-to-end. It never returns an error for a broken
// chain; it reports the break as (false, reason).
func (s *LedgerStore) VerifyChain() (bool, string, error) {
	rows, err := s.Events()
	if err != nil {
		return false, "", err
	}

	expectedPrev := genesisHash
	for _, row := range rows {
		if row.PrevHash != expectedPrev {
			return false, "prev_hash mismatch", nil
		}

		recomputed := computeEventHash(row.PrevHash, canonicalEventPayload(row))
		if recomputed != row.EventHash {
			return false, "event_hash mismatch", nil
		}

		expectedPrev = row.EventHash
	}
	return true, "", nil
}

// SaveReceipt serialises receipt to JSON in the fixed ReceiptBody
// layout and upserts it keyed by transaction id, idempotent on replay.
func (s *LedgerStore) SaveReceipt(receipt ReceiptBody) error {
	raw, err := receiptToJSON(receipt)
	if err != nil {
		return fmt.Errorf("ledger: failed to encode receipt: %w", err)
	}

	row := Receipt{
		TransactionID: receipt.TransactionID,
		ReceiptJSON:   raw,
		CreatedAt:     receipt.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"receipt_json", "created_at"}),
	}).Create(&row).Error
}

// GetReceipt returns the deserialised receipt for transactionID, or
// ErrNotFound if none has been saved.
func (s *LedgerStore) GetReceipt(transactionID string) (*ReceiptBody, error) {
	var row Receipt
	err := s.db.Where("transaction_id = ?", transactionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to load receipt: %w", err)
	}

	body, err := receiptFromJSON(row.ReceiptJSON)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to decode receipt: %w", err)
	}
	return body, nil
}

// CreateAccount inserts a new row into the persisted account table. It
// is insert-only; there is no update or delete path.
func (s *LedgerStore) CreateAccount(accountID, secret string) error {
	row := Account{AccountID: accountID, Secret: secret, CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("ledger: failed to create account: %w", err)
	}
	return nil
}

// GetAccountSecret reads the secret for accountID from the persisted
// table, or ErrNotFound if no such account exists.
func (s *LedgerStore) GetAccountSecret(accountID string) (string, error) {
	var row Account
	err := s.db.Where("account_id = ?", accountID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("ledger: failed to get account secret: %w", err)
	}
	return row.Secret, nil
}

// Accounts returns every persisted account id and secret, used to
// reload the in-memory AccountSecretRegistry on startup.
func (s *LedgerStore) Accounts() ([]Account, error) {
	var rows []Account
	if err := s.db.Order("account_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger: failed to list accounts: %w", err)
	}
	return rows, nil
}
