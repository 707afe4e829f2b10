package main

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEvent is a single recorded transfer of value between two
// accounts, linked into the hash chain. Created exclusively by the
// store's Apply and ApplyAll methods; callers never construct a row id, prev_hash or
// event_hash directly.
type LedgerEvent struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EventID     string `gorm:"column:event_id;not null;index:idx_ledger_events_event_id"`
	CreatedAt   time.Time
	FromAccount string          `gorm:"column:from_account;not null;index:idx_ledger_events_from"`
	ToAccount   string          `gorm:"column:to_account;not null;index:idx_ledger_events_to"`
	Amount      decimal.Decimal `gorm:"column:amount;type:varchar(40);not null"`
	Currency    string          `gorm:"column:currency;not null"`
	MetadataRaw string          `gorm:"column:metadata_json;not null"`
	PrevHash    string          `gorm:"column:prev_hash;not null"`
	EventHash   string          `gorm:"column:event_hash;not null"`

	Metadata map[string]string `gorm:"-"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}

// money reconstructs the event's amount as a Money value.
func (e LedgerEvent) money() Money {
	return Money{Amount: e.Amount, Currency: e.Currency}
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalMetadata(raw string) (map[string]string, error) {
	metadata := map[string]string{}
	if raw == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// Balance is the materialised, per-account running balance cache. It is
// updated atomically inside the same transaction as the LedgerEvent
// append that moves it; it is never the source of truth by itself.
type Balance struct {
	Account string          `gorm:"column:account;primaryKey"`
	Balance decimal.Decimal `gorm:"column:balance;type:varchar(40);not null"`
}

func (Balance) TableName() string {
	return "balances"
}

// Receipt is the router's summary of a completed route call, retrievable
// by transaction id. Receipts are not part of the hash chain; they are a
// convenience store, upserted keyed by transaction id.
type Receipt struct {
	TransactionID string `gorm:"column:transaction_id;primaryKey"`
	ReceiptJSON   string `gorm:"column:receipt_json;not null"`
	CreatedAt     time.Time
}

func (Receipt) TableName() string {
	return "receipts"
}

// ReceiptBody is the wire/storage shape of a Receipt's contents.
type ReceiptBody struct {
	TransactionID string            `json:"transaction_id"`
	GrossAmount   Money             `json:"gross_amount"`
	NetAmount     Money             `json:"net_amount"`
	FeeAmount     Money             `json:"fee_amount"`
	SafetyAmount  Money             `json:"safety_amount"`
	GrowthAmount  Money             `json:"growth_amount"`
	VaultSafety   string            `json:"vault_safety"`
	VaultGrowth   string            `json:"vault_growth"`
	CreatedAt     time.Time         `json:"created_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// moneyWire is the {amount, currency} wire shape for a Money value.
type moneyWire struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON renders Money as {"amount": "100.00", "currency": "USD"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyWire{Amount: m.String(), Currency: m.Currency})
}

// UnmarshalJSON parses the {amount, currency} wire shape into a Money.
func (m *Money) UnmarshalJSON(data []byte) error {
	var wire moneyWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(wire.Amount)
	if err != nil {
		return err
	}
	parsed, err := NewMoney(amount, wire.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// receiptToJSON serialises a ReceiptBody for storage. Receipts are not
// part of the hash chain, so ordinary (non-canonical) JSON is enough.
func receiptToJSON(body ReceiptBody) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func receiptFromJSON(raw string) (*ReceiptBody, error) {
	var body ReceiptBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// Account is a registered account secret, persisted for recovery. The
// in-memory AccountSecretRegistry remains authoritative for
// verification; this table exists so the registry can be reloaded on
// startup.
type Account struct {
	AccountID string `gorm:"column:account_id;primaryKey"`
	Secret    string `gorm:"column:secret;not null"`
	CreatedAt time.Time
}

func (Account) TableName() string {
	return "accounts"
}
