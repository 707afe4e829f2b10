package main

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// canonicalPayload builds the deterministic byte form of a transaction
// (or ledger event) used as input to a MAC or hash. Keys are sorted
// lexicographically, amount is formatted with exactly two fractional
// digits, created_at is ISO-8601 with an explicit offset, metadata keys
// are sorted too, and there is no whitespace between tokens. This exact
// byte form is a signature- and hash-compatibility contract: any
// non-deterministic field (map order, trailing zeros, timezone form)
// must be normalised here or verifiers on different hosts will diverge.
func canonicalPayload(id, from, to string, amount Money, createdAt time.Time, metadata map[string]string) []byte {
	var b strings.Builder
	b.WriteByte('{')

	writeKV(&b, "amount", amount.String(), true)
	b.WriteByte(',')
	// Normalised to UTC before formatting: a store round-trip may hand
	// back the same instant in a different fixed zone, and "+00:00"
	// versus "Z" would change the hashed bytes.
	writeKV(&b, "created_at", createdAt.UTC().Format(time.RFC3339), true)
	b.WriteByte(',')
	writeKV(&b, "currency", amount.Currency, true)
	b.WriteByte(',')
	writeKV(&b, "from", from, true)
	b.WriteByte(',')
	writeKV(&b, "id", id, true)
	b.WriteByte(',')
	b.WriteString(`"metadata":`)
	writeMetadata(&b, metadata)
	b.WriteByte(',')
	writeKV(&b, "to", to, true)

	b.WriteByte('}')
	return []byte(b.String())
}

// canonicalTransactionPayload forms the canonical payload for a
// Transaction: the sole input to signing.
func canonicalTransactionPayload(tx Transaction) []byte {
	return canonicalPayload(tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount, tx.CreatedAt, tx.Metadata)
}

// canonicalEventPayload forms the canonical payload for a LedgerEvent:
// the input to the hash chain.
func canonicalEventPayload(e LedgerEvent) []byte {
	return canonicalPayload(e.EventID, e.FromAccount, e.ToAccount, e.money(), e.CreatedAt, e.Metadata)
}

func writeKV(b *strings.Builder, key, value string, quoted bool) {
	writeJSONString(b, key)
	b.WriteByte(':')
	if quoted {
		writeJSONString(b, value)
	} else {
		b.WriteString(value)
	}
}

func writeMetadata(b *strings.Builder, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, k)
		b.WriteByte(':')
		writeJSONString(b, metadata[k])
	}
	b.WriteByte('}')
}

// writeJSONString writes s as a minimal, escaped JSON string literal.
// encoding/json.Marshal on a plain string never emits insignificant
// whitespace, so it is reused here for correct escaping instead of
// hand-rolling one.
func writeJSONString(b *strings.Builder, s string) {
	encoded, _ := json.Marshal(s)
	b.Write(encoded)
}
