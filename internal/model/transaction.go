package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction represents a single immutable transaction fact from the bank.
type BankTransaction struct {
	BookingDate time.Time
	ID          string
	Payee       string
	Memo        string
	Reference   string // Bank-side reference string; the primary dedup key.
	Currency    string
	Raw         json.RawMessage // Original payload, retained for diagnostics only.
	Amount      decimal.Decimal
}

// ImportID derives the deterministic identifier submitted to the ledger so it
// can reject re-imports of the same transaction.
func (t *BankTransaction) ImportID() string {
	hash := sha256.Sum256([]byte(t.ID))
	return fmt.Sprintf("BS:%x", hash[:6])
}

// TransactionStatus tracks the review state of a transaction within a sync run.
type TransactionStatus string

// Transaction status constants.
const (
	StatusPending             TransactionStatus = "pending"
	StatusAutoCategorized     TransactionStatus = "auto_categorized"
	StatusManuallyCategorized TransactionStatus = "manually_categorized"
	StatusNeedsAttention      TransactionStatus = "needs_attention"
	StatusSkipped             TransactionStatus = "skipped"
	StatusImported            TransactionStatus = "imported"
)

// ExternalLink is an informational link attached to a transaction during
// classification, pointing the user at the true counterparty (e.g. a
// marketplace order page hidden behind a payment processor).
type ExternalLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Split divides part of a transaction's amount into its own category.
type Split struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Memo         string          `json:"memo,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}

// SyncTransaction is a BankTransaction enriched with mutable review state.
// It is created once per sync run and mutated only by the orchestrator.
type SyncTransaction struct {
	BankTransaction
	Duplicate       DuplicateStatus
	CategoryID      string
	CategoryName    string
	PayeeOverride   string
	Note            string
	Status          TransactionStatus
	Links           []ExternalLink
	Splits          []Split
	MatchedRuleID   int64
	ImportAttempted bool
}

// SplitsBalance reports whether the splits, if any, sum exactly to the
// transaction amount.
func (t *SyncTransaction) SplitsBalance() bool {
	if len(t.Splits) == 0 {
		return true
	}
	sum := decimal.Zero
	for _, s := range t.Splits {
		sum = sum.Add(s.Amount)
	}
	return sum.Equal(t.Amount)
}

// Importable reports whether the transaction should be part of an import
// batch. A category is not required; uncategorized transactions surface as
// "uncategorized" in the ledger.
func (t *SyncTransaction) Importable() bool {
	return t.Status != StatusSkipped && t.Status != StatusImported
}
