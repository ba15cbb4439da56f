package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a budget category as known by the ledger.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// LedgerEntry is a transaction already present in the budgeting ledger, as
// returned by the ledger API. Entries created by a previous import carry the
// originating bank reference embedded in their memo and the deterministic
// import id.
type LedgerEntry struct {
	Date     time.Time
	ID       string
	Payee    string
	Memo     string
	ImportID string
	Category string
	Amount   decimal.Decimal
}
