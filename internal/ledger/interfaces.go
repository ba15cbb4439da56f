// Package ledger provides the client for the budgeting ledger's API.
package ledger

import (
	"context"

	"github.com/budgetsync/budgetsync/internal/model"
)

// SubmitResult reports the outcome of one import batch. The ledger names the
// import ids it recognized from a previous submission and left untouched.
type SubmitResult struct {
	DuplicateImportIDs []string
	CreatedCount       int
}

// Client defines the contract for talking to the budgeting ledger. This
// interface allows for easy mocking in tests and swapping ledger backends.
type Client interface {
	// GetCategories lists the budget's categories.
	GetCategories(ctx context.Context, budgetID string) ([]model.Category, error)
	// GetRecentEntries lists recently imported ledger entries, used only
	// for duplicate detection.
	GetRecentEntries(ctx context.Context, budgetID, accountID string, sinceDays int) ([]model.LedgerEntry, error)
	// SubmitTransactions submits one import batch. With forceNewImportID
	// the deterministic import id is salted so the ledger's dedup guard
	// is deliberately bypassed.
	SubmitTransactions(ctx context.Context, budgetID, accountID string, transactions []model.SyncTransaction, forceNewImportID bool) (*SubmitResult, error)
}
