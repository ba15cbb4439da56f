package ledger

import (
	"context"

	"github.com/budgetsync/budgetsync/internal/model"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	GetCategoriesFn      func(ctx context.Context, budgetID string) ([]model.Category, error)
	GetRecentEntriesFn   func(ctx context.Context, budgetID, accountID string, sinceDays int) ([]model.LedgerEntry, error)
	SubmitTransactionsFn func(ctx context.Context, budgetID, accountID string, transactions []model.SyncTransaction, forceNewImportID bool) (*SubmitResult, error)

	// Call tracking
	SubmitCalls []SubmitCall

	GetCategoriesCalls    int
	GetRecentEntriesCalls int
}

// SubmitCall records the parameters of a SubmitTransactions call.
type SubmitCall struct {
	Transactions     []model.SyncTransaction
	ForceNewImportID bool
}

// NewMockClient creates a new mock ledger client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GetCategories implements Client.
func (m *MockClient) GetCategories(ctx context.Context, budgetID string) ([]model.Category, error) {
	m.GetCategoriesCalls++
	if m.GetCategoriesFn != nil {
		return m.GetCategoriesFn(ctx, budgetID)
	}
	return []model.Category{}, nil
}

// GetRecentEntries implements Client.
func (m *MockClient) GetRecentEntries(ctx context.Context, budgetID, accountID string, sinceDays int) ([]model.LedgerEntry, error) {
	m.GetRecentEntriesCalls++
	if m.GetRecentEntriesFn != nil {
		return m.GetRecentEntriesFn(ctx, budgetID, accountID, sinceDays)
	}
	return []model.LedgerEntry{}, nil
}

// SubmitTransactions implements Client.
func (m *MockClient) SubmitTransactions(ctx context.Context, budgetID, accountID string, transactions []model.SyncTransaction, forceNewImportID bool) (*SubmitResult, error) {
	m.SubmitCalls = append(m.SubmitCalls, SubmitCall{
		Transactions:     transactions,
		ForceNewImportID: forceNewImportID,
	})
	if m.SubmitTransactionsFn != nil {
		return m.SubmitTransactionsFn(ctx, budgetID, accountID, transactions, forceNewImportID)
	}
	return &SubmitResult{CreatedCount: len(transactions)}, nil
}

// Ensure MockClient implements the Client interface.
var _ Client = (*MockClient)(nil)
