package bank

import (
	"context"

	"github.com/budgetsync/budgetsync/internal/model"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	ObtainInitialTokenFn func(ctx context.Context, creds Credentials) (model.TokenPair, error)
	GetSessionIDFn       func(ctx context.Context, token model.TokenPair, requestID, sessionUUID string) (string, error)
	RequestChallengeFn   func(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID string) (*model.AuthChallenge, error)
	ActivateSessionFn    func(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID, challengeID string) error
	UpgradeTokenFn       func(ctx context.Context, token model.TokenPair) (model.TokenPair, error)
	ListTransactionsFn   func(ctx context.Context, token model.TokenPair, accountID string, sinceDays int) ([]model.BankTransaction, error)

	// Call tracking
	ObtainInitialTokenCalls int
	GetSessionIDCalls       int
	RequestChallengeCalls   int
	ActivateSessionCalls    int
	UpgradeTokenCalls       int
	ListTransactionsCalls   int
}

// NewMockClient creates a new mock bank client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// ObtainInitialToken implements Client.
func (m *MockClient) ObtainInitialToken(ctx context.Context, creds Credentials) (model.TokenPair, error) {
	m.ObtainInitialTokenCalls++
	if m.ObtainInitialTokenFn != nil {
		return m.ObtainInitialTokenFn(ctx, creds)
	}
	return model.TokenPair{AccessToken: "mock-access", RefreshToken: "mock-refresh"}, nil
}

// GetSessionID implements Client.
func (m *MockClient) GetSessionID(ctx context.Context, token model.TokenPair, requestID, sessionUUID string) (string, error) {
	m.GetSessionIDCalls++
	if m.GetSessionIDFn != nil {
		return m.GetSessionIDFn(ctx, token, requestID, sessionUUID)
	}
	return "mock-bank-session", nil
}

// RequestChallenge implements Client.
func (m *MockClient) RequestChallenge(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID string) (*model.AuthChallenge, error) {
	m.RequestChallengeCalls++
	if m.RequestChallengeFn != nil {
		return m.RequestChallengeFn(ctx, token, requestID, sessionUUID, bankSessionID)
	}
	return &model.AuthChallenge{ID: "mock-challenge", Type: "PUSH"}, nil
}

// ActivateSession implements Client.
func (m *MockClient) ActivateSession(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID, challengeID string) error {
	m.ActivateSessionCalls++
	if m.ActivateSessionFn != nil {
		return m.ActivateSessionFn(ctx, token, requestID, sessionUUID, bankSessionID, challengeID)
	}
	return nil
}

// UpgradeToken implements Client.
func (m *MockClient) UpgradeToken(ctx context.Context, token model.TokenPair) (model.TokenPair, error) {
	m.UpgradeTokenCalls++
	if m.UpgradeTokenFn != nil {
		return m.UpgradeTokenFn(ctx, token)
	}
	return model.TokenPair{AccessToken: "mock-upgraded", RefreshToken: token.RefreshToken}, nil
}

// ListTransactions implements Client.
func (m *MockClient) ListTransactions(ctx context.Context, token model.TokenPair, accountID string, sinceDays int) ([]model.BankTransaction, error) {
	m.ListTransactionsCalls++
	if m.ListTransactionsFn != nil {
		return m.ListTransactionsFn(ctx, token, accountID, sinceDays)
	}
	return []model.BankTransaction{}, nil
}

// Ensure MockClient implements the Client interface.
var _ Client = (*MockClient)(nil)
