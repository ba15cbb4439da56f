package bank

import (
	"context"

	"github.com/budgetsync/budgetsync/internal/model"
)

// Credentials are the user's bank login credentials.
type Credentials struct {
	Username string
	Password string
}

// Client defines the contract for talking to the bank's API. This interface
// allows for easy mocking in tests and swapping bank backends.
type Client interface {
	// ObtainInitialToken performs the password grant against the bank's
	// token endpoint.
	ObtainInitialToken(ctx context.Context, creds Credentials) (model.TokenPair, error)
	// GetSessionID retrieves the bank-side session identifier.
	GetSessionID(ctx context.Context, token model.TokenPair, requestID, sessionUUID string) (string, error)
	// RequestChallenge asks the bank to issue a push-confirmation
	// challenge tied to the session.
	RequestChallenge(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID string) (*model.AuthChallenge, error)
	// ActivateSession confirms the challenge was approved out of band.
	ActivateSession(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID, challengeID string) error
	// UpgradeToken exchanges the base token for one with extended
	// data-access scope.
	UpgradeToken(ctx context.Context, token model.TokenPair) (model.TokenPair, error)
	// ListTransactions fetches transactions booked within the lookback
	// window, following pagination until a short page or the window edge.
	ListTransactions(ctx context.Context, token model.TokenPair, accountID string, sinceDays int) ([]model.BankTransaction, error)
}

// SessionStore persists the single pending auth session so challenge
// confirmation can happen in a separate process invocation.
type SessionStore interface {
	SaveAuthSession(ctx context.Context, session *model.AuthSession) error
	GetAuthSession(ctx context.Context) (*model.AuthSession, error)
	DeleteAuthSession(ctx context.Context) error
}
