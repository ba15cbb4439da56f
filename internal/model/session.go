package model

import (
	"time"
)

// TokenPair holds the bank-issued access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthChallenge represents a pending human confirmation step issued by the
// bank (e.g. a push notification to the user's phone).
type AuthChallenge struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AuthSession tracks one in-flight bank authentication. At most one instance
// exists process-wide; it is mutated in place as the protocol advances and
// discarded on clear, cancel or timeout.
type AuthSession struct {
	RequestID     string         `json:"request_id"`
	SessionUUID   string         `json:"session_uuid"`
	BankSessionID string         `json:"bank_session_id"`
	Token         TokenPair      `json:"token"`
	Challenge     *AuthChallenge `json:"challenge,omitempty"`
}

// SyncStatus is the lifecycle state of a sync session.
type SyncStatus string

// Sync session status constants.
const (
	SyncAwaitingBankAuth         SyncStatus = "awaiting_bank_auth"
	SyncAwaitingUserConfirmation SyncStatus = "awaiting_user_confirmation"
	SyncFetchingTransactions     SyncStatus = "fetching_transactions"
	SyncReviewingTransactions    SyncStatus = "reviewing_transactions"
	SyncImporting                SyncStatus = "importing"
	SyncCompleted                SyncStatus = "completed"
	SyncFailed                   SyncStatus = "failed"
)

// Terminal reports whether the status ends the session.
func (s SyncStatus) Terminal() bool {
	return s == SyncCompleted || s == SyncFailed
}

// SyncSession tracks one synchronization run from authentication through
// import. It is persisted at every status transition.
type SyncSession struct {
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ID               string     `json:"id"`
	Status           SyncStatus `json:"status"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	TransactionCount int        `json:"transaction_count"`
	ImportedCount    int        `json:"imported_count"`
	SkippedCount     int        `json:"skipped_count"`
}

// Active reports whether the session is still in a non-terminal state.
func (s *SyncSession) Active() bool {
	return !s.Status.Terminal()
}
