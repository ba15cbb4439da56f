package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/budgetsync/budgetsync/internal/common"
	"github.com/budgetsync/budgetsync/internal/model"
)

// State is the auth session lifecycle state.
type State string

// Auth session states.
const (
	StateNoSession       State = "no_session"
	StateChallengeIssued State = "challenge_issued"
	StateAuthenticated   State = "authenticated"
	StateFailed          State = "failed"
)

// Manager drives the bank's multi-step authentication protocol and holds the
// single active session's tokens. It never retries internally; every failure
// is reported to the caller, which decides whether to restart the flow.
//
// The flow has two explicit entry points: StartAuth issues the challenge and
// suspends, ConfirmChallenge resumes after the user confirmed out of band.
// The intermediate session is persisted so the resume can happen in a
// separate process invocation.
type Manager struct {
	client  Client
	store   SessionStore
	logger  *slog.Logger
	session *model.AuthSession
	failure error
	state   State
}

// NewManager creates a session manager on top of the given bank client.
func NewManager(client Client, store SessionStore) *Manager {
	return &Manager{
		client: client,
		store:  store,
		logger: slog.Default().With("component", "bank_auth"),
		state:  StateNoSession,
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	return m.state
}

// Session returns the active auth session, or nil.
func (m *Manager) Session() *model.AuthSession {
	return m.session
}

// Token returns the current token pair. It fails unless the session is
// authenticated.
func (m *Manager) Token() (model.TokenPair, error) {
	if m.state != StateAuthenticated || m.session == nil {
		return model.TokenPair{}, &StateError{Expected: StateAuthenticated, Actual: m.state}
	}
	return m.session.Token, nil
}

// StartAuth performs the first half of the protocol in strict sequence:
// password grant, session identifier retrieval, challenge request. Any step
// failing aborts the whole operation; a session is only ever stored complete.
func (m *Manager) StartAuth(ctx context.Context, creds Credentials) (*model.AuthChallenge, error) {
	// A restart discards whatever came before.
	if err := m.Clear(ctx); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()[:9]
	sessionUUID := uuid.NewString()

	token, err := m.client.ObtainInitialToken(ctx, creds)
	if err != nil {
		return nil, m.fail(err)
	}

	bankSessionID, err := m.client.GetSessionID(ctx, token, requestID, sessionUUID)
	if err != nil {
		return nil, m.fail(err)
	}

	challenge, err := m.client.RequestChallenge(ctx, token, requestID, sessionUUID, bankSessionID)
	if err != nil {
		return nil, m.fail(err)
	}

	session := &model.AuthSession{
		RequestID:     requestID,
		SessionUUID:   sessionUUID,
		BankSessionID: bankSessionID,
		Token:         token,
		Challenge:     challenge,
	}
	if err := m.store.SaveAuthSession(ctx, session); err != nil {
		return nil, m.fail(fmt.Errorf("failed to persist auth session: %w", err))
	}

	m.session = session
	m.state = StateChallengeIssued
	m.failure = nil

	m.logger.Info("Authentication challenge issued",
		"challenge_type", challenge.Type)

	return challenge, nil
}

// ConfirmChallenge performs the second half of the protocol once the user
// has confirmed the challenge out of band: session activation with the
// confirmed-challenge identifier, then the token upgrade to extended
// data-access scope.
func (m *Manager) ConfirmChallenge(ctx context.Context) (model.TokenPair, error) {
	if m.state != StateChallengeIssued {
		if err := m.resume(ctx); err != nil {
			return model.TokenPair{}, err
		}
	}
	session := m.session

	err := m.client.ActivateSession(ctx,
		session.Token, session.RequestID, session.SessionUUID,
		session.BankSessionID, session.Challenge.ID)
	if err != nil {
		return model.TokenPair{}, m.fail(err)
	}

	upgraded, err := m.client.UpgradeToken(ctx, session.Token)
	if err != nil {
		return model.TokenPair{}, m.fail(err)
	}

	session.Token = upgraded
	session.Challenge = nil
	if err := m.store.SaveAuthSession(ctx, session); err != nil {
		return model.TokenPair{}, m.fail(fmt.Errorf("failed to persist auth session: %w", err))
	}

	m.state = StateAuthenticated
	m.logger.Info("Authentication confirmed, session active")

	return upgraded, nil
}

// Clear discards the session unconditionally. It is idempotent and safe to
// call in any state.
func (m *Manager) Clear(ctx context.Context) error {
	m.session = nil
	m.state = StateNoSession
	m.failure = nil

	if err := m.store.DeleteAuthSession(ctx); err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to clear auth session: %w", err)
	}
	return nil
}

// resume reloads a persisted half-open session, so confirmation can happen
// in a process that did not run StartAuth.
func (m *Manager) resume(ctx context.Context) error {
	session, err := m.store.GetAuthSession(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &StateError{Expected: StateChallengeIssued, Actual: m.state}
		}
		return fmt.Errorf("failed to load auth session: %w", err)
	}
	if session.Challenge == nil {
		return &StateError{Expected: StateChallengeIssued, Actual: m.state}
	}

	m.session = session
	m.state = StateChallengeIssued
	return nil
}

// fail records a terminal failure and tears the session down. The stored
// session is removed so a stale challenge cannot be resumed later.
func (m *Manager) fail(err error) error {
	m.session = nil
	m.state = StateFailed
	m.failure = err

	if delErr := m.store.DeleteAuthSession(context.Background()); delErr != nil && !errors.Is(delErr, common.ErrNotFound) {
		m.logger.Warn("Failed to remove stored auth session", "error", delErr)
	}

	return err
}
