package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/budgetsync/budgetsync/internal/common"
	"github.com/budgetsync/budgetsync/internal/model"
)

// SaveSyncSession inserts or updates a sync session. Called at every status
// transition.
func (s *SQLiteStorage) SaveSyncSession(ctx context.Context, session *model.SyncSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if session == nil || session.ID == "" {
		return fmt.Errorf("sync session must carry an id")
	}

	query := `
		INSERT INTO sync_sessions (
			id, status, failure_reason, transaction_count,
			imported_count, skipped_count, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			transaction_count = excluded.transaction_count,
			imported_count = excluded.imported_count,
			skipped_count = excluded.skipped_count,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, string(session.Status), session.FailureReason,
		session.TransactionCount, session.ImportedCount, session.SkippedCount,
		session.StartedAt, session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync session: %w", err)
	}
	return nil
}

// GetSyncSession retrieves a sync session by id.
func (s *SQLiteStorage) GetSyncSession(ctx context.Context, id string) (*model.SyncSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, failure_reason, transaction_count,
			imported_count, skipped_count, started_at, completed_at
		FROM sync_sessions WHERE id = ?`, id)

	return scanSyncSession(row)
}

// GetActiveSyncSession retrieves the single non-terminal sync session, or
// common.ErrNotFound when no sync is in flight.
func (s *SQLiteStorage) GetActiveSyncSession(ctx context.Context) (*model.SyncSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, failure_reason, transaction_count,
			imported_count, skipped_count, started_at, completed_at
		FROM sync_sessions
		WHERE status NOT IN (?, ?)
		ORDER BY started_at DESC LIMIT 1`,
		string(model.SyncCompleted), string(model.SyncFailed))

	return scanSyncSession(row)
}

func scanSyncSession(row *sql.Row) (*model.SyncSession, error) {
	var session model.SyncSession
	var status string
	err := row.Scan(
		&session.ID, &status, &session.FailureReason,
		&session.TransactionCount, &session.ImportedCount, &session.SkippedCount,
		&session.StartedAt, &session.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sync session: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sync session: %w", err)
	}
	session.Status = model.SyncStatus(status)
	return &session, nil
}

// SaveAuthSession persists the single pending bank auth session as JSON so
// challenge confirmation can run in a later process invocation.
func (s *SQLiteStorage) SaveAuthSession(ctx context.Context, session *model.AuthSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("auth session cannot be nil")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal auth session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth_session (id, payload, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		string(payload))
	if err != nil {
		return fmt.Errorf("failed to save auth session: %w", err)
	}
	return nil
}

// GetAuthSession loads the pending auth session, or common.ErrNotFound.
func (s *SQLiteStorage) GetAuthSession(ctx context.Context) (*model.AuthSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM auth_session WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("auth session: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get auth session: %w", err)
	}

	var session model.AuthSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth session: %w", err)
	}
	return &session, nil
}

// DeleteAuthSession discards the pending auth session. Deleting a session
// that does not exist is not an error.
func (s *SQLiteStorage) DeleteAuthSession(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_session WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}
