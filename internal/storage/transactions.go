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

// storedDuplicate flattens the DuplicateStatus variants into a tagged record
// so the transaction set survives a JSON round trip.
type storedDuplicate struct {
	Kind             string                `json:"kind"`
	Reason           string                `json:"reason,omitempty"`
	MatchedReference string                `json:"matched_reference,omitempty"`
	Detail           model.DuplicateDetail `json:"detail"`
}

type storedTransaction struct {
	Txn       model.SyncTransaction `json:"txn"`
	Duplicate *storedDuplicate      `json:"duplicate,omitempty"`
}

const (
	dupKindNone      = "not_duplicate"
	dupKindPossible  = "possible_duplicate"
	dupKindConfirmed = "confirmed_duplicate"
)

// SaveSessionTransactions persists the full review transaction set of a
// session, replacing any previous snapshot.
func (s *SQLiteStorage) SaveSessionTransactions(ctx context.Context, sessionID string, transactions []model.SyncTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "session id"); err != nil {
		return err
	}

	payload, err := encodeSessionTransactions(transactions)
	if err != nil {
		return fmt.Errorf("failed to marshal session transactions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_transactions (session_id, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save session transactions: %w", err)
	}
	return nil
}

// GetSessionTransactions loads a session's review transaction set, or
// common.ErrNotFound when none was persisted.
func (s *SQLiteStorage) GetSessionTransactions(ctx context.Context, sessionID string) ([]model.SyncTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "session id"); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sync_transactions WHERE session_id = ?`, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session transactions: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session transactions: %w", err)
	}

	transactions, err := decodeSessionTransactions([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal session transactions: %w", err)
	}
	return transactions, nil
}

// DeleteSessionTransactions discards a session's persisted transaction set.
// Deleting a set that does not exist is not an error.
func (s *SQLiteStorage) DeleteSessionTransactions(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "session id"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_transactions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session transactions: %w", err)
	}
	return nil
}

func encodeSessionTransactions(transactions []model.SyncTransaction) ([]byte, error) {
	stored := make([]storedTransaction, len(transactions))
	for i := range transactions {
		txn := transactions[i]
		txn.Duplicate = nil
		stored[i] = storedTransaction{Txn: txn}

		switch dup := transactions[i].Duplicate.(type) {
		case model.NotDuplicate:
			stored[i].Duplicate = &storedDuplicate{Kind: dupKindNone, Detail: dup.Diag}
		case model.PossibleDuplicate:
			stored[i].Duplicate = &storedDuplicate{Kind: dupKindPossible, Reason: dup.Reason, Detail: dup.Diag}
		case model.ConfirmedDuplicate:
			stored[i].Duplicate = &storedDuplicate{Kind: dupKindConfirmed, MatchedReference: dup.MatchedReference, Detail: dup.Diag}
		}
	}
	return json.Marshal(stored)
}

func decodeSessionTransactions(payload []byte) ([]model.SyncTransaction, error) {
	var stored []storedTransaction
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	transactions := make([]model.SyncTransaction, len(stored))
	for i := range stored {
		transactions[i] = stored[i].Txn
		dup := stored[i].Duplicate
		if dup == nil {
			continue
		}
		switch dup.Kind {
		case dupKindNone:
			transactions[i].Duplicate = model.NotDuplicate{Diag: dup.Detail}
		case dupKindPossible:
			transactions[i].Duplicate = model.PossibleDuplicate{Reason: dup.Reason, Diag: dup.Detail}
		case dupKindConfirmed:
			transactions[i].Duplicate = model.ConfirmedDuplicate{MatchedReference: dup.MatchedReference, Diag: dup.Detail}
		default:
			return nil, fmt.Errorf("unknown duplicate status %q", dup.Kind)
		}
	}
	return transactions, nil
}
