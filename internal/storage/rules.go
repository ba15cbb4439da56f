package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/budgetsync/budgetsync/internal/common"
	"github.com/budgetsync/budgetsync/internal/model"
)

const ruleColumns = `id, name, pattern, kind, field, category_id, category_name,
	payee_override, priority, enabled, created_at, updated_at`

func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}
	if rule.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if rule.Pattern == "" {
		return fmt.Errorf("rule pattern cannot be empty")
	}
	if !rule.ValidKind() {
		return fmt.Errorf("unknown match kind %q", rule.Kind)
	}
	if !rule.ValidField() {
		return fmt.Errorf("unknown target field %q", rule.Field)
	}
	if rule.CategoryID == "" {
		return fmt.Errorf("rule category cannot be empty")
	}
	return nil
}

// CreateRule creates a new classification rule.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	query := `
		INSERT INTO rules (
			name, pattern, kind, field, category_id, category_name,
			payee_override, priority, enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Pattern, string(rule.Kind), string(rule.Field),
		rule.CategoryID, rule.CategoryName, rule.PayeeOverride,
		rule.Priority, rule.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetRules retrieves every rule, enabled or not, pre-sorted by priority
// (lower first) with the id as tie-breaker.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return result, nil
}

// UpdateRule updates an existing rule.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	query := `
		UPDATE rules SET
			name = ?, pattern = ?, kind = ?, field = ?,
			category_id = ?, category_name = ?, payee_override = ?,
			priority = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Pattern, string(rule.Kind), string(rule.Field),
		rule.CategoryID, rule.CategoryName, rule.PayeeOverride,
		rule.Priority, rule.Enabled, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.ID, common.ErrNotFound)
	}
	return nil
}

// DeleteRule removes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// ReorderRules rewrites rule priorities to match the given ordering. Every
// existing rule must appear exactly once.
func (s *SQLiteStorage) ReorderRules(ctx context.Context, orderedIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count rules: %w", err)
	}
	if count != len(orderedIDs) {
		return fmt.Errorf("reorder must name all %d rules, got %d", count, len(orderedIDs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for position, id := range orderedIDs {
		result, err := tx.ExecContext(ctx,
			`UPDATE rules SET priority = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			position+1, id)
		if err != nil {
			return fmt.Errorf("failed to reorder rule %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check reorder result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// ReplaceRules atomically replaces the whole ruleset. Used by rule import,
// which has already revalidated that every rule compiles.
func (s *SQLiteStorage) ReplaceRules(ctx context.Context, rules []model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for i := range rules {
		if err := validateRule(&rules[i]); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		result, err := tx.ExecContext(ctx, `
			INSERT INTO rules (
				name, pattern, kind, field, category_id, category_name,
				payee_override, priority, enabled
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.Name, rule.Pattern, string(rule.Kind), string(rule.Field),
			rule.CategoryID, rule.CategoryName, rule.PayeeOverride,
			rule.Priority, rule.Enabled,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule %q: %w", rule.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get rule ID: %w", err)
		}
		rule.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule import: %w", err)
	}
	return nil
}

// IncrementRuleUseCount bumps the usage counter of a rule.
func (s *SQLiteStorage) IncrementRuleUseCount(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE rules SET use_count = use_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var kind, field string
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Pattern, &kind, &field,
		&rule.CategoryID, &rule.CategoryName, &rule.PayeeOverride,
		&rule.Priority, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.Kind = model.MatchKind(kind)
	rule.Field = model.RuleField(field)
	return &rule, nil
}
