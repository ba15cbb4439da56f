// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/budgetsync/budgetsync/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Rule operations. GetRules returns every rule, enabled or not,
	// pre-sorted by priority so the classifier never re-sorts.
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetRules(ctx context.Context) ([]model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	ReorderRules(ctx context.Context, orderedIDs []int64) error
	ReplaceRules(ctx context.Context, rules []model.Rule) error
	IncrementRuleUseCount(ctx context.Context, id int64) error

	// Sync session operations. At most one session may be active.
	SaveSyncSession(ctx context.Context, session *model.SyncSession) error
	GetSyncSession(ctx context.Context, id string) (*model.SyncSession, error)
	GetActiveSyncSession(ctx context.Context) (*model.SyncSession, error)

	// Review transaction persistence. The reviewed set is snapshotted
	// per session so the import can run in a later process invocation.
	SaveSessionTransactions(ctx context.Context, sessionID string, transactions []model.SyncTransaction) error
	GetSessionTransactions(ctx context.Context, sessionID string) ([]model.SyncTransaction, error)
	DeleteSessionTransactions(ctx context.Context, sessionID string) error

	// Auth session operations. The single pending bank session is
	// persisted so challenge confirmation can happen in a later process
	// invocation.
	SaveAuthSession(ctx context.Context, session *model.AuthSession) error
	GetAuthSession(ctx context.Context) (*model.AuthSession, error)
	DeleteAuthSession(ctx context.Context) error

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
