package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/budgetsync/budgetsync/internal/bank"
	"github.com/budgetsync/budgetsync/internal/common"
	"github.com/budgetsync/budgetsync/internal/dedup"
	"github.com/budgetsync/budgetsync/internal/ledger"
	"github.com/budgetsync/budgetsync/internal/model"
	"github.com/budgetsync/budgetsync/internal/rules"
	"github.com/budgetsync/budgetsync/internal/service"
)

// Config holds orchestrator configuration.
type Config struct {
	BudgetID     string
	AccountID    string
	LookbackDays int
	Dedup        dedup.Config
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		LookbackDays: 30,
		Dedup:        dedup.DefaultConfig(),
	}
}

// Orchestrator owns the sync session lifecycle. It is the single writer of
// the session and its transactions; exactly one sync may be active, enforced
// at Start rather than with locks.
type Orchestrator struct {
	auth         *bank.Manager
	bankClient   bank.Client
	ledgerClient ledger.Client
	storage      service.Storage
	detector     *dedup.Detector
	logger       *slog.Logger
	session      *model.SyncSession
	transactions []model.SyncTransaction
	cfg          Config
}

// New creates a sync orchestrator with the given collaborators.
func New(auth *bank.Manager, bankClient bank.Client, ledgerClient ledger.Client, storage service.Storage, cfg Config) *Orchestrator {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultConfig().LookbackDays
	}
	return &Orchestrator{
		auth:         auth,
		bankClient:   bankClient,
		ledgerClient: ledgerClient,
		storage:      storage,
		detector:     dedup.NewDetector(cfg.Dedup),
		logger:       slog.Default().With("component", "sync"),
		cfg:          cfg,
	}
}

// Session returns the current sync session, or nil.
func (o *Orchestrator) Session() *model.SyncSession {
	return o.session
}

// Transactions returns a snapshot of the transactions under review.
func (o *Orchestrator) Transactions() []model.SyncTransaction {
	snapshot := make([]model.SyncTransaction, len(o.transactions))
	copy(snapshot, o.transactions)
	return snapshot
}

// Start begins a new sync run: it creates the session and drives the first
// half of bank authentication, suspending once the confirmation challenge has
// been issued to the user.
func (o *Orchestrator) Start(ctx context.Context, creds bank.Credentials) (*model.AuthChallenge, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, newError(CodeCredentialsMissing, "bank credentials are not configured")
	}

	active, err := o.storage.GetActiveSyncSession(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, wrapError(CodeSessionNotFound, err, "failed to check for active session")
	}
	if active != nil {
		return nil, newError(CodeSessionActive, "sync session %s is already active", active.ID)
	}

	session := &model.SyncSession{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Status:    model.SyncAwaitingBankAuth,
	}
	if err := o.storage.SaveSyncSession(ctx, session); err != nil {
		return nil, wrapError(CodeSessionNotFound, err, "failed to persist session")
	}
	o.session = session
	o.transactions = nil

	o.logger.Info("Sync session started", "session_id", session.ID)

	challenge, err := o.auth.StartAuth(ctx, creds)
	if err != nil {
		return nil, o.fail(ctx, wrapError(CodeBankAuthFailed, err, "bank authentication failed"))
	}

	if err := o.transition(ctx, model.SyncAwaitingUserConfirmation); err != nil {
		return nil, err
	}
	return challenge, nil
}

// Confirm resumes the run after the user approved the challenge out of band:
// it completes authentication, fetches and classifies transactions, marks
// duplicates, and moves the session into review.
func (o *Orchestrator) Confirm(ctx context.Context) error {
	if err := o.ensureSession(ctx, model.SyncAwaitingUserConfirmation); err != nil {
		return err
	}

	token, err := o.auth.ConfirmChallenge(ctx)
	if err != nil {
		var stateErr *bank.StateError
		if errors.As(err, &stateErr) {
			return stateError(string(stateErr.Expected), string(stateErr.Actual))
		}
		if bank.IsAuthCode(err, bank.CodeChallengeExpired) {
			return o.fail(ctx, wrapError(CodeConfirmationTimeout, err, "confirmation challenge expired"))
		}
		return o.fail(ctx, wrapError(CodeBankAuthFailed, err, "challenge confirmation failed"))
	}

	if err := o.transition(ctx, model.SyncFetchingTransactions); err != nil {
		return err
	}

	bankTxns, err := o.bankClient.ListTransactions(ctx, token, o.cfg.AccountID, o.cfg.LookbackDays)
	if err != nil {
		return o.fail(ctx, wrapError(CodeFetchFailed, err, "failed to fetch bank transactions"))
	}

	ruleSet, err := o.storage.GetRules(ctx)
	if err != nil {
		return o.fail(ctx, wrapError(CodeRuleCompileFailed, err, "failed to load rules"))
	}

	classified, err := rules.ClassifyAll(ruleSet, bankTxns)
	if err != nil {
		return o.fail(ctx, wrapError(CodeRuleCompileFailed, err, "rule compilation failed"))
	}

	// Duplicate detection is an enhancement, not a correctness
	// requirement: a ledger retrieval failure only skips the marking.
	entries, err := o.ledgerClient.GetRecentEntries(ctx, o.cfg.BudgetID, o.cfg.AccountID, o.cfg.LookbackDays)
	if err != nil {
		o.logger.Warn("Ledger retrieval failed, skipping duplicate detection", "error", err)
		entries = nil
	}

	classified = o.detector.MarkDuplicates(entries, classified)

	skipped := 0
	for i := range classified {
		if _, ok := classified[i].Duplicate.(model.ConfirmedDuplicate); ok {
			classified[i].Status = model.StatusSkipped
			skipped++
		}
	}

	o.transactions = classified
	o.session.TransactionCount = len(classified)
	o.session.SkippedCount = skipped

	if err := o.storage.SaveSessionTransactions(ctx, o.session.ID, o.transactions); err != nil {
		return o.fail(ctx, wrapError(CodeSessionNotFound, err, "failed to persist review transactions"))
	}

	o.logger.Info("Transactions ready for review",
		"count", len(classified),
		"auto_skipped_duplicates", skipped)

	return o.transition(ctx, model.SyncReviewingTransactions)
}

// Categorize assigns a category to one transaction.
func (o *Orchestrator) Categorize(ctx context.Context, txnID, categoryID, categoryName string) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	txn, err := o.find(txnID)
	if err != nil {
		return err
	}

	txn.CategoryID = categoryID
	txn.CategoryName = categoryName
	txn.Status = model.StatusManuallyCategorized
	return o.saveTransactions(ctx)
}

// CategorizeMany assigns a category to several transactions at once.
func (o *Orchestrator) CategorizeMany(ctx context.Context, txnIDs []string, categoryID, categoryName string) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	for _, id := range txnIDs {
		if _, err := o.find(id); err != nil {
			return err
		}
	}
	for _, id := range txnIDs {
		txn, _ := o.find(id)
		txn.CategoryID = categoryID
		txn.CategoryName = categoryName
		txn.Status = model.StatusManuallyCategorized
	}
	return o.saveTransactions(ctx)
}

// Skip excludes a transaction from the import batch.
func (o *Orchestrator) Skip(ctx context.Context, txnID string) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	txn, err := o.find(txnID)
	if err != nil {
		return err
	}

	txn.Status = model.StatusSkipped
	return o.saveTransactions(ctx)
}

// Unskip restores a skipped transaction: manually categorized when a
// category is already set, pending otherwise.
func (o *Orchestrator) Unskip(ctx context.Context, txnID string) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	txn, err := o.find(txnID)
	if err != nil {
		return err
	}

	if txn.CategoryID != "" {
		txn.Status = model.StatusManuallyCategorized
	} else {
		txn.Status = model.StatusPending
	}
	return o.saveTransactions(ctx)
}

// SetSplits divides a transaction's amount across multiple categories. The
// splits must sum exactly to the transaction amount.
func (o *Orchestrator) SetSplits(ctx context.Context, txnID string, splits []model.Split) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	txn, err := o.find(txnID)
	if err != nil {
		return err
	}

	candidate := *txn
	candidate.Splits = splits
	if !candidate.SplitsBalance() {
		return newError(CodeInvalidSplit, "splits must sum to the transaction amount %s", txn.Amount.StringFixed(2))
	}

	txn.Splits = splits
	if txn.Status == model.StatusPending || txn.Status == model.StatusNeedsAttention {
		txn.Status = model.StatusManuallyCategorized
	}
	return o.saveTransactions(ctx)
}

// ClearSplits removes a transaction's splits.
func (o *Orchestrator) ClearSplits(ctx context.Context, txnID string) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	txn, err := o.find(txnID)
	if err != nil {
		return err
	}

	txn.Splits = nil
	return o.saveTransactions(ctx)
}

// Note attaches a free-text user note to a transaction.
func (o *Orchestrator) Note(ctx context.Context, txnID, note string) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}
	txn, err := o.find(txnID)
	if err != nil {
		return err
	}

	txn.Note = note
	return o.saveTransactions(ctx)
}

// Import submits every transaction not skipped or already imported as one
// batch. Transactions the ledger flagged as pre-existing remain untouched so
// the user can force-import or discard them; the session completes only when
// no such duplicates remain.
func (o *Orchestrator) Import(ctx context.Context) error {
	return o.importBatch(ctx, false)
}

// ForceImport re-runs the import with freshly salted import identifiers,
// deliberately bypassing the ledger's dedup guard for transactions the user
// has confirmed are not duplicates.
func (o *Orchestrator) ForceImport(ctx context.Context) error {
	return o.importBatch(ctx, true)
}

func (o *Orchestrator) importBatch(ctx context.Context, forceNewImportID bool) error {
	if err := o.ensureReview(ctx); err != nil {
		return err
	}

	var batch []model.SyncTransaction
	for i := range o.transactions {
		if o.transactions[i].Importable() {
			batch = append(batch, o.transactions[i])
		}
	}

	if len(batch) == 0 {
		return o.complete(ctx)
	}

	if err := o.transition(ctx, model.SyncImporting); err != nil {
		return err
	}

	result, err := o.ledgerClient.SubmitTransactions(ctx, o.cfg.BudgetID, o.cfg.AccountID, batch, forceNewImportID)
	if err != nil {
		// Import failures are retryable by the user; the session
		// returns to review instead of failing terminally.
		if terr := o.transition(ctx, model.SyncReviewingTransactions); terr != nil {
			return terr
		}
		return wrapError(CodeLedgerImportFailed, err, "ledger rejected the import batch of %d", len(batch))
	}

	flagged := make(map[string]bool, len(result.DuplicateImportIDs))
	for _, id := range result.DuplicateImportIDs {
		flagged[id] = true
	}

	outstanding := 0
	imported := 0
	for i := range o.transactions {
		txn := &o.transactions[i]
		if !txn.Importable() {
			continue
		}
		txn.ImportAttempted = true
		if flagged[txn.ImportID()] {
			// Left in its prior status for a forced retry.
			outstanding++
			continue
		}
		txn.Status = model.StatusImported
		imported++
		if txn.MatchedRuleID != 0 {
			if err := o.storage.IncrementRuleUseCount(ctx, txn.MatchedRuleID); err != nil {
				o.logger.Warn("Failed to bump rule use count", "rule_id", txn.MatchedRuleID, "error", err)
			}
		}
	}

	o.session.ImportedCount += imported
	o.logger.Info("Import batch finished",
		"imported", imported,
		"ledger_duplicates", outstanding)

	if outstanding == 0 {
		return o.complete(ctx)
	}
	if err := o.saveTransactions(ctx); err != nil {
		return err
	}
	return o.transition(ctx, model.SyncReviewingTransactions)
}

// Cancel abandons the run at any state: the auth session and the sync
// session are cleared without side effects on the external systems.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	if err := o.auth.Clear(ctx); err != nil {
		return err
	}
	if o.session == nil {
		if session, err := o.storage.GetActiveSyncSession(ctx); err == nil {
			o.session = session
		}
	}
	if o.session == nil || o.session.Status.Terminal() {
		o.session = nil
		o.transactions = nil
		return nil
	}

	o.session.Status = model.SyncFailed
	o.session.FailureReason = "canceled by user"
	now := time.Now()
	o.session.CompletedAt = &now
	if err := o.storage.SaveSyncSession(ctx, o.session); err != nil {
		return wrapError(CodeSessionNotFound, err, "failed to persist canceled session")
	}
	if err := o.storage.DeleteSessionTransactions(ctx, o.session.ID); err != nil {
		o.logger.Warn("Failed to discard stored review transactions", "error", err)
	}

	o.session = nil
	o.transactions = nil
	return nil
}

func (o *Orchestrator) complete(ctx context.Context) error {
	now := time.Now()
	o.session.CompletedAt = &now
	o.session.SkippedCount = o.countByStatus(model.StatusSkipped)
	if err := o.storage.DeleteSessionTransactions(ctx, o.session.ID); err != nil {
		o.logger.Warn("Failed to discard stored review transactions", "error", err)
	}
	return o.transition(ctx, model.SyncCompleted)
}

func (o *Orchestrator) countByStatus(status model.TransactionStatus) int {
	n := 0
	for i := range o.transactions {
		if o.transactions[i].Status == status {
			n++
		}
	}
	return n
}

// ensureSession loads the active session from storage when the orchestrator
// was created in a fresh process, then verifies the expected state.
func (o *Orchestrator) ensureSession(ctx context.Context, want model.SyncStatus) error {
	if o.session == nil {
		session, err := o.storage.GetActiveSyncSession(ctx)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return newError(CodeSessionNotFound, "no sync session is active")
			}
			return wrapError(CodeSessionNotFound, err, "failed to load active session")
		}
		o.session = session
	}
	return o.requireState(want)
}

// ensureReview loads the active session and its persisted transaction set
// when the orchestrator was created in a fresh process, so review and import
// can resume a run that was started by an earlier invocation.
func (o *Orchestrator) ensureReview(ctx context.Context) error {
	if err := o.ensureSession(ctx, model.SyncReviewingTransactions); err != nil {
		return err
	}
	if o.transactions == nil {
		transactions, err := o.storage.GetSessionTransactions(ctx, o.session.ID)
		if err != nil {
			return wrapError(CodeSessionNotFound, err, "failed to load review transactions for session %s", o.session.ID)
		}
		o.transactions = transactions
	}
	return nil
}

// saveTransactions snapshots the review set so it survives process exit.
func (o *Orchestrator) saveTransactions(ctx context.Context) error {
	if err := o.storage.SaveSessionTransactions(ctx, o.session.ID, o.transactions); err != nil {
		return wrapError(CodeSessionNotFound, err, "failed to persist review transactions")
	}
	return nil
}

func (o *Orchestrator) requireState(want model.SyncStatus) error {
	if o.session == nil {
		return newError(CodeSessionNotFound, "no sync session is active")
	}
	if o.session.Status != want {
		return stateError(string(want), string(o.session.Status))
	}
	return nil
}

func (o *Orchestrator) find(txnID string) (*model.SyncTransaction, error) {
	for i := range o.transactions {
		if o.transactions[i].ID == txnID {
			return &o.transactions[i], nil
		}
	}
	return nil, newError(CodeTransactionNotFound, "transaction %s is not part of this sync", txnID)
}

func (o *Orchestrator) transition(ctx context.Context, status model.SyncStatus) error {
	o.session.Status = status
	if err := o.storage.SaveSyncSession(ctx, o.session); err != nil {
		return wrapError(CodeSessionNotFound, err, "failed to persist session at %s", status)
	}
	o.logger.Debug("Session transition", "session_id", o.session.ID, "status", status)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, failure *Error) error {
	if o.session != nil {
		o.session.Status = model.SyncFailed
		o.session.FailureReason = failure.Error()
		now := time.Now()
		o.session.CompletedAt = &now
		if err := o.storage.SaveSyncSession(ctx, o.session); err != nil {
			o.logger.Error("Failed to persist failed session", "error", err)
		}
	}
	return failure
}
