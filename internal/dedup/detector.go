// Package dedup detects bank transactions that already exist in the ledger.
package dedup

import (
	"fmt"
	"strings"
	"time"

	"github.com/budgetsync/budgetsync/internal/model"
)

// Config tunes the fuzzy matching strategy. The day tolerance is a fixed
// policy with a configurable escape hatch; amounts must always match exactly.
type Config struct {
	DayTolerance int
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{DayTolerance: 1}
}

// Detector compares incoming transactions against already-imported ledger
// entries using three independent strategies, in priority order: reference
// match, import-id match, fuzzy match.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	if cfg.DayTolerance < 0 {
		cfg.DayTolerance = DefaultConfig().DayTolerance
	}
	return &Detector{cfg: cfg}
}

// Status determines the duplicate status of a single transaction against the
// given ledger entries. The diagnostic detail is populated regardless of
// outcome so callers can always explain the result.
func (d *Detector) Status(entries []model.LedgerEntry, txn *model.SyncTransaction) model.DuplicateStatus {
	detail := model.DuplicateDetail{Reference: txn.Reference}

	// Reference match: the ledger memo carries the originating bank
	// reference from a previous import.
	if txn.Reference != "" {
		for i := range entries {
			if strings.Contains(entries[i].Memo, txn.Reference) {
				detail.ReferenceMatch = true
				return model.ConfirmedDuplicate{
					MatchedReference: txn.Reference,
					Diag:             detail,
				}
			}
		}
	}

	// Import-id match: this exact transaction was previously imported
	// under our own identifier scheme.
	importID := txn.ImportID()
	for i := range entries {
		if entries[i].ImportID != "" && entries[i].ImportID == importID {
			detail.ImportIDMatch = true
			return model.ConfirmedDuplicate{
				MatchedReference: entries[i].ImportID,
				Diag:             detail,
			}
		}
	}

	// Fuzzy match: close date, exact amount, payee containment in either
	// direction (ledger payee fields may be truncated).
	for i := range entries {
		entry := &entries[i]
		if !d.fuzzyMatch(entry, txn) {
			continue
		}
		detail.FuzzyFound = true
		detail.FuzzyDate = entry.Date
		detail.FuzzyAmount = entry.Amount
		detail.FuzzyPayee = entry.Payee
		return model.PossibleDuplicate{
			Reason: fmt.Sprintf("similar entry %q on %s over %s",
				entry.Payee,
				entry.Date.Format("2006-01-02"),
				entry.Amount.StringFixed(2)),
			Diag: detail,
		}
	}

	return model.NotDuplicate{Diag: detail}
}

func (d *Detector) fuzzyMatch(entry *model.LedgerEntry, txn *model.SyncTransaction) bool {
	if !entry.Amount.Equal(txn.Amount) {
		return false
	}

	diff := entry.Date.Sub(txn.BookingDate)
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Duration(d.cfg.DayTolerance)*24*time.Hour {
		return false
	}

	entryPayee := strings.ToLower(strings.TrimSpace(entry.Payee))
	txnPayee := strings.ToLower(strings.TrimSpace(txn.Payee))
	if entryPayee == "" || txnPayee == "" {
		return false
	}
	return strings.Contains(entryPayee, txnPayee) || strings.Contains(txnPayee, entryPayee)
}

// MarkDuplicates enriches every transaction with its duplicate status. It is
// a pure enrichment pass: review status is never touched, only the Duplicate
// field. The orchestrator decides what to do with confirmed duplicates.
func (d *Detector) MarkDuplicates(entries []model.LedgerEntry, transactions []model.SyncTransaction) []model.SyncTransaction {
	for i := range transactions {
		transactions[i].Duplicate = d.Status(entries, &transactions[i])
	}
	return transactions
}
