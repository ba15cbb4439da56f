package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetsync/budgetsync/internal/model"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func syncTxn(id, payee, reference, amount, bookingDate string) model.SyncTransaction {
	return model.SyncTransaction{
		BankTransaction: model.BankTransaction{
			ID:          id,
			Payee:       payee,
			Reference:   reference,
			Amount:      decimal.RequireFromString(amount),
			BookingDate: date(bookingDate),
		},
	}
}

func TestDetector_Status_ReferenceMatch(t *testing.T) {
	d := NewDetector(DefaultConfig())

	txn := syncTxn("t1", "Cafe Milano", "TX-998", "-12.50", "2026-03-10")
	entries := []model.LedgerEntry{
		{Payee: "Cafe Milano", Memo: "Lunch, Ref: TX-998", Amount: decimal.RequireFromString("-12.50"), Date: date("2026-03-10")},
	}

	status := d.Status(entries, &txn)
	confirmed, ok := status.(model.ConfirmedDuplicate)
	require.True(t, ok, "reference hit must yield a confirmed duplicate, got %T", status)
	assert.Equal(t, "TX-998", confirmed.MatchedReference)
	assert.True(t, status.Detail().ReferenceMatch)
	assert.False(t, status.Detail().ImportIDMatch)
}

func TestDetector_Status_ImportIDMatch(t *testing.T) {
	d := NewDetector(DefaultConfig())

	txn := syncTxn("t1", "Stadtwerke", "", "-80.00", "2026-03-01")
	entries := []model.LedgerEntry{
		{Payee: "Someone Else", ImportID: txn.ImportID(), Amount: decimal.RequireFromString("-1.00"), Date: date("2020-01-01")},
	}

	status := d.Status(entries, &txn)
	confirmed, ok := status.(model.ConfirmedDuplicate)
	require.True(t, ok, "import-id hit must confirm regardless of other fields, got %T", status)
	assert.Equal(t, txn.ImportID(), confirmed.MatchedReference)
	assert.True(t, status.Detail().ImportIDMatch)
}

func TestDetector_Status_ReferenceBeatsImportID(t *testing.T) {
	d := NewDetector(DefaultConfig())

	txn := syncTxn("t1", "Cafe", "TX-1", "-5.00", "2026-03-10")
	entries := []model.LedgerEntry{
		{Payee: "Cafe", Memo: "Ref: TX-1", ImportID: txn.ImportID(), Amount: txn.Amount, Date: txn.BookingDate},
	}

	status := d.Status(entries, &txn)
	require.IsType(t, model.ConfirmedDuplicate{}, status)
	assert.True(t, status.Detail().ReferenceMatch)
	assert.False(t, status.Detail().ImportIDMatch, "strategies run in priority order and stop at the first hit")
}

func TestDetector_Status_FuzzyMatch(t *testing.T) {
	tests := []struct {
		name         string
		tolerance    int
		txn          model.SyncTransaction
		entry        model.LedgerEntry
		wantPossible bool
	}{
		{
			name:      "same day exact amount payee containment",
			tolerance: 1,
			txn:       syncTxn("t1", "REWE Markt GmbH", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "REWE", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-10"),
			},
			wantPossible: true,
		},
		{
			name:      "one day apart within tolerance",
			tolerance: 1,
			txn:       syncTxn("t1", "REWE", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "REWE Markt", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-11"),
			},
			wantPossible: true,
		},
		{
			name:      "two days apart outside default tolerance",
			tolerance: 1,
			txn:       syncTxn("t1", "REWE", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "REWE", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-12"),
			},
			wantPossible: false,
		},
		{
			name:      "two days apart within widened tolerance",
			tolerance: 3,
			txn:       syncTxn("t1", "REWE", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "REWE", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-12"),
			},
			wantPossible: true,
		},
		{
			name:      "amount off by a cent never matches",
			tolerance: 1,
			txn:       syncTxn("t1", "REWE", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "REWE", Amount: decimal.RequireFromString("-42.18"), Date: date("2026-03-10"),
			},
			wantPossible: false,
		},
		{
			name:      "payee containment works in either direction",
			tolerance: 1,
			txn:       syncTxn("t1", "rewe", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "REWE Markt GmbH Koeln", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-10"),
			},
			wantPossible: true,
		},
		{
			name:      "empty payees never fuzzy match",
			tolerance: 1,
			txn:       syncTxn("t1", "", "", "-42.17", "2026-03-10"),
			entry: model.LedgerEntry{
				Payee: "", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-10"),
			},
			wantPossible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(Config{DayTolerance: tt.tolerance})
			status := d.Status([]model.LedgerEntry{tt.entry}, &tt.txn)
			if tt.wantPossible {
				possible, ok := status.(model.PossibleDuplicate)
				require.True(t, ok, "got %T", status)
				assert.Contains(t, possible.Reason, "similar entry")
				assert.True(t, status.Detail().FuzzyFound)
				assert.Equal(t, tt.entry.Payee, status.Detail().FuzzyPayee)
			} else {
				require.IsType(t, model.NotDuplicate{}, status)
				assert.False(t, status.Detail().FuzzyFound)
			}
		})
	}
}

func TestDetector_Status_NotDuplicateCarriesDetail(t *testing.T) {
	d := NewDetector(DefaultConfig())
	txn := syncTxn("t1", "REWE", "TX-5", "-10.00", "2026-03-10")

	status := d.Status(nil, &txn)
	require.IsType(t, model.NotDuplicate{}, status)
	assert.Equal(t, "TX-5", status.Detail().Reference)
}

func TestDetector_MarkDuplicates(t *testing.T) {
	d := NewDetector(DefaultConfig())

	transactions := []model.SyncTransaction{
		syncTxn("t1", "Cafe", "TX-1", "-5.00", "2026-03-10"),
		syncTxn("t2", "REWE Markt", "", "-42.17", "2026-03-10"),
		syncTxn("t3", "Stadtwerke", "", "-80.00", "2026-03-01"),
	}
	transactions[0].Status = model.StatusAutoCategorized

	entries := []model.LedgerEntry{
		{Payee: "Cafe", Memo: "Ref: TX-1", Amount: decimal.RequireFromString("-5.00"), Date: date("2026-03-10")},
		{Payee: "REWE", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-11")},
	}

	marked := d.MarkDuplicates(entries, transactions)
	require.Len(t, marked, 3)

	assert.IsType(t, model.ConfirmedDuplicate{}, marked[0].Duplicate)
	assert.IsType(t, model.PossibleDuplicate{}, marked[1].Duplicate)
	assert.IsType(t, model.NotDuplicate{}, marked[2].Duplicate)

	// Marking is pure enrichment.
	assert.Equal(t, model.StatusAutoCategorized, marked[0].Status)
	assert.Equal(t, model.TransactionStatus(""), marked[1].Status)
}

func TestDetector_MarkDuplicates_OrderIndependent(t *testing.T) {
	d := NewDetector(DefaultConfig())

	entries := []model.LedgerEntry{
		{Payee: "Cafe", Memo: "Ref: TX-1", Amount: decimal.RequireFromString("-5.00"), Date: date("2026-03-10")},
		{Payee: "REWE", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-11")},
	}

	build := func() []model.SyncTransaction {
		return []model.SyncTransaction{
			syncTxn("t1", "Cafe", "TX-1", "-5.00", "2026-03-10"),
			syncTxn("t2", "REWE Markt", "", "-42.17", "2026-03-10"),
			syncTxn("t3", "Stadtwerke", "", "-80.00", "2026-03-01"),
			syncTxn("t4", "Cafe", "", "-5.00", "2026-03-10"),
		}
	}

	byID := func(marked []model.SyncTransaction) map[string]model.DuplicateStatus {
		statuses := make(map[string]model.DuplicateStatus, len(marked))
		for i := range marked {
			statuses[marked[i].ID] = marked[i].Duplicate
		}
		return statuses
	}

	baseline := byID(d.MarkDuplicates(entries, build()))

	permutations := [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		original := build()
		permuted := make([]model.SyncTransaction, len(perm))
		for i, j := range perm {
			permuted[i] = original[j]
		}

		statuses := byID(d.MarkDuplicates(entries, permuted))
		require.Len(t, statuses, len(baseline))
		for id, want := range baseline {
			assert.Equal(t, want, statuses[id], "status of %s must not depend on processing order %v", id, perm)
		}
	}
}

func TestNewDetector_NegativeToleranceFallsBack(t *testing.T) {
	d := NewDetector(Config{DayTolerance: -5})

	// A one-day gap must still match under the default tolerance.
	txn := syncTxn("t1", "REWE", "", "-42.17", "2026-03-10")
	entry := model.LedgerEntry{Payee: "REWE", Amount: decimal.RequireFromString("-42.17"), Date: date("2026-03-11")}
	assert.IsType(t, model.PossibleDuplicate{}, d.Status([]model.LedgerEntry{entry}, &txn))
}
