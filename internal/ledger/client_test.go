package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetsync/budgetsync/internal/model"
)

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{BaseURL: "https://api"}).Validate())
	assert.Error(t, (&Config{Token: "t"}).Validate())
	assert.NoError(t, (&Config{BaseURL: "https://api", Token: "t"}).Validate())
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(Config{BaseURL: server.URL, Token: "test-token"})
	require.NoError(t, err)
	return client
}

func TestGetCategories(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/budget-1/categories", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"data":{"category_groups":[
			{"name":"Everyday","categories":[
				{"id":"c1","name":"Groceries","hidden":false},
				{"id":"c2","name":"Old Stuff","hidden":true}
			]},
			{"name":"Bills","categories":[
				{"id":"c3","name":"Electric","hidden":false}
			]}
		]}}`))
	}))

	categories, err := client.GetCategories(context.Background(), "budget-1")
	require.NoError(t, err)
	require.Len(t, categories, 2, "hidden categories are dropped")
	assert.Equal(t, model.Category{ID: "c1", Name: "Groceries", Group: "Everyday"}, categories[0])
	assert.Equal(t, model.Category{ID: "c3", Name: "Electric", Group: "Bills"}, categories[1])
}

func TestGetRecentEntries(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/budget-1/accounts/acct-1/transactions", r.URL.Path)
		since := r.URL.Query().Get("since_date")
		parsed, err := time.Parse("2006-01-02", since)
		assert.NoError(t, err)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), parsed, 48*time.Hour)

		_, _ = w.Write([]byte(`{"data":{"transactions":[
			{"id":"e1","date":"2026-03-10","amount":-42170,"payee_name":"REWE","memo":"Groceries, Ref: TX-1","import_id":"BS:abcdef012345","category_name":"Groceries"}
		]}}`))
	}))

	entries, err := client.GetRecentEntries(context.Background(), "budget-1", "acct-1", 30)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "e1", entry.ID)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("-42.17")), "milliunits convert back to decimal units, got %s", entry.Amount)
	assert.Equal(t, "REWE", entry.Payee)
	assert.Equal(t, "Groceries, Ref: TX-1", entry.Memo)
	assert.Equal(t, "BS:abcdef012345", entry.ImportID)
	assert.Equal(t, date("2026-03-10"), entry.Date)
}

func TestGetRecentEntries_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"id":"401"}}`))
	}))

	_, err := client.GetRecentEntries(context.Background(), "b", "a", 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSubmitTransactions(t *testing.T) {
	var captured submitPayload

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/budgets/budget-1/transactions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{
			"transactions":[{"id":"new-1"}],
			"duplicate_import_ids":["BS:aaaaaaaaaaaa"]
		}}`))
	}))

	txn := model.SyncTransaction{
		BankTransaction: model.BankTransaction{
			ID:          "bank-1",
			Payee:       "REWE Markt GmbH",
			Memo:        "Card payment",
			Reference:   "TX-998",
			BookingDate: date("2026-03-10"),
			Amount:      decimal.RequireFromString("-42.17"),
		},
		PayeeOverride: "REWE",
		CategoryID:    "c1",
		Status:        model.StatusAutoCategorized,
	}

	result, err := client.SubmitTransactions(context.Background(), "budget-1", "acct-1", []model.SyncTransaction{txn}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, []string{"BS:aaaaaaaaaaaa"}, result.DuplicateImportIDs)

	require.Len(t, captured.Transactions, 1)
	sent := captured.Transactions[0]
	assert.Equal(t, "acct-1", sent.AccountID)
	assert.Equal(t, "2026-03-10", sent.Date)
	assert.Equal(t, int64(-42170), sent.Amount)
	assert.Equal(t, "REWE", sent.PayeeName, "payee override replaces the raw bank payee")
	assert.Equal(t, "Card payment, Ref: TX-998", sent.Memo, "bank reference is embedded for next run's dedup")
	assert.Equal(t, "c1", sent.CategoryID)
	assert.Equal(t, "cleared", sent.Cleared)
	assert.Equal(t, txn.ImportID(), sent.ImportID)
	assert.Empty(t, sent.Subtransactions)
}

func TestSubmitTransactions_Splits(t *testing.T) {
	var captured submitPayload

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"transactions":[{"id":"new-1"}]}}`))
	}))

	txn := model.SyncTransaction{
		BankTransaction: model.BankTransaction{
			ID:          "bank-2",
			BookingDate: date("2026-03-10"),
			Amount:      decimal.RequireFromString("-30.00"),
		},
		Splits: []model.Split{
			{CategoryID: "c1", Amount: decimal.RequireFromString("-10.00"), Memo: "wine"},
			{CategoryID: "c2", Amount: decimal.RequireFromString("-20.00")},
		},
	}

	_, err := client.SubmitTransactions(context.Background(), "b", "a", []model.SyncTransaction{txn}, false)
	require.NoError(t, err)

	require.Len(t, captured.Transactions, 1)
	subs := captured.Transactions[0].Subtransactions
	require.Len(t, subs, 2)
	assert.Equal(t, int64(-10000), subs[0].Amount)
	assert.Equal(t, "c1", subs[0].CategoryID)
	assert.Equal(t, "wine", subs[0].Memo)
	assert.Equal(t, int64(-20000), subs[1].Amount)
}

func TestSubmitTransactions_ForceNewImportID(t *testing.T) {
	var captured submitPayload

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"transactions":[{"id":"new-1"}]}}`))
	}))

	txn := model.SyncTransaction{
		BankTransaction: model.BankTransaction{ID: "bank-3", BookingDate: date("2026-03-10")},
	}

	_, err := client.SubmitTransactions(context.Background(), "b", "a", []model.SyncTransaction{txn}, true)
	require.NoError(t, err)

	require.Len(t, captured.Transactions, 1)
	forced := captured.Transactions[0].ImportID
	base := txn.ImportID()
	assert.True(t, strings.HasPrefix(forced, base+":"), "forced id %q must extend the deterministic id %q", forced, base)
	assert.Len(t, forced, len(base)+1+8)
}

func TestSubmitTransactions_NonCreatedStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"detail":"account not found"}}`))
	}))

	_, err := client.SubmitTransactions(context.Background(), "b", "a", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestMilliunitConversion(t *testing.T) {
	tests := []struct {
		amount string
		milli  int64
	}{
		{"-42.17", -42170},
		{"0", 0},
		{"1250.50", 1250500},
		{"-0.01", -10},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			assert.Equal(t, tt.milli, toMilliunits(d))
			assert.True(t, fromMilliunits(tt.milli).Equal(d))
		})
	}
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
