package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetsync/budgetsync/internal/model"
	"github.com/budgetsync/budgetsync/internal/rules"
	"github.com/budgetsync/budgetsync/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newStore(t)

	seed := []*model.Rule{
		{
			Name: "groceries", Pattern: "rewe", Kind: model.MatchSubstring,
			Field: model.FieldPayee, CategoryID: "c1", CategoryName: "Groceries",
			PayeeOverride: "REWE", Priority: 1, Enabled: true,
		},
		{
			Name: "rail", Pattern: `^DB \d+$`, Kind: model.MatchFullRegex,
			Field: model.FieldMemo, CategoryID: "c2", CategoryName: "Transport",
			Priority: 2, Enabled: true,
		},
		{
			Name: "retired", Pattern: "Netflix", Kind: model.MatchExact,
			Field: model.FieldPayee, CategoryID: "c3", CategoryName: "Streaming",
			Priority: 3, Enabled: false,
		},
	}
	for _, rule := range seed {
		require.NoError(t, source.CreateRule(ctx, rule))
	}

	exported, err := source.GetRules(ctx)
	require.NoError(t, err)
	data, err := rules.Export(exported)
	require.NoError(t, err)

	target := newStore(t)
	imported, err := rules.Import(ctx, target, data)
	require.NoError(t, err)
	require.Len(t, imported, 3)

	// Classification behavior is identical on both sides even though the
	// target assigned fresh ids.
	transactions := []model.BankTransaction{
		{ID: "t1", Payee: "REWE Markt"},
		{ID: "t2", Memo: "DB 42"},
		{ID: "t3", Payee: "Netflix"},
	}

	fromSource, err := rules.ClassifyAll(exported, transactions)
	require.NoError(t, err)
	targetRules, err := target.GetRules(ctx)
	require.NoError(t, err)
	fromTarget, err := rules.ClassifyAll(targetRules, transactions)
	require.NoError(t, err)

	for i := range fromSource {
		assert.Equal(t, fromSource[i].Status, fromTarget[i].Status)
		assert.Equal(t, fromSource[i].CategoryID, fromTarget[i].CategoryID)
		assert.Equal(t, fromSource[i].PayeeOverride, fromTarget[i].PayeeOverride)
	}
	assert.Equal(t, model.StatusPending, fromTarget[2].Status, "disabled rules survive the round trip disabled")
}

func TestImport_RejectsBrokenRuleset(t *testing.T) {
	ctx := context.Background()
	target := newStore(t)

	require.NoError(t, target.CreateRule(ctx, &model.Rule{
		Name: "keeper", Pattern: "rewe", Kind: model.MatchSubstring,
		Field: model.FieldPayee, CategoryID: "c1", CategoryName: "Groceries",
		Enabled: true,
	}))

	broken := []byte(`[
		{"name":"ok","pattern":"cafe","kind":"substring","field":"payee","category_id":"c2","category_name":"Dining","enabled":true},
		{"name":"bad","pattern":"(unclosed","kind":"regex","field":"payee","category_id":"c3","category_name":"X","enabled":true}
	]`)

	_, err := rules.Import(ctx, target, broken)
	require.Error(t, err)

	var errs rules.CompileErrors
	assert.ErrorAs(t, err, &errs)

	// The existing ruleset is untouched.
	kept, err := target.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "keeper", kept[0].Name)
}

func TestImport_RejectsMalformedJSON(t *testing.T) {
	ctx := context.Background()
	target := newStore(t)

	_, err := rules.Import(ctx, target, []byte(`{not json`))
	assert.Error(t, err)
}
