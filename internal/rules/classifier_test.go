package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetsync/budgetsync/internal/model"
)

func TestMatchText(t *testing.T) {
	txn := &model.BankTransaction{Payee: "REWE Markt", Memo: "Groceries week 12"}

	assert.Equal(t, "REWE Markt", MatchText(txn, model.FieldPayee))
	assert.Equal(t, "Groceries week 12", MatchText(txn, model.FieldMemo))
	assert.Equal(t, "REWE Markt Groceries week 12", MatchText(txn, model.FieldCombined))
	assert.Equal(t, "", MatchText(txn, model.RuleField("unknown")))
}

func TestClassify_FirstMatchWins(t *testing.T) {
	tests := []struct {
		name       string
		rules      []model.Rule
		txn        model.BankTransaction
		wantRuleID int64
	}{
		{
			name: "earlier rule wins even when both match",
			rules: []model.Rule{
				{ID: 1, Kind: model.MatchSubstring, Field: model.FieldPayee, Pattern: "rewe", Enabled: true},
				{ID: 2, Kind: model.MatchSubstring, Field: model.FieldPayee, Pattern: "markt", Enabled: true},
			},
			txn:        model.BankTransaction{Payee: "REWE Markt"},
			wantRuleID: 1,
		},
		{
			name: "disabled rule is skipped",
			rules: []model.Rule{
				{ID: 1, Kind: model.MatchSubstring, Field: model.FieldPayee, Pattern: "rewe", Enabled: false},
				{ID: 2, Kind: model.MatchSubstring, Field: model.FieldPayee, Pattern: "markt", Enabled: true},
			},
			txn:        model.BankTransaction{Payee: "REWE Markt"},
			wantRuleID: 2,
		},
		{
			name: "exact rule passes over longer payee to substring rule",
			rules: []model.Rule{
				{ID: 1, Kind: model.MatchExact, Field: model.FieldPayee, Pattern: "REWE", Enabled: true},
				{ID: 2, Kind: model.MatchSubstring, Field: model.FieldPayee, Pattern: "rewe", Enabled: true},
			},
			txn:        model.BankTransaction{Payee: "REWE Markt GmbH"},
			wantRuleID: 2,
		},
		{
			name: "memo field rule ignores payee text",
			rules: []model.Rule{
				{ID: 1, Kind: model.MatchSubstring, Field: model.FieldMemo, Pattern: "rewe", Enabled: true},
			},
			txn:        model.BankTransaction{Payee: "REWE Markt", Memo: "card payment"},
			wantRuleID: 0,
		},
		{
			name: "combined field matches text split across payee and memo",
			rules: []model.Rule{
				{ID: 1, Kind: model.MatchFullRegex, Field: model.FieldCombined, Pattern: `lastschrift \S+ spotify`, Enabled: true},
			},
			txn:        model.BankTransaction{Payee: "Lastschrift", Memo: "DE99 Spotify AB"},
			wantRuleID: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := CompileAll(tt.rules)
			require.NoError(t, err)

			matched := Classify(compiled, &tt.txn)
			if tt.wantRuleID == 0 {
				assert.Nil(t, matched)
				return
			}
			require.NotNil(t, matched)
			assert.Equal(t, tt.wantRuleID, matched.ID)
		})
	}
}

func TestClassifyAll(t *testing.T) {
	ruleSet := []model.Rule{
		{
			ID: 1, Name: "groceries", Kind: model.MatchSubstring, Field: model.FieldPayee,
			Pattern: "rewe", CategoryID: "cat-groceries", CategoryName: "Groceries",
			PayeeOverride: "REWE", Enabled: true,
		},
		{
			ID: 2, Name: "shopping", Kind: model.MatchSubstring, Field: model.FieldCombined,
			Pattern: "amazon", CategoryID: "cat-shopping", CategoryName: "Shopping",
			Enabled: true,
		},
	}

	transactions := []model.BankTransaction{
		{ID: "t1", Payee: "REWE Markt GmbH", Memo: "week 12"},
		{ID: "t2", Payee: "AMAZON EU S.A.R.L.", Memo: "303-1234567-1234567 AMZN.COM"},
		{ID: "t3", Payee: "Stadtwerke", Memo: "Abschlag Strom"},
	}

	result, err := ClassifyAll(ruleSet, transactions)
	require.NoError(t, err)
	require.Len(t, result, 3)

	rewe := result[0]
	assert.Equal(t, model.StatusAutoCategorized, rewe.Status)
	assert.Equal(t, "cat-groceries", rewe.CategoryID)
	assert.Equal(t, "Groceries", rewe.CategoryName)
	assert.Equal(t, "REWE", rewe.PayeeOverride)
	assert.Equal(t, int64(1), rewe.MatchedRuleID)
	assert.Empty(t, rewe.Links)

	// A rule matched, but the marketplace link demotes the result to
	// needs-attention: the rule's category is a guess at best.
	amazon := result[1]
	assert.Equal(t, model.StatusNeedsAttention, amazon.Status)
	assert.Equal(t, "cat-shopping", amazon.CategoryID)
	assert.Equal(t, int64(2), amazon.MatchedRuleID)
	require.Len(t, amazon.Links, 1)
	assert.Equal(t, "Amazon order 303-1234567-1234567", amazon.Links[0].Label)

	unmatched := result[2]
	assert.Equal(t, model.StatusPending, unmatched.Status)
	assert.Empty(t, unmatched.CategoryID)
	assert.Zero(t, unmatched.MatchedRuleID)
}

func TestClassifyAll_CompileFailureAbortsPass(t *testing.T) {
	ruleSet := []model.Rule{
		{ID: 1, Kind: model.MatchFullRegex, Pattern: `(broken`, Enabled: true},
	}
	transactions := []model.BankTransaction{{ID: "t1", Payee: "REWE"}}

	result, err := ClassifyAll(ruleSet, transactions)
	require.Error(t, err)
	assert.Nil(t, result)

	var errs CompileErrors
	assert.ErrorAs(t, err, &errs)
}
