package rules

import (
	"log/slog"

	"github.com/budgetsync/budgetsync/internal/model"
)

// MatchText extracts the text a rule is matched against.
func MatchText(txn *model.BankTransaction, field model.RuleField) string {
	switch field {
	case model.FieldPayee:
		return txn.Payee
	case model.FieldMemo:
		return txn.Memo
	case model.FieldCombined:
		return txn.Payee + " " + txn.Memo
	}
	return ""
}

// Classify scans the compiled rules in the given order and returns the first
// enabled rule whose matcher matches the transaction, or nil if none does.
// First match wins; the ruleset ordering supplied by the caller is final.
func Classify(compiled []CompiledRule, txn *model.BankTransaction) *CompiledRule {
	for i := range compiled {
		rule := &compiled[i]
		if !rule.Enabled {
			continue
		}
		if rule.Matches(MatchText(txn, rule.Field)) {
			return rule
		}
	}
	return nil
}

// ClassifyAll compiles the ruleset and classifies every transaction,
// producing the review-state records a sync run works on. A rule compile
// failure aborts the whole pass.
//
// A special-pattern link always forces needs-attention, even when a rule
// matched: the true counterparty is hidden behind a marketplace or payment
// processor, so the user must still be prompted.
func ClassifyAll(ruleSet []model.Rule, transactions []model.BankTransaction) ([]model.SyncTransaction, error) {
	compiled, err := CompileAll(ruleSet)
	if err != nil {
		return nil, err
	}

	result := make([]model.SyncTransaction, 0, len(transactions))
	for i := range transactions {
		txn := transactions[i]
		st := model.SyncTransaction{
			BankTransaction: txn,
			Status:          model.StatusPending,
			Links:           DetectLinks(&txn),
		}

		if rule := Classify(compiled, &txn); rule != nil {
			st.CategoryID = rule.CategoryID
			st.CategoryName = rule.CategoryName
			st.MatchedRuleID = rule.ID
			st.PayeeOverride = rule.PayeeOverride
			st.Status = model.StatusAutoCategorized
			slog.Debug("Rule matched",
				"transaction_id", txn.ID,
				"rule", rule.Name,
				"category", rule.CategoryName)
		}

		if len(st.Links) > 0 {
			st.Status = model.StatusNeedsAttention
		}

		result = append(result, st)
	}

	return result, nil
}
