package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/budgetsync/budgetsync/internal/model"
	"github.com/budgetsync/budgetsync/internal/service"
)

// Export serializes the ruleset as an indented JSON list, suitable for
// re-import.
func Export(ruleSet []model.Rule) ([]byte, error) {
	data, err := json.MarshalIndent(ruleSet, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize rules: %w", err)
	}
	return data, nil
}

// Import parses a serialized ruleset, revalidates that every rule compiles,
// and only then replaces the stored ruleset. Nothing is persisted when any
// rule is broken, matching CompileAll's all-or-nothing semantics. Ids are
// reassigned by storage; classification behavior is preserved.
func Import(ctx context.Context, storage service.Storage, data []byte) ([]model.Rule, error) {
	var ruleSet []model.Rule
	if err := json.Unmarshal(data, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if _, err := CompileAll(ruleSet); err != nil {
		return nil, err
	}

	if err := storage.ReplaceRules(ctx, ruleSet); err != nil {
		return nil, fmt.Errorf("failed to persist imported rules: %w", err)
	}
	return ruleSet, nil
}
