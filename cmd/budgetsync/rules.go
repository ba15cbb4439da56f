package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/budgetsync/budgetsync/internal/model"
	"github.com/budgetsync/budgetsync/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
		Long:  `List, add, delete, reorder, export and import the pattern rules used to classify transactions.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(reorderRulesCmd())
	cmd.AddCommand(exportRulesCmd())
	cmd.AddCommand(importRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rules in priority order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.GetRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(ruleSet) == 0 {
				fmt.Println("No rules defined. Use 'budgetsync rules add' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "ID\tPRIO\tNAME\tKIND\tFIELD\tPATTERN\tCATEGORY\tENABLED\n")
			for _, rule := range ruleSet {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
					rule.ID, rule.Priority, rule.Name, rule.Kind, rule.Field,
					rule.Pattern, rule.CategoryName, rule.Enabled)
			}
			return nil
		},
	}
}

func addRuleCmd() *cobra.Command {
	var (
		kind          string
		field         string
		categoryID    string
		categoryName  string
		payeeOverride string
		priority      int
		disabled      bool
	)

	cmd := &cobra.Command{
		Use:   "add <name> <pattern>",
		Short: "Add a classification rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rule := model.Rule{
				Name:          args[0],
				Pattern:       args[1],
				Kind:          model.MatchKind(kind),
				Field:         model.RuleField(field),
				CategoryID:    categoryID,
				CategoryName:  categoryName,
				PayeeOverride: payeeOverride,
				Priority:      priority,
				Enabled:       !disabled,
			}

			// Reject patterns that would break classification later.
			if _, err := rules.Compile(rule); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Printf("Created rule %d (%s).\n", rule.ID, rule.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(model.MatchSubstring), "match kind (exact, substring, regex)")
	cmd.Flags().StringVar(&field, "field", string(model.FieldCombined), "target field (payee, memo, combined)")
	cmd.Flags().StringVar(&categoryID, "category-id", "", "destination category id")
	cmd.Flags().StringVar(&categoryName, "category", "", "destination category name")
	cmd.Flags().StringVar(&payeeOverride, "payee", "", "payee display override")
	cmd.Flags().IntVar(&priority, "priority", 100, "rule priority (lower sorts first)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the rule disabled")
	_ = cmd.MarkFlagRequired("category-id")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteRule(ctx, id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			fmt.Printf("Deleted rule %d.\n", id)
			return nil
		},
	}
}

func reorderRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Rewrite rule priorities to match the given id order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid rule id %q", arg)
				}
				ids = append(ids, id)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ReorderRules(ctx, ids); err != nil {
				return fmt.Errorf("failed to reorder rules: %w", err)
			}
			fmt.Println("Rules reordered.")
			return nil
		},
	}
}

func exportRulesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all rules as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.GetRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			data, err := rules.Export(ruleSet)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("Exported %d rules to %s.\n", len(ruleSet), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func importRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from JSON, replacing the current set",
		Long: `Parses the given rule list, verifies that every rule compiles, and only
then replaces the stored ruleset. A single broken rule aborts the whole
import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			imported, err := rules.Import(ctx, store, data)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d rules.\n", len(imported))
			return nil
		},
	}
}
