package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List ledger categories",
		Long:  `Fetches the ledger's category list so rule destinations can be looked up by id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := newLedgerClient()
			if err != nil {
				return err
			}

			categories, err := client.GetCategories(ctx, viper.GetString("ledger.budget_id"))
			if err != nil {
				return fmt.Errorf("failed to fetch categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println("No categories found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "ID\tGROUP\tNAME\n")
			for _, category := range categories {
				fmt.Fprintf(w, "%s\t%s\t%s\n", category.ID, category.Group, category.Name)
			}
			return nil
		},
	}
	return cmd
}
