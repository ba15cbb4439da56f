package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/budgetsync/budgetsync/internal/common"
	"github.com/budgetsync/budgetsync/internal/model"
	"github.com/budgetsync/budgetsync/internal/sync"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize bank transactions into the ledger",
	}

	cmd.AddCommand(syncRunCmd())
	cmd.AddCommand(syncImportCmd())
	cmd.AddCommand(syncStatusCmd())
	cmd.AddCommand(syncCancelCmd())

	return cmd
}

func syncRunCmd() *cobra.Command {
	var autoImport bool
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full synchronization",
		Long: `Authenticates against the bank, waits for you to confirm the challenge on
your device, fetches and classifies recent transactions, marks duplicates,
and optionally imports the reviewed batch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orch, err := newOrchestrator(store)
			if err != nil {
				return err
			}

			challenge, err := orch.Start(ctx, bankCredentials())
			if err != nil {
				return err
			}

			fmt.Printf("Confirm the %s challenge on your device, then press Enter to continue...\n", challenge.Type)
			if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
				return fmt.Errorf("aborted while waiting for confirmation: %w", err)
			}

			if err := orch.Confirm(ctx); err != nil {
				return err
			}

			transactions := orch.Transactions()
			renderReviewTable(transactions)

			if !autoImport {
				fmt.Println("\nReview complete. Run 'budgetsync sync import' to submit the batch.")
				return nil
			}

			return submitBatch(ctx, orch, force)
		},
	}

	cmd.Flags().BoolVar(&autoImport, "import", false, "import the batch after review")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the ledger's duplicate guard with fresh import ids")

	return cmd
}

func syncImportCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Submit the reviewed batch to the ledger",
		Long: `Resumes the session left in review by 'sync run' and submits its batch.
The persisted transaction set is reloaded, so this works in a fresh process
without re-authenticating against the bank.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orch, err := newOrchestrator(store)
			if err != nil {
				return err
			}

			return submitBatch(ctx, orch, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "bypass the ledger's duplicate guard with fresh import ids")

	return cmd
}

func submitBatch(ctx context.Context, orch *sync.Orchestrator, force bool) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("Submitting batch to ledger..."))

	var err error
	if force {
		err = orch.ForceImport(ctx)
	} else {
		err = orch.Import(ctx)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	session := orch.Session()
	fmt.Printf("Imported %d of %d transactions (%d skipped).\n",
		session.ImportedCount, session.TransactionCount, session.SkippedCount)
	if session.Status == model.SyncReviewingTransactions {
		fmt.Println("The ledger flagged some transactions as already imported; run 'budgetsync sync import --force' to override.")
	}
	return nil
}

func syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active sync session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			session, err := store.GetActiveSyncSession(ctx)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					fmt.Println("No sync session is active.")
					return nil
				}
				return err
			}

			fmt.Printf("Session:      %s\n", session.ID)
			fmt.Printf("Status:       %s\n", session.Status)
			fmt.Printf("Started:      %s\n", session.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Transactions: %d (%d imported, %d skipped)\n",
				session.TransactionCount, session.ImportedCount, session.SkippedCount)
			if session.FailureReason != "" {
				fmt.Printf("Failure:      %s\n", session.FailureReason)
			}
			return nil
		},
	}
}

func syncCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Abandon the active sync session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orch, err := newOrchestrator(store)
			if err != nil {
				return err
			}
			if err := orch.Cancel(ctx); err != nil {
				return err
			}
			fmt.Println("Sync session canceled.")
			return nil
		},
	}
}

func renderReviewTable(transactions []model.SyncTransaction) {
	if len(transactions) == 0 {
		fmt.Println("No transactions in the lookback window.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintf(w, "DATE\tAMOUNT\tPAYEE\tCATEGORY\tSTATUS\tNOTES\n")
	for i := range transactions {
		txn := &transactions[i]

		category := txn.CategoryName
		if category == "" {
			category = "(uncategorized)"
		}

		var notes []string
		for _, link := range txn.Links {
			notes = append(notes, link.Label)
		}
		switch dup := txn.Duplicate.(type) {
		case model.ConfirmedDuplicate:
			notes = append(notes, "duplicate of "+dup.MatchedReference)
		case model.PossibleDuplicate:
			notes = append(notes, dup.Reason)
		}

		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\t%s\n",
			txn.BookingDate.Format("2006-01-02"),
			txn.Amount.StringFixed(2), txn.Currency,
			txn.Payee,
			category,
			txn.Status,
			strings.Join(notes, "; "))
	}
}
