package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/budgetsync/budgetsync/internal/bank"
	"github.com/budgetsync/budgetsync/internal/config"
	"github.com/budgetsync/budgetsync/internal/dedup"
	"github.com/budgetsync/budgetsync/internal/ledger"
	"github.com/budgetsync/budgetsync/internal/service"
	"github.com/budgetsync/budgetsync/internal/storage"
	"github.com/budgetsync/budgetsync/internal/sync"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/budgetsync/budgetsync.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func newBankClient() (*bank.HTTPClient, error) {
	return bank.NewHTTPClient(bank.Config{
		BaseURL:      viper.GetString("bank.base_url"),
		TokenURL:     viper.GetString("bank.token_url"),
		ClientID:     viper.GetString("bank.client_id"),
		ClientSecret: viper.GetString("bank.client_secret"),
		AccountID:    viper.GetString("bank.account_id"),
	})
}

func newLedgerClient() (*ledger.HTTPClient, error) {
	return ledger.NewHTTPClient(ledger.Config{
		BaseURL: viper.GetString("ledger.base_url"),
		Token:   viper.GetString("ledger.token"),
	})
}

func bankCredentials() bank.Credentials {
	return bank.Credentials{
		Username: viper.GetString("bank.username"),
		Password: viper.GetString("bank.password"),
	}
}

func syncConfig() sync.Config {
	cfg := sync.DefaultConfig()
	cfg.BudgetID = viper.GetString("ledger.budget_id")
	cfg.AccountID = viper.GetString("bank.account_id")
	if days := viper.GetInt("sync.lookback_days"); days > 0 {
		cfg.LookbackDays = days
	}
	if tolerance := viper.GetInt("sync.dedup_day_tolerance"); tolerance > 0 {
		cfg.Dedup = dedup.Config{DayTolerance: tolerance}
	}
	return cfg
}

// newOrchestrator wires the orchestrator and its collaborators from config.
func newOrchestrator(store service.Storage) (*sync.Orchestrator, error) {
	bankClient, err := newBankClient()
	if err != nil {
		return nil, fmt.Errorf("bank configuration: %w", err)
	}
	ledgerClient, err := newLedgerClient()
	if err != nil {
		return nil, fmt.Errorf("ledger configuration: %w", err)
	}

	auth := bank.NewManager(bankClient, store)
	return sync.New(auth, bankClient, ledgerClient, store, syncConfig()), nil
}
