package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/budgetsync/budgetsync/internal/common"
	"github.com/budgetsync/budgetsync/internal/model"
	"github.com/budgetsync/budgetsync/internal/service"
)

// Config holds ledger API configuration.
type Config struct {
	BaseURL string
	Token   string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("ledger base URL is required")
	}
	if c.Token == "" {
		return fmt.Errorf("ledger API token is required")
	}
	return nil
}

// HTTPClient implements Client against the ledger's REST API. Amounts travel
// as milliunits; import ids follow our deterministic scheme so the ledger can
// reject re-submissions.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  service.RetryOptions
}

// NewHTTPClient creates a new ledger API client with the given configuration.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "ledger"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}, nil
}

// Ledger API wire types.
type categoriesResponse struct {
	Data struct {
		CategoryGroups []struct {
			Name       string `json:"name"`
			Categories []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Hidden bool   `json:"hidden"`
			} `json:"categories"`
		} `json:"category_groups"`
	} `json:"data"`
}

type transactionsResponse struct {
	Data struct {
		Transactions []ledgerTransaction `json:"transactions"`
	} `json:"data"`
}

type ledgerTransaction struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Amount       int64  `json:"amount"` // milliunits
	PayeeName    string `json:"payee_name"`
	Memo         string `json:"memo"`
	ImportID     string `json:"import_id"`
	CategoryName string `json:"category_name"`
}

type submitPayload struct {
	Transactions []submitTransaction `json:"transactions"`
}

type submitTransaction struct {
	AccountID       string             `json:"account_id"`
	Date            string             `json:"date"`
	Amount          int64              `json:"amount"`
	PayeeName       string             `json:"payee_name,omitempty"`
	Memo            string             `json:"memo,omitempty"`
	CategoryID      string             `json:"category_id,omitempty"`
	Cleared         string             `json:"cleared"`
	ImportID        string             `json:"import_id"`
	Subtransactions []subTransactionTx `json:"subtransactions,omitempty"`
}

type subTransactionTx struct {
	Amount     int64  `json:"amount"`
	CategoryID string `json:"category_id,omitempty"`
	Memo       string `json:"memo,omitempty"`
}

type submitResponse struct {
	Data struct {
		Transactions       []ledgerTransaction `json:"transactions"`
		DuplicateImportIDs []string            `json:"duplicate_import_ids"`
	} `json:"data"`
}

// GetCategories lists the budget's categories, flattening category groups and
// dropping hidden entries.
func (c *HTTPClient) GetCategories(ctx context.Context, budgetID string) ([]model.Category, error) {
	endpoint := fmt.Sprintf("%s/budgets/%s/categories", c.cfg.BaseURL, url.PathEscape(budgetID))

	var parsed categoriesResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	var categories []model.Category
	for _, group := range parsed.Data.CategoryGroups {
		for _, cat := range group.Categories {
			if cat.Hidden {
				continue
			}
			categories = append(categories, model.Category{
				ID:    cat.ID,
				Name:  cat.Name,
				Group: group.Name,
			})
		}
	}
	return categories, nil
}

// GetRecentEntries lists recently imported ledger entries for duplicate
// detection.
func (c *HTTPClient) GetRecentEntries(ctx context.Context, budgetID, accountID string, sinceDays int) ([]model.LedgerEntry, error) {
	since := time.Now().AddDate(0, 0, -sinceDays).Format("2006-01-02")
	endpoint := fmt.Sprintf("%s/budgets/%s/accounts/%s/transactions?since_date=%s",
		c.cfg.BaseURL, url.PathEscape(budgetID), url.PathEscape(accountID), since)

	var parsed transactionsResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	entries := make([]model.LedgerEntry, 0, len(parsed.Data.Transactions))
	for _, txn := range parsed.Data.Transactions {
		date, err := time.Parse("2006-01-02", txn.Date)
		if err != nil {
			return nil, fmt.Errorf("ledger returned bad date %q: %w", txn.Date, err)
		}
		entries = append(entries, model.LedgerEntry{
			ID:       txn.ID,
			Date:     date,
			Amount:   fromMilliunits(txn.Amount),
			Payee:    txn.PayeeName,
			Memo:     txn.Memo,
			ImportID: txn.ImportID,
			Category: txn.CategoryName,
		})
	}
	return entries, nil
}

// SubmitTransactions submits one import batch.
func (c *HTTPClient) SubmitTransactions(ctx context.Context, budgetID, accountID string, transactions []model.SyncTransaction, forceNewImportID bool) (*SubmitResult, error) {
	payload := submitPayload{
		Transactions: make([]submitTransaction, 0, len(transactions)),
	}
	for i := range transactions {
		payload.Transactions = append(payload.Transactions, buildSubmitTransaction(&transactions[i], accountID, forceNewImportID))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode import batch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/budgets/%s/transactions", c.cfg.BaseURL, url.PathEscape(budgetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("import request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ledger API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode import response: %w", err)
	}

	result := &SubmitResult{
		CreatedCount:       len(parsed.Data.Transactions),
		DuplicateImportIDs: parsed.Data.DuplicateImportIDs,
	}

	c.logger.Info("Submitted import batch",
		"submitted", len(transactions),
		"created", result.CreatedCount,
		"duplicates", len(result.DuplicateImportIDs))

	return result, nil
}

func buildSubmitTransaction(txn *model.SyncTransaction, accountID string, forceNewImportID bool) submitTransaction {
	payee := txn.Payee
	if txn.PayeeOverride != "" {
		payee = txn.PayeeOverride
	}

	// The originating bank reference is embedded in the memo; the
	// reference dedup strategy depends on it on the next run.
	memo := txn.Memo
	if txn.Reference != "" {
		memo = fmt.Sprintf("%s, Ref: %s", memo, txn.Reference)
	}

	importID := txn.ImportID()
	if forceNewImportID {
		importID = fmt.Sprintf("%s:%s", importID, uuid.NewString()[:8])
	}

	out := submitTransaction{
		AccountID:  accountID,
		Date:       txn.BookingDate.Format("2006-01-02"),
		Amount:     toMilliunits(txn.Amount),
		PayeeName:  payee,
		Memo:       memo,
		CategoryID: txn.CategoryID,
		Cleared:    "cleared",
		ImportID:   importID,
	}

	for _, split := range txn.Splits {
		out.Subtransactions = append(out.Subtransactions, subTransactionTx{
			Amount:     toMilliunits(split.Amount),
			CategoryID: split.CategoryID,
			Memo:       split.Memo,
		})
	}

	return out
}

// getJSON performs an idempotent GET with retries. Reads may be retried
// freely; submissions never go through this path.
func (c *HTTPClient) getJSON(ctx context.Context, endpoint string, out any) error {
	return common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("ledger API: %w", common.ErrRateLimit)
		case resp.StatusCode >= 500:
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("ledger API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
		default:
			body, _ := io.ReadAll(resp.Body)
			return &common.RetryableError{
				Err:       fmt.Errorf("ledger API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))),
				Retryable: false,
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to decode response: %w", err), Retryable: false}
		}
		return nil
	}, c.retryOpts)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

func toMilliunits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
}

func fromMilliunits(milli int64) decimal.Decimal {
	return decimal.NewFromInt(milli).Div(decimal.NewFromInt(1000))
}
