// Package bank provides the client and session manager for the bank's
// multi-step authentication protocol and transaction API.
package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"github.com/budgetsync/budgetsync/internal/model"
)

// otpSentinel is the fixed value confirming the one-time-passcode step was
// completed out of band (on the user's phone), as the activation endpoint
// requires.
const otpSentinel = "000000"

const transactionPageSize = 50

// Config holds bank API configuration.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccountID    string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("bank base URL is required")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("bank token URL is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("bank client ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("bank client secret is required")
	}
	if c.AccountID == "" {
		return fmt.Errorf("bank account ID is required")
	}
	return nil
}

// HTTPClient implements Client against the bank's REST API.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a new bank API client with the given configuration.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "bank"),
	}, nil
}

// ObtainInitialToken performs the password grant against the bank's token
// endpoint.
func (c *HTTPClient) ObtainInitialToken(ctx context.Context, creds Credentials) (model.TokenPair, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := oauthConfig.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := retrieveErr.Response.StatusCode
			if status == http.StatusBadRequest || status == http.StatusUnauthorized {
				return model.TokenPair{}, &AuthError{
					Code:       CodeInvalidCredentials,
					Message:    "bank rejected the credentials",
					HTTPStatus: status,
				}
			}
			return model.TokenPair{}, &AuthError{
				Code:       CodeNetworkError,
				Message:    fmt.Sprintf("token endpoint failed: %s", retrieveErr.ErrorCode),
				HTTPStatus: status,
			}
		}
		return model.TokenPair{}, NewAuthError(CodeNetworkError, "token request failed: %v", err)
	}

	return model.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// sessionResponse is the bank's session status payload.
type sessionResponse struct {
	Identifier string `json:"identifier"`
}

// GetSessionID retrieves the bank-side session identifier.
func (c *HTTPClient) GetSessionID(ctx context.Context, token model.TokenPair, requestID, sessionUUID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.sessionsURL(), nil, token, requestID, sessionUUID)
	if err != nil {
		return "", err
	}

	body, _, err := c.do(req, http.StatusOK)
	if err != nil {
		return "", err
	}

	var sessions []sessionResponse
	if err := json.Unmarshal(body, &sessions); err != nil {
		return "", NewAuthError(CodeInvalidResponse, "failed to decode session response: %v", err)
	}
	if len(sessions) == 0 || sessions[0].Identifier == "" {
		return "", NewAuthError(CodeInvalidResponse, "bank returned no session identifier")
	}

	return sessions[0].Identifier, nil
}

// challengeInfo is the bank's challenge descriptor, carried in the
// x-once-authentication-info response header.
type challengeInfo struct {
	ID   string `json:"id"`
	Type string `json:"typ"`
}

// RequestChallenge asks the bank to issue a push-confirmation challenge tied
// to the session.
func (c *HTTPClient) RequestChallenge(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID string) (*model.AuthChallenge, error) {
	validateURL := c.sessionsURL() + "/" + url.PathEscape(bankSessionID) + "/validate"
	payload := fmt.Sprintf(`{"identifier":%q,"sessionTanActive":true,"activated2FA":true}`, bankSessionID)

	req, err := c.newRequest(ctx, http.MethodPost, validateURL, strings.NewReader(payload), token, requestID, sessionUUID)
	if err != nil {
		return nil, err
	}

	_, header, err := c.do(req, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	raw := header.Get("x-once-authentication-info")
	if raw == "" {
		return nil, NewAuthError(CodeInvalidResponse, "bank did not issue a challenge")
	}

	var info challengeInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, NewAuthError(CodeInvalidResponse, "failed to decode challenge: %v", err)
	}
	if info.ID == "" {
		return nil, NewAuthError(CodeInvalidResponse, "bank issued an empty challenge id")
	}

	c.logger.Info("Challenge issued", "challenge_type", info.Type)

	return &model.AuthChallenge{ID: info.ID, Type: info.Type}, nil
}

// ActivateSession confirms the challenge was approved out of band. The
// confirmed-challenge identifier travels in a dedicated header together with
// the fixed OTP sentinel.
func (c *HTTPClient) ActivateSession(ctx context.Context, token model.TokenPair, requestID, sessionUUID, bankSessionID, challengeID string) error {
	activateURL := c.sessionsURL() + "/" + url.PathEscape(bankSessionID)
	payload := fmt.Sprintf(`{"identifier":%q,"sessionTanActive":true,"activated2FA":true}`, bankSessionID)

	req, err := c.newRequest(ctx, http.MethodPatch, activateURL, strings.NewReader(payload), token, requestID, sessionUUID)
	if err != nil {
		return err
	}
	req.Header.Set("x-once-authentication-info", fmt.Sprintf(`{"id":%q}`, challengeID))
	req.Header.Set("x-once-authentication", otpSentinel)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAuthError(CodeNetworkError, "activation request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return &AuthError{
			Code:       CodeChallengeRejected,
			Message:    "the user rejected the confirmation challenge",
			HTTPStatus: resp.StatusCode,
		}
	case http.StatusRequestTimeout:
		return &AuthError{
			Code:       CodeChallengeExpired,
			Message:    "the confirmation challenge expired; restart authentication",
			HTTPStatus: resp.StatusCode,
		}
	default:
		body, _ := io.ReadAll(resp.Body)
		return &AuthError{
			Code:       CodeAuthFailed,
			Message:    fmt.Sprintf("activation failed: %s", strings.TrimSpace(string(body))),
			HTTPStatus: resp.StatusCode,
		}
	}
}

// UpgradeToken exchanges the base token for one with extended data-access
// scope.
func (c *HTTPClient) UpgradeToken(ctx context.Context, token model.TokenPair) (model.TokenPair, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "secondary")
	form.Set("token", token.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.TokenPair{}, NewAuthError(CodeNetworkError, "failed to create upgrade request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.TokenPair{}, NewAuthError(CodeNetworkError, "upgrade request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.TokenPair{}, &AuthError{
			Code:       CodeAuthFailed,
			Message:    fmt.Sprintf("token upgrade failed: %s", strings.TrimSpace(string(body))),
			HTTPStatus: resp.StatusCode,
		}
	}

	var upgraded struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upgraded); err != nil {
		return model.TokenPair{}, NewAuthError(CodeInvalidResponse, "failed to decode upgraded token: %v", err)
	}
	if upgraded.AccessToken == "" {
		return model.TokenPair{}, NewAuthError(CodeInvalidResponse, "bank returned an empty upgraded token")
	}

	return model.TokenPair{
		AccessToken:  upgraded.AccessToken,
		RefreshToken: upgraded.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(upgraded.ExpiresIn) * time.Second),
	}, nil
}

// Bank API transaction types.
type transactionPage struct {
	Values []bankTransaction `json:"values"`
	Paging struct {
		Index   int `json:"index"`
		Matches int `json:"matches"`
	} `json:"paging"`
}

type bankTransaction struct {
	ID          string `json:"transactionId"`
	BookingDate string `json:"bookingDate"`
	Amount      struct {
		Value string `json:"value"`
		Unit  string `json:"unit"`
	} `json:"amount"`
	Remitter struct {
		HolderName string `json:"holderName"`
	} `json:"remitter"`
	Creditor struct {
		HolderName string `json:"holderName"`
	} `json:"creditor"`
	RemittanceInfo string `json:"remittanceInfo"`
	Reference      string `json:"reference"`
}

// ListTransactions fetches transactions booked within the lookback window,
// following pagination until a short page or a page entirely outside the
// window.
func (c *HTTPClient) ListTransactions(ctx context.Context, token model.TokenPair, accountID string, sinceDays int) ([]model.BankTransaction, error) {
	cutoff := time.Now().AddDate(0, 0, -sinceDays)

	var transactions []model.BankTransaction
	for index := 0; ; index += transactionPageSize {
		page, err := c.fetchTransactionPage(ctx, token, accountID, index)
		if err != nil {
			return nil, err
		}

		inWindow := 0
		for i := range page.Values {
			txn, err := convertTransaction(&page.Values[i])
			if err != nil {
				return nil, err
			}
			if txn.BookingDate.Before(cutoff) {
				continue
			}
			inWindow++
			transactions = append(transactions, txn)
		}

		if len(page.Values) < transactionPageSize || inWindow == 0 {
			break
		}
	}

	c.logger.Info("Fetched bank transactions",
		"count", len(transactions),
		"since_days", sinceDays)

	return transactions, nil
}

func (c *HTTPClient) fetchTransactionPage(ctx context.Context, token model.TokenPair, accountID string, index int) (*transactionPage, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/banking/v1/accounts/" + url.PathEscape(accountID) + "/transactions")
	if err != nil {
		return nil, NewAuthError(CodeNetworkError, "failed to build transactions URL: %v", err)
	}
	q := u.Query()
	q.Set("paging-first", strconv.Itoa(index))
	q.Set("paging-count", strconv.Itoa(transactionPageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, NewAuthError(CodeNetworkError, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewAuthError(CodeNetworkError, "transaction fetch failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{
			Code:       CodeSessionExpired,
			Message:    "bank session is no longer valid",
			HTTPStatus: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &AuthError{
			Code:       CodeNetworkError,
			Message:    fmt.Sprintf("transaction fetch failed: %s", strings.TrimSpace(string(body))),
			HTTPStatus: resp.StatusCode,
		}
	}

	var page transactionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, NewAuthError(CodeInvalidResponse, "failed to decode transaction page: %v", err)
	}
	return &page, nil
}

func convertTransaction(raw *bankTransaction) (model.BankTransaction, error) {
	date, err := time.Parse("2006-01-02", raw.BookingDate)
	if err != nil {
		return model.BankTransaction{}, NewAuthError(CodeInvalidResponse, "bad booking date %q: %v", raw.BookingDate, err)
	}

	amount, err := decimal.NewFromString(raw.Amount.Value)
	if err != nil {
		return model.BankTransaction{}, NewAuthError(CodeInvalidResponse, "bad amount %q: %v", raw.Amount.Value, err)
	}

	// Debits name the creditor, credits name the remitter.
	payee := raw.Creditor.HolderName
	if amount.IsPositive() {
		payee = raw.Remitter.HolderName
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return model.BankTransaction{}, NewAuthError(CodeInvalidResponse, "failed to retain raw payload: %v", err)
	}

	return model.BankTransaction{
		ID:          raw.ID,
		BookingDate: date,
		Amount:      amount,
		Currency:    raw.Amount.Unit,
		Payee:       payee,
		Memo:        raw.RemittanceInfo,
		Reference:   raw.Reference,
		Raw:         rawJSON,
	}, nil
}

func (c *HTTPClient) sessionsURL() string {
	return c.cfg.BaseURL + "/session/clients/user/v1/sessions"
}

// newRequest builds a request carrying the bearer token and the
// request-correlation header the session endpoints require.
func (c *HTTPClient) newRequest(ctx context.Context, method, rawURL string, body io.Reader, token model.TokenPair, requestID, sessionUUID string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, NewAuthError(CodeNetworkError, "failed to create request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-http-request-info",
		fmt.Sprintf(`{"clientRequestId":{"sessionId":%q,"requestId":%q}}`, sessionUUID, requestID))

	return req, nil
}

// do executes a request, enforcing the expected status and returning body and
// headers.
func (c *HTTPClient) do(req *http.Request, wantStatus int) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, NewAuthError(CodeNetworkError, "request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, NewAuthError(CodeInvalidResponse, "failed to read response: %v", err)
	}

	if resp.StatusCode != wantStatus {
		return nil, nil, &AuthError{
			Code:       CodeNetworkError,
			Message:    fmt.Sprintf("unexpected response: %s", strings.TrimSpace(string(body))),
			HTTPStatus: resp.StatusCode,
		}
	}

	return body, resp.Header, nil
}
