package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/shared/logger"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.ynab.com/v1"
	defaultTimeout = 60 * time.Second
)

// Client talks to the YNAB REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ ledger.Client = (*Client)(nil)

// NewClient creates a client for baseURL, or DefaultBaseURL when empty.
// Requests are traced through an otelhttp transport.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// HTTPClient exposes the instrumented client for the OAuth token exchange.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) ListBudgets(ctx context.Context, token string) ([]ledger.Budget, error) {
	var resp BudgetsResponse
	if err := c.do(ctx, "list budgets", http.MethodGet, "/budgets", token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]ledger.Budget, 0, len(resp.Data.Budgets))
	for _, b := range resp.Data.Budgets {
		out = append(out, ledger.Budget{ID: b.ID, Name: b.Name})
	}
	return out, nil
}

func (c *Client) ListAccounts(ctx context.Context, token, budgetID string) ([]ledger.Account, error) {
	var resp AccountsResponse
	path := "/budgets/" + url.PathEscape(budgetID) + "/accounts"
	if err := c.do(ctx, "list accounts", http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(resp.Data.Accounts))
	for _, a := range resp.Data.Accounts {
		out = append(out, a.toLedger())
	}
	return out, nil
}

func (c *Client) ListTransactions(ctx context.Context, token, budgetID, accountID string, since civil.Date) ([]ledger.Entry, error) {
	var resp TransactionsResponse
	path := fmt.Sprintf("/budgets/%s/accounts/%s/transactions?since_date=%s",
		url.PathEscape(budgetID), url.PathEscape(accountID), since.String())
	if err := c.do(ctx, "list transactions", http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]ledger.Entry, 0, len(resp.Data.Transactions))
	for _, t := range resp.Data.Transactions {
		out = append(out, t.toLedger())
	}
	logger.FromContext(ctx).Debug().
		Str("account_id", accountID).
		Str("since", since.String()).
		Int("count", len(out)).
		Msg("Fetched ledger transactions")
	return out, nil
}

func (c *Client) CreateTransactions(ctx context.Context, token, budgetID string, entries []ledger.NewEntry) (*ledger.SaveResult, error) {
	req := SaveTransactionsRequest{Transactions: make([]SaveTransaction, 0, len(entries))}
	for _, e := range entries {
		req.Transactions = append(req.Transactions, newSaveTransaction(e))
	}
	return c.save(ctx, "create transactions", http.MethodPost, budgetID, token, req)
}

func (c *Client) UpdateTransactions(ctx context.Context, token, budgetID string, updates []ledger.EntryUpdate) (*ledger.SaveResult, error) {
	req := SaveTransactionsRequest{Transactions: make([]SaveTransaction, 0, len(updates))}
	for _, u := range updates {
		req.Transactions = append(req.Transactions, updateSaveTransaction(u))
	}
	return c.save(ctx, "update transactions", http.MethodPatch, budgetID, token, req)
}

func (c *Client) save(ctx context.Context, op, method, budgetID, token string, body SaveTransactionsRequest) (*ledger.SaveResult, error) {
	var resp SaveTransactionsResponse
	path := "/budgets/" + url.PathEscape(budgetID) + "/transactions"
	if err := c.do(ctx, op, method, path, token, body, &resp); err != nil {
		return nil, err
	}
	return &ledger.SaveResult{
		TransactionIDs:     resp.Data.TransactionIDs,
		DuplicateImportIDs: resp.Data.DuplicateImportIDs,
	}, nil
}

// do sends one request and decodes a 2xx body into out. 401 maps to
// ErrAuthorization; every other failure becomes a *ledger.RemoteError.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ledger.RemoteError{Op: op, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ledger.RemoteError{Op: op, StatusCode: resp.StatusCode, Detail: "failed to read response body: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(data)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %s", op, ledger.ErrAuthorization, detail)
		}
		return &ledger.RemoteError{Op: op, StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ledger.RemoteError{Op: op, StatusCode: resp.StatusCode, Detail: "failed to unmarshal response: " + err.Error()}
	}
	return nil
}

func errorDetail(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return strings.TrimSpace(string(body))
	}
	if errResp.Error.Detail != "" {
		return errResp.Error.Detail
	}
	return errResp.Error.Name
}
