package ledger

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// Client defines the remote ledger operations the engine and the session need.
// Implementations classify failures as ErrAuthorization or ErrRemoteUnavailable.
type Client interface {
	ListBudgets(ctx context.Context, token string) ([]Budget, error)
	ListAccounts(ctx context.Context, token, budgetID string) ([]Account, error)
	// ListTransactions returns the account's entries dated on or after since.
	ListTransactions(ctx context.Context, token, budgetID, accountID string, since civil.Date) ([]Entry, error)
	CreateTransactions(ctx context.Context, token, budgetID string, entries []NewEntry) (*SaveResult, error)
	UpdateTransactions(ctx context.Context, token, budgetID string, updates []EntryUpdate) (*SaveResult, error)
}

// RefreshWindow is how long before expiry a credential is refreshed.
const RefreshWindow = 5 * time.Minute

// Credential is an OAuth token pair with its locally tracked expiry.
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	Scope        string    `json:"scope"`
	Expiry       time.Time `json:"expiry"`
}

// IsZero reports whether no access token is stored.
func (c *Credential) IsZero() bool {
	return c == nil || c.AccessToken == ""
}

// NeedsRefresh reports whether the token is within RefreshWindow of expiry.
func (c *Credential) NeedsRefresh(now time.Time) bool {
	if c.IsZero() || c.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.Expiry.Add(-RefreshWindow))
}

// Authenticator issues and refreshes credentials.
type Authenticator interface {
	// AuthCodeURL returns the page the user visits to grant access.
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}
