package ledger

import (
	"errors"
	"fmt"
	"math"

	"cloud.google.com/go/civil"
)

// Domain errors
var (
	// ErrAuthorization means the credential is invalid, expired or revoked.
	ErrAuthorization = errors.New("ledger authorization failed")
	// ErrDestinationNotFound means a budget or account name did not resolve.
	ErrDestinationNotFound = errors.New("destination not found")
	// ErrRemoteUnavailable covers transport and API failures.
	ErrRemoteUnavailable = errors.New("ledger unavailable")
	// ErrMalformedInput means an empty batch or an unparseable mapping file.
	ErrMalformedInput = errors.New("malformed input")
)

// Field limits enforced by the remote ledger API.
const (
	MaxMemoLength  = 200
	MaxPayeeLength = 50
)

// Flag colors used to mark entries written by the merge engine.
const (
	FlagPurple = "purple" // promoted hold entry
	FlagOrange = "orange" // insert with a source identifier
	FlagRed    = "red"    // best-effort insert without identifier
)

// Milliunits is the ledger's fixed-point currency: 1/1000 of a major unit.
type Milliunits int64

// ToMilliunits scales a major-unit amount, rounding half away from zero.
func ToMilliunits(amount float64) Milliunits {
	return Milliunits(math.Round(amount * 1000))
}

// Float returns the amount in major units.
func (m Milliunits) Float() float64 {
	return float64(m) / 1000
}

func (m Milliunits) String() string {
	return fmt.Sprintf("%.2f", m.Float())
}

// Budget is a remote budget summary.
type Budget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is a remote account inside a budget.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Note    string `json:"note,omitempty"`
	Closed  bool   `json:"closed"`
	Deleted bool   `json:"deleted"`
}

// Entry is a ledger transaction as returned by the remote API.
// Empty PayeeName and ImportID stand for null.
type Entry struct {
	ID        string     `json:"id"`
	AccountID string     `json:"accountId"`
	Date      civil.Date `json:"date"`
	Amount    Milliunits `json:"amount"`
	Memo      string     `json:"memo"`
	PayeeName string     `json:"payeeName"`
	ImportID  string     `json:"importId"`
	FlagColor string     `json:"flagColor,omitempty"`
	Approved  bool       `json:"approved"`
	Deleted   bool       `json:"deleted"`
}

// NewEntry is a transaction to create.
type NewEntry struct {
	AccountID string
	Date      civil.Date
	Amount    Milliunits
	PayeeName string
	Memo      string
	Approved  bool
	FlagColor string
	ImportID  string
}

// EntryUpdate rewrites an existing entry. PayeeName is left unchanged when
// empty.
type EntryUpdate struct {
	ID        string
	AccountID string
	Date      civil.Date
	Amount    Milliunits
	PayeeName string
	Memo      string
	Approved  bool
	FlagColor string
}

// SaveResult summarises a bulk create or update call.
type SaveResult struct {
	TransactionIDs     []string
	DuplicateImportIDs []string
}

// Target is a resolved budget/account pair.
type Target struct {
	BudgetID    string
	BudgetName  string
	AccountID   string
	AccountName string
}

// NotFoundError carries the user-facing reason a destination did not resolve.
type NotFoundError struct {
	Budget  string
	Account string
	// BudgetMissing is set when the budget itself is unknown.
	BudgetMissing bool
}

func (e *NotFoundError) Error() string {
	if e.BudgetMissing {
		return "Cant find budget with name " + e.Budget
	}
	return "Cant find account with name " + e.Account + " at budget " + e.Budget
}

func (e *NotFoundError) Unwrap() error {
	return ErrDestinationNotFound
}

// RemoteError wraps a non-authorization failure reported by the remote API.
type RemoteError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemoteUnavailable
}

// TruncateRunes cuts s to at most n characters.
func TruncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
