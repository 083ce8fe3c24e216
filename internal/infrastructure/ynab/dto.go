package ynab

import (
	"budgetbridge/internal/domain/ledger"

	"cloud.google.com/go/civil"
)

// BudgetsResponse is the body of GET /budgets.
type BudgetsResponse struct {
	Data struct {
		Budgets []Budget `json:"budgets"`
	} `json:"data"`
}

type Budget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AccountsResponse is the body of GET /budgets/{budget_id}/accounts.
type AccountsResponse struct {
	Data struct {
		Accounts []Account `json:"accounts"`
	} `json:"data"`
}

type Account struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Note    *string `json:"note"`
	Closed  bool    `json:"closed"`
	Deleted bool    `json:"deleted"`
}

// TransactionsResponse is the body of the account transactions listing.
type TransactionsResponse struct {
	Data struct {
		Transactions    []Transaction `json:"transactions"`
		ServerKnowledge int64         `json:"server_knowledge"`
	} `json:"data"`
}

// Transaction is a transaction as returned by the API. Nullable fields are
// pointers.
type Transaction struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	Date      civil.Date `json:"date"`
	Amount    int64      `json:"amount"`
	Memo      *string    `json:"memo"`
	PayeeName *string    `json:"payee_name"`
	ImportID  *string    `json:"import_id"`
	FlagColor *string    `json:"flag_color"`
	Approved  bool       `json:"approved"`
	Deleted   bool       `json:"deleted"`
}

// SaveTransaction is one element of a create or update request.
type SaveTransaction struct {
	ID        string     `json:"id,omitempty"`
	AccountID string     `json:"account_id"`
	Date      civil.Date `json:"date"`
	Amount    int64      `json:"amount"`
	PayeeName *string    `json:"payee_name,omitempty"`
	Memo      *string    `json:"memo,omitempty"`
	Cleared   string     `json:"cleared,omitempty"`
	Approved  bool       `json:"approved"`
	FlagColor *string    `json:"flag_color,omitempty"`
	ImportID  *string    `json:"import_id,omitempty"`
}

// SaveTransactionsRequest wraps a bulk create or update.
type SaveTransactionsRequest struct {
	Transactions []SaveTransaction `json:"transactions"`
}

// SaveTransactionsResponse is returned by bulk create and update.
type SaveTransactionsResponse struct {
	Data struct {
		TransactionIDs     []string `json:"transaction_ids"`
		DuplicateImportIDs []string `json:"duplicate_import_ids"`
	} `json:"data"`
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a Account) toLedger() ledger.Account {
	return ledger.Account{
		ID:      a.ID,
		Name:    a.Name,
		Note:    deref(a.Note),
		Closed:  a.Closed,
		Deleted: a.Deleted,
	}
}

func (t Transaction) toLedger() ledger.Entry {
	return ledger.Entry{
		ID:        t.ID,
		AccountID: t.AccountID,
		Date:      t.Date,
		Amount:    ledger.Milliunits(t.Amount),
		Memo:      deref(t.Memo),
		PayeeName: deref(t.PayeeName),
		ImportID:  deref(t.ImportID),
		FlagColor: deref(t.FlagColor),
		Approved:  t.Approved,
		Deleted:   t.Deleted,
	}
}

func newSaveTransaction(e ledger.NewEntry) SaveTransaction {
	return SaveTransaction{
		AccountID: e.AccountID,
		Date:      e.Date,
		Amount:    int64(e.Amount),
		PayeeName: optional(e.PayeeName),
		Memo:      optional(e.Memo),
		Cleared:   "cleared",
		Approved:  e.Approved,
		FlagColor: optional(e.FlagColor),
		ImportID:  optional(e.ImportID),
	}
}

func updateSaveTransaction(u ledger.EntryUpdate) SaveTransaction {
	return SaveTransaction{
		ID:        u.ID,
		AccountID: u.AccountID,
		Date:      u.Date,
		Amount:    int64(u.Amount),
		PayeeName: optional(u.PayeeName),
		Memo:      optional(u.Memo),
		Approved:  u.Approved,
		FlagColor: optional(u.FlagColor),
	}
}
