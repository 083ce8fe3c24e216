package reconcile

import (
	"context"
	"fmt"
	"sync"

	"budgetbridge/internal/domain/ledger"

	"cloud.google.com/go/civil"
)

// fakeLedger is an in-memory remote ledger keyed by account id.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[string][]ledger.Entry
	nextID  int

	listCalls   int
	createCalls int
	updateCalls int

	listErr   error
	createErr error
	updateErr error
	// failAccount makes listing fail for one account only.
	failAccount string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string][]ledger.Entry)}
}

func (f *fakeLedger) seed(e ledger.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		f.nextID++
		e.ID = fmt.Sprintf("seed-%d", f.nextID)
	}
	f.entries[e.AccountID] = append(f.entries[e.AccountID], e)
}

func (f *fakeLedger) all(accountID string) []ledger.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Entry(nil), f.entries[accountID]...)
}

func (f *fakeLedger) ListBudgets(ctx context.Context, token string) ([]ledger.Budget, error) {
	return nil, nil
}

func (f *fakeLedger) ListAccounts(ctx context.Context, token, budgetID string) ([]ledger.Account, error) {
	return nil, nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, token, budgetID, accountID string, since civil.Date) ([]ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.failAccount == accountID {
		return nil, &ledger.RemoteError{Op: "list transactions", StatusCode: 503, Detail: "unavailable"}
	}
	var out []ledger.Entry
	for _, e := range f.entries[accountID] {
		if !e.Date.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) CreateTransactions(ctx context.Context, token, budgetID string, entries []ledger.NewEntry) (*ledger.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	res := &ledger.SaveResult{}
	for _, n := range entries {
		if n.ImportID != "" && f.hasImportID(n.AccountID, n.ImportID) {
			res.DuplicateImportIDs = append(res.DuplicateImportIDs, n.ImportID)
			continue
		}
		f.nextID++
		id := fmt.Sprintf("txn-%d", f.nextID)
		f.entries[n.AccountID] = append(f.entries[n.AccountID], ledger.Entry{
			ID:        id,
			AccountID: n.AccountID,
			Date:      n.Date,
			Amount:    n.Amount,
			Memo:      n.Memo,
			PayeeName: n.PayeeName,
			ImportID:  n.ImportID,
			FlagColor: n.FlagColor,
			Approved:  n.Approved,
		})
		res.TransactionIDs = append(res.TransactionIDs, id)
	}
	return res, nil
}

func (f *fakeLedger) UpdateTransactions(ctx context.Context, token, budgetID string, updates []ledger.EntryUpdate) (*ledger.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	res := &ledger.SaveResult{}
	for _, u := range updates {
		list := f.entries[u.AccountID]
		for i := range list {
			if list[i].ID != u.ID {
				continue
			}
			list[i].Memo = u.Memo
			if u.PayeeName != "" {
				list[i].PayeeName = u.PayeeName
			}
			list[i].Approved = u.Approved
			list[i].FlagColor = u.FlagColor
			res.TransactionIDs = append(res.TransactionIDs, u.ID)
		}
	}
	return res, nil
}

func (f *fakeLedger) hasImportID(accountID, importID string) bool {
	for _, e := range f.entries[accountID] {
		if e.ImportID == importID {
			return true
		}
	}
	return false
}

var _ ledger.Client = (*fakeLedger)(nil)
