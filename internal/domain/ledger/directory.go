package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// accountFetchLimit bounds concurrent account listings during Load.
const accountFetchLimit = 4

// BudgetAccounts is one budget with its open accounts.
type BudgetAccounts struct {
	Budget   Budget
	Accounts []Account
}

// Directory maps budget names to their accounts as of the last Load.
// It is owned by a single session and never refreshes itself.
type Directory struct {
	budgets []BudgetAccounts
}

// NewDirectory builds a Directory from an already fetched listing.
func NewDirectory(budgets []BudgetAccounts) *Directory {
	return &Directory{budgets: budgets}
}

// LoadDirectory fetches all budgets, then the accounts of each budget.
// Closed and deleted accounts are left out.
func LoadDirectory(ctx context.Context, client Client, token string) (*Directory, error) {
	budgets, err := client.ListBudgets(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	result := make([]BudgetAccounts, len(budgets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountFetchLimit)
	for i, b := range budgets {
		g.Go(func() error {
			accounts, err := client.ListAccounts(gctx, token, b.ID)
			if err != nil {
				return fmt.Errorf("failed to list accounts for budget %s: %w", b.Name, err)
			}

			open := make([]Account, 0, len(accounts))
			for _, a := range accounts {
				if a.Closed || a.Deleted {
					continue
				}
				open = append(open, a)
			}
			sort.SliceStable(open, func(x, y int) bool { return open[x].Name < open[y].Name })

			result[i] = BudgetAccounts{Budget: b, Accounts: open}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Directory{budgets: result}, nil
}

// Budgets returns the loaded listing in remote order.
func (d *Directory) Budgets() []BudgetAccounts {
	if d == nil {
		return nil
	}
	return d.budgets
}

// BudgetNames returns budget names in remote order.
func (d *Directory) BudgetNames() []string {
	names := make([]string, 0, len(d.Budgets()))
	for _, b := range d.Budgets() {
		names = append(names, b.Budget.Name)
	}
	return names
}

// AccountNames returns the account names of a budget, or nil if the budget
// is unknown.
func (d *Directory) AccountNames(budgetName string) []string {
	ba, ok := d.findBudget(budgetName)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ba.Accounts))
	for _, a := range ba.Accounts {
		names = append(names, a.Name)
	}
	return names
}

// HasBudget reports whether a budget with the given name was loaded.
func (d *Directory) HasBudget(budgetName string) bool {
	_, ok := d.findBudget(budgetName)
	return ok
}

// Budget returns the loaded budget with the given name.
func (d *Directory) Budget(budgetName string) (Budget, bool) {
	ba, ok := d.findBudget(budgetName)
	return ba.Budget, ok
}

// Resolve looks up a budget/account pair. A miss is reported as a
// *NotFoundError wrapping ErrDestinationNotFound.
func (d *Directory) Resolve(budgetName, accountName string) (Target, error) {
	ba, ok := d.findBudget(budgetName)
	if !ok {
		return Target{}, &NotFoundError{Budget: budgetName, Account: accountName, BudgetMissing: true}
	}

	a, ok := findByName(ba.Accounts, accountName, func(a Account) string { return a.Name })
	if !ok {
		return Target{}, &NotFoundError{Budget: budgetName, Account: accountName}
	}

	return Target{
		BudgetID:    ba.Budget.ID,
		BudgetName:  ba.Budget.Name,
		AccountID:   a.ID,
		AccountName: a.Name,
	}, nil
}

func (d *Directory) findBudget(name string) (BudgetAccounts, bool) {
	return findByName(d.Budgets(), name, func(b BudgetAccounts) string { return b.Budget.Name })
}

// findByName prefers an exact match and falls back to a case-insensitive one.
func findByName[T any](items []T, name string, nameOf func(T) string) (T, bool) {
	for _, it := range items {
		if nameOf(it) == name {
			return it, true
		}
	}
	for _, it := range items {
		if strings.EqualFold(nameOf(it), name) {
			return it, true
		}
	}
	var zero T
	return zero, false
}
