package reconcile

import (
	"context"
	"errors"
	"fmt"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/transaction"
	"budgetbridge/internal/shared/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GroupResult is the outcome of syncing one destination group.
type GroupResult struct {
	Destination transaction.Destination
	Target      ledger.Target
	Handled     int
	Skipped     int
	Updated     int
	Added       int
	Decisions   []Decision

	// Err is the failure that ended the group, if any.
	Err error
	// Partial is set when updates were applied but the insert call failed.
	Partial bool

	unresolved  bool
	fetchFailed bool
	// authFailed marks a group cut short by ErrAuthorization; the merge
	// stops after it.
	authFailed bool
}

// Lines renders the group's part of the merge report.
func (r *GroupResult) Lines() []string {
	if r.unresolved {
		var nf *ledger.NotFoundError
		if errors.As(r.Err, &nf) {
			return []string{nf.Error()}
		}
		return []string{fmt.Sprintf("Cant find destination %s: %v", r.Destination, r.Err)}
	}

	lines := []string{
		fmt.Sprintf("Handling %d transactions at budget %s account %s", r.Handled, r.Target.BudgetName, r.Target.AccountName),
	}

	aborted := fmt.Sprintf("Authorization failed, merge aborted: %v", r.Err)
	if r.fetchFailed {
		if r.authFailed {
			return append(lines, aborted)
		}
		return append(lines, fmt.Sprintf("Failed to load existing transactions: %v", r.Err))
	}

	lines = append(lines, fmt.Sprintf("Skipped %d already present transactions", r.Skipped))

	if r.authFailed {
		if r.Partial {
			lines = append(lines, fmt.Sprintf("Updated %d transactions", r.Updated))
		}
		return append(lines, aborted, "New transactions were not added")
	}

	switch {
	case r.Err != nil && r.Partial:
		lines = append(lines,
			fmt.Sprintf("Updated %d transactions", r.Updated),
			fmt.Sprintf("Failed to add new transactions: %v", r.Err),
		)
	case r.Err != nil:
		lines = append(lines,
			fmt.Sprintf("Failed to update transactions: %v", r.Err),
			"New transactions were not added",
		)
	default:
		lines = append(lines,
			fmt.Sprintf("Updated %d transactions", r.Updated),
			fmt.Sprintf("Added %d new transactions", r.Added),
		)
	}
	return lines
}

// BatchSync merges one group into one destination account: a single
// snapshot fetch, then at most one bulk update and one bulk create call.
type BatchSync struct {
	client ledger.Client
	token  string
	target ledger.Target
}

func NewBatchSync(client ledger.Client, token string, target ledger.Target) *BatchSync {
	return &BatchSync{client: client, token: token, target: target}
}

// Run classifies and submits the transactions. Remote failures are recorded
// in the result; only ErrAuthorization is returned as an error.
func (b *BatchSync) Run(ctx context.Context, txns []transaction.Transaction) (*GroupResult, error) {
	log := logger.FromContext(ctx).With().
		Str("budget", b.target.BudgetName).
		Str("account", b.target.AccountName).
		Logger()

	result := &GroupResult{Target: b.target, Handled: len(txns)}

	since := (&transaction.Group{Transactions: txns}).MinDate()
	entries, err := b.client.ListTransactions(ctx, b.token, b.target.BudgetID, b.target.AccountID, since)
	if err != nil {
		result.Err = err
		result.fetchFailed = true
		if errors.Is(err, ledger.ErrAuthorization) {
			result.authFailed = true
			return result, err
		}
		return result, nil
	}

	matcher := NewMatcher(NewSnapshot(b.target.AccountID, entries))

	var updates []ledger.EntryUpdate
	var inserts []ledger.NewEntry
	result.Decisions = make([]Decision, 0, len(txns))
	for _, t := range txns {
		d := matcher.Match(t)
		result.Decisions = append(result.Decisions, d)
		decisionTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("decision", d.Kind.String()),
			attribute.String("rule", d.Rule.String()),
		))
		log.Debug().
			Str("date", t.Date.String()).
			Float64("amount", t.Amount).
			Str("external_id", t.ExternalID).
			Stringer("decision", d.Kind).
			Stringer("rule", d.Rule).
			Msg("Matched transaction")

		switch d.Kind {
		case SkipDuplicate:
			result.Skipped++
		case UpdateHeld:
			updates = append(updates, d.Update)
		case Insert:
			inserts = append(inserts, d.Insert)
		}
	}

	if len(updates) > 0 {
		if _, err := b.client.UpdateTransactions(ctx, b.token, b.target.BudgetID, updates); err != nil {
			result.Err = err
			if errors.Is(err, ledger.ErrAuthorization) {
				result.authFailed = true
				return result, err
			}
			log.Error().Err(err).Int("updates", len(updates)).Msg("Bulk update failed")
			return result, nil
		}
		result.Updated = len(updates)
	}

	if len(inserts) > 0 {
		saved, err := b.client.CreateTransactions(ctx, b.token, b.target.BudgetID, inserts)
		if err != nil {
			result.Err = err
			result.Partial = result.Updated > 0
			if errors.Is(err, ledger.ErrAuthorization) {
				result.authFailed = true
				return result, err
			}
			log.Error().Err(err).Int("inserts", len(inserts)).Msg("Bulk create failed")
			result.Partial = true
			return result, nil
		}
		dup := 0
		if saved != nil {
			dup = len(saved.DuplicateImportIDs)
		}
		result.Added = len(inserts) - dup
		result.Skipped += dup
	}

	log.Info().
		Int("handled", result.Handled).
		Int("skipped", result.Skipped).
		Int("updated", result.Updated).
		Int("added", result.Added).
		Msg("Group merged")

	return result, nil
}
