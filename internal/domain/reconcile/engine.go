package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/transaction"
	"budgetbridge/internal/shared/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	mergeTracer      = otel.Tracer("budgetbridge/reconcile")
	mergeMeter       = otel.Meter("budgetbridge/reconcile")
	decisionTotal, _ = mergeMeter.Int64Counter("reconcile.decisions", metric.WithDescription("Matcher decisions by kind and rule"))
	groupDuration, _ = mergeMeter.Float64Histogram("reconcile.group.duration", metric.WithDescription("Destination group merge duration in seconds"), metric.WithUnit("s"))
	groupTotal, _    = mergeMeter.Int64Counter("reconcile.group.total", metric.WithDescription("Destination groups merged by status"))
)

// Resolver maps destination names to remote ids.
type Resolver interface {
	Resolve(budgetName, accountName string) (ledger.Target, error)
}

// Report is the outcome of one Merge call, one result per group in input
// order.
type Report struct {
	Groups []*GroupResult
}

// String renders the plain-text summary relayed to the user.
func (r *Report) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, g := range r.Groups {
		for _, line := range g.Lines() {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Totals sums counters across groups.
func (r *Report) Totals() (skipped, updated, added int) {
	for _, g := range r.Groups {
		skipped += g.Skipped
		updated += g.Updated
		added += g.Added
	}
	return skipped, updated, added
}

// Engine merges destination groups into the remote ledger.
type Engine struct {
	client ledger.Client
	locker *Locker
}

func NewEngine(client ledger.Client, locker *Locker) *Engine {
	if locker == nil {
		locker = NewLocker(ScopeAccount)
	}
	return &Engine{client: client, locker: locker}
}

// Merge processes every group independently. A group that fails to resolve
// or hits a remote error is reported and the next group continues.
// ErrAuthorization aborts the whole merge; the returned report then holds the
// groups finished so far. An empty input yields ErrMalformedInput.
func (e *Engine) Merge(ctx context.Context, token string, resolver Resolver, groups []transaction.Group) (*Report, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no transactions to merge: %w", ledger.ErrMalformedInput)
	}
	for _, g := range groups {
		if len(g.Transactions) == 0 {
			return nil, fmt.Errorf("empty batch for %s: %w", g.Destination, ledger.ErrMalformedInput)
		}
	}

	ctx, span := mergeTracer.Start(ctx, "reconcile.merge", trace.WithAttributes(
		attribute.Int("merge.groups", len(groups)),
	))
	defer span.End()

	report := &Report{Groups: make([]*GroupResult, 0, len(groups))}
	for _, g := range groups {
		result, err := e.mergeGroup(ctx, token, resolver, g)
		report.Groups = append(report.Groups, result)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.FromContext(ctx).Warn().Err(err).Str("destination", g.Destination.String()).Msg("Merge aborted")
			return report, err
		}
	}

	return report, nil
}

func (e *Engine) mergeGroup(ctx context.Context, token string, resolver Resolver, g transaction.Group) (*GroupResult, error) {
	ctx, span := mergeTracer.Start(ctx, "reconcile.group", trace.WithAttributes(
		attribute.String("group.budget", g.Destination.Budget),
		attribute.String("group.account", g.Destination.Account),
		attribute.Int("group.transactions", len(g.Transactions)),
	))
	defer span.End()

	start := time.Now()

	target, err := resolver.Resolve(g.Destination.Budget, g.Destination.Account)
	if err != nil {
		groupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "unresolved")))
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, ledger.ErrDestinationNotFound) {
			err = fmt.Errorf("%w: %s: %v", ledger.ErrDestinationNotFound, g.Destination, err)
		}
		return &GroupResult{Destination: g.Destination, Handled: len(g.Transactions), Err: err, unresolved: true}, nil
	}

	result, err := e.syncLocked(ctx, token, target, g.Transactions)

	result.Destination = g.Destination
	groupDuration.Record(ctx, time.Since(start).Seconds())

	status := "success"
	switch {
	case err != nil:
		status = "unauthorized"
	case result.Partial:
		status = "partial"
	case result.Err != nil:
		status = "error"
	}
	groupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	span.SetAttributes(
		attribute.Int("group.skipped", result.Skipped),
		attribute.Int("group.updated", result.Updated),
		attribute.Int("group.added", result.Added),
	)
	if err != nil {
		return result, err
	}
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}

	return result, nil
}

// syncLocked runs one batch while holding the destination's merge lock.
func (e *Engine) syncLocked(ctx context.Context, token string, target ledger.Target, txns []transaction.Transaction) (*GroupResult, error) {
	unlock := e.locker.Lock(target)
	defer unlock()
	return NewBatchSync(e.client, token, target).Run(ctx, txns)
}
