package bot

import (
	"context"
	"fmt"

	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/shared/logger"
)

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute runs the job. Context carries the job timeout and the
	// correlation logger.
	Execute(ctx context.Context) error

	// UserID returns the messenger user the job belongs to. Jobs of the same
	// user run in submission order.
	UserID() string

	// Description returns a human-readable description for logs and spans.
	Description() string
}

// eventJob handles one inbound message or document.
type eventJob struct {
	id     string
	kind   string
	target messaging.ReplyTarget
	run    func(ctx context.Context) error
}

func (j *eventJob) Execute(ctx context.Context) error {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With().
		Str("event_id", j.id).
		Str("user_id", j.target.UserID).
		Logger())
	return j.run(ctx)
}

func (j *eventJob) UserID() string {
	return j.target.UserID
}

func (j *eventJob) Description() string {
	return fmt.Sprintf("%s event %s", j.kind, j.id)
}
