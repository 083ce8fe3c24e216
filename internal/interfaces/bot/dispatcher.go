package bot

import (
	"context"
	"errors"
	"strings"

	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/session"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"

	"github.com/google/uuid"
)

// Bot commands.
const (
	CommandStart            = "/start"
	CommandAuth             = "/auth"
	CommandSetDefaultBudget = "/setdefaultbudget"
	CommandListAccounts     = "/listynabaccounts"
	CommandListMatching     = "/listmatching"
	CommandRemoveMyInfo     = "/removemyinfo"
)

// Conversation is the per-user session the dispatcher drives.
type Conversation interface {
	Authorize(ctx context.Context, target messaging.ReplyTarget) error
	ChooseDefaultBudget(ctx context.Context, target messaging.ReplyTarget) error
	ListAccounts(ctx context.Context, target messaging.ReplyTarget) error
	ListMappings(ctx context.Context, target messaging.ReplyTarget) error
	HandleText(ctx context.Context, target messaging.ReplyTarget, text string) error
	HandleFile(ctx context.Context, target messaging.ReplyTarget, fileName string, content []byte) error
}

// Sessions resolves conversations by user.
type Sessions interface {
	Get(ctx context.Context, target messaging.ReplyTarget) (Conversation, error)
	Remove(ctx context.Context, userID string) error
}

type registrySessions struct {
	registry *session.Registry
}

// FromRegistry adapts a session registry to Sessions.
func FromRegistry(r *session.Registry) Sessions {
	return registrySessions{registry: r}
}

func (r registrySessions) Get(ctx context.Context, target messaging.ReplyTarget) (Conversation, error) {
	s, err := r.registry.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r registrySessions) Remove(ctx context.Context, userID string) error {
	return r.registry.Remove(ctx, userID)
}

// Dispatcher turns inbound chat events into pool jobs and routes commands
// to the user's session.
type Dispatcher struct {
	sessions Sessions
	pool     *WorkerPool
	sender   messaging.Sender
	texts    *messages.Messages
}

var _ messaging.Handler = (*Dispatcher)(nil)

func NewDispatcher(sessions Sessions, pool *WorkerPool, sender messaging.Sender, texts *messages.Messages) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		pool:     pool,
		sender:   sender,
		texts:    texts,
	}
}

func (d *Dispatcher) OnTextMessage(ctx context.Context, target messaging.ReplyTarget, text string) {
	d.submit(ctx, target, "text", func(ctx context.Context) error {
		return d.handleText(ctx, target, text)
	})
}

func (d *Dispatcher) OnFileMessage(ctx context.Context, target messaging.ReplyTarget, fileName string, content []byte) {
	d.submit(ctx, target, "file", func(ctx context.Context) error {
		conv, err := d.sessions.Get(ctx, target)
		if err != nil {
			return d.fail(ctx, target, err)
		}
		return d.fail(ctx, target, conv.HandleFile(ctx, target, fileName, content))
	})
}

func (d *Dispatcher) submit(ctx context.Context, target messaging.ReplyTarget, kind string, run func(ctx context.Context) error) {
	job := &eventJob{
		id:     uuid.NewString(),
		kind:   kind,
		target: target,
		run:    run,
	}
	err := d.pool.Submit(job)
	if err == nil {
		return
	}

	logger.FromContext(ctx).Warn().Err(err).Str("user_id", target.UserID).Str("job", job.Description()).Msg("Event rejected")
	if errors.Is(err, ErrQueueFull) {
		if sendErr := d.sender.SendMessage(ctx, target, d.texts.Busy); sendErr != nil {
			logger.FromContext(ctx).Error().Err(sendErr).Msg("Failed to send busy reply")
		}
	}
}

func (d *Dispatcher) handleText(ctx context.Context, target messaging.ReplyTarget, text string) error {
	command := commandOf(text)

	switch command {
	case CommandStart:
		if strings.TrimSpace(text) != CommandStart {
			// "/start <code>" returns from the OAuth landing page.
			break
		}
		if err := d.sender.SendMessage(ctx, target, d.texts.Welcome); err != nil {
			return err
		}
		_, err := d.sessions.Get(ctx, target)
		return d.fail(ctx, target, err)
	case CommandRemoveMyInfo:
		if err := d.sessions.Remove(ctx, target.UserID); err != nil {
			return d.fail(ctx, target, err)
		}
		return d.sender.SendMessage(ctx, target, d.texts.InfoRemoved)
	}

	conv, err := d.sessions.Get(ctx, target)
	if err != nil {
		return d.fail(ctx, target, err)
	}

	switch command {
	case CommandAuth:
		err = conv.Authorize(ctx, target)
	case CommandSetDefaultBudget:
		err = conv.ChooseDefaultBudget(ctx, target)
	case CommandListAccounts:
		err = conv.ListAccounts(ctx, target)
	case CommandListMatching:
		err = conv.ListMappings(ctx, target)
	default:
		err = conv.HandleText(ctx, target, text)
	}
	return d.fail(ctx, target, err)
}

// fail tells the user an unexpected error happened and returns it for the
// pool to record.
func (d *Dispatcher) fail(ctx context.Context, target messaging.ReplyTarget, err error) error {
	if err == nil {
		return nil
	}
	if sendErr := d.sender.SendMessage(ctx, target, d.texts.InternalError); sendErr != nil {
		logger.FromContext(ctx).Error().Err(sendErr).Msg("Failed to send error reply")
	}
	return err
}

// commandOf returns the leading bot command of text, without any
// "@botname" suffix, or "" when text is not a command.
func commandOf(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	command, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(command)
}
