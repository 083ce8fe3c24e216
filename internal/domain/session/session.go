package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/reconcile"
	"budgetbridge/internal/domain/statement"
	"budgetbridge/internal/domain/user"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"

	"github.com/qmuntal/stateless"
)

// State is a conversation state of one messenger user.
type State string

const (
	StateUnauthenticated        State = "Unauthenticated"
	StateAuthorizing            State = "Authorizing"
	StateChoosingDefaultBudget  State = "ChoosingDefaultBudget"
	StateChoosingDefaultAccount State = "ChoosingDefaultAccount"
	StateApplyingSettings       State = "ApplyingSettings"
	StateReady                  State = "Ready"
)

// Trigger is an event fed into the session state machine.
type Trigger string

const (
	TriggerStartAuth         Trigger = "StartAuth"
	TriggerSetDefaultBudget  Trigger = "SetDefaultBudget"
	TriggerSetDefaultAccount Trigger = "SetDefaultAccount"
	TriggerSetReady          Trigger = "SetReady"
	TriggerApplySettings     Trigger = "ApplySettings"
	TriggerReset             Trigger = "Reset"
	TriggerMessage           Trigger = "Message"
	TriggerFile              Trigger = "File"
	TriggerListAccounts      Trigger = "ListAccounts"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Users   user.Repository
	Ledger  ledger.Client
	Auth    ledger.Authenticator
	Engine  *reconcile.Engine
	Parsers *statement.Registry
	Sender  messaging.Sender
	Texts   *messages.Messages
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Session is the conversation with one messenger user. All exported methods
// are serialized by the session mutex; triggers fired from inside actions are
// queued and run after the current transition completes.
type Session struct {
	mu     sync.Mutex
	deps   *Deps
	texts  *messages.Messages
	target messaging.ReplyTarget
	user   *user.User
	dir    *ledger.Directory
	sm     *stateless.StateMachine
}

func newSession(deps *Deps, u *user.User) *Session {
	texts := deps.Texts
	if texts == nil {
		texts = messages.Default()
	}
	s := &Session{
		deps:  deps,
		texts: texts,
		user:  u,
		sm:    stateless.NewStateMachineWithMode(StateUnauthenticated, stateless.FiringQueued),
	}
	s.configure()
	return s
}

func (s *Session) configure() {
	s.sm.OnUnhandledTrigger(func(ctx context.Context, state stateless.State, trigger stateless.Trigger, _ []string) error {
		logger.FromContext(ctx).Warn().
			Str("state", fmt.Sprint(state)).
			Str("trigger", fmt.Sprint(trigger)).
			Msg("Unhandled session trigger")
		return nil
	})

	s.sm.Configure(StateUnauthenticated).
		Permit(TriggerStartAuth, StateAuthorizing).
		Permit(TriggerApplySettings, StateApplyingSettings).
		InternalTransition(TriggerMessage, s.replyText(s.texts.RunAuthFirst)).
		InternalTransition(TriggerFile, s.replyText(s.texts.NotSetUp)).
		InternalTransition(TriggerListAccounts, s.replyText(s.texts.RunAuthFirst)).
		InternalTransition(TriggerSetDefaultBudget, s.replyText(s.texts.RunAuthFirst)).
		Ignore(TriggerSetDefaultAccount).
		Ignore(TriggerSetReady).
		Ignore(TriggerReset)

	s.sm.Configure(StateAuthorizing).
		OnEntry(s.onAuthorizing).
		PermitReentry(TriggerStartAuth).
		Permit(TriggerSetDefaultBudget, StateChoosingDefaultBudget).
		Permit(TriggerApplySettings, StateApplyingSettings).
		InternalTransition(TriggerMessage, s.onAuthCode).
		InternalTransition(TriggerFile, s.replyText(s.texts.NotSetUp)).
		InternalTransition(TriggerListAccounts, s.onAuthorizing).
		Ignore(TriggerSetDefaultAccount).
		Ignore(TriggerSetReady).
		Ignore(TriggerReset)

	s.sm.Configure(StateChoosingDefaultBudget).
		OnEntry(s.onChoosingBudget).
		PermitReentry(TriggerSetDefaultBudget).
		Permit(TriggerSetDefaultAccount, StateChoosingDefaultAccount).
		Permit(TriggerStartAuth, StateAuthorizing).
		Permit(TriggerApplySettings, StateApplyingSettings).
		InternalTransition(TriggerMessage, s.onBudgetName).
		InternalTransition(TriggerFile, s.replyText(s.texts.NotSetUp)).
		InternalTransition(TriggerListAccounts, s.onListAccounts).
		Ignore(TriggerSetReady).
		Ignore(TriggerReset)

	s.sm.Configure(StateChoosingDefaultAccount).
		OnEntry(s.onChoosingAccount).
		PermitReentry(TriggerSetDefaultAccount).
		Permit(TriggerSetDefaultBudget, StateChoosingDefaultBudget).
		Permit(TriggerSetReady, StateReady).
		Permit(TriggerStartAuth, StateAuthorizing).
		Permit(TriggerApplySettings, StateApplyingSettings).
		InternalTransition(TriggerMessage, s.onAccountName).
		InternalTransition(TriggerFile, s.replyText(s.texts.NotSetUp)).
		InternalTransition(TriggerListAccounts, s.onListAccounts).
		Ignore(TriggerReset)

	s.sm.Configure(StateReady).
		OnEntryFrom(TriggerSetReady, s.onReady).
		Permit(TriggerSetDefaultBudget, StateChoosingDefaultBudget).
		Permit(TriggerStartAuth, StateAuthorizing).
		Permit(TriggerApplySettings, StateApplyingSettings).
		InternalTransition(TriggerMessage, s.onQuickEntry).
		InternalTransition(TriggerFile, s.onStatementFile).
		InternalTransition(TriggerListAccounts, s.onListAccounts).
		Ignore(TriggerSetDefaultAccount).
		Ignore(TriggerSetReady).
		Ignore(TriggerReset)

	s.sm.Configure(StateApplyingSettings).
		OnEntry(s.onApplySettings).
		Permit(TriggerSetDefaultBudget, StateChoosingDefaultBudget).
		Permit(TriggerSetDefaultAccount, StateChoosingDefaultAccount).
		Permit(TriggerSetReady, StateReady).
		Permit(TriggerStartAuth, StateAuthorizing).
		Permit(TriggerReset, StateUnauthenticated).
		Ignore(TriggerApplySettings).
		Ignore(TriggerMessage).
		Ignore(TriggerFile).
		Ignore(TriggerListAccounts)
}

// State returns the current conversation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.MustState().(State)
}

// UserID returns the messenger user id the session belongs to.
func (s *Session) UserID() string {
	return s.user.MessengerUserID
}

// Init re-validates the stored settings and moves to the matching state.
func (s *Session) Init(ctx context.Context, target messaging.ReplyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fire(ctx, target, TriggerApplySettings)
}

// Authorize starts the OAuth flow.
func (s *Session) Authorize(ctx context.Context, target messaging.ReplyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fire(ctx, target, TriggerStartAuth)
}

// ChooseDefaultBudget asks the user to pick a default budget again.
func (s *Session) ChooseDefaultBudget(ctx context.Context, target messaging.ReplyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fire(ctx, target, TriggerSetDefaultBudget)
}

// ListAccounts replies with every budget and its accounts.
func (s *Session) ListAccounts(ctx context.Context, target messaging.ReplyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fire(ctx, target, TriggerListAccounts)
}

// HandleText feeds a free-text message into the current state.
func (s *Session) HandleText(ctx context.Context, target messaging.ReplyTarget, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fire(ctx, target, TriggerMessage, text)
}

// HandleFile handles an uploaded document. The settings file replaces the
// user's mappings in any state; anything else is treated as a bank statement.
func (s *Session) HandleFile(ctx context.Context, target messaging.ReplyTarget, fileName string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fileName == user.SettingsFileName {
		s.target = target
		return s.applySettingsFile(ctx, content)
	}
	return s.fire(ctx, target, TriggerFile, fileName, content)
}

// ListMappings replies with the user's bank account mappings.
func (s *Session) ListMappings(ctx context.Context, target messaging.ReplyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.listMappings(ctx)
	return nil
}

func (s *Session) fire(ctx context.Context, target messaging.ReplyTarget, trigger Trigger, args ...any) error {
	s.target = target
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With().
		Str("user_id", s.user.MessengerUserID).
		Str("trigger", string(trigger)).
		Logger())
	if err := s.sm.FireCtx(ctx, trigger, args...); err != nil {
		return fmt.Errorf("session %s: %s: %w", s.user.MessengerUserID, trigger, err)
	}
	return nil
}
