package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/user"
	"budgetbridge/internal/shared/logger"
)

// Registry keeps one live session per messenger user.
type Registry struct {
	deps     *Deps
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps *Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session of target.UserID, creating it on first contact.
// A new session loads (or creates) the stored user and runs Init before any
// other caller can fire triggers on it. The store is read without holding the
// registry lock; a session registered meanwhile by another caller wins.
func (r *Registry) Get(ctx context.Context, target messaging.ReplyTarget) (*Session, error) {
	if s, ok := r.lookup(target.UserID); ok {
		return s, nil
	}

	u, err := r.loadOrCreate(ctx, target.UserID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if s, ok := r.sessions[target.UserID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	s := newSession(r.deps, u)
	s.mu.Lock()
	r.sessions[target.UserID] = s
	r.mu.Unlock()
	defer s.mu.Unlock()

	logger.FromContext(ctx).Info().Str("user_id", target.UserID).Msg("Session created")
	if err := s.fire(ctx, target, TriggerApplySettings); err != nil {
		return s, err
	}
	return s, nil
}

func (r *Registry) lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *Registry) loadOrCreate(ctx context.Context, userID string) (*user.User, error) {
	u, err := r.deps.Users.Get(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	now := r.deps.now()
	u = &user.User{MessengerUserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := r.deps.Users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", userID, err)
	}
	return u, nil
}

// Remove deletes the stored user and drops the live session.
func (r *Registry) Remove(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.deps.Users.Delete(ctx, userID); err != nil && !errors.Is(err, user.ErrUserNotFound) {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	delete(r.sessions, userID)
	logger.FromContext(ctx).Info().Str("user_id", userID).Msg("Session removed")
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
