package reconcile

import (
	"fmt"
	"sync"

	"budgetbridge/internal/domain/ledger"
)

// LockScope selects how merges are serialized inside one process.
type LockScope string

const (
	// ScopeAccount serializes merges per destination account.
	ScopeAccount LockScope = "account"
	// ScopeGlobal serializes every merge behind a single lock.
	ScopeGlobal LockScope = "global"
)

// ParseLockScope accepts "account" or "global".
func ParseLockScope(s string) (LockScope, error) {
	switch LockScope(s) {
	case ScopeAccount, ScopeGlobal:
		return LockScope(s), nil
	case "":
		return ScopeAccount, nil
	default:
		return "", fmt.Errorf("unknown merge lock scope %q", s)
	}
}

type keyedMutex struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out mutexes keyed by destination. Entries are dropped once no
// goroutine holds or waits on them.
type Locker struct {
	scope LockScope
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

func NewLocker(scope LockScope) *Locker {
	if scope == "" {
		scope = ScopeAccount
	}
	return &Locker{scope: scope, locks: make(map[string]*keyedMutex)}
}

// Scope returns the configured lock scope.
func (l *Locker) Scope() LockScope {
	return l.scope
}

// Lock blocks until the destination's lock is held and returns its release.
func (l *Locker) Lock(target ledger.Target) (unlock func()) {
	key := l.key(target)

	l.mu.Lock()
	km, ok := l.locks[key]
	if !ok {
		km = &keyedMutex{}
		l.locks[key] = km
	}
	km.refs++
	l.mu.Unlock()

	km.mu.Lock()

	return func() {
		km.mu.Unlock()

		l.mu.Lock()
		km.refs--
		if km.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *Locker) key(target ledger.Target) string {
	if l.scope == ScopeGlobal {
		return "*"
	}
	return target.BudgetID + "/" + target.AccountID
}

