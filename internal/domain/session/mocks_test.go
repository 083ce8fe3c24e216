package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/reconcile"
	"budgetbridge/internal/domain/statement"
	"budgetbridge/internal/domain/transaction"
	"budgetbridge/internal/domain/user"
	"budgetbridge/internal/shared/messages"

	"cloud.google.com/go/civil"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type sentMessage struct {
	Text    string
	Options []string
}

// MockSender records every reply.
type MockSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *MockSender) SendMessage(ctx context.Context, target messaging.ReplyTarget, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Text: text})
	return nil
}

func (m *MockSender) SendOptions(ctx context.Context, target messaging.ReplyTarget, text string, options []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Text: text, Options: options})
	return nil
}

func (m *MockSender) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *MockSender) contains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if strings.Contains(s.Text, substr) {
			return true
		}
	}
	return false
}

func (m *MockSender) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// MockUserRepository keeps copies of saved users in memory.
type MockUserRepository struct {
	mu      sync.Mutex
	users   map[string]user.User
	saves   int
	SaveErr error
	// BeforeGet runs at the start of Get, outside the mock's lock.
	BeforeGet func(id string)
}

func newMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]user.User)}
}

func (m *MockUserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	if m.BeforeGet != nil {
		m.BeforeGet(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &u, nil
}

func (m *MockUserRepository) Save(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saves++
	cp := *u
	if u.Credential != nil {
		c := *u.Credential
		cp.Credential = &c
	}
	cp.Mappings = append([]user.Mapping(nil), u.Mappings...)
	m.users[u.MessengerUserID] = cp
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return user.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockUserRepository) stored(id string) user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// MockAuthenticator is a func-field Authenticator.
type MockAuthenticator struct {
	ExchangeFunc func(ctx context.Context, code string) (*ledger.Credential, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*ledger.Credential, error)
}

func (m *MockAuthenticator) AuthCodeURL(state string) string {
	return "https://ledger.test/oauth/authorize?state=" + state
}

func (m *MockAuthenticator) Exchange(ctx context.Context, code string) (*ledger.Credential, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return validCredential("access-" + code), nil
}

func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (*ledger.Credential, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return validCredential("refreshed"), nil
}

func validCredential(access string) *ledger.Credential {
	return &ledger.Credential{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    "Bearer",
		Expiry:       testNow.Add(2 * time.Hour),
	}
}

// stubLedger serves a fixed directory and records created entries.
type stubLedger struct {
	mu        sync.Mutex
	tokens    []string
	created   []ledger.NewEntry
	budgetErr error
	createErr error
}

func (l *stubLedger) ListBudgets(ctx context.Context, token string) ([]ledger.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, token)
	if l.budgetErr != nil {
		return nil, l.budgetErr
	}
	return []ledger.Budget{{ID: "b1", Name: "Home"}, {ID: "b2", Name: "Work"}}, nil
}

func (l *stubLedger) ListAccounts(ctx context.Context, token, budgetID string) ([]ledger.Account, error) {
	switch budgetID {
	case "b1":
		return []ledger.Account{
			{ID: "a1", Name: "Checking"},
			{ID: "a2", Name: "Cash", Note: "[ynabbot]\nbank_account: 4455\n[/ynabbot]"},
		}, nil
	default:
		return []ledger.Account{{ID: "a3", Name: "Card"}}, nil
	}
}

func (l *stubLedger) ListTransactions(ctx context.Context, token, budgetID, accountID string, since civil.Date) ([]ledger.Entry, error) {
	return nil, nil
}

func (l *stubLedger) CreateTransactions(ctx context.Context, token, budgetID string, entries []ledger.NewEntry) (*ledger.SaveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return nil, l.createErr
	}
	l.created = append(l.created, entries...)
	res := &ledger.SaveResult{}
	for i := range entries {
		res.TransactionIDs = append(res.TransactionIDs, "new-"+string(rune('a'+i)))
	}
	return res, nil
}

func (l *stubLedger) UpdateTransactions(ctx context.Context, token, budgetID string, updates []ledger.EntryUpdate) (*ledger.SaveResult, error) {
	return &ledger.SaveResult{}, nil
}

func (l *stubLedger) createdEntries() []ledger.NewEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.NewEntry(nil), l.created...)
}

// stubParser returns fixed transactions for files ending in .test.
type stubParser struct {
	txns []transaction.Transaction
}

func (p *stubParser) Name() string { return "stub" }

func (p *stubParser) CanParse(fileName string) bool { return strings.HasSuffix(fileName, ".test") }

func (p *stubParser) Encoding() string { return "utf-8" }

func (p *stubParser) Parse(content string) ([]transaction.Transaction, error) {
	return p.txns, nil
}

type testEnv struct {
	sender   *MockSender
	users    *MockUserRepository
	auth     *MockAuthenticator
	ledger   *stubLedger
	parser   *stubParser
	registry *Registry
	target   messaging.ReplyTarget
}

func newTestEnv() *testEnv {
	env := &testEnv{
		sender: &MockSender{},
		users:  newMockUserRepository(),
		auth:   &MockAuthenticator{},
		ledger: &stubLedger{},
		parser: &stubParser{},
		target: messaging.ReplyTarget{UserID: "42", ChatID: 42},
	}
	env.registry = NewRegistry(&Deps{
		Users:   env.users,
		Ledger:  env.ledger,
		Auth:    env.auth,
		Engine:  reconcile.NewEngine(env.ledger, nil),
		Parsers: statement.NewRegistry(env.parser),
		Sender:  env.sender,
		Texts:   messages.Default(),
		Now:     func() time.Time { return testNow },
	})
	return env
}

// seedReadyUser stores a fully configured user.
func (e *testEnv) seedReadyUser() {
	e.users.users[e.target.UserID] = user.User{
		MessengerUserID: e.target.UserID,
		Credential:      validCredential("stored"),
		DefaultBudget:   "Home",
		DefaultAccount:  "Checking",
	}
}
