package session

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/transaction"
	"budgetbridge/internal/domain/user"
	"budgetbridge/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
)

const authCodePrefix = "/start "

func (s *Session) reply(ctx context.Context, text string) {
	if err := s.deps.Sender.SendMessage(ctx, s.target, text); err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("Failed to send reply")
	}
}

func (s *Session) replyOptions(ctx context.Context, text string, options []string) {
	if err := s.deps.Sender.SendOptions(ctx, s.target, text, options); err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("Failed to send options")
	}
}

func (s *Session) replyText(text string) stateless.ActionFunc {
	return func(ctx context.Context, _ ...any) error {
		s.reply(ctx, text)
		return nil
	}
}

func (s *Session) save(ctx context.Context) error {
	s.user.UpdatedAt = s.deps.now()
	if err := s.deps.Users.Save(ctx, s.user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// accessToken returns a usable access token, refreshing and persisting the
// credential first when it is about to expire.
func (s *Session) accessToken(ctx context.Context) (string, error) {
	cred := s.user.Credential
	if cred.IsZero() {
		return "", ledger.ErrAuthorization
	}
	if !cred.NeedsRefresh(s.deps.now()) {
		return cred.AccessToken, nil
	}

	fresh, err := s.deps.Auth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh credential: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	s.user.Credential = fresh
	if err := s.save(ctx); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Debug().Time("expiry", fresh.Expiry).Msg("Credential refreshed")
	return fresh.AccessToken, nil
}

func (s *Session) loadDirectory(ctx context.Context) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}
	dir, err := ledger.LoadDirectory(ctx, s.deps.Ledger, token)
	if err != nil {
		return err
	}
	s.dir = dir
	return nil
}

// ledgerFailure replies to a failed remote call. A rejected credential is
// dropped and the OAuth flow restarts.
func (s *Session) ledgerFailure(ctx context.Context, err error) error {
	if errors.Is(err, ledger.ErrAuthorization) {
		logger.FromContext(ctx).Info().Err(err).Msg("Credential rejected, restarting authorization")
		s.reply(ctx, s.texts.AuthExpired)
		s.user.ClearAuthorization()
		s.dir = nil
		if err := s.save(ctx); err != nil {
			return err
		}
		return s.sm.FireCtx(ctx, TriggerStartAuth)
	}
	logger.FromContext(ctx).Warn().Err(err).Msg("Ledger call failed")
	s.reply(ctx, fmt.Sprintf(s.texts.LoadBudgetsFailed, html.EscapeString(err.Error())))
	return nil
}

func (s *Session) onApplySettings(ctx context.Context, _ ...any) error {
	if s.user.Credential.IsZero() {
		return s.sm.FireCtx(ctx, TriggerReset)
	}
	if err := s.loadDirectory(ctx); err != nil {
		if errors.Is(err, ledger.ErrAuthorization) {
			return s.ledgerFailure(ctx, err)
		}
		logger.FromContext(ctx).Warn().Err(err).Msg("Failed to load directory while applying settings")
		s.reply(ctx, fmt.Sprintf(s.texts.LoadBudgetsFailed, html.EscapeString(err.Error())))
		return s.sm.FireCtx(ctx, TriggerReset)
	}

	if !s.dir.HasBudget(s.user.DefaultBudget) {
		return s.sm.FireCtx(ctx, TriggerSetDefaultBudget)
	}
	if _, err := s.dir.Resolve(s.user.DefaultBudget, s.user.DefaultAccount); err != nil {
		return s.sm.FireCtx(ctx, TriggerSetDefaultAccount)
	}
	return s.sm.FireCtx(ctx, TriggerSetReady)
}

func (s *Session) onAuthorizing(ctx context.Context, _ ...any) error {
	link := s.deps.Auth.AuthCodeURL(uuid.NewString())
	s.reply(ctx, fmt.Sprintf(s.texts.AuthorizeLink, html.EscapeString(link)))
	return nil
}

// parseAuthCode accepts "/start <code>", which is what the messenger sends
// when the user follows the deep link from the OAuth landing page.
func parseAuthCode(text string) (string, bool) {
	code, ok := strings.CutPrefix(text, authCodePrefix)
	if !ok {
		return "", false
	}
	code = strings.TrimSpace(code)
	if code == "" || strings.ContainsAny(code, " \t\n") {
		return "", false
	}
	return code, true
}

func (s *Session) onAuthCode(ctx context.Context, args ...any) error {
	code, ok := parseAuthCode(args[0].(string))
	if !ok {
		s.reply(ctx, s.texts.AuthCodeInvalid)
		return s.sm.FireCtx(ctx, TriggerStartAuth)
	}

	cred, err := s.deps.Auth.Exchange(ctx, code)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("Auth code exchange failed")
		s.reply(ctx, s.texts.AuthExchangeFailed)
		return s.sm.FireCtx(ctx, TriggerStartAuth)
	}
	s.user.Credential = cred
	if err := s.save(ctx); err != nil {
		return err
	}

	if err := s.loadDirectory(ctx); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("Failed to load directory after authorization")
		s.reply(ctx, fmt.Sprintf(s.texts.LoadBudgetsFailed, html.EscapeString(err.Error())))
		return s.sm.FireCtx(ctx, TriggerStartAuth)
	}

	logger.FromContext(ctx).Info().Int("budgets", len(s.dir.Budgets())).Msg("User authorized")
	return s.sm.FireCtx(ctx, TriggerSetDefaultBudget)
}

func (s *Session) ensureDirectory(ctx context.Context) bool {
	if s.dir != nil {
		return true
	}
	if err := s.loadDirectory(ctx); err != nil {
		if err := s.ledgerFailure(ctx, err); err != nil {
			logger.FromContext(ctx).Error().Err(err).Msg("Failed to handle ledger failure")
		}
		return false
	}
	return true
}

func (s *Session) onChoosingBudget(ctx context.Context, _ ...any) error {
	if !s.ensureDirectory(ctx) {
		return nil
	}
	s.replyOptions(ctx, s.texts.SelectBudget, s.dir.BudgetNames())
	return nil
}

func (s *Session) onBudgetName(ctx context.Context, args ...any) error {
	name := strings.TrimSpace(args[0].(string))
	if !s.ensureDirectory(ctx) {
		return nil
	}
	budget, ok := s.dir.Budget(name)
	if !ok {
		return s.sm.FireCtx(ctx, TriggerSetDefaultBudget)
	}

	s.user.DefaultBudget = budget.Name
	if err := s.save(ctx); err != nil {
		return err
	}
	return s.sm.FireCtx(ctx, TriggerSetDefaultAccount)
}

func (s *Session) onChoosingAccount(ctx context.Context, _ ...any) error {
	if !s.ensureDirectory(ctx) {
		return nil
	}
	s.replyOptions(ctx, s.texts.SelectAccount, s.dir.AccountNames(s.user.DefaultBudget))
	return nil
}

func (s *Session) onAccountName(ctx context.Context, args ...any) error {
	name := strings.TrimSpace(args[0].(string))
	if !s.ensureDirectory(ctx) {
		return nil
	}

	target, err := s.dir.Resolve(s.user.DefaultBudget, name)
	if err != nil {
		var nf *ledger.NotFoundError
		if errors.As(err, &nf) && nf.BudgetMissing {
			return s.sm.FireCtx(ctx, TriggerSetDefaultBudget)
		}
		return s.sm.FireCtx(ctx, TriggerSetDefaultAccount)
	}

	s.user.DefaultBudget = target.BudgetName
	s.user.DefaultAccount = target.AccountName
	if err := s.save(ctx); err != nil {
		return err
	}
	return s.sm.FireCtx(ctx, TriggerSetReady)
}

func (s *Session) onReady(ctx context.Context, _ ...any) error {
	s.reply(ctx, fmt.Sprintf(s.texts.Ready, html.EscapeString(s.user.DefaultBudget), html.EscapeString(s.user.DefaultAccount), s.texts.TransactionHelp))
	return nil
}

func (s *Session) onListAccounts(ctx context.Context, _ ...any) error {
	if !s.ensureDirectory(ctx) {
		return nil
	}
	var b strings.Builder
	for _, ba := range s.dir.Budgets() {
		b.WriteString(html.EscapeString(ba.Budget.Name))
		b.WriteByte('\n')
		for _, a := range ba.Accounts {
			b.WriteString("----------------")
			b.WriteString(html.EscapeString(a.Name))
			b.WriteByte('\n')
		}
	}
	s.reply(ctx, b.String())
	return nil
}

func (s *Session) onQuickEntry(ctx context.Context, args ...any) error {
	entry, ok := parseQuickEntry(args[0].(string))
	if !ok {
		s.reply(ctx, fmt.Sprintf(s.texts.CantParseEntry, s.texts.TransactionHelp))
		return nil
	}

	now := s.deps.now()
	txn := entry.transaction(now, transaction.Destination{
		Budget:  s.user.DefaultBudget,
		Account: s.user.DefaultAccount,
	})
	return s.merge(ctx, []transaction.Transaction{txn})
}

func (s *Session) onStatementFile(ctx context.Context, args ...any) error {
	fileName := args[0].(string)
	content := args[1].([]byte)

	txns, err := s.deps.Parsers.Parse(fileName, content)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("file", fileName).Msg("Failed to parse statement")
		s.reply(ctx, fmt.Sprintf(s.texts.FileParseFailed, html.EscapeString(fileName), html.EscapeString(err.Error())))
		return nil
	}
	if len(txns) == 0 {
		s.reply(ctx, s.texts.NoTransactions)
		return nil
	}

	routed, unmapped := s.route(txns)
	if len(unmapped) > 0 {
		for _, src := range unmapped {
			s.reply(ctx, fmt.Sprintf(s.texts.UnmappedSource, html.EscapeString(src)))
		}
		s.listMappings(ctx)
	}
	if len(routed) == 0 {
		return nil
	}
	return s.merge(ctx, routed)
}

// route fills the destination of every transaction from the user's mappings,
// falling back to mappings declared in ledger account notes. Sources with no
// mapping are returned in first-seen order and their transactions dropped.
func (s *Session) route(txns []transaction.Transaction) ([]transaction.Transaction, []string) {
	notes := s.dir.NoteMappings()
	routed := make([]transaction.Transaction, 0, len(txns))
	var unmapped []string
	seen := make(map[string]bool)

	for _, t := range txns {
		if m, ok := s.user.MappingFor(t.SourceAccount); ok {
			t.DestinationBudget, t.DestinationAccount = m.Budget, m.Account
		} else if target, ok := notes[t.SourceAccount]; ok {
			t.DestinationBudget, t.DestinationAccount = target.BudgetName, target.AccountName
		} else {
			if !seen[t.SourceAccount] {
				seen[t.SourceAccount] = true
				unmapped = append(unmapped, t.SourceAccount)
			}
			continue
		}
		routed = append(routed, t)
	}
	return routed, unmapped
}

func (s *Session) merge(ctx context.Context, txns []transaction.Transaction) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return s.ledgerFailure(ctx, err)
	}

	report, err := s.deps.Engine.Merge(ctx, token, s.dir, transaction.GroupByDestination(txns))
	if text := report.String(); text != "" {
		s.reply(ctx, html.EscapeString(text))
	}
	if err != nil {
		if errors.Is(err, ledger.ErrMalformedInput) {
			s.reply(ctx, s.texts.NoTransactions)
			return nil
		}
		return s.ledgerFailure(ctx, err)
	}
	return nil
}

func (s *Session) applySettingsFile(ctx context.Context, content []byte) error {
	mappings, err := user.ParseMappings(content)
	if err != nil {
		s.reply(ctx, fmt.Sprintf(s.texts.SettingsInvalid, html.EscapeString(err.Error())))
		return nil
	}
	s.user.Mappings = mappings
	if err := s.save(ctx); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Int("mappings", len(mappings)).Msg("Mappings replaced")
	s.listMappings(ctx)
	return nil
}

func (s *Session) listMappings(ctx context.Context) {
	if len(s.user.Mappings) == 0 {
		s.reply(ctx, s.texts.NoMappings)
		return
	}
	lines := make([]string, 0, len(s.user.Mappings))
	for _, m := range s.user.Mappings {
		lines = append(lines, html.EscapeString(fmt.Sprintf("%s - %s\\%s", m.BankAccount, m.Budget, m.Account)))
	}
	s.reply(ctx, strings.Join(lines, "\n"))
}
