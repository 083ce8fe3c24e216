package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/user"

	"github.com/lib/pq"
)

// TokenCipher encrypts credentials at rest.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type UserRepository struct {
	db     *DB
	cipher TokenCipher
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db *DB, cipher TokenCipher) *UserRepository {
	return &UserRepository{db: db, cipher: cipher}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	query := `
		SELECT messenger_user_id, access_token, refresh_token, token_type, token_scope,
		       token_expiry, default_budget, default_account, created_at, updated_at
		FROM bot_users
		WHERE messenger_user_id = $1
	`

	var (
		u      user.User
		stored storedCredential
		expiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.MessengerUserID, &stored.AccessToken, &stored.RefreshToken, &stored.TokenType, &stored.Scope,
		&expiry, &u.DefaultBudget, &u.DefaultAccount, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if expiry.Valid {
		stored.Expiry = expiry.Time
	}

	u.Credential, err = r.decodeCredential(stored)
	if err != nil {
		return nil, err
	}

	u.Mappings, err = r.listMappings(ctx, id)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *UserRepository) listMappings(ctx context.Context, id string) ([]user.Mapping, error) {
	query := `
		SELECT bank_account, budget_name, account_name
		FROM bot_account_mappings
		WHERE messenger_user_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []user.Mapping
	for rows.Next() {
		var m user.Mapping
		if err := rows.Scan(&m.BankAccount, &m.Budget, &m.Account); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return mappings, nil
}

// Save upserts the user and replaces its mappings in one transaction.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	stored, err := r.encodeCredential(u.Credential)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var expiry sql.NullTime
	if !stored.Expiry.IsZero() {
		expiry = sql.NullTime{Time: stored.Expiry, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bot_users (
			messenger_user_id, access_token, refresh_token, token_type, token_scope,
			token_expiry, default_budget, default_account, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), NOW())
		ON CONFLICT (messenger_user_id) DO UPDATE SET
			access_token    = EXCLUDED.access_token,
			refresh_token   = EXCLUDED.refresh_token,
			token_type      = EXCLUDED.token_type,
			token_scope     = EXCLUDED.token_scope,
			token_expiry    = EXCLUDED.token_expiry,
			default_budget  = EXCLUDED.default_budget,
			default_account = EXCLUDED.default_account,
			updated_at      = NOW()
	`,
		u.MessengerUserID, stored.AccessToken, stored.RefreshToken, stored.TokenType, stored.Scope,
		expiry, u.DefaultBudget, u.DefaultAccount, nullTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bot_account_mappings WHERE messenger_user_id = $1`, u.MessengerUserID); err != nil {
		return fmt.Errorf("failed to delete mappings: %w", err)
	}

	if len(u.Mappings) > 0 {
		banks, budgets, accounts := mappingColumns(u.Mappings)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bot_account_mappings (messenger_user_id, bank_account, budget_name, account_name, position)
			SELECT $1, m.bank_account, m.budget_name, m.account_name, m.position
			FROM unnest($2::text[], $3::text[], $4::text[])
				WITH ORDINALITY AS m(bank_account, budget_name, account_name, position)
		`, u.MessengerUserID, pq.Array(banks), pq.Array(budgets), pq.Array(accounts))
		if err != nil {
			return fmt.Errorf("failed to insert mappings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bot_users WHERE messenger_user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT messenger_user_id FROM bot_users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return ids, nil
}

// storedCredential is the column form of a credential; tokens are ciphertext.
type storedCredential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	Expiry       time.Time
}

func (r *UserRepository) encodeCredential(c *ledger.Credential) (storedCredential, error) {
	if c.IsZero() {
		return storedCredential{}, nil
	}
	access, err := r.cipher.Encrypt(c.AccessToken)
	if err != nil {
		return storedCredential{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := r.cipher.Encrypt(c.RefreshToken)
	if err != nil {
		return storedCredential{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return storedCredential{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    c.TokenType,
		Scope:        c.Scope,
		Expiry:       c.Expiry,
	}, nil
}

func (r *UserRepository) decodeCredential(s storedCredential) (*ledger.Credential, error) {
	if s.AccessToken == "" {
		return nil, nil
	}
	access, err := r.cipher.Decrypt(s.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := r.cipher.Decrypt(s.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return &ledger.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    s.TokenType,
		Scope:        s.Scope,
		Expiry:       s.Expiry,
	}, nil
}

func mappingColumns(mappings []user.Mapping) (banks, budgets, accounts []string) {
	banks = make([]string, len(mappings))
	budgets = make([]string, len(mappings))
	accounts = make([]string, len(mappings))
	for i, m := range mappings {
		banks[i], budgets[i], accounts[i] = m.BankAccount, m.Budget, m.Account
	}
	return banks, budgets, accounts
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
