package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bot_users (
		messenger_user_id TEXT PRIMARY KEY,
		access_token      TEXT NOT NULL DEFAULT '',
		refresh_token     TEXT NOT NULL DEFAULT '',
		token_type        TEXT NOT NULL DEFAULT '',
		token_scope       TEXT NOT NULL DEFAULT '',
		token_expiry      TIMESTAMPTZ,
		default_budget    TEXT NOT NULL DEFAULT '',
		default_account   TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bot_account_mappings (
		messenger_user_id TEXT NOT NULL REFERENCES bot_users(messenger_user_id) ON DELETE CASCADE,
		bank_account      TEXT NOT NULL,
		budget_name       TEXT NOT NULL,
		account_name      TEXT NOT NULL,
		position          INT NOT NULL,
		PRIMARY KEY (messenger_user_id, bank_account)
	)`,
}

// Migrate creates the bot tables. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
