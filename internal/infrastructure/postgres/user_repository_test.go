package postgres

import (
	"errors"
	"testing"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/user"
	"budgetbridge/internal/infrastructure/crypto"
)

func newTestRepository(t *testing.T) *UserRepository {
	t.Helper()
	enc, err := crypto.NewEncryptor("01234567890123456789012345678901")
	if err != nil {
		t.Fatal(err)
	}
	return NewUserRepository(nil, enc)
}

func TestUserRepository_CredentialRoundtrip(t *testing.T) {
	r := newTestRepository(t)
	expiry := time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)
	cred := &ledger.Credential{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Scope: "read-only", Expiry: expiry}

	stored, err := r.encodeCredential(cred)
	if err != nil {
		t.Fatalf("encodeCredential() error = %v", err)
	}
	if stored.AccessToken == "at" || stored.RefreshToken == "rt" {
		t.Error("tokens stored in plaintext")
	}

	got, err := r.decodeCredential(stored)
	if err != nil {
		t.Fatalf("decodeCredential() error = %v", err)
	}
	if *got != *cred {
		t.Errorf("decodeCredential() = %+v, want %+v", got, cred)
	}
}

func TestUserRepository_EmptyCredential(t *testing.T) {
	r := newTestRepository(t)

	stored, err := r.encodeCredential(nil)
	if err != nil {
		t.Fatalf("encodeCredential(nil) error = %v", err)
	}
	if stored != (storedCredential{}) {
		t.Errorf("encodeCredential(nil) = %+v, want zero", stored)
	}

	got, err := r.decodeCredential(stored)
	if err != nil || got != nil {
		t.Errorf("decodeCredential(zero) = %+v, %v, want nil, nil", got, err)
	}
}

type failingCipher struct{}

func (failingCipher) Encrypt(string) (string, error) { return "", errors.New("boom") }

func (failingCipher) Decrypt(string) (string, error) { return "", errors.New("boom") }

func TestUserRepository_CipherErrors(t *testing.T) {
	r := NewUserRepository(nil, failingCipher{})

	if _, err := r.encodeCredential(&ledger.Credential{AccessToken: "at"}); err == nil {
		t.Error("encodeCredential() expected error")
	}
	if _, err := r.decodeCredential(storedCredential{AccessToken: "x"}); err == nil {
		t.Error("decodeCredential() expected error")
	}
}

func TestMappingColumns(t *testing.T) {
	banks, budgets, accounts := mappingColumns([]user.Mapping{
		{BankAccount: "1111", Budget: "Home", Account: "Cash"},
		{BankAccount: "2222", Budget: "Work", Account: "Card"},
	})

	if len(banks) != 2 || banks[1] != "2222" {
		t.Errorf("banks = %v", banks)
	}
	if budgets[0] != "Home" || accounts[1] != "Card" {
		t.Errorf("budgets = %v, accounts = %v", budgets, accounts)
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(time.Time{}).Valid {
		t.Error("zero time should be NULL")
	}
	if !nullTime(time.Now()).Valid {
		t.Error("non-zero time should be valid")
	}
}
