package user

import (
	"errors"
	"time"

	"budgetbridge/internal/domain/ledger"
)

// Domain errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// User is the persisted per-messenger-user record.
type User struct {
	MessengerUserID string             `json:"messengerUserId"`
	Credential      *ledger.Credential `json:"-"`
	DefaultBudget   string             `json:"defaultBudget,omitempty"`
	DefaultAccount  string             `json:"defaultAccount,omitempty"`
	Mappings        []Mapping          `json:"mappings"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// Mapping routes transactions of one bank account to a ledger account.
type Mapping struct {
	BankAccount string `json:"bankAccount" yaml:"bank_account"`
	Budget      string `json:"budget" yaml:"budget"`
	Account     string `json:"account" yaml:"account"`
}

// HasDefaults reports whether both default budget and account are chosen.
func (u *User) HasDefaults() bool {
	return u.DefaultBudget != "" && u.DefaultAccount != ""
}

// MappingFor returns the mapping of a bank account, if any.
func (u *User) MappingFor(bankAccount string) (Mapping, bool) {
	for _, m := range u.Mappings {
		if m.BankAccount == bankAccount {
			return m, true
		}
	}
	return Mapping{}, false
}

// ClearAuthorization drops the stored credential.
func (u *User) ClearAuthorization() {
	u.Credential = nil
}
