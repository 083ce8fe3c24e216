package user

import (
	"fmt"
	"strings"

	"budgetbridge/internal/domain/ledger"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the upload that replaces a user's mappings.
const SettingsFileName = "settings.yaml"

// ParseMappings reads a YAML list of bank_account/budget/account entries.
// Every entry must carry all three keys and bank accounts must be unique.
func ParseMappings(content []byte) ([]Mapping, error) {
	var mappings []Mapping
	if err := yaml.Unmarshal(content, &mappings); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrMalformedInput, err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: no mappings found", ledger.ErrMalformedInput)
	}

	seen := make(map[string]struct{}, len(mappings))
	for i := range mappings {
		m := &mappings[i]
		m.BankAccount = strings.TrimSpace(m.BankAccount)
		m.Budget = strings.TrimSpace(m.Budget)
		m.Account = strings.TrimSpace(m.Account)

		if m.BankAccount == "" || m.Budget == "" || m.Account == "" {
			return nil, fmt.Errorf("%w: entry %d needs bank_account, budget and account", ledger.ErrMalformedInput, i+1)
		}
		if _, dup := seen[m.BankAccount]; dup {
			return nil, fmt.Errorf("%w: bank account %s listed twice", ledger.ErrMalformedInput, m.BankAccount)
		}
		seen[m.BankAccount] = struct{}{}
	}

	return mappings, nil
}
