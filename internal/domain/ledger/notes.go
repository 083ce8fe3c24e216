package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var noteBlockRegex = regexp.MustCompile(`(?is)\[ynabbot\](.*?)\[/ynabbot\]`)

type noteMapping struct {
	BankAccount  bankAccountIDs `yaml:"bank_account"`
	BankAccounts bankAccountIDs `yaml:"bank_accounts"`
}

// bankAccountIDs accepts a scalar or a list of scalars and keeps each value
// as written, so long numeric ids and leading zeros survive.
type bankAccountIDs []string

func (ids *bankAccountIDs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			*ids = append(*ids, node.Value)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: bank account must be a scalar", item.Line)
			}
			if item.Tag != "!!null" {
				*ids = append(*ids, item.Value)
			}
		}
	default:
		return fmt.Errorf("line %d: bank account must be a scalar or a list", node.Line)
	}
	return nil
}

// ParseNoteBankAccounts extracts the bank account ids declared in an account
// note. Each [ynabbot]...[/ynabbot] block holds YAML with bank_account and/or
// bank_accounts keys. Malformed blocks are skipped.
func ParseNoteBankAccounts(note string) []string {
	if strings.TrimSpace(note) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(ids bankAccountIDs) {
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	for _, m := range noteBlockRegex.FindAllStringSubmatch(note, -1) {
		content := m[1]
		if strings.TrimSpace(content) == "" {
			continue
		}

		var mapping noteMapping
		if err := yaml.Unmarshal([]byte(content), &mapping); err != nil {
			continue
		}

		add(mapping.BankAccount)
		add(mapping.BankAccounts)
	}

	return out
}

// NoteMappings returns bank account id -> target for every account whose
// note declares bank accounts. The first declaration of an id wins.
func (d *Directory) NoteMappings() map[string]Target {
	out := make(map[string]Target)
	for _, ba := range d.Budgets() {
		for _, a := range ba.Accounts {
			for _, bank := range ParseNoteBankAccounts(a.Note) {
				if _, ok := out[bank]; ok {
					continue
				}
				out[bank] = Target{
					BudgetID:    ba.Budget.ID,
					BudgetName:  ba.Budget.Name,
					AccountID:   a.ID,
					AccountName: a.Name,
				}
			}
		}
	}
	return out
}
