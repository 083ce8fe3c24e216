package statement

import (
	"fmt"
	"strings"

	"budgetbridge/internal/domain/transaction"

	"golang.org/x/text/encoding/htmlindex"
)

// Parser turns one bank's export format into canonical transactions.
type Parser interface {
	// Name identifies the parser in logs.
	Name() string
	// CanParse reports whether the file name belongs to this format.
	CanParse(fileName string) bool
	// Encoding is the charset of the export, e.g. "utf-8" or "windows-1251".
	Encoding() string
	Parse(content string) ([]transaction.Transaction, error)
}

// Registry picks the first parser that recognizes a file name.
type Registry struct {
	parsers []Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Find returns the first parser whose CanParse matches.
func (r *Registry) Find(fileName string) (Parser, bool) {
	for _, p := range r.parsers {
		if p.CanParse(fileName) {
			return p, true
		}
	}
	return nil, false
}

// Parse decodes the file with the parser's charset and parses it. An
// unrecognized file yields no transactions and no error.
func (r *Registry) Parse(fileName string, data []byte) ([]transaction.Transaction, error) {
	p, ok := r.Find(fileName)
	if !ok {
		return nil, nil
	}

	content, err := Decode(data, p.Encoding())
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as %s: %w", fileName, p.Encoding(), err)
	}

	txns, err := p.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s parser failed: %w", p.Name(), err)
	}
	return txns, nil
}

// Decode converts data from the named charset to UTF-8.
func Decode(data []byte, charset string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
