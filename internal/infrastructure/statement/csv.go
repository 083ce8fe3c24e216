package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/statement"
	"budgetbridge/internal/domain/transaction"

	"cloud.google.com/go/civil"
)

// CanonicalSuffix marks files already in the canonical layout.
const CanonicalSuffix = ".bank.csv"

var canonicalColumns = []string{"account", "date", "amount", "memo", "mcc", "id", "payee"}

// CanonicalParser reads ';' separated UTF-8 files with the header
// account;date;amount;memo;mcc;id;payee. Columns may come in any order;
// account, date and amount are required.
type CanonicalParser struct{}

var _ statement.Parser = CanonicalParser{}

func (CanonicalParser) Name() string { return "canonical-csv" }

func (CanonicalParser) CanParse(fileName string) bool {
	return strings.HasSuffix(strings.ToLower(fileName), CanonicalSuffix)
}

func (CanonicalParser) Encoding() string { return "utf-8" }

func (CanonicalParser) Parse(content string) ([]transaction.Transaction, error) {
	r := newReader(content)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ledger.ErrMalformedInput, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []transaction.Transaction
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ledger.ErrMalformedInput, line, err)
		}
		if blank(record) {
			continue
		}

		t, err := cols.transaction(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ledger.ErrMalformedInput, line, err)
		}
		out = append(out, t)
	}

	return out, nil
}

type columns map[string]int

func columnIndex(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range canonicalColumns[:3] {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ledger.ErrMalformedInput, required)
		}
	}
	return cols, nil
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columns) transaction(record []string) (transaction.Transaction, error) {
	account := c.get(record, "account")
	if account == "" {
		return transaction.Transaction{}, errors.New("empty account")
	}

	date, err := civil.ParseDate(c.get(record, "date"))
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("invalid date: %w", err)
	}

	amount, err := parseAmount(c.get(record, "amount"))
	if err != nil {
		return transaction.Transaction{}, err
	}

	var mcc int
	if raw := c.get(record, "mcc"); raw != "" {
		mcc, err = strconv.Atoi(raw)
		if err != nil {
			return transaction.Transaction{}, fmt.Errorf("invalid mcc %q", raw)
		}
	}

	return transaction.Transaction{
		SourceAccount: account,
		Date:          date,
		Amount:        amount,
		Memo:          c.get(record, "memo"),
		MCC:           mcc,
		ExternalID:    c.get(record, "id"),
		Payee:         c.get(record, "payee"),
	}, nil
}

func newReader(content string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parseAmount accepts '.' or ',' decimals, spaces as thousands separators and
// the unicode minus sign.
func parseAmount(raw string) (float64, error) {
	s := strings.NewReplacer(" ", "", "\u00a0", "", "\u2212", "-", ",", ".").Replace(raw)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}
