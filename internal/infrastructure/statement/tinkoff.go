package statement

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/statement"
	"budgetbridge/internal/domain/transaction"

	"cloud.google.com/go/civil"
)

// TinkoffSource is the bank account id assigned to Tinkoff exports, which
// carry no account number of their own.
const TinkoffSource = "tinkoff"

const (
	tinkoffDateCol   = 0
	tinkoffStatusCol = 3
	tinkoffAmountCol = 4
	tinkoffMCCCol    = 10
	tinkoffMemoCol   = 11
)

// TinkoffParser reads the "operations" CSV export of Tinkoff bank
// (windows-1251, ';' separated). Only completed and pending operations are
// kept; amounts already carry the outflow sign.
type TinkoffParser struct{}

var _ statement.Parser = TinkoffParser{}

func (TinkoffParser) Name() string { return "tinkoff-csv" }

func (TinkoffParser) CanParse(fileName string) bool {
	lower := strings.ToLower(fileName)
	return strings.Contains(lower, "operations") && strings.HasSuffix(lower, ".csv")
}

func (TinkoffParser) Encoding() string { return "windows-1251" }

func (TinkoffParser) Parse(content string) ([]transaction.Transaction, error) {
	r := newReader(content)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read header: %v", ledger.ErrMalformedInput, err)
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
		if len(record) <= tinkoffMemoCol {
			continue
		}

		status := strings.TrimSpace(record[tinkoffStatusCol])
		if status != "OK" && status != "WAITING" {
			continue
		}

		t, err := tinkoffTransaction(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ledger.ErrMalformedInput, line, err)
		}
		out = append(out, t)
	}

	return out, nil
}

func tinkoffTransaction(record []string) (transaction.Transaction, error) {
	ts, err := time.Parse("02.01.2006 15:04:05", strings.TrimSpace(record[tinkoffDateCol]))
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("invalid date: %w", err)
	}

	amount, err := parseAmount(record[tinkoffAmountCol])
	if err != nil {
		return transaction.Transaction{}, err
	}

	var mcc int
	if raw := strings.TrimSpace(record[tinkoffMCCCol]); raw != "" {
		if mcc, err = strconv.Atoi(raw); err != nil {
			return transaction.Transaction{}, fmt.Errorf("invalid mcc %q", raw)
		}
	}

	return transaction.Transaction{
		SourceAccount: TinkoffSource,
		Date:          civil.DateOf(ts),
		Amount:        amount,
		Memo:          strings.TrimSpace(record[tinkoffMemoCol]),
		MCC:           mcc,
	}, nil
}

// Parsers returns every built-in statement parser.
func Parsers() []statement.Parser {
	return []statement.Parser{CanonicalParser{}, TinkoffParser{}}
}
