package session

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"budgetbridge/internal/domain/transaction"

	"cloud.google.com/go/civil"
)

// quickEntryPattern matches "<payee> <amount>" where the amount may use a
// dot or a comma as decimal separator.
var quickEntryPattern = regexp.MustCompile(`^(.+)\s+(-?\d+(?:[.,]\d+)?)$`)

type quickEntry struct {
	Payee  string
	Amount float64
}

func parseQuickEntry(text string) (quickEntry, bool) {
	m := quickEntryPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return quickEntry{}, false
	}
	payee := strings.TrimSpace(m[1])
	if payee == "" {
		return quickEntry{}, false
	}
	amount, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
	if err != nil {
		return quickEntry{}, false
	}
	return quickEntry{Payee: payee, Amount: amount}, true
}

// transaction turns the entry into a canonical transaction. A typed positive
// amount is spending, so the sign flips.
func (e quickEntry) transaction(now time.Time, dest transaction.Destination) transaction.Transaction {
	return transaction.Transaction{
		Date:               civil.DateOf(now),
		Amount:             -e.Amount,
		ExternalID:         quickEntryID(now),
		Payee:              e.Payee,
		DestinationBudget:  dest.Budget,
		DestinationAccount: dest.Account,
	}
}

// quickEntryID is "bot_" followed by the UTC timestamp with 7 fraction digits.
func quickEntryID(now time.Time) string {
	return "bot_" + strings.Replace(now.UTC().Format("20060102150405.0000000"), ".", "", 1)
}
