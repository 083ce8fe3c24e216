package transaction

import (
	"cloud.google.com/go/civil"
)

// Transaction is the canonical record produced by statement parsers and by
// quick manual entry. Amount is in major currency units; outflow from the
// owner's perspective is negative.
type Transaction struct {
	SourceAccount string     `json:"sourceAccount"` // Bank/account/currency id, used only for routing
	Date          civil.Date `json:"date"`
	Amount        float64    `json:"amount"`
	Memo          string     `json:"memo"`
	MCC           int        `json:"mcc,omitempty"` // 0 = absent
	ExternalID    string     `json:"externalId,omitempty"`
	Payee         string     `json:"payee,omitempty"`

	DestinationBudget  string `json:"destinationBudget,omitempty"`
	DestinationAccount string `json:"destinationAccount,omitempty"`
}

// HasExternalID reports whether the source supplied a stable identifier.
func (t *Transaction) HasExternalID() bool {
	return t.ExternalID != ""
}

// Destination groups transactions by the budget/account they are merged into.
type Destination struct {
	Budget  string
	Account string
}

func (d Destination) String() string {
	return d.Budget + `\` + d.Account
}

// Group is a batch of transactions bound for a single destination.
type Group struct {
	Destination  Destination
	Transactions []Transaction
}

// MinDate returns the earliest transaction date in the group.
// The zero Date is returned for an empty group.
func (g *Group) MinDate() civil.Date {
	var min civil.Date
	for i, t := range g.Transactions {
		if i == 0 || t.Date.Before(min) {
			min = t.Date
		}
	}
	return min
}

// GroupByDestination splits transactions into groups preserving the order in
// which destinations first appear and the input order inside each group.
func GroupByDestination(txns []Transaction) []Group {
	index := make(map[Destination]int)
	var groups []Group
	for _, t := range txns {
		d := Destination{Budget: t.DestinationBudget, Account: t.DestinationAccount}
		i, ok := index[d]
		if !ok {
			i = len(groups)
			index[d] = i
			groups = append(groups, Group{Destination: d})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}
	return groups
}
