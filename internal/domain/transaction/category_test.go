package transaction

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestMCCDescription_Known(t *testing.T) {
	if got := MCCDescription(5411); got != "Grocery Stores" {
		t.Errorf("MCCDescription(5411) = %q, want %q", got, "Grocery Stores")
	}
}

func TestMCCDescription_Absent(t *testing.T) {
	if got := MCCDescription(0); got != "" {
		t.Errorf("MCCDescription(0) = %q, want empty string", got)
	}
}

func TestMCCDescription_Unknown(t *testing.T) {
	if got := MCCDescription(1); got != "" {
		t.Errorf("MCCDescription(1) = %q, want empty string", got)
	}
}

func TestMerchantCategories_NoEmptyDescriptions(t *testing.T) {
	for code, c := range MerchantCategories {
		if c.Description == "" {
			t.Errorf("MerchantCategories[%d] has empty description", code)
		}
		if len(c.Description) > 50 {
			t.Errorf("MerchantCategories[%d] description longer than a payee name", code)
		}
	}
}

func TestGroupByDestination_PreservesOrder(t *testing.T) {
	day := civil.Date{Year: 2024, Month: 3, Day: 1}
	txns := []Transaction{
		{Memo: "a", Date: day, DestinationBudget: "Home", DestinationAccount: "Card"},
		{Memo: "b", Date: day, DestinationBudget: "Home", DestinationAccount: "Cash"},
		{Memo: "c", Date: day, DestinationBudget: "Home", DestinationAccount: "Card"},
	}

	groups := GroupByDestination(txns)
	if len(groups) != 2 {
		t.Fatalf("GroupByDestination() returned %d groups, want 2", len(groups))
	}
	if groups[0].Destination.Account != "Card" {
		t.Errorf("groups[0].Destination.Account = %q, want %q", groups[0].Destination.Account, "Card")
	}
	if len(groups[0].Transactions) != 2 {
		t.Fatalf("len(groups[0].Transactions) = %d, want 2", len(groups[0].Transactions))
	}
	if groups[0].Transactions[1].Memo != "c" {
		t.Errorf("groups[0].Transactions[1].Memo = %q, want %q", groups[0].Transactions[1].Memo, "c")
	}
}

func TestGroup_MinDate(t *testing.T) {
	g := Group{Transactions: []Transaction{
		{Date: civil.Date{Year: 2024, Month: 3, Day: 5}},
		{Date: civil.Date{Year: 2024, Month: 2, Day: 28}},
		{Date: civil.Date{Year: 2024, Month: 3, Day: 1}},
	}}

	want := civil.Date{Year: 2024, Month: 2, Day: 28}
	if got := g.MinDate(); got != want {
		t.Errorf("MinDate() = %v, want %v", got, want)
	}
}

func TestDestination_String(t *testing.T) {
	d := Destination{Budget: "Home", Account: "Card"}
	if got := d.String(); got != `Home\Card` {
		t.Errorf("String() = %q, want %q", got, `Home\Card`)
	}
}
