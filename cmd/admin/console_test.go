package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/user"
)

func TestConsoleSender_StripsMarkup(t *testing.T) {
	var buf bytes.Buffer
	s := newConsoleSender(&buf)

	err := s.SendMessage(context.Background(), messaging.ReplyTarget{}, "<b>Added</b> 3 &amp; updated 1")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got, want := buf.String(), "Added 3 & updated 1\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestConsoleSender_ListsOptions(t *testing.T) {
	var buf bytes.Buffer
	s := newConsoleSender(&buf)

	err := s.SendOptions(context.Background(), messaging.ReplyTarget{}, "Choose budget", []string{"Home", "Work"})
	if err != nil {
		t.Fatalf("SendOptions() error = %v", err)
	}
	want := "Choose budget\n  - Home\n  - Work\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestPrintUser(t *testing.T) {
	expiry := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	u := &user.User{
		MessengerUserID: "42",
		DefaultBudget:   "Home",
		Credential:      &ledger.Credential{AccessToken: "a", Expiry: expiry},
		Mappings:        []user.Mapping{{BankAccount: "40817", Budget: "Home", Account: "Card"}},
	}

	var buf bytes.Buffer
	printUser(&buf, u)
	out := buf.String()

	for _, want := range []string{
		"User:            42",
		"Default account: (none)",
		"expires 2026-05-01T12:00:00Z",
		"40817 -> Home/Card",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintUser_NoAuthorization(t *testing.T) {
	var buf bytes.Buffer
	printUser(&buf, &user.User{MessengerUserID: "7"})
	if !strings.Contains(buf.String(), "Authorization:   none") {
		t.Errorf("output = %q", buf.String())
	}
}
