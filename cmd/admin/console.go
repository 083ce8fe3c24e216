package main

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/user"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// consoleSender prints bot replies as plain text.
type consoleSender struct {
	mu sync.Mutex
	w  io.Writer
}

var _ messaging.Sender = (*consoleSender)(nil)

func newConsoleSender(w io.Writer) *consoleSender {
	return &consoleSender{w: w}
}

func (c *consoleSender) SendMessage(_ context.Context, _ messaging.ReplyTarget, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, plainText(text))
	return err
}

func (c *consoleSender) SendOptions(_ context.Context, _ messaging.ReplyTarget, text string, options []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, plainText(text)); err != nil {
		return err
	}
	for _, o := range options {
		if _, err := fmt.Fprintf(c.w, "  - %s\n", o); err != nil {
			return err
		}
	}
	return nil
}

func plainText(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

func printUser(w io.Writer, u *user.User) {
	fmt.Fprintf(w, "User:            %s\n", u.MessengerUserID)
	fmt.Fprintf(w, "Default budget:  %s\n", orNone(u.DefaultBudget))
	fmt.Fprintf(w, "Default account: %s\n", orNone(u.DefaultAccount))

	switch {
	case u.Credential == nil || u.Credential.IsZero():
		fmt.Fprintln(w, "Authorization:   none")
	case u.Credential.Expiry.IsZero():
		fmt.Fprintln(w, "Authorization:   no expiry")
	default:
		fmt.Fprintf(w, "Authorization:   expires %s\n", u.Credential.Expiry.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(w, "Mappings:        %d\n", len(u.Mappings))
	for _, m := range u.Mappings {
		fmt.Fprintf(w, "  %s -> %s\n", m.BankAccount, strings.Join([]string{m.Budget, m.Account}, "/"))
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
