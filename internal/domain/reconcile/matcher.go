package reconcile

import (
	"strings"

	"budgetbridge/internal/domain/ledger"
	"budgetbridge/internal/domain/transaction"

	"cloud.google.com/go/civil"
)

// DecisionKind is the outcome of matching one transaction.
type DecisionKind int

const (
	SkipDuplicate DecisionKind = iota
	UpdateHeld
	Insert
)

func (k DecisionKind) String() string {
	switch k {
	case SkipDuplicate:
		return "skip"
	case UpdateHeld:
		return "update"
	case Insert:
		return "insert"
	default:
		return "unknown"
	}
}

// Rule identifies which matcher rule produced a decision.
type Rule int

const (
	RuleImportID Rule = iota + 1
	RuleIDInMemo
	RuleEnriched
	RuleBlankPlaceholder
	RuleHold
	RuleNoMatch
)

func (r Rule) String() string {
	switch r {
	case RuleImportID:
		return "import_id"
	case RuleIDInMemo:
		return "id_in_memo"
	case RuleEnriched:
		return "enriched"
	case RuleBlankPlaceholder:
		return "blank_placeholder"
	case RuleHold:
		return "hold"
	case RuleNoMatch:
		return "no_match"
	default:
		return "unknown"
	}
}

// Decision is the matcher's verdict for one transaction. Only the field
// matching Kind is populated.
type Decision struct {
	Kind   DecisionKind
	Rule   Rule
	Update ledger.EntryUpdate
	Insert ledger.NewEntry
}

type snapshotEntry struct {
	ledger.Entry
	// claimed marks a hold entry already promoted in this batch.
	claimed bool
}

// Snapshot is the set of ledger entries of one account fetched once per
// batch. It is mutated in memory as decisions are made and never re-read.
type Snapshot struct {
	accountID string
	entries   []*snapshotEntry
}

// NewSnapshot builds a snapshot, dropping deleted entries.
func NewSnapshot(accountID string, entries []ledger.Entry) *Snapshot {
	s := &Snapshot{accountID: accountID}
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		s.entries = append(s.entries, &snapshotEntry{Entry: e})
	}
	return s
}

// Len returns the number of entries, including pending inserts.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the current entries.
func (s *Snapshot) Entries() []ledger.Entry {
	out := make([]ledger.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Entry
	}
	return out
}

func (s *Snapshot) candidates(date civil.Date, amount ledger.Milliunits) []*snapshotEntry {
	var c []*snapshotEntry
	for _, e := range s.entries {
		if e.Amount == amount && e.Date == date {
			c = append(c, e)
		}
	}
	return c
}

// Matcher classifies transactions against a snapshot and feeds every
// decision back into it, so later transactions of the same batch see the
// outcome of earlier ones.
type Matcher struct {
	snapshot *Snapshot
}

func NewMatcher(snapshot *Snapshot) *Matcher {
	return &Matcher{snapshot: snapshot}
}

// Match evaluates the rules in order and returns the first that applies.
func (m *Matcher) Match(t transaction.Transaction) Decision {
	amount := ledger.ToMilliunits(t.Amount)
	extID := t.ExternalID
	memo := ledger.TruncateRunes(t.Memo, ledger.MaxMemoLength)
	candidates := m.snapshot.candidates(t.Date, amount)

	if extID != "" {
		for _, e := range candidates {
			if e.ImportID == extID {
				return Decision{Kind: SkipDuplicate, Rule: RuleImportID}
			}
		}
		for _, e := range candidates {
			if strings.Contains(e.Memo, extID) {
				return Decision{Kind: SkipDuplicate, Rule: RuleIDInMemo}
			}
		}
	}

	for _, e := range candidates {
		if e.PayeeName != "" {
			return Decision{Kind: SkipDuplicate, Rule: RuleEnriched}
		}
	}

	if extID == "" {
		for _, e := range candidates {
			if e.ImportID == "" && e.PayeeName == "" && e.Memo == memo {
				return Decision{Kind: SkipDuplicate, Rule: RuleBlankPlaceholder}
			}
		}
	}

	if hold := m.holdCandidate(candidates, t); hold != nil {
		d := Decision{Kind: UpdateHeld, Rule: RuleHold, Update: holdUpdate(hold, t)}
		hold.Memo = d.Update.Memo
		if d.Update.PayeeName != "" {
			hold.PayeeName = d.Update.PayeeName
		}
		hold.Approved = true
		hold.FlagColor = d.Update.FlagColor
		hold.claimed = true
		return d
	}

	d := Decision{Kind: Insert, Rule: RuleNoMatch, Insert: newEntry(m.snapshot.accountID, amount, memo, t)}
	m.snapshot.entries = append(m.snapshot.entries, &snapshotEntry{Entry: ledger.Entry{
		AccountID: d.Insert.AccountID,
		Date:      d.Insert.Date,
		Amount:    d.Insert.Amount,
		Memo:      d.Insert.Memo,
		PayeeName: d.Insert.PayeeName,
		ImportID:  d.Insert.ImportID,
		FlagColor: d.Insert.FlagColor,
		Approved:  d.Insert.Approved,
	}})
	return d
}

// holdCandidate picks the first remote entry without an import id that the
// transaction can complete. Pending inserts have no id and never qualify.
func (m *Matcher) holdCandidate(candidates []*snapshotEntry, t transaction.Transaction) *snapshotEntry {
	for _, e := range candidates {
		if e.ID == "" || e.ImportID != "" || e.claimed {
			continue
		}
		if (t.ExternalID != "" && !strings.Contains(e.Memo, t.ExternalID)) || t.Payee != "" {
			return e
		}
	}
	return nil
}

func holdUpdate(hold *snapshotEntry, t transaction.Transaction) ledger.EntryUpdate {
	return ledger.EntryUpdate{
		ID:        hold.ID,
		AccountID: hold.AccountID,
		Date:      hold.Date,
		Amount:    hold.Amount,
		PayeeName: ledger.TruncateRunes(t.Payee, ledger.MaxPayeeLength),
		Memo:      memoWithID(t.Memo, t.ExternalID),
		Approved:  true,
		FlagColor: ledger.FlagPurple,
	}
}

// memoWithID appends ":id" to the memo. The memo part is cut first so the
// id survives the length limit.
func memoWithID(memo, id string) string {
	if id == "" {
		return ledger.TruncateRunes(memo, ledger.MaxMemoLength)
	}
	suffix := ":" + id
	room := ledger.MaxMemoLength - len([]rune(suffix))
	if room < 0 {
		return ledger.TruncateRunes(memo+suffix, ledger.MaxMemoLength)
	}
	return ledger.TruncateRunes(memo, room) + suffix
}

func newEntry(accountID string, amount ledger.Milliunits, memo string, t transaction.Transaction) ledger.NewEntry {
	payee := t.Payee
	if payee == "" {
		payee = transaction.MCCDescription(t.MCC)
	}

	flag := ledger.FlagRed
	if t.ExternalID != "" {
		flag = ledger.FlagOrange
	}

	return ledger.NewEntry{
		AccountID: accountID,
		Date:      t.Date,
		Amount:    amount,
		PayeeName: ledger.TruncateRunes(payee, ledger.MaxPayeeLength),
		Memo:      memo,
		Approved:  t.ExternalID != "",
		FlagColor: flag,
		ImportID:  t.ExternalID,
	}
}
