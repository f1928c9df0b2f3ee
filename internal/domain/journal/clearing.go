package journal

import (
	"strings"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clearing settles a set of open lines against each other. Amounts never
// change; the lines only receive the clearing ID and timestamp.
type Clearing struct {
	ID        uuid.UUID
	Reference string
	AccountID uuid.UUID
	PartnerID uuid.UUID
	ClearedAt time.Time
	LineIDs   []uuid.UUID
}

// ClearingItem points at one line of a loaded entry
type ClearingItem struct {
	Entry  *JournalEntry
	LineID uuid.UUID
}

// Clear stamps the given lines with a new clearing. The lines must belong
// to booked (non-draft) entries, be open, share account and partner, and net
// to zero within tolerance. Each owning entry moves to a new version so a
// concurrent reversal of it fails its version check.
func Clear(reference string, items []ClearingItem, tolerance decimal.Decimal) (*Clearing, error) {
	if len(items) < 2 {
		return nil, shared.Errorf(shared.ErrInvalidInput, "clearing needs at least two lines")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "clearing reference is required")
	}

	lines := make([]*JournalEntryLine, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.LineID]; dup {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %s listed twice", it.LineID)
		}
		seen[it.LineID] = struct{}{}

		if it.Entry.Status == StatusDraft {
			return nil, shared.Errorf(shared.ErrInvalidState, "entry %s is not posted", it.Entry.ID)
		}
		line, ok := it.Entry.Line(it.LineID)
		if !ok {
			return nil, shared.Errorf(shared.ErrNotFound, "line %s not found in entry %s", it.LineID, it.Entry.ID)
		}
		if !line.IsOpen() {
			return nil, shared.Errorf(shared.ErrInvalidState, "line %s is already cleared", line.ID)
		}
		if line.PartnerID == nil {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %s has no business partner", line.ID)
		}
		lines = append(lines, line)
	}

	first := lines[0]
	net := decimal.Zero
	for _, l := range lines {
		if l.AccountID != first.AccountID {
			return nil, shared.Errorf(shared.ErrClearingMismatch, "lines span different accounts")
		}
		if *l.PartnerID != *first.PartnerID {
			return nil, shared.Errorf(shared.ErrClearingMismatch, "lines span different business partners")
		}
		net = net.Add(l.SignedAmount())
	}
	if net.Abs().GreaterThan(tolerance) {
		return nil, shared.Errorf(shared.ErrClearingMismatch, "lines net to %s, tolerance %s", net.StringFixed(2), tolerance.StringFixed(2))
	}

	c := &Clearing{
		ID:        uuid.New(),
		Reference: reference,
		AccountID: first.AccountID,
		PartnerID: *first.PartnerID,
		ClearedAt: time.Now(),
		LineIDs:   make([]uuid.UUID, 0, len(lines)),
	}
	for _, l := range lines {
		l.ClearingID = &c.ID
		at := c.ClearedAt
		l.ClearedAt = &at
		c.LineIDs = append(c.LineIDs, l.ID)
	}
	for _, e := range ClearedEntries(items) {
		e.IncrementVersion()
	}
	return c, nil
}

// ClearedEntries returns the distinct entries owning items, in item order
func ClearedEntries(items []ClearingItem) []*JournalEntry {
	seen := make(map[uuid.UUID]bool, len(items))
	out := make([]*JournalEntry, 0, len(items))
	for _, it := range items {
		if seen[it.Entry.ID] {
			continue
		}
		seen[it.Entry.ID] = true
		out = append(out, it.Entry)
	}
	return out
}
