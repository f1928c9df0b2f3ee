package posting

import "github.com/erp/posting/internal/domain/shared"

// DocumentStatus is the closed set of document states:
//
//	Draft -> Posted -> (Cancelled | Paid)
//
// Values exist only as the package variables below, so an unknown status
// cannot be constructed outside this package.
type DocumentStatus struct{ name string }

var (
	StatusDraft     = DocumentStatus{"DRAFT"}
	StatusPosted    = DocumentStatus{"POSTED"}
	StatusCancelled = DocumentStatus{"CANCELLED"}
	StatusPaid      = DocumentStatus{"PAID"}
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft:     {StatusPosted},
	StatusPosted:    {StatusCancelled, StatusPaid},
	StatusCancelled: {},
	StatusPaid:      {},
}

// String returns the persisted name
func (s DocumentStatus) String() string {
	return s.name
}

// MarshalText implements encoding.TextMarshaler
func (s DocumentStatus) MarshalText() ([]byte, error) {
	return []byte(s.name), nil
}

// IsTerminal reports whether no transition leaves s
func (s DocumentStatus) IsTerminal() bool {
	return len(documentTransitions[s]) == 0
}

// CanTransitionTo reports whether next directly follows s
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range documentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseDocumentStatus converts a persisted name back to a status
func ParseDocumentStatus(name string) (DocumentStatus, error) {
	for s := range documentTransitions {
		if s.name == name {
			return s, nil
		}
	}
	return DocumentStatus{}, shared.Errorf(shared.ErrInvalidInput, "unknown document status %q", name)
}
