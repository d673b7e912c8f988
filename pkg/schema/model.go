package schema

import "github.com/opencanvass/canvassd/pkg/store"

// Kind classifies a field for query value decoding. The decoder dispatches
// on Kind when turning a raw query value into a store condition.
type Kind int

const (
	// KindText fields match case-insensitively as substrings/patterns
	KindText Kind = iota
	// KindNumeric fields support the !, >, >=, <, <= comparison prefixes
	KindNumeric
	// KindID fields are document references compared by exact equality
	KindID
	// KindBool fields compare by exact equality on "true"/"false"
	KindBool
	// KindTime fields hold RFC3339 strings and compare by exact equality
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindID:
		return "id"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	}
	return "unknown"
}

// Model describes one entity type: its collection, its queryable fields and
// their kinds, its reference fields, and which fields are never exposed
// through the query surface.
type Model struct {
	// Name is the entity's singular display name, e.g. "person"
	Name string

	// Collection is the store collection documents live in
	Collection string

	// Fields maps field names to their kinds. Internal bookkeeping fields
	// (id, rev, createdAt, updatedAt) are implicit on every model.
	Fields map[string]Kind

	// Refs maps reference field names to the collection they point into.
	// Used by the generic populate operation.
	Refs map[string]string

	// Unique lists fields whose values must be unique within the
	// collection (enforced at create time)
	Unique []string

	// Hidden lists fields that are stored but never queryable or
	// returned, e.g. credential hashes
	Hidden []string
}

// FieldKind returns the kind of a field, including the implicit internal
// fields, with ok reporting whether the model declares it at all
func (m *Model) FieldKind(name string) (Kind, bool) {
	switch name {
	case store.FieldID, store.FieldOwner:
		return KindID, true
	case store.FieldRev:
		return KindNumeric, true
	case store.FieldCreatedAt, store.FieldUpdatedAt:
		return KindTime, true
	}
	kind, ok := m.Fields[name]
	return kind, ok
}

// IsVersionID reports whether the field is the internal identifier or
// version field
func IsVersionID(name string) bool {
	return name == store.FieldID || name == store.FieldRev
}

// IsTimestamp reports whether the field is an internal timestamp field
func IsTimestamp(name string) bool {
	return name == store.FieldCreatedAt || name == store.FieldUpdatedAt
}
