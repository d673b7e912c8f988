package store

// Op is a leaf comparison operator
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	// OpContains matches when the field's text matches the value as a
	// case-insensitive pattern (plain values behave as substring match)
	OpContains
	// OpNotContains matches when the field's text does not contain the
	// value, case-insensitively
	OpNotContains
	// OpBlank matches a missing, empty or all-whitespace field
	OpBlank
	// OpNotBlank matches any present, non-blank field
	OpNotBlank
	// OpIn matches when the field equals any member of a []string value
	OpIn
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpContains:
		return "contains"
	case OpNotContains:
		return "not-contains"
	case OpBlank:
		return "blank"
	case OpNotBlank:
		return "not-blank"
	case OpIn:
		return "in"
	}
	return "unknown"
}

// Cond is a single field comparison
type Cond struct {
	Field string
	Op    Op
	Value interface{}
}

// GroupOp is the logical operator of a condition group
type GroupOp int

const (
	GroupOr GroupOp = iota
	GroupAnd
	GroupNor
)

func (g GroupOp) String() string {
	switch g {
	case GroupOr:
		return "$or"
	case GroupAnd:
		return "$and"
	case GroupNor:
		return "$nor"
	}
	return "unknown"
}

// Group combines independent clauses under one logical operator
type Group struct {
	Op      GroupOp
	Clauses []Filter
}

// Filter selects documents. Leaf conditions are implicitly ANDed with each
// other and with every group. An empty filter matches everything.
type Filter struct {
	Conds  []Cond
	Groups []Group
}

// Eq builds a single-condition equality filter
func Eq(field string, value interface{}) Filter {
	return Filter{Conds: []Cond{{Field: field, Op: OpEq, Value: value}}}
}

// ByID builds a filter matching one document by id
func ByID(id string) Filter {
	return Eq(FieldID, id)
}

// IDIn builds a filter matching documents whose id is in the given set
func IDIn(ids []string) Filter {
	return Filter{Conds: []Cond{{Field: FieldID, Op: OpIn, Value: ids}}}
}

// IsEmpty reports whether the filter matches everything
func (f Filter) IsEmpty() bool {
	return len(f.Conds) == 0 && len(f.Groups) == 0
}

// WithCond returns a copy of the filter with one more leaf condition
func (f Filter) WithCond(c Cond) Filter {
	out := f
	out.Conds = append(append([]Cond(nil), f.Conds...), c)
	return out
}

// WithGroup returns a copy of the filter with one more group
func (f Filter) WithGroup(g Group) Filter {
	out := f
	out.Groups = append(append([]Group(nil), f.Groups...), g)
	return out
}
