package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

const (
	// FieldsKey selects response fields; its value is space-separated
	FieldsKey = "fields"

	orJoin  = "|"
	andJoin = "+"

	opOr  = "$or"
	opAnd = "$and"
	opNor = "$nor"
	opNot = "$not"
)

// UnitKind classifies a resolver work item
type UnitKind int

const (
	// UnitField is a single-field condition
	UnitField UnitKind = iota
	// UnitOr is an OR group: a document qualifies through any member
	UnitOr
	// UnitAnd is an AND group: a document qualifies through all members
	UnitAnd
)

// Member is one field's condition within a unit, bound to the tree node
// whose entity declares the field
type Member struct {
	Field  string
	Node   *schema.Node
	Filter store.Filter
}

// Unit is one independently resolvable part of a decoded query
type Unit struct {
	Key     string
	Kind    UnitKind
	Members []Member
}

// Decoded is the transient result of decoding one request's query.
// Constructed at request start, discarded once the response is produced.
type Decoded struct {
	// Filter is the complete structured filter, usable directly against
	// the root entity's collection
	Filter store.Filter

	// Select lists the requested response fields ("fields" directive)
	Select []string

	// FieldNodes maps every referenced field to the tree node whose
	// entity declares it
	FieldNodes map[string]*schema.Node

	// Units are the resolver work items, one per top-level query entry.
	// $nor groups are excluded: they are root-only and carried in
	// Residual.
	Units []Unit

	// Residual holds root-only conditions ($nor groups) applied at the
	// resolver's final fetch
	Residual store.Filter
}

// NeedsResolution reports whether any referenced field belongs to an
// entity other than the root, requiring the multi-collection resolver
func (d *Decoded) NeedsResolution(root *schema.Node) bool {
	for _, node := range d.FieldNodes {
		if node != root {
			return true
		}
	}
	return false
}

// Decode parses a flat map of query parameters against the root entity's
// relationship tree. With checkSubtree, filter fields may belong to any
// descendant entity; field selection is always validated against the root
// entity only. All detected problems are returned as one combined error.
func Decode(params map[string]string, root *schema.Node, checkSubtree bool) (*Decoded, error) {
	dec := &Decoded{
		FieldNodes: make(map[string]*schema.Node),
	}
	opts := schema.PathTypeOptions{ExcludePaths: root.HiddenFields()}
	var problems []string

	// Sorted iteration keeps combined error messages deterministic
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		switch {
		case key == FieldsKey:
			problems = append(problems, dec.decodeFields(value, root, opts)...)
		case key == opNot:
			problems = append(problems, fmt.Sprintf("the %q operator is not supported", opNot))
		case key == opOr || key == opAnd || key == opNor:
			problems = append(problems, dec.decodeLogical(key, value, root, opts, checkSubtree)...)
		case strings.Contains(key, orJoin) || strings.Contains(key, andJoin):
			problems = append(problems, dec.decodeJoin(key, value, root, opts, checkSubtree)...)
		default:
			problems = append(problems, dec.decodeField(key, value, root, opts, checkSubtree)...)
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return dec, nil
}

func (d *Decoded) decodeFields(value string, root *schema.Node, opts schema.PathTypeOptions) []string {
	var problems []string
	for _, name := range strings.Fields(value) {
		// Selection applies at the top level only
		if root.ValidPath(name, opts, false) == nil {
			problems = append(problems, fmt.Sprintf("unknown field %q in %q", name, FieldsKey))
			continue
		}
		d.Select = append(d.Select, name)
	}
	return problems
}

func (d *Decoded) decodeField(key, value string, root *schema.Node, opts schema.PathTypeOptions, checkSubtree bool) []string {
	node := root.ValidPath(key, opts, checkSubtree)
	if node == nil {
		return []string{fmt.Sprintf("unknown field %q", key)}
	}

	cond, err := buildCond(node, key, value)
	if err != nil {
		return []string{err.Error()}
	}

	d.Filter = d.Filter.WithCond(cond)
	d.FieldNodes[key] = node
	d.Units = append(d.Units, Unit{
		Key:  key,
		Kind: UnitField,
		Members: []Member{{
			Field:  key,
			Node:   node,
			Filter: store.Filter{Conds: []store.Cond{cond}},
		}},
	})
	return nil
}

func (d *Decoded) decodeJoin(key, value string, root *schema.Node, opts schema.PathTypeOptions, checkSubtree bool) []string {
	hasOr := strings.Contains(key, orJoin)
	hasAnd := strings.Contains(key, andJoin)
	if hasOr && hasAnd {
		return []string{fmt.Sprintf("cannot mix %q and %q in one key: %q", orJoin, andJoin, key)}
	}

	sep := orJoin
	kind := UnitOr
	groupOp := store.GroupOr
	if hasAnd {
		sep = andJoin
		kind = UnitAnd
		groupOp = store.GroupAnd
	}

	var problems []string
	names := strings.Split(key, sep)
	nodes := make([]*schema.Node, 0, len(names))
	for _, name := range names {
		if name == "" {
			problems = append(problems, fmt.Sprintf("empty field name in key %q", key))
			continue
		}
		node := root.ValidPath(name, opts, checkSubtree)
		if node == nil {
			problems = append(problems, fmt.Sprintf("unknown field %q", name))
			continue
		}
		nodes = append(nodes, node)
	}
	if len(problems) > 0 {
		return problems
	}

	// Every field in a joined group must resolve to the same model
	for _, node := range nodes[1:] {
		if node != nodes[0] {
			return []string{fmt.Sprintf(
				"model mismatch in key %q: fields resolve to different models (%q, %q)",
				key, nodes[0].Model.Name, node.Model.Name,
			)}
		}
	}

	unit := Unit{Key: key, Kind: kind}
	var clauses []store.Filter
	for i, name := range names {
		cond, err := buildCond(nodes[i], name, value)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		clause := store.Filter{Conds: []store.Cond{cond}}
		clauses = append(clauses, clause)
		unit.Members = append(unit.Members, Member{Field: name, Node: nodes[i], Filter: clause})
		d.FieldNodes[name] = nodes[i]
	}
	if len(problems) > 0 {
		return problems
	}

	d.Filter = d.Filter.WithGroup(store.Group{Op: groupOp, Clauses: clauses})
	d.Units = append(d.Units, unit)
	return nil
}

func (d *Decoded) decodeLogical(key, value string, root *schema.Node, opts schema.PathTypeOptions, checkSubtree bool) []string {
	var problems []string
	var clauses []store.Filter
	unit := Unit{Key: key}
	switch key {
	case opOr:
		unit.Kind = UnitOr
	case opAnd:
		unit.Kind = UnitAnd
	}

	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			problems = append(problems, fmt.Sprintf("malformed pair %q in %q", pair, key))
			continue
		}
		// Members are independent single-field conditions only
		if strings.Contains(name, orJoin) || strings.Contains(name, andJoin) {
			problems = append(problems, fmt.Sprintf("multi-field groups are not supported inside %q: %q", key, name))
			continue
		}

		node := root.ValidPath(name, opts, checkSubtree)
		if node == nil {
			problems = append(problems, fmt.Sprintf("unknown field %q in %q", name, key))
			continue
		}
		// $nor has no positive resolution across collections; restrict
		// its members to the root entity
		if key == opNor && node != root {
			problems = append(problems, fmt.Sprintf("field %q in %q must belong to the root model", name, key))
			continue
		}

		cond, err := buildCond(node, name, raw)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		clause := store.Filter{Conds: []store.Cond{cond}}
		clauses = append(clauses, clause)
		d.FieldNodes[name] = node
		if key != opNor {
			unit.Members = append(unit.Members, Member{Field: name, Node: node, Filter: clause})
		}
	}
	if len(problems) > 0 {
		return problems
	}

	var groupOp store.GroupOp
	switch key {
	case opOr:
		groupOp = store.GroupOr
	case opAnd:
		groupOp = store.GroupAnd
	default:
		groupOp = store.GroupNor
	}
	group := store.Group{Op: groupOp, Clauses: clauses}
	d.Filter = d.Filter.WithGroup(group)

	if key == opNor {
		d.Residual = d.Residual.WithGroup(group)
	} else {
		d.Units = append(d.Units, unit)
	}
	return nil
}

// buildCond turns one raw query value into a store condition, dispatching
// on the declared kind of the matched field
func buildCond(node *schema.Node, field, raw string) (store.Cond, error) {
	name := leafName(field)
	kind, _ := node.Model.FieldKind(name)

	switch kind {
	case schema.KindNumeric:
		return numericCond(name, raw)
	case schema.KindID:
		return store.Cond{Field: name, Op: store.OpEq, Value: raw}, nil
	case schema.KindBool, schema.KindTime:
		return store.Cond{Field: name, Op: store.OpEq, Value: raw}, nil
	default:
		return textCond(name, raw), nil
	}
}

func numericCond(name, raw string) (store.Cond, error) {
	op := store.OpEq
	rest := raw
	switch {
	case strings.HasPrefix(raw, "!"):
		op, rest = store.OpNe, raw[1:]
	case strings.HasPrefix(raw, ">="):
		op, rest = store.OpGte, raw[2:]
	case strings.HasPrefix(raw, ">"):
		op, rest = store.OpGt, raw[1:]
	case strings.HasPrefix(raw, "<="):
		op, rest = store.OpLte, raw[2:]
	case strings.HasPrefix(raw, "<"):
		op, rest = store.OpLt, raw[1:]
	}

	value, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return store.Cond{}, fmt.Errorf("invalid numeric value %q for field %q", raw, name)
	}
	return store.Cond{Field: name, Op: op, Value: value}, nil
}

func textCond(name, raw string) store.Cond {
	switch {
	case raw == "!~":
		return store.Cond{Field: name, Op: store.OpNotBlank}
	case raw == "~":
		return store.Cond{Field: name, Op: store.OpBlank}
	case strings.HasPrefix(raw, "!"):
		return store.Cond{Field: name, Op: store.OpNotContains, Value: raw[1:]}
	default:
		return store.Cond{Field: name, Op: store.OpContains, Value: raw}
	}
}

// leafName returns the last segment of a dotted field name
func leafName(field string) string {
	if i := strings.LastIndex(field, "."); i >= 0 {
		return field[i+1:]
	}
	return field
}
