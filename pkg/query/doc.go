// Package query turns ad-hoc request filters into store queries and
// resolves them across related collections.
//
// The decoder parses the query-string mini-language: bare field filters,
// "|"/"+" joined same-entity OR/AND groups, $or/$and/$nor lists of
// independent single-field conditions, the "fields" selection directive,
// and per-kind comparison prefixes on values. Every referenced field is
// validated against the target entity's relationship tree, and all problems
// are collected into one combined error instead of failing on the first.
//
// The resolver executes decoded queries whose fields span entity types:
// each query unit runs independently against its own entity's collection,
// every matched document's owner chain is walked up the tree to the nearest
// root-entity ancestor, and the per-unit id buckets are intersected once
// all dispatched sub-operations have completed.
package query
