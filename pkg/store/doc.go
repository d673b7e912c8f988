// Package store defines the document store contract the rest of the
// application is written against, plus an in-memory implementation.
//
// The persistence engine is deliberately opaque: collections are reached
// through find/insert/update/remove-by-filter operations, documents are
// schemaless maps with a stable "id", and reference fields hold the ids of
// documents in other collections. The filter AST mirrors what the query
// decoder produces: a flat set of leaf conditions plus nested OR/AND/NOR
// groups.
package store
