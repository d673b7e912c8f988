// Package schema models the relationships between the application's
// document types.
//
// Every entity type has a Model (its collection name and field-kind table)
// and a canonical relationship tree of Nodes recording which entities are
// reachable through which field paths. Trees are composed once at process
// start: leaf entities (Address, ContactDetails, Role) build standalone
// trees, and composite entities mount copies of those trees as child
// branches. Mounting always deep-clones the branch so the same canonical
// subtree can live under multiple unrelated parents without the parent
// pointers aliasing.
//
// Trees are immutable after startup and shared read-only across requests.
// The path validator answers "which node declares this field" for the query
// decoder and the multi-collection resolver.
package schema
