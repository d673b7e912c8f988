// Package api exposes the REST surface of the canvassing backend.
//
// Every entity type is served by the same generic resource handlers,
// parameterized by its relationship tree, its privilege resource category
// and its collection name. Handlers run behind the access gate; within a
// handler the caller's role decides the operation's scope (all objects,
// one object by id, or the caller's own objects) via its privilege masks.
package api
