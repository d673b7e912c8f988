package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByID when no document has the given id
var ErrNotFound = errors.New("document not found")

// Reserved document fields maintained by the store
const (
	FieldID        = "id"
	FieldRev       = "rev"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldOwner     = "owner"
)

// Document is a schemaless record. Every stored document carries an "id"
// string, a numeric "rev", and createdAt/updatedAt timestamps.
type Document map[string]interface{}

// ID returns the document's identifier, or "" if unset
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Owner returns the id in the document's owner reference field, or ""
func (d Document) Owner() string {
	switch v := d[FieldOwner].(type) {
	case string:
		return v
	case Document:
		return v.ID()
	case map[string]interface{}:
		return Document(v).ID()
	}
	return ""
}

// Clone returns a shallow copy of the document
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Options controls how Find shapes its results
type Options struct {
	// Projection maps field names to include (true) or exclude (false).
	// If any field is included the projection is include-mode (the id is
	// always kept); otherwise excluded fields are stripped.
	Projection map[string]bool

	// Select restricts results to the named fields on top of Projection.
	// Built from the request's "fields" directive.
	Select []string
}

// Collection is one named set of documents
type Collection interface {
	// Find returns all documents matching the filter, shaped per opts.
	// A nil opts returns full documents.
	Find(ctx context.Context, filter Filter, opts *Options) ([]Document, error)

	// FindByID returns the document with the given id, or ErrNotFound
	FindByID(ctx context.Context, id string) (Document, error)

	// Insert stores a new document, assigning id, rev and timestamps,
	// and returns the stored form
	Insert(ctx context.Context, doc Document) (Document, error)

	// Update merges the partial document into the identified document,
	// bumping rev and updatedAt, and returns the merged form
	Update(ctx context.Context, id string, partial Document) (Document, error)

	// Remove deletes all documents matching the filter and reports how
	// many were deleted
	Remove(ctx context.Context, filter Filter) (int, error)
}

// Store provides access to named collections
type Store interface {
	Collection(name string) Collection
}

// Observer is notified after each collection operation. Used to feed
// operation metrics without coupling the store to a metrics registry.
type Observer func(collection, operation string, duration time.Duration, err error)
