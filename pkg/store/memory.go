package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process document store. It is safe for concurrent use and
// backs both the binary's default configuration and the test suite.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	observer    Observer
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Document),
	}
}

// SetObserver installs an operation observer (e.g. for metrics)
func (m *Memory) SetObserver(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = obs
}

// Collection returns the named collection, creating it on first use
func (m *Memory) Collection(name string) Collection {
	return &memoryCollection{store: m, name: name}
}

func (m *Memory) docs(name string) map[string]Document {
	docs, ok := m.collections[name]
	if !ok {
		docs = make(map[string]Document)
		m.collections[name] = docs
	}
	return docs
}

func (m *Memory) observe(collection, operation string, start time.Time, err error) {
	if m.observer != nil {
		m.observer(collection, operation, time.Since(start), err)
	}
}

type memoryCollection struct {
	store *Memory
	name  string
}

func (c *memoryCollection) Find(ctx context.Context, filter Filter, opts *Options) ([]Document, error) {
	start := time.Now()
	defer func() { c.store.observe(c.name, "find", start, nil) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var out []Document
	for _, doc := range c.store.docs(c.name) {
		if Match(doc, filter) {
			out = append(out, shape(doc, opts))
		}
	}
	return out, nil
}

func (c *memoryCollection) FindByID(ctx context.Context, id string) (Document, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	doc, ok := c.store.docs(c.name)[id]
	if !ok {
		c.store.observe(c.name, "findById", start, ErrNotFound)
		return nil, ErrNotFound
	}
	c.store.observe(c.name, "findById", start, nil)
	return doc.Clone(), nil
}

func (c *memoryCollection) Insert(ctx context.Context, doc Document) (Document, error) {
	start := time.Now()
	defer func() { c.store.observe(c.name, "insert", start, nil) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := doc.Clone()
	if stored.ID() == "" {
		stored[FieldID] = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	stored[FieldRev] = float64(0)
	stored[FieldCreatedAt] = now
	stored[FieldUpdatedAt] = now

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.docs(c.name)[stored.ID()] = stored

	return stored.Clone(), nil
}

func (c *memoryCollection) Update(ctx context.Context, id string, partial Document) (Document, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	doc, ok := c.store.docs(c.name)[id]
	if !ok {
		c.store.observe(c.name, "update", start, ErrNotFound)
		return nil, ErrNotFound
	}

	merged := doc.Clone()
	for k, v := range partial {
		// The store owns identity and bookkeeping fields
		if k == FieldID || k == FieldRev || k == FieldCreatedAt || k == FieldUpdatedAt {
			continue
		}
		merged[k] = v
	}
	if rev, ok := asNumber(doc[FieldRev]); ok {
		merged[FieldRev] = rev + 1
	}
	merged[FieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)

	c.store.docs(c.name)[id] = merged
	c.store.observe(c.name, "update", start, nil)
	return merged.Clone(), nil
}

func (c *memoryCollection) Remove(ctx context.Context, filter Filter) (int, error) {
	start := time.Now()
	defer func() { c.store.observe(c.name, "remove", start, nil) }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.docs(c.name)
	removed := 0
	for id, doc := range docs {
		if Match(doc, filter) {
			delete(docs, id)
			removed++
		}
	}
	return removed, nil
}

// shape applies projection and field selection to a copy of the document
func shape(doc Document, opts *Options) Document {
	out := doc.Clone()
	if opts == nil {
		return out
	}

	includeMode := false
	for _, include := range opts.Projection {
		if include {
			includeMode = true
			break
		}
	}

	if includeMode {
		kept := Document{FieldID: out[FieldID]}
		for field, include := range opts.Projection {
			if include {
				copyPath(out, kept, field)
			}
		}
		out = kept
	} else {
		for field, include := range opts.Projection {
			if !include {
				deletePath(out, field)
			}
		}
	}

	if len(opts.Select) > 0 {
		kept := Document{FieldID: out[FieldID]}
		for _, field := range opts.Select {
			copyPath(out, kept, field)
		}
		out = kept
	}

	return out
}

// copyPath copies a possibly dotted field from src into dst
func copyPath(src, dst Document, field string) {
	head, rest, nested := strings.Cut(field, ".")
	value, ok := src[head]
	if !ok {
		return
	}
	if !nested {
		dst[head] = value
		return
	}
	sub, ok := asDocument(value)
	if !ok {
		return
	}
	target, ok := asDocument(dst[head])
	if !ok {
		target = Document{}
		dst[head] = target
	}
	copyPath(sub, target, rest)
}

// deletePath removes a possibly dotted field from the document
func deletePath(doc Document, field string) {
	head, rest, nested := strings.Cut(field, ".")
	if !nested {
		delete(doc, head)
		return
	}
	if sub, ok := asDocument(doc[head]); ok {
		cloned := sub.Clone()
		deletePath(cloned, rest)
		doc[head] = cloned
	}
}

func asDocument(v interface{}) (Document, bool) {
	switch d := v.(type) {
	case Document:
		return d, true
	case map[string]interface{}:
		return Document(d), true
	}
	return nil, false
}
