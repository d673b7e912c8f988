package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/store"
)

// Collection holding persisted audit events.
const Collection = "auditEvents"

// Trail records audit events.
type Trail interface {
	Record(ctx context.Context, event Event) error
}

// StoreTrail persists events as documents. Recording failures are logged
// and swallowed so the trail never fails the request it describes.
type StoreTrail struct {
	events store.Collection
	log    *observability.Logger
}

// NewStoreTrail creates a trail backed by the given store.
func NewStoreTrail(st store.Store, log *observability.Logger) *StoreTrail {
	return &StoreTrail{events: st.Collection(Collection), log: log}
}

func (t *StoreTrail) Record(ctx context.Context, event Event) error {
	doc := store.Document{
		"type":   string(event.Type),
		"status": string(event.Status),
	}
	setIf := func(key, value string) {
		if value != "" {
			doc[key] = value
		}
	}
	setIf("principal", event.Principal)
	setIf("username", event.Username)
	setIf("resource", event.Resource)
	setIf("resourceId", event.ResourceID)
	setIf("requestId", event.RequestID)
	setIf("method", event.Method)
	setIf("path", event.Path)
	setIf("remoteAddr", event.RemoteAddr)
	setIf("detail", event.Detail)
	if event.StatusCode != 0 {
		doc["statusCode"] = float64(event.StatusCode)
	}
	// Numeric timestamp alongside the store's createdAt so old events
	// can be pruned with a range filter.
	doc["recordedAt"] = float64(time.Now().Unix())

	if _, err := t.events.Insert(ctx, doc); err != nil {
		t.log.WithError(err).WithField("type", string(event.Type)).Warn("failed to record audit event")
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Prune removes events recorded before the cutoff and reports how many
// were deleted.
func (t *StoreTrail) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	filter := store.Filter{Conds: []store.Cond{{
		Field: "recordedAt",
		Op:    store.OpLt,
		Value: float64(cutoff.Unix()),
	}}}
	return t.events.Remove(ctx, filter)
}

// NopTrail discards every event. Used when auditing is disabled.
type NopTrail struct{}

func (NopTrail) Record(context.Context, Event) error { return nil }
