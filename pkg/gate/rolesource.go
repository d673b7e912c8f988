package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencanvass/canvassd/pkg/privilege"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// StoreRoleSource reads role documents from the store. No caching: role
// edits take effect on the next request.
type StoreRoleSource struct {
	store store.Store
}

// NewStoreRoleSource creates a role source over the given store
func NewStoreRoleSource(st store.Store) *StoreRoleSource {
	return &StoreRoleSource{store: st}
}

// RoleByID fetches and decodes one role document
func (s *StoreRoleSource) RoleByID(ctx context.Context, id string) (*privilege.Role, error) {
	if id == "" {
		return nil, ErrRoleNotFound
	}
	doc, err := s.store.Collection(schema.CollRoles).FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading role %s: %w", id, err)
	}
	return privilege.RoleFromDocument(doc), nil
}
