package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencanvass/canvassd/pkg/store"
)

// RefPopulator builds a PopulateFunc that resolves the model's reference
// fields: each reference id (or array of ids) is replaced by the referenced
// document. Dangling references are left as their raw id rather than
// failing the whole result.
func RefPopulator(model *Model) PopulateFunc {
	if len(model.Refs) == 0 {
		return nil
	}
	return func(ctx context.Context, st store.Store, docs []store.Document) error {
		for _, doc := range docs {
			for field, collection := range model.Refs {
				if err := resolveRef(ctx, st.Collection(collection), doc, field); err != nil {
					return fmt.Errorf("populate %s.%s: %w", model.Name, field, err)
				}
			}
		}
		return nil
	}
}

func resolveRef(ctx context.Context, coll store.Collection, doc store.Document, field string) error {
	switch ref := doc[field].(type) {
	case string:
		if ref == "" {
			return nil
		}
		resolved, err := coll.FindByID(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		doc[field] = resolved
	case []interface{}:
		resolved := make([]interface{}, 0, len(ref))
		for _, member := range ref {
			id, ok := member.(string)
			if !ok || id == "" {
				resolved = append(resolved, member)
				continue
			}
			sub, err := coll.FindByID(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				resolved = append(resolved, member)
				continue
			}
			if err != nil {
				return err
			}
			resolved = append(resolved, sub)
		}
		doc[field] = resolved
	}
	return nil
}
