package query

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// walkConcurrency bounds the per-unit fan-out of collection queries and
// owner-chain walks
const walkConcurrency = 16

// Resolver executes decoded queries, fanning out across collections when a
// query's fields span entity types
type Resolver struct {
	store   store.Store
	metrics *observability.Metrics
}

// NewResolver creates a resolver over the given store. A nil metrics
// disables counters.
func NewResolver(st store.Store, metrics *observability.Metrics) *Resolver {
	return &Resolver{store: st, metrics: metrics}
}

// Execute runs a decoded query against the root entity. Root-only queries
// hit the root collection directly; queries spanning entity types go
// through the multi-collection resolution algorithm. A nil, nil return
// means no document matched.
func (r *Resolver) Execute(ctx context.Context, root *schema.Node, dec *Decoded) ([]store.Document, error) {
	if !dec.NeedsResolution(root) {
		docs, err := r.fetchRoot(ctx, root, dec.Filter, dec.Select)
		if err != nil {
			return nil, err
		}
		return docs, nil
	}
	return r.resolve(ctx, root, dec)
}

// resolve implements the multi-collection algorithm: every unit queries its
// own entity's collection and walks each match's owner chain up to the
// nearest root-entity ancestor; the per-unit id buckets are then
// intersected. Finalization never starts before every dispatched
// sub-operation has completed: the errgroup waits are the join barrier.
func (r *Resolver) resolve(ctx context.Context, root *schema.Node, dec *Decoded) ([]store.Document, error) {
	if r.metrics != nil {
		r.metrics.ResolverFanoutTotal.Inc()
	}

	buckets := make([]map[string]struct{}, len(dec.Units))
	g, gctx := errgroup.WithContext(ctx)
	for i, unit := range dec.Units {
		i, unit := i, unit
		g.Go(func() error {
			ids, err := r.resolveUnit(gctx, root, unit)
			if err != nil {
				return err
			}
			buckets[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := intersect(buckets)
	if len(ids) == 0 {
		return nil, nil
	}

	filter := store.IDIn(ids)
	filter.Groups = append(filter.Groups, dec.Residual.Groups...)
	return r.fetchRoot(ctx, root, filter, dec.Select)
}

// resolveUnit produces the unit's bucket of root-entity ids. OR units take
// the union of their members' results, AND units the intersection.
func (r *Resolver) resolveUnit(ctx context.Context, root *schema.Node, unit Unit) (map[string]struct{}, error) {
	memberSets := make([]map[string]struct{}, len(unit.Members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkConcurrency)
	for i, member := range unit.Members {
		i, member := i, member
		g.Go(func() error {
			set, err := r.resolveMember(gctx, root, member)
			if err != nil {
				return err
			}
			memberSets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if unit.Kind == UnitOr {
		union := make(map[string]struct{})
		for _, set := range memberSets {
			for id := range set {
				union[id] = struct{}{}
			}
		}
		return union, nil
	}
	ids := intersect(memberSets)
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// resolveMember queries one field's own collection with only that field's
// condition, then walks every match's owner chain; documents whose chains
// terminate at the root entity contribute their terminal id
func (r *Resolver) resolveMember(ctx context.Context, root *schema.Node, member Member) (map[string]struct{}, error) {
	docs, err := r.store.Collection(member.Node.Model.Collection).Find(ctx, member.Filter, nil)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkConcurrency)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			node, terminal, err := r.walkOwner(gctx, member.Node, doc)
			if err != nil {
				return err
			}
			if node.Model == root.Model && terminal.ID() != "" {
				mu.Lock()
				set[terminal.ID()] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// walkOwner follows the document's owner references up the relationship
// tree until no owner remains, no parent node exists, or the referenced
// owner is missing. The terminal pair identifies the claimed root.
func (r *Resolver) walkOwner(ctx context.Context, node *schema.Node, doc store.Document) (*schema.Node, store.Document, error) {
	current, currentDoc := node, doc
	for {
		ownerID := currentDoc.Owner()
		if ownerID == "" || current.Parent == nil {
			return current, currentDoc, nil
		}
		parentDoc, err := r.store.Collection(current.Parent.Model.Collection).FindByID(ctx, ownerID)
		if errors.Is(err, store.ErrNotFound) {
			return current, currentDoc, nil
		}
		if err != nil {
			return nil, nil, err
		}
		current, currentDoc = current.Parent, parentDoc
	}
}

// fetchRoot queries the root collection applying the tree's merged
// projection, the request's field selection, and the root's populate
// operation
func (r *Resolver) fetchRoot(ctx context.Context, root *schema.Node, filter store.Filter, selectFields []string) ([]store.Document, error) {
	opts := &store.Options{
		Projection: root.MergedProjection(),
		Select:     selectFields,
	}
	docs, err := r.store.Collection(root.Model.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if root.Populate != nil && len(docs) > 0 && len(selectFields) == 0 {
		if err := root.Populate(ctx, r.store, docs); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// intersect returns the ids present in every bucket
func intersect(buckets []map[string]struct{}) []string {
	if len(buckets) == 0 {
		return nil
	}
	var out []string
	for id := range buckets[0] {
		inAll := true
		for _, bucket := range buckets[1:] {
			if _, ok := bucket[id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, id)
		}
	}
	return out
}
