package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/opencanvass/canvassd/pkg/gate"
	"github.com/opencanvass/canvassd/pkg/httputil"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/privilege"
	"github.com/opencanvass/canvassd/pkg/query"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// listResource handles GET /{resource}. The request's query parameters are
// decoded against the entity's relationship tree; queries touching related
// entity types are resolved across collections. An empty result is 204.
func (s *Server) listResource(w http.ResponseWriter, r *http.Request, rr resourceRoutes) {
	ctx := r.Context()
	role := gate.CallerRole(ctx)
	principal := gate.CallerPrincipal(ctx)

	params := httputil.QueryParams(r)
	delete(params, gate.TokenQueryParam)

	dec, err := query.Decode(params, rr.node, true)
	if err != nil {
		if s.metrics != nil {
			s.metrics.QueryDecodeErrorsTotal.Inc()
		}
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	switch {
	case role.Allows(rr.res, privilege.ScopeAll, privilege.Read):
		// unrestricted
	case role.Allows(rr.res, privilege.ScopeOwn, privilege.Read):
		restrictToOwner(dec, rr, principal.ID)
	default:
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotAuthorized, "not authorized for this operation")
		return
	}

	docs, err := s.resolver.Execute(ctx, rr.node, dec)
	if err != nil {
		observability.FromContext(ctx).WithError(err).WithField("resource", rr.path).Error("query failed")
		httputil.WriteInternalError(w, err, s.development)
		return
	}
	if len(docs) == 0 {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteSuccess(w, docs)
}

// getResource handles GET /{resource}/{id}
func (s *Server) getResource(w http.ResponseWriter, r *http.Request, rr resourceRoutes) {
	ctx := r.Context()
	role := gate.CallerRole(ctx)
	principal := gate.CallerPrincipal(ctx)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	canAll := role.Allows(rr.res, privilege.ScopeAll, privilege.Read) ||
		role.Allows(rr.res, privilege.ScopeOne, privilege.Read)
	canOwn := role.Allows(rr.res, privilege.ScopeOwn, privilege.Read)
	if !canAll && !canOwn {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotAuthorized, "not authorized for this operation")
		return
	}

	doc, err := s.fetchOne(w, r, rr, id)
	if doc == nil || err != nil {
		return
	}
	if !canAll && !isOwner(doc, rr, principal.ID) {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotOwner, "resource does not belong to the caller")
		return
	}

	docs := []store.Document{doc}
	if rr.node.Populate != nil {
		if err := rr.node.Populate(ctx, s.store, docs); err != nil {
			httputil.WriteInternalError(w, err, s.development)
			return
		}
	}
	httputil.WriteSuccess(w, conceal(docs[0], rr.node))
}

// createResource handles POST /{resource}
func (s *Server) createResource(w http.ResponseWriter, r *http.Request, rr resourceRoutes) {
	ctx := r.Context()
	role := gate.CallerRole(ctx)
	principal := gate.CallerPrincipal(ctx)

	var doc store.Document
	if !httputil.ParseJSONOrError(w, r, &doc) {
		return
	}

	switch {
	case role.Allows(rr.res, privilege.ScopeAll, privilege.Create):
		// unrestricted
	case role.Allows(rr.res, privilege.ScopeOwn, privilege.Create):
		// Own-scope writers always create on their own behalf
		doc[store.FieldOwner] = principal.ID
	default:
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotAuthorized, "not authorized for this operation")
		return
	}

	if err := validateFields(rr.node, doc); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if conflict := s.uniqueConflict(r, rr, doc, ""); conflict != "" {
		httputil.WriteConflict(w, conflict)
		return
	}

	created, err := s.store.Collection(rr.node.Model.Collection).Insert(ctx, doc)
	if err != nil {
		httputil.WriteInternalError(w, err, s.development)
		return
	}
	httputil.WriteCreated(w, conceal(created, rr.node))
}

// updateResource handles PUT and PATCH /{resource}/{id}
func (s *Server) updateResource(w http.ResponseWriter, r *http.Request, rr resourceRoutes) {
	ctx := r.Context()
	role := gate.CallerRole(ctx)
	principal := gate.CallerPrincipal(ctx)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var partial store.Document
	if !httputil.ParseJSONOrError(w, r, &partial) {
		return
	}
	if err := validateFields(rr.node, partial); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	canAll := role.Allows(rr.res, privilege.ScopeAll, privilege.Update) ||
		role.Allows(rr.res, privilege.ScopeOne, privilege.Update)
	canOwn := role.Allows(rr.res, privilege.ScopeOwn, privilege.Update)
	if !canAll && !canOwn {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotAuthorized, "not authorized for this operation")
		return
	}

	existing, err := s.fetchOne(w, r, rr, id)
	if existing == nil || err != nil {
		return
	}
	if !canAll && !isOwner(existing, rr, principal.ID) {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotOwner, "resource does not belong to the caller")
		return
	}
	if conflict := s.uniqueConflict(r, rr, partial, id); conflict != "" {
		httputil.WriteConflict(w, conflict)
		return
	}

	updated, err := s.store.Collection(rr.node.Model.Collection).Update(ctx, id, partial)
	if err != nil {
		httputil.WriteInternalError(w, err, s.development)
		return
	}
	httputil.WriteSuccess(w, conceal(updated, rr.node))
}

// deleteResource handles DELETE /{resource}/{id}
func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request, rr resourceRoutes) {
	ctx := r.Context()
	role := gate.CallerRole(ctx)
	principal := gate.CallerPrincipal(ctx)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	canAll := role.Allows(rr.res, privilege.ScopeAll, privilege.Delete) ||
		role.Allows(rr.res, privilege.ScopeOne, privilege.Delete)
	canOwn := role.Allows(rr.res, privilege.ScopeOwn, privilege.Delete)
	if !canAll && !canOwn {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotAuthorized, "not authorized for this operation")
		return
	}

	existing, err := s.fetchOne(w, r, rr, id)
	if existing == nil || err != nil {
		return
	}
	if !canAll && !isOwner(existing, rr, principal.ID) {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotOwner, "resource does not belong to the caller")
		return
	}

	if _, err := s.store.Collection(rr.node.Model.Collection).Remove(ctx, store.ByID(id)); err != nil {
		httputil.WriteInternalError(w, err, s.development)
		return
	}
	httputil.WriteNoContent(w)
}

// batchCreateResource handles POST /{resource}/batch. The whole batch is
// rejected up front if any element fails validation; elements are then
// inserted in order.
func (s *Server) batchCreateResource(w http.ResponseWriter, r *http.Request, rr resourceRoutes) {
	ctx := r.Context()
	role := gate.CallerRole(ctx)

	if !role.Allows(rr.res, privilege.ScopeAll, privilege.Batch) {
		httputil.WriteAppError(w, http.StatusForbidden, gate.CodeNotAuthorized, "not authorized for this operation")
		return
	}

	var docs []store.Document
	if !httputil.ParseJSONOrError(w, r, &docs) {
		return
	}
	if len(docs) == 0 {
		httputil.WriteBadRequest(w, "empty batch")
		return
	}

	for i, doc := range docs {
		if err := validateFields(rr.node, doc); err != nil {
			httputil.WriteBadRequest(w, fmt.Sprintf("element %d: %s", i, err.Error()))
			return
		}
		if conflict := s.uniqueConflict(r, rr, doc, ""); conflict != "" {
			httputil.WriteConflict(w, fmt.Sprintf("element %d: %s", i, conflict))
			return
		}
	}

	coll := s.store.Collection(rr.node.Model.Collection)
	created := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		inserted, err := coll.Insert(ctx, doc)
		if err != nil {
			httputil.WriteInternalError(w, err, s.development)
			return
		}
		created = append(created, conceal(inserted, rr.node))
	}
	httputil.WriteCreated(w, created)
}

// fetchOne loads a document by id, writing the canonical not-found response
// on a miss. A nil document means the response has been written.
func (s *Server) fetchOne(w http.ResponseWriter, r *http.Request, rr resourceRoutes, id string) (store.Document, error) {
	doc, err := s.store.Collection(rr.node.Model.Collection).FindByID(r.Context(), id)
	if err == store.ErrNotFound {
		httputil.WriteNotFound(w, fmt.Sprintf("Unknown %s identifier", rr.node.Model.Name))
		return nil, nil
	}
	if err != nil {
		httputil.WriteInternalError(w, err, s.development)
		return nil, err
	}
	return doc, nil
}

// restrictToOwner narrows a decoded query to the caller's own documents.
// The condition is attached both to the direct filter and as a residual
// group so it also applies after cross-collection resolution.
func restrictToOwner(dec *query.Decoded, rr resourceRoutes, principalID string) {
	field := store.FieldOwner
	if rr.res == privilege.ResourceUsers {
		field = store.FieldID
	}
	cond := store.Cond{Field: field, Op: store.OpEq, Value: principalID}
	dec.Filter = dec.Filter.WithCond(cond)
	dec.Residual = dec.Residual.WithGroup(store.Group{
		Op:      store.GroupAnd,
		Clauses: []store.Filter{{Conds: []store.Cond{cond}}},
	})
}

// isOwner reports whether the document belongs to the principal. A user
// owns their own user document; everything else is owned through the owner
// reference.
func isOwner(doc store.Document, rr resourceRoutes, principalID string) bool {
	if rr.res == privilege.ResourceUsers {
		return doc.ID() == principalID
	}
	return doc.Owner() == principalID
}

// validateFields rejects body fields the entity does not declare. Embedded
// child branches are addressed by their mount path.
func validateFields(node *schema.Node, doc store.Document) error {
	children := make(map[string]bool, len(node.Children))
	for _, child := range node.Children {
		children[child.Path] = true
	}

	var unknown []string
	for field := range doc {
		if _, ok := node.Model.FieldKind(field); ok {
			continue
		}
		if children[field] {
			continue
		}
		unknown = append(unknown, field)
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
}

// uniqueConflict checks the entity's unique fields against the store.
// excludeID skips the document being updated.
func (s *Server) uniqueConflict(r *http.Request, rr resourceRoutes, doc store.Document, excludeID string) string {
	ctx := r.Context()
	coll := s.store.Collection(rr.node.Model.Collection)
	for _, field := range rr.node.Model.Unique {
		value, ok := doc[field]
		if !ok {
			continue
		}
		matches, err := coll.Find(ctx, store.Eq(field, value), nil)
		if err != nil {
			continue
		}
		for _, match := range matches {
			if match.ID() != excludeID {
				return fmt.Sprintf("%s %q is already taken", field, value)
			}
		}
	}
	return ""
}

// conceal strips the entity's hidden fields from a response document
func conceal(doc store.Document, node *schema.Node) store.Document {
	hidden := node.HiddenFields()
	if len(hidden) == 0 {
		return doc
	}
	out := doc.Clone()
	for _, field := range hidden {
		delete(out, field)
	}
	return out
}
