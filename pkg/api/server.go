package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opencanvass/canvassd/pkg/audit"
	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/gate"
	"github.com/opencanvass/canvassd/pkg/httputil"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/privilege"
	"github.com/opencanvass/canvassd/pkg/query"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// Server is the REST API server
type Server struct {
	router   *mux.Router
	store    store.Store
	registry *schema.Registry
	gate     *gate.Gate
	tokens   *auth.Manager
	resolver *query.Resolver
	trail    audit.Trail
	log      *observability.Logger
	metrics  *observability.Metrics

	// development enables verbose internal error responses
	development bool
}

// Options carries the server's collaborators
type Options struct {
	Store       store.Store
	Registry    *schema.Registry
	Gate        *gate.Gate
	Tokens      *auth.Manager
	Trail       audit.Trail
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Development bool
}

// NewServer creates the API server and registers all routes
func NewServer(opts Options) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		store:       opts.Store,
		registry:    opts.Registry,
		gate:        opts.Gate,
		tokens:      opts.Tokens,
		resolver:    query.NewResolver(opts.Store, opts.Metrics),
		trail:       opts.Trail,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		development: opts.Development,
	}
	if s.trail == nil {
		s.trail = audit.NopTrail{}
	}
	s.setupRoutes()
	return s
}

// resourceRoutes binds one entity type to the generic handlers: its URL
// segment, privilege category, relationship tree and route-level gates.
type resourceRoutes struct {
	path string
	res  privilege.Resource
	node *schema.Node

	// collectionGate guards the collection routes (list, create, batch);
	// itemGate guards the /{id} routes
	collectionGate func(http.Handler) http.Handler
	itemGate       func(http.Handler) http.Handler
}

// resources returns the route table. Route gates are level ranges only; the
// per-operation capability checks inside the handlers do the fine-grained
// work.
func (s *Server) resources() []resourceRoutes {
	g := s.gate
	authed := g.Authenticated()

	return []resourceRoutes{
		{path: "users", res: privilege.ResourceUsers, node: s.registry.User,
			collectionGate: authed, itemGate: g.RequireSelfOr("id", privilege.LevelStaff, privilege.LevelAdmin)},
		{path: "roles", res: privilege.ResourceRoles, node: s.registry.Role,
			collectionGate: g.ManagerOrAbove(), itemGate: g.ManagerOrAbove()},
		{path: "people", res: privilege.ResourcePeople, node: s.registry.Person,
			collectionGate: authed, itemGate: authed},
		{path: "parties", res: privilege.ResourceParties, node: s.registry.Party,
			collectionGate: authed, itemGate: authed},
		{path: "candidates", res: privilege.ResourceCandidates, node: s.registry.Candidate,
			collectionGate: authed, itemGate: authed},
		{path: "elections", res: privilege.ResourceElections, node: s.registry.Election,
			collectionGate: authed, itemGate: authed},
		{path: "votingsystems", res: privilege.ResourceVotingSystems, node: s.registry.VotingSystem,
			collectionGate: authed, itemGate: authed},
		{path: "canvasses", res: privilege.ResourceCanvasses, node: s.registry.Canvass,
			collectionGate: authed, itemGate: authed},
		{path: "assignments", res: privilege.ResourceAssignments, node: s.registry.Assignment,
			collectionGate: authed, itemGate: authed},
		{path: "surveys", res: privilege.ResourceSurveys, node: s.registry.Survey,
			collectionGate: authed, itemGate: authed},
		{path: "results", res: privilege.ResourceResults, node: s.registry.Result,
			collectionGate: authed, itemGate: authed},
		{path: "notices", res: privilege.ResourceNotices, node: s.registry.Notice,
			collectionGate: authed, itemGate: authed},
	}
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Authentication
	s.router.HandleFunc("/auth/login", s.login).Methods("POST")
	s.router.Handle("/auth/whoami", s.gate.Authenticated()(http.HandlerFunc(s.whoami))).Methods("GET")

	// Liveness
	s.router.HandleFunc("/healthz", s.health).Methods("GET")

	// Audit runs inside the gate so recorded mutations carry the
	// admitted caller
	audited := audit.NewMiddleware(s.trail)

	// Entity resources
	for _, rr := range s.resources() {
		rr := rr
		list := rr.collectionGate(audited.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.listResource(w, r, rr)
		})))
		create := rr.collectionGate(audited.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.createResource(w, r, rr)
		})))
		batch := rr.collectionGate(audited.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.batchCreateResource(w, r, rr)
		})))
		get := rr.itemGate(audited.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.getResource(w, r, rr)
		})))
		update := rr.itemGate(audited.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.updateResource(w, r, rr)
		})))
		remove := rr.itemGate(audited.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.deleteResource(w, r, rr)
		})))

		s.router.Handle("/"+rr.path, list).Methods("GET")
		s.router.Handle("/"+rr.path, create).Methods("POST")
		s.router.Handle("/"+rr.path+"/batch", batch).Methods("POST")
		s.router.Handle("/"+rr.path+"/{id}", get).Methods("GET")
		s.router.Handle("/"+rr.path+"/{id}", update).Methods("PUT", "PATCH")
		s.router.Handle("/"+rr.path+"/{id}", remove).Methods("DELETE")
	}

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for middleware wrapping
func (s *Server) Router() *mux.Router {
	return s.router
}

// health handles GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
