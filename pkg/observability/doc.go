// Package observability provides structured logging and Prometheus metrics
// for the canvassing API.
//
// The Logger is a thin wrapper around stdlib slog with a JSON handler.
// Handlers obtain a request-scoped logger via FromContext, which annotates
// entries with the request ID when one is present.
//
// Metrics covers HTTP traffic, document store operations, the query engine
// and auth failures; the /metrics endpoint is served from Handler().
package observability
