// Package httputil provides the HTTP plumbing shared by all routers:
// the JSON error envelope ({"message": ..., "error": {"status", "appCode"}}),
// request body and path parameter parsing, and common middleware
// (request IDs, logging, panic recovery, CORS, body limits).
package httputil
