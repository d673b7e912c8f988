// Package audit records a trail of security-relevant API activity:
// logins, failed logins, denied requests and document mutations. Events
// are persisted as documents in the store so they can be queried through
// the same tooling as every other collection.
package audit
