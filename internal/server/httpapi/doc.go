// Package httpapi exposes the journal over REST.
//
// Every route except /healthz requires "Authorization: Bearer <jwt>"; the
// token's UserID claim scopes all reads and writes. Errors are returned as
// {"error": "..."} with a status derived from the sentinel in common.
package httpapi
