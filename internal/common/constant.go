// Package common contains shared constants and sentinel errors used across
// journalkeeper components.
package common

// AuthorizationHeaderName carries the bearer access token on REST requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is echoed back by the server for log correlation.
const RequestIDHeaderName = "X-Request-Id"
