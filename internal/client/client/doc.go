// Package client is the journal's remote gateway.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering what
//     the local-first core needs from the backend: FetchRange, Upsert and
//     Sync of entries, plus the assessment, export and liveness calls.
//  2. A concrete REST implementation (see HTTPClient) that injects the bearer
//     token and a request id into every call, re-normalizes every entry it
//     receives and maps HTTP failures to sentinel errors.
//  3. A liveness probe over the standard gRPC health service, used by the
//     CLI to switch between online and offline prompts.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors that callers match with
// errors.Is: ErrUnavailable, ErrUnauthorized, common.ErrAssessmentLocked and
// common.ErrorNotFound.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept a
// context.Context and honor cancellation and timeouts.
package client
