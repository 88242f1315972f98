// Package cli provides the journal command-line client.
//
// It wires configuration, the local cache, the REST client and the journal
// services, and exposes them as cobra subcommands plus an interactive REPL.
// Every command works offline: edits are committed to the local cache first
// and pushed when the server is reachable.
//
// Commands:
//   - login / logout
//   - today, set, submit, reset, week
//   - sync, export
//   - assess, terms
//   - repl, version
//
// The REPL runs a background connectivity watcher (StartOnlineStatusWatcher)
// that shows online/offline in the prompt and drains pending pushes when the
// server comes back. With the diskv backend a storage watcher reloads the
// journal when another process writes it.
package cli
