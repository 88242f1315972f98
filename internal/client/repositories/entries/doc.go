// Package entries provides the client-side persistence layer for journal
// entries.
//
// # Overview
//
// A user's entries live in one JSON blob per namespace, shaped as
// {dateKey: Entry}, stored in a kv.Repository. The Repository interface hides
// the storage faults from callers: Load falls back to an empty map and Commit
// reports failure as false, so a broken disk never blocks writing.
//
// The package also keeps the pending set, the date keys whose local state has
// not yet been confirmed by the server.
//
// # Map helpers
//
// Get and Set are pure functions over models.EntryMap. Get always returns a
// normalized entry, even for dates never seen. Set returns a new map and never
// mutates its input.
//
// Typical Usage
//
//	repo := entries.NewKVRepository(store, log)
//	m := repo.Load(ctx, scope.EntriesNamespace)
//	m = entries.Set(m, "2024-05-01", models.Patch{Notes: &notes})
//	if !repo.Commit(ctx, scope.EntriesNamespace, m) {
//	    // show the storage notice
//	}
package entries
