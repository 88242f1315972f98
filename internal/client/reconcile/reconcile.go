// Package reconcile decides, per date, whether the cached entry or the
// server's copy becomes the new local truth.
//
// The merge is whole-entry: the losing entry is discarded even if it holds
// edits to fields the winner never touched.
package reconcile

import "github.com/dmitrijs2005/journalkeeper/internal/client/models"

// Resolve picks the winner between a local entry and the server entry for the
// same date. A submitted server entry always wins. Otherwise the larger
// ClientUpdatedAt wins and ties go to the server.
func Resolve(local, server models.Entry) models.Entry {
	local = models.Normalize(local)
	server = models.Normalize(server)

	if server.DaySubmitted {
		return server
	}
	if local.ClientUpdatedAt > server.ClientUpdatedAt {
		return local
	}
	return server
}

// MergeAll folds the server entries into a copy of local. Dates the server did
// not return are left untouched; server entries without a valid date key are
// ignored.
func MergeAll(local models.EntryMap, server []models.Entry) models.EntryMap {
	out := local.Clone()

	for _, raw := range server {
		s := models.Normalize(raw)
		if s.DateKey == "" {
			continue
		}

		l, ok := out[s.DateKey]
		if !ok {
			out[s.DateKey] = s
			continue
		}

		winner := Resolve(l, s)
		winner.DateKey = s.DateKey
		out[s.DateKey] = winner
	}

	return out
}

// Changed lists the dates whose entry differs between before and after.
func Changed(before, after models.EntryMap) []string {
	var keys []string
	for k, a := range after {
		b, ok := before[k]
		if !ok || !equal(a, b) {
			keys = append(keys, k)
		}
	}
	return keys
}

func equal(a, b models.Entry) bool {
	if (a.DaySubmittedAt == nil) != (b.DaySubmittedAt == nil) {
		return false
	}
	if a.DaySubmittedAt != nil && *a.DaySubmittedAt != *b.DaySubmittedAt {
		return false
	}
	a.DaySubmittedAt, b.DaySubmittedAt = nil, nil
	return a == b
}
