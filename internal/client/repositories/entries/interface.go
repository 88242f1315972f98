package entries

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
)

// Repository persists EntryMaps and pending sets by namespace.
type Repository interface {
	// Load reads the map stored under namespace. Missing, unreadable or corrupt
	// data yields an empty map.
	Load(ctx context.Context, namespace string) models.EntryMap

	// Commit replaces the map stored under namespace. It returns false when the
	// write fails.
	Commit(ctx context.Context, namespace string, m models.EntryMap) bool

	// LoadPending returns the sorted date keys awaiting a server confirmation.
	LoadPending(ctx context.Context, namespace string) []string

	// CommitPending replaces the pending set.
	CommitPending(ctx context.Context, namespace string, keys []string) bool
}
