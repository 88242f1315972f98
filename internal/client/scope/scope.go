// Package scope maps an identity to the storage namespaces of the local
// cache and performs the one-time import of legacy unscoped data.
package scope

import "strings"

// AnonUserID names the bucket used while nobody is signed in.
const AnonUserID = "anon"

const keyPrefix = "journal"

// Keys of the pre-scoping layout. They are read during migration and never
// written or deleted.
const (
	LegacyEntriesNamespace = keyPrefix + ":entries"
	LegacyTermsNamespace   = keyPrefix + ":terms"

	// LegacyOwnerKey names the user that owns the unscoped data on this device.
	LegacyOwnerKey = keyPrefix + ":legacy-owner"
)

// UserScope is the set of namespaces belonging to one identity. It is a plain
// value: recompute it with For whenever the identity changes.
type UserScope struct {
	UserID              string
	EntriesNamespace    string
	TermsNamespace      string
	PendingNamespace    string
	AssessmentNamespace string
}

// For derives the scope of userID. An empty id maps to the anonymous bucket.
func For(userID string) UserScope {
	id := strings.TrimSpace(userID)
	if id == "" {
		id = AnonUserID
	}
	base := keyPrefix + ":" + id + ":"
	return UserScope{
		UserID:              id,
		EntriesNamespace:    base + "entries",
		TermsNamespace:      base + "terms",
		PendingNamespace:    base + "pending",
		AssessmentNamespace: base + "assessment",
	}
}

// Anonymous reports whether s is the signed-out bucket.
func (s UserScope) Anonymous() bool {
	return s.UserID == AnonUserID
}

// Prefix is the key prefix shared by every namespace of s.
func (s UserScope) Prefix() string {
	return keyPrefix + ":" + s.UserID + ":"
}
