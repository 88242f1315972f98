// Package models defines the rows the server stores and the request shapes
// it accepts. Field names and JSON tags match the client's wire model so a
// stored row round-trips through the client's normalizer unchanged.
package models

import (
	"fmt"
	"time"

	clientmodels "github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
)

// Entry is one user's record of one calendar day.
type Entry struct {
	UserID          string    `json:"-"`
	DateKey         string    `json:"dateKey"`
	Mood            string    `json:"mood"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
	DaySubmitted    bool      `json:"daySubmitted"`
	DaySubmittedAt  *int64    `json:"daySubmittedAt"`
	ClientUpdatedAt int64     `json:"clientUpdatedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EntryInput is what a client pushes for one day.
type EntryInput struct {
	DateKey         string `json:"dateKey"`
	Mood            string `json:"mood"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
	DaySubmitted    bool   `json:"daySubmitted"`
	ClientUpdatedAt int64  `json:"clientUpdatedAt"`
}

// Validate rejects inputs that cannot be stored. Notes longer than the word
// limit are not an error; ToEntry clamps them.
func (in EntryInput) Validate() error {
	if !clientmodels.ValidDateKey(in.DateKey) {
		return fmt.Errorf("%w: %q", common.ErrInvalidDateKey, in.DateKey)
	}
	if in.Mood != "" {
		if _, ok := clientmodels.ParseMood(in.Mood); !ok {
			return fmt.Errorf("%w: unknown mood %q", common.ErrorValidation, in.Mood)
		}
	}
	if in.Reason != "" {
		if _, ok := clientmodels.ParseReason(in.Reason); !ok {
			return fmt.Errorf("%w: unknown reason %q", common.ErrorValidation, in.Reason)
		}
	}
	if in.ClientUpdatedAt < 0 {
		return fmt.Errorf("%w: negative clientUpdatedAt", common.ErrorValidation)
	}
	return nil
}

// ToEntry converts a validated input into a row for userID with canonical
// mood and reason spelling.
func (in EntryInput) ToEntry(userID string) Entry {
	mood, _ := clientmodels.ParseMood(in.Mood)
	reason, _ := clientmodels.ParseReason(in.Reason)

	return Entry{
		UserID:          userID,
		DateKey:         in.DateKey,
		Mood:            string(mood),
		Reason:          string(reason),
		Notes:           clientmodels.ClampWords(in.Notes, clientmodels.MaxNoteWords),
		DaySubmitted:    in.DaySubmitted,
		ClientUpdatedAt: in.ClientUpdatedAt,
	}
}
