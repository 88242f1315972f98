// Package lock answers whether a journal day or the weekly assessment may be
// written right now. Everything here is side-effect free.
package lock

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
)

// AssessmentCooldown is how long a submitted self-check stays locked.
const AssessmentCooldown = 7 * 24 * time.Hour

// ErrDayLocked is returned by edit paths when the day was already submitted.
var ErrDayLocked = errors.New("day already submitted; reset it first")

// IsLocked reports whether e is sealed by a submission.
func IsLocked(e models.Entry) bool {
	return e.DaySubmitted
}

// AssessmentUnlocksAt returns the end of the cooldown started at lastSubmittedAt
// (unix milliseconds). ok is false when nothing was ever submitted.
func AssessmentUnlocksAt(lastSubmittedAt *int64) (at time.Time, ok bool) {
	if lastSubmittedAt == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*lastSubmittedAt).Add(AssessmentCooldown), true
}

// AssessmentLocked reports whether now falls inside the cooldown window.
func AssessmentLocked(lastSubmittedAt *int64, now time.Time) bool {
	until, ok := AssessmentUnlocksAt(lastSubmittedAt)
	return ok && now.Before(until)
}
