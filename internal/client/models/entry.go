// Package models defines the journal entry and assessment shapes shared by the
// client packages, together with the normalization applied to anything read
// from storage or the network.
package models

import (
	"strings"
	"time"
	"unicode"
)

// Mood is the enumerated feeling recorded for a day.
type Mood string

const (
	MoodHappy   Mood = "Happy"
	MoodCalm    Mood = "Calm"
	MoodOkay    Mood = "Okay"
	MoodSad     Mood = "Sad"
	MoodAnxious Mood = "Anxious"
	MoodAngry   Mood = "Angry"
	MoodTired   Mood = "Tired"
)

// Moods lists every known mood in display order.
var Moods = []Mood{MoodHappy, MoodCalm, MoodOkay, MoodSad, MoodAnxious, MoodAngry, MoodTired}

// Reason is the enumerated cause attached to a mood.
type Reason string

const (
	ReasonSchool  Reason = "School"
	ReasonFamily  Reason = "Family"
	ReasonFriends Reason = "Friends"
	ReasonHealth  Reason = "Health"
	ReasonWork    Reason = "Work"
	ReasonSleep   Reason = "Sleep"
	ReasonMoney   Reason = "Money"
	ReasonOther   Reason = "Other"
)

// Reasons lists every known reason in display order.
var Reasons = []Reason{ReasonSchool, ReasonFamily, ReasonFriends, ReasonHealth, ReasonWork, ReasonSleep, ReasonMoney, ReasonOther}

// MaxNoteWords bounds the notes of a single entry.
const MaxNoteWords = 250

const dateKeyLayout = "2006-01-02"

// ParseMood matches s case-insensitively against the known moods.
// Unknown input yields the empty mood and false.
func ParseMood(s string) (Mood, bool) {
	s = strings.TrimSpace(s)
	for _, m := range Moods {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

// ParseReason matches s case-insensitively against the known reasons.
func ParseReason(s string) (Reason, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Reasons {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}

// Entry is the record of one calendar day for one user.
type Entry struct {
	DateKey         string `json:"dateKey"`
	Mood            Mood   `json:"mood"`
	Reason          Reason `json:"reason"`
	Notes           string `json:"notes"`
	DaySubmitted    bool   `json:"daySubmitted"`
	DaySubmittedAt  *int64 `json:"daySubmittedAt"`
	ClientUpdatedAt int64  `json:"clientUpdatedAt"`
}

// IsEmpty reports whether the entry carries no user content and no submission.
func (e Entry) IsEmpty() bool {
	return e.Mood == "" && e.Reason == "" && e.Notes == "" && !e.DaySubmitted && e.DaySubmittedAt == nil
}

// EntryMap holds one user's entries keyed by date key.
type EntryMap map[string]Entry

// Clone returns a shallow copy of m; entries are values so the copy is independent.
func (m EntryMap) Clone() EntryMap {
	out := make(EntryMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Patch describes a partial update of an entry. Nil fields are left untouched.
type Patch struct {
	Mood            *Mood
	Reason          *Reason
	Notes           *string
	DaySubmitted    *bool
	DaySubmittedAt  *int64
	ClientUpdatedAt *int64

	// ClearSubmittedAt drops DaySubmittedAt; it wins over DaySubmittedAt.
	ClearSubmittedAt bool
}

// Apply merges p into e field by field.
//
// The status fields are handled separately from the content fields so a patch
// that only touches notes can never unset submission. An already recorded
// DaySubmittedAt is kept unless the patch clears it first.
func (p Patch) Apply(e Entry) Entry {
	if p.Mood != nil {
		e.Mood = *p.Mood
	}
	if p.Reason != nil {
		e.Reason = *p.Reason
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.ClientUpdatedAt != nil {
		e.ClientUpdatedAt = *p.ClientUpdatedAt
	}

	if p.DaySubmitted != nil {
		e.DaySubmitted = *p.DaySubmitted
	}
	switch {
	case p.ClearSubmittedAt:
		e.DaySubmittedAt = nil
	case p.DaySubmittedAt != nil && e.DaySubmittedAt == nil:
		at := *p.DaySubmittedAt
		e.DaySubmittedAt = &at
	}

	return e
}

// ResetPatch empties the content and clears the submission state.
func ResetPatch(now int64) Patch {
	var (
		mood   Mood
		reason Reason
		notes  string
		sub    bool
	)
	return Patch{
		Mood:             &mood,
		Reason:           &reason,
		Notes:            &notes,
		DaySubmitted:     &sub,
		ClearSubmittedAt: true,
		ClientUpdatedAt:  &now,
	}
}

// DateKey formats the local calendar day of t in loc as YYYY-MM-DD.
// A nil loc uses t's own location.
func DateKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as midnight in loc.
func ParseDateKey(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if len(s) != len(dateKeyLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateKeyLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ValidDateKey reports whether s is a well formed calendar date key.
func ValidDateKey(s string) bool {
	_, ok := ParseDateKey(s, time.UTC)
	return ok
}

// ClampWords keeps the first n whitespace separated words of s.
// The kept prefix retains its original spacing; trailing text is dropped.
func ClampWords(s string, n int) string {
	if n <= 0 {
		return ""
	}

	words := 0
	inWord := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			if words == n {
				return strings.TrimRightFunc(s[:i], unicode.IsSpace)
			}
			words++
		}
		inWord = !space
	}
	return s
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
