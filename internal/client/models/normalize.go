package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize repairs raw into a well typed Entry. It never fails: missing or
// malformed fields fall back to their zero values, unknown enumerations become
// empty and negative timestamps are dropped.
//
// Accepted inputs are Entry, *Entry, map[string]any and JSON in the form of
// []byte, json.RawMessage or string. Anything else yields an empty Entry.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw any) Entry {
	switch v := raw.(type) {
	case Entry:
		return normalizeEntry(v)
	case *Entry:
		if v == nil {
			return Entry{}
		}
		return normalizeEntry(*v)
	case map[string]any:
		return fromMap(v)
	case json.RawMessage:
		return fromJSON(v)
	case []byte:
		return fromJSON(v)
	case string:
		return fromJSON([]byte(v))
	default:
		return Entry{}
	}
}

func normalizeEntry(e Entry) Entry {
	out := Entry{Notes: e.Notes, DaySubmitted: e.DaySubmitted}
	if ValidDateKey(e.DateKey) {
		out.DateKey = e.DateKey
	}
	out.Mood, _ = ParseMood(string(e.Mood))
	out.Reason, _ = ParseReason(string(e.Reason))
	if e.DaySubmittedAt != nil && *e.DaySubmittedAt >= 0 {
		at := *e.DaySubmittedAt
		out.DaySubmittedAt = &at
	}
	if e.ClientUpdatedAt > 0 {
		out.ClientUpdatedAt = e.ClientUpdatedAt
	}
	return out
}

func fromJSON(b []byte) Entry {
	return fromMap(decodeMap(b))
}

func fromMap(m map[string]any) Entry {
	var e Entry

	if s, ok := m["dateKey"].(string); ok && ValidDateKey(s) {
		e.DateKey = s
	}
	if s, ok := m["mood"].(string); ok {
		e.Mood, _ = ParseMood(s)
	}
	if s, ok := m["reason"].(string); ok {
		e.Reason, _ = ParseReason(s)
	}
	if s, ok := m["notes"].(string); ok {
		e.Notes = s
	}
	e.DaySubmitted = coerceBool(m["daySubmitted"])
	if at, ok := coerceMillis(m["daySubmittedAt"]); ok {
		e.DaySubmittedAt = &at
	}
	if at, ok := coerceMillis(m["clientUpdatedAt"]); ok {
		e.ClientUpdatedAt = at
	}

	return e
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return false
	}
}

// coerceMillis turns numbers and numeric strings into non-negative unix
// milliseconds. Fractions are truncated.
func coerceMillis(v any) (int64, bool) {
	var f float64

	switch x := v.(type) {
	case int64:
		f = float64(x)
		if x >= 0 {
			return x, true
		}
	case int:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, n >= 0
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, n >= 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}
