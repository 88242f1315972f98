package models

import (
	"bytes"
	"encoding/json"
)

// QuestionCount is the number of PHQ-9 items.
const QuestionCount = 9

// MaxAnswer is the highest score of a single item.
const MaxAnswer = 3

// Questions holds the PHQ-9 prompts in order.
var Questions = [QuestionCount]string{
	"Little interest or pleasure in doing things",
	"Feeling down, depressed, or hopeless",
	"Trouble falling or staying asleep, or sleeping too much",
	"Feeling tired or having little energy",
	"Poor appetite or overeating",
	"Feeling bad about yourself, or that you are a failure",
	"Trouble concentrating on things",
	"Moving or speaking slowly, or being fidgety or restless",
	"Thoughts that you would be better off dead, or of hurting yourself",
}

// Assessment is one weekly self-check.
type Assessment struct {
	Answers         []int  `json:"answers"`
	Score           int    `json:"score"`
	Severity        string `json:"severity"`
	LastSubmittedAt *int64 `json:"lastSubmittedAt"`
}

// Score sums the answers.
func Score(answers []int) int {
	total := 0
	for _, a := range answers {
		total += a
	}
	return total
}

// Severity maps a total score onto the standard PHQ-9 bands.
func Severity(score int) string {
	switch {
	case score >= 20:
		return "severe"
	case score >= 15:
		return "moderately severe"
	case score >= 10:
		return "moderate"
	case score >= 5:
		return "mild"
	default:
		return "minimal"
	}
}

// NormalizeAnswers truncates or pads answers to QuestionCount items and clamps
// each one to 0..MaxAnswer.
func NormalizeAnswers(answers []int) []int {
	out := make([]int, QuestionCount)
	for i := 0; i < QuestionCount && i < len(answers); i++ {
		out[i] = min(max(answers[i], 0), MaxAnswer)
	}
	return out
}

// NormalizeAssessment repairs raw the way Normalize does for entries. Score and
// severity are always recomputed from the repaired answers.
func NormalizeAssessment(raw any) Assessment {
	var m map[string]any

	switch v := raw.(type) {
	case Assessment:
		return scored(v.Answers, v.LastSubmittedAt)
	case *Assessment:
		if v == nil {
			return scored(nil, nil)
		}
		return scored(v.Answers, v.LastSubmittedAt)
	case map[string]any:
		m = v
	case []byte:
		m = decodeMap(v)
	case json.RawMessage:
		m = decodeMap(v)
	case string:
		m = decodeMap([]byte(v))
	}

	var answers []int
	if list, ok := m["answers"].([]any); ok {
		for _, item := range list {
			n, _ := coerceMillis(item)
			answers = append(answers, int(min(n, MaxAnswer)))
		}
	}

	var last *int64
	if at, ok := coerceMillis(m["lastSubmittedAt"]); ok {
		last = &at
	}

	return scored(answers, last)
}

func scored(answers []int, last *int64) Assessment {
	a := Assessment{Answers: NormalizeAnswers(answers)}
	a.Score = Score(a.Answers)
	a.Severity = Severity(a.Score)
	if last != nil && *last >= 0 {
		at := *last
		a.LastSubmittedAt = &at
	}
	return a
}

func decodeMap(b []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil
	}
	return m
}
