package models

import (
	"fmt"

	clientmodels "github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
)

// Assessment is a stored weekly self-check.
type Assessment struct {
	ID          string `json:"id"`
	UserID      string `json:"-"`
	Answers     []int  `json:"answers"`
	Score       int    `json:"score"`
	Severity    string `json:"severity"`
	SubmittedAt int64  `json:"lastSubmittedAt"`
}

// ValidateAnswers requires exactly one answer per question, each in range.
func ValidateAnswers(answers []int) error {
	if len(answers) != clientmodels.QuestionCount {
		return fmt.Errorf("%w: want %d answers, got %d", common.ErrorValidation, clientmodels.QuestionCount, len(answers))
	}
	for i, a := range answers {
		if a < 0 || a > clientmodels.MaxAnswer {
			return fmt.Errorf("%w: answer %d out of range", common.ErrorValidation, i+1)
		}
	}
	return nil
}

// NewAssessment scores answers for userID at submittedAt (unix ms).
func NewAssessment(id, userID string, answers []int, submittedAt int64) Assessment {
	score := clientmodels.Score(answers)
	return Assessment{
		ID:          id,
		UserID:      userID,
		Answers:     append([]int(nil), answers...),
		Score:       score,
		Severity:    clientmodels.Severity(score),
		SubmittedAt: submittedAt,
	}
}
