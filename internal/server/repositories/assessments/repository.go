package assessments

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

type Repository interface {
	// LockUser serializes submissions of one user until the transaction ends.
	LockUser(ctx context.Context, userID string) error
	Insert(ctx context.Context, a models.Assessment) error
	// Latest returns common.ErrorNotFound when the user never submitted one.
	Latest(ctx context.Context, userID string) (models.Assessment, error)
}
