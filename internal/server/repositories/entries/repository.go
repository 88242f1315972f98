package entries

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the user has no row for dateKey.
	Get(ctx context.Context, userID, dateKey string) (models.Entry, error)
	// Upsert stores e as given and returns it with the server update time.
	Upsert(ctx context.Context, e models.Entry) (models.Entry, error)
	// Range returns rows with from <= dateKey <= to ordered by date.
	Range(ctx context.Context, userID, from, to string) ([]models.Entry, error)
	// All returns every row of the user ordered by date.
	All(ctx context.Context, userID string) ([]models.Entry, error)
}
