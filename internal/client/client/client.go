package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
)

// ExportLink is a time-limited download URL for a journal export.
type ExportLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Client interface {
	Close() error

	// SetToken replaces the bearer token used for subsequent calls.
	SetToken(token string)

	Ping(ctx context.Context) error

	// FetchRange returns the stored entries with from <= dateKey <= to.
	FetchRange(ctx context.Context, from, to string) ([]models.Entry, error)

	// Upsert pushes one entry and returns the copy the server persisted.
	Upsert(ctx context.Context, e models.Entry) (models.Entry, error)

	// Sync pushes a batch and returns the persisted copies.
	Sync(ctx context.Context, entries []models.Entry) ([]models.Entry, error)

	SubmitAssessment(ctx context.Context, answers []int) (models.Assessment, error)
	LatestAssessment(ctx context.Context) (models.Assessment, error)

	Export(ctx context.Context) (ExportLink, error)
}
