package storage

import (
	"context"
	"time"

	"github.com/news-crawler/internal/models"
)

// Repository is the optional submission log used to skip articles that were
// already delivered in an earlier round.
type Repository interface {
	// Seen reports whether an article with this external ID was already submitted
	Seen(ctx context.Context, externalID string) (bool, error)

	// MarkSubmitted records a successfully submitted article
	MarkSubmitted(ctx context.Context, article *models.SubmittedArticle) error

	// Prune removes submission records older than the cutoff
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Maintenance
	Migrate() error
	Close() error
}
