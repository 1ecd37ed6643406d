package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&models.SubmittedArticle{})
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seen reports whether an article with this external ID was already submitted
func (r *Repository) Seen(ctx context.Context, externalID string) (bool, error) {
	var record models.SubmittedArticle
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSubmitted records a successfully submitted article. Re-marking an
// already recorded external ID is not an error.
func (r *Repository) MarkSubmitted(ctx context.Context, article *models.SubmittedArticle) error {
	var existing models.SubmittedArticle
	err := r.db.WithContext(ctx).Where("external_id = ?", article.ExternalID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(article).Error
}

// Prune removes submission records older than the cutoff
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("submitted_at < ?", before).
		Delete(&models.SubmittedArticle{})
	return result.RowsAffected, result.Error
}

var _ storage.Repository = (*Repository)(nil)
