package models

import "time"

// SubmittedArticle records an article that was accepted by the sink, keyed
// by its external ID (hash of source + URL). Used to avoid resubmitting the
// same article across rounds when the dedup store is enabled.
type SubmittedArticle struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"uniqueIndex;not null" json:"external_id"`
	Source      string    `gorm:"index;not null" json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	SubmittedAt time.Time `gorm:"autoCreateTime" json:"submitted_at"`
}
