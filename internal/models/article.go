package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSON is a custom type for storing arbitrary JSON data
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), j)
}

// Article is a normalized article record as the downstream API expects it.
// Timestamps are unix seconds; zero means the source exposed no usable date.
type Article struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Source    string `json:"source"` // origin site, e.g. "coin98.net"
	Extra     JSON   `json:"extra_information"`
	URL       string `json:"article_url"`
	ImageURL  string `json:"image_url"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
