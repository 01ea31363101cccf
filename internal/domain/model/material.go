package model

import (
	"strings"
	"time"

	"community-subscription-bot/internal/domain"
)

// Material is a piece of gated content shown in the mini-app.
type Material struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Format      string    `json:"format"`
	Category    string    `json:"category"`
	VideoURL    *string   `json:"video_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *Material) Validate() error {
	if m == nil || strings.TrimSpace(m.Title) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// MaterialFilter narrows a material listing. Empty fields are ignored.
type MaterialFilter struct {
	Format   string
	Category string
	Search   string // case-insensitive match on title or description
	Sort     string // one of MaterialSortFields
	Desc     bool
	Limit    int
	Offset   int
}

// MaterialSortFields is the set of columns a listing may be ordered by.
var MaterialSortFields = map[string]struct{}{
	"id":         {},
	"title":      {},
	"format":     {},
	"category":   {},
	"created_at": {},
	"updated_at": {},
}
