package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Article is a core entity describing metadata fetched from news providers.
type Article struct {
	ID          string
	Title       string
	Description string
	URL         string
	Publisher   string
	Author      string
	Source      string
	PublishedAt time.Time
}

// ArticleID derives a stable identifier from the article URL so re-fetches deduplicate.
func ArticleID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL)).String()
}

// ProcessingStatus enumerates pipeline milestones.
type ProcessingStatus string

const (
	StatusScored    ProcessingStatus = "scored"
	StatusSkipped   ProcessingStatus = "skipped"
	StatusPublished ProcessingStatus = "published"
)

// GateVerdict is the content gate outcome for one article URL.
type GateVerdict struct {
	Flagged bool
	Penalty float64
	Reason  string
}
