// Package domain holds the shared types passed between the pipeline stages.
package domain

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ExtractionMethod tags how an organization's job_titles field was produced.
type ExtractionMethod string

const (
	MethodHeuristic      ExtractionMethod = "heuristic"
	MethodAI             ExtractionMethod = "claude_ai"
	MethodAIWithDiscover ExtractionMethod = "claude_ai_with_url_discovery"
)

// Organization mirrors a document in the "organizations" collection.
// Name is the unique key. JobTitles is either nil or a non-empty,
// case-insensitively deduplicated list; an extraction that found nothing
// stores null, never an empty array.
type Organization struct {
	ID                 interface{} `bson:"_id,omitempty" json:"-"`
	Name               string      `bson:"name" json:"name"`
	Root               string      `bson:"root" json:"root"`
	Jobs               string      `bson:"jobs" json:"jobs"`
	Status             string      `bson:"status,omitempty" json:"status,omitempty"`
	Scraped            bool        `bson:"scraped" json:"scraped"`
	JobTitles          []string    `bson:"job_titles,omitempty" json:"job_titles,omitempty"`
	JobTitlesUpdatedAt string      `bson:"job_titles_updated_at,omitempty" json:"job_titles_updated_at,omitempty"`
	ExtractionMethod   string      `bson:"job_titles_extraction_method,omitempty" json:"job_titles_extraction_method,omitempty"`
	JobsCorrectedAt    string      `bson:"jobs_corrected_at,omitempty" json:"jobs_corrected_at,omitempty"`
	JobsPageLanguage   string      `bson:"jobs_page_language,omitempty" json:"jobs_page_language,omitempty"`
}

// Page is the outcome of fetching and normalizing a single URL.
type Page struct {
	FinalURL    string
	IsNonHTML   bool
	TextContent string
	Language    string
	Doc         *goquery.Document
}

// ExtractionResult is the ephemeral per-organization outcome of one pipeline
// pass. Only the titles/timestamp subset is persisted.
type ExtractionResult struct {
	Titles      []string
	SourcePages []string
	Errors      []string
	Language    string
}

// RunStats are the batch-level summary counts printed at the end of a run.
type RunStats struct {
	Processed     int
	Updated       int
	WithTitles    int
	WithoutTitles int
	Failed        int
	Skipped       int
	Started       time.Time
}
