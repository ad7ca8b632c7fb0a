// Package extractor pulls job titles out of aggregated career-page content.
// Two interchangeable strategies exist: a DOM/regex heuristic with no
// external dependency, and delegation to the AI oracle. Both return nil, not
// an empty slice, when no valid titles survive filtering.
package extractor

import (
	"context"
	"regexp"
	"strings"
)

// Strategy is one way of turning career-page content into job titles.
type Strategy interface {
	Extract(ctx context.Context, in Input) ([]string, error)
}

// Input bundles everything a strategy may need. Content is the aggregated
// text; Doc-bearing strategies receive the career root page through Page.
type Input struct {
	OrgName string
	Content string
	Page    PageSource
}

// PageSource lets the heuristic strategy re-fetch one level of "view all
// jobs" links without depending on the aggregator.
type PageSource interface {
	CareerPage(ctx context.Context) *ParsedPage
	FollowLink(ctx context.Context, url string) (*ParsedPage, error)
}

var (
	trimEdgePattern   = regexp.MustCompile(`^\W+|\W+$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// positiveIndicators must appear (case-insensitively) for a candidate to be
// accepted as a job title.
var positiveIndicators = []string{
	"engineer", "manager", "director", "analyst", "specialist", "coordinator",
	"associate", "assistant", "lead", "senior", "junior", "intern", "developer",
	"designer", "consultant", "advisor", "officer", "representative", "supervisor",
	"administrator", "technician", "scientist", "researcher", "programmer",
}

// negativeIndicators are common false positives: CTAs, navigation, URLs.
var negativeIndicators = []string{
	"http", "www", ".com", ".org", "click", "apply now", "learn more",
	"view all", "see all", "show more", "load more", "next page",
	"previous", "back to", "home", "contact", "about",
}

// excludePhrases disqualify short strings that are page chrome rather than
// titles ("Apply", "Careers", "Full Time", ...).
var excludePhrases = []string{
	"apply now", "learn more", "view details", "see more", "read more",
	"click here", "full time", "part time", "remote", "on site",
	"job description", "requirements", "qualifications", "apply",
	"careers", "jobs", "openings", "positions",
}

// CleanCandidate normalizes a raw candidate string: strips leading/trailing
// non-word runs, collapses whitespace, and rejects strings outside 3-100
// characters or matching an exclude phrase. Returns "" for rejects.
func CleanCandidate(raw string) string {
	text := whitespacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	text = strings.TrimSpace(trimEdgePattern.ReplaceAllString(text, ""))

	if len(text) < 3 || len(text) > 100 {
		return ""
	}

	lower := strings.ToLower(text)
	for _, phrase := range excludePhrases {
		if strings.Contains(lower, phrase) && len(lower) < 30 {
			return ""
		}
	}
	return text
}

// LooksLikeTitle applies the shared acceptance rules: a positive role
// indicator, no negative indicator, and a word count between 1 and 8.
func LooksLikeTitle(text string) bool {
	if len(text) < 3 || len(text) > 100 {
		return false
	}
	lower := strings.ToLower(text)

	hasIndicator := false
	for _, ind := range positiveIndicators {
		if strings.Contains(lower, ind) {
			hasIndicator = true
			break
		}
	}
	if !hasIndicator {
		return false
	}

	for _, neg := range negativeIndicators {
		if strings.Contains(lower, neg) {
			return false
		}
	}

	words := len(strings.Fields(text))
	return words >= 1 && words <= 8
}

// FilterTitles runs every candidate through CleanCandidate and
// LooksLikeTitle, deduplicating case-insensitively while preserving
// first-seen order. The result is nil when nothing survives; running the
// filter over its own output is a no-op.
func FilterTitles(candidates []string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, raw := range candidates {
		title := CleanCandidate(raw)
		if title == "" || !LooksLikeTitle(title) {
			continue
		}
		key := strings.ToLower(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
	}
	return out
}
