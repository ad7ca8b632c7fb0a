// Package links classifies and normalizes the anchors on a fetched page.
package links

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jobKeywords qualify a link as job-related when found in its href or visible
// anchor text.
var jobKeywords = []string{
	"job", "career", "position", "opening", "opportunity",
	"hiring", "vacancy", "employment", "apply", "role",
}

// skipSubstrings mark URLs that never lead to content worth crawling.
var skipSubstrings = []string{
	"javascript:", "mailto:", "tel:",
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".zip",
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com", "youtube.com",
}

// JobLinks scans all anchors in doc, resolves relative hrefs against baseURL,
// and returns the deduplicated same-domain links whose href or text contains a
// job keyword. Fragments are stripped before dedup; queries are kept since job
// boards routinely key listings on them.
func JobLinks(doc *goquery.Document, baseURL string) []string {
	return collect(doc, baseURL, true, false, 0)
}

// AllLinks is the root-page variant used to build an oracle candidate set:
// every same-domain link regardless of keywords, with query and fragment
// stripped and the trailing slash trimmed, capped at max entries (0 = no cap).
func AllLinks(doc *goquery.Document, baseURL string, max int) []string {
	return collect(doc, baseURL, false, true, max)
}

func collect(doc *goquery.Document, baseURL string, keywordOnly, stripQuery bool, max int) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil
	}
	baseHost := strings.ToLower(base.Host)

	seen := make(map[string]struct{})
	var out []string

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		lower := strings.ToLower(href)
		for _, skip := range skipSubstrings {
			if strings.Contains(lower, skip) {
				return true
			}
		}

		resolved, err := base.Parse(href)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return true
		}
		if strings.ToLower(resolved.Host) != baseHost {
			return true
		}

		if keywordOnly && !isJobRelated(lower, s.Text()) {
			return true
		}

		resolved.Fragment = ""
		if stripQuery {
			resolved.RawQuery = ""
			resolved.Path = strings.TrimSuffix(resolved.Path, "/")
		}

		key := resolved.String()
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		out = append(out, key)
		return max == 0 || len(out) < max
	})

	slog.Debug("Link extraction found links", "base_url", baseURL, "count", len(out), "keyword_only", keywordOnly)
	return out
}

func isJobRelated(href, anchorText string) bool {
	text := strings.ToLower(strings.TrimSpace(anchorText))
	for _, kw := range jobKeywords {
		if strings.Contains(href, kw) || strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
