// Package aggregator performs the bounded breadth-first crawl that feeds the
// title extractor.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"anajobs/packages/fetcher"
	"anajobs/packages/links"
	"anajobs/packages/metrics"
	"anajobs/packages/robots"
)

type Aggregator struct {
	fetcher  *fetcher.Fetcher
	robots   *robots.Checker
	maxChars int
}

// Result carries the labeled page blocks plus the URLs they came from.
// Language is the detected language of the seed page, which is always the
// first page fetched. Empty() distinguishes "nothing fetched" from
// accumulated-but-short text.
type Result struct {
	Content  string
	Pages    []string
	Language string
}

func (r Result) Empty() bool { return len(r.Pages) == 0 }

func New(f *fetcher.Fetcher, rc *robots.Checker, maxChars int) *Aggregator {
	if maxChars <= 0 {
		maxChars = 100_000
	}
	return &Aggregator{fetcher: f, robots: rc, maxChars: maxChars}
}

// Aggregate crawls breadth-first from seedURL: FIFO queue, visited set,
// termination when the queue drains or maxPages distinct URLs were visited.
// The crawl never leaves the seed's domain. A politeness delay applies
// between fetches after the first. The combined text is hard-truncated at the
// configured character budget.
func (a *Aggregator) Aggregate(ctx context.Context, seedURL string, maxPages int, delay time.Duration) (Result, error) {
	seed, err := url.Parse(seedURL)
	if err != nil || seed.Host == "" {
		return Result{}, fmt.Errorf("invalid seed URL %q", seedURL)
	}
	baseHost := strings.ToLower(seed.Host)

	if a.robots != nil && !a.robots.Allowed(ctx, seedURL) {
		slog.Info("robots.txt disallows crawling seed", "url", seedURL)
		return Result{}, nil
	}

	visited := make(map[string]struct{})
	queued := map[string]struct{}{seedURL: {}}
	queue := []string{seedURL}

	var blocks []string
	var pages []string
	var seedLanguage string

	for len(queue) > 0 && len(visited) < maxPages {
		current := queue[0]
		queue = queue[1:]

		if _, ok := visited[current]; ok {
			continue
		}

		if len(pages) > 0 {
			select {
			case <-ctx.Done():
				return Result{Content: join(blocks, a.maxChars), Pages: pages, Language: seedLanguage}, ctx.Err()
			case <-time.After(delay):
			}
		}

		if a.robots != nil && !a.robots.Allowed(ctx, current) {
			visited[current] = struct{}{}
			continue
		}

		page, err := a.fetcher.Fetch(ctx, current)
		if err != nil {
			slog.Warn("Skipping page after failed fetch", "url", current, "error", err)
			metrics.PagesFetched.WithLabelValues("error").Inc()
			visited[current] = struct{}{}
			continue
		}
		visited[current] = struct{}{}
		if page.IsNonHTML {
			continue
		}
		metrics.PagesFetched.WithLabelValues("ok").Inc()

		blocks = append(blocks, fmt.Sprintf("=== PAGE: %s ===\n%s\n", current, page.TextContent))
		pages = append(pages, current)
		if len(pages) == 1 {
			seedLanguage = page.Language
		}

		if page.Doc == nil {
			continue
		}
		for _, link := range links.JobLinks(page.Doc, page.FinalURL) {
			parsed, err := url.Parse(link)
			if err != nil || strings.ToLower(parsed.Host) != baseHost {
				continue
			}
			if _, seen := visited[link]; seen {
				continue
			}
			if _, inQueue := queued[link]; inQueue {
				continue
			}
			queued[link] = struct{}{}
			queue = append(queue, link)
		}
	}

	if len(pages) == 0 {
		return Result{}, nil
	}

	slog.Info("Aggregated career content", "seed", seedURL, "pages", len(pages))
	return Result{Content: join(blocks, a.maxChars), Pages: pages, Language: seedLanguage}, nil
}

func join(blocks []string, maxChars int) string {
	combined := strings.Join(blocks, "\n")
	if len(combined) > maxChars {
		combined = combined[:maxChars]
	}
	return combined
}
