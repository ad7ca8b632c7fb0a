// Package fetcher performs polite HTTP fetches and turns responses into
// parsed pages with normalized visible text.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"anajobs/packages/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
)

// Elements stripped before text extraction; everything left is treated as
// visible page content.
const nonContentSelector = "script, style, noscript, nav, footer, header, aside"

type Fetcher struct {
	client    *http.Client
	userAgent string
	retry     RetryPolicy
}

func New(timeout time.Duration, userAgent string, retry RetryPolicy) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		retry:     retry,
	}
}

// Fetch performs a GET with retry/backoff and returns the normalized visible
// text of the page together with its parsed document. Non-HTML responses
// yield a Page with IsNonHTML set and no error. Network failures after the
// retry budget is spent are returned as errors; they never panic upward.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.Page, error) {
	var page *domain.Page
	err := f.retry.Do(ctx, func() error {
		p, err := f.fetchOnce(ctx, rawURL)
		if err != nil {
			slog.Debug("Fetch attempt failed", "url", rawURL, "error", err)
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		slog.Debug("Content-Type is not HTML", "url", rawURL, "content_type", contentType)
		return &domain.Page{IsNonHTML: true, FinalURL: resp.Request.URL.String()}, nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(bodyBytes)))
	if err != nil {
		// Malformed markup gets best-effort treatment, not a hard failure.
		return &domain.Page{FinalURL: resp.Request.URL.String()}, nil
	}

	page := &domain.Page{FinalURL: resp.Request.URL.String(), Doc: doc}

	stripped := doc.Clone()
	stripped.Find(nonContentSelector).Remove()
	page.TextContent = CollapseText(stripped.Text())

	if sample := languageSample(page.TextContent); sample != "" {
		info := whatlanggo.Detect(sample)
		page.Language = info.Lang.Iso6393()
	}

	return page, nil
}

// CollapseText normalizes raw document text: tabs and carriage returns become
// spaces, runs of whitespace collapse to one space.
func CollapseText(raw string) string {
	re := strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")
	return strings.Join(strings.Fields(re.Replace(raw)), " ")
}

func languageSample(text string) string {
	words := strings.Fields(text)
	if len(words) > 100 {
		return strings.Join(words[:100], " ")
	}
	return strings.TrimSpace(text)
}
