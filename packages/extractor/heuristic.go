package extractor

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParsedPage is the minimal view of a fetched page the heuristic needs.
type ParsedPage struct {
	URL      string
	Doc      *goquery.Document
	Text     string
	Language string
}

// jobLinkSelectors find anchors whose href or class suggests a job posting.
var jobLinkSelectors = []string{
	`a[href*='job']`,
	`a[href*='position']`,
	`a[href*='opening']`,
	`a[href*='career']`,
	`a[class*='job']`,
	`a[class*='position']`,
}

// containerSelectors find structured job-listing blocks.
var containerSelectors = []string{
	`div[class*='job']`,
	`div[class*='position']`,
	`div[class*='opening']`,
	`div[class*='career']`,
	`li[class*='job']`,
	`tr[class*='job']`,
	`.job-listing`,
	`.position-listing`,
	`.career-listing`,
}

const titleElementSelector = `h1, h2, h3, h4, h5, .title, .job-title, .position-title`

// titlePatterns match common job-title morphology in free text.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Engineer|Manager|Director|Analyst|Specialist|Coordinator|Associate|Assistant|Lead|Intern))\b`),
	regexp.MustCompile(`(?i)\b((?:Senior|Junior|Lead|Principal|Staff|Sr\.?|Jr\.?)\s+[A-Za-z ]+(?:Engineer|Developer|Manager|Analyst|Designer|Coordinator|Specialist))\b`),
	regexp.MustCompile(`(?i)\b(Software\s+(?:Engineer|Developer|Architect)|Data\s+(?:Scientist|Analyst|Engineer)|Product\s+Manager|Project\s+Manager|Program\s+Manager|Marketing\s+Manager|Operations\s+Manager)\b`),
}

// deeperLinkPatterns match "view all jobs"-style links worth following one
// level when the career root itself lists nothing.
var deeperLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)view.*job`),
	regexp.MustCompile(`(?i)see.*opening`),
	regexp.MustCompile(`(?i)job.*listing`),
	regexp.MustCompile(`(?i)all.*position`),
	regexp.MustCompile(`(?i)current.*opening`),
	regexp.MustCompile(`(?i)available.*position`),
}

// HeuristicStrategy extracts titles with selector, container, and regex
// passes, falling back to at most two deeper "view all jobs" links.
type HeuristicStrategy struct{}

func NewHeuristic() *HeuristicStrategy { return &HeuristicStrategy{} }

func (h *HeuristicStrategy) Extract(ctx context.Context, in Input) ([]string, error) {
	var candidates []string

	var page *ParsedPage
	if in.Page != nil {
		page = in.Page.CareerPage(ctx)
	}

	if page != nil && page.Doc != nil {
		candidates = append(candidates, titlesFromLinksAndHeadings(page.Doc)...)
		candidates = append(candidates, titlesFromContainers(page.Doc)...)
	}
	candidates = append(candidates, titlesFromText(in.Content)...)
	if page != nil && page.Doc != nil {
		candidates = append(candidates, titlesFromText(page.Text)...)
	}

	if len(FilterTitles(candidates)) == 0 && page != nil && in.Page != nil {
		candidates = append(candidates, h.exploreDeeperLinks(ctx, in.Page, page)...)
	}

	titles := FilterTitles(candidates)
	if len(titles) == 0 {
		return nil, nil
	}
	return titles, nil
}

func titlesFromLinksAndHeadings(doc *goquery.Document) []string {
	var titles []string

	for _, selector := range jobLinkSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			if t := CleanCandidate(s.Text()); t != "" {
				titles = append(titles, t)
			}
		})
	}

	doc.Find("h1, h2, h3, h4, h5").Each(func(i int, s *goquery.Selection) {
		t := CleanCandidate(s.Text())
		if t != "" && LooksLikeTitle(t) {
			titles = append(titles, t)
		}
	})

	return titles
}

func titlesFromContainers(doc *goquery.Document) []string {
	var titles []string

	for _, selector := range containerSelectors {
		containers := doc.Find(selector)
		containers.EachWithBreak(func(i int, container *goquery.Selection) bool {
			if i >= 20 {
				return false
			}
			container.Find(titleElementSelector).Each(func(j int, el *goquery.Selection) {
				if t := CleanCandidate(el.Text()); t != "" {
					titles = append(titles, t)
				}
			})

			// Small containers are often a bare title row.
			text := strings.TrimSpace(container.Text())
			if len(text) < 200 {
				if t := CleanCandidate(text); t != "" && LooksLikeTitle(t) {
					titles = append(titles, t)
				}
			}
			return true
		})
	}

	return titles
}

func titlesFromText(text string) []string {
	var titles []string
	for _, pattern := range titlePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if len(match) > 1 {
				titles = append(titles, strings.TrimSpace(match[1]))
			}
		}
	}
	return titles
}

func (h *HeuristicStrategy) exploreDeeperLinks(ctx context.Context, source PageSource, page *ParsedPage) []string {
	var candidates []string

	for _, link := range deeperJobLinks(page, 2) {
		slog.Info("Exploring deeper job listing link", "url", link)
		deeper, err := source.FollowLink(ctx, link)
		if err != nil || deeper == nil || deeper.Doc == nil {
			slog.Warn("Failed to explore deeper link", "url", link, "error", err)
			continue
		}
		found := append(titlesFromLinksAndHeadings(deeper.Doc), titlesFromContainers(deeper.Doc)...)
		candidates = append(candidates, found...)
		if len(FilterTitles(found)) > 0 {
			break
		}
	}

	return candidates
}

func deeperJobLinks(page *ParsedPage, max int) []string {
	if page == nil || page.Doc == nil {
		return nil
	}
	base, _ := url.Parse(page.URL)
	var out []string
	page.Doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		for _, pattern := range deeperLinkPatterns {
			if pattern.MatchString(text) || pattern.MatchString(href) {
				if resolved := resolveHref(base, href); resolved != "" {
					out = append(out, resolved)
				}
				break
			}
		}
		return len(out) < max
	})
	return out
}

func resolveHref(base *url.URL, href string) string {
	if base == nil || base.Host == "" {
		return href
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}
