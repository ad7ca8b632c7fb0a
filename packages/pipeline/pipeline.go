// Package pipeline runs the per-organization extraction batch: resolve the
// career URL, aggregate page content, extract titles, write the result back.
// Organizations are processed strictly one at a time, in collection order;
// a failure on one organization records a null result and moves on.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"anajobs/packages/aggregator"
	"anajobs/packages/domain"
	"anajobs/packages/extractor"
	"anajobs/packages/fetcher"
	"anajobs/packages/metrics"
	"anajobs/packages/resolver"
	"anajobs/packages/store"
)

// Store is the slice of the storage layer the pipeline writes through.
type Store interface {
	FindOrganizations(ctx context.Context, limit int64) ([]domain.Organization, error)
	UpdateJobTitles(ctx context.Context, name string, upd store.TitleUpdate) error
}

// Checkpoint marks organizations processed across runs. May be nil.
type Checkpoint interface {
	Seen(ctx context.Context, orgName string) bool
	Mark(ctx context.Context, orgName string)
}

type Options struct {
	Method   domain.ExtractionMethod
	Limit    int64
	DryRun   bool
	Output   string // optional JSONL results file
	MaxPages int
	Delay    time.Duration // inter-page crawl delay
	OrgDelay time.Duration // politeness delay between organizations
}

type Pipeline struct {
	storage    Store
	fetcher    *fetcher.Fetcher
	resolver   *resolver.Resolver
	aggregator *aggregator.Aggregator
	strategy   extractor.Strategy
	checkpoint Checkpoint
	opts       Options
}

func New(storage Store, f *fetcher.Fetcher, r *resolver.Resolver, a *aggregator.Aggregator, s extractor.Strategy, cp Checkpoint, opts Options) *Pipeline {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	return &Pipeline{
		storage:    storage,
		fetcher:    f,
		resolver:   r,
		aggregator: a,
		strategy:   s,
		checkpoint: cp,
		opts:       opts,
	}
}

// Run processes up to opts.Limit organizations and returns the batch summary.
// Per-organization failures never abort the batch; only the initial query can.
func (p *Pipeline) Run(ctx context.Context) (domain.RunStats, error) {
	stats := domain.RunStats{Started: time.Now()}

	orgs, err := p.storage.FindOrganizations(ctx, p.opts.Limit)
	if err != nil {
		return stats, fmt.Errorf("loading organizations: %w", err)
	}
	slog.Info("Retrieved organizations to process", "count", len(orgs), "method", p.opts.Method, "dry_run", p.opts.DryRun)

	var outFile *os.File
	if p.opts.Output != "" {
		outFile, err = os.Create(p.opts.Output)
		if err != nil {
			return stats, fmt.Errorf("creating output file: %w", err)
		}
		defer outFile.Close()
	}

	for i, org := range orgs {
		if err := ctx.Err(); err != nil {
			slog.Info("Run cancelled", "processed", stats.Processed)
			return stats, err
		}

		if p.checkpoint != nil && p.checkpoint.Seen(ctx, org.Name) {
			slog.Debug("Skipping already-processed organization", "org", org.Name)
			stats.Skipped++
			continue
		}

		slog.Info("Processing organization", "index", i+1, "total", len(orgs), "org", org.Name, "jobs_url", org.Jobs)

		result, upd := p.processOne(ctx, org)
		stats.Processed++

		if len(upd.Titles) > 0 {
			stats.WithTitles++
			metrics.OrganizationsProcessed.WithLabelValues("with_titles").Inc()
			metrics.TitlesExtracted.Add(float64(len(upd.Titles)))
		} else {
			stats.WithoutTitles++
			metrics.OrganizationsProcessed.WithLabelValues("without_titles").Inc()
		}

		if p.opts.DryRun {
			stats.Updated++
		} else if err := p.storage.UpdateJobTitles(ctx, org.Name, upd); err != nil {
			slog.Error("Failed to update organization", "org", org.Name, "error", err)
			stats.Failed++
		} else {
			stats.Updated++
		}

		if p.checkpoint != nil && !p.opts.DryRun {
			p.checkpoint.Mark(ctx, org.Name)
		}

		if outFile != nil {
			writeResultLine(outFile, org, result, upd)
		}

		if (i+1)%10 == 0 {
			slog.Info("Progress", "processed", i+1, "total", len(orgs))
		}

		if i < len(orgs)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.OrgDelay):
			}
		}
	}

	slog.Info("Processing complete",
		"processed", stats.Processed,
		"updated", stats.Updated,
		"with_titles", stats.WithTitles,
		"without_titles", stats.WithoutTitles,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"elapsed", time.Since(stats.Started).Round(time.Second).String(),
	)
	return stats, nil
}

// processOne never returns an error: any failure along the way degrades to a
// null-titles update, which is an expected outcome.
func (p *Pipeline) processOne(ctx context.Context, org domain.Organization) (domain.ExtractionResult, store.TitleUpdate) {
	var result domain.ExtractionResult
	upd := store.TitleUpdate{Method: p.opts.Method}

	careerURL, discovered := p.resolveCareerURL(ctx, org, &result)
	if careerURL == "" {
		result.Errors = append(result.Errors, "no career URL resolved")
		return result, upd
	}
	if discovered && careerURL != org.Jobs {
		upd.CorrectedJobsURL = careerURL
	}

	source := newPageSource(p.fetcher, careerURL)
	content, pages, language := p.gatherContent(ctx, careerURL, source, &result)
	if content == "" && len(pages) == 0 {
		result.Errors = append(result.Errors, "no content aggregated")
		// A corrected URL is only persisted when its page yielded content.
		upd.CorrectedJobsURL = ""
		return result, upd
	}
	result.SourcePages = pages
	result.Language = language
	upd.PageLanguage = result.Language

	titles, err := p.strategy.Extract(ctx, extractor.Input{
		OrgName: org.Name,
		Content: content,
		Page:    source,
	})
	if err != nil {
		slog.Error("Title extraction failed", "org", org.Name, "error", err)
		result.Errors = append(result.Errors, err.Error())
		return result, upd
	}

	result.Titles = titles
	upd.Titles = titles
	if len(titles) > 0 {
		slog.Info("Found job titles", "org", org.Name, "count", len(titles), "first", titles[0])
	} else {
		slog.Info("No job titles found", "org", org.Name)
	}
	return result, upd
}

func (p *Pipeline) resolveCareerURL(ctx context.Context, org domain.Organization, result *domain.ExtractionResult) (string, bool) {
	if p.opts.Method == domain.MethodAIWithDiscover {
		metrics.OracleCalls.WithLabelValues("careers_url").Inc()
		res, err := p.resolver.ResolveWithDiscovery(ctx, org)
		if err != nil {
			slog.Error("Career URL discovery failed", "org", org.Name, "error", err)
			result.Errors = append(result.Errors, err.Error())
			return "", false
		}
		return res.URL, res.Discovered
	}
	return p.resolver.ResolveHeuristic(org).URL, false
}

// gatherContent fetches the extraction input exactly once: the heuristic
// strategy works from the career page DOM alone, while the oracle strategies
// want the full aggregated crawl. The crawl's seed fetch doubles as the
// career-page fetch; it is never repeated.
func (p *Pipeline) gatherContent(ctx context.Context, careerURL string, source *fetchPageSource, result *domain.ExtractionResult) (string, []string, string) {
	if p.opts.Method == domain.MethodHeuristic {
		page := source.CareerPage(ctx)
		if page == nil {
			return "", nil, ""
		}
		return page.Text, []string{careerURL}, page.Language
	}

	agg, err := p.aggregator.Aggregate(ctx, careerURL, p.opts.MaxPages, p.opts.Delay)
	if err != nil {
		slog.Warn("Aggregation ended early", "url", careerURL, "error", err)
		result.Errors = append(result.Errors, err.Error())
	}
	if agg.Empty() {
		return "", nil, ""
	}
	return agg.Content, agg.Pages, agg.Language
}

type resultLine struct {
	Name        string   `json:"name"`
	CareersURL  string   `json:"careers_url,omitempty"`
	JobTitles   []string `json:"job_titles"`
	SourcePages []string `json:"source_pages,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	Method      string   `json:"extraction_method"`
	ExtractedAt string   `json:"extracted_at"`
}

func writeResultLine(f *os.File, org domain.Organization, result domain.ExtractionResult, upd store.TitleUpdate) {
	line := resultLine{
		Name:        org.Name,
		CareersURL:  upd.CorrectedJobsURL,
		JobTitles:   result.Titles,
		SourcePages: result.SourcePages,
		Errors:      result.Errors,
		Method:      string(upd.Method),
		ExtractedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if line.CareersURL == "" {
		line.CareersURL = org.Jobs
	}
	data, err := json.Marshal(line)
	if err != nil {
		slog.Error("Failed to marshal result line", "org", org.Name, "error", err)
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write result line", "org", org.Name, "error", err)
	}
}
