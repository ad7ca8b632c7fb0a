// Package resolver decides which single URL is an organization's career root.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"anajobs/packages/domain"
	"anajobs/packages/fetcher"
	"anajobs/packages/links"
	"anajobs/packages/oracle"
)

// noneSentinel is the literal the oracle returns when no candidate fits. It is
// a wire-protocol detail and never leaves this package.
const noneSentinel = "NONE"

// Resolution is the tagged outcome of a resolve call.
type Resolution struct {
	URL        string
	Discovered bool // true when the URL came from oracle discovery, not the stored jobs field
}

// Found reports whether a career URL was resolved.
func (r Resolution) Found() bool { return r.URL != "" }

// Resolver picks one career URL per organization.
type Resolver struct {
	fetcher      *fetcher.Fetcher
	client       oracle.Client
	candidateCap int
}

func New(f *fetcher.Fetcher, client oracle.Client, candidateCap int) *Resolver {
	if candidateCap <= 0 {
		candidateCap = 50
	}
	return &Resolver{fetcher: f, client: client, candidateCap: candidateCap}
}

// ResolveHeuristic treats the stored jobs URL as authoritative.
func (r *Resolver) ResolveHeuristic(org domain.Organization) Resolution {
	if strings.TrimSpace(org.Jobs) == "" {
		return Resolution{}
	}
	return Resolution{URL: org.Jobs}
}

// ResolveWithDiscovery fetches the organization's root page, collects a capped
// same-domain candidate set, and asks the oracle to pick exactly one URL. The
// answer must be the NONE sentinel or a member of the candidate set; anything
// else fails closed to an empty Resolution. One oracle call per organization.
func (r *Resolver) ResolveWithDiscovery(ctx context.Context, org domain.Organization) (Resolution, error) {
	if r.client == nil {
		return Resolution{}, fmt.Errorf("oracle client not configured")
	}

	page, err := r.fetcher.Fetch(ctx, org.Root)
	if err != nil {
		slog.Warn("Root page unreachable", "org", org.Name, "url", org.Root, "error", err)
		return Resolution{}, nil
	}
	if page.IsNonHTML || page.Doc == nil {
		return Resolution{}, nil
	}

	candidates := links.AllLinks(page.Doc, page.FinalURL, r.candidateCap)
	if len(candidates) == 0 {
		slog.Warn("No links found on main page", "org", org.Name, "url", org.Root)
		return Resolution{}, nil
	}

	answer, err := r.client.Complete(ctx, oracle.Request{
		Prompt:      careersPrompt(org.Name, candidates),
		MaxTokens:   200,
		Temperature: 0.1,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("careers URL identification: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == noneSentinel || !strings.HasPrefix(answer, "http") {
		slog.Info("Oracle found no clear careers URL", "org", org.Name)
		return Resolution{}, nil
	}

	for _, c := range candidates {
		if c == answer {
			slog.Info("Identified careers URL from main page", "org", org.Name, "url", answer)
			return Resolution{URL: answer, Discovered: true}, nil
		}
	}

	slog.Warn("Oracle suggested URL not in candidate set", "org", org.Name, "url", answer)
	return Resolution{}, nil
}

func careersPrompt(orgName string, candidates []string) string {
	var b strings.Builder
	b.WriteString("You are an expert at identifying career/job pages from website navigation links.\n\n")
	fmt.Fprintf(&b, "ORGANIZATION: %s\n\n", orgName)
	b.WriteString("TASK: From the following list of URLs found on this organization's main page, identify the SINGLE URL that is most likely to be the careers/jobs page where job openings would be listed.\n\n")
	b.WriteString("Look for URLs containing terms like: careers, jobs, openings, positions, opportunities, employment, hiring, work-with-us, join-us, join-our-team.\n\n")
	b.WriteString("MAIN PAGE LINKS:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nINSTRUCTIONS:\n")
	b.WriteString("1. Return ONLY the single most likely careers/jobs URL\n")
	b.WriteString("2. If no obvious careers URL exists, return \"NONE\"\n")
	b.WriteString("3. Do not return multiple URLs - pick the best one\n")
	b.WriteString("4. Return just the URL, nothing else\n")
	return b.String()
}
