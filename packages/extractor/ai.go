package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"anajobs/packages/metrics"
	"anajobs/packages/oracle"
)

// OracleStrategy delegates title extraction to the AI oracle with a
// structured prompt and parses the JSON array out of its free-text reply.
type OracleStrategy struct {
	client oracle.Client
}

func NewOracle(client oracle.Client) *OracleStrategy {
	return &OracleStrategy{client: client}
}

func (o *OracleStrategy) Extract(ctx context.Context, in Input) ([]string, error) {
	if o.client == nil {
		return nil, fmt.Errorf("oracle client not configured")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, nil
	}

	metrics.OracleCalls.WithLabelValues("job_titles").Inc()
	raw, err := o.client.Complete(ctx, oracle.Request{
		Prompt:      titlesPrompt(in.OrgName, in.Content),
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("title extraction call: %w", err)
	}

	parsed := oracle.ParseJSONArray(raw)
	if parsed == nil {
		slog.Warn("No valid JSON array in oracle response", "org", in.OrgName)
		return nil, nil
	}

	var titles []string
	seen := make(map[string]struct{})
	for _, t := range parsed {
		t = strings.TrimSpace(t)
		if len(t) < 3 || len(t) > 100 {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, t)
	}

	if len(titles) == 0 {
		return nil, nil
	}
	slog.Info("Oracle extracted job titles", "org", in.OrgName, "count", len(titles))
	return titles, nil
}

func titlesPrompt(orgName, content string) string {
	var b strings.Builder
	b.WriteString("You are an expert at extracting job titles from career page content. Extract ONLY the exact job titles/position names of currently open positions.\n\n")
	fmt.Fprintf(&b, "ORGANIZATION: %s\n\n", orgName)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Extract ONLY actual job titles/position names\n")
	b.WriteString("2. Do NOT include general descriptions, requirements text, company information, navigation elements, button text (like \"Apply Now\", \"Learn More\"), department names alone, or page headers/footers\n")
	b.WriteString("3. Return titles exactly as they appear, one instance per duplicate\n")
	b.WriteString("4. Return ONLY a valid JSON array of strings, nothing else\n\n")
	b.WriteString("EXAMPLES of what to extract: \"Software Engineer\", \"Senior Data Scientist\", \"Program Manager, Climate Policy\", \"Director of Marketing\"\n")
	b.WriteString("EXAMPLES of what NOT to extract: \"Apply Now\", \"Engineering\", \"We are looking for talented individuals\", \"View Details\"\n\n")
	b.WriteString("CAREER PAGE CONTENT:\n")
	b.WriteString(content)
	b.WriteString("\n\nReturn only the JSON array of job titles:")
	return b.String()
}
