package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"anajobs/packages/aggregator"
	"anajobs/packages/checkpoint"
	"anajobs/packages/config"
	"anajobs/packages/domain"
	"anajobs/packages/extractor"
	"anajobs/packages/fetcher"
	"anajobs/packages/logging"
	"anajobs/packages/metrics"
	"anajobs/packages/oracle"
	"anajobs/packages/pipeline"
	"anajobs/packages/resolver"
	"anajobs/packages/robots"
	"anajobs/packages/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		limit     = flag.Int64("limit", 0, "cap on organizations processed (0 = all)")
		test      = flag.Bool("test", false, "dry run: extract titles but do not update the database")
		method    = flag.String("method", "heuristic", "extraction method: heuristic, ai, or ai-discovery")
		output    = flag.String("output", "", "optional JSONL results file")
		apiKey    = flag.String("claude-api-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY)")
		yes       = flag.Bool("yes", false, "skip the full-run confirmation prompt")
		clearCkpt = flag.Bool("clear-checkpoint", false, "clear the resume checkpoint before starting")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return 1
	}
	logging.Setup("extract", cfg.LogFile, cfg.LogLevel)

	extractionMethod, err := parseMethod(*method)
	if err != nil {
		slog.Error("Invalid method", "method", *method, "error", err)
		return 1
	}

	if *apiKey != "" {
		cfg.AnthropicAPIKey = *apiKey
	}
	needsOracle := extractionMethod != domain.MethodHeuristic
	if needsOracle && cfg.AnthropicAPIKey == "" {
		slog.Error("Anthropic API key required for AI extraction", "method", *method)
		return 1
	}

	// Full production runs over the entire collection are slow and write
	// every record; require an explicit confirmation.
	if !*test && *limit == 0 && !*yes {
		if !confirm("Process ALL organizations? This may take a long time. Type 'YES' to continue: ") {
			fmt.Println("Operation cancelled")
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := store.New(ctx, store.Config{
		URI:            cfg.MongoURI,
		DatabaseName:   cfg.DatabaseName,
		CollectionName: cfg.CollectionName,
	})
	if err != nil {
		slog.Error("Failed to initialize document store", "error", err)
		return 1
	}
	defer storage.Close(context.Background())

	if cfg.MetricsAddr != "" {
		go metrics.ExposeMetrics(cfg.MetricsAddr)
	}

	retry := fetcher.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay}
	pageFetcher := fetcher.New(cfg.FetchTimeout, cfg.UserAgent, retry)
	robotsChecker := robots.NewChecker(nil, cfg.UserAgent)

	var oracleClient oracle.Client
	if cfg.AnthropicAPIKey != "" {
		oracleClient = oracle.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, nil)
	}

	careerResolver := resolver.New(pageFetcher, oracleClient, cfg.CandidateCap)
	contentAggregator := aggregator.New(pageFetcher, robotsChecker, cfg.MaxContentChars)

	var strategy extractor.Strategy
	if extractionMethod == domain.MethodHeuristic {
		strategy = extractor.NewHeuristic()
	} else {
		strategy = extractor.NewOracle(oracleClient)
	}

	var cp pipeline.Checkpoint
	if cfg.UseCheckpoint {
		ckpt, err := checkpoint.New(ctx, checkpoint.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.CheckpointKey,
		})
		if err != nil {
			slog.Warn("Checkpoint unavailable, continuing without resume support", "error", err)
		} else {
			defer ckpt.Close()
			if *clearCkpt {
				if err := ckpt.Clear(ctx); err != nil {
					slog.Warn("Failed to clear checkpoint", "error", err)
				}
			}
			cp = ckpt
		}
	}

	p := pipeline.New(storage, pageFetcher, careerResolver, contentAggregator, strategy, cp, pipeline.Options{
		Method:   extractionMethod,
		Limit:    *limit,
		DryRun:   *test,
		Output:   *output,
		MaxPages: cfg.MaxPages,
		Delay:    cfg.CrawlDelay,
		OrgDelay: cfg.OrgDelay,
	})

	stats, err := p.Run(ctx)

	fmt.Printf("\nProcessed: %d  Updated: %d  With titles: %d  Without: %d  Failed: %d  Skipped: %d\n",
		stats.Processed, stats.Updated, stats.WithTitles, stats.WithoutTitles, stats.Failed, stats.Skipped)

	// Per-organization failures are counted in the summary and do not fail
	// the run; an aborted batch does.
	if err != nil {
		if ctx.Err() != nil {
			slog.Warn("Run interrupted before completion", "processed", stats.Processed)
		} else {
			slog.Error("Run failed", "error", err)
		}
		return 1
	}
	return 0
}

func parseMethod(raw string) (domain.ExtractionMethod, error) {
	switch strings.ToLower(raw) {
	case "heuristic":
		return domain.MethodHeuristic, nil
	case "ai":
		return domain.MethodAI, nil
	case "ai-discovery", "ai_discovery":
		return domain.MethodAIWithDiscover, nil
	}
	return "", fmt.Errorf("unknown method %q", raw)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "YES"
}
