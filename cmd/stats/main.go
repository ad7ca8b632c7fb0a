package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"anajobs/packages/config"
	"anajobs/packages/logging"
	"anajobs/packages/store"

	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		search = flag.String("search", "", "case-insensitive substring search on organization names")
		domain = flag.String("domain", "", "filter organizations by root-URL domain suffix (e.g. .org)")
		org    = flag.String("org", "", "look up a single organization by exact name")
		limit  = flag.Int64("limit", 10, "maximum search results")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return 1
	}
	logging.Setup("stats", cfg.LogFile, cfg.LogLevel)

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

	switch {
	case *search != "":
		return searchCommand(ctx, storage, *search, *limit)
	case *domain != "":
		return domainCommand(ctx, storage, *domain)
	case *org != "":
		return orgCommand(ctx, storage, *org)
	default:
		return statsCommand(ctx, storage)
	}
}

func searchCommand(ctx context.Context, storage *store.Storage, term string, limit int64) int {
	orgs, err := storage.Search(ctx, term, limit)
	if err != nil {
		slog.Error("Search failed", "term", term, "error", err)
		return 1
	}
	fmt.Printf("Found %d organizations matching %q:\n", len(orgs), term)
	for i, o := range orgs {
		fmt.Printf("  %d. %s\n     Jobs: %s\n", i+1, o.Name, o.Jobs)
	}
	return 0
}

func domainCommand(ctx context.Context, storage *store.Storage, suffix string) int {
	orgs, err := storage.ByDomain(ctx, suffix)
	if err != nil {
		slog.Error("Domain filter failed", "suffix", suffix, "error", err)
		return 1
	}
	fmt.Printf("Found %d organizations with domain %q\n", len(orgs), suffix)
	for i, o := range orgs {
		if i >= 20 {
			fmt.Printf("  ... and %d more\n", len(orgs)-20)
			break
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, o.Name, o.Root)
	}
	return 0
}

func orgCommand(ctx context.Context, storage *store.Storage, name string) int {
	o, err := storage.FindByName(ctx, name)
	if errors.Is(err, mongo.ErrNoDocuments) {
		fmt.Printf("Organization %q not found\n", name)
		return 1
	}
	if err != nil {
		slog.Error("Lookup failed", "org", name, "error", err)
		return 1
	}
	fmt.Printf("Name: %s\nRoot URL: %s\nJobs URL: %s\n", o.Name, o.Root, o.Jobs)
	if o.JobTitles != nil {
		fmt.Printf("Job titles (%d, updated %s):\n", len(o.JobTitles), o.JobTitlesUpdatedAt)
		for _, t := range o.JobTitles {
			fmt.Printf("  - %s\n", t)
		}
	} else {
		fmt.Println("Job titles: none recorded")
	}
	return 0
}

func statsCommand(ctx context.Context, storage *store.Storage) int {
	st, err := storage.CollectionStats(ctx)
	if err != nil {
		slog.Error("Stats query failed", "error", err)
		return 1
	}
	fmt.Println("Database Statistics:")
	fmt.Printf("  Total Organizations: %d\n", st.Total)
	fmt.Printf("  Scraped: %d\n", st.Scraped)
	fmt.Printf("  Not Scraped: %d\n", st.Total-st.Scraped)
	fmt.Printf("  With Job Titles: %d\n", st.WithTitles)
	fmt.Printf("  .org Domains: %d\n", st.OrgDomains)
	fmt.Printf("  Other Domains: %d\n", st.Total-st.OrgDomains)
	return 0
}
