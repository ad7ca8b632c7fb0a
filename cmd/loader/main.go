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

	"anajobs/packages/config"
	"anajobs/packages/jsonl"
	"anajobs/packages/logging"
	"anajobs/packages/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dataFile = flag.String("data-file", "", "path to the organizations JSONL file (default: from config)")
		reset    = flag.Bool("reset", false, "clear the collection before loading")
		yes      = flag.Bool("yes", false, "skip the reset confirmation prompt")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return 1
	}
	logging.Setup("loader", cfg.LogFile, cfg.LogLevel)

	path := cfg.DataFile
	if *dataFile != "" {
		path = *dataFile
	}
	if _, err := os.Stat(path); err != nil {
		slog.Error("Data file not found", "path", path)
		return 1
	}

	if *reset && !*yes {
		if !confirm(fmt.Sprintf("Completely clear collection %q and reload? Type 'YES' to continue: ", cfg.CollectionName)) {
			fmt.Println("Operation cancelled")
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orgs, skipped, err := jsonl.LoadFile(path)
	if err != nil {
		slog.Error("Failed to load data file", "path", path, "error", err)
		return 1
	}
	if len(orgs) == 0 {
		slog.Error("No organizations found in data file", "path", path)
		return 1
	}

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

	if *reset {
		if _, err := storage.Reset(ctx); err != nil {
			slog.Error("Failed to clear collection", "error", err)
			return 1
		}
	}

	if err := storage.EnsureIndexes(ctx); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		return 1
	}

	inserted, err := storage.BulkInsert(ctx, orgs)
	if err != nil {
		slog.Error("Failed to populate database", "error", err)
		return 1
	}

	total, err := storage.Count(ctx)
	if err != nil {
		slog.Error("Verification count failed", "error", err)
		return 1
	}

	fmt.Printf("Loaded %d organizations (%d lines skipped); collection now holds %d documents\n",
		inserted, skipped, total)
	return 0
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
