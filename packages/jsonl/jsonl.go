// Package jsonl loads newline-delimited organization records. Lines that are
// not valid JSON get a regex salvage pass (some source exports were corrupted
// by unescaped quotes); lines that still fail are skipped with a warning, and
// the returned count excludes them.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"anajobs/packages/domain"
)

var (
	namePattern     = regexp.MustCompile(`"name":"([^"]+)"`)
	urlPattern      = regexp.MustCompile(`https://[^\s",%]+`)
	trailingPattern = regexp.MustCompile(`[^\w\-\./:]+$`)
)

// LoadFile reads organizations from path. The second return value is the
// number of lines skipped.
func LoadFile(path string) ([]domain.Organization, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var orgs []domain.Organization
	skipped := 0
	lineNum := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		org, ok := parseLine(line)
		if !ok {
			slog.Warn("Skipping unparseable line", "line", lineNum, "prefix", prefix(line, 100))
			skipped++
			continue
		}
		orgs = append(orgs, org)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading %s: %w", path, err)
	}

	slog.Info("Parsed organizations from data file", "path", path, "count", len(orgs), "skipped", skipped)
	return orgs, skipped, nil
}

func parseLine(line string) (domain.Organization, bool) {
	var org domain.Organization
	if err := json.Unmarshal([]byte(line), &org); err == nil {
		if org.Name != "" && org.Root != "" {
			applyDefaults(&org)
			return org, true
		}
		return domain.Organization{}, false
	}
	return salvageLine(line)
}

// salvageLine extracts name plus the first two https URLs from a corrupted
// line. First URL is the root, second the jobs page.
func salvageLine(line string) (domain.Organization, bool) {
	nameMatch := namePattern.FindStringSubmatch(line)
	if nameMatch == nil {
		return domain.Organization{}, false
	}
	urls := urlPattern.FindAllString(line, -1)
	if len(urls) < 2 {
		return domain.Organization{}, false
	}

	org := domain.Organization{
		Name: nameMatch[1],
		Root: trailingPattern.ReplaceAllString(urls[0], ""),
		Jobs: trailingPattern.ReplaceAllString(urls[1], ""),
	}
	applyDefaults(&org)
	return org, true
}

func applyDefaults(org *domain.Organization) {
	if org.Status == "" {
		org.Status = "active"
	}
	org.Scraped = false
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
