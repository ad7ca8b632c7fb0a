// Package robots consults robots.txt once per domain before a crawl. Rules
// are matched by path prefix for the wildcard agent and our own agent token.
// Any failure fetching or parsing defaults to allow.
package robots

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Rules struct {
	disallowPrefixes []string
}

// Allowed reports whether path is permitted. Nil or empty rules allow
// everything.
func (r *Rules) Allowed(path string) bool {
	if r == nil || len(r.disallowPrefixes) == 0 {
		return true
	}
	path = normalizePath(path)
	for _, prefix := range r.disallowPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// Parse reads robots.txt content and keeps the Disallow rules that apply to
// agent (or to *). Crawl-delay and Allow refinements are ignored; the caller
// already self-throttles.
func Parse(body []byte, agent string) *Rules {
	rules := &Rules{}
	applies := false
	agent = strings.ToLower(agent)

	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			applies = ua == "*" || (ua != "" && strings.Contains(agent, ua))
		case "disallow":
			if applies && value != "" {
				rules.disallowPrefixes = append(rules.disallowPrefixes, normalizePath(value))
			}
		}
	}
	return rules
}

// Checker caches per-host rules for the lifetime of a run.
type Checker struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	rules map[string]*Rules
}

func NewChecker(client *http.Client, userAgent string) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Checker{
		client:    client,
		userAgent: userAgent,
		rules:     make(map[string]*Rules),
	}
}

// Allowed reports whether rawURL may be fetched. The host's robots.txt is
// fetched at most once; fetch or parse failure fails open.
func (c *Checker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	c.mu.Lock()
	rules, ok := c.rules[u.Host]
	c.mu.Unlock()

	if !ok {
		rules = c.fetchRules(ctx, u)
		c.mu.Lock()
		c.rules[u.Host] = rules
		c.mu.Unlock()
	}

	return rules.Allowed(u.Path)
}

func (c *Checker) fetchRules(ctx context.Context, u *url.URL) *Rules {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("Could not fetch robots.txt, defaulting to allow", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	return Parse(body, c.userAgent)
}
