package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<html><head><title>Careers</title>
<script>console.log("tracking")</script>
<style>body { color: red }</style>
</head><body>
<nav><a href="/">Home</a></nav>
<header>Example Org</header>
<main>
	<h1>Open Positions</h1>
	<p>Join	our
	team today.</p>
</main>
<footer>Copyright 2024</footer>
</body></html>`

func newTestFetcher(timeout time.Duration) *Fetcher {
	return New(timeout, "anajobs-test/1.0", RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond})
}

func TestFetchStripsNonContentElements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	page, err := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.False(t, page.IsNonHTML)
	assert.Contains(t, page.TextContent, "Open Positions")
	assert.Contains(t, page.TextContent, "Join our team today.")
	assert.NotContains(t, page.TextContent, "tracking")
	assert.NotContains(t, page.TextContent, "color: red")
	assert.NotContains(t, page.TextContent, "Copyright")
	assert.NotContains(t, page.TextContent, "Home")
	require.NotNil(t, page.Doc)
	// The nav link must survive on the document for link classification.
	assert.Equal(t, 1, page.Doc.Find("nav a").Length())
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	_, err := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "anajobs-test/1.0", gotAgent)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Careers</h1></body></html>")
	}))
	defer srv.Close()

	page, err := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Contains(t, page.TextContent, "Careers")
}

func TestFetchReturnsErrorAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchNonHTMLContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer srv.Close()

	page, err := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, page.IsNonHTML)
	assert.Nil(t, page.Doc)
	assert.Empty(t, page.TextContent)
}

func TestFetchRecordsFinalURLAfterRedirect(t *testing.T) {
	var finalURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/careers", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/careers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>Jobs</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	finalURL = srv.URL + "/careers"

	page, err := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, finalURL, page.FinalURL)
}

func TestCollapseText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"  leading and   trailing  ", "leading and trailing"},
		{"line\none\n\nline two", "line one line two"},
		{"tabs\tand\r\nreturns", "tabs and returns"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CollapseText(tt.in))
	}
}
