package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anajobs/packages/aggregator"
	"anajobs/packages/domain"
	"anajobs/packages/extractor"
	"anajobs/packages/fetcher"
	"anajobs/packages/resolver"
	"anajobs/packages/store"
)

type fakeStore struct {
	orgs    []domain.Organization
	updates map[string]store.TitleUpdate
}

func newFakeStore(orgs ...domain.Organization) *fakeStore {
	return &fakeStore{orgs: orgs, updates: make(map[string]store.TitleUpdate)}
}

func (f *fakeStore) FindOrganizations(ctx context.Context, limit int64) ([]domain.Organization, error) {
	if limit > 0 && int64(len(f.orgs)) > limit {
		return f.orgs[:limit], nil
	}
	return f.orgs, nil
}

func (f *fakeStore) UpdateJobTitles(ctx context.Context, name string, upd store.TitleUpdate) error {
	f.updates[name] = upd
	return nil
}

type fakeCheckpoint struct {
	seen   map[string]bool
	marked []string
}

func (f *fakeCheckpoint) Seen(ctx context.Context, orgName string) bool { return f.seen[orgName] }
func (f *fakeCheckpoint) Mark(ctx context.Context, orgName string) {
	f.marked = append(f.marked, orgName)
}

func careerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<h1>Careers at Example Org</h1>
			<h2>Senior Data Scientist</h2>
			<a class="btn" href="/apply-page">Apply Now</a>
		</body></html>`)
	}))
}

func newHeuristicPipeline(storage Store, cp Checkpoint, opts Options) *Pipeline {
	f := fetcher.New(5*time.Second, "anajobs-test/1.0", fetcher.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond})
	r := resolver.New(f, nil, 0)
	a := aggregator.New(f, nil, 0)
	opts.Method = domain.MethodHeuristic
	return New(storage, f, r, a, extractor.NewHeuristic(), cp, opts)
}

func TestRunHeuristicEndToEnd(t *testing.T) {
	srv := careerServer(t)
	defer srv.Close()

	storage := newFakeStore(domain.Organization{
		Name: "Example Org",
		Root: srv.URL,
		Jobs: srv.URL + "/careers",
	})

	p := newHeuristicPipeline(storage, nil, Options{Limit: 10})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.WithTitles)
	assert.Zero(t, stats.Failed)

	upd, ok := storage.updates["Example Org"]
	require.True(t, ok)
	assert.Contains(t, upd.Titles, "Senior Data Scientist")
	assert.NotContains(t, upd.Titles, "Apply Now")
	assert.Equal(t, domain.MethodHeuristic, upd.Method)
	assert.Empty(t, upd.CorrectedJobsURL)
}

func TestRunUnreachableCareerPageRecordsNull(t *testing.T) {
	srv := careerServer(t)
	jobsURL := srv.URL + "/careers"
	srv.Close()

	storage := newFakeStore(domain.Organization{Name: "Gone Org", Root: "https://gone.example", Jobs: jobsURL})

	p := newHeuristicPipeline(storage, nil, Options{Limit: 10})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.WithoutTitles)
	assert.Equal(t, 1, stats.Updated)

	upd, ok := storage.updates["Gone Org"]
	require.True(t, ok)
	assert.Nil(t, upd.Titles)
}

func TestRunMissingJobsURLRecordsNull(t *testing.T) {
	storage := newFakeStore(domain.Organization{Name: "No Jobs Org", Root: "https://example.org"})

	p := newHeuristicPipeline(storage, nil, Options{Limit: 10})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	upd, ok := storage.updates["No Jobs Org"]
	require.True(t, ok)
	assert.Nil(t, upd.Titles)
}

func TestRunDryRunSkipsWrites(t *testing.T) {
	srv := careerServer(t)
	defer srv.Close()

	storage := newFakeStore(domain.Organization{Name: "Example Org", Root: srv.URL, Jobs: srv.URL + "/careers"})

	p := newHeuristicPipeline(storage, nil, Options{Limit: 10, DryRun: true})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
	assert.Empty(t, storage.updates)
}

func TestRunCheckpointSkipsAndMarks(t *testing.T) {
	srv := careerServer(t)
	defer srv.Close()

	storage := newFakeStore(
		domain.Organization{Name: "Done Org", Root: srv.URL, Jobs: srv.URL + "/careers"},
		domain.Organization{Name: "Fresh Org", Root: srv.URL, Jobs: srv.URL + "/careers"},
	)
	cp := &fakeCheckpoint{seen: map[string]bool{"Done Org": true}}

	p := newHeuristicPipeline(storage, cp, Options{Limit: 10})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Processed)
	assert.NotContains(t, storage.updates, "Done Org")
	assert.Contains(t, storage.updates, "Fresh Org")
	assert.Equal(t, []string{"Fresh Org"}, cp.marked)
}

func TestRunWritesOutputFile(t *testing.T) {
	srv := careerServer(t)
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "results.jsonl")
	storage := newFakeStore(domain.Organization{Name: "Example Org", Root: srv.URL, Jobs: srv.URL + "/careers"})

	p := newHeuristicPipeline(storage, nil, Options{Limit: 10, Output: outPath})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var line resultLine
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	assert.Equal(t, "Example Org", line.Name)
	assert.Equal(t, srv.URL+"/careers", line.CareersURL)
	assert.Contains(t, line.JobTitles, "Senior Data Scientist")
	assert.Equal(t, string(domain.MethodHeuristic), line.Method)
	assert.NotEmpty(t, line.ExtractedAt)
	assert.False(t, scanner.Scan())
}

type stubStrategy struct {
	titles    []string
	calls     int
	lastInput extractor.Input
}

func (s *stubStrategy) Extract(ctx context.Context, in extractor.Input) ([]string, error) {
	s.calls++
	s.lastInput = in
	return s.titles, nil
}

func TestRunAIMethodFetchesCareerPageOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Open Positions</h1><p>Join our team.</p></body></html>`)
	}))
	defer srv.Close()

	storage := newFakeStore(domain.Organization{Name: "Example Org", Root: srv.URL, Jobs: srv.URL + "/careers"})
	strategy := &stubStrategy{titles: []string{"Grants Manager"}}

	f := fetcher.New(5*time.Second, "anajobs-test/1.0", fetcher.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond})
	p := New(storage, f, resolver.New(f, nil, 0), aggregator.New(f, nil, 0), strategy, nil, Options{
		Method: domain.MethodAI,
		Limit:  10,
	})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.WithTitles)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, strategy.calls)
	assert.Contains(t, strategy.lastInput.Content, "=== PAGE: "+srv.URL+"/careers ===")

	upd, ok := storage.updates["Example Org"]
	require.True(t, ok)
	assert.Equal(t, []string{"Grants Manager"}, upd.Titles)
}

func TestRunHonorsCancelledContext(t *testing.T) {
	storage := newFakeStore(domain.Organization{Name: "Example Org", Root: "https://example.org", Jobs: "https://example.org/careers"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newHeuristicPipeline(storage, nil, Options{Limit: 10})
	stats, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processed)
}
