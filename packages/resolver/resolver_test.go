package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anajobs/packages/domain"
	"anajobs/packages/fetcher"
	"anajobs/packages/oracle"
)

type scriptedOracle struct {
	reply   string
	err     error
	lastReq oracle.Request
	calls   int
}

func (s *scriptedOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	s.calls++
	s.lastReq = req
	return s.reply, s.err
}

func newRootServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="/about">About</a>
			<a href="/careers">Careers</a>
			<a href="/contact">Contact</a>
		</body></html>`)
	}))
}

func testFetcher() *fetcher.Fetcher {
	return fetcher.New(5*time.Second, "anajobs-test/1.0", fetcher.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond})
}

func TestResolveHeuristic(t *testing.T) {
	r := New(testFetcher(), nil, 0)

	res := r.ResolveHeuristic(domain.Organization{Jobs: "https://example.org/careers"})
	assert.True(t, res.Found())
	assert.Equal(t, "https://example.org/careers", res.URL)
	assert.False(t, res.Discovered)

	assert.False(t, r.ResolveHeuristic(domain.Organization{Jobs: "  "}).Found())
}

func TestResolveWithDiscoveryPicksCandidate(t *testing.T) {
	srv := newRootServer(t)
	defer srv.Close()

	client := &scriptedOracle{reply: srv.URL + "/careers"}
	r := New(testFetcher(), client, 50)

	res, err := r.ResolveWithDiscovery(context.Background(), domain.Organization{Name: "Example Org", Root: srv.URL})
	require.NoError(t, err)

	assert.True(t, res.Found())
	assert.True(t, res.Discovered)
	assert.Equal(t, srv.URL+"/careers", res.URL)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.lastReq.Prompt, srv.URL+"/about")
}

func TestResolveWithDiscoveryNoneSentinel(t *testing.T) {
	srv := newRootServer(t)
	defer srv.Close()

	client := &scriptedOracle{reply: "NONE"}
	r := New(testFetcher(), client, 50)

	res, err := r.ResolveWithDiscovery(context.Background(), domain.Organization{Name: "Example Org", Root: srv.URL})
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestResolveWithDiscoveryFailsClosedOnUnknownURL(t *testing.T) {
	srv := newRootServer(t)
	defer srv.Close()

	client := &scriptedOracle{reply: "https://evil.example.com/careers"}
	r := New(testFetcher(), client, 50)

	res, err := r.ResolveWithDiscovery(context.Background(), domain.Organization{Name: "Example Org", Root: srv.URL})
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestResolveWithDiscoveryFailsClosedOnProse(t *testing.T) {
	srv := newRootServer(t)
	defer srv.Close()

	client := &scriptedOracle{reply: "The best match seems to be the careers page."}
	r := New(testFetcher(), client, 50)

	res, err := r.ResolveWithDiscovery(context.Background(), domain.Organization{Name: "Example Org", Root: srv.URL})
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestResolveWithDiscoveryUnreachableRoot(t *testing.T) {
	srv := newRootServer(t)
	rootURL := srv.URL
	srv.Close()

	client := &scriptedOracle{reply: "NONE"}
	r := New(testFetcher(), client, 50)

	res, err := r.ResolveWithDiscovery(context.Background(), domain.Organization{Name: "Example Org", Root: rootURL})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Zero(t, client.calls)
}

func TestResolveWithDiscoveryRequiresClient(t *testing.T) {
	r := New(testFetcher(), nil, 50)
	_, err := r.ResolveWithDiscovery(context.Background(), domain.Organization{Name: "Example Org", Root: "https://example.org"})
	require.Error(t, err)
}
