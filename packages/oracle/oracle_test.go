package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONArray(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "bare array",
			raw:  `["Software Engineer", "Data Analyst"]`,
			want: []string{"Software Engineer", "Data Analyst"},
		},
		{
			name: "array wrapped in prose",
			raw:  "Here are the titles I found:\n[\"Program Officer\"]\nLet me know if you need more.",
			want: []string{"Program Officer"},
		},
		{
			name: "no array",
			raw:  "No open positions were listed on this page.",
			want: nil,
		},
		{
			name: "empty array",
			raw:  "[]",
			want: nil,
		},
		{
			name: "malformed array",
			raw:  `["Engineer", "Analyst"`,
			want: nil,
		},
		{
			name: "non-string elements",
			raw:  `[1, 2, 3]`,
			want: nil,
		},
		{
			name: "brackets out of order",
			raw:  `] nothing here [`,
			want: nil,
		},
		{
			name: "empty input",
			raw:  "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseJSONArray(tt.raw))
		})
	}
}

func TestParseJSONArrayRejectsOversizedPayload(t *testing.T) {
	items := make([]string, maxParsedTitles+1)
	for i := range items {
		items[i] = fmt.Sprintf("Engineer %d", i)
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	assert.Nil(t, ParseJSONArray(string(raw)))
}

func TestClaudeClientComplete(t *testing.T) {
	var gotVersion, gotKey string
	var gotBody claudeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"content":[{"type":"text","text":"  [\"Grants Manager\"]  "}]}`)
	}))
	defer srv.Close()

	client := &claudeClient{apiKey: "test-key", model: "test-model", baseURL: srv.URL, httpClient: srv.Client()}
	resp, err := client.Complete(context.Background(), Request{Prompt: "list titles", MaxTokens: 100, Temperature: 0.1})
	require.NoError(t, err)

	assert.Equal(t, `["Grants Manager"]`, resp)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "list titles", gotBody.Messages[0].Content)
}

func TestClaudeClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"overloaded"},"content":[]}`)
	}))
	defer srv.Close()

	client := &claudeClient{apiKey: "k", model: "m", baseURL: srv.URL, httpClient: srv.Client()}
	_, err := client.Complete(context.Background(), Request{Prompt: "p"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestClaudeClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := &claudeClient{apiKey: "k", model: "m", baseURL: srv.URL, httpClient: srv.Client()}
	_, err := client.Complete(context.Background(), Request{Prompt: "p"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
