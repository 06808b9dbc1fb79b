package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/pkg/errors"
)

func analysisServer(t *testing.T, respond func(prompt string) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		text, status := respond(req.Prompt)
		if status != http.StatusOK {
			http.Error(w, text, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"response": text})
	}))
}

func testReqsAndSet(codes ...string) (*document.RequirementSet, *matching.MatchSet) {
	reqs := &document.RequirementSet{StandardID: "std"}
	set := matching.NewMatchSet("std", "rep-1", matching.Policy{TopK: 3, MinScore: 0})
	for i, code := range codes {
		reqs.Items = append(reqs.Items, document.Requirement{
			Segment: document.Segment{ID: document.SegmentID("std", i), Ordinal: i, Text: "requirement " + code},
			Code:    code,
		})
		set.Matches[code] = []matching.Match{{
			RequirementCode: code,
			ParagraphID:     document.SegmentID("rep-1", i),
			ParagraphText:   "passage for " + code,
			ReportID:        "rep-1",
			Score:           0.9,
			Rank:            1,
		}}
	}
	return reqs, set
}

func TestCommentaryReturnsResponseVerbatim(t *testing.T) {
	srv := analysisServer(t, func(prompt string) (string, int) {
		assert.Contains(t, prompt, "requirement 305-1")
		assert.Contains(t, prompt, "1. passage one")
		return "  The passage addresses the clause in full.\n", http.StatusOK
	})
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
	got, err := svc.Commentary(context.Background(), "requirement 305-1", []string{"passage one"})
	require.NoError(t, err)
	assert.Equal(t, "The passage addresses the clause in full.", got)
}

func TestCommentaryBackendDown(t *testing.T) {
	svc := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond}, nil)
	_, err := svc.Commentary(context.Background(), "req", []string{"p"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisUnavailable))
}

func TestAnnotateFillsTopMatch(t *testing.T) {
	srv := analysisServer(t, func(string) (string, int) {
		return "looks complete", http.StatusOK
	})
	defer srv.Close()

	reqs, set := testReqsAndSet("305-1", "305-2")
	set.Matches["305-3"] = nil // no matches, must be skipped
	svc := New(Config{BaseURL: srv.URL}, nil)

	n := svc.Annotate(context.Background(), reqs, set)
	assert.Equal(t, 2, n)
	assert.Equal(t, "looks complete", set.Matches["305-1"][0].Commentary)
	assert.Equal(t, "looks complete", set.Matches["305-2"][0].Commentary)
}

func TestAnnotateFailuresAreNonFatal(t *testing.T) {
	var calls atomic.Int32
	srv := analysisServer(t, func(string) (string, int) {
		if calls.Add(1) == 1 {
			return "backend busy", http.StatusServiceUnavailable
		}
		return "fine", http.StatusOK
	})
	defer srv.Close()

	reqs, set := testReqsAndSet("305-1", "305-2")
	svc := New(Config{BaseURL: srv.URL}, nil)

	n := svc.Annotate(context.Background(), reqs, set)
	assert.Equal(t, 1, n)
	assert.Empty(t, set.Matches["305-1"][0].Commentary)
	assert.Equal(t, "fine", set.Matches["305-2"][0].Commentary)
}

func TestAnnotateStopsOnCancelledContext(t *testing.T) {
	srv := analysisServer(t, func(string) (string, int) { return "x", http.StatusOK })
	defer srv.Close()

	reqs, set := testReqsAndSet("305-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := New(Config{BaseURL: srv.URL}, nil).Annotate(ctx, reqs, set)
	assert.Zero(t, n)
}
