package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"guild-jukebox/pkg/retrylimit"

	"github.com/rs/zerolog"
)

func resultsPage(videos ...string) string {
	return fmt.Sprintf(`<html><script>var ytInitialData = {"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[%s]}}]}}}}};</script></html>`,
		strings.Join(videos, ","))
}

func video(id, title, length string) string {
	if length == "" {
		return fmt.Sprintf(`{"videoRenderer":{"videoId":%q,"title":{"runs":[{"text":%q}]}}}`, id, title)
	}
	return fmt.Sprintf(`{"videoRenderer":{"videoId":%q,"title":{"runs":[{"text":%q}]},"lengthText":{"simpleText":%q}}}`, id, title, length)
}

func TestClient_Search(t *testing.T) {
	t.Run("returns videos in provider order", func(t *testing.T) {
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("search_query")
			fmt.Fprint(w, resultsPage(
				video("id1", "First", "3:21"),
				`{"shelfRenderer":{}}`,
				video("id2", "Second live", ""),
				video("id1", "First again", "3:21"),
				video("id3", "Third", "10:02"),
			))
		}))
		defer srv.Close()

		c := New(srv.URL, srv.Client(), nil, zerolog.Nop())
		results, err := c.Search(context.Background(), "  lofi beats ")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if query != "lofi beats" {
			t.Errorf("expected trimmed keyword, got %q", query)
		}

		want := []Result{
			{Title: "First", ID: "id1", Duration: "3:21"},
			{Title: "Second live", ID: "id2"},
			{Title: "Third", ID: "id3", Duration: "10:02"},
		}
		if len(results) != len(want) {
			t.Fatalf("expected %d results, got %d: %+v", len(want), len(results), results)
		}
		for i := range want {
			if results[i] != want[i] {
				t.Errorf("result %d: expected %+v, got %+v", i, want[i], results[i])
			}
		}
	})

	t.Run("no videos is not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, resultsPage())
		}))
		defer srv.Close()

		c := New(srv.URL, srv.Client(), nil, zerolog.Nop())
		if _, err := c.Search(context.Background(), "nothing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("empty keyword", func(t *testing.T) {
		c := New("http://unused", nil, nil, zerolog.Nop())
		if _, err := c.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyKeyword) {
			t.Fatalf("expected ErrEmptyKeyword, got %v", err)
		}
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := New(srv.URL, srv.Client(), nil, zerolog.Nop())
		_, err := c.Search(context.Background(), "x")
		var perr *ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		var serr *retrylimit.StatusError
		if !errors.As(err, &serr) || serr.Code != http.StatusForbidden {
			t.Errorf("expected wrapped 403, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected a single request, got %d", calls.Load())
		}
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, resultsPage(video("id9", "Recovered", "1:00")))
		}))
		defer srv.Close()

		lim := retrylimit.NewAdaptiveLimiter(100, 1, 100, 1, 0.5)
		c := New(srv.URL, srv.Client(), lim, zerolog.Nop())
		results, err := c.Search(context.Background(), "x")
		if err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}
		if len(results) != 1 || results[0].ID != "id9" {
			t.Errorf("unexpected results %+v", results)
		}
		if lim.Limit() >= 100 {
			t.Errorf("expected limiter to slow down, got %v", lim.Limit())
		}
	})

	t.Run("page without data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>consent wall</html>")
		}))
		defer srv.Close()

		c := New(srv.URL, srv.Client(), nil, zerolog.Nop())
		var perr *ProviderError
		if _, err := c.Search(context.Background(), "x"); !errors.As(err, &perr) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
	})
}
