package wikipedia

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/songscout/internal/source"
)

const midnightCitySummary = `{
	"title": "Midnight City",
	"description": "2011 single by M83",
	"extract": "\"Midnight City\" is a song by French electronic band M83 from their sixth studio album.",
	"pageid": 123,
	"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Midnight_City"}}
}`

const midnightCityParse = `{
	"parse": {
		"title": "Midnight City",
		"pageid": 123,
		"text": "<table class=\"infobox\"><tr><th>Genre</th><td>Synth-pop, new wave</td></tr><tr><th>Released</th><td>16 August 2011</td></tr><tr><th>Album</th><td>Hurry Up</td></tr><tr><th>Label</th><td>Naive</td></tr></table>"
	}
}`

const languageSummary = `{
	"title": "Go (programming language)",
	"description": "Programming language",
	"extract": "Go is a statically typed, compiled programming language.",
	"pageid": 99,
	"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Go"}}
}`

func newTestServer(t *testing.T, parseStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/"):
			query := strings.TrimPrefix(r.URL.Path, "/api/rest_v1/page/summary/")
			switch query {
			case "Midnight City M83", "Midnight City song":
				fmt.Fprint(w, midnightCitySummary)
			case "Go Anders": // only the second variant resolves
				w.WriteHeader(http.StatusNotFound)
			case "Go song":
				fmt.Fprint(w, midnightCitySummary)
			case "Rust Ferris", "Rust song", "Ferris Rust":
				fmt.Fprint(w, languageSummary)
			case "throttled", "throttled song":
				w.WriteHeader(http.StatusTooManyRequests)
			default:
				w.WriteHeader(http.StatusNotFound)
			}

		case r.URL.Path == "/w/api.php":
			if parseStatus != http.StatusOK {
				w.WriteHeader(parseStatus)
				return
			}
			if r.URL.Query().Get("pageid") != "123" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, midnightCityParse)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limiter := source.NewRateLimiterMap()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, 5*time.Second, baseURL)
}

func TestName(t *testing.T) {
	a := newTestAdapter(t, "http://localhost")
	if a.Name() != source.NameWikipedia {
		t.Errorf("expected %q, got %q", source.NameWikipedia, a.Name())
	}
}

func TestLookupSuccess(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	res := a.Lookup(context.Background(), "Midnight City", "M83")
	if !res.OK() {
		t.Fatalf("expected success, got failure: %+v", res.Failure)
	}
	f := res.Fields
	if f.Title != "Midnight City" {
		t.Errorf("expected page title, got %q", f.Title)
	}
	if !strings.Contains(f.Summary, "French electronic band") {
		t.Errorf("expected extract as summary, got %q", f.Summary)
	}
	if f.URL != "https://en.wikipedia.org/wiki/Midnight_City" {
		t.Errorf("unexpected canonical url %q", f.URL)
	}
	if f.Genre != "Synth-pop" {
		t.Errorf("expected infobox genre, got %q", f.Genre)
	}
	if f.Year == nil || *f.Year != 2011 {
		t.Errorf("expected infobox year 2011, got %v", f.Year)
	}
	if f.Album != "Hurry Up" || f.Label != "Naive" {
		t.Errorf("expected infobox album/label, got %q / %q", f.Album, f.Label)
	}
}

func TestLookupVariantFallback(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	// "Go Anders" 404s; "Go song" resolves.
	res := a.Lookup(context.Background(), "Go", "Anders")
	if !res.OK() {
		t.Fatalf("expected success via second variant, got %+v", res.Failure)
	}
}

func TestLookupRejectsNonMusicPages(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	res := a.Lookup(context.Background(), "Rust", "Ferris")
	if res.OK() {
		t.Fatal("expected failure for page without music keywords")
	}
	if res.Failure.Kind != source.FailNotFound {
		t.Errorf("expected not-found, got %q", res.Failure.Kind)
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	res := a.Lookup(context.Background(), "Completely Unknown Song Title", "")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != source.FailNotFound {
		t.Errorf("expected not-found, got %q", res.Failure.Kind)
	}
}

func TestLookupRateLimited(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	res := a.Lookup(context.Background(), "throttled", "")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != source.FailRateLimited {
		t.Errorf("expected rate-limited, got %q", res.Failure.Kind)
	}
}

func TestLookupDegradesWithoutPageContent(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	res := a.Lookup(context.Background(), "Midnight City", "M83")
	if !res.OK() {
		t.Fatalf("expected summary-only success, got %+v", res.Failure)
	}
	if res.Fields.Summary == "" {
		t.Error("expected summary to survive content fetch failure")
	}
	if res.Fields.Genre != "" || res.Fields.Year != nil {
		t.Error("expected no infobox enrichment when content fetch fails")
	}
}

func TestQueryVariants(t *testing.T) {
	got := queryVariants("Midnight City", "M83")
	want := []string{"Midnight City M83", "Midnight City song", "M83 Midnight City"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("variants with artist = %v, want %v", got, want)
	}

	got = queryVariants("Midnight City", "")
	want = []string{"Midnight City", "Midnight City song"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("variants without artist = %v, want %v", got, want)
	}
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("é", 600)
	if got := truncateRunes(long, 500); len([]rune(got)) != 500 {
		t.Errorf("expected 500 runes, got %d", len([]rune(got)))
	}
	if got := truncateRunes("short", 500); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}
