package songbpm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sydlexius/songscout/internal/source"
)

const searchHit = `{
	"search": [
		{
			"id": "abc123",
			"song_title": "Midnight City",
			"artist": {"name": "M83", "uri": "https://getsongbpm.com/artist/m83"},
			"tempo": "105",
			"song_key": "F Major",
			"energy": "0.73",
			"danceability": 0.58
		}
	]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path != "/search/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Query().Get("lookup") {
		case "nothing here":
			fmt.Fprint(w, `{"search": []}`)
		case "throttled":
			w.WriteHeader(http.StatusTooManyRequests)
		case "broken":
			fmt.Fprint(w, `{"search": {"error": "api error"}}`)
		default:
			fmt.Fprint(w, searchHit)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL, apiKey string) *Adapter {
	t.Helper()
	limiter := source.NewRateLimiterMap()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, 5*time.Second, apiKey, baseURL)
}

func TestName(t *testing.T) {
	a := newTestAdapter(t, "http://localhost", "key")
	if a.Name() != source.NameSongBPM {
		t.Errorf("expected %q, got %q", source.NameSongBPM, a.Name())
	}
}

func TestLookupSuccess(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "key")

	res := a.Lookup(context.Background(), "Midnight City", "M83")
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res.Failure)
	}
	f := res.Fields
	if f.BPM == nil || *f.BPM != 105 {
		t.Errorf("expected bpm 105, got %v", f.BPM)
	}
	if f.Key != "F Major" {
		t.Errorf("expected key F Major, got %q", f.Key)
	}
	if f.Title != "Midnight City" || f.Artist != "M83" {
		t.Errorf("unexpected title/artist %q / %q", f.Title, f.Artist)
	}
	if v, ok := f.Extra["energy"].(float64); !ok || v != 0.73 {
		t.Errorf("expected energy 0.73, got %v", f.Extra["energy"])
	}
	if v, ok := f.Extra["danceability"].(float64); !ok || v != 0.58 {
		t.Errorf("expected danceability 0.58, got %v", f.Extra["danceability"])
	}
}

func TestLookupWithoutKeyReturnsStub(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "")

	res := a.Lookup(context.Background(), "Midnight City", "M83")
	if !res.OK() {
		t.Fatalf("keyless lookup must stay success-shaped, got %+v", res.Failure)
	}
	if !res.Fields.Empty() {
		t.Errorf("stub bag must be empty, got %+v", res.Fields)
	}
	if res.Fields.Note == "" {
		t.Error("stub must carry an explanatory note")
	}
	if res.Contributed() {
		t.Error("stub must not count as a contribution")
	}
}

func TestLookupNoResults(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "key")

	res := a.Lookup(context.Background(), "nothing", "here")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != source.FailNotFound {
		t.Errorf("expected not-found, got %q", res.Failure.Kind)
	}
}

func TestLookupRateLimited(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "key")

	res := a.Lookup(context.Background(), "throttled", "")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != source.FailRateLimited {
		t.Errorf("expected rate-limited, got %q", res.Failure.Kind)
	}
}

func TestLookupParseError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "key")

	res := a.Lookup(context.Background(), "broken", "")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != source.FailParse {
		t.Errorf("expected parse-error, got %q", res.Failure.Kind)
	}
}

func TestLookupServerDown(t *testing.T) {
	srv := newTestServer(t)
	srv.Close() // connection refused
	a := newTestAdapter(t, srv.URL, "key")

	res := a.Lookup(context.Background(), "Midnight City", "M83")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != source.FailNetwork {
		t.Errorf("expected network, got %q", res.Failure.Kind)
	}
}

func TestArtistFieldDecodesBothShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"name": "M83"}`, "M83"},
		{`"M83"`, "M83"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var a ArtistField
		if err := a.UnmarshalJSON([]byte(tc.raw)); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", tc.raw, err)
		}
		if a.Name != tc.want {
			t.Errorf("ArtistField(%s) = %q, want %q", tc.raw, a.Name, tc.want)
		}
	}
}

func TestFlexStringNumbers(t *testing.T) {
	var f FlexString
	if err := f.UnmarshalJSON([]byte(`120`)); err != nil {
		t.Fatal(err)
	}
	if v, ok := f.Int(); !ok || v != 120 {
		t.Errorf("expected 120, got %v %v", v, ok)
	}
	if err := f.UnmarshalJSON([]byte(`"0.5"`)); err != nil {
		t.Fatal(err)
	}
	if v, ok := f.Float(); !ok || v != 0.5 {
		t.Errorf("expected 0.5, got %v %v", v, ok)
	}
	if err := f.UnmarshalJSON([]byte(`null`)); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.Int(); ok {
		t.Error("null must not parse as a number")
	}
}
