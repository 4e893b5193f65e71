// Package musicbrainz implements the music-database lookup source. It
// issues a structured recording query and maps the first match: title,
// credited artist, duration, and album/year from the first release.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/songscout/internal/source"
	"github.com/sydlexius/songscout/internal/version"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Adapter implements the source.Source interface for MusicBrainz.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration) *Adapter {
	return NewWithBaseURL(limiter, logger, timeout, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() source.Name { return source.NameMusicBrainz }

// Lookup searches MusicBrainz for the recording. All failure modes are
// captured as a failure Result.
func (a *Adapter) Lookup(ctx context.Context, title, artist string) source.Result {
	fields, err := a.fetch(ctx, title, artist)
	if err != nil {
		return source.Classify(source.NameMusicBrainz, err)
	}
	return source.Success(source.NameMusicBrainz, fields)
}

func (a *Adapter) fetch(ctx context.Context, title, artist string) (*source.Fields, error) {
	query := buildQuery(title, artist)

	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {"5"},
	}
	reqURL := a.baseURL + "/recording?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &source.ErrParse{Source: source.NameMusicBrainz, Cause: err}
	}
	if len(resp.Recordings) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameMusicBrainz, Query: query}
	}

	return mapRecording(&resp.Recordings[0]), nil
}

// buildQuery assembles the Lucene query: recording title plus, when
// present, the artist.
func buildQuery(title, artist string) string {
	query := fmt.Sprintf("recording:%q", title)
	if artist != "" {
		query += fmt.Sprintf(" AND artist:%q", artist)
	}
	return query
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, source.NameMusicBrainz); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameMusicBrainz, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrNotFound{Source: source.NameMusicBrainz, Query: reqURL}
	case http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrRateLimited{Source: source.NameMusicBrainz, RetryAfter: 2 * time.Second}
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapRecording converts a MusicBrainz recording to the common field bag.
func mapRecording(rec *Recording) *source.Fields {
	fields := &source.Fields{
		Title: rec.Title,
	}
	if len(rec.ArtistCredit) > 0 {
		fields.Artist = rec.ArtistCredit[0].Name
	}

	extra := make(map[string]any)
	if rec.Length > 0 {
		// Milliseconds; stored as float64 so the wire shape round-trips.
		extra["duration"] = float64(rec.Length)
	}
	if rec.ID != "" {
		extra["musicbrainz_id"] = rec.ID
	}

	if len(rec.Releases) > 0 {
		release := rec.Releases[0]
		if release.Title != "" {
			fields.Album = release.Title
		}
		if year, ok := yearFromDate(release.Date); ok {
			fields.Year = &year
		}
	}

	if len(extra) > 0 {
		fields.Extra = extra
	}
	return fields
}

// yearFromDate takes the first 4 digits of a release date ("1983-10-03",
// "1983-10", or "1983").
func yearFromDate(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0, false
		}
		year = year*10 + int(r-'0')
	}
	return year, true
}

func userAgent() string {
	return fmt.Sprintf("Songscout/%s (https://github.com/sydlexius/songscout)", version.Version)
}
