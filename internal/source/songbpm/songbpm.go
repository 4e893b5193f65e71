// Package songbpm implements the tempo/key lookup source against the
// GetSongBPM API. The API needs a key; without one the adapter stays
// success-shaped but reports a note-only bag, so "reachable but
// inconclusive" stays distinguishable from "unreachable".
package songbpm

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

const defaultBaseURL = "https://api.getsongbpm.com"

// Adapter implements the source.Source interface for GetSongBPM.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	apiKey  string
}

// New creates a GetSongBPM adapter with the default base URL. An empty
// apiKey is a valid configuration, not an error.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration, apiKey string) *Adapter {
	return NewWithBaseURL(limiter, logger, timeout, apiKey, defaultBaseURL)
}

// NewWithBaseURL creates a GetSongBPM adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration, apiKey, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "songbpm")),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Name returns the source name.
func (a *Adapter) Name() source.Name { return source.NameSongBPM }

// Lookup queries GetSongBPM for tempo and key. Without a configured API
// key it returns a note-only success so the synthesizer can tell the
// lookup was reachable but inconclusive.
func (a *Adapter) Lookup(ctx context.Context, title, artist string) source.Result {
	if a.apiKey == "" {
		return source.Success(source.NameSongBPM, &source.Fields{
			Note: "api key not configured; tempo/key lookup skipped",
		})
	}

	fields, err := a.fetch(ctx, title, artist)
	if err != nil {
		return source.Classify(source.NameSongBPM, err)
	}
	return source.Success(source.NameSongBPM, fields)
}

func (a *Adapter) fetch(ctx context.Context, title, artist string) (*source.Fields, error) {
	query := strings.TrimSpace(title + " " + artist)

	if err := a.limiter.Wait(ctx, source.NameSongBPM); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameSongBPM,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{
		"api_key": {a.apiKey},
		"type":    {"song"},
		"lookup":  {query},
	}
	reqURL := a.baseURL + "/search/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("Songscout/%s", version.Version))
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("lookup", query))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameSongBPM, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrAuthRequired{Source: source.NameSongBPM}
	case http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrRateLimited{Source: source.NameSongBPM, RetryAfter: time.Minute}
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameSongBPM,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameSongBPM, Cause: err}
	}

	var search SearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, &source.ErrParse{Source: source.NameSongBPM, Cause: err}
	}
	if len(search.Search) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameSongBPM, Query: query}
	}

	return mapSong(&search.Search[0]), nil
}

// mapSong converts the first search hit to the common field bag.
func mapSong(song *Song) *source.Fields {
	fields := &source.Fields{
		Title:  song.Title,
		Artist: song.Artist.Name,
		Key:    song.Key,
	}
	if bpm, ok := song.Tempo.Int(); ok && bpm > 0 {
		fields.BPM = &bpm
	}
	extra := make(map[string]any)
	if v, ok := song.Energy.Float(); ok {
		extra["energy"] = v
	}
	if v, ok := song.Danceability.Float(); ok {
		extra["danceability"] = v
	}
	if len(extra) > 0 {
		fields.Extra = extra
	}
	return fields
}
