// Package wikipedia implements the encyclopedic lookup source. It walks a
// short list of query variants through the REST summary endpoint, keeps
// the first page that reads like a music topic, and enriches the result
// with fields mined from the rendered page via the infobox extractor.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/songscout/internal/infobox"
	"github.com/sydlexius/songscout/internal/source"
	"github.com/sydlexius/songscout/internal/version"
)

const (
	defaultBaseURL  = "https://en.wikipedia.org"
	maxSummaryRunes = 500
)

// A page qualifies only when its summary mentions at least one of these.
var musicKeywords = []string{
	"song", "single", "album", "track", "band", "artist", "music", "singer",
}

// Adapter implements the source.Source interface for Wikipedia.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Wikipedia adapter with the default base URL.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration) *Adapter {
	return NewWithBaseURL(limiter, logger, timeout, defaultBaseURL)
}

// NewWithBaseURL creates a Wikipedia adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "wikipedia")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() source.Name { return source.NameWikipedia }

// Lookup researches the song on Wikipedia. All failure modes are captured
// as a failure Result; nothing propagates to the orchestrator.
func (a *Adapter) Lookup(ctx context.Context, title, artist string) source.Result {
	fields, err := a.fetch(ctx, title, artist)
	if err != nil {
		return source.Classify(source.NameWikipedia, err)
	}
	return source.Success(source.NameWikipedia, fields)
}

func (a *Adapter) fetch(ctx context.Context, title, artist string) (*source.Fields, error) {
	var lastErr error

	for _, query := range queryVariants(title, artist) {
		sum, err := a.fetchSummary(ctx, query)
		if err != nil {
			if _, ok := err.(*source.ErrNotFound); ok {
				continue
			}
			lastErr = err
			continue
		}

		if !hasMusicKeyword(sum.Description + " " + sum.Extract) {
			a.logger.Debug("page rejected, no music keyword",
				slog.String("query", query),
				slog.String("page", sum.Title))
			continue
		}

		fields := &source.Fields{
			Title:   sum.Title,
			Summary: truncateRunes(sum.Extract, maxSummaryRunes),
			URL:     sum.ContentURLs.Desktop.Page,
		}
		a.enrich(ctx, sum.PageID, fields)
		return fields, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &source.ErrNotFound{
		Source: source.NameWikipedia,
		Query:  strings.TrimSpace(title + " " + artist),
	}
}

// enrich mines genre/year/album/label from the rendered page. A content
// fetch failure degrades to the summary-only bag.
func (a *Adapter) enrich(ctx context.Context, pageID int64, fields *source.Fields) {
	if pageID <= 0 {
		return
	}
	markup, err := a.fetchPageHTML(ctx, pageID)
	if err != nil {
		a.logger.Debug("page content fetch failed",
			slog.Int64("pageid", pageID),
			slog.String("error", err.Error()))
		return
	}
	ex := infobox.Extract(markup)
	if ex.Genre != "" {
		fields.Genre = ex.Genre
	}
	if ex.Year != 0 {
		year := ex.Year
		fields.Year = &year
	}
	if ex.Album != "" {
		fields.Album = ex.Album
	}
	if ex.Label != "" {
		fields.Label = ex.Label
	}
}

// fetchSummary queries the REST summary endpoint for one query variant.
func (a *Adapter) fetchSummary(ctx context.Context, query string) (*SummaryResponse, error) {
	reqURL := a.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(query)

	body, err := a.doRequest(ctx, reqURL, query)
	if err != nil {
		return nil, err
	}

	var sum SummaryResponse
	if err := json.Unmarshal(body, &sum); err != nil {
		return nil, &source.ErrParse{Source: source.NameWikipedia, Cause: err}
	}
	return &sum, nil
}

// fetchPageHTML fetches the rendered page text by page id.
func (a *Adapter) fetchPageHTML(ctx context.Context, pageID int64) (string, error) {
	params := url.Values{
		"action":        {"parse"},
		"pageid":        {strconv.FormatInt(pageID, 10)},
		"prop":          {"text"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	reqURL := a.baseURL + "/w/api.php?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL, strconv.FormatInt(pageID, 10))
	if err != nil {
		return "", err
	}

	var parsed ParseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &source.ErrParse{Source: source.NameWikipedia, Cause: err}
	}
	return parsed.Parse.Text, nil
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL, query string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, source.NameWikipedia); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameWikipedia,
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
		return nil, &source.ErrUnavailable{Source: source.NameWikipedia, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrNotFound{Source: source.NameWikipedia, Query: query}
	case http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrRateLimited{Source: source.NameWikipedia, RetryAfter: 2 * time.Second}
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameWikipedia,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
}

// queryVariants builds the ordered search queries for a title/artist pair,
// skipping blanks and duplicates.
func queryVariants(title, artist string) []string {
	raw := []string{
		title + " " + artist,
		title + " song",
		artist + " " + title,
	}
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, q := range raw {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

func hasMusicKeyword(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range musicKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func userAgent() string {
	return fmt.Sprintf("Songscout/%s (https://github.com/sydlexius/songscout)", version.Version)
}
