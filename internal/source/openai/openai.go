// Package openai implements the language-model synthesis source. It is
// sequenced after the deterministic lookups and receives their raw
// results (successes and failures alike) as context, so it can fill gaps
// or flag low confidence when corroborating data is thin.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/sydlexius/songscout/internal/source"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "gpt-4o-mini"

const (
	maxContextBytes     = 1000
	maxCompletionTokens = 500
	temperature         = 0.1
)

const systemPrompt = "You are a music metadata extraction expert. " +
	"Analyze search results and provide structured music information in JSON format."

// Adapter implements the source.ContextualSource interface for the
// OpenAI chat completions API.
type Adapter struct {
	client  openai.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	model   string
	apiKey  string
}

// New creates an OpenAI adapter against the public API.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration, apiKey, model string) *Adapter {
	return NewWithBaseURL(limiter, logger, timeout, apiKey, model, "")
}

// NewWithBaseURL creates an OpenAI adapter with a custom base URL (for
// testing or API-compatible providers).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, timeout time.Duration, apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Adapter{
		client:  openai.NewClient(opts...),
		limiter: limiter,
		logger:  logger.With(slog.String("source", "openai")),
		model:   model,
		apiKey:  apiKey,
	}
}

// Name returns the source name.
func (a *Adapter) Name() source.Name { return source.NameOpenAI }

// LookupWithContext asks the model for a fixed-shape metadata record,
// grounded on the other sources' raw results. A response that does not
// decode to that shape is a parse-error failure.
func (a *Adapter) LookupWithContext(ctx context.Context, title, artist string, prior []source.Result) source.Result {
	if a.apiKey == "" {
		return source.Classify(source.NameOpenAI, &source.ErrAuthRequired{Source: source.NameOpenAI})
	}

	fields, err := a.extract(ctx, title, artist, prior)
	if err != nil {
		return source.Classify(source.NameOpenAI, err)
	}
	return source.Success(source.NameOpenAI, fields)
}

func (a *Adapter) extract(ctx context.Context, title, artist string, prior []source.Result) (*source.Fields, error) {
	if err := a.limiter.Wait(ctx, source.NameOpenAI); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameOpenAI,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	prompt := buildPrompt(title, artist, prior)
	a.logger.Debug("requesting completion",
		slog.String("model", a.model),
		slog.Int("context_results", len(prior)))

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature:         param.NewOpt(temperature),
		MaxCompletionTokens: param.NewOpt(int64(maxCompletionTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &source.ErrParse{Source: source.NameOpenAI, Cause: errors.New("no choices in response")}
	}

	return parseRecord(resp.Choices[0].Message.Content)
}

// buildPrompt serializes the prior results as labeled context and asks
// for the fixed-shape record.
func buildPrompt(title, artist string, prior []source.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Song: %s\n", title)
	if artist == "" {
		artist = "unknown artist"
	}
	fmt.Fprintf(&sb, "Artist: %s\n\nSearch Results:\n", artist)

	for i, res := range prior {
		status := "failed"
		if res.OK() {
			status = "succeeded"
		}
		fmt.Fprintf(&sb, "\nSource %d (%s, %s):\n", i+1, res.Source, status)
		raw, err := json.Marshal(res)
		if err != nil {
			continue
		}
		if len(raw) > maxContextBytes {
			raw = raw[:maxContextBytes]
		}
		sb.Write(raw)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, `
Extract the music metadata for the song %q by %s from the search results above.

Respond with a JSON object containing exactly these fields:
- title: (string) official song title
- artist: (string) artist name
- bpm: (integer or null) beats per minute
- key: (string or null) musical key, e.g. "C Major"
- genre: (string or null) primary genre
- year: (integer or null) release year
- album: (string or null) album name
- confidence: (float) your confidence in this data, 0.0-1.0
- summary: (string) brief description of the song

Base your response on the search results. If data is unavailable or
conflicting, use your best judgment and indicate lower confidence.
Return only valid JSON.`, title, artist)

	return sb.String()
}

// record is the fixed shape the model must return. Numeric fields are
// decoded as floats to tolerate "105.0" style output.
type record struct {
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	BPM        *float64 `json:"bpm"`
	Key        string   `json:"key"`
	Genre      string   `json:"genre"`
	Year       *float64 `json:"year"`
	Album      string   `json:"album"`
	Confidence *float64 `json:"confidence"`
	Summary    string   `json:"summary"`
}

// parseRecord decodes the model output into the common field bag,
// stripping markdown code fences first.
func parseRecord(content string) (*source.Fields, error) {
	text := stripFences(content)

	var rec record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, &source.ErrParse{Source: source.NameOpenAI, Cause: err}
	}

	fields := &source.Fields{
		Title:   rec.Title,
		Artist:  rec.Artist,
		Key:     rec.Key,
		Genre:   rec.Genre,
		Album:   rec.Album,
		Summary: rec.Summary,
	}
	if rec.BPM != nil && *rec.BPM > 0 {
		bpm := int(*rec.BPM)
		fields.BPM = &bpm
	}
	if rec.Year != nil && *rec.Year > 0 {
		year := int(*rec.Year)
		fields.Year = &year
	}
	if rec.Confidence != nil {
		fields.Extra = map[string]any{"confidence": *rec.Confidence}
	}
	return fields, nil
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// classifyAPIError maps OpenAI client errors onto the source taxonomy.
func classifyAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return &source.ErrRateLimited{Source: source.NameOpenAI, RetryAfter: time.Minute}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &source.ErrAuthRequired{Source: source.NameOpenAI}
		}
	}
	return &source.ErrUnavailable{Source: source.NameOpenAI, Cause: err}
}
