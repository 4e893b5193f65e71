package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/songscout/internal/source"
)

// ErrEmptyTitle is returned when a research request has no song title.
// It is the only error Research reports to the caller; source failures
// are absorbed into the profile.
var ErrEmptyTitle = errors.New("song title must not be empty")

// DefaultTimeout bounds each individual source call.
const DefaultTimeout = 10 * time.Second

// Request describes one research job.
type Request struct {
	Title  string
	Artist string
	UseLLM bool
}

// Orchestrator fans a request out to the registered sources, sequences
// the language model after them, and hands everything to the
// synthesizer.
type Orchestrator struct {
	registry *source.Registry
	llm      source.ContextualSource
	logger   *slog.Logger
	timeout  time.Duration
	weights  Weights
}

// NewOrchestrator creates an orchestrator. llm may be nil when no
// language-model source is configured.
func NewOrchestrator(registry *source.Registry, llm source.ContextualSource, logger *slog.Logger, timeout time.Duration, weights Weights) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		registry: registry,
		llm:      llm,
		logger:   logger,
		timeout:  timeout,
		weights:  weights,
	}
}

// Research runs one research job and returns the synthesized profile.
// The deterministic sources run concurrently, each writing exactly one
// pre-allocated result slot; the language model, when requested and
// configured, runs afterwards with their raw results as context.
func (o *Orchestrator) Research(ctx context.Context, req Request) (*Profile, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	artist := strings.TrimSpace(req.Artist)

	logger := o.logger.With(slog.String("request_id", uuid.NewString()))
	logger.Info("research started",
		slog.String("title", title),
		slog.String("artist", artist),
		slog.Bool("use_llm", req.UseLLM))

	adapters := o.registry.All()
	results := make([]source.Result, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(slot int, s source.Source) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()
			results[slot] = s.Lookup(callCtx, title, artist)
		}(i, adapter)
	}
	wg.Wait()

	for _, res := range results {
		if res.OK() {
			logger.Debug("source succeeded", slog.String("source", string(res.Source)))
			continue
		}
		logger.Warn("source failed",
			slog.String("source", string(res.Source)),
			slog.String("kind", string(res.Failure.Kind)),
			slog.String("message", res.Failure.Message))
	}

	if req.UseLLM && o.llm != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		res := o.llm.LookupWithContext(callCtx, title, artist, results)
		cancel()
		if !res.OK() {
			logger.Warn("source failed",
				slog.String("source", string(res.Source)),
				slog.String("kind", string(res.Failure.Kind)),
				slog.String("message", res.Failure.Message))
		}
		results = append(results, res)
	}

	profile := Synthesize(title, artist, results, o.weights, time.Now().UTC())
	logger.Info("research finished",
		slog.Int("sources", len(profile.Sources)),
		slog.Float64("confidence", profile.ConfidenceScore))
	return profile, nil
}
