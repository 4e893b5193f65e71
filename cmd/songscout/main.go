package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sydlexius/songscout/internal/config"
	"github.com/sydlexius/songscout/internal/logging"
	"github.com/sydlexius/songscout/internal/research"
	"github.com/sydlexius/songscout/internal/source"
	"github.com/sydlexius/songscout/internal/source/musicbrainz"
	"github.com/sydlexius/songscout/internal/source/openai"
	"github.com/sydlexius/songscout/internal/source/songbpm"
	"github.com/sydlexius/songscout/internal/source/wikipedia"
	"github.com/sydlexius/songscout/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "research":
		if err := runResearch(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("songscout %s\n", version.Version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  songscout research -title TITLE [-artist ARTIST] [-config PATH] [-no-llm] [-pretty]
  songscout version`)
}

func runResearch(args []string) error {
	fs := flag.NewFlagSet("research", flag.ExitOnError)
	title := fs.String("title", "", "song title (required)")
	artist := fs.String("artist", "", "artist name")
	configPath := fs.String("config", "", "config file path (default $SC_CONFIG_PATH)")
	noLLM := fs.Bool("no-llm", false, "skip the language-model fallback")
	pretty := fs.Bool("pretty", false, "indent the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("SC_CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closer := logging.New(cfg.Logging)
	if closer != nil {
		defer closer.Close() //nolint:errcheck
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator := buildOrchestrator(cfg, logger)
	profile, err := orchestrator.Research(ctx, research.Request{
		Title:  *title,
		Artist: *artist,
		UseLLM: cfg.Research.UseLLM && !*noLLM,
	})
	if err != nil {
		if errors.Is(err, research.ErrEmptyTitle) {
			return fmt.Errorf("%w (use -title)", err)
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(profile)
}

// buildOrchestrator wires the rate limiters, the registered sources,
// and the optional language-model source from config.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger) *research.Orchestrator {
	limiter := source.NewRateLimiterMap()
	timeout := cfg.Research.Timeout()

	registry := source.NewRegistry()
	if base := cfg.Sources.Wikipedia.BaseURL; base != "" {
		registry.Register(wikipedia.NewWithBaseURL(limiter, logger, timeout, base))
	} else {
		registry.Register(wikipedia.New(limiter, logger, timeout))
	}
	if base := cfg.Sources.SongBPM.BaseURL; base != "" {
		registry.Register(songbpm.NewWithBaseURL(limiter, logger, timeout, cfg.Sources.SongBPM.APIKey, base))
	} else {
		registry.Register(songbpm.New(limiter, logger, timeout, cfg.Sources.SongBPM.APIKey))
	}
	if base := cfg.Sources.MusicBrainz.BaseURL; base != "" {
		registry.Register(musicbrainz.NewWithBaseURL(limiter, logger, timeout, base))
	} else {
		registry.Register(musicbrainz.New(limiter, logger, timeout))
	}

	var llm source.ContextualSource
	if cfg.Sources.OpenAI.APIKey != "" {
		oc := cfg.Sources.OpenAI
		llm = openai.NewWithBaseURL(limiter, logger, timeout, oc.APIKey, oc.Model, oc.BaseURL)
	}

	return research.NewOrchestrator(registry, llm, logger, timeout, cfg.Research.Weights)
}
