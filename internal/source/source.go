package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Name uniquely identifies a metadata source.
type Name string

// Known source names.
const (
	NameWikipedia   Name = "wikipedia"
	NameSongBPM     Name = "songbpm"
	NameMusicBrainz Name = "musicbrainz"
	NameOpenAI      Name = "openai"
)

// AllNames returns the deterministic lookup sources in invocation order.
// The language-model source is sequenced separately by the orchestrator.
func AllNames() []Name {
	return []Name{NameWikipedia, NameSongBPM, NameMusicBrainz}
}

// DisplayName returns a human-readable name for the source.
func (n Name) DisplayName() string {
	switch n {
	case NameWikipedia:
		return "Wikipedia"
	case NameSongBPM:
		return "GetSongBPM"
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameOpenAI:
		return "OpenAI"
	default:
		return string(n)
	}
}

// FailureKind classifies why a lookup produced no usable data.
type FailureKind string

// Failure kinds.
const (
	FailNetwork     FailureKind = "network"
	FailNotFound    FailureKind = "not-found"
	FailParse       FailureKind = "parse-error"
	FailRateLimited FailureKind = "rate-limited"
)

// Fields is the bag of attributes a source may report for one song.
// A zero value means the source did not report that attribute.
type Fields struct {
	Title   string         `json:"title,omitempty"`
	Artist  string         `json:"artist,omitempty"`
	BPM     *int           `json:"bpm,omitempty"`
	Key     string         `json:"key,omitempty"`
	Genre   string         `json:"genre,omitempty"`
	Year    *int           `json:"year,omitempty"`
	Album   string         `json:"album,omitempty"`
	Label   string         `json:"label,omitempty"`
	Summary string         `json:"summary,omitempty"`
	URL     string         `json:"url,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`

	// Note carries diagnostic text for success-shaped results that hold
	// no data (e.g. an unconfigured tempo lookup). It is never merged
	// into a profile and never counts as a contribution.
	Note string `json:"note,omitempty"`
}

// Empty reports whether the bag carries no usable data. Note is ignored:
// a reachable-but-inconclusive source is still an empty contribution.
func (f *Fields) Empty() bool {
	if f == nil {
		return true
	}
	return f.Title == "" && f.Artist == "" && f.BPM == nil && f.Key == "" &&
		f.Genre == "" && f.Year == nil && f.Album == "" && f.Label == "" &&
		f.Summary == "" && f.URL == "" && len(f.Extra) == 0
}

// Failure describes an unsuccessful lookup.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Result is the outcome of one source lookup for one request. Exactly one
// of Fields and Failure is set; use the Success and Fail constructors.
type Result struct {
	Source  Name     `json:"source"`
	Fields  *Fields  `json:"fields,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// OK reports whether the lookup succeeded (the bag may still be empty).
func (r Result) OK() bool { return r.Fields != nil && r.Failure == nil }

// Contributed reports whether the lookup succeeded with at least one field.
func (r Result) Contributed() bool { return r.OK() && !r.Fields.Empty() }

// Success builds a success Result. A nil bag is normalized to an empty one
// so the union invariant holds.
func Success(name Name, fields *Fields) Result {
	if fields == nil {
		fields = &Fields{}
	}
	return Result{Source: name, Fields: fields}
}

// Fail builds a failure Result.
func Fail(name Name, kind FailureKind, message string) Result {
	return Result{Source: name, Failure: &Failure{Kind: kind, Message: message}}
}

// Classify converts an adapter error into a failure Result using the typed
// errors below. Unrecognized errors (including context cancellation and
// timeouts) are reported as network failures.
func Classify(name Name, err error) Result {
	var (
		notFound    *ErrNotFound
		rateLimited *ErrRateLimited
		parseErr    *ErrParse
		unavailable *ErrUnavailable
		authReq     *ErrAuthRequired
	)
	switch {
	case errors.As(err, &notFound):
		return Fail(name, FailNotFound, err.Error())
	case errors.As(err, &rateLimited):
		return Fail(name, FailRateLimited, err.Error())
	case errors.As(err, &parseErr):
		return Fail(name, FailParse, err.Error())
	case errors.As(err, &unavailable):
		return Fail(name, FailNetwork, err.Error())
	case errors.As(err, &authReq):
		return Fail(name, FailNetwork, err.Error())
	default:
		return Fail(name, FailNetwork, err.Error())
	}
}

// Source is the interface all lookup adapters implement. Lookup never
// returns a Go error and never panics past the adapter boundary: every
// failure mode becomes a failure Result.
type Source interface {
	Name() Name
	Lookup(ctx context.Context, title, artist string) Result
}

// ContextualSource is implemented by adapters that synthesize from the
// other sources' raw results (the language-model adapter).
type ContextualSource interface {
	Name() Name
	LookupWithContext(ctx context.Context, title, artist string, prior []Result) Result
}

// ErrUnavailable indicates a transient failure (timeout, connection
// failure, unexpected HTTP status).
type ErrUnavailable struct {
	Source Name
	Cause  error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the source was reached but had no qualifying match.
type ErrNotFound struct {
	Source Name
	Query  string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: no match for %q", e.Source, e.Query)
}

// ErrRateLimited indicates an explicit throttling signal from the source.
type ErrRateLimited struct {
	Source     Name
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("source %s: rate limited", e.Source)
}

// ErrParse indicates a response was received but could not be mapped to
// the adapter's expected shape.
type ErrParse struct {
	Source Name
	Cause  error
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("source %s: parsing response: %v", e.Source, e.Cause)
}

func (e *ErrParse) Unwrap() error { return e.Cause }

// ErrAuthRequired indicates the source needs an API key but none is configured.
type ErrAuthRequired struct {
	Source Name
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("source %s: API key not configured", e.Source)
}
