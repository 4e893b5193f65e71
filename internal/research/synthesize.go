package research

import (
	"time"

	"github.com/sydlexius/songscout/internal/source"
)

// Weights holds the per-field confidence weights and the scoring
// parameters. Primary is the weight when the field's preferred source
// supplied the value, Fallback when any other source did.
type Weights struct {
	BPMPrimary       float64 `yaml:"bpm_primary"`
	BPMFallback      float64 `yaml:"bpm_fallback"`
	KeyPrimary       float64 `yaml:"key_primary"`
	KeyFallback      float64 `yaml:"key_fallback"`
	GenrePrimary     float64 `yaml:"genre_primary"`
	GenreFallback    float64 `yaml:"genre_fallback"`
	YearPrimary      float64 `yaml:"year_primary"`
	YearFallback     float64 `yaml:"year_fallback"`
	Summary          float64 `yaml:"summary"`
	CanonicalURL     float64 `yaml:"canonical_url"`
	MultiSourceBoost float64 `yaml:"multi_source_boost"`
	Floor            float64 `yaml:"floor"`
}

// DefaultWeights returns the standard weight table.
func DefaultWeights() Weights {
	return Weights{
		BPMPrimary:       0.9,
		BPMFallback:      0.7,
		KeyPrimary:       0.8,
		KeyFallback:      0.7,
		GenrePrimary:     0.8,
		GenreFallback:    0.7,
		YearPrimary:      0.9,
		YearFallback:     0.7,
		Summary:          0.8,
		CanonicalURL:     0.8,
		MultiSourceBoost: 1.2,
		Floor:            0.1,
	}
}

// Synthesize merges the source results into one profile. It is pure:
// the same inputs always produce the same profile, timestamp aside.
//
// Each field is taken from the first source in its priority order that
// reported a value; the weight of the winning source is appended to the
// score pool. The confidence score is the mean of the pool, boosted
// when more than two sources contributed, clamped to [Floor, 1.0].
func Synthesize(title, artist string, results []source.Result, w Weights, now time.Time) *Profile {
	contributed := make(map[source.Name]*source.Fields, len(results))
	var sources []source.Name
	for _, res := range results {
		if !res.Contributed() {
			continue
		}
		if _, seen := contributed[res.Source]; seen {
			continue
		}
		contributed[res.Source] = res.Fields
		sources = append(sources, res.Source)
	}

	p := &Profile{
		Title:              title,
		Artist:             artist,
		Sources:            sources,
		AdditionalMetadata: collectMetadata(contributed),
		ResearchTimestamp:  now,
	}

	// Title and artist prefer the language model's normalization, then
	// fall back to any contributor in encounter order, then to the
	// request itself.
	namePriority := append([]source.Name{source.NameOpenAI}, sources...)
	if v, _ := firstString(contributed, func(f *source.Fields) string { return f.Title }, namePriority...); v != "" {
		p.Title = v
	}
	if v, _ := firstString(contributed, func(f *source.Fields) string { return f.Artist }, namePriority...); v != "" {
		p.Artist = v
	}

	var pool []float64
	weigh := func(weight float64) { pool = append(pool, weight) }

	if f, name := firstInt(contributed, func(f *source.Fields) *int { return f.BPM },
		source.NameSongBPM, source.NameOpenAI); f != nil {
		p.BPM = f
		if name == source.NameSongBPM {
			weigh(w.BPMPrimary)
		} else {
			weigh(w.BPMFallback)
		}
	}

	if v, name := firstString(contributed, func(f *source.Fields) string { return f.Key },
		source.NameSongBPM, source.NameOpenAI); v != "" {
		p.Key = &v
		if name == source.NameSongBPM {
			weigh(w.KeyPrimary)
		} else {
			weigh(w.KeyFallback)
		}
	}

	if v, name := firstString(contributed, func(f *source.Fields) string { return f.Genre },
		source.NameWikipedia, source.NameOpenAI); v != "" {
		p.Genre = &v
		if name == source.NameWikipedia {
			weigh(w.GenrePrimary)
		} else {
			weigh(w.GenreFallback)
		}
	}

	if f, name := firstInt(contributed, func(f *source.Fields) *int { return f.Year },
		source.NameWikipedia, source.NameOpenAI, source.NameMusicBrainz); f != nil {
		p.Year = f
		if name == source.NameWikipedia {
			weigh(w.YearPrimary)
		} else {
			weigh(w.YearFallback)
		}
	}

	if f, ok := contributed[source.NameWikipedia]; ok {
		if f.Summary != "" {
			summary := f.Summary
			p.Summary = &summary
			weigh(w.Summary)
		}
		if f.URL != "" {
			u := f.URL
			p.CanonicalURL = &u
			weigh(w.CanonicalURL)
		}
	}

	p.ConfidenceScore = score(pool, len(sources), w)
	return p
}

// firstString returns the first non-empty value in priority order,
// along with the source that supplied it.
func firstString(byName map[source.Name]*source.Fields, get func(*source.Fields) string, priority ...source.Name) (string, source.Name) {
	for _, name := range priority {
		if f, ok := byName[name]; ok {
			if v := get(f); v != "" {
				return v, name
			}
		}
	}
	return "", ""
}

// firstInt is firstString for pointer-valued numeric fields. The
// returned pointer aliases a fresh copy so profiles stay immutable.
func firstInt(byName map[source.Name]*source.Fields, get func(*source.Fields) *int, priority ...source.Name) (*int, source.Name) {
	for _, name := range priority {
		if f, ok := byName[name]; ok {
			if v := get(f); v != nil {
				value := *v
				return &value, name
			}
		}
	}
	return nil, ""
}

// metadataOrder fixes which source's extra data wins on key collisions:
// later entries overwrite earlier ones.
var metadataOrder = []source.Name{
	source.NameOpenAI,
	source.NameWikipedia,
	source.NameSongBPM,
	source.NameMusicBrainz,
}

// collectMetadata unions album, label, and the per-source extra maps.
func collectMetadata(byName map[source.Name]*source.Fields) map[string]any {
	meta := make(map[string]any)
	for _, name := range metadataOrder {
		f, ok := byName[name]
		if !ok {
			continue
		}
		if f.Album != "" {
			meta["album"] = f.Album
		}
		if f.Label != "" {
			meta["label"] = f.Label
		}
		for k, v := range f.Extra {
			meta[k] = v
		}
	}
	return meta
}

// score computes the confidence from the weight pool.
func score(pool []float64, sourceCount int, w Weights) float64 {
	if len(pool) == 0 {
		return w.Floor
	}
	sum := 0.0
	for _, v := range pool {
		sum += v
	}
	confidence := sum / float64(len(pool))
	if sourceCount > 2 {
		confidence *= w.MultiSourceBoost
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
