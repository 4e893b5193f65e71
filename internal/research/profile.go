// Package research coordinates the source lookups for one song and
// synthesizes their results into a single profile with a confidence
// score.
package research

import (
	"time"

	"github.com/sydlexius/songscout/internal/source"
)

// Profile is the synthesized metadata record for one song. Pointer
// fields serialize as JSON null when no source reported them. A profile
// is never mutated after synthesis.
type Profile struct {
	Title              string         `json:"title"`
	Artist             string         `json:"artist"`
	BPM                *int           `json:"bpm"`
	Key                *string        `json:"key"`
	Genre              *string        `json:"genre"`
	Year               *int           `json:"year"`
	Summary            *string        `json:"summary"`
	CanonicalURL       *string        `json:"canonicalUrl"`
	ConfidenceScore    float64        `json:"confidenceScore"`
	Sources            []source.Name  `json:"sources"`
	AdditionalMetadata map[string]any `json:"additionalMetadata"`
	ResearchTimestamp  time.Time      `json:"researchTimestamp"`
}
