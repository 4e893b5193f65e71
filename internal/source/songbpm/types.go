package songbpm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// GetSongBPM API response types. The API is loosely typed: numeric
// attributes arrive as strings or numbers depending on the record, and
// the artist is an object on songs but a bare string on some legacy rows.

// SearchResponse is the top-level response from the search endpoint.
type SearchResponse struct {
	Search []Song `json:"search"`
}

// Song is a single search hit.
type Song struct {
	ID           string      `json:"id"`
	Title        string      `json:"song_title"`
	Artist       ArtistField `json:"artist"`
	Tempo        FlexString  `json:"tempo"`
	Key          string      `json:"song_key"`
	Energy       FlexString  `json:"energy"`
	Danceability FlexString  `json:"danceability"`
	URI          string      `json:"song_uri"`
}

// ArtistField decodes either {"name": "..."} or a plain string.
type ArtistField struct {
	Name string
}

// UnmarshalJSON implements the two artist encodings.
func (a *ArtistField) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		return json.Unmarshal(b, &a.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	a.Name = obj.Name
	return nil
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

// UnmarshalJSON accepts both encodings; null becomes the empty string.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
		return nil
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	default:
		*f = FlexString(s)
		return nil
	}
}

// Int parses the value as an integer, reporting whether it was parseable.
func (f FlexString) Int() (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Float parses the value as a float, reporting whether it was parseable.
func (f FlexString) Float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
