package wikipedia

// Wikipedia REST and Action API response types.

// SummaryResponse is the REST page summary payload.
type SummaryResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	PageID      int64  `json:"pageid"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// ParseResponse is the Action API action=parse payload (formatversion=2).
type ParseResponse struct {
	Parse struct {
		Title  string `json:"title"`
		PageID int64  `json:"pageid"`
		Text   string `json:"text"`
	} `json:"parse"`
}
