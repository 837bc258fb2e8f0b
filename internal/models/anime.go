package models

// AnimeSummary is a minimal search hit returned by a provider adapter.
type AnimeSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image,omitempty"`
	SubCount int    `json:"subCount,omitempty"`
	DubCount int    `json:"dubCount,omitempty"`
}

// Episode is normalized episode metadata from a provider listing.
type Episode struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Title    string `json:"title,omitempty"`
	IsFiller bool   `json:"isFiller,omitempty"`
}

// EpisodeContext carries everything the orchestrator needs to locate an
// episode across providers. Title and the numeric ids are optional; an
// adapter that requires a missing field reports an unsupported
// precondition and the orchestrator skips it.
type EpisodeContext struct {
	Title     string
	AnilistID int
	MalID     int
	Episode   int
}
