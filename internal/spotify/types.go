package spotify

// Item is the track currently loaded on the player.
type Item struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	DurationMs int    `json:"duration_ms"`
}

// PlaybackState is the subset of the player state the orchestrator needs.
type PlaybackState struct {
	IsPlaying  bool  `json:"is_playing"`
	ProgressMs int   `json:"progress_ms"`
	Item       *Item `json:"item"`
}

// searchResponse mirrors the /v1/search payload for type=track.
type searchResponse struct {
	Tracks struct {
		Items []Item `json:"items"`
	} `json:"tracks"`
}
