package events

// Catalog event types.
const (
	EventFileIndexed = "file.indexed"
	EventIndexFailed = "file.index_failed"
	EventFeedScanned = "feed.scanned"
)

// FileIndexed is emitted when a posted file lands in the catalog. EntityID is the locator.
type FileIndexed struct {
	BaseEvent
	Filename string `json:"filename"`
	Kind     string `json:"kind"` // "movie" or "series"
	Key      string `json:"key"`
	Title    string `json:"title"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
	Quality  string `json:"quality"`
}

// IndexFailed is emitted when a posted file could not be indexed. EntityID is the locator.
type IndexFailed struct {
	BaseEvent
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// FeedScanned is emitted after a full pass over a watched directory.
type FeedScanned struct {
	BaseEvent
	Dir     string `json:"dir"`
	Seen    int    `json:"seen"`
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
}
