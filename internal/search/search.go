// Package search provides full-text search over the moderation queue,
// backed by Meilisearch with a PostgreSQL FTS fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Snippet    string `json:"snippet"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	PostID     string `json:"postId"`
	PostTitle  string `json:"postTitle"`
	AuthorName string `json:"authorName"`
	IsQuestion bool   `json:"isQuestion"`
	IsFlagged  bool   `json:"isFlagged"`
}

// Query describes a moderation search request.
type Query struct {
	Text         string
	FilterType   string // empty = all interaction types
	FilterStatus string
	FilterPostID string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over interactions.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push interactions into a search index.
type Indexer interface {
	IndexInteraction(rec InteractionRecord) error
	DeleteInteraction(id string) error
}

// InteractionRecord is the data we index for an interaction.
type InteractionRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	PostID     string `json:"postId"`
	PostTitle  string `json:"postTitle"`
	AuthorName string `json:"authorName"`
	IsQuestion bool   `json:"isQuestion"`
	IsFlagged  bool   `json:"isFlagged"`
}
