package model

// Search match types. A host match routes the client to host management;
// a content match routes to the scan report it was found in.
const (
	MatchHost    = "host"
	MatchContent = "content"
)

// SearchResult is one hit from a free-text query.
type SearchResult struct {
	Host      Host   `json:"host"`
	MatchType string `json:"match_type"`
	Snippet   string `json:"snippet"`
	ScanID    *uint  `json:"scan_id,omitempty"`
}
