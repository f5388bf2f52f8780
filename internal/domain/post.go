package domain

// PostStatus enumerates the review lifecycle of a generated post.
type PostStatus string

const (
	StatusPendingReview PostStatus = "pending-review"
	StatusApproved      PostStatus = "approved"
	StatusRejected      PostStatus = "rejected"
	StatusPublished     PostStatus = "published"
)

// StatusLabels maps lifecycle states to the literal strings a row store uses.
type StatusLabels struct {
	PendingReview string
	Approved      string
	Rejected      string
	Published     string
}

// DefaultStatusLabels returns the canonical status spelling.
func DefaultStatusLabels() StatusLabels {
	return StatusLabels{
		PendingReview: string(StatusPendingReview),
		Approved:      string(StatusApproved),
		Rejected:      string(StatusRejected),
		Published:     string(StatusPublished),
	}
}

// Label returns the stored string for a lifecycle state.
func (l StatusLabels) Label(status PostStatus) string {
	var v string
	switch status {
	case StatusPendingReview:
		v = l.PendingReview
	case StatusApproved:
		v = l.Approved
	case StatusRejected:
		v = l.Rejected
	case StatusPublished:
		v = l.Published
	}
	if v == "" {
		return string(status)
	}
	return v
}

// GeneratedPost is the editorial output for one cluster.
type GeneratedPost struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	SourceURLs   []string `json:"source_video_urls"`
	SourceLabels []string `json:"source_channels"`
	ClusterID    int      `json:"cluster_id"`
}

// PostRecord is a post row as read back from the review store.
type PostRecord struct {
	ID           int64
	Title        string
	Content      string
	SourceURLs   []string
	SourceLabels []string
	Status       string
	Score        *float64
}

// PostFilter selects rows by exact status match. Empty Status reads all rows.
type PostFilter struct {
	Status string
	Limit  int
}

// PostPatch updates selected fields of a stored row.
type PostPatch struct {
	ID     int64
	Status *string
	Score  *float64
}

// PostReview is the analyzer verdict for a pending post.
type PostReview struct {
	Approved bool
	Score    float64
}
