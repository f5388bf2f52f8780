package domain

import "time"

// NoiseCluster marks items the clustering engine could not group.
const NoiseCluster = -1

// FetchLimit bounds how many transcripts a source contributes to a run.
type FetchLimit struct {
	Count int
	Since time.Time
}

// SourceUnit is one channel or feed handed to a transcript scanner.
type SourceUnit struct {
	Name    string
	Scanner string
	URL     string
	Options map[string]string
	Limit   FetchLimit
}

// Transcript is the raw spoken content of a single video.
type Transcript struct {
	VideoID     string
	Title       string
	Text        string
	Channel     string
	URL         string
	PublishedAt *time.Time
}

// NewsItem is a structured fact extracted from a transcript.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	Keywords    []string  `json:"keywords"`
	Category    string    `json:"category"`
	Entities    []string  `json:"entities"`
	ClusterID   *int      `json:"cluster_id,omitempty"`
	SourceID    string    `json:"source_id"`
	SourceTitle string    `json:"source_title"`
	SourceURL   string    `json:"source_url"`
	SourceLabel string    `json:"source_label"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Cluster groups items sharing a label. ID is NoiseCluster for the noise group.
type Cluster struct {
	ID    int        `json:"cluster_id"`
	Items []NewsItem `json:"items"`
}

// IsNoise reports whether the cluster holds unclustered items.
func (c Cluster) IsNoise() bool {
	return c.ID == NoiseCluster
}

// Keywords returns the cluster's keywords without duplicates, first occurrence wins.
func (c Cluster) Keywords() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range c.Items {
		for _, kw := range item.Keywords {
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// Categories returns the cluster's categories without duplicates, first occurrence wins.
func (c Cluster) Categories() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range c.Items {
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		out = append(out, item.Category)
	}
	return out
}
