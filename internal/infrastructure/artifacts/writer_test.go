package artifacts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"Vid2News/internal/domain"
)

func TestWriteClusters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewWriter(dir, "geopolitics")
	clusters := []domain.Cluster{
		{ID: 0, Items: []domain.NewsItem{{Title: "A"}, {Title: "B"}}},
		{ID: domain.NoiseCluster, Items: []domain.NewsItem{{Title: "C"}}},
	}

	path, err := w.WriteClusters(context.Background(), "run-1", clusters)
	if err != nil {
		t.Fatalf("WriteClusters error: %v", err)
	}
	if path != filepath.Join(dir, "geopolitics", "run-1_clusters.json") {
		t.Fatalf("unexpected path %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got snapshot
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if got.RunID != "run-1" || got.Desk != "geopolitics" || len(got.Clusters) != 2 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if got.Clusters[1].ID != domain.NoiseCluster || got.Clusters[0].Items[1].Title != "B" {
		t.Fatalf("clusters not preserved: %+v", got.Clusters)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "geopolitics"))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
