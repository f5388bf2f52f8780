package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Writer dumps cluster snapshots under <dir>/<desk>/ for offline inspection.
type Writer struct {
	dir  string
	desk string
	now  func() time.Time
}

var _ ports.ArtifactWriter = (*Writer)(nil)

// NewWriter returns a writer rooted at dir for one desk.
func NewWriter(dir, desk string) *Writer {
	return &Writer{dir: dir, desk: desk, now: time.Now}
}

type snapshot struct {
	RunID     string           `json:"run_id"`
	Desk      string           `json:"desk"`
	WrittenAt time.Time        `json:"written_at"`
	Clusters  []domain.Cluster `json:"clusters"`
}

// WriteClusters writes <run-id>_clusters.json and returns its path. The file
// appears atomically.
func (w *Writer) WriteClusters(ctx context.Context, runID string, clusters []domain.Cluster) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(w.dir, w.desk)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot{
		RunID:     runID,
		Desk:      w.desk,
		WrittenAt: w.now().UTC(),
		Clusters:  clusters,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode clusters: %w", err)
	}

	path := filepath.Join(target, runID+"_clusters.json")
	tmp, err := os.CreateTemp(target, ".clusters-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return path, nil
}
