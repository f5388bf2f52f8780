package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/scanner"
)

const dumpJSON = `{
  "channel_url": "https://www.youtube.com/@markets",
  "count": 3,
  "transcripts": [
    {"video_id": "new", "title": "Newest", "text": "rates cut", "channel_name": "Markets", "publish_date": "2025-11-08T10:00:00", "url": "https://www.youtube.com/watch?v=new"},
    {"video_id": "mid", "title": "Middle", "text": "oil rises", "channel_name": "Markets", "publish_date": "2025-11-07T10:00:00Z"},
    {"video_id": "old", "title": "Oldest", "text": "gold flat", "channel_name": "Markets", "publish_date": "2025-11-01"},
    {"video_id": "empty", "title": "Silent", "text": "  ", "publish_date": "2025-11-08T11:00:00"}
  ]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "markets.json"), []byte(dumpJSON), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	txt := filepath.Join(dir, "briefing.txt")
	if err := os.WriteFile(txt, []byte("  morning briefing  \n"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}
	mtime := time.Date(2025, time.November, 7, 20, 0, 0, 0, time.UTC)
	if err := os.Chtimes(txt, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write broken dump: %v", err)
	}
	return dir
}

func TestScanOrdersNewestFirstAndAppliesSince(t *testing.T) {
	t.Parallel()

	dir := writeFixture(t)
	sc := NewScanner(0, nil)

	got, err := sc.Scan(context.Background(), scanner.Request{
		SourceName: "Local",
		URL:        "file://" + dir,
		Limit:      domain.FetchLimit{Since: time.Date(2025, time.November, 7, 0, 0, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	want := []string{"new", "briefing", "mid"}
	if len(got) != len(want) {
		t.Fatalf("expected %d transcripts, got %+v", len(want), got)
	}
	for i, id := range want {
		if got[i].VideoID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].VideoID)
		}
	}
	if got[1].Channel != "Local" || got[1].Text != "morning briefing" {
		t.Fatalf("unexpected text transcript: %+v", got[1])
	}
	if got[2].URL != "https://www.youtube.com/watch?v=mid" {
		t.Fatalf("expected derived watch url, got %s", got[2].URL)
	}
}

func TestScanAppliesCount(t *testing.T) {
	t.Parallel()

	dir := writeFixture(t)
	got, err := NewScanner(0, nil).Scan(context.Background(), scanner.Request{
		URL:   dir,
		Limit: domain.FetchLimit{Count: 2},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(got) != 2 || got[0].VideoID != "new" || got[1].VideoID != "briefing" {
		t.Fatalf("unexpected transcripts: %+v", got)
	}
}

func TestScanMissingDir(t *testing.T) {
	t.Parallel()

	if _, err := NewScanner(0, nil).Scan(context.Background(), scanner.Request{URL: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
