package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/infrastructure/youtube"
	"Vid2News/internal/scanner"
)

const defaultCount = 5

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// dump mirrors the transcript files written by earlier fetch runs.
type dump struct {
	ChannelURL  string           `json:"channel_url"`
	Transcripts []dumpTranscript `json:"transcripts"`
}

type dumpTranscript struct {
	VideoID     string  `json:"video_id"`
	Title       string  `json:"title"`
	Text        string  `json:"text"`
	ChannelName string  `json:"channel_name"`
	PublishDate *string `json:"publish_date"`
	URL         string  `json:"url"`
}

// Scanner replays transcripts stored on disk. A source URL names a directory
// holding transcript dumps (*.json) or plain text transcripts (*.txt).
type Scanner struct {
	defaultCount int
	logger       *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// NewScanner builds the local strategy.
func NewScanner(count int, log *slog.Logger) *Scanner {
	if count <= 0 {
		count = defaultCount
	}
	return &Scanner{defaultCount: count, logger: log}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "localfs"
}

// Scan returns the newest transcripts first, applying the same count and
// since rules as the online strategies.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Transcript, error) {
	dir := strings.TrimPrefix(req.URL, "file://")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript dir %s: %w", dir, err)
	}

	var all []domain.Transcript
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json":
			items, err := readDump(path, info.ModTime())
			if err != nil {
				s.warn("skip transcript dump", "path", path, "error", err)
				continue
			}
			all = append(all, items...)
		case ".txt":
			item, err := readText(path, info.ModTime())
			if err != nil {
				s.warn("skip transcript file", "path", path, "error", err)
				continue
			}
			all = append(all, item)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(*all[j].PublishedAt)
	})

	count, since := req.Limit.Count, req.Limit.Since
	if count <= 0 && since.IsZero() {
		count = s.defaultCount
	}

	out := make([]domain.Transcript, 0, len(all))
	for _, t := range all {
		if !since.IsZero() && t.PublishedAt.Before(since) {
			break
		}
		if t.Channel == "" {
			t.Channel = req.SourceName
		}
		out = append(out, t)
		if count > 0 && len(out) >= count {
			break
		}
	}

	if s.logger != nil {
		s.logger.Info("loaded transcripts", "source", req.SourceName, "dir", dir, "transcripts", len(out))
	}
	return out, nil
}

func readDump(path string, modTime time.Time) ([]domain.Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d dump
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}

	out := make([]domain.Transcript, 0, len(d.Transcripts))
	for _, t := range d.Transcripts {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		published := modTime
		if t.PublishDate != nil {
			if parsed, ok := parseTime(*t.PublishDate); ok {
				published = parsed
			}
		}
		link := t.URL
		if link == "" && t.VideoID != "" {
			link = youtube.WatchURL(t.VideoID)
		}
		out = append(out, domain.Transcript{
			VideoID:     t.VideoID,
			Title:       t.Title,
			Text:        t.Text,
			Channel:     t.ChannelName,
			URL:         link,
			PublishedAt: &published,
		})
	}
	return out, nil
}

func readText(path string, modTime time.Time) (domain.Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Transcript{}, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.Transcript{}, fmt.Errorf("file is empty")
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	published := modTime
	return domain.Transcript{
		VideoID:     stem,
		Title:       stem,
		Text:        text,
		URL:         "file://" + path,
		PublishedAt: &published,
	}, nil
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *Scanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
