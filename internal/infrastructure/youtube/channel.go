package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	relativeExpr      = regexp.MustCompile(`(\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago`)
	apiKeyExpr        = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	clientVersionExpr = regexp.MustCompile(`"INNERTUBE_CLIENT_VERSION":"([^"]+)"`)
	channelTabs       = []string{"/videos", "/featured", "/streams", "/shorts", "/about", "/playlists"}
)

type video struct {
	ID          string
	Title       string
	PublishedAt *time.Time
}

// listVideos reads the channel's videos tab, following continuation pages
// until limit entries were seen or the channel is exhausted.
func (s *Scanner) listVideos(ctx context.Context, channelURL string, limit int) ([]video, error) {
	pageURL, err := s.videosURL(channelURL)
	if err != nil {
		return nil, err
	}

	page, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse channel page: %w", err)
	}
	initial, err := initialData(doc)
	if err != nil {
		return nil, err
	}

	now := s.now()
	videos := collectVideos(initial, now)
	token := continuationToken(initial)
	apiKey := firstMatch(apiKeyExpr, page)
	version := firstMatch(clientVersionExpr, page)

	for len(videos) < limit && token != "" {
		next, err := s.browse(ctx, token, apiKey, version)
		if err != nil {
			s.warn("continuation failed", "channel", channelURL, "error", err)
			break
		}
		more := collectVideos(next, now)
		if len(more) == 0 {
			break
		}
		videos = append(videos, more...)
		token = continuationToken(next)
	}

	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func (s *Scanner) videosURL(channelURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(channelURL))
	if err != nil {
		return "", fmt.Errorf("invalid channel url %s: %w", channelURL, err)
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	for _, tab := range channelTabs {
		path = strings.TrimSuffix(path, tab)
	}
	if path == "" {
		return "", fmt.Errorf("channel url %s has no channel path", channelURL)
	}
	return s.baseURL + path + "/videos?hl=en", nil
}

func (s *Scanner) browse(ctx context.Context, token, apiKey, version string) (any, error) {
	if version == "" {
		version = "2.20240101.00.00"
	}
	body, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": map[string]string{
				"clientName":    "WEB",
				"clientVersion": version,
				"hl":            "en",
			},
		},
		"continuation": token,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal browse request: %w", err)
	}

	target := s.baseURL + "/youtubei/v1/browse"
	if apiKey != "" {
		target += "?key=" + url.QueryEscape(apiKey)
	}
	payload, err := s.do(ctx, http.MethodPost, target, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode browse response: %w", err)
	}
	return data, nil
}

// initialData finds the ytInitialData assignment among the page scripts.
func initialData(doc *goquery.Document) (any, error) {
	var (
		data  any
		found bool
		err   error
	)
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		marker := strings.Index(text, "ytInitialData")
		if marker < 0 {
			return true
		}
		start := strings.Index(text[marker:], "{")
		if start < 0 {
			return true
		}
		dec := json.NewDecoder(strings.NewReader(text[marker+start:]))
		if err = dec.Decode(&data); err != nil {
			err = fmt.Errorf("decode ytInitialData: %w", err)
			return false
		}
		found = true
		return false
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("ytInitialData not found on channel page")
	}
	return data, nil
}

// walk visits every object member depth first. Object keys are visited in
// lexical order so traversal is stable.
func walk(node any, visit func(key string, value any)) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			visit(k, v[k])
			walk(v[k], visit)
		}
	case []any:
		for _, item := range v {
			walk(item, visit)
		}
	}
}

func collectVideos(root any, now time.Time) []video {
	var out []video
	seen := map[string]bool{}
	walk(root, func(key string, value any) {
		if key != "videoRenderer" {
			return
		}
		renderer, ok := value.(map[string]any)
		if !ok {
			return
		}
		id, _ := renderer["videoId"].(string)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, video{
			ID:          id,
			Title:       textOf(renderer["title"]),
			PublishedAt: parseRelative(textOf(renderer["publishedTimeText"]), now),
		})
	})
	return out
}

// continuationToken returns the token of the grid's trailing
// continuationItemRenderer; chip-bar continuations are ignored.
func continuationToken(root any) string {
	var token string
	walk(root, func(key string, value any) {
		if token != "" || key != "continuationItemRenderer" {
			return
		}
		walk(value, func(k string, v any) {
			if token != "" || k != "continuationCommand" {
				return
			}
			if cmd, ok := v.(map[string]any); ok {
				token, _ = cmd["token"].(string)
			}
		})
	})
	return token
}

// textOf reads YouTube's {"runs":[{"text":..}]} or {"simpleText":..} shapes.
func textOf(node any) string {
	obj, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := obj["simpleText"].(string); ok {
		return s
	}
	runs, _ := obj["runs"].([]any)
	if len(runs) == 0 {
		return ""
	}
	first, _ := runs[0].(map[string]any)
	s, _ := first["text"].(string)
	return s
}

// parseRelative turns "3 hours ago" or "Streamed 2 days ago" into a timestamp.
func parseRelative(text string, now time.Time) *time.Time {
	m := relativeExpr.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var unit time.Duration
	switch m[2] {
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	case "year":
		unit = 365 * 24 * time.Hour
	}
	t := now.Add(-time.Duration(n) * unit)
	return &t
}

func firstMatch(expr *regexp.Regexp, page []byte) string {
	m := expr.FindSubmatch(page)
	if m == nil {
		return ""
	}
	return string(m[1])
}
