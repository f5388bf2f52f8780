package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/scanner"
)

const channelPage = `<html><head><script>var ytcfg = {"INNERTUBE_API_KEY":"test-key","INNERTUBE_CLIENT_VERSION":"2.2025"};</script>
<script>var ytInitialData = {"contents":{"twoColumnBrowseResultsRenderer":{"tabs":[{"tabRenderer":{"content":{"richGridRenderer":{"contents":[
{"richItemRenderer":{"content":{"videoRenderer":{"videoId":"v1","title":{"runs":[{"text":"Fresh news"}]},"publishedTimeText":{"simpleText":"2 hours ago"}}}}},
{"richItemRenderer":{"content":{"videoRenderer":{"videoId":"v2","title":{"runs":[{"text":"No captions"}]},"publishedTimeText":{"simpleText":"Streamed 5 hours ago"}}}}},
{"continuationItemRenderer":{"continuationEndpoint":{"continuationCommand":{"token":"page-2"}}}}
]}}}}]}}};</script></head><body></body></html>`

const browsePage = `{"onResponseReceivedActions":[{"appendContinuationItemsAction":{"continuationItems":[
{"richItemRenderer":{"content":{"videoRenderer":{"videoId":"v3","title":{"runs":[{"text":"Old news"}]},"publishedTimeText":{"simpleText":"3 days ago"}}}}},
{"richItemRenderer":{"content":{"videoRenderer":{"videoId":"v4","title":{"runs":[{"text":"Older news"}]},"publishedTimeText":{"simpleText":"1 week ago"}}}}}
]}}]}`

const timedText = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.0" dur="1.5">Markets rallied</text>
<text start="1.5" dur="2.0">after the bank&amp;#39;s
decision</text>
</transcript>`

func newChannelServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	browseCalls := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/@markets/videos":
			_, _ = io.WriteString(w, channelPage)
		case r.URL.Path == "/youtubei/v1/browse":
			browseCalls++
			if r.URL.Query().Get("key") != "test-key" {
				t.Errorf("browse called without api key")
			}
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"continuation":"page-2"`) {
				t.Errorf("unexpected browse body %s", body)
			}
			_, _ = io.WriteString(w, browsePage)
		case r.URL.Path == "/watch" && r.URL.Query().Get("v") == "v2":
			_, _ = io.WriteString(w, `<html><script>var ytInitialPlayerResponse = {"playabilityStatus":{}};</script></html>`)
		case r.URL.Path == "/watch":
			id := r.URL.Query().Get("v")
			_, _ = fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/api/timedtext?v=%s&lang=de","languageCode":"de"},{"baseUrl":"%s/api/timedtext?v=%s&lang=en","languageCode":"en","kind":"asr"}]}}};</script></html>`, server.URL, id, server.URL, id)
		case r.URL.Path == "/api/timedtext":
			if r.URL.Query().Get("lang") != "en" {
				t.Errorf("expected english track, got %s", r.URL.RawQuery)
			}
			_, _ = io.WriteString(w, timedText)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &browseCalls
}

func TestScanStopsAtFirstOlderVideo(t *testing.T) {
	t.Parallel()

	server, browseCalls := newChannelServer(t)
	sc := NewScanner(Options{Client: server.Client(), BaseURL: server.URL})

	transcripts, err := sc.Scan(context.Background(), scanner.Request{
		SourceName: "Markets",
		URL:        "https://www.youtube.com/@markets/featured",
		Limit:      domain.FetchLimit{Since: time.Now().Add(-24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(transcripts))
	}
	got := transcripts[0]
	if got.VideoID != "v1" || got.Title != "Fresh news" || got.Channel != "Markets" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
	if got.URL != "https://www.youtube.com/watch?v=v1" {
		t.Fatalf("unexpected url: %s", got.URL)
	}
	if got.Text != "Markets rallied after the bank's decision" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
	if got.PublishedAt == nil || time.Since(*got.PublishedAt) < time.Hour {
		t.Fatalf("unexpected published time: %v", got.PublishedAt)
	}
	if *browseCalls != 1 {
		t.Fatalf("expected one continuation request, got %d", *browseCalls)
	}
}

func TestScanDefaultsToCount(t *testing.T) {
	t.Parallel()

	server, browseCalls := newChannelServer(t)
	sc := NewScanner(Options{Client: server.Client(), BaseURL: server.URL, DefaultCount: 1})

	transcripts, err := sc.Scan(context.Background(), scanner.Request{
		SourceName: "Markets",
		URL:        "https://www.youtube.com/@markets",
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(transcripts) != 1 || transcripts[0].VideoID != "v1" {
		t.Fatalf("unexpected transcripts: %+v", transcripts)
	}
	if *browseCalls != 0 {
		t.Fatalf("count-limited scan must not paginate, got %d calls", *browseCalls)
	}
}

func TestScanFailsOnMissingChannel(t *testing.T) {
	t.Parallel()

	server, _ := newChannelServer(t)
	sc := NewScanner(Options{Client: server.Client(), BaseURL: server.URL})

	if _, err := sc.Scan(context.Background(), scanner.Request{URL: "https://www.youtube.com/@unknown"}); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestParseRelative(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"3 hours ago":              3 * time.Hour,
		"Streamed 1 day ago":       24 * time.Hour,
		"2 weeks ago":              14 * 24 * time.Hour,
		"Premiered 10 minutes ago": 10 * time.Minute,
	}
	for in, want := range cases {
		got := parseRelative(in, now)
		if got == nil || now.Sub(*got) != want {
			t.Fatalf("parseRelative(%q) = %v", in, got)
		}
	}
	if parseRelative("Scheduled for tomorrow", now) != nil {
		t.Fatalf("expected nil for unparseable text")
	}
}

func TestPickTrackPrefersManualCaptions(t *testing.T) {
	t.Parallel()

	tracks := []captionTrack{
		{BaseURL: "asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "manual", LanguageCode: "en"},
		{BaseURL: "pl", LanguageCode: "pl"},
	}
	if got, ok := pickTrack(tracks, []string{"en"}); !ok || got.BaseURL != "manual" {
		t.Fatalf("pickTrack = %+v, %v", got, ok)
	}
	if got, ok := pickTrack(tracks, []string{"de", "pl"}); !ok || got.BaseURL != "pl" {
		t.Fatalf("pickTrack fallback = %+v, %v", got, ok)
	}
	if _, ok := pickTrack(tracks, []string{"fr"}); ok {
		t.Fatalf("expected no track for fr")
	}
}
