package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// fetchTranscript downloads the caption track best matching languages and
// joins its segments into one text.
func (s *Scanner) fetchTranscript(ctx context.Context, videoID string, languages []string) (string, error) {
	page, err := s.get(ctx, s.baseURL+"/watch?v="+url.QueryEscape(videoID)+"&hl=en")
	if err != nil {
		return "", fmt.Errorf("load watch page: %w", err)
	}

	tracks, err := captionTracks(page)
	if err != nil {
		return "", err
	}
	track, ok := pickTrack(tracks, languages)
	if !ok {
		return "", fmt.Errorf("no transcript in languages %v", languages)
	}

	raw, err := s.get(ctx, track.BaseURL)
	if err != nil {
		return "", fmt.Errorf("load caption track: %w", err)
	}

	text, err := parseTimedText(raw)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("transcript is empty")
	}
	return text, nil
}

func captionTracks(page []byte) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	idx := bytes.Index(page, []byte(marker))
	if idx < 0 {
		return nil, fmt.Errorf("video has no captions")
	}

	var tracks []captionTrack
	dec := json.NewDecoder(bytes.NewReader(page[idx+len(marker):]))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	return tracks, nil
}

// pickTrack prefers manually created captions over generated ones for each
// language, in the given language order.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		var generated *captionTrack
		for i := range tracks {
			if tracks[i].LanguageCode != lang || tracks[i].BaseURL == "" {
				continue
			}
			if tracks[i].Kind != "asr" {
				return tracks[i], true
			}
			if generated == nil {
				generated = &tracks[i]
			}
		}
		if generated != nil {
			return *generated, true
		}
	}
	return captionTrack{}, false
}

func parseTimedText(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse caption track: %w", err)
	}

	var parts []string
	doc.Find("text").Each(func(_ int, sel *goquery.Selection) {
		segment := strings.Join(strings.Fields(html.UnescapeString(sel.Text())), " ")
		if segment != "" {
			parts = append(parts, segment)
		}
	})
	return strings.Join(parts, " "), nil
}
