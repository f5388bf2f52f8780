package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"Vid2News/internal/ports"
)

const (
	defaultBaseURL = "https://graph.facebook.com"
	graphVersion   = "v24.0"
)

// Publisher posts to a Facebook page feed through the Graph API. The page
// token and page id are read from the environment on every call.
type Publisher struct {
	tokenEnv  string
	pageEnv   string
	baseURL   string
	client    *http.Client
	lookupEnv func(string) string
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers the env var names holding page token and page id.
func NewPublisher(tokenEnv, pageEnv, baseURL string) *Publisher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Publisher{
		tokenEnv:  tokenEnv,
		pageEnv:   pageEnv,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
		lookupEnv: os.Getenv,
	}
}

// Name identifies the sink in logs and reports.
func (p *Publisher) Name() string {
	return "facebook"
}

// CheckCredentials fails when the page token or page id is not set.
func (p *Publisher) CheckCredentials() error {
	_, _, err := p.credentials()
	return err
}

// Publish creates a page feed post and returns the Graph API post id.
func (p *Publisher) Publish(ctx context.Context, body string) (string, error) {
	token, pageID, err := p.credentials()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("message", body)
	form.Set("access_token", token)

	endpoint := fmt.Sprintf("%s/%s/%s/feed", p.baseURL, graphVersion, url.PathEscape(pageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("facebook error: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode facebook response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("facebook response has no post id")
	}
	return out.ID, nil
}

func (p *Publisher) credentials() (string, string, error) {
	token := strings.TrimSpace(p.lookupEnv(p.tokenEnv))
	pageID := strings.TrimSpace(p.lookupEnv(p.pageEnv))
	if token == "" || pageID == "" {
		return "", "", fmt.Errorf("facebook credentials missing: set %s and %s", p.tokenEnv, p.pageEnv)
	}
	return token, pageID, nil
}
