package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"Vid2News/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Publisher sends posts to a Telegram chat via bot API. The bot token and
// chat id are read from the environment on every call.
type Publisher struct {
	tokenEnv  string
	chatEnv   string
	baseURL   string
	client    *http.Client
	lookupEnv func(string) string
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers the env var names holding bot token and chat identifier.
func NewPublisher(tokenEnv, chatEnv, baseURL string) *Publisher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Publisher{
		tokenEnv:  tokenEnv,
		chatEnv:   chatEnv,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
		lookupEnv: os.Getenv,
	}
}

// Name identifies the sink in logs and reports.
func (p *Publisher) Name() string {
	return "telegram"
}

// CheckCredentials fails when the bot token or chat id is not set.
func (p *Publisher) CheckCredentials() error {
	_, _, err := p.credentials()
	return err
}

// Publish posts the body as a plain text message and returns its message id.
func (p *Publisher) Publish(ctx context.Context, body string) (string, error) {
	token, chatID, err := p.credentials()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", body)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, token)
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
		return "", fmt.Errorf("telegram error: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode telegram response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("telegram error: %s", out.Description)
	}
	return strconv.FormatInt(out.Result.MessageID, 10), nil
}

func (p *Publisher) credentials() (string, string, error) {
	token := strings.TrimSpace(p.lookupEnv(p.tokenEnv))
	chatID := strings.TrimSpace(p.lookupEnv(p.chatEnv))
	if token == "" || chatID == "" {
		return "", "", fmt.Errorf("telegram credentials missing: set %s and %s", p.tokenEnv, p.chatEnv)
	}
	return token, chatID, nil
}
