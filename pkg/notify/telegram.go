package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paz-rewards/pkg/config"

	"go.uber.org/fx"
)

const defaultAPIBase = "https://api.telegram.org"

// BotClient posts human-readable status messages to the operator chat
// channel. Delivery is best-effort; callers decide whether a failure matters.
type BotClient struct {
	baseURL    string
	token      string
	chatID     int64
	httpClient *http.Client
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

var Module = fx.Module("notify",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg *config.Config) *BotClient {
	if !cfg.Notifier.Enable {
		return nil
	}
	return NewBotClient(cfg.Notifier.BaseURL, cfg.Notifier.BotToken, cfg.Notifier.ChatID, nil)
}

// NewBotClient builds a client for the chat-notification API. baseURL is
// overridable so tests can point at a local server; empty means the real API.
func NewBotClient(baseURL, token string, chatID int64, httpClient *http.Client) *BotClient {
	client := httpClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultAPIBase
	}

	return &BotClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		chatID:     chatID,
		httpClient: client,
	}
}

func (c *BotClient) SendMessage(ctx context.Context, text string) error {
	if c == nil {
		return errors.New("notifier is not configured")
	}
	if c.token == "" {
		return errors.New("bot token is empty")
	}
	if c.chatID == 0 {
		return errors.New("chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("message is empty")
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, url.PathEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var apiResp apiResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		return decodeErr
	}

	if resp.StatusCode >= http.StatusBadRequest || !apiResp.OK {
		if apiResp.Description == "" {
			apiResp.Description = "chat api request failed"
		}
		return fmt.Errorf("chat api error: %s", apiResp.Description)
	}

	return nil
}
