package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSender 把回复 POST 到外部聊天网关。
type WebhookSender struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// NewWebhookSender 创建一个 WebhookSender。
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{url: url, client: &http.Client{Timeout: timeout}}
}

// Send 实现 Sender。非 2xx 响应视为发送失败。
func (s *WebhookSender) Send(ctx context.Context, userID, text string) error {
	body, err := json.Marshal(webhookPayload{To: userID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook send to %s: %w", userID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook send to %s: unexpected status %d", userID, resp.StatusCode)
	}
	return nil
}
