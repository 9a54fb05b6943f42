package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const wecomTimeout = 5 * time.Second

// WeComMirror copies outgoing text to a WeCom group robot webhook.
type WeComMirror struct {
	webhookURL string
	httpClient *http.Client
}

func NewWeComMirror(webhookURL string, httpClient *http.Client) *WeComMirror {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: wecomTimeout}
	}
	return &WeComMirror{webhookURL: strings.TrimSpace(webhookURL), httpClient: httpClient}
}

func (m *WeComMirror) Name() string {
	return "wecom"
}

type wecomResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (m *WeComMirror) Mirror(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": text,
		},
	})
	if err != nil {
		return fmt.Errorf("encode wecom payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create wecom request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post wecom webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read wecom response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("wecom webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result wecomResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode wecom response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("wecom webhook errcode=%d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
