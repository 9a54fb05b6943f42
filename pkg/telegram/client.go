package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
)

const (
	DefaultAPIBase     = "https://api.telegram.org"
	DefaultPollTimeout = 25
	requestSlack       = 10 * time.Second

	// MaxMessageLength is Telegram's limit on one message, in UTF-16 code units.
	MaxMessageLength = 4096
)

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: status=%d %s", e.Method, e.StatusCode, e.Description)
}

// Recorder persists messages the bot has sent.
type Recorder interface {
	AppendBot(msg *Message) error
}

// Mirror receives a best-effort copy of every sent message.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, text string) error
}

type Options struct {
	Token       string
	APIBase     string
	ParseMode   string
	SendRate    float64 // messages per second, <= 0 disables throttling
	PollTimeout int     // seconds
	HTTPClient  *http.Client
}

type Client struct {
	baseURL     string
	parseMode   string
	pollTimeout int
	httpClient  *http.Client
	limiter     *rate.Limiter
	recorder    Recorder
	mirrors     []Mirror
}

func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	apiBase := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.SendRate), 1)
	}
	return &Client{
		baseURL:     apiBase + "/bot" + token,
		parseMode:   opts.ParseMode,
		pollTimeout: pollTimeout,
		httpClient:  httpClient,
		limiter:     limiter,
	}, nil
}

// SetRecorder makes every successfully sent message flow into r.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

func (c *Client) AddMirror(m Mirror) {
	if m != nil {
		c.mirrors = append(c.mirrors, m)
	}
}

// GetUpdates long-polls for updates with id >= offset. An offset of zero
// asks for everything unconfirmed.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	params := url.Values{}
	params.Set("timeout", strconv.Itoa(c.pollTimeout))
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(c.pollTimeout)*time.Second+requestSlack)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create getUpdates request: %w", err)
	}

	result, err := c.do(req, "getUpdates")
	if err != nil {
		return nil, err
	}
	updates := []Update{}
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// SendMessage posts text to a chat using the configured parse mode. When
// Telegram rejects the markup the text is resent without a parse mode. Text
// longer than one Telegram message goes out in several; the last one sent is
// returned.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	var msg *Message
	for _, chunk := range splitText(text, MaxMessageLength) {
		sent, err := c.sendChunk(ctx, chatID, chunk)
		if err != nil {
			return nil, err
		}
		msg = sent
	}

	for _, mirror := range c.mirrors {
		if err := mirror.Mirror(ctx, text); err != nil {
			logger.WarnCF("telegram", "Mirror delivery failed",
				map[string]interface{}{
					"mirror": mirror.Name(),
					"error":  err.Error(),
				})
		}
	}
	return msg, nil
}

func (c *Client) sendChunk(ctx context.Context, chatID int64, text string) (*Message, error) {
	msg, err := c.sendMessage(ctx, chatID, text, c.parseMode)
	var apiErr *APIError
	if errors.As(err, &apiErr) && c.parseMode != "" && apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities") {
		logger.WarnCF("telegram", "Markup rejected, resending as plain text",
			map[string]interface{}{
				"chat_id": chatID,
				"error":   apiErr.Description,
			})
		msg, err = c.sendMessage(ctx, chatID, text, "")
	}
	if err != nil {
		return nil, err
	}

	if c.recorder != nil {
		if err := c.recorder.AppendBot(msg); err != nil {
			logger.WarnCF("telegram", "Failed to record sent message",
				map[string]interface{}{
					"chat_id": chatID,
					"error":   err.Error(),
				})
		}
	}
	return msg, nil
}

// SendText is SendMessage without the returned message.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := c.SendMessage(ctx, chatID, text)
	return err
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text, parseMode string) (*Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for send slot: %w", err)
	}

	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode sendMessage: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	result, err := c.do(req, "sendMessage")
	if err != nil {
		return nil, err
	}
	msg := &Message{}
	if err := json.Unmarshal(result, msg); err != nil {
		return nil, fmt.Errorf("decode sent message: %w", err)
	}
	return msg, nil
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read telegram %s response: %w", method, err)
	}

	var payload apiResponse
	decodeErr := json.Unmarshal(raw, &payload)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices || decodeErr != nil || !payload.OK {
		desc := strings.TrimSpace(payload.Description)
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Description: desc}
	}
	return payload.Result, nil
}
