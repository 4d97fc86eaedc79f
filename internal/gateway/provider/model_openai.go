package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/retry"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// 中文说明：
// OpenAIChatClient：兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口（/v1/chat/completions）。

type OpenAIChatClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// 简易重试（用于 429/5xx）：若为 0 则默认重试 2 次
	MaxRetries   int
	ExtraHeaders map[string]string
	HTTPClient   *http.Client

	sleep func(ctx context.Context, d time.Duration) error
}

// statusError is a non-2xx reply. 429 and 5xx are retried.
type statusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *statusError) Error() string { return fmt.Sprintf("status=%d: %s", e.Code, e.Message) }

func (e *statusError) retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *OpenAIChatClient) endpoint() string {
	url := c.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	// 若已经包含 /chat/completions 则去掉，稍后统一追加一次
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

// CallWithMessages sends one chat completion and returns the first choice.
func (c *OpenAIChatClient) CallWithMessages(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	httpc := c.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: timeout}
	}

	messages := []map[string]string{}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	temp := c.Temperature
	if temp <= 0 {
		temp = 0.7
	}
	body, err := json.Marshal(map[string]any{"model": c.Model, "messages": messages, "temperature": temp})
	if err != nil {
		return "", err
	}
	url := c.endpoint()
	logger.Debugf("[AI] 请求: POST %s, model=%s, key=%s, body=%d bytes", url, c.Model, maskKey(c.APIKey), len(body))

	var retryAfter time.Duration
	policy := retry.Policy{
		Name:        "openai.chat",
		MaxAttempts: maxRetries + 1,
		Base:        800 * time.Millisecond,
		Cap:         8 * time.Second,
		Retryable: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				retryAfter = se.RetryAfter
				return se.retryable()
			}
			return false
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			if retryAfter > 0 {
				d = retryAfter
			}
			if c.sleep != nil {
				return c.sleep(ctx, d)
			}
			return sleepCtx(ctx, d)
		},
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return c.do(ctx, httpc, url, body)
	})
}

func (c *OpenAIChatClient) do(ctx context.Context, httpc *http.Client, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String())
		if msg == "" {
			msg = resp.Status
		}
		se := &statusError{Code: resp.StatusCode, Message: msg}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil {
				se.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return "", se
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("empty choices")
	}
	return strings.TrimSpace(content.String()), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// 掩码密钥，仅展示后 4 位
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) > 4 {
		return "****" + key[len(key)-4:]
	}
	return "****"
}
