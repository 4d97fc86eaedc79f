package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/pkg/text"
	"tradepilot/internal/retry"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// 中文说明：
// Telegram 通知器：将预测提醒推送至指定群/频道。

const (
	defaultTelegramAPI = "https://api.telegram.org"
	// Telegram 单条消息上限 4096，留出余量
	maxMessageLen = 4000
)

var errIncompleteConfig = errors.New("telegram config incomplete")

type Telegram struct {
	BotToken string
	ChatID   string
	// BaseURL 默认为 api.telegram.org，测试时指向 httptest
	BaseURL string
	Client  *http.Client
	Retry   retry.Policy
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Retry:    retry.Policy{Name: "telegram.send", MaxAttempts: 3, Base: time.Second, Cap: 4 * time.Second},
	}
}

type telegramStatus struct {
	Code        int
	Description string
}

func (e *telegramStatus) Error() string {
	return fmt.Sprintf("telegram status=%d: %s", e.Code, e.Description)
}

// 429 表示消息未被接受；5xx 与超时时 Telegram 可能已投递，重发会重复。
func (e *telegramStatus) retryable() bool {
	return e.Code == http.StatusTooManyRequests
}

// SendText 发送 Markdown 文本；只在 429 或连接未建立时重试。
func (t *Telegram) SendText(ctx context.Context, msg string) error {
	if strings.TrimSpace(t.BotToken) == "" || strings.TrimSpace(t.ChatID) == "" {
		return errIncompleteConfig
	}
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = defaultTelegramAPI
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text.Truncate(msg, maxMessageLen),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	policy := t.Retry
	if policy.Name == "" {
		policy.Name = "telegram.send"
	}
	policy.Retryable = retryableSend
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warnf("telegram send attempt %d failed: %v (retry in %s)", attempt, err, wait)
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		return t.post(ctx, client, url, body)
	})
}

func (t *Telegram) post(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 == 2 {
		return nil
	}
	desc := gjson.GetBytes(raw, "description").String()
	if desc == "" {
		desc = resp.Status
	}
	return &telegramStatus{Code: resp.StatusCode, Description: desc}
}

func retryableSend(err error) bool {
	var st *telegramStatus
	if errors.As(err, &st) {
		return st.retryable()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
