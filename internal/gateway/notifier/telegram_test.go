package notifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tradepilot/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestTelegram(url string, waits *[]time.Duration) *Telegram {
	tg := NewTelegram("123:abc", "-100")
	tg.BaseURL = url
	tg.Retry.Sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return tg
}

func TestTelegramSendsMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "-100", gjson.GetBytes(body, "chat_id").String())
		assert.Equal(t, "Markdown", gjson.GetBytes(body, "parse_mode").String())
		assert.Equal(t, "*hello*", gjson.GetBytes(body, "text").String())
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var waits []time.Duration
	require.NoError(t, newTestTelegram(srv.URL, &waits).SendText(context.Background(), "*hello*"))
	assert.Empty(t, waits)
}

func TestTelegramTruncatesLongMessages(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = gjson.GetBytes(body, "text").String()
	}))
	defer srv.Close()

	var waits []time.Duration
	require.NoError(t, newTestTelegram(srv.URL, &waits).SendText(context.Background(), strings.Repeat("a", 5000)))
	assert.Len(t, got, maxMessageLen+3)
}

func TestTelegramRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Too Many Requests: retry after 1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var waits []time.Duration
	require.NoError(t, newTestTelegram(srv.URL, &waits).SendText(context.Background(), "hi"))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestTelegramServerErrorIsNotResent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var waits []time.Duration
	err := newTestTelegram(srv.URL, &waits).SendText(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestTelegramTimeoutIsNotResent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}
	}))
	defer srv.Close()

	var waits []time.Duration
	tg := newTestTelegram(srv.URL, &waits)
	tg.Client = &http.Client{Timeout: 20 * time.Millisecond}
	require.Error(t, tg.SendText(context.Background(), "hi"))
	assert.Empty(t, waits)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestTelegramRetriesRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var waits []time.Duration
	err := newTestTelegram(url, &waits).SendText(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Len(t, waits, 2)
}

func TestTelegramClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	var waits []time.Duration
	err := newTestTelegram(srv.URL, &waits).SendText(context.Background(), "_broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't parse entities")
	assert.Equal(t, 1, calls)
}

func TestTelegramRequiresConfig(t *testing.T) {
	err := NewTelegram("", "x").SendText(context.Background(), "hi")
	assert.ErrorIs(t, err, errIncompleteConfig)
}
