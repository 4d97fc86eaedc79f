package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/pkg/circuit"

	"github.com/spf13/cast"
)

const (
	CommentaryDisabled    = "ℹ️ LLM commentary is disabled."
	CommentaryUnavailable = "⚠️ OpenAI commentary unavailable due to an error."
)

// ChatClient is the completion call the generator needs.
type ChatClient interface {
	CallWithMessages(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator writes a short rationale for a prediction. Generate never
// fails: a disabled generator or a backend error yields placeholder text.
type Generator struct {
	enabled bool
	client  ChatClient
	breaker *circuit.CircuitBreaker
	timeout time.Duration
}

func NewGenerator(enabled bool, client ChatClient, timeout time.Duration) *Generator {
	return &Generator{
		enabled: enabled && client != nil,
		client:  client,
		// 连续失败后暂停调用，避免每条预测都等待超时
		breaker: circuit.NewCircuitBreaker("commentary", 3, 5*time.Minute),
		timeout: timeout,
	}
}

func (g *Generator) Generate(ctx context.Context, fields map[string]any) string {
	if g == nil || !g.enabled {
		return CommentaryDisabled
	}
	prompt := BuildPrompt(fields)
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	var out string
	err := g.breaker.Do(func() error {
		text, err := g.client.CallWithMessages(ctx, "", prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("empty commentary")
		}
		out = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		logger.Errorf("commentary generation failed for %s %s: %v",
			cast.ToString(fields["symbol"]), cast.ToString(fields["timeframe"]), err)
		return CommentaryUnavailable
	}
	return out
}

// Tone picks the prompt opener from the confidence percentage.
func Tone(confidence float64) string {
	switch {
	case confidence >= 90:
		return "🚀 Strong Signal:"
	case confidence >= 80:
		return "✅ Confident Signal:"
	default:
		return "🔍 Cautious Insight:"
	}
}

// BuildPrompt renders the analysis request for one prediction context.
func BuildPrompt(c map[string]any) string {
	confidence := cast.ToFloat64(c["confidence"])
	var b strings.Builder
	b.WriteString(Tone(confidence))
	b.WriteString("\nYou are a crypto trading assistant. Analyze the following signal:\n")
	fmt.Fprintf(&b, "- Coin: %s\n", field(c, "symbol"))
	fmt.Fprintf(&b, "- Timeframe: %s\n", field(c, "timeframe"))
	fmt.Fprintf(&b, "- Signal: %s\n", field(c, "signal"))
	fmt.Fprintf(&b, "- Confidence: %.2f%%\n", confidence)
	fmt.Fprintf(&b, "- Volatility: %s%%\n", field(c, "volatility"))
	fmt.Fprintf(&b, "- EMA: %s\n", field(c, "ema"))
	fmt.Fprintf(&b, "- MACD: %s\n", field(c, "macd"))
	fmt.Fprintf(&b, "- RSI: %s\n", field(c, "rsi"))
	b.WriteString("\nRespond in 2-3 clear sentences with your trade rationale.")
	return b.String()
}

func field(c map[string]any, key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return "N/A"
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return "N/A"
	}
	return s
}
