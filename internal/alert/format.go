package alert

import (
	"fmt"
	"strings"

	"tradepilot/internal/pkg/symbol"

	"github.com/shopspring/decimal"
)

// NoCommentary is the rationale used when commentary was not requested.
const NoCommentary = "Commentary not available."

// Message is everything the formatter renders.
type Message struct {
	Kind           Kind
	Symbol         string
	Timeframe      string
	Price          *float64
	Confidence     float64
	Recommendation string
	Rationale      string
}

// Format renders the Telegram Markdown alert.
func Format(m Message) string {
	rationale := strings.TrimSpace(m.Rationale)
	if rationale == "" {
		rationale = NoCommentary
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s ALERT* 🚨\n\n", strings.ToUpper(string(m.Kind)))
	fmt.Fprintf(&b, "🪙 *Coin:* `%s`\n", symbol.Pair(m.Symbol, symbol.DefaultQuote))
	fmt.Fprintf(&b, "⏳ *Timeframe:* `%s`\n", m.Timeframe)
	fmt.Fprintf(&b, "💲 *Price at Alert:* `%s`\n", FormatPrice(m.Price))
	fmt.Fprintf(&b, "📈 *Confidence:* `%.2f%%`\n", m.Confidence)
	fmt.Fprintf(&b, "🎯 *RECOMMENDATION:* `%s`\n\n", strings.ToUpper(m.Recommendation))
	fmt.Fprintf(&b, "🤖 *AI Rationale:* %s", rationale)
	return b.String()
}

// FormatPrice renders "$65,432.1000", or "N/A" when the price is unknown.
func FormatPrice(p *float64) string {
	if p == nil {
		return "N/A"
	}
	s := decimal.NewFromFloat(*p).StringFixed(4)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	return sign + "$" + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
