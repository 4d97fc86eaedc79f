package symbol

import (
	"strings"
)

type Format string

const (
	FormatInternal Format = "internal"
	FormatBinance  Format = "binance"
	FormatGate     Format = "gate"
)

// DefaultQuote is used when a bare coin ticker such as "BTC" is given.
const DefaultQuote = "USDT"

type Converter interface {
	ToExchange(internal string) string

	FromExchange(raw string) string

	Format() Format
}

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "FDUSD", "BTC", "ETH", "BNB"}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}

	return Symbol{}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

// SplitPair returns base and quote. A bare ticker gets defQuote.
func SplitPair(s, defQuote string) (string, string) {
	if sym := Parse(s); sym.Base != "" {
		return sym.Base, sym.Quote
	}
	if defQuote == "" {
		defQuote = DefaultQuote
	}
	return strings.ToUpper(strings.TrimSpace(s)), strings.ToUpper(defQuote)
}

// Pair turns a coin ticker into an internal pair, "BTC" -> "BTC/USDT".
// Inputs that already carry a quote are only normalised.
func Pair(coin, quote string) string {
	base, q := SplitPair(coin, quote)
	if base == "" {
		return ""
	}
	return base + "/" + q
}

// Coin strips the quote, "BTC/USDT" -> "BTC".
func Coin(s string) string {
	base, _ := SplitPair(s, "")
	return base
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
