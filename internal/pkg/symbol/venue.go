package symbol

import "strings"

// venueConverter renders a pair as BASE<sep>QUOTE. Bare coins get the
// default quote.
type venueConverter struct {
	sep    string
	format Format
}

func (c venueConverter) ToExchange(internal string) string {
	base, quote := SplitPair(internal, DefaultQuote)
	if base == "" {
		return ""
	}
	return base + c.sep + quote
}

func (c venueConverter) FromExchange(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if c.sep != "" {
		raw = strings.Replace(raw, c.sep, "/", 1)
	}
	return Parse(raw).Internal()
}

func (c venueConverter) Format() Format { return c.format }

var (
	Binance Converter = venueConverter{sep: "", format: FormatBinance}
	Gate    Converter = venueConverter{sep: "_", format: FormatGate}
)
