package alert

import (
	"path/filepath"
	"testing"

	"tradepilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTaxonomy() *Taxonomy {
	return NewTaxonomy(
		config.TaxonomyConfig{Symbols: []string{"BTC", "ETH", "SOL"}, Timeframes: []string{"30m", "1h", "1d"}},
		config.TaxonomyConfig{Symbols: []string{"BTC", "DOGE"}, Timeframes: []string{"1m", "5m", "1h"}},
	)
}

func TestTaxonomyClassify(t *testing.T) {
	tx := testTaxonomy()
	cases := []struct {
		symbol, tf, signal string
		kind               Kind
		rec                string
	}{
		{"BTC", "1h", "UP", KindPrediction, "UP"},
		{"eth", "1D", "DOWN", KindPrediction, "DOWN"},
		{"DOGE", "5m", "UP", KindPerpetual, "Long"},
		{"DOGE", "1m", "DOWN", KindPerpetual, "Short"},
		{"BTC", "5m", "HOLD", KindPerpetual, "Short"},
		{"XRP", "1h", "UP", KindNone, ""},
		{"SOL", "5m", "UP", KindNone, ""},
	}
	for _, tc := range cases {
		kind, rec := tx.Classify(tc.symbol, tc.tf, tc.signal)
		assert.Equal(t, tc.kind, kind, "%s %s", tc.symbol, tc.tf)
		assert.Equal(t, tc.rec, rec, "%s %s", tc.symbol, tc.tf)
	}
}

func TestFormatPrice(t *testing.T) {
	p := func(v float64) *float64 { return &v }
	assert.Equal(t, "N/A", FormatPrice(nil))
	assert.Equal(t, "$65,432.1000", FormatPrice(p(65432.10)))
	assert.Equal(t, "$0.0001", FormatPrice(p(0.0001)))
	assert.Equal(t, "$1,234,567.5000", FormatPrice(p(1234567.5)))
	assert.Equal(t, "$999.1235", FormatPrice(p(999.12345)))
}

func TestFormatMessage(t *testing.T) {
	price := 65432.10
	got := Format(Message{
		Kind:           KindPrediction,
		Symbol:         "BTC",
		Timeframe:      "1h",
		Price:          &price,
		Confidence:     99.99,
		Recommendation: "up",
		Rationale:      "Breakout above resistance.",
	})
	want := "🚨 *FUTURES PREDICTION ALERT* 🚨\n\n" +
		"🪙 *Coin:* `BTC/USDT`\n" +
		"⏳ *Timeframe:* `1h`\n" +
		"💲 *Price at Alert:* `$65,432.1000`\n" +
		"📈 *Confidence:* `99.99%`\n" +
		"🎯 *RECOMMENDATION:* `UP`\n\n" +
		"🤖 *AI Rationale:* Breakout above resistance."
	assert.Equal(t, want, got)

	got = Format(Message{Kind: KindPerpetual, Symbol: "DOGE", Timeframe: "5m", Confidence: 55, Recommendation: "Short"})
	assert.Contains(t, got, "*FUTURES PERPETUAL ALERT*")
	assert.Contains(t, got, "`N/A`")
	assert.Contains(t, got, "`SHORT`")
	assert.Contains(t, got, NoCommentary)
}

func TestFlagToggle(t *testing.T) {
	f := Flag{Path: filepath.Join(t.TempDir(), "data", "alerts_on.flag")}
	assert.False(t, f.Enabled())
	require.NoError(t, f.Enable())
	require.NoError(t, f.Enable())
	assert.True(t, f.Enabled())
	require.NoError(t, f.Disable())
	require.NoError(t, f.Disable())
	assert.False(t, f.Enabled())
}
