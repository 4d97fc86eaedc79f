// Package alert turns undelivered predictions into notification messages.
package alert

import (
	"strings"

	"tradepilot/internal/config"
)

// Kind names the alert style a prediction belongs to.
type Kind string

const (
	KindNone       Kind = ""
	KindPrediction Kind = "Futures Prediction"
	KindPerpetual  Kind = "Futures Perpetual"
)

// table is a static coin/timeframe membership set.
type table struct {
	symbols    map[string]bool
	timeframes map[string]bool
}

func newTable(cfg config.TaxonomyConfig) table {
	t := table{symbols: map[string]bool{}, timeframes: map[string]bool{}}
	for _, s := range cfg.Symbols {
		t.symbols[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	for _, tf := range cfg.Timeframes {
		t.timeframes[strings.ToLower(strings.TrimSpace(tf))] = true
	}
	return t
}

func (t table) has(symbol, timeframe string) bool {
	return t.symbols[symbol] && t.timeframes[timeframe]
}

// Taxonomy classifies predictions. Prediction-style wins when both match.
type Taxonomy struct {
	prediction table
	perpetual  table
}

func NewTaxonomy(prediction, perpetual config.TaxonomyConfig) *Taxonomy {
	return &Taxonomy{prediction: newTable(prediction), perpetual: newTable(perpetual)}
}

// Classify returns the alert kind and the recommendation to render.
// KindNone means the record matches neither table.
func (t *Taxonomy) Classify(symbol, timeframe, signal string) (Kind, string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	switch {
	case t.prediction.has(symbol, timeframe):
		return KindPrediction, signal
	case t.perpetual.has(symbol, timeframe):
		if strings.EqualFold(strings.TrimSpace(signal), "UP") {
			return KindPerpetual, "Long"
		}
		return KindPerpetual, "Short"
	default:
		return KindNone, ""
	}
}
