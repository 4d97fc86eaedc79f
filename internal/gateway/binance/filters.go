package binance

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// lotSizes caches LOT_SIZE step sizes by exchange symbol.
type lotSizes struct {
	mu    sync.RWMutex
	steps map[string]decimal.Decimal
}

func newLotSizes() *lotSizes {
	return &lotSizes{steps: make(map[string]decimal.Decimal)}
}

func (l *lotSizes) get(sym string) (decimal.Decimal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	step, ok := l.steps[sym]
	return step, ok
}

func (l *lotSizes) put(sym, step string) {
	d, err := decimal.NewFromString(strings.TrimSpace(step))
	if err != nil || !d.IsPositive() {
		return
	}
	l.mu.Lock()
	l.steps[sym] = d
	l.mu.Unlock()
}

// formatQuantity rounds amount down to the step and renders it without
// exponent, which is what the order endpoint accepts.
func formatQuantity(amount float64, step decimal.Decimal) (string, error) {
	q := decimal.NewFromFloat(amount)
	if step.IsPositive() {
		q = q.Div(step).Floor().Mul(step)
	} else {
		q = q.Truncate(8)
	}
	if !q.IsPositive() {
		return "", fmt.Errorf("amount %v is below the lot step %s", amount, step)
	}
	return q.String(), nil
}

func formatPrice(price float64) string {
	return decimal.NewFromFloat(price).Truncate(8).String()
}
