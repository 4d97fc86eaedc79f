package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"tradepilot/internal/market"
	"tradepilot/internal/pkg/symbol"
)

// PaperVenue fills market orders at the last closed candle of the source.
// Balances live in memory and are lost on restart.
type PaperVenue struct {
	source    market.Source
	timeframe string
	quote     string

	mu       sync.Mutex
	balances map[string]float64
	seq      int
	seen     map[string]OrderConfirmation
	nowFn    func() time.Time
}

func NewPaperVenue(source market.Source, timeframe, quote string, quoteBalance float64) *PaperVenue {
	if timeframe == "" {
		timeframe = "1m"
	}
	if quote == "" {
		quote = "USDT"
	}
	return &PaperVenue{
		source:    source,
		timeframe: timeframe,
		quote:     quote,
		balances:  map[string]float64{quote: quoteBalance},
		seen:      make(map[string]OrderConfirmation),
		nowFn:     time.Now,
	}
}

func (p *PaperVenue) Name() string { return "paper" }

func (p *PaperVenue) FetchBalance(_ context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[asset], nil
}

func (p *PaperVenue) lastPrice(ctx context.Context, sym string) (float64, error) {
	if p.source == nil {
		return 0, Fatal(p.Name(), "price", errors.New("no market source configured"))
	}
	candles, err := p.source.FetchHistory(ctx, sym, p.timeframe, 1)
	if err != nil {
		return 0, Classify(p.Name(), "price", err)
	}
	if len(candles) == 0 {
		return 0, NewError(KindExchange, p.Name(), "price", fmt.Errorf("no price for %s", sym))
	}
	return candles[len(candles)-1].Close, nil
}

func (p *PaperVenue) CreateOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error) {
	if req.Amount <= 0 {
		return OrderConfirmation{}, Fatal(p.Name(), "create_order", fmt.Errorf("invalid amount %v", req.Amount))
	}
	p.mu.Lock()
	if prev, ok := p.seen[req.ClientID]; ok && req.ClientID != "" {
		p.mu.Unlock()
		return prev, nil
	}
	p.mu.Unlock()

	price := req.Price
	if req.Type == OrderTypeMarket || price <= 0 {
		px, err := p.lastPrice(ctx, req.Symbol)
		if err != nil {
			return OrderConfirmation{}, err
		}
		price = px
	}
	base, quote := symbol.SplitPair(req.Symbol, p.quote)

	p.mu.Lock()
	defer p.mu.Unlock()
	cost := price * req.Amount
	switch req.Side {
	case SideBuy:
		if p.balances[quote] < cost {
			return OrderConfirmation{}, Fatal(p.Name(), "create_order",
				fmt.Errorf("insufficient %s balance: have %.4f need %.4f", quote, p.balances[quote], cost))
		}
		p.balances[quote] -= cost
		p.balances[base] += req.Amount
	case SideSell:
		if p.balances[base] < req.Amount {
			return OrderConfirmation{}, Fatal(p.Name(), "create_order",
				fmt.Errorf("insufficient %s balance: have %.8f need %.8f", base, p.balances[base], req.Amount))
		}
		p.balances[base] -= req.Amount
		p.balances[quote] += cost
	default:
		return OrderConfirmation{}, Fatal(p.Name(), "create_order", fmt.Errorf("unknown side %q", req.Side))
	}
	p.seq++
	conf := OrderConfirmation{
		ID:       "paper-" + strconv.Itoa(p.seq),
		ClientID: req.ClientID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    price,
		Amount:   req.Amount,
		Status:   "FILLED",
		FilledAt: p.nowFn().UTC(),
		Raw: map[string]any{
			"id":            "paper-" + strconv.Itoa(p.seq),
			"clientOrderId": req.ClientID,
			"symbol":        req.Symbol,
			"side":          string(req.Side),
			"type":          string(req.Type),
			"price":         price,
			"amount":        req.Amount,
			"status":        "FILLED",
		},
	}
	if req.ClientID != "" {
		p.seen[req.ClientID] = conf
	}
	return conf, nil
}

// HasOpenPosition treats a base balance of at least minAmount as a long.
func (p *PaperVenue) HasOpenPosition(_ context.Context, sym string, minAmount float64) (bool, error) {
	base, _ := symbol.SplitPair(sym, p.quote)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[base] >= minAmount && minAmount > 0, nil
}

func (p *PaperVenue) Close() error { return nil }
