package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/gateway/exchange"
	"tradepilot/internal/logger"
	symbolpkg "tradepilot/internal/pkg/symbol"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/goccy/go-json"
)

// SpotVenue places orders on the Binance spot market.
type SpotVenue struct {
	client *gobinance.Client
	quote  string
	lots   *lotSizes
}

func NewSpotVenue(cfg Config, quote string) (*SpotVenue, error) {
	final := cfg.withDefaults()
	if final.APIKey == "" || final.APISecret == "" {
		return nil, exchange.Fatal("binance", "init", fmt.Errorf("api key and secret are required"))
	}
	hc, err := final.httpClient()
	if err != nil {
		return nil, err
	}
	client := gobinance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.spotURL()
	client.HTTPClient = hc
	return &SpotVenue{client: client, quote: strings.ToUpper(quote), lots: newLotSizes()}, nil
}

func (v *SpotVenue) Name() string { return "binance" }

func (v *SpotVenue) FetchBalance(ctx context.Context, asset string) (float64, error) {
	acct, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, classify(v.Name(), "fetch_balance", err)
	}
	for _, b := range acct.Balances {
		if strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.Free), nil
		}
	}
	return 0, nil
}

func (v *SpotVenue) stepSize(ctx context.Context, sym string) error {
	if _, ok := v.lots.get(sym); ok {
		return nil
	}
	info, err := v.client.NewExchangeInfoService().Symbol(sym).Do(ctx)
	if err != nil {
		return classify(v.Name(), "exchange_info", err)
	}
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != sym {
			continue
		}
		if f := s.LotSizeFilter(); f != nil {
			v.lots.put(sym, f.StepSize)
		}
	}
	return nil
}

func (v *SpotVenue) CreateOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderConfirmation, error) {
	sym := symbolpkg.Binance.ToExchange(symbolpkg.Pair(req.Symbol, v.quote))
	if err := v.stepSize(ctx, sym); err != nil {
		return exchange.OrderConfirmation{}, err
	}
	step, _ := v.lots.get(sym)
	qty, err := formatQuantity(req.Amount, step)
	if err != nil {
		return exchange.OrderConfirmation{}, exchange.Fatal(v.Name(), "create_order", err)
	}
	side := gobinance.SideTypeBuy
	if req.Side == exchange.SideSell {
		side = gobinance.SideTypeSell
	}
	svc := v.client.NewCreateOrderService().
		Symbol(sym).
		Side(side).
		Quantity(qty).
		NewClientOrderID(req.ClientID).
		NewOrderRespType(gobinance.NewOrderRespTypeFULL)
	if req.Type == exchange.OrderTypeLimit {
		svc = svc.Type(gobinance.OrderTypeLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			Price(formatPrice(req.Price))
	} else {
		svc = svc.Type(gobinance.OrderTypeMarket)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		// 重试时 client id 相同，重复下单说明上一次其实已成交
		if apiCode(err) == codeDuplicateOrder && req.ClientID != "" {
			logger.Warnf("binance reports duplicate client id %s, looking up the accepted order", req.ClientID)
			return v.lookupOrder(ctx, sym, req)
		}
		return exchange.OrderConfirmation{}, classify(v.Name(), "create_order", err)
	}
	conf := exchange.OrderConfirmation{
		ID:       fmt.Sprintf("%d", resp.OrderID),
		ClientID: resp.ClientOrderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Amount:   parseFloat(resp.ExecutedQuantity),
		Price:    avgPrice(resp.CummulativeQuoteQuantity, resp.ExecutedQuantity, resp.Price),
		Status:   string(resp.Status),
		FilledAt: time.UnixMilli(resp.TransactTime).UTC(),
		Raw:      toRaw(resp),
	}
	if conf.Amount == 0 {
		conf.Amount = parseFloat(resp.OrigQuantity)
	}
	return conf, nil
}

func (v *SpotVenue) lookupOrder(ctx context.Context, sym string, req exchange.OrderRequest) (exchange.OrderConfirmation, error) {
	order, err := v.client.NewGetOrderService().Symbol(sym).OrigClientOrderID(req.ClientID).Do(ctx)
	if err != nil {
		return exchange.OrderConfirmation{}, classify(v.Name(), "get_order", err)
	}
	return exchange.OrderConfirmation{
		ID:       fmt.Sprintf("%d", order.OrderID),
		ClientID: order.ClientOrderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Amount:   parseFloat(order.ExecutedQuantity),
		Price:    avgPrice(order.CummulativeQuoteQuantity, order.ExecutedQuantity, order.Price),
		Status:   string(order.Status),
		FilledAt: time.UnixMilli(order.UpdateTime).UTC(),
		Raw:      toRaw(order),
	}, nil
}

// HasOpenPosition treats a free base balance of at least minAmount as an
// open long; spot has no position endpoint.
func (v *SpotVenue) HasOpenPosition(ctx context.Context, sym string, minAmount float64) (bool, error) {
	base, _ := symbolpkg.SplitPair(sym, v.quote)
	bal, err := v.FetchBalance(ctx, base)
	if err != nil {
		return false, err
	}
	return minAmount > 0 && bal >= minAmount, nil
}

func (v *SpotVenue) Close() error {
	v.client.HTTPClient.CloseIdleConnections()
	return nil
}

func avgPrice(quoteQty, execQty, fallback string) float64 {
	q, e := parseFloat(quoteQty), parseFloat(execQty)
	if q > 0 && e > 0 {
		return q / e
	}
	return parseFloat(fallback)
}

func toRaw(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
