package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/gateway/exchange"
	"tradepilot/internal/logger"
	symbolpkg "tradepilot/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

// FuturesVenue trades USDT-margined perpetuals. Only long exposure is
// opened; a sell is sent reduce-only so it closes the long.
type FuturesVenue struct {
	client *futures.Client
	quote  string
	lots   *lotSizes
}

func NewFuturesVenue(cfg Config, quote string) (*FuturesVenue, error) {
	final := cfg.withDefaults()
	if final.APIKey == "" || final.APISecret == "" {
		return nil, exchange.Fatal("binance-futures", "init", fmt.Errorf("api key and secret are required"))
	}
	hc, err := final.httpClient()
	if err != nil {
		return nil, err
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.futuresURL()
	client.HTTPClient = hc
	return &FuturesVenue{client: client, quote: strings.ToUpper(quote), lots: newLotSizes()}, nil
}

func (v *FuturesVenue) Name() string { return "binance-futures" }

func (v *FuturesVenue) FetchBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := v.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, classify(v.Name(), "fetch_balance", err)
	}
	for _, b := range balances {
		if b != nil && strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, nil
}

func (v *FuturesVenue) stepSize(ctx context.Context, sym string) error {
	if _, ok := v.lots.get(sym); ok {
		return nil
	}
	info, err := v.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return classify(v.Name(), "exchange_info", err)
	}
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if f := s.LotSizeFilter(); f != nil {
			v.lots.put(s.Symbol, f.StepSize)
		}
	}
	return nil
}

func (v *FuturesVenue) CreateOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderConfirmation, error) {
	sym := symbolpkg.Binance.ToExchange(symbolpkg.Pair(req.Symbol, v.quote))
	if err := v.stepSize(ctx, sym); err != nil {
		return exchange.OrderConfirmation{}, err
	}
	step, _ := v.lots.get(sym)
	qty, err := formatQuantity(req.Amount, step)
	if err != nil {
		return exchange.OrderConfirmation{}, exchange.Fatal(v.Name(), "create_order", err)
	}
	side := futures.SideTypeBuy
	if req.Side == exchange.SideSell {
		side = futures.SideTypeSell
	}
	svc := v.client.NewCreateOrderService().
		Symbol(sym).
		Side(side).
		Quantity(qty).
		NewClientOrderID(req.ClientID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.Side == exchange.SideSell {
		svc = svc.ReduceOnly(true)
	}
	if req.Type == exchange.OrderTypeLimit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(req.Price))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		if apiCode(err) == codeDuplicateOrder && req.ClientID != "" {
			logger.Warnf("binance-futures reports duplicate client id %s, looking up the accepted order", req.ClientID)
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
		Price:    avgPrice(resp.CumQuote, resp.ExecutedQuantity, resp.AvgPrice),
		Status:   string(resp.Status),
		FilledAt: time.UnixMilli(resp.UpdateTime).UTC(),
		Raw:      toRaw(resp),
	}
	if conf.Amount == 0 {
		conf.Amount = parseFloat(resp.OrigQuantity)
	}
	return conf, nil
}

func (v *FuturesVenue) lookupOrder(ctx context.Context, sym string, req exchange.OrderRequest) (exchange.OrderConfirmation, error) {
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
		Price:    parseFloat(order.AvgPrice),
		Status:   string(order.Status),
		FilledAt: time.UnixMilli(order.UpdateTime).UTC(),
		Raw:      toRaw(order),
	}, nil
}

func (v *FuturesVenue) HasOpenPosition(ctx context.Context, sym string, minAmount float64) (bool, error) {
	bsym := symbolpkg.Binance.ToExchange(symbolpkg.Pair(sym, v.quote))
	risks, err := v.client.NewGetPositionRiskService().Symbol(bsym).Do(ctx)
	if err != nil {
		return false, classify(v.Name(), "position_risk", err)
	}
	for _, r := range risks {
		if r == nil || !strings.EqualFold(r.Symbol, bsym) {
			continue
		}
		if amt := parseFloat(r.PositionAmt); amt > 0 && amt >= minAmount {
			return true, nil
		}
	}
	return false, nil
}

func (v *FuturesVenue) Close() error {
	v.client.HTTPClient.CloseIdleConnections()
	return nil
}
