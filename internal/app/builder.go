package app

import (
	"context"
	"fmt"
	"time"

	"tradepilot/internal/alert"
	"tradepilot/internal/classifier"
	"tradepilot/internal/config"
	"tradepilot/internal/gateway"
	"tradepilot/internal/gateway/exchange"
	"tradepilot/internal/gateway/notifier"
	"tradepilot/internal/gateway/provider"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/retry"
	"tradepilot/internal/signal"
	"tradepilot/internal/store"
	"tradepilot/internal/store/gormstore"
	"tradepilot/internal/trader"
	livehttp "tradepilot/internal/transport/http/live"
)

// Builder 按配置组装各组件；每个组件持有独立的存储连接。
// 各构造函数可替换，便于测试。
type Builder struct {
	cfg *config.Config

	openStoreFn  func(context.Context, config.DatabaseConfig) (store.PersistentStore, error)
	sourceFn     func(*config.Config) (market.Source, error)
	exchangeFn   func(*config.Config, market.Source) (*exchange.Client, error)
	classifierFn func(config.ModelConfig) (classifier.Classifier, func() error, error)
	notifierFn   func(config.NotifyConfig) notifier.TextNotifier
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg:          cfg,
		openStoreFn:  openStore,
		sourceFn:     gateway.NewSourceFromConfig,
		exchangeFn:   gateway.NewExchangeClient,
		classifierFn: loadClassifier,
		notifierFn:   newNotifier,
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.PersistentStore, error) {
	st, err := gormstore.Open(ctx, gormstore.Options{
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
		Connect: retry.Policy{
			Name:        "store.connect",
			MaxAttempts: cfg.ConnectAttempts,
			Base:        time.Duration(cfg.BackoffBaseSeconds) * time.Second,
			Cap:         time.Duration(cfg.BackoffCapSeconds) * time.Second,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func loadClassifier(cfg config.ModelConfig) (classifier.Classifier, func() error, error) {
	features := cfg.FeatureCount
	if features <= 0 {
		features = signal.FeatureCount
	}
	m, err := classifier.Load(classifier.Options{
		Path:         cfg.Path,
		BackupPath:   cfg.BackupPath,
		RuntimePath:  cfg.RuntimePath,
		InputName:    cfg.InputName,
		OutputName:   cfg.OutputName,
		FeatureCount: features,
		OutputSize:   cfg.OutputSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, m.Close, nil
}

func newNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		logger.Warnf("telegram disabled; alerts will be dropped")
		return notifier.Discard{}
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func (b *Builder) commentary() *provider.Generator {
	c := b.cfg.Commentary
	timeout := time.Duration(c.TimeoutSeconds) * time.Second
	client := &provider.OpenAIChatClient{
		BaseURL:     c.APIURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Temperature: c.Temperature,
		Timeout:     timeout,
	}
	enabled := c.Enabled
	if enabled && c.APIKey == "" {
		logger.Warnf("commentary enabled without api key (set %s); commentary disabled", config.EnvName("commentary.api_key"))
		enabled = false
	}
	return provider.NewGenerator(enabled, client, timeout)
}

// buildTraders 为每个交易对构建独立的编排器，各自拥有交易所客户端与存储连接。
// 返回的编排器在 Run 退出时自行释放资源。
func (b *Builder) buildTraders(ctx context.Context, clf classifier.Classifier) ([]*trader.Orchestrator, error) {
	tc := b.cfg.Trading
	src, err := b.sourceFn(b.cfg)
	if err != nil {
		return nil, err
	}
	engine := signal.NewEngine(clf)
	var out []*trader.Orchestrator
	closeAll := func() {
		for _, o := range out {
			_ = o.Close()
		}
	}
	for _, sym := range tc.Symbols {
		exch, err := b.exchangeFn(b.cfg, src)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("exchange for %s: %w", sym, err)
		}
		st, err := b.openStoreFn(ctx, b.cfg.Database)
		if err != nil {
			_ = exch.Close()
			closeAll()
			return nil, fmt.Errorf("store for %s: %w", sym, err)
		}
		o, err := trader.New(trader.Options{
			Symbol:            sym,
			Timeframe:         tc.Timeframe,
			Amount:            tc.Amount,
			OrderType:         exchange.OrderType(tc.OrderType),
			Lookback:          tc.LookbackCandles,
			RetryDelay:        tc.RetryDelay(),
			ErrorBackoff:      tc.ErrorBackoff(),
			RecordPredictions: tc.RecordPredictions,
		}, src, engine, exch, st)
		if err != nil {
			_ = exch.Close()
			_ = st.Close()
			closeAll()
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (b *Builder) taxonomy() *alert.Taxonomy {
	return alert.NewTaxonomy(b.cfg.Alerts.Prediction, b.cfg.Alerts.Perpetual)
}

// buildDispatcher returns the dispatcher and the store handle it owns.
func (b *Builder) buildDispatcher(ctx context.Context, commentary alert.Commentator, notify notifier.TextNotifier) (*alert.Dispatcher, store.PersistentStore, error) {
	st, err := b.openStoreFn(ctx, b.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("alert store: %w", err)
	}
	d := alert.NewDispatcher(
		alert.Options{CommentaryThreshold: b.cfg.Alerts.CommentaryThreshold},
		alert.Flag{Path: b.cfg.Alerts.FlagPath},
		st, b.taxonomy(), commentary, notify,
	)
	return d, st, nil
}

func (b *Builder) buildHTTP(ctx context.Context, commentary alert.Commentator, notify notifier.TextNotifier) (*livehttp.Server, store.PersistentStore, error) {
	st, err := b.openStoreFn(ctx, b.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("http store: %w", err)
	}
	srv, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:    b.cfg.App.HTTPAddr,
		Alerts:  &alertControl{flag: alert.Flag{Path: b.cfg.Alerts.FlagPath}, commentary: commentary, notify: notify},
		Signals: livehttp.NewStoreSignals(st),
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return srv, st, nil
}

// alertControl backs the HTTP alert toggle.
type alertControl struct {
	flag       alert.Flag
	commentary alert.Commentator
	notify     notifier.TextNotifier
}

func (a *alertControl) Enabled() bool  { return a.flag.Enabled() }
func (a *alertControl) Enable() error  { return a.flag.Enable() }
func (a *alertControl) Disable() error { return a.flag.Disable() }
func (a *alertControl) SendTest(ctx context.Context) error {
	return alert.SendTestAlert(ctx, a.commentary, a.notify)
}
