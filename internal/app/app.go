package app

import (
	"context"
	"fmt"

	"tradepilot/internal/alert"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/scheduler"
	"tradepilot/internal/store"
	"tradepilot/internal/trader"
	livehttp "tradepilot/internal/transport/http/live"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Mode selects which long-running loops a process hosts.
type Mode string

const (
	ModeTrade  Mode = "trade"
	ModeAlerts Mode = "alerts"
	// ModeServe runs the trade loops, the dispatcher and the HTTP API together.
	ModeServe Mode = "serve"
)

// App 负责应用级编排：加载配置→初始化依赖→启动交易循环与提醒推送。
type App struct {
	cfg        *config.Config
	configPath string
	mode       Mode

	traders    []*trader.Orchestrator
	dispatcher *alert.Dispatcher
	http       *livehttp.Server

	// 由 App 负责关闭的资源；编排器在 Run 退出时自行关闭
	stores     []store.PersistentStore
	closeModel func() error

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。启动期错误（模型缺失、数据库连不上）直接返回。
func NewApp(ctx context.Context, cfg *config.Config, configPath string, mode Mode) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewBuilder(cfg).Build(ctx, configPath, mode)
}

// Build wires the components the mode needs. On error every handle opened
// so far is closed.
func (b *Builder) Build(ctx context.Context, configPath string, mode Mode) (*App, error) {
	switch mode {
	case ModeTrade, ModeAlerts, ModeServe:
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	a := &App{cfg: b.cfg, configPath: configPath, mode: mode}
	if err := b.wire(ctx, a); err != nil {
		for _, o := range a.traders {
			_ = o.Close()
		}
		_ = a.Close()
		return nil, err
	}
	if len(a.traders) == 0 && a.dispatcher == nil && a.http == nil {
		_ = a.Close()
		return nil, fmt.Errorf("mode %s has nothing to run (trading.enabled=%v alerts.enabled=%v)",
			mode, b.cfg.Trading.Enabled, b.cfg.Alerts.Enabled)
	}
	a.Summary = newStartupSummary(b.cfg, mode)
	return a, nil
}

func (b *Builder) wire(ctx context.Context, a *App) error {
	withTrade := a.mode == ModeTrade || a.mode == ModeServe
	withAlerts := a.mode == ModeAlerts || a.mode == ModeServe

	if withTrade && b.cfg.Trading.Enabled {
		clf, closeModel, err := b.classifierFn(b.cfg.Model)
		if err != nil {
			return fmt.Errorf("load classifier: %w", err)
		}
		a.closeModel = closeModel
		if a.traders, err = b.buildTraders(ctx, clf); err != nil {
			return err
		}
	}
	if !withAlerts {
		return nil
	}
	commentary := b.commentary()
	notify := b.notifierFn(b.cfg.Notify)
	if b.cfg.Alerts.Enabled {
		d, st, err := b.buildDispatcher(ctx, commentary, notify)
		if err != nil {
			return err
		}
		a.dispatcher = d
		a.stores = append(a.stores, st)
	}
	if a.mode == ModeServe {
		srv, st, err := b.buildHTTP(ctx, commentary, notify)
		if err != nil {
			return err
		}
		a.http = srv
		a.stores = append(a.stores, st)
	}
	return nil
}

// Run 启动所有循环，直到 ctx 取消或某个服务出现致命错误。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.configPath != "" {
		if err := config.Watch(ctx, a.configPath, func(cfg *config.Config) {
			logger.SetLevel(cfg.App.LogLevel)
			logger.Infof("log level now %s", logger.Level())
		}); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, o := range a.traders {
		o := o
		group.Go(func() error {
			return o.Run(ctx)
		})
	}
	if a.dispatcher != nil {
		sched := scheduler.NewIntervalScheduler("alerts", a.cfg.Alerts.Interval(), true)
		group.Go(func() error {
			return sched.Run(ctx, a.dispatcher.RunCycle)
		})
	}
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	err := group.Wait()
	logger.Infof("tradepilot stopped (mode=%s)", a.mode)
	return err
}

// Close releases the handles owned by the app. Safe to call more than once.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var err error
	for _, st := range a.stores {
		err = multierr.Append(err, st.Close())
	}
	a.stores = nil
	if a.closeModel != nil {
		err = multierr.Append(err, a.closeModel())
		a.closeModel = nil
	}
	return err
}

// SendTestAlert pushes the fixed sample alert without touching the store.
func SendTestAlert(ctx context.Context, cfg *config.Config) error {
	b := NewBuilder(cfg)
	return alert.SendTestAlert(ctx, b.commentary(), b.notifierFn(cfg.Notify))
}
