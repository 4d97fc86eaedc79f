package app

import (
	"fmt"
	"strings"

	"tradepilot/internal/config"
	"tradepilot/internal/logger"
)

// StartupSummary 是启动时打印的配置摘要（不含密钥）。
type StartupSummary struct {
	Mode     Mode
	Trading  TradingSummary
	Alerts   AlertsSummary
	Database string
	HTTPAddr string
}

type TradingSummary struct {
	Enabled   bool
	Venue     string
	Symbols   []string
	Timeframe string
	Amount    float64
	OrderType string
	Model     string
}

type AlertsSummary struct {
	Enabled    bool
	FlagPath   string
	Interval   string
	Threshold  float64
	Prediction config.TaxonomyConfig
	Perpetual  config.TaxonomyConfig
	Commentary bool
	TelegramOn bool
}

func newStartupSummary(cfg *config.Config, mode Mode) *StartupSummary {
	s := &StartupSummary{
		Mode:     mode,
		Database: cfg.Database.Driver,
		Trading: TradingSummary{
			Enabled:   cfg.Trading.Enabled,
			Venue:     cfg.Exchange.Venue,
			Symbols:   cfg.Trading.Symbols,
			Timeframe: cfg.Trading.Timeframe,
			Amount:    cfg.Trading.Amount,
			OrderType: cfg.Trading.OrderType,
			Model:     cfg.Model.Path,
		},
		Alerts: AlertsSummary{
			Enabled:    cfg.Alerts.Enabled,
			FlagPath:   cfg.Alerts.FlagPath,
			Interval:   cfg.Alerts.Interval().String(),
			Threshold:  cfg.Alerts.CommentaryThreshold,
			Prediction: cfg.Alerts.Prediction,
			Perpetual:  cfg.Alerts.Perpetual,
			Commentary: cfg.Commentary.Enabled,
			TelegramOn: cfg.Notify.Telegram.Enabled,
		},
	}
	if mode == ModeServe {
		s.HTTPAddr = cfg.App.HTTPAddr
	}
	return s
}

// Render 生成摘要文本。
func (s *StartupSummary) Render() string {
	var b strings.Builder
	line := strings.Repeat("=", 64)
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "启动配置摘要 (STARTUP SUMMARY) mode=%s\n", s.Mode)
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "数据库: %s\n", s.Database)
	if s.HTTPAddr != "" {
		fmt.Fprintf(&b, "HTTP: %s\n", s.HTTPAddr)
	}
	if s.Mode != ModeAlerts {
		b.WriteString("[交易 (TRADING)]\n")
		if !s.Trading.Enabled {
			b.WriteString("  (已关闭)\n")
		} else {
			fmt.Fprintf(&b, "  场所: %s\n", s.Trading.Venue)
			fmt.Fprintf(&b, "  交易对: %s\n", formatList(s.Trading.Symbols))
			fmt.Fprintf(&b, "  周期: %s  数量: %g  类型: %s\n", s.Trading.Timeframe, s.Trading.Amount, s.Trading.OrderType)
			fmt.Fprintf(&b, "  模型: %s\n", s.Trading.Model)
		}
	}
	if s.Mode != ModeTrade {
		b.WriteString("[提醒 (ALERTS)]\n")
		if !s.Alerts.Enabled {
			b.WriteString("  (已关闭)\n")
		} else {
			fmt.Fprintf(&b, "  开关文件: %s  周期: %s\n", s.Alerts.FlagPath, s.Alerts.Interval)
			fmt.Fprintf(&b, "  点评阈值: %.0f%%  点评: %v  Telegram: %v\n", s.Alerts.Threshold, s.Alerts.Commentary, s.Alerts.TelegramOn)
			fmt.Fprintf(&b, "  Prediction: %s @ %s\n", formatList(s.Alerts.Prediction.Symbols), formatList(s.Alerts.Prediction.Timeframes))
			fmt.Fprintf(&b, "  Perpetual: %s @ %s\n", formatList(s.Alerts.Perpetual.Symbols), formatList(s.Alerts.Perpetual.Timeframes))
		}
	}
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.Render())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
