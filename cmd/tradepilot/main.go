package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradepilot/internal/app"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
)

const usage = `usage: tradepilot <command>

commands:
  trade       run one trading loop per configured symbol
  alerts      run the prediction alert dispatcher
  serve       run trading, alerts and the HTTP API in one process
  test-alert  send a sample alert and exit

config: $TRADEPILOT_CONFIG (default configs/config.yaml)`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]
	switch cmd {
	case "trade", "alerts", "serve", "test-alert":
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	cfgPath := os.Getenv("TRADEPILOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := logger.SetFileOutput(logger.FileOptions{
		Path:       cfg.App.LogPath,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，命令=%s）", cfg.App.Env, cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == "test-alert" {
		if err := app.SendTestAlert(ctx, cfg); err != nil {
			logger.Errorf("test alert failed: %v", err)
			os.Exit(1)
		}
		return
	}

	a, err := app.NewApp(ctx, cfg, cfgPath, app.Mode(cmd))
	if err != nil {
		logger.Errorf("初始化应用失败: %v", err)
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		logger.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}
