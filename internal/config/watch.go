package config

import (
	"context"
	"path/filepath"

	"tradepilot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads the config file whenever it changes on disk and hands the
// freshly validated config to onChange. A reload that fails validation is
// logged and the previous config stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if ctx.Err() != nil {
			return
		}
		cfg, err := Load(abs)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("config reloaded (%s)", evt.Name)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
