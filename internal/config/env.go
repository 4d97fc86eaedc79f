package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "TRADEPILOT_"

// secretKeys 允许通过环境变量覆盖的敏感配置项。
var secretKeys = []string{
	"exchange.api_key",
	"exchange.api_secret",
	"database.dsn",
	"notify.telegram.bot_token",
	"notify.telegram.chat_id",
	"commentary.api_key",
}

// EnvName maps a dotted config key to its environment variable,
// e.g. exchange.api_key -> TRADEPILOT_EXCHANGE_API_KEY.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func applyEnvOverrides(v *viper.Viper) {
	for _, key := range secretKeys {
		if val, ok := os.LookupEnv(EnvName(key)); ok && strings.TrimSpace(val) != "" {
			v.Set(key, strings.TrimSpace(val))
		}
	}
}
