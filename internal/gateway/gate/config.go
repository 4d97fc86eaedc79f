package gate

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL  string
	HTTPTimeout  time.Duration
	RESTProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = defaultGateREST
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}
