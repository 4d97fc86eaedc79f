package binance

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	spotMainnet    = "https://api.binance.com"
	spotTestnet    = "https://testnet.binance.vision"
	futuresMainnet = "https://fapi.binance.com"
	futuresTestnet = "https://testnet.binancefuture.com"
)

type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the REST endpoint of the selected market.
	BaseURL     string
	HTTPTimeout time.Duration
	ProxyURL    string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.APISecret = strings.TrimSpace(out.APISecret)
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}

func (c Config) spotURL() string {
	switch {
	case c.BaseURL != "":
		return c.BaseURL
	case c.Testnet:
		return spotTestnet
	default:
		return spotMainnet
	}
}

func (c Config) futuresURL() string {
	switch {
	case c.BaseURL != "":
		return c.BaseURL
	case c.Testnet:
		return futuresTestnet
	default:
		return futuresMainnet
	}
}

func (c Config) httpClient() (*http.Client, error) {
	hc := &http.Client{Timeout: c.HTTPTimeout}
	if c.ProxyURL == "" {
		return hc, nil
	}
	proxyURL, err := url.Parse(c.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REST proxy url: %w", err)
	}
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok || baseTransport == nil {
		return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	hc.Transport = transport
	return hc, nil
}
