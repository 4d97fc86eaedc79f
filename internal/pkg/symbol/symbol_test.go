package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USDT"}, Parse("btc/usdt"))
	assert.Equal(t, Symbol{Base: "ETH", Quote: "USDT"}, Parse("ETHUSDT"))
	assert.Equal(t, Symbol{Base: "1000PEPE", Quote: "USDT"}, Parse("1000PEPEUSDT"))
	assert.Equal(t, Symbol{Base: "SOL", Quote: "USDT"}, Parse("SOL/USDT:USDT"))
	assert.Equal(t, Symbol{}, Parse("BTC"))
}

func TestPairAndCoin(t *testing.T) {
	assert.Equal(t, "BTC/USDT", Pair("btc", ""))
	assert.Equal(t, "ETH/BUSD", Pair("ETH", "busd"))
	assert.Equal(t, "SOL/USDT", Pair("SOL/USDT", "BUSD"))
	assert.Equal(t, "DOGE", Coin("DOGE/USDT"))
	assert.Equal(t, "WIF", Coin("wif"))
}

func TestVenueConverters(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance.ToExchange("btc/usdt"))
	assert.Equal(t, "ETHUSDT", Binance.ToExchange("eth"))
	assert.Equal(t, "BTC/USDT", Binance.FromExchange("BTCUSDT"))
	assert.Equal(t, FormatBinance, Binance.Format())

	assert.Equal(t, "BTC_USDT", Gate.ToExchange("BTC/USDT"))
	assert.Equal(t, "DOGE_USDT", Gate.ToExchange("doge"))
	assert.Equal(t, "", Gate.ToExchange(""))
	assert.Equal(t, "1000PEPE/USDT", Gate.FromExchange("1000pepe_usdt"))
	assert.Equal(t, FormatGate, Gate.Format())
}
