package binance

import (
	"errors"

	"tradepilot/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
)

// Binance error codes that are worth another attempt. Anything else coming
// back as an APIError is a rejection (bad key, filter, balance) and fatal.
var transientCodes = map[int64]exchange.ErrorKind{
	-1000: exchange.KindExchange, // UNKNOWN
	-1001: exchange.KindNetwork,  // DISCONNECTED
	-1003: exchange.KindExchange, // TOO_MANY_REQUESTS
	-1006: exchange.KindExchange, // UNEXPECTED_RESP
	-1007: exchange.KindTimeout,  // TIMEOUT
	-1008: exchange.KindExchange, // SERVER_BUSY
	-1015: exchange.KindExchange, // TOO_MANY_ORDERS
	-1016: exchange.KindExchange, // SERVICE_SHUTTING_DOWN
	-1021: exchange.KindExchange, // INVALID_TIMESTAMP
}

const codeDuplicateOrder int64 = -2010

func classify(venue, op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		kind, ok := transientCodes[apiErr.Code]
		if !ok {
			kind = exchange.KindFatal
		}
		xe := exchange.NewError(kind, venue, op, err)
		xe.Code = apiErr.Code
		return xe
	}
	return exchange.Classify(venue, op, err)
}

func apiCode(err error) int64 {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
