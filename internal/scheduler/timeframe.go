package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe parses "15m", "1h", "4h", "1d", "1w" into a duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	raw := strings.ToLower(strings.TrimSpace(tf))
	if len(raw) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	n, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	var unit time.Duration
	switch raw[len(raw)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	return time.Duration(n) * unit, nil
}
