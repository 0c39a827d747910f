package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeframe is wrapped by ParseTimeframe for anything outside <n>[mhdw].
var ErrInvalidTimeframe = errors.New("invalid timeframe")

var timeframePattern = regexp.MustCompile(`^([0-9]+)([mhdw])$`)

var timeframeUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseTimeframe turns a candle timeframe such as "5m", "4h", "1d" or "1w"
// into the candle length. Input is trimmed and lower-cased first.
func ParseTimeframe(tf string) (time.Duration, error) {
	norm := strings.ToLower(strings.TrimSpace(tf))
	m := timeframePattern.FindStringSubmatch(norm)
	if m == nil {
		return 0, fmt.Errorf("%w %q (expected e.g. 5m, 1h, 1d)", ErrInvalidTimeframe, tf)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %q: count must be > 0", ErrInvalidTimeframe, tf)
	}
	return time.Duration(n) * timeframeUnits[m[2]], nil
}
