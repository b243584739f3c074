package market

import (
	"regexp"
	"strings"
	"time"

	"marketgateway/internal/apperr"
)

const defaultLookbackDays = 365

// lookbackDays maps a period to its window in days.
var lookbackDays = map[string]int{
	"1d":  1,
	"5d":  5,
	"1mo": 30,
	"3mo": 90,
	"6mo": 180,
	"1y":  365,
	"2y":  730,
	"5y":  1825,
	"10y": 3650,
	"max": 3650,
}

var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
	"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

const defaultInterval = "1d"

// LookbackDays returns the window for period relative to now. "ytd" counts
// days since Jan 1 of now's year; unknown periods fall back to 365.
func LookbackDays(period string, now time.Time) int {
	p := strings.ToLower(strings.TrimSpace(period))
	if p == "ytd" {
		jan1 := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		if d := int(now.Sub(jan1).Hours() / 24); d > 0 {
			return d
		}
		return 1
	}
	if d, ok := lookbackDays[p]; ok {
		return d
	}
	return defaultLookbackDays
}

// NormalizeInterval returns interval when Yahoo supports it, else "1d".
func NormalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	if validIntervals[i] {
		return i
	}
	return defaultInterval
}

var symbolPattern = regexp.MustCompile(`^\^?[A-Z0-9.\-]{1,10}$`)

// NormalizeSymbol upper-cases and validates a ticker.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", apperr.Validation("invalid symbol %q", symbol)
	}
	return s, nil
}
