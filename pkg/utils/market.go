package utils

import (
	"time"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

// IndiaLocation is the timezone for Indian markets. IST has no DST, so a
// fixed zone is exact and avoids depending on the host tz database.
var IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)

const (
	preOpenStart  = 9*60 + 0
	marketOpen    = 9*60 + 15
	misWarnStart  = 15*60 + 0
	misSquareOff  = 15*60 + 15
	marketClose   = 15*60 + 30
	sessionExpiry = 6 // Kite access tokens lapse at 06:00 IST
)

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// GetMarketStatus returns the NSE/BSE session state at now.
func GetMarketStatus(now time.Time) models.MarketStatus {
	now = now.In(IndiaLocation)

	if isWeekend(now) {
		return models.MarketClosed
	}

	m := now.Hour()*60 + now.Minute()
	switch {
	case m >= preOpenStart && m < marketOpen:
		return models.MarketPreOpen
	case m >= misWarnStart && m < misSquareOff:
		return models.MarketMISSquareOffWarn
	case m >= marketOpen && m < marketClose:
		return models.MarketOpen
	}
	return models.MarketClosed
}

// IsMarketOpen returns true if the market is open at now.
func IsMarketOpen(now time.Time) bool {
	status := GetMarketStatus(now)
	return status == models.MarketOpen || status == models.MarketMISSquareOffWarn
}

// GetNextMarketOpen returns the next market opening time after now.
func GetNextMarketOpen(now time.Time) time.Time {
	now = now.In(IndiaLocation)

	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for isWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// GetMarketClose returns the close of the trading day containing now.
func GetMarketClose(now time.Time) time.Time {
	now = now.In(IndiaLocation)
	return time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, IndiaLocation)
}

// SessionExpiry returns when a Kite access token issued at issuedAt stops
// being accepted: the first 06:00 IST strictly after issuance.
func SessionExpiry(issuedAt time.Time) time.Time {
	t := issuedAt.In(IndiaLocation)
	exp := time.Date(t.Year(), t.Month(), t.Day(), sessionExpiry, 0, 0, 0, IndiaLocation)
	if !t.Before(exp) {
		exp = exp.AddDate(0, 0, 1)
	}
	return exp
}
