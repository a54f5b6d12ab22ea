// Package models provides the canonical market-data entities shared by every provider.
package models

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO" // F&O
	CDS Exchange = "CDS" // Currency
	MCX Exchange = "MCX" // Commodity
	BFO Exchange = "BFO"
	MF  Exchange = "MF"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen             MarketStatus = "OPEN"
	MarketPreOpen          MarketStatus = "PRE_OPEN"
	MarketClosed           MarketStatus = "CLOSED"
	MarketMISSquareOffWarn MarketStatus = "MIS_SQUAREOFF_WARNING"
)

// Interval is a historical candle interval.
type Interval string

const (
	IntervalMinute   Interval = "minute"
	Interval3Minute  Interval = "3minute"
	Interval5Minute  Interval = "5minute"
	Interval10Minute Interval = "10minute"
	Interval15Minute Interval = "15minute"
	Interval30Minute Interval = "30minute"
	Interval60Minute Interval = "60minute"
	IntervalDay      Interval = "day"
)

// Valid reports whether i is a known interval.
func (i Interval) Valid() bool {
	switch i {
	case IntervalMinute, Interval3Minute, Interval5Minute, Interval10Minute,
		Interval15Minute, Interval30Minute, Interval60Minute, IntervalDay:
		return true
	}
	return false
}

// InstrumentRef identifies a security either by exchange and trading symbol
// or by numeric instrument token. An empty Exchange with a Symbol denotes a
// global ticker such as "AAPL".
type InstrumentRef struct {
	Exchange      Exchange
	TradingSymbol string
	Token         uint32
}

// ParseInstrument parses the key forms accepted at the call surface:
// "NSE:RELIANCE", a numeric token "738561", a plain ticker "AAPL", or a
// suffixed ticker "TATAMOTORS.NS" / "RELIANCE.BO".
func ParseInstrument(s string) (InstrumentRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return InstrumentRef{}, apperrors.NewValidationError("instrument", s, "empty instrument key")
	}

	if exch, sym, ok := strings.Cut(s, ":"); ok {
		exch = strings.ToUpper(strings.TrimSpace(exch))
		sym = strings.TrimSpace(sym)
		if exch == "" || sym == "" {
			return InstrumentRef{}, apperrors.NewValidationError("instrument", s, "expected EXCHANGE:SYMBOL")
		}
		return InstrumentRef{Exchange: Exchange(exch), TradingSymbol: strings.ToUpper(sym)}, nil
	}

	if tok, err := strconv.ParseUint(s, 10, 32); err == nil {
		if tok == 0 {
			return InstrumentRef{}, apperrors.NewValidationError("instrument", s, "token must be positive")
		}
		return InstrumentRef{Token: uint32(tok)}, nil
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, ".NS") && len(upper) > 3:
		return InstrumentRef{Exchange: NSE, TradingSymbol: strings.TrimSuffix(upper, ".NS")}, nil
	case strings.HasSuffix(upper, ".BO") && len(upper) > 3:
		return InstrumentRef{Exchange: BSE, TradingSymbol: strings.TrimSuffix(upper, ".BO")}, nil
	}
	return InstrumentRef{TradingSymbol: upper}, nil
}

// MustParseInstrument is like ParseInstrument but panics on error.
func MustParseInstrument(s string) InstrumentRef {
	ref, err := ParseInstrument(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// HasSymbol reports whether the reference carries an exchange symbol pair.
func (r InstrumentRef) HasSymbol() bool { return r.TradingSymbol != "" }

// Key renders the canonical key used to index quote maps.
func (r InstrumentRef) Key() string {
	switch {
	case r.Exchange != "" && r.TradingSymbol != "":
		return string(r.Exchange) + ":" + r.TradingSymbol
	case r.TradingSymbol != "":
		return r.TradingSymbol
	case r.Token != 0:
		return strconv.FormatUint(uint64(r.Token), 10)
	}
	return ""
}

func (r InstrumentRef) String() string { return r.Key() }

// OHLC is an open/high/low/close tuple for a period.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Quote is a full market quote. Fields a provider returns beyond the
// canonical set are kept in Extensions.
type Quote struct {
	Instrument   InstrumentRef  `json:"instrument"`
	LastPrice    float64        `json:"last_price"`
	LastQuantity int64          `json:"last_quantity"`
	Volume       int64          `json:"volume"`
	BuyQuantity  int64          `json:"buy_quantity"`
	SellQuantity int64          `json:"sell_quantity"`
	OHLC         OHLC           `json:"ohlc"`
	NetChange    float64        `json:"net_change"`
	Timestamp    time.Time      `json:"timestamp"`
	Extensions   map[string]any `json:"extensions,omitempty"`
}

// OHLCQuote is the reduced quote returned by the OHLC endpoint.
type OHLCQuote struct {
	Instrument InstrumentRef  `json:"instrument"`
	LastPrice  float64        `json:"last_price"`
	OHLC       OHLC           `json:"ohlc"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// LTPQuote carries only the last traded price.
type LTPQuote struct {
	Instrument InstrumentRef  `json:"instrument"`
	LastPrice  float64        `json:"last_price"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp    time.Time `json:"date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
	OpenInterest *int64    `json:"oi,omitempty"`
}

// Instrument is a row of the brokerage instrument master.
type Instrument struct {
	Token          uint32    `json:"instrument_token"`
	ExchangeToken  uint32    `json:"exchange_token"`
	TradingSymbol  string    `json:"tradingsymbol"`
	Name           string    `json:"name"`
	LastPrice      float64   `json:"last_price"`
	Expiry         time.Time `json:"expiry,omitempty"`
	Strike         float64   `json:"strike"`
	TickSize       float64   `json:"tick_size"`
	LotSize        int       `json:"lot_size"`
	InstrumentType string    `json:"instrument_type"`
	Segment        string    `json:"segment"`
	Exchange       Exchange  `json:"exchange"`
}

// Ref returns the instrument's reference with both forms populated.
func (i Instrument) Ref() InstrumentRef {
	return InstrumentRef{Exchange: i.Exchange, TradingSymbol: i.TradingSymbol, Token: i.Token}
}

// Profile is the authenticated user's account profile.
type Profile struct {
	UserID     string     `json:"user_id"`
	UserName   string     `json:"user_name"`
	Email      string     `json:"email"`
	Broker     string     `json:"broker"`
	Exchanges  []Exchange `json:"exchanges"`
	Products   []Product  `json:"products"`
	OrderTypes []string   `json:"order_types"`

	Extensions map[string]any `json:"extensions,omitempty"`
}

// Margins represents margin details keyed by segment ("equity", "commodity").
type Margins map[string]SegmentMargin

// SegmentMargin represents margin for a segment.
type SegmentMargin struct {
	Enabled    bool           `json:"enabled"`
	Net        float64        `json:"net"`
	Available  float64        `json:"available"`
	Used       float64        `json:"used"`
	Extensions map[string]any `json:"extensions,omitempty"`
}
