// Package broker provides the provider adapters behind the market-data
// facade. Every adapter exposes the same operation set over its own wire
// dialect and returns canonical models.
package broker

import (
	"context"
	"time"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

// ProviderID names a provider adapter.
type ProviderID string

const (
	Zerodha ProviderID = "zerodha"
	Yahoo   ProviderID = "yahoo"
)

// Provider defines the operations a market-data provider offers.
// Operations a provider cannot serve fail with UnsupportedOperationError.
type Provider interface {
	ID() ProviderID

	// Instruments
	ResolveInstrument(ctx context.Context, ref models.InstrumentRef) (models.InstrumentRef, error)
	GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error)

	// Market Data
	GetQuote(ctx context.Context, refs []models.InstrumentRef) (map[string]models.Quote, error)
	GetOHLC(ctx context.Context, refs []models.InstrumentRef) (map[string]models.OHLCQuote, error)
	GetLTP(ctx context.Context, refs []models.InstrumentRef) (map[string]models.LTPQuote, error)
	GetHistorical(ctx context.Context, req HistoricalRequest) ([]models.Candle, error)

	// Portfolio & Account
	GetHoldings(ctx context.Context) ([]models.Holding, error)
	GetPositions(ctx context.Context) (models.Positions, error)
	GetProfile(ctx context.Context) (models.Profile, error)
	GetMargins(ctx context.Context, segment string) (models.Margins, error)

	// Orders
	PlaceOrder(ctx context.Context, spec models.OrderSpec) (models.OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, spec models.OrderSpec) (models.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (models.OrderResult, error)
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]models.Order, error)
	GetTrades(ctx context.Context) ([]models.Trade, error)
	GetOrderTrades(ctx context.Context, orderID string) ([]models.Trade, error)

	// GTT Orders
	PlaceGTT(ctx context.Context, spec models.GTTSpec) (int, error)
	ModifyGTT(ctx context.Context, triggerID int, spec models.GTTSpec) (int, error)
	DeleteGTT(ctx context.Context, triggerID int) (int, error)
	GetGTTs(ctx context.Context) ([]models.GTTTrigger, error)
	GetGTT(ctx context.Context, triggerID int) (models.GTTTrigger, error)

	// Mutual Funds
	PlaceMFOrder(ctx context.Context, spec models.MFOrderSpec) (string, error)
	CancelMFOrder(ctx context.Context, orderID string) (string, error)
	GetMFOrders(ctx context.Context) ([]models.MFOrder, error)
	PlaceMFSIP(ctx context.Context, spec models.MFSIPSpec) (string, error)
	ModifyMFSIP(ctx context.Context, sipID string, spec models.MFSIPSpec) (string, error)
	CancelMFSIP(ctx context.Context, sipID string) (string, error)
	GetMFSIPs(ctx context.Context) ([]models.MFSIP, error)
	GetMFHoldings(ctx context.Context) ([]models.MFHolding, error)
}

// HistoricalRequest represents a request for historical data.
type HistoricalRequest struct {
	Instrument models.InstrumentRef
	Interval   models.Interval
	From       time.Time
	To         time.Time
	// Continuous stitches expired futures contracts (day interval only).
	Continuous bool
	// OI asks for open interest alongside each bar.
	OI bool
}
