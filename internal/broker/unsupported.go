package broker

import (
	"context"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

// unsupported answers every operation with UnsupportedOperationError.
// Adapters embed it and override what they actually serve.
type unsupported struct {
	provider ProviderID
}

func (u unsupported) fail(op string) error {
	return apperrors.NewUnsupportedOperationError(string(u.provider), op)
}

func (u unsupported) ResolveInstrument(context.Context, models.InstrumentRef) (models.InstrumentRef, error) {
	return models.InstrumentRef{}, u.fail("ResolveInstrument")
}

func (u unsupported) GetInstruments(context.Context, models.Exchange) ([]models.Instrument, error) {
	return nil, u.fail("GetInstruments")
}

func (u unsupported) GetQuote(context.Context, []models.InstrumentRef) (map[string]models.Quote, error) {
	return nil, u.fail("GetQuote")
}

func (u unsupported) GetOHLC(context.Context, []models.InstrumentRef) (map[string]models.OHLCQuote, error) {
	return nil, u.fail("GetOHLC")
}

func (u unsupported) GetLTP(context.Context, []models.InstrumentRef) (map[string]models.LTPQuote, error) {
	return nil, u.fail("GetLTP")
}

func (u unsupported) GetHistorical(context.Context, HistoricalRequest) ([]models.Candle, error) {
	return nil, u.fail("GetHistorical")
}

func (u unsupported) GetHoldings(context.Context) ([]models.Holding, error) {
	return nil, u.fail("GetHoldings")
}

func (u unsupported) GetPositions(context.Context) (models.Positions, error) {
	return models.Positions{}, u.fail("GetPositions")
}

func (u unsupported) GetProfile(context.Context) (models.Profile, error) {
	return models.Profile{}, u.fail("GetProfile")
}

func (u unsupported) GetMargins(context.Context, string) (models.Margins, error) {
	return nil, u.fail("GetMargins")
}

func (u unsupported) PlaceOrder(context.Context, models.OrderSpec) (models.OrderResult, error) {
	return models.OrderResult{}, u.fail("PlaceOrder")
}

func (u unsupported) ModifyOrder(context.Context, string, models.OrderSpec) (models.OrderResult, error) {
	return models.OrderResult{}, u.fail("ModifyOrder")
}

func (u unsupported) CancelOrder(context.Context, string) (models.OrderResult, error) {
	return models.OrderResult{}, u.fail("CancelOrder")
}

func (u unsupported) GetOrders(context.Context) ([]models.Order, error) {
	return nil, u.fail("GetOrders")
}

func (u unsupported) GetOrderHistory(context.Context, string) ([]models.Order, error) {
	return nil, u.fail("GetOrderHistory")
}

func (u unsupported) GetTrades(context.Context) ([]models.Trade, error) {
	return nil, u.fail("GetTrades")
}

func (u unsupported) GetOrderTrades(context.Context, string) ([]models.Trade, error) {
	return nil, u.fail("GetOrderTrades")
}

func (u unsupported) PlaceGTT(context.Context, models.GTTSpec) (int, error) {
	return 0, u.fail("PlaceGTT")
}

func (u unsupported) ModifyGTT(context.Context, int, models.GTTSpec) (int, error) {
	return 0, u.fail("ModifyGTT")
}

func (u unsupported) DeleteGTT(context.Context, int) (int, error) {
	return 0, u.fail("DeleteGTT")
}

func (u unsupported) GetGTTs(context.Context) ([]models.GTTTrigger, error) {
	return nil, u.fail("GetGTTs")
}

func (u unsupported) GetGTT(context.Context, int) (models.GTTTrigger, error) {
	return models.GTTTrigger{}, u.fail("GetGTT")
}

func (u unsupported) PlaceMFOrder(context.Context, models.MFOrderSpec) (string, error) {
	return "", u.fail("PlaceMFOrder")
}

func (u unsupported) CancelMFOrder(context.Context, string) (string, error) {
	return "", u.fail("CancelMFOrder")
}

func (u unsupported) GetMFOrders(context.Context) ([]models.MFOrder, error) {
	return nil, u.fail("GetMFOrders")
}

func (u unsupported) PlaceMFSIP(context.Context, models.MFSIPSpec) (string, error) {
	return "", u.fail("PlaceMFSIP")
}

func (u unsupported) ModifyMFSIP(context.Context, string, models.MFSIPSpec) (string, error) {
	return "", u.fail("ModifyMFSIP")
}

func (u unsupported) CancelMFSIP(context.Context, string) (string, error) {
	return "", u.fail("CancelMFSIP")
}

func (u unsupported) GetMFSIPs(context.Context) ([]models.MFSIP, error) {
	return nil, u.fail("GetMFSIPs")
}

func (u unsupported) GetMFHoldings(context.Context) ([]models.MFHolding, error) {
	return nil, u.fail("GetMFHoldings")
}
