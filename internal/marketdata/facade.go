// Package marketdata is the single call surface over the provider adapters.
// Callers pick a provider by identity; every operation then routes through
// that adapter and returns canonical models.
package marketdata

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/broker"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/security"
)

// Facade routes calls to the active provider adapter.
type Facade struct {
	mu        sync.RWMutex
	providers map[broker.ProviderID]broker.Provider
	active    broker.ProviderID

	access *security.AccessController
	audit  *security.AuditTrail
	logger zerolog.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithAccessController guards write operations. Without one every
// operation is permitted.
func WithAccessController(ac *security.AccessController) Option {
	return func(f *Facade) { f.access = ac }
}

// WithAuditTrail records every attempted write operation.
func WithAuditTrail(a *security.AuditTrail) Option {
	return func(f *Facade) { f.audit = a }
}

// WithLogger sets the facade logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// WithActive selects the initially active provider. The first provider
// passed to New is active otherwise.
func WithActive(id broker.ProviderID) Option {
	return func(f *Facade) { f.active = id }
}

// New creates a facade over providers. Provider identities must be unique.
func New(providers []broker.Provider, opts ...Option) (*Facade, error) {
	if len(providers) == 0 {
		return nil, apperrors.NewConfigurationError("providers", "at least one provider is required")
	}
	f := &Facade{
		providers: make(map[broker.ProviderID]broker.Provider, len(providers)),
		active:    providers[0].ID(),
		logger:    zerolog.Nop(),
	}
	for _, p := range providers {
		if _, dup := f.providers[p.ID()]; dup {
			return nil, apperrors.NewConfigurationError("providers", "duplicate provider "+string(p.ID()))
		}
		f.providers[p.ID()] = p
	}
	for _, opt := range opts {
		opt(f)
	}
	if _, ok := f.providers[f.active]; !ok {
		return nil, apperrors.NewConfigurationError("provider", "unknown provider "+string(f.active))
	}
	if f.access == nil {
		f.access = security.NewAccessController(false, f.logger)
	}
	return f, nil
}

// Use switches the active provider. Other providers keep their sessions.
func (f *Facade) Use(id broker.ProviderID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.providers[id]; !ok {
		return apperrors.NewConfigurationError("provider", "unknown provider "+string(id))
	}
	if f.active != id {
		f.logger.Info().Str("from", string(f.active)).Str("to", string(id)).Msg("switching provider")
	}
	f.active = id
	return nil
}

// Active returns the identity of the active provider.
func (f *Facade) Active() broker.ProviderID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// Providers lists the registered provider identities in name order.
func (f *Facade) Providers() []broker.ProviderID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]broker.ProviderID, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Provider returns the adapter registered under id.
func (f *Facade) Provider(id broker.ProviderID) (broker.Provider, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[id]
	if !ok {
		return nil, apperrors.NewConfigurationError("provider", "unknown provider "+string(id))
	}
	return p, nil
}

func (f *Facade) current() broker.Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.providers[f.active]
}

// ParseInstruments parses caller keys such as "NSE:RELIANCE", "AAPL",
// "TATAMOTORS.NS" or a numeric token.
func ParseInstruments(keys []string) ([]models.InstrumentRef, error) {
	if len(keys) == 0 {
		return nil, apperrors.NewValidationError("instruments", 0, "at least one instrument is required")
	}
	refs := make([]models.InstrumentRef, 0, len(keys))
	for _, k := range keys {
		ref, err := models.ParseInstrument(k)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// mutate runs a write operation behind the read-only guard and records the
// attempt in the audit trail.
func (f *Facade) mutate(op security.OperationType, instrument string, fn func(broker.Provider) (string, error)) (string, error) {
	p := f.current()
	logger := logging.WithOperation(logging.WithProvider(f.logger, string(p.ID())), string(op))
	if err := f.access.CheckPermission(op); err != nil {
		f.record(logger, security.AuditEvent{Operation: op, Provider: string(p.ID()), Instrument: instrument, Blocked: true}, err)
		return "", err
	}
	ref, err := fn(p)
	if err != nil {
		security.MaskedErr(logger.Debug(), err).Str("instrument", instrument).Msg("write operation failed")
	} else {
		logger.Debug().Str("instrument", instrument).Str("reference", ref).Msg("write operation accepted")
	}
	f.record(logger, security.AuditEvent{Operation: op, Provider: string(p.ID()), Instrument: instrument, Reference: ref}, err)
	return ref, err
}

func (f *Facade) record(logger zerolog.Logger, event security.AuditEvent, err error) {
	if f.audit == nil {
		return
	}
	event.Success = err == nil
	if err != nil {
		event.ErrorMsg = err.Error()
	}
	if werr := f.audit.Record(event); werr != nil {
		security.MaskedErr(logger.Warn(), werr).Msg("audit write failed")
	}
}

// Instruments

// Resolve fills in the missing half of an instrument key.
func (f *Facade) Resolve(ctx context.Context, key string) (models.InstrumentRef, error) {
	ref, err := models.ParseInstrument(key)
	if err != nil {
		return models.InstrumentRef{}, err
	}
	return f.current().ResolveInstrument(ctx, ref)
}

// Instruments lists tradable instruments, optionally for one exchange.
func (f *Facade) Instruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	return f.current().GetInstruments(ctx, exchange)
}

// Market data

// Quote returns full quotes keyed by canonical instrument key.
func (f *Facade) Quote(ctx context.Context, keys ...string) (map[string]models.Quote, error) {
	refs, err := ParseInstruments(keys)
	if err != nil {
		return nil, err
	}
	return f.current().GetQuote(ctx, refs)
}

// OHLC returns OHLC snapshots keyed by canonical instrument key.
func (f *Facade) OHLC(ctx context.Context, keys ...string) (map[string]models.OHLCQuote, error) {
	refs, err := ParseInstruments(keys)
	if err != nil {
		return nil, err
	}
	return f.current().GetOHLC(ctx, refs)
}

// LTP returns last traded prices keyed by canonical instrument key.
func (f *Facade) LTP(ctx context.Context, keys ...string) (map[string]models.LTPQuote, error) {
	refs, err := ParseInstruments(keys)
	if err != nil {
		return nil, err
	}
	return f.current().GetLTP(ctx, refs)
}

// Historical returns bars in ascending time order.
func (f *Facade) Historical(ctx context.Context, req broker.HistoricalRequest) ([]models.Candle, error) {
	return f.current().GetHistorical(ctx, req)
}

// Portfolio & account

func (f *Facade) Holdings(ctx context.Context) ([]models.Holding, error) {
	return f.current().GetHoldings(ctx)
}

func (f *Facade) Positions(ctx context.Context) (models.Positions, error) {
	return f.current().GetPositions(ctx)
}

func (f *Facade) Profile(ctx context.Context) (models.Profile, error) {
	return f.current().GetProfile(ctx)
}

// Margins returns funds for segment, or all segments when it is empty.
func (f *Facade) Margins(ctx context.Context, segment string) (models.Margins, error) {
	return f.current().GetMargins(ctx, segment)
}

// Orders

// PlaceOrder places an order. It is never retried implicitly.
func (f *Facade) PlaceOrder(ctx context.Context, spec models.OrderSpec) (models.OrderResult, error) {
	var res models.OrderResult
	_, err := f.mutate(security.OpPlaceOrder, spec.Instrument.Key(), func(p broker.Provider) (string, error) {
		var err error
		res, err = p.PlaceOrder(ctx, spec)
		return res.OrderID, err
	})
	return res, err
}

func (f *Facade) ModifyOrder(ctx context.Context, orderID string, spec models.OrderSpec) (models.OrderResult, error) {
	var res models.OrderResult
	_, err := f.mutate(security.OpModifyOrder, spec.Instrument.Key(), func(p broker.Provider) (string, error) {
		var err error
		res, err = p.ModifyOrder(ctx, orderID, spec)
		return orderID, err
	})
	return res, err
}

// CancelOrder cancels an open order. Cancelling an order that already
// reached a terminal state returns that state without error.
func (f *Facade) CancelOrder(ctx context.Context, orderID string) (models.OrderResult, error) {
	var res models.OrderResult
	_, err := f.mutate(security.OpCancelOrder, "", func(p broker.Provider) (string, error) {
		var err error
		res, err = p.CancelOrder(ctx, orderID)
		return orderID, err
	})
	return res, err
}

func (f *Facade) Orders(ctx context.Context) ([]models.Order, error) {
	return f.current().GetOrders(ctx)
}

func (f *Facade) OrderHistory(ctx context.Context, orderID string) ([]models.Order, error) {
	return f.current().GetOrderHistory(ctx, orderID)
}

func (f *Facade) Trades(ctx context.Context) ([]models.Trade, error) {
	return f.current().GetTrades(ctx)
}

func (f *Facade) OrderTrades(ctx context.Context, orderID string) ([]models.Trade, error) {
	return f.current().GetOrderTrades(ctx, orderID)
}

// GTT

func (f *Facade) PlaceGTT(ctx context.Context, spec models.GTTSpec) (int, error) {
	ref, err := f.mutate(security.OpPlaceGTT, spec.Condition.Instrument.Key(), func(p broker.Provider) (string, error) {
		id, err := p.PlaceGTT(ctx, spec)
		return triggerRef(id), err
	})
	return triggerID(ref), err
}

func (f *Facade) ModifyGTT(ctx context.Context, id int, spec models.GTTSpec) (int, error) {
	ref, err := f.mutate(security.OpModifyGTT, spec.Condition.Instrument.Key(), func(p broker.Provider) (string, error) {
		id, err := p.ModifyGTT(ctx, id, spec)
		return triggerRef(id), err
	})
	return triggerID(ref), err
}

func (f *Facade) DeleteGTT(ctx context.Context, id int) (int, error) {
	ref, err := f.mutate(security.OpDeleteGTT, "", func(p broker.Provider) (string, error) {
		deleted, err := p.DeleteGTT(ctx, id)
		if err != nil {
			return triggerRef(id), err
		}
		return triggerRef(deleted), nil
	})
	return triggerID(ref), err
}

func (f *Facade) GTTs(ctx context.Context) ([]models.GTTTrigger, error) {
	return f.current().GetGTTs(ctx)
}

func (f *Facade) GTT(ctx context.Context, id int) (models.GTTTrigger, error) {
	return f.current().GetGTT(ctx, id)
}

func triggerRef(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func triggerID(ref string) int {
	id, _ := strconv.Atoi(ref)
	return id
}

// Mutual funds

func (f *Facade) PlaceMFOrder(ctx context.Context, spec models.MFOrderSpec) (string, error) {
	return f.mutate(security.OpPlaceMFOrder, spec.TradingSymbol, func(p broker.Provider) (string, error) {
		return p.PlaceMFOrder(ctx, spec)
	})
}

func (f *Facade) CancelMFOrder(ctx context.Context, orderID string) (string, error) {
	return f.mutate(security.OpCancelMF, "", func(p broker.Provider) (string, error) {
		return p.CancelMFOrder(ctx, orderID)
	})
}

func (f *Facade) MFOrders(ctx context.Context) ([]models.MFOrder, error) {
	return f.current().GetMFOrders(ctx)
}

func (f *Facade) PlaceMFSIP(ctx context.Context, spec models.MFSIPSpec) (string, error) {
	return f.mutate(security.OpPlaceMFSIP, spec.TradingSymbol, func(p broker.Provider) (string, error) {
		return p.PlaceMFSIP(ctx, spec)
	})
}

func (f *Facade) ModifyMFSIP(ctx context.Context, sipID string, spec models.MFSIPSpec) (string, error) {
	return f.mutate(security.OpModifyMFSIP, spec.TradingSymbol, func(p broker.Provider) (string, error) {
		return p.ModifyMFSIP(ctx, sipID, spec)
	})
}

func (f *Facade) CancelMFSIP(ctx context.Context, sipID string) (string, error) {
	return f.mutate(security.OpCancelMFSIP, "", func(p broker.Provider) (string, error) {
		return p.CancelMFSIP(ctx, sipID)
	})
}

func (f *Facade) MFSIPs(ctx context.Context) ([]models.MFSIP, error) {
	return f.current().GetMFSIPs(ctx)
}

func (f *Facade) MFHoldings(ctx context.Context) ([]models.MFHolding, error) {
	return f.current().GetMFHoldings(ctx)
}
