package broker

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/normalize"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/transport"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

const (
	// DefaultKiteBaseURL is the Kite Connect REST root.
	DefaultKiteBaseURL = "https://api.kite.trade"
	kiteVersion        = "3"
	kiteTimeFormat     = "2006-01-02 15:04:05"
)

// ZerodhaBroker is the Kite Connect adapter.
type ZerodhaBroker struct {
	client *transport.Client
	cache  *InstrumentCache
	logger zerolog.Logger
}

var _ Provider = (*ZerodhaBroker)(nil)

// ZerodhaConfig holds configuration for the Kite adapter.
type ZerodhaConfig struct {
	BaseURL    string
	Credential *auth.Credential
	Governor   *ratelimit.Governor
	HTTPClient transport.HTTPClient
	Timeout    time.Duration
	RetryDelay time.Duration
	// Cache is shared between adapters built for the same account.
	Cache  *InstrumentCache
	Logger zerolog.Logger
	Meter  metric.Meter
}

// NewZerodhaBroker creates a Kite adapter. The credential is required.
func NewZerodhaBroker(cfg ZerodhaConfig) (*ZerodhaBroker, error) {
	if cfg.Credential == nil {
		return nil, apperrors.NewConfigurationError("zerodha.credential", "api key and access token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultKiteBaseURL
	}
	if cfg.Governor == nil {
		cfg.Governor = ratelimit.New(ratelimit.DefaultKiteLimits(), ratelimit.WithLogger(cfg.Logger))
	}
	if cfg.Cache == nil {
		cfg.Cache = NewInstrumentCache()
	}

	opts := []transport.Option{
		transport.WithBaseURL(cfg.BaseURL),
		transport.WithAuthorizer(cfg.Credential),
		transport.WithHeader(http.Header{"X-Kite-Version": {kiteVersion}}),
		transport.WithGovernor(cfg.Governor),
		transport.WithTimeout(cfg.Timeout),
		transport.WithLogger(cfg.Logger),
	}
	if cfg.RetryDelay > 0 {
		opts = append(opts, transport.WithRetryDelay(cfg.RetryDelay))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Meter != nil {
		opts = append(opts, transport.WithMeter(cfg.Meter))
	}
	client, err := transport.New(string(Zerodha), opts...)
	if err != nil {
		return nil, err
	}

	return &ZerodhaBroker{
		client: client,
		cache:  cfg.Cache,
		logger: logging.WithProvider(cfg.Logger, string(Zerodha)),
	}, nil
}

// ID returns the provider identity.
func (z *ZerodhaBroker) ID() ProviderID { return Zerodha }

// Cache exposes the instrument cache so callers can invalidate it.
func (z *ZerodhaBroker) Cache() *InstrumentCache { return z.cache }

func (z *ZerodhaBroker) call(ctx context.Context, req transport.Request) (normalize.Envelope, error) {
	resp, err := z.client.Do(ctx, req)
	if err != nil {
		return normalize.Envelope{}, err
	}
	return normalize.Classify(resp.ContentType(), resp.Body)
}

func (z *ZerodhaBroker) get(ctx context.Context, path string, query url.Values, cat ratelimit.Category) (normalize.Envelope, error) {
	return z.call(ctx, transport.Request{Method: http.MethodGet, Path: path, Query: query, Category: cat})
}

func (z *ZerodhaBroker) send(ctx context.Context, method, path string, form url.Values, cat ratelimit.Category) (normalize.Envelope, error) {
	return z.call(ctx, transport.Request{Method: method, Path: path, Form: form, Category: cat})
}

func notFound(ref models.InstrumentRef) error {
	return apperrors.Wrapf(apperrors.ErrSymbolNotFound, "instrument %s", ref.Key())
}

// GetInstruments fetches the instrument dump for an exchange, or for all
// exchanges when exchange is empty, and refreshes the cache with it.
func (z *ZerodhaBroker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	path := "/instruments"
	if exchange != "" {
		path += "/" + url.PathEscape(string(exchange))
	}
	env, err := z.get(ctx, path, nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	insts, err := normalize.Instruments(env)
	if err != nil {
		return nil, err
	}
	z.cache.Store(exchange, insts)
	z.logger.Debug().Str("exchange", string(exchange)).Int("count", len(insts)).Msg("instrument dump loaded")
	return insts, nil
}

// ResolveInstrument fills in the missing half of ref: the token for an
// exchange:symbol pair, or the pair for a token. Plain symbols are taken
// as NSE listings.
func (z *ZerodhaBroker) ResolveInstrument(ctx context.Context, ref models.InstrumentRef) (models.InstrumentRef, error) {
	switch {
	case ref.Token != 0 && ref.HasSymbol() && ref.Exchange != "":
		return ref, nil

	case ref.Token != 0:
		if inst, ok := z.cache.ByToken(ref.Token); ok {
			return inst.Ref(), nil
		}
		if !z.cache.Loaded("") {
			if _, err := z.GetInstruments(ctx, ""); err != nil {
				return models.InstrumentRef{}, err
			}
		}
		if inst, ok := z.cache.ByToken(ref.Token); ok {
			return inst.Ref(), nil
		}
		return models.InstrumentRef{}, notFound(ref)

	case ref.HasSymbol():
		if ref.Exchange == "" {
			ref.Exchange = models.NSE
		}
		if inst, ok := z.cache.BySymbol(ref.Exchange, ref.TradingSymbol); ok {
			return inst.Ref(), nil
		}
		if !z.cache.Loaded(ref.Exchange) {
			if _, err := z.GetInstruments(ctx, ref.Exchange); err != nil {
				return models.InstrumentRef{}, err
			}
		}
		if inst, ok := z.cache.BySymbol(ref.Exchange, ref.TradingSymbol); ok {
			return inst.Ref(), nil
		}
		return models.InstrumentRef{}, notFound(ref)
	}
	return models.InstrumentRef{}, apperrors.NewValidationError("instrument", ref.Key(), "empty instrument reference")
}

// quoteParams renders refs as repeated i= parameters.
func quoteParams(refs []models.InstrumentRef) (url.Values, error) {
	if len(refs) == 0 {
		return nil, apperrors.NewValidationError("instruments", 0, "at least one instrument is required")
	}
	q := url.Values{}
	for _, ref := range refs {
		switch {
		case ref.HasSymbol() && ref.Exchange == "":
			q.Add("i", string(models.NSE)+":"+ref.TradingSymbol)
		case ref.Key() != "":
			q.Add("i", ref.Key())
		default:
			return nil, apperrors.NewValidationError("instruments", ref, "empty instrument reference")
		}
	}
	return q, nil
}

// GetQuote fetches full quotes keyed by instrument key.
func (z *ZerodhaBroker) GetQuote(ctx context.Context, refs []models.InstrumentRef) (map[string]models.Quote, error) {
	q, err := quoteParams(refs)
	if err != nil {
		return nil, err
	}
	env, err := z.get(ctx, "/quote", q, ratelimit.MarketData)
	if err != nil {
		return nil, err
	}
	return normalize.Quotes(env)
}

// GetOHLC fetches OHLC snapshots keyed by instrument key.
func (z *ZerodhaBroker) GetOHLC(ctx context.Context, refs []models.InstrumentRef) (map[string]models.OHLCQuote, error) {
	q, err := quoteParams(refs)
	if err != nil {
		return nil, err
	}
	env, err := z.get(ctx, "/quote/ohlc", q, ratelimit.MarketData)
	if err != nil {
		return nil, err
	}
	return normalize.OHLCQuotes(env)
}

// GetLTP fetches last traded prices keyed by instrument key.
func (z *ZerodhaBroker) GetLTP(ctx context.Context, refs []models.InstrumentRef) (map[string]models.LTPQuote, error) {
	q, err := quoteParams(refs)
	if err != nil {
		return nil, err
	}
	env, err := z.get(ctx, "/quote/ltp", q, ratelimit.MarketData)
	if err != nil {
		return nil, err
	}
	return normalize.LTPQuotes(env)
}

// GetHistorical fetches bars for one instrument, resolving its token first.
func (z *ZerodhaBroker) GetHistorical(ctx context.Context, req HistoricalRequest) ([]models.Candle, error) {
	if !req.Interval.Valid() {
		return nil, apperrors.NewValidationError("interval", req.Interval, "unknown interval")
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return nil, apperrors.NewValidationError("range", req.From.String()+" - "+req.To.String(), "from must not be after to")
	}

	token := req.Instrument.Token
	if token == 0 {
		ref, err := z.ResolveInstrument(ctx, req.Instrument)
		if err != nil {
			return nil, err
		}
		token = ref.Token
	}

	q := url.Values{}
	q.Set("from", req.From.In(utils.IndiaLocation).Format(kiteTimeFormat))
	q.Set("to", req.To.In(utils.IndiaLocation).Format(kiteTimeFormat))
	q.Set("continuous", boolFlag(req.Continuous))
	q.Set("oi", boolFlag(req.OI))

	path := "/instruments/historical/" + strconv.FormatUint(uint64(token), 10) + "/" + string(req.Interval)
	env, err := z.get(ctx, path, q, ratelimit.Historical)
	if err != nil {
		return nil, err
	}
	return normalize.KiteCandles(env)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// GetHoldings fetches the demat holdings.
func (z *ZerodhaBroker) GetHoldings(ctx context.Context) ([]models.Holding, error) {
	env, err := z.get(ctx, "/portfolio/holdings", nil, ratelimit.Portfolio)
	if err != nil {
		return nil, err
	}
	return normalize.Holdings(env)
}

// GetPositions fetches the net and day position books.
func (z *ZerodhaBroker) GetPositions(ctx context.Context) (models.Positions, error) {
	env, err := z.get(ctx, "/portfolio/positions", nil, ratelimit.Portfolio)
	if err != nil {
		return models.Positions{}, err
	}
	return normalize.Positions(env)
}

// GetProfile fetches the account profile.
func (z *ZerodhaBroker) GetProfile(ctx context.Context) (models.Profile, error) {
	env, err := z.get(ctx, "/user/profile", nil, ratelimit.Default)
	if err != nil {
		return models.Profile{}, err
	}
	return normalize.Profile(env)
}

// GetMargins fetches funds for every segment, or for one segment.
func (z *ZerodhaBroker) GetMargins(ctx context.Context, segment string) (models.Margins, error) {
	path := "/user/margins"
	if segment != "" {
		path += "/" + url.PathEscape(segment)
	}
	env, err := z.get(ctx, path, nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.Margins(env, segment)
}

func variety(v models.Variety) string {
	if v == "" {
		return string(models.VarietyRegular)
	}
	return string(v)
}

func orderForm(spec models.OrderSpec) url.Values {
	f := url.Values{}
	f.Set("exchange", string(spec.Instrument.Exchange))
	f.Set("tradingsymbol", spec.Instrument.TradingSymbol)
	f.Set("transaction_type", string(spec.TransactionType))
	f.Set("order_type", string(spec.OrderType))
	f.Set("product", string(spec.Product))
	f.Set("quantity", strconv.Itoa(spec.Quantity))
	validity := spec.Validity
	if validity == "" {
		validity = models.ValidityDay
	}
	f.Set("validity", string(validity))
	if spec.Price > 0 {
		f.Set("price", formatPrice(spec.Price))
	}
	if spec.TriggerPrice > 0 {
		f.Set("trigger_price", formatPrice(spec.TriggerPrice))
	}
	if spec.DisclosedQuantity > 0 {
		f.Set("disclosed_quantity", strconv.Itoa(spec.DisclosedQuantity))
	}
	if spec.Tag != "" {
		f.Set("tag", spec.Tag)
	}
	return f
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// PlaceOrder places a new order. The returned status is PLACED; later
// states are only known by polling the order history.
func (z *ZerodhaBroker) PlaceOrder(ctx context.Context, spec models.OrderSpec) (models.OrderResult, error) {
	if err := spec.Validate(); err != nil {
		return models.OrderResult{}, err
	}
	env, err := z.send(ctx, http.MethodPost, "/orders/"+variety(spec.Variety), orderForm(spec), ratelimit.Orders)
	if err != nil {
		return models.OrderResult{}, err
	}
	id, err := normalize.OrderID(env)
	if err != nil {
		return models.OrderResult{}, err
	}
	logging.LogOrder(z.logger, "placed", id, spec.Instrument.Key(), string(models.StatusPlaced))
	return models.OrderResult{OrderID: id, Status: models.StatusPlaced}, nil
}

// ModifyOrder changes quantity, price, trigger price, order type or
// validity of an open order. Zero fields are left unchanged.
func (z *ZerodhaBroker) ModifyOrder(ctx context.Context, orderID string, spec models.OrderSpec) (models.OrderResult, error) {
	if orderID == "" {
		return models.OrderResult{}, apperrors.NewValidationError("order_id", orderID, "order id is required")
	}
	f := url.Values{}
	if spec.Quantity > 0 {
		f.Set("quantity", strconv.Itoa(spec.Quantity))
	}
	if spec.Price > 0 {
		f.Set("price", formatPrice(spec.Price))
	}
	if spec.TriggerPrice > 0 {
		f.Set("trigger_price", formatPrice(spec.TriggerPrice))
	}
	if spec.OrderType != "" {
		f.Set("order_type", string(spec.OrderType))
	}
	if spec.Validity != "" {
		f.Set("validity", string(spec.Validity))
	}
	if spec.DisclosedQuantity > 0 {
		f.Set("disclosed_quantity", strconv.Itoa(spec.DisclosedQuantity))
	}
	if len(f) == 0 {
		return models.OrderResult{}, apperrors.NewValidationError("order", orderID, "nothing to modify")
	}

	v := spec.Variety
	if v == "" {
		current, err := z.latestOrder(ctx, orderID)
		if err != nil {
			return models.OrderResult{}, err
		}
		v = current.Variety
	}

	path := "/orders/" + variety(v) + "/" + url.PathEscape(orderID)
	env, err := z.send(ctx, http.MethodPut, path, f, ratelimit.Orders)
	if err != nil {
		return models.OrderResult{}, err
	}
	id, err := normalize.OrderID(env)
	if err != nil {
		return models.OrderResult{}, err
	}
	logging.LogOrder(z.logger, "modify requested", id, spec.Instrument.Key(), "")
	return models.OrderResult{OrderID: id}, nil
}

// CancelOrder cancels an open order and reports the status observed
// afterwards. An order that is already terminal is reported as is and no
// cancellation is sent, so repeated calls are safe.
func (z *ZerodhaBroker) CancelOrder(ctx context.Context, orderID string) (models.OrderResult, error) {
	if orderID == "" {
		return models.OrderResult{}, apperrors.NewValidationError("order_id", orderID, "order id is required")
	}
	logger := logging.WithOrderID(z.logger, orderID)

	current, err := z.latestOrder(ctx, orderID)
	if err != nil {
		return models.OrderResult{}, err
	}
	if current.Status.IsTerminal() {
		logger.Debug().Str("status", string(current.Status)).Msg("order already terminal, not cancelling")
		return models.OrderResult{OrderID: orderID, Status: current.Status}, nil
	}

	path := "/orders/" + variety(current.Variety) + "/" + url.PathEscape(orderID)
	_, cancelErr := z.send(ctx, http.MethodDelete, path, nil, ratelimit.Orders)
	if cancelErr != nil {
		var httpErr *apperrors.HTTPError
		if !apperrors.As(cancelErr, &httpErr) || !httpErr.IsClientError() || httpErr.IsRateLimit() {
			return models.OrderResult{}, cancelErr
		}
		// The order may have left the book between the read and the cancel.
		logger.Debug().Int("status", httpErr.Status).Msg("cancel rejected, re-reading order")
	}

	after, err := z.latestOrder(ctx, orderID)
	if err != nil {
		return models.OrderResult{}, err
	}
	if cancelErr != nil && !after.Status.IsTerminal() {
		return models.OrderResult{}, cancelErr
	}
	logging.LogOrder(z.logger, "cancel observed", orderID, after.Instrument.Key(), string(after.Status))
	return models.OrderResult{OrderID: orderID, Status: after.Status}, nil
}

func (z *ZerodhaBroker) latestOrder(ctx context.Context, orderID string) (models.Order, error) {
	history, err := z.GetOrderHistory(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if len(history) == 0 {
		return models.Order{}, apperrors.NewSchemaError("order_history", "", "no history for order "+orderID)
	}
	return history[len(history)-1], nil
}

// GetOrders fetches the day's orders.
func (z *ZerodhaBroker) GetOrders(ctx context.Context) ([]models.Order, error) {
	env, err := z.get(ctx, "/orders", nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.Orders(env)
}

// GetOrderHistory fetches every state an order has passed through, oldest first.
func (z *ZerodhaBroker) GetOrderHistory(ctx context.Context, orderID string) ([]models.Order, error) {
	if orderID == "" {
		return nil, apperrors.NewValidationError("order_id", orderID, "order id is required")
	}
	env, err := z.get(ctx, "/orders/"+url.PathEscape(orderID), nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.OrderHistory(env)
}

// GetTrades fetches the day's executed trades.
func (z *ZerodhaBroker) GetTrades(ctx context.Context) ([]models.Trade, error) {
	env, err := z.get(ctx, "/trades", nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.Trades(env)
}

// GetOrderTrades fetches the trades that filled one order.
func (z *ZerodhaBroker) GetOrderTrades(ctx context.Context, orderID string) ([]models.Trade, error) {
	if orderID == "" {
		return nil, apperrors.NewValidationError("order_id", orderID, "order id is required")
	}
	env, err := z.get(ctx, "/orders/"+url.PathEscape(orderID)+"/trades", nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.Trades(env)
}

type gttConditionParams struct {
	Exchange      string    `json:"exchange"`
	TradingSymbol string    `json:"tradingsymbol"`
	TriggerValues []float64 `json:"trigger_values"`
	LastPrice     float64   `json:"last_price"`
}

type gttOrderParams struct {
	Exchange        string  `json:"exchange"`
	TradingSymbol   string  `json:"tradingsymbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	OrderType       string  `json:"order_type"`
	Product         string  `json:"product"`
	Price           float64 `json:"price"`
}

// gttForm encodes a trigger. Kite wants condition and orders as JSON
// strings inside the form body.
func (z *ZerodhaBroker) gttForm(ctx context.Context, spec models.GTTSpec) (url.Values, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	inst := spec.Condition.Instrument
	last := spec.Condition.LastPrice
	if last <= 0 {
		ltp, err := z.GetLTP(ctx, []models.InstrumentRef{inst})
		if err != nil {
			return nil, err
		}
		q, ok := ltp[inst.Key()]
		if !ok {
			return nil, notFound(inst)
		}
		last = q.LastPrice
	}

	cond, err := json.Marshal(gttConditionParams{
		Exchange:      string(inst.Exchange),
		TradingSymbol: inst.TradingSymbol,
		TriggerValues: spec.Condition.TriggerValues,
		LastPrice:     last,
	})
	if err != nil {
		return nil, err
	}

	legs := make([]gttOrderParams, 0, len(spec.Orders))
	for _, o := range spec.Orders {
		product := o.Product
		if product == "" {
			product = models.ProductCNC
		}
		legs = append(legs, gttOrderParams{
			Exchange:        string(inst.Exchange),
			TradingSymbol:   inst.TradingSymbol,
			TransactionType: string(o.TransactionType),
			Quantity:        o.Quantity,
			OrderType:       string(o.OrderType),
			Product:         string(product),
			Price:           o.Price,
		})
	}
	orders, err := json.Marshal(legs)
	if err != nil {
		return nil, err
	}

	f := url.Values{}
	f.Set("type", string(spec.Type))
	f.Set("condition", string(cond))
	f.Set("orders", string(orders))
	return f, nil
}

// PlaceGTT creates a standing trigger and returns its id.
func (z *ZerodhaBroker) PlaceGTT(ctx context.Context, spec models.GTTSpec) (int, error) {
	f, err := z.gttForm(ctx, spec)
	if err != nil {
		return 0, err
	}
	env, err := z.send(ctx, http.MethodPost, "/gtt/triggers", f, ratelimit.Orders)
	if err != nil {
		return 0, err
	}
	return normalize.TriggerID(env)
}

// ModifyGTT replaces a trigger's condition and orders.
func (z *ZerodhaBroker) ModifyGTT(ctx context.Context, triggerID int, spec models.GTTSpec) (int, error) {
	if triggerID <= 0 {
		return 0, apperrors.NewValidationError("trigger_id", triggerID, "trigger id is required")
	}
	f, err := z.gttForm(ctx, spec)
	if err != nil {
		return 0, err
	}
	env, err := z.send(ctx, http.MethodPut, "/gtt/triggers/"+strconv.Itoa(triggerID), f, ratelimit.Orders)
	if err != nil {
		return 0, err
	}
	return normalize.TriggerID(env)
}

// DeleteGTT removes a trigger.
func (z *ZerodhaBroker) DeleteGTT(ctx context.Context, triggerID int) (int, error) {
	if triggerID <= 0 {
		return 0, apperrors.NewValidationError("trigger_id", triggerID, "trigger id is required")
	}
	env, err := z.send(ctx, http.MethodDelete, "/gtt/triggers/"+strconv.Itoa(triggerID), nil, ratelimit.Orders)
	if err != nil {
		return 0, err
	}
	return normalize.TriggerID(env)
}

// GetGTTs lists the account's triggers.
func (z *ZerodhaBroker) GetGTTs(ctx context.Context) ([]models.GTTTrigger, error) {
	env, err := z.get(ctx, "/gtt/triggers", nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.GTTs(env)
}

// GetGTT fetches one trigger.
func (z *ZerodhaBroker) GetGTT(ctx context.Context, triggerID int) (models.GTTTrigger, error) {
	env, err := z.get(ctx, "/gtt/triggers/"+strconv.Itoa(triggerID), nil, ratelimit.Default)
	if err != nil {
		return models.GTTTrigger{}, err
	}
	return normalize.GTT(env)
}

// PlaceMFOrder places a mutual fund purchase (by amount) or redemption
// (by quantity).
func (z *ZerodhaBroker) PlaceMFOrder(ctx context.Context, spec models.MFOrderSpec) (string, error) {
	if spec.TradingSymbol == "" {
		return "", apperrors.NewValidationError("tradingsymbol", spec.TradingSymbol, "fund symbol is required")
	}
	f := url.Values{}
	f.Set("tradingsymbol", spec.TradingSymbol)
	f.Set("transaction_type", string(spec.TransactionType))
	switch spec.TransactionType {
	case models.Buy:
		if spec.Amount <= 0 {
			return "", apperrors.NewValidationError("amount", spec.Amount, "purchase requires an amount")
		}
		f.Set("amount", formatPrice(spec.Amount))
	case models.Sell:
		if spec.Quantity <= 0 {
			return "", apperrors.NewValidationError("quantity", spec.Quantity, "redemption requires a quantity")
		}
		f.Set("quantity", formatPrice(spec.Quantity))
	default:
		return "", apperrors.NewValidationError("transaction_type", spec.TransactionType, "must be BUY or SELL")
	}
	if spec.Tag != "" {
		f.Set("tag", spec.Tag)
	}

	env, err := z.send(ctx, http.MethodPost, "/mf/orders", f, ratelimit.Orders)
	if err != nil {
		return "", err
	}
	return normalize.OrderID(env)
}

// CancelMFOrder cancels a pending mutual fund order.
func (z *ZerodhaBroker) CancelMFOrder(ctx context.Context, orderID string) (string, error) {
	if orderID == "" {
		return "", apperrors.NewValidationError("order_id", orderID, "order id is required")
	}
	env, err := z.send(ctx, http.MethodDelete, "/mf/orders/"+url.PathEscape(orderID), nil, ratelimit.Orders)
	if err != nil {
		return "", err
	}
	return normalize.OrderID(env)
}

// GetMFOrders lists mutual fund orders.
func (z *ZerodhaBroker) GetMFOrders(ctx context.Context) ([]models.MFOrder, error) {
	env, err := z.get(ctx, "/mf/orders", nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.MFOrders(env)
}

func sipForm(spec models.MFSIPSpec) url.Values {
	f := url.Values{}
	if spec.Amount > 0 {
		f.Set("amount", formatPrice(spec.Amount))
	}
	if spec.Instalments != 0 {
		f.Set("instalments", strconv.Itoa(spec.Instalments))
	}
	if spec.Frequency != "" {
		f.Set("frequency", spec.Frequency)
	}
	if spec.InstalmentDay > 0 {
		f.Set("instalment_day", strconv.Itoa(spec.InstalmentDay))
	}
	return f
}

// PlaceMFSIP starts a SIP.
func (z *ZerodhaBroker) PlaceMFSIP(ctx context.Context, spec models.MFSIPSpec) (string, error) {
	if spec.TradingSymbol == "" {
		return "", apperrors.NewValidationError("tradingsymbol", spec.TradingSymbol, "fund symbol is required")
	}
	if spec.Amount <= 0 {
		return "", apperrors.NewValidationError("amount", spec.Amount, "instalment amount is required")
	}
	if spec.Frequency == "" || spec.Instalments == 0 {
		return "", apperrors.NewValidationError("frequency", spec.Frequency, "frequency and instalments are required")
	}
	f := sipForm(spec)
	f.Set("tradingsymbol", spec.TradingSymbol)
	if spec.InitialAmount > 0 {
		f.Set("initial_amount", formatPrice(spec.InitialAmount))
	}
	if spec.Tag != "" {
		f.Set("tag", spec.Tag)
	}

	env, err := z.send(ctx, http.MethodPost, "/mf/sips", f, ratelimit.Orders)
	if err != nil {
		return "", err
	}
	return normalize.SIPID(env)
}

// ModifyMFSIP changes a SIP's amount, schedule or status.
func (z *ZerodhaBroker) ModifyMFSIP(ctx context.Context, sipID string, spec models.MFSIPSpec) (string, error) {
	if sipID == "" {
		return "", apperrors.NewValidationError("sip_id", sipID, "sip id is required")
	}
	f := sipForm(spec)
	if spec.Status != "" {
		f.Set("status", spec.Status)
	}
	if len(f) == 0 {
		return "", apperrors.NewValidationError("sip", sipID, "nothing to modify")
	}
	env, err := z.send(ctx, http.MethodPut, "/mf/sips/"+url.PathEscape(sipID), f, ratelimit.Orders)
	if err != nil {
		return "", err
	}
	return normalize.SIPID(env)
}

// CancelMFSIP stops a SIP.
func (z *ZerodhaBroker) CancelMFSIP(ctx context.Context, sipID string) (string, error) {
	if sipID == "" {
		return "", apperrors.NewValidationError("sip_id", sipID, "sip id is required")
	}
	env, err := z.send(ctx, http.MethodDelete, "/mf/sips/"+url.PathEscape(sipID), nil, ratelimit.Orders)
	if err != nil {
		return "", err
	}
	return normalize.SIPID(env)
}

// GetMFSIPs lists SIPs.
func (z *ZerodhaBroker) GetMFSIPs(ctx context.Context) ([]models.MFSIP, error) {
	env, err := z.get(ctx, "/mf/sips", nil, ratelimit.Default)
	if err != nil {
		return nil, err
	}
	return normalize.MFSIPs(env)
}

// GetMFHoldings lists mutual fund holdings.
func (z *ZerodhaBroker) GetMFHoldings(ctx context.Context) ([]models.MFHolding, error) {
	env, err := z.get(ctx, "/mf/holdings", nil, ratelimit.Portfolio)
	if err != nil {
		return nil, err
	}
	return normalize.MFHoldings(env)
}
