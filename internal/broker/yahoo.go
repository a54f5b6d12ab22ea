package broker

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/normalize"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/transport"
)

const (
	// DefaultYahooBaseURL is the Yahoo Finance query host.
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"
	// DefaultYahooCookieURL hands out the session cookie the crumb is bound to.
	DefaultYahooCookieURL = "https://fc.yahoo.com"

	yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// YahooLimits are conservative ceilings for the unauthenticated endpoints.
func YahooLimits() ratelimit.Limits {
	return ratelimit.Limits{
		ratelimit.MarketData: 2,
		ratelimit.Historical: 2,
		ratelimit.Default:    2,
	}
}

// YahooBroker is the delayed, global quote adapter. It serves quotes and
// bars only; account and order operations are unsupported.
type YahooBroker struct {
	unsupported

	client    *transport.Client
	cookieURL string
	logger    zerolog.Logger

	mu    sync.Mutex
	crumb string
}

var _ Provider = (*YahooBroker)(nil)

// YahooConfig holds configuration for the Yahoo adapter.
type YahooConfig struct {
	BaseURL    string
	CookieURL  string
	Governor   *ratelimit.Governor
	HTTPClient transport.HTTPClient
	Timeout    time.Duration
	RetryDelay time.Duration
	Logger     zerolog.Logger
	Meter      metric.Meter
}

// NewYahooBroker creates the Yahoo adapter. Without an explicit HTTP client
// it uses one with a cookie jar so the crumb session survives between calls.
func NewYahooBroker(cfg YahooConfig) (*YahooBroker, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooBaseURL
	}
	if cfg.CookieURL == "" {
		cfg.CookieURL = DefaultYahooCookieURL
	}
	if cfg.Governor == nil {
		cfg.Governor = ratelimit.New(YahooLimits(), ratelimit.WithLogger(cfg.Logger))
	}
	if cfg.HTTPClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		cfg.HTTPClient = &http.Client{Jar: jar}
	}

	opts := []transport.Option{
		transport.WithBaseURL(cfg.BaseURL),
		transport.WithHTTPClient(cfg.HTTPClient),
		transport.WithHeader(http.Header{"User-Agent": {yahooUserAgent}}),
		transport.WithGovernor(cfg.Governor),
		transport.WithTimeout(cfg.Timeout),
		transport.WithLogger(cfg.Logger),
	}
	if cfg.RetryDelay > 0 {
		opts = append(opts, transport.WithRetryDelay(cfg.RetryDelay))
	}
	if cfg.Meter != nil {
		opts = append(opts, transport.WithMeter(cfg.Meter))
	}
	client, err := transport.New(string(Yahoo), opts...)
	if err != nil {
		return nil, err
	}

	return &YahooBroker{
		unsupported: unsupported{provider: Yahoo},
		client:      client,
		cookieURL:   cfg.CookieURL,
		logger:      logging.WithProvider(cfg.Logger, string(Yahoo)),
	}, nil
}

// ID returns the provider identity.
func (y *YahooBroker) ID() ProviderID { return Yahoo }

// yahooSymbol renders ref in Yahoo's ticker form.
func yahooSymbol(ref models.InstrumentRef) (string, error) {
	if !ref.HasSymbol() {
		return "", apperrors.NewUnsupportedOperationError(string(Yahoo), "instrument token lookup")
	}
	switch ref.Exchange {
	case "":
		return ref.TradingSymbol, nil
	case models.NSE:
		return ref.TradingSymbol + ".NS", nil
	case models.BSE:
		return ref.TradingSymbol + ".BO", nil
	}
	return "", apperrors.NewUnsupportedOperationError(string(Yahoo), "exchange "+string(ref.Exchange))
}

// ResolveInstrument checks that ref can be expressed as a Yahoo ticker.
// Token lookups are unsupported.
func (y *YahooBroker) ResolveInstrument(_ context.Context, ref models.InstrumentRef) (models.InstrumentRef, error) {
	if _, err := yahooSymbol(ref); err != nil {
		return models.InstrumentRef{}, err
	}
	return models.InstrumentRef{Exchange: ref.Exchange, TradingSymbol: ref.TradingSymbol}, nil
}

// session returns the cached crumb, priming the cookie and fetching a new
// crumb when there is none. The fetch runs without the lock; when callers
// race, the first crumb stored wins.
func (y *YahooBroker) session(ctx context.Context) (string, error) {
	y.mu.Lock()
	cached := y.crumb
	y.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	crumb, err := y.fetchCrumb(ctx)
	if err != nil {
		return "", err
	}

	y.mu.Lock()
	defer y.mu.Unlock()
	if y.crumb != "" {
		return y.crumb, nil
	}
	y.crumb = crumb
	y.logger.Debug().Msg("yahoo session established")
	return crumb, nil
}

func (y *YahooBroker) fetchCrumb(ctx context.Context) (string, error) {
	// The cookie host answers 404 while still setting the cookie.
	_, err := y.client.Do(ctx, transport.Request{Method: http.MethodGet, Path: y.cookieURL, Category: ratelimit.Default})
	if err != nil && !apperrors.Is(err, apperrors.ErrHTTP) {
		return "", err
	}

	resp, err := y.client.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/v1/test/getcrumb", Category: ratelimit.Default})
	if err != nil {
		return "", err
	}
	crumb := strings.TrimSpace(string(resp.Body))
	if crumb == "" || strings.ContainsAny(crumb, "{<") {
		return "", apperrors.NewSchemaError("crumb", "", "unexpected crumb response")
	}
	return crumb, nil
}

// dropSessionOn401 forgets crumb when Yahoo no longer accepts it. A crumb
// another caller has already replaced is left alone.
func (y *YahooBroker) dropSessionOn401(crumb string, err error) {
	var httpErr *apperrors.HTTPError
	if !apperrors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		return
	}
	y.mu.Lock()
	dropped := y.crumb == crumb
	if dropped {
		y.crumb = ""
	}
	y.mu.Unlock()
	if dropped {
		y.logger.Warn().Msg("yahoo crumb rejected, session dropped")
	}
}

// GetQuote fetches delayed quotes keyed by instrument key.
func (y *YahooBroker) GetQuote(ctx context.Context, refs []models.InstrumentRef) (map[string]models.Quote, error) {
	if len(refs) == 0 {
		return nil, apperrors.NewValidationError("instruments", 0, "at least one instrument is required")
	}
	symbols := make([]string, 0, len(refs))
	for _, ref := range refs {
		s, err := yahooSymbol(ref)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}

	crumb, err := y.session(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("crumb", crumb)

	resp, err := y.client.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/v7/finance/quote", Query: q, Category: ratelimit.MarketData})
	if err != nil {
		y.dropSessionOn401(crumb, err)
		return nil, err
	}
	env, err := normalize.Classify(resp.ContentType(), resp.Body)
	if err != nil {
		return nil, err
	}
	quotes, err := normalize.Quotes(env)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if _, ok := quotes[ref.Key()]; !ok {
			return nil, notFound(ref)
		}
	}
	return quotes, nil
}

// GetOHLC derives OHLC snapshots from full quotes.
func (y *YahooBroker) GetOHLC(ctx context.Context, refs []models.InstrumentRef) (map[string]models.OHLCQuote, error) {
	quotes, err := y.GetQuote(ctx, refs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.OHLCQuote, len(quotes))
	for k, q := range quotes {
		out[k] = models.OHLCQuote{Instrument: q.Instrument, LastPrice: q.LastPrice, OHLC: q.OHLC}
	}
	return out, nil
}

// GetLTP derives last prices from full quotes.
func (y *YahooBroker) GetLTP(ctx context.Context, refs []models.InstrumentRef) (map[string]models.LTPQuote, error) {
	quotes, err := y.GetQuote(ctx, refs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.LTPQuote, len(quotes))
	for k, q := range quotes {
		out[k] = models.LTPQuote{Instrument: q.Instrument, LastPrice: q.LastPrice}
	}
	return out, nil
}

// GetHistorical fetches bars from the chart endpoint. Only the intervals
// Yahoo offers are accepted.
func (y *YahooBroker) GetHistorical(ctx context.Context, req HistoricalRequest) ([]models.Candle, error) {
	interval, ok := normalize.YahooInterval(req.Interval)
	if !ok {
		return nil, apperrors.NewUnsupportedOperationError(string(Yahoo), "interval "+string(req.Interval))
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return nil, apperrors.NewValidationError("range", req.From.String()+" - "+req.To.String(), "from must not be after to")
	}
	symbol, err := yahooSymbol(req.Instrument)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("period1", strconv.FormatInt(req.From.Unix(), 10))
	q.Set("period2", strconv.FormatInt(req.To.Unix(), 10))
	q.Set("events", "history")

	resp, err := y.client.Do(ctx, transport.Request{
		Method:   http.MethodGet,
		Path:     "/v8/finance/chart/" + url.PathEscape(symbol),
		Query:    q,
		Category: ratelimit.Historical,
	})
	if err != nil {
		var httpErr *apperrors.HTTPError
		if apperrors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "instrument %s: %s", req.Instrument.Key(), httpErr.Message)
		}
		return nil, err
	}
	env, err := normalize.Classify(resp.ContentType(), resp.Body)
	if err != nil {
		return nil, err
	}
	candles, err := normalize.YahooCandles(env)
	if err != nil {
		return nil, err
	}
	logger := logging.WithSymbol(y.logger, symbol)
	logger.Debug().
		Str("interval", interval).
		Int("candles", len(candles)).
		Msg("yahoo chart fetched")
	return candles, nil
}
