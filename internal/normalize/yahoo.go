package normalize

import (
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

func isYahooQuote(m map[string]any) bool {
	if _, ok := m["quoteType"]; ok {
		return true
	}
	for k := range m {
		if strings.HasPrefix(k, "regularMarket") {
			return true
		}
	}
	return false
}

func yahooQuote(r *record) (models.Quote, error) {
	sym := r.reqStr("symbol")
	if err := r.Err(); err != nil {
		return models.Quote{}, err
	}
	ref, err := instrumentFromKey("quote", sym)
	if err != nil {
		return models.Quote{}, err
	}

	q := models.Quote{
		Instrument: ref,
		LastPrice:  r.reqFloat("regularMarketPrice"),
		Volume:     r.optInt64("regularMarketVolume"),
		NetChange:  r.optFloat("regularMarketChange"),
		Timestamp:  r.unixTime("regularMarketTime"),
		OHLC: models.OHLC{
			Open:  r.reqFloat("regularMarketOpen"),
			High:  r.reqFloat("regularMarketDayHigh"),
			Low:   r.reqFloat("regularMarketDayLow"),
			Close: r.reqFloat("regularMarketPreviousClose"),
		},
	}
	q.Extensions = r.extensions()
	return q, r.Err()
}

// yahooResult unwraps {"<root>": {"result": ..., "error": ...}}.
func yahooResult(obj map[string]any, root string) (any, error) {
	r := newRecord(root, obj)
	inner := r.obj(root, true)
	if err := r.Err(); err != nil {
		return nil, err
	}
	if e := inner.obj("error", false); e != nil {
		code := e.optStr("code")
		desc := e.optStr("description")
		if strings.EqualFold(code, "Not Found") {
			return nil, apperrors.Wrap(apperrors.ErrSymbolNotFound, desc)
		}
		return nil, apperrors.NewHTTPError(200, code, desc, "")
	}
	res, ok := inner.lookup("result")
	if !ok {
		return nil, apperrors.NewSchemaError(root, "result", "required field missing")
	}
	return res, nil
}

func yahooQuoteList(obj map[string]any) (map[string]models.Quote, error) {
	res, err := yahooResult(obj, "quoteResponse")
	if err != nil {
		return nil, err
	}
	arr, ok := res.([]any)
	if !ok {
		return nil, apperrors.NewSchemaError("quoteResponse", "result", "expected an array, got "+typeName(res))
	}
	out := make(map[string]models.Quote, len(arr))
	for _, entry := range arr {
		r, err := asRecord("quote", entry)
		if err != nil {
			return nil, err
		}
		q, err := yahooQuote(r)
		if err != nil {
			return nil, err
		}
		out[q.Instrument.Key()] = q
	}
	return out, nil
}

// YahooCandles maps the v8 chart payload. Yahoo pads sessions without
// trades with nulls across every column; those rows are dropped. A row
// with only some columns null is malformed.
func YahooCandles(env Envelope) ([]models.Candle, error) {
	obj, err := env.PayloadObject("chart")
	if err != nil {
		return nil, err
	}
	res, err := yahooResult(obj, "chart")
	if err != nil {
		return nil, err
	}
	results, ok := res.([]any)
	if !ok || len(results) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrSymbolNotFound, "chart returned no result")
	}
	r, err := asRecord("chart", results[0])
	if err != nil {
		return nil, err
	}

	stamps := r.arr("timestamp")
	ind := r.obj("indicators", true)
	if err := r.Err(); err != nil {
		return nil, err
	}
	quotes := ind.arr("quote")
	if err := ind.Err(); err != nil {
		return nil, err
	}
	if len(stamps) == 0 {
		return []models.Candle{}, nil
	}
	if len(quotes) == 0 {
		return nil, apperrors.NewSchemaError("chart", "indicators.quote", "required field missing")
	}
	q, err := asRecord("chart.indicators.quote", quotes[0])
	if err != nil {
		return nil, err
	}

	cols := make([][]any, 5)
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		cols[i] = q.arr(name)
		if len(cols[i]) != len(stamps) {
			q.fail(name, "length "+strconv.Itoa(len(cols[i]))+" does not match "+strconv.Itoa(len(stamps))+" timestamps")
		}
	}
	if err := q.Err(); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(stamps))
	for i, ts := range stamps {
		c, skip, err := yahooCandle(i, ts, cols)
		if err != nil {
			return nil, err
		}
		if !skip {
			candles = append(candles, c)
		}
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

func yahooCandle(i int, ts any, cols [][]any) (models.Candle, bool, error) {
	field := "row[" + strconv.Itoa(i) + "]"
	sec, ok := toFloat(ts)
	if !ok {
		return models.Candle{}, false, apperrors.NewSchemaError("chart", field, "timestamp is not a number")
	}

	var vals [5]float64
	nulls := 0
	for k := range cols {
		if cols[k][i] == nil {
			nulls++
			continue
		}
		f, ok := toFloat(cols[k][i])
		if !ok {
			return models.Candle{}, false, apperrors.NewSchemaError("chart", field, "non-numeric OHLCV value")
		}
		vals[k] = f
	}
	switch nulls {
	case 0:
	case len(cols):
		return models.Candle{}, true, nil
	default:
		return models.Candle{}, false, apperrors.NewSchemaError("chart", field, "partially null row")
	}

	return models.Candle{
		Timestamp: time.Unix(int64(sec), 0).In(utils.IndiaLocation),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    int64(vals[4]),
	}, false, nil
}

// YahooInterval translates a canonical interval to Yahoo's chart interval.
func YahooInterval(i models.Interval) (string, bool) {
	switch i {
	case models.IntervalMinute:
		return "1m", true
	case models.Interval5Minute:
		return "5m", true
	case models.Interval15Minute:
		return "15m", true
	case models.Interval30Minute:
		return "30m", true
	case models.Interval60Minute:
		return "60m", true
	case models.IntervalDay:
		return "1d", true
	}
	return "", false
}
