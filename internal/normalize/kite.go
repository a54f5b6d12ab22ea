package normalize

import (
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

// Quotes maps a quote payload onto canonical quotes keyed by instrument
// key. Both provider dialects are accepted: a keyed object of Kite quote
// entries, bare or status-wrapped, and an array of Yahoo quote entries.
func Quotes(env Envelope) (map[string]models.Quote, error) {
	p, err := env.Payload()
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.Quote)
	switch v := p.(type) {
	case map[string]any:
		if _, ok := v["quoteResponse"]; ok {
			return yahooQuoteList(v)
		}
		for key, entry := range v {
			r, err := asRecord("quote", entry)
			if err != nil {
				return nil, err
			}
			q, err := quoteEntry(key, r)
			if err != nil {
				return nil, err
			}
			out[q.Instrument.Key()] = q
		}
	case []any:
		for _, entry := range v {
			r, err := asRecord("quote", entry)
			if err != nil {
				return nil, err
			}
			q, err := quoteEntry("", r)
			if err != nil {
				return nil, err
			}
			out[q.Instrument.Key()] = q
		}
	default:
		return nil, apperrors.NewSchemaError("quote", "", "expected an object or array payload, got "+typeName(p))
	}
	return out, nil
}

func quoteEntry(key string, r *record) (models.Quote, error) {
	if isYahooQuote(r.m) {
		return yahooQuote(r)
	}
	return kiteQuote(key, r)
}

func instrumentFromKey(entity, key string) (models.InstrumentRef, error) {
	ref, err := models.ParseInstrument(key)
	if err != nil {
		return models.InstrumentRef{}, apperrors.NewSchemaError(entity, "key", "unparseable instrument key "+strconv.Quote(key))
	}
	return ref, nil
}

func kiteQuote(key string, r *record) (models.Quote, error) {
	ref, err := instrumentFromKey("quote", key)
	if err != nil {
		return models.Quote{}, err
	}
	if r.has("instrument_token") {
		ref.Token = r.optUint32("instrument_token")
	}

	q := models.Quote{
		Instrument:   ref,
		LastPrice:    r.reqFloat("last_price"),
		LastQuantity: r.optInt64("last_quantity"),
		Volume:       r.optInt64("volume"),
		BuyQuantity:  r.optInt64("buy_quantity"),
		SellQuantity: r.optInt64("sell_quantity"),
		NetChange:    r.optFloat("net_change"),
		Timestamp:    r.kiteTime("timestamp"),
	}
	o := r.obj("ohlc", true)
	if o != nil {
		q.OHLC = ohlcFrom(o)
	}
	q.Extensions = r.extensions(o)
	return q, r.Err(o)
}

func ohlcFrom(o *record) models.OHLC {
	return models.OHLC{
		Open:  o.reqFloat("open"),
		High:  o.reqFloat("high"),
		Low:   o.reqFloat("low"),
		Close: o.reqFloat("close"),
	}
}

// OHLCQuotes maps the Kite /quote/ohlc payload.
func OHLCQuotes(env Envelope) (map[string]models.OHLCQuote, error) {
	obj, err := env.PayloadObject("ohlc")
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.OHLCQuote, len(obj))
	for key, entry := range obj {
		r, err := asRecord("ohlc", entry)
		if err != nil {
			return nil, err
		}
		ref, err := instrumentFromKey("ohlc", key)
		if err != nil {
			return nil, err
		}
		if r.has("instrument_token") {
			ref.Token = r.optUint32("instrument_token")
		}
		q := models.OHLCQuote{Instrument: ref, LastPrice: r.reqFloat("last_price")}
		o := r.obj("ohlc", true)
		if o != nil {
			q.OHLC = ohlcFrom(o)
		}
		q.Extensions = r.extensions(o)
		if err := r.Err(o); err != nil {
			return nil, err
		}
		out[ref.Key()] = q
	}
	return out, nil
}

// LTPQuotes maps the Kite /quote/ltp payload.
func LTPQuotes(env Envelope) (map[string]models.LTPQuote, error) {
	obj, err := env.PayloadObject("ltp")
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.LTPQuote, len(obj))
	for key, entry := range obj {
		r, err := asRecord("ltp", entry)
		if err != nil {
			return nil, err
		}
		ref, err := instrumentFromKey("ltp", key)
		if err != nil {
			return nil, err
		}
		if r.has("instrument_token") {
			ref.Token = r.optUint32("instrument_token")
		}
		q := models.LTPQuote{Instrument: ref, LastPrice: r.reqFloat("last_price")}
		q.Extensions = r.extensions()
		if err := r.Err(); err != nil {
			return nil, err
		}
		out[ref.Key()] = q
	}
	return out, nil
}

// KiteCandles maps {"candles": [[date, o, h, l, c, v, oi?], ...]} onto
// bars in ascending date order.
func KiteCandles(env Envelope) ([]models.Candle, error) {
	obj, err := env.PayloadObject("historical")
	if err != nil {
		return nil, err
	}
	r := newRecord("historical", obj)
	if !r.has("candles") {
		return nil, apperrors.NewSchemaError("historical", "candles", "required field missing")
	}
	rows := r.arr("candles")
	if err := r.Err(); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := kiteCandle(i, row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

func kiteCandle(i int, row any) (models.Candle, error) {
	field := "candles[" + strconv.Itoa(i) + "]"
	cells, ok := row.([]any)
	if !ok || len(cells) < 6 {
		return models.Candle{}, apperrors.NewSchemaError("historical", field, "expected [date, open, high, low, close, volume, oi?]")
	}
	ts, ok := cells[0].(string)
	if !ok {
		return models.Candle{}, apperrors.NewSchemaError("historical", field, "date is not a string")
	}
	t, err := parseKiteTime(ts)
	if err != nil {
		return models.Candle{}, apperrors.NewSchemaError("historical", field, err.Error())
	}

	var nums [6]float64
	for k := 1; k < 6; k++ {
		f, ok := toFloat(cells[k])
		if !ok {
			return models.Candle{}, apperrors.NewSchemaError("historical", field, "non-numeric OHLCV value")
		}
		nums[k] = f
	}
	c := models.Candle{
		Timestamp: t,
		Open:      nums[1],
		High:      nums[2],
		Low:       nums[3],
		Close:     nums[4],
		Volume:    int64(nums[5]),
	}
	if len(cells) > 6 && cells[6] != nil {
		oi, ok := toFloat(cells[6])
		if !ok {
			return models.Candle{}, apperrors.NewSchemaError("historical", field, "non-numeric open interest")
		}
		v := int64(oi)
		c.OpenInterest = &v
	}
	return c, nil
}

// eachObject maps every element of an array payload.
func eachObject[T any](env Envelope, entity string, fn func(*record) (T, error)) ([]T, error) {
	arr, err := env.PayloadArray(entity)
	if err != nil {
		return nil, err
	}
	return mapObjects(arr, entity, fn)
}

func mapObjects[T any](arr []any, entity string, fn func(*record) (T, error)) ([]T, error) {
	out := make([]T, 0, len(arr))
	for _, item := range arr {
		r, err := asRecord(entity, item)
		if err != nil {
			return nil, err
		}
		v, err := fn(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func kiteInstrument(r *record) models.InstrumentRef {
	return models.InstrumentRef{
		Exchange:      models.Exchange(strings.ToUpper(r.reqStr("exchange"))),
		TradingSymbol: r.reqStr("tradingsymbol"),
		Token:         r.optUint32("instrument_token"),
	}
}

// Holdings maps /portfolio/holdings.
func Holdings(env Envelope) ([]models.Holding, error) {
	return eachObject(env, "holding", func(r *record) (models.Holding, error) {
		h := models.Holding{
			Instrument:          kiteInstrument(r),
			ISIN:                r.optStr("isin"),
			Product:             models.Product(r.optStr("product")),
			Quantity:            r.optInt("quantity"),
			T1Quantity:          r.optInt("t1_quantity"),
			AveragePrice:        r.reqFloat("average_price"),
			LastPrice:           r.reqFloat("last_price"),
			ClosePrice:          r.optFloat("close_price"),
			PnL:                 r.optFloat("pnl"),
			DayChange:           r.optFloat("day_change"),
			DayChangePercentage: r.optFloat("day_change_percentage"),
		}
		h.Extensions = r.extensions()
		return h, r.Err()
	})
}

// Positions maps /portfolio/positions, which splits net and day books.
func Positions(env Envelope) (models.Positions, error) {
	obj, err := env.PayloadObject("positions")
	if err != nil {
		return models.Positions{}, err
	}
	r := newRecord("positions", obj)
	if !r.has("net") || !r.has("day") {
		return models.Positions{}, apperrors.NewSchemaError("positions", "net", "expected net and day books")
	}
	net, err := mapObjects(r.arr("net"), "position", position)
	if err != nil {
		return models.Positions{}, err
	}
	day, err := mapObjects(r.arr("day"), "position", position)
	if err != nil {
		return models.Positions{}, err
	}
	return models.Positions{Net: net, Day: day}, r.Err()
}

func position(r *record) (models.Position, error) {
	p := models.Position{
		Instrument:          kiteInstrument(r),
		Product:             models.Product(r.reqStr("product")),
		Quantity:            r.optInt("quantity"),
		OvernightQuantity:   r.optInt("overnight_quantity"),
		Multiplier:          r.optFloat("multiplier"),
		AveragePrice:        r.reqFloat("average_price"),
		LastPrice:           r.reqFloat("last_price"),
		ClosePrice:          r.optFloat("close_price"),
		Value:               r.optFloat("value"),
		PnL:                 r.optFloat("pnl"),
		M2M:                 r.optFloat("m2m"),
		Realised:            r.optFloat("realised"),
		Unrealised:          r.optFloat("unrealised"),
		DayChange:           r.optFloat("day_change"),
		DayChangePercentage: r.optFloat("day_change_percentage"),
	}
	if !r.has("day_change") && p.ClosePrice > 0 {
		p.DayChange = p.LastPrice - p.ClosePrice
		p.DayChangePercentage = p.DayChange / p.ClosePrice * 100
	}
	p.Extensions = r.extensions()
	return p, r.Err()
}

// Orders maps the /orders order book.
func Orders(env Envelope) ([]models.Order, error) {
	return eachObject(env, "order", order)
}

// OrderHistory maps /orders/{id}. Entries are in the order Kite reports them
// and each status is read as the successor of the one before it.
func OrderHistory(env Envelope) ([]models.Order, error) {
	history, err := eachObject(env, "order", order)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(history); i++ {
		history[i].Status = models.FollowOrderStatus(history[i-1].Status, history[i].RawStatus)
	}
	return history, nil
}

func order(r *record) (models.Order, error) {
	raw := r.reqStr("status")
	o := models.Order{
		OrderID:         r.reqStr("order_id"),
		ExchangeOrderID: r.optStr("exchange_order_id"),
		Status:          models.ParseOrderStatus(raw),
		RawStatus:       raw,
		StatusMessage:   r.optStr("status_message"),
		Instrument:      kiteInstrument(r),
		TransactionType: models.TransactionType(r.optStr("transaction_type")),
		OrderType:       models.OrderType(r.optStr("order_type")),
		Product:         models.Product(r.optStr("product")),
		Variety:         models.Variety(r.optStr("variety")),
		Quantity:        r.optInt("quantity"),
		FilledQuantity:  r.optInt("filled_quantity"),
		PendingQuantity: r.optInt("pending_quantity"),
		Price:           r.optFloat("price"),
		TriggerPrice:    r.optFloat("trigger_price"),
		AveragePrice:    r.optFloat("average_price"),
		Validity:        models.Validity(r.optStr("validity")),
		Tag:             r.optStr("tag"),
		OrderTimestamp:  r.kiteTime("order_timestamp"),
		ExchangeTime:    r.kiteTime("exchange_timestamp"),
	}
	o.Extensions = r.extensions()
	return o, r.Err()
}

// Trades maps /trades and /orders/{id}/trades.
func Trades(env Envelope) ([]models.Trade, error) {
	return eachObject(env, "trade", func(r *record) (models.Trade, error) {
		t := models.Trade{
			TradeID:         r.reqStr("trade_id"),
			OrderID:         r.reqStr("order_id"),
			Instrument:      kiteInstrument(r),
			TransactionType: models.TransactionType(r.optStr("transaction_type")),
			Product:         models.Product(r.optStr("product")),
			Quantity:        r.optInt("quantity"),
			AveragePrice:    r.reqFloat("average_price"),
			FillTimestamp:   r.kiteTime("fill_timestamp"),
		}
		t.Extensions = r.extensions()
		return t, r.Err()
	})
}

// OrderID maps the {"order_id": ...} acknowledgement of order and MF
// order mutations.
func OrderID(env Envelope) (string, error) {
	obj, err := env.PayloadObject("order_ack")
	if err != nil {
		return "", err
	}
	r := newRecord("order_ack", obj)
	id := r.reqStr("order_id")
	return id, r.Err()
}

// SIPID maps the {"sip_id": ...} acknowledgement of SIP mutations.
func SIPID(env Envelope) (string, error) {
	obj, err := env.PayloadObject("sip_ack")
	if err != nil {
		return "", err
	}
	r := newRecord("sip_ack", obj)
	id := r.reqStr("sip_id")
	return id, r.Err()
}

// TriggerID maps the {"trigger_id": n} acknowledgement of GTT mutations.
func TriggerID(env Envelope) (int, error) {
	obj, err := env.PayloadObject("gtt_ack")
	if err != nil {
		return 0, err
	}
	r := newRecord("gtt_ack", obj)
	id := int(r.reqFloat("trigger_id"))
	return id, r.Err()
}

// GTTs maps /gtt/triggers.
func GTTs(env Envelope) ([]models.GTTTrigger, error) {
	return eachObject(env, "gtt", gtt)
}

// GTT maps /gtt/triggers/{id}.
func GTT(env Envelope) (models.GTTTrigger, error) {
	obj, err := env.PayloadObject("gtt")
	if err != nil {
		return models.GTTTrigger{}, err
	}
	return gtt(newRecord("gtt", obj))
}

func gtt(r *record) (models.GTTTrigger, error) {
	g := models.GTTTrigger{
		TriggerID: int(r.reqFloat("id")),
		Type:      models.GTTType(r.reqStr("type")),
		Status:    r.optStr("status"),
		CreatedAt: r.kiteTime("created_at"),
		UpdatedAt: r.kiteTime("updated_at"),
		ExpiresAt: r.kiteTime("expires_at"),
	}

	cond := r.obj("condition", true)
	if cond != nil {
		g.Condition = models.GTTCondition{
			Instrument: kiteInstrument(cond),
			LastPrice:  cond.optFloat("last_price"),
		}
		for i, v := range cond.arr("trigger_values") {
			f, ok := toFloat(v)
			if !ok {
				cond.fail("trigger_values["+strconv.Itoa(i)+"]", "expected a number")
				break
			}
			g.Condition.TriggerValues = append(g.Condition.TriggerValues, f)
		}
	}

	legs, err := mapObjects(r.arr("orders"), "gtt.orders", func(o *record) (models.GTTOrderLeg, error) {
		leg := models.GTTOrderLeg{
			TransactionType: models.TransactionType(o.reqStr("transaction_type")),
			OrderType:       models.OrderType(o.reqStr("order_type")),
			Product:         models.Product(o.optStr("product")),
			Quantity:        o.optInt("quantity"),
			Price:           o.optFloat("price"),
		}
		leg.Extensions = o.extensions()
		return leg, o.Err()
	})
	if err != nil {
		return models.GTTTrigger{}, err
	}
	g.Orders = legs
	g.Extensions = r.extensions(cond)
	return g, r.Err(cond)
}

// MFOrders maps /mf/orders.
func MFOrders(env Envelope) ([]models.MFOrder, error) {
	return eachObject(env, "mf_order", mfOrder)
}

// MFOrder maps /mf/orders/{id}.
func MFOrder(env Envelope) (models.MFOrder, error) {
	obj, err := env.PayloadObject("mf_order")
	if err != nil {
		return models.MFOrder{}, err
	}
	return mfOrder(newRecord("mf_order", obj))
}

func mfOrder(r *record) (models.MFOrder, error) {
	o := models.MFOrder{
		OrderID:         r.reqStr("order_id"),
		ExchangeOrderID: r.optStr("exchange_order_id"),
		TradingSymbol:   r.reqStr("tradingsymbol"),
		Fund:            r.optStr("fund"),
		Status:          r.reqStr("status"),
		StatusMessage:   r.optStr("status_message"),
		TransactionType: models.TransactionType(r.optStr("transaction_type")),
		Amount:          r.optFloat("amount"),
		Quantity:        r.optFloat("quantity"),
		AveragePrice:    r.optFloat("average_price"),
		LastPrice:       r.optFloat("last_price"),
		OrderTimestamp:  r.kiteTime("order_timestamp"),
		Tag:             r.optStr("tag"),
	}
	o.Extensions = r.extensions()
	return o, r.Err()
}

// MFSIPs maps /mf/sips.
func MFSIPs(env Envelope) ([]models.MFSIP, error) {
	return eachObject(env, "mf_sip", func(r *record) (models.MFSIP, error) {
		s := models.MFSIP{
			SIPID:              r.reqStr("sip_id"),
			TradingSymbol:      r.reqStr("tradingsymbol"),
			Fund:               r.optStr("fund"),
			Status:             r.reqStr("status"),
			Frequency:          r.optStr("frequency"),
			InstalmentAmount:   r.optFloat("instalment_amount"),
			Instalments:        r.optInt("instalments"),
			PendingInstalments: r.optInt("pending_instalments"),
			InstalmentDay:      r.optInt("instalment_day"),
			Created:            r.kiteTime("created"),
			NextInstalment:     r.kiteTime("next_instalment"),
		}
		s.Extensions = r.extensions()
		return s, r.Err()
	})
}

// MFHoldings maps /mf/holdings.
func MFHoldings(env Envelope) ([]models.MFHolding, error) {
	return eachObject(env, "mf_holding", func(r *record) (models.MFHolding, error) {
		h := models.MFHolding{
			Folio:         r.optStr("folio"),
			Fund:          r.optStr("fund"),
			TradingSymbol: r.reqStr("tradingsymbol"),
			Quantity:      r.reqFloat("quantity"),
			AveragePrice:  r.reqFloat("average_price"),
			LastPrice:     r.optFloat("last_price"),
			PnL:           r.optFloat("pnl"),
		}
		h.Extensions = r.extensions()
		return h, r.Err()
	})
}

// Profile maps /user/profile.
func Profile(env Envelope) (models.Profile, error) {
	obj, err := env.PayloadObject("profile")
	if err != nil {
		return models.Profile{}, err
	}
	r := newRecord("profile", obj)
	p := models.Profile{
		UserID:   r.reqStr("user_id"),
		UserName: r.optStr("user_name"),
		Email:    r.optStr("email"),
		Broker:   r.optStr("broker"),
	}
	for _, v := range r.arr("exchanges") {
		if s, ok := v.(string); ok {
			p.Exchanges = append(p.Exchanges, models.Exchange(s))
		}
	}
	for _, v := range r.arr("products") {
		if s, ok := v.(string); ok {
			p.Products = append(p.Products, models.Product(s))
		}
	}
	for _, v := range r.arr("order_types") {
		if s, ok := v.(string); ok {
			p.OrderTypes = append(p.OrderTypes, s)
		}
	}
	p.Extensions = r.extensions()
	return p, r.Err()
}

// Margins maps /user/margins, or /user/margins/{segment} when segment is set.
func Margins(env Envelope, segment string) (models.Margins, error) {
	obj, err := env.PayloadObject("margins")
	if err != nil {
		return nil, err
	}
	if segment != "" {
		m, err := segmentMargin(newRecord("margins."+segment, obj))
		if err != nil {
			return nil, err
		}
		return models.Margins{segment: m}, nil
	}

	out := make(models.Margins, len(obj))
	for seg, v := range obj {
		r, err := asRecord("margins."+seg, v)
		if err != nil {
			return nil, err
		}
		m, err := segmentMargin(r)
		if err != nil {
			return nil, err
		}
		out[seg] = m
	}
	return out, nil
}

func segmentMargin(r *record) (models.SegmentMargin, error) {
	m := models.SegmentMargin{
		Enabled: r.optBool("enabled"),
		Net:     r.reqFloat("net"),
	}
	avail := r.obj("available", false)
	if avail != nil {
		cash := avail.optFloat("cash")
		m.Available = avail.optFloat("live_balance")
		if m.Available == 0 {
			m.Available = cash
		}
	}
	used := r.obj("utilised", false)
	if used != nil {
		m.Used = used.optFloat("debits")
	}
	m.Extensions = r.extensions(avail, used)
	return m, r.Err(avail, used)
}
