package normalize

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

// instrumentRow is one line of the Kite instrument dump. Columns are read
// as text and converted afterwards so a bad cell names its column.
type instrumentRow struct {
	InstrumentToken string `csv:"instrument_token"`
	ExchangeToken   string `csv:"exchange_token"`
	TradingSymbol   string `csv:"tradingsymbol"`
	Name            string `csv:"name"`
	LastPrice       string `csv:"last_price"`
	Expiry          string `csv:"expiry"`
	Strike          string `csv:"strike"`
	TickSize        string `csv:"tick_size"`
	LotSize         string `csv:"lot_size"`
	InstrumentType  string `csv:"instrument_type"`
	Segment         string `csv:"segment"`
	Exchange        string `csv:"exchange"`
}

// Instruments maps a CSVTable instrument dump.
func Instruments(env Envelope) ([]models.Instrument, error) {
	if env.Variant != CSVTable {
		return nil, apperrors.NewSchemaError("instruments", "", "expected a CSV table, got "+env.Variant.String())
	}

	if err := requireColumns(env.Table, "instrument_token", "tradingsymbol", "exchange"); err != nil {
		return nil, err
	}

	var rows []*instrumentRow
	if err := gocsv.Unmarshal(bytes.NewReader(env.Table), &rows); err != nil {
		return nil, apperrors.NewSchemaError("instruments", "", "malformed CSV: "+err.Error())
	}

	out := make([]models.Instrument, 0, len(rows))
	for i, row := range rows {
		inst, err := row.instrument()
		if err != nil {
			if se, ok := err.(*apperrors.SchemaError); ok {
				se.Field = "row[" + strconv.Itoa(i) + "]." + se.Field
			}
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// requireColumns checks the header line of a CSV table.
func requireColumns(table []byte, cols ...string) error {
	header, _, _ := bytes.Cut(table, []byte("\n"))
	have := make(map[string]bool)
	for _, c := range strings.Split(strings.TrimSpace(string(header)), ",") {
		have[strings.Trim(strings.TrimSpace(c), `"`)] = true
	}
	for _, c := range cols {
		if !have[c] {
			return apperrors.NewSchemaError("instruments", c, "missing column in CSV header")
		}
	}
	return nil
}

func (r *instrumentRow) instrument() (models.Instrument, error) {
	token, err := parseUint32("instrument_token", r.InstrumentToken)
	if err != nil {
		return models.Instrument{}, err
	}
	if token == 0 || r.TradingSymbol == "" || r.Exchange == "" {
		return models.Instrument{}, apperrors.NewSchemaError("instruments", "instrument_token", "token, tradingsymbol and exchange are required")
	}
	inst := models.Instrument{
		Token:          token,
		TradingSymbol:  strings.TrimSpace(r.TradingSymbol),
		Name:           strings.TrimSpace(r.Name),
		InstrumentType: r.InstrumentType,
		Segment:        r.Segment,
		Exchange:       models.Exchange(strings.ToUpper(strings.TrimSpace(r.Exchange))),
	}
	if inst.ExchangeToken, err = parseUint32("exchange_token", r.ExchangeToken); err != nil {
		return models.Instrument{}, err
	}
	if inst.LastPrice, err = parseCSVFloat("last_price", r.LastPrice); err != nil {
		return models.Instrument{}, err
	}
	if inst.Strike, err = parseCSVFloat("strike", r.Strike); err != nil {
		return models.Instrument{}, err
	}
	if inst.TickSize, err = parseCSVFloat("tick_size", r.TickSize); err != nil {
		return models.Instrument{}, err
	}
	lot, err := parseCSVFloat("lot_size", r.LotSize)
	if err != nil {
		return models.Instrument{}, err
	}
	inst.LotSize = int(lot)

	if e := strings.TrimSpace(r.Expiry); e != "" {
		t, err := time.ParseInLocation("2006-01-02", e, utils.IndiaLocation)
		if err != nil {
			return models.Instrument{}, apperrors.NewSchemaError("instruments", "expiry", "expected YYYY-MM-DD, got "+strconv.Quote(e))
		}
		inst.Expiry = t
	}
	return inst, nil
}

func parseCSVFloat(col, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperrors.NewSchemaError("instruments", col, "expected a number, got "+strconv.Quote(s))
	}
	return f, nil
}

func parseUint32(col, s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, apperrors.NewSchemaError("instruments", col, "expected an unsigned integer, got "+strconv.Quote(s))
	}
	return uint32(n), nil
}
