package cli

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/broker"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/marketdata"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

const (
	quoteTimeout   = 30 * time.Second
	historyTimeout = 60 * time.Second
)

// addMarketDataCommands adds quote, history, instrument and account commands.
func addMarketDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newOHLCCmd(app))
	rootCmd.AddCommand(newLTPCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newInstrumentCmd(app))
	rootCmd.AddCommand(newHoldingsCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newMarginsCmd(app))
	rootCmd.AddCommand(newProfileCmd(app))
}

// orderedKeys returns the canonical keys of args in the order given,
// dropping duplicates.
func orderedKeys(args []string) ([]string, error) {
	refs, err := marketdata.ParseInstruments(args)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(refs))
	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		if !seen[r.Key()] {
			seen[r.Key()] = true
			keys = append(keys, r.Key())
		}
	}
	return keys, nil
}

func warnMissing(output *Output, keys []string, found func(string) bool) {
	for _, k := range keys {
		if !found(k) {
			output.Warning("No data for %s", k)
		}
	}
}

func changePercent(last, prevClose float64) float64 {
	if prevClose == 0 {
		return 0
	}
	return (last - prevClose) / prevClose * 100
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <instrument>...",
		Short: "Get full quotes for one or more instruments",
		Long: `Fetch full market quotes. Instruments are given as EXCHANGE:SYMBOL,
a numeric instrument token, a plain ticker (AAPL) or a suffixed ticker
(RELIANCE.NS, RELIANCE.BO).`,
		Example: `  stockdata quote NSE:RELIANCE NSE:INFY
  stockdata quote AAPL MSFT --provider yahoo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			keys, err := orderedKeys(args)
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			quotes, err := f.Quote(ctx, args...)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(quotes)
			}

			table := NewTable(output, "INSTRUMENT", "LTP", "CHANGE", "OPEN", "HIGH", "LOW", "PREV CLOSE", "VOLUME")
			for _, k := range keys {
				q, ok := quotes[k]
				if !ok {
					continue
				}
				pct := changePercent(q.LastPrice, q.OHLC.Close)
				table.AddRow(
					k,
					output.BoldText(utils.FormatPrice(q.LastPrice)),
					output.FormatPercent(pct),
					utils.FormatPrice(q.OHLC.Open),
					utils.FormatPrice(q.OHLC.High),
					utils.FormatPrice(q.OHLC.Low),
					utils.FormatPrice(q.OHLC.Close),
					utils.FormatVolume(q.Volume),
				)
			}
			table.Render()
			warnMissing(output, keys, func(k string) bool { _, ok := quotes[k]; return ok })
			return nil
		},
	}
}

func newOHLCCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "ohlc <instrument>...",
		Short:   "Get last price and day OHLC",
		Example: `  stockdata ohlc NSE:RELIANCE BSE:SENSEX`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			keys, err := orderedKeys(args)
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			quotes, err := f.OHLC(ctx, args...)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(quotes)
			}

			table := NewTable(output, "INSTRUMENT", "LTP", "OPEN", "HIGH", "LOW", "CLOSE")
			for _, k := range keys {
				q, ok := quotes[k]
				if !ok {
					continue
				}
				table.AddRow(k,
					output.BoldText(utils.FormatPrice(q.LastPrice)),
					utils.FormatPrice(q.OHLC.Open),
					utils.FormatPrice(q.OHLC.High),
					utils.FormatPrice(q.OHLC.Low),
					utils.FormatPrice(q.OHLC.Close),
				)
			}
			table.Render()
			warnMissing(output, keys, func(k string) bool { _, ok := quotes[k]; return ok })
			return nil
		},
	}
}

func newLTPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "ltp <instrument>...",
		Short:   "Get last traded prices",
		Example: `  stockdata ltp NSE:INFY NSE:TCS 256265`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			keys, err := orderedKeys(args)
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			quotes, err := f.LTP(ctx, args...)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(quotes)
			}

			table := NewTable(output, "INSTRUMENT", "LTP")
			for _, k := range keys {
				if q, ok := quotes[k]; ok {
					table.AddRow(k, utils.FormatPrice(q.LastPrice))
				}
			}
			table.Render()
			warnMissing(output, keys, func(k string) bool { _, ok := quotes[k]; return ok })
			return nil
		},
	}
}

// candleRow is the CSV shape written by "history --csv".
type candleRow struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
	OI     string  `csv:"oi"`
}

func candleRows(candles []models.Candle) []*candleRow {
	rows := make([]*candleRow, 0, len(candles))
	for _, c := range candles {
		row := &candleRow{
			Date:   c.Timestamp.In(utils.IndiaLocation).Format(time.RFC3339),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
		if c.OpenInterest != nil {
			row.OI = strconv.FormatInt(*c.OpenInterest, 10)
		}
		rows = append(rows, row)
	}
	return rows
}

// parseDate reads YYYY-MM-DD or YYYY-MM-DD HH:MM in IST.
func parseDate(flag, s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, utils.IndiaLocation); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.NewValidationError(flag, s, "expected YYYY-MM-DD or 'YYYY-MM-DD HH:MM'")
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <instrument>",
		Short: "Get historical OHLCV candles",
		Long: `Fetch historical candles for an instrument. Dates are in IST. Without
--from the range starts --days before --to (default now).

Intervals: minute, 3minute, 5minute, 10minute, 15minute, 30minute,
60minute, day. Yahoo does not serve 3minute or 10minute.`,
		Example: `  stockdata history NSE:INFY --interval 15minute --days 5
  stockdata history NSE:NIFTY24DECFUT --from 2024-11-01 --continuous --oi
  stockdata history AAPL --provider yahoo --csv > aapl.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, historyTimeout)
			defer cancel()

			interval, _ := cmd.Flags().GetString("interval")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			days, _ := cmd.Flags().GetInt("days")
			continuous, _ := cmd.Flags().GetBool("continuous")
			oi, _ := cmd.Flags().GetBool("oi")
			asCSV, _ := cmd.Flags().GetBool("csv")

			to := app.Now().In(utils.IndiaLocation)
			if toStr != "" {
				t, err := parseDate("to", toStr)
				if err != nil {
					return err
				}
				to = t
			}
			from := to.AddDate(0, 0, -days)
			if fromStr != "" {
				t, err := parseDate("from", fromStr)
				if err != nil {
					return err
				}
				from = t
			}

			ref, err := models.ParseInstrument(args[0])
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			candles, err := f.Historical(ctx, broker.HistoricalRequest{
				Instrument: ref,
				Interval:   models.Interval(strings.ToLower(interval)),
				From:       from,
				To:         to,
				Continuous: continuous,
				OI:         oi,
			})
			if err != nil {
				return err
			}

			switch {
			case asCSV:
				return gocsv.Marshal(candleRows(candles), cmd.OutOrStdout())
			case output.IsJSON():
				return output.JSON(candles)
			}

			headers := []string{"DATE", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME"}
			if oi {
				headers = append(headers, "OI")
			}
			table := NewTable(output, headers...)
			for _, row := range candleRows(candles) {
				cells := []string{row.Date,
					utils.FormatPrice(row.Open), utils.FormatPrice(row.High),
					utils.FormatPrice(row.Low), utils.FormatPrice(row.Close),
					utils.FormatVolume(row.Volume),
				}
				if oi {
					cells = append(cells, row.OI)
				}
				table.AddRow(cells...)
			}
			table.Render()
			output.Dim("%d candles, %s", len(candles), ref.Key())
			return nil
		},
	}

	cmd.Flags().StringP("interval", "i", string(models.IntervalDay), "candle interval")
	cmd.Flags().String("from", "", "start date (IST)")
	cmd.Flags().String("to", "", "end date (IST, default now)")
	cmd.Flags().IntP("days", "d", 30, "days of history when --from is not given")
	cmd.Flags().Bool("continuous", false, "stitch expired futures contracts (day interval)")
	cmd.Flags().Bool("oi", false, "include open interest")
	cmd.Flags().Bool("csv", false, "write CSV instead of a table")

	return cmd
}

func newInstrumentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instrument",
		Short: "Resolve and list instruments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "resolve <instrument>",
		Short:   "Resolve a symbol to its token, or a token to its symbol",
		Example: `  stockdata instrument resolve NSE:INFY`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, historyTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			ref, err := f.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{
					"exchange":         ref.Exchange,
					"tradingsymbol":    ref.TradingSymbol,
					"instrument_token": ref.Token,
				})
			}
			output.Printf("%s:%s  token %d\n", ref.Exchange, ref.TradingSymbol, ref.Token)
			return nil
		},
	})

	list := &cobra.Command{
		Use:     "list",
		Short:   "List the instrument dump for an exchange",
		Example: `  stockdata instrument list --exchange NFO --search NIFTY --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, historyTimeout)
			defer cancel()

			exchange, _ := cmd.Flags().GetString("exchange")
			search, _ := cmd.Flags().GetString("search")
			limit, _ := cmd.Flags().GetInt("limit")

			f, err := app.Facade()
			if err != nil {
				return err
			}
			instruments, err := f.Instruments(ctx, models.Exchange(strings.ToUpper(exchange)))
			if err != nil {
				return err
			}

			search = strings.ToUpper(search)
			matched := make([]models.Instrument, 0, len(instruments))
			for _, inst := range instruments {
				if search == "" || strings.Contains(inst.TradingSymbol, search) || strings.Contains(strings.ToUpper(inst.Name), search) {
					matched = append(matched, inst)
				}
			}
			sort.Slice(matched, func(i, j int) bool { return matched[i].TradingSymbol < matched[j].TradingSymbol })
			if limit > 0 && len(matched) > limit {
				matched = matched[:limit]
			}

			if output.IsJSON() {
				return output.JSON(matched)
			}
			table := NewTable(output, "TOKEN", "EXCHANGE", "SYMBOL", "NAME", "TYPE", "LOT", "EXPIRY")
			for _, inst := range matched {
				expiry := ""
				if !inst.Expiry.IsZero() {
					expiry = inst.Expiry.Format("2006-01-02")
				}
				table.AddRow(strconv.FormatUint(uint64(inst.Token), 10), string(inst.Exchange),
					inst.TradingSymbol, inst.Name, inst.InstrumentType, strconv.Itoa(inst.LotSize), expiry)
			}
			table.Render()
			return nil
		},
	}
	list.Flags().StringP("exchange", "e", "", "exchange (NSE, BSE, NFO, ...); all exchanges when empty")
	list.Flags().StringP("search", "s", "", "filter by symbol or name")
	list.Flags().Int("limit", 50, "maximum rows (0 for all)")
	cmd.AddCommand(list)

	return cmd
}

func newHoldingsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Show long-term holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			holdings, err := f.Holdings(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(holdings)
			}
			if len(holdings) == 0 {
				output.Dim("No holdings")
				return nil
			}

			var invested, current, pnl float64
			table := NewTable(output, "INSTRUMENT", "QTY", "AVG", "LTP", "P&L", "DAY")
			for _, h := range holdings {
				invested += h.AveragePrice * float64(h.Quantity)
				current += h.LastPrice * float64(h.Quantity)
				pnl += h.PnL
				table.AddRow(h.Instrument.Key(),
					utils.FormatQuantity(int64(h.Quantity)),
					utils.FormatPrice(h.AveragePrice),
					utils.FormatPrice(h.LastPrice),
					output.FormatPnL(h.PnL),
					output.FormatPercent(h.DayChangePercentage),
				)
			}
			table.Render()
			output.Println()
			output.Printf("Invested %s  Current %s  P&L %s\n",
				utils.FormatCompact(invested), utils.FormatCompact(current), output.FormatPnL(pnl))
			return nil
		},
	}
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show net positions (or the day's with --day)",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			day, _ := cmd.Flags().GetBool("day")
			f, err := app.Facade()
			if err != nil {
				return err
			}
			positions, err := f.Positions(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(positions)
			}

			list := positions.Net
			if day {
				list = positions.Day
			}
			if len(list) == 0 {
				output.Dim("No positions")
				return nil
			}
			table := NewTable(output, "INSTRUMENT", "PRODUCT", "QTY", "AVG", "LTP", "P&L")
			var total float64
			for _, p := range list {
				total += p.PnL
				table.AddRow(p.Instrument.Key(), string(p.Product),
					utils.FormatQuantity(int64(p.Quantity)),
					utils.FormatPrice(p.AveragePrice),
					utils.FormatPrice(p.LastPrice),
					output.FormatPnL(p.PnL),
				)
			}
			table.Render()
			output.Printf("Total P&L %s\n", output.FormatPnL(total))
			return nil
		},
	}
	cmd.Flags().Bool("day", false, "show the day's positions instead of net")
	return cmd
}

func newMarginsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "margins [segment]",
		Short:   "Show available and used funds",
		Example: "  stockdata margins\n  stockdata margins equity",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			segment := ""
			if len(args) == 1 {
				segment = strings.ToLower(args[0])
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			margins, err := f.Margins(ctx, segment)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(margins)
			}

			names := make([]string, 0, len(margins))
			for name := range margins {
				names = append(names, name)
			}
			sort.Strings(names)
			table := NewTable(output, "SEGMENT", "ENABLED", "NET", "AVAILABLE", "USED")
			for _, name := range names {
				m := margins[name]
				table.AddRow(name, strconv.FormatBool(m.Enabled),
					utils.FormatIndianCurrency(m.Net),
					utils.FormatIndianCurrency(m.Available),
					utils.FormatIndianCurrency(m.Used))
			}
			table.Render()
			return nil
		},
	}
}

func newProfileCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the account profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, quoteTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			p, err := f.Profile(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(p)
			}

			exchanges := make([]string, len(p.Exchanges))
			for i, e := range p.Exchanges {
				exchanges[i] = string(e)
			}
			products := make([]string, len(p.Products))
			for i, pr := range p.Products {
				products[i] = string(pr)
			}
			output.Bold("%s (%s)", p.UserName, p.UserID)
			output.Printf("  Email:     %s\n", p.Email)
			output.Printf("  Broker:    %s\n", p.Broker)
			output.Printf("  Exchanges: %s\n", strings.Join(exchanges, ", "))
			output.Printf("  Products:  %s\n", strings.Join(products, ", "))
			if len(p.OrderTypes) > 0 {
				output.Printf("  Orders:    %s\n", strings.Join(p.OrderTypes, ", "))
			}
			return nil
		},
	}
}
