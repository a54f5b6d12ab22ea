package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/marketdata"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

const orderTimeout = 30 * time.Second

// addTradingCommands adds order, trade, GTT and mutual-fund commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newGTTCmd(app))
	rootCmd.AddCommand(newMFCmd(app))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(utils.IndiaLocation).Format("2006-01-02 15:04:05")
}

func renderOrders(output *Output, orders []models.Order) {
	table := NewTable(output, "ORDER ID", "TIME", "INSTRUMENT", "SIDE", "TYPE", "QTY", "FILLED", "PRICE", "AVG", "STATUS")
	for _, o := range orders {
		table.AddRow(o.OrderID, formatTime(o.OrderTimestamp), o.Instrument.Key(),
			string(o.TransactionType), string(o.OrderType),
			strconv.Itoa(o.Quantity), strconv.Itoa(o.FilledQuantity),
			utils.FormatPrice(o.Price), utils.FormatPrice(o.AveragePrice),
			output.OrderStatus(string(o.Status)))
	}
	table.Render()
}

// orderSpecFromFlags builds an OrderSpec from the place/modify flags.
func orderSpecFromFlags(cmd *cobra.Command) (models.OrderSpec, error) {
	instrument, _ := cmd.Flags().GetString("instrument")
	side, _ := cmd.Flags().GetString("side")
	orderType, _ := cmd.Flags().GetString("type")
	product, _ := cmd.Flags().GetString("product")
	variety, _ := cmd.Flags().GetString("variety")
	validity, _ := cmd.Flags().GetString("validity")
	qty, _ := cmd.Flags().GetInt("qty")
	price, _ := cmd.Flags().GetFloat64("price")
	trigger, _ := cmd.Flags().GetFloat64("trigger")
	tag, _ := cmd.Flags().GetString("tag")

	ref, err := models.ParseInstrument(instrument)
	if err != nil {
		return models.OrderSpec{}, err
	}
	return models.OrderSpec{
		Instrument:      ref,
		TransactionType: models.TransactionType(strings.ToUpper(side)),
		OrderType:       models.OrderType(strings.ToUpper(orderType)),
		Product:         models.Product(strings.ToUpper(product)),
		Variety:         models.Variety(strings.ToLower(variety)),
		Validity:        models.Validity(strings.ToUpper(validity)),
		Quantity:        qty,
		Price:           price,
		TriggerPrice:    trigger,
		Tag:             tag,
	}, nil
}

// modifySpecFromFlags keeps only the flags given on the command line. A
// defaulted --type or --validity would otherwise overwrite the order's own.
func modifySpecFromFlags(cmd *cobra.Command) (models.OrderSpec, error) {
	var spec models.OrderSpec
	flags := cmd.Flags()
	if flags.Changed("instrument") {
		instrument, _ := flags.GetString("instrument")
		ref, err := models.ParseInstrument(instrument)
		if err != nil {
			return models.OrderSpec{}, err
		}
		spec.Instrument = ref
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		spec.OrderType = models.OrderType(strings.ToUpper(v))
	}
	if flags.Changed("variety") {
		v, _ := flags.GetString("variety")
		spec.Variety = models.Variety(strings.ToLower(v))
	}
	if flags.Changed("validity") {
		v, _ := flags.GetString("validity")
		spec.Validity = models.Validity(strings.ToUpper(v))
	}
	spec.Quantity, _ = flags.GetInt("qty")
	spec.Price, _ = flags.GetFloat64("price")
	spec.TriggerPrice, _ = flags.GetFloat64("trigger")
	return spec, nil
}

func addOrderFlags(cmd *cobra.Command) {
	cmd.Flags().String("instrument", "", "instrument as EXCHANGE:SYMBOL")
	cmd.Flags().String("side", "BUY", "BUY or SELL")
	cmd.Flags().String("type", string(models.OrderTypeMarket), "MARKET, LIMIT, SL or SL-M")
	cmd.Flags().String("product", string(models.ProductCNC), "CNC, MIS or NRML")
	cmd.Flags().String("variety", string(models.VarietyRegular), "regular, amo, co, iceberg or auction")
	cmd.Flags().String("validity", string(models.ValidityDay), "DAY, IOC or TTL")
	cmd.Flags().Int("qty", 0, "quantity")
	cmd.Flags().Float64("price", 0, "limit price")
	cmd.Flags().Float64("trigger", 0, "trigger price for SL and SL-M")
	cmd.Flags().String("tag", "", "order tag")
}

func newOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List, place and track orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			orders, err := f.Orders(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No orders today")
				return nil
			}
			renderOrders(output, orders)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "history <order-id>",
		Short: "Show every state an order passed through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			history, err := f.OrderHistory(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(history)
			}
			table := NewTable(output, "TIME", "STATUS", "RAW", "FILLED", "PENDING", "MESSAGE")
			for _, o := range history {
				table.AddRow(formatTime(o.OrderTimestamp), output.OrderStatus(string(o.Status)), o.RawStatus,
					strconv.Itoa(o.FilledQuantity), strconv.Itoa(o.PendingQuantity), o.StatusMessage)
			}
			table.Render()
			return nil
		},
	})

	place := &cobra.Command{
		Use:   "place",
		Short: "Place an order",
		Example: `  stockdata orders place --instrument NSE:INFY --side BUY --qty 1
  stockdata orders place --instrument NSE:INFY --type LIMIT --price 1500 --qty 5 --product MIS`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			spec, err := orderSpecFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			res, err := f.PlaceOrder(ctx, spec)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Success("✓ Order placed: %s", res.OrderID)
			return nil
		},
	}
	addOrderFlags(place)
	cmd.AddCommand(place)

	modify := &cobra.Command{
		Use:     "modify <order-id>",
		Short:   "Modify an open order",
		Example: `  stockdata orders modify 240101000000001 --price 1490 --qty 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			spec, err := modifySpecFromFlags(cmd)
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			res, err := f.ModifyOrder(ctx, args[0], spec)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Success("✓ Order modified: %s", res.OrderID)
			return nil
		},
	}
	addOrderFlags(modify)
	cmd.AddCommand(modify)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			res, err := f.CancelOrder(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			if res.Status != "" && res.Status != models.StatusCancelled {
				output.Warning("Order %s already %s", res.OrderID, res.Status)
				return nil
			}
			output.Success("✓ Order cancelled: %s", res.OrderID)
			return nil
		},
	})

	wait := &cobra.Command{
		Use:     "wait <order-id>",
		Short:   "Poll an order until it completes, is cancelled or is rejected",
		Example: `  stockdata orders wait 240101000000001 --interval 2s --timeout 5m`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			interval, _ := cmd.Flags().GetDuration("interval")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := commandContext(cmd, timeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			order, err := f.AwaitOrder(ctx, args[0], interval)
			if err != nil {
				if order.OrderID != "" && !output.IsJSON() {
					output.Dim("Last seen: %s", order.Status)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(order)
			}
			output.Printf("Order %s %s", order.OrderID, output.OrderStatus(string(order.Status)))
			if order.FilledQuantity > 0 {
				output.Printf("  %d @ %s", order.FilledQuantity, utils.FormatPrice(order.AveragePrice))
			}
			output.Println()
			if order.StatusMessage != "" {
				output.Dim("%s", order.StatusMessage)
			}
			return nil
		},
	}
	wait.Flags().Duration("interval", marketdata.DefaultPollInterval, "poll interval")
	wait.Flags().Duration("timeout", 5*time.Minute, "give up after this long")
	cmd.AddCommand(wait)

	return cmd
}

func newTradesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trades [order-id]",
		Short: "List the day's fills, or those of one order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			var trades []models.Trade
			if len(args) == 1 {
				trades, err = f.OrderTrades(ctx, args[0])
			} else {
				trades, err = f.Trades(ctx)
			}
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades")
				return nil
			}
			table := NewTable(output, "TRADE ID", "ORDER ID", "TIME", "INSTRUMENT", "SIDE", "QTY", "PRICE")
			for _, t := range trades {
				table.AddRow(t.TradeID, t.OrderID, formatTime(t.FillTimestamp), t.Instrument.Key(),
					string(t.TransactionType), strconv.Itoa(t.Quantity), utils.FormatPrice(t.AveragePrice))
			}
			table.Render()
			return nil
		},
	}
}

func parseTriggerID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("trigger_id", s, "must be a positive integer")
	}
	return id, nil
}

func formatTriggers(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = utils.FormatPrice(v)
	}
	return strings.Join(parts, " / ")
}

func newGTTCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gtt",
		Short: "Manage good-till-triggered orders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List GTT triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			triggers, err := f.GTTs(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(triggers)
			}
			if len(triggers) == 0 {
				output.Dim("No GTT triggers")
				return nil
			}
			table := NewTable(output, "ID", "TYPE", "INSTRUMENT", "TRIGGERS", "LEGS", "STATUS", "EXPIRES")
			for _, g := range triggers {
				table.AddRow(strconv.Itoa(g.TriggerID), string(g.Type), g.Condition.Instrument.Key(),
					formatTriggers(g.Condition.TriggerValues), strconv.Itoa(len(g.Orders)), g.Status, formatTime(g.ExpiresAt))
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <trigger-id>",
		Short: "Show one GTT trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			id, err := parseTriggerID(args[0])
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			g, err := f.GTT(ctx, id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(g)
			}
			output.Bold("GTT %d (%s) %s", g.TriggerID, g.Type, g.Status)
			output.Printf("  Instrument: %s\n", g.Condition.Instrument.Key())
			output.Printf("  Triggers:   %s\n", formatTriggers(g.Condition.TriggerValues))
			output.Printf("  Expires:    %s\n", formatTime(g.ExpiresAt))
			for i, leg := range g.Orders {
				output.Printf("  Leg %d:      %s %d %s @ %s (%s)\n", i+1, leg.TransactionType, leg.Quantity,
					leg.OrderType, utils.FormatPrice(leg.Price), leg.Product)
			}
			return nil
		},
	})

	place := &cobra.Command{
		Use:   "place",
		Short: "Create a single or two-leg (OCO) trigger",
		Long: `Create a GTT. One --trigger makes a single trigger; two make a two-leg
OCO (stop-loss first, target second). Give one --price per trigger.`,
		Example: `  stockdata gtt place --instrument NSE:INFY --trigger 1400 --price 1398 --side SELL --qty 10 --last-price 1500
  stockdata gtt place --instrument NSE:INFY --trigger 1400,1700 --price 1398,1702 --side SELL --qty 10 --last-price 1500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			spec, err := gttSpecFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			id, err := f.PlaceGTT(ctx, spec)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"trigger_id": id})
			}
			output.Success("✓ GTT created: %d", id)
			return nil
		},
	}
	place.Flags().String("instrument", "", "instrument as EXCHANGE:SYMBOL")
	place.Flags().Float64Slice("trigger", nil, "trigger price(s)")
	place.Flags().Float64Slice("price", nil, "limit price per leg")
	place.Flags().Float64("last-price", 0, "current price of the instrument")
	place.Flags().String("side", "SELL", "BUY or SELL")
	place.Flags().String("product", string(models.ProductCNC), "CNC, MIS or NRML")
	place.Flags().Int("qty", 0, "quantity per leg")
	cmd.AddCommand(place)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <trigger-id>",
		Short: "Delete a GTT trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			id, err := parseTriggerID(args[0])
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			deleted, err := f.DeleteGTT(ctx, id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"trigger_id": deleted})
			}
			output.Success("✓ GTT deleted: %d", deleted)
			return nil
		},
	})

	return cmd
}

func gttSpecFromFlags(cmd *cobra.Command) (models.GTTSpec, error) {
	instrument, _ := cmd.Flags().GetString("instrument")
	triggers, _ := cmd.Flags().GetFloat64Slice("trigger")
	prices, _ := cmd.Flags().GetFloat64Slice("price")
	lastPrice, _ := cmd.Flags().GetFloat64("last-price")
	side, _ := cmd.Flags().GetString("side")
	product, _ := cmd.Flags().GetString("product")
	qty, _ := cmd.Flags().GetInt("qty")

	ref, err := models.ParseInstrument(instrument)
	if err != nil {
		return models.GTTSpec{}, err
	}
	if len(prices) != len(triggers) {
		return models.GTTSpec{}, apperrors.NewValidationError("price", prices, "give one --price per --trigger")
	}

	spec := models.GTTSpec{
		Type: models.GTTSingle,
		Condition: models.GTTCondition{
			Instrument:    ref,
			TriggerValues: triggers,
			LastPrice:     lastPrice,
		},
	}
	if len(triggers) == 2 {
		spec.Type = models.GTTTwoLeg
	}
	for _, p := range prices {
		spec.Orders = append(spec.Orders, models.GTTOrderLeg{
			TransactionType: models.TransactionType(strings.ToUpper(side)),
			OrderType:       models.OrderTypeLimit,
			Product:         models.Product(strings.ToUpper(product)),
			Quantity:        qty,
			Price:           p,
		})
	}
	return spec, nil
}

func newMFCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mf",
		Short: "Mutual-fund orders, SIPs and holdings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "orders",
		Short: "List mutual-fund orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			orders, err := f.MFOrders(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			table := NewTable(output, "ORDER ID", "TIME", "FUND", "SIDE", "AMOUNT", "UNITS", "STATUS")
			for _, o := range orders {
				table.AddRow(o.OrderID, formatTime(o.OrderTimestamp), o.TradingSymbol, string(o.TransactionType),
					utils.FormatIndianCurrency(o.Amount), strconv.FormatFloat(o.Quantity, 'f', 3, 64),
					output.OrderStatus(o.Status))
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sips",
		Short: "List SIPs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			sips, err := f.MFSIPs(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sips)
			}
			table := NewTable(output, "SIP ID", "FUND", "FREQUENCY", "AMOUNT", "PENDING", "NEXT", "STATUS")
			for _, s := range sips {
				table.AddRow(s.SIPID, s.TradingSymbol, s.Frequency, utils.FormatIndianCurrency(s.InstalmentAmount),
					strconv.Itoa(s.PendingInstalments), formatTime(s.NextInstalment), s.Status)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "holdings",
		Short: "List mutual-fund holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			holdings, err := f.MFHoldings(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(holdings)
			}
			table := NewTable(output, "FOLIO", "FUND", "UNITS", "AVG NAV", "NAV", "P&L")
			for _, h := range holdings {
				table.AddRow(h.Folio, h.TradingSymbol, strconv.FormatFloat(h.Quantity, 'f', 3, 64),
					utils.FormatPrice(h.AveragePrice), utils.FormatPrice(h.LastPrice), output.FormatPnL(h.PnL))
			}
			table.Render()
			return nil
		},
	})

	buy := &cobra.Command{
		Use:     "place <fund>",
		Short:   "Buy by amount or redeem by units",
		Example: "  stockdata mf place INF740K01DP8 --amount 5000\n  stockdata mf place INF740K01DP8 --side SELL --units 12.5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			side, _ := cmd.Flags().GetString("side")
			amount, _ := cmd.Flags().GetFloat64("amount")
			units, _ := cmd.Flags().GetFloat64("units")
			tag, _ := cmd.Flags().GetString("tag")

			f, err := app.Facade()
			if err != nil {
				return err
			}
			id, err := f.PlaceMFOrder(ctx, models.MFOrderSpec{
				TradingSymbol:   strings.ToUpper(args[0]),
				TransactionType: models.TransactionType(strings.ToUpper(side)),
				Amount:          amount,
				Quantity:        units,
				Tag:             tag,
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"order_id": id})
			}
			output.Success("✓ MF order placed: %s", id)
			return nil
		},
	}
	buy.Flags().String("side", string(models.Buy), "BUY or SELL")
	buy.Flags().Float64("amount", 0, "purchase amount (BUY)")
	buy.Flags().Float64("units", 0, "units to redeem (SELL)")
	buy.Flags().String("tag", "", "order tag")
	cmd.AddCommand(buy)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel-order <order-id>",
		Short: "Cancel a pending mutual-fund order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			id, err := f.CancelMFOrder(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"order_id": id})
			}
			output.Success("✓ MF order cancelled: %s", id)
			return nil
		},
	})

	sip := &cobra.Command{
		Use:     "sip <fund>",
		Short:   "Start a SIP",
		Example: "  stockdata mf sip INF740K01DP8 --amount 2000 --instalments 12 --frequency monthly --day 5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			spec, err := sipSpecFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			id, err := f.PlaceMFSIP(ctx, spec)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"sip_id": id})
			}
			output.Success("✓ SIP registered: %s", id)
			return nil
		},
	}
	addSIPFlags(sip)
	sip.Flags().Float64("initial-amount", 0, "first instalment amount")
	cmd.AddCommand(sip)

	modifySIP := &cobra.Command{
		Use:     "modify-sip <sip-id>",
		Short:   "Change or pause a SIP",
		Example: "  stockdata mf modify-sip 892741486820670 --amount 3000 --status paused",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			spec, err := sipSpecFromFlags(cmd, "")
			if err != nil {
				return err
			}
			f, err := app.Facade()
			if err != nil {
				return err
			}
			id, err := f.ModifyMFSIP(ctx, args[0], spec)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"sip_id": id})
			}
			output.Success("✓ SIP modified: %s", id)
			return nil
		},
	}
	addSIPFlags(modifySIP)
	modifySIP.Flags().String("status", "", "active or paused")
	cmd.AddCommand(modifySIP)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel-sip <sip-id>",
		Short: "Cancel a SIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			f, err := app.Facade()
			if err != nil {
				return err
			}
			id, err := f.CancelMFSIP(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"sip_id": id})
			}
			output.Success("✓ SIP cancelled: %s", id)
			return nil
		},
	})

	return cmd
}

func addSIPFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("amount", 0, "instalment amount")
	cmd.Flags().Int("instalments", -1, "number of instalments (-1 for perpetual)")
	cmd.Flags().String("frequency", "monthly", "weekly, monthly or quarterly")
	cmd.Flags().Int("day", 0, "instalment day of month")
	cmd.Flags().String("tag", "", "SIP tag")
}

func sipSpecFromFlags(cmd *cobra.Command, fund string) (models.MFSIPSpec, error) {
	amount, _ := cmd.Flags().GetFloat64("amount")
	instalments, _ := cmd.Flags().GetInt("instalments")
	frequency, _ := cmd.Flags().GetString("frequency")
	day, _ := cmd.Flags().GetInt("day")
	tag, _ := cmd.Flags().GetString("tag")

	spec := models.MFSIPSpec{
		TradingSymbol: strings.ToUpper(fund),
		Amount:        amount,
		Instalments:   instalments,
		Frequency:     strings.ToLower(frequency),
		InstalmentDay: day,
		Tag:           tag,
	}
	if cmd.Flags().Lookup("initial-amount") != nil {
		spec.InitialAmount, _ = cmd.Flags().GetFloat64("initial-amount")
	}
	if cmd.Flags().Lookup("status") != nil {
		spec.Status, _ = cmd.Flags().GetString("status")
	}
	if day < 0 || day > 28 {
		return spec, apperrors.NewValidationError("day", day, "instalment day must be between 1 and 28")
	}
	return spec, nil
}
