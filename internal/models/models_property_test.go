package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

var allStatuses = []OrderStatus{
	StatusPlaced, StatusOpen, StatusModified, StatusComplete, StatusCancelled, StatusRejected,
}

// Property: terminal states admit no transition other than observing the
// same state again.
func TestProperty_TerminalStatesAreAbsorbing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	statusGen := gen.OneConstOf(
		StatusPlaced, StatusOpen, StatusModified, StatusComplete, StatusCancelled, StatusRejected,
	)

	properties.Property("terminal state only transitions to itself", prop.ForAll(
		func(from, to OrderStatus) bool {
			if !from.IsTerminal() {
				return true
			}
			return from.CanTransition(to) == (from == to)
		},
		statusGen, statusGen,
	))

	properties.TestingRun(t)
}

// Property: any exchange/symbol pair survives a Key/ParseInstrument round trip.
func TestProperty_InstrumentKeyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("EXCHANGE:SYMBOL parses back to the same reference", prop.ForAll(
		func(exch Exchange, sym string) bool {
			ref := InstrumentRef{Exchange: exch, TradingSymbol: sym}
			parsed, err := ParseInstrument(ref.Key())
			return err == nil && parsed == ref
		},
		gen.OneConstOf(NSE, BSE, NFO, MCX, CDS),
		gen.RegexMatch(`[A-Z][A-Z0-9&-]{0,15}`),
	))

	properties.TestingRun(t)
}

func TestOrderLifecycle(t *testing.T) {
	require.True(t, StatusPlaced.CanTransition(StatusOpen))
	require.True(t, StatusPlaced.CanTransition(StatusRejected))
	require.False(t, StatusPlaced.CanTransition(StatusComplete))
	require.True(t, StatusOpen.CanTransition(StatusModified))
	require.True(t, StatusModified.CanTransition(StatusOpen))
	require.False(t, StatusModified.CanTransition(StatusComplete))
	require.False(t, StatusCancelled.CanTransition(StatusOpen))

	for _, s := range allStatuses {
		require.Equal(t, s == StatusComplete || s == StatusCancelled || s == StatusRejected, s.IsTerminal(), s)
	}
}

func TestParseOrderStatus(t *testing.T) {
	tests := map[string]OrderStatus{
		"COMPLETE":                  StatusComplete,
		"REJECTED":                  StatusRejected,
		"CANCELLED":                 StatusCancelled,
		"CANCELLED AMO":             StatusCancelled,
		"OPEN":                      StatusOpen,
		"TRIGGER PENDING":           StatusOpen,
		"MODIFY VALIDATION PENDING": StatusModified,
		"PUT ORDER REQ RECEIVED":    StatusPlaced,
		"VALIDATION PENDING":        StatusPlaced,
		"OPEN PENDING":              StatusPlaced,
		"CANCEL PENDING":            StatusOpen,
		"modify pending":            StatusModified,
		"SOMETHING NEW":             StatusPlaced,
	}
	for raw, want := range tests {
		require.Equal(t, want, ParseOrderStatus(raw), raw)
	}
}

func TestFollowOrderStatus(t *testing.T) {
	history := []string{"PUT ORDER REQ RECEIVED", "OPEN", "CANCEL PENDING", "CANCELLED"}
	prev := ParseOrderStatus(history[0])
	for _, raw := range history[1:] {
		next := FollowOrderStatus(prev, raw)
		require.True(t, prev.CanTransition(next), "%s -> %s (%s)", prev, next, raw)
		prev = next
	}
	require.Equal(t, StatusCancelled, prev)

	require.Equal(t, StatusOpen, FollowOrderStatus(StatusOpen, "UPDATE"))
	require.Equal(t, StatusModified, FollowOrderStatus(StatusModified, "UPDATE"))
	require.Equal(t, StatusPlaced, FollowOrderStatus(StatusPlaced, "UPDATE"))
	require.Equal(t, StatusComplete, FollowOrderStatus(StatusOpen, "COMPLETE"))
}

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		in   string
		want InstrumentRef
	}{
		{"NSE:RELIANCE", InstrumentRef{Exchange: NSE, TradingSymbol: "RELIANCE"}},
		{"nse:infy", InstrumentRef{Exchange: NSE, TradingSymbol: "INFY"}},
		{"738561", InstrumentRef{Token: 738561}},
		{"AAPL", InstrumentRef{TradingSymbol: "AAPL"}},
		{"TATAMOTORS.NS", InstrumentRef{Exchange: NSE, TradingSymbol: "TATAMOTORS"}},
		{"reliance.bo", InstrumentRef{Exchange: BSE, TradingSymbol: "RELIANCE"}},
	}
	for _, tt := range tests {
		got, err := ParseInstrument(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "  ", "NSE:", ":TCS", "0"} {
		_, err := ParseInstrument(bad)
		require.ErrorIs(t, err, apperrors.ErrInputValidation, bad)
	}
}

func TestOrderSpecValidate(t *testing.T) {
	base := OrderSpec{
		Instrument:      InstrumentRef{Exchange: NSE, TradingSymbol: "INFY"},
		TransactionType: Buy,
		OrderType:       OrderTypeMarket,
		Product:         ProductCNC,
		Quantity:        1,
	}
	require.NoError(t, base.Validate())

	limit := base
	limit.OrderType = OrderTypeLimit
	require.ErrorIs(t, limit.Validate(), apperrors.ErrInputValidation)
	limit.Price = 1500
	require.NoError(t, limit.Validate())

	slm := base
	slm.OrderType = OrderTypeStopLossM
	require.Error(t, slm.Validate())

	zero := base
	zero.Quantity = 0
	require.Error(t, zero.Validate())
}

func TestGTTSpecValidate(t *testing.T) {
	leg := GTTOrderLeg{TransactionType: Sell, OrderType: OrderTypeLimit, Product: ProductCNC, Quantity: 1, Price: 100}
	spec := GTTSpec{
		Type:      GTTTwoLeg,
		Condition: GTTCondition{Instrument: InstrumentRef{Exchange: NSE, TradingSymbol: "SBIN"}, TriggerValues: []float64{90, 120}},
		Orders:    []GTTOrderLeg{leg, leg},
	}
	require.NoError(t, spec.Validate())

	spec.Orders = spec.Orders[:1]
	require.ErrorIs(t, spec.Validate(), apperrors.ErrInputValidation)
}
