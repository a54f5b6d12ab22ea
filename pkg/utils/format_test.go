package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var indianGrouping = regexp.MustCompile(`^(\d{1,2},)*\d{1,3}$`)

// Property: FormatIndianCurrency keeps two decimals, groups digits the
// Indian way and preserves the value.
func TestProperty_IndianCurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("currency format round-trips", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)

			if (amount < 0) != strings.HasPrefix(formatted, "-") {
				return false
			}
			body := strings.TrimPrefix(formatted, "-")
			if !strings.HasPrefix(body, "₹") {
				return false
			}
			intPart, decPart, ok := strings.Cut(strings.TrimPrefix(body, "₹"), ".")
			if !ok || len(decPart) != 2 || !indianGrouping.MatchString(intPart) {
				return false
			}

			parsed, err := strconv.ParseFloat(strings.ReplaceAll(intPart, ",", "")+"."+decPart, 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-math.Abs(amount)) <= 0.005+1e-9*math.Abs(amount)
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("volume uses the matching unit", prop.ForAll(
		func(volume int64) bool {
			formatted := FormatVolume(volume)
			switch {
			case volume >= 10000000:
				return strings.HasSuffix(formatted, "Cr")
			case volume >= 100000:
				return strings.HasSuffix(formatted, "L")
			case volume >= 1000:
				return strings.HasSuffix(formatted, "K")
			}
			return formatted == strconv.FormatInt(volume, 10)
		},
		gen.Int64Range(0, 1e12),
	))

	properties.TestingRun(t)
}

func TestFormatIndianCurrencyExamples(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "₹0.00"},
		{1000, "₹1,000.00"},
		{100000, "₹1,00,000.00"},
		{10000000, "₹1,00,00,000.00"},
		{-1234.56, "-₹1,234.56"},
		{12345678.90, "₹1,23,45,678.90"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatIndianCurrency(tt.amount))
	}
}

func TestFormatHelpers(t *testing.T) {
	require.Equal(t, "+1.50%", FormatPercent(1.5))
	require.Equal(t, "-2.50%", FormatPercent(-2.5))
	require.Equal(t, "0.00%", FormatPercent(0))

	require.Equal(t, "+₹1,500.00", FormatPnL(1500))
	require.Equal(t, "-₹20.00", FormatPnL(-20))

	require.Equal(t, "12,34,567", FormatQuantity(1234567))
	require.Equal(t, "-1,000", FormatQuantity(-1000))

	require.Equal(t, "2.50 Cr", FormatCompact(25000000))
	require.Equal(t, "1.50 L", FormatCompact(150000))
	require.Equal(t, "₹999.00", FormatCompact(999))

	require.Equal(t, "2,456.75", FormatPrice(2456.75))
}
