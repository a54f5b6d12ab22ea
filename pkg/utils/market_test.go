package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IndiaLocation)
}

func TestGetMarketStatus(t *testing.T) {
	// 2024-06-05 is a Wednesday.
	tests := []struct {
		at   time.Time
		want models.MarketStatus
	}{
		{ist(2024, 6, 5, 8, 59), models.MarketClosed},
		{ist(2024, 6, 5, 9, 0), models.MarketPreOpen},
		{ist(2024, 6, 5, 9, 15), models.MarketOpen},
		{ist(2024, 6, 5, 15, 5), models.MarketMISSquareOffWarn},
		{ist(2024, 6, 5, 15, 29), models.MarketOpen},
		{ist(2024, 6, 5, 15, 30), models.MarketClosed},
		{ist(2024, 6, 8, 11, 0), models.MarketClosed}, // Saturday
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, GetMarketStatus(tt.at), tt.at.String())
	}

	// UTC input is converted: 04:00 UTC is 09:30 IST.
	require.True(t, IsMarketOpen(time.Date(2024, 6, 5, 4, 0, 0, 0, time.UTC)))
}

func TestGetNextMarketOpen(t *testing.T) {
	// Friday after close rolls over the weekend to Monday.
	require.Equal(t, ist(2024, 6, 10, 9, 15), GetNextMarketOpen(ist(2024, 6, 7, 16, 0)))
	require.Equal(t, ist(2024, 6, 5, 9, 15), GetNextMarketOpen(ist(2024, 6, 5, 7, 0)))
}

func TestSessionExpiry(t *testing.T) {
	require.Equal(t, ist(2024, 6, 6, 6, 0), SessionExpiry(ist(2024, 6, 5, 8, 30)))
	require.Equal(t, ist(2024, 6, 5, 6, 0), SessionExpiry(ist(2024, 6, 5, 2, 0)))
	require.Equal(t, ist(2024, 6, 6, 6, 0), SessionExpiry(ist(2024, 6, 5, 6, 0)))
}
