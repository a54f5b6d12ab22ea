package marketdata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/broker"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
)

// kiteCancelHistory is what Kite returns for an order cancelled by the user,
// one more entry per poll.
var kiteCancelHistory = []string{
	`{"order_id":"X1","status":"PUT ORDER REQ RECEIVED","tradingsymbol":"INFY","exchange":"NSE","variety":"regular"}`,
	`{"order_id":"X1","status":"OPEN","tradingsymbol":"INFY","exchange":"NSE","variety":"regular"}`,
	`{"order_id":"X1","status":"CANCEL PENDING","tradingsymbol":"INFY","exchange":"NSE","variety":"regular"}`,
	`{"order_id":"X1","status":"CANCELLED","tradingsymbol":"INFY","exchange":"NSE","variety":"regular"}`,
}

func TestAwaitOrder_KiteCancelSequence(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/X1", r.URL.Path)
		n := int(polls.Add(1)) + 1
		if n > len(kiteCancelHistory) {
			n = len(kiteCancelHistory)
		}
		body := `{"status":"success","data":[`
		for i, entry := range kiteCancelHistory[:n] {
			if i > 0 {
				body += ","
			}
			body += entry
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body+`]}`)
	}))
	defer srv.Close()

	cred, err := auth.NewKiteCredential("kitefront", "acc3ss")
	require.NoError(t, err)
	kite, err := broker.NewZerodhaBroker(broker.ZerodhaConfig{
		BaseURL:    srv.URL,
		Credential: cred,
		Governor:   ratelimit.New(ratelimit.Limits{ratelimit.Default: 1000}),
		RetryDelay: 1,
		Meter:      noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)
	f, err := New([]broker.Provider{kite})
	require.NoError(t, err)

	got, err := f.AwaitOrder(context.Background(), "X1", time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, got.Status)
	require.Equal(t, "CANCELLED", got.RawStatus)
	require.EqualValues(t, 3, polls.Load())
}
