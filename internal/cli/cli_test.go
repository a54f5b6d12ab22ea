package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/config"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
)

const (
	quoteBody = `{"status":"success","data":{
		"NSE:RELIANCE":{"instrument_token":738561,"last_price":2456.75,"volume":1200345,"net_change":6.75,
			"ohlc":{"open":2440,"high":2460.5,"low":2435,"close":2450}},
		"NSE:TCS":{"instrument_token":2953217,"last_price":3890.1,"volume":350000,"net_change":-4.2,
			"ohlc":{"open":3900,"high":3910,"low":3880,"close":3894.3}}
	}}`
	completedHistory = `{"status":"success","data":[
		{"order_id":"X1","status":"OPEN","tradingsymbol":"INFY","exchange":"NSE","variety":"regular","order_timestamp":"2024-06-05 09:20:00"},
		{"order_id":"X1","status":"COMPLETE","tradingsymbol":"INFY","exchange":"NSE","variety":"regular","filled_quantity":5,"average_price":1501.5,"order_timestamp":"2024-06-05 09:20:02"}
	]}`
)

// kiteServer is a minimal Kite Connect stand-in that counts requests.
type kiteServer struct {
	*httptest.Server
	mux      *http.ServeMux
	requests atomic.Int32
}

func newKiteServer(t *testing.T) *kiteServer {
	t.Helper()
	k := &kiteServer{mux: http.NewServeMux()}
	k.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.requests.Add(1)
		k.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(k.Close)
	return k
}

func (k *kiteServer) json(pattern, body string) {
	k.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	for _, k := range []string{
		"ZERODHA_API_KEY", "ZERODHA_ACCESS_TOKEN", "ZERODHA_API_SECRET",
		"ZERODHA_TOTP_SECRET", "ZERODHA_USER_ID", "STOCKDATA_PROVIDER",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	cfg.Zerodha.BaseURL = baseURL
	cfg.Zerodha.RateLimits = config.RateLimits{MarketData: 1000, Orders: 1000, Historical: 1000, Portfolio: 1000, Default: 1000}
	cfg.HTTP.RetryDelay = time.Millisecond
	cfg.Security.AuditDir = filepath.Join(dir, "audit")
	cfg.Credentials.Zerodha.APIKey = "kitefront"
	cfg.Credentials.Zerodha.AccessToken = "acc3ss"
	return cfg
}

func run(t *testing.T, app *App, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), app, args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestQuote_RendersTableInArgumentOrder(t *testing.T) {
	k := newKiteServer(t)
	k.json("GET /quote", quoteBody)
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	stdout, stderr, code := run(t, app, "quote", "NSE:TCS", "reliance.ns")
	require.Equal(t, 0, code, stderr)

	tcs := strings.Index(stdout, "NSE:TCS")
	rel := strings.Index(stdout, "NSE:RELIANCE")
	require.True(t, tcs >= 0 && rel > tcs, stdout)
	require.Contains(t, stdout, "2,456.75")
	require.Contains(t, stdout, "+0.28%")
	require.Contains(t, stdout, "-0.11%")
	require.Contains(t, stdout, "12.00L")
}

func TestQuote_JSONOutput(t *testing.T) {
	k := newKiteServer(t)
	k.json("GET /quote", quoteBody)
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	stdout, stderr, code := run(t, app, "quote", "NSE:RELIANCE", "NSE:TCS", "--json")
	require.Equal(t, 0, code, stderr)

	var quotes map[string]models.Quote
	require.NoError(t, json.Unmarshal([]byte(stdout), &quotes))
	require.Equal(t, 2456.75, quotes["NSE:RELIANCE"].LastPrice)
	require.Equal(t, 3894.3, quotes["NSE:TCS"].OHLC.Close)
}

func TestQuote_InvalidKeyFailsBeforeAnyRequest(t *testing.T) {
	k := newKiteServer(t)
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	_, stderr, code := run(t, app, "quote", "NSE:")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr, "ValidationError:"), stderr)
	require.Zero(t, k.requests.Load())
}

func TestHistory_WritesCSV(t *testing.T) {
	k := newKiteServer(t)
	k.json("GET /instruments/historical/738561/day", `{"status":"success","data":{"candles":[
		["2024-06-04T00:00:00+0530",2400,2450,2390,2440,5000000],
		["2024-06-05T00:00:00+0530",2440,2460,2435,2456,4200000]
	]}}`)
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	stdout, stderr, code := run(t, app, "history", "738561", "--from", "2024-06-04", "--to", "2024-06-05 15:30", "--csv")
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "date,open,high,low,close,volume,oi", lines[0])
	require.True(t, strings.HasPrefix(lines[2], "2024-06-05T00:00:00+05:30,"), lines[2])
}

func TestHistory_RejectsBadDate(t *testing.T) {
	app := NewApp(testConfig(t, "https://api.kite.test"), zerolog.Nop())

	_, stderr, code := run(t, app, "history", "738561", "--from", "04/06/2024")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ValidationError")
}

func TestOrdersWait_ReportsTerminalState(t *testing.T) {
	k := newKiteServer(t)
	k.json("GET /orders/X1", completedHistory)
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	stdout, stderr, code := run(t, app, "orders", "wait", "X1", "--interval", "10ms", "--timeout", "5s")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Order X1 COMPLETE")
	require.Contains(t, stdout, "5 @ 1,501.50")
}

func TestReadOnly_BlocksWritesAndAudits(t *testing.T) {
	k := newKiteServer(t)
	cfg := testConfig(t, k.URL)
	cfg.Security.ReadOnly = true
	app := NewApp(cfg, zerolog.Nop())

	_, stderr, code := run(t, app, "orders", "place", "--instrument", "NSE:INFY", "--qty", "1")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr, "ReadOnlyError:"), stderr)
	require.Zero(t, k.requests.Load())

	data, err := os.ReadFile(filepath.Join(cfg.Security.AuditDir, "audit.log"))
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &event))
	require.Equal(t, "PLACE_ORDER", event["operation"])
	require.Equal(t, "NSE:INFY", event["instrument"])
	require.Equal(t, true, event["blocked"])
}

func TestPlaceOrder_ValidatesBeforeSending(t *testing.T) {
	k := newKiteServer(t)
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	_, stderr, code := run(t, app, "orders", "place", "--instrument", "NSE:INFY", "--type", "LIMIT", "--qty", "5")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ValidationError")
	require.Zero(t, k.requests.Load())
}

func TestOrdersModify_SendsOnlyGivenFields(t *testing.T) {
	k := newKiteServer(t)
	k.json("GET /orders/X2", `{"status":"success","data":[
		{"order_id":"X2","status":"OPEN","tradingsymbol":"INFY","exchange":"NSE","variety":"amo","order_type":"LIMIT"}
	]}`)
	var form atomic.Value
	k.mux.HandleFunc("PUT /orders/amo/X2", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form.Store(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success","data":{"order_id":"X2"}}`)
	})
	app := NewApp(testConfig(t, k.URL), zerolog.Nop())

	stdout, stderr, code := run(t, app, "orders", "modify", "X2", "--price", "1490")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Order modified: X2")

	sent := form.Load().(url.Values)
	require.Equal(t, "1490", sent.Get("price"))
	require.NotContains(t, sent, "order_type")
	require.NotContains(t, sent, "validity")
}

func TestZerodha_WithoutSessionIsConfigurationError(t *testing.T) {
	cfg := testConfig(t, "https://api.kite.test")
	cfg.Credentials.Zerodha.AccessToken = ""
	app := NewApp(cfg, zerolog.Nop())

	_, stderr, code := run(t, app, "ltp", "NSE:INFY")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr, "ConfigurationError:"), stderr)
	require.Contains(t, stderr, "auth login")
}

func TestYahoo_UnsupportedOperationSurfacesKind(t *testing.T) {
	cfg := testConfig(t, "https://api.kite.test")
	cfg.Credentials.Zerodha = config.ZerodhaCredentials{}
	app := NewApp(cfg, zerolog.Nop())

	_, stderr, code := run(t, app, "--provider", "yahoo", "holdings")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr, "UnsupportedOperationError:"), stderr)
}

func TestAuthStatus_UsesStoredSession(t *testing.T) {
	cfg := testConfig(t, "https://api.kite.test")
	cfg.Credentials.Zerodha.AccessToken = ""
	app := NewApp(cfg, zerolog.Nop())

	stdout, _, code := run(t, app, "auth", "status", "--json")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, `"authenticated": false`)

	cred, err := auth.NewKiteCredential("kitefront", "st0redtoken")
	require.NoError(t, err)
	require.NoError(t, app.Tokens.Save(cred, "AB1234"))

	stdout, _, code = run(t, app, "auth", "status", "--json")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, `"authenticated": true`)
	require.NotContains(t, stdout, "st0redtoken")
}

func TestAuthLogout_LogsThroughCommandLogger(t *testing.T) {
	k := newKiteServer(t)
	k.mux.HandleFunc("DELETE /session/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"status":"error","message":"upstream down","error_type":"GeneralException"}`)
	})
	var logs bytes.Buffer
	app := NewApp(testConfig(t, k.URL), zerolog.New(&logs))

	stdout, stderr, code := run(t, app, "auth", "logout", "--json")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, `"logged_out": true`)
	require.Contains(t, logs.String(), "Failed to invalidate access token")
	require.NotContains(t, logs.String(), "acc3ss")
}

func TestConfigInitAndShow(t *testing.T) {
	cfg := testConfig(t, "https://api.kite.test")
	cfg.Credentials.Zerodha.APISecret = "sup3rsecret"
	app := NewApp(cfg, zerolog.Nop())

	stdout, stderr, code := run(t, app, "config", "init")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "config.toml")
	require.FileExists(t, filepath.Join(cfg.Dir, "credentials.toml"))

	stdout, _, code = run(t, app, "config", "show", "--json")
	require.Equal(t, 0, code)
	require.NotContains(t, stdout, "sup3rsecret")
	require.NotContains(t, stdout, "acc3ss")
}

func TestStatus_ReportsMarketState(t *testing.T) {
	app := NewApp(testConfig(t, "https://api.kite.test"), zerolog.Nop())
	// Wednesday 10:00 IST
	app.Now = func() time.Time { return time.Date(2024, 6, 5, 4, 30, 0, 0, time.UTC) }

	stdout, _, code := run(t, app, "status", "--json")
	require.Equal(t, 0, code)

	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &status))
	require.Equal(t, "OPEN", status["market"])
	require.Equal(t, "zerodha", status["provider"])
	require.Equal(t, true, status["kite_active"])
	require.Equal(t, "blocking", status["rate_mode"])
}

func TestNonBlockingFlagReachesGovernor(t *testing.T) {
	k := newKiteServer(t)
	k.json("GET /quote", quoteBody)
	cfg := testConfig(t, k.URL)
	cfg.Zerodha.RateLimits.MarketData = 1
	cfg.Zerodha.RateWindow = time.Hour
	app := NewApp(cfg, zerolog.Nop())

	_, stderr, code := run(t, app, "quote", "NSE:TCS", "--non-blocking")
	require.Equal(t, 0, code, stderr)

	_, stderr, code = run(t, app, "quote", "NSE:TCS", "--non-blocking")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr, "RateLimitedError:"), stderr)
	require.Equal(t, int32(1), k.requests.Load())
}

func TestReportError_MasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	err := apperrors.Wrap(errors.New("rejected access_token=abcdef123456"), "login failed")
	ReportError(&buf, err)
	require.NotContains(t, buf.String(), "abcdef123456")
	require.True(t, strings.HasPrefix(buf.String(), "Error: "))

	buf.Reset()
	ReportError(&buf, apperrors.NewRateLimitedError(string(ratelimit.Orders), time.Second))
	require.True(t, strings.HasPrefix(buf.String(), "RateLimitedError: "))
}
