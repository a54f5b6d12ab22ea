package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/mock/gomock"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/transport"
)

const testBaseURL = "https://api.kite.test"

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newClient(t *testing.T, httpClient transport.HTTPClient, opts ...transport.Option) *transport.Client {
	t.Helper()
	base := []transport.Option{
		transport.WithBaseURL(testBaseURL),
		transport.WithHTTPClient(httpClient),
		transport.WithRetryDelay(0),
		transport.WithMeter(noop.NewMeterProvider().Meter("test")),
	}
	client, err := transport.New("zerodha", append(base, opts...)...)
	require.NoError(t, err)
	return client
}

// jumpClock fires every After immediately by advancing itself.
type jumpClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *jumpClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *jumpClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := transport.New("zerodha")
	require.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, err = transport.New("zerodha", transport.WithBaseURL("not a url"))
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestDo_SendsHeadersAndQuery(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	cred, err := auth.NewKiteCredential("key", "tok")
	require.NoError(t, err)

	// Assert: the request carries auth, version header and repeated params
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/quote", req.URL.Path)
			require.Equal(t, []string{"NSE:INFY", "NSE:TCS"}, req.URL.Query()["i"])
			require.Equal(t, "token key:tok", req.Header.Get("Authorization"))
			require.Equal(t, "3", req.Header.Get("X-Kite-Version"))
			return response(http.StatusOK, `{"status":"success","data":{}}`), nil
		}).
		Times(1)

	client := newClient(t, httpClient,
		transport.WithAuthorizer(cred),
		transport.WithHeader(http.Header{"X-Kite-Version": []string{"3"}}))

	// Act
	resp, err := client.Do(t.Context(), transport.Request{
		Method:   http.MethodGet,
		Path:     "/quote",
		Query:    map[string][]string{"i": {"NSE:INFY", "NSE:TCS"}},
		Category: ratelimit.MarketData,
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, "application/json", resp.ContentType())

	var body map[string]any
	require.NoError(t, resp.DecodeJSON(&body))
	require.Equal(t, "success", body["status"])
}

func TestDo_FormBodyOnPost(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
			require.NoError(t, req.ParseForm())
			require.Equal(t, "INFY", req.PostForm.Get("tradingsymbol"))
			return response(http.StatusOK, `{"status":"success","data":{"order_id":"1"}}`), nil
		}).
		Times(1)

	client := newClient(t, httpClient)
	_, err := client.Do(t.Context(), transport.Request{
		Method: http.MethodPost,
		Path:   "/orders/regular",
		Form:   map[string][]string{"tradingsymbol": {"INFY"}},
	})
	require.NoError(t, err)
}

func TestDo_RetryPolicy(t *testing.T) {
	t.Parallel()

	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	resetErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}

	tests := []struct {
		name      string
		method    string
		first     func() (*http.Response, error)
		wantCalls int
		wantIs    error
	}{
		{
			name:      "GET 5xx retried once",
			method:    http.MethodGet,
			first:     func() (*http.Response, error) { return response(http.StatusServiceUnavailable, `{}`), nil },
			wantCalls: 2,
			wantIs:    apperrors.ErrHTTP,
		},
		{
			name:      "GET network error retried once",
			method:    http.MethodGet,
			first:     func() (*http.Response, error) { return nil, resetErr },
			wantCalls: 2,
			wantIs:    apperrors.ErrNetwork,
		},
		{
			name:   "GET 4xx not retried",
			method: http.MethodGet,
			first: func() (*http.Response, error) {
				return response(http.StatusBadRequest, `{"status":"error","message":"bad","error_type":"InputException"}`), nil
			},
			wantCalls: 1,
			wantIs:    apperrors.ErrHTTP,
		},
		{
			name:      "POST 5xx not retried",
			method:    http.MethodPost,
			first:     func() (*http.Response, error) { return response(http.StatusBadGateway, `{}`), nil },
			wantCalls: 1,
			wantIs:    apperrors.ErrHTTP,
		},
		{
			name:      "POST mid-flight network error not retried",
			method:    http.MethodPost,
			first:     func() (*http.Response, error) { return nil, resetErr },
			wantCalls: 1,
			wantIs:    apperrors.ErrNetwork,
		},
		{
			name:      "POST dial failure retried once",
			method:    http.MethodPost,
			first:     func() (*http.Response, error) { return nil, dialErr },
			wantCalls: 2,
			wantIs:    apperrors.ErrNetwork,
		},
		{
			name:      "POST 429 retried once",
			method:    http.MethodPost,
			first:     func() (*http.Response, error) { return response(http.StatusTooManyRequests, `{}`), nil },
			wantCalls: 2,
			wantIs:    apperrors.ErrHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				DoAndReturn(func(*http.Request) (*http.Response, error) { return tt.first() }).
				Times(tt.wantCalls)

			client := newClient(t, httpClient)
			_, err := client.Do(t.Context(), transport.Request{Method: tt.method, Path: "/orders/regular"})
			require.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestDo_RetrySucceeds(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	gomock.InOrder(
		httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusInternalServerError, `{}`), nil),
		httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusOK, `{"status":"success","data":[]}`), nil),
	)

	client := newClient(t, httpClient)
	resp, err := client.Do(t.Context(), transport.Request{Path: "/portfolio/holdings"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
}

func TestDo_KiteErrorEnvelope(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(response(http.StatusForbidden, `{"status":"error","message":"Incorrect api_key or access_token.","error_type":"TokenException"}`), nil).
		Times(1)

	client := newClient(t, httpClient)
	_, err := client.Do(t.Context(), transport.Request{Path: "/user/profile"})

	var httpErr *apperrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.Status)
	require.Equal(t, "TokenException", httpErr.ErrorType)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestDo_YahooErrorEnvelope(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(response(http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`), nil).
		Times(1)

	client := newClient(t, httpClient)
	_, err := client.Do(t.Context(), transport.Request{Path: "/v8/finance/chart/XXXX"})

	var httpErr *apperrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, "Not Found", httpErr.ErrorType)
	require.Contains(t, httpErr.Message, "No data found")
}

func TestDo_TimeoutIsRetriedForGet(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}).
		Times(2)

	client := newClient(t, httpClient, transport.WithTimeout(20*time.Millisecond))
	_, err := client.Do(t.Context(), transport.Request{Path: "/quote/ltp"})

	var timeoutErr *apperrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
}

func TestDo_CancellationIsNeverRetried(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			cancel()
			return nil, context.Canceled
		}).
		Times(1)

	client := newClient(t, httpClient)
	_, err := client.Do(ctx, transport.Request{Method: http.MethodPost, Path: "/orders/regular"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDo_RateLimitPenalizesGovernor(t *testing.T) {
	t.Parallel()

	clk := &jumpClock{now: time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)}
	gov := ratelimit.New(ratelimit.Limits{ratelimit.Orders: 10}, ratelimit.WithClock(clk))

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	tooMany := response(http.StatusTooManyRequests, `{"status":"error","message":"Too many requests","error_type":"NetworkException"}`)
	tooMany.Header.Set("Retry-After", "2")
	start := clk.Now()

	gomock.InOrder(
		httpClient.EXPECT().Do(gomock.Any()).Return(tooMany, nil),
		httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(*http.Request) (*http.Response, error) {
			// The retry went through the governor, which held it for Retry-After.
			require.False(t, clk.Now().Before(start.Add(2*time.Second)))
			return response(http.StatusOK, `{"status":"success","data":{"order_id":"151220000000000"}}`), nil
		}),
	)

	client := newClient(t, httpClient, transport.WithGovernor(gov))
	_, err := client.Do(t.Context(), transport.Request{Method: http.MethodPost, Path: "/orders/regular", Category: ratelimit.Orders})
	require.NoError(t, err)
}

func TestDo_NonBlockingGovernorFailsFast(t *testing.T) {
	t.Parallel()

	gov := ratelimit.New(ratelimit.Limits{ratelimit.Historical: 1}, ratelimit.WithDefaultMode(ratelimit.NonBlocking))

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusOK, `{}`), nil).Times(1)

	client := newClient(t, httpClient, transport.WithGovernor(gov))
	req := transport.Request{Path: "/instruments/historical/1/day", Category: ratelimit.Historical}

	_, err := client.Do(t.Context(), req)
	require.NoError(t, err)

	_, err = client.Do(t.Context(), req)
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestDo_ExpiredCredentialNeverSent(t *testing.T) {
	t.Parallel()

	issued := time.Now().Add(-48 * time.Hour)
	cred, err := auth.NewKiteCredential("key", "tok", auth.WithIssuedAt(issued))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client := newClient(t, httpClient, transport.WithAuthorizer(cred))
	_, err = client.Do(t.Context(), transport.Request{Path: "/quote"})
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestDo_AbsolutePathBypassesBaseURL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "https://fc.yahoo.test/", req.URL.String())
			return response(http.StatusOK, ``), nil
		}).
		Times(1)

	client := newClient(t, httpClient)
	_, err := client.Do(t.Context(), transport.Request{Path: "https://fc.yahoo.test/"})
	require.NoError(t, err)
}

func TestDo_DebugLogMasksSecrets(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(response(http.StatusOK, `{"status":"success","data":{}}`), nil).
		Times(1)

	var buf bytes.Buffer
	client := newClient(t, httpClient,
		transport.WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	_, err := client.Do(t.Context(), transport.Request{
		Method: http.MethodPost,
		Path:   "/session/token",
		Form: map[string][]string{
			"api_key":       {"kiteapikey1234"},
			"request_token": {"reqtoken98765432"},
			"checksum":      {"0123456789abcdef0123"},
		},
	})
	require.NoError(t, err)

	logged := buf.String()
	require.Contains(t, logged, `"message":"provider request"`)
	require.Contains(t, logged, `"path":"/session/token"`)
	require.Contains(t, logged, "api_key=kite")
	require.NotContains(t, logged, "kiteapikey1234")
	require.NotContains(t, logged, "reqtoken98765432")
	require.NotContains(t, logged, "0123456789abcdef0123")
}
