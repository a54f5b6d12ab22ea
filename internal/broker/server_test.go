package broker

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
)

const (
	testAPIKey      = "kitefront"
	testAccessToken = "acc3ss"
)

// recordedRequest is what the fake provider saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// fakeProvider serves canned responses and records every request.
type fakeProvider struct {
	*httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{mux: http.NewServeMux()}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Form:   form,
			Header: r.Header.Clone(),
		})
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeProvider) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeProvider) json(pattern string, status int, body string) {
	f.handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// count returns how many requests matched method and path.
func (f *fakeProvider) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeProvider) last(method, path string) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method && f.requests[i].Path == path {
			return f.requests[i]
		}
	}
	return recordedRequest{}
}

func (f *fakeProvider) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// roomyGovernor never makes a test wait.
func roomyGovernor() *ratelimit.Governor {
	return ratelimit.New(ratelimit.Limits{
		ratelimit.MarketData: 1000,
		ratelimit.Orders:     1000,
		ratelimit.Historical: 1000,
		ratelimit.Portfolio:  1000,
		ratelimit.Default:    1000,
	})
}

func newTestZerodha(t *testing.T, f *fakeProvider) *ZerodhaBroker {
	t.Helper()
	cred, err := auth.NewKiteCredential(testAPIKey, testAccessToken)
	require.NoError(t, err)
	z, err := NewZerodhaBroker(ZerodhaConfig{
		BaseURL:    f.URL,
		Credential: cred,
		Governor:   roomyGovernor(),
		RetryDelay: 1,
		Meter:      noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)
	return z
}

func newTestYahoo(t *testing.T, f *fakeProvider) *YahooBroker {
	t.Helper()
	y, err := NewYahooBroker(YahooConfig{
		BaseURL:    f.URL,
		CookieURL:  f.URL + "/cookie",
		Governor:   roomyGovernor(),
		RetryDelay: 1,
		Meter:      noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)
	return y
}
