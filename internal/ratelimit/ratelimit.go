// Package ratelimit enforces per-category request ceilings over a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// Category groups endpoints that share a provider budget.
type Category string

const (
	MarketData Category = "market_data"
	Orders     Category = "orders"
	Historical Category = "historical"
	Portfolio  Category = "portfolio"
	Default    Category = "default"
)

// Mode selects what happens when a window is full.
type Mode int

const (
	// Blocking waits until the oldest call leaves the window.
	Blocking Mode = iota
	// NonBlocking fails immediately with a RateLimitedError.
	NonBlocking
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "blocking":
		return Blocking, true
	case "non_blocking", "non-blocking", "nonblocking":
		return NonBlocking, true
	}
	return Blocking, false
}

func (m Mode) String() string {
	if m == NonBlocking {
		return "non_blocking"
	}
	return "blocking"
}

type modeKey struct{}

// WithMode overrides the governor's default mode for calls made with ctx.
func WithMode(ctx context.Context, m Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, m)
}

// ModeFromContext returns the mode set by WithMode, if any.
func ModeFromContext(ctx context.Context) (Mode, bool) {
	m, ok := ctx.Value(modeKey{}).(Mode)
	return m, ok
}

// Clock is the time source used for window bookkeeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limits maps a category to its maximum calls per window.
type Limits map[Category]int

// DefaultKiteLimits returns the documented Kite Connect ceilings per second.
// Providers change these, so they are defaults for configuration.
func DefaultKiteLimits() Limits {
	return Limits{
		MarketData: 3,
		Orders:     10,
		Historical: 1,
		Portfolio:  1,
		Default:    10,
	}
}

// window is one category's sliding log of granted call times.
type window struct {
	mu           sync.Mutex
	limit        int
	stamps       []time.Time
	blockedUntil time.Time
}

// reserve grants a slot at now and returns zero, or returns how long the
// caller must wait before trying again.
func (w *window) reserve(now time.Time, span time.Duration) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	w.stamps = w.stamps[i:]

	if now.Before(w.blockedUntil) {
		return w.blockedUntil.Sub(now)
	}
	if len(w.stamps) < w.limit {
		w.stamps = append(w.stamps, now)
		return 0
	}
	return w.stamps[0].Add(span).Sub(now)
}

func (w *window) usage(now time.Time, span time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-span)
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// Governor holds one independent window per category. The window map is
// fixed at construction, so categories never contend on a shared lock.
type Governor struct {
	span    time.Duration
	mode    Mode
	clock   Clock
	logger  zerolog.Logger
	windows map[Category]*window
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(g *Governor) {
		g.clock = c
	}
}

// WithWindow sets the sliding window length (one second by default).
func WithWindow(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.span = d
		}
	}
}

// WithDefaultMode sets the mode used when the context carries none.
func WithDefaultMode(m Mode) Option {
	return func(g *Governor) {
		g.mode = m
	}
}

// WithLogger sets the logger for wait events.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Governor) {
		g.logger = l
	}
}

// New creates a governor for the given limits. Categories missing from
// limits share the Default budget; a limit below one is treated as one.
func New(limits Limits, opts ...Option) *Governor {
	g := &Governor{
		span:    time.Second,
		mode:    Blocking,
		clock:   SystemClock{},
		logger:  zerolog.Nop(),
		windows: make(map[Category]*window, len(limits)+1),
	}
	for _, opt := range opts {
		opt(g)
	}
	for cat, n := range limits {
		if n < 1 {
			n = 1
		}
		g.windows[cat] = &window{limit: n}
	}
	if _, ok := g.windows[Default]; !ok {
		g.windows[Default] = &window{limit: DefaultKiteLimits()[Default]}
	}
	return g
}

func (g *Governor) windowFor(cat Category) (*window, Category) {
	if w, ok := g.windows[cat]; ok {
		return w, cat
	}
	return g.windows[Default], Default
}

// Acquire takes a slot in cat's window using the context's mode, or the
// governor default.
func (g *Governor) Acquire(ctx context.Context, cat Category) error {
	mode := g.mode
	if m, ok := ModeFromContext(ctx); ok {
		mode = m
	}
	if mode == NonBlocking {
		return g.TryAcquire(cat)
	}
	return g.Wait(ctx, cat)
}

// TryAcquire takes a slot or fails at once with a RateLimitedError.
func (g *Governor) TryAcquire(cat Category) error {
	w, cat := g.windowFor(cat)
	if wait := w.reserve(g.clock.Now(), g.span); wait > 0 {
		return apperrors.NewRateLimitedError(string(cat), wait)
	}
	return nil
}

// Wait blocks until a slot in cat's window is free or ctx is done. Only
// the calling goroutine is suspended and no lock is held while it waits.
func (g *Governor) Wait(ctx context.Context, cat Category) error {
	w, cat := g.windowFor(cat)
	for {
		wait := w.reserve(g.clock.Now(), g.span)
		if wait == 0 {
			return nil
		}
		g.logger.Debug().Str("category", string(cat)).Dur("wait", wait).Msg("rate window full, waiting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.clock.After(wait):
		}
	}
}

// Penalize closes cat's window for d, used when the provider answers 429.
func (g *Governor) Penalize(cat Category, d time.Duration) {
	if d <= 0 {
		return
	}
	w, cat := g.windowFor(cat)
	until := g.clock.Now().Add(d)

	w.mu.Lock()
	if until.After(w.blockedUntil) {
		w.blockedUntil = until
	}
	w.mu.Unlock()

	g.logger.Warn().Str("category", string(cat)).Dur("penalty", d).Msg("provider rate limit hit")
}

// Usage reports calls granted in the current window and the ceiling.
func (g *Governor) Usage(cat Category) (used, limit int) {
	w, _ := g.windowFor(cat)
	return w.usage(g.clock.Now(), g.span), w.limit
}

// Window returns the sliding window length.
func (g *Governor) Window() time.Duration { return g.span }
