package ratelimit

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 6, 5, 9, 15, 0, 0, time.UTC)

// runBlocking issues n concurrent blocking acquisitions and drives the fake
// clock forward only while every unfinished caller is parked in After, so
// each recorded egress time is the instant its slot was granted.
func runBlocking(t *testing.T, g *Governor, clk *fakeClock, cat Category, n int) []time.Time {
	t.Helper()

	var (
		mu     sync.Mutex
		egress []time.Time
		done   atomic.Int64
	)

	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			if err := g.Wait(context.Background(), cat); err == nil {
				mu.Lock()
				egress = append(egress, clk.Now())
				mu.Unlock()
			}
			done.Add(1)
		})
	}

	deadline := time.Now().Add(10 * time.Second)
	for done.Load() < int64(n) && time.Now().Before(deadline) {
		remaining := n - int(done.Load())
		if remaining > 0 && clk.Waiters() == remaining {
			clk.AdvanceToNext()
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
	wg.Wait()

	sort.Slice(egress, func(i, j int) bool { return egress[i].Before(egress[j]) })
	return egress
}

// maxInWindow returns the largest number of timestamps inside any
// half-open interval of length span.
func maxInWindow(ts []time.Time, span time.Duration) int {
	best := 0
	for i := range ts {
		n := 0
		for j := i; j < len(ts) && ts[j].Before(ts[i].Add(span)); j++ {
			n++
		}
		if n > best {
			best = n
		}
	}
	return best
}

// Property: in blocking mode every call eventually egresses and no window
// of the configured length ever admits more than the ceiling.
func TestProperty_BlockingNeverExceedsCeiling(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("egress per window <= limit", prop.ForAll(
		func(limit, extra int) bool {
			clk := newFakeClock(epoch)
			g := New(Limits{Historical: limit}, WithClock(clk))

			n := limit + extra
			egress := runBlocking(t, g, clk, Historical, n)

			if len(egress) != n {
				return false
			}
			if maxInWindow(egress, time.Second) > limit {
				return false
			}
			// The last call cannot leave before (ceil(n/limit)-1) full windows.
			minSpan := time.Duration((n+limit-1)/limit-1) * time.Second
			return !egress[len(egress)-1].Before(epoch.Add(minSpan))
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

// Property: in non-blocking mode exactly the ceiling succeeds within one
// instant and every excess call fails with RateLimitedError.
func TestProperty_NonBlockingRejectsExcess(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("ceiling successes then RateLimitedError", prop.ForAll(
		func(limit, n int) bool {
			clk := newFakeClock(epoch)
			g := New(Limits{MarketData: limit}, WithClock(clk), WithDefaultMode(NonBlocking))

			ok := 0
			for i := 0; i < n; i++ {
				err := g.Acquire(context.Background(), MarketData)
				if err == nil {
					ok++
					continue
				}
				var rl *apperrors.RateLimitedError
				if !apperrors.As(err, &rl) || rl.RetryAfter != time.Second || rl.Category != string(MarketData) {
					return false
				}
			}
			want := n
			if want > limit {
				want = limit
			}
			return ok == want
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

func TestGovernor_WindowSlides(t *testing.T) {
	clk := newFakeClock(epoch)
	g := New(Limits{MarketData: 3}, WithClock(clk))

	for i := 0; i < 3; i++ {
		require.NoError(t, g.TryAcquire(MarketData))
		clk.Advance(200 * time.Millisecond)
	}
	// t=600ms: window holds 0, 200, 400.
	err := g.TryAcquire(MarketData)
	var rl *apperrors.RateLimitedError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 400*time.Millisecond, rl.RetryAfter)

	clk.Advance(400 * time.Millisecond) // t=1s: the call at 0 leaves
	require.NoError(t, g.TryAcquire(MarketData))

	used, limit := g.Usage(MarketData)
	require.Equal(t, 3, used)
	require.Equal(t, 3, limit)
}

func TestGovernor_ContextModeOverridesDefault(t *testing.T) {
	clk := newFakeClock(epoch)
	g := New(Limits{Orders: 1}, WithClock(clk))

	require.NoError(t, g.Acquire(context.Background(), Orders))

	ctx := WithMode(context.Background(), NonBlocking)
	err := g.Acquire(ctx, Orders)
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestGovernor_CategoriesAreIndependent(t *testing.T) {
	clk := newFakeClock(epoch)
	g := New(Limits{Historical: 1, MarketData: 3}, WithClock(clk))

	require.NoError(t, g.TryAcquire(Historical))

	ctx, cancel := context.WithCancel(context.Background())
	blocked := make(chan error, 1)
	go func() { blocked <- g.Wait(ctx, Historical) }()

	// The historical caller is parked; market data is unaffected.
	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, g.TryAcquire(MarketData))
	}

	cancel()
	require.ErrorIs(t, <-blocked, context.Canceled)
}

func TestGovernor_UnknownCategoryUsesDefault(t *testing.T) {
	clk := newFakeClock(epoch)
	g := New(Limits{Default: 1}, WithClock(clk))

	require.NoError(t, g.TryAcquire(Category("gtt")))
	require.ErrorIs(t, g.TryAcquire(Category("mf")), apperrors.ErrRateLimited)
}

func TestGovernor_Penalize(t *testing.T) {
	clk := newFakeClock(epoch)
	g := New(Limits{Portfolio: 5}, WithClock(clk))

	g.Penalize(Portfolio, 2*time.Second)

	var rl *apperrors.RateLimitedError
	require.ErrorAs(t, g.TryAcquire(Portfolio), &rl)
	require.Equal(t, 2*time.Second, rl.RetryAfter)

	clk.Advance(2 * time.Second)
	require.NoError(t, g.TryAcquire(Portfolio))
}

func TestGovernor_ConcurrentCallersRespectCeiling(t *testing.T) {
	clk := newFakeClock(epoch)
	g := New(Limits{Orders: 10}, WithClock(clk), WithDefaultMode(NonBlocking))

	var granted atomic.Int64
	var wg conc.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Go(func() {
			if g.Acquire(context.Background(), Orders) == nil {
				granted.Add(1)
			}
		})
	}
	wg.Wait()

	require.Equal(t, int64(10), granted.Load())
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("non_blocking")
	require.True(t, ok)
	require.Equal(t, NonBlocking, m)

	m, ok = ParseMode("")
	require.True(t, ok)
	require.Equal(t, Blocking, m)

	_, ok = ParseMode("eager")
	require.False(t, ok)
}
