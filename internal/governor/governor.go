package governor

import (
	"context"
	"sync"
	"time"

	"github.com/antonvlasov/chatgate-backend/internal/platform"
	"github.com/antonvlasov/chatgate-backend/pkg/config"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/metrics"
)

// Surface separates pacing lanes. Mutations and queries are throttled
// independently so audits don't starve reconciliation.
type Surface string

const (
	SurfaceMutation Surface = "mutation"
	SurfaceQuery    Surface = "query"
)

// Op is one platform call issued under governed pacing.
type Op func(ctx context.Context) platform.Outcome

// Governor serializes platform calls per surface, enforces minimum spacing,
// honors retry-after hints with a single bounded retry, and inserts a longer
// cooldown after every mutation burst.
type Governor struct {
	cfg  config.GovernorConfig
	mets *metrics.GovernorMetrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	lanes map[Surface]*lane
}

type lane struct {
	mu    sync.Mutex
	last  time.Time
	calls int
}

// New builds a governor with the provided pacing configuration. Zero config
// values fall back to safe defaults.
func New(cfg config.GovernorConfig, mets *metrics.GovernorMetrics) *Governor {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 1200 * time.Millisecond
	}
	if cfg.RetryMargin <= 0 {
		cfg.RetryMargin = 500 * time.Millisecond
	}
	if cfg.BurstEvery <= 0 {
		cfg.BurstEvery = 5
	}
	if cfg.BurstCooldown <= 0 {
		cfg.BurstCooldown = 5 * time.Second
	}
	if cfg.QueryMinDelay <= 0 {
		cfg.QueryMinDelay = 300 * time.Millisecond
	}
	return &Governor{
		cfg:   cfg,
		mets:  mets,
		now:   time.Now,
		sleep: sleepContext,
		lanes: map[Surface]*lane{
			SurfaceMutation: {},
			SurfaceQuery:    {},
		},
	}
}

// Do runs op under the surface's pacing lane. Callers block until the call
// completes or the context is cancelled.
func (g *Governor) Do(ctx context.Context, surface Surface, op Op) platform.Outcome {
	ln := g.lanes[surface]
	if ln == nil {
		ln = g.lanes[SurfaceMutation]
	}

	ln.mu.Lock()
	defer ln.mu.Unlock()

	if err := g.pace(ctx, surface, ln); err != nil {
		return cancelled(err)
	}

	out := op(ctx)
	ln.last = g.now()
	ln.calls++

	if out.Status != platform.StatusRateLimited {
		return out
	}

	// One governed retry after the platform's own hint plus a margin. A
	// second rate-limit is terminal.
	wait := out.RetryAfter + g.cfg.RetryMargin
	g.mets.IncRetry(string(surface))
	g.mets.ObserveWait(string(surface), wait)
	if err := g.sleep(ctx, wait); err != nil {
		return cancelled(err)
	}

	out = op(ctx)
	ln.last = g.now()
	ln.calls++
	return out
}

// pace blocks until the lane's spacing allows the next call.
func (g *Governor) pace(ctx context.Context, surface Surface, ln *lane) error {
	spacing := g.cfg.MinDelay
	if surface == SurfaceQuery {
		spacing = g.cfg.QueryMinDelay
	}

	if surface == SurfaceMutation && ln.calls > 0 && ln.calls%g.cfg.BurstEvery == 0 {
		spacing = g.cfg.BurstCooldown
		g.mets.IncCooldown()
	}

	if ln.last.IsZero() {
		return nil
	}

	elapsed := g.now().Sub(ln.last)
	if elapsed >= spacing {
		return nil
	}

	wait := spacing - elapsed
	g.mets.ObserveWait(string(surface), wait)
	return g.sleep(ctx, wait)
}

func cancelled(err error) platform.Outcome {
	return platform.Outcome{
		Status: platform.StatusTransient,
		Err:    pkgerrors.Wrap(pkgerrors.CodeInternal, err, "governed call cancelled"),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
