package quota

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrQuotaExceeded is returned when the last known remaining-quota signal
// says the provider's allowance is spent. No network call is made.
var ErrQuotaExceeded = errors.New("provider quota exhausted")

// ErrUpstreamUnavailable wraps network failures and non-2xx provider
// responses. Sync jobs recover from it by serving the last cached value.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Result carries an upstream response body along with the remaining-quota
// signal parsed from the provider's response, if it exposed one.
type Result struct {
	Body      []byte
	Remaining int // -1 when the provider sent no quota header
}

// Operation performs the actual network request. It runs only after the
// guard has decided the call is worth making.
type Operation func(ctx context.Context) (*Result, error)

// Guard wraps a provider client and refuses calls once the provider reports
// its allowance is spent. The remembered signal is best-effort: it may be
// stale, and losing an update under a concurrent race costs at most one
// wasted call. A token-bucket limiter spaces calls out so a burst of sync
// jobs cannot burn through a monthly allowance in minutes.
type Guard struct {
	provider string
	limiter  *rate.Limiter

	mu        sync.Mutex
	remaining int // -1 means unknown
	updatedAt time.Time
}

// NewGuard creates a guard for the named provider. interval is the minimum
// spacing between upstream calls; burst allows short catch-up runs.
func NewGuard(provider string, interval time.Duration, burst int) *Guard {
	if burst < 1 {
		burst = 1
	}
	return &Guard{
		provider:  provider,
		limiter:   rate.NewLimiter(rate.Every(interval), burst),
		remaining: -1,
	}
}

// Remaining reports the last observed remaining-quota signal, -1 if unknown.
func (g *Guard) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// Status is a point-in-time view of a guard for status reporting.
type Status struct {
	Provider  string    `json:"provider"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status returns the guard's current view of the provider allowance.
func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		Provider:  g.provider,
		Remaining: g.remaining,
		UpdatedAt: g.updatedAt,
	}
}

// Do runs op unless quota is known to be exhausted. On success the
// remembered signal is refreshed from the response.
func (g *Guard) Do(ctx context.Context, op Operation) (*Result, error) {
	g.mu.Lock()
	remaining := g.remaining
	g.mu.Unlock()

	if remaining == 0 {
		log.Printf("[quota] %s: refusing call, 0 requests remaining", g.provider)
		return nil, ErrQuotaExceeded
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := op(ctx)
	if err != nil {
		return nil, err
	}

	if res.Remaining >= 0 {
		g.observe(res.Remaining)
	}

	return res, nil
}

// observe updates the remembered signal. Updates are optimistic: the lower
// of two racing observations wins only by arriving last, which is fine.
func (g *Guard) observe(remaining int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.remaining = remaining
	g.updatedAt = time.Now()

	if remaining > 0 && remaining <= 25 {
		log.Printf("[quota] %s: %d requests remaining this period", g.provider, remaining)
	}
}

// Reset clears the remembered signal, e.g. when a new billing period starts.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = -1
	g.updatedAt = time.Time{}
}

// ParseRemaining reads the remaining-quota header from a provider response.
// The odds provider uses x-requests-remaining; others send nothing, in which
// case -1 (unknown) is returned.
func ParseRemaining(h http.Header) int {
	for _, name := range []string{"x-requests-remaining", "x-ratelimit-requests-remaining"} {
		if v := h.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return n
			}
		}
	}
	return -1
}
