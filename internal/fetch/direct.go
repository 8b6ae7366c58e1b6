package fetch

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/zoning-cli/internal/model"
)

const (
	// defaultUserAgent is a plain browser UA. Municode serves a JS shell to
	// clients that identify as bots but full HTML to browsers.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	maxBodyBytes = 2 << 20 // ordinance chapters run large; cap reads at 2 MiB
)

// DirectOptions configures the direct fetcher.
type DirectOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// DefaultRPM is the request budget for hosts without an explicit entry.
	DefaultRPM int
	// HostRPM seeds per-host budgets (host → requests per minute).
	HostRPM map[string]int
}

// DefaultHostRPM returns the per-host budgets for known portal hosts.
// Municode throttles aggressively; ArcGIS tolerates more.
func DefaultHostRPM() map[string]int {
	return map[string]int{
		"library.municode.com": 10,
		"www.arcgis.com":       30,
		"services.arcgis.com":  30,
	}
}

// AdaptiveLimiter wraps a rate.Limiter that tunes itself: a 429 halves the
// rate (floored at a quarter of the initial), a success creeps it back up by
// 20% (capped at twice the initial).
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter at the given initial rate.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		initial: initial,
		current: initial,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * 1.2
	if next > a.initial*2 {
		next = a.initial * 2
	}
	a.current = next
	a.limiter.SetLimit(next)
}

// OnRateLimit halves the rate after a 429, down to a quarter of initial.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * 0.5
	if next < a.initial/4 {
		next = a.initial / 4
	}
	a.current = next
	a.limiter.SetLimit(next)
	zap.L().Warn("fetch: reducing rate after 429",
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Direct fetches portal pages over plain HTTP with per-host rate limiting
// and retry on transient statuses. Blocked pages (bot walls) fail without
// retrying; the chain's reader link is the remedy there.
type Direct struct {
	client *http.Client
	opts   DirectOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewDirect creates a Direct fetcher with the given options.
func NewDirect(opts DirectOptions) *Direct {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.DefaultRPM <= 0 {
		opts.DefaultRPM = 30
	}
	if opts.HostRPM == nil {
		opts.HostRPM = DefaultHostRPM()
	}

	d := &Direct{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
	for host, rpm := range opts.HostRPM {
		d.limiters[host] = NewAdaptiveLimiter(rpmLimit(rpm), 1)
	}
	return d
}

func (d *Direct) Name() string { return "direct" }

// SetHostRPM replaces the limiter for a host, typically from a county's
// rate hint before its portal fetch. Takes effect for subsequent fetches.
func (d *Direct) SetHostRPM(host string, rpm int) {
	if host == "" || rpm <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limiters[host] = NewAdaptiveLimiter(rpmLimit(rpm), 1)
}

func (d *Direct) limiterFor(host string) *AdaptiveLimiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lim, ok := d.limiters[host]; ok {
		return lim
	}
	lim := NewAdaptiveLimiter(rpmLimit(d.opts.DefaultRPM), 1)
	d.limiters[host] = lim
	return lim
}

// rpmLimit converts a requests-per-minute budget to a rate.Limit.
func rpmLimit(rpm int) rate.Limit {
	return rate.Limit(float64(rpm) / 60.0)
}

// Fetch GETs the URL, following redirects, retrying 429s and 5xxs with
// exponential backoff. Returns the raw body; markup stripping is the
// caller's concern.
func (d *Direct) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "direct: parse url")
	}
	lim := d.limiterFor(u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "direct: create request")
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	var lastErr error
	for attempt := range d.opts.MaxRetries {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "direct: rate limiter wait")
		}

		resp, err := d.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("direct fetch failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			d.backoff(ctx, attempt)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()

		if blocked, reason := looksBlocked(resp.StatusCode, string(body)); blocked {
			return nil, eris.Errorf("direct: blocked (%s)", reason)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = eris.Errorf("direct: 429 from %s", u.Host)
			lim.OnRateLimit()
			d.backoff(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = eris.Errorf("direct: status %d from %s", resp.StatusCode, u.Host)
			zap.L().Warn("portal server error, retrying",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			d.backoff(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, eris.Errorf("direct: status %d", resp.StatusCode)
		}
		if readErr != nil {
			return nil, eris.Wrap(readErr, "direct: read body")
		}

		lim.OnSuccess()
		return &model.Page{
			URL:        rawURL,
			Content:    string(body),
			StatusCode: resp.StatusCode,
			Source:     "direct",
			FetchedAt:  time.Now().UTC(),
		}, nil
	}

	return nil, eris.Wrap(lastErr, "direct: all retries exhausted")
}

func (d *Direct) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	delay += time.Duration(rand.Int64N(int64(delay) / 2))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
