package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent  = "leamatch/1.0"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3

	backoffBase = 500 * time.Millisecond
	backoffCap  = 15 * time.Second
)

// defaultHostRates caps request rates against the two public sources.
// Neither publishes a limit; 5/s has held up across full 51-state loads.
var defaultHostRates = map[string]rate.Limit{
	"educationdata.urban.org": 5,
	"nces.ed.gov":             5,
}

// fallbackRate applies to hosts with no configured limit, mainly test
// servers.
const fallbackRate rate.Limit = 20

// HTTPOptions configures the HTTP fetcher. The zero value is usable.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RateLimiters sets fixed per-host limits that take precedence over
	// the adaptive defaults.
	RateLimiters map[string]*rate.Limiter
}

// AdaptiveLimiter paces one host and self-tunes: 429 responses halve
// the rate, successes creep it back up 20% at a time. The rate never
// leaves [initial/4, 2*initial].
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	floor   rate.Limit
	ceiling rate.Limit
}

// NewAdaptiveLimiter starts a limiter at the given rate and burst.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		current: initial,
		floor:   initial / 4,
		ceiling: initial * 2,
	}
}

// Wait blocks until the limiter admits one request.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up toward the ceiling.
func (a *AdaptiveLimiter) OnSuccess() {
	a.adjust(1.2)
}

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit() {
	next := a.adjust(0.5)
	zap.L().Warn("easing off after 429",
		zap.String("component", "fetcher"),
		zap.Float64("rate_per_sec", float64(next)),
	)
}

// Limit reports the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) adjust(factor float64) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := rate.Limit(float64(a.current) * factor)
	if next > a.ceiling {
		next = a.ceiling
	}
	if next < a.floor {
		next = a.floor
	}
	a.current = next
	a.limiter.SetLimit(next)
	return next
}

// HTTPFetcher is the production Fetcher: per-host pacing plus retry
// with jittered exponential backoff on transient failures.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	fixed    map[string]*rate.Limiter
	adaptive map[string]*AdaptiveLimiter
	fallback *rate.Limiter
}

// NewHTTPFetcher builds a fetcher. Hosts in opts.RateLimiters get a
// fixed limit; the known data hosts get adaptive limiters; everything
// else shares a permissive fallback.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	adaptive := make(map[string]*AdaptiveLimiter, len(defaultHostRates))
	for host, r := range defaultHostRates {
		adaptive[host] = NewAdaptiveLimiter(r, 5)
	}
	fixed := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for host, lim := range opts.RateLimiters {
		fixed[host] = lim
		// A fixed limit overrides the adaptive default for that host.
		delete(adaptive, host)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		fixed:    fixed,
		adaptive: adaptive,
		fallback: rate.NewLimiter(fallbackRate, int(fallbackRate)),
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create download file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write download file")
	}
	return n, nil
}

// get runs one request with pacing and retries. Network errors, 429s
// and 5xx responses retry; any other status is returned to the caller.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	host := hostOf(rawURL)
	adaptive := f.adaptive[host]

	var lastErr error
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := f.waitTurn(ctx, host, adaptive); err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			lastErr = err
			zap.L().Warn("request failed, retrying",
				zap.String("component", "fetcher"),
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetcher: 429 from %s", rawURL)
			if adaptive != nil {
				adaptive.OnRateLimit()
			}
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetcher: %d from %s", resp.StatusCode, rawURL)
			zap.L().Warn("server error, retrying",
				zap.String("component", "fetcher"),
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
		default:
			if adaptive != nil {
				adaptive.OnSuccess()
			}
			return resp, nil
		}
	}
	return nil, eris.Wrap(lastErr, "fetcher: retries exhausted")
}

func (f *HTTPFetcher) waitTurn(ctx context.Context, host string, adaptive *AdaptiveLimiter) error {
	var err error
	switch {
	case adaptive != nil:
		err = adaptive.Wait(ctx)
	case f.fixed[host] != nil:
		err = f.fixed[host].Wait(ctx)
	default:
		err = f.fallback.Wait(ctx)
	}
	if err != nil {
		return eris.Wrap(err, "fetcher: rate limiter wait")
	}
	return nil
}

// sleepBackoff waits 2^(attempt-1) * base plus up to 50% jitter, capped.
func sleepBackoff(ctx context.Context, attempt int) error {
	d := backoffBase << (attempt - 1)
	if d > backoffCap {
		d = backoffCap
	}
	d += time.Duration(rand.Int64N(int64(d)/2 + 1))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "fetcher: backoff interrupted")
	case <-t.C:
		return nil
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
