package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrKind classifies a terminal fetch failure into a user-facing category.
type ErrKind string

const (
	ErrNetworkUnreachable ErrKind = "network_unreachable"
	ErrTimeout            ErrKind = "timeout"
	ErrRateLimited        ErrKind = "rate_limited"
	ErrForbidden          ErrKind = "forbidden"
	ErrUpstream           ErrKind = "upstream_error"
	ErrUnknown            ErrKind = "unknown"
)

// FetchError is the classified failure surfaced after retry exhaustion.
// Error() is the user-actionable message; the transport cause stays
// reachable through Unwrap for logs.
type FetchError struct {
	Kind ErrKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	host := e.URL
	if u, err := url.Parse(e.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	switch e.Kind {
	case ErrNetworkUnreachable:
		return fmt.Sprintf("cannot reach %s: check your connection or switch networks", host)
	case ErrTimeout:
		return fmt.Sprintf("request to %s timed out: the site may be slow or blocked on your network", host)
	case ErrRateLimited:
		return fmt.Sprintf("%s is rate limiting requests: wait a moment before retrying", host)
	case ErrForbidden:
		return fmt.Sprintf("%s blocked the request (HTTP 403): the site may ban this network", host)
	case ErrUpstream:
		return fmt.Sprintf("%s returned an error: the site may be down, try again later", host)
	default:
		return fmt.Sprintf("fetching %s failed: %v", host, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// statusError carries a non-2xx response through the retry loop so the
// terminal classification can see the status code and body hint.
type statusError struct {
	code    int
	snippet string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

var rateLimitTextRe = regexp.MustCompile(`(?i)rate ?limit|too many requests`)

const (
	backoffBase   = 1 * time.Second
	backoffCap    = 5 * time.Second
	healthTimeout = 5 * time.Second
)

// Fetcher performs throttled, retrying page fetches against one site
// instance. The throttle reserves send slots under a mutex and waits
// cooperatively, so concurrent callers queue behind the spacing delay
// without blocking each other's goroutines on a lock.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	delay     time.Duration
	attempts  uint
	backoff   time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewFetcher builds a fetcher for one site instance.
func NewFetcher(baseURL, userAgent string, timeout, delay time.Duration, maxRetries int) *Fetcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		delay:     delay,
		attempts:  uint(maxRetries),
		backoff:   backoffBase,
	}
}

// BaseURL returns the site root this fetcher talks to.
func (f *Fetcher) BaseURL() string { return f.baseURL }

// Fetch downloads one page, retrying with exponential backoff. The error
// returned after exhaustion is always a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var body string
	err := retry.Do(
		func() error {
			if err := f.waitTurn(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			html, err := f.get(ctx, pageURL)
			if err != nil {
				return err
			}
			body = html
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.backoff),
		retry.MaxDelay(backoffCap),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[fetcher] attempt %d for %s failed: %v", n+1, pageURL, err)
		}),
	)
	if err != nil {
		return "", classify(pageURL, err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return "", &statusError{code: resp.StatusCode, snippet: snippet}
	}
	return string(raw), nil
}

// waitTurn reserves the next send slot and sleeps until it opens. The
// mutex is held only to move the reservation cursor, never while waiting.
func (f *Fetcher) waitTurn(ctx context.Context) error {
	f.mu.Lock()
	now := time.Now()
	slot := f.next
	if slot.Before(now) {
		slot = now
	}
	f.next = slot.Add(f.delay)
	f.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthy issues a single low-timeout GET against the site root. It never
// returns an error; any failure reads as unhealthy.
func (f *Fetcher) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}

// classify maps the terminal transport error onto the user-facing taxonomy.
func classify(pageURL string, err error) *FetchError {
	kind := ErrUnknown

	var httpErr *statusError
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.As(err, &httpErr):
		switch {
		case httpErr.code == http.StatusTooManyRequests,
			rateLimitTextRe.MatchString(httpErr.snippet):
			kind = ErrRateLimited
		case httpErr.code == http.StatusForbidden:
			kind = ErrForbidden
		default:
			kind = ErrUpstream
		}
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrTimeout
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		kind = ErrNetworkUnreachable
	}

	return &FetchError{Kind: kind, URL: pageURL, Err: err}
}
