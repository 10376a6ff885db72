package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source yields the raw CSV bytes of the survey export.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// maxBody caps how much of an export is read into memory.
const maxBody = 32 << 20

// HTTPSource fetches the export with GET and retries 429/5xx and timeouts.
type HTTPSource struct {
	URL              string
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// NewHTTPSource returns a source with default timeouts and retry strategy.
func NewHTTPSource(rawURL string) *HTTPSource {
	return NewHTTPSourceWithRetry(rawURL, 30*time.Second, 3, 500*time.Millisecond, 4*time.Second)
}

// NewHTTPSourceWithRetry allows customizing HTTP timeout and retry/backoff behavior.
func NewHTTPSourceWithRetry(rawURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *HTTPSource {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &HTTPSource{
		URL:              rawURL,
		httpClient:       &http.Client{Timeout: httpTimeout},
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

func (s *HTTPSource) Name() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return s.URL
	}
	// query strings of sheet exports can carry access tokens
	return u.Scheme + "://" + u.Host + u.Path
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.URL == "" {
		return nil, errors.New("source url is empty")
	}
	backoff := s.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= s.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		body, wait, err := s.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if wait < 0 || attempt == s.retryMaxAttempts {
			break
		}
		if wait == 0 {
			wait = withJitter(backoff)
			backoff *= 2
		}
		// a server-requested Retry-After is honoured only up to the cap
		if wait > s.retryMaxDelay {
			wait = s.retryMaxDelay
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// fetchOnce performs one attempt. wait is negative when the failure is not
// retryable, positive when the server asked for a delay, zero otherwise.
func (s *HTTPSource) fetchOnce(ctx context.Context) (body []byte, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet;q=0.9, text/plain;q=0.8, */*;q=0.5")
	req.Header.Set("User-Agent", "surveylens")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if isRetryableNetErr(err) {
			return nil, 0, fmt.Errorf("http request: %w", err)
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, -1, &UnreachableError{Host: req.URL.Host, Err: err}
		}
		return nil, -1, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(snippet)}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			var ra time.Duration
			if v := resp.Header.Get("Retry-After"); v != "" {
				if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
					ra = time.Duration(secs) * time.Second
				}
			}
			return nil, ra, &RateLimitError{StatusError: se, RetryAfter: ra}
		case resp.StatusCode >= 500 && resp.StatusCode <= 599:
			return nil, 0, se
		default:
			return nil, -1, se
		}
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		// private sheets answer 200 with a sign-in page
		return nil, -1, errors.New("source returned an HTML page instead of CSV (is the sheet shared publicly?)")
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		if isRetryableNetErr(err) {
			return nil, 0, fmt.Errorf("read body: %w", err)
		}
		return nil, -1, fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxBody {
		return nil, -1, fmt.Errorf("export exceeds %d bytes", maxBody)
	}
	return b, 0, nil
}

// FileSource reads a local CSV or XLSX export, for offline use and tests.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return b, nil
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds tries to interpret Retry-After header value as seconds or HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	// jitter factor in [0.8, 1.2)
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
