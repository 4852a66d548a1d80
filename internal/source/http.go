package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/roach88/steadyboard/internal/ir"
)

// HTTPClient is the subset of *http.Client the adapters need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxBodyBytes bounds a single table read.
const maxBodyBytes = 8 << 20

// options are shared by every adapter.
type options struct {
	client  HTTPClient
	now     func() time.Time
	logger  *slog.Logger
	onRetry func(source string, attempt int, err error)
}

// Option configures an adapter.
type Option func(*options)

// WithHTTPClient sets the HTTP client. Default: an *http.Client with the
// configured request timeout.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithNow sets the wall clock used for cache busting.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRetryObserver is called for every attempt that will be retried.
func WithRetryObserver(fn func(source string, attempt int, err error)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

func buildOptions(timeout time.Duration, opts []Option) options {
	o := options{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: timeout}
	}
	return o
}

func (o options) hook(source, table string) retryHook {
	return func(attempt int, err error) {
		o.logger.Debug("retrying read", "source", source, "table", table, "attempt", attempt, "error", err)
		if o.onRetry != nil {
			o.onRetry(source, attempt, err)
		}
	}
}

// cacheBust appends t=<unix millis> so intermediate caches treat each
// poll as a new resource.
func cacheBust(raw string, now time.Time) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// get performs one no-store GET and returns the body and its content type.
func get(ctx context.Context, client HTTPClient, source, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", ir.NewShapeError(source, fmt.Sprintf("invalid URL %q: %v", target, err))
	}
	req.Header.Set("Cache-Control", "no-store, no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", ir.NewTransportError(source, "GET failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, "", ir.NewTransportError(source, "GET failed", &statusError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, "", ir.NewTransportError(source, "reading body failed", err)
	}
	if len(body) > maxBodyBytes {
		return nil, "", ir.NewShapeError(source, fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes))
	}
	return body, resp.Header.Get("Content-Type"), nil
}
