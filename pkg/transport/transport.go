// Package transport builds the HTTP client shared by product lookups and
// image downloads: a per-attempt timeout plus bounded retries of connection
// failures and transient 5xx responses.
//
// The timeout works like a socket read timeout: it bounds the wait for the
// response headers and then each wait between body reads, not the whole
// transfer, so a large image on a slow link still completes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "prodfetch/pkg/errors"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/retry"
)

// Options configures the retrying client
type Options struct {
	// Timeout bounds the wait for headers and then each idle gap while the
	// body is read
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BackoffFactor in seconds; the n-th retry waits factor * 2^(n-1), the first waits nothing
	BackoffFactor float64
	// RetryStatusCodes lists the response codes that are retried; empty means
	// errors.IsRetryableStatusCode
	RetryStatusCodes []int
	UserAgent        string
	Logger           logger.Logger
	// Base is the underlying round tripper (http.DefaultTransport if nil)
	Base http.RoundTripper
}

// New returns an http.Client using a RetryTransport built from opts
func New(opts Options) *http.Client {
	return &http.Client{Transport: NewRetryTransport(opts)}
}

// RetryTransport retries replayable requests on connection errors and
// configured status codes
type RetryTransport struct {
	Base        http.RoundTripper
	Timeout     time.Duration
	MaxRetries  int
	Backoff     retry.Backoff
	StatusCodes map[int]bool
	UserAgent   string
	Logger      logger.Logger
}

// NewRetryTransport creates a RetryTransport from opts
func NewRetryTransport(opts Options) *RetryTransport {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	codes := make(map[int]bool, len(opts.RetryStatusCodes))
	for _, code := range opts.RetryStatusCodes {
		codes[code] = true
	}

	return &RetryTransport{
		Base:        base,
		Timeout:     opts.Timeout,
		MaxRetries:  opts.MaxRetries,
		Backoff:     retry.Factor(time.Duration(opts.BackoffFactor*float64(time.Second)), 0),
		StatusCodes: codes,
		UserAgent:   opts.UserAgent,
		Logger:      log,
	}
}

// RoundTrip implements http.RoundTripper
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	// Only GET/HEAD without a body can be replayed safely.
	maxAttempts := t.MaxRetries + 1
	if (req.Method != http.MethodGet && req.Method != http.MethodHead) || req.Body != nil {
		maxAttempts = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	return retry.DoWithResult(func() (*http.Response, error) {
		attempt++
		return t.attempt(req, attempt < maxAttempts)
	}, &retry.Config{
		MaxAttempts: maxAttempts,
		Backoff:     t.Backoff,
		RetryIf:     isTransient,
		Context:     req.Context(),
		Logger:      t.Logger,
	})
}

// isTransient retries connection failures (including per-attempt timeouts)
// and retryable statuses, but not cancellation of the caller's context
func isTransient(err error) bool {
	return errs.IsRetryable(errs.TypeOf(err))
}

// attempt performs a single try; canRetry reports whether a retryable
// status may still be retried afterwards
func (t *RetryTransport) attempt(req *http.Request, canRetry bool) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	var timer *time.Timer
	if t.Timeout > 0 {
		timer = time.AfterFunc(t.Timeout, cancel)
	}
	release := func() {
		if timer != nil {
			timer.Stop()
		}
		cancel()
	}

	r := req.Clone(ctx)
	if t.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}

	start := time.Now()
	resp, err := t.Base.RoundTrip(r)
	if err != nil {
		release()
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, 0, fmt.Sprintf("%s %s failed", req.Method, req.URL.Redacted()), err)
	}
	logger.LogRequest(t.Logger, req.Method, req.URL.Redacted(), resp.StatusCode, time.Since(start))

	if t.retryableStatus(resp.StatusCode) {
		// Drain so the connection can be reused by the next attempt.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		release()
		message := fmt.Sprintf("server returned status %d", resp.StatusCode)
		if !canRetry {
			message = fmt.Sprintf("server returned status %d after retries", resp.StatusCode)
		}
		return nil, errs.New(errs.ErrorTypeServerError, resp.StatusCode, message)
	}

	resp.Body = &idleTimeoutBody{ReadCloser: resp.Body, timer: timer, timeout: t.Timeout, release: release}
	return resp, nil
}

func (t *RetryTransport) retryableStatus(code int) bool {
	if len(t.StatusCodes) == 0 {
		return errs.IsRetryableStatusCode(code)
	}
	return t.StatusCodes[code]
}

// idleTimeoutBody restarts the attempt timer on every Read and releases the
// attempt context on Close
type idleTimeoutBody struct {
	io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	release func()
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	if b.timer != nil {
		b.timer.Reset(b.timeout)
	}
	return b.ReadCloser.Read(p)
}

func (b *idleTimeoutBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
