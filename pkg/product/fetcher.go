// Package product looks up item codes against one or more product API
// endpoints in priority order.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "prodfetch/pkg/errors"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/retry"
)

const (
	defaultAttempts     = 3
	defaultEmptyBackoff = 5 * time.Second
	maxBodyPreview      = 200
)

// Options configures a Fetcher
type Options struct {
	// Attempts per endpoint while the endpoint keeps answering with no products
	Attempts int
	// EmptyBackoff is the wait between those attempts. Zero means the 5s
	// default; a negative value disables the wait.
	EmptyBackoff time.Duration
	Logger       logger.Logger
}

// Fetcher queries endpoints for a product, falling back in order
type Fetcher struct {
	client       *http.Client
	attempts     int
	emptyBackoff time.Duration
	logger       logger.Logger
}

// NewFetcher creates a Fetcher using client for all requests
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	switch {
	case opts.EmptyBackoff == 0:
		opts.EmptyBackoff = defaultEmptyBackoff
	case opts.EmptyBackoff < 0:
		opts.EmptyBackoff = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Fetcher{
		client:       client,
		attempts:     opts.Attempts,
		emptyBackoff: opts.EmptyBackoff,
		logger:       opts.Logger,
	}
}

// Fetch returns the first product of the first endpoint that lists any.
// A nil Result with a nil error means the product is unavailable; an error
// is only returned when ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, code string, endpoints []Endpoint) (*Result, error) {
	log := f.logger.WithField("item_code", code)

endpoints:
	for _, ep := range endpoints {
		if !ep.Enabled() {
			log.WithField("endpoint", ep.Name).Debug("Endpoint disabled, skipping")
			continue
		}

		for attempt := 1; attempt <= f.attempts; attempt++ {
			products, err := f.lookup(ctx, ep, code)
			epLog := log.WithFields(map[string]interface{}{
				"endpoint": ep.Name,
				"attempt":  attempt,
			})

			switch errs.Classify(err) {
			case errs.OutcomeSuccess:
				epLog.InfoWithFields("Product found", map[string]interface{}{
					"products": len(products),
					"images":   len(products[0].Images),
				})
				return &Result{Product: products[0], Endpoint: ep, Attempts: attempt}, nil

			case errs.OutcomeRetryable:
				if attempt == f.attempts {
					epLog.Warn("No products after all attempts, abandoning endpoint")
					continue endpoints
				}
				epLog.WithField("backoff", f.emptyBackoff.String()).Info("No products returned, retrying")
				if err := retry.Wait(ctx, f.emptyBackoff); err != nil {
					return nil, err
				}

			case errs.OutcomeFatal:
				return nil, err

			default:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				epLog.WithError(err).Warn("Lookup failed, abandoning endpoint")
				continue endpoints
			}
		}
	}

	log.Info("Product unavailable from all endpoints")
	return nil, nil
}

// lookup performs one GET against ep and returns a non-empty product list,
// errs.ErrNoProducts, or a typed error
func (f *Fetcher) lookup(ctx context.Context, ep Endpoint, code string) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(ep.URL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, 0, "invalid endpoint URL", err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, 0, "failed to create request", err)
	}
	for key, values := range ep.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body", err)
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		preview := string(body)
		if len(preview) > maxBodyPreview {
			preview = preview[:maxBodyPreview] + "..."
		}
		f.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"endpoint":     ep.Name,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, errs.Wrap(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON", err)
	}

	products := response.List()
	if len(products) == 0 {
		return nil, errs.ErrNoProducts
	}
	return products, nil
}

// checkResponseStatus maps non-200 responses to typed errors
func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "authentication rejected")
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode >= 500:
		return errs.New(errs.ErrorTypeServerError, resp.StatusCode, "server error")
	default:
		return errs.New(errs.ErrorTypeUnknown, resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
}
