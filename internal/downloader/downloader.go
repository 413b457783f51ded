// Package downloader fetches the images of one product and hands them to a
// storage target, one image at a time.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "prodfetch/pkg/errors"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/product"
	"prodfetch/pkg/storage"
)

// Options configures a Downloader
type Options struct {
	// BaseURL resolves relative image URLs
	BaseURL string
	Client  *http.Client
	Store   storage.Store
	Logger  logger.Logger
}

// Downloader downloads product images sequentially
type Downloader struct {
	base   *url.URL
	client *http.Client
	store  storage.Store
	logger logger.Logger
}

// New creates a Downloader. BaseURL must be an absolute URL.
func New(opts Options) (*Downloader, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, errs.New(errs.ErrorTypeConfig, 0, fmt.Sprintf("invalid base image URL %q", opts.BaseURL))
	}
	if opts.Store == nil {
		return nil, errs.New(errs.ErrorTypeConfig, 0, "no storage target configured")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Downloader{
		base:   base,
		client: opts.Client,
		store:  opts.Store,
		logger: opts.Logger,
	}, nil
}

// FileName returns the stored name of the index-th image (1-based) of an item
func FileName(itemCode string, index int, ext string) string {
	return fmt.Sprintf("%s_%03d%s", storage.SanitizeName(itemCode), index, ext)
}

// Download fetches and stores every image in order. Failed images are logged
// and skipped; the refs of the stored ones are returned in input order.
func (d *Downloader) Download(ctx context.Context, itemCode string, images []product.Image, headers http.Header) []storage.ArtifactRef {
	refs := make([]storage.ArtifactRef, 0, len(images))

	for i, img := range images {
		if ctx.Err() != nil {
			break
		}

		name := FileName(itemCode, i+1, img.Extension())
		ref, err := d.fetchOne(ctx, itemCode, name, img, headers)
		if err != nil {
			d.logger.WarnWithFields("Failed to download image", map[string]interface{}{
				"item_code": itemCode,
				"image_url": img.URL,
				"file":      name,
				"error":     err.Error(),
			})
			continue
		}

		d.logger.InfoWithFields("Saved image", map[string]interface{}{
			"item_code": itemCode,
			"file":      name,
			"ref":       string(ref),
		})
		refs = append(refs, ref)
	}

	return refs
}

// ResolveURL resolves an image URL against the base URL
func (d *Downloader) ResolveURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errs.New(errs.ErrorTypeInput, 0, "image has no URL")
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeInput, 0, "invalid image URL", err)
	}
	return d.base.ResolveReference(ref).String(), nil
}

func (d *Downloader) fetchOne(ctx context.Context, itemCode, name string, img product.Image, headers http.Header) (storage.ArtifactRef, error) {
	target, err := d.ResolveURL(img.URL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeInput, 0, "failed to create request", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, 0, "image request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", errs.New(errs.ErrorTypeServerError, resp.StatusCode,
			fmt.Sprintf("image request returned status %d", resp.StatusCode))
	}

	ref, err := d.store.Save(ctx, itemCode, name, resp.Body)
	if err != nil {
		return "", fmt.Errorf("save failed: %w", err)
	}
	return ref, nil
}
