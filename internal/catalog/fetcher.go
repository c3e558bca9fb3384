package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/edtech-engine/backend/internal/search"
)

// maxCatalogBytes bounds the size of a downloaded catalog.
const maxCatalogBytes = 64 << 20

// ErrTooLarge is returned when a downloaded catalog exceeds the size limit.
var ErrTooLarge = errors.New("catalog exceeds size limit")

// Fetcher downloads CSV catalogs over HTTP.
type Fetcher struct {
	client     *http.Client
	maxElapsed time.Duration
	maxBytes   int64
}

// NewFetcher creates a fetcher with a per-request timeout and a total retry budget.
func NewFetcher(timeout, maxElapsed time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxElapsed: maxElapsed,
		maxBytes:   maxCatalogBytes,
	}
}

// Fetch downloads and parses the catalog at url.
// Transport errors and 5xx responses are retried; other statuses fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]search.Item, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", "EdTech-Catalog-Loader/1.0")
		req.Header.Set("Accept", "text/csv")

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("network error: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("received non-200 status code: %d", resp.StatusCode))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		if int64(len(data)) > f.maxBytes {
			return backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes))
		}
		body = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = f.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog %s: %w", url, err)
	}

	return Parse(bytes.NewReader(body))
}
