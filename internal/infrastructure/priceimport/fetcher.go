package priceimport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/procurement/backend/internal/domain/shared"
)

// FetcherConfig configures HTTPFetcher
type FetcherConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// HTTPFetcher downloads price documents published by shops
type HTTPFetcher struct {
	client   *resty.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher with the given limits
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/x-yaml, application/json, text/plain").
		SetHeader("User-Agent", "procurement-import/1.0")
	return &HTTPFetcher{client: client, maxBytes: cfg.MaxBytes}
}

// Fetch downloads the document at url. Client errors are validation errors;
// server and network failures are returned as plain errors so the job retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	status := resp.StatusCode()
	switch {
	case status >= http.StatusInternalServerError:
		return nil, fmt.Errorf("fetch %s: upstream returned %d", url, status)
	case status >= http.StatusBadRequest:
		return nil, shared.NewValidationError("Price list URL returned %d", status)
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, shared.NewValidationError("Price list exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, shared.NewValidationError("Price list at %s is empty", url)
	}
	return data, nil
}
