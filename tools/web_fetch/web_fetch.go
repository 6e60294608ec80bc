package web_fetch

import (
	"context"
	"errors"
	"time"

	"centrist/tools/web_fetch/chromedp"
	"centrist/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// WebFetcher renders pages and extracts readable article text. A fetcher
// owns a browser; Close must be called to release it.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
	Close() error
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return chromedp.New(timeout, maxChars), nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
