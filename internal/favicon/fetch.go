package favicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrFetch reports that the favicon provider did not return an image.
var ErrFetch = errors.New("favicon: fetch failed")

// maxIconSize bounds how much of a response body is read.
const maxIconSize = 1 << 20

// Fetcher downloads the favicon of an origin.
type Fetcher interface {
	Fetch(ctx context.Context, origin string) ([]byte, error)
}

// HTTPFetcher fetches favicons from a provider whose URL is built from a
// template with a single %s verb receiving the escaped origin.
type HTTPFetcher struct {
	client   *http.Client
	template string
}

// NewHTTPFetcher creates a fetcher. Requests are bounded by timeout.
func NewHTTPFetcher(template string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		template: template,
	}
}

// URL returns the provider URL for origin.
func (f *HTTPFetcher) URL(origin string) string {
	return fmt.Sprintf(f.template, url.QueryEscape(origin))
}

// Fetch downloads the favicon of origin.
func (f *HTTPFetcher) Fetch(ctx context.Context, origin string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(origin), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFetch)
	}
	return blob, nil
}
