// Package culler finds bookmarks whose URLs no longer resolve.
package culler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmsync/internal/logging"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// Status represents the health status of a URL.
type Status int

const (
	Healthy     Status = iota // 2xx or 3xx response
	Dead                      // 404 or 410 Gone
	Unreachable               // timeout, DNS failure, connection refused, etc.
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Dead:
		return "dead"
	default:
		return "unreachable"
	}
}

// Result holds the check result for a single bookmark.
type Result struct {
	Bookmark   *tree.Node
	Status     Status
	StatusCode int    // HTTP status code (0 if connection failed)
	Error      string // readable reason for unreachable URLs
}

// ProgressFunc is called after each URL is checked.
type ProgressFunc func(completed, total int)

// Config configures a Checker.
type Config struct {
	Concurrency    int
	Timeout        time.Duration
	ExcludeDomains []string
	Client         *http.Client // optional
	OnProgress     ProgressFunc // optional
	Logger         *zerolog.Logger
}

// Checker checks bookmark URLs concurrently.
type Checker struct {
	client      *http.Client
	concurrency int
	exclude     map[string]bool
	onProgress  ProgressFunc
	log         zerolog.Logger
}

// New creates a Checker.
func New(cfg Config) *Checker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	exclude := make(map[string]bool, len(cfg.ExcludeDomains))
	for _, domain := range cfg.ExcludeDomains {
		exclude[strings.ToLower(domain)] = true
	}
	log := logging.OrNop(cfg.Logger)
	return &Checker{
		client:      client,
		concurrency: cfg.Concurrency,
		exclude:     exclude,
		onProgress:  cfg.OnProgress,
		log:         log.With().Str("component", "culler").Logger(),
	}
}

// Check checks every http(s) bookmark under root. Results follow the order
// of Bookmarks. Check stops early, returning ctx's error, when ctx ends.
func (c *Checker) Check(ctx context.Context, root *tree.Node) ([]Result, error) {
	bookmarks := Bookmarks(root)
	if len(bookmarks) == 0 {
		return nil, nil
	}

	results := make([]Result, len(bookmarks))
	var mu sync.Mutex
	completed := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, b := range bookmarks {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = c.check(ctx, b)
			if c.onProgress != nil {
				mu.Lock()
				completed++
				c.onProgress(completed, len(bookmarks))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("culler: check: %w", err)
	}
	return results, nil
}

// Bookmarks lists the bookmarks under root with an http or https URL,
// breadth-first.
func Bookmarks(root *tree.Node) []*tree.Node {
	var out []*tree.Node
	if root == nil {
		return out
	}
	root.Walk(func(n *tree.Node) *tree.Node {
		if !n.IsFolder() && (strings.HasPrefix(n.URL, "http://") || strings.HasPrefix(n.URL, "https://")) {
			out = append(out, n)
		}
		return nil
	})
	return out
}

// check checks a single URL, trying HEAD before GET.
func (c *Checker) check(ctx context.Context, b *tree.Node) Result {
	result := Result{Bookmark: b}

	resp, err := c.do(ctx, http.MethodHead, b.URL)
	if err != nil || resp.StatusCode == http.StatusMethodNotAllowed {
		if resp != nil {
			resp.Body.Close()
		}
		// some servers don't support HEAD
		resp, err = c.do(ctx, http.MethodGet, b.URL)
		if err != nil {
			result.Status = Unreachable
			result.Error = normalizeError(err)
			c.log.Debug().Str("url", b.URL).Err(err).Msg("unreachable")
			return result
		}
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Status = Healthy
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if c.excluded(b.URL) {
			result.Status = Unreachable
			result.Error = "Possibly private (auth required)"
		} else {
			result.Status = Dead
		}
	default:
		// 403, 5xx and friends may be temporary or need auth
		result.Status = Unreachable
		result.Error = http.StatusText(resp.StatusCode)
	}
	c.log.Debug().Str("url", b.URL).Int("status", resp.StatusCode).Stringer("result", result.Status).Msg("checked")
	return result
}

func (c *Checker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

// excluded reports whether the URL's host is an excluded domain or one of
// its subdomains.
func (c *Checker) excluded(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for domain := range c.exclude {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// normalizeError simplifies verbose error messages into readable categories.
func normalizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "no such host"):
		return "DNS failure"
	case strings.Contains(lower, "timeout"):
		return "Timeout"
	case strings.Contains(lower, "connection refused"):
		return "Connection refused"
	case strings.Contains(lower, "certificate"):
		return "TLS/certificate error"
	case strings.Contains(lower, "network is unreachable"):
		return "Network unreachable"
	case strings.Contains(lower, "tls:"):
		return "TLS error"
	default:
		return err.Error()
	}
}
