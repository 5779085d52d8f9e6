package dict

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/metcalfc/scrawl/internal/cache"
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	client   *http.Client
	cache    *cache.Store
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(o *openOptions) { o.client = c }
}

// WithCache stores fetched remote sources and falls back to them when a
// fetch fails.
func WithCache(s *cache.Store) Option {
	return func(o *openOptions) { o.cache = s }
}

// WithRetry sets the attempt count and delay for remote fetches.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *openOptions) {
		o.attempts = attempts
		o.delay = delay
	}
}

// WithLogger sets the logger for fetch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// Open fetches and loads an affix/word list pair. Each location is either a
// local path or an http(s) URL.
func Open(ctx context.Context, affixLoc, wordsLoc string, opts ...Option) (*Dictionary, error) {
	o := &openOptions{
		client:   &http.Client{Timeout: 30 * time.Second},
		attempts: 3,
		delay:    500 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.attempts == 0 {
		// retry-go treats zero attempts as "retry forever"
		o.attempts = 1
	}

	affData, err := o.fetch(ctx, affixLoc)
	if err != nil {
		return nil, fmt.Errorf("%w: affix %s: %v", ErrUnavailable, affixLoc, err)
	}
	dicData, err := o.fetch(ctx, wordsLoc)
	if err != nil {
		return nil, fmt.Errorf("%w: word list %s: %v", ErrUnavailable, wordsLoc, err)
	}

	start := time.Now()
	d, err := Load(bytes.NewReader(affData), bytes.NewReader(dicData))
	if err != nil {
		return nil, err
	}
	o.logger.Info("dictionary loaded",
		"affix", affixLoc,
		"words", wordsLoc,
		"forms", d.Size(),
		"elapsed", time.Since(start))
	return d, nil
}

func isRemote(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

func (o *openOptions) fetch(ctx context.Context, loc string) ([]byte, error) {
	if loc == "" {
		return nil, fmt.Errorf("no location configured")
	}
	if !isRemote(loc) {
		return os.ReadFile(loc)
	}

	data, err := o.download(ctx, loc)
	if err == nil {
		if o.cache != nil {
			if perr := o.cache.Put(loc, data); perr != nil {
				o.logger.Warn("dictionary cache write failed", "source", loc, "error", perr)
			}
		}
		return data, nil
	}

	if o.cache != nil {
		if cached, ok := o.cache.Get(loc); ok {
			o.logger.Warn("using cached dictionary source", "source", loc, "error", err)
			return cached, nil
		}
	}
	return nil, err
}

func (o *openOptions) download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := o.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			data = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.delay),
		retry.LastErrorOnly(true),
	)
	return data, err
}
