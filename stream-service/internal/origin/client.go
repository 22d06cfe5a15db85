// Package origin talks to the remote object store that holds the media.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/metrics"
)

// Operation names reported to metrics.
const (
	OpStat  = "stat"
	OpFetch = "fetch"
)

// StatusError is a non-success HTTP status returned by the origin.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying might help.
func (e *StatusError) Temporary() bool { return e.StatusCode >= 500 }

// Response is an open ranged read of an object. The caller closes Body.
type Response struct {
	StatusCode    int
	ContentRange  string
	ContentLength int64
	ContentType   string
	Body          io.ReadCloser
}

// Client fetches object sizes and byte ranges with bounded retry.
type Client struct {
	http    *http.Client
	cfg     config.OriginConfig
	metrics metrics.Collector
}

// NewTransport builds the connection pool shared by every upstream request.
func NewTransport(cfg config.OriginConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxConnsPerHost = cfg.MaxConnsPerHost
	t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	t.IdleConnTimeout = cfg.IdleConnTimeout
	// Media bytes are already compressed.
	t.DisableCompression = true
	return t
}

// NewClient creates a client. A nil transport uses NewTransport(cfg).
func NewClient(cfg config.OriginConfig, transport http.RoundTripper, collector metrics.Collector) *Client {
	if transport == nil {
		transport = NewTransport(cfg)
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Client{
		http:    &http.Client{Transport: transport},
		cfg:     cfg,
		metrics: collector,
	}
}

// Stat returns the total size of objectID by asking for its first byte.
// Each attempt is bounded by the configured size timeout.
func (c *Client) Stat(ctx context.Context, objectID, credential string) (int64, error) {
	var size int64
	err := c.retry(ctx, OpStat, objectID, func() error {
		actx, cancel := context.WithTimeout(ctx, c.sizeTimeout())
		defer cancel()

		resp, err := c.do(actx, objectID, credential, "bytes=0-0")
		if err != nil {
			return c.classify(ctx, err)
		}
		defer drain(resp.Body)
		c.metrics.UpstreamResponse(OpStat, resp.StatusCode)

		switch {
		case resp.StatusCode == http.StatusPartialContent:
			_, _, total, ok := ParseContentRange(resp.Header.Get("Content-Range"))
			if !ok || total < 0 {
				return backoff.Permanent(fmt.Errorf("origin sent unusable Content-Range %q", resp.Header.Get("Content-Range")))
			}
			size = total
		case resp.StatusCode == http.StatusOK:
			if resp.ContentLength < 0 {
				return backoff.Permanent(errors.New("origin sent no Content-Length"))
			}
			size = resp.ContentLength
		case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
			// Empty objects cannot satisfy bytes=0-0; the total still comes back.
			_, _, total, ok := ParseContentRange(resp.Header.Get("Content-Range"))
			if !ok || total < 0 {
				return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode})
			}
			size = total
		default:
			return statusErr(resp.StatusCode)
		}
		return nil
	})
	return size, err
}

// Fetch opens bytes [start, end] of objectID. end < 0 asks for everything
// from start. Only establishing the response is retried; once the body is
// handed back it belongs to the caller.
func (c *Client) Fetch(ctx context.Context, objectID, credential string, start, end int64) (*Response, error) {
	rng := "bytes=" + strconv.FormatInt(start, 10) + "-"
	if end >= 0 {
		rng += strconv.FormatInt(end, 10)
	}

	var out *Response
	err := c.retry(ctx, OpFetch, objectID, func() error {
		resp, err := c.do(ctx, objectID, credential, rng)
		if err != nil {
			return c.classify(ctx, err)
		}
		c.metrics.UpstreamResponse(OpFetch, resp.StatusCode)

		if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
			drain(resp.Body)
			return statusErr(resp.StatusCode)
		}
		out = &Response{
			StatusCode:    resp.StatusCode,
			ContentRange:  resp.Header.Get("Content-Range"),
			ContentLength: resp.ContentLength,
			ContentType:   resp.Header.Get("Content-Type"),
			Body:          resp.Body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, objectID, credential, rng string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(objectID), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Range", rng)
	return c.http.Do(req)
}

func (c *Client) objectURL(objectID string) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + url.PathEscape(objectID)
	if c.cfg.MediaQuery != "" {
		u += "?" + c.cfg.MediaQuery
	}
	return u
}

func (c *Client) retry(ctx context.Context, op, objectID string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialBackoff
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = 200 * time.Millisecond
	}
	eb.MaxInterval = c.cfg.MaxBackoff
	if eb.MaxInterval < eb.InitialInterval {
		eb.MaxInterval = eb.InitialInterval
	}
	eb.MaxElapsedTime = 0

	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return fn()
	}, policy, func(err error, wait time.Duration) {
		c.metrics.UpstreamRetry(op)
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).
			Str(pkglog.FieldObjectID, objectID).
			Str("op", op).
			Int(pkglog.FieldAttempt, attempt).
			Dur("backoff", wait).
			Msg("origin request failed, retrying")
	})
}

// classify keeps transport errors retryable unless the caller is gone.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	return err
}

func (c *Client) sizeTimeout() time.Duration {
	if c.cfg.SizeTimeout > 0 {
		return c.cfg.SizeTimeout
	}
	return 5 * time.Second
}

// statusErr wraps 4xx statuses as permanent so they are never retried.
func statusErr(code int) error {
	se := &StatusError{StatusCode: code}
	if se.Temporary() {
		return se
	}
	return backoff.Permanent(se)
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	body.Close()
}

// ParseContentRange parses "bytes first-last/total". An unknown total
// ("*") is returned as -1, as is an unsatisfied range ("*/total") for
// first and last.
func ParseContentRange(v string) (first, last, total int64, ok bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, 0, 0, false
	}
	rng, size, found := strings.Cut(strings.TrimSpace(v[len("bytes "):]), "/")
	if !found {
		return 0, 0, 0, false
	}

	total = -1
	if size != "*" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		total = n
	}

	if rng == "*" {
		return -1, -1, total, true
	}
	a, b, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, 0, false
	}
	first, err1 := strconv.ParseInt(a, 10, 64)
	last, err2 := strconv.ParseInt(b, 10, 64)
	if err1 != nil || err2 != nil || first < 0 || last < first {
		return 0, 0, 0, false
	}
	return first, last, total, true
}
