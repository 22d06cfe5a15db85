package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/cache"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/metrics"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/origin"
)

var (
	ErrUnsatisfiableRange  = errors.New("range not satisfiable")
	ErrUpstreamUnavailable = errors.New("origin unavailable")
)

// RangeError carries the object size for a 416 response.
type RangeError struct {
	Total int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range not satisfiable for %d bytes", e.Total)
}

func (e *RangeError) Is(target error) bool { return target == ErrUnsatisfiableRange }

// PipeError is a failure after the response headers were committed. The
// client sees a truncated body; nothing else can be written.
type PipeError struct {
	Written int64
	Err     error
	// Aborted is set when the client went away.
	Aborted bool
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", e.Written, e.Err)
}

func (e *PipeError) Unwrap() error { return e.Err }

// Origin is the upstream the service reads from.
type Origin interface {
	Stat(ctx context.Context, objectID, credential string) (int64, error)
	Fetch(ctx context.Context, objectID, credential string, start, end int64) (*origin.Response, error)
}

// Result describes a served range.
type Result struct {
	Total        int64
	Start        int64
	End          int64
	Written      int64
	UpstreamCode int
}

// StreamService serves byte ranges of origin objects.
type StreamService struct {
	origin  Origin
	sizes   cache.SizeCache
	probes  singleflight.Group
	cfg     config.StreamConfig
	metrics metrics.Collector
	buffers sync.Pool
}

func NewStreamService(o Origin, sizes cache.SizeCache, cfg config.StreamConfig, collector metrics.Collector) *StreamService {
	if collector == nil {
		collector = metrics.Noop{}
	}
	if cfg.CopyBufferBytes <= 0 {
		cfg.CopyBufferBytes = 32 << 10
	}
	if cfg.DefaultContentType == "" {
		cfg.DefaultContentType = "video/mp4"
	}
	s := &StreamService{
		origin:  o,
		sizes:   sizes,
		cfg:     cfg,
		metrics: collector,
	}
	s.buffers.New = func() any {
		b := make([]byte, cfg.CopyBufferBytes)
		return &b
	}
	return s
}

// ResolveSize returns the total size of objectID, from the cache when it
// can. A cached size says nothing about credential; callers that answer
// without contacting the origin afterwards must use probe instead.
func (s *StreamService) ResolveSize(ctx context.Context, objectID, credential string) (int64, error) {
	l := pkglog.Ctx(ctx)

	if s.sizes != nil {
		size, err := s.sizes.Get(ctx, objectID)
		if err == nil {
			s.metrics.SizeLookup(true)
			return size, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.Warn().Err(err).Str(pkglog.FieldObjectID, objectID).Msg("size cache read failed")
		}
	}
	s.metrics.SizeLookup(false)
	return s.probe(ctx, objectID, credential)
}

// probe asks the origin for the size of objectID with credential and
// refreshes the cache. Concurrent probes for the same object and
// credential share one origin call, which outlives a caller that gives up
// early.
func (s *StreamService) probe(ctx context.Context, objectID, credential string) (int64, error) {
	probeCtx := context.WithoutCancel(ctx)
	ch := s.probes.DoChan(objectID+"\x00"+credential, func() (any, error) {
		size, err := s.origin.Stat(probeCtx, objectID, credential)
		if err != nil {
			return int64(0), err
		}
		if s.sizes != nil {
			if err := s.sizes.Set(probeCtx, objectID, size); err != nil {
				pl := pkglog.Ctx(probeCtx)
				pl.Warn().Err(err).Str(pkglog.FieldObjectID, objectID).Msg("size cache write failed")
			}
		}
		return size, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, upstreamErr(res.Err)
		}
		return res.Val.(int64), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Head writes the headers a HEAD request gets: the full size, no body.
// The origin always sees the credential, so a HEAD cannot learn the size
// of an object its caller may not read.
func (s *StreamService) Head(ctx context.Context, w http.ResponseWriter, objectID, credential string) (int64, error) {
	total, err := s.probe(ctx, objectID, credential)
	if err != nil {
		return 0, err
	}
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(total, 10))
	h.Set("Content-Type", s.cfg.DefaultContentType)
	w.WriteHeader(http.StatusOK)
	return total, nil
}

// ServeRange answers a ranged GET with 206 Partial Content, piping the
// origin body straight to w. Errors returned before anything is written
// leave the response untouched; a *PipeError means headers are gone.
func (s *StreamService) ServeRange(ctx context.Context, w http.ResponseWriter, objectID, credential, rangeHeader string) (Result, error) {
	total, err := s.ResolveSize(ctx, objectID, credential)
	if err != nil {
		return Result{}, err
	}

	r, ok := ParseRange(rangeHeader, total)
	if !ok {
		r = ByteRange{Start: 0, End: total - 1, Open: true}
	}
	if r.Start >= total {
		return Result{Total: total}, &RangeError{Total: total}
	}
	plan := PlanRange(r, total, s.cfg.FastStartBytes)

	end := plan.End
	if plan.Unbounded {
		end = -1
	}
	resp, err := s.origin.Fetch(ctx, objectID, credential, plan.Start, end)
	if err != nil {
		return Result{Total: total}, upstreamErr(err)
	}
	defer resp.Body.Close()

	// Trust the range the origin says it is sending, but never serve more
	// than was planned. Bytes ahead of the planned start are discarded.
	start, last := plan.Start, plan.End
	var skip int64
	if resp.StatusCode == http.StatusOK {
		skip = plan.Start
	} else if first, l, _, ok := origin.ParseContentRange(resp.ContentRange); ok && first >= 0 {
		if first < plan.Start {
			skip = plan.Start - first
		} else {
			start = first
		}
		if l < last {
			last = l
		}
	}
	if last < start {
		return Result{Total: total}, fmt.Errorf("%w: origin sent range %q for planned %d-%d",
			ErrUpstreamUnavailable, resp.ContentRange, plan.Start, plan.End)
	}
	length := last - start + 1

	h := w.Header()
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, last, total))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Content-Type", s.contentType(resp.ContentType))
	w.WriteHeader(http.StatusPartialContent)

	result := Result{Total: total, Start: start, End: last, UpstreamCode: resp.StatusCode}

	body := io.Reader(resp.Body)
	if skip > 0 {
		if _, err := io.CopyN(io.Discard, body, skip); err != nil {
			return result, &PipeError{Err: err, Aborted: ctx.Err() != nil}
		}
	}

	s.metrics.StreamStarted()
	began := time.Now()
	written, err := s.pipe(w, io.LimitReader(body, length))
	result.Written = written
	aborted := ctx.Err() != nil
	s.metrics.StreamFinished(written, time.Since(began), aborted)

	if err != nil {
		return result, &PipeError{Written: written, Err: err, Aborted: aborted}
	}
	if written < length {
		return result, &PipeError{Written: written, Err: io.ErrUnexpectedEOF, Aborted: aborted}
	}
	return result, nil
}

func (s *StreamService) pipe(w io.Writer, r io.Reader) (int64, error) {
	bp := s.buffers.Get().(*[]byte)
	defer s.buffers.Put(bp)
	return io.CopyBuffer(w, r, *bp)
}

func (s *StreamService) contentType(upstream string) string {
	mt, _, _ := strings.Cut(upstream, ";")
	mt = strings.TrimSpace(strings.ToLower(mt))
	if mt == "" || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		return s.cfg.DefaultContentType
	}
	return upstream
}

// upstreamErr keeps origin 4xx statuses and the caller's own cancellation
// visible and folds everything else into ErrUpstreamUnavailable.
func upstreamErr(err error) error {
	var se *origin.StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
