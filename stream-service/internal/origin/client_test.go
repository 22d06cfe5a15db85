package origin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
)

func newClient(url string, retries int) *Client {
	return NewClient(config.OriginConfig{
		BaseURL:        url + "/files/",
		MediaQuery:     "alt=media",
		SizeTimeout:    time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, nil, nil)
}

func TestParseContentRange(t *testing.T) {
	first, last, total, ok := ParseContentRange("bytes 0-0/1234")
	require.True(t, ok)
	assert.Equal(t, []int64{0, 0, 1234}, []int64{first, last, total})

	first, last, total, ok = ParseContentRange("bytes */55")
	require.True(t, ok)
	assert.Equal(t, []int64{-1, -1, 55}, []int64{first, last, total})

	_, _, total, ok = ParseContentRange("bytes 5-9/*")
	require.True(t, ok)
	assert.Equal(t, int64(-1), total)

	for _, bad := range []string{"", "bytes", "bytes 9-5/10", "items 0-1/2", "bytes 0-1"} {
		_, _, _, ok := ParseContentRange(bad)
		assert.False(t, ok, bad)
	}
}

func TestStatSendsCredentialAndProbe(t *testing.T) {
	var gotAuth, gotRange, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRange = r.Header.Get("Range")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Range", "bytes 0-0/4096")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte{0})
	}))
	defer srv.Close()

	size, err := newClient(srv.URL, 0).Stat(context.Background(), "abc", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "bytes=0-0", gotRange)
	assert.Equal(t, "/files/abc", gotPath)
	assert.Equal(t, "alt=media", gotQuery)
}

func TestStatFallbacks(t *testing.T) {
	full := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 300))
	}))
	defer full.Close()
	size, err := newClient(full.URL, 0).Stat(context.Background(), "abc", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes */0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer empty.Close()
	size, err = newClient(empty.URL, 0).Stat(context.Background(), "abc", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestRetriesOnlyTransientFailures(t *testing.T) {
	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Range", "bytes 0-0/10")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer flaky.Close()

	size, err := newClient(flaky.URL, 3).Stat(context.Background(), "abc", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
	assert.Equal(t, int32(3), calls.Load())

	var denied atomic.Int32
	forbidden := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		denied.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer forbidden.Close()

	_, err = newClient(forbidden.URL, 3).Fetch(context.Background(), "abc", "tok", 0, 9)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, int32(1), denied.Load())
}

func TestFetchOpenRange(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "video/webm")
		w.Header().Set("Content-Range", "bytes 5-9/10")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL, 0).Fetch(context.Background(), "abc", "tok", 5, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "bytes=5-", gotRange)
	assert.Equal(t, "bytes 5-9/10", resp.ContentRange)
	assert.Equal(t, "video/webm", resp.ContentType)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}
