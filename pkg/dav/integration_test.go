package dav

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studio-b12/gowebdav"

	"torboxdav/pkg/linkcache"
	"torboxdav/pkg/torbox"
)

const upstreamContent = "hello world"

// newUpstream fakes the TorBox API and its CDN on one server
func newUpstream(t *testing.T, requestdlCalls *atomic.Int32) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/torrents/requestdl", func(w http.ResponseWriter, r *http.Request) {
		requestdlCalls.Add(1)
		// let concurrent callers pile up on the in-flight request
		time.Sleep(50 * time.Millisecond)
		q := r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    srv.URL + "/dl/" + q.Get("torrent_id") + "/" + q.Get("file_id"),
		})
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "b.txt", time.Time{}, strings.NewReader(upstreamContent))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newDavServer(t *testing.T, requestdlCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	upstream := newUpstream(t, requestdlCalls)

	client := torbox.NewClient("test-key", torbox.WithBaseURL(upstream.URL), torbox.WithRateLimit(0))
	links := linkcache.New(client, time.Hour)

	srv := httptest.NewServer(NewHandler(newTestFS(t), links, client))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebDAVClientStat(t *testing.T) {
	var calls atomic.Int32
	srv := newDavServer(t, &calls)
	c := gowebdav.NewClient(srv.URL, "", "")

	info, err := c.Stat("/a/b.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(11), info.Size())

	info, err = c.Stat("/a")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = c.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = c.Stat("/missing")
	assert.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWebDAVClientReadStream(t *testing.T) {
	var calls atomic.Int32
	srv := newDavServer(t, &calls)
	c := gowebdav.NewClient(srv.URL, "", "")

	stream, err := c.ReadStream("/a/b.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, upstreamContent, string(data))

	_, err = c.ReadStream("/a")
	assert.Error(t, err)
}

func TestConcurrentRangeRequestsShareOneResolution(t *testing.T) {
	var calls atomic.Int32
	srv := newDavServer(t, &calls)

	const requests = 8
	var wg sync.WaitGroup
	bodies := make([]string, requests)
	codes := make([]int, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/a/b.txt", nil)
			if err != nil {
				return
			}
			req.Header.Set("Range", "bytes=6-")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			bodies[i] = string(b)
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < requests; i++ {
		assert.Equal(t, http.StatusPartialContent, codes[i])
		assert.Equal(t, "world", bodies[i])
	}
	assert.Equal(t, int32(1), calls.Load())
}
