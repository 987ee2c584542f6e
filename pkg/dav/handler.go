// Package dav serves the virtual filesystem to WebDAV clients. Only PROPFIND and GET
// are supported; the tree is read-only.
package dav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"torboxdav/pkg/logger"
	"torboxdav/pkg/metrics"
	"torboxdav/pkg/vfs"
)

const MethodPropfind = "PROPFIND"

// LinkResolver turns a file locator into a fetchable URL
type LinkResolver interface {
	Resolve(ctx context.Context, torrentID, fileID int64) (string, error)
}

// Streamer opens an upstream GET, forwarding rangeHeader when it is not empty
type Streamer interface {
	OpenStream(ctx context.Context, downloadURL, rangeHeader string) (*http.Response, error)
}

// Handler answers PROPFIND and GET against a vfs.Filesystem
type Handler struct {
	fs       *vfs.Filesystem
	links    LinkResolver
	streamer Streamer
}

// NewHandler creates a WebDAV handler
func NewHandler(fs *vfs.Filesystem, links LinkResolver, streamer Streamer) *Handler {
	return &Handler{
		fs:       fs,
		links:    links,
		streamer: streamer,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("DAV", "1")

	switch r.Method {
	case MethodPropfind:
		h.handlePropfind(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		w.Header().Set("Allow", "GET, PROPFIND")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// shallow reports whether the Depth header asks for the node only. 1, infinity and an
// absent or unknown value all list direct children.
func shallow(depth string) bool {
	return strings.TrimSpace(depth) == "0"
}

func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request) {
	p := vfs.NormalizePath(r.URL.Path)
	depth := r.Header.Get("Depth")

	node, children, ok := h.fs.Stat(p)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var entries []vfs.Entry
	if _, isFolder := node.(vfs.Folder); isFolder && !shallow(depth) {
		sort.Slice(children, func(i, j int) bool {
			return children[i].Path < children[j].Path
		})
		entries = append(children, vfs.Entry{Path: p, Node: node})
	} else {
		entries = []vfs.Entry{{Path: p, Node: node}}
	}

	buf := getResponseBuffer()
	defer putResponseBuffer(buf)
	writeMultistatus(buf, entries)

	logger.Debug("[DAV] PROPFIND %s (depth %q): %d entries", p, depth, len(entries))

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug("[DAV] Failed to write PROPFIND response for %s: %v", p, err)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := vfs.NormalizePath(r.URL.Path)

	node, ok := h.fs.Lookup(p)
	if !ok {
		http.NotFound(w, r)
		return
	}
	file, ok := node.(vfs.File)
	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	downloadURL := file.URL
	if downloadURL == "" {
		var err error
		downloadURL, err = h.links.Resolve(ctx, file.Locator.TorrentID, file.Locator.FileID)
		if err != nil {
			logger.Error("[DAV] Failed to resolve download link for %s: %v", p, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	rangeHeader := r.Header.Get("Range")
	resp, err := h.streamer.OpenStream(ctx, downloadURL, rangeHeader)
	if err != nil {
		logger.Error("[DAV] Failed to open upstream stream for %s: %v", p, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for key, values := range resp.Header {
		if http.CanonicalHeaderKey(key) == "Transfer-Encoding" {
			continue
		}
		for _, v := range values {
			header.Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	buf := getCopyBuffer()
	defer putCopyBuffer(buf)

	n, err := io.CopyBuffer(w, resp.Body, *buf)
	metrics.AddStreamBytes(n)
	if err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		logger.Warn("[DAV] Stream of %s interrupted after %s: %v", p, humanize.Bytes(uint64(n)), err)
		return
	}

	if rangeHeader != "" {
		logger.Debug("[DAV] Streamed %s of %s (range %s, status %d)", humanize.Bytes(uint64(n)), p, rangeHeader, resp.StatusCode)
	} else {
		logger.Debug("[DAV] Streamed %s of %s (status %d)", humanize.Bytes(uint64(n)), p, resp.StatusCode)
	}
}
