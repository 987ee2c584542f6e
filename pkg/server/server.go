package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"torboxdav/pkg/logger"
	"torboxdav/pkg/metrics"
)

const (
	RequestIDHeader = "X-Request-ID"
	shutdownTimeout = 10 * time.Second
)

// Server serves the WebDAV handler and, when configured, the metrics endpoint
type Server struct {
	Address        string
	MetricsAddress string
	handler        http.Handler
}

// NewServer creates a new server instance around the WebDAV handler
func NewServer(address, metricsAddress string, davHandler http.Handler) *Server {
	return &Server{
		Address:        address,
		MetricsAddress: metricsAddress,
		handler:        Middleware(davHandler),
	}
}

// Run listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:              s.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}

	if s.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              s.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			shutdown(servers)
			return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
		}
		logger.Info("[Server] Listening on http://%s", ln.Addr())

		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv, ln)
	}

	select {
	case <-ctx.Done():
		logger.Info("[Server] Shutting down")
		shutdown(servers)
		return nil
	case err := <-errCh:
		shutdown(servers)
		return err
	}
}

func shutdown(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("[Server] Shutdown of %s: %v", srv.Addr, err)
		}
	}
}

// responseRecorder captures the status code and body size of a response
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware tags every request with an ID, records metrics and writes an access log line
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, rec.statusCode, duration)

		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.statusCode,
			"bytes":      rec.size,
			"duration":   duration.Round(time.Millisecond).String(),
		})
		if rng := r.Header.Get("Range"); rng != "" {
			entry = entry.WithField("range", rng)
		}

		switch {
		case rec.statusCode >= http.StatusInternalServerError:
			entry.Warn("[Server] Request failed")
		default:
			entry.Debug("[Server] Request served")
		}
	})
}
