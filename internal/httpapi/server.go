package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/roach88/keyringdb/internal/metrics"
)

// statusCodeResponseWriter remembers the status written through it.
type statusCodeResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusCodeResponseWriter(w http.ResponseWriter) *statusCodeResponseWriter {
	// WriteHeader is not called for an implicit 200 OK.
	return &statusCodeResponseWriter{w, http.StatusOK}
}

func (scrw *statusCodeResponseWriter) WriteHeader(code int) {
	scrw.statusCode = code
	scrw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (scrw *statusCodeResponseWriter) Unwrap() http.ResponseWriter {
	return scrw.ResponseWriter
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	Addr        string
	Metrics     *metrics.Metrics // nil disables /metrics and HTTP timing
	MetricsPath string
	Logger      *slog.Logger
}

// Server is the keyringdb HTTP server.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer routes h (and /metrics when enabled) behind request logging.
func NewServer(h *Handler, opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "http")

	r := httprouter.New()
	h.Register(r)
	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.Handler(http.MethodGet, opts.MetricsPath, opts.Metrics.Handler())
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           instrument(r, opts.Metrics, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if h.changes != nil {
		// Event streams never go idle on their own.
		srv.RegisterOnShutdown(h.changes.Close)
	}
	return &Server{srv: srv, log: log}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", l.Addr().String())
		errc <- s.srv.Serve(l)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func instrument(next http.Handler, m *metrics.Metrics, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := time.Now()
		scrw := newStatusCodeResponseWriter(rw)
		next.ServeHTTP(scrw, req)
		duration := time.Since(start)

		log.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", scrw.statusCode,
			"duration", duration.String(),
			"from", req.RemoteAddr)
		m.HTTPRequest(req.Method, scrw.statusCode, duration)
	})
}
