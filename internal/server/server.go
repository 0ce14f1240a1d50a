package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/playperu/quizboard/internal/handler/health"
	"github.com/playperu/quizboard/internal/live"
	"github.com/playperu/quizboard/internal/quizboard"
	"github.com/playperu/quizboard/internal/ratelimit"
)

// Deps are the collaborators the HTTP layer routes to.
type Deps struct {
	Logger      *slog.Logger
	Service     *quizboard.Service
	Hub         *live.Hub
	Broadcaster *live.Broadcaster
	Limiter     ratelimit.Limiter
	Checks      map[string]health.Checker
	StaticDir   string
	CORSOrigins []string
	StartedAt   time.Time
	// TrustedProxies may set the client address via forwarding headers.
	TrustedProxies []netip.Prefix
}

type Server struct {
	srv             *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(addr string, shutdownTimeout time.Duration, deps Deps) *Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Closing the hub ends every push stream, which lets Shutdown finish
	// waiting on them.
	srv.RegisterOnShutdown(deps.Hub.Close)

	return &Server{srv: srv, logger: deps.Logger, shutdownTimeout: shutdownTimeout}
}

func newRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(realIPFrom(deps.TrustedProxies))
	r.Use(newStructuredLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	addRoutes(r, deps)
	return r
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
