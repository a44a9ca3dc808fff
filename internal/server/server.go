// Package server exposes datamaps, returns and workbook uploads over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dbasik/dbasik/internal/config"
	"github.com/dbasik/dbasik/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server serves the dbasik HTTP API.
type Server struct {
	store           store.Store
	cfg             config.ServerConfig
	useDatamapTypes bool
	uploads         *rate.Limiter // nil when uploads are not throttled
	router          chi.Router
}

// New builds a Server backed by st. extractCfg supplies the default
// extraction mode for uploads that do not choose one.
func New(st store.Store, cfg config.ServerConfig, extractCfg config.ExtractConfig) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 32
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	s := &Server{
		store:           st,
		cfg:             cfg,
		useDatamapTypes: extractCfg.UseDatamapTypes,
	}
	if cfg.UploadRate > 0 {
		burst := cfg.UploadBurst
		if burst < 1 {
			burst = 1
		}
		s.uploads = rate.NewLimiter(rate.Limit(cfg.UploadRate), burst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/datamaps", func(r chi.Router) {
		r.Get("/", s.handleListDatamaps)
		r.Get("/{datamap}", s.handleGetDatamap)
	})

	r.Route("/returns", func(r chi.Router) {
		r.Get("/", s.handleListReturns)
		r.Route("/{returnID}", func(r chi.Router) {
			r.Get("/", s.handleGetReturn)
			r.With(s.throttleUploads).Post("/upload", s.handleUpload)
			r.Get("/items", s.handleListItems)
		})
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

// throttleUploads rejects uploads beyond the configured rate with 429.
// Extraction holds a workbook in memory, so bursts are refused rather than
// queued.
func (s *Server) throttleUploads(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.uploads != nil && !s.uploads.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many uploads, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
