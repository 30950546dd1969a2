package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/drawpile/listform/db"
	"github.com/drawpile/listform/ratelimit"
	"github.com/drawpile/listform/validation"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/m-mizutani/goerr/v2"
)

type server struct {
	cfg         *config
	db          db.Database
	views       *views
	ratelimiter *ratelimit.BucketMap
	logger      *slog.Logger
	lookup      validation.Resolver
	now         func() time.Time
}

func newServer(cfg *config, database db.Database, logger *slog.Logger) (*server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	return &server{
		cfg:         cfg,
		db:          database,
		views:       v,
		ratelimiter: ratelimit.NewBucketMap(ratelimit.DefaultLimits),
		logger:      logger,
		lookup:      net.LookupIP,
		now:         time.Now,
	}, nil
}

// handle adapts an endpoint returning a response into an http.Handler
func handle(endpoint func(*http.Request) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint(r).ServeHTTP(w, r)
	})
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", handle(s.indexHandler)).Methods(http.MethodGet)
	r.Handle("/announce", handle(s.announceFormHandler)).Methods(http.MethodGet)
	r.Handle("/announce", handle(s.announceSubmitHandler)).Methods(http.MethodPost)
	r.Handle("/healthz", handle(s.healthHandler)).Methods(http.MethodGet)

	aam := &adminAuthMiddleware{
		adminUser:     s.cfg.AdminUser,
		adminPassHash: s.cfg.AdminPassHash,
		logger:        s.logger,
	}
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(aam.Middleware)
	admin.Handle("/bans", handle(s.banListHandler)).Methods(http.MethodGet)
	admin.Handle("/bans", handle(s.banCreateHandler)).Methods(http.MethodPost)

	var h http.Handler = r

	if s.cfg.LogRequests {
		h = handlers.CustomLoggingHandler(io.Discard, h, func(_ io.Writer, p handlers.LogFormatterParams) {
			s.logger.Info("Request",
				"method", p.Request.Method,
				"path", p.URL.Path,
				"status", p.StatusCode,
				"size", p.Size,
				"remote", p.Request.RemoteAddr,
			)
		})
	}

	if s.cfg.ProxyHeaders {
		h = handlers.ProxyHeaders(h)
	}

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
}

// serve runs the HTTP server until ctx is cancelled
func (s *server) serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting list form server", "listen", s.cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- goerr.Wrap(err, "server failed", goerr.V("listen", s.cfg.Listen))
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shut down server")
	}
	return nil
}
