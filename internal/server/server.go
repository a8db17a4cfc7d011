// Package server exposes the console over HTTP: catalog listing, embed
// views and their previews, the builder session and its browser bridge.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/builder/wsbridge"
	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/console"
	"github.com/goliatone/go-formembed/pkg/preview"
	"github.com/goliatone/go-formembed/pkg/style"
)

// BuilderPrefix is where the bridge serves builder pages.
const BuilderPrefix = "/builder"

// Dependencies are the collaborators the server routes to.
type Dependencies struct {
	Catalog   catalog.Catalog
	Generator console.Generator
	Previews  preview.Store
	Session   *builder.Session
	// Bridge is optional; without it no builder page routes are served.
	Bridge  *wsbridge.Bridge
	Presets style.Presets
	Logger  *zap.Logger
	Metrics *Metrics
}

// Server is the HTTP console.
type Server struct {
	deps    Dependencies
	views   *console.Registry
	router  *gin.Engine
	logger  *zap.Logger
	metrics *Metrics
}

// New wires the routes.
func New(deps Dependencies) (*Server, error) {
	if deps.Catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("server: generator is required")
	}
	if deps.Previews == nil {
		return nil, errors.New("server: preview store is required")
	}
	if deps.Session == nil {
		return nil, errors.New("server: builder session is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		deps: deps,
		views: console.NewRegistry(deps.Generator, deps.Previews,
			console.WithLogger(logger),
			console.WithLiveGauge(metrics.LivePreviews),
		),
		logger:  logger,
		metrics: metrics,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), metrics.instrument())
	s.routes(router)
	s.router = router
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Views exposes the open embed views.
func (s *Server) Views() *console.Registry {
	return s.views
}

// Close releases every open view and detaches the builder.
func (s *Server) Close(ctx context.Context) {
	s.views.CloseAll(ctx)
	s.deps.Session.Detach()
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("console listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("console shutting down")
	s.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
