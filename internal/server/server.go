// Package server runs the HTTP server in front of the platform handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/txn2/source-wizard/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

const readHeaderTimeout = 10 * time.Second

// New creates an http.Server for h using the listener settings in cfg.
func New(cfg platform.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           withVersion(h),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// withVersion adds the X-Server-Version header to every response.
func withVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Server-Version", Version)
		next.ServeHTTP(w, r)
	})
}

// Run serves on ln until ctx is done, then shuts down gracefully, waiting at
// most cfg.ShutdownTimeout for in-flight requests.
func Run(ctx context.Context, srv *http.Server, ln net.Listener, cfg platform.ServerConfig) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLS.Enabled {
			err = srv.ServeTLS(ln, cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("server listening", "address", ln.Addr().String(), "tls", cfg.TLS.Enabled, "version", Version)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// ListenAndRun listens on srv.Addr and calls Run.
func ListenAndRun(ctx context.Context, srv *http.Server, cfg platform.ServerConfig) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	return Run(ctx, srv, ln, cfg)
}
