// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stackprice/stackprice/internal/logging"
)

// HTTPService wraps an http.Server as a suture.Service. A listen failure is
// returned to the supervisor, which restarts the service with backoff.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService creates a supervised HTTP server service.
func NewHTTPService(addr string, handler http.Handler, timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       2 * timeout,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: 10 * time.Second,
	}
}

// Serve implements suture.Service. It runs the HTTP server until the context
// is canceled, then shuts down gracefully.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// String identifies the service in supervisor logs.
func (s *HTTPService) String() string {
	return "http-server"
}
