// Package server assembles the HTTP API and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"restaurant-system/internal/auth"
	"restaurant-system/internal/httputil"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
	"restaurant-system/internal/services/menu"
	"restaurant-system/internal/services/notification"
	"restaurant-system/internal/services/order"
	"restaurant-system/internal/services/tracking"
)

// HealthChecker reports whether the service's dependencies are reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Dependencies are the handlers and collaborators mounted by NewRouter.
// Hub is optional.
type Dependencies struct {
	Orders         *order.Handler
	Tracking       *tracking.Handler
	Menu           *menu.Handler
	Hub            *notification.Hub
	Verifier       *auth.Verifier
	Health         HealthChecker
	Logger         *logger.Logger
	RequestTimeout time.Duration
}

// NewRouter builds the API:
//
//	GET  /health
//	/api/v1/menu...          public menu reads
//	/api/v1/cart...          authenticated cart
//	/api/v1/orders...        authenticated checkout, tracking and status changes
//	/api/v1/menu... (writes) admin only
//	GET  /api/v1/ws/orders   live status updates
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	authenticate := Authenticate(deps.Verifier, log)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(WithLogging(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler(deps.Health, log))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.RequestTimeout > 0 {
				r.Use(middleware.Timeout(deps.RequestTimeout))
			}
			deps.Menu.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				deps.Orders.RegisterRoutes(r)
				deps.Tracking.RegisterRoutes(r)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(log, models.RoleAdmin))
					deps.Menu.RegisterAdminRoutes(r)
				})
			})
		})

		if deps.Hub != nil {
			r.With(TokenFromQuery, authenticate).Get("/ws/orders", deps.Hub.ServeWS)
		}
	})

	return otelhttp.NewHandler(r, "restaurant-api")
}

func healthHandler(checker HealthChecker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if !checker.HealthCheck(r.Context()) {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		resp := map[string]string{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if err := httputil.WriteJSON(w, code, resp); err != nil {
			log.Error("response_encoding_failed", "Failed to encode health response", logger.RequestIDFromContext(r.Context()), err, nil)
		}
	}
}

// Run serves handler on port until ctx is cancelled, then shuts down within
// shutdownTimeout
func Run(ctx context.Context, port int, handler http.Handler, shutdownTimeout time.Duration, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_started", fmt.Sprintf("HTTP server listening on port %d", port), "", map[string]interface{}{
			"port": port,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("graceful_shutdown", "Shutting down HTTP server", "", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
