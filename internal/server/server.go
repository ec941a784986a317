// Пакет server — HTTP-сервер EventDesk с graceful shutdown.
// Без TLS — TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bigkaa/eventdesk/internal/api/handlers"
	"github.com/bigkaa/eventdesk/internal/api/middleware"
	"github.com/bigkaa/eventdesk/internal/config"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
)

// Server — HTTP-сервер EventDesk.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// staffAuth проверяет токены персонала на /api/v1/admin, /scanner и /auth.
func New(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, staffAuth *middleware.StaffAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(NewRouter(cfg, logger, h, staffAuth), "eventdesk"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты API.
func NewRouter(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, staffAuth *middleware.StaffAuth) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.ClientIP(cfg.TrustedProxy))

	// Health и metrics проверяются Kubernetes напрямую.
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)
	router.Get("/.well-known/jwks.json", h.JWKS)

	router.Route("/api/v1", func(r chi.Router) {
		// Публичная часть: участник и вход персонала.
		r.Post("/registrations", h.Register)
		r.Get("/registrations/check-email", h.CheckEmail)
		r.Get("/registrations/check-phone", h.CheckPhone)
		r.Post("/registrations/{id}/receipt", h.UploadReceipt)
		r.Get("/registrations/{id}/status", h.RegistrationStatus)
		r.Post("/auth/login", h.Login)

		// Машинный доступ по API-ключу.
		r.With(middleware.RequireAPIKey(cfg.APIKey)).Get("/stats", h.Stats)

		// Персонал: токен, затем право на конкретный маршрут.
		r.Group(func(r chi.Router) {
			r.Use(staffAuth.Middleware())

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)

			r.With(middleware.RequirePermission(rbac.PermCheckInAttendees)).
				Post("/scanner/verify", h.ScannerVerify)

			r.Route("/admin", func(r chi.Router) {
				r.With(middleware.RequirePermission(rbac.PermViewDashboard)).Get("/dashboard", h.Dashboard)

				r.Route("/registrations", func(r chi.Router) {
					view := middleware.RequirePermission(rbac.PermViewRegistrations)
					approve := middleware.RequirePermission(rbac.PermApproveRegistrations)
					reject := middleware.RequirePermission(rbac.PermRejectRegistrations)
					manage := middleware.RequirePermission(rbac.PermManageRegistrations)

					r.With(view).Get("/", h.ListRegistrations)
					r.With(approve).Post("/bulk-approve", h.BulkApprove)
					r.With(reject).Post("/bulk-reject", h.BulkReject)

					r.Route("/{id}", func(r chi.Router) {
						r.With(view).Get("/", h.GetRegistration)
						r.With(view).Get("/receipt", h.DownloadReceipt)
						r.With(view).Get("/qr", h.DownloadQR)
						r.With(approve).Post("/approve", h.Approve)
						r.With(reject).Post("/reject", h.Reject)
						r.With(middleware.RequirePermission(rbac.PermCheckInAttendees)).Post("/check-in", h.CheckIn)
						r.With(manage).Post("/archive", h.Archive)
						r.With(manage).Post("/unarchive", h.Unarchive)
						r.With(manage).Delete("/", h.DeleteRegistration)
					})
				})

				r.With(middleware.RequirePermission(rbac.PermSendEmails)).Post("/reminders", h.SendReminders)
				r.With(middleware.RequirePermission(rbac.PermViewAuditLogs)).Get("/audit-logs", h.ListAuditLogs)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(rbac.PermManageAdmins))

					r.Get("/actors", h.ListActors)
					r.Post("/actors", h.CreateActor)
					r.Get("/actors/{id}", h.GetActor)
					r.Put("/actors/{id}", h.UpdateActor)
					r.Delete("/actors/{id}", h.DeleteActor)
					r.Get("/roles", h.ListRoles)
					r.Get("/permissions", h.ListPermissions)
				})
			})
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
