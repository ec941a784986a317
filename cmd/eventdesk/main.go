// Точка входа EventDesk — регистрация участников мероприятия и проход по QR-кодам.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает хранилище файлов, почту, выпуск токенов персонала и сервисный слой,
// запускает мониторинг зависимостей и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/eventdesk/internal/api/handlers"
	"github.com/bigkaa/eventdesk/internal/api/middleware"
	"github.com/bigkaa/eventdesk/internal/auth"
	"github.com/bigkaa/eventdesk/internal/blobstore"
	"github.com/bigkaa/eventdesk/internal/config"
	"github.com/bigkaa/eventdesk/internal/database"
	"github.com/bigkaa/eventdesk/internal/notify"
	"github.com/bigkaa/eventdesk/internal/qrcode"
	"github.com/bigkaa/eventdesk/internal/repository"
	"github.com/bigkaa/eventdesk/internal/server"
	"github.com/bigkaa/eventdesk/internal/service"
	"github.com/bigkaa/eventdesk/internal/telemetry"
)

// revokedTokensCapacity — размер in-memory списка отозванных токенов.
const revokedTokensCapacity = 10000

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("EventDesk запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("event", cfg.EventName),
	)

	ctx := context.Background()

	// 3. Трассировка (опционально)
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "eventdesk", config.Version, logger)
	if err != nil {
		logger.Warn("Трассировка недоступна, запуск без неё", slog.String("error", err.Error()))
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Repositories
	repos := repository.NewRepositories(pool)

	// 7. Хранилище файлов (квитанции и QR-коды)
	var blobs blobstore.Store
	switch cfg.BlobBackend {
	case config.BlobBackendGCS:
		gcs, err := blobstore.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			logger.Error("Ошибка подключения к GCS", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer gcs.Close()
		blobs = gcs
	default:
		local, err := blobstore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			logger.Error("Ошибка создания локального хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		blobs = local
	}
	logger.Info("Хранилище файлов инициализировано", slog.String("backend", cfg.BlobBackend))

	// 8. Почта: SMTP с резервным outbox или только outbox
	outbox, err := notify.NewOutboxSink(cfg.OutboxDir, logger)
	if err != nil {
		logger.Error("Ошибка создания outbox", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var sink notify.Sink = outbox
	if cfg.SMTPEnabled() {
		smtp := notify.NewSMTPSink(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
			From:     cfg.MailFrom,
			Timeout:  cfg.SMTPTimeout,
		}, logger)
		sink = notify.Fallback(smtp, outbox, logger)
		logger.Info("Почта через SMTP", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Warn("SMTP не настроен, письма сохраняются в outbox",
			slog.String("dir", cfg.OutboxDir),
		)
	}

	// 9. QR-токены
	codec, err := qrcode.NewCodec(cfg.QRSecret)
	if err != nil {
		logger.Error("Ошибка инициализации QR-кодека", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Токены персонала и список отозванных токенов
	issuer, err := auth.NewTokenIssuer(ctx, cfg.JWTIssuer, cfg.JWTTTL, cfg.JWTKeyFile)
	if err != nil {
		logger.Error("Ошибка инициализации выпуска токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.JWTKeyFile == "" {
		logger.Warn("ED_JWT_KEY_FILE не задан, токены персонала не переживут рестарт")
	}

	var revoker auth.Revoker
	if cfg.RedisURL != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Ошибка подключения к Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rdb.Close()
		revoker = auth.NewRedisRevoker(rdb)
		logger.Info("Список отозванных токенов в Redis")
	} else {
		revoker = auth.NewMemoryRevoker(revokedTokensCapacity, cfg.JWTTTL)
		logger.Info("Список отозванных токенов в памяти процесса")
	}

	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SecureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("ED_SESSION_SECRET не задан, cookie-сессии не сохраняются между рестартами")
	}

	// 11. Services
	audit := service.NewAuditRecorder(logger)
	actorCache := service.NewActorCache(repos, cfg.ActorCacheSize, cfg.ActorCacheTTL)

	workflowSvc := service.NewWorkflowService(
		repos, blobs,
		blobstore.NewOptimizer(cfg.ReceiptMaxWidth),
		codec, sink, audit,
		service.WorkflowConfig{
			EventName:      cfg.EventName,
			StaffEmails:    cfg.StaffEmails,
			QRSize:         cfg.QRSize,
			MaxUploadBytes: cfg.MaxUploadBytes,
			BlobTimeout:    cfg.BlobTimeout,
			NotifyTimeout:  cfg.SMTPTimeout,
		},
		logger,
	)
	registrationSvc := service.NewRegistrationService(repos, sink, audit, cfg.EventName, cfg.SMTPTimeout, logger)
	actorSvc := service.NewActorService(repos, issuer, revoker, actorCache, audit, logger)
	auditSvc := service.NewAuditService(repos)

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + OTLP collector)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:          "eventdesk",
		Group:              cfg.DephealthGroup,
		PGConnURL:          cfg.DatabaseURL(),
		CollectorHealthURL: cfg.OTelHealthURL,
		CheckInterval:      cfg.DephealthCheckInterval,
	}, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. API handlers
	var deps handlers.DependencyReporter
	if dephealthSvc != nil {
		deps = dephealthSvc
	}
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), deps)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		registrationSvc,
		workflowSvc,
		actorSvc,
		auditSvc,
		issuer,
		sessions,
		cfg.MaxUploadBytes,
		logger,
	)
	staffAuth := middleware.NewStaffAuth(actorSvc, sessions, logger)

	if cfg.APIKey == "" {
		logger.Info("ED_API_KEY не задан, /api/v1/stats отключён")
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, staffAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Ошибка остановки трассировки", slog.String("error", err.Error()))
		}
	}

	logger.Info("EventDesk остановлен")
}
