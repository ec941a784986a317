// Пакет config — загрузка и валидация конфигурации EventDesk
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые backend'ы хранилища файлов.
const (
	BlobBackendLocal = "local"
	BlobBackendGCS   = "gcs"
)

// Config содержит все параметры конфигурации EventDesk.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Доверять X-Forwarded-For при определении IP клиента
	TrustedProxy bool

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Аутентификация персонала ---

	// Issuer токенов персонала
	JWTIssuer string
	// Время жизни access token
	JWTTTL time.Duration
	// PEM-файл RSA-ключа подписи (пусто — ключ генерируется при старте)
	JWTKeyFile string
	// Ключ шифрования cookie-сессии (пустой — случайный на время жизни процесса)
	SessionSecret string
	// Secure flag для cookie
	SecureCookie bool
	// Ключ для машинного доступа к /api/v1/stats (пустой — endpoint отключён)
	APIKey string

	// --- Отзыв токенов и кэш ---

	// URL Redis для списка отозванных токенов (опционально)
	RedisURL string
	// Размер LRU-кэша сотрудников
	ActorCacheSize int
	// TTL записи LRU-кэша сотрудников
	ActorCacheTTL time.Duration

	// --- QR ---

	// Секрет шифрования QR-токенов
	QRSecret string
	// Размер QR-изображения в пикселях
	QRSize int

	// --- Хранилище файлов ---

	// Backend: local или gcs
	BlobBackend string
	// Корневая директория локального хранилища
	UploadDir string
	// Bucket Google Cloud Storage
	GCSBucket string
	// JSON сервисного аккаунта GCS (пусто — Application Default Credentials)
	GCSCredentialsJSON string
	// Таймаут одной операции с хранилищем
	BlobTimeout time.Duration
	// Максимальный размер загружаемой квитанции
	MaxUploadBytes int64
	// Максимальная ширина квитанции после оптимизации
	ReceiptMaxWidth int

	// --- Почта ---

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	// Требовать STARTTLS
	SMTPTLS bool
	// Таймаут отправки письма
	SMTPTimeout time.Duration
	// Адрес отправителя
	MailFrom string
	// Не отправлять письма, только писать в outbox
	MailSuppress bool
	// Директория локального outbox (fallback)
	OutboxDir string
	// Адреса персонала для уведомлений о новых квитанциях
	StaffEmails []string

	// --- Мероприятие ---

	// Название мероприятия в письмах
	EventName string

	// --- Мониторинг ---

	// Группа в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// OTLP endpoint трассировки (пустой — трассировка выключена)
	OTelEndpoint string
	// Health endpoint OTLP collector для topologymetrics (опционально)
	OTelHealthURL string

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// ED_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("ED_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("ED_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ED_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("ED_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ED_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("ED_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("ED_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.TrustedProxy, err = getEnvBool("ED_TRUSTED_PROXY", false)
	if err != nil {
		return nil, fmt.Errorf("ED_TRUSTED_PROXY: %w", err)
	}

	// --- PostgreSQL ---

	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}

	// --- Аутентификация персонала ---

	cfg.JWTIssuer = getEnvDefault("ED_JWT_ISSUER", "eventdesk")

	cfg.JWTTTL, err = getEnvDuration("ED_JWT_TTL", 8*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ED_JWT_TTL: %w", err)
	}
	if cfg.JWTTTL < time.Minute {
		return nil, fmt.Errorf("ED_JWT_TTL: значение %s меньше минимального 1m", cfg.JWTTTL)
	}

	cfg.JWTKeyFile = getEnvDefault("ED_JWT_KEY_FILE", "")

	cfg.SessionSecret = getEnvDefault("ED_SESSION_SECRET", "")

	cfg.SecureCookie, err = getEnvBool("ED_SECURE_COOKIE", true)
	if err != nil {
		return nil, fmt.Errorf("ED_SECURE_COOKIE: %w", err)
	}

	cfg.APIKey = getEnvDefault("ED_API_KEY", "")

	// --- Отзыв токенов и кэш ---

	cfg.RedisURL = getEnvDefault("ED_REDIS_URL", "")

	cfg.ActorCacheSize, err = getEnvInt("ED_ACTOR_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("ED_ACTOR_CACHE_SIZE: %w", err)
	}
	if cfg.ActorCacheSize < 1 {
		return nil, fmt.Errorf("ED_ACTOR_CACHE_SIZE: значение %d должно быть положительным", cfg.ActorCacheSize)
	}

	cfg.ActorCacheTTL, err = getEnvDuration("ED_ACTOR_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ED_ACTOR_CACHE_TTL: %w", err)
	}

	// --- QR ---

	// ED_QR_SECRET — обязательный: без него выданные QR-коды не переживут рестарт
	cfg.QRSecret, err = getEnvRequired("ED_QR_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.QRSize, err = getEnvInt("ED_QR_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("ED_QR_SIZE: %w", err)
	}
	if cfg.QRSize < 64 || cfg.QRSize > 2048 {
		return nil, fmt.Errorf("ED_QR_SIZE: значение %d вне допустимого диапазона 64-2048", cfg.QRSize)
	}

	// --- Хранилище файлов ---

	if err := loadBlob(cfg); err != nil {
		return nil, err
	}

	// --- Почта ---

	if err := loadMail(cfg); err != nil {
		return nil, err
	}

	// --- Мероприятие ---

	cfg.EventName = getEnvDefault("ED_EVENT_NAME", "EventDesk")

	// --- Мониторинг ---

	cfg.DephealthGroup = getEnvDefault("ED_DEPHEALTH_GROUP", "eventdesk")

	cfg.DephealthCheckInterval, err = getEnvDuration("ED_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ED_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.OTelEndpoint = getEnvDefault("ED_OTEL_ENDPOINT", "")
	cfg.OTelHealthURL = getEnvDefault("ED_OTEL_HEALTH_URL", "")

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("ED_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ED_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// LoadDatabase загружает только параметры PostgreSQL.
// Используется CLI-утилитой, которой не нужны QR, почта и хранилище.
func LoadDatabase() (*Config, error) {
	cfg := &Config{LogLevel: slog.LevelInfo, LogFormat: "text"}
	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDatabase(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("ED_DB_HOST")
	if err != nil {
		return err
	}

	cfg.DBPort, err = getEnvInt("ED_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("ED_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("ED_DB_NAME")
	if err != nil {
		return err
	}

	cfg.DBUser, err = getEnvRequired("ED_DB_USER")
	if err != nil {
		return err
	}

	cfg.DBPassword, err = getEnvRequired("ED_DB_PASSWORD")
	if err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("ED_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("ED_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	return nil
}

func loadBlob(cfg *Config) error {
	var err error

	cfg.BlobBackend = getEnvDefault("ED_BLOB_BACKEND", BlobBackendLocal)
	switch cfg.BlobBackend {
	case BlobBackendLocal:
		cfg.UploadDir = getEnvDefault("ED_UPLOAD_DIR", "./data/uploads")
	case BlobBackendGCS:
		cfg.GCSBucket, err = getEnvRequired("ED_GCS_BUCKET")
		if err != nil {
			return err
		}
		cfg.GCSCredentialsJSON = os.Getenv("ED_GCS_CREDENTIALS_JSON")
	default:
		return fmt.Errorf("ED_BLOB_BACKEND: недопустимое значение %q, допустимые: local, gcs", cfg.BlobBackend)
	}

	cfg.BlobTimeout, err = getEnvDuration("ED_BLOB_TIMEOUT", 30*time.Second)
	if err != nil {
		return fmt.Errorf("ED_BLOB_TIMEOUT: %w", err)
	}

	maxUpload, err := getEnvInt("ED_MAX_UPLOAD_BYTES", 5*1024*1024)
	if err != nil {
		return fmt.Errorf("ED_MAX_UPLOAD_BYTES: %w", err)
	}
	if maxUpload < 1024 {
		return fmt.Errorf("ED_MAX_UPLOAD_BYTES: значение %d слишком мало", maxUpload)
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	cfg.ReceiptMaxWidth, err = getEnvInt("ED_RECEIPT_MAX_WIDTH", 1200)
	if err != nil {
		return fmt.Errorf("ED_RECEIPT_MAX_WIDTH: %w", err)
	}

	return nil
}

func loadMail(cfg *Config) error {
	var err error

	cfg.SMTPHost = getEnvDefault("ED_SMTP_HOST", "")

	cfg.SMTPPort, err = getEnvInt("ED_SMTP_PORT", 587)
	if err != nil {
		return fmt.Errorf("ED_SMTP_PORT: %w", err)
	}

	cfg.SMTPUsername = getEnvDefault("ED_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("ED_SMTP_PASSWORD", "")

	cfg.SMTPTLS, err = getEnvBool("ED_SMTP_TLS", true)
	if err != nil {
		return fmt.Errorf("ED_SMTP_TLS: %w", err)
	}

	cfg.SMTPTimeout, err = getEnvDuration("ED_SMTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return fmt.Errorf("ED_SMTP_TIMEOUT: %w", err)
	}

	cfg.MailFrom = getEnvDefault("ED_MAIL_FROM", "noreply@eventdesk.local")

	cfg.MailSuppress, err = getEnvBool("ED_MAIL_SUPPRESS", false)
	if err != nil {
		return fmt.Errorf("ED_MAIL_SUPPRESS: %w", err)
	}

	cfg.OutboxDir = getEnvDefault("ED_OUTBOX_DIR", "./data/outbox")
	cfg.StaffEmails = parseCSV(getEnvDefault("ED_STAFF_EMAILS", ""))

	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// SMTPEnabled — настроена ли реальная отправка почты.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && !c.MailSuppress
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
