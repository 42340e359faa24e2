// Пакет config — загрузка и валидация конфигурации Maltalist API
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

// Config содержит все параметры конфигурации Maltalist API.
type Config struct {
	// Порт HTTP-сервера
	Port int

	// Параметры подключения к PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Корневая директория хранения картинок
	PicturesDir string
	// Префикс публичных URL картинок
	PicturesURLPrefix string

	// URL JWKS endpoint провайдера аутентификации
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Отключить проверку TLS-сертификата JWKS endpoint (только для разработки)
	JWKSTLSSkipVerify bool

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Максимальное количество записей в LRU-кэше URL картинок
	CacheSize int
	// Время жизни записи кэша
	CacheTTL time.Duration

	// Интервал фоновой очистки истёкших продвижений
	PromoPurgeInterval time.Duration

	// Интервал фоновой сверки директорий картинок с БД
	ReconcileInterval time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (ML_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// ML_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("ML_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("ML_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("ML_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// ML_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("ML_DB_HOST")
	if err != nil {
		return nil, err
	}

	// ML_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("ML_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("ML_DB_PORT: %w", err)
	}

	// ML_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("ML_DB_NAME")
	if err != nil {
		return nil, err
	}

	// ML_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("ML_DB_USER")
	if err != nil {
		return nil, err
	}

	// ML_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("ML_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// ML_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("ML_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("ML_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// ML_PICTURES_DIR — обязательный, корневая директория картинок
	cfg.PicturesDir, err = getEnvRequired("ML_PICTURES_DIR")
	if err != nil {
		return nil, err
	}

	// ML_PICTURES_URL_PREFIX — префикс публичных URL (по умолчанию /assets/img)
	cfg.PicturesURLPrefix = getEnvDefault("ML_PICTURES_URL_PREFIX", "/assets/img")
	if !strings.HasPrefix(cfg.PicturesURLPrefix, "/") {
		return nil, fmt.Errorf("ML_PICTURES_URL_PREFIX: значение %q должно начинаться с /", cfg.PicturesURLPrefix)
	}

	// ML_JWKS_URL — обязательный
	cfg.JWKSUrl, err = getEnvRequired("ML_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// ML_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("ML_JWKS_CA_CERT", "")

	// ML_JWKS_TLS_SKIP_VERIFY — отключить проверку TLS-сертификата JWKS endpoint
	cfg.JWKSTLSSkipVerify, err = getEnvBool("ML_JWKS_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("ML_JWKS_TLS_SKIP_VERIFY: %w", err)
	}

	// ML_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("ML_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ML_LOG_LEVEL: %w", err)
	}

	// ML_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("ML_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("ML_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// ML_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s).
	// Должен вмещать загрузку пакета из 10 картинок по 5 MB на медленном канале.
	cfg.HTTPReadTimeout, err = getEnvDuration("ML_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ML_HTTP_READ_TIMEOUT: %w", err)
	}

	// ML_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("ML_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ML_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// ML_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("ML_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ML_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// ML_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("ML_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ML_SHUTDOWN_TIMEOUT: %w", err)
	}

	// ML_CACHE_SIZE — максимум записей в LRU-кэше URL картинок (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("ML_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("ML_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("ML_CACHE_SIZE: значение должно быть положительным")
	}

	// ML_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("ML_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("ML_CACHE_TTL: %w", err)
	}

	// ML_PROMO_PURGE_INTERVAL — интервал очистки истёкших продвижений (по умолчанию 1h)
	cfg.PromoPurgeInterval, err = getEnvDuration("ML_PROMO_PURGE_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ML_PROMO_PURGE_INTERVAL: %w", err)
	}

	// ML_RECONCILE_INTERVAL — интервал сверки картинок с БД (по умолчанию 24h)
	cfg.ReconcileInterval, err = getEnvDuration("ML_RECONCILE_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ML_RECONCILE_INTERVAL: %w", err)
	}

	// ML_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("ML_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ML_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// ML_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "maltalist-api")
	cfg.DephealthGroup = getEnvDefault("ML_DEPHEALTH_GROUP", "maltalist-api")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 5m)", val)
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
