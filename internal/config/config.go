// Пакет config — загрузка и валидация конфигурации feedgate
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // таймзона аудита должна грузиться и в distroless-образе

	"github.com/bigkaa/feedgate/internal/tabular"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды табличного хранилища.
const (
	StoreBackendSheets   = "sheets"
	StoreBackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации feedgate.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Значение Access-Control-Allow-Origin
	CORSAllowedOrigin string

	// --- Табличное хранилище ---

	// Бэкенд: sheets или postgres
	StoreBackend string
	// ID таблицы Google Sheets (пусто — хранилище не настроено)
	SheetsSpreadsheetID string
	// JSON ключа сервисного аккаунта Google (из файла или переменной)
	SheetsCredentialsJSON []byte
	// Базовый URL Sheets API
	SheetsBaseURL string
	// Таймаут HTTP-запросов к Sheets API
	SheetsTimeout time.Duration
	// Диапазон ленты, например News!A2:H
	FeedRange string
	// Диапазон отметок о прочтении
	ReceiptsRange string
	// Диапазон журнала аудита
	AuditRange string

	// --- PostgreSQL (только для бэкенда postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak ---

	// URL Keycloak (например, https://keycloak.example.com)
	KeycloakURL string
	// Realm — идентификатор сайта/тенанта
	KeycloakRealm string
	// Client ID для Admin API (пусто — администрирование ролей не настроено)
	KeycloakClientID string
	// Client Secret для Admin API
	KeycloakClientSecret string

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Путь к claim с ролями (через точку)
	JWTRolesClaim string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration

	// --- Роли ---

	// Роль, открывающая административные операции
	AdminRole string
	// Роль, выдаваемая пользователю без ролей
	DefaultRole string
	// Размер LRU-кэша представлений ролей Keycloak
	RoleCacheSize int
	// TTL записей кэша ролей
	RoleCacheTTL time.Duration

	// --- Аудит ---

	// Единственный принимаемый тип медиа
	AuditMediaKind string
	// Таймзона отображения времени событий
	AuditLocation *time.Location
	// Заголовок со структурированной гео-подсказкой
	GeoHeader string
	// Заголовок с кодом страны
	CountryHeader string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Учётные данные хранилища и Admin API не обязательны: их отсутствие
// фиксируется здесь и превращается в ошибку конфигурации на каждом вызове.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FG_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("FG_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("FG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("FG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.CORSAllowedOrigin = getEnvDefault("FG_CORS_ALLOWED_ORIGIN", "*")

	// --- Табличное хранилище ---

	cfg.StoreBackend = getEnvDefault("FG_STORE_BACKEND", StoreBackendSheets)
	switch cfg.StoreBackend {
	case StoreBackendSheets:
		if err := loadSheets(cfg); err != nil {
			return nil, err
		}
	case StoreBackendPostgres:
		if err := loadPostgres(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("FG_STORE_BACKEND: недопустимое значение %q, допустимые: sheets, postgres", cfg.StoreBackend)
	}

	cfg.FeedRange = getEnvDefault("FG_FEED_RANGE", "News!A2:H")
	cfg.ReceiptsRange = getEnvDefault("FG_RECEIPTS_RANGE", "ReadStatus!A2:C")
	cfg.AuditRange = getEnvDefault("FG_AUDIT_RANGE", "Analytics!A2:K")
	for key, rng := range map[string]string{
		"FG_FEED_RANGE":     cfg.FeedRange,
		"FG_RECEIPTS_RANGE": cfg.ReceiptsRange,
		"FG_AUDIT_RANGE":    cfg.AuditRange,
	} {
		if _, err := tabular.ParseRange(rng); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}

	// --- Keycloak ---

	// FG_KEYCLOAK_URL — обязательный: без него нельзя проверять токены
	cfg.KeycloakURL, err = getEnvRequired("FG_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	cfg.KeycloakRealm = getEnvDefault("FG_KEYCLOAK_REALM", "feedgate")
	cfg.KeycloakClientID = os.Getenv("FG_KEYCLOAK_CLIENT_ID")
	cfg.KeycloakClientSecret = os.Getenv("FG_KEYCLOAK_CLIENT_SECRET")

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("FG_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))
	cfg.JWTJWKSURL = getEnvDefault("FG_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))
	cfg.JWTRolesClaim = getEnvDefault("FG_JWT_ROLES_CLAIM", "realm_access.roles")

	cfg.JWKSClientTimeout, err = getEnvDuration("FG_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("FG_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FG_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("FG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_JWT_LEEWAY: %w", err)
	}

	// --- Роли ---

	cfg.AdminRole = getEnvDefault("FG_ADMIN_ROLE", "admin")
	cfg.DefaultRole = getEnvDefault("FG_DEFAULT_ROLE", "user")

	cfg.RoleCacheSize, err = getEnvInt("FG_ROLE_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("FG_ROLE_CACHE_SIZE: %w", err)
	}
	if cfg.RoleCacheSize < 1 {
		return nil, fmt.Errorf("FG_ROLE_CACHE_SIZE: значение %d должно быть положительным", cfg.RoleCacheSize)
	}
	cfg.RoleCacheTTL, err = getEnvDuration("FG_ROLE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FG_ROLE_CACHE_TTL: %w", err)
	}

	// --- Аудит ---

	cfg.AuditMediaKind = getEnvDefault("FG_AUDIT_MEDIA_KIND", "video")

	tz := getEnvDefault("FG_AUDIT_TIMEZONE", "Europe/Moscow")
	cfg.AuditLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("FG_AUDIT_TIMEZONE: неизвестная таймзона %q: %w", tz, err)
	}

	cfg.GeoHeader = getEnvDefault("FG_GEO_HEADER", "X-Nf-Geo")
	cfg.CountryHeader = getEnvDefault("FG_COUNTRY_HEADER", "X-Country")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("FG_DEPHEALTH_GROUP", "feedgate")
	cfg.DephealthCheckInterval, err = getEnvDuration("FG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("FG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadSheets читает параметры Google Sheets.
// Ключ берётся из FG_SHEETS_CREDENTIALS_JSON, иначе из файла FG_SHEETS_CREDENTIALS_FILE.
func loadSheets(cfg *Config) error {
	var err error

	cfg.SheetsSpreadsheetID = os.Getenv("FG_SHEETS_SPREADSHEET_ID")
	cfg.SheetsBaseURL = strings.TrimRight(getEnvDefault("FG_SHEETS_BASE_URL", "https://sheets.googleapis.com"), "/")

	cfg.SheetsTimeout, err = getEnvDuration("FG_SHEETS_TIMEOUT", 15*time.Second)
	if err != nil {
		return fmt.Errorf("FG_SHEETS_TIMEOUT: %w", err)
	}

	if raw := os.Getenv("FG_SHEETS_CREDENTIALS_JSON"); raw != "" {
		cfg.SheetsCredentialsJSON = []byte(raw)
		return nil
	}
	if path := os.Getenv("FG_SHEETS_CREDENTIALS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("FG_SHEETS_CREDENTIALS_FILE: чтение %s: %w", path, err)
		}
		cfg.SheetsCredentialsJSON = data
	}
	return nil
}

// loadPostgres читает параметры PostgreSQL; при бэкенде postgres они обязательны.
func loadPostgres(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("FG_DB_HOST")
	if err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("FG_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("FG_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("FG_DB_NAME")
	if err != nil {
		return err
	}
	cfg.DBUser, err = getEnvRequired("FG_DB_USER")
	if err != nil {
		return err
	}
	cfg.DBPassword, err = getEnvRequired("FG_DB_PASSWORD")
	if err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("FG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("FG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

// SheetsConfigured сообщает, заданы ли таблица и ключ сервисного аккаунта.
func (c *Config) SheetsConfigured() bool {
	return c.SheetsSpreadsheetID != "" && len(c.SheetsCredentialsJSON) > 0
}

// AdminAPIConfigured сообщает, заданы ли учётные данные Keycloak Admin API.
func (c *Config) AdminAPIConfigured() bool {
	return c.KeycloakClientID != "" && c.KeycloakClientSecret != ""
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
