// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// feedgate мониторит:
//   - Keycloak — HTTP checker к JWKS endpoint (critical)
//   - Google Sheets API — HTTP checker к discovery-документу (бэкенд sheets, critical)
//   - PostgreSQL — SQL checker через pgxpool (бэкенд postgres, connection pool mode, critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Keycloak и Sheets
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// sheetsHealthPath — публичный discovery-документ Sheets API: отвечает 200
// без авторизации, если API доступен.
const sheetsHealthPath = "/$discovery/rest?version=v4"

// DephealthConfig — набор наблюдаемых зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения.
	ServiceID string
	// Group — имя группы в метриках (FG_DEPHEALTH_GROUP).
	Group string
	// CheckInterval — интервал проверки (FG_DEPHEALTH_CHECK_INTERVAL).
	CheckInterval time.Duration
	// KeycloakJWKSURL — URL JWKS endpoint Keycloak.
	KeycloakJWKSURL string
	// SheetsBaseURL — базовый URL Sheets API; пустой — не мониторится.
	SheetsBaseURL string
	// DB — *sql.DB из pgxpool (stdlib.OpenDBFromPool); nil — не мониторится.
	DB *sql.DB
	// DBURL — URL PostgreSQL для лейблов метрик, не для подключения.
	DBURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	// У Keycloak /health доступен только на management-порту,
	// поэтому проверяем путь самого JWKS URL.
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.HTTP("keycloak-jwks",
			dephealth.FromURL(cfg.KeycloakJWKSURL),
			dephealth.WithHTTPHealthPath(urlPath(cfg.KeycloakJWKSURL, "/health")),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
	}
	deps := []string{"keycloak-jwks"}

	if cfg.SheetsBaseURL != "" {
		opts = append(opts, dephealth.HTTP("google-sheets",
			dephealth.FromURL(cfg.SheetsBaseURL),
			dephealth.WithHTTPHealthPath(sheetsHealthPath),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		))
		deps = append(deps, "google-sheets")
	}

	if cfg.DB != nil {
		// pgcheck.New + AddDependency напрямую, без contrib/sqldb
		// и его транзитивной зависимости на MySQL.
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.DBURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		))
		deps = append(deps, "postgresql")
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   deps,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.deps))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Dependencies возвращает имена наблюдаемых зависимостей.
func (ds *DephealthService) Dependencies() []string {
	return ds.deps
}

// urlPath возвращает path из rawURL или fallback, если его нет.
func urlPath(rawURL, fallback string) string {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return fallback
}
