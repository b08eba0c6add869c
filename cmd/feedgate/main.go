// Точка входа feedgate — сервиса ленты уведомлений с доступом по ролям
// поверх внешнего табличного хранилища.
// Загружает конфигурацию, собирает бэкенд хранилища (Google Sheets или
// PostgreSQL), клиент Keycloak Admin API, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/feedgate/internal/api/handlers"
	"github.com/bigkaa/feedgate/internal/api/middleware"
	"github.com/bigkaa/feedgate/internal/config"
	"github.com/bigkaa/feedgate/internal/database"
	"github.com/bigkaa/feedgate/internal/keycloak"
	"github.com/bigkaa/feedgate/internal/repository"
	"github.com/bigkaa/feedgate/internal/server"
	"github.com/bigkaa/feedgate/internal/service"
	"github.com/bigkaa/feedgate/internal/sheets"
	"github.com/bigkaa/feedgate/internal/tabular"
)

// storeBackend — собранный бэкенд табличного хранилища.
type storeBackend struct {
	store   tabular.Store
	checker handlers.ReadinessChecker
	// db — *sql.DB поверх pgxpool для topologymetrics (только postgres).
	db      *sql.DB
	closeFn func()
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("feedgate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_backend", cfg.StoreBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Табличное хранилище
	backend, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.closeFn()
	store := tabular.Instrument(backend.store, cfg.StoreBackend)

	// 4. Keycloak Admin API (опционально)
	var (
		admin        service.IdentityAdmin
		adminChecker handlers.ReadinessChecker
	)
	if cfg.AdminAPIConfigured() {
		kcClient := keycloak.New(
			cfg.KeycloakURL,
			cfg.KeycloakRealm,
			cfg.KeycloakClientID,
			cfg.KeycloakClientSecret,
			nil, // стандартный HTTP-клиент
			logger,
		)
		admin = kcClient
		adminChecker = kcClient
		logger.Info("Keycloak клиент создан",
			slog.String("url", cfg.KeycloakURL),
			slog.String("realm", cfg.KeycloakRealm),
		)
	} else {
		adminChecker = handlers.StaticChecker{Status: "degraded", Message: "Admin API не настроен"}
		logger.Warn("FG_KEYCLOAK_CLIENT_ID/FG_KEYCLOAK_CLIENT_SECRET не заданы, администрирование ролей недоступно")
	}

	// 5. Services
	resource := cfg.SheetsSpreadsheetID
	feedSvc := service.NewFeedService(store, service.FeedConfig{
		Resource:      resource,
		FeedRange:     cfg.FeedRange,
		ReceiptsRange: cfg.ReceiptsRange,
	}, logger)
	auditSvc := service.NewAuditService(store, service.AuditConfig{
		Resource:   resource,
		AuditRange: cfg.AuditRange,
		MediaKind:  cfg.AuditMediaKind,
		Location:   cfg.AuditLocation,
	}, logger)
	rolesSvc := service.NewRoleService(admin, service.RolesConfig{
		AdminRole:   cfg.AdminRole,
		DefaultRole: cfg.DefaultRole,
		CacheSize:   cfg.RoleCacheSize,
		CacheTTL:    cfg.RoleCacheTTL,
	}, logger)

	// 6. Readiness checkers (хранилище + Keycloak)
	kcChecker := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSClientTimeout)
	healthHandler := handlers.NewHealthHandler(backend.checker, kcChecker, adminChecker)

	// 7. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		feedSvc,
		auditSvc,
		rolesSvc,
		handlers.Config{
			GeoHeader:     cfg.GeoHeader,
			CountryHeader: cfg.CountryHeader,
		},
		logger,
	)

	// 8. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		cfg.JWTRolesClaim,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
		slog.String("roles_claim", cfg.JWTRolesClaim),
	)

	// 9. topologymetrics — мониторинг зависимостей
	dephealthCfg := service.DephealthConfig{
		ServiceID:       "feedgate",
		Group:           cfg.DephealthGroup,
		CheckInterval:   cfg.DephealthCheckInterval,
		KeycloakJWKSURL: cfg.JWTJWKSURL,
	}
	switch cfg.StoreBackend {
	case config.StoreBackendSheets:
		dephealthCfg.SheetsBaseURL = cfg.SheetsBaseURL
	case config.StoreBackendPostgres:
		dephealthCfg.DB = backend.db
		dephealthCfg.DBURL = cfg.DatabaseURL()
	}

	dephealthSvc, dephealthErr := service.NewDephealthService(dephealthCfg, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.Any("dependencies", dephealthSvc.Dependencies()),
			)
		}
		defer dephealthSvc.Stop()
	}

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1) //nolint:gocritic // defer'ы не критичны при аварийном выходе
	}

	logger.Info("feedgate остановлен")
}

// buildStore собирает бэкенд по FG_STORE_BACKEND.
// Sheets без таблицы или ключа не мешает старту: каждый вызов хранилища
// вернёт ошибку конфигурации, readiness покажет degraded.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storeBackend, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		// Применение миграций БД
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, fmt.Errorf("миграции БД: %w", err)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		db := stdlib.OpenDBFromPool(pool)
		return &storeBackend{
			store:   repository.NewRowStore(pool),
			checker: database.NewReadinessChecker(pool),
			db:      db,
			closeFn: func() {
				_ = db.Close()
				pool.Close()
			},
		}, nil

	default:
		if !cfg.SheetsConfigured() {
			logger.Warn("FG_SHEETS_SPREADSHEET_ID или ключ сервисного аккаунта не заданы, хранилище не настроено")
			return &storeBackend{
				store:   tabular.NotConfigured("не заданы таблица или ключ сервисного аккаунта Google"),
				checker: handlers.StaticChecker{Status: "degraded", Message: "Google Sheets не настроен"},
				closeFn: func() {},
			}, nil
		}

		client, err := sheets.NewWithServiceAccount(ctx,
			cfg.SheetsBaseURL, cfg.SheetsSpreadsheetID,
			cfg.SheetsCredentialsJSON, cfg.SheetsTimeout, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Клиент Google Sheets создан",
			slog.String("base_url", cfg.SheetsBaseURL),
			slog.String("spreadsheet_id", cfg.SheetsSpreadsheetID),
		)
		return &storeBackend{
			store:   client,
			checker: client,
			closeFn: func() {},
		}, nil
	}
}
