// handler.go — основной обработчик API feedgate.
// Разбирает запросы, делегирует их в сервисный слой и формирует конверт ответа.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bigkaa/feedgate/internal/api/middleware"
	"github.com/bigkaa/feedgate/internal/service"
)

// maxBodyBytes — ограничение размера тела запроса.
const maxBodyBytes = 64 << 10

// Config — параметры обработчиков, не относящиеся к сервисам.
type Config struct {
	// GeoHeader — заголовок со структурированной гео-подсказкой.
	GeoHeader string
	// CountryHeader — заголовок с кодом страны.
	CountryHeader string
}

// APIHandler — основной обработчик API feedgate.
type APIHandler struct {
	health *HealthHandler
	feed   *service.FeedService
	audit  *service.AuditService
	roles  *service.RoleService
	cfg    Config
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	feed *service.FeedService,
	audit *service.AuditService,
	roles *service.RoleService,
	cfg Config,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health: health,
		feed:   feed,
		audit:  audit,
		roles:  roles,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// requestLogger возвращает logger с request_id текущего запроса.
func (h *APIHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(slog.String("request_id", middleware.RequestIDFromContext(r.Context())))
}

// decodeJSON читает тело запроса в v. Ошибки разбора — ErrInvalidArgument.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: пустое тело запроса", service.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: невалидный JSON: %v", service.ErrInvalidArgument, err)
	}
	return nil
}

// queryInt читает целочисленный query-параметр; отсутствие — def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s должен быть неотрицательным целым числом", service.ErrInvalidArgument, name)
	}
	return n, nil
}
