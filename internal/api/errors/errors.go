// Пакет errors — единый JSON-конверт ответов feedgate.
// Успех: {...payload, "success": true}.
// Ошибка: {"error": "...", "code": "...", "success": false}.
// Все HTTP-ответы обработчиков должны проходить через WriteSuccess / WriteError.
package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/keycloak"
	"github.com/bigkaa/feedgate/internal/service"
	"github.com/bigkaa/feedgate/internal/tabular"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeIDPUnavailable     = "IDP_UNAVAILABLE"
	CodeConfigurationError = "CONFIGURATION_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Success bool   `json:"success"`
}

// WriteError записывает ответ ошибки в едином формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   message,
		Code:    code,
		Success: false,
	})
}

// WriteSuccess записывает payload с добавленным полем success=true.
// payload не изменяется.
func WriteSuccess(w http.ResponseWriter, statusCode int, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteServiceError сопоставляет ошибку сервисного слоя со статусом и кодом.
// Статус и тело ответа upstream только логируются, клиент получает общее сообщение.
func WriteServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		ValidationError(w, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		Forbidden(w, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		logUpstream(logger, "Табличное хранилище недоступно", err)
		WriteError(w, http.StatusBadGateway, CodeStoreUnavailable, "Табличное хранилище недоступно")
	case errors.Is(err, service.ErrAdminAPIUnavailable):
		logUpstream(logger, "Identity Provider недоступен", err)
		WriteError(w, http.StatusBadGateway, CodeIDPUnavailable, "Identity Provider недоступен")
	case errors.Is(err, service.ErrConfiguration):
		logger.Error("Сервис не настроен", slog.String("error", err.Error()))
		WriteError(w, http.StatusInternalServerError, CodeConfigurationError, "Сервис не настроен")
	default:
		logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		InternalError(w, "Внутренняя ошибка сервера")
	}
}

// logUpstream пишет в лог статус и тело ответа внешней зависимости, если они известны.
func logUpstream(logger *slog.Logger, msg string, err error) {
	attrs := []any{slog.String("error", err.Error())}
	var unavailable *tabular.UnavailableError
	if errors.As(err, &unavailable) {
		attrs = append(attrs,
			slog.String("backend", unavailable.Backend),
			slog.Int("upstream_status", unavailable.StatusCode),
			slog.String("upstream_body", unavailable.Body),
		)
	}
	var apiErr *keycloak.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			slog.String("op", apiErr.Op),
			slog.Int("upstream_status", apiErr.StatusCode),
			slog.String("upstream_body", apiErr.Body),
		)
	}
	logger.Error(msg, attrs...)
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NotFound — 404 маршрут не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// MethodNotAllowed — 405 метод не поддерживается.
func MethodNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
