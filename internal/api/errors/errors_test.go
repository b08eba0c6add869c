package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/keycloak"
	"github.com/bigkaa/feedgate/internal/service"
	"github.com/bigkaa/feedgate/internal/tabular"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("невалидный JSON ответа: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, CodeValidationError, "поле обязательно")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидается 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decode(t, rec)
	if body["error"] != "поле обязательно" || body["code"] != CodeValidationError || body["success"] != false {
		t.Errorf("тело = %v", body)
	}
}

func TestWriteSuccess(t *testing.T) {
	payload := map[string]any{"message": "ok", "unreadCount": 2}
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusOK, payload)

	body := decode(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v, ожидается true", body["success"])
	}
	if body["message"] != "ok" || body["unreadCount"] != float64(2) {
		t.Errorf("тело = %v", body)
	}
	if _, ok := payload["success"]; ok {
		t.Error("WriteSuccess изменил исходный payload")
	}
}

func TestWriteServiceError(t *testing.T) {
	storeErr := fmt.Errorf("чтение ленты: %w", &tabular.UnavailableError{
		Backend: "sheets", Op: "read", StatusCode: 403, Body: "secret upstream body",
	})
	idpErr := fmt.Errorf("роли: %w: %w", service.ErrAdminAPIUnavailable, &keycloak.APIError{
		Op: "get roles", StatusCode: 500, Body: "kc body",
	})

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"валидация", fmt.Errorf("newsItemId: %w", service.ErrInvalidArgument), 400, CodeValidationError},
		{"нет claim", auth.ErrUnauthorized, 401, CodeUnauthorized},
		{"нет роли", fmt.Errorf("%w: требуется роль admin", auth.ErrForbidden), 403, CodeForbidden},
		{"хранилище", storeErr, 502, CodeStoreUnavailable},
		{"IdP", idpErr, 502, CodeIDPUnavailable},
		{"конфигурация", fmt.Errorf("чтение: %w", service.ErrConfiguration), 500, CodeConfigurationError},
		{"прочее", fmt.Errorf("непредвиденное"), 500, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteServiceError(rec, discardLogger(), tt.err)

			if rec.Code != tt.status {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.status)
			}
			raw := rec.Body.String()
			body := decode(t, rec)
			if body["code"] != tt.code {
				t.Errorf("code = %v, ожидается %s", body["code"], tt.code)
			}
			if strings.Contains(raw, "upstream body") || strings.Contains(raw, "kc body") {
				t.Errorf("тело upstream попало в ответ: %s", raw)
			}
		})
	}
}
