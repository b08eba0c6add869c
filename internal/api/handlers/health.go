// health.go — обработчики health endpoints feedgate.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище и Keycloak доступны)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/feedgate/internal/config"
)

const serviceName = "feedgate"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// StaticChecker — зависимость с заранее известным статусом,
// например не настроенная при развёртывании.
type StaticChecker struct {
	Status  string
	Message string
}

// CheckReady возвращает зафиксированный статус.
func (c StaticChecker) CheckReady() (string, string) {
	return c.Status, c.Message
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	storeChecker    ReadinessChecker
	identityChecker ReadinessChecker
	adminChecker    ReadinessChecker
	promHandler     http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// storeChecker — табличное хранилище, identityChecker — JWKS Keycloak,
// adminChecker — Keycloak Admin API.
// nil-checker считается неинициализированным (readiness вернёт "fail").
func NewHealthHandler(storeChecker, identityChecker, adminChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		storeChecker:    storeChecker,
		identityChecker: identityChecker,
		adminChecker:    adminChecker,
		promHandler:     promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Store         healthCheckResult `json:"store"`
		Identity      healthCheckResult `json:"identity"`
		IdentityAdmin healthCheckResult `json:"identityAdmin"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	resp.Checks.Store = check(h.storeChecker)
	resp.Checks.Identity = check(h.identityChecker)
	resp.Checks.IdentityAdmin = check(h.adminChecker)

	resp.Status = overallStatus(
		resp.Checks.Store.Status,
		resp.Checks.Identity.Status,
		resp.Checks.IdentityAdmin.Status,
	)

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "fail" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
