// dephealth_test.go — unit-тесты сборки набора зависимостей для topologymetrics.
package service

import (
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestURLPath проверяет извлечение health path из URL.
func TestURLPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "JWKS endpoint",
			input:    "https://kc.example.com/realms/feedgate/protocol/openid-connect/certs",
			expected: "/realms/feedgate/protocol/openid-connect/certs",
		},
		{
			name:     "без path — fallback",
			input:    "https://kc.example.com",
			expected: "/health",
		},
		{
			name:     "некорректный URL — fallback",
			input:    "://bad",
			expected: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := urlPath(tt.input, "/health"); got != tt.expected {
				t.Errorf("urlPath(%q) = %q, ожидалось %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestNewDephealthService_Sheets проверяет набор зависимостей бэкенда sheets.
func TestNewDephealthService_Sheets(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:       "feedgate",
		Group:           "feedgate",
		CheckInterval:   15 * time.Second,
		KeycloakJWKSURL: "https://kc.example.com/realms/feedgate/protocol/openid-connect/certs",
		SheetsBaseURL:   "https://sheets.googleapis.com",
	}, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewDephealthServiceWithRegisterer() ошибка: %v", err)
	}

	deps := ds.Dependencies()
	if !slices.Equal(deps, []string{"keycloak-jwks", "google-sheets"}) {
		t.Errorf("Dependencies() = %v", deps)
	}
}

// TestNewDephealthService_KeycloakOnly проверяет минимальный набор зависимостей.
func TestNewDephealthService_KeycloakOnly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:       "feedgate",
		Group:           "feedgate",
		CheckInterval:   15 * time.Second,
		KeycloakJWKSURL: "http://localhost:8080/realms/feedgate/protocol/openid-connect/certs",
	}, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewDephealthServiceWithRegisterer() ошибка: %v", err)
	}

	if deps := ds.Dependencies(); len(deps) != 1 || deps[0] != "keycloak-jwks" {
		t.Errorf("Dependencies() = %v", deps)
	}
}
