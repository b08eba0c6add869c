// Пакет keycloak — HTTP-клиент к Keycloak Admin REST API.
// models.go — модели данных и ошибки Keycloak.
package keycloak

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenResponse — ответ на запрос токена через Client Credentials flow.
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// KeycloakUser — пользователь в Keycloak.
type KeycloakUser struct { //nolint:revive // stuttering допустим — внешний API Keycloak
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Enabled   bool   `json:"enabled"`
	CreatedAt int64  `json:"createdTimestamp"`
}

// CreatedAtTime возвращает CreatedAt как time.Time.
// Keycloak хранит timestamp в миллисекундах.
func (u *KeycloakUser) CreatedAtTime() time.Time {
	return time.UnixMilli(u.CreatedAt).UTC()
}

// RoleRepresentation — realm-роль. Для назначения роли Keycloak
// требует и id, и name.
type RoleRepresentation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

// RealmRepresentation — краткая информация о realm.
type RealmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// ErrNotFound — ресурс Keycloak не найден (HTTP 404).
var ErrNotFound = errors.New("ресурс Keycloak не найден")

// maxErrorBody — сколько байт тела ошибки сохраняется для диагностики.
const maxErrorBody = 4096

// APIError — неуспешный ответ Keycloak со статусом и телом.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func newAPIError(op string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: Keycloak API вернул статус %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is сопоставляет 404 с ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
