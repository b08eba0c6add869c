// client.go — HTTP-клиент к Keycloak Admin REST API.
// Service account token получается через Client Credentials flow и кэшируется
// до момента за 30s до expiration.
// Операции: ListUsers, CountUsers, GetUser, GetRealmRole, GetUserRealmRoles,
// AddUserRealmRoles, RemoveUserRealmRoles, RealmInfo.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client — HTTP-клиент к Keycloak Admin REST API.
type Client struct {
	baseURL      string // Базовый URL Keycloak (без trailing slash)
	realm        string // Имя realm — идентификатор сайта
	clientID     string // Client ID для Client Credentials flow
	clientSecret string // Client Secret

	httpClient *http.Client
	logger     *slog.Logger

	// Кэш токена доступа
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New создаёт клиент к Keycloak Admin REST API.
// baseURL — базовый URL Keycloak (например, https://keycloak.example.com).
// realm — имя realm (например, feedgate).
// clientID, clientSecret — credentials для Client Credentials flow.
func New(baseURL, realm, clientID, clientSecret string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		logger:       logger.With(slog.String("component", "keycloak_client")),
	}
}

// --- Аутентификация ---

// tokenEndpoint возвращает URL endpoint'а получения токена.
func (c *Client) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, url.PathEscape(c.realm))
}

// adminBaseURL возвращает базовый URL Admin REST API для realm.
func (c *Client) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, url.PathEscape(c.realm))
}

// getToken возвращает актуальный access token, обновляя при необходимости.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Токен валиден ещё 30 секунд — используем кэш
	if c.accessToken != "" && time.Now().Add(30*time.Second).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	token, err := c.requestToken(ctx)
	if err != nil {
		return "", err
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Debug("Keycloak токен обновлён",
		slog.Time("expires_at", c.tokenExpiry),
	)

	return c.accessToken, nil
}

// requestToken выполняет Client Credentials flow.
func (c *Client) requestToken(ctx context.Context) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос токена Keycloak: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("token", resp)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("декодирование токена Keycloak: %w", err)
	}

	return &token, nil
}

// --- HTTP helpers ---

// doAuthorized выполняет HTTP-запрос к Admin REST API с авторизацией.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение токена: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminBaseURL()+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// decodeResponse декодирует JSON ответ в target.
func decodeResponse(resp *http.Response, op string, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("%s: декодирование ответа Keycloak: %w", op, err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(resp *http.Response, op string) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// --- Users API ---

// ListUsers возвращает страницу пользователей realm.
// query — строка поиска (по username, email, firstName, lastName); пустая — все.
func (c *Client) ListUsers(ctx context.Context, query string, first, max int) ([]KeycloakUser, error) {
	path := fmt.Sprintf("/users?first=%d&max=%d&briefRepresentation=true", first, max)
	if query != "" {
		path += "&search=" + url.QueryEscape(query)
	}

	resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var users []KeycloakUser
	if err := decodeResponse(resp, "ListUsers", &users); err != nil {
		return nil, err
	}

	return users, nil
}

// CountUsers возвращает количество пользователей в realm.
func (c *Client) CountUsers(ctx context.Context) (int, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/users/count", nil)
	if err != nil {
		return 0, err
	}

	var count int
	if err := decodeResponse(resp, "CountUsers", &count); err != nil {
		return 0, err
	}

	return count, nil
}

// GetUser возвращает пользователя по Keycloak ID.
func (c *Client) GetUser(ctx context.Context, id string) (*KeycloakUser, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var user KeycloakUser
	if err := decodeResponse(resp, "GetUser", &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// --- Realm roles API ---

// GetRealmRole возвращает представление realm-роли по имени.
// Для несуществующей роли ошибка удовлетворяет errors.Is(err, ErrNotFound).
func (c *Client) GetRealmRole(ctx context.Context, name string) (*RoleRepresentation, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}

	var role RoleRepresentation
	if err := decodeResponse(resp, "GetRealmRole", &role); err != nil {
		return nil, err
	}

	return &role, nil
}

// GetUserRealmRoles возвращает realm-роли, назначенные пользователю напрямую.
func (c *Client) GetUserRealmRoles(ctx context.Context, userID string) ([]RoleRepresentation, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, userRolesPath(userID), nil)
	if err != nil {
		return nil, err
	}

	var roles []RoleRepresentation
	if err := decodeResponse(resp, "GetUserRealmRoles", &roles); err != nil {
		return nil, err
	}

	return roles, nil
}

// AddUserRealmRoles назначает пользователю realm-роли.
func (c *Client) AddUserRealmRoles(ctx context.Context, userID string, roles []RoleRepresentation) error {
	if len(roles) == 0 {
		return nil
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, userRolesPath(userID), roles)
	if err != nil {
		return err
	}

	return checkResponse(resp, "AddUserRealmRoles")
}

// RemoveUserRealmRoles снимает с пользователя realm-роли.
func (c *Client) RemoveUserRealmRoles(ctx context.Context, userID string, roles []RoleRepresentation) error {
	if len(roles) == 0 {
		return nil
	}

	resp, err := c.doAuthorized(ctx, http.MethodDelete, userRolesPath(userID), roles)
	if err != nil {
		return err
	}

	return checkResponse(resp, "RemoveUserRealmRoles")
}

func userRolesPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
}

// --- Realm API ---

// RealmInfo возвращает информацию о realm.
func (c *Client) RealmInfo(ctx context.Context) (*RealmRepresentation, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "", nil)
	if err != nil {
		return nil, err
	}

	var realm RealmRepresentation
	if err := decodeResponse(resp, "RealmInfo", &realm); err != nil {
		return nil, err
	}

	return &realm, nil
}

// --- Readiness checker ---

// CheckReady проверяет доступность Keycloak через realm info.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	realm, err := c.RealmInfo(ctx)
	if err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}

	if !realm.Enabled {
		return "degraded", fmt.Sprintf("Realm %s отключён", realm.Realm)
	}

	return "ok", fmt.Sprintf("Realm %s доступен", realm.Realm)
}
