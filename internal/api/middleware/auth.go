// auth.go — JWT middleware: проверка подписи токена через JWKS Keycloak
// и прикрепление подтверждённого claim к контексту запроса.
// Middleware сам запрос не отклоняет: без валидного токена запрос идёт дальше
// без claim, решение принимают RequireAuthenticated / RequireRole.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/feedgate/internal/api/errors"
	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/domain/rbac"
)

// metadataClaim — claim с пользовательскими метаданными.
const metadataClaim = "user_metadata"

// JWTAuth — middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks       keyfunc.Keyfunc
	logger     *slog.Logger
	issuer     string
	rolesClaim []string
	jwtLeeway  time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
// jwksURL — URL к JWKS endpoint Keycloak.
// issuer — ожидаемый issuer JWT (пусто — не проверяется).
// rolesClaim — путь к claim с ролями через точку (realm_access.roles).
// jwksClientTimeout — таймаут HTTP-клиента JWKS (FG_JWKS_CLIENT_TIMEOUT).
// jwksRefreshInterval — интервал обновления JWKS-ключей (FG_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (FG_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	issuer string,
	rolesClaim string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	a := NewJWTAuthWithKeyfunc(k, issuer, rolesClaim, logger)
	a.jwtLeeway = jwtLeeway
	return a, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer, rolesClaim string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:       kf,
		logger:     logger.With(slog.String("component", "jwt_auth")),
		issuer:     issuer,
		rolesClaim: splitClaimPath(rolesClaim),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), exp и issuer,
// формирует auth.Claims и помещает их в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, reason := j.authenticate(r)
			if claims == nil {
				if reason != "" {
					j.logger.Debug("Запрос без подтверждённого claim",
						slog.String("reason", reason),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// authenticate возвращает claim запроса либо nil и причину отказа.
// Пустая причина — заголовок Authorization отсутствует.
func (j *JWTAuth) authenticate(r *http.Request) (*auth.Claims, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ""
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, "неверный формат Authorization: ожидается Bearer <token>"
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, "пустой Bearer token"
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.jwtLeeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}

	raw := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
	if err != nil {
		return nil, "невалидный или просроченный токен: " + err.Error()
	}
	if !token.Valid {
		return nil, "невалидный токен"
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return nil, "отсутствует sub в токене"
	}

	return j.buildClaims(subject, raw), ""
}

// buildClaims формирует auth.Claims из проверенных claims токена.
func (j *JWTAuth) buildClaims(subject string, raw jwt.MapClaims) *auth.Claims {
	c := &auth.Claims{
		ID:        subject,
		SubjectID: subject,
		Username:  stringClaim(raw, "preferred_username"),
		Email:     stringClaim(raw, "email"),
		Roles:     rbac.Normalize(rolesAt(raw, j.rolesClaim)),
	}
	if md, ok := raw[metadataClaim].(map[string]any); ok {
		c.Metadata = md
	}
	return c
}

// splitClaimPath разбирает путь вида realm_access.roles.
func splitClaimPath(path string) []string {
	var parts []string
	for p := range strings.SplitSeq(path, ".") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// rolesAt достаёт роли по пути. Поддерживаются массив строк
// и строка через запятую или пробел.
func rolesAt(raw map[string]any, path []string) []string {
	if len(path) == 0 {
		return nil
	}
	var cur any = raw
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}

	switch v := cur.(type) {
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	return nil
}

// stringClaim возвращает строковый claim или пустую строку.
func stringClaim(raw jwt.MapClaims, key string) string {
	s, _ := raw[key].(string)
	return s
}

// --- Gate middleware ---

// RequireAuthenticated возвращает middleware, пропускающий только запросы с claim.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.RequireAuthenticated(r.Context()); err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole возвращает middleware, требующий указанную роль.
// Без claim — 401, без роли — 403. Решение вычисляется на каждый запрос.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.RequireRole(r.Context(), role); err != nil {
				if _, authErr := auth.RequireAuthenticated(r.Context()); authErr != nil {
					apierrors.Unauthorized(w, authErr.Error())
					return
				}
				apierrors.Forbidden(w, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- ReadinessChecker для Keycloak ---

// KeycloakReadinessChecker — проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
func NewKeycloakReadinessChecker(jwksURL string, timeout time.Duration) *KeycloakReadinessChecker {
	return &KeycloakReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации Keycloak
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	// Ответ должен быть валидным JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "Keycloak JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
