// Пакет auth — извлечение подтверждённого identity claim из контекста
// запроса и проверки доступа поверх него.
// Проверка подписи токена выполняется раньше (middleware.JWTAuth),
// здесь только чистое извлечение без сетевых вызовов.
package auth

import (
	"context"
	"slices"
)

// Claims — подтверждённые сведения о вызывающем пользователе.
// Неизменяемы в пределах запроса.
type Claims struct {
	// ID — идентификатор пользователя (sub).
	ID string
	// SubjectID — идентификатор субъекта в том виде, в каком его выдал IdP.
	SubjectID string
	// Username — preferred_username.
	Username string
	// Email — email из токена.
	Email string
	// Roles — множество ролей: без повторов, отсортировано.
	Roles []string
	// Metadata — произвольные пользовательские метаданные (user_metadata).
	Metadata map[string]any
}

// HasRole проверяет принадлежность роли множеству ролей claim.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role)
}

// claimsKey — ключ контекста для Claims.
type claimsKey struct{}

// WithClaims возвращает контекст с прикреплённым claim.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext извлекает Claims из контекста запроса.
// Возвращает nil, если claim не прикреплён.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
