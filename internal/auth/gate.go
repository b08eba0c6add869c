package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized — claim отсутствует.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrForbidden — у claim нет требуемой роли.
	ErrForbidden = errors.New("недостаточно прав")
)

// RequireAuthenticated возвращает claim запроса или ErrUnauthorized.
// Решение не кэшируется: каждый вызов читает текущий claim.
func RequireAuthenticated(ctx context.Context) (*Claims, error) {
	c := FromContext(ctx)
	if c == nil {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// RequireRole проверяет аутентификацию, затем наличие роли.
func RequireRole(ctx context.Context, role string) (*Claims, error) {
	c, err := RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !c.HasRole(role) {
		return nil, fmt.Errorf("%w: требуется роль %s", ErrForbidden, role)
	}
	return c, nil
}
