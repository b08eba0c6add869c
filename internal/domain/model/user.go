// Пакет model — доменные модели feedgate.
package model

import "time"

// User — пользователь IdP с его множеством ролей.
// Не хранится локально — формируется из ответов Keycloak Admin API.
type User struct {
	// ID — Keycloak user ID (sub)
	ID string `json:"id"`
	// Username — имя пользователя в Keycloak
	Username string `json:"username"`
	// Email — адрес электронной почты
	Email string `json:"email,omitempty"`
	// Enabled — активен ли аккаунт
	Enabled bool `json:"enabled"`
	// Roles — роли приложения (без служебных ролей realm)
	Roles []string `json:"roles"`
	// CreatedAt — дата создания в Keycloak
	CreatedAt time.Time `json:"createdAt"`
}
