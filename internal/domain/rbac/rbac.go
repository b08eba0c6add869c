// Пакет rbac — операции над множествами ролей.
// Роли хранятся как отсортированный срез без повторов: так результат
// детерминирован и его удобно сериализовать.
package rbac

import (
	"slices"
	"strings"
)

// systemRolePrefix — префикс составной роли по умолчанию, которую Keycloak
// создаёт для каждого realm (default-roles-<realm>).
const systemRolePrefix = "default-roles-"

// systemRoles — служебные роли IdP, не являющиеся ролями приложения.
var systemRoles = map[string]bool{
	"offline_access":    true,
	"uma_authorization": true,
}

// Normalize приводит набор ролей к множеству: обрезает пробелы,
// выбрасывает пустые значения и повторы, сортирует.
func Normalize(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParseList разбирает роли, записанные через запятую в ячейке таблицы.
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return Normalize(strings.Split(s, ","))
}

// Intersects сообщает, есть ли у множеств общий элемент.
func Intersects(a, b []string) bool {
	for _, r := range a {
		if slices.Contains(b, r) {
			return true
		}
	}
	return false
}

// Diff возвращает элементы want, которых нет в have (добавить),
// и элементы have, которых нет в want (удалить).
func Diff(have, want []string) (add, remove []string) {
	for _, r := range want {
		if !slices.Contains(have, r) {
			add = append(add, r)
		}
	}
	for _, r := range have {
		if !slices.Contains(want, r) {
			remove = append(remove, r)
		}
	}
	return add, remove
}

// IsSystemRole сообщает, что роль служебная и не управляется приложением.
func IsSystemRole(role string) bool {
	return systemRoles[role] || strings.HasPrefix(role, systemRolePrefix)
}

// ApplicationRoles отбрасывает служебные роли IdP.
func ApplicationRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if !IsSystemRole(r) {
			out = append(out, r)
		}
	}
	return Normalize(out)
}
