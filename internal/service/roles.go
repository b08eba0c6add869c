// roles.go — управление ролями пользователей через Keycloak Admin API.
// Роли хранит Identity Provider; сервис только читает и пересылает изменения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/domain/model"
	"github.com/bigkaa/feedgate/internal/domain/rbac"
	"github.com/bigkaa/feedgate/internal/keycloak"
)

// IdentityAdmin — операции Admin API, нужные сервису ролей.
// Реализуется *keycloak.Client.
type IdentityAdmin interface {
	ListUsers(ctx context.Context, query string, first, max int) ([]keycloak.KeycloakUser, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id string) (*keycloak.KeycloakUser, error)
	GetRealmRole(ctx context.Context, name string) (*keycloak.RoleRepresentation, error)
	GetUserRealmRoles(ctx context.Context, userID string) ([]keycloak.RoleRepresentation, error)
	AddUserRealmRoles(ctx context.Context, userID string, roles []keycloak.RoleRepresentation) error
	RemoveUserRealmRoles(ctx context.Context, userID string, roles []keycloak.RoleRepresentation) error
}

// Границы страницы списка пользователей.
const (
	DefaultUsersLimit = 100
	MaxUsersLimit     = 500
)

// RolesConfig — параметры сервиса ролей.
type RolesConfig struct {
	// AdminRole — роль, без которой чтение пользователей и смена ролей запрещены.
	AdminRole string
	// DefaultRole — роль, выдаваемая пользователю без ролей приложения.
	DefaultRole string
	// CacheSize, CacheTTL — кэш представлений realm-ролей.
	CacheSize int
	CacheTTL  time.Duration
}

// RoleService — чтение пользователей и изменение их ролей.
type RoleService struct {
	admin       IdentityAdmin
	configured  bool
	adminRole   string
	defaultRole string
	roles       *expirable.LRU[string, keycloak.RoleRepresentation]
	logger      *slog.Logger
}

// NewRoleService создаёт сервис ролей. admin == nil означает, что учётные
// данные Admin API не заданы: каждый вызов вернёт ErrConfiguration.
func NewRoleService(admin IdentityAdmin, cfg RolesConfig, logger *slog.Logger) *RoleService {
	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}
	return &RoleService{
		admin:       admin,
		configured:  admin != nil,
		adminRole:   cfg.AdminRole,
		defaultRole: cfg.DefaultRole,
		roles:       expirable.NewLRU[string, keycloak.RoleRepresentation](size, nil, cfg.CacheTTL),
		logger:      logger.With(slog.String("component", "role_service")),
	}
}

// ListUsers возвращает страницу пользователей realm с их realm-ролями
// и общее количество пользователей. Доступно только администратору.
func (s *RoleService) ListUsers(ctx context.Context, claims *auth.Claims, limit, offset int) ([]*model.User, int, error) {
	if err := s.requireAdmin(claims); err != nil {
		return nil, 0, err
	}
	if err := s.checkConfigured(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultUsersLimit
	}
	limit = min(limit, MaxUsersLimit)
	offset = max(offset, 0)

	kcUsers, err := s.admin.ListUsers(ctx, "", offset, limit)
	if err != nil {
		return nil, 0, adminError("получение пользователей", err)
	}

	total, err := s.admin.CountUsers(ctx)
	if err != nil {
		return nil, 0, adminError("подсчёт пользователей", err)
	}

	users := make([]*model.User, 0, len(kcUsers))
	for i := range kcUsers {
		roles, err := s.admin.GetUserRealmRoles(ctx, kcUsers[i].ID)
		if err != nil {
			return nil, 0, adminError("получение ролей пользователя", err)
		}
		users = append(users, toUser(&kcUsers[i], roles))
	}

	return users, total, nil
}

// SetRoles приводит realm-роли пользователя к множеству roles: недостающие
// назначаются, лишние снимаются. Служебные роли IdP не снимаются никогда.
// roles == nil или повтор имени — ошибка; пустой срез снимает все роли приложения.
// Доступно только администратору.
func (s *RoleService) SetRoles(ctx context.Context, claims *auth.Claims, userID string, roles []string) (*model.User, error) {
	if err := s.requireAdmin(claims); err != nil {
		return nil, err
	}
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: не задан userId", ErrInvalidArgument)
	}
	if roles == nil {
		return nil, fmt.Errorf("%w: roles должен быть массивом строк", ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		name := strings.TrimSpace(r)
		if name == "" {
			return nil, fmt.Errorf("%w: пустое имя роли", ErrInvalidArgument)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: роль %s указана дважды", ErrInvalidArgument, name)
		}
		seen[name] = true
	}
	want := rbac.Normalize(roles)

	kcUser, err := s.admin.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, keycloak.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s не найден", ErrInvalidArgument, userID)
		}
		return nil, adminError("получение пользователя", err)
	}

	current, err := s.admin.GetUserRealmRoles(ctx, userID)
	if err != nil {
		return nil, adminError("получение ролей пользователя", err)
	}

	byName := make(map[string]keycloak.RoleRepresentation, len(current))
	have := make([]string, 0, len(current))
	for _, r := range current {
		byName[r.Name] = r
		have = append(have, r.Name)
	}

	addNames, removeNames := rbac.Diff(rbac.Normalize(have), want)

	// Все назначаемые роли проверяются до первой записи
	add := make([]keycloak.RoleRepresentation, 0, len(addNames))
	for _, name := range addNames {
		rep, err := s.realmRole(ctx, name)
		if err != nil {
			return nil, err
		}
		add = append(add, rep)
	}

	remove := make([]keycloak.RoleRepresentation, 0, len(removeNames))
	for _, name := range removeNames {
		if rbac.IsSystemRole(name) {
			continue
		}
		remove = append(remove, byName[name])
	}

	if err := s.admin.AddUserRealmRoles(ctx, userID, add); err != nil {
		return nil, adminError("назначение ролей", err)
	}
	if err := s.admin.RemoveUserRealmRoles(ctx, userID, remove); err != nil {
		// Добавленные роли уже применены: набор ролей пользователя частичный
		s.logger.Error("Роли назначены, но не сняты",
			slog.String("user_id", userID),
			slog.Any("added", addNames),
			slog.Any("not_removed", roleNames(remove)),
			slog.String("error", err.Error()),
		)
		return nil, adminError("снятие ролей", err)
	}

	s.logger.Info("Роли пользователя обновлены",
		slog.String("user_id", userID),
		slog.Any("added", addNames),
		slog.Int("removed", len(remove)),
	)

	final, err := s.admin.GetUserRealmRoles(ctx, userID)
	if err != nil {
		return nil, adminError("получение ролей пользователя", err)
	}
	return toUser(kcUser, final), nil
}

// AssignDefaultRole выдаёт вызывающему роль по умолчанию, если у него нет
// ни одной роли приложения. Возвращает итоговые роли и признак назначения.
func (s *RoleService) AssignDefaultRole(ctx context.Context, claims *auth.Claims) ([]string, bool, error) {
	if claims == nil {
		return nil, false, auth.ErrUnauthorized
	}
	if err := s.checkConfigured(); err != nil {
		return nil, false, err
	}
	if s.defaultRole == "" {
		return nil, false, fmt.Errorf("%w: не задана роль по умолчанию", ErrConfiguration)
	}

	current, err := s.admin.GetUserRealmRoles(ctx, claims.ID)
	if err != nil {
		return nil, false, adminError("получение ролей пользователя", err)
	}
	if appRoles := rbac.ApplicationRoles(roleNames(current)); len(appRoles) > 0 {
		return appRoles, false, nil
	}

	rep, err := s.realmRole(ctx, s.defaultRole)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			// Роль по умолчанию отсутствует в realm — ошибка развёртывания
			return nil, false, fmt.Errorf("%w: роль %s не существует в realm", ErrConfiguration, s.defaultRole)
		}
		return nil, false, err
	}
	if err := s.admin.AddUserRealmRoles(ctx, claims.ID, []keycloak.RoleRepresentation{rep}); err != nil {
		return nil, false, adminError("назначение роли по умолчанию", err)
	}

	s.logger.Info("Назначена роль по умолчанию",
		slog.String("user_id", claims.ID),
		slog.String("role", s.defaultRole),
	)
	return []string{s.defaultRole}, true, nil
}

// realmRole возвращает представление роли из кэша или Admin API.
// Неизвестная роль — ErrInvalidArgument.
func (s *RoleService) realmRole(ctx context.Context, name string) (keycloak.RoleRepresentation, error) {
	if rep, ok := s.roles.Get(name); ok {
		return rep, nil
	}

	rep, err := s.admin.GetRealmRole(ctx, name)
	if err != nil {
		if errors.Is(err, keycloak.ErrNotFound) {
			return keycloak.RoleRepresentation{}, fmt.Errorf("%w: неизвестная роль %s", ErrInvalidArgument, name)
		}
		return keycloak.RoleRepresentation{}, adminError("получение роли", err)
	}

	s.roles.Add(name, *rep)
	return *rep, nil
}

// requireAdmin — проверка роли администратора по claim вызывающего.
func (s *RoleService) requireAdmin(claims *auth.Claims) error {
	if claims == nil {
		return auth.ErrUnauthorized
	}
	if s.adminRole == "" {
		return fmt.Errorf("%w: не задана роль администратора", ErrConfiguration)
	}
	if !claims.HasRole(s.adminRole) {
		return fmt.Errorf("%w: требуется роль %s", auth.ErrForbidden, s.adminRole)
	}
	return nil
}

func (s *RoleService) checkConfigured() error {
	if !s.configured {
		return fmt.Errorf("%w: не заданы FG_KEYCLOAK_CLIENT_ID/FG_KEYCLOAK_CLIENT_SECRET", ErrConfiguration)
	}
	return nil
}

// adminError оборачивает отказ Admin API в ErrAdminAPIUnavailable.
// Статус и тело upstream остаются в цепочке для логов.
func adminError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrAdminAPIUnavailable, err)
}

func roleNames(roles []keycloak.RoleRepresentation) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return rbac.Normalize(names)
}

func toUser(u *keycloak.KeycloakUser, roles []keycloak.RoleRepresentation) *model.User {
	return &model.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Enabled:   u.Enabled,
		Roles:     rbac.ApplicationRoles(roleNames(roles)),
		CreatedAt: u.CreatedAtTime(),
	}
}
