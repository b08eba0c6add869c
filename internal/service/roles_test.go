package service

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/keycloak"
)

// fakeAdmin — in-memory Keycloak Admin API.
type fakeAdmin struct {
	users     []keycloak.KeycloakUser
	realm     map[string]keycloak.RoleRepresentation // роли realm по имени
	userRoles map[string][]keycloak.RoleRepresentation

	roleLookups int
	writes      int
	err         error
}

func newFakeAdmin() *fakeAdmin {
	realm := map[string]keycloak.RoleRepresentation{}
	for _, name := range []string{"admin", "user", "editor", "offline_access", "default-roles-feedgate"} {
		realm[name] = keycloak.RoleRepresentation{ID: "id-" + name, Name: name}
	}
	return &fakeAdmin{
		users: []keycloak.KeycloakUser{
			{ID: "u-1", Username: "alice", Email: "alice@example.com", Enabled: true, CreatedAt: 1708617600000},
			{ID: "u-2", Username: "bob", Enabled: true},
		},
		realm: realm,
		userRoles: map[string][]keycloak.RoleRepresentation{
			"u-1": {realm["default-roles-feedgate"], realm["offline_access"], realm["user"]},
			"u-2": {realm["default-roles-feedgate"]},
		},
	}
}

func (f *fakeAdmin) ListUsers(_ context.Context, _ string, first, max int) ([]keycloak.KeycloakUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	if first >= len(f.users) {
		return nil, nil
	}
	return f.users[first:min(first+max, len(f.users))], nil
}

func (f *fakeAdmin) CountUsers(context.Context) (int, error) {
	return len(f.users), f.err
}

func (f *fakeAdmin) GetUser(_ context.Context, id string) (*keycloak.KeycloakUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, &keycloak.APIError{Op: "GetUser", StatusCode: 404}
}

func (f *fakeAdmin) GetRealmRole(_ context.Context, name string) (*keycloak.RoleRepresentation, error) {
	f.roleLookups++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.realm[name]
	if !ok {
		return nil, &keycloak.APIError{Op: "GetRealmRole", StatusCode: 404}
	}
	return &r, nil
}

func (f *fakeAdmin) GetUserRealmRoles(_ context.Context, userID string) ([]keycloak.RoleRepresentation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.userRoles[userID]), nil
}

func (f *fakeAdmin) AddUserRealmRoles(_ context.Context, userID string, roles []keycloak.RoleRepresentation) error {
	if len(roles) > 0 {
		f.writes++
	}
	f.userRoles[userID] = append(f.userRoles[userID], roles...)
	return nil
}

func (f *fakeAdmin) RemoveUserRealmRoles(_ context.Context, userID string, roles []keycloak.RoleRepresentation) error {
	if len(roles) > 0 {
		f.writes++
	}
	f.userRoles[userID] = slices.DeleteFunc(f.userRoles[userID], func(r keycloak.RoleRepresentation) bool {
		return slices.ContainsFunc(roles, func(x keycloak.RoleRepresentation) bool { return x.ID == r.ID })
	})
	return nil
}

var adminClaims = &auth.Claims{ID: "admin-1", Roles: []string{"admin"}}

func newRoleService(admin IdentityAdmin) *RoleService {
	return NewRoleService(admin, RolesConfig{AdminRole: "admin", DefaultRole: "user", CacheSize: 16, CacheTTL: time.Minute}, testLogger())
}

func TestRoles_ListUsers(t *testing.T) {
	svc := newRoleService(newFakeAdmin())

	users, total, err := svc.ListUsers(context.Background(), adminClaims, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 2)

	assert.Equal(t, "alice", users[0].Username)
	// Служебные роли realm не показываются
	assert.Equal(t, []string{"user"}, users[0].Roles)
	assert.Empty(t, users[1].Roles)
	assert.Equal(t, 2024, users[0].CreatedAt.Year())

	users, _, err = svc.ListUsers(context.Background(), adminClaims, 1, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestRoles_SetRoles(t *testing.T) {
	admin := newFakeAdmin()
	svc := newRoleService(admin)

	user, err := svc.SetRoles(context.Background(), adminClaims, "u-1", []string{"editor", "admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editor"}, user.Roles)

	// Служебные роли остались
	names := roleNames(admin.userRoles["u-1"])
	assert.Contains(t, names, "offline_access")
	assert.Contains(t, names, "default-roles-feedgate")
	assert.NotContains(t, names, "user")

	// Пустое множество снимает все роли приложения
	user, err = svc.SetRoles(context.Background(), adminClaims, "u-1", []string{})
	require.NoError(t, err)
	assert.Empty(t, user.Roles)
	assert.Contains(t, roleNames(admin.userRoles["u-1"]), "default-roles-feedgate")
}

func TestRoles_SetRolesNoChange(t *testing.T) {
	admin := newFakeAdmin()
	svc := newRoleService(admin)

	_, err := svc.SetRoles(context.Background(), adminClaims, "u-1", []string{"user"})
	require.NoError(t, err)
	assert.Equal(t, 0, admin.writes)
}

func TestRoles_SetRolesValidation(t *testing.T) {
	admin := newFakeAdmin()
	svc := newRoleService(admin)

	tests := []struct {
		name   string
		userID string
		roles  []string
	}{
		{"пустой userId", " ", []string{"user"}},
		{"roles nil", "u-1", nil},
		{"пустое имя роли", "u-1", []string{"user", " "}},
		{"повтор роли", "u-1", []string{"editor", "admin", " editor"}},
		{"неизвестная роль", "u-1", []string{"superuser"}},
		{"неизвестный пользователь", "ghost", []string{"user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetRoles(context.Background(), adminClaims, tt.userID, tt.roles)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	assert.Equal(t, 0, admin.writes)
}

func TestRoles_RoleCache(t *testing.T) {
	admin := newFakeAdmin()
	svc := newRoleService(admin)
	ctx := context.Background()

	_, err := svc.SetRoles(ctx, adminClaims, "u-2", []string{"editor"})
	require.NoError(t, err)
	_, err = svc.SetRoles(ctx, adminClaims, "u-2", []string{})
	require.NoError(t, err)
	_, err = svc.SetRoles(ctx, adminClaims, "u-2", []string{"editor"})
	require.NoError(t, err)

	assert.Equal(t, 1, admin.roleLookups)
}

func TestRoles_AdminUnavailable(t *testing.T) {
	admin := newFakeAdmin()
	admin.err = &keycloak.APIError{Op: "ListUsers", StatusCode: 503, Body: "maintenance"}
	svc := newRoleService(admin)

	_, _, err := svc.ListUsers(context.Background(), adminClaims, 10, 0)
	assert.ErrorIs(t, err, ErrAdminAPIUnavailable)

	_, err = svc.SetRoles(context.Background(), adminClaims, "u-1", []string{"user"})
	assert.ErrorIs(t, err, ErrAdminAPIUnavailable)

	_, _, err = svc.AssignDefaultRole(context.Background(), &auth.Claims{ID: "u-2"})
	assert.ErrorIs(t, err, ErrAdminAPIUnavailable)
}

func TestRoles_NotConfigured(t *testing.T) {
	svc := newRoleService(nil)

	_, _, err := svc.ListUsers(context.Background(), adminClaims, 10, 0)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = svc.SetRoles(context.Background(), adminClaims, "u-1", []string{"user"})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, _, err = svc.AssignDefaultRole(context.Background(), &auth.Claims{ID: "u-1"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRoles_AssignDefaultRole(t *testing.T) {
	admin := newFakeAdmin()
	svc := newRoleService(admin)
	ctx := context.Background()

	roles, assigned, err := svc.AssignDefaultRole(ctx, &auth.Claims{ID: "u-2"})
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.Equal(t, []string{"user"}, roles)
	assert.Contains(t, roleNames(admin.userRoles["u-2"]), "user")

	// Повторный вызов — роль уже есть
	roles, assigned, err = svc.AssignDefaultRole(ctx, &auth.Claims{ID: "u-2"})
	require.NoError(t, err)
	assert.False(t, assigned)
	assert.Equal(t, []string{"user"}, roles)

	_, _, err = svc.AssignDefaultRole(ctx, nil)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestRoles_AssignDefaultRoleMissingInRealm(t *testing.T) {
	admin := newFakeAdmin()
	delete(admin.realm, "user")
	svc := newRoleService(admin)

	_, _, err := svc.AssignDefaultRole(context.Background(), &auth.Claims{ID: "u-2"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRoles_AdminGate(t *testing.T) {
	admin := newFakeAdmin()
	svc := newRoleService(admin)
	ctx := context.Background()

	_, _, err := svc.ListUsers(ctx, nil, 10, 0)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	_, err = svc.SetRoles(ctx, nil, "u-1", []string{"admin"})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	user := &auth.Claims{ID: "u-1", Roles: []string{"user"}}
	_, _, err = svc.ListUsers(ctx, user, 10, 0)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.SetRoles(ctx, user, "u-1", []string{"admin"})
	assert.ErrorIs(t, err, auth.ErrForbidden)
	assert.Equal(t, 0, admin.writes)

	// Проверка роли предшествует проверке настройки Admin API
	_, _, err = newRoleService(nil).ListUsers(ctx, user, 10, 0)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

// failingRemoveAdmin отказывает только при снятии ролей.
type failingRemoveAdmin struct {
	*fakeAdmin
}

func (f failingRemoveAdmin) RemoveUserRealmRoles(context.Context, string, []keycloak.RoleRepresentation) error {
	return &keycloak.APIError{Op: "RemoveUserRealmRoles", StatusCode: 500, Body: "boom"}
}

func TestRoles_SetRolesPartialFailureLogged(t *testing.T) {
	admin := newFakeAdmin()
	var buf bytes.Buffer
	svc := NewRoleService(failingRemoveAdmin{admin}, RolesConfig{AdminRole: "admin", CacheSize: 4, CacheTTL: time.Minute},
		slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := svc.SetRoles(context.Background(), adminClaims, "u-1", []string{"editor"})
	require.ErrorIs(t, err, ErrAdminAPIUnavailable)

	// editor уже назначена, user не снята
	assert.Contains(t, roleNames(admin.userRoles["u-1"]), "editor")
	assert.Contains(t, buf.String(), "added=[editor]")
	assert.Contains(t, buf.String(), "not_removed=[user]")
	assert.Contains(t, buf.String(), "user_id=u-1")
}
