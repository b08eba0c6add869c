// admin_users.go — администрирование ролей пользователей.
// Роль администратора проверяют и роутер, и сервис ролей.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/feedgate/internal/api/errors"
	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/domain/model"
	"github.com/bigkaa/feedgate/internal/service"
)

// setRolesRequest — тело POST /api/v1/admin/users/roles.
type setRolesRequest struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

// ListUsers — GET /api/v1/admin/users?limit=&offset=.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultUsersLimit)
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	users, total, err := h.roles.ListUsers(r.Context(), auth.FromContext(r.Context()), limit, offset)
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}
	if users == nil {
		users = []*model.User{}
	}

	apierrors.WriteSuccess(w, http.StatusOK, map[string]any{
		"users": users,
		"total": total,
	})
}

// SetUserRoles — POST /api/v1/admin/users/roles.
func (h *APIHandler) SetUserRoles(w http.ResponseWriter, r *http.Request) {
	var req setRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	user, err := h.roles.SetRoles(r.Context(), auth.FromContext(r.Context()), req.UserID, req.Roles)
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	apierrors.WriteSuccess(w, http.StatusOK, map[string]any{
		"message": "Роли обновлены",
		"user":    user,
	})
}
