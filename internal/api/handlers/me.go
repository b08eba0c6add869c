// me.go — операции пользователя над собственной учётной записью.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/feedgate/internal/api/errors"
	"github.com/bigkaa/feedgate/internal/auth"
)

// AssignDefaultRole — POST /api/v1/me/default-role.
func (h *APIHandler) AssignDefaultRole(w http.ResponseWriter, r *http.Request) {
	roles, assigned, err := h.roles.AssignDefaultRole(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	apierrors.WriteSuccess(w, http.StatusOK, map[string]any{
		"roles":    roles,
		"assigned": assigned,
	})
}
