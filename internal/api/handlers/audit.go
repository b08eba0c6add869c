// audit.go — приём событий аудита. Маршрут публичный.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/feedgate/internal/api/errors"
	"github.com/bigkaa/feedgate/internal/service"
)

// LogAuditEvent — POST /api/v1/audit-events.
func (h *APIHandler) LogAuditEvent(w http.ResponseWriter, r *http.Request) {
	var payload service.AuditPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	meta := service.RequestMeta{
		GeoHint:   r.Header.Get(h.cfg.GeoHeader),
		Country:   r.Header.Get(h.cfg.CountryHeader),
		UserAgent: r.UserAgent(),
	}
	if _, err := h.audit.Log(r.Context(), payload, meta); err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	apierrors.WriteSuccess(w, http.StatusOK, map[string]any{"message": "Событие записано"})
}
