// feed.go — обработчики ленты уведомлений.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/feedgate/internal/api/errors"
	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/domain/model"
)

// feedItemResponse — элемент ленты в ответе API.
type feedItemResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	Type        string   `json:"type"`
	Priority    int      `json:"priority"`
	TargetRoles []string `json:"targetRoles"`
	CreatedAt   string   `json:"createdAt"`
	ExpiresAt   *string  `json:"expiresAt"`
	IsRead      bool     `json:"isRead"`
}

// markReadRequest — тело POST /api/v1/feed/read.
type markReadRequest struct {
	NewsItemID string `json:"newsItemId"`
}

// GetFeed — GET /api/v1/feed.
func (h *APIHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feed.List(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	items := make([]feedItemResponse, 0, len(feed.Items))
	for i := range feed.Items {
		items = append(items, toFeedItemResponse(&feed.Items[i]))
	}

	apierrors.WriteSuccess(w, http.StatusOK, map[string]any{
		"news":        items,
		"unreadCount": feed.UnreadCount,
	})
}

// MarkRead — POST /api/v1/feed/read.
func (h *APIHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	created, err := h.feed.MarkRead(r.Context(), claims, req.NewsItemID)
	if err != nil {
		apierrors.WriteServiceError(w, h.requestLogger(r), err)
		return
	}

	msg := "Отмечено как прочитанное"
	if !created {
		msg = "Уже отмечено как прочитанное"
	}
	apierrors.WriteSuccess(w, http.StatusOK, map[string]any{"message": msg})
}

func toFeedItemResponse(e *model.FeedEntry) feedItemResponse {
	resp := feedItemResponse{
		ID:          e.ID,
		Title:       e.Title,
		Message:     e.Message,
		Type:        e.Kind,
		Priority:    e.Priority,
		TargetRoles: e.TargetRoles,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		IsRead:      e.IsRead,
	}
	if resp.TargetRoles == nil {
		resp.TargetRoles = []string{}
	}
	if e.ExpiresAt != nil {
		s := e.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &s
	}
	return resp
}
