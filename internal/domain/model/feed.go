package model

import (
	"time"

	"github.com/bigkaa/feedgate/internal/domain/rbac"
)

// Тип элемента ленты по умолчанию.
const DefaultFeedKind = "info"

// FeedItem — элемент ленты уведомлений. Источник истины — строка таблицы,
// сервис только читает элементы.
type FeedItem struct {
	ID       string
	Title    string
	Message  string
	Kind     string
	Priority int
	// TargetRoles — пустое множество означает «видно всем».
	TargetRoles []string
	CreatedAt   time.Time
	// ExpiresAt — nil, если срок не задан.
	ExpiresAt *time.Time
}

// Visible сообщает, виден ли элемент в момент now пользователю с ролями roles.
// Истечение срока проверяется первым и перекрывает таргетинг.
func (f *FeedItem) Visible(now time.Time, roles []string) bool {
	if f.ExpiresAt != nil && f.ExpiresAt.Before(now) {
		return false
	}
	if len(f.TargetRoles) == 0 {
		return true
	}
	return rbac.Intersects(f.TargetRoles, roles)
}

// ReadReceipt — отметка о прочтении элемента пользователем.
// Хранилище допускает дубликаты: потребители проверяют только членство.
type ReadReceipt struct {
	UserID     string
	FeedItemID string
	ReadAt     time.Time
}

// FeedEntry — элемент ленты с признаком прочтения для конкретного пользователя.
type FeedEntry struct {
	FeedItem
	IsRead bool
}

// Feed — результат конвейера ленты.
type Feed struct {
	Items       []FeedEntry
	UnreadCount int
}
