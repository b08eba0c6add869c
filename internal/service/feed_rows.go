// feed_rows.go — разбор строк таблицы в элементы ленты и отметки о прочтении.
// Каждая ячейка необязательна; значения по умолчанию задаются явно.
package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bigkaa/feedgate/internal/domain/model"
	"github.com/bigkaa/feedgate/internal/domain/rbac"
	"github.com/bigkaa/feedgate/internal/tabular"
)

// Колонки листа ленты.
const (
	feedColID = iota
	feedColTitle
	feedColMessage
	feedColKind
	feedColPriority
	feedColTargetRoles
	feedColCreatedAt
	feedColExpiresAt
)

// Колонки листа отметок о прочтении.
const (
	receiptColUserID = iota
	receiptColFeedItemID
	receiptColReadAt
)

// timestampLayouts — форматы времени, которые встречаются в таблице.
// Время без зоны считается UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var errMissingID = errors.New("не задан id")

// parseTimestamp разбирает время в одном из timestampLayouts.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат времени %q", s)
}

// parseFeedRow разбирает строку ленты. now подставляется в createdAt,
// если ячейка пуста. Ошибка означает, что строку нужно пропустить.
func parseFeedRow(row tabular.Row, now time.Time) (model.FeedItem, error) {
	item := model.FeedItem{
		ID:          row.Value(feedColID),
		Title:       row.Value(feedColTitle),
		Message:     row.Value(feedColMessage),
		Kind:        row.Value(feedColKind),
		TargetRoles: rbac.ParseList(row.Value(feedColTargetRoles)),
		CreatedAt:   now,
	}
	if item.ID == "" {
		return model.FeedItem{}, errMissingID
	}
	if item.Kind == "" {
		item.Kind = model.DefaultFeedKind
	}

	if v := row.Value(feedColPriority); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return model.FeedItem{}, fmt.Errorf("priority %q: не целое число", v)
		}
		item.Priority = p
	}

	if v := row.Value(feedColCreatedAt); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			return model.FeedItem{}, fmt.Errorf("createdAt: %w", err)
		}
		item.CreatedAt = t
	}

	if v := row.Value(feedColExpiresAt); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			return model.FeedItem{}, fmt.Errorf("expiresAt: %w", err)
		}
		item.ExpiresAt = &t
	}

	return item, nil
}

// parseReceiptRow разбирает строку отметки. Строки без userId или
// feedItemId не несут смысла и пропускаются (ok == false).
// Неразборчивое readAt не мешает членству и остаётся нулевым.
func parseReceiptRow(row tabular.Row) (model.ReadReceipt, bool) {
	r := model.ReadReceipt{
		UserID:     row.Value(receiptColUserID),
		FeedItemID: row.Value(receiptColFeedItemID),
	}
	if r.UserID == "" || r.FeedItemID == "" {
		return model.ReadReceipt{}, false
	}
	if v := row.Value(receiptColReadAt); v != "" {
		r.ReadAt, _ = parseTimestamp(v)
	}
	return r, true
}

// receiptRow сериализует отметку в строку таблицы (readAt в RFC 3339 UTC).
func receiptRow(r model.ReadReceipt) tabular.Row {
	return tabular.Row{r.UserID, r.FeedItemID, r.ReadAt.UTC().Format(time.RFC3339)}
}
