package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/tabular"
	"github.com/bigkaa/feedgate/internal/tabular/tabulartest"
)

var (
	feedHeader    = tabular.Row{"id", "title", "message", "type", "priority", "targetRoles", "createdAt", "expiresAt"}
	receiptHeader = tabular.Row{"userId", "newsItemId", "readAt"}
	testNow       = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFeedService создаёт сервис ленты над in-memory таблицей с заголовками.
func newFeedService(t *testing.T, feedRows ...tabular.Row) (*FeedService, *tabulartest.Memory) {
	t.Helper()

	store := tabulartest.NewMemory().
		Seed("News", append([]tabular.Row{feedHeader}, feedRows...)...).
		Seed("ReadStatus", receiptHeader)

	svc := NewFeedService(store, FeedConfig{
		Resource:      "sheet-1",
		FeedRange:     "News!A2:H",
		ReceiptsRange: "ReadStatus!A2:C",
	}, testLogger())
	svc.now = func() time.Time { return testNow }

	return svc, store
}

func ids(t *testing.T, svc *FeedService, claims *auth.Claims) []string {
	t.Helper()
	feed, err := svc.List(context.Background(), claims)
	require.NoError(t, err)

	out := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		out = append(out, it.ID)
	}
	return out
}

func TestFeed_WorkedExample(t *testing.T) {
	svc, _ := newFeedService(t,
		tabular.Row{"A", "Для всех", "", "", "5", "", "2026-03-01T10:00:00Z"},
		tabular.Row{"B", "Для админов", "", "", "5", "admin", "2026-03-02T10:00:00Z"},
	)

	user := &auth.Claims{ID: "u-1", Roles: []string{"user"}}
	feed, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "A", feed.Items[0].ID)
	assert.Equal(t, 1, feed.UnreadCount)

	admin := &auth.Claims{ID: "u-2", Roles: []string{"admin", "user"}}
	feed, err = svc.List(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, ids(t, svc, admin))
	assert.Equal(t, 2, feed.UnreadCount)
}

func TestFeed_ExpiryDominatesTargeting(t *testing.T) {
	svc, _ := newFeedService(t,
		tabular.Row{"old", "", "", "", "9", "admin", "", "2026-03-10T11:59:59Z"},
		tabular.Row{"old-all", "", "", "", "9", "", "", "2026-03-01"},
		tabular.Row{"edge", "", "", "", "1", "", "", "2026-03-10T12:00:00Z"},
		tabular.Row{"future", "", "", "", "1", "", "", "2026-04-01 00:00:00"},
	)

	for _, roles := range [][]string{nil, {"admin"}, {"admin", "user"}} {
		got := ids(t, svc, &auth.Claims{ID: "u", Roles: roles})
		assert.NotContains(t, got, "old")
		assert.NotContains(t, got, "old-all")
		// Срок, равный текущему моменту, ещё не истёк
		assert.Contains(t, got, "edge")
		assert.Contains(t, got, "future")
	}
}

func TestFeed_Targeting(t *testing.T) {
	svc, _ := newFeedService(t,
		tabular.Row{"editors", "", "", "", "", "editor, admin"},
		tabular.Row{"everyone"},
		tabular.Row{"moderators", "", "", "", "", "moderator"},
	)

	assert.ElementsMatch(t, []string{"everyone"}, ids(t, svc, &auth.Claims{ID: "u"}))
	assert.ElementsMatch(t, []string{"editors", "everyone"}, ids(t, svc, &auth.Claims{ID: "u", Roles: []string{"editor"}}))
	assert.ElementsMatch(t, []string{"editors", "everyone", "moderators"},
		ids(t, svc, &auth.Claims{ID: "u", Roles: []string{"admin", "moderator"}}))
}

func TestFeed_Ordering(t *testing.T) {
	svc, _ := newFeedService(t,
		tabular.Row{"low", "", "", "", "1", "", "2026-03-09T00:00:00Z"},
		tabular.Row{"high-old", "", "", "", "10", "", "2026-01-01T00:00:00Z"},
		tabular.Row{"high-new", "", "", "", "10", "", "2026-03-01T00:00:00Z"},
		tabular.Row{"neg", "", "", "", "-3", "", "2026-03-09T00:00:00Z"},
		tabular.Row{"tie-b", "", "", "", "1", "", "2026-03-09T00:00:00Z"},
		tabular.Row{"tie-a", "", "", "", "1", "", "2026-03-09T00:00:00Z"},
		// Без createdAt — «сейчас», то есть новее всех при равном приоритете
		tabular.Row{"no-date", "", "", "", "1"},
	)

	want := []string{"high-new", "high-old", "no-date", "low", "tie-a", "tie-b", "neg"}
	assert.Equal(t, want, ids(t, svc, &auth.Claims{ID: "u"}))
	// Детерминированность на том же снимке
	assert.Equal(t, want, ids(t, svc, &auth.Claims{ID: "u"}))
}

func TestFeed_Defaults(t *testing.T) {
	svc, _ := newFeedService(t, tabular.Row{"n1", "Заголовок"})

	feed, err := svc.List(context.Background(), &auth.Claims{ID: "u"})
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)

	item := feed.Items[0]
	assert.Equal(t, "info", item.Kind)
	assert.Equal(t, 0, item.Priority)
	assert.Empty(t, item.TargetRoles)
	assert.Equal(t, testNow, item.CreatedAt)
	assert.Nil(t, item.ExpiresAt)
	assert.False(t, item.IsRead)
}

func TestFeed_MalformedRowsSkipped(t *testing.T) {
	svc, _ := newFeedService(t,
		tabular.Row{"ok-1", "", "", "", "2"},
		tabular.Row{"", "без id"},
		tabular.Row{},
		tabular.Row{"bad-priority", "", "", "", "high"},
		tabular.Row{"bad-created", "", "", "", "", "", "вчера"},
		tabular.Row{"bad-expires", "", "", "", "", "", "", "31.12.2026"},
		tabular.Row{"ok-2", "", "", "warning", " 1 "},
	)

	assert.Equal(t, []string{"ok-1", "ok-2"}, ids(t, svc, &auth.Claims{ID: "u"}))
}

func TestFeed_ReadState(t *testing.T) {
	svc, store := newFeedService(t,
		tabular.Row{"n1", "", "", "", "3"},
		tabular.Row{"n2", "", "", "", "2"},
		tabular.Row{"n3", "", "", "", "1"},
	)
	store.Seed("ReadStatus",
		tabular.Row{"u-1", "n2", "2026-03-09T00:00:00Z"},
		tabular.Row{"u-2", "n1", "2026-03-09T00:00:00Z"},
		tabular.Row{"u-1", "deleted-item", "2026-03-09T00:00:00Z"},
		tabular.Row{"u-1"},
	)

	feed, err := svc.List(context.Background(), &auth.Claims{ID: "u-1"})
	require.NoError(t, err)
	require.Len(t, feed.Items, 3)

	assert.False(t, feed.Items[0].IsRead)
	assert.True(t, feed.Items[1].IsRead)
	assert.False(t, feed.Items[2].IsRead)
	// Отметка о несуществующем элементе не уменьшает счётчик
	assert.Equal(t, 2, feed.UnreadCount)

	assert.Equal(t, 2, store.CountOps("read"))
	assert.Equal(t, 0, store.CountOps("append"))
}

func TestFeed_MarkReadTwice(t *testing.T) {
	svc, store := newFeedService(t,
		tabular.Row{"n1"},
		tabular.Row{"n2"},
	)
	claims := &auth.Claims{ID: "u-1"}
	ctx := context.Background()

	created, err := svc.MarkRead(ctx, claims, "n1")
	require.NoError(t, err)
	assert.True(t, created)

	feed, err := svc.List(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.UnreadCount)

	created, err = svc.MarkRead(ctx, claims, "n1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, store.Rows("ReadStatus"), 2, "повторная отметка не должна дописывать строку")

	// Дубликат, записанный гонкой, не меняет результат
	store.Seed("ReadStatus", tabular.Row{"u-1", "n1", testNow.Format(time.RFC3339)})
	again, err := svc.List(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, feed.UnreadCount, again.UnreadCount)
	assert.Equal(t, feed.Items, again.Items)
}

func TestFeed_MarkReadRow(t *testing.T) {
	svc, store := newFeedService(t)

	_, err := svc.MarkRead(context.Background(), &auth.Claims{ID: "u-1"}, " n7 ")
	require.NoError(t, err)

	rows := store.Rows("ReadStatus")
	require.Len(t, rows, 2)
	assert.Equal(t, tabular.Row{"u-1", "n7", "2026-03-10T12:00:00Z"}, rows[1])
}

func TestFeed_MarkReadInvalid(t *testing.T) {
	svc, store := newFeedService(t)

	_, err := svc.MarkRead(context.Background(), &auth.Claims{ID: "u-1"}, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, store.Calls())

	_, err = svc.MarkRead(context.Background(), nil, "n1")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestFeed_StoreErrors(t *testing.T) {
	svc, store := newFeedService(t, tabular.Row{"n1"})
	store.ReadErr = &tabular.UnavailableError{Backend: "sheets", Op: "read", StatusCode: 500, Body: "boom"}

	_, err := svc.List(context.Background(), &auth.Claims{ID: "u"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.MarkRead(context.Background(), &auth.Claims{ID: "u"}, "n1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	store.ReadErr = nil
	store.AppendErr = &tabular.UnavailableError{Backend: "sheets", Op: "append", StatusCode: 429}
	_, err = svc.MarkRead(context.Background(), &auth.Claims{ID: "u"}, "n1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFeed_NotConfigured(t *testing.T) {
	svc := NewFeedService(tabular.NotConfigured("нет ключа"), FeedConfig{FeedRange: "News!A2:H"}, testLogger())

	_, err := svc.List(context.Background(), &auth.Claims{ID: "u"})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestFeed_InvalidRange(t *testing.T) {
	svc := NewFeedService(tabulartest.NewMemory(), FeedConfig{FeedRange: "News!C2:A"}, testLogger())

	_, err := svc.List(context.Background(), &auth.Claims{ID: "u"})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, tabular.ErrInvalidRange)
}

func TestFeed_UnreadCountBounds(t *testing.T) {
	rows := []tabular.Row{
		{"a", "", "", "", "1", "admin"},
		{"b", "", "", "", "2", "", "", "2020-01-01"},
		{"c", "", "", "", "3"},
		{"d", "", "", "", "4", "user"},
	}
	svc, store := newFeedService(t, rows...)
	store.Seed("ReadStatus",
		tabular.Row{"u", "a"}, tabular.Row{"u", "b"}, tabular.Row{"u", "b"}, tabular.Row{"u", "c"},
	)

	for _, roles := range [][]string{nil, {"user"}, {"admin"}, {"admin", "user"}} {
		feed, err := svc.List(context.Background(), &auth.Claims{ID: "u", Roles: roles})
		require.NoError(t, err)

		unread := 0
		for _, it := range feed.Items {
			if !it.IsRead {
				unread++
			}
		}
		assert.Equal(t, unread, feed.UnreadCount)
		assert.GreaterOrEqual(t, feed.UnreadCount, 0)
		assert.LessOrEqual(t, feed.UnreadCount, len(feed.Items))
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00:00.5+03:00", time.Date(2026, 3, 1, 7, 0, 0, 500_000_000, time.UTC)},
		{"2026-03-01 10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, err := parseTimestamp("01/03/2026")
	assert.Error(t, err)
}
