// Пакет service — бизнес-логика feedgate.
// feed.go — конвейер ленты уведомлений и фиксация прочтения.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bigkaa/feedgate/internal/auth"
	"github.com/bigkaa/feedgate/internal/domain/model"
	"github.com/bigkaa/feedgate/internal/tabular"
)

// FeedConfig — расположение ленты и отметок в табличном хранилище.
type FeedConfig struct {
	// Resource — идентификатор таблицы (пустой — таблица по умолчанию).
	Resource string
	// FeedRange — диапазон элементов ленты, например News!A2:H.
	FeedRange string
	// ReceiptsRange — диапазон отметок о прочтении, например ReadStatus!A2:C.
	ReceiptsRange string
}

// FeedService — чтение ленты и запись отметок о прочтении.
// Состояния между вызовами не хранит: источник истины — хранилище.
type FeedService struct {
	store  tabular.Store
	cfg    FeedConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewFeedService создаёт сервис ленты.
func NewFeedService(store tabular.Store, cfg FeedConfig, logger *slog.Logger) *FeedService {
	return &FeedService{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "feed_service")),
	}
}

// List строит ленту для пользователя claims: разбор, фильтрация по сроку
// и ролям, сортировка, отметки о прочтении. Два чтения, без записи.
// Между чтениями лента и отметки могут измениться; это допустимо.
func (s *FeedService) List(ctx context.Context, claims *auth.Claims) (*model.Feed, error) {
	if claims == nil {
		return nil, auth.ErrUnauthorized
	}
	now := s.now().UTC()

	rows, err := s.store.ReadRange(ctx, s.cfg.Resource, s.cfg.FeedRange)
	if err != nil {
		return nil, storeError("чтение ленты", err)
	}

	items := make([]model.FeedItem, 0, len(rows))
	for i, row := range rows {
		item, err := parseFeedRow(row, now)
		if err != nil {
			// Пустые строки встречаются в таблицах постоянно — не шумим
			if !errors.Is(err, errMissingID) || len(row) > 0 {
				s.logger.Warn("Строка ленты пропущена",
					slog.Int("row_index", i),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if item.Visible(now, claims.Roles) {
			items = append(items, item)
		}
	}

	sortFeed(items)

	read, err := s.readSet(ctx, claims.ID)
	if err != nil {
		return nil, err
	}

	feed := &model.Feed{Items: make([]model.FeedEntry, 0, len(items))}
	for _, item := range items {
		entry := model.FeedEntry{FeedItem: item, IsRead: read[item.ID]}
		if !entry.IsRead {
			feed.UnreadCount++
		}
		feed.Items = append(feed.Items, entry)
	}

	s.logger.Debug("Лента построена",
		slog.String("user_id", claims.ID),
		slog.Int("rows", len(rows)),
		slog.Int("visible", len(feed.Items)),
		slog.Int("unread", feed.UnreadCount),
	)

	return feed, nil
}

// MarkRead фиксирует прочтение элемента itemID пользователем claims.
// Если отметка уже есть — успех без записи (created == false).
// Проверка и запись не атомарны: при гонке возможны две одинаковые строки,
// на членство в множестве прочитанных это не влияет.
func (s *FeedService) MarkRead(ctx context.Context, claims *auth.Claims, itemID string) (created bool, err error) {
	if claims == nil {
		return false, auth.ErrUnauthorized
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return false, fmt.Errorf("%w: не задан newsItemId", ErrInvalidArgument)
	}

	read, err := s.readSet(ctx, claims.ID)
	if err != nil {
		return false, err
	}
	if read[itemID] {
		return false, nil
	}

	receipt := model.ReadReceipt{UserID: claims.ID, FeedItemID: itemID, ReadAt: s.now()}
	if err := s.store.AppendRows(ctx, s.cfg.Resource, s.cfg.ReceiptsRange,
		[]tabular.Row{receiptRow(receipt)}); err != nil {
		return false, storeError("запись отметки о прочтении", err)
	}

	s.logger.Info("Отметка о прочтении записана",
		slog.String("user_id", claims.ID),
		slog.String("feed_item_id", itemID),
	)
	return true, nil
}

// readSet возвращает множество id элементов, прочитанных userID.
func (s *FeedService) readSet(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.store.ReadRange(ctx, s.cfg.Resource, s.cfg.ReceiptsRange)
	if err != nil {
		return nil, storeError("чтение отметок о прочтении", err)
	}

	read := make(map[string]bool)
	for _, row := range rows {
		r, ok := parseReceiptRow(row)
		if ok && r.UserID == userID {
			read[r.FeedItemID] = true
		}
	}
	return read, nil
}

// sortFeed упорядочивает ленту: priority по убыванию, затем createdAt
// по убыванию, затем id по возрастанию — порядок полный.
func sortFeed(items []model.FeedItem) {
	slices.SortStableFunc(items, func(a, b model.FeedItem) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// storeError сводит ошибку хранилища к таксономии сервиса.
func storeError(op string, err error) error {
	if errors.Is(err, tabular.ErrNotConfigured) || errors.Is(err, tabular.ErrInvalidRange) {
		return fmt.Errorf("%s: %w: %w", op, ErrConfiguration, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
