// audit.go — журнал событий аудита: обогащение и дописывание в хранилище.
// События обратно не читаются.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/feedgate/internal/domain/model"
	"github.com/bigkaa/feedgate/internal/tabular"
)

// auditTimeLayout — формат observedAt в таблице.
const auditTimeLayout = "2006-01-02 15:04:05"

// auditEventsTotal без лейблов: action присылает анонимный клиент,
// его значения не ограничены.
var auditEventsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "fg_audit_events_total",
		Help: "Количество записанных событий аудита",
	},
)

// AuditPayload — тело входящего события.
type AuditPayload struct {
	Action           string `json:"action"`
	URLPath          string `json:"urlPath"`
	MediaKind        string `json:"mediaKind"`
	SessionID        string `json:"sessionId"`
	DeviceType       string `json:"deviceType"`
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"`
}

// RequestMeta — метаданные запроса, используемые для обогащения.
type RequestMeta struct {
	// GeoHint — значение заголовка со структурированной гео-подсказкой.
	GeoHint string
	// Country — значение заголовка с кодом страны.
	Country string
	// UserAgent — заголовок User-Agent.
	UserAgent string
}

// AuditConfig — параметры журнала аудита.
type AuditConfig struct {
	Resource   string
	AuditRange string
	// MediaKind — единственный принимаемый тип медиа.
	MediaKind string
	// Location — таймзона observedAt.
	Location *time.Location
}

// AuditService — приём событий аудита.
type AuditService struct {
	store  tabular.Store
	cfg    AuditConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewAuditService создаёт сервис аудита.
func NewAuditService(store tabular.Store, cfg AuditConfig, logger *slog.Logger) *AuditService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AuditService{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "audit_service")),
	}
}

// Log проверяет событие, обогащает его метаданными запроса и дописывает
// одну строку. Событие с чужим типом медиа отклоняется без обращения
// к хранилищу.
func (s *AuditService) Log(ctx context.Context, p AuditPayload, meta RequestMeta) (*model.AuditEvent, error) {
	if kind := strings.TrimSpace(p.MediaKind); kind != s.cfg.MediaKind {
		return nil, fmt.Errorf("%w: mediaKind %q не поддерживается, ожидается %q",
			ErrInvalidArgument, kind, s.cfg.MediaKind)
	}

	event := s.buildEvent(p, meta)

	if err := s.store.AppendRows(ctx, s.cfg.Resource, s.cfg.AuditRange,
		[]tabular.Row{event.Row()}); err != nil {
		return nil, storeError("запись события аудита", err)
	}

	auditEventsTotal.Inc()
	s.logger.Debug("Событие аудита записано",
		slog.String("action", event.Action),
		slog.String("country", event.Country),
	)
	return event, nil
}

// buildEvent собирает строку аудита. Время вычисляется в момент записи
// в таймзоне отображения, а не клиента.
func (s *AuditService) buildEvent(p AuditPayload, meta RequestMeta) *model.AuditEvent {
	loc := ResolveLocation(meta.GeoHint, meta.Country)

	return &model.AuditEvent{
		ObservedAt:       s.now().In(s.cfg.Location).Format(auditTimeLayout),
		Action:           strings.TrimSpace(p.Action),
		URLPath:          strings.TrimSpace(p.URLPath),
		MediaKind:        strings.TrimSpace(p.MediaKind),
		Country:          loc.Country,
		City:             loc.City,
		Region:           loc.Region,
		SessionID:        strings.TrimSpace(p.SessionID),
		DeviceType:       strings.TrimSpace(p.DeviceType),
		UserAgent:        orUnknown(firstNonEmpty(meta.UserAgent, p.UserAgent)),
		ScreenResolution: strings.TrimSpace(p.ScreenResolution),
	}
}
