package tabular

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики обращений к хранилищу.
var (
	storeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_store_requests_total",
			Help: "Количество обращений к табличному хранилищу",
		},
		[]string{"backend", "op", "result"},
	)

	storeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fg_store_request_duration_seconds",
			Help:    "Длительность обращений к табличному хранилищу в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

// instrumented — Store с Prometheus-метриками.
type instrumented struct {
	next    Store
	backend string
}

// Instrument оборачивает backend метриками fg_store_*.
func Instrument(next Store, backend string) Store {
	return &instrumented{next: next, backend: backend}
}

func (s *instrumented) ReadRange(ctx context.Context, resource, rng string) ([]Row, error) {
	start := time.Now()
	rows, err := s.next.ReadRange(ctx, resource, rng)
	s.observe("read", start, err)
	return rows, err
}

func (s *instrumented) AppendRows(ctx context.Context, resource, rng string, rows []Row) error {
	start := time.Now()
	err := s.next.AppendRows(ctx, resource, rng, rows)
	s.observe("append", start, err)
	return err
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	storeRequestDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	storeRequestsTotal.WithLabelValues(s.backend, op, resultLabel(err)).Inc()
}

// resultLabel сворачивает ошибку в значение лейбла с малой кардинальностью.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
