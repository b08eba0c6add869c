package tabular

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable — внешний ресурс ответил неуспешным статусом
	// или недоступен.
	ErrStoreUnavailable = errors.New("табличное хранилище недоступно")
	// ErrNotConfigured — не заданы учётные данные или идентификатор таблицы.
	ErrNotConfigured = errors.New("табличное хранилище не настроено")
	// ErrInvalidRange — диапазон не в нотации A1.
	ErrInvalidRange = errors.New("некорректный диапазон")
)

// UnavailableError — отказ внешнего ресурса с диагностикой upstream.
// errors.Is(err, ErrStoreUnavailable) для неё истинно.
type UnavailableError struct {
	// Backend — sheets или postgres.
	Backend string
	// Op — read или append.
	Op string
	// StatusCode — HTTP-статус upstream (0, если ответа не было).
	StatusCode int
	// Body — тело ответа upstream.
	Body string
	// Err — исходная ошибка транспорта или драйвера.
	Err error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: upstream вернул статус %d: %s", e.Backend, e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, ErrStoreUnavailable)
	}
}

// Is сопоставляет ошибку с ErrStoreUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
