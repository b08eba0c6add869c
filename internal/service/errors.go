// errors.go — ошибки бизнес-логики сервисного слоя.
// Обработчики сопоставляют их со статусами через errors.Is.
package service

import (
	"errors"

	"github.com/bigkaa/feedgate/internal/tabular"
)

var (
	// ErrInvalidArgument — отсутствующие или некорректные поля запроса.
	ErrInvalidArgument = errors.New("некорректные входные данные")
	// ErrConfiguration — не заданы учётные данные развёртывания.
	ErrConfiguration = errors.New("сервис не настроен")
	// ErrAdminAPIUnavailable — Admin API Identity Provider вернул ошибку.
	ErrAdminAPIUnavailable = errors.New("Identity Provider недоступен")
	// ErrStoreUnavailable — табличное хранилище вернуло ошибку.
	ErrStoreUnavailable = tabular.ErrStoreUnavailable
)
