// Пакет tabular — абстракция внешнего табличного хранилища.
//
// Хранилище умеет ровно две вещи: прочитать непрерывный диапазон строк
// и дописать строки в конец листа. Обновления, удаления, транзакций
// и ограничений уникальности нет — все инварианты (дедупликация, сроки,
// таргетинг) обеспечивает читающая сторона.
package tabular

import (
	"context"
	"fmt"
	"strings"
)

// Row — строка листа: упорядоченные ячейки. Недостающие ячейки в конце
// строки просто отсутствуют, значения по умолчанию подставляет вызывающий.
type Row []string

// Cell возвращает ячейку i и признак её наличия.
func (r Row) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}

// Value возвращает ячейку i без пробелов по краям; "" для отсутствующей.
func (r Row) Value(i int) string {
	v, _ := r.Cell(i)
	return strings.TrimSpace(v)
}

// Store — операции над именованным внешним ресурсом (таблицей).
// resource — идентификатор таблицы, rng — диапазон в нотации A1.
type Store interface {
	// ReadRange читает строки диапазона. Строки за пределами заполненной
	// области отсутствуют (без дополнения и без ошибки).
	ReadRange(ctx context.Context, resource, rng string) ([]Row, error)
	// AppendRows дописывает строки в конец листа. Дубликаты не проверяются,
	// порядок конкурентных дописываний не гарантируется.
	AppendRows(ctx context.Context, resource, rng string, rows []Row) error
}

// trimTrailing отбрасывает пустые ячейки в конце строки,
// как это делает Sheets API.
func trimTrailing(r Row) Row {
	end := len(r)
	for end > 0 && r[end-1] == "" {
		end--
	}
	return r[:end]
}

// unconfigured — хранилище без учётных данных: каждый вызов
// завершается ErrNotConfigured.
type unconfigured struct {
	reason string
}

// NotConfigured возвращает Store, который на каждый вызов отвечает
// ошибкой конфигурации. reason попадает в текст ошибки.
func NotConfigured(reason string) Store {
	return unconfigured{reason: reason}
}

func (s unconfigured) ReadRange(context.Context, string, string) ([]Row, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, s.reason)
}

func (s unconfigured) AppendRows(context.Context, string, string, []Row) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, s.reason)
}
