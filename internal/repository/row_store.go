package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/feedgate/internal/tabular"
)

// backend — значение лейбла и поля UnavailableError.Backend.
const backend = "postgres"

// RowStore — табличное хранилище поверх таблицы sheet_rows.
// Лист — набор строк с номерами row_no, как в электронной таблице;
// диапазон A1 ограничивает номера строк и окно колонок.
type RowStore struct {
	db DBTX
	tx *TxRunner
}

var _ tabular.Store = (*RowStore)(nil)

// NewRowStore создаёт хранилище строк поверх пула подключений.
func NewRowStore(pool *pgxpool.Pool) *RowStore {
	return &RowStore{db: pool, tx: NewTxRunner(pool)}
}

// ReadRange возвращает строки листа из диапазона rng в порядке номеров.
// Пропуски в нумерации не заполняются.
func (s *RowStore) ReadRange(ctx context.Context, resource, rng string) ([]tabular.Row, error) {
	r, err := tabular.ParseRange(rng)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT cells
		FROM sheet_rows
		WHERE resource = $1 AND sheet = $2
		  AND row_no >= $3 AND ($4 = 0 OR row_no <= $4)
		ORDER BY row_no`

	rows, err := s.db.Query(ctx, query, resource, r.Sheet, r.StartRow, r.EndRow)
	if err != nil {
		return nil, unavailable("read", fmt.Errorf("ошибка чтения sheet_rows: %w", err))
	}

	cells, err := pgx.CollectRows(rows, pgx.RowTo[[]string])
	if err != nil {
		return nil, unavailable("read", fmt.Errorf("ошибка сканирования sheet_rows: %w", err))
	}

	result := make([]tabular.Row, 0, len(cells))
	for _, c := range cells {
		result = append(result, r.Clip(c))
	}
	return result, nil
}

// AppendRows дописывает строки после последней строки листа.
// Номера выдаются под advisory-блокировкой листа, поэтому конкурентные
// дописывания не конфликтуют, но их взаимный порядок не определён.
func (s *RowStore) AppendRows(ctx context.Context, resource, rng string, rows []tabular.Row) error {
	if len(rows) == 0 {
		return nil
	}

	r, err := tabular.ParseRange(rng)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1 || '/' || $2))`,
			resource, r.Sheet,
		); err != nil {
			return fmt.Errorf("ошибка блокировки листа: %w", err)
		}

		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(row_no), 0) + 1 FROM sheet_rows WHERE resource = $1 AND sheet = $2`,
			resource, r.Sheet,
		).Scan(&next); err != nil {
			return fmt.Errorf("ошибка вычисления номера строки: %w", err)
		}
		// Пустой лист заполняется с первой строки диапазона
		next = max(next, r.StartRow)

		batch := &pgx.Batch{}
		for i, row := range rows {
			batch.Queue(
				`INSERT INTO sheet_rows (resource, sheet, row_no, cells) VALUES ($1, $2, $3, $4)`,
				resource, r.Sheet, next+i, []string(r.Place(row)),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("ошибка вставки в sheet_rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return unavailable("append", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return &tabular.UnavailableError{Backend: backend, Op: op, Err: err}
}
