package tabular

import (
	"fmt"
	"strconv"
	"strings"
)

// Range — разобранный диапазон A1: лист, окно колонок и строк.
type Range struct {
	// Sheet — имя листа.
	Sheet string
	// StartCol — первая колонка (с нуля).
	StartCol int
	// EndCol — последняя колонка включительно; -1 — без ограничения.
	EndCol int
	// StartRow — первая строка (с единицы).
	StartRow int
	// EndRow — последняя строка включительно; 0 — без ограничения.
	EndRow int
}

// ParseRange разбирает диапазоны вида "News", "News!A2:H", "News!A:C",
// "News!A2:H100", "'Read Status'!A2:C".
func ParseRange(s string) (Range, error) {
	r := Range{EndCol: -1, StartRow: 1}

	sheet, cells, hasCells := strings.Cut(s, "!")
	sheet = strings.TrimSpace(sheet)
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return Range{}, fmt.Errorf("%w %q: не указан лист", ErrInvalidRange, s)
	}
	r.Sheet = sheet
	if !hasCells {
		return r, nil
	}

	from, to, hasTo := strings.Cut(cells, ":")
	startCol, startRow, err := parseCell(from)
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %w", ErrInvalidRange, s, err)
	}
	if startCol >= 0 {
		r.StartCol = startCol
	}
	if startRow > 0 {
		r.StartRow = startRow
	}
	if !hasTo {
		// Одиночная ячейка: A2 — одна строка и одна колонка.
		r.EndCol = r.StartCol
		r.EndRow = r.StartRow
		return r, nil
	}

	endCol, endRow, err := parseCell(to)
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %w", ErrInvalidRange, s, err)
	}
	r.EndCol = endCol
	r.EndRow = endRow
	if r.EndCol >= 0 && r.EndCol < r.StartCol {
		return Range{}, fmt.Errorf("%w %q: конечная колонка левее начальной", ErrInvalidRange, s)
	}
	if r.EndRow > 0 && r.EndRow < r.StartRow {
		return Range{}, fmt.Errorf("%w %q: конечная строка выше начальной", ErrInvalidRange, s)
	}
	return r, nil
}

// parseCell разбирает ссылку вида "AB12", "C" или "7".
// Отсутствующая колонка — -1, отсутствующая строка — 0.
func parseCell(s string) (col, row int, err error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, fmt.Errorf("пустая ссылка на ячейку")
	}

	i := 0
	col = 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	col-- // A → 0; без букв получается -1

	if i < len(s) {
		row, err = strconv.Atoi(s[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("некорректная ссылка на ячейку %q", s)
		}
	}
	if col < 0 && row == 0 {
		return 0, 0, fmt.Errorf("некорректная ссылка на ячейку %q", s)
	}
	return col, row, nil
}

// Contains сообщает, попадает ли строка с номером rowNo (с единицы) в окно.
func (r Range) Contains(rowNo int) bool {
	if rowNo < r.StartRow {
		return false
	}
	return r.EndRow == 0 || rowNo <= r.EndRow
}

// Clip возвращает часть строки листа, попадающую в окно колонок.
// Пустые ячейки в конце отбрасываются.
func (r Range) Clip(row Row) Row {
	if r.StartCol >= len(row) {
		return Row{}
	}
	end := len(row)
	if r.EndCol >= 0 && r.EndCol+1 < end {
		end = r.EndCol + 1
	}
	out := make(Row, end-r.StartCol)
	copy(out, row[r.StartCol:end])
	return trimTrailing(out)
}

// Place размещает дописываемую строку на листе: сдвигает её
// на StartCol колонок вправо.
func (r Range) Place(row Row) Row {
	out := make(Row, r.StartCol, r.StartCol+len(row))
	return append(out, row...)
}
