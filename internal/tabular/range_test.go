package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want Range
	}{
		{"News", Range{Sheet: "News", EndCol: -1, StartRow: 1}},
		{"News!A2:H", Range{Sheet: "News", StartCol: 0, EndCol: 7, StartRow: 2}},
		{"News!A2:H100", Range{Sheet: "News", EndCol: 7, StartRow: 2, EndRow: 100}},
		{"ReadStatus!A:C", Range{Sheet: "ReadStatus", EndCol: 2, StartRow: 1}},
		{"Analytics!b3:k", Range{Sheet: "Analytics", StartCol: 1, EndCol: 10, StartRow: 3}},
		{"'Read Status'!A2:C", Range{Sheet: "Read Status", EndCol: 2, StartRow: 2}},
		{"'O''Brien'!A1:A1", Range{Sheet: "O'Brien", EndCol: 0, StartRow: 1, EndRow: 1}},
		{"Wide!AA1:AB", Range{Sheet: "Wide", StartCol: 26, EndCol: 27, StartRow: 1}},
		{"Cell!C5", Range{Sheet: "Cell", StartCol: 2, EndCol: 2, StartRow: 5, EndRow: 5}},
		{"Rows!2:10", Range{Sheet: "Rows", EndCol: -1, StartRow: 2, EndRow: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_Invalid(t *testing.T) {
	for _, in := range []string{"", "!A1:B2", "News!", "News!A0:B", "News!C2:A", "News!A10:B2", "News!A2:$"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRange(in)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestRange_ContainsAndClip(t *testing.T) {
	r, err := ParseRange("S!B2:C3")
	require.NoError(t, err)

	assert.False(t, r.Contains(1))
	assert.True(t, r.Contains(2))
	assert.True(t, r.Contains(3))
	assert.False(t, r.Contains(4))

	assert.Equal(t, Row{"b", "c"}, r.Clip(Row{"a", "b", "c", "d"}))
	assert.Equal(t, Row{"b"}, r.Clip(Row{"a", "b", ""}))
	assert.Equal(t, Row{}, r.Clip(Row{"a"}))

	assert.Equal(t, Row{"", "x", "y"}, r.Place(Row{"x", "y"}))
}

func TestRow_Cell(t *testing.T) {
	row := Row{"id-1", "  title  "}

	v, ok := row.Cell(0)
	assert.True(t, ok)
	assert.Equal(t, "id-1", v)

	_, ok = row.Cell(5)
	assert.False(t, ok)
	_, ok = row.Cell(-1)
	assert.False(t, ok)

	assert.Equal(t, "title", row.Value(1))
	assert.Equal(t, "", row.Value(7))
}
