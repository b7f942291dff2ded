package output

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AppendAndColumns(t *testing.T) {
	tbl := NewTable([]Column{{"a", KindString}, {"b", KindInt}})
	require.NoError(t, tbl.Append([]any{"x", int64(1)}))
	require.Error(t, tbl.Append([]any{"x"}))

	assert.Equal(t, 1, tbl.NumRows())
	assert.Equal(t, 1, tbl.ColumnIndex("b"))
	assert.Equal(t, -1, tbl.ColumnIndex("c"))
	assert.Equal(t, []string{"a", "b"}, tbl.Names())
}

func TestTable_AddColumn(t *testing.T) {
	tbl := NewTable([]Column{{"a", KindString}})
	require.NoError(t, tbl.Append([]any{"x"}))
	require.NoError(t, tbl.Append([]any{"y"}))

	require.NoError(t, tbl.AddColumn(Column{"c", KindFloat}, []any{1.5, nil}))
	assert.Equal(t, []any{"x", 1.5}, tbl.Rows[0])
	assert.Equal(t, []any{"y", nil}, tbl.Rows[1])

	assert.Error(t, tbl.AddColumn(Column{"c", KindFloat}, []any{1.0, 2.0}), "duplicate name")
	assert.Error(t, tbl.AddColumn(Column{"d", KindFloat}, []any{1.0}), "wrong length")
}

func TestFloat(t *testing.T) {
	f, ok := Float(2.5)
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	f, ok = Float(int64(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = Float(math.NaN())
	assert.False(t, ok)
	_, ok = Float(nil)
	assert.False(t, ok)
	_, ok = Float("1")
	assert.False(t, ok)
}
