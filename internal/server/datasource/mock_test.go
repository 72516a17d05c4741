package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSource(t *testing.T) {
	ctx := context.Background()
	src := NewMockSource()

	tests := []struct {
		name     string
		query    Query
		wantCols []string
		wantRows int
		wantErr  error
	}{
		{name: "sales", query: Query{Dataset: DatasetSales}, wantCols: []string{"OrderID", "Product", "Quantity", "Price"}, wantRows: 5},
		{name: "customers", query: Query{Dataset: DatasetCustomers}, wantCols: []string{"CustomerID", "Name", "Segment"}, wantRows: 5},
		{name: "limit", query: Query{Dataset: DatasetSales, Limit: 2}, wantCols: []string{"OrderID", "Product", "Quantity", "Price"}, wantRows: 2},
		{name: "unknown", query: Query{Dataset: "orders"}, wantErr: ErrUnknownDataset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := src.FetchRows(ctx, tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCols, tbl.Columns)
			assert.Len(t, tbl.Rows, tt.wantRows)
		})
	}
}

func TestMockSource_Content(t *testing.T) {
	tbl, err := NewMockSource().FetchRows(context.Background(), Query{Dataset: DatasetSales})
	require.NoError(t, err)
	assert.Equal(t, []any{1, "Laptop", 1, 1200}, tbl.Rows[0])
	assert.Equal(t, []any{5, "Webcam", 3, 50}, tbl.Rows[4])

	tbl, err = NewMockSource().FetchRows(context.Background(), Query{Dataset: DatasetCustomers})
	require.NoError(t, err)
	assert.Equal(t, []any{104, "Diana Prince", "Corporate"}, tbl.Rows[3])
}

func TestTable_Empty(t *testing.T) {
	var nilTable *Table
	assert.True(t, nilTable.Empty())
	assert.True(t, (&Table{Columns: []string{"a"}}).Empty())
	assert.False(t, (&Table{Rows: [][]any{{1}}}).Empty())
}
