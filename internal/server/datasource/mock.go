package datasource

import "context"

// MockSource serves fixed sample tables. It never fails.
type MockSource struct{}

func NewMockSource() *MockSource { return &MockSource{} }

func (*MockSource) Name() string { return "mock" }

func (*MockSource) FetchRows(ctx context.Context, q Query) (*Table, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t *Table
	switch q.Dataset {
	case DatasetSales:
		t = &Table{
			Columns: []string{"OrderID", "Product", "Quantity", "Price"},
			Rows: [][]any{
				{1, "Laptop", 1, 1200},
				{2, "Mouse", 2, 25},
				{3, "Keyboard", 1, 75},
				{4, "Monitor", 1, 300},
				{5, "Webcam", 3, 50},
			},
		}
	case DatasetCustomers:
		t = &Table{
			Columns: []string{"CustomerID", "Name", "Segment"},
			Rows: [][]any{
				{101, "Alice Smith", "Retail"},
				{102, "Bob Johnson", "Wholesale"},
				{103, "Charlie Brown", "Retail"},
				{104, "Diana Prince", "Corporate"},
				{105, "Edward King", "Retail"},
			},
		}
	}
	return t.truncate(q.limit()), nil
}

func (*MockSource) Close() error { return nil }
