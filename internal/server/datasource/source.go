// Package datasource supplies the tables shown on the dashboard. A Source is
// picked once from configuration; callers never branch on its kind.
package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/config"
)

// Datasets served by every source.
const (
	DatasetSales     = "sales"
	DatasetCustomers = "customers"
)

// DefaultLimit caps the number of rows returned when a query sets none.
const DefaultLimit = 100

var (
	// ErrUnknownDataset is returned for dataset names other than the ones above.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnavailable wraps connection and query failures of the backing store.
	ErrUnavailable = errors.New("data source unavailable")
	// ErrConfig reports missing or invalid connection settings.
	ErrConfig = errors.New("data source misconfigured")
)

// Query selects a dataset. Limit <= 0 means DefaultLimit.
type Query struct {
	Dataset string
	Limit   int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) validate() error {
	switch q.Dataset {
	case DatasetSales, DatasetCustomers:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataset, q.Dataset)
	}
}

// Table is an ordered result set.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t == nil || len(t.Rows) == 0 }

func (t *Table) truncate(n int) *Table {
	if len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
	return t
}

type Source interface {
	Name() string
	FetchRows(ctx context.Context, q Query) (*Table, error)
	Close() error
}

// New returns the source selected by cfg.DataSource.
func New(ctx context.Context, cfg *config.Config, l logging.Logger) (Source, error) {
	if l == nil {
		l = logging.Nop()
	}
	l = l.With("module", "datasource")

	switch cfg.DataSource {
	case config.DataSourceMock, "":
		return NewMockSource(), nil
	case config.DataSourceHana:
		return NewHanaSource(HanaSettings{
			Address:  cfg.HanaAddress,
			Port:     cfg.HanaPort,
			User:     cfg.HanaUser,
			Password: cfg.HanaPassword,
			Schema:   cfg.HanaSchema,
		}, l)
	case config.DataSourceS3:
		return NewS3Source(ctx, S3Settings{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Prefix:       cfg.S3Prefix,
		}, l)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrConfig, cfg.DataSource)
	}
}
