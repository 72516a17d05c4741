package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/SAP/go-hdb/driver"
	"github.com/dmitrijs2005/salesdash/internal/logging"
)

// HanaSettings are the connection parameters of an SAP HANA instance.
type HanaSettings struct {
	Address  string
	Port     string
	User     string
	Password string
	// Schema qualifies the SALES and CUSTOMERS tables when set.
	Schema string
}

func (s HanaSettings) host() (string, error) {
	var missing []string
	for name, v := range map[string]string{
		"HANA_ADDRESS":  s.Address,
		"HANA_PORT":     s.Port,
		"HANA_USER":     s.User,
		"HANA_PASSWORD": s.Password,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(s.Port)
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: HANA_PORT (%q) is not a valid port", ErrConfig, s.Port)
	}
	return net.JoinHostPort(s.Address, strconv.Itoa(port)), nil
}

// HanaSource reads the dashboard tables from SAP HANA over database/sql.
// Connections are opened lazily, so an unreachable instance surfaces as
// ErrUnavailable on FetchRows rather than at construction.
type HanaSource struct {
	db     *sql.DB
	schema string
	logger logging.Logger
}

// openHana is a seam for tests.
var openHana = func(host, user, password string) *sql.DB {
	return sql.OpenDB(driver.NewBasicAuthConnector(host, user, password))
}

func NewHanaSource(s HanaSettings, l logging.Logger) (*HanaSource, error) {
	host, err := s.host()
	if err != nil {
		return nil, err
	}
	return newHanaSource(openHana(host, s.User, s.Password), s.Schema, l), nil
}

func newHanaSource(db *sql.DB, schema string, l logging.Logger) *HanaSource {
	if l == nil {
		l = logging.Nop()
	}
	return &HanaSource{db: db, schema: schema, logger: l}
}

func (h *HanaSource) Name() string { return "hana" }

func (h *HanaSource) table(name string) string {
	if h.schema == "" {
		return name
	}
	return `"` + strings.ReplaceAll(h.schema, `"`, `""`) + `".` + name
}

func (h *HanaSource) query(dataset string) string {
	switch dataset {
	case DatasetSales:
		return `SELECT ORDER_ID AS "OrderID", PRODUCT AS "Product", QUANTITY AS "Quantity", PRICE AS "Price"
		 FROM ` + h.table("SALES") + `
		 ORDER BY ORDER_ID
		 LIMIT ?`
	default:
		return `SELECT CUSTOMER_ID AS "CustomerID", NAME AS "Name", SEGMENT AS "Segment"
		 FROM ` + h.table("CUSTOMERS") + `
		 ORDER BY CUSTOMER_ID
		 LIMIT ?`
	}
}

func (h *HanaSource) FetchRows(ctx context.Context, q Query) (*Table, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, h.query(q.Dataset), q.limit())
	if err != nil {
		h.logger.Error(ctx, "hana query failed", "dataset", q.Dataset, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	t, err := scanTable(rows)
	if err != nil {
		h.logger.Error(ctx, "hana scan failed", "dataset", q.Dataset, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return t, nil
}

func (h *HanaSource) Close() error { return h.db.Close() }

// scanTable reads every row of rows into a Table, keeping column order.
func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, values)
	}
	return t, rows.Err()
}
