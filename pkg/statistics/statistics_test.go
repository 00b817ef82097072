package statistics

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kasuganosora/joinorder/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider().
		SetRowCount("Orders", 1000).
		SetRowCount("customers", 50).
		SetDistinctCount("ORDERS", "Customer_ID", 40)

	rows, err := p.RowCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), rows)

	ndv, err := p.DistinctCount(ctx, " orders ", "customer_id")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), ndv)

	_, err = p.RowCount(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = p.DistinctCount(ctx, "orders", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Equal(t, []string{"customers", "orders"}, p.Tables())
	assert.Equal(t, []ColumnStat{{Table: "orders", Column: "customer_id", Distinct: 40}}, p.Columns())
}

func TestEstimateSelectivity(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider().
		SetDistinctCount("orders", "customer_id", 40).
		SetDistinctCount("customers", "id", 50)

	tests := []struct {
		name     string
		provider Provider
		lt, lc   string
		rt, rc   string
		want     float64
	}{
		{"both sides", p, "orders", "customer_id", "customers", "id", 1.0 / 50},
		{"one side", p, "orders", "customer_id", "items", "order_id", 1.0 / 40},
		{"no stats", p, "a", "x", "b", "y", 0.1},
		{"nil provider", nil, "orders", "customer_id", "customers", "id", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateSelectivity(ctx, tt.provider, tt.lt, tt.lc, tt.rt, tt.rc, 0.1)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

type failingProvider struct{}

func (failingProvider) RowCount(ctx context.Context, table string) (uint64, error) {
	return 0, errors.New("boom")
}

func (failingProvider) DistinctCount(ctx context.Context, table, column string) (uint64, error) {
	return 0, errors.New("boom")
}

func TestEstimateSelectivityError(t *testing.T) {
	_, err := EstimateSelectivity(context.Background(), failingProvider{}, "a", "x", "b", "y", 0.1)
	assert.EqualError(t, err, "boom")
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// 内存数据库每个连接独立
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER)`)
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		_, err = db.Exec(`INSERT INTO orders (id, customer_id) VALUES (?, ?)`, i, i%3)
		require.NoError(t, err)
	}
	return db
}

func TestSQLProviderSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	p := NewSQLProvider(db, &SQLiteDialect{})

	rows, err := p.RowCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), rows)

	ndv, err := p.DistinctCount(ctx, "orders", "customer_id")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ndv)

	// 第二次读取走缓存
	_, err = db.Exec(`INSERT INTO orders (id, customer_id) VALUES (11, 7)`)
	require.NoError(t, err)
	rows, err = p.RowCount(ctx, "ORDERS")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), rows)

	_, err = p.RowCount(ctx, "missing")
	assert.Error(t, err)

	// 外部传入的连接不会被关闭
	require.NoError(t, p.Close())
	assert.NoError(t, db.Ping())
}

func TestOpenSQLProvider(t *testing.T) {
	p, err := OpenSQLProvider("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = OpenSQLProvider("oracle", "x")
	assert.Error(t, err)

	_, err = OpenSQLProvider("mysql", "not a dsn")
	assert.Error(t, err)
}

func TestDialects(t *testing.T) {
	mysql, err := DialectFor("MySQL")
	require.NoError(t, err)
	assert.Equal(t, "mysql", mysql.DriverName())
	assert.Equal(t, "`a``b`", mysql.QuoteIdentifier("a`b"))
	dsn, err := mysql.NormalizeDSN("user:pass@tcp(localhost:3306)/shop")
	require.NoError(t, err)
	assert.Contains(t, dsn, "tcp(localhost:3306)/shop")

	pg, err := DialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.DriverName())
	assert.Equal(t, `"a""b"`, pg.QuoteIdentifier(`a"b`))
	dsn, err = pg.NormalizeDSN("postgres://u:p@localhost:5432/shop?sslmode=disable")
	require.NoError(t, err)
	assert.Contains(t, dsn, "dbname='shop'")
	assert.Contains(t, dsn, "sslmode='disable'")
	dsn, err = pg.NormalizeDSN("host=localhost dbname=shop")
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=shop", dsn)

	lite, err := DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", lite.DriverName())
	assert.Equal(t, `"orders"`, lite.QuoteIdentifier("orders"))

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestQuoteTable(t *testing.T) {
	p := NewSQLProvider(nil, &MySQLDialect{})
	assert.Equal(t, "`shop`.`orders`", p.quoteTable("shop.orders"))
}

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.xlsx")
	src := NewStaticProvider().
		SetRowCount("orders", 1000).
		SetRowCount("customers", 50).
		SetDistinctCount("orders", "customer_id", 40)
	require.NoError(t, SaveWorkbook(path, src))

	p, err := LoadWorkbook(path)
	require.NoError(t, err)
	assert.Equal(t, src.Tables(), p.Tables())
	assert.Equal(t, src.Columns(), p.Columns())

	rows, err := p.RowCount(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), rows)
}

func TestLoadWorkbookMissing(t *testing.T) {
	_, err := LoadWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New(config.StatsConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New(config.StatsConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.IsType(t, &SQLProvider{}, p)
	require.NoError(t, p.(*SQLProvider).Close())

	path := filepath.Join(t.TempDir(), "stats.xlsx")
	require.NoError(t, SaveWorkbook(path, NewStaticProvider().SetRowCount("t", 1)))
	p, err = New(config.StatsConfig{Workbook: path})
	require.NoError(t, err)
	assert.IsType(t, &StaticProvider{}, p)

	_, err = New(config.StatsConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}
