package statistics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect 不同数据库的 SQL 差异
type Dialect interface {
	// DriverName 返回 database/sql 的驱动名
	DriverName() string
	// NormalizeDSN 校验并规范化连接串
	NormalizeDSN(dsn string) (string, error)
	// QuoteIdentifier 为单个标识符加引号
	QuoteIdentifier(name string) string
}

// MySQLDialect MySQL 方言
type MySQLDialect struct{}

func (d *MySQLDialect) DriverName() string { return "mysql" }

func (d *MySQLDialect) NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	return cfg.FormatDSN(), nil
}

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// PostgresDialect PostgreSQL 方言
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) NormalizeDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid postgres dsn: %w", err)
		}
		return parsed, nil
	}
	return dsn, nil
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// SQLiteDialect SQLite 方言
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) NormalizeDSN(dsn string) (string, error) { return dsn, nil }

func (d *SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DialectFor 按驱动名返回方言
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return &MySQLDialect{}, nil
	case "postgres", "postgresql":
		return &PostgresDialect{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported statistics driver: %s", driver)
	}
}

// SQLProvider 通过 COUNT 查询从数据库读取统计信息
// 查询结果按表、列缓存在内存中
type SQLProvider struct {
	db      *sql.DB
	dialect Dialect
	owned   bool

	mu       sync.Mutex
	rows     map[string]uint64
	distinct map[string]uint64
}

// OpenSQLProvider 打开数据库连接
func OpenSQLProvider(driver, dsn string) (*SQLProvider, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	normalized, err := dialect.NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect.DriverName(), err)
	}
	p := NewSQLProvider(db, dialect)
	p.owned = true
	return p, nil
}

// NewSQLProvider 使用已有连接，Close 不会关闭该连接
func NewSQLProvider(db *sql.DB, dialect Dialect) *SQLProvider {
	return &SQLProvider{
		db:       db,
		dialect:  dialect,
		rows:     make(map[string]uint64),
		distinct: make(map[string]uint64),
	}
}

// quoteTable 为可能带 schema 前缀的表名加引号
func (p *SQLProvider) quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, part := range parts {
		parts[i] = p.dialect.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// RowCount 实现 Provider
func (p *SQLProvider) RowCount(ctx context.Context, table string) (uint64, error) {
	key := normalize(table)
	p.mu.Lock()
	if n, ok := p.rows[key]; ok {
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.quoteTable(table))
	n, err := p.count(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	p.mu.Lock()
	p.rows[key] = n
	p.mu.Unlock()
	return n, nil
}

// DistinctCount 实现 Provider
func (p *SQLProvider) DistinctCount(ctx context.Context, table, column string) (uint64, error) {
	key := normalize(table) + "." + normalize(column)
	p.mu.Lock()
	if n, ok := p.distinct[key]; ok {
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s",
		p.dialect.QuoteIdentifier(column), p.quoteTable(table))
	n, err := p.count(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct %s.%s: %w", table, column, err)
	}

	p.mu.Lock()
	p.distinct[key] = n
	p.mu.Unlock()
	return n, nil
}

func (p *SQLProvider) count(ctx context.Context, query string) (uint64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return uint64(n), nil
}

// Close 关闭自己打开的连接
func (p *SQLProvider) Close() error {
	if p.owned {
		return p.db.Close()
	}
	return nil
}
