package statistics

import (
	"context"
	"sort"
	"sync"
)

// StaticProvider 内存中的固定统计信息，表名和列名大小写不敏感
type StaticProvider struct {
	mu       sync.RWMutex
	rows     map[string]uint64
	distinct map[string]map[string]uint64
}

// NewStaticProvider 创建固定统计信息
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		rows:     make(map[string]uint64),
		distinct: make(map[string]map[string]uint64),
	}
}

// SetRowCount 设置表的行数
func (p *StaticProvider) SetRowCount(table string, rows uint64) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[normalize(table)] = rows
	return p
}

// SetDistinctCount 设置列的不同值个数
func (p *StaticProvider) SetDistinctCount(table, column string, ndv uint64) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := normalize(table)
	if p.distinct[t] == nil {
		p.distinct[t] = make(map[string]uint64)
	}
	p.distinct[t][normalize(column)] = ndv
	return p
}

// RowCount 实现 Provider
func (p *StaticProvider) RowCount(ctx context.Context, table string) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rows, ok := p.rows[normalize(table)]
	if !ok {
		return 0, notFound(table, "")
	}
	return rows, nil
}

// DistinctCount 实现 Provider
func (p *StaticProvider) DistinctCount(ctx context.Context, table, column string) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ndv, ok := p.distinct[normalize(table)][normalize(column)]
	if !ok {
		return 0, notFound(table, column)
	}
	return ndv, nil
}

// Tables 返回已登记行数的表，按名称排序
func (p *StaticProvider) Tables() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tables := make([]string, 0, len(p.rows))
	for t := range p.rows {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// ColumnStat 单列的不同值统计
type ColumnStat struct {
	Table    string
	Column   string
	Distinct uint64
}

// Columns 返回所有列统计，按表名、列名排序
func (p *StaticProvider) Columns() []ColumnStat {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var cols []ColumnStat
	for t, m := range p.distinct {
		for c, n := range m {
			cols = append(cols, ColumnStat{Table: t, Column: c, Distinct: n})
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Table != cols[j].Table {
			return cols[i].Table < cols[j].Table
		}
		return cols[i].Column < cols[j].Column
	})
	return cols
}
