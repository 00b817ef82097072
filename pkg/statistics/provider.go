package statistics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kasuganosora/joinorder/pkg/config"
)

// ErrNotFound 统计信息中没有对应的表或列
var ErrNotFound = errors.New("statistics not found")

// Provider 统计信息来源
type Provider interface {
	// RowCount 返回表的行数
	RowCount(ctx context.Context, table string) (uint64, error)
	// DistinctCount 返回列的不同值个数
	DistinctCount(ctx context.Context, table, column string) (uint64, error)
}

// New 按配置创建统计信息来源，未配置时返回 nil
func New(cfg config.StatsConfig) (Provider, error) {
	switch {
	case cfg.Driver != "":
		p, err := OpenSQLProvider(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return p, nil
	case cfg.Workbook != "":
		p, err := LoadWorkbook(cfg.Workbook)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

// EstimateSelectivity 按 1/max(ndv(l), ndv(r)) 估算等值连接的选择率
// 两侧都没有统计信息时返回 fallback
func EstimateSelectivity(ctx context.Context, p Provider, leftTable, leftColumn, rightTable, rightColumn string, fallback float64) (float64, error) {
	if p == nil {
		return fallback, nil
	}

	var ndv uint64
	for _, side := range [2][2]string{{leftTable, leftColumn}, {rightTable, rightColumn}} {
		n, err := p.DistinctCount(ctx, side[0], side[1])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n > ndv {
			ndv = n
		}
	}

	if ndv == 0 {
		return fallback, nil
	}
	return 1 / float64(ndv), nil
}

func notFound(table, column string) error {
	if column == "" {
		return fmt.Errorf("%w: table %s", ErrNotFound, table)
	}
	return fmt.Errorf("%w: column %s.%s", ErrNotFound, table, column)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
