package plancache

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/kasuganosora/joinorder/pkg/config"
)

// RootCost 以某个关系为根时的代价
type RootCost struct {
	Root string  `json:"root"`
	Cost float64 `json:"cost"`
}

// Plan 缓存的连接顺序
type Plan struct {
	Root       string     `json:"root"`
	Order      []string   `json:"order"`
	Cost       float64    `json:"cost"`
	OutputCost float64    `json:"output_cost"`
	Candidates []RootCost `json:"candidates,omitempty"`
}

// Clone 深拷贝，避免调用方修改缓存内容
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Order = append([]string(nil), p.Order...)
	if p.Candidates != nil {
		c.Candidates = append([]RootCost(nil), p.Candidates...)
	}
	return &c
}

// Cache 计划缓存
type Cache interface {
	Get(key string) (*Plan, bool, error)
	Set(key string, plan *Plan) error
	Len() int
	Clear() error
	Close() error
}

// Logger 缓存使用的日志接口，api.Logger 满足该接口
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// New 按配置创建缓存，未启用时返回 nil
func New(cfg config.CacheConfig, logger Logger) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.MaxEntries), nil
	case "badger":
		cache, err := OpenBadgerCache(BadgerOptions{
			Dir:      cfg.Dir,
			InMemory: cfg.InMemory,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return cache, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Fingerprint 计算各部分拼接后的 xxhash，部分之间以长度前缀分隔
func Fingerprint(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(strconv.Itoa(len(p)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(p)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
