package plancache

import "sync"

// DefaultMaxEntries 默认最多缓存的计划数
const DefaultMaxEntries = 1000

// MemoryCache 进程内计划缓存，超过上限时淘汰最早写入的条目
type MemoryCache struct {
	mu         sync.RWMutex
	plans      map[string]*Plan
	order      []string
	maxEntries int
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		plans:      make(map[string]*Plan),
		maxEntries: maxEntries,
	}
}

// Get 获取缓存的计划
func (c *MemoryCache) Get(key string) (*Plan, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, ok := c.plans[key]
	if !ok {
		return nil, false, nil
	}
	return plan.Clone(), true, nil
}

// Set 写入计划
func (c *MemoryCache) Set(key string, plan *Plan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.plans[key]; !ok {
		c.order = append(c.order, key)
	}
	c.plans[key] = plan.Clone()

	for len(c.order) > c.maxEntries {
		delete(c.plans, c.order[0])
		c.order = c.order[1:]
	}
	return nil
}

// Len 返回条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans)
}

// Clear 清空缓存
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.plans = make(map[string]*Plan)
	c.order = nil
	return nil
}

// Close 内存缓存无需释放资源
func (c *MemoryCache) Close() error {
	return nil
}
