package plancache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix 计划在 badger 中的键前缀
const keyPrefix = "plan:"

// BadgerOptions badger 缓存选项
type BadgerOptions struct {
	Dir      string
	InMemory bool
	Logger   Logger // 为空时关闭 badger 自身的日志
}

// BadgerCache 基于 badger 的持久化计划缓存，值以 JSON 存储
type BadgerCache struct {
	db *badger.DB
}

// OpenBadgerCache 打开 badger 缓存
func OpenBadgerCache(opts BadgerOptions) (*BadgerCache, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("badger cache requires a directory")
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}

	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// Get 获取缓存的计划
func (c *BadgerCache) Get(key string) (*Plan, bool, error) {
	var plan *Plan
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			plan = &Plan{}
			return json.Unmarshal(val, plan)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read plan %s: %w", key, err)
	}
	return plan, true, nil
}

// Set 写入计划
func (c *BadgerCache) Set(key string, plan *Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
}

// Len 返回条目数
func (c *BadgerCache) Len() int {
	count := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Clear 删除所有计划
func (c *BadgerCache) Clear() error {
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := c.db.NewWriteBatch()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return fmt.Errorf("failed to delete plan %s: %w", k, err)
		}
	}
	return wb.Flush()
}

// Close 关闭数据库
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger 把 badger 的日志转发到 Logger
// badger 的 Info 日志过于频繁，统一降为 Debug
type badgerLogger struct {
	logger Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error("[BADGER] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn("[BADGER] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug("[BADGER] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug("[BADGER] "+format, args...)
}
