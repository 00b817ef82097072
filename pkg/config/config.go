package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "JOINORDER_CONFIG"

// Config 应用程序配置
type Config struct {
	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Stats     StatsConfig     `json:"stats" yaml:"stats"`
	MCP       MCPConfig       `json:"mcp" yaml:"mcp"`
}

// OptimizerConfig 优化器配置
type OptimizerConfig struct {
	MaxRelations          int     `json:"max_relations" yaml:"max_relations"`
	MaxIterations         int     `json:"max_iterations" yaml:"max_iterations"`
	TryAllRoots           bool    `json:"try_all_roots" yaml:"try_all_roots"`
	FallbackToClauseOrder bool    `json:"fallback_to_clause_order" yaml:"fallback_to_clause_order"`
	DefaultSelectivity    float64 `json:"default_selectivity" yaml:"default_selectivity"`
	Parallelism           int     `json:"parallelism" yaml:"parallelism"` // 同时计算的候选根数量
}

// CacheConfig 计划缓存配置
type CacheConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Backend    string `json:"backend" yaml:"backend"` // memory or badger
	Dir        string `json:"dir" yaml:"dir"`
	InMemory   bool   `json:"in_memory" yaml:"in_memory"`
	MaxEntries int    `json:"max_entries" yaml:"max_entries"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string `json:"level" yaml:"level"`
	Backend string `json:"backend" yaml:"backend"` // text or zap
}

// StatsConfig 统计信息来源配置
type StatsConfig struct {
	Driver   string `json:"driver" yaml:"driver"` // mysql, postgres or sqlite
	DSN      string `json:"dsn" yaml:"dsn"`
	Workbook string `json:"workbook" yaml:"workbook"`
}

// MCPConfig MCP 服务配置
type MCPConfig struct {
	Transport string `json:"transport" yaml:"transport"` // stdio or http
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			MaxRelations:          1024,
			MaxIterations:         100000,
			TryAllRoots:           true,
			FallbackToClauseOrder: false,
			DefaultSelectivity:    0.1,
			Parallelism:           1,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level:   "info",
			Backend: "text",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Host:      "127.0.0.1",
			Port:      8090,
		},
	}
}

// LoadConfig 从文件加载配置，.yaml/.yml 按 YAML 解析，其余按 JSON 解析
func LoadConfig(configPath string) (*Config, error) {
	// 如果没有指定配置文件，使用默认配置
	if configPath == "" {
		return DefaultConfig(), nil
	}

	// 检查配置文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault 尝试从常见位置加载配置文件
func LoadConfigOrDefault() *Config {
	possiblePaths := []string{
		"joinorder.yaml",
		"joinorder.json",
		"./config/joinorder.yaml",
		"/etc/joinorder/joinorder.yaml",
	}

	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if config, err := LoadConfig(envPath); err == nil {
			return config
		}
	}

	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if config, err := LoadConfig(absPath); err == nil {
				return config
			}
		}
	}

	return DefaultConfig()
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if config.Optimizer.MaxRelations < 1 {
		return fmt.Errorf("最大关系数必须大于0")
	}

	if config.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("最大迭代次数必须大于0")
	}

	if s := config.Optimizer.DefaultSelectivity; s <= 0 || s > 1 {
		return fmt.Errorf("默认选择率必须在 (0, 1] 之间: %v", s)
	}

	if config.Optimizer.Parallelism < 0 {
		return fmt.Errorf("并行度不能为负数")
	}

	switch config.Cache.Backend {
	case "memory", "badger":
	default:
		return fmt.Errorf("不支持的缓存后端: %s", config.Cache.Backend)
	}

	if config.Cache.Backend == "badger" && !config.Cache.InMemory && config.Cache.Dir == "" {
		return fmt.Errorf("badger 缓存需要指定目录")
	}

	if config.Cache.MaxEntries < 0 {
		return fmt.Errorf("缓存条目数不能为负数")
	}

	switch config.Stats.Driver {
	case "", "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的统计信息驱动: %s", config.Stats.Driver)
	}

	if config.Stats.Driver != "" && config.Stats.DSN == "" {
		return fmt.Errorf("统计信息驱动 %s 需要指定 dsn", config.Stats.Driver)
	}

	switch config.MCP.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("不支持的 MCP 传输方式: %s", config.MCP.Transport)
	}

	if config.MCP.Port < 1 || config.MCP.Port > 65535 {
		return fmt.Errorf("无效的端口号: %d", config.MCP.Port)
	}

	return nil
}

// GetListenAddress 返回 MCP HTTP 监听地址
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.MCP.Host, c.MCP.Port)
}
