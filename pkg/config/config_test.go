package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name string, data []byte) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(configPath, data, 0644))
	return configPath
}

func writeJSONConfig(t *testing.T, configData map[string]interface{}) string {
	t.Helper()
	jsonData, err := json.Marshal(configData)
	require.NoError(t, err)
	return writeConfig(t, "config.json", jsonData)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// 验证优化器配置
	assert.Equal(t, 1024, config.Optimizer.MaxRelations)
	assert.Equal(t, 100000, config.Optimizer.MaxIterations)
	assert.True(t, config.Optimizer.TryAllRoots)
	assert.False(t, config.Optimizer.FallbackToClauseOrder)
	assert.Equal(t, 0.1, config.Optimizer.DefaultSelectivity)
	assert.Equal(t, 1, config.Optimizer.Parallelism)

	// 验证缓存配置
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, "memory", config.Cache.Backend)
	assert.Equal(t, 1000, config.Cache.MaxEntries)

	// 验证日志配置
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Backend)

	// 验证 MCP 配置
	assert.Equal(t, "stdio", config.MCP.Transport)
	assert.Equal(t, "127.0.0.1:8090", config.GetListenAddress())

	assert.NoError(t, validateConfig(config))
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	config, err := LoadConfig("")

	assert.NoError(t, err)
	assert.NotNil(t, config)
	assert.Equal(t, 1024, config.Optimizer.MaxRelations)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	config, err := LoadConfig("non_existent_config.json")

	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "配置文件不存在")
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	configPath := writeConfig(t, "invalid.json", []byte("{invalid json"))

	config, err := LoadConfig(configPath)

	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", []byte("optimizer: [unterminated"))

	config, err := LoadConfig(configPath)

	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		configData map[string]interface{}
		errMsg     string
	}{
		{
			name:       "invalid max relations",
			configData: map[string]interface{}{"optimizer": map[string]interface{}{"max_relations": 0}},
			errMsg:     "最大关系数必须大于0",
		},
		{
			name:       "invalid max iterations",
			configData: map[string]interface{}{"optimizer": map[string]interface{}{"max_iterations": -1}},
			errMsg:     "最大迭代次数必须大于0",
		},
		{
			name:       "invalid default selectivity",
			configData: map[string]interface{}{"optimizer": map[string]interface{}{"default_selectivity": 1.5}},
			errMsg:     "默认选择率必须在",
		},
		{
			name:       "negative parallelism",
			configData: map[string]interface{}{"optimizer": map[string]interface{}{"parallelism": -2}},
			errMsg:     "并行度不能为负数",
		},
		{
			name:       "unknown cache backend",
			configData: map[string]interface{}{"cache": map[string]interface{}{"backend": "redis"}},
			errMsg:     "不支持的缓存后端",
		},
		{
			name:       "badger without dir",
			configData: map[string]interface{}{"cache": map[string]interface{}{"backend": "badger"}},
			errMsg:     "badger 缓存需要指定目录",
		},
		{
			name:       "unknown stats driver",
			configData: map[string]interface{}{"stats": map[string]interface{}{"driver": "oracle", "dsn": "x"}},
			errMsg:     "不支持的统计信息驱动",
		},
		{
			name:       "stats driver without dsn",
			configData: map[string]interface{}{"stats": map[string]interface{}{"driver": "sqlite"}},
			errMsg:     "需要指定 dsn",
		},
		{
			name:       "unknown transport",
			configData: map[string]interface{}{"mcp": map[string]interface{}{"transport": "grpc"}},
			errMsg:     "不支持的 MCP 传输方式",
		},
		{
			name:       "invalid port",
			configData: map[string]interface{}{"mcp": map[string]interface{}{"port": 70000}},
			errMsg:     "无效的端口号",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(writeJSONConfig(t, tt.configData))

			assert.Error(t, err)
			assert.Nil(t, config)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_ValidConfig(t *testing.T) {
	configPath := writeJSONConfig(t, map[string]interface{}{
		"optimizer": map[string]interface{}{
			"try_all_roots":            false,
			"fallback_to_clause_order": true,
		},
		"cache": map[string]interface{}{
			"backend":   "badger",
			"in_memory": true,
		},
	})

	config, err := LoadConfig(configPath)

	require.NoError(t, err)
	assert.False(t, config.Optimizer.TryAllRoots)
	assert.True(t, config.Optimizer.FallbackToClauseOrder)
	assert.Equal(t, "badger", config.Cache.Backend)
	assert.True(t, config.Cache.InMemory)
	// 其他字段应该使用默认值
	assert.Equal(t, 1024, config.Optimizer.MaxRelations)
	assert.Equal(t, "info", config.Log.Level)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	configPath := writeConfig(t, "joinorder.yaml", []byte(`
optimizer:
  max_iterations: 500
log:
  level: debug
  backend: zap
stats:
  driver: sqlite
  dsn: ":memory:"
mcp:
  transport: http
  port: 9000
`))

	config, err := LoadConfig(configPath)

	require.NoError(t, err)
	assert.Equal(t, 500, config.Optimizer.MaxIterations)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "zap", config.Log.Backend)
	assert.Equal(t, "sqlite", config.Stats.Driver)
	assert.Equal(t, "http", config.MCP.Transport)
	assert.Equal(t, "127.0.0.1:9000", config.GetListenAddress())
	assert.True(t, config.Optimizer.TryAllRoots)
}

func TestLoadConfigOrDefault_Env(t *testing.T) {
	configPath := writeJSONConfig(t, map[string]interface{}{
		"optimizer": map[string]interface{}{"max_relations": 16},
	})
	t.Setenv(EnvConfigPath, configPath)

	config := LoadConfigOrDefault()
	assert.Equal(t, 16, config.Optimizer.MaxRelations)
}

func TestLoadConfigOrDefault_Fallback(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.json"))
	t.Chdir(t.TempDir())

	config := LoadConfigOrDefault()
	assert.Equal(t, DefaultConfig(), config)
}
