package api

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

// String 返回日志级别字符串
func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "ERROR"
	case LogWarn:
		return "WARN"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别字符串，大小写不敏感
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogError, nil
	case "warn", "warning":
		return LogWarn, nil
	case "", "info":
		return LogInfo, nil
	case "debug":
		return LogDebug, nil
	default:
		return LogInfo, NewError(ErrCodeInvalidQuery, fmt.Sprintf("unknown log level %q", s), nil)
	}
}

// Logger 日志接口
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// DefaultLogger 按行输出 "[LEVEL] message" 的文本日志
type DefaultLogger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
}

// NewDefaultLogger 创建输出到 stdout 的文本日志
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewDefaultLoggerWithOutput(level, os.Stdout)
}

func NewDefaultLoggerWithOutput(level LogLevel, output io.Writer) *DefaultLogger {
	return &DefaultLogger{level: level, output: output}
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *DefaultLogger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *DefaultLogger) Debug(format string, args ...interface{}) { l.logf(LogDebug, format, args) }
func (l *DefaultLogger) Info(format string, args ...interface{})  { l.logf(LogInfo, format, args) }
func (l *DefaultLogger) Warn(format string, args ...interface{})  { l.logf(LogWarn, format, args) }
func (l *DefaultLogger) Error(format string, args ...interface{}) { l.logf(LogError, format, args) }

func (l *DefaultLogger) logf(level LogLevel, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	fmt.Fprintf(l.output, "[%s] %s\n", level, fmt.Sprintf(format, args...))
}

// ZapLogger 基于 zap 的日志实现
type ZapLogger struct {
	level  zap.AtomicLevel
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewZapLogger 创建输出 JSON 的 zap 日志
func NewZapLogger(level LogLevel, output io.Writer) *ZapLogger {
	atom := zap.NewAtomicLevelAt(zapLevel(level))
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(output),
		atom,
	)
	return newZapLogger(zap.New(core), atom)
}

// NewZapLoggerFrom 包装已有的 zap.Logger，级别由其 core 决定
func NewZapLoggerFrom(logger *zap.Logger) *ZapLogger {
	return newZapLogger(logger, zap.NewAtomicLevelAt(zapcore.DebugLevel))
}

func newZapLogger(logger *zap.Logger, atom zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{
		level:  atom,
		logger: logger,
		sugar:  logger.Sugar(),
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogError:
		return zapcore.ErrorLevel
	case LogWarn:
		return zapcore.WarnLevel
	case LogDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// SetLevel 设置日志级别
func (l *ZapLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(zapLevel(level))
}

// GetLevel 获取日志级别
func (l *ZapLogger) GetLevel() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return LogDebug
	case zapcore.InfoLevel:
		return LogInfo
	case zapcore.WarnLevel:
		return LogWarn
	default:
		return LogError
	}
}

// Sync 刷新缓冲的日志
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// NewLogger 按后端名称创建日志，支持 text 和 zap
func NewLogger(backend, level string, output io.Writer) (Logger, error) {
	lv, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	if output == nil {
		output = os.Stderr
	}

	switch strings.ToLower(backend) {
	case "", "text":
		return NewDefaultLoggerWithOutput(lv, output), nil
	case "zap", "json":
		return NewZapLogger(lv, output), nil
	case "none":
		return NewNoOpLogger(), nil
	default:
		return nil, NewError(ErrCodeNotSupported, fmt.Sprintf("unknown log backend %q", backend), nil)
	}
}

// NoOpLogger 空日志实现（用于禁用日志）
type NoOpLogger struct{}

// NewNoOpLogger 创建空日志
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(format string, args ...interface{}) {}
func (l *NoOpLogger) Info(format string, args ...interface{}) {}
func (l *NoOpLogger) Warn(format string, args ...interface{}) {}
func (l *NoOpLogger) Error(format string, args ...interface{}) {}
func (l *NoOpLogger) SetLevel(level LogLevel)                {}
func (l *NoOpLogger) GetLevel() LogLevel                       { return LogInfo }
