package join

import (
	"errors"
	"fmt"
)

// ErrorCode 连接排序错误码
type ErrorCode string

const (
	ErrCodeDuplicateRelation ErrorCode = "DUPLICATE_RELATION"
	ErrCodeNoSubtreeFound    ErrorCode = "NO_SUBTREE_FOUND"
	ErrCodeGraphTooLarge     ErrorCode = "GRAPH_TOO_LARGE"
	ErrCodeCyclicGraph       ErrorCode = "CYCLIC_GRAPH"
	ErrCodeDisconnected      ErrorCode = "DISCONNECTED_GRAPH"
	ErrCodeIterationLimit    ErrorCode = "ITERATION_LIMIT"
	ErrCodeUnknownRelation   ErrorCode = "UNKNOWN_RELATION"
)

// Error 连接排序错误
// 所有错误对一次优化都是不可恢复的，由调用方决定是否换根重试
type Error struct {
	Code     ErrorCode
	Message  string
	Relation string // 相关关系标签，可为空
	Cause    error
}

// Error 接口实现
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Relation != "" {
		msg += fmt.Sprintf(" (relation %s)", e.Relation)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, relation string, format string, args ...interface{}) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Relation: relation,
	}
}

// IsErrorCode 检查错误链中是否包含指定错误码
func IsErrorCode(err error, code ErrorCode) bool {
	var joinErr *Error
	if errors.As(err, &joinErr) {
		return joinErr.Code == code
	}
	return false
}

// GetErrorCode 获取错误码
func GetErrorCode(err error) ErrorCode {
	var joinErr *Error
	if errors.As(err, &joinErr) {
		return joinErr.Code
	}
	return ""
}
