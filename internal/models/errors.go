package models

import (
	"errors"
	"fmt"
)

// ValidationError 输入验证错误
// 表示面向用户的校验失败,调用方应直接展示Reason
type ValidationError struct {
	// Field 出错的字段 (如 "url", "quality", "header")
	Field string

	// Value 出错的值 (可为空)
	Value string

	// Reason 错误原因
	Reason string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("验证失败 [%s]: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg = fmt.Sprintf("验证失败 [%s=%s]: %s", e.Field, e.Value, e.Reason)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// IsValidationError 判断错误链中是否包含ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigError 配置文件错误
// 表示配置文件解析失败
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误 (如viper.ConfigParseError)
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
