package config

import (
	"github.com/dep2p/go-acceptor/pkg/lib/log"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug/info/warn/error
	Level string `json:"level"`

	// JSON 使用 JSON 格式输出
	JSON bool `json:"json,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info"}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	_, err := log.ParseLevel(c.Level)
	return err
}
