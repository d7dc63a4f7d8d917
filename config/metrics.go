package config

import (
	"errors"
	"strings"
)

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enable 启用连接指标
	Enable bool `json:"enable"`

	// Addr 指标 HTTP 服务监听地址，空字符串表示不启动 HTTP 服务
	Addr string `json:"addr,omitempty"`

	// Path 指标路径
	Path string `json:"path,omitempty"`

	// Namespace 指标名前缀
	Namespace string `json:"namespace,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable:    true,
		Addr:      "",
		Path:      "/metrics",
		Namespace: "acceptor",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Addr != "" && !c.Enable {
		return errors.New("metrics addr set but metrics disabled")
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return errors.New("metrics path must start with /")
	}
	return nil
}
