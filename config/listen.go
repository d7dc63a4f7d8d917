package config

import (
	"errors"
	"net"
)

// ListenConfig 监听配置
type ListenConfig struct {
	// Addr 监听地址，例如 ":9000"、"127.0.0.1:0"
	Addr string `json:"addr"`

	// AcceptRate 每秒最多接入的连接数，0 表示不限速
	AcceptRate float64 `json:"accept_rate,omitempty"`

	// AcceptBurst 接入限速的突发容量
	AcceptBurst int `json:"accept_burst,omitempty"`

	// MaxLineLength 单个请求行的最大字节数
	MaxLineLength int `json:"max_line_length,omitempty"`
}

// DefaultListenConfig 返回默认监听配置
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		Addr:          ":9000",
		AcceptRate:    0,
		AcceptBurst:   128,
		MaxLineLength: 64 * 1024,
	}
}

// Validate 验证监听配置
func (c ListenConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("listen addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.New("listen addr must be host:port")
	}
	if c.AcceptRate < 0 {
		return errors.New("accept rate must be non-negative")
	}
	if c.AcceptRate > 0 && c.AcceptBurst <= 0 {
		return errors.New("accept burst must be positive when accept rate is set")
	}
	if c.MaxLineLength < 0 {
		return errors.New("max line length must be non-negative")
	}
	return nil
}

// WithAddr 设置监听地址
func (c ListenConfig) WithAddr(addr string) ListenConfig {
	c.Addr = addr
	return c
}

// WithAcceptRate 设置接入限速
func (c ListenConfig) WithAcceptRate(perSecond float64, burst int) ListenConfig {
	c.AcceptRate = perSecond
	c.AcceptBurst = burst
	return c
}
