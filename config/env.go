package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 环境变量名（均带 EnvPrefix 前缀）
const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "ACCEPTOR_"

	// EnvListenAddr 监听地址
	EnvListenAddr = "LISTEN_ADDR"

	// EnvIdleTimeout 默认空闲超时，例如 "30s"
	EnvIdleTimeout = "IDLE_TIMEOUT"

	// EnvMaxConnections 连接数上限
	EnvMaxConnections = "MAX_CONNECTIONS"

	// EnvIdleGrace 关闭宽限期
	EnvIdleGrace = "IDLE_GRACE"

	// EnvMetricsAddr 指标 HTTP 服务地址
	EnvMetricsAddr = "METRICS_ADDR"

	// EnvLogLevel 日志级别
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogJSON 使用 JSON 日志
	EnvLogJSON = "LOG_JSON"
)

// ApplyEnv 应用环境变量覆盖
//
// 环境变量优先级高于配置文件，但低于命令行参数。
func ApplyEnv(cfg *Config) error {
	return ApplyEnvFunc(cfg, os.LookupEnv)
}

// ApplyEnvFunc 使用自定义查找函数应用环境变量覆盖
func ApplyEnvFunc(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get(EnvListenAddr); ok {
		cfg.Listen.Addr = v
	}
	if v, ok := get(EnvIdleTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, EnvIdleTimeout, err)
		}
		cfg.ConnMgr = cfg.ConnMgr.WithIdleTimeout(d)
	}
	if v, ok := get(EnvMaxConnections); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, EnvMaxConnections, err)
		}
		cfg.ConnMgr.MaxConnections = n
		// 原有水位不再低于新上限时改用默认水位
		if cfg.ConnMgr.LowWater >= n {
			cfg.ConnMgr.LowWater = 0
		}
	}
	if v, ok := get(EnvIdleGrace); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, EnvIdleGrace, err)
		}
		cfg.Shutdown.IdleGrace = Duration(d)
	}
	if v, ok := get(EnvMetricsAddr); ok {
		cfg.Metrics.Enable = true
		cfg.Metrics.Addr = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := get(EnvLogJSON); ok {
		cfg.Log.JSON = parseBool(v)
	}
	return nil
}

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
