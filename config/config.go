// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载配置，并可用 ACCEPTOR_ 前缀的环境变量覆盖
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Listen.Addr = "127.0.0.1:9000"
//	cfg.ConnMgr.IdleTimeout = config.Duration(30 * time.Second)
//
//	// 从文件加载
//	cfg, err := config.Load("acceptor.json")
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config 是 go-acceptor 的完整配置结构
//
// 配置按照功能模块组织：
//   - Listen: 监听与接入限速
//   - ConnMgr: 连接管理（空闲超时、负载回收）
//   - Shutdown: 优雅关闭
//   - Metrics: Prometheus 指标
//   - Log: 日志
type Config struct {
	// Listen 监听配置
	Listen ListenConfig `json:"listen"`

	// ConnMgr 连接管理配置
	ConnMgr ConnManagerConfig `json:"conn_mgr"`

	// Shutdown 优雅关闭配置
	Shutdown ShutdownConfig `json:"shutdown"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Listen:   DefaultListenConfig(),
		ConnMgr:  DefaultConnManagerConfig(),
		Shutdown: DefaultShutdownConfig(),
		Metrics:  DefaultMetricsConfig(),
		Log:      DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 依次检查所有子配置，返回第一个错误。
func (c *Config) Validate() error {
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := c.ConnMgr.Validate(); err != nil {
		return fmt.Errorf("conn_mgr: %w", err)
	}
	if err := c.Shutdown.Validate(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "listen": {"addr": ":9000"},
//	  "conn_mgr": {"idle_timeout": "30s", "max_connections": 10000},
//	  "shutdown": {"idle_grace": "5s"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load 从 JSON 文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 输出带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// CloneConfig 克隆配置
//
// 所有子配置都是值类型，浅拷贝即为深拷贝。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}
