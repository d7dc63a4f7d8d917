package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dep2p/go-acceptor/config"
)

// ============================================================================
//                              命令行参数
// ============================================================================
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置 / 长期运行
//
// 优先级：命令行参数 > 环境变量（ACCEPTOR_*）> 配置文件 > 预设
// ============================================================================

// cliFlags 命令行参数
type cliFlags struct {
	configFile  string
	preset      string
	listen      string
	idleTimeout config.Duration
	grace       config.Duration
	maxConns    int
	metricsAddr string
	logLevel    string
	logFile     string
	fxDebug     bool
	showVersion bool

	// set 记录显式设置过的参数
	set map[string]bool
}

// parseFlags 解析命令行参数
func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}

	fs := flag.NewFlagSet("acceptor", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.configFile, "config", "", "配置文件路径（JSON）")
	fs.StringVar(&f.preset, "preset", config.PresetDefault, "预设配置 (default/production/test)")
	fs.StringVar(&f.listen, "listen", "", "监听地址，例如 :9000")
	fs.TextVar(&f.idleTimeout, "idle-timeout", config.Duration(0), "空闲超时，例如 60s")
	fs.TextVar(&f.grace, "grace", config.Duration(0), "优雅关闭宽限期，例如 5s")
	fs.IntVar(&f.maxConns, "max-conns", 0, "连接数上限（0 = 不限制）")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "指标 HTTP 服务地址，例如 127.0.0.1:9100")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	fs.StringVar(&f.logFile, "log", "", "日志文件路径（默认输出到标准错误）")
	fs.BoolVar(&f.fxDebug, "fx-debug", false, "输出依赖注入日志")
	fs.BoolVar(&f.showVersion, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// buildConfig 按优先级合并配置
func buildConfig(f *cliFlags, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if f.configFile != "" {
		cfg, err = config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
	} else {
		cfg, err = config.NewConfigByPreset(f.preset)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnvFunc(cfg, lookupEnv); err != nil {
		return nil, fmt.Errorf("环境变量错误: %w", err)
	}

	applyFlagOverrides(cfg, f)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides 应用显式设置的命令行参数
func applyFlagOverrides(cfg *config.Config, f *cliFlags) {
	if f.set["listen"] {
		cfg.Listen = cfg.Listen.WithAddr(f.listen)
	}
	if f.set["idle-timeout"] {
		cfg.ConnMgr = cfg.ConnMgr.WithIdleTimeout(f.idleTimeout.Duration())
	}
	if f.set["grace"] {
		cfg.Shutdown = cfg.Shutdown.WithIdleGrace(f.grace.Duration())
	}
	if f.set["max-conns"] {
		cfg.ConnMgr = cfg.ConnMgr.WithMaxConnections(f.maxConns, 0)
	}
	if f.set["metrics-addr"] {
		cfg.Metrics.Enable = true
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
}
