// Package main 提供 acceptor 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	acceptor "github.com/dep2p/go-acceptor"
	"github.com/dep2p/go-acceptor/config"
	"github.com/dep2p/go-acceptor/pkg/lib/log"
)

var logger = log.Logger("acceptor/cmd")

// stopMargin Stop 在 DrainTimeout 之外留给其它组件的时间
const stopMargin = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if f.showVersion {
		fmt.Fprintln(stdout, acceptor.VersionInfo())
		return nil
	}

	cfg, err := buildConfig(f, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	closeLog, err := setupLogging(cfg.Log, f.logFile, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("启动 acceptor", "version", acceptor.Version, "commit", acceptor.GitCommit, "buildDate", acceptor.BuildDate)

	srv, err := acceptor.Start(context.Background(),
		acceptor.WithConfig(cfg),
		acceptor.WithFxDebug(f.fxDebug),
	)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Fprintf(stdout, "📦 %s\n", acceptor.VersionInfo())
	fmt.Fprintf(stdout, "监听地址: %s\n", srv.Addr())
	if addr := srv.MetricsAddr(); addr != "" {
		fmt.Fprintf(stdout, "指标地址: http://%s%s\n", addr, cfg.Metrics.Path)
	}
	fmt.Fprintln(stdout, "服务已启动，按 Ctrl+C 优雅退出（再次按下强制退出）")

	return waitAndStop(srv, cfg.Shutdown.DrainTimeout.Duration(), stdout)
}

// waitAndStop 等待信号后优雅停止，第二次信号强制关闭剩余连接
func waitAndStop(srv *acceptor.Server, drainTimeout time.Duration, stdout io.Writer) error {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	sig := <-signals
	fmt.Fprintln(stdout, "\n正在关闭服务...")
	logger.Info("收到信号，开始优雅关闭", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout+stopMargin)
	defer cancel()

	go func() {
		select {
		case sig := <-signals:
			logger.Warn("再次收到信号，强制关闭", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("关闭失败: %w", err)
	}
	fmt.Fprintln(stdout, "服务已关闭")
	return nil
}

// setupLogging 按配置设置日志输出，返回关闭日志文件的函数
func setupLogging(cfg config.LogConfig, logFile string, stderr io.Writer) (func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if logFile == "" {
		log.SetOutputWithLevel(stderr, level, cfg.JSON)
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // 用户指定的日志路径
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.SetOutputWithLevel(file, level, cfg.JSON)
	return func() { _ = file.Close() }, nil
}
