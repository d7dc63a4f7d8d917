package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-acceptor/config"
	"github.com/dep2p/go-acceptor/internal/core/listener"
	"github.com/dep2p/go-acceptor/internal/core/metrics"
	"github.com/dep2p/go-acceptor/pkg/lib/log"
)

var logger = log.Logger("acceptor")

// startTimeout 启动 Fx 应用的上限
const startTimeout = 30 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              服务状态
// ════════════════════════════════════════════════════════════════════════════

// ServerState 服务状态
type ServerState int

const (
	// StateIdle 已创建，未启动
	StateIdle ServerState = iota

	// StateStarting 启动中
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中（优雅关闭连接）
	StateStopping

	// StateStopped 已停止，不可重新启动
	StateStopped
)

// String 返回状态的字符串表示
func (s ServerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats 连接统计
type Stats = listener.Stats

// ════════════════════════════════════════════════════════════════════════════
//                              Server
// ════════════════════════════════════════════════════════════════════════════

// Server 行协议接入服务
//
// Server 是门面，由 Fx 组装事件循环、连接管理器、指标和监听器。
//
// 使用示例：
//
//	srv, err := acceptor.Start(ctx,
//	    acceptor.WithListenAddr(":9000"),
//	    acceptor.WithIdleTimeout(30*time.Second),
//	    acceptor.WithHandler(myHandler),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
type Server struct {
	// mu 串行化 Start/Stop；state 可在任意时刻无锁读取
	mu     sync.Mutex
	config *serverConfig
	app    *fx.App
	state  atomic.Int32

	// Fx 注入的组件
	acceptor      *listener.Acceptor
	metricsServer *metrics.Server
}

// New 创建服务（不启动）
func New(opts ...Option) (*Server, error) {
	cfg := newServerConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	s := &Server{config: cfg}

	var err error
	s.app, err = buildFxApp(cfg, s)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return s, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Server, error) {
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}
	return s, nil
}

// Start 启动服务：事件循环、指标服务、监听器依次启动
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateStopped:
		return ErrServerClosed
	case StateIdle:
	default:
		return ErrAlreadyStarted
	}

	s.setState(StateStarting)
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := s.app.Start(startCtx); err != nil {
		// 部分启动的组件已由 Fx 回滚
		s.setState(StateStopped)
		logger.Error("启动服务失败", "error", err)
		return fmt.Errorf("start fx app: %w", err)
	}

	s.setState(StateRunning)
	logger.Info("服务已启动", "addr", s.acceptor.Addr().String(), "version", Version)
	return nil
}

// Stop 优雅关闭
//
// 停止接入后通知全部连接即将关闭，空闲连接立即关闭，忙碌连接在当前请求
// 完成后关闭；超过配置的宽限期或 DrainTimeout 后强制关闭。ctx 到期时
// 剩余组件的停止也会被中止。Stop 之后服务不可重新启动。
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateStopped:
		return ErrServerClosed
	case StateRunning:
	default:
		return ErrNotStarted
	}

	s.setState(StateStopping)
	logger.Info("正在停止服务")

	err := s.app.Stop(ctx)
	s.setState(StateStopped)
	if err != nil {
		logger.Error("停止服务失败", "error", err)
		return fmt.Errorf("stop fx app: %w", err)
	}
	logger.Info("服务已停止")
	return nil
}

// Close 停止服务并释放资源
//
// 未启动时直接标记为关闭；运行中时按 DrainTimeout 执行 Stop。
func (s *Server) Close() error {
	s.mu.Lock()
	if s.State() != StateRunning {
		s.setState(StateStopped)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// 留出事件循环和指标服务停止的余量
	timeout := s.config.config.Shutdown.DrainTimeout.Duration() + 5*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.Stop(ctx)
	if errors.Is(err, ErrServerClosed) {
		return nil
	}
	return err
}

// State 返回当前状态
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(state ServerState) {
	s.state.Store(int32(state))
}

// Addr 返回实际监听地址，未启动时返回 nil
func (s *Server) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// MetricsAddr 返回指标 HTTP 服务地址，未启用时返回空字符串
func (s *Server) MetricsAddr() string {
	if s.metricsServer == nil {
		return ""
	}
	return s.metricsServer.Addr()
}

// Stats 返回连接统计
func (s *Server) Stats() (Stats, error) {
	if s.State() != StateRunning {
		return Stats{}, ErrNotStarted
	}
	return s.acceptor.Stats()
}

// Config 返回生效配置的副本
func (s *Server) Config() *config.Config {
	return config.CloneConfig(s.config.config)
}
