package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPath 默认指标路径
const DefaultPath = "/metrics"

// Server 指标 HTTP 服务
//
// 端点：
//   - GET /metrics       - Prometheus 指标
//   - GET /health        - 健康检查
//   - GET /debug/pprof/* - Go pprof 端点
type Server struct {
	addr     string
	path     string
	gatherer prometheus.Gatherer

	server   *http.Server
	listener net.Listener

	running bool
	mu      sync.Mutex
}

// NewServer 创建指标服务
func NewServer(addr, path string, gatherer prometheus.Gatherer) *Server {
	if path == "" {
		path = DefaultPath
	}
	return &Server{
		addr:     addr,
		path:     path,
		gatherer: gatherer,
	}
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", handleHealth)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务异常退出", "error", err)
		}
	}()

	s.running = true
	logger.Info("指标服务已启动", "addr", listener.Addr().String(), "path", s.path)
	return nil
}

// Stop 停止服务
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭指标服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("指标服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
