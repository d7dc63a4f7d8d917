package acceptor

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-acceptor/config"
	"github.com/dep2p/go-acceptor/internal/core/connmgr"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
	"github.com/dep2p/go-acceptor/tests/testutil"
)

// startTestServer 以测试预设启动服务
func startTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{WithPreset(PresetTest)}, opts...)
	srv, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

// TestServer_EchoDefault 测试默认回显
func TestServer_EchoDefault(t *testing.T) {
	srv := startTestServer(t)
	assert.Equal(t, StateRunning, srv.State())
	require.NotNil(t, srv.Addr())
	assert.Equal(t, "", srv.MetricsAddr())

	c := testutil.Dial(t, srv.Addr().String())
	assert.Equal(t, "hello", c.RoundTrip("hello"))

	stats, err := srv.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conns)
	assert.Equal(t, connmgr.ShutdownNone, stats.State)

	t.Log("✅ 默认回显正常")
}

// TestServer_WithHandler 测试自定义处理器
func TestServer_WithHandler(t *testing.T) {
	srv := startTestServer(t, WithHandler(pkgif.HandlerFunc(
		func(_ context.Context, req []byte) ([]byte, error) {
			return bytes.ToUpper(req), nil
		},
	)))

	c := testutil.Dial(t, srv.Addr().String())
	assert.Equal(t, "ABC", c.RoundTrip("abc"))
}

// TestServer_IdleTimeout 测试空闲超时选项
func TestServer_IdleTimeout(t *testing.T) {
	srv := startTestServer(t, WithIdleTimeout(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, srv.Config().ConnMgr.IdleTimeout.Duration())

	c := testutil.Dial(t, srv.Addr().String())
	c.RequireClosed()
}

// TestServer_Metrics 测试指标服务
func TestServer_Metrics(t *testing.T) {
	srv := startTestServer(t, WithMetricsAddr(testutil.LoopbackAddr))
	require.NotEmpty(t, srv.MetricsAddr())

	c := testutil.Dial(t, srv.Addr().String())
	assert.Equal(t, "x", c.RoundTrip("x"))

	resp, err := http.Get("http://" + srv.MetricsAddr() + "/metrics") //nolint:gosec // 测试地址
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "acceptor_conn_active 1")
	assert.Contains(t, string(body), "acceptor_conn_added_total 1")
}

// TestServer_Lifecycle 测试状态转换与错误
func TestServer_Lifecycle(t *testing.T) {
	srv, err := New(WithPreset(PresetTest))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, srv.State())
	assert.Nil(t, srv.Addr())

	_, err = srv.Stats()
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, srv.Stop(context.Background()), ErrNotStarted)

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, StateStopped, srv.State())
	assert.ErrorIs(t, srv.Stop(context.Background()), ErrServerClosed)
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)
	assert.NoError(t, srv.Close())
}

// TestServer_GracefulStop 测试停止时等待进行中的请求
func TestServer_GracefulStop(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	handler := pkgif.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
		started <- struct{}{}
		select {
		case <-release:
			return req, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	srv := startTestServer(t, WithHandler(handler), WithIdleGrace(5*time.Second), WithDrainTimeout(5*time.Second))

	idle := testutil.Dial(t, srv.Addr().String())
	busy := testutil.Dial(t, srv.Addr().String())
	busy.Send("inflight")
	<-started

	done := make(chan error, 1)
	go func() { done <- srv.Stop(context.Background()) }()

	idle.RequireClosed()
	testutil.Eventually(t, testutil.WaitTimeout, func() bool {
		return srv.State() == StateStopping
	}, "应处于停止中")

	close(release)
	resp, err := busy.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "inflight", resp)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("Stop 未返回")
	}
	busy.RequireClosed()
}

// TestNew_InvalidOptions 测试无效选项
func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithHandler(nil))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithConfig(nil))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithPreset("mobile"))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithIdleTimeout(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithListenAddr("no-port"))
	assert.Error(t, err, "配置校验失败")
}

// TestWithConfig 测试使用完整配置
func TestWithConfig(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.ConnMgr = cfg.ConnMgr.WithMaxConnections(10, 5)

	srv, err := New(WithConfig(cfg), WithAcceptRate(100, 10))
	require.NoError(t, err)

	got := srv.Config()
	assert.Equal(t, 10, got.ConnMgr.MaxConnections)
	assert.Equal(t, float64(100), got.Listen.AcceptRate)
	assert.Equal(t, float64(0), cfg.Listen.AcceptRate, "不修改调用方的配置")
}

// TestPresets 测试预设列表
func TestPresets(t *testing.T) {
	for _, p := range AvailablePresets() {
		assert.True(t, IsValidPreset(p.Name), p.Name)
	}
	assert.False(t, IsValidPreset("mobile"))
	assert.False(t, IsValidPreset(""))
}

// TestVersionInfo 测试版本信息
func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)

	GitCommit = "0123456789abcdef"
	defer func() { GitCommit = "" }()
	assert.Contains(t, VersionInfo(), "(01234567)")
}
