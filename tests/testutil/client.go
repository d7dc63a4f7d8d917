package testutil

import (
	"bufio"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// LineClient 行协议测试客户端
type LineClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// Dial 连接到 addr，测试结束时自动关闭
func Dial(t *testing.T, addr string) *LineClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, WaitTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &LineClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// Send 发送一行请求
func (c *LineClient) Send(line string) {
	c.t.Helper()

	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

// ReadLine 读取一行响应（不含换行）
func (c *LineClient) ReadLine() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(WaitTimeout))
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// RoundTrip 发送请求并读取响应
func (c *LineClient) RoundTrip(line string) string {
	c.t.Helper()

	c.Send(line)
	resp, err := c.ReadLine()
	require.NoError(c.t, err)
	return resp
}

// RequireClosed 断言服务端已关闭连接
func (c *LineClient) RequireClosed() {
	c.t.Helper()

	_, err := c.ReadLine()
	require.Error(c.t, err)
	require.False(c.t, errors.Is(err, os.ErrDeadlineExceeded), "连接应被服务端关闭而非读超时")
}

// Close 关闭客户端
func (c *LineClient) Close() {
	_ = c.conn.Close()
}
