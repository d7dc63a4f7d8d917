package interfaces

import "context"

// Handler 处理一行请求
//
// 请求不含行尾换行符，返回的响应由连接追加换行后写回。
// 返回错误时连接会被关闭。同一连接上的请求串行调用 Serve，
// 不同连接之间并发调用。
type Handler interface {
	Serve(ctx context.Context, req []byte) ([]byte, error)
}

// HandlerFunc 函数形式的 Handler
type HandlerFunc func(ctx context.Context, req []byte) ([]byte, error)

// Serve 实现 Handler
func (f HandlerFunc) Serve(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}
