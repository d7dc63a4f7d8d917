package acceptor

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("server not started")

	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("server already started")

	// ErrServerClosed 服务已关闭
	ErrServerClosed = errors.New("server closed")

	// ErrInvalidOption 选项参数无效
	ErrInvalidOption = errors.New("invalid option")
)
