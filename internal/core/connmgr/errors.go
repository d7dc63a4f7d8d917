package connmgr

import "errors"

// 连接管理器错误定义
var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("connmgr: invalid config")

	// ErrNoEventLoop 未提供事件循环
	ErrNoEventLoop = errors.New("connmgr: no event loop")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("connmgr: manager closed")
)
