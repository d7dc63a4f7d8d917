package listener

import (
	"context"

	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// EchoHandler 原样返回请求行
var EchoHandler pkgif.Handler = pkgif.HandlerFunc(func(_ context.Context, req []byte) ([]byte, error) {
	return req, nil
})
