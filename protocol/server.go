package protocol

import (
	"context"

	"github.com/favbox/h1engine/network"
)

// Server 是连接任务。标准传输器每个连接调用一次 Serve；
// netpoll 在每次数据就绪时调用，Serve 可在交换之间返回以交还事件循环。
type Server interface {
	Serve(ctx context.Context, conn network.Conn) error
}
