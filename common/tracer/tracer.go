// Package tracer 定义交换级的跟踪钩子。
package tracer

import (
	"context"

	"github.com/favbox/h1engine/protocol"
)

// Tracer 在每次交换的请求行读取前调用 Start，响应写出或交换失败后调用 Finish。
// 阶段事件与收发字节数可从 ex.GetTraceInfo().Stats() 读取。
type Tracer interface {
	Start(ctx context.Context, ex *protocol.Exchange) context.Context
	Finish(ctx context.Context, ex *protocol.Exchange)
}

// Controller 管理一组 Tracer。Start 按注册顺序调用，Finish 逆序调用。
type Controller interface {
	Append(col Tracer)
	DoStart(ctx context.Context, ex *protocol.Exchange) context.Context
	// DoFinish 记录 err 后逆序调用各 Finish。
	DoFinish(ctx context.Context, ex *protocol.Exchange, err error)
	HasTracer() bool
}
