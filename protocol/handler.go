package protocol

import "context"

// Handler 根据完整的请求构建响应。
//
// 调用时请求已读取完毕；处理器只需填写 ex.Response，由连接任务负责写出。
type Handler interface {
	ServeExchange(ctx context.Context, ex *Exchange)
}

// HandlerFunc 是函数形式的 Handler。
type HandlerFunc func(ctx context.Context, ex *Exchange)

// ServeExchange 实现 Handler 接口。
func (f HandlerFunc) ServeExchange(ctx context.Context, ex *Exchange) {
	f(ctx, ex)
}
