package hlog

import "context"

type connIDKey struct{}

// WithConnID 返回携带连接标识的上下文，Ctx 系列方法会将其输出在消息前。
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey{}, id)
}

// ConnID 返回上下文中的连接标识，不存在则返回空串。
func ConnID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(connIDKey{}).(string)
	return id
}
