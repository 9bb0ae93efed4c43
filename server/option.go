package server

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/favbox/h1engine/common/config"
	"github.com/favbox/h1engine/common/tracer"
	"github.com/favbox/h1engine/common/tracer/stats"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/network/standard"
)

// WithHostPorts 指定监听的地址和端口。默认值：":8888"。
func WithHostPorts(addr string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Addr = addr
	}}
}

// WithNetwork 网络协议，可选：tcp，tcp4，tcp6，unix（unix domain socket）。
// 默认值：tcp。
func WithNetwork(nw string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Network = nw
	}}
}

// WithReadTimeout 设置网络库读取数据超时时间。默认值 3 分钟。
//
// 当读超时时连接将关闭。
func WithReadTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadTimeout = t
	}}
}

// WithWriteTimeout 设置网络库写入数据超时时间。默认值：无限长。
//
// 当写超时时连接将关闭。
func WithWriteTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.WriteTimeout = t
	}}
}

// WithIdleTimeout 设置长连接闲置的超时时间。默认值同读取超时。
//
// 当闲置时间超时时连接将静默关闭，以免受行为不端的客户端的攻击。
// 使用 netpoll 传输器时设为 0，连接在每次交换后交还事件循环。
func WithIdleTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.IdleTimeout = t
	}}
}

// WithKeepAliveTimeout 设置 TCP 保活周期。
//
// 在大多数情况下，无需关心该选项。
// 默认值：1 分钟。
func WithKeepAliveTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.KeepAliveTimeout = t
	}}
}

// WithKeepAlive 设置是否允许长连接。默认值：true。
func WithKeepAlive(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Limits.KeepAliveEnabled = b
	}}
}

// WithMaxHeaderBytes 限制请求行与标头（含结尾空行）的总字节数，超出则回复 431。
// 默认值：8KB。
func WithMaxHeaderBytes(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Limits.MaxHeaderBytes = n
	}}
}

// WithMaxBodyBytes 限制请求正文的字节数，超出则回复 413。
// 默认值：4MB。
func WithMaxBodyBytes(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Limits.MaxBodyBytes = n
	}}
}

// WithLimits 整体替换大小限制与长连接开关。
func WithLimits(l config.Limits) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Limits = l
	}}
}

// WithLimitsFile 从 JSON 文件加载大小限制，并在文件变更时热重载。
//
// 文件内容形如 {"max_header_bytes":8192,"max_body_bytes":4194304,"keep_alive_enabled":true}。
func WithLimitsFile(path string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.LimitsFile = path
	}}
}

// WithServerName 设置响应的 Server 标头。默认值："h1engine"。
func WithServerName(name string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ServerName = name
	}}
}

// WithNoDefaultServerHeader 设置是否不写 Server 标头。默认值：false。
func WithNoDefaultServerHeader(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.NoDefaultServerHeader = b
	}}
}

// WithExitWaitTime 优雅退出的等待时间。
//
// 服务器会停止建立新连接，并对关闭后的每个请求设置 'Connection: close' 标头。
// 当到达设定的时间关闭服务器。若所有连接均已关闭则可提前关闭。
//
// 默认值：5 秒。
func WithExitWaitTime(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExitWaitTimeout = t
	}}
}

// WithTLS 配置为 TLS 服务器。
func WithTLS(cfg *tls.Config) config.Option {
	return config.Option{F: func(o *config.Options) {
		// 如无明确的传输器则用标准的，因 netpoll 尚不支持。
		if o.TransporterNewer == nil {
			o.TransporterNewer = standard.NewTransporter
		}
		o.TLS = cfg
	}}
}

// WithListenConfig 设置监听器配置。如配置是否允许端口重用。
func WithListenConfig(l *net.ListenConfig) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ListenConfig = l
	}}
}

// WithTransport 更换网络传输器。默认值：standard.NewTransporter。
func WithTransport(transporter func(opts *config.Options) network.Transporter) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TransporterNewer = transporter
	}}
}

// WithReadBufferSize 设置标准传输器的初始读缓冲字节数。默认值：4KB。
func WithReadBufferSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadBufferSize = size
	}}
}

// WithTracer 注入链路跟踪器实例。若不注入则意为关闭。
func WithTracer(t tracer.Tracer) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Tracers = append(o.Tracers, t)
	}}
}

// WithTraceLevel 设置链路跟踪级别。默认值：stats.LevelDetailed。
func WithTraceLevel(level stats.Level) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TraceLevel = level
	}}
}

// WithOnAccept 设置在 netpoll 中新连接被接受但不能接收数据时的回调函数。
// 在 go net 中，它将在转为 TLS 连接之前被调用。
//
// 默认值：nil。
func WithOnAccept(fn func(conn net.Conn) context.Context) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.OnAccept = fn
	}}
}

// WithOnConnect 设置在 netpoll 中接收来自连接的数据。
// 在 go net 中，它将在转为 TLS 连接之后被调用。
//
// 默认值：nil。
func WithOnConnect(fn func(ctx context.Context, conn network.Conn) context.Context) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.OnConnect = fn
	}}
}
