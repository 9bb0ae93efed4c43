package config

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	exprValidator "github.com/bytedance/go-tagexpr/v2/validator"
	"github.com/favbox/h1engine/network"
)

const (
	defaultKeepAliveTimeout = 1 * time.Minute
	defaultReadTimeout      = 3 * time.Minute
	defaultWaitExitTimeout  = 5 * time.Second
	defaultNetwork          = "tcp"
	defaultAddr             = ":8888"
	defaultReadBufferSize   = 4 * 1024
	defaultServerName       = "h1engine"
)

// Option 是用于配置 Options 唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是配置项的结构体。
type Options struct {
	// KeepAliveTimeout 是 TCP 保活的周期，默认 1 分钟，通常无需关心，仅需关心 IdleTimeout。
	KeepAliveTimeout time.Duration

	// ReadTimeout 是网络库读取的超时时间，默认 3 分钟，0 代表永不超时。
	ReadTimeout time.Duration

	// WriteTimeout 是网络库写入的超时时间，默认为 0，即永不超时。
	WriteTimeout time.Duration

	// IdleTimeout 是长连接两次交换之间的闲置超时，超时则静默关闭。默认同 ReadTimeout。
	//
	// 为 0 时，事件循环传输器会在每次交换后把连接交还给事件循环，由下一次数据就绪重新触发。
	IdleTimeout time.Duration

	Network         string        // 网络协议，可选 "tcp", "tcp4", "tcp6", "unix"，默认 "tcp"
	Addr            string        // 监听地址，默认 ":8888"
	ExitWaitTimeout time.Duration // 优雅退出的等待时间，默认 5s
	ReadBufferSize  int           // 初始的读缓冲大小，默认 4KB。通常无需设置。
	TLS             *tls.Config
	ListenConfig    *net.ListenConfig

	ServerName            string // 响应 Server 标头的值，默认 "h1engine"
	NoDefaultServerHeader bool   // 是否不写 Server 标头，默认否

	Tracers    []any // 链路跟踪器，默认零长度切片
	TraceLevel any   // 跟踪级别，默认 stats.LevelDetailed

	// Limits 是交换引擎的大小限制与长连接开关。
	Limits Limits

	// LimitsFile 非空时，启动时从该 JSON 文件加载 Limits，并在文件变更时热重载。
	LimitsFile string

	// TransporterNewer 是传输器的自定义创建函数。
	TransporterNewer func(opt *Options) network.Transporter

	// 在 netpoll 库中，OnAccept 是在接受连接之后且加到 epoll 之前调用的。OnConnect 是在加到 epoll 之后调用的。
	// 区别在于 OnConnect 能取数据，而 OnAccept 不能。例如想检查对端IP是否在黑名单中，可使用 OnAccept。
	//
	// 在 go/net 中，OnAccept 是在接受连接之后且建立 tls 连接之前调用的。建立 tls 连接后执行 OnConnect。
	OnAccept  func(conn net.Conn) context.Context
	OnConnect func(ctx context.Context, conn network.Conn) context.Context
}

// 监听配置的校验规则。
type listenSpec struct {
	Network string `vd:"in($,'tcp','tcp4','tcp6','unix'); msg:sprintf('不支持的网络类型: %v',$)"`
	Addr    string `vd:"len($)>0; msg:'监听地址不能为空'"`
}

// Apply 将指定的一组配置方法 opts 应用到配置项上。
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt.F(o)
	}
}

// Validate 校验监听配置与大小限制。
func (o *Options) Validate() error {
	if err := exprValidator.Validate(&listenSpec{Network: o.Network, Addr: o.Addr}); err != nil {
		return err
	}
	return o.Limits.Validate()
}

// NewOptions 创建基于给定配置函数的配置项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		KeepAliveTimeout: defaultKeepAliveTimeout,
		ReadTimeout:      defaultReadTimeout,
		IdleTimeout:      defaultReadTimeout,
		Network:          defaultNetwork,
		Addr:             defaultAddr,
		ExitWaitTimeout:  defaultWaitExitTimeout,
		ReadBufferSize:   defaultReadBufferSize,
		ServerName:       defaultServerName,
		Tracers:          []any{},
		TraceLevel:       new(any),
		Limits:           DefaultLimits(),
	}
	options.Apply(opts)
	return options
}
