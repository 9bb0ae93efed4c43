package netpoll

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/cloudwego/netpoll"
	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/network"
)

var _ network.Transporter = (*transport)(nil)

func init() {
	netpoll.SetLoggerOutput(io.Discard)
}

// transport 基于 netpoll 事件循环：连接上有数据就绪时才占用协程执行连接任务，
// 连接任务在 Peek 数据不足时挂起，不阻塞任何工作线程。
type transport struct {
	opts *config.Options

	mu   sync.RWMutex
	ln   net.Listener
	loop netpoll.EventLoop
}

// NewTransporter 创建 netpoll 网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	return &transport{opts: options}
}

// ListenAndServe 绑定监听地址并持续服务，除非出现错误或传输器关闭。
func (t *transport) ListenAndServe(onData network.OnData) error {
	_ = network.UnlinkUdsFile(t.opts.Network, t.opts.Addr)

	ln, err := t.listen()
	if err != nil {
		return errs.NewPrivatef("创建 netpoll 监听器失败: %s", err)
	}
	loop, err := netpoll.NewEventLoop(func(ctx context.Context, c netpoll.Connection) error {
		return onData(ctx, newConn(c))
	}, t.loopOptions()...)
	if err != nil {
		_ = ln.Close()
		return errs.NewPrivatef("创建 netpoll 事件循环失败: %s", err)
	}

	t.mu.Lock()
	t.ln, t.loop = ln, loop
	t.mu.Unlock()

	hlog.SystemLogger().Infof("HTTP/1 引擎监听地址=%s, 传输器=netpoll", ln.Addr().String())
	return loop.Serve(ln)
}

func (t *transport) listen() (net.Listener, error) {
	if lc := t.opts.ListenConfig; lc != nil {
		return lc.Listen(context.Background(), t.opts.Network, t.opts.Addr)
	}
	return net.Listen(t.opts.Network, t.opts.Addr)
}

// loopOptions 将引擎选项转为事件循环选项。读写超时在连接就绪前设置，
// OnAccept 与 OnConnect 拿到的是已适配的 network.Conn。
func (t *transport) loopOptions() []netpoll.Option {
	readTimeout, writeTimeout := t.opts.ReadTimeout, t.opts.WriteTimeout
	onAccept, onConnect := t.opts.OnAccept, t.opts.OnConnect

	opts := []netpoll.Option{
		netpoll.WithIdleTimeout(t.opts.KeepAliveTimeout),
		netpoll.WithOnPrepare(func(c netpoll.Connection) context.Context {
			_ = c.SetReadTimeout(readTimeout)
			if writeTimeout > 0 {
				_ = c.SetWriteTimeout(writeTimeout)
			}
			if onAccept == nil {
				return context.Background()
			}
			return onAccept(newConn(c))
		}),
	}
	if onConnect != nil {
		opts = append(opts, netpoll.WithOnConnect(func(ctx context.Context, c netpoll.Connection) context.Context {
			return onConnect(ctx, newConn(c))
		}))
	}
	return opts
}

// Close 立即关闭，不等待进行中的连接。
func (t *transport) Close() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return t.Shutdown(ctx)
}

// Shutdown 关闭监听器，并等待连接结束直到 ctx 截止。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() { _ = network.UnlinkUdsFile(t.opts.Network, t.opts.Addr) }()

	t.mu.RLock()
	loop := t.loop
	t.mu.RUnlock()
	if loop == nil {
		return nil
	}
	return loop.Shutdown(ctx)
}

// Addr 返回实际监听的地址，尚未监听时返回 nil。
func (t *transport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}
