package standard

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/network"
)

var _ network.Transporter = (*transport)(nil)

// transport 为每个连接启动一个协程，阻塞读写由 Go 运行时的网络轮询器挂起，不占用系统线程。
type transport struct {
	// 每个连接读缓冲区的初始大小。
	readBufferSize   int
	network          string
	addr             string
	keepAliveTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	handler          network.OnData
	ln               net.Listener
	tls              *tls.Config
	listenConfig     *net.ListenConfig
	lock             sync.Mutex
	active           map[network.Conn]struct{}
	forced           bool
	conns            sync.WaitGroup
	OnAccept         func(conn net.Conn) context.Context
	OnConnect        func(ctx context.Context, conn network.Conn) context.Context
}

func (t *transport) ListenAndServe(onData network.OnData) error {
	t.handler = onData
	return t.serve()
}

func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	return t.Shutdown(ctx)
}

// Shutdown 关闭监听器，并等待进行中的连接任务结束。ctx 截止时强制关闭剩余连接。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()

	t.lock.Lock()
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.lock.Unlock()

	done := make(chan struct{})
	go func() {
		t.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.closeActive()
		return nil
	}
}

func (t *transport) track(c network.Conn) {
	t.lock.Lock()
	if t.active == nil {
		t.active = make(map[network.Conn]struct{})
	}
	t.active[c] = struct{}{}
	forced := t.forced
	t.lock.Unlock()
	// 强制关闭之后才接受到的连接
	if forced {
		_ = c.Close()
	}
}

func (t *transport) untrack(c network.Conn) {
	t.lock.Lock()
	delete(t.active, c)
	t.lock.Unlock()
}

// closeActive 关闭所有仍在服务的连接，阻塞在读写上的连接任务随即返回。
func (t *transport) closeActive() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.forced = true
	for c := range t.active {
		_ = c.Close()
	}
}

// Addr 返回实际监听的地址，尚未监听时返回 nil。
func (t *transport) Addr() net.Addr {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

func (t *transport) serve() (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)
	t.lock.Lock()
	if t.listenConfig != nil {
		t.ln, err = t.listenConfig.Listen(context.Background(), t.network, t.addr)
	} else {
		t.ln, err = net.Listen(t.network, t.addr)
	}
	ln := t.ln
	t.lock.Unlock()
	if err != nil {
		return errs.NewPrivatef("创建监听器失败: %s", err)
	}
	hlog.SystemLogger().Infof("HTTP/1 引擎监听地址=%s, 传输器=standard", ln.Addr().String())
	for {
		ctx := context.Background()
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			hlog.SystemLogger().Errorf("接受连接出错=%s", err.Error())
			return err
		}

		if t.OnAccept != nil {
			ctx = t.OnAccept(conn)
		}

		if tc, ok := conn.(*net.TCPConn); ok && t.keepAliveTimeout > 0 {
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(t.keepAliveTimeout)
		}

		var c network.Conn
		if t.tls != nil {
			c = newTLSConn(tls.Server(conn, t.tls), t.readBufferSize)
		} else {
			c = newConn(conn, t.readBufferSize)
		}
		_ = c.SetReadTimeout(t.readTimeout)
		if t.writeTimeout > 0 {
			_ = c.SetWriteTimeout(t.writeTimeout)
		}

		if t.OnConnect != nil {
			ctx = t.OnConnect(ctx, c)
		}
		t.conns.Add(1)
		t.track(c)
		go func() {
			defer t.conns.Done()
			defer t.untrack(c)
			// 连接任务返回即连接结束，对端正常关闭时任务返回 nil，这里负责关闭本端。
			defer c.Close()
			_ = t.handler(ctx, c)
		}()
	}
}

// NewTransporter 创建标准库网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	return &transport{
		readBufferSize:   options.ReadBufferSize,
		network:          options.Network,
		addr:             options.Addr,
		keepAliveTimeout: options.KeepAliveTimeout,
		readTimeout:      options.ReadTimeout,
		writeTimeout:     options.WriteTimeout,
		tls:              options.TLS,
		listenConfig:     options.ListenConfig,
		OnAccept:         options.OnAccept,
		OnConnect:        options.OnConnect,
	}
}
