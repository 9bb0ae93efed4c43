package server

import (
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/common/tracer"
	"github.com/favbox/h1engine/common/tracer/stats"
	internalStats "github.com/favbox/h1engine/internal/stats"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/network/standard"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/http1"
	"github.com/google/uuid"
)

const unknownTransporterName = "unknown"

const (
	_ uint32 = iota
	statusInitialized
	statusRunning
	statusShutdown
	statusClosed
)

var (
	// 默认网络传输器（基于标准库实现，另外可选 netpoll.NewTransporter）
	defaultTransporter = standard.NewTransporter

	errInitFailed       = errs.NewPrivate("引擎已经初始化")
	errAlreadyRunning   = errs.NewPrivate("引擎已在运行中")
	errStatusNotRunning = errs.NewPrivate("引擎未在运行中")
)

// noCopy 供 go vet 的 copylocks 检查，Engine 持有状态不可拷贝。
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// CtxCallback 引擎关闭时，同时触发的钩子函数
type CtxCallback func(ctx context.Context)

// CtxErrCallback 引擎启动时，依次触发的钩子函数
type CtxErrCallback func(ctx context.Context) error

// Engine 组合传输器、HTTP/1 连接任务与交换处理器。
type Engine struct {
	noCopy noCopy //lint:ignore U1000 go vet copylocks

	options   *config.Options
	transport network.Transporter
	handler   protocol.Handler
	server    *http1.Server

	// 链路追踪
	tracerCtl   tracer.Controller
	enableTrace bool
	traceLevel  stats.Level

	// 限制文件的热重载器，未配置 LimitsFile 时为空
	limitsWatcher *config.LimitsWatcher

	// 在收到 Expect: 100-continue 标头后调用 ContinueHandler。
	// 返回 false 时以 417 拒绝，不读取可能较大的请求正文。
	//
	// 默认总是发送 100 Continue。
	ContinueHandler func(r *protocol.Request) bool

	// 用于表示引擎状态（Init/Running/Shutdown/Closed）。
	status uint32

	// OnRun 是引擎启动时，依次触发的一组钩子函数。
	OnRun []CtxErrCallback

	// OnShutdown 是引擎关闭时，并行触发的一组钩子函数。
	OnShutdown []CtxCallback
}

// NewEngine 创建以 h 处理交换的引擎。
func NewEngine(opts *config.Options, h protocol.Handler) *Engine {
	// 为每个连接分配标识，日志与交换中均可取得。
	onAccept := opts.OnAccept
	opts.OnAccept = func(conn net.Conn) context.Context {
		ctx := context.Background()
		if onAccept != nil {
			ctx = onAccept(conn)
		}
		return hlog.WithConnID(ctx, uuid.NewString())
	}

	engine := &Engine{
		options:     opts,
		handler:     h,
		transport:   defaultTransporter(opts),
		tracerCtl:   &internalStats.Controller{},
		enableTrace: true,
	}
	if opts.TransporterNewer != nil {
		engine.transport = opts.TransporterNewer(opts)
	}
	engine.traceLevel = initTrace(engine)
	return engine
}

// Init 校验配置、加载限制文件并创建连接任务。只能调用一次。
func (engine *Engine) Init() error {
	if !atomic.CompareAndSwapUint32(&engine.status, 0, statusInitialized) {
		return errInitFailed
	}
	if err := engine.options.Validate(); err != nil {
		return err
	}

	if engine.options.LimitsFile != "" {
		w, err := config.WatchLimits(engine.options.LimitsFile, func(l config.Limits) {
			hlog.SystemLogger().Infof("限制已重载: 标头上限=%d, 正文上限=%d, 长连接=%t",
				l.MaxHeaderBytes, l.MaxBodyBytes, l.KeepAliveEnabled)
		})
		if err != nil {
			return err
		}
		engine.limitsWatcher = w
	}

	serverName := engine.options.ServerName
	if engine.options.NoDefaultServerHeader {
		serverName = ""
	}
	engine.server = http1.NewServer(http1.Option{
		ReadTimeout:     engine.options.ReadTimeout,
		IdleTimeout:     engine.options.IdleTimeout,
		ServerName:      serverName,
		EnableTrace:     engine.enableTrace,
		TraceLevel:      engine.traceLevel,
		Limits:          engine.Limits,
		ContinueHandler: engine.ContinueHandler,
		ReturnToReactor: engine.GetTransporterName() == "netpoll",
		IsRunning:       engine.IsRunning,
	}, engine.handler, engine.tracerCtl)
	return nil
}

// Run 初始化并启动引擎，阻塞直至传输器退出。
func (engine *Engine) Run() (err error) {
	if err = engine.Init(); err != nil {
		return err
	}
	if err = engine.MarkAsRunning(); err != nil {
		return err
	}
	defer atomic.StoreUint32(&engine.status, statusClosed)

	// 按序执行启动钩子
	ctx := context.Background()
	for i := range engine.OnRun {
		if err = engine.OnRun[i](ctx); err != nil {
			return err
		}
	}

	return engine.listenAndServe()
}

func (engine *Engine) listenAndServe() error {
	hlog.SystemLogger().Infof("使用网络库=%s", engine.GetTransporterName())
	return engine.transport.ListenAndServe(engine.onData)
}

func (engine *Engine) onData(ctx context.Context, conn any) (err error) {
	switch conn := conn.(type) {
	case network.Conn:
		err = engine.Serve(ctx, conn)
	default:
		err = errs.NewPrivatef("不支持的连接类型 %T", conn)
	}
	return
}

// MarkAsRunning 将引擎标记为运行中。
func (engine *Engine) MarkAsRunning() error {
	if !atomic.CompareAndSwapUint32(&engine.status, statusInitialized, statusRunning) {
		return errAlreadyRunning
	}
	return nil
}

// Serve 在连接上运行 HTTP/1 连接任务，出错时记录日志并关闭连接。
func (engine *Engine) Serve(ctx context.Context, conn network.Conn) (err error) {
	defer func() {
		errProcess(conn, err)
	}()
	return engine.server.Serve(ctx, conn)
}

// Shutdown 优雅关闭引擎。
//
//  1. 并行触发 Engine.OnShutdown 钩子函数，直至完成或超时；
//  2. 关闭网络监听器，不再接受新连接；
//  3. 等待所有连接关闭：进行中的交换在响应中声明 Connection: close 后结束，
//     闲置的长连接等待触达闲置超时或 ctx 截止。
func (engine *Engine) Shutdown(ctx context.Context) (err error) {
	if atomic.LoadUint32(&engine.status) != statusRunning {
		return errStatusNotRunning
	}
	if !atomic.CompareAndSwapUint32(&engine.status, statusRunning, statusShutdown) {
		return
	}

	ch := make(chan struct{})
	// 触发可能的钩子
	go engine.executeOnShutdownHooks(ctx, ch)
	defer func() {
		// 确保钩子执行完成或超时
		select {
		case <-ctx.Done():
			hlog.SystemLogger().Infof("执行 OnShutdownHooks 超时：错误=%v", ctx.Err())
		case <-ch:
			hlog.SystemLogger().Info("执行 OnShutdownHooks 完成")
		}
	}()

	if engine.limitsWatcher != nil {
		_ = engine.limitsWatcher.Close()
	}

	// 关闭传输器
	if err := engine.transport.Shutdown(ctx); err != ctx.Err() {
		return err
	}
	return
}

func (engine *Engine) executeOnShutdownHooks(ctx context.Context, ch chan struct{}) {
	done := make(chan struct{}, len(engine.OnShutdown))
	for i := range engine.OnShutdown {
		go func(f CtxCallback) {
			defer func() { done <- struct{}{} }()
			f(ctx)
		}(engine.OnShutdown[i])
	}
	for range engine.OnShutdown {
		<-done
	}
	ch <- struct{}{}
}

// Close 立即关闭传输器与限制文件监视器。
func (engine *Engine) Close() error {
	if engine.limitsWatcher != nil {
		_ = engine.limitsWatcher.Close()
	}
	return engine.transport.Close()
}

// IsRunning 报告引擎是否在运行中。关闭开始后，连接任务不再保持长连接。
func (engine *Engine) IsRunning() bool {
	return atomic.LoadUint32(&engine.status) == statusRunning
}

// Limits 返回当前生效的限制：配置了限制文件时取其最新快照，否则取选项中的值。
func (engine *Engine) Limits() config.Limits {
	if engine.limitsWatcher != nil {
		return engine.limitsWatcher.Limits()
	}
	return engine.options.Limits
}

// GetOptions 返回引擎的配置项。
func (engine *Engine) GetOptions() *config.Options {
	return engine.options
}

// GetTracer 返回跟踪控制器。
func (engine *Engine) GetTracer() tracer.Controller {
	return engine.tracerCtl
}

// IsTraceEnable 报告是否启用了链路追踪。
func (engine *Engine) IsTraceEnable() bool {
	return engine.enableTrace
}

// Addr 返回传输器实际监听的地址，尚未监听或传输器不支持时返回 nil。
func (engine *Engine) Addr() net.Addr {
	if a, ok := engine.transport.(network.Addresser); ok {
		return a.Addr()
	}
	return nil
}

// GetTransporterName 返回引擎使用的传输器名称。
func (engine *Engine) GetTransporterName() string {
	return getTransporterName(engine.transport)
}

func initTrace(engine *Engine) stats.Level {
	for _, t := range engine.options.Tracers {
		if col, ok := t.(tracer.Tracer); ok {
			engine.tracerCtl.Append(col)
		}
	}

	if !engine.tracerCtl.HasTracer() {
		engine.enableTrace = false
	}

	traceLevel := stats.LevelDetailed
	if tl, ok := engine.options.TraceLevel.(stats.Level); ok {
		traceLevel = tl
	}
	return traceLevel
}

func getTransporterName(transporter network.Transporter) (tName string) {
	defer func() {
		err := recover()
		if err != nil || tName == "" {
			tName = unknownTransporterName
		}
	}()
	t := reflect.ValueOf(transporter).Type().String()
	tName = strings.Split(strings.TrimPrefix(t, "*"), ".")[0]
	return tName
}

func errProcess(conn io.Closer, err error) {
	if err == nil {
		return
	}

	defer func() {
		_ = conn.Close()
	}()

	// 静默关闭连接
	if errors.Is(err, errs.ErrShortConnection) || errors.Is(err, errs.ErrIdleTimeout) {
		return
	}

	// 获取供外部使用的远程地址
	rip := getRemoteAddrFromCloser(conn)

	// 处理特定错误
	if hse, ok := conn.(network.HandleSpecificError); ok {
		if hse.HandleSpecificError(err, rip) {
			return
		}
	}

	// 处理其他错误
	hlog.SystemLogger().Errorf(hlog.EngineErrorFormat, err.Error(), rip)
}

func getRemoteAddrFromCloser(conn io.Closer) string {
	if c, ok := conn.(network.Conn); ok {
		if addr := c.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return ""
}
