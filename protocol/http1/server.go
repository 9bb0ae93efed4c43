package http1

import (
	"context"
	"errors"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/common/tracer"
	"github.com/favbox/h1engine/common/tracer/stats"
	"github.com/favbox/h1engine/common/tracer/traceinfo"
	internalStats "github.com/favbox/h1engine/internal/stats"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
	"github.com/favbox/h1engine/protocol/http1/req"
	"github.com/favbox/h1engine/protocol/http1/resp"
	"github.com/google/uuid"
)

// 流式写出时每次从 BodyStream 读取的缓冲大小。
const streamChunkSize = 4 * 1024

var (
	errIdleTimeout     = errs.New(errs.ErrIdleTimeout, errs.ErrorTypePrivate, nil)
	errShortConnection = errs.New(errs.ErrShortConnection, errs.ErrorTypePublic, "服务器即将关闭该连接")
)

// Option 表示连接任务的选项。
type Option struct {
	ReadTimeout time.Duration // 读取请求的超时时长
	IdleTimeout time.Duration // 长连接两次交换之间的闲置超时，为 0 表示不限
	ServerName  string        // 响应的 Server 标头，为空则不写
	EnableTrace bool          // 是否启用链路追踪
	TraceLevel  stats.Level   // 追踪级别

	// Limits 在每次交换开始时调用，返回当时生效的限制。为空时使用 config.DefaultLimits。
	Limits func() config.Limits

	// ContinueHandler 在请求携带 Expect: 100-continue 时调用，返回 false 则以 417 拒绝并关闭连接。
	// 为空时总是发送 100 Continue。
	ContinueHandler func(r *protocol.Request) bool

	// ReturnToReactor 为真且 IdleTimeout 为 0 时，每次交换后即返回，由事件循环在下一次数据就绪时重新调用 Serve。
	ReturnToReactor bool

	// IsRunning 报告引擎是否仍在运行，返回 false 时不再保持长连接。为空视为一直运行。
	IsRunning func() bool
}

// Server 是 HTTP/1 连接任务，实现 protocol.Server。
type Server struct {
	Option
	Handler protocol.Handler
	Tracer  tracer.Controller

	exchangePool   sync.Pool
	eventStackPool *sync.Pool
}

var _ protocol.Server = (*Server)(nil)

// NewServer 创建以 h 处理交换的连接任务。
func NewServer(opt Option, h protocol.Handler, tc tracer.Controller) *Server {
	s := &Server{
		Option:  opt,
		Handler: h,
		Tracer:  tc,
		eventStackPool: &sync.Pool{
			New: func() any {
				return &eventStack{}
			},
		},
	}
	if s.Tracer == nil || !s.Tracer.HasTracer() {
		s.EnableTrace = false
	}
	s.exchangePool.New = func() any {
		ex := protocol.NewExchange()
		ex.GetTraceInfo().Stats().SetLevel(s.TraceLevel)
		return ex
	}
	return s
}

// Serve 在一个连接上循环处理交换，直到对端关闭、出错或不再保持长连接。
//
// 返回 nil 表示连接可继续使用（对端正常结束，或事件循环模式下交还连接）；
// ErrShortConnection 与 ErrIdleTimeout 表示应静默关闭；其余错误应记录后关闭。
func (s *Server) Serve(c context.Context, conn network.Conn) (err error) {
	var (
		limits = s.limits()
		sock   = NewSocket(conn, limits)
		ex     = s.exchangePool.Get().(*protocol.Exchange)

		traceCtl        = s.Tracer
		eventsToTrigger *eventStack
		traced          bool
	)

	connID := hlog.ConnID(c)
	if connID == "" {
		connID = uuid.NewString()
		c = hlog.WithConnID(c, connID)
	}
	// 使用新变量保存跟踪器返回的上下文，以免修改初始上下文。
	cc := c
	ex.ConnID = connID
	ex.RemoteAddr = conn.RemoteAddr()
	ex.SetEnableTrace(s.EnableTrace)

	if s.EnableTrace {
		eventsToTrigger = s.eventStackPool.Get().(*eventStack)
	}

	defer func() {
		if traced {
			traceErr := err
			if isSilent(traceErr) {
				traceErr = nil
			}
			for last := eventsToTrigger.pop(); last != nil; last = eventsToTrigger.pop() {
				last(ex.GetTraceInfo(), traceErr)
			}
			traceCtl.DoFinish(cc, ex, traceErr)
		}
		if eventsToTrigger != nil {
			*eventsToTrigger = (*eventsToTrigger)[:0]
			s.eventStackPool.Put(eventsToTrigger)
		}
		_ = conn.Release()
		ex.Reset()
		s.exchangePool.Put(ex)
	}()

	var seq uint64
	for {
		seq++

		// 长连接的后续请求须在闲置超时前到达，否则静默关闭。
		if seq > 1 {
			_ = conn.SetReadTimeout(s.IdleTimeout)
			if err = sock.Await(); err != nil {
				if errs.IsStreamFinished(err) {
					return nil
				}
				if errors.Is(err, errs.ErrTimeout) {
					return errIdleTimeout
				}
				return err
			}
			_ = conn.SetReadTimeout(s.ReadTimeout)

			limits = s.limits()
			sock.SetLimits(limits)
		} else if err = sock.Await(); err != nil {
			if errs.IsStreamFinished(err) {
				return nil
			}
			return err
		}

		ex.Seq = seq
		if s.EnableTrace {
			cc = traceCtl.DoStart(c, ex)
			traced = true
			internalStats.Record(ex.GetTraceInfo(), stats.ReadHeaderStart, nil)
			eventsToTrigger.push(func(ti traceinfo.TraceInfo, err error) {
				internalStats.Record(ti, stats.ReadHeaderFinish, err)
			})
		}

		err = sock.ReadRequest(&ex.Request)
		if s.EnableTrace {
			if last := eventsToTrigger.pop(); last != nil {
				last(ex.GetTraceInfo(), err)
			}
		}
		if err != nil {
			// 只收到空行后对端即关闭
			if errs.IsStreamFinished(err) {
				return nil
			}
			return s.writeErrorResponse(c, sock, ex, err)
		}

		// 'Expect: 100-continue' 须在读取正文前应答。
		if sock.RequiresContinue(&ex.Request) {
			if s.ContinueHandler != nil && !s.ContinueHandler(&ex.Request) {
				s.writeStatus(c, sock, ex, consts.StatusExpectationFailed)
				return errShortConnection
			}
			if s.EnableTrace {
				internalStats.Record(ex.GetTraceInfo(), stats.ContinueStart, nil)
			}
			err = sock.WriteContinue()
			if s.EnableTrace {
				internalStats.Record(ex.GetTraceInfo(), stats.ContinueFinish, err)
			}
			if err != nil {
				return err
			}
		}

		if s.EnableTrace {
			internalStats.Record(ex.GetTraceInfo(), stats.ReadBodyStart, nil)
			eventsToTrigger.push(func(ti traceinfo.TraceInfo, err error) {
				internalStats.Record(ti, stats.ReadBodyFinish, err)
			})
		}
		err = drain(sock, &ex.Request)
		if s.EnableTrace {
			ex.GetTraceInfo().Stats().SetRecvSize(sock.BytesRead())
			if last := eventsToTrigger.pop(); last != nil {
				last(ex.GetTraceInfo(), err)
			}
		}
		if err != nil {
			return s.writeErrorResponse(c, sock, ex, err)
		}

		// 请求已完整复制到交换中，释放读缓冲。
		_ = conn.Release()

		if s.ServerName != "" {
			ex.Response.Header.Set(consts.HeaderServer, s.ServerName)
		}
		if s.EnableTrace {
			internalStats.Record(ex.GetTraceInfo(), stats.ServerHandleStart, nil)
			eventsToTrigger.push(func(ti traceinfo.TraceInfo, err error) {
				internalStats.Record(ti, stats.ServerHandleFinish, err)
			})
		}
		err = s.handle(cc, ex)
		if s.EnableTrace {
			if last := eventsToTrigger.pop(); last != nil {
				last(ex.GetTraceInfo(), err)
			}
		}
		if err != nil {
			if sock.WriteState() == resp.StateNotStarted || sock.WriteState() == resp.StateContinueIssued {
				ex.Response.Reset()
				s.writeStatus(c, sock, ex, consts.StatusInternalServerError)
			}
			return err
		}

		keepAlive := limits.KeepAliveEnabled && sock.KeepAlive() && s.isRunning() && !ex.Response.ConnectionClose()
		if !keepAlive {
			ex.Response.SetConnectionClose()
		} else if ex.Request.Proto == consts.HTTP10 {
			ex.Response.Header.Set(consts.HeaderConnection, consts.ValueKeepAlive)
		}
		if ex.Response.StatusCode == 0 {
			ex.Response.SetStatusCode(consts.StatusOK)
		}

		if s.EnableTrace {
			internalStats.Record(ex.GetTraceInfo(), stats.WriteStart, nil)
			eventsToTrigger.push(func(ti traceinfo.TraceInfo, err error) {
				internalStats.Record(ti, stats.WriteFinish, err)
			})
		}
		err = writeResponse(sock, &ex.Response)
		if s.EnableTrace {
			ex.GetTraceInfo().Stats().SetSendSize(sock.BytesWritten())
			if last := eventsToTrigger.pop(); last != nil {
				last(ex.GetTraceInfo(), err)
			}
		}
		if err != nil {
			return err
		}

		if traced {
			traceCtl.DoFinish(cc, ex, nil)
			traced = false
		}

		if !keepAlive {
			return errShortConnection
		}

		// 交还事件循环，由下一次数据就绪重新触发。
		if s.ReturnToReactor && s.IdleTimeout == 0 {
			return nil
		}

		if err = sock.Reset(); err != nil {
			return err
		}
		ex.ResetWithoutConn()
	}
}

// 读完请求的剩余部分：正文与挂车。
func drain(sock *Socket, r *protocol.Request) error {
	for {
		switch sock.ReadState() {
		case req.StateMessageReady:
			if _, err := sock.ReadSome(&r.Message); err != nil {
				return err
			}
		case req.StateBodyReady:
			if err := sock.ReadTrailers(&r.Message); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// 调用处理器，恐慌只结束当前连接。
func (s *Server) handle(ctx context.Context, ex *protocol.Exchange) (err error) {
	defer func() {
		if p := recover(); p != nil {
			ex.GetTraceInfo().Stats().SetPanicked(p)
			hlog.SystemLogger().CtxErrorf(ctx, "处理器恐慌: %v\n%s", p, debug.Stack())
			err = errs.NewPrivatef("处理器恐慌: %v", p)
		}
	}()
	s.Handler.ServeExchange(ctx, ex)
	return nil
}

func writeResponse(sock *Socket, r *protocol.Response) error {
	if r.BodyStream == nil {
		return sock.WriteResponse(r.StatusCode, r.Reason, &r.Message)
	}

	if closer, ok := r.BodyStream.(io.Closer); ok {
		defer closer.Close()
	}
	if err := sock.WriteResponseMetadata(r.StatusCode, r.Reason, &r.Message); err != nil {
		return err
	}

	buf := mcache.Malloc(streamChunkSize)
	defer mcache.Free(buf)
	for {
		n, err := r.BodyStream.Read(buf)
		if n > 0 {
			if werr := sock.WriteChunk(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errs.NewPrivatef("读取响应正文流失败: %s", err)
		}
	}

	if r.Trailer.Len() > 0 {
		return sock.WriteTrailers(&r.Trailer)
	}
	return sock.WriteEndOfMessage()
}

// writeErrorResponse 为请求读取阶段的错误写出对应的错误响应，并返回原错误。
//
// 只有格式错误与超限错误有对应的响应；传输错误与超时直接返回。
func (s *Server) writeErrorResponse(ctx context.Context, sock *Socket, ex *protocol.Exchange, err error) error {
	code := 0
	switch {
	case errors.Is(err, errs.ErrMalformedRequest):
		code = consts.StatusBadRequest
	case errors.Is(err, errs.ErrHeaderTooLarge):
		code = consts.StatusRequestHeaderFieldsTooLarge
	case errors.Is(err, errs.ErrBodyTooLarge):
		code = consts.StatusRequestEntityTooLarge
	}
	if code != 0 {
		ws := sock.WriteState()
		if ws == resp.StateNotStarted || ws == resp.StateContinueIssued {
			s.writeStatus(ctx, sock, ex, code)
		}
	}
	return err
}

// writeStatus 写出只含状态短语正文的响应，并声明 Connection: close。写出失败仅记录调试日志。
func (s *Server) writeStatus(ctx context.Context, sock *Socket, ex *protocol.Exchange, code int) {
	r := &ex.Response
	r.SetStatusCode(code)
	if s.ServerName != "" {
		r.Header.Set(consts.HeaderServer, s.ServerName)
	}
	r.Header.Set(consts.HeaderContentType, consts.ValueTextPlainUTF)
	r.SetConnectionClose()
	r.SetBodyString(r.Reason)
	if err := sock.WriteResponse(r.StatusCode, r.Reason, &r.Message); err != nil {
		hlog.SystemLogger().CtxDebugf(ctx, "写出 %d 响应失败: %s", code, err)
	}
}

func (s *Server) limits() config.Limits {
	if s.Limits == nil {
		return config.DefaultLimits()
	}
	return s.Limits()
}

func (s *Server) isRunning() bool {
	return s.IsRunning == nil || s.IsRunning()
}

// 这些错误表示连接正常结束或应静默关闭，不计入跟踪错误。
func isSilent(err error) bool {
	return err == nil ||
		errors.Is(err, errs.ErrShortConnection) ||
		errors.Is(err, errs.ErrIdleTimeout) ||
		errs.IsStreamFinished(err)
}

type eventStack []func(ti traceinfo.TraceInfo, err error)

func (e *eventStack) isEmpty() bool {
	return len(*e) == 0
}

// 追加一个跟踪信息回调函数。
func (e *eventStack) push(f func(ti traceinfo.TraceInfo, err error)) {
	*e = append(*e, f)
}

// 弹出最后一个跟踪信息回调函数。
func (e *eventStack) pop() func(ti traceinfo.TraceInfo, err error) {
	if e.isEmpty() {
		return nil
	}
	last := (*e)[len(*e)-1]
	*e = (*e)[:len(*e)-1]
	return last
}
