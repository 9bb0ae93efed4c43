package http1

import (
	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/http1/ext"
	"github.com/favbox/h1engine/protocol/http1/req"
	"github.com/favbox/h1engine/protocol/http1/resp"
)

// Socket 持有一个连接及其读写两个状态机。
//
// 读写两侧的顺序约束由各自的状态机负责；Socket 额外保证响应按请求顺序写出：
// 上一个响应未完成时不能读取下一个请求。
type Socket struct {
	conn network.Conn
	r    *req.Reader
	w    *resp.Writer
}

// NewSocket 创建 conn 上的 Socket，读取受 limits 约束。
func NewSocket(conn network.Conn, limits config.Limits) *Socket {
	return &Socket{
		conn: conn,
		r:    req.NewReader(conn, limits),
		w:    resp.NewWriter(conn),
	}
}

// Conn 返回底层连接。
func (s *Socket) Conn() network.Conn {
	return s.conn
}

// SetLimits 替换读取限制，在下一个请求开始前调用。
func (s *Socket) SetLimits(limits config.Limits) {
	s.r.SetLimits(limits)
}

func (s *Socket) ReadState() req.ReadState {
	return s.r.State()
}

func (s *Socket) WriteState() resp.WriteState {
	return s.w.State()
}

// KeepAlive 报告当前请求是否协商了长连接。
func (s *Socket) KeepAlive() bool {
	return s.r.KeepAlive()
}

// BytesRead 返回当前请求已读取的标头与正文字节数，不含挂车。
func (s *Socket) BytesRead() int {
	return s.r.HeadLength() + s.r.BodyRead()
}

// BytesWritten 返回当前响应已写出的字节数。
func (s *Socket) BytesWritten() int {
	return s.w.BytesWritten()
}

// Await 等待下一个请求的首个字节到达，对端在此之前关闭时返回 ErrStreamFinished。
func (s *Socket) Await() error {
	return s.r.Await()
}

// ReadRequest 读取下一个请求的请求行与标头，要求写状态为 NotStarted。
func (s *Socket) ReadRequest(r *protocol.Request) error {
	if ws := s.w.State(); ws != resp.StateNotStarted {
		return errs.New(errs.ErrInvalidReadSequence, errs.ErrorTypePrivate, "操作=ReadRequest, 写状态="+ws.String())
	}
	if err := s.r.ReadRequest(r); err != nil {
		return err
	}
	s.w.SetPeerProto(r.Proto)
	s.w.SetSkipBody(r.IsHead())
	return nil
}

// ReadSome 读取下一段正文，见 req.Reader.ReadSome。
func (s *Socket) ReadSome(m *protocol.Message) (int, error) {
	return s.r.ReadSome(m)
}

// ReadTrailers 读取挂车，见 req.Reader.ReadTrailers。
func (s *Socket) ReadTrailers(m *protocol.Message) error {
	return s.r.ReadTrailers(m)
}

// RequiresContinue 报告客户端是否在等待 100 Continue 之后才发送正文。
func (s *Socket) RequiresContinue(r *protocol.Request) bool {
	return ext.RequiresContinue(&r.Header, r.Proto)
}

func (s *Socket) WriteContinue() error {
	return s.w.WriteContinue()
}

func (s *Socket) WriteResponse(code int, reason string, m *protocol.Message) error {
	return s.w.WriteResponse(code, reason, m)
}

func (s *Socket) WriteResponseMetadata(code int, reason string, m *protocol.Message) error {
	return s.w.WriteResponseMetadata(code, reason, m)
}

func (s *Socket) WriteChunk(p []byte) error {
	return s.w.WriteChunk(p)
}

func (s *Socket) WriteTrailers(t *protocol.Headers) error {
	return s.w.WriteTrailers(t)
}

func (s *Socket) WriteEndOfMessage() error {
	return s.w.WriteEndOfMessage()
}

// SetSkipBody 覆盖当前响应是否省略正文，ReadRequest 会按请求方法预先设置。
func (s *Socket) SetSkipBody(skip bool) {
	s.w.SetSkipBody(skip)
}

// Reset 为下一次交换复位两个状态机。
//
// 仅当请求已读完（Empty）且响应未开始或已完成时允许，否则返回 ErrInvalidReadSequence。
func (s *Socket) Reset() error {
	rs, ws := s.r.State(), s.w.State()
	if rs != req.StateEmpty || (ws != resp.StateNotStarted && ws != resp.StateFinished) {
		return errs.New(errs.ErrInvalidReadSequence, errs.ErrorTypePrivate,
			"操作=Reset, 读状态="+rs.String()+", 写状态="+ws.String())
	}
	s.r.Reset()
	s.w.Reset()
	return nil
}

// Close 关闭底层连接。
func (s *Socket) Close() error {
	return s.conn.Close()
}
