package resp

import (
	"strings"

	"github.com/favbox/h1engine/common/bytebufferpool"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/internal/bytesconv"
	"github.com/favbox/h1engine/internal/bytestr"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
	"github.com/favbox/h1engine/protocol/http1/ext"
)

const (
	minStatusCode = 200
	maxStatusCode = 999
)

// Writer 是单个连接上的写状态机，约束响应各部分的写出顺序。
//
// 一次性写出：NotStarted|ContinueIssued → WriteResponse → Finished。
// 流式写出：WriteResponseMetadata → ResponseStarted → WriteChunk… → WriteTrailers|WriteEndOfMessage → Finished。
// 任何校验都在写出首个字节之前完成，校验失败时不会向连接写入任何内容。
// 底层写入失败后状态直接置为 Finished，连接不可再用。
type Writer struct {
	w         network.Writer
	state     WriteState
	peerProto string
	skipBody  bool

	chunked   bool
	bodyless  bool
	remaining int
	written   int
}

// NewWriter 创建写入 w 的写状态机，对端协议默认为 HTTP/1.1。
func NewWriter(w network.Writer) *Writer {
	return &Writer{w: w, peerProto: consts.HTTP11}
}

// SetPeerProto 设置对端（请求）的协议版本，决定能否发送 100 Continue 与分块正文。
func (wr *Writer) SetPeerProto(proto string) {
	wr.peerProto = proto
}

// SetSkipBody 设置是否省略正文，用于 HEAD 请求的响应：标头照常写出，正文字节不写。
func (wr *Writer) SetSkipBody(skip bool) {
	wr.skipBody = skip
}

// State 返回当前写状态。
func (wr *Writer) State() WriteState {
	return wr.state
}

// BytesWritten 返回本次交换已写出的字节数（含 100 Continue）。
func (wr *Writer) BytesWritten() int {
	return wr.written
}

// Reset 回到 NotStarted。
func (wr *Writer) Reset() {
	wr.state = StateNotStarted
	wr.peerProto = consts.HTTP11
	wr.skipBody = false
	wr.chunked = false
	wr.bodyless = false
	wr.remaining = 0
	wr.written = 0
}

// WriteContinue 写出并刷新 "HTTP/1.1 100 Continue" 临时响应，进入 ContinueIssued。
//
// 仅在 NotStarted 状态且对端为 HTTP/1.1 时可用。
func (wr *Writer) WriteContinue() error {
	if wr.state != StateNotStarted {
		return invalidSequence("WriteContinue", wr.state)
	}
	if wr.peerProto != consts.HTTP11 {
		return errs.NewInvalidWrite("不能向 %s 对端发送 100 Continue", wr.peerProto)
	}
	if _, err := wr.w.WriteBinary(bytestr.StrResponseContinue); err != nil {
		return wr.fail(err)
	}
	if err := wr.w.Flush(); err != nil {
		return wr.fail(err)
	}
	wr.written += len(bytestr.StrResponseContinue)
	wr.state = StateContinueIssued
	return nil
}

// WriteResponse 一次性写出状态行、标头和正文并刷新，进入 Finished。
//
// 分帧规则：
//   - 未声明分帧时自动补写 Content-Length（1xx、204、304 除外）；
//   - 声明的 Content-Length 必须等于正文长度；
//   - 声明 Transfer-Encoding: chunked 时正文作为单个分块写出，随后写出结束分块与 m.Trailer；
//   - 向 HTTP/1.0 对端分块、其他传输编码、同时声明两者、204/304 携带正文均视为无效写入顺序。
func (wr *Writer) WriteResponse(code int, reason string, m *protocol.Message) error {
	if wr.state != StateNotStarted && wr.state != StateContinueIssued {
		return invalidSequence("WriteResponse", wr.state)
	}
	p, err := wr.plan(code, reason, m, false)
	if err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	appendHead(buf, code, reason, &m.Header)
	if p.autoLength {
		buf.WriteString(consts.HeaderContentLength)
		buf.Write(bytestr.StrColonSpace)
		buf.B = bytesconv.AppendUint(buf.B, len(m.Body))
		buf.Write(bytestr.StrCRLF)
	}
	buf.Write(bytestr.StrCRLF)

	if _, err = wr.w.WriteBinary(buf.B); err != nil {
		return wr.fail(err)
	}
	written := buf.Len()

	if !wr.skipBody && !p.bodyless {
		if p.chunked {
			var n int
			if len(m.Body) > 0 {
				if n, err = ext.WriteChunk(wr.w, m.Body, false); err != nil {
					return wr.fail(err)
				}
				written += n
			}
			if _, err = wr.w.WriteBinary(bytestr.StrLastChunk); err != nil {
				return wr.fail(err)
			}
			written += len(bytestr.StrLastChunk)
			if n, err = ext.WriteTrailer(wr.w, &m.Trailer); err != nil {
				return wr.fail(err)
			}
			written += n
		} else if len(m.Body) > 0 {
			if _, err = wr.w.WriteBinary(m.Body); err != nil {
				return wr.fail(err)
			}
			written += len(m.Body)
		}
	}

	if err = wr.w.Flush(); err != nil {
		return wr.fail(err)
	}
	wr.written += written
	wr.state = StateFinished
	return nil
}

// WriteResponseMetadata 写出状态行与标头并刷新，进入 ResponseStarted，正文随后由 WriteChunk 写出。
//
// 声明了 Content-Length 时按定长写出，否则使用分块传输（HTTP/1.0 对端必须声明 Content-Length）。
func (wr *Writer) WriteResponseMetadata(code int, reason string, m *protocol.Message) error {
	if wr.state != StateNotStarted && wr.state != StateContinueIssued {
		return invalidSequence("WriteResponseMetadata", wr.state)
	}
	p, err := wr.plan(code, reason, m, true)
	if err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	appendHead(buf, code, reason, &m.Header)
	if p.autoChunked {
		buf.WriteHeaderLine(consts.HeaderTransferEncoding, consts.ValueChunked)
	}
	buf.Write(bytestr.StrCRLF)

	if _, err = wr.w.WriteBinary(buf.B); err != nil {
		return wr.fail(err)
	}
	if err = wr.w.Flush(); err != nil {
		return wr.fail(err)
	}
	wr.written += buf.Len()
	wr.chunked = p.chunked
	wr.bodyless = p.bodyless
	wr.remaining = p.length
	wr.state = StateResponseStarted
	return nil
}

// WriteChunk 写出一段正文并刷新。仅在 ResponseStarted 状态可用。
//
// 定长响应累计写出的正文不得超过声明的长度；分块响应中空的 p 被忽略。
func (wr *Writer) WriteChunk(p []byte) error {
	if wr.state != StateResponseStarted {
		return invalidSequence("WriteChunk", wr.state)
	}
	if len(p) == 0 {
		return nil
	}
	if wr.bodyless {
		return errs.NewInvalidWrite("该响应不允许携带正文")
	}
	if wr.skipBody {
		return nil
	}

	if wr.chunked {
		n, err := ext.WriteChunk(wr.w, p, true)
		if err != nil {
			return wr.fail(err)
		}
		wr.written += n
		return nil
	}

	if len(p) > wr.remaining {
		return errs.NewInvalidWrite("正文超出声明的 Content-Length，剩余 %d 字节，本次 %d 字节", wr.remaining, len(p))
	}
	if _, err := wr.w.WriteBinary(p); err != nil {
		return wr.fail(err)
	}
	if err := wr.w.Flush(); err != nil {
		return wr.fail(err)
	}
	wr.remaining -= len(p)
	wr.written += len(p)
	return nil
}

// WriteTrailers 写出结束分块与挂车并刷新，进入 Finished。仅适用于分块响应。
func (wr *Writer) WriteTrailers(t *protocol.Headers) error {
	if wr.state != StateResponseStarted {
		return invalidSequence("WriteTrailers", wr.state)
	}
	if !wr.chunked {
		return errs.NewInvalidWrite("非分块响应不能写出挂车")
	}
	if err := validateHeaders(t); err != nil {
		return err
	}
	if wr.skipBody {
		wr.state = StateFinished
		return nil
	}

	if _, err := wr.w.WriteBinary(bytestr.StrLastChunk); err != nil {
		return wr.fail(err)
	}
	n, err := ext.WriteTrailer(wr.w, t)
	if err != nil {
		return wr.fail(err)
	}
	if err = wr.w.Flush(); err != nil {
		return wr.fail(err)
	}
	wr.written += len(bytestr.StrLastChunk) + n
	wr.state = StateFinished
	return nil
}

// WriteEndOfMessage 结束流式响应，进入 Finished。定长响应必须已写满声明的长度。
func (wr *Writer) WriteEndOfMessage() error {
	if wr.state != StateResponseStarted {
		return invalidSequence("WriteEndOfMessage", wr.state)
	}
	if wr.chunked {
		return wr.WriteTrailers(nil)
	}
	if !wr.skipBody && wr.remaining > 0 {
		return errs.NewInvalidWrite("正文未写完，尚缺 %d 字节", wr.remaining)
	}
	wr.state = StateFinished
	return nil
}

type framingPlan struct {
	chunked     bool
	autoLength  bool // 需补写 Content-Length
	autoChunked bool // 需补写 Transfer-Encoding: chunked
	bodyless    bool
	length      int
}

func (wr *Writer) plan(code int, reason string, m *protocol.Message, streaming bool) (p framingPlan, err error) {
	if code < minStatusCode || code > maxStatusCode {
		return p, errs.NewInvalidWrite("无效的状态码 %d", code)
	}
	if strings.ContainsAny(reason, "\r\n") {
		return p, errs.NewInvalidWrite("原因短语不能包含 CR 或 LF")
	}
	if err = validateHeaders(&m.Header); err != nil {
		return p, err
	}

	p.bodyless = consts.BodyForbidden(code)
	cl, hasCL := m.Header.Lookup(consts.HeaderContentLength)
	te, hasTE := m.Header.Lookup(consts.HeaderTransferEncoding)

	if hasCL && hasTE {
		return p, errs.NewInvalidWrite("Content-Length 与 Transfer-Encoding 不能同时声明")
	}
	if p.bodyless && (len(m.Body) > 0 || hasTE) {
		return p, errs.NewInvalidWrite("状态码 %d 的响应不能携带正文", code)
	}

	switch {
	case hasTE:
		if !strings.EqualFold(strings.Trim(te, " \t"), consts.ValueChunked) {
			return p, errs.NewInvalidWrite("不支持的传输编码 %q", te)
		}
		if wr.peerProto != consts.HTTP11 {
			return p, errs.NewInvalidWrite("不能向 %s 对端发送分块正文", wr.peerProto)
		}
		p.chunked = true
	case hasCL:
		n, perr := bytesconv.ParseUint(bytesconv.S2b(strings.Trim(cl, " \t")))
		if perr != nil {
			return p, errs.NewInvalidWrite("无效的 Content-Length %q", cl)
		}
		p.length = n
		// HEAD 与 304 的 Content-Length 描述的是被省略的正文
		omitted := len(m.Body) == 0 && (wr.skipBody || code == consts.StatusNotModified)
		if !streaming && n != len(m.Body) && !omitted {
			return p, errs.NewInvalidWrite("Content-Length 为 %d，但正文长度为 %d", n, len(m.Body))
		}
		if p.bodyless {
			p.length = 0
		}
	case p.bodyless:
	case streaming:
		if wr.peerProto != consts.HTTP11 {
			return p, errs.NewInvalidWrite("向 %s 对端流式写出时必须声明 Content-Length", wr.peerProto)
		}
		p.chunked = true
		p.autoChunked = true
	default:
		p.autoLength = true
	}

	if m.Trailer.Len() > 0 {
		if !p.chunked {
			return p, errs.NewInvalidWrite("非分块响应不能携带挂车")
		}
		if err = validateHeaders(&m.Trailer); err != nil {
			return p, err
		}
	}
	return p, nil
}

// 原因短语为空时使用状态码的标准短语。
func appendHead(buf *bytebufferpool.ByteBuffer, code int, reason string, h *protocol.Headers) {
	if reason == "" {
		reason = consts.StatusMessage(code)
	}
	buf.Write(bytestr.StrHTTP11)
	buf.WriteByte(' ')
	buf.B = bytesconv.AppendUint(buf.B, code)
	buf.WriteByte(' ')
	buf.WriteString(reason)
	buf.Write(bytestr.StrCRLF)
	h.VisitAll(buf.WriteHeaderLine)
}

func validateHeaders(h *protocol.Headers) error {
	if h == nil {
		return nil
	}
	var bad string
	h.VisitAll(func(name, value string) {
		if bad == "" && !ext.ValidHeaderField(name, value) {
			bad = name
		}
	})
	if bad != "" {
		return errs.New(errs.ErrInvalidHeaderField, errs.ErrorTypePrivate, bad)
	}
	return nil
}

func (wr *Writer) fail(err error) error {
	wr.state = StateFinished
	return ext.WriteError(wr.w, err)
}

func invalidSequence(op string, state WriteState) error {
	return errs.NewInvalidWrite("操作=%s, 状态=%s", op, state)
}
