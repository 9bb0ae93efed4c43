package req

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/internal/bytesconv"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
	"github.com/favbox/h1engine/protocol/http1/ext"
	"golang.org/x/net/http/httpguts"
)

// Reader 是单个连接上的读状态机：把连接送达的字节逐步解析为请求。
//
// 状态流转：Empty → ReadRequest → MessageReady → ReadSome… →
// 定长或无正文时直接回到 Empty；分块时到达 BodyReady → ReadTrailers → Empty。
//
// Reader 不是并发安全的，同一连接上的读取严格顺序进行。
type Reader struct {
	r      network.Reader
	limits config.Limits

	state     ReadState
	framing   framing
	remaining int  // 定长：剩余字节；分块：当前分块剩余字节，-1 表示等待分块大小行
	chunkCRLF bool // 分块数据之后等待 CRLF
	bodyRead  int
	headLen   int
	keepAlive bool
}

// NewReader 创建从 r 读取的读状态机。
func NewReader(r network.Reader, limits config.Limits) *Reader {
	return &Reader{r: r, limits: limits}
}

// SetLimits 更新限制，在下一次 ReadRequest 时生效。
func (rd *Reader) SetLimits(limits config.Limits) {
	rd.limits = limits
}

// State 返回当前读状态。
func (rd *Reader) State() ReadState {
	return rd.state
}

// KeepAlive 报告当前请求是否协商了长连接：
// HTTP/1.1 未声明 Connection: close，或 HTTP/1.0 声明了 Connection: keep-alive。
func (rd *Reader) KeepAlive() bool {
	return rd.keepAlive
}

// BodyRead 返回当前请求已读取的正文字节数。
func (rd *Reader) BodyRead() int {
	return rd.bodyRead
}

// HeadLength 返回当前请求首部（含前导空行）的字节数。
func (rd *Reader) HeadLength() int {
	return rd.headLen
}

// Reset 回到 Empty。不会丢弃连接中尚未读取的数据。
func (rd *Reader) Reset() {
	rd.state = StateEmpty
	rd.framing = framingNone
	rd.remaining = 0
	rd.chunkCRLF = false
	rd.bodyRead = 0
	rd.headLen = 0
	rd.keepAlive = false
}

// Await 等待新请求的首个字节到达。
//
// 对端在此之前关闭连接时返回 ErrStreamFinished。
func (rd *Reader) Await() error {
	if rd.r.Len() > 0 {
		return nil
	}
	if _, err := rd.r.Peek(1); err != nil {
		return ext.ReadError(rd.r, err, true)
	}
	return nil
}

// ReadRequest 读取请求行与标头到 req，成功后进入 MessageReady。仅在 Empty 状态可用。
//
// 对端在新请求的任何字节（前导空行除外）到达前关闭时返回 ErrStreamFinished，
// 首部超过 MaxHeaderBytes 返回 ErrHeaderTooLarge，声明的正文超过 MaxBodyBytes 返回 ErrBodyTooLarge，
// 违反报文语法返回 ErrMalformedRequest。
func (rd *Reader) ReadRequest(req *protocol.Request) error {
	if rd.state != StateEmpty {
		return invalidSequence("ReadRequest", rd.state)
	}
	req.Reset()
	rd.Reset()

	n := 1
	for {
		err := rd.tryReadHead(req, n)
		if err == nil {
			rd.state = StateMessageReady
			return nil
		}
		if !errors.Is(err, errs.ErrNeedMore) {
			req.Reset()
			rd.Reset()
			return err
		}

		// 缓冲区中的数据不足以构成完整首部，阻塞等待更多数据
		if n == rd.r.Len() {
			n++
		} else {
			n = rd.r.Len()
		}
		if n < 1 {
			n = 1
		}
	}
}

func (rd *Reader) tryReadHead(req *protocol.Request, n int) error {
	if _, err := rd.r.Peek(n); err != nil {
		buf, _ := peekBuffered(rd.r)
		return ext.ReadError(rd.r, err, len(buf) == ext.SkipEmptyLines(buf))
	}
	buf, err := peekBuffered(rd.r)
	if err != nil {
		return ext.ReadError(rd.r, err, false)
	}

	// 丢弃前导空行，避免其无限占用缓冲区
	if skip := ext.SkipEmptyLines(buf); skip > 0 {
		if err = rd.r.Skip(skip); err != nil {
			return ext.ReadError(rd.r, err, false)
		}
		rd.headLen += skip
		return errs.ErrNeedMore
	}

	maxHeaderBytes := rd.limits.MaxHeaderBytes
	hl := ext.HeadLength(buf)
	if hl < 0 {
		if len(buf) >= maxHeaderBytes {
			return headerTooLarge(maxHeaderBytes)
		}
		return errs.ErrNeedMore
	}
	if hl > maxHeaderBytes {
		return headerTooLarge(maxHeaderBytes)
	}

	if err = rd.parseHead(req, buf[:hl]); err != nil {
		return err
	}
	if err = rd.r.Skip(hl); err != nil {
		return ext.ReadError(rd.r, err, false)
	}
	rd.headLen += hl
	return nil
}

func (rd *Reader) parseHead(req *protocol.Request, head []byte) error {
	line, rest, _ := ext.NextLine(head)
	if err := parseRequestLine(req, line); err != nil {
		return err
	}
	if err := ext.ParseHeaderBlock(rest, &req.Header, nil); err != nil {
		return err
	}
	if err := rd.parseFraming(req); err != nil {
		return err
	}

	conn := req.Header.Get(consts.HeaderConnection)
	if req.IsHTTP11() {
		rd.keepAlive = !protocol.HasToken(conn, consts.ValueClose)
	} else {
		rd.keepAlive = protocol.HasToken(conn, consts.ValueKeepAlive) && !protocol.HasToken(conn, consts.ValueClose)
	}
	return nil
}

// 解析 `METHOD SP request-target SP HTTP/1.x`。
func parseRequestLine(req *protocol.Request, line []byte) error {
	i := bytes.IndexByte(line, ' ')
	if i <= 0 {
		return errs.NewMalformed("无法找到请求方法 %s", ext.BufferSnippet(line))
	}
	method := line[:i]
	if !httpguts.ValidHeaderFieldName(bytesconv.B2s(method)) {
		return errs.NewMalformed("无效的请求方法 %q", method)
	}

	rest := line[i+1:]
	j := bytes.LastIndexByte(rest, ' ')
	if j < 0 {
		return errs.NewMalformed("请求行缺少协议版本 %s", ext.BufferSnippet(line))
	}
	target, version := rest[:j], rest[j+1:]
	if len(target) == 0 {
		return errs.NewMalformed("请求目标不能为空 %s", ext.BufferSnippet(line))
	}
	for _, c := range target {
		if c <= ' ' || c == 0x7f {
			return errs.NewMalformed("请求目标含有非法字符 %s", ext.BufferSnippet(line))
		}
	}

	switch {
	case bytes.Equal(version, []byte(consts.HTTP10)):
		req.Proto = consts.HTTP10
	case len(version) == len(consts.HTTP11) && bytes.HasPrefix(version, []byte("HTTP/1.")) &&
		version[7] >= '1' && version[7] <= '9':
		req.Proto = consts.HTTP11
	default:
		return errs.NewMalformed("不支持的协议版本 %q", version)
	}

	req.Method = string(method)
	req.Path = string(target)
	return nil
}

func (rd *Reader) parseFraming(req *protocol.Request) error {
	te, hasTE := req.Header.Lookup(consts.HeaderTransferEncoding)
	cl, hasCL := req.Header.Lookup(consts.HeaderContentLength)

	if hasTE {
		if !req.IsHTTP11() {
			return errs.NewMalformed("HTTP/1.0 请求不允许 Transfer-Encoding")
		}
		if hasCL {
			return errs.NewMalformed("Transfer-Encoding 与 Content-Length 不能同时出现")
		}
		if !strings.EqualFold(lastCoding(te), consts.ValueChunked) {
			return errs.NewMalformed("不支持的传输编码 %q", te)
		}
		rd.framing = framingChunked
		rd.remaining = -1
		return nil
	}

	if !hasCL {
		rd.framing = framingNone
		return nil
	}
	n, err := parseContentLength(cl)
	if err != nil {
		return err
	}
	if n > rd.limits.MaxBodyBytes {
		return bodyTooLarge(rd.limits.MaxBodyBytes)
	}
	if n == 0 {
		rd.framing = framingNone
		return nil
	}
	rd.framing = framingFixed
	rd.remaining = n
	return nil
}

// 重复的 Content-Length 已被合并为 "a, b"，各值必须相同。
func parseContentLength(v string) (int, error) {
	n := -1
	for _, s := range strings.Split(v, ",") {
		s = strings.Trim(s, " \t")
		m, err := bytesconv.ParseUint(bytesconv.S2b(s))
		if err != nil {
			return -1, errs.NewMalformed("无效的 Content-Length %q", v)
		}
		if n >= 0 && m != n {
			return -1, errs.NewMalformed("不一致的 Content-Length %q", v)
		}
		n = m
	}
	return n, nil
}

func lastCoding(te string) string {
	if i := strings.LastIndexByte(te, ','); i >= 0 {
		te = te[i+1:]
	}
	return strings.Trim(te, " \t")
}

// ReadSome 将下一段可用的正文追加到 m.Body，返回本次读取的字节数。仅在 MessageReady 状态可用。
//
// 每次最多返回一个已缓冲的片段，且不超过分帧声明的范围。
// 定长正文读完即回到 Empty；分块正文遇到结束分块时进入 BodyReady 并返回 0；
// 无正文的请求直接返回 0 并回到 Empty。
func (rd *Reader) ReadSome(m *protocol.Message) (int, error) {
	if rd.state != StateMessageReady {
		return 0, invalidSequence("ReadSome", rd.state)
	}

	switch rd.framing {
	case framingFixed:
		n, err := rd.readData(m, rd.remaining)
		if err != nil {
			return 0, err
		}
		rd.remaining -= n
		if rd.remaining == 0 {
			rd.state = StateEmpty
		}
		return n, nil
	case framingChunked:
		return rd.readChunk(m)
	default:
		rd.state = StateEmpty
		return 0, nil
	}
}

func (rd *Reader) readChunk(m *protocol.Message) (int, error) {
	if rd.chunkCRLF {
		b, err := rd.r.Peek(2)
		if err != nil {
			return 0, ext.ReadError(rd.r, err, false)
		}
		if b[0] != '\r' || b[1] != '\n' {
			return 0, errs.NewMalformed("分块数据之后缺少 CRLF")
		}
		if err = rd.r.Skip(2); err != nil {
			return 0, ext.ReadError(rd.r, err, false)
		}
		rd.chunkCRLF = false
		rd.remaining = -1
	}

	if rd.remaining < 0 {
		line, err := rd.peekLine(ext.MaxChunkLineBytes)
		if err != nil {
			return 0, err
		}
		size, err := ext.ParseChunkSize(trimEOL(line))
		if err != nil {
			return 0, err
		}
		if err = rd.r.Skip(len(line)); err != nil {
			return 0, ext.ReadError(rd.r, err, false)
		}
		if size == 0 {
			rd.remaining = 0
			rd.state = StateBodyReady
			return 0, nil
		}
		if rd.bodyRead+size > rd.limits.MaxBodyBytes {
			return 0, bodyTooLarge(rd.limits.MaxBodyBytes)
		}
		rd.remaining = size
	}

	n, err := rd.readData(m, rd.remaining)
	if err != nil {
		return 0, err
	}
	rd.remaining -= n
	if rd.remaining == 0 {
		rd.chunkCRLF = true
	}
	return n, nil
}

// 读取至多 limit 字节的正文数据，只消费已缓冲的部分，缓冲为空时等待下一个片段。
func (rd *Reader) readData(m *protocol.Message, limit int) (int, error) {
	avail := rd.r.Len()
	if avail == 0 {
		if _, err := rd.r.Peek(1); err != nil {
			return 0, ext.ReadError(rd.r, err, false)
		}
		avail = rd.r.Len()
	}
	n := limit
	if avail < n {
		n = avail
	}
	b, err := rd.r.Peek(n)
	if err != nil {
		return 0, ext.ReadError(rd.r, err, false)
	}
	m.AppendBody(b)
	if err = rd.r.Skip(n); err != nil {
		return 0, ext.ReadError(rd.r, err, false)
	}
	rd.bodyRead += n
	return n, nil
}

// ReadTrailers 读取分块正文之后的挂车到 m.Trailer，成功后回到 Empty。仅在 BodyReady 状态可用。
func (rd *Reader) ReadTrailers(m *protocol.Message) error {
	if rd.state != StateBodyReady {
		return invalidSequence("ReadTrailers", rd.state)
	}

	n := 1
	for {
		err := rd.tryReadTrailers(m, n)
		if err == nil {
			rd.state = StateEmpty
			return nil
		}
		if !errors.Is(err, errs.ErrNeedMore) {
			m.Trailer.Reset()
			return err
		}
		if n == rd.r.Len() {
			n++
		} else {
			n = rd.r.Len()
		}
	}
}

func (rd *Reader) tryReadTrailers(m *protocol.Message, n int) error {
	if _, err := rd.r.Peek(n); err != nil {
		return ext.ReadError(rd.r, err, false)
	}
	buf, err := peekBuffered(rd.r)
	if err != nil {
		return ext.ReadError(rd.r, err, false)
	}

	maxHeaderBytes := rd.limits.MaxHeaderBytes
	hl := ext.HeadLength(buf)
	if hl < 0 {
		if len(buf) >= maxHeaderBytes {
			return headerTooLarge(maxHeaderBytes)
		}
		return errs.ErrNeedMore
	}
	if hl > maxHeaderBytes {
		return headerTooLarge(maxHeaderBytes)
	}

	m.Trailer.Reset()
	err = ext.ParseHeaderBlock(buf[:hl], &m.Trailer, func(name, _ []byte) error {
		if ext.IsForbiddenTrailer(bytesconv.B2s(name)) {
			return errs.NewMalformed("挂车中不允许出现 %q", name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err = rd.r.Skip(hl); err != nil {
		return ext.ReadError(rd.r, err, false)
	}
	return nil
}

// 返回以 '\n' 结尾的一行（含行尾），数据不足时等待，超过 max 字节仍无行尾则判为格式错误。
func (rd *Reader) peekLine(max int) ([]byte, error) {
	n := 1
	for {
		if _, err := rd.r.Peek(n); err != nil {
			return nil, ext.ReadError(rd.r, err, false)
		}
		buf, err := peekBuffered(rd.r)
		if err != nil {
			return nil, ext.ReadError(rd.r, err, false)
		}
		if i := bytes.IndexByte(buf, '\n'); i >= 0 && i < max {
			return buf[:i+1], nil
		}
		if len(buf) >= max {
			return nil, errs.NewMalformed("分块大小行超过 %d 字节", max)
		}
		n = len(buf) + 1
	}
}

func peekBuffered(r network.Reader) ([]byte, error) {
	n := r.Len()
	if n == 0 {
		return nil, nil
	}
	return r.Peek(n)
}

func trimEOL(line []byte) []byte {
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}

func invalidSequence(op string, state ReadState) error {
	return errs.New(errs.ErrInvalidReadSequence, errs.ErrorTypePrivate, fmt.Sprintf("操作=%s, 状态=%s", op, state))
}

func headerTooLarge(limit int) error {
	return errs.New(errs.ErrHeaderTooLarge, errs.ErrorTypePublic, fmt.Sprintf("上限=%d", limit))
}

func bodyTooLarge(limit int) error {
	return errs.New(errs.ErrBodyTooLarge, errs.ErrorTypePublic, fmt.Sprintf("上限=%d", limit))
}
