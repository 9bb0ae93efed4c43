// Package ut 提供处理器的单元测试工具：无需网络，经由真实的连接任务执行一次交换。
package ut

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/mock"
	"github.com/favbox/h1engine/internal/bytestr"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/http1"
)

// Header 表明一个 http 标头的键值对。
type Header struct {
	Key   string
	Value string
}

// Body 用于设置请求正文。Len 小于 0 时以分块编码发送。
type Body struct {
	Body io.Reader
	Len  int
}

// PerformRequest 将构造好的请求交给 h 处理（无需网络传输），返回记录下的响应。
//
// 请求经 HTTP/1 连接任务完整解析，响应字节再以独立的客户端解析器读回，
// 因此也能检验成帧（Content-Length、分块、挂车）是否正确。
//
// 查看 ./request_test.go 了解更多示例。
func PerformRequest(h protocol.Handler, method, url string, body *Body, headers ...Header) *ResponseRecorder {
	return PerformRaw(h, BuildRequest(method, url, body, headers...), config.DefaultLimits())
}

// PerformRaw 以 limits 处理原始请求字节 raw，可用于构造畸形或超限的请求。
func PerformRaw(h protocol.Handler, raw string, limits config.Limits) *ResponseRecorder {
	conn := mock.NewConn(raw)
	s := http1.NewServer(http1.Option{
		Limits: func() config.Limits { return limits },
	}, h, nil)

	w := NewRecorder()
	w.Err = s.Serve(context.Background(), conn)
	// 短连接结束与闲置超时是正常的静默关闭
	if errors.Is(w.Err, errs.ErrShortConnection) || errors.Is(w.Err, errs.ErrIdleTimeout) {
		w.Err = nil
	}
	w.Raw = conn.Output()
	w.parse(requestMethod(raw))
	return w
}

// BuildRequest 拼接一个 HTTP/1.1 请求。
func BuildRequest(method, url string, body *Body, headers ...Header) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(url)
	b.WriteByte(' ')
	b.Write(bytestr.StrHTTP11)
	b.Write(bytestr.StrCRLF)
	for _, h := range headers {
		b.WriteString(h.Key)
		b.Write(bytestr.StrColonSpace)
		b.WriteString(h.Value)
		b.Write(bytestr.StrCRLF)
	}

	var payload []byte
	if body != nil && body.Body != nil {
		payload, _ = io.ReadAll(body.Body)
	}
	switch {
	case body == nil:
	case body.Len < 0:
		b.WriteString("Transfer-Encoding: chunked\r\n\r\n")
		b.Write(mock.ChunkedBody(payload, 3))
		return b.String()
	default:
		if body.Len < len(payload) {
			payload = payload[:body.Len]
		}
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(payload)))
		b.Write(bytestr.StrCRLF)
	}
	b.Write(bytestr.StrCRLF)
	b.Write(payload)
	return b.String()
}

func requestMethod(raw string) string {
	if i := strings.IndexByte(raw, ' '); i > 0 {
		return raw[:i]
	}
	return ""
}

// 读回第一个响应；若存在 100 Continue 临时响应则跳过。
func (r *ResponseRecorder) parse(reqMethod string) {
	br := bufio.NewReader(strings.NewReader(r.Raw))
	for {
		resp, err := http.ReadResponse(br, &http.Request{Method: reqMethod})
		if err != nil {
			return
		}
		if resp.StatusCode == http.StatusContinue {
			r.Continued = true
			continue
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return
		}
		r.Code = resp.StatusCode
		r.Reason = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
		r.Header = resp.Header
		r.Body = body
		r.Trailer = resp.Trailer
		r.ContentLength = resp.ContentLength
		r.Chunked = len(resp.TransferEncoding) > 0
		r.Close = resp.Close
		r.Parsed = true
		return
	}
}
