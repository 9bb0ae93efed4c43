package ut

import (
	"net/http"

	"github.com/favbox/h1engine/protocol"
)

// ResponseRecorder 记录一次交换写出的响应以供测试。
type ResponseRecorder struct {
	Code          int
	Reason        string
	Header        http.Header
	Body          []byte
	Trailer       http.Header
	ContentLength int64
	Chunked       bool
	Close         bool
	// Continued 表示响应前发送过 100 Continue。
	Continued bool
	// Parsed 表示写出的字节能解析出一个完整的最终响应。
	Parsed bool

	// Raw 是连接上写出的全部字节。
	Raw string
	// Err 是连接任务的返回值，正常的静默关闭（短连接、闲置超时）记为 nil。
	Err error
}

// NewRecorder 返回一个空的响应记录器。
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{
		Header:  http.Header{},
		Trailer: http.Header{},
	}
}

// Result 以 protocol.Response 的形式返回记录的响应。
//
// 标头名取客户端解析器规范化后的写法。
func (r *ResponseRecorder) Result() *protocol.Response {
	resp := new(protocol.Response)
	resp.StatusCode = r.Code
	resp.Reason = r.Reason
	for name, values := range r.Header {
		for _, v := range values {
			resp.Header.Add(name, v)
		}
	}
	for name, values := range r.Trailer {
		for _, v := range values {
			resp.Trailer.Add(name, v)
		}
	}
	resp.SetBody(r.Body)
	return resp
}
