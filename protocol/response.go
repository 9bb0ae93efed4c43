package protocol

import (
	"io"

	"github.com/favbox/h1engine/protocol/consts"
)

// Response 表示待写出的响应。
//
// BodyStream 非空时，连接任务改走流式写出：定长（声明了 Content-Length）或分块。
type Response struct {
	StatusCode int
	Reason     string
	Message
	BodyStream io.Reader
}

// SetStatusCode 设置状态码，原因短语取标准值。
func (resp *Response) SetStatusCode(code int) {
	resp.StatusCode = code
	resp.Reason = consts.StatusMessage(code)
}

// ConnectionClose 报告响应是否声明了 Connection: close。
func (resp *Response) ConnectionClose() bool {
	return HasToken(resp.Header.Get(consts.HeaderConnection), consts.ValueClose)
}

// SetConnectionClose 设置 Connection: close。
func (resp *Response) SetConnectionClose() {
	resp.Header.Set(consts.HeaderConnection, consts.ValueClose)
}

// SetBodyStream 设置流式正文。
func (resp *Response) SetBodyStream(r io.Reader) {
	resp.BodyStream = r
}

// Reset 清空响应以便复用。
func (resp *Response) Reset() {
	resp.StatusCode = 0
	resp.Reason = ""
	resp.BodyStream = nil
	resp.Message.Reset()
}
