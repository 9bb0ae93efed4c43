package protocol

import "github.com/favbox/h1engine/protocol/consts"

// Request 表示已解析的请求：请求行加消息。
type Request struct {
	Method string
	Path   string
	Proto  string
	Message
}

// IsHTTP11 报告请求是否为 HTTP/1.1。
func (req *Request) IsHTTP11() bool {
	return req.Proto == consts.HTTP11
}

// IsHead 报告请求方法是否为 HEAD。
func (req *Request) IsHead() bool {
	return req.Method == consts.MethodHead
}

// ConnectionClose 报告请求是否携带了 Connection: close。
func (req *Request) ConnectionClose() bool {
	return HasToken(req.Header.Get(consts.HeaderConnection), consts.ValueClose)
}

// Reset 清空请求以便复用。
func (req *Request) Reset() {
	req.Method = ""
	req.Path = ""
	req.Proto = ""
	req.Message.Reset()
}
