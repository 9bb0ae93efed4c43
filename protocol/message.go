package protocol

// Message 是请求与响应共用的数据部分：标头、正文以及分块传输之后的挂车。
//
// 读取期间由读状态机逐步填充，只有读状态回到 Empty 后才被视为完整并交给处理器。
type Message struct {
	Header  Headers
	Body    []byte
	Trailer Headers
}

// AppendBody 向正文追加 p。
func (m *Message) AppendBody(p []byte) {
	m.Body = append(m.Body, p...)
}

// SetBody 以 p 的副本替换正文。
func (m *Message) SetBody(p []byte) {
	m.Body = append(m.Body[:0], p...)
}

// SetBodyString 以 s 替换正文。
func (m *Message) SetBodyString(s string) {
	m.Body = append(m.Body[:0], s...)
}

// Reset 清空标头、正文和挂车，保留已分配的内存。
func (m *Message) Reset() {
	m.Header.Reset()
	m.Body = m.Body[:0]
	m.Trailer.Reset()
}
