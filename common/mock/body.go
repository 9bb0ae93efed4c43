package mock

import "strconv"

// ChunkedBody 将 body 编码为分块正文：首块 first 字节，之后每块比前一块多 1 字节，
// 以零长度块与 trailer（按 "名: 值" 成对给出）结束。first<1 时按 1 处理。
func ChunkedBody(body []byte, first int, trailer ...string) []byte {
	if first < 1 {
		first = 1
	}
	var b []byte
	for size := first; len(body) > 0; size++ {
		if size > len(body) {
			size = len(body)
		}
		b = strconv.AppendInt(b, int64(size), 16)
		b = append(b, "\r\n"...)
		b = append(b, body[:size]...)
		b = append(b, "\r\n"...)
		body = body[size:]
	}
	b = append(b, "0\r\n"...)
	for i := 0; i+1 < len(trailer); i += 2 {
		b = append(b, trailer[i]...)
		b = append(b, ": "...)
		b = append(b, trailer[i+1]...)
		b = append(b, "\r\n"...)
	}
	return append(b, "\r\n"...)
}
