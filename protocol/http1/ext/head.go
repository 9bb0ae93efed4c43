package ext

import (
	"bytes"
	"fmt"

	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/protocol"
	"golang.org/x/net/http/httpguts"
)

// SkipEmptyLines 返回 buf 开头连续空行（CRLF 或 LF）的长度。
//
// 对端在上一条消息之后可能多发了 CRLF，读取新请求前应跳过。
func SkipEmptyLines(buf []byte) int {
	n := 0
	for n < len(buf) {
		switch {
		case buf[n] == '\n':
			n++
		case buf[n] == '\r' && n+1 < len(buf) && buf[n+1] == '\n':
			n += 2
		default:
			return n
		}
	}
	return n
}

// HeadLength 返回 buf 中首部（起始行或挂车开始，直到并包括结尾空行）的长度。
// 首部尚未完整时返回 -1。
func HeadLength(buf []byte) int {
	n := 0
	for {
		i := bytes.IndexByte(buf[n:], '\n')
		if i < 0 {
			return -1
		}
		line := buf[n : n+i]
		n += i + 1
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			return n
		}
	}
}

// NextLine 返回 b 的首行（已去掉行尾 CRLF 或 LF）以及剩余部分。
func NextLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return nil, b, false
	}
	line, rest = b[:i], b[i+1:]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, rest, true
}

// ParseHeaderLine 解析一行 `name ":" OWS value OWS`，line 不含行尾。
//
// 名称前后不允许空白，名称须为 token，值须为合法的 field-value。
// 以空白开头的续行（obs-fold）视为格式错误。
func ParseHeaderLine(line []byte) (name, value []byte, err error) {
	if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
		return nil, nil, errs.NewMalformed("不支持标头续行 %s", BufferSnippet(line))
	}
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return nil, nil, errs.NewMalformed("标头行缺少冒号 %s", BufferSnippet(line))
	}
	name = line[:i]
	if len(name) == 0 || !httpguts.ValidHeaderFieldName(string(name)) {
		return nil, nil, errs.NewMalformed("无效的标头名称 %q", name)
	}
	value = trimOWS(line[i+1:])
	if !httpguts.ValidHeaderFieldValue(string(value)) {
		return nil, nil, errs.NewMalformed("标头 %q 的值无效", name)
	}
	return name, value, nil
}

// ParseHeaderBlock 将 buf 中的标头行逐一加入 h，直至遇到空行。buf 必须以空行结尾。
//
// visit 非空时，每一行解析成功后先交给 visit，返回错误则中止。
func ParseHeaderBlock(buf []byte, h *protocol.Headers, visit func(name, value []byte) error) error {
	for {
		line, rest, ok := NextLine(buf)
		if !ok {
			return errs.NewMalformed("标头块未以空行结尾")
		}
		if len(line) == 0 {
			return nil
		}
		name, value, err := ParseHeaderLine(line)
		if err != nil {
			return err
		}
		if visit != nil {
			if err = visit(name, value); err != nil {
				return err
			}
		}
		h.Add(string(name), string(value))
		buf = rest
	}
}

// ValidHeaderField 报告 name 和 value 能否原样写入线路。
func ValidHeaderField(name, value string) bool {
	return httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}

// BufferSnippet 返回字节切片的片段。
//
// 形如: <前缀 20 位>...<后缀=总长度-20位>
//
// 若前缀长 >= 后缀长，则直接返回原始切片。
func BufferSnippet(b []byte) string {
	n := len(b)
	start := 20
	end := n - start
	if start >= end {
		start = n
		end = n
	}
	bStart, bEnd := b[:start], b[end:]
	if len(bEnd) == 0 {
		return fmt.Sprintf("%q", b)
	}
	return fmt.Sprintf("%q...%q", bStart, bEnd)
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
