package ext

import (
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/internal/bytesconv"
	"github.com/favbox/h1engine/internal/bytestr"
	"github.com/favbox/h1engine/network"
	"github.com/favbox/h1engine/protocol"
)

const (
	// MaxChunkLineBytes 限制分块大小行（含扩展）的长度。
	MaxChunkLineBytes = 4096

	maxChunkSizeChars = 15 // 十六进制位数上限，防止溢出
)

// ParseChunkSize 解析不含行尾的分块大小行：十六进制大小，随后可选 OWS 与 ";ext"，扩展被忽略。
func ParseChunkSize(line []byte) (int, error) {
	size := 0
	i := 0
	for ; i < len(line); i++ {
		k := bytesconv.Hex2intTable[line[i]]
		if k == 16 {
			break
		}
		if i == maxChunkSizeChars {
			return -1, errs.NewMalformed("分块大小过长 %s", BufferSnippet(line))
		}
		size = size<<4 | int(k)
	}
	if i == 0 {
		return -1, errs.NewMalformed("无效的分块大小行 %s", BufferSnippet(line))
	}
	rest := trimOWS(line[i:])
	if len(rest) > 0 && rest[0] != ';' {
		return -1, errs.NewMalformed("分块大小后有多余字符 %s", BufferSnippet(line))
	}
	return size, nil
}

// WriteChunk 将 b 作为一个分块写入 w。b 为空时写出结束分块 "0\r\n"，之后应写挂车和空行。
// 返回写入的字节数，含长度行与 CRLF。
func WriteChunk(w network.Writer, b []byte, withFlush bool) (n int, err error) {
	if n, err = bytesconv.WriteHexInt(w, len(b)); err != nil {
		return n, err
	}
	if err = writeAll(w, &n, bytestr.StrCRLF); err != nil {
		return n, err
	}
	if len(b) > 0 {
		if err = writeAll(w, &n, b); err != nil {
			return n, err
		}
		if err = writeAll(w, &n, bytestr.StrCRLF); err != nil {
			return n, err
		}
	}
	if !withFlush {
		return n, nil
	}
	return n, w.Flush()
}

// WriteHeaders 按插入顺序将 h 逐行写入 w，不写结尾空行。返回写入的字节数。
func WriteHeaders(w network.Writer, h *protocol.Headers) (n int, err error) {
	h.VisitAll(func(name, value string) {
		if err != nil {
			return
		}
		if err = writeAll(w, &n, bytesconv.S2b(name)); err != nil {
			return
		}
		if err = writeAll(w, &n, bytestr.StrColonSpace); err != nil {
			return
		}
		if err = writeAll(w, &n, bytesconv.S2b(value)); err != nil {
			return
		}
		err = writeAll(w, &n, bytestr.StrCRLF)
	})
	return n, err
}

// WriteTrailer 写出结束分块之后的挂车与结尾空行。调用前应已写出 "0\r\n"。返回写入的字节数。
func WriteTrailer(w network.Writer, t *protocol.Headers) (n int, err error) {
	if t != nil {
		if n, err = WriteHeaders(w, t); err != nil {
			return n, err
		}
	}
	err = writeAll(w, &n, bytestr.StrCRLF)
	return n, err
}

func writeAll(w network.Writer, n *int, b []byte) error {
	m, err := w.WriteBinary(b)
	*n += m
	return err
}
