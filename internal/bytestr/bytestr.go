// Package bytestr 定义报文编解码时复用的字节常量。
package bytestr

var (
	StrCRLF             = []byte("\r\n")
	StrColonSpace       = []byte(": ")
	StrHTTP11           = []byte("HTTP/1.1")
	StrLastChunk        = []byte("0\r\n")
	StrResponseContinue = []byte("HTTP/1.1 100 Continue\r\n\r\n")
)
