package network

import (
	"crypto/tls"
	"net"
	"time"
)

// Reader 是连接的读缓冲视图。
//
// Peek 在缓冲不足时等待对端数据（标准传输器阻塞读，netpoll 挂起协程），
// 直到凑足、连接关闭或读超时。Peek 得到的切片在 Release 之前有效。
type Reader interface {
	// Len 返回已缓冲未消费的字节数，不触发读取。
	Len() int
	// Peek 返回接下来的 n 个字节但不消费。
	Peek(n int) ([]byte, error)
	// Skip 消费 n 个已缓冲的字节。
	Skip(n int) error
	ReadByte() (byte, error)
	// ReadBinary 消费 n 个字节并返回其副本。
	ReadBinary(n int) (p []byte, err error)
	// Release 回收已消费数据占用的缓冲，此前 Peek 的切片随之失效。
	Release() error
}

// Writer 是连接的写缓冲视图，数据在 Flush 时才发往对端。
type Writer interface {
	// Malloc 在写缓冲中预留 n 字节供调用方填充。
	Malloc(n int) (buf []byte, err error)
	// WriteBinary 追加 b。较大的 b 可能按引用挂入，Flush 完成前不得修改。
	WriteBinary(b []byte) (n int, err error)
	Flush() error
}

// ReadWriter 同时具备读写缓冲。
type ReadWriter interface {
	Reader
	Writer
}

// Conn 是连接任务所依赖的全部连接能力。TLS 等细节由传输器在构造时处理。
type Conn interface {
	net.Conn
	Reader
	Writer

	// SetReadTimeout 设置从现在起的读超时，t<=0 表示不限。
	SetReadTimeout(t time.Duration) error
	// SetWriteTimeout 设置从现在起的写超时，t<=0 表示不限。
	SetWriteTimeout(t time.Duration) error
}

// ConnTLSer 由 TLS 连接实现。
type ConnTLSer interface {
	Handshake() error
	ConnectionState() tls.ConnectionState
}

// HandleSpecificError 由能识别自身常见断连错误的连接实现。
// 返回 true 时引擎不再为该错误输出错误日志。
type HandleSpecificError interface {
	HandleSpecificError(err error, remoteIP string) (needIgnore bool)
}

// ErrorNormalization 由能把传输库原生错误映射为引擎错误的连接实现，
// 如 errors.ErrTimeout 与 errors.ErrConnectionClosed。
type ErrorNormalization interface {
	ToEngineError(err error) error
}
