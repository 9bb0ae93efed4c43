// Package mock 提供内存中的 network.Conn，供连接任务与读写状态机的测试使用。
package mock

import (
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/h1engine/common/errors"
)

// Conn 以字符串为对端输入，以内存缓冲收集已刷出的输出。
//
// 读写缓冲借用 netpoll 的零拷贝实现。数据源耗尽后 Peek 返回 tailErr（默认 io.EOF），
// 已缓冲的部分仍可由 Len 观察到，与真实传输器在对端关闭时一致。
type Conn struct {
	in   netpoll.Reader
	out  netpoll.ReadWriter
	sent *bytes.Buffer

	wrote        int
	readTimeout  time.Duration
	writeTimeout time.Duration
	tailErr      error
	closed       bool
	remote       net.Addr
}

// NewConn 创建以 source 为对端输入的连接。
func NewConn(source string) *Conn {
	return newConn(strings.NewReader(source))
}

// NewFragmentedConn 创建每次底层读取最多返回 size 字节的连接，模拟报文分段送达。
func NewFragmentedConn(source string, size int) *Conn {
	return newConn(&fragmentReader{r: strings.NewReader(source), size: size})
}

func newConn(r io.Reader) *Conn {
	sent := &bytes.Buffer{}
	return &Conn{
		in:      netpoll.NewReader(r),
		out:     netpoll.NewReadWriter(sent),
		sent:    sent,
		tailErr: io.EOF,
		remote:  &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 10000},
	}
}

func (m *Conn) Peek(n int) ([]byte, error) {
	b, err := m.in.Peek(n)
	if err != nil || len(b) != n {
		return nil, m.tailErr
	}
	return b, nil
}

func (m *Conn) Skip(n int) error                 { return m.in.Skip(n) }
func (m *Conn) Release() error                   { return nil }
func (m *Conn) Len() int                         { return m.in.Len() }
func (m *Conn) ReadByte() (byte, error)          { return m.in.ReadByte() }
func (m *Conn) ReadBinary(n int) ([]byte, error) { return m.in.ReadBinary(n) }

func (m *Conn) Malloc(n int) ([]byte, error) {
	m.wrote += n
	return m.out.Malloc(n)
}

func (m *Conn) WriteBinary(b []byte) (int, error) {
	n, err := m.out.WriteBinary(b)
	m.wrote += n
	return n, err
}

func (m *Conn) Flush() error { return m.out.Flush() }

func (m *Conn) Read(b []byte) (int, error) {
	n := m.in.Len()
	if n == 0 {
		if _, err := m.in.Peek(1); err != nil {
			return 0, m.tailErr
		}
		n = m.in.Len()
	}
	if n > len(b) {
		n = len(b)
	}
	p, err := m.in.ReadBinary(n)
	return copy(b, p), err
}

// Write 写入并立即刷出。
func (m *Conn) Write(b []byte) (int, error) {
	n, err := m.WriteBinary(b)
	if err != nil {
		return n, err
	}
	return n, m.Flush()
}

func (m *Conn) Close() error {
	m.closed = true
	return nil
}

func (m *Conn) LocalAddr() net.Addr  { return nil }
func (m *Conn) RemoteAddr() net.Addr { return m.remote }

func (m *Conn) SetReadTimeout(t time.Duration) error {
	m.readTimeout = t
	return nil
}

func (m *Conn) SetWriteTimeout(t time.Duration) error {
	m.writeTimeout = t
	return nil
}

func (m *Conn) SetDeadline(t time.Time) error {
	_ = m.SetReadDeadline(t)
	return m.SetWriteDeadline(t)
}

func (m *Conn) SetReadDeadline(t time.Time) error {
	m.readTimeout = time.Until(t)
	return nil
}

func (m *Conn) SetWriteDeadline(t time.Time) error {
	m.writeTimeout = time.Until(t)
	return nil
}

// Output 返回已刷出的全部数据。
func (m *Conn) Output() string { return m.sent.String() }

// WroteLen 返回写入缓冲的总字节数，含尚未刷出的部分。
func (m *Conn) WroteLen() int { return m.wrote }

func (m *Conn) Closed() bool { return m.closed }

// SetTailError 设置数据源耗尽后 Peek 返回的错误，如 errs.ErrTimeout 可模拟闲置超时。
func (m *Conn) SetTailError(err error) { m.tailErr = err }

func (m *Conn) SetRemoteAddr(addr net.Addr) { m.remote = addr }

// GetReadTimeout 返回最近一次设置的读超时。
func (m *Conn) GetReadTimeout() time.Duration { return m.readTimeout }

// GetWriteTimeout 返回最近一次设置的写超时。
func (m *Conn) GetWriteTimeout() time.Duration { return m.writeTimeout }

type fragmentReader struct {
	r    io.Reader
	size int
}

func (f *fragmentReader) Read(p []byte) (int, error) {
	if len(p) > f.size {
		p = p[:f.size]
	}
	return f.r.Read(p)
}

// BrokenConn 读写均失败：Peek 返回 io.ErrUnexpectedEOF，Flush 返回连接已关闭。
type BrokenConn struct {
	*Conn
}

func NewBrokenConn(source string) *BrokenConn { return &BrokenConn{NewConn(source)} }

func (c *BrokenConn) Peek(int) ([]byte, error) { return nil, io.ErrUnexpectedEOF }
func (c *BrokenConn) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (c *BrokenConn) Flush() error             { return errs.ErrConnectionClosed }

// FlushErrorConn 可读但刷出失败，即对端已不再接收。
type FlushErrorConn struct {
	*Conn
}

func NewFlushErrorConn(source string) *FlushErrorConn { return &FlushErrorConn{NewConn(source)} }

func (c *FlushErrorConn) Flush() error { return errs.ErrConnectionClosed }

// ErrorReadConn 读取即返回给定错误。
type ErrorReadConn struct {
	*Conn
	err error
}

func NewErrorReadConn(err error) *ErrorReadConn {
	return &ErrorReadConn{Conn: NewConn(""), err: err}
}

func (m *ErrorReadConn) Peek(int) ([]byte, error) { return nil, m.err }
