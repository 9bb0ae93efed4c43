package standard

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/network"
)

const (
	defaultReadBufferSize = 4 * 1024
	// 超过该大小的读缓冲不经 mcache 分配，空闲时收缩回初始大小
	maxPooledSize = 512 * 1024
)

// Conn 在 net.Conn 之上提供连续的读缓冲与分段写缓冲。
//
// 读缓冲中 buf[r:w] 为未消费数据。Peek 返回的切片在 Release 之前有效：
// 扩容时旧缓冲暂存在 retired 中，直到 Release 才归还。
type Conn struct {
	raw net.Conn

	buf      []byte
	r, w     int
	initSize int
	retired  [][]byte
	err      error // 已读到数据时延后返回的读错误

	out network.Writer
}

// --- network.ErrorNormalization ---

// ToEngineError 将对端断开与超时归一为引擎错误。
func (c *Conn) ToEngineError(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ENOTCONN) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return errs.ErrConnectionClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.ErrTimeout
	}
	return err
}

// HandleSpecificError 对端重置或管道破裂只记调试日志。
func (c *Conn) HandleSpecificError(err error, rip string) (needIgnore bool) {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		hlog.SystemLogger().Debugf("连接被对端中断: 错误=%s, 远程地址=%s", err.Error(), rip)
		return true
	}
	return false
}

// --- net.Conn ---

// Read 优先交出已缓冲的数据，缓冲为空时直接读底层连接。
func (c *Conn) Read(b []byte) (int, error) {
	if c.Len() > 0 {
		n := copy(b, c.buf[c.r:c.w])
		c.r += n
		return n, nil
	}
	if err := c.readErr(); err != nil {
		return 0, err
	}
	return c.raw.Read(b)
}

// Write 先刷出暂存数据，再直接写底层连接。
func (c *Conn) Write(b []byte) (int, error) {
	if err := c.Flush(); err != nil {
		return 0, err
	}
	return c.raw.Write(b)
}

func (c *Conn) Close() error                       { return c.raw.Close() }
func (c *Conn) LocalAddr() net.Addr                { return c.raw.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr               { return c.raw.RemoteAddr() }
func (c *Conn) SetDeadline(t time.Time) error      { return c.raw.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.raw.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }

// SetReadTimeout 设置从现在起的读截止时间，t<=0 表示不限。
func (c *Conn) SetReadTimeout(t time.Duration) error {
	if t <= 0 {
		return c.raw.SetReadDeadline(time.Time{})
	}
	return c.raw.SetReadDeadline(time.Now().Add(t))
}

// SetWriteTimeout 设置从现在起的写截止时间，t<=0 表示不限。
func (c *Conn) SetWriteTimeout(t time.Duration) error {
	if t <= 0 {
		return c.raw.SetWriteDeadline(time.Time{})
	}
	return c.raw.SetWriteDeadline(time.Now().Add(t))
}

// --- network.Reader ---

// Len 返回已缓冲未消费的字节数。
func (c *Conn) Len() int {
	return c.w - c.r
}

// Peek 返回接下来的 n 个字节但不消费。
//
// 对端在凑足 n 字节前关闭或出错时，返回已缓冲的部分及该错误；
// 一个字节也没读到时只返回错误。
func (c *Conn) Peek(n int) ([]byte, error) {
	if err := c.fill(n); err != nil {
		return nil, err
	}
	var err error
	if c.Len() < n {
		n = c.Len()
		err = c.readErr()
	}
	return c.buf[c.r : c.r+n], err
}

func (c *Conn) Skip(n int) error {
	if c.Len() < n {
		return errs.NewPrivatef("读缓冲仅有 %d 字节，无法跳过 %d 字节", c.Len(), n)
	}
	c.r += n
	return nil
}

func (c *Conn) ReadByte() (byte, error) {
	b, err := c.Peek(1)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	c.r++
	return b[0], nil
}

// ReadBinary 读取并消费 n 个字节，返回的切片归调用方所有。
func (c *Conn) ReadBinary(n int) ([]byte, error) {
	b, err := c.Peek(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	c.r += n
	return out, nil
}

// Release 使此前 Peek 得到的切片失效：归还扩容留下的旧缓冲，
// 并把未消费数据移到缓冲开头。
func (c *Conn) Release() error {
	for i, old := range c.retired {
		free(old)
		c.retired[i] = nil
	}
	c.retired = c.retired[:0]

	if c.Len() == 0 {
		c.r, c.w = 0, 0
		// 大请求过后收缩，长连接不长期占用大块内存
		if len(c.buf) > maxPooledSize {
			c.buf = malloc(c.initSize)
		}
		return nil
	}
	if c.r > 0 {
		c.w = copy(c.buf, c.buf[c.r:c.w])
		c.r = 0
	}
	return nil
}

// --- network.Writer ---

func (c *Conn) Malloc(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	return c.out.Malloc(n)
}

func (c *Conn) WriteBinary(b []byte) (int, error) {
	return c.out.WriteBinary(b)
}

func (c *Conn) Flush() error {
	return c.out.Flush()
}

// fill 读取底层连接直至缓冲至少有 n 字节。
// 读到部分数据后出错时，错误暂存到 c.err 并返回 nil，由 Peek 交给调用方。
func (c *Conn) fill(n int) error {
	if c.Len() >= n {
		return nil
	}
	if err := c.readErr(); err != nil {
		if c.Len() > 0 {
			c.err = err
			return nil
		}
		return err
	}
	c.grow(n)

	for c.Len() < n {
		m, err := c.raw.Read(c.buf[c.w:])
		c.w += m
		if err != nil {
			if m > 0 {
				c.err = err
				return nil
			}
			return err
		}
	}
	return nil
}

// grow 保证 buf[r:] 至少能容纳 n 字节。已有切片可能仍指向旧缓冲，故不原地搬移。
func (c *Conn) grow(n int) {
	if len(c.buf)-c.r >= n {
		return
	}
	size := 2 * len(c.buf)
	if size < c.Len()+n {
		size = c.Len() + n
	}
	nb := malloc(size)
	c.w = copy(nb, c.buf[c.r:c.w])
	c.r = 0
	c.retired = append(c.retired, c.buf)
	c.buf = nb
}

func (c *Conn) readErr() error {
	err := c.err
	c.err = nil
	return err
}

// TLSConn 是经 TLS 握手的连接。
type TLSConn struct {
	Conn
}

func (c *TLSConn) ConnectionState() tls.ConnectionState {
	return c.raw.(network.ConnTLSer).ConnectionState()
}

func (c *TLSConn) Handshake() error {
	return c.raw.(network.ConnTLSer).Handshake()
}

func malloc(size int) []byte {
	if size > maxPooledSize {
		return make([]byte, size)
	}
	return mcache.Malloc(size)
}

func free(buf []byte) {
	if cap(buf) <= maxPooledSize {
		mcache.Free(buf)
	}
}

func initConn(c *Conn, raw net.Conn, size int) {
	if size < defaultReadBufferSize {
		size = defaultReadBufferSize
	}
	c.raw = raw
	c.initSize = size
	c.buf = malloc(size)
	c.out = network.NewWriter(raw)
}

func newConn(raw net.Conn, size int) network.Conn {
	c := &Conn{}
	initConn(c, raw, size)
	return c
}

func newTLSConn(raw net.Conn, size int) network.Conn {
	c := &TLSConn{}
	initConn(&c.Conn, raw, size)
	return c
}
