package netpoll

import (
	"errors"
	"io"
	"strings"
	"syscall"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/network"
)

// Conn 包装 netpoll 连接：读方法把 netpoll.ErrEOF 换成 io.EOF，其余能力直接委托。
type Conn struct {
	network.Conn
}

// ToEngineError 将 netpoll 的关闭与读超时错误归一为引擎错误。
func (c *Conn) ToEngineError(err error) error {
	switch {
	case errors.Is(err, netpoll.ErrConnClosed), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		return errs.ErrConnectionClosed
	case errors.Is(err, netpoll.ErrReadTimeout):
		return errs.ErrTimeout
	}
	return err
}

// HandleSpecificError 连接被关闭或重置时只记调试日志。
func (c *Conn) HandleSpecificError(err error, remoteIP string) (needIgnore bool) {
	if !errors.Is(err, netpoll.ErrConnClosed) && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
		return false
	}
	// 刷出时对端已走，不值得记录
	if !strings.Contains(err.Error(), "when flush") {
		hlog.SystemLogger().Debugf("netpoll 连接中断: 错误=%s, 远程地址=%s", err.Error(), remoteIP)
	}
	return true
}

func (c *Conn) Peek(n int) ([]byte, error) {
	b, err := c.Conn.Peek(n)
	return b, eofToIO(err)
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	return n, eofToIO(err)
}

func (c *Conn) ReadByte() (byte, error) {
	b, err := c.Conn.ReadByte()
	return b, eofToIO(err)
}

func (c *Conn) ReadBinary(n int) ([]byte, error) {
	b, err := c.Conn.ReadBinary(n)
	return b, eofToIO(err)
}

func eofToIO(err error) error {
	if errors.Is(err, netpoll.ErrEOF) {
		return io.EOF
	}
	return err
}

func newConn(c netpoll.Connection) network.Conn {
	return &Conn{Conn: c.(network.Conn)}
}
