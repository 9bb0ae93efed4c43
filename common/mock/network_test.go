package mock

import (
	"io"
	"testing"
	"time"

	errs "github.com/favbox/h1engine/common/errors"
	"github.com/stretchr/testify/assert"
)

func TestConn(t *testing.T) {
	t.Run("TestReader", func(t *testing.T) {
		s1 := "abcdef4343"
		conn1 := NewConn(s1)
		assert.Nil(t, conn1.SetWriteTimeout(1))
		assert.Nil(t, conn1.SetReadTimeout(time.Millisecond*100))
		assert.Equal(t, time.Millisecond*100, conn1.GetReadTimeout())

		// Peek Skip Read
		b, _ := conn1.Peek(1)
		assert.Equal(t, []byte{'a'}, b)
		assert.Nil(t, conn1.Skip(1))    // 游标跳过了 a
		readByte, _ := conn1.ReadByte() // 游标跳过了 b
		assert.Equal(t, byte('b'), readByte)

		p := make([]byte, 100)
		n, err := conn1.Read(p) // 从 c 开始读取
		assert.Nil(t, err)
		assert.Equal(t, s1[2:], string(p[:n]))

		_, err = conn1.Peek(1) // 已经读到底了
		assert.Equal(t, io.EOF, err)

		conn2 := NewConn(s1)
		p, _ = conn2.ReadBinary(len(s1)) // 一次性读完
		assert.Equal(t, s1, string(p))
		assert.Equal(t, 0, conn2.Len())
	})

	t.Run("TestPartialAtEOF", func(t *testing.T) {
		conn := NewConn("GET /")
		_, err := conn.Peek(10)
		assert.Equal(t, io.EOF, err)
		assert.Equal(t, 5, conn.Len())
		b, err := conn.Peek(5)
		assert.Nil(t, err)
		assert.Equal(t, "GET /", string(b))
	})

	t.Run("TestTailError", func(t *testing.T) {
		conn := NewConn("")
		conn.SetTailError(errs.ErrTimeout)
		_, err := conn.Peek(1)
		assert.Equal(t, errs.ErrTimeout, err)
	})

	t.Run("TestFragmented", func(t *testing.T) {
		conn := NewFragmentedConn("abcdef", 1)
		b, err := conn.Peek(4)
		assert.Nil(t, err)
		assert.Equal(t, "abcd", string(b))
		assert.Nil(t, conn.Skip(4))
		b, err = conn.Peek(2)
		assert.Nil(t, err)
		assert.Equal(t, "ef", string(b))
	})

	t.Run("TestReadWriter", func(t *testing.T) {
		conn := NewConn("")
		s2 := "HTTP/1.1 200 OK\r\n"
		n, err := conn.WriteBinary([]byte(s2)) // 写入缓冲区
		assert.Nil(t, err)
		assert.Equal(t, len(s2), n)
		assert.Equal(t, len(s2), conn.WroteLen())
		assert.Equal(t, "", conn.Output())

		assert.Nil(t, conn.Flush()) // 将缓冲区数据发至对端
		assert.Equal(t, s2, conn.Output())

		buf, _ := conn.Malloc(2)
		copy(buf, "\r\n")
		assert.Equal(t, len(s2)+2, conn.WroteLen())
		n, err = conn.Write([]byte("x"))
		assert.Nil(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, s2+"\r\nx", conn.Output())
	})

	t.Run("TestClose", func(t *testing.T) {
		conn := NewConn("")
		assert.False(t, conn.Closed())
		assert.Nil(t, conn.Close())
		assert.True(t, conn.Closed())
		assert.NotNil(t, conn.RemoteAddr())
		assert.Nil(t, conn.LocalAddr())
		assert.Nil(t, conn.SetDeadline(time.Now().Add(time.Second)))
		assert.True(t, conn.GetWriteTimeout() > 0)
	})
}

func TestBrokenConn(t *testing.T) {
	conn := NewBrokenConn("Foo")
	buf, err := conn.Peek(3)
	assert.Nil(t, buf)
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	n, err := conn.WriteBinary([]byte("Foo"))
	assert.Equal(t, 3, n)
	assert.Nil(t, err)
	assert.Equal(t, errs.ErrConnectionClosed, conn.Flush())
}

func TestFlushErrorConn(t *testing.T) {
	conn := NewFlushErrorConn("Foo")
	buf, err := conn.Peek(3)
	assert.Nil(t, err)
	assert.Equal(t, "Foo", string(buf))
	assert.Equal(t, errs.ErrConnectionClosed, conn.Flush())
}

func TestErrorReadConn(t *testing.T) {
	conn := NewErrorReadConn(errs.ErrTimeout)
	_, err := conn.Peek(1)
	assert.Equal(t, errs.ErrTimeout, err)
}
