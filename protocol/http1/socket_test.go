package http1

import (
	"errors"
	"strings"
	"testing"

	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/mock"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/http1/ext"
	"github.com/favbox/h1engine/protocol/http1/req"
	"github.com/favbox/h1engine/protocol/http1/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainSocket(t *testing.T, sock *Socket, r *protocol.Request) {
	t.Helper()
	require.Nil(t, drain(sock, r))
	assert.Equal(t, req.StateEmpty, sock.ReadState())
}

func TestSocketBodylessRequest(t *testing.T) {
	sock := NewSocket(mock.NewConn("GET /index HTTP/1.1\r\nHost: example.com\r\n\r\n"), config.DefaultLimits())
	assert.Equal(t, req.StateEmpty, sock.ReadState())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	assert.Equal(t, req.StateMessageReady, sock.ReadState())
	assert.Equal(t, "GET", r.Method)
	assert.Equal(t, "/index", r.Path)

	n, err := sock.ReadSome(&r.Message)
	assert.Nil(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, req.StateEmpty, sock.ReadState())
	assert.Empty(t, r.Body)
}

func TestSocketContinue(t *testing.T) {
	c := mock.NewConn("POST /upload HTTP/1.1\r\nExpect: 100-continue\r\nContent-Length: 3\r\n\r\nabc")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	require.True(t, sock.RequiresContinue(&r))

	require.Nil(t, sock.WriteContinue())
	assert.Equal(t, resp.StateContinueIssued, sock.WriteState())
	// 临时响应先于任何正文字节
	assert.Equal(t, "HTTP/1.1 100 Continue\r\n\r\n", c.Output())
	assert.Empty(t, r.Body)
	assert.Equal(t, req.StateMessageReady, sock.ReadState())

	drainSocket(t, sock, &r)
	assert.Equal(t, "abc", string(r.Body))

	m := &protocol.Message{}
	m.SetBodyString("ok")
	require.Nil(t, sock.WriteResponse(200, "OK", m))
	assert.Equal(t, "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok", c.Output())
}

func TestSocketNoExpect(t *testing.T) {
	c := mock.NewConn("POST /upload HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	assert.False(t, sock.RequiresContinue(&r))
	drainSocket(t, sock, &r)

	require.Nil(t, sock.WriteResponse(200, "OK", &protocol.Message{}))
	assert.NotContains(t, c.Output(), "100 Continue")
}

func TestSocketRoundTrip(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	drainSocket(t, sock, &r)

	m := &protocol.Message{}
	m.Header.Set("connection", "close")
	m.SetBodyString("Foobar")
	require.Nil(t, sock.WriteResponse(200, "OK", m))
	assert.Equal(t, resp.StateFinished, sock.WriteState())

	// 解析写出的字节，应与写入的内容一致
	out := c.Output()
	i := strings.Index(out, "\r\n\r\n")
	require.True(t, i > 0)
	head, body := out[:i+4], out[i+4:]
	line, rest, ok := ext.NextLine([]byte(head))
	require.True(t, ok)
	assert.Equal(t, "HTTP/1.1 200 OK", string(line))

	var h protocol.Headers
	require.Nil(t, ext.ParseHeaderBlock(rest, &h, nil))
	assert.Equal(t, "close", h.Get("Connection"))
	assert.Equal(t, "6", h.Get("Content-Length"))
	assert.Equal(t, "Foobar", body)
}

func TestSocketPipelining(t *testing.T) {
	c := mock.NewConn("GET /a HTTP/1.1\r\n\r\nPOST /b HTTP/1.1\r\nContent-Length: 2\r\n\r\nhi")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	assert.Equal(t, "/a", r.Path)
	assert.True(t, sock.KeepAlive())
	drainSocket(t, sock, &r)
	require.Nil(t, sock.WriteResponse(200, "", &protocol.Message{}))
	require.Nil(t, sock.Reset())

	require.Nil(t, sock.ReadRequest(&r))
	assert.Equal(t, "/b", r.Path)
	drainSocket(t, sock, &r)
	assert.Equal(t, "hi", string(r.Body))
}

func TestSocketHeaderTooLarge(t *testing.T) {
	limits := config.DefaultLimits()
	limits.MaxHeaderBytes = 64
	c := mock.NewConn("GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 100) + "\r\n\r\n")
	sock := NewSocket(c, limits)

	var r protocol.Request
	err := sock.ReadRequest(&r)
	assert.True(t, errors.Is(err, errs.ErrRequestTooLarge))
	assert.True(t, errors.Is(err, errs.ErrHeaderTooLarge))
	assert.NotEqual(t, req.StateMessageReady, sock.ReadState())
}

func TestSocketSecondWriteResponse(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	drainSocket(t, sock, &r)

	m := &protocol.Message{}
	m.SetBodyString("Foobar")
	require.Nil(t, sock.WriteResponse(200, "OK", m))
	sent := c.Output()

	err := sock.WriteResponse(200, "OK", m)
	assert.True(t, errors.Is(err, errs.ErrInvalidWriteSequence))
	assert.Equal(t, sent, c.Output())
}

func TestSocketSequenceGuards(t *testing.T) {
	c := mock.NewConn("POST / HTTP/1.1\r\nContent-Length: 2\r\n\r\nhiGET / HTTP/1.1\r\n\r\n")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))

	// 正文未读完不能复位
	err := sock.Reset()
	assert.True(t, errors.Is(err, errs.ErrInvalidReadSequence))

	drainSocket(t, sock, &r)
	require.Nil(t, sock.WriteResponseMetadata(200, "OK", &protocol.Message{}))

	// 响应未完成时既不能复位，也不能读取下一个请求
	assert.True(t, errors.Is(sock.Reset(), errs.ErrInvalidReadSequence))
	assert.True(t, errors.Is(sock.ReadRequest(&r), errs.ErrInvalidReadSequence))

	require.Nil(t, sock.WriteEndOfMessage())
	// 已完成但未复位
	assert.True(t, errors.Is(sock.ReadRequest(&r), errs.ErrInvalidReadSequence))

	require.Nil(t, sock.Reset())
	assert.Equal(t, resp.StateNotStarted, sock.WriteState())
	require.Nil(t, sock.ReadRequest(&r))
	assert.Equal(t, "GET", r.Method)
}

func TestSocketHeadSkipsBody(t *testing.T) {
	c := mock.NewConn("HEAD / HTTP/1.1\r\n\r\n")
	sock := NewSocket(c, config.DefaultLimits())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	drainSocket(t, sock, &r)

	m := &protocol.Message{}
	m.SetBodyString("Foobar")
	require.Nil(t, sock.WriteResponse(200, "OK", m))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\n", c.Output())
}

func TestSocketCountersAndClose(t *testing.T) {
	src := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	c := mock.NewConn(src)
	sock := NewSocket(c, config.DefaultLimits())
	assert.Equal(t, c, sock.Conn())

	var r protocol.Request
	require.Nil(t, sock.ReadRequest(&r))
	drainSocket(t, sock, &r)
	assert.Equal(t, len(src), sock.BytesRead())

	require.Nil(t, sock.WriteResponse(204, "", &protocol.Message{}))
	assert.Equal(t, len(c.Output()), sock.BytesWritten())

	require.Nil(t, sock.Close())
	assert.True(t, c.Closed())
}
