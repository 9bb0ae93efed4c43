package http1

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/favbox/h1engine/common/config"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/common/mock"
	"github.com/favbox/h1engine/common/tracer/stats"
	internalStats "github.com/favbox/h1engine/internal/stats"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foobar(_ context.Context, ex *protocol.Exchange) {
	ex.Response.SetStatusCode(consts.StatusOK)
	ex.Response.SetBodyString("Foobar")
}

func newTestServer(h protocol.HandlerFunc) *Server {
	return NewServer(Option{
		ReadTimeout: time.Second,
		IdleTimeout: 2 * time.Second,
		ServerName:  "h1engine",
	}, h, nil)
}

func TestServeKeepAliveThenPeerClose(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	s := newTestServer(foobar)

	err := s.Serve(context.Background(), c)
	assert.Nil(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nServer: h1engine\r\nContent-Length: 6\r\n\r\nFoobar", c.Output())
	// 等待后续请求时使用闲置超时
	assert.Equal(t, 2*time.Second, c.GetReadTimeout())
}

func TestServeConnectionClose(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	s := newTestServer(foobar)

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nServer: h1engine\r\nConnection: close\r\nContent-Length: 6\r\n\r\nFoobar", c.Output())
}

func TestServeHandlerRequestsClose(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\nGET /never HTTP/1.1\r\n\r\n")
	called := 0
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		called++
		ex.Response.SetStatusCode(consts.StatusOK)
		ex.Response.Header.Set("connection", "close")
		ex.Response.SetBodyString("Foobar")
	})

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, 1, called)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nServer: h1engine\r\nconnection: close\r\nContent-Length: 6\r\n\r\nFoobar", c.Output())
}

func TestServePipelining(t *testing.T) {
	c := mock.NewConn("GET /a HTTP/1.1\r\n\r\nPOST /b HTTP/1.1\r\nContent-Length: 3\r\n\r\nxyzGET /c HTTP/1.1\r\nConnection: close\r\n\r\n")
	var seqs []uint64
	var connIDs []string
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		seqs = append(seqs, ex.Seq)
		connIDs = append(connIDs, ex.ConnID)
		assert.Equal(t, ex.ConnID, hlog.ConnID(ctx))
		ex.Response.SetStatusCode(consts.StatusOK)
		ex.Response.SetBodyString(ex.Request.Path + string(ex.Request.Body))
	})

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	require.Len(t, connIDs, 3)
	assert.NotEmpty(t, connIDs[0])
	assert.Equal(t, connIDs[0], connIDs[2])

	out := c.Output()
	assert.Equal(t, 3, strings.Count(out, "HTTP/1.1 200 OK\r\n"))
	ia, ib, ic := strings.Index(out, "\r\n\r\n/a"), strings.Index(out, "\r\n\r\n/bxyz"), strings.Index(out, "\r\n\r\n/c")
	assert.True(t, ia > 0 && ia < ib && ib < ic, out)
}

func TestServeKeepsGivenConnID(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	var got string
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		got = ex.ConnID
	})
	assert.Nil(t, s.Serve(hlog.WithConnID(context.Background(), "conn-1"), c))
	assert.Equal(t, "conn-1", got)
}

func TestServeReturnsToReactor(t *testing.T) {
	c := mock.NewConn("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	var paths []string
	s := NewServer(Option{ReturnToReactor: true}, protocol.HandlerFunc(func(ctx context.Context, ex *protocol.Exchange) {
		paths = append(paths, ex.Request.Path)
	}), nil)

	// IdleTimeout 为 0：每次只处理一个交换
	assert.Nil(t, s.Serve(context.Background(), c))
	assert.Equal(t, []string{"/a"}, paths)
	assert.Equal(t, 1, strings.Count(c.Output(), "HTTP/1.1 200 OK"))

	assert.Nil(t, s.Serve(context.Background(), c))
	assert.Equal(t, []string{"/a", "/b"}, paths)

	// 对端已关闭
	assert.Nil(t, s.Serve(context.Background(), c))
	assert.Equal(t, 2, strings.Count(c.Output(), "HTTP/1.1 200 OK"))
}

func TestServeWithoutIdleTimeout(t *testing.T) {
	c := mock.NewConn("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	var paths []string
	s := NewServer(Option{}, protocol.HandlerFunc(func(ctx context.Context, ex *protocol.Exchange) {
		paths = append(paths, ex.Request.Path)
	}), nil)

	// 不交还事件循环时，IdleTimeout 为 0 表示不限时等待
	assert.Nil(t, s.Serve(context.Background(), c))
	assert.Equal(t, []string{"/a", "/b"}, paths)
	assert.Equal(t, time.Duration(0), c.GetReadTimeout())
}

func TestServeHTTP10(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.0\r\n\r\n")
	err := newTestServer(foobar).Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Contains(t, c.Output(), "Connection: close\r\n")

	c = mock.NewConn("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	err = newTestServer(foobar).Serve(context.Background(), c)
	assert.Nil(t, err)
	assert.Contains(t, c.Output(), "Connection: keep-alive\r\n")
}

func TestServeKeepAliveRefused(t *testing.T) {
	limits := config.DefaultLimits()
	limits.KeepAliveEnabled = false
	s := newTestServer(foobar)
	s.Limits = func() config.Limits { return limits }

	c := mock.NewConn("GET / HTTP/1.1\r\n\r\nGET / HTTP/1.1\r\n\r\n")
	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, 1, strings.Count(c.Output(), "HTTP/1.1 200 OK"))

	s = newTestServer(foobar)
	s.IsRunning = func() bool { return false }
	c = mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	err = s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Contains(t, c.Output(), "Connection: close\r\n")
}

func TestServeExpectContinue(t *testing.T) {
	c := mock.NewConn("POST /upload HTTP/1.1\r\nExpect: 100-continue\r\nContent-Length: 3\r\nConnection: close\r\n\r\nabc")
	var body string
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		body = string(ex.Request.Body)
		foobar(ctx, ex)
	})

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, "abc", body)
	assert.True(t, strings.HasPrefix(c.Output(), "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\n"))
}

func TestServeContinueRejected(t *testing.T) {
	c := mock.NewConn("POST /upload HTTP/1.1\r\nExpect: 100-continue\r\nContent-Length: 3\r\n\r\n")
	called := false
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		called = true
	})
	s.ContinueHandler = func(r *protocol.Request) bool {
		return r.Path != "/upload"
	}

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.False(t, called)
	assert.Equal(t, "HTTP/1.1 417 Expectation Failed\r\nServer: h1engine\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\nConnection: close\r\nContent-Length: 18\r\n\r\nExpectation Failed", c.Output())
}

func TestServeErrorResponses(t *testing.T) {
	limits := config.DefaultLimits()
	limits.MaxHeaderBytes = 128
	limits.MaxBodyBytes = 8

	cases := []struct {
		name   string
		source string
		status string
		kind   error
	}{
		{"格式错误", "GET / HTTP/2.0\r\n\r\n", "400 Bad Request", errs.ErrMalformedRequest},
		{"标头格式错误", "GET / HTTP/1.1\r\nBad Header\r\n\r\n", "400 Bad Request", errs.ErrMalformedRequest},
		{"标头过大", "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 200) + "\r\n\r\n", "431 Request Header Fields Too Large", errs.ErrHeaderTooLarge},
		{"声明的正文过大", "POST / HTTP/1.1\r\nContent-Length: 9\r\n\r\n", "413 Request Entity Too Large", errs.ErrBodyTooLarge},
		{"分块正文过大", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n5\r\nworld\r\n0\r\n\r\n", "413 Request Entity Too Large", errs.ErrBodyTooLarge},
		{"分块格式错误", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n", "400 Bad Request", errs.ErrMalformedRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := mock.NewConn(tc.source)
			called := false
			s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
				called = true
			})
			s.Limits = func() config.Limits { return limits }

			err := s.Serve(context.Background(), c)
			assert.True(t, errors.Is(err, tc.kind), "%v", err)
			assert.False(t, called)
			out := c.Output()
			assert.True(t, strings.HasPrefix(out, "HTTP/1.1 "+tc.status+"\r\n"), out)
			assert.Contains(t, out, "Connection: close\r\n")
		})
	}
}

func TestServeTransportErrors(t *testing.T) {
	// 请求中途对端关闭
	c := mock.NewConn("GET / HTTP/1.1\r\nHost")
	err := newTestServer(foobar).Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrTransport))
	assert.Equal(t, "", c.Output())

	// 从未收到任何字节
	c = mock.NewConn("")
	assert.Nil(t, newTestServer(foobar).Serve(context.Background(), c))

	// 只收到空行
	c = mock.NewConn("\r\n\r\n")
	assert.Nil(t, newTestServer(foobar).Serve(context.Background(), c))
	assert.Equal(t, "", c.Output())
}

func TestServeIdleTimeout(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	c.SetTailError(errs.ErrTimeout)

	err := newTestServer(foobar).Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrIdleTimeout))
	assert.Contains(t, c.Output(), "HTTP/1.1 200 OK")
}

func TestServeResetWhileIdle(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	c.SetTailError(syscall.ECONNRESET)

	err := newTestServer(foobar).Serve(context.Background(), c)
	assert.False(t, errors.Is(err, errs.ErrIdleTimeout))
	assert.True(t, errors.Is(err, errs.ErrTransport))
	assert.True(t, errors.Is(err, syscall.ECONNRESET))
	assert.Contains(t, c.Output(), "HTTP/1.1 200 OK")
}

func TestServeFragmentedChunkedWithTrailers(t *testing.T) {
	src := "POST /c HTTP/1.1\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
		"5;ext=1\r\nhello\r\n6\r\n world\r\n0\r\nX-Checksum: 42\r\n\r\n"
	for _, size := range []int{1, 3, 7, len(src)} {
		c := mock.NewFragmentedConn(src, size)
		var body, trailer string
		s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
			body = string(ex.Request.Body)
			trailer = ex.Request.Trailer.Get("x-checksum")
			foobar(ctx, ex)
		})
		err := s.Serve(context.Background(), c)
		assert.True(t, errors.Is(err, errs.ErrShortConnection), "分片大小 %d: %v", size, err)
		assert.Equal(t, "hello world", body)
		assert.Equal(t, "42", trailer)
	}
}

func TestServeHead(t *testing.T) {
	c := mock.NewConn("HEAD / HTTP/1.1\r\nConnection: close\r\n\r\n")
	err := newTestServer(foobar).Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nServer: h1engine\r\nConnection: close\r\nContent-Length: 6\r\n\r\n", c.Output())
}

func TestServeBodyStream(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		ex.Response.SetStatusCode(consts.StatusOK)
		ex.Response.SetBodyStream(strings.NewReader("hello world"))
		ex.Response.Trailer.Set("X-Done", "1")
	})
	s.ServerName = ""

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nConnection: close\r\nTransfer-Encoding: chunked\r\n\r\n"+
		"b\r\nhello world\r\n0\r\nX-Done: 1\r\n\r\n", c.Output())

	c = mock.NewConn("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	s = newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		ex.Response.SetStatusCode(consts.StatusOK)
		ex.Response.Header.Set(consts.HeaderContentLength, "5")
		ex.Response.SetBodyStream(strings.NewReader("hello"))
	})
	s.ServerName = ""
	err = s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello", c.Output())
}

func TestServeInvalidResponse(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		ex.Response.SetStatusCode(consts.StatusOK)
		ex.Response.Header.Set(consts.HeaderContentLength, "10")
		ex.Response.SetBodyString("short")
	})

	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrInvalidWriteSequence))
	assert.Equal(t, "", c.Output())
}

func TestServeHandlerPanic(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\n\r\n")
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {
		ex.Response.Header.Set("X-Partial", "1")
		panic("boom")
	})

	var logs bytes.Buffer
	hlog.SetOutput(&logs)
	defer hlog.SetOutput(os.Stderr)

	var err error
	assert.NotPanics(t, func() {
		err = s.Serve(hlog.WithConnID(context.Background(), "conn-7"), c)
	})
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, logs.String(), "[conn=conn-7] h1engine: 处理器恐慌: boom")
	out := c.Output()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 500 Internal Server Error\r\n"), out)
	assert.NotContains(t, out, "X-Partial")
	assert.Contains(t, out, "Connection: close\r\n")
}

func TestServeDefaultStatus(t *testing.T) {
	c := mock.NewConn("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	s := newTestServer(func(ctx context.Context, ex *protocol.Exchange) {})
	s.ServerName = ""
	_ = s.Serve(context.Background(), c)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", c.Output())
}

type recordingTracer struct {
	mu        sync.Mutex
	starts    int
	finishes  int
	errs      []error
	recv      []int
	send      []int
	written   []bool
	continued []bool
}

func (r *recordingTracer) Start(ctx context.Context, ex *protocol.Exchange) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return ctx
}

func (r *recordingTracer) Finish(ctx context.Context, ex *protocol.Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes++
	st := ex.GetTraceInfo().Stats()
	r.errs = append(r.errs, st.Error())
	r.recv = append(r.recv, st.RecvSize())
	r.send = append(r.send, st.SendSize())
	r.written = append(r.written, st.GetEvent(stats.WriteFinish) != nil)
	r.continued = append(r.continued, st.GetEvent(stats.ContinueFinish) != nil)
}

func TestServeTrace(t *testing.T) {
	rec := &recordingTracer{}
	ctl := &internalStats.Controller{}
	ctl.Append(rec)

	s := NewServer(Option{
		IdleTimeout: time.Second,
		EnableTrace: true,
		TraceLevel:  stats.LevelDetailed,
	}, protocol.HandlerFunc(foobar), ctl)

	c := mock.NewConn("POST / HTTP/1.1\r\nContent-Length: 2\r\n\r\nhiGET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))

	assert.Equal(t, 2, rec.starts)
	assert.Equal(t, 2, rec.finishes)
	assert.Equal(t, []error{nil, nil}, rec.errs)
	assert.Equal(t, []bool{true, true}, rec.written)
	assert.Equal(t, []bool{false, false}, rec.continued)
	assert.Equal(t, len("POST / HTTP/1.1\r\nContent-Length: 2\r\n\r\nhi"), rec.recv[0])
	assert.True(t, rec.send[0] > 0)

	// 格式错误的请求：交换以错误结束
	rec = &recordingTracer{}
	ctl = &internalStats.Controller{}
	ctl.Append(rec)
	s = NewServer(Option{EnableTrace: true, TraceLevel: stats.LevelDetailed}, protocol.HandlerFunc(foobar), ctl)
	err = s.Serve(context.Background(), mock.NewConn("BAD\r\n\r\n"))
	assert.True(t, errors.Is(err, errs.ErrMalformedRequest))
	assert.Equal(t, 1, rec.finishes)
	require.Len(t, rec.errs, 1)
	assert.True(t, errors.Is(rec.errs[0], errs.ErrMalformedRequest))
}

func TestServeTraceContinue(t *testing.T) {
	rec := &recordingTracer{}
	ctl := &internalStats.Controller{}
	ctl.Append(rec)
	s := NewServer(Option{EnableTrace: true, TraceLevel: stats.LevelDetailed}, protocol.HandlerFunc(foobar), ctl)

	c := mock.NewConn("PUT /f HTTP/1.1\r\nExpect: 100-continue\r\nContent-Length: 1\r\nConnection: close\r\n\r\nx")
	err := s.Serve(context.Background(), c)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.Equal(t, []bool{true}, rec.continued)

	// 基础级别不记录阶段事件
	rec = &recordingTracer{}
	ctl = &internalStats.Controller{}
	ctl.Append(rec)
	s = NewServer(Option{EnableTrace: true, TraceLevel: stats.LevelBase}, protocol.HandlerFunc(foobar), ctl)
	c = mock.NewConn("PUT /f HTTP/1.1\r\nExpect: 100-continue\r\nContent-Length: 1\r\nConnection: close\r\n\r\nx")
	_ = s.Serve(context.Background(), c)
	assert.Equal(t, []bool{false}, rec.continued)
	assert.Equal(t, []bool{false}, rec.written)
}

func TestServeTraceDisabledWithoutTracer(t *testing.T) {
	s := NewServer(Option{EnableTrace: true}, protocol.HandlerFunc(foobar), &internalStats.Controller{})
	assert.False(t, s.EnableTrace)
}
