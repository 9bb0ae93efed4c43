package ext

import (
	"errors"
	"strings"
	"testing"

	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/protocol"
	"github.com/stretchr/testify/assert"
)

func TestSkipEmptyLines(t *testing.T) {
	assert.Equal(t, 0, SkipEmptyLines([]byte("GET / HTTP/1.1\r\n")))
	assert.Equal(t, 4, SkipEmptyLines([]byte("\r\n\r\nGET")))
	assert.Equal(t, 3, SkipEmptyLines([]byte("\n\r\nGET")))
	// 孤立的 CR 需等待下一个字节
	assert.Equal(t, 2, SkipEmptyLines([]byte("\r\n\r")))
	assert.Equal(t, 0, SkipEmptyLines(nil))
}

func TestHeadLength(t *testing.T) {
	assert.Equal(t, -1, HeadLength([]byte("GET / HTTP/1.1\r\nHost: a\r\n")))
	assert.Equal(t, len("GET / HTTP/1.1\r\nHost: a\r\n\r\n"), HeadLength([]byte("GET / HTTP/1.1\r\nHost: a\r\n\r\nbody")))
	assert.Equal(t, len("GET / HTTP/1.1\nHost: a\n\n"), HeadLength([]byte("GET / HTTP/1.1\nHost: a\n\nbody")))
	// 空挂车
	assert.Equal(t, 2, HeadLength([]byte("\r\n")))
}

func TestNextLine(t *testing.T) {
	line, rest, ok := NextLine([]byte("a: b\r\nc: d\n"))
	assert.True(t, ok)
	assert.Equal(t, "a: b", string(line))
	line, rest, ok = NextLine(rest)
	assert.True(t, ok)
	assert.Equal(t, "c: d", string(line))
	_, rest, ok = NextLine(rest)
	assert.False(t, ok)
	assert.Empty(t, rest)
}

func TestParseHeaderLine(t *testing.T) {
	name, value, err := ParseHeaderLine([]byte("Content-Type: \t text/plain \t"))
	assert.Nil(t, err)
	assert.Equal(t, "Content-Type", string(name))
	assert.Equal(t, "text/plain", string(value))

	name, value, err = ParseHeaderLine([]byte("X-Empty:"))
	assert.Nil(t, err)
	assert.Equal(t, "X-Empty", string(name))
	assert.Empty(t, value)

	for _, line := range []string{
		" folded: value",
		"no colon",
		": value",
		"Bad Name: value",
		"Host : a",
		"X-Bad: a\x00b",
	} {
		_, _, err = ParseHeaderLine([]byte(line))
		assert.True(t, errors.Is(err, errs.ErrMalformedRequest), line)
	}
}

func TestParseHeaderBlock(t *testing.T) {
	var h protocol.Headers
	var seen []string
	err := ParseHeaderBlock([]byte("Host: a\r\nAccept: x\r\nAccept: y\r\n\r\n"), &h, func(name, value []byte) error {
		seen = append(seen, string(name))
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, []string{"Host", "Accept", "Accept"}, seen)
	assert.Equal(t, "a", h.Get("host"))
	// 重复的标头合并为一个字段
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "x, y", h.Get("accept"))

	h.Reset()
	err = ParseHeaderBlock([]byte("Host: a\r\n"), &h, nil)
	assert.True(t, errors.Is(err, errs.ErrMalformedRequest))

	h.Reset()
	stop := errs.NewMalformed("拒绝")
	err = ParseHeaderBlock([]byte("Host: a\r\nX: b\r\n\r\n"), &h, func(name, value []byte) error {
		if string(name) == "X" {
			return stop
		}
		return nil
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, h.Len())
}

func TestValidHeaderField(t *testing.T) {
	assert.True(t, ValidHeaderField("X-Token", "abc def"))
	assert.False(t, ValidHeaderField("X Token", "abc"))
	assert.False(t, ValidHeaderField("X-Token", "abc\r\nInjected: 1"))
}

func TestBufferSnippet(t *testing.T) {
	assert.Equal(t, `"short"`, BufferSnippet([]byte("short")))
	long := strings.Repeat("a", 20) + strings.Repeat("b", 10) + strings.Repeat("c", 20)
	assert.Equal(t, `"`+strings.Repeat("a", 20)+`"..."`+strings.Repeat("c", 20)+`"`, BufferSnippet([]byte(long)))
}

func TestIsForbiddenTrailer(t *testing.T) {
	assert.True(t, IsForbiddenTrailer("Content-Length"))
	assert.True(t, IsForbiddenTrailer("transfer-encoding"))
	assert.True(t, IsForbiddenTrailer("HOST"))
	assert.False(t, IsForbiddenTrailer("X-Checksum"))
	assert.False(t, IsForbiddenTrailer("Server-Timing"))
}
