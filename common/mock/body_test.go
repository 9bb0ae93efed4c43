package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkedBody(t *testing.T) {
	assert.Equal(t, "1\r\nH\r\n2\r\nel\r\n2\r\nlo\r\n0\r\n\r\n", string(ChunkedBody([]byte("Hello"), 1)))
	assert.Equal(t, "3\r\nHel\r\n2\r\nlo\r\n0\r\nX-Sum: 5\r\n\r\n", string(ChunkedBody([]byte("Hello"), 3, "X-Sum", "5")))
	assert.Equal(t, "0\r\n\r\n", string(ChunkedBody(nil, 0)))
	assert.Equal(t, "a\r\n0123456789\r\n0\r\n\r\n", string(ChunkedBody([]byte("0123456789"), 16)))
}
