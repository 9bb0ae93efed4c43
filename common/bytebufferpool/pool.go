package bytebufferpool

import "sync"

// 超过该容量的缓冲区不再放回池中，避免个别超大响应头长期占用内存。
const maxRetainedSize = 64 * 1024

// ByteBuffer 是可复用的追加式字节缓冲区，用于拼装状态行与标头块。
type ByteBuffer struct {
	B []byte
}

func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.B = append(b.B, p...)
	return len(p), nil
}

func (b *ByteBuffer) WriteByte(c byte) error {
	b.B = append(b.B, c)
	return nil
}

func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.B = append(b.B, s...)
	return len(s), nil
}

// WriteHeaderLine 追加一行 "name: value\r\n"。
func (b *ByteBuffer) WriteHeaderLine(name, value string) {
	b.B = append(b.B, name...)
	b.B = append(b.B, ':', ' ')
	b.B = append(b.B, value...)
	b.B = append(b.B, '\r', '\n')
}

func (b *ByteBuffer) Len() int       { return len(b.B) }
func (b *ByteBuffer) Reset()         { b.B = b.B[:0] }
func (b *ByteBuffer) String() string { return string(b.B) }

// Pool 表示字节缓冲区池。
type Pool struct {
	pool sync.Pool
}

var defaultPool Pool

// Get 从默认池中获取一个空的字节缓冲区。
func Get() *ByteBuffer { return defaultPool.Get() }

// Put 将 b 放回默认池。放回后不可再访问 b。
func Put(b *ByteBuffer) { defaultPool.Put(b) }

// Get 从池中获取一个空的字节缓冲区。
func (p *Pool) Get() *ByteBuffer {
	v := p.pool.Get()
	if v != nil {
		return v.(*ByteBuffer)
	}
	return &ByteBuffer{B: make([]byte, 0, 512)}
}

// Put 将 b 放回池中。
func (p *Pool) Put(b *ByteBuffer) {
	if cap(b.B) > maxRetainedSize {
		return
	}
	b.Reset()
	p.pool.Put(b)
}
