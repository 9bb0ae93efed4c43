package network

import (
	"io"
	"net"
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
)

const (
	// 不小于该长度的切片按引用挂入，不再拷贝。
	copyThreshold = 4 * 1024
	// 新段的最小容量，使标头等小写入能合并到同一段。
	minSegmentSize = 1024
)

type segment struct {
	data     []byte
	borrowed bool // 引用调用方的切片，释放时不归还 mcache
}

var segmentPool = sync.Pool{New: func() any { return &segment{} }}

// bufferedWriter 将写入暂存为若干段，Flush 时以 net.Buffers 一次写出。
// 底层为 net.Conn 时可合并为 writev 系统调用。
type bufferedWriter struct {
	segments []*segment
	dst      io.Writer
	buffered int
}

func (w *bufferedWriter) Malloc(n int) ([]byte, error) {
	if last := len(w.segments) - 1; last >= 0 {
		seg := w.segments[last]
		used := len(seg.data)
		if !seg.borrowed && cap(seg.data)-used >= n {
			seg.data = seg.data[:used+n]
			w.buffered += n
			return seg.data[used:], nil
		}
	}

	size := n
	if size < minSegmentSize {
		size = minSegmentSize
	}
	seg := segmentPool.Get().(*segment)
	seg.data = mcache.Malloc(n, size)
	w.segments = append(w.segments, seg)
	w.buffered += n
	return seg.data, nil
}

func (w *bufferedWriter) WriteBinary(b []byte) (int, error) {
	if len(b) < copyThreshold {
		buf, _ := w.Malloc(len(b))
		return copy(buf, b), nil
	}

	seg := segmentPool.Get().(*segment)
	seg.data = b
	seg.borrowed = true
	w.segments = append(w.segments, seg)
	w.buffered += len(b)
	return len(b), nil
}

// Flush 写出全部暂存段。无论成败，暂存段都会被释放。
func (w *bufferedWriter) Flush() error {
	if len(w.segments) == 0 {
		return nil
	}
	bufs := make(net.Buffers, 0, len(w.segments))
	for _, seg := range w.segments {
		bufs = append(bufs, seg.data)
	}
	_, err := bufs.WriteTo(w.dst)
	w.release()
	return err
}

// Buffered 返回尚未刷出的字节数。
func (w *bufferedWriter) Buffered() int {
	return w.buffered
}

func (w *bufferedWriter) release() {
	for _, seg := range w.segments {
		if !seg.borrowed {
			mcache.Free(seg.data)
		}
		*seg = segment{}
		segmentPool.Put(seg)
	}
	w.segments = w.segments[:0]
	w.buffered = 0
}

// NewWriter 将 io.Writer 包装为 Writer。
//
// 常用于将响应序列化到内存（如测试或调试输出），网络连接自身已实现 Writer。
func NewWriter(w io.Writer) Writer {
	return &bufferedWriter{dst: w}
}
