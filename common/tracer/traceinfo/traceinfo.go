// Package traceinfo 保存一次交换在各阶段记录的事件与收发统计。
package traceinfo

import (
	"sync"
	"time"

	"github.com/favbox/h1engine/common/tracer/stats"
)

var (
	eventPool = sync.Pool{New: func() any { return &event{} }}

	once        sync.Once
	maxEventNum int
)

// Event 是记录在某一时刻的阶段事件。
type Event interface {
	Event() stats.Event
	Status() stats.Status
	Info() string
	Time() time.Time
	IsNil() bool
}

type event struct {
	event  stats.Event
	status stats.Status
	info   string
	time   time.Time
}

func (e *event) Event() stats.Event   { return e.event }
func (e *event) Status() stats.Status { return e.status }
func (e *event) Info() string         { return e.info }
func (e *event) Time() time.Time      { return e.time }
func (e *event) IsNil() bool          { return e == nil }

func (e *event) recycle() {
	*e = event{}
	eventPool.Put(e)
}

// HTTPStats 收集一次交换的事件与收发字节数。
//
// 同一交换只由一个连接任务写入，事件槽位加锁是为了跟踪器可在其他协程读取。
type HTTPStats interface {
	Record(event stats.Event, status stats.Status, info string)
	GetEvent(event stats.Event) Event
	// Elapsed 返回两个事件间的耗时，任一事件未记录时返回 0。
	Elapsed(start, finish stats.Event) time.Duration
	SendSize() int
	SetSendSize(size int)
	RecvSize() int
	SetRecvSize(size int)
	Error() error
	SetError(err error)
	Panicked() (bool, any)
	SetPanicked(x any)
	Level() stats.Level
	SetLevel(level stats.Level)
	Reset()
}

type httpStats struct {
	sync.RWMutex
	level  stats.Level
	events []Event

	sendSize int
	recvSize int

	err      error
	panicErr any
}

func (h *httpStats) Record(e stats.Event, status stats.Status, info string) {
	if e.Level() > h.level {
		return
	}
	evt := eventPool.Get().(*event)
	evt.event = e
	evt.status = status
	evt.info = info
	evt.time = time.Now()

	h.Lock()
	if old := h.events[e.Index()]; old != nil {
		old.(*event).recycle()
	}
	h.events[e.Index()] = evt
	h.Unlock()
}

func (h *httpStats) GetEvent(e stats.Event) Event {
	h.RLock()
	evt := h.events[e.Index()]
	h.RUnlock()
	if evt == nil || evt.IsNil() {
		return nil
	}
	return evt
}

func (h *httpStats) Elapsed(start, finish stats.Event) time.Duration {
	s, f := h.GetEvent(start), h.GetEvent(finish)
	if s == nil || f == nil {
		return 0
	}
	return f.Time().Sub(s.Time())
}

func (h *httpStats) SendSize() int        { return h.sendSize }
func (h *httpStats) SetSendSize(size int) { h.sendSize = size }
func (h *httpStats) RecvSize() int        { return h.recvSize }
func (h *httpStats) SetRecvSize(size int) { h.recvSize = size }
func (h *httpStats) Error() error         { return h.err }
func (h *httpStats) SetError(err error)   { h.err = err }

func (h *httpStats) Panicked() (bool, any) {
	return h.panicErr != nil, h.panicErr
}

func (h *httpStats) SetPanicked(x any) { h.panicErr = x }

func (h *httpStats) Level() stats.Level         { return h.level }
func (h *httpStats) SetLevel(level stats.Level) { h.level = level }

// Reset 清空事件与统计，保留记录级别，供长连接上的下一次交换复用。
func (h *httpStats) Reset() {
	h.err = nil
	h.panicErr = nil
	h.recvSize = 0
	h.sendSize = 0
	h.Lock()
	for i := range h.events {
		if h.events[i] != nil {
			h.events[i].(*event).recycle()
			h.events[i] = nil
		}
	}
	h.Unlock()
}

// NewHTTPStats 创建采集器。首次调用会冻结事件表，槽位数随之固定。
func NewHTTPStats() HTTPStats {
	once.Do(func() {
		stats.FinishInitialization()
		maxEventNum = stats.MaxEventNum()
	})
	return &httpStats{events: make([]Event, maxEventNum)}
}

// TraceInfo 是挂在交换上的跟踪信息。
type TraceInfo interface {
	Stats() HTTPStats
	Reset()
}

type traceInfo struct {
	stats HTTPStats
}

func (t *traceInfo) Stats() HTTPStats { return t.stats }
func (t *traceInfo) Reset()           { t.stats.Reset() }

// NewTraceInfo 创建跟踪信息。
func NewTraceInfo() TraceInfo {
	return &traceInfo{stats: NewHTTPStats()}
}
