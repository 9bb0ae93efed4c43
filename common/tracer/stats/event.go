// Package stats 定义交换各阶段的跟踪事件与记录级别。
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/favbox/h1engine/common/errors"
)

// EventIndex 是事件在 HTTPStats 中的槽位。
type EventIndex int

// Level 是记录级别，事件级别高于采集器级别时不记录。
type Level int

// 记录级别。
const (
	LevelDisabled Level = iota
	LevelBase
	LevelDetailed
)

// Status 表示事件发生时的结果。
type Status int8

// 事件结果。
const (
	StatusInfo  Status = 1
	StatusWarn  Status = 2
	StatusError Status = 3
)

// Event 是交换中的一个可记录时间点。
type Event interface {
	Index() EventIndex
	Level() Level
	Name() string
}

type event struct {
	idx   EventIndex
	level Level
	name  string
}

func (e event) Index() EventIndex { return e.idx }
func (e event) Level() Level      { return e.level }
func (e event) Name() string      { return e.name }

const (
	_ EventIndex = iota
	httpStart
	httpFinish
	readHeaderStart
	readHeaderFinish
	continueStart
	continueFinish
	readBodyStart
	readBodyFinish
	serverHandleStart
	serverHandleFinish
	writeStart
	writeFinish
	predefinedEventNum
)

// 预定义的事件。HTTPStart 与 HTTPFinish 包住整个交换，其余成对包住各阶段。
var (
	HTTPStart  = newEvent(httpStart, LevelBase, "http_start")
	HTTPFinish = newEvent(httpFinish, LevelBase, "http_finish")

	ReadHeaderStart    = newEvent(readHeaderStart, LevelDetailed, "read_header_start")
	ReadHeaderFinish   = newEvent(readHeaderFinish, LevelDetailed, "read_header_finish")
	ContinueStart      = newEvent(continueStart, LevelDetailed, "continue_start")   // 写 100 Continue 前
	ContinueFinish     = newEvent(continueFinish, LevelDetailed, "continue_finish") // 100 Continue 已刷出
	ReadBodyStart      = newEvent(readBodyStart, LevelDetailed, "read_body_start")
	ReadBodyFinish     = newEvent(readBodyFinish, LevelDetailed, "read_body_finish")
	ServerHandleStart  = newEvent(serverHandleStart, LevelDetailed, "handle_start")
	ServerHandleFinish = newEvent(serverHandleFinish, LevelDetailed, "handle_finish")
	WriteStart         = newEvent(writeStart, LevelDetailed, "write_start")
	WriteFinish        = newEvent(writeFinish, LevelDetailed, "write_finish")
)

// Phase 是由一对事件界定的交换阶段。
type Phase struct {
	Name   string
	Start  Event
	Finish Event
}

// Phases 按发生顺序列出交换的详细阶段。
var Phases = []Phase{
	{Name: "read_header", Start: ReadHeaderStart, Finish: ReadHeaderFinish},
	{Name: "continue", Start: ContinueStart, Finish: ContinueFinish},
	{Name: "read_body", Start: ReadBodyStart, Finish: ReadBodyFinish},
	{Name: "handle", Start: ServerHandleStart, Finish: ServerHandleFinish},
	{Name: "write", Start: WriteStart, Finish: WriteFinish},
}

// 事件定义错误。
var (
	ErrNotAllowed = errors.NewPublic("首个采集器创建后不允许再定义事件")
	ErrDuplicate  = errors.NewPublic("事件名称已被定义")
)

var (
	lock        sync.RWMutex
	initialized int32
	userDefined = make(map[string]Event)
	maxEventNum = int(predefinedEventNum)
)

// FinishInitialization 冻结事件表。之后 DefinedNewEvent 返回 ErrNotAllowed。
func FinishInitialization() {
	atomic.StoreInt32(&initialized, 1)
}

// DefinedNewEvent 在程序初始化阶段追加自定义事件。同名事件返回已有事件和 ErrDuplicate。
func DefinedNewEvent(name string, level Level) (Event, error) {
	if atomic.LoadInt32(&initialized) == 1 {
		return nil, ErrNotAllowed
	}
	lock.Lock()
	defer lock.Unlock()
	if evt, ok := userDefined[name]; ok {
		return evt, ErrDuplicate
	}
	evt := newEvent(EventIndex(maxEventNum), level, name)
	userDefined[name] = evt
	maxEventNum++
	return evt, nil
}

// MaxEventNum 返回事件槽位总数（含预定义与自定义）。
func MaxEventNum() int {
	lock.RLock()
	defer lock.RUnlock()
	return maxEventNum
}

func newEvent(idx EventIndex, level Level, name string) Event {
	return event{idx: idx, level: level, name: name}
}
