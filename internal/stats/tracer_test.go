package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/favbox/h1engine/common/tracer/stats"
	"github.com/favbox/h1engine/common/tracer/traceinfo"
	"github.com/favbox/h1engine/protocol"
	"github.com/stretchr/testify/assert"
)

type mockTracer struct {
	order         int
	stack         *[]int
	panicAtStart  bool
	panicAtFinish bool
}

func (mt *mockTracer) Start(ctx context.Context, ex *protocol.Exchange) context.Context {
	if mt.panicAtStart {
		panic(fmt.Sprintf("启动时出现恐慌： Tracer(%d)", mt.order))
	}
	*mt.stack = append(*mt.stack, mt.order)
	return context.WithValue(ctx, mt, mt.order)
}

func (mt *mockTracer) Finish(ctx context.Context, ex *protocol.Exchange) {
	if mt.panicAtFinish {
		panic(fmt.Sprintf("结束时出现恐慌: Tracer(%d)", mt.order))
	}
	*mt.stack = append(*mt.stack, -mt.order)
}

func TestOrder(t *testing.T) {
	var c Controller
	var stack []int
	t1 := &mockTracer{order: 1, stack: &stack}
	t2 := &mockTracer{order: 2, stack: &stack}
	ex := protocol.NewExchange()
	c.Append(t1)
	c.Append(t2)

	ctx0 := context.Background()
	ctx1 := c.DoStart(ctx0, ex)
	assert.True(t, ctx1 != ctx0)
	assert.True(t, len(stack) == 2 && stack[0] == 1 && stack[1] == 2, stack)

	c.DoFinish(ctx1, ex, nil)
	assert.True(t, len(stack) == 4 && stack[2] == -2 && stack[3] == -1, stack)
}

func TestPanic(t *testing.T) {
	var c Controller
	var stack []int
	t1 := &mockTracer{order: 1, stack: &stack, panicAtStart: true, panicAtFinish: true}
	t2 := &mockTracer{order: 2, stack: &stack}
	ex := protocol.NewExchange()
	c.Append(t1)
	c.Append(t2)

	ctx0 := context.Background()
	ctx1 := c.DoStart(ctx0, ex)
	assert.True(t, ctx1 != ctx0)
	assert.True(t, len(stack) == 0) // t1 的恐慌跳过了后续全部 Start

	err := errors.New("some error")
	c.DoFinish(ctx1, ex, err)
	assert.Equal(t, err, ex.GetTraceInfo().Stats().Error())
	assert.True(t, len(stack) == 1 && stack[0] == -2, stack)
}

func TestHasTracer(t *testing.T) {
	var nilCtl *Controller
	assert.False(t, nilCtl.HasTracer())

	var c Controller
	assert.False(t, c.HasTracer())
	c.Append(&mockTracer{order: 1, stack: &[]int{}})
	assert.True(t, c.HasTracer())

	// 默认级别为禁用，不会记录事件
	ex := protocol.NewExchange()
	c.DoStart(context.Background(), ex)
	assert.Nil(t, ex.GetTraceInfo().Stats().GetEvent(stats.HTTPStart))
}

func TestRecord(t *testing.T) {
	Record(nil, stats.HTTPStart, nil)

	ti := traceinfo.NewTraceInfo()
	ti.Stats().SetLevel(stats.LevelDetailed)

	Record(ti, stats.ContinueStart, nil)
	Record(ti, stats.ContinueFinish, errors.New("broken pipe"))

	start := ti.Stats().GetEvent(stats.ContinueStart)
	finish := ti.Stats().GetEvent(stats.ContinueFinish)
	if assert.NotNil(t, start) && assert.NotNil(t, finish) {
		assert.Equal(t, stats.StatusInfo, start.Status())
		assert.Equal(t, stats.StatusError, finish.Status())
		assert.Equal(t, "broken pipe", finish.Info())
	}
}
