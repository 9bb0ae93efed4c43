package stats

import (
	"context"
	"runtime/debug"

	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/common/tracer"
	"github.com/favbox/h1engine/common/tracer/stats"
	"github.com/favbox/h1engine/common/tracer/traceinfo"
	"github.com/favbox/h1engine/protocol"
)

// Record 以 err 决定事件结果，并记录到 ti 的采集器。ti 为空时忽略。
func Record(ti traceinfo.TraceInfo, event stats.Event, err error) {
	if ti == nil {
		return
	}
	if err != nil {
		ti.Stats().Record(event, stats.StatusError, err.Error())
		return
	}
	ti.Stats().Record(event, stats.StatusInfo, "")
}

// Controller 用于控制跟踪器。
type Controller struct {
	tracers []tracer.Tracer
}

// Append 追加一个新的跟踪器到控制器。
func (ctl *Controller) Append(col tracer.Tracer) {
	ctl.tracers = append(ctl.tracers, col)
}

// DoStart 启动跟踪器。
func (ctl *Controller) DoStart(ctx context.Context, ex *protocol.Exchange) context.Context {
	defer ctl.tryRecover()
	Record(ex.GetTraceInfo(), stats.HTTPStart, nil)

	for _, col := range ctl.tracers {
		ctx = col.Start(ctx, ex)
	}
	return ctx
}

// DoFinish 以相反的顺序调用跟踪器。
func (ctl *Controller) DoFinish(ctx context.Context, ex *protocol.Exchange, err error) {
	defer ctl.tryRecover()
	Record(ex.GetTraceInfo(), stats.HTTPFinish, err)
	if err != nil {
		ex.GetTraceInfo().Stats().SetError(err)
	}

	// 倒序执行
	for i := len(ctl.tracers) - 1; i >= 0; i-- {
		ctl.tracers[i].Finish(ctx, ex)
	}
}

// HasTracer 是否有跟踪器？
func (ctl *Controller) HasTracer() bool {
	return ctl != nil && len(ctl.tracers) > 0
}

func (ctl *Controller) tryRecover() {
	if err := recover(); err != nil {
		hlog.SystemLogger().Warnf("调用跟踪器时出现恐慌。交换本身不受影响，但可能丢失度量指标：%s, %s", err, string(debug.Stack()))
	}
}
