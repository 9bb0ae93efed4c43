package hlog

import (
	"context"
	"io"
	"sync/atomic"
)

const (
	systemLogPrefix = "h1engine: "

	// EngineErrorFormat 是连接任务异常结束时的系统日志格式。
	EngineErrorFormat = "连接处理出错: 错误=%s, 远程地址=%s"
)

var silentMode atomic.Bool

// SetSilentMode 开启后，连接任务的异常结束（如对端发送了错误格式的请求）不再输出系统日志。
func SetSilentMode(s bool) {
	silentMode.Store(s)
}

// systemLogger 为每条消息加上引擎前缀。
type systemLogger struct {
	logger FullLogger
	prefix string
}

func (l *systemLogger) SetOutput(w io.Writer) { l.logger.SetOutput(w) }
func (l *systemLogger) SetLevel(lv Level)     { l.logger.SetLevel(lv) }

func (l *systemLogger) Debug(v ...any) { l.logger.Debug(l.prepend(v)...) }
func (l *systemLogger) Info(v ...any)  { l.logger.Info(l.prepend(v)...) }
func (l *systemLogger) Warn(v ...any)  { l.logger.Warn(l.prepend(v)...) }
func (l *systemLogger) Error(v ...any) { l.logger.Error(l.prepend(v)...) }

func (l *systemLogger) Debugf(format string, v ...any) { l.logger.Debugf(l.prefix+format, v...) }
func (l *systemLogger) Infof(format string, v ...any)  { l.logger.Infof(l.prefix+format, v...) }
func (l *systemLogger) Warnf(format string, v ...any)  { l.logger.Warnf(l.prefix+format, v...) }

func (l *systemLogger) Errorf(format string, v ...any) {
	if format == EngineErrorFormat && silentMode.Load() {
		return
	}
	l.logger.Errorf(l.prefix+format, v...)
}

func (l *systemLogger) CtxDebugf(ctx context.Context, format string, v ...any) {
	l.logger.CtxDebugf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxInfof(ctx context.Context, format string, v ...any) {
	l.logger.CtxInfof(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxWarnf(ctx context.Context, format string, v ...any) {
	l.logger.CtxWarnf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxErrorf(ctx context.Context, format string, v ...any) {
	l.logger.CtxErrorf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) prepend(v []any) []any {
	return append([]any{l.prefix}, v...)
}
