package hlog

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

const logFlags = log.LstdFlags | log.Lshortfile | log.Lmicroseconds

var (
	logger    FullLogger = newDefaultLogger(os.Stderr, logFlags)
	sysLogger FullLogger = &systemLogger{logger: newDefaultLogger(os.Stderr, logFlags), prefix: systemLogPrefix}
)

// DefaultLogger 返回默认记录器。
func DefaultLogger() FullLogger { return logger }

// SystemLogger 返回引擎内部使用的记录器。
func SystemLogger() FullLogger { return sysLogger }

// SetLogger 替换默认记录器与系统记录器。须在服务启动前调用。
func SetLogger(v FullLogger) {
	logger = v
	SetSystemLogger(v)
}

// SetSystemLogger 只替换系统记录器。须在服务启动前调用。
func SetSystemLogger(v FullLogger) {
	sysLogger = &systemLogger{logger: v, prefix: systemLogPrefix}
}

// SetOutput 同时设置默认记录器与系统记录器的输出。默认为 os.Stderr。
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	sysLogger.SetOutput(w)
}

// SetLevel 同时设置默认记录器与系统记录器的级别。默认为 LevelTrace。
func SetLevel(lv Level) {
	logger.SetLevel(lv)
	sysLogger.SetLevel(lv)
}

func Debug(v ...any) { logger.Debug(v...) }
func Info(v ...any)  { logger.Info(v...) }
func Warn(v ...any)  { logger.Warn(v...) }
func Error(v ...any) { logger.Error(v...) }

func Debugf(format string, v ...any) { logger.Debugf(format, v...) }
func Infof(format string, v ...any)  { logger.Infof(format, v...) }
func Warnf(format string, v ...any)  { logger.Warnf(format, v...) }
func Errorf(format string, v ...any) { logger.Errorf(format, v...) }

func CtxDebugf(ctx context.Context, format string, v ...any) { logger.CtxDebugf(ctx, format, v...) }
func CtxInfof(ctx context.Context, format string, v ...any)  { logger.CtxInfof(ctx, format, v...) }
func CtxWarnf(ctx context.Context, format string, v ...any)  { logger.CtxWarnf(ctx, format, v...) }
func CtxErrorf(ctx context.Context, format string, v ...any) { logger.CtxErrorf(ctx, format, v...) }

// defaultLogger 基于标准库 log 输出。depth 用于让 Lshortfile 指向业务调用处。
type defaultLogger struct {
	std   *log.Logger
	level Level
	depth int
}

func newDefaultLogger(w io.Writer, flags int) *defaultLogger {
	return &defaultLogger{std: log.New(w, "", flags), depth: 4}
}

func (l *defaultLogger) SetOutput(w io.Writer) { l.std.SetOutput(w) }
func (l *defaultLogger) SetLevel(lv Level)     { l.level = lv }

func (l *defaultLogger) Debug(v ...any) { l.output(nil, LevelDebug, "", v, false) }
func (l *defaultLogger) Info(v ...any)  { l.output(nil, LevelInfo, "", v, false) }
func (l *defaultLogger) Warn(v ...any)  { l.output(nil, LevelWarn, "", v, false) }
func (l *defaultLogger) Error(v ...any) { l.output(nil, LevelError, "", v, false) }

func (l *defaultLogger) Debugf(format string, v ...any) { l.output(nil, LevelDebug, format, v, true) }
func (l *defaultLogger) Infof(format string, v ...any)  { l.output(nil, LevelInfo, format, v, true) }
func (l *defaultLogger) Warnf(format string, v ...any)  { l.output(nil, LevelWarn, format, v, true) }
func (l *defaultLogger) Errorf(format string, v ...any) { l.output(nil, LevelError, format, v, true) }

func (l *defaultLogger) CtxDebugf(ctx context.Context, format string, v ...any) {
	l.output(ctx, LevelDebug, format, v, true)
}

func (l *defaultLogger) CtxInfof(ctx context.Context, format string, v ...any) {
	l.output(ctx, LevelInfo, format, v, true)
}

func (l *defaultLogger) CtxWarnf(ctx context.Context, format string, v ...any) {
	l.output(ctx, LevelWarn, format, v, true)
}

func (l *defaultLogger) CtxErrorf(ctx context.Context, format string, v ...any) {
	l.output(ctx, LevelError, format, v, true)
}

func (l *defaultLogger) output(ctx context.Context, lv Level, format string, v []any, formatted bool) {
	if l.level > lv {
		return
	}
	msg := lv.String()
	if id := ConnID(ctx); id != "" {
		msg += "[conn=" + id + "] "
	}
	if formatted {
		msg += fmt.Sprintf(format, v...)
	} else {
		msg += fmt.Sprint(v...)
	}
	_ = l.std.Output(l.depth, msg)
}
