// Package hlog 提供引擎与应用共用的分级日志。
//
// 包级函数写入默认记录器；引擎内部经 SystemLogger 输出，消息带 "h1engine: " 前缀。
package hlog

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FullLogger 是引擎使用的记录器接口。Ctx 系列方法会输出上下文中的连接标识。
type FullLogger interface {
	Debug(v ...any)
	Info(v ...any)
	Warn(v ...any)
	Error(v ...any)

	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)

	CtxDebugf(ctx context.Context, format string, v ...any)
	CtxInfof(ctx context.Context, format string, v ...any)
	CtxWarnf(ctx context.Context, format string, v ...any)
	CtxErrorf(ctx context.Context, format string, v ...any)

	// SetLevel 设置输出级别，低于该级别的消息被丢弃。
	SetLevel(Level)
	SetOutput(io.Writer)
}

// Level 是日志消息的优先级。
type Level int

// 日志级别。LevelTrace 输出全部消息，LevelFatal 只保留致命错误。
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelNotice
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = []string{"trace", "debug", "info", "notice", "warn", "error", "fatal"}

func (lv Level) String() string {
	if lv >= LevelTrace && lv <= LevelFatal {
		name := levelNames[lv]
		return "[" + strings.ToUpper(name[:1]) + name[1:] + "] "
	}
	return fmt.Sprintf("[?%d] ", lv)
}

// ParseLevel 按名称（不区分大小写）解析日志级别，如 "info"、"Warn"。
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("不支持的日志级别 %q", name)
}

// UnmarshalText 实现 encoding.TextUnmarshaler，便于从环境变量或配置文件读取级别。
func (lv *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*lv = parsed
	return nil
}
