package hlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemLogger(t *testing.T) {
	w := useTestLoggers(t)
	sys := SystemLogger()

	sys.Debug("收到标头块")
	sys.Info("开始读取正文")
	sys.Warn("对端可能已关闭")
	sys.Error("写入响应失败")
	sys.Debugf("标头 %d 行", 2)
	sys.Infof("使用网络库=%s", "standard")
	sys.Warnf("关闭超时")
	sys.CtxDebugf(WithConnID(context.Background(), "c-1"), "交还事件循环")
	sys.CtxErrorf(context.Background(), "处理出错")

	assert.Equal(t, "[Debug] h1engine: 收到标头块\n"+
		"[Info] h1engine: 开始读取正文\n"+
		"[Warn] h1engine: 对端可能已关闭\n"+
		"[Error] h1engine: 写入响应失败\n"+
		"[Debug] h1engine: 标头 2 行\n"+
		"[Info] h1engine: 使用网络库=standard\n"+
		"[Warn] h1engine: 关闭超时\n"+
		"[Debug] [conn=c-1] h1engine: 交还事件循环\n"+
		"[Error] h1engine: 处理出错\n", w.String())
}

func TestSystemLoggerSilentMode(t *testing.T) {
	w := useTestLoggers(t)

	SetSilentMode(true)
	SystemLogger().Errorf(EngineErrorFormat, "请求格式错误", "127.0.0.1:1234")
	SystemLogger().Errorf("其他错误")
	SetSilentMode(false)
	SystemLogger().Errorf(EngineErrorFormat, "请求格式错误", "127.0.0.1:1234")

	assert.Equal(t, "[Error] h1engine: 其他错误\n"+
		"[Error] h1engine: 连接处理出错: 错误=请求格式错误, 远程地址=127.0.0.1:1234\n", w.String())
}
