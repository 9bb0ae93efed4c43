package protocol

import (
	"net"

	"github.com/favbox/h1engine/common/tracer/traceinfo"
)

// Exchange 是一次请求/响应交换，由服务器池化复用。
type Exchange struct {
	Request  Request
	Response Response

	// ConnID 是所属连接的标识，同一连接上的多次交换共享。
	ConnID string
	// RemoteAddr 是对端地址。
	RemoteAddr net.Addr
	// Seq 是本次交换在连接上的序号，从 1 开始。
	Seq uint64

	traceInfo   traceinfo.TraceInfo
	enableTrace bool
}

// NewExchange 创建一个交换。
func NewExchange() *Exchange {
	return &Exchange{traceInfo: traceinfo.NewTraceInfo()}
}

// GetTraceInfo 返回跟踪信息。
func (ex *Exchange) GetTraceInfo() traceinfo.TraceInfo {
	return ex.traceInfo
}

// SetTraceInfo 设置跟踪信息。
func (ex *Exchange) SetTraceInfo(t traceinfo.TraceInfo) {
	ex.traceInfo = t
}

// SetEnableTrace 设置是否启用跟踪。
func (ex *Exchange) SetEnableTrace(enable bool) {
	ex.enableTrace = enable
}

// IsEnableTrace 报告是否启用跟踪。
func (ex *Exchange) IsEnableTrace() bool {
	return ex.enableTrace
}

// ResetWithoutConn 重置请求、响应与跟踪信息，保留连接相关字段。
func (ex *Exchange) ResetWithoutConn() {
	ex.Request.Reset()
	ex.Response.Reset()
	if ex.traceInfo != nil {
		ex.traceInfo.Reset()
	}
}

// Reset 完全重置以便放回对象池。
func (ex *Exchange) Reset() {
	ex.ResetWithoutConn()
	ex.ConnID = ""
	ex.RemoteAddr = nil
	ex.Seq = 0
}
