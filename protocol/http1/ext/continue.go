package ext

import (
	"strings"

	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
)

// RequiresContinue 报告请求方是否在等待 "100 Continue" 后才发送正文。
//
// 仅当 Expect 的值恰为 100-continue（不区分大小写，忽略两侧空白）且协议为 HTTP/1.1 时成立。
// HTTP/1.0 对端不理解临时响应，不应向其发送。
func RequiresContinue(h *protocol.Headers, proto string) bool {
	if proto != consts.HTTP11 {
		return false
	}
	v, ok := h.Lookup(consts.HeaderExpect)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.Trim(v, " \t"), consts.Value100Continue)
}
