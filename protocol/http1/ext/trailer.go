package ext

import "strings"

// 不允许出现在挂车中的字段：消息分帧、路由、请求修饰、认证以及响应控制相关。
var forbiddenTrailers = map[string]struct{}{
	"authorization":       {},
	"cache-control":       {},
	"connection":          {},
	"content-encoding":    {},
	"content-length":      {},
	"content-range":       {},
	"content-type":        {},
	"expect":              {},
	"host":                {},
	"keep-alive":          {},
	"max-forwards":        {},
	"pragma":              {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"proxy-connection":    {},
	"range":               {},
	"realm":               {},
	"te":                  {},
	"trailer":             {},
	"transfer-encoding":   {},
	"www-authenticate":    {},
}

// IsForbiddenTrailer 报告 name 是否不得作为挂车字段。
func IsForbiddenTrailer(name string) bool {
	_, ok := forbiddenTrailers[strings.ToLower(name)]
	return ok
}
