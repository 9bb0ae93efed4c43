package consts

import "net/http"

const unknownStatusMessage = "Unknown Status Code"

// 引擎与常见处理器使用的状态码。其余状态码可直接使用数值。
const (
	StatusContinue = 100

	StatusOK        = 200
	StatusCreated   = 201
	StatusAccepted  = 202
	StatusNoContent = 204

	StatusNotModified = 304

	StatusBadRequest                  = 400
	StatusUnauthorized                = 401
	StatusNotFound                    = 404
	StatusRequestEntityTooLarge       = 413
	StatusExpectationFailed           = 417
	StatusRequestHeaderFieldsTooLarge = 431

	StatusInternalServerError = 500
)

// 引擎自己发出的状态码固定原因短语，不随 Go 版本变化。
var engineMessages = map[int]string{
	StatusContinue:                    "Continue",
	StatusOK:                          "OK",
	StatusBadRequest:                  "Bad Request",
	StatusRequestEntityTooLarge:       "Request Entity Too Large",
	StatusExpectationFailed:           "Expectation Failed",
	StatusRequestHeaderFieldsTooLarge: "Request Header Fields Too Large",
	StatusInternalServerError:         "Internal Server Error",
}

// StatusMessage 返回状态码的标准原因短语，未注册的状态码返回 "Unknown Status Code"。
func StatusMessage(code int) string {
	if s, ok := engineMessages[code]; ok {
		return s
	}
	if s := http.StatusText(code); s != "" {
		return s
	}
	return unknownStatusMessage
}

// BodyForbidden 报告该状态码的响应是否不得携带正文（1xx、204、304）。
func BodyForbidden(code int) bool {
	return (code >= 100 && code < 200) || code == StatusNoContent || code == StatusNotModified
}
