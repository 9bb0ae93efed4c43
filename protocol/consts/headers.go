package consts

// 引擎关心的标头名称，均为规范写法。查找时不区分大小写。
const (
	HeaderConnection         = "Connection"
	HeaderContentLength      = "Content-Length"
	HeaderTransferEncoding   = "Transfer-Encoding"
	HeaderTrailer            = "Trailer"
	HeaderExpect             = "Expect"
	HeaderServer             = "Server"
	HeaderHost               = "Host"
	HeaderDate               = "Date"
	HeaderContentType        = "Content-Type"
	HeaderUpgrade            = "Upgrade"
	HeaderTE                 = "TE"
	HeaderKeepAlive          = "Keep-Alive"
	HeaderAuthorization      = "Authorization"
	HeaderProxyAuthorization = "Proxy-Authorization"
	HeaderProxyAuthenticate  = "Proxy-Authenticate"
	HeaderWWWAuthenticate    = "WWW-Authenticate"
	HeaderSetCookie          = "Set-Cookie"
	HeaderCookie             = "Cookie"
	HeaderContentEncoding    = "Content-Encoding"
	HeaderContentRange       = "Content-Range"
	HeaderCacheControl       = "Cache-Control"
	HeaderMaxForwards        = "Max-Forwards"
	HeaderAge                = "Age"
	HeaderExpires            = "Expires"
	HeaderRetryAfter         = "Retry-After"
	HeaderVary               = "Vary"
	HeaderWarning            = "Warning"
	HeaderLocation           = "Location"
	HeaderPragma             = "Pragma"
)

// 协议与标头取值。
const (
	HTTP10 = "HTTP/1.0"
	HTTP11 = "HTTP/1.1"

	ValueClose        = "close"
	ValueKeepAlive    = "keep-alive"
	ValueChunked      = "chunked"
	Value100Continue  = "100-continue"
	ValueTextPlainUTF = "text/plain; charset=utf-8"
)

// HTTP 方法。
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
)
