package req

// ReadState 表示读状态机在当前交换中的位置。
type ReadState int

const (
	// StateEmpty 没有进行中的交换，初始与结束状态。
	StateEmpty ReadState = iota
	// StateMessageReady 请求行与标头已解析，正文尚未读完。
	StateMessageReady
	// StateBodyReady 分块正文已读完，挂车尚未读取。
	StateBodyReady
)

func (s ReadState) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateMessageReady:
		return "MessageReady"
	case StateBodyReady:
		return "BodyReady"
	default:
		return "Unknown"
	}
}

type framing int

const (
	framingNone framing = iota
	framingFixed
	framingChunked
)
