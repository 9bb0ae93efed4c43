package resp

// WriteState 表示写状态机在当前交换中的位置。
type WriteState int

const (
	// StateNotStarted 尚未写出任何响应内容。
	StateNotStarted WriteState = iota
	// StateContinueIssued 已写出 100 Continue，最终响应待写。
	StateContinueIssued
	// StateResponseStarted 状态行与标头已写出，正文或挂车待写。
	StateResponseStarted
	// StateFinished 响应已完整写出。
	StateFinished
)

func (s WriteState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateContinueIssued:
		return "ContinueIssued"
	case StateResponseStarted:
		return "ResponseStarted"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}
