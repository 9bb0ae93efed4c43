package errors

import (
	"errors"
	"fmt"
)

// 交换引擎对外暴露的错误类别，统一使用 errors.Is 判定。
var (
	// ErrStreamFinished 对端在消息边界处关闭了连接，属于正常结束，而非故障。
	ErrStreamFinished = errors.New("数据流已结束")
	// ErrMalformedRequest 请求行、标头或分块帧违反了报文语法。
	ErrMalformedRequest = errors.New("请求格式错误")
	// ErrRequestTooLarge 请求超出了配置的大小限制。
	ErrRequestTooLarge = errors.New("请求过大")
	// ErrHeaderTooLarge 请求头部超出 MaxHeaderBytes。
	ErrHeaderTooLarge = fmt.Errorf("%w: 标头超出限制", ErrRequestTooLarge)
	// ErrBodyTooLarge 请求正文超出 MaxBodyBytes。
	ErrBodyTooLarge = fmt.Errorf("%w: 正文超出限制", ErrRequestTooLarge)
	// ErrInvalidWriteSequence 写状态机被错误地调用。
	ErrInvalidWriteSequence = errors.New("无效的写入顺序")
	// ErrInvalidHeaderField 响应中的标头名称或值不合法。
	ErrInvalidHeaderField = fmt.Errorf("%w: 非法的标头字段", ErrInvalidWriteSequence)
	// ErrInvalidReadSequence 读状态机被错误地调用。
	ErrInvalidReadSequence = errors.New("无效的读取顺序")
	// ErrTransport 底层连接故障。
	ErrTransport = errors.New("传输错误")
)

// 引擎内部使用的错误。
var (
	ErrTimeout          = errors.New("timeout")
	ErrIdleTimeout      = errors.New("idle timeout")
	ErrConnectionClosed = errors.New("连接已关闭")
	ErrNeedMore         = errors.New("需要更多数据")
	ErrShortConnection  = errors.New("短链接")
)

type ErrorType uint64

// Error 表示一个带有错误类型和元信息的错误规范。
type Error struct {
	Err  error
	Type ErrorType
	Meta any
}

// 返回错误的消息字符串。
func (msg *Error) Error() string {
	if msg.Meta != nil {
		return fmt.Sprintf("%s: %v", msg.Err.Error(), msg.Meta)
	}
	return msg.Err.Error()
}

func (msg *Error) Unwrap() error {
	return msg.Err
}

func (msg *Error) IsType(flags ErrorType) bool {
	return (msg.Type & flags) > 0
}

func (msg *Error) SetType(flags ErrorType) *Error {
	msg.Type = flags
	return msg
}

func (msg *Error) SetMeta(data any) *Error {
	msg.Meta = data
	return msg
}

const (
	// ErrorTypePrivate 表示一个私有的错误。
	ErrorTypePrivate ErrorType = 1 << iota
	// ErrorTypePublic 表示一个公开的错误。
	ErrorTypePublic
	// ErrorTypeAny 表示任何其他错误。
	ErrorTypeAny
)

var _ error = (*Error)(nil)

// New 新建一个指定错误和错误类型及元数据的自定义错误。
func New(err error, t ErrorType, meta any) *Error {
	return &Error{
		Err:  err,
		Type: t,
		Meta: meta,
	}
}

func NewPublic(err string) *Error {
	return New(errors.New(err), ErrorTypePublic, nil)
}

func NewPrivate(err string) *Error {
	return New(errors.New(err), ErrorTypePrivate, nil)
}

func Newf(t ErrorType, meta any, format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), t, meta)
}

func NewPublicf(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePublic, nil)
}

func NewPrivatef(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePrivate, nil)
}

// NewMalformed 返回一个描述报文语法错误的公开错误。
func NewMalformed(format string, v ...any) *Error {
	return New(fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, v...)), ErrorTypePublic, nil)
}

// NewInvalidWrite 返回一个描述写状态机误用的私有错误。
func NewInvalidWrite(format string, v ...any) *Error {
	return New(fmt.Errorf("%w: %s", ErrInvalidWriteSequence, fmt.Sprintf(format, v...)), ErrorTypePrivate, nil)
}

// NewTransport 包装底层连接错误，同时保留 ErrTransport 与原始错误两条链路。cause 不可为 nil。
func NewTransport(cause error) *Error {
	return New(fmt.Errorf("%w: %w", ErrTransport, cause), ErrorTypePrivate, nil)
}

// IsStreamFinished 判断 err 是否为正常的数据流结束。
func IsStreamFinished(err error) bool {
	return errors.Is(err, ErrStreamFinished)
}
