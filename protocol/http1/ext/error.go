package ext

import (
	"errors"
	"io"

	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/network"
)

var errStreamFinished = errs.New(errs.ErrStreamFinished, errs.ErrorTypePrivate, nil)

// ReadError 将连接的读取错误转换为引擎错误类别。
//
// atBoundary 表示新消息尚未读到任何字节：此时对端关闭属于正常结束，返回 ErrStreamFinished；
// 消息中途的 EOF 转为 io.ErrUnexpectedEOF，与其他故障一样包装为 ErrTransport。
func ReadError(r network.Reader, err error, atBoundary bool) error {
	if en, ok := r.(network.ErrorNormalization); ok {
		err = en.ToEngineError(err)
	}
	closed := errors.Is(err, io.EOF) || errors.Is(err, errs.ErrConnectionClosed)
	if atBoundary && closed {
		return errStreamFinished
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errs.NewTransport(err)
}

// WriteError 将连接的写入错误包装为 ErrTransport。
func WriteError(w network.Writer, err error) error {
	if en, ok := w.(network.ErrorNormalization); ok {
		err = en.ToEngineError(err)
	}
	return errs.NewTransport(err)
}
