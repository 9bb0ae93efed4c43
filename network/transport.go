package network

import (
	"context"
	"net"
	"syscall"
)

// Transporter 表示网络传输层接口，负责监听、接受连接并把就绪的连接交给 OnData。
type Transporter interface {
	// ListenAndServe 监听并准备接收连接。
	ListenAndServe(OnData) error

	// Close 立即关闭传输器。
	Close() error

	// Shutdown 平滑关闭传输器。
	Shutdown(ctx context.Context) error
}

// OnData 连接上有数据可读时的回调函数，conn 为 Conn 的实现。
//
// 事件循环传输器在每次数据就绪时调用；标准库传输器每个连接只调用一次。
type OnData func(ctx context.Context, conn any) error

// Addresser 由能报告实际监听地址的传输器实现，便于以 ":0" 监听随机端口。
type Addresser interface {
	Addr() net.Addr
}

// UnlinkUdsFile 在 unix 网络下删除残留的套接字文件，以便重新监听同一路径。
func UnlinkUdsFile(network, addr string) error {
	if network == "unix" {
		return syscall.Unlink(addr)
	}
	return nil
}
