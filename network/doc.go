// Package network 定义交换引擎与传输层之间的连接接口，以及接收连接的传输器。
//
// 包括两种实现：
//  1. 高性能非阻塞库 netpoll 实现。
//  2. 标准库 standard 实现。
package network
