// Package bytesconv 提供报文解析与序列化共用的零分配字节转换。
package bytesconv

import (
	"errors"
	"math"
	"unsafe"

	"github.com/favbox/h1engine/network"
)

const lowerHex = "0123456789abcdef"

var (
	errEmptyInt               = errors.New("空的十进制数")
	errUnexpectedFirstChar    = errors.New("十进制数须以 0-9 开头")
	errUnexpectedTrailingChar = errors.New("十进制数后有多余字符")
	errTooLongInt             = errors.New("十进制数溢出")
)

// LowercaseBytes 原地将 b 中的 ASCII 字母转为小写。
func LowercaseBytes(b []byte) {
	for i := range b {
		b[i] = ToLowerTable[b[i]]
	}
}

// B2s 将字节切片转为字符串，且不分配内存。
//
// 注意：返回的字符串与 b 共享内存，b 被修改或回收后不可再使用。
func B2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2b 将字符串转为字节切片，且不分配内存。返回的切片只读。
func S2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// AppendUint 向 dst 追加非负整数 n 的十进制表示。
func AppendUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG: AppendUint 不接受负数")
	}
	var digits [20]byte
	i := len(digits)
	for {
		i--
		digits[i] = '0' + byte(n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, digits[i:]...)
}

// ParseUintBuf 解析 b 开头的十进制整数，返回值和已消费的字节数。
func ParseUintBuf(b []byte) (v, n int, err error) {
	if len(b) == 0 {
		return -1, 0, errEmptyInt
	}
	for n = 0; n < len(b); n++ {
		d := int(b[n]) - '0'
		if d < 0 || d > 9 {
			if n == 0 {
				return -1, 0, errUnexpectedFirstChar
			}
			return v, n, nil
		}
		if v > (math.MaxInt-d)/10 {
			return -1, n, errTooLongInt
		}
		v = v*10 + d
	}
	return v, n, nil
}

// ParseUint 解析 b 中的十进制整数，b 必须全部由数字组成。
func ParseUint(b []byte) (int, error) {
	v, n, err := ParseUintBuf(b)
	if err != nil {
		return -1, err
	}
	if n != len(b) {
		return -1, errUnexpectedTrailingChar
	}
	return v, nil
}

// WriteHexInt 以小写十六进制向 w 写入非负整数 n，用作分块的长度行。返回写入的字节数。
func WriteHexInt(w network.Writer, n int) (int, error) {
	if n < 0 {
		panic("BUG: WriteHexInt 不接受负数")
	}
	var digits [16]byte
	i := len(digits)
	for {
		i--
		digits[i] = lowerHex[n&0xf]
		n >>= 4
		if n == 0 {
			break
		}
	}
	buf, err := w.Malloc(len(digits) - i)
	if err != nil {
		return 0, err
	}
	return copy(buf, digits[i:]), nil
}
