package protocol

import (
	"strings"

	"github.com/favbox/h1engine/internal/bytesconv"
)

type field struct {
	name  string
	value string
}

// Headers 是按插入顺序保存的标头集合。
//
// 查找不区分大小写，借助小写名称到字段下标的映射实现 O(1) 均摊。
// 序列化时按首次插入的顺序和名称写出。
//
// 重复策略：Add 遇到已存在的名称时，把新值以 ", " 拼接到旧值之后，
// 字段保留首次出现的位置和名称写法；Set 则直接覆盖。
type Headers struct {
	fields []field
	index  map[string]int
}

// Get 返回 name 的值，不存在时返回空字符串。
func (h *Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup 返回 name 的值及其是否存在。
func (h *Headers) Lookup(name string) (string, bool) {
	i, ok := h.index[lowerKey(name)]
	if !ok {
		return "", false
	}
	return h.fields[i].value, true
}

// Peek 返回 name 的值的字节切片，不存在时返回 nil。
//
// 返回的切片与内部存储共享，不可修改。
func (h *Headers) Peek(name string) []byte {
	v, ok := h.Lookup(name)
	if !ok {
		return nil
	}
	return bytesconv.S2b(v)
}

// Has 报告是否存在 name。
func (h *Headers) Has(name string) bool {
	_, ok := h.index[lowerKey(name)]
	return ok
}

// Set 设置 name 的值，覆盖已有的值。已有字段保持原位置和原名称。
func (h *Headers) Set(name, value string) {
	key := lowerKey(name)
	if i, ok := h.index[key]; ok {
		h.fields[i].value = value
		return
	}
	h.append(key, name, value)
}

// Add 追加 name 的值。已存在时按 ", " 拼接。
func (h *Headers) Add(name, value string) {
	key := lowerKey(name)
	if i, ok := h.index[key]; ok {
		f := &h.fields[i]
		if f.value == "" {
			f.value = value
		} else if value != "" {
			f.value = f.value + ", " + value
		}
		return
	}
	h.append(key, name, value)
}

// Del 删除 name。
func (h *Headers) Del(name string) {
	key := lowerKey(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	delete(h.index, key)
	copy(h.fields[i:], h.fields[i+1:])
	h.fields = h.fields[:len(h.fields)-1]
	for j := i; j < len(h.fields); j++ {
		h.index[lowerKey(h.fields[j].name)] = j
	}
}

// Len 返回字段个数。
func (h *Headers) Len() int {
	return len(h.fields)
}

// VisitAll 按插入顺序遍历全部字段。
func (h *Headers) VisitAll(f func(name, value string)) {
	for _, fd := range h.fields {
		f(fd.name, fd.value)
	}
}

// CopyTo 将全部字段复制到 dst，dst 原有内容会被清空。
func (h *Headers) CopyTo(dst *Headers) {
	dst.Reset()
	for _, fd := range h.fields {
		dst.Set(fd.name, fd.value)
	}
}

// Reset 清空全部字段，保留已分配的内存。
func (h *Headers) Reset() {
	h.fields = h.fields[:0]
	for k := range h.index {
		delete(h.index, k)
	}
}

// String 返回线路格式的标头块，不含结尾空行。
func (h *Headers) String() string {
	var sb strings.Builder
	for _, fd := range h.fields {
		sb.WriteString(fd.name)
		sb.WriteString(": ")
		sb.WriteString(fd.value)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

func (h *Headers) append(key, name, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	h.index[key] = len(h.fields)
	h.fields = append(h.fields, field{name: name, value: value})
}

// 已是小写时直接返回原字符串，避免分配。
func lowerKey(name string) string {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if bytesconv.ToLowerTable[c] != c {
			b := []byte(name)
			bytesconv.LowercaseBytes(b[i:])
			return bytesconv.B2s(b)
		}
	}
	return name
}

// HasToken 报告逗号分隔的 list 中是否含有 token，不区分大小写，忽略两侧空白。
func HasToken(list, token string) bool {
	for list != "" {
		var item string
		if i := strings.IndexByte(list, ','); i >= 0 {
			item, list = list[:i], list[i+1:]
		} else {
			item, list = list, ""
		}
		if strings.EqualFold(strings.Trim(item, " \t"), token) {
			return true
		}
	}
	return false
}
