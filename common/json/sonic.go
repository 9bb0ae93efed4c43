//go:build (linux || windows || darwin) && amd64 && !stdjson

package json

import "github.com/bytedance/sonic"

// Name 是生效的 JSON 实现名称。
const Name = "sonic"

var (
	std    = sonic.ConfigStd
	strict = sonic.Config{
		EscapeHTML:            true,
		SortMapKeys:           true,
		CompactMarshaler:      true,
		CopyString:            true,
		ValidateString:        true,
		DisallowUnknownFields: true,
	}.Froze()
)

// Marshal 按标准库语义编码 v。
func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

// Unmarshal 按标准库语义解码 data，忽略未知字段。
func Unmarshal(data []byte, v any) error {
	return std.Unmarshal(data, v)
}

// UnmarshalStrict 解码 data，遇到 v 中不存在的字段时报错。
// 用于配置文件，拼错的键不会被静默忽略。
func UnmarshalStrict(data []byte, v any) error {
	return strict.Unmarshal(data, v)
}
