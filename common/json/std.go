//go:build stdjson || !(amd64 && (linux || windows || darwin))

package json

import (
	"bytes"
	"encoding/json"
)

// Name 是生效的 JSON 实现名称。
const Name = "encoding/json"

// Marshal 按标准库语义编码 v。
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal 按标准库语义解码 data，忽略未知字段。
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalStrict 解码 data，遇到 v 中不存在的字段时报错。
// 用于配置文件，拼错的键不会被静默忽略。
func UnmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
