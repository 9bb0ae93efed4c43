package config

import (
	"os"

	exprValidator "github.com/bytedance/go-tagexpr/v2/validator"
	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/json"
)

const (
	defaultMaxHeaderBytes = 8 * 1024
	defaultMaxBodyBytes   = 4 * 1024 * 1024
)

// Limits 是由外部应用传入的交换引擎部署参数。
type Limits struct {
	// MaxHeaderBytes 限制请求行加标头块（含结尾空行）的总字节数，也用于限制挂车块。
	MaxHeaderBytes int `json:"max_header_bytes" vd:"$>=64; msg:sprintf('max_header_bytes 不得小于 64，当前为 %v',$)"`
	// MaxBodyBytes 限制单个请求正文的总字节数，0 表示不允许携带正文。
	MaxBodyBytes int `json:"max_body_bytes" vd:"$>=0; msg:sprintf('max_body_bytes 不得为负数，当前为 %v',$)"`
	// KeepAliveEnabled 为否时，每次交换后都关闭连接。
	KeepAliveEnabled bool `json:"keep_alive_enabled"`
}

// DefaultLimits 返回默认限制：标头 8KB，正文 4MB，开启长连接。
func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes:   defaultMaxHeaderBytes,
		MaxBodyBytes:     defaultMaxBodyBytes,
		KeepAliveEnabled: true,
	}
}

// Validate 按 vd 标签校验限制值。
func (l *Limits) Validate() error {
	return exprValidator.Validate(l)
}

// LoadLimits 从 JSON 文件加载限制。文件中缺省的字段取默认值，未知字段视为错误。
func LoadLimits(path string) (Limits, error) {
	limits := DefaultLimits()
	b, err := os.ReadFile(path)
	if err != nil {
		return limits, err
	}
	if err = json.UnmarshalStrict(b, &limits); err != nil {
		return limits, errs.NewPrivatef("解析限制文件 %s 出错: %s", path, err)
	}
	if err = limits.Validate(); err != nil {
		return limits, err
	}
	return limits, nil
}
