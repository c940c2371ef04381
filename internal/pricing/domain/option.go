// 包 定价服务的领域模型
package domain

import (
	"fmt"
	"math"
	"strings"
)

// OptionType 期权类型，只有 CALL / PUT 两个取值，零值无效
type OptionType uint8

const (
	OptionTypeCall OptionType = iota + 1 // 看涨期权
	OptionTypePut                        // 看跌期权
)

// ParseOptionType 解析期权类型（大小写不敏感）
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL":
		return OptionTypeCall, nil
	case "PUT":
		return OptionTypePut, nil
	}
	return 0, &InputError{Field: "option_type", Reason: fmt.Sprintf("must be CALL or PUT, got %q", s)}
}

// Valid 是否为合法的期权类型
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

func (t OptionType) String() string {
	switch t {
	case OptionTypeCall:
		return "CALL"
	case OptionTypePut:
		return "PUT"
	}
	return fmt.Sprintf("OptionType(%d)", uint8(t))
}

// MarshalText 实现 encoding.TextMarshaler
func (t OptionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, &InputError{Field: "option_type", Reason: "unknown option type"}
	}
	return []byte(t.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (t *OptionType) UnmarshalText(text []byte) error {
	parsed, err := ParseOptionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Greek 可计算的指标
type Greek string

const (
	GreekPrice Greek = "price"
	GreekDelta Greek = "delta"
	GreekGamma Greek = "gamma"
	GreekVega  Greek = "vega"
	GreekTheta Greek = "theta"
	GreekRho   Greek = "rho"
)

// Greeks 全部可计算指标
var Greeks = []Greek{GreekPrice, GreekDelta, GreekGamma, GreekVega, GreekTheta, GreekRho}

// ParseGreek 解析指标名称，空字符串视为 price
func ParseGreek(s string) (Greek, error) {
	g := Greek(strings.ToLower(strings.TrimSpace(s)))
	if g == "" {
		return GreekPrice, nil
	}
	for _, known := range Greeks {
		if g == known {
			return g, nil
		}
	}
	return "", &InputError{Field: "greek", Reason: fmt.Sprintf("unknown greek %q", s)}
}

// QuoteRequest 期权报价请求
type QuoteRequest struct {
	UnderlyingPrice float64    // S 标的资产价格
	StrikePrice     float64    // K 行权价
	TimeToExpiry    float64    // T 到期时间（年）
	Volatility      float64    // sigma 年化波动率
	Type            OptionType // CALL / PUT
}

// Validate S、K、T、sigma 必须为有限正数，期权类型必须合法
func (r QuoteRequest) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"underlying_price", r.UnderlyingPrice},
		{"strike_price", r.StrikePrice},
		{"time_to_expiry", r.TimeToExpiry},
		{"volatility", r.Volatility},
	}
	for _, f := range fields {
		switch {
		case math.IsNaN(f.value) || math.IsInf(f.value, 0):
			return &InputError{Field: f.name, Value: f.value, Reason: "must be finite"}
		case f.value <= 0:
			return &InputError{Field: f.name, Value: f.value, Reason: "must be positive"}
		}
	}
	if !r.Type.Valid() {
		return &InputError{Field: "option_type", Reason: "must be CALL or PUT"}
	}
	return nil
}

// IntrinsicValue 立即行权价值
func IntrinsicValue(underlyingPrice, strikePrice float64, optionType OptionType) float64 {
	if optionType == OptionTypePut {
		return math.Max(strikePrice-underlyingPrice, 0)
	}
	return math.Max(underlyingPrice-strikePrice, 0)
}
