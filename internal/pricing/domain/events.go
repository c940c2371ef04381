package domain

import (
	"context"
	"errors"
	"time"
)

const (
	OptionPricedEventType          = "OptionPriced"
	PricingErrorEventType          = "PricingError"
	BatchPricingCompletedEventType = "BatchPricingCompleted"
)

// OptionPricedEvent 期权定价完成事件
type OptionPricedEvent struct {
	EventID         string     `json:"event_id"`
	Symbol          string     `json:"symbol,omitempty"`
	OptionType      OptionType `json:"option_type"`
	Greek           Greek      `json:"greek"`
	Value           float64    `json:"value"`
	UnderlyingPrice float64    `json:"underlying_price"`
	StrikePrice     float64    `json:"strike_price"`
	TimeToExpiry    float64    `json:"time_to_expiry"`
	Volatility      float64    `json:"volatility"`
	RiskFreeRate    float64    `json:"risk_free_rate"`
	PricingModel    string     `json:"pricing_model"`
	OccurredOn      time.Time  `json:"occurred_on"`
}

// PricingErrorEvent 定价错误事件
type PricingErrorEvent struct {
	EventID    string    `json:"event_id"`
	Symbol     string    `json:"symbol,omitempty"`
	Greek      Greek     `json:"greek,omitempty"`
	Error      string    `json:"error"`
	ErrorCode  string    `json:"error_code"`
	OccurredOn time.Time `json:"occurred_on"`
}

// BatchPricingCompletedEvent 批量定价完成事件
type BatchPricingCompletedEvent struct {
	BatchID        string    `json:"batch_id"`
	Symbols        []string  `json:"symbols"`
	TotalContracts int       `json:"total_contracts"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	AverageTime    float64   `json:"average_time"`
	OccurredOn     time.Time `json:"occurred_on"`
}

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishOptionPriced 发布期权定价完成事件
	PublishOptionPriced(ctx context.Context, event OptionPricedEvent) error

	// PublishPricingError 发布定价错误事件
	PublishPricingError(ctx context.Context, event PricingErrorEvent) error

	// PublishBatchPricingCompleted 发布批量定价完成事件
	PublishBatchPricingCompleted(ctx context.Context, event BatchPricingCompletedEvent) error
}

// ErrorCode 错误分类，用于事件与指标标签
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrNumericOverflow):
		return "NUMERIC_OVERFLOW"
	}
	return "INTERNAL"
}
