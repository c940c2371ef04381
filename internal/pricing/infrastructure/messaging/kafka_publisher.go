// Package messaging 定价领域事件的发布实现
package messaging

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
	"github.com/wyfcoding/optionpricing/pkg/mq"
)

const eventTypeHeader = "event_type"

// KafkaEventPublisher 实现 EventPublisher 接口，事件以 JSON 写入同一个 topic
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaEventPublisher 创建新的 KafkaEventPublisher 实例
func NewKafkaEventPublisher(producer *mq.KafkaProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishOptionPriced 发布期权定价完成事件
func (p *KafkaEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.publishEvent(ctx, domain.OptionPricedEventType, messageKey(event.Symbol, event.EventID), event)
}

// PublishPricingError 发布定价错误事件
func (p *KafkaEventPublisher) PublishPricingError(ctx context.Context, event domain.PricingErrorEvent) error {
	return p.publishEvent(ctx, domain.PricingErrorEventType, messageKey(event.Symbol, event.EventID), event)
}

// PublishBatchPricingCompleted 发布批量定价完成事件
func (p *KafkaEventPublisher) PublishBatchPricingCompleted(ctx context.Context, event domain.BatchPricingCompletedEvent) error {
	return p.publishEvent(ctx, domain.BatchPricingCompletedEventType, event.BatchID, event)
}

func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType, key string, event any) error {
	return p.producer.SendMessage(ctx, p.topic, key, event, kafka.Header{
		Key:   eventTypeHeader,
		Value: []byte(eventType),
	})
}

// messageKey 同一合约的事件落在同一分区，未标识的合约按事件 ID 分散
func messageKey(symbol, eventID string) string {
	if symbol != "" {
		return symbol
	}
	return eventID
}

// NoopEventPublisher Kafka 关闭时使用，丢弃全部事件
type NoopEventPublisher struct{}

// PublishOptionPriced 丢弃事件
func (NoopEventPublisher) PublishOptionPriced(context.Context, domain.OptionPricedEvent) error {
	return nil
}

// PublishPricingError 丢弃事件
func (NoopEventPublisher) PublishPricingError(context.Context, domain.PricingErrorEvent) error {
	return nil
}

// PublishBatchPricingCompleted 丢弃事件
func (NoopEventPublisher) PublishBatchPricingCompleted(context.Context, domain.BatchPricingCompletedEvent) error {
	return nil
}

var (
	_ domain.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domain.EventPublisher = NoopEventPublisher{}
)
