package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
	"github.com/wyfcoding/optionpricing/pkg/logger"
)

var (
	// ErrPublishQueueFull 发送队列已满，事件被丢弃
	ErrPublishQueueFull = errors.New("event publish queue is full")
	// ErrPublisherClosed 发布器已关闭
	ErrPublisherClosed = errors.New("event publisher is closed")
)

type publishJob struct {
	ctx       context.Context
	eventType string
	send      func(ctx context.Context) error
}

// AsyncEventPublisher 把事件放入有界队列，由单个 goroutine 顺序转发给下游发布器。
// 调用方只在入队时等待；队列满时立即返回 ErrPublishQueueFull。
type AsyncEventPublisher struct {
	next    domain.EventPublisher
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan publishJob
	done   chan struct{}
}

// NewAsyncEventPublisher 创建异步发布器并启动转发 goroutine，timeout 为单个事件的发送上限
func NewAsyncEventPublisher(next domain.EventPublisher, queueSize int, timeout time.Duration) *AsyncEventPublisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &AsyncEventPublisher{
		next:    next,
		timeout: timeout,
		queue:   make(chan publishJob, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishOptionPriced 异步发布期权定价完成事件
func (p *AsyncEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.enqueue(ctx, domain.OptionPricedEventType, func(ctx context.Context) error {
		return p.next.PublishOptionPriced(ctx, event)
	})
}

// PublishPricingError 异步发布定价错误事件
func (p *AsyncEventPublisher) PublishPricingError(ctx context.Context, event domain.PricingErrorEvent) error {
	return p.enqueue(ctx, domain.PricingErrorEventType, func(ctx context.Context) error {
		return p.next.PublishPricingError(ctx, event)
	})
}

// PublishBatchPricingCompleted 异步发布批量定价完成事件
func (p *AsyncEventPublisher) PublishBatchPricingCompleted(ctx context.Context, event domain.BatchPricingCompletedEvent) error {
	return p.enqueue(ctx, domain.BatchPricingCompletedEventType, func(ctx context.Context) error {
		return p.next.PublishBatchPricingCompleted(ctx, event)
	})
}

func (p *AsyncEventPublisher) enqueue(ctx context.Context, eventType string, send func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	// 请求结束后仍需发送，保留 trace 信息但脱离请求的取消
	job := publishJob{ctx: context.WithoutCancel(ctx), eventType: eventType, send: send}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrPublishQueueFull
	}
}

func (p *AsyncEventPublisher) run() {
	defer close(p.done)
	for job := range p.queue {
		ctx, cancel := context.WithTimeout(job.ctx, p.timeout)
		if err := job.send(ctx); err != nil {
			logger.Error(ctx, "Failed to publish event", "event_type", job.eventType, "error", err)
		}
		cancel()
	}
}

// Close 停止接收新事件，并等待队列中的事件发送完毕或 ctx 结束
func (p *AsyncEventPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ domain.EventPublisher = (*AsyncEventPublisher)(nil)
