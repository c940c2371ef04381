// Package application 定价应用服务：命令解析、精度处理、批量并发、事件发布与指标
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
	"github.com/wyfcoding/optionpricing/pkg/logger"
)

// Recorder 定价指标记录器，*metrics.Metrics 满足该接口
type Recorder interface {
	RecordComputation(greek, optionType string, duration time.Duration)
	RecordError(code string)
	RecordBatch(size int)
}

// ServiceConfig 应用服务配置
type ServiceConfig struct {
	// 报价保留的小数位，0 表示不做舍入
	Precision int32
	// 批量报价的最大并发数
	BatchConcurrency int
	// 单次批量报价的最大合约数
	MaxBatchSize int
}

// PricingService 定价应用服务，并发安全
type PricingService struct {
	engine    *domain.Engine
	publisher domain.EventPublisher
	recorder  Recorder
	cfg       ServiceConfig
}

// NewPricingService 创建定价应用服务，publisher 与 recorder 可为 nil
func NewPricingService(engine *domain.Engine, publisher domain.EventPublisher, recorder Recorder, cfg ServiceConfig) *PricingService {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	return &PricingService{
		engine:    engine,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// Evaluate 计算单一指标（价格或某个希腊字母），不做舍入
func (s *PricingService) Evaluate(ctx context.Context, cmd PriceOptionCommand) (*EvaluationResult, error) {
	greek, err := domain.ParseGreek(cmd.Greek)
	if err != nil {
		s.fail(ctx, cmd, "", err)
		return nil, err
	}
	req, err := cmd.request()
	if err != nil {
		s.fail(ctx, cmd, greek, err)
		return nil, err
	}

	start := time.Now()
	value, err := s.engine.Evaluate(req, greek)
	if err != nil {
		s.fail(ctx, cmd, greek, err)
		return nil, err
	}
	s.record(greek, req.Type, time.Since(start))
	s.publishPriced(ctx, cmd.Symbol, req, greek, value)

	return &EvaluationResult{Greek: greek, Value: value}, nil
}

// Quote 一次计算全部指标，按配置精度舍入
func (s *PricingService) Quote(ctx context.Context, cmd PriceOptionCommand) (*QuoteResult, error) {
	req, err := cmd.request()
	if err != nil {
		s.fail(ctx, cmd, "", err)
		return nil, err
	}

	start := time.Now()
	q, err := s.engine.Quote(req)
	if err != nil {
		s.fail(ctx, cmd, "", err)
		return nil, err
	}
	s.record(domain.GreekPrice, req.Type, time.Since(start))
	s.publishPriced(ctx, cmd.Symbol, req, domain.GreekPrice, q.Price)

	return &QuoteResult{
		Symbol:       cmd.Symbol,
		OptionType:   req.Type,
		Price:        s.round(q.Price),
		Delta:        s.round(q.Delta),
		Gamma:        s.round(q.Gamma),
		Vega:         s.round(q.Vega),
		Theta:        s.round(q.Theta),
		Rho:          s.round(q.Rho),
		RiskFreeRate: s.engine.RiskFreeRate(),
		PricingModel: PricingModel,
		CalculatedAt: time.Now(),
	}, nil
}

// BatchQuote 并发报价多个合约，单个合约失败不影响其他合约
func (s *PricingService) BatchQuote(ctx context.Context, cmd BatchQuoteCommand) (*BatchQuoteResult, error) {
	n := len(cmd.Contracts)
	if n == 0 {
		return nil, &domain.InputError{Field: "contracts", Reason: "must not be empty"}
	}
	if s.cfg.MaxBatchSize > 0 && n > s.cfg.MaxBatchSize {
		return nil, &domain.InputError{Field: "contracts", Value: float64(n), Reason: fmt.Sprintf("exceeds max batch size %d", s.cfg.MaxBatchSize)}
	}
	if cmd.BatchID == "" {
		cmd.BatchID = uuid.NewString()
	}
	defer logger.LogDuration(ctx, "Batch quote finished", "batch_id", cmd.BatchID, "total", n)()
	if s.recorder != nil {
		s.recorder.RecordBatch(n)
	}

	results := make([]BatchItemResult, n)
	durations := make([]time.Duration, n)

	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, contract := range cmd.Contracts {
		i, contract := i, contract
		g.Go(func() error {
			results[i] = BatchItemResult{Index: i, Symbol: contract.Symbol}
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				results[i].ErrorCode = "CANCELLED"
				return nil
			}

			start := time.Now()
			q, err := s.Quote(ctx, contract)
			durations[i] = time.Since(start)
			if err != nil {
				results[i].Error = err.Error()
				results[i].ErrorCode = domain.ErrorCode(err)
				return nil
			}
			results[i].Quote = q
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn(ctx, "Batch pricing interrupted", "batch_id", cmd.BatchID, "error", err)
		return nil, err
	}

	out := &BatchQuoteResult{BatchID: cmd.BatchID, Results: results}
	var total time.Duration
	for i, r := range results {
		total += durations[i]
		if r.Quote != nil {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	out.AverageTime = total.Seconds() / float64(n)

	logger.Info(ctx, "Batch pricing completed",
		"batch_id", out.BatchID,
		"total", n,
		"success", out.SuccessCount,
		"failure", out.FailureCount,
	)

	if s.publisher != nil {
		event := domain.BatchPricingCompletedEvent{
			BatchID:        out.BatchID,
			Symbols:        extractSymbols(cmd.Contracts),
			TotalContracts: n,
			SuccessCount:   out.SuccessCount,
			FailureCount:   out.FailureCount,
			AverageTime:    out.AverageTime,
			OccurredOn:     time.Now(),
		}
		if err := s.publisher.PublishBatchPricingCompleted(ctx, event); err != nil {
			logger.Error(ctx, "Failed to publish batch pricing event", "batch_id", out.BatchID, "error", err)
		}
	}

	return out, nil
}

func (s *PricingService) round(v float64) float64 {
	if s.cfg.Precision <= 0 {
		return v
	}
	return decimal.NewFromFloat(v).Round(s.cfg.Precision).InexactFloat64()
}

func (s *PricingService) record(greek domain.Greek, optionType domain.OptionType, d time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordComputation(string(greek), optionType.String(), d)
	}
}

// fail 记录失败的计算：日志、指标与错误事件
func (s *PricingService) fail(ctx context.Context, cmd PriceOptionCommand, greek domain.Greek, err error) {
	code := domain.ErrorCode(err)
	if s.recorder != nil {
		s.recorder.RecordError(code)
	}

	if errors.Is(err, domain.ErrInvalidInput) {
		logger.Debug(ctx, "Rejected pricing request", "symbol", cmd.Symbol, "error", err)
	} else {
		logger.Warn(ctx, "Option pricing failed", "symbol", cmd.Symbol, "greek", greek, "error", err)
	}

	if s.publisher == nil {
		return
	}
	event := domain.PricingErrorEvent{
		EventID:    uuid.NewString(),
		Symbol:     cmd.Symbol,
		Greek:      greek,
		Error:      err.Error(),
		ErrorCode:  code,
		OccurredOn: time.Now(),
	}
	if perr := s.publisher.PublishPricingError(ctx, event); perr != nil {
		logger.Error(ctx, "Failed to publish pricing error event", "symbol", cmd.Symbol, "error", perr)
	}
}

func (s *PricingService) publishPriced(ctx context.Context, symbol string, req domain.QuoteRequest, greek domain.Greek, value float64) {
	if s.publisher == nil {
		return
	}
	event := domain.OptionPricedEvent{
		EventID:         uuid.NewString(),
		Symbol:          symbol,
		OptionType:      req.Type,
		Greek:           greek,
		Value:           value,
		UnderlyingPrice: req.UnderlyingPrice,
		StrikePrice:     req.StrikePrice,
		TimeToExpiry:    req.TimeToExpiry,
		Volatility:      req.Volatility,
		RiskFreeRate:    s.engine.RiskFreeRate(),
		PricingModel:    PricingModel,
		OccurredOn:      time.Now(),
	}
	if err := s.publisher.PublishOptionPriced(ctx, event); err != nil {
		logger.Error(ctx, "Failed to publish option priced event", "symbol", symbol, "error", err)
	}
}
