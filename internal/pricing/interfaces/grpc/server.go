// Package grpc 定价服务的 gRPC 接口（JSON 编码）
package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/optionpricing/internal/pricing/application"
	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
	"github.com/wyfcoding/optionpricing/pkg/logger"
)

// Server PricingServiceServer 实现
type Server struct {
	app *application.PricingService
}

// NewServer 创建并注册 gRPC 服务
func NewServer(s grpc.ServiceRegistrar, app *application.PricingService) *Server {
	srv := &Server{app: app}
	RegisterPricingServiceServer(s, srv)
	return srv
}

// Evaluate 计算单一指标
func (s *Server) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	res, err := s.app.Evaluate(ctx, application.PriceOptionCommand{
		Symbol:          req.Symbol,
		OptionType:      req.OptionType,
		UnderlyingPrice: req.UnderlyingPrice,
		StrikePrice:     req.StrikePrice,
		TimeToExpiry:    req.TimeToExpiry,
		Volatility:      req.Volatility,
		Greek:           req.Greek,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &EvaluateResponse{Greek: string(res.Greek), Value: res.Value}, nil
}

// Quote 计算全部指标
func (s *Server) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	q, err := s.app.Quote(ctx, application.PriceOptionCommand{
		Symbol:          req.Symbol,
		OptionType:      req.OptionType,
		UnderlyingPrice: req.UnderlyingPrice,
		StrikePrice:     req.StrikePrice,
		TimeToExpiry:    req.TimeToExpiry,
		Volatility:      req.Volatility,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &QuoteResponse{
		Symbol:       q.Symbol,
		OptionType:   q.OptionType.String(),
		Price:        q.Price,
		Delta:        q.Delta,
		Gamma:        q.Gamma,
		Vega:         q.Vega,
		Theta:        q.Theta,
		Rho:          q.Rho,
		RiskFreeRate: q.RiskFreeRate,
		PricingModel: q.PricingModel,
		CalculatedAt: q.CalculatedAt,
	}, nil
}

// toStatus 将定价错误映射为 gRPC 状态码
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNumericOverflow):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	logger.Error(ctx, "Unexpected pricing error", "error", err)
	return status.Error(codes.Internal, "internal error")
}
