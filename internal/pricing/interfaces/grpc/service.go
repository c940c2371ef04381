package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const (
	// ServiceName gRPC 服务全名
	ServiceName = "pricing.v1.PricingService"

	EvaluateFullMethod = "/" + ServiceName + "/Evaluate"
	QuoteFullMethod    = "/" + ServiceName + "/Quote"
)

// EvaluateRequest 单一指标请求
type EvaluateRequest struct {
	Symbol          string  `json:"symbol,omitempty"`
	OptionType      string  `json:"option_type"`
	UnderlyingPrice float64 `json:"underlying_price"`
	StrikePrice     float64 `json:"strike_price"`
	TimeToExpiry    float64 `json:"time_to_expiry"`
	Volatility      float64 `json:"volatility"`
	Greek           string  `json:"greek,omitempty"`
}

// EvaluateResponse 单一指标结果
type EvaluateResponse struct {
	Greek string  `json:"greek"`
	Value float64 `json:"value"`
}

// QuoteRequest 完整报价请求
type QuoteRequest struct {
	Symbol          string  `json:"symbol,omitempty"`
	OptionType      string  `json:"option_type"`
	UnderlyingPrice float64 `json:"underlying_price"`
	StrikePrice     float64 `json:"strike_price"`
	TimeToExpiry    float64 `json:"time_to_expiry"`
	Volatility      float64 `json:"volatility"`
}

// QuoteResponse 完整报价结果
type QuoteResponse struct {
	Symbol       string    `json:"symbol,omitempty"`
	OptionType   string    `json:"option_type"`
	Price        float64   `json:"price"`
	Delta        float64   `json:"delta"`
	Gamma        float64   `json:"gamma"`
	Vega         float64   `json:"vega"`
	Theta        float64   `json:"theta"`
	Rho          float64   `json:"rho"`
	RiskFreeRate float64   `json:"risk_free_rate"`
	PricingModel string    `json:"pricing_model"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// PricingServiceServer 服务端接口
type PricingServiceServer interface {
	Evaluate(context.Context, *EvaluateRequest) (*EvaluateResponse, error)
	Quote(context.Context, *QuoteRequest) (*QuoteResponse, error)
}

// ServiceDesc 手写的服务描述，等价于 protoc 生成的描述
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PricingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Quote", Handler: quoteHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricing/v1/pricing",
}

// RegisterPricingServiceServer 注册服务实现
func RegisterPricingServiceServer(s grpc.ServiceRegistrar, srv PricingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PricingServiceServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PricingServiceServer).Evaluate(ctx, req.(*EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func quoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QuoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PricingServiceServer).Quote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QuoteFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PricingServiceServer).Quote(ctx, req.(*QuoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PricingServiceClient 客户端存根，所有调用使用 JSON 编码
type PricingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPricingServiceClient 创建客户端存根
func NewPricingServiceClient(cc grpc.ClientConnInterface) *PricingServiceClient {
	return &PricingServiceClient{cc: cc}
}

// Evaluate 调用 Evaluate
func (c *PricingServiceClient) Evaluate(ctx context.Context, in *EvaluateRequest, opts ...grpc.CallOption) (*EvaluateResponse, error) {
	out := new(EvaluateResponse)
	if err := c.cc.Invoke(ctx, EvaluateFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Quote 调用 Quote
func (c *PricingServiceClient) Quote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	out := new(QuoteResponse)
	if err := c.cc.Invoke(ctx, QuoteFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
