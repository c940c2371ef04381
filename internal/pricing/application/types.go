package application

import (
	"time"

	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
)

// PricingModel 当前唯一支持的定价模型
const PricingModel = "BlackScholes"

// PriceOptionCommand 期权定价命令
type PriceOptionCommand struct {
	Symbol          string  // 合约标识，可选，仅用于事件与日志
	OptionType      string  // CALL / PUT，大小写不敏感
	UnderlyingPrice float64 // S
	StrikePrice     float64 // K
	TimeToExpiry    float64 // T（年）
	Volatility      float64 // sigma
	Greek           string  // 为空时计算价格
}

func (c PriceOptionCommand) request() (domain.QuoteRequest, error) {
	optionType, err := domain.ParseOptionType(c.OptionType)
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	return domain.QuoteRequest{
		UnderlyingPrice: c.UnderlyingPrice,
		StrikePrice:     c.StrikePrice,
		TimeToExpiry:    c.TimeToExpiry,
		Volatility:      c.Volatility,
		Type:            optionType,
	}, nil
}

// EvaluationResult 单一指标计算结果
type EvaluationResult struct {
	Greek domain.Greek `json:"greek"`
	Value float64      `json:"value"`
}

// QuoteResult 完整报价，数值按配置精度四舍五入
type QuoteResult struct {
	Symbol       string            `json:"symbol,omitempty"`
	OptionType   domain.OptionType `json:"option_type"`
	Price        float64           `json:"price"`
	Delta        float64           `json:"delta"`
	Gamma        float64           `json:"gamma"`
	Vega         float64           `json:"vega"`
	Theta        float64           `json:"theta"`
	Rho          float64           `json:"rho"`
	RiskFreeRate float64           `json:"risk_free_rate"`
	PricingModel string            `json:"pricing_model"`
	CalculatedAt time.Time         `json:"calculated_at"`
}

// BatchQuoteCommand 批量报价命令
type BatchQuoteCommand struct {
	BatchID   string
	Contracts []PriceOptionCommand
}

// BatchItemResult 批量报价中单个合约的结果，Quote 与 Error 二选一
type BatchItemResult struct {
	Index     int          `json:"index"`
	Symbol    string       `json:"symbol,omitempty"`
	Quote     *QuoteResult `json:"quote,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
}

// BatchQuoteResult 批量报价结果，Results 与输入顺序一致
type BatchQuoteResult struct {
	BatchID      string            `json:"batch_id"`
	Results      []BatchItemResult `json:"results"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	AverageTime  float64           `json:"average_time"` // 秒
}

// extractSymbols 提取去重后的非空合约标识
func extractSymbols(contracts []PriceOptionCommand) []string {
	symbols := make([]string, 0, len(contracts))
	seen := make(map[string]bool)

	for _, contract := range contracts {
		if contract.Symbol != "" && !seen[contract.Symbol] {
			symbols = append(symbols, contract.Symbol)
			seen[contract.Symbol] = true
		}
	}

	return symbols
}
