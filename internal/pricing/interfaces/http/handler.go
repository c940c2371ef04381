package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/optionpricing/internal/pricing/application"
	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
	"github.com/wyfcoding/optionpricing/pkg/logger"
)

// PricingHandler HTTP 处理器
// 负责处理与定价相关的 HTTP 请求
type PricingHandler struct {
	svc *application.PricingService
}

// NewPricingHandler 创建 HTTP 处理器实例
func NewPricingHandler(svc *application.PricingService) *PricingHandler {
	return &PricingHandler{svc: svc}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由
func (h *PricingHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/price", h.Price)

	api := router.Group("/api/v1/pricing")
	{
		api.POST("/option/quote", h.Quote)
		api.POST("/option/batch", h.BatchQuote)
	}
}

// PriceRequest POST /price 请求体
type PriceRequest struct {
	S          float64 `json:"S"`
	K          float64 `json:"K"`
	T          float64 `json:"T"`
	Sigma      float64 `json:"sigma"`
	OptionType string  `json:"optionType"`
	Greek      string  `json:"greek"`
}

// ContractRequest 报价接口的合约参数
type ContractRequest struct {
	Symbol          string  `json:"symbol"`
	OptionType      string  `json:"option_type"`
	UnderlyingPrice float64 `json:"underlying_price"`
	StrikePrice     float64 `json:"strike_price"`
	TimeToExpiry    float64 `json:"time_to_expiry"`
	Volatility      float64 `json:"volatility"`
}

func (r ContractRequest) command() application.PriceOptionCommand {
	return application.PriceOptionCommand{
		Symbol:          r.Symbol,
		OptionType:      r.OptionType,
		UnderlyingPrice: r.UnderlyingPrice,
		StrikePrice:     r.StrikePrice,
		TimeToExpiry:    r.TimeToExpiry,
		Volatility:      r.Volatility,
	}
}

// BatchRequest 批量报价请求体
type BatchRequest struct {
	BatchID   string            `json:"batch_id"`
	Contracts []ContractRequest `json:"contracts"`
}

// Price 计算单一指标，greek 为空时返回价格
func (h *PricingHandler) Price(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}

	res, err := h.svc.Evaluate(c.Request.Context(), application.PriceOptionCommand{
		OptionType:      req.OptionType,
		UnderlyingPrice: req.S,
		StrikePrice:     req.K,
		TimeToExpiry:    req.T,
		Volatility:      req.Sigma,
		Greek:           req.Greek,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": res.Value})
}

// Quote 计算全部指标
func (h *PricingHandler) Quote(c *gin.Context) {
	var req ContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}

	res, err := h.svc.Quote(c.Request.Context(), req.command())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// BatchQuote 批量报价，单个合约的错误在结果中返回
func (h *PricingHandler) BatchQuote(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}

	cmd := application.BatchQuoteCommand{
		BatchID:   req.BatchID,
		Contracts: make([]application.PriceOptionCommand, 0, len(req.Contracts)),
	}
	for _, contract := range req.Contracts {
		cmd.Contracts = append(cmd.Contracts, contract.command())
	}

	res, err := h.svc.BatchQuote(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// StatusFor 将定价错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNumericOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *PricingHandler) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "Failed to price option", "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
