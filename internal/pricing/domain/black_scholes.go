package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultRiskFreeRate 默认无风险利率
const DefaultRiskFreeRate = 0.02

// σ√T 小于该值时 d1/d2 取极限值，避免除零
const minStdDev = 1e-12

// EngineConfig 定价引擎配置，构造后不可变
type EngineConfig struct {
	RiskFreeRate float64 // 连续复利无风险利率
}

// DefaultEngineConfig 默认配置（r = 0.02）
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{RiskFreeRate: DefaultRiskFreeRate}
}

// Engine Black-Scholes-Merton 欧式期权定价引擎
// 假设：标的对数正态、波动率与利率恒定、无股息、连续交易、无交易成本。
// Engine 无可变状态，可被任意数量的 goroutine 并发调用。
type Engine struct {
	riskFreeRate float64
}

// NewEngine 创建定价引擎
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if math.IsNaN(cfg.RiskFreeRate) || math.IsInf(cfg.RiskFreeRate, 0) {
		return nil, &InputError{Field: "risk_free_rate", Value: cfg.RiskFreeRate, Reason: "must be finite"}
	}
	return &Engine{riskFreeRate: cfg.RiskFreeRate}, nil
}

// RiskFreeRate 返回构造时配置的无风险利率
func (e *Engine) RiskFreeRate() float64 {
	return e.riskFreeRate
}

// Quote 一次计算得到的全部指标
type Quote struct {
	Price float64
	Delta float64
	Gamma float64
	Vega  float64 // 波动率每变动 1 个百分点
	Theta float64 // 每年
	Rho   float64 // 利率每变动 1 个百分点
	D1    float64 // 退化情形下可能为 ±Inf
	D2    float64
}

// terms 单次调用内共享的中间量
type terms struct {
	req      QuoteRequest
	r        float64
	sqrtT    float64
	stdDev   float64 // σ√T
	discount float64 // e^(-rT)
	d1       float64
	d2       float64
}

func (e *Engine) prepare(req QuoteRequest) (*terms, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r := e.riskFreeRate
	t := &terms{
		req:      req,
		r:        r,
		sqrtT:    math.Sqrt(req.TimeToExpiry),
		discount: math.Exp(-r * req.TimeToExpiry),
	}
	t.stdDev = req.Volatility * t.sqrtT
	if !isFinite(t.discount) {
		return nil, overflow("discount factor", t.discount)
	}

	moneyness := math.Log(req.UnderlyingPrice / req.StrikePrice)
	if t.stdDev < minStdDev {
		// 极限情形：d1、d2 趋于 ±∞（远期价内/价外）或 0（恰在远期）
		switch forward := moneyness + r*req.TimeToExpiry; {
		case forward > 0:
			t.d1, t.d2 = math.Inf(1), math.Inf(1)
		case forward < 0:
			t.d1, t.d2 = math.Inf(-1), math.Inf(-1)
		}
		return t, nil
	}

	t.d1 = (moneyness + (r+0.5*req.Volatility*req.Volatility)*req.TimeToExpiry) / t.stdDev
	t.d2 = t.d1 - t.stdDev
	if !isFinite(t.d1) {
		return nil, overflow("d1", t.d1)
	}
	if !isFinite(t.d2) {
		return nil, overflow("d2", t.d2)
	}
	return t, nil
}

func (t *terms) price() float64 {
	s, k := t.req.UnderlyingPrice, t.req.StrikePrice
	var p float64
	if t.req.Type == OptionTypeCall {
		p = s*normCDF(t.d1) - k*t.discount*normCDF(t.d2)
	} else {
		p = k*t.discount*normCDF(-t.d2) - s*normCDF(-t.d1)
	}
	// 消除舍入带来的微小负值
	return math.Max(p, 0)
}

func (t *terms) delta() float64 {
	if t.req.Type == OptionTypeCall {
		return normCDF(t.d1)
	}
	return normCDF(t.d1) - 1
}

func (t *terms) gamma() float64 {
	pdf := normPDF(t.d1)
	if pdf == 0 {
		return 0
	}
	return pdf / (t.req.UnderlyingPrice * t.stdDev)
}

func (t *terms) vega() float64 {
	return t.req.UnderlyingPrice * t.sqrtT * normPDF(t.d1) / 100
}

func (t *terms) theta() float64 {
	decay := -t.req.UnderlyingPrice * normPDF(t.d1) * t.req.Volatility / (2 * t.sqrtT)
	carry := t.r * t.req.StrikePrice * t.discount
	if t.req.Type == OptionTypeCall {
		return decay - carry*normCDF(t.d2)
	}
	return decay + carry*normCDF(-t.d2)
}

func (t *terms) rho() float64 {
	k := t.req.StrikePrice * t.req.TimeToExpiry * t.discount
	if t.req.Type == OptionTypeCall {
		return k * normCDF(t.d2) / 100
	}
	return -k * normCDF(-t.d2) / 100
}

// Price 期权理论价格
//
//	Call: S·Φ(d1) − K·e^(−rT)·Φ(d2)
//	Put:  K·e^(−rT)·Φ(−d2) − S·Φ(−d1)
func (e *Engine) Price(req QuoteRequest) (float64, error) {
	return e.evaluate(req, GreekPrice)
}

// Delta 价格对标的价格的一阶导数。Call 为 Φ(d1)，Put 为 Φ(d1) − 1
func (e *Engine) Delta(req QuoteRequest) (float64, error) {
	return e.evaluate(req, GreekDelta)
}

// Gamma 为 φ(d1) / (S·σ·√T)，与期权类型无关
func (e *Engine) Gamma(req QuoteRequest) (float64, error) {
	return e.evaluate(req, GreekGamma)
}

// Vega 返回 S·√T·φ(d1) / 100。
//
// 单位约定：结果是波动率变动 1 个百分点（例如 0.20 -> 0.21）时的价格变化，
// 而不是对 sigma 的原始导数；原始导数等于返回值乘以 100。与期权类型无关。
func (e *Engine) Vega(req QuoteRequest) (float64, error) {
	return e.evaluate(req, GreekVega)
}

// Theta 每年的时间价值衰减
func (e *Engine) Theta(req QuoteRequest) (float64, error) {
	return e.evaluate(req, GreekTheta)
}

// Rho 利率变动 1 个百分点时的价格变化
func (e *Engine) Rho(req QuoteRequest) (float64, error) {
	return e.evaluate(req, GreekRho)
}

// Evaluate 计算指定指标
func (e *Engine) Evaluate(req QuoteRequest, greek Greek) (float64, error) {
	return e.evaluate(req, greek)
}

func (e *Engine) evaluate(req QuoteRequest, greek Greek) (float64, error) {
	t, err := e.prepare(req)
	if err != nil {
		return 0, err
	}
	var v float64
	switch greek {
	case GreekPrice:
		v = t.price()
	case GreekDelta:
		v = t.delta()
	case GreekGamma:
		v = t.gamma()
	case GreekVega:
		v = t.vega()
	case GreekTheta:
		v = t.theta()
	case GreekRho:
		v = t.rho()
	default:
		return 0, &InputError{Field: "greek", Reason: fmt.Sprintf("unknown greek %q", greek)}
	}
	if !isFinite(v) {
		return 0, overflow(string(greek), v)
	}
	return v, nil
}

// Quote 共用同一组 d1/d2 计算全部指标
func (e *Engine) Quote(req QuoteRequest) (*Quote, error) {
	t, err := e.prepare(req)
	if err != nil {
		return nil, err
	}
	q := &Quote{
		Price: t.price(),
		Delta: t.delta(),
		Gamma: t.gamma(),
		Vega:  t.vega(),
		Theta: t.theta(),
		Rho:   t.rho(),
		D1:    t.d1,
		D2:    t.d2,
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"price", q.Price},
		{"delta", q.Delta},
		{"gamma", q.Gamma},
		{"vega", q.Vega},
		{"theta", q.Theta},
		{"rho", q.Rho},
	} {
		if !isFinite(f.value) {
			return nil, overflow(f.name, f.value)
		}
	}
	return q, nil
}

// normCDF 标准正态分布累积分布函数（基于 erfc）
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF 标准正态分布概率密度函数
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
