package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/optionpricing/pkg/config"
	"github.com/wyfcoding/optionpricing/pkg/logger"
	"github.com/wyfcoding/optionpricing/pkg/metrics"
	"github.com/wyfcoding/optionpricing/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinLoggingPropagatesIDs(t *testing.T) {
	m := metrics.New("pricing_test")
	r := gin.New()
	r.Use(GinLoggingMiddleware(m))

	var traceID, requestID string
	r.GET("/ping", func(c *gin.Context) {
		traceID = logger.TraceID(c.Request.Context())
		requestID = logger.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-abc", traceID)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get(RequestIDHeader))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ping", "200")))
}

func TestGinRecoveryReturns500(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware(nil), GinRecoveryMiddleware())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestGinCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(GinCORSMiddleware())
	r.POST("/price", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/price", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddlewareRejectsOverBurst(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Backend: "memory", QPS: 1, Burst: 2}
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.NewMemoryRateLimiter(0), cfg))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	got := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		got = append(got, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, got)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, ratelimit.Limit) (*ratelimit.Result, error) {
	return nil, errors.New("redis down")
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}
	r := gin.New()
	r.Use(RateLimitMiddleware(failingLimiter{}, cfg))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(nil, config.RateLimitConfig{}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/pricing.v1.PricingService/Evaluate"}

func TestGRPCRecoveryConvertsPanic(t *testing.T) {
	interceptor := GRPCRecoveryInterceptor()
	resp, err := interceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestGRPCLoggingUsesMetadataTraceID(t *testing.T) {
	m := metrics.New("pricing_test")
	interceptor := GRPCLoggingInterceptor(m)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-trace-id", "trace-xyz"))

	var seen string
	_, err := interceptor(ctx, nil, testInfo, func(ctx context.Context, _ any) (any, error) {
		seen = logger.TraceID(ctx)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "trace-xyz", seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues(testInfo.FullMethod, "OK")))
}

func TestGRPCRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}
	interceptor := GRPCRateLimitInterceptor(ratelimit.NewMemoryRateLimiter(0), cfg)
	handler := func(context.Context, any) (any, error) { return "ok", nil }

	_, err := interceptor(context.Background(), nil, testInfo, handler)
	require.NoError(t, err)
	_, err = interceptor(context.Background(), nil, testInfo, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestGRPCRateLimitKeysOnHost(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}
	interceptor := GRPCRateLimitInterceptor(ratelimit.NewMemoryRateLimiter(0), cfg)
	handler := func(context.Context, any) (any, error) { return "ok", nil }
	from := func(ip string, port int) context.Context {
		return peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: port}})
	}

	_, err := interceptor(from("10.0.0.5", 1111), nil, testInfo, handler)
	require.NoError(t, err)

	// 重新建连换了源端口，仍计入同一主机
	_, err = interceptor(from("10.0.0.5", 2222), nil, testInfo, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = interceptor(from("10.0.0.6", 1111), nil, testInfo, handler)
	assert.NoError(t, err)
}

func TestPeerHost(t *testing.T) {
	assert.Equal(t, "unknown", peerHost(context.Background()))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("::1"), Port: 443}})
	assert.Equal(t, "::1", peerHost(ctx))
	ctx = peer.NewContext(context.Background(), &peer.Peer{Addr: &net.UnixAddr{Name: "bufconn", Net: "unix"}})
	assert.Equal(t, "bufconn", peerHost(ctx))
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, int64(1), retrySeconds(0))
	assert.Equal(t, int64(1), retrySeconds(300_000_000))
	assert.Equal(t, int64(2), retrySeconds(1_500_000_000))
}
