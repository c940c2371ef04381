package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/optionpricing/pkg/config"
	"github.com/wyfcoding/optionpricing/pkg/logger"
	"github.com/wyfcoding/optionpricing/pkg/ratelimit"
)

func limitFromConfig(cfg config.RateLimitConfig) ratelimit.Limit {
	return ratelimit.PerSecond(cfg.QPS, cfg.Burst)
}

// RateLimitMiddleware creates a Gin middleware for rate limiting keyed by client IP
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := limitFromConfig(cfg)
	return func(c *gin.Context) {
		if !cfg.Enabled || limiter == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:http:%s", c.ClientIP())
		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			// fail open
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(retrySeconds(res.RetryAfter), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": res.RetryAfter.String(),
			})
			return
		}

		c.Next()
	}
}

// GRPCRateLimitInterceptor gRPC 限流拦截器，按对端主机计数
func GRPCRateLimitInterceptor(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) grpc.UnaryServerInterceptor {
	limit := limitFromConfig(cfg)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !cfg.Enabled || limiter == nil {
			return handler(ctx, req)
		}

		res, err := limiter.Allow(ctx, "ratelimit:grpc:"+peerHost(ctx), limit)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable", "error", err)
			return handler(ctx, req)
		}
		if !res.Allowed {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry after %s", res.RetryAfter)
		}
		return handler(ctx, req)
	}
}

// peerHost 返回对端 IP，不含端口，同一主机的多个连接共享配额
func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// retrySeconds 向上取整，至少 1 秒
func retrySeconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
