// Package middleware 提供 Gin 与 gRPC 的通用中间件（日志、trace、panic recover、指标、限流）
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/optionpricing/pkg/logger"
	"github.com/wyfcoding/optionpricing/pkg/metrics"
)

const (
	// TraceIDHeader 上游传入的 trace ID
	TraceIDHeader = "X-Trace-ID"
	// RequestIDHeader 回写给调用方的 request ID
	RequestIDHeader = "X-Request-ID"

	traceIDMetadataKey = "x-trace-id"
)

// GinLoggingMiddleware Gin 日志与指标中间件，m 为 nil 时只记日志
func GinLoggingMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logger.ContextWithIDs(c.Request.Context(), traceID, uuid.NewString(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		method := c.Request.Method

		logger.Debug(ctx, "HTTP request started",
			"method", method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		)

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if m != nil {
			m.RecordHTTPRequest(method, route, statusCode, duration)
		}

		logger.Info(ctx, "HTTP request completed",
			"method", method,
			"path", c.Request.URL.Path,
			"status_code", statusCode,
			"response_size", c.Writer.Size(),
			"duration", duration,
		)
	}
}

// GinRecoveryMiddleware Gin panic 恢复中间件
func GinRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				ctx := c.Request.Context()
				logger.Error(ctx, "HTTP request panicked", "panic", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": logger.RequestID(ctx),
				})
			}
		}()
		c.Next()
	}
}

// GinCORSMiddleware Gin CORS 中间件
func GinCORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// GRPCLoggingInterceptor gRPC 日志与指标拦截器，m 为 nil 时只记日志
func GRPCLoggingInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		traceID := extractTraceID(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = logger.ContextWithIDs(ctx, traceID, uuid.NewString(), uuid.NewString())

		start := time.Now()
		method := info.FullMethod

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		code := status.Code(err)
		if m != nil {
			m.RecordGRPCRequest(method, code.String(), duration)
		}

		if err != nil {
			logger.Warn(ctx, "gRPC request failed",
				"method", method,
				"error_code", code.String(),
				"error_message", status.Convert(err).Message(),
				"duration", duration,
			)
		} else {
			logger.Info(ctx, "gRPC request completed",
				"method", method,
				"duration", duration,
			)
		}

		return resp, err
	}
}

// GRPCRecoveryInterceptor gRPC panic 恢复拦截器，panic 转换为 codes.Internal
func GRPCRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "gRPC request panicked",
					"method", info.FullMethod,
					"panic", r,
				)
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// extractTraceID 依次从 context 与 incoming metadata 中提取 trace ID
func extractTraceID(ctx context.Context) string {
	if traceID := logger.TraceID(ctx); traceID != "" {
		return traceID
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(traceIDMetadataKey); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
