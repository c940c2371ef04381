// PricingService 主程序
// 功能：提供 Black-Scholes 期权定价与希腊字母计算
// 架构：HTTP (gin) + gRPC (JSON codec)，可选 Kafka 事件与 Redis 限流
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"github.com/wyfcoding/optionpricing/internal/pricing/application"
	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
	"github.com/wyfcoding/optionpricing/internal/pricing/infrastructure/messaging"
	grpchandler "github.com/wyfcoding/optionpricing/internal/pricing/interfaces/grpc"
	httphandler "github.com/wyfcoding/optionpricing/internal/pricing/interfaces/http"
	"github.com/wyfcoding/optionpricing/pkg/cache"
	"github.com/wyfcoding/optionpricing/pkg/config"
	"github.com/wyfcoding/optionpricing/pkg/logger"
	"github.com/wyfcoding/optionpricing/pkg/metrics"
	"github.com/wyfcoding/optionpricing/pkg/middleware"
	"github.com/wyfcoding/optionpricing/pkg/mq"
	"github.com/wyfcoding/optionpricing/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/pricing/config.toml", "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "PricingService exited: %v\n", err)
		os.Exit(1)
	}
}

// run 组装并运行服务，返回时所有资源均已释放
func run(configPath string) error {
	// 1. 加载配置
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting PricingService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化定价引擎
	engine, err := domain.NewEngine(domain.EngineConfig{RiskFreeRate: cfg.Pricing.RiskFreeRate})
	if err != nil {
		return fmt.Errorf("failed to create pricing engine: %w", err)
	}

	// 4. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)

	// 5. 初始化事件发布，Kafka 发送在后台队列中完成
	var publisher domain.EventPublisher = messaging.NoopEventPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		defer producer.Close()

		async := messaging.NewAsyncEventPublisher(
			messaging.NewKafkaEventPublisher(producer, cfg.Kafka.Topic),
			cfg.Kafka.QueueSize,
			time.Duration(cfg.Kafka.PublishTimeout)*time.Second,
		)
		// 先于 producer.Close 执行，把队列中的事件发送完
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := async.Close(drainCtx); err != nil {
				logger.Warn(ctx, "Pending pricing events dropped", "error", err)
			}
		}()
		publisher = async
	}

	// 6. 初始化限流器
	limiter, closeLimiter, err := createRateLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// 7. 初始化应用服务
	appService := application.NewPricingService(engine, publisher, metricsInstance, application.ServiceConfig{
		Precision:        cfg.Pricing.Precision,
		BatchConcurrency: cfg.Pricing.BatchConcurrency,
		MaxBatchSize:     cfg.Pricing.MaxBatchSize,
	})

	serveErr := make(chan error, 2)

	// 8. 启动 gRPC 服务器
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		listener, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC address: %w", err)
		}
		grpcServer = createGRPCServer(cfg, appService, metricsInstance, limiter)
		go func() {
			logger.Info(ctx, "Starting gRPC server", "addr", cfg.GRPC.Addr())
			if err := grpcServer.Serve(listener); err != nil {
				serveErr <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	// 9. 启动 HTTP 服务器
	httpServer := createHTTPServer(cfg, appService, metricsInstance, limiter)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 10. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info(ctx, "Shutting down PricingService", "signal", sig.String())
	case runErr = <-serveErr:
		logger.Error(ctx, "Server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info(ctx, "PricingService stopped")
	return runErr
}

// createRateLimiter 按配置选择内存或 Redis 限流器，未启用时返回 nil
func createRateLimiter(ctx context.Context, cfg *config.Config) (ratelimit.RateLimiter, func(), error) {
	if !cfg.RateLimit.Enabled {
		return nil, func() {}, nil
	}
	if cfg.RateLimit.Backend == "redis" {
		redisCache, err := cache.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return ratelimit.NewRedisRateLimiter(redisCache.GetClient()), func() { _ = redisCache.Close() }, nil
	}
	return ratelimit.NewMemoryRateLimiter(5 * time.Minute), func() {}, nil
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, appService *application.PricingService, m *metrics.Metrics, limiter ratelimit.RateLimiter) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 添加中间件
	router.Use(middleware.GinLoggingMiddleware(m))
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	api := router.Group("/")
	api.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	httphandler.NewPricingHandler(appService).RegisterRoutes(api)

	return &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// createGRPCServer 创建 gRPC 服务器
func createGRPCServer(cfg *config.Config, appService *application.PricingService, m *metrics.Metrics, limiter ratelimit.RateLimiter) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.GRPCRecoveryInterceptor(),
			middleware.GRPCLoggingInterceptor(m),
			middleware.GRPCRateLimitInterceptor(limiter, cfg.RateLimit),
		),
	}
	if cfg.GRPC.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)))
	}

	server := grpc.NewServer(opts...)
	grpchandler.NewServer(server, appService)
	return server
}
