// pricectl 定价服务命令行客户端
// 用法：pricectl -addr localhost:50051 -type call -S 100 -K 100 -T 1 -sigma 0.2 [-greek delta | -quote]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	grpcpricing "github.com/wyfcoding/optionpricing/internal/pricing/interfaces/grpc"
	"github.com/wyfcoding/optionpricing/pkg/grpcclient"
	"github.com/wyfcoding/optionpricing/pkg/logger"
)

func main() {
	var (
		addr       = flag.String("addr", "localhost:50051", "pricing gRPC address")
		symbol     = flag.String("symbol", "", "optional contract label")
		optionType = flag.String("type", "call", "call or put")
		spot       = flag.Float64("S", 0, "underlying price")
		strike     = flag.Float64("K", 0, "strike price")
		expiry     = flag.Float64("T", 0, "time to expiry in years")
		sigma      = flag.Float64("sigma", 0, "annualized volatility")
		greek      = flag.String("greek", "price", "price|delta|gamma|vega|theta|rho")
		quote      = flag.Bool("quote", false, "return every figure instead of a single greek")
		timeout    = flag.Int("timeout", 5, "request timeout in seconds")
		retries    = flag.Int("retries", 2, "retries on Unavailable")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level, Format: "text", Output: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         *addr,
		ConnTimeout:    *timeout,
		RequestTimeout: *timeout,
		MaxRetries:     *retries,
		RetryDelay:     200,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := grpcpricing.NewPricingServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout+1)*time.Second)
	defer cancel()

	var out any
	if *quote {
		out, err = client.Quote(ctx, &grpcpricing.QuoteRequest{
			Symbol:          *symbol,
			OptionType:      *optionType,
			UnderlyingPrice: *spot,
			StrikePrice:     *strike,
			TimeToExpiry:    *expiry,
			Volatility:      *sigma,
		})
	} else {
		out, err = client.Evaluate(ctx, &grpcpricing.EvaluateRequest{
			Symbol:          *symbol,
			OptionType:      *optionType,
			UnderlyingPrice: *spot,
			StrikePrice:     *strike,
			TimeToExpiry:    *expiry,
			Volatility:      *sigma,
			Greek:           *greek,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pricing request failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
