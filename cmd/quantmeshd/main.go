// Command quantmeshd serves the portfolio orchestration API: the composite
// agent operations over HTTP plus the message bus introspection endpoints
// and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/quantmesh/quantmesh"
	"github.com/quantmesh/quantmesh/config"
	"github.com/quantmesh/quantmesh/facilitator"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/marketdata"
	"github.com/quantmesh/quantmesh/model"
	"github.com/quantmesh/quantmesh/model/anthropic"
	"github.com/quantmesh/quantmesh/model/openai"
	"github.com/quantmesh/quantmesh/server"
)

func main() {
	configPath := flag.String("config", "quantmesh.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "quantmeshd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	market, closeMarket, err := buildMarketData(cfg, logger)
	if err != nil {
		return err
	}
	defer closeMarket()

	settle := facilitator.NewClient(cfg.Facilitator.BaseURL, func(o *facilitator.Options) {
		o.APIKey = cfg.Facilitator.APIKey
		o.Timeout = cfg.Facilitator.Timeout.Std()
		o.Logger = logger
	})

	q := quantmesh.New(func(o *quantmesh.Options) {
		o.MarketData = market
		o.Facilitator = settle
		o.Model = buildModel(cfg)
		o.BusMaxHistory = cfg.Bus.MaxHistory
		o.CallTimeout = cfg.Orchestrator.CallTimeout.Std()
		o.Logger = logger
	})

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(q.Orchestrator(), q.Bus(), func(o *server.Options) {
		o.Logger = logging.NewOpsLogger(logger).WithComponent("server")
		o.Address = cfg.Server.Address
	})

	logger.Info("quantmeshd starting", "address", cfg.Server.Address)
	return srv.Run(ctx)
}

// buildMarketData assembles the market data stack: the HTTP client, a Redis
// price cache when configured, and an on-chain portfolio reader when an RPC
// endpoint is configured. The returned closer releases the chain connection.
func buildMarketData(cfg *config.Config, logger logging.Logger) (marketdata.Service, func(), error) {
	var service marketdata.Service = marketdata.NewClient(cfg.MarketData.BaseURL, func(o *marketdata.Options) {
		o.APIKey = cfg.MarketData.APIKey
		o.Timeout = cfg.MarketData.Timeout.Std()
		o.Logger = logger
	})

	if cfg.MarketData.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.MarketData.RedisAddr})
		cache := marketdata.NewRedisCache(rdb, cfg.MarketData.CacheTTL.Std())
		service = marketdata.NewCachedService(service, cache)
		logger.Info("price cache enabled", "addr", cfg.MarketData.RedisAddr, "ttl", cfg.MarketData.CacheTTL.Std())
	}

	closer := func() {}
	if cfg.Chain.RPCURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MarketData.Timeout.Std())
		defer cancel()
		reader, err := marketdata.NewChainReader(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect chain rpc: %w", err)
		}
		closer = reader.Close

		tokens := make([]marketdata.TokenRef, 0, len(cfg.Chain.Tokens))
		for _, t := range cfg.Chain.Tokens {
			tokens = append(tokens, marketdata.TokenRef{Symbol: t.Symbol, Contract: t.Contract, Decimals: t.Decimals})
		}
		service = marketdata.NewOnChainService(service, reader, cfg.Chain.NativeSymbol, tokens)
		logger.Info("on-chain portfolio reads enabled", "rpc", cfg.Chain.RPCURL, "tokens", len(tokens))
	}

	return service, closer, nil
}

// buildModel selects the AI narrative provider. An empty provider disables
// narrative; the agents stay fully deterministic.
func buildModel(cfg *config.Config) model.Model {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
		})
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
		})
	default:
		return nil
	}
}
