package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/app/service"
	tickerclient "portfolio_aggregator/internal/client"
	"portfolio_aggregator/internal/infrastructure/adapter"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/diagnostics"
	clientprovider "portfolio_aggregator/internal/infrastructure/network/client"
	networkdefinition "portfolio_aggregator/internal/infrastructure/network/definition"
	"portfolio_aggregator/internal/infrastructure/restapi"
	"portfolio_aggregator/internal/infrastructure/store"
	"portfolio_aggregator/internal/infrastructure/tokenloader"
	"portfolio_aggregator/internal/pkg/logger"
	"portfolio_aggregator/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	accountsFile := flag.String("accounts", "", "fetch balances for the accounts listed in this file, print them and exit")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yml"
	}
	cfg, err := configloader.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration %s: %v\n", configPath, err)
		os.Exit(1)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewSlogAdapter(nil)
	appLogger.Info("Portfolio aggregator starting", "config", configPath)

	netDefProvider, err := networkdefinition.NewNetworkDefinitionProvider(cfg, logger.Named("networks"))
	if err != nil {
		logger.Fatal("Invalid network configuration", "error", err)
	}
	networks := netDefProvider.GetAllNetworkDefinitions()

	tokens, err := tokenloader.NewTokenLoader(cfg.Tokens.Dir, logger.Named("tokens")).GetTokensByNetwork(networks)
	if err != nil {
		logger.Fatal("Failed to load token lists", "error", err)
	}

	promMetrics := metrics.MustRegisterMetrics()
	recorders := []port.AttemptRecorder{promMetrics}
	closeDiagnostics := func() error { return nil }
	if cfg.Diagnostics.Kafka.Enabled && len(cfg.Diagnostics.Kafka.Brokers) > 0 {
		kafkaRecorder := diagnostics.NewKafkaRecorder(cfg.Diagnostics.Kafka.Brokers, cfg.Diagnostics.Kafka.Topic, logger.Named("diagnostics"))
		recorders = append(recorders, kafkaRecorder)
		closeDiagnostics = kafkaRecorder.Close
		appLogger.Info("Publishing fetch attempts to Kafka", "brokers", cfg.Diagnostics.Kafka.Brokers, "topic", cfg.Diagnostics.Kafka.Topic)
	}
	defer func() {
		if err := closeDiagnostics(); err != nil {
			appLogger.Warn("Kafka recorder close failed", "error", err)
		}
	}()

	ticker := service.NewCachedTicker(
		promMetrics.InstrumentTicker(newTicker(cfg, zapLogger)),
		time.Duration(cfg.Price.CacheTTLSeconds)*time.Second,
	)

	rpcProvider := clientprovider.NewEVMClientProvider(
		time.Duration(cfg.Aggregator.RPCDialTimeoutMs)*time.Millisecond,
		logger.Named("rpc"),
	)
	defer rpcProvider.Close()

	stablecoins := cfg.Price.Stablecoins
	if len(stablecoins) == 0 {
		stablecoins = service.DefaultStablecoins
	}
	factory := adapter.NewFactory(adapter.Settings{
		AttemptTimeout:      time.Duration(cfg.Aggregator.AttemptTimeoutMs) * time.Millisecond,
		AggregateTimeout:    time.Duration(cfg.Aggregator.AggregateTimeoutMs) * time.Millisecond,
		TransactionsTimeout: time.Duration(cfg.Aggregator.TransactionsTimeoutMs) * time.Millisecond,
		HTTPTimeout:         time.Duration(cfg.Aggregator.HTTPTimeoutMs) * time.Millisecond,
		DefaultShow:         cfg.Aggregator.DefaultShow,
		MaxShow:             cfg.Aggregator.MaxShow,
		Stablecoins:         stablecoins,
		PriceAliases:        service.MergeAliases(service.DefaultPriceAliases, cfg.Price.Aliases),
	}, ticker, metrics.Tee(recorders...), tokens, rpcProvider, zapLogger)

	aggregators, verifiers, err := factory.Build(networks)
	if err != nil {
		logger.Fatal("Failed to build network aggregators", "error", err)
	}
	registry, err := service.NewRegistry(aggregators...)
	if err != nil {
		logger.Fatal("Failed to build network registry", "error", err)
	}
	fanOut := service.NewFanOut(registry, cfg.Aggregator.MaxConcurrent, promMetrics, logger.Named("fanout"))

	if *accountsFile != "" {
		timeout := time.Duration(cfg.Aggregator.AggregateTimeoutMs)*time.Millisecond + 30*time.Second
		if err := runAccountsFile(*accountsFile, networks, fanOut, timeout, os.Stdout, closeDiagnostics); err != nil {
			logger.Fatal("Accounts run failed", "path", *accountsFile, "error", err)
		}
		return
	}

	verificationStore, closeStore, err := newVerificationStore(cfg, appLogger)
	if err != nil {
		logger.Fatal("Failed to open verification store", "error", err)
	}
	defer closeStore()
	verification := service.NewVerificationService(verificationStore, logger.Named("verification"))
	for _, network := range networks {
		if v, ok := verifiers[network.ID]; ok {
			verification.Register(network, v)
		}
	}

	handler := restapi.NewPortfolioHandler(registry, fanOut, verification, logger.Named("restapi"))
	router := restapi.SetupRouter(handler, restapi.RouterOptions{
		SwaggerSpecPath: cfg.Server.SwaggerSpecPath,
		Logger:          zapLogger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("HTTP server listening", "address", srv.Addr, "networks", len(networks))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", "error", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	appLogger.Info("Shutdown signal received, stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	appLogger.Info("Portfolio aggregator stopped")
}

func newTicker(cfg *configloader.Config, zapLogger *zap.Logger) port.TickerClient {
	timeout := time.Duration(cfg.Price.RequestTimeoutMs) * time.Millisecond
	if cfg.Price.Source == "dexscreener" {
		return tickerclient.NewDEXScreenerClient(cfg.Price.DEXScreenerBaseURL, timeout, zapLogger)
	}
	return tickerclient.NewBinanceClient(cfg.Price.BinanceBaseURL, timeout, zapLogger)
}

func newVerificationStore(cfg *configloader.Config, appLogger port.Logger) (port.VerificationStore, func(), error) {
	opts := store.Options{
		MaxAge:  time.Duration(cfg.Verification.MaxAgeHours) * time.Hour,
		HardTTL: time.Duration(cfg.Verification.HardTTLHours) * time.Hour,
	}
	if cfg.Verification.Store != "sqlite" {
		appLogger.Info("Using in-memory verification store")
		return store.NewMemoryVerificationStore(opts), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := store.OpenSQLiteVerificationStore(ctx, cfg.Verification.SQLitePath, opts, logger.Named("store"))
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			appLogger.Warn("Verification store close failed", "error", err)
		}
	}, nil
}
