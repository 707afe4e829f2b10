package main

import (
	"context"
	"embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feeld/ledgerd/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed config/migrations/*/*.sql
var embedMigrations embed.FS

func main() {
	logger := log.NewZapLogger(log.Config{Format: "console", Level: log.LevelInfo, Output: "stderr"})

	if len(os.Args) > 1 {
		runCli(logger, os.Args[1])
		return
	}

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}
	logger = log.NewZapLogger(config.logConf)

	db, err := ConnectToDB(config.dbConf, logger)
	if err != nil {
		logger.Fatal("failed to set up database", "error", err)
	}

	store := NewLedgerStore(db)

	registry := NewAccountSecretRegistry()
	accounts, err := store.Accounts()
	if err != nil {
		logger.Fatal("failed to load accounts", "error", err)
	}
	for _, account := range accounts {
		registry.SetSecret(account.AccountID, account.Secret)
	}
	logger.Info("loaded accounts", "count", len(accounts))

	for account, secret := range config.bootstrapSecrets {
		_, known := registry.GetSecret(account)
		registry.SetSecret(account, secret)
		if known {
			continue
		}
		if err := store.CreateAccount(account, secret); err != nil {
			logger.Fatal("failed to persist bootstrap account", "account", account, "error", err)
		}
	}
	if len(config.bootstrapSecrets) > 0 {
		logger.Info("applied bootstrap secrets", "count", len(config.bootstrapSecrets))
	}

	auth := NewAuthenticator(registry)
	router := NewTransactionRouter(store, auth, config.feePolicy, config.splitPolicy, config.vaults)
	metrics := NewMetrics()
	broadcaster := NewReceiptBroadcaster(logger)

	handler := NewServer(router, store, registry, broadcaster, metrics, logger)

	httpServer := &http.Server{
		Addr:    config.httpListenAddr,
		Handler: handler,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    config.metricsListenAddr,
		Handler: metricsMux,
	}

	go metrics.RunPeriodicChainVerification(store, logger)

	go func() {
		logger.Info("metrics server available", "listenAddr", config.metricsListenAddr, "endpoint", "/metrics")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("http server available", "listenAddr", config.httpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failure", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down http server", "error", err)
	}

	logger.Info("shutdown complete")
}

func runCli(logger Logger, name string) {
	switch name {
	case "seed":
		runSeedCli(logger)
	default:
		logger.Fatal("unknown CLI command", "name", name)
	}
}
